package s3

import (
	"context"

	"github.com/pkg/errors"
)

// RenameOptions controls Rename's metadata and source-deletion behavior.
type RenameOptions struct {
	// DeleteTags lists metadata keys to drop from the copy (spec.md §4.10:
	// "caller's pDeleteTag list removes entries"); metadata is otherwise
	// always read from the source and re-applied verbatim.
	DeleteTags []string
	// KeepSource, when true, skips the final DELETE of the source object
	// (spec.md's "unless bCopy").
	KeepSource bool
}

// Rename moves srcKey to dstKey within bucket: HEAD the source, COPY
// (small-object COPY is sufficient here since the destination is created
// server-side regardless of source size), copy the ACL across, then DELETE
// the source unless opts.KeepSource (spec.md §4.10's rename recipe).
func (c *Client) Rename(ctx context.Context, bucket, srcKey, dstKey string, opts RenameOptions) (ObjectInfo, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return ObjectInfo{}, err
	}

	srcInfo, err := c.Head(ctx, bucket, srcKey)
	if err != nil {
		return ObjectInfo{}, errors.Wrap(err, "s3: rename: HEAD source")
	}

	meta := make(map[string]string, len(srcInfo.UserMetadata))
	for k, v := range srcInfo.UserMetadata {
		meta[k] = v
	}
	for _, tag := range opts.DeleteTags {
		delete(meta, tag)
	}

	dstInfo, err := c.Copy(ctx, bucket, dstKey, bucket, srcKey, CopyOptions{
		ReplaceMetadata: true,
		UserMetadata:    meta,
		ContentType:     srcInfo.ContentType,
	})
	if err != nil {
		return ObjectInfo{}, errors.Wrap(err, "s3: rename: COPY")
	}

	acl, err := c.GetACL(ctx, bucket, srcKey)
	if err != nil {
		return dstInfo, errors.Wrap(err, "s3: rename: GET source ACL")
	}
	if err := c.PutACL(ctx, bucket, dstKey, acl); err != nil {
		return dstInfo, errors.Wrap(err, "s3: rename: PUT ACL on destination")
	}

	if !opts.KeepSource {
		if err := c.Delete(ctx, bucket, srcKey, ""); err != nil {
			return dstInfo, errors.Wrap(err, "s3: rename: DELETE source")
		}
	}
	return dstInfo, nil
}
