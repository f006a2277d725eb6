package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/emcecs/ecs-go-client/bodystream"
	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/multipart"
	"github.com/emcecs/ecs-go-client/reqengine"
	"github.com/emcecs/ecs-go-client/xmlenc"
)

// MultipartThreshold is the object size above which Put automatically
// switches to MultipartCoordinator instead of a single buffered PUT.
const MultipartThreshold = 64 * 1024 * 1024

// ObjectInfo is what HeadObject/GetObject surface back from response headers.
type ObjectInfo struct {
	ContentLength int64
	ETag          string
	LastModified  string
	VersionID     string
	ContentType   string
	UserMetadata  map[string]string
}

func objectInfoFromHeader(h *cos.HeaderMap) ObjectInfo {
	info := ObjectInfo{UserMetadata: map[string]string{}}
	if v, ok := h.Get("Content-Length"); ok {
		info.ContentLength, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := h.Get("ETag"); ok {
		info.ETag = v
	}
	if v, ok := h.Get("Last-Modified"); ok {
		info.LastModified = v
	}
	if v, ok := h.Get("x-amz-version-id"); ok {
		info.VersionID = v
	}
	if v, ok := h.Get("Content-Type"); ok {
		info.ContentType = v
	}
	h.ForEach(func(display, value string) {
		const prefix = "x-amz-meta-"
		if len(display) > len(prefix) && equalFoldASCII(display[:len(prefix)], prefix) {
			info.UserMetadata[display[len(prefix):]] = value
		}
	})
	return info
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// PutOptions carries the optional knobs Put accepts.
type PutOptions struct {
	ContentType    string
	UserMetadata   map[string]string
	TargetPartSize int64 // 0 -> multipart.MinPartSize's caller-chosen default
}

// Put uploads data (exactly size bytes) as bucket/key. Objects at or above
// MultipartThreshold are routed through multipart.Coordinator automatically;
// smaller objects are sent as one buffered PUT (spec.md §4.10's "COPY (small
// + multipart)" sizing rule, generalized here to plain uploads too).
func (c *Client) Put(ctx context.Context, bucket, key string, data io.ReaderAt, size int64, opts PutOptions) (ObjectInfo, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return ObjectInfo{}, err
	}
	if size >= MultipartThreshold {
		return c.putMultipart(ctx, bucket, key, data, size, opts)
	}

	buf := make([]byte, size)
	if _, err := data.ReadAt(buf, 0); err != nil && err != io.EOF {
		return ObjectInfo{}, errors.Wrap(err, "s3: reading object body")
	}

	header := cos.NewHeaderMap()
	if opts.ContentType != "" {
		header.Set("Content-Type", opts.ContentType)
	}
	for k, v := range opts.UserMetadata {
		header.Set("x-amz-meta-"+k, v)
	}

	req := &reqengine.Request{
		Method:  http.MethodPut,
		Path:    resourcePath(bucket, key),
		Header:  header,
		Payload: buf,
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return ObjectInfo{}, err
	}
	return objectInfoFromHeader(resp.Header), nil
}

func (c *Client) putMultipart(ctx context.Context, bucket, key string, data io.ReaderAt, size int64, opts PutOptions) (ObjectInfo, error) {
	coord := &multipart.Coordinator{
		Engine: c.Engine,
		Conn:   c.Conn,
		Bucket: bucket,
		Key:    key,
	}
	targetPartSize := opts.TargetPartSize
	if targetPartSize <= 0 {
		targetPartSize = multipart.MinPartSize
	}
	etag, err := coord.Upload(ctx, data, size, targetPartSize)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{ContentLength: size, ETag: etag}, nil
}

// PutStream uploads from an already-framed bodystream.Stream. size must be the
// exact body length under V4 signing, where the stream is always sent
// v4-chunked with Content-Length computed from size; under V2 a negative size
// only omits Content-Length.
func (c *Client) PutStream(ctx context.Context, bucket, key string, stream *bodystream.Stream, size int64, opts PutOptions) (ObjectInfo, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return ObjectInfo{}, err
	}
	header := cos.NewHeaderMap()
	if opts.ContentType != "" {
		header.Set("Content-Type", opts.ContentType)
	}
	for k, v := range opts.UserMetadata {
		header.Set("x-amz-meta-"+k, v)
	}
	req := &reqengine.Request{
		Method:       http.MethodPut,
		Path:         resourcePath(bucket, key),
		Header:       header,
		UploadStream: stream,
		UploadLength: size,
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return ObjectInfo{}, err
	}
	return objectInfoFromHeader(resp.Header), nil
}

// Get retrieves bucket/key in full, buffered.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, ObjectInfo, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return nil, ObjectInfo{}, err
	}
	req := newRequest(http.MethodGet, bucket, key, "")
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	return resp.Body, objectInfoFromHeader(resp.Header), nil
}

// GetRange retrieves [start, end] (inclusive) of bucket/key.
func (c *Client) GetRange(ctx context.Context, bucket, key string, start, end int64) ([]byte, ObjectInfo, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return nil, ObjectInfo{}, err
	}
	req := newRequest(http.MethodGet, bucket, key, "")
	req.Header.Set("Range", "bytes="+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10))
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	return resp.Body, objectInfoFromHeader(resp.Header), nil
}

// GetStream retrieves bucket/key, pushing frames onto download instead of
// buffering the whole body.
func (c *Client) GetStream(ctx context.Context, bucket, key string, download *bodystream.Stream) (ObjectInfo, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return ObjectInfo{}, err
	}
	req := newRequest(http.MethodGet, bucket, key, "")
	req.DownloadStream = download
	resp, err := c.do(ctx, req)
	if err != nil {
		return ObjectInfo{}, err
	}
	return objectInfoFromHeader(resp.Header), nil
}

// Head retrieves bucket/key's metadata only.
func (c *Client) Head(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return ObjectInfo{}, err
	}
	req := newRequest(http.MethodHead, bucket, key, "")
	resp, err := c.do(ctx, req)
	if err != nil {
		return ObjectInfo{}, err
	}
	return objectInfoFromHeader(resp.Header), nil
}

// Delete removes bucket/key (optionally a specific version).
func (c *Client) Delete(ctx context.Context, bucket, key, versionID string) error {
	if err := errIfMissingBucket(bucket); err != nil {
		return err
	}
	rawQuery := ""
	if versionID != "" {
		rawQuery = "versionId=" + versionID
	}
	req := newRequest(http.MethodDelete, bucket, key, rawQuery)
	_, err := c.do(ctx, req)
	return err
}

// CopyOptions carries the optional metadata-directive knob Copy accepts.
type CopyOptions struct {
	// ReplaceMetadata, when true, sends x-amz-metadata-directive: REPLACE
	// with UserMetadata/ContentType instead of COPY (re-apply source's own).
	ReplaceMetadata bool
	UserMetadata    map[string]string
	ContentType     string
}

// Copy issues a server-side COPY of srcBucket/srcKey into dstBucket/dstKey.
// Per spec.md §4.10's rename rule, object size is not known up front for a
// COPY (the source decides it server-side), so this is always a single
// COPY request; MultipartCoordinator's "copy-part" variant is out of scope
// for a same-call, size-driven switch the way Put's is.
func (c *Client) Copy(ctx context.Context, dstBucket, dstKey, srcBucket, srcKey string, opts CopyOptions) (ObjectInfo, error) {
	if err := errIfMissingBucket(dstBucket); err != nil {
		return ObjectInfo{}, err
	}
	if err := errIfMissingBucket(srcBucket); err != nil {
		return ObjectInfo{}, err
	}
	header := cos.NewHeaderMap()
	header.Set("x-amz-copy-source", "/"+srcBucket+"/"+srcKey)
	if opts.ReplaceMetadata {
		header.Set("x-amz-metadata-directive", "REPLACE")
		if opts.ContentType != "" {
			header.Set("Content-Type", opts.ContentType)
		}
		for k, v := range opts.UserMetadata {
			header.Set("x-amz-meta-"+k, v)
		}
	} else {
		header.Set("x-amz-metadata-directive", "COPY")
	}

	req := &reqengine.Request{
		Method: http.MethodPut,
		Path:   resourcePath(dstBucket, dstKey),
		Header: header,
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return ObjectInfo{}, err
	}

	// a successful COPY replies 200 with a <CopyObjectResult> body even
	// though the request itself carries no payload.
	var info ObjectInfo
	d := xmlenc.New()
	d.On("//CopyObjectResult/ETag", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node == xmlenc.Text {
			info.ETag = text
		}
		return nil
	})
	d.On("//CopyObjectResult/LastModified", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node == xmlenc.Text {
			info.LastModified = text
		}
		return nil
	})
	if len(resp.Body) > 0 {
		if err := d.Run(bytes.NewReader(resp.Body)); err != nil {
			return ObjectInfo{}, errors.Wrap(err, "s3: parsing CopyObjectResult")
		}
	}
	return info, nil
}
