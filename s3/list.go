package s3

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/reqengine"
	"github.com/emcecs/ecs-go-client/xmlenc"
)

// DefaultListingMax is the default max-keys value when ListOptions.MaxKeys is
// zero (spec.md §6's s3BucketListingMax knob).
const DefaultListingMax = 1000

// ListOptions carries the common query parameters both listing flavors take.
type ListOptions struct {
	Prefix    string
	Delimiter string // "" -> default "/"; use NoDelimiter to disable folding
	Marker    string
	MaxKeys   int
}

// NoDelimiter disables common-prefix folding entirely (spec.md §4.10: "may be
// disabled").
const NoDelimiter = "\x00none"

func (o ListOptions) delimiter() string {
	if o.Delimiter == "" {
		return "/"
	}
	if o.Delimiter == NoDelimiter {
		return ""
	}
	return o.Delimiter
}

// ObjectSummary is one <Contents> entry.
type ObjectSummary struct {
	Key              string
	LastModified     string
	ETag             string
	Size             int64
	OwnerID          string
	OwnerDisplayName string
}

// ListResult is one page of ListObjects.
type ListResult struct {
	Name           string
	Prefix         string
	Contents       []ObjectSummary
	CommonPrefixes []string
	IsTruncated    bool
	NextMarker     string
}

// ListObjects returns one page of bucket's (non-versioned) listing.
func (c *Client) ListObjects(ctx context.Context, bucket string, opts ListOptions) (ListResult, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return ListResult{}, err
	}
	req := &reqengine.Request{
		Method:   http.MethodGet,
		Path:     resourcePath(bucket, ""),
		RawQuery: listQuery(opts),
		Header:   cos.NewHeaderMap(),
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return ListResult{}, err
	}
	return parseListBucketResult(resp.Body)
}

// ListAll pages through every ListObjects result automatically, stopping
// once IsTruncated is false (spec.md §8 property 4: "concatenating pages ...
// yields every matching key exactly once").
func (c *Client) ListAll(ctx context.Context, bucket string, opts ListOptions) ([]ObjectSummary, []string, error) {
	var keys []ObjectSummary
	var prefixes []string
	seenPrefix := map[string]bool{}

	for {
		page, err := c.ListObjects(ctx, bucket, opts)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, page.Contents...)
		for _, p := range page.CommonPrefixes {
			if !seenPrefix[p] {
				seenPrefix[p] = true
				prefixes = append(prefixes, p)
			}
		}
		if !page.IsTruncated {
			break
		}
		opts.Marker = page.NextMarker
		if opts.Marker == "" && len(page.Contents) > 0 {
			opts.Marker = page.Contents[len(page.Contents)-1].Key
		}
	}
	return keys, prefixes, nil
}

// VersionSummary is one <Version> or <DeleteMarker> entry.
type VersionSummary struct {
	Key          string
	VersionID    string
	IsLatest     bool
	IsDeleteMarker bool
	LastModified string
	ETag         string
	Size         int64
}

// ListVersionsResult is one page of ListObjectVersions.
type ListVersionsResult struct {
	Name                string
	Prefix              string
	Versions            []VersionSummary
	CommonPrefixes      []string
	IsTruncated         bool
	NextKeyMarker       string
	NextVersionIDMarker string
}

// ListVersionsOptions extends ListOptions with the version-listing-specific
// marker pair.
type ListVersionsOptions struct {
	ListOptions
	VersionIDMarker string
}

// ListObjectVersions returns one page of bucket's versioned listing.
func (c *Client) ListObjectVersions(ctx context.Context, bucket string, opts ListVersionsOptions) (ListVersionsResult, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return ListVersionsResult{}, err
	}
	q := url.Values{}
	q.Set("versions", "")
	applyListQuery(q, opts.ListOptions, "key-marker")
	if opts.VersionIDMarker != "" {
		q.Set("version-id-marker", opts.VersionIDMarker)
	}
	req := &reqengine.Request{
		Method:   http.MethodGet,
		Path:     resourcePath(bucket, ""),
		RawQuery: q.Encode(),
		Header:   cos.NewHeaderMap(),
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return ListVersionsResult{}, err
	}
	return parseListVersionsResult(resp.Body)
}

func listQuery(o ListOptions) string {
	q := url.Values{}
	applyListQuery(q, o, "marker")
	return q.Encode()
}

func applyListQuery(q url.Values, o ListOptions, markerParam string) {
	if o.Prefix != "" {
		q.Set("prefix", o.Prefix)
	}
	if d := o.delimiter(); d != "" {
		q.Set("delimiter", d)
	}
	if o.Marker != "" {
		q.Set(markerParam, o.Marker)
	}
	max := o.MaxKeys
	if max <= 0 {
		max = DefaultListingMax
	}
	if max > DefaultListingMax {
		max = DefaultListingMax
	}
	q.Set("max-keys", strconv.Itoa(max))
}

func parseListBucketResult(body []byte) (ListResult, error) {
	var result ListResult
	var cur ObjectSummary

	d := xmlenc.New()
	d.On("//ListBucketResult/Name", textInto(&result.Name))
	d.On("//ListBucketResult/Prefix", textInto(&result.Prefix))
	d.On("//ListBucketResult/IsTruncated", boolInto(&result.IsTruncated))
	d.On("//ListBucketResult/NextMarker", textInto(&result.NextMarker))
	d.On("//ListBucketResult/Contents", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, _ string) error {
		if node == xmlenc.ElementStart {
			cur = ObjectSummary{}
		}
		if node == xmlenc.ElementEnd {
			result.Contents = append(result.Contents, cur)
		}
		return nil
	})
	d.On("//ListBucketResult/Contents/Key", textInto(&cur.Key))
	d.On("//ListBucketResult/Contents/LastModified", textInto(&cur.LastModified))
	d.On("//ListBucketResult/Contents/ETag", textInto(&cur.ETag))
	d.On("//ListBucketResult/Contents/Size", int64Into(&cur.Size))
	d.On("//ListBucketResult/Contents/Owner/ID", textInto(&cur.OwnerID))
	d.On("//ListBucketResult/Contents/Owner/DisplayName", textInto(&cur.OwnerDisplayName))
	d.On("//ListBucketResult/CommonPrefixes/Prefix", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node == xmlenc.Text {
			result.CommonPrefixes = append(result.CommonPrefixes, text)
		}
		return nil
	})

	if err := d.Run(bytes.NewReader(body)); err != nil {
		return ListResult{}, err
	}
	return result, nil
}

func parseListVersionsResult(body []byte) (ListVersionsResult, error) {
	var result ListVersionsResult
	var cur VersionSummary

	flush := func() { result.Versions = append(result.Versions, cur) }

	d := xmlenc.New()
	d.On("//ListVersionsResult/Name", textInto(&result.Name))
	d.On("//ListVersionsResult/Prefix", textInto(&result.Prefix))
	d.On("//ListVersionsResult/IsTruncated", boolInto(&result.IsTruncated))
	d.On("//ListVersionsResult/NextKeyMarker", textInto(&result.NextKeyMarker))
	d.On("//ListVersionsResult/NextVersionIdMarker", textInto(&result.NextVersionIDMarker))

	d.On("//ListVersionsResult/Version", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, _ string) error {
		if node == xmlenc.ElementStart {
			cur = VersionSummary{}
		}
		if node == xmlenc.ElementEnd {
			flush()
		}
		return nil
	})
	d.On("//ListVersionsResult/Version/Key", textInto(&cur.Key))
	d.On("//ListVersionsResult/Version/VersionId", textInto(&cur.VersionID))
	d.On("//ListVersionsResult/Version/IsLatest", boolInto(&cur.IsLatest))
	d.On("//ListVersionsResult/Version/LastModified", textInto(&cur.LastModified))
	d.On("//ListVersionsResult/Version/ETag", textInto(&cur.ETag))
	d.On("//ListVersionsResult/Version/Size", int64Into(&cur.Size))

	d.On("//ListVersionsResult/DeleteMarker", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, _ string) error {
		if node == xmlenc.ElementStart {
			cur = VersionSummary{IsDeleteMarker: true}
		}
		if node == xmlenc.ElementEnd {
			flush()
		}
		return nil
	})
	d.On("//ListVersionsResult/DeleteMarker/Key", textInto(&cur.Key))
	d.On("//ListVersionsResult/DeleteMarker/VersionId", textInto(&cur.VersionID))
	d.On("//ListVersionsResult/DeleteMarker/IsLatest", boolInto(&cur.IsLatest))
	d.On("//ListVersionsResult/DeleteMarker/LastModified", textInto(&cur.LastModified))

	d.On("//ListVersionsResult/CommonPrefixes/Prefix", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node == xmlenc.Text {
			result.CommonPrefixes = append(result.CommonPrefixes, text)
		}
		return nil
	})

	if err := d.Run(bytes.NewReader(body)); err != nil {
		return ListVersionsResult{}, err
	}
	return result, nil
}

func textInto(dst *string) xmlenc.Handler {
	return func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node == xmlenc.Text {
			*dst = text
		}
		return nil
	}
}

func boolInto(dst *bool) xmlenc.Handler {
	return func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node == xmlenc.Text {
			*dst = text == "true"
		}
		return nil
	}
}

func int64Into(dst *int64) xmlenc.Handler {
	return func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node == xmlenc.Text {
			n, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return err
			}
			*dst = n
		}
		return nil
	}
}
