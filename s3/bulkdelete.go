package s3

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/reqengine"
	"github.com/emcecs/ecs-go-client/xmlenc"
)

// BulkDeleteFlushSize is the entry count a BatchDeleter flushes at (spec.md
// §4.10: "flush when >= 1000 entries").
const BulkDeleteFlushSize = 1000

// DeletedKeyError is one <Error> entry from a DeleteResult.
type DeletedKeyError struct {
	Key       string
	Code      string
	Message   string
	RequestID string
}

// DeleteMultipleResult is the outcome of one bulk-delete flush.
type DeleteMultipleResult struct {
	Errors []DeletedKeyError
}

// DeleteMultiple issues one POST /<bucket>/?delete for up to
// BulkDeleteFlushSize keys (callers with more should use BatchDeleter). The
// request body is the sorted-unique XML manifest with Quiet=true and a
// Content-MD5 of the exact UTF-8 bytes sent (spec.md §4.10). Any <Error>
// entry in the response classifies the call as a synthetic HTTP 500 (spec.md
// §7), surfaced as a *cos.Result even though the wire status was 200.
func (c *Client) DeleteMultiple(ctx context.Context, bucket string, keys []string) (DeleteMultipleResult, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return DeleteMultipleResult{}, err
	}
	if len(keys) == 0 {
		return DeleteMultipleResult{}, nil
	}
	if len(keys) > BulkDeleteFlushSize {
		return DeleteMultipleResult{}, errors.Errorf("s3: DeleteMultiple accepts at most %d keys per call; use BatchDeleter", BulkDeleteFlushSize)
	}

	body := buildDeleteManifest(keys)
	sum := md5.Sum(body)

	header := cos.NewHeaderMap()
	header.Set("Content-Type", "application/xml")
	header.Set("Content-MD5", base64.StdEncoding.EncodeToString(sum[:]))

	req := &reqengine.Request{
		Method:   http.MethodPost,
		Path:     resourcePath(bucket, ""),
		RawQuery: "delete",
		Header:   header,
		Payload:  body,
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return DeleteMultipleResult{}, err
	}

	result, perr := parseDeleteResult(resp.Body)
	if perr != nil {
		return DeleteMultipleResult{}, perr
	}
	if len(result.Errors) > 0 {
		first := result.Errors[0]
		return result, &cos.Result{
			HTTPStatus:  http.StatusInternalServerError,
			S3:          cos.ParseS3Error(first.Code),
			S3CodeText:  first.Code,
			S3RequestID: first.RequestID,
			Details:     first.Message,
		}
	}
	return result, nil
}

func buildDeleteManifest(keys []string) []byte {
	unique := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		unique[k] = struct{}{}
	}
	sorted := make([]string, 0, len(unique))
	for k := range unique {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString("<Delete><Quiet>true</Quiet>")
	for _, k := range sorted {
		sb.WriteString("<Object><Key>")
		sb.WriteString(escapeXML(k))
		sb.WriteString("</Key></Object>")
	}
	sb.WriteString("</Delete>")
	return []byte(sb.String())
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func parseDeleteResult(body []byte) (DeleteMultipleResult, error) {
	var result DeleteMultipleResult
	var cur DeletedKeyError

	d := xmlenc.New()
	d.On("//DeleteResult/Error", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, _ string) error {
		if node == xmlenc.ElementStart {
			cur = DeletedKeyError{}
		}
		if node == xmlenc.ElementEnd {
			result.Errors = append(result.Errors, cur)
		}
		return nil
	})
	d.On("//DeleteResult/Error/Key", textInto(&cur.Key))
	d.On("//DeleteResult/Error/Code", textInto(&cur.Code))
	d.On("//DeleteResult/Error/Message", textInto(&cur.Message))
	d.On("//DeleteResult/Error/RequestId", textInto(&cur.RequestID))

	if err := d.Run(bytes.NewReader(body)); err != nil {
		return DeleteMultipleResult{}, err
	}
	return result, nil
}

// BatchDeleter accumulates keys across calls to Add and flushes automatically
// at BulkDeleteFlushSize, the per-thread draft-list pattern spec.md §4.10
// describes. Call Flush at the end to drain any remainder. Not safe for
// concurrent use by multiple goroutines against the same BatchDeleter (it
// models one thread's draft list, per spec.md §4.10's "per-thread draft
// list"); use one BatchDeleter per goroutine.
type BatchDeleter struct {
	client *Client
	bucket string

	mu      sync.Mutex
	pending []string
	errors  []DeletedKeyError
}

// NewBatchDeleter returns a BatchDeleter for bucket.
func (c *Client) NewBatchDeleter(bucket string) *BatchDeleter {
	return &BatchDeleter{client: c, bucket: bucket}
}

// Add queues key for deletion, flushing immediately if the draft list has
// reached BulkDeleteFlushSize.
func (b *BatchDeleter) Add(ctx context.Context, key string) error {
	b.mu.Lock()
	b.pending = append(b.pending, key)
	shouldFlush := len(b.pending) >= BulkDeleteFlushSize
	b.mu.Unlock()

	if shouldFlush {
		return b.Flush(ctx)
	}
	return nil
}

// Flush sends whatever is currently queued, regardless of size.
func (b *BatchDeleter) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	result, err := b.client.DeleteMultiple(ctx, b.bucket, batch)
	if result.Errors != nil {
		b.mu.Lock()
		b.errors = append(b.errors, result.Errors...)
		b.mu.Unlock()
	}
	return err
}

// Errors returns every per-key error accumulated across flushes so far.
func (b *BatchDeleter) Errors() []DeletedKeyError {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DeletedKeyError(nil), b.errors...)
}
