package multipart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/emcecs/ecs-go-client/bodystream"
	"github.com/emcecs/ecs-go-client/connection"
	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/reqengine"
	"github.com/emcecs/ecs-go-client/xmlenc"
)

// defaultFrameSize is how much of a part is read into one BodyStream frame at
// a time (spec.md §4.8 step 5's "pre-stage ... frames ... by reading the
// source").
const defaultFrameSize = 64 * 1024

// Coordinator drives one multipart upload: Initiate, a bounded worker pool
// over PartList, Complete or Abort.
//
// The source's main loop explicitly pre-stages frames into a pending list and
// waits on a union of per-part "data available" events plus a global
// "completion" event (spec.md §4.8 step 5). errgroup.Group bounded by a
// semaphore collapses that into one goroutine per part, each owning its
// part's retry loop end-to-end — the same worker-pool concurrency bound and
// per-part retry/abort semantics, without hand-rolled event-union polling.
type Coordinator struct {
	Engine *reqengine.Engine
	Conn   *connection.Connection

	Bucket, Key string

	MaxThreads   int
	MaxRetries   int
	MaxQueueSize int // BodyStream high-water mark per part, in frames
	FrameSize    int
}

// Source is the opaque, restartable byte source multipart parts are read
// from (spec.md's "host application's file I/O", out of scope to specify
// further). io.ReaderAt's random-access contract already gives every part
// worker independent, retry-safe reads without shared cursor state.
type Source = io.ReaderAt

func (c *Coordinator) resourcePath() string {
	return "/" + c.Bucket + "/" + c.Key
}

func (c *Coordinator) frameSize() int {
	if c.FrameSize > 0 {
		return c.FrameSize
	}
	return defaultFrameSize
}

func (c *Coordinator) maxQueueSize() int {
	if c.MaxQueueSize > 0 {
		return c.MaxQueueSize
	}
	return 8
}

// Upload drives the full S3MultiPartInitiate -> N x UploadPart ->
// S3MultiPartComplete lifecycle, aborting the UploadId if any part exhausts
// its retries (spec.md §4.8).
func (c *Coordinator) Upload(ctx context.Context, source Source, totalSize, targetPartSize int64) (etag string, err error) {
	plan, err := PlanParts(totalSize, targetPartSize)
	if err != nil {
		return "", err
	}

	uploadID, err := c.initiate(ctx)
	if err != nil {
		return "", errors.Wrap(err, "multipart: initiate")
	}

	parts := make([]CompletedPart, plan.NumParts)
	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(groupCtx)
	sem := semaphore.NewWeighted(int64(maxThreads(c.MaxThreads)))

	for i := 1; i <= plan.NumParts; i++ {
		partNumber := i
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			start, end := plan.PartBounds(partNumber, totalSize)
			partETag, perr := c.uploadPartWithRetry(gctx, uploadID, partNumber, source, start, end)
			if perr != nil {
				return perr
			}
			parts[partNumber-1] = CompletedPart{PartNumber: partNumber, ETag: partETag}
			return nil
		})
	}

	if werr := g.Wait(); werr != nil {
		_ = c.abort(ctx, uploadID)
		return "", werr
	}

	return c.complete(ctx, uploadID, parts)
}

func maxThreads(n int) int {
	if n <= 0 {
		return 4
	}
	return n
}

// uploadPartWithRetry uploads one part, retrying up to MaxRetries times
// (spec.md §4.8 step 5's "reset the part's in-process/complete/cursor/
// checksum and re-enqueue"). Each attempt re-reads from source at its
// recorded offset, making retry trivially safe.
func (c *Coordinator) uploadPartWithRetry(ctx context.Context, uploadID string, partNumber int, source Source, start, end int64) (string, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		etag, err := c.uploadPartOnce(ctx, uploadID, partNumber, source, start, end)
		if err == nil {
			return etag, nil
		}
		lastErr = err
	}
	return "", errors.Wrapf(lastErr, "multipart: part %d exhausted %d retries", partNumber, maxRetries)
}

func (c *Coordinator) uploadPartOnce(ctx context.Context, uploadID string, partNumber int, source Source, start, end int64) (string, error) {
	partSize := end - start
	stream := bodystream.New(c.maxQueueSize())
	section := io.NewSectionReader(source, start, partSize)

	feedErr := make(chan error, 1)
	go func() { feedErr <- feedStream(stream, section, c.frameSize()) }()

	header := cos.NewHeaderMap()
	query := fmt.Sprintf("partNumber=%d&uploadId=%s", partNumber, uploadID)
	req := &reqengine.Request{
		Method:       http.MethodPut,
		Path:         c.resourcePath(),
		RawQuery:     query,
		Header:       header,
		UploadStream: stream,
		UploadLength: partSize,
	}

	resp, err := c.Engine.Do(ctx, connection.NewPerThreadState(), req)
	// Unblock the feeder if the request stopped reading the stream early.
	stream.Close()
	if ferr := <-feedErr; ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return "", err
	}

	etag, _ := resp.Header.Get("Etag")
	return etag, nil
}

func feedStream(stream *bodystream.Stream, r io.Reader, frameSize int) error {
	buf := make([]byte, frameSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			frame := bodystream.Frame{Bytes: append([]byte(nil), buf[:n]...)}
			if perr := stream.Push(frame, nil); perr != nil {
				return perr
			}
		}
		if err == io.EOF {
			return stream.Push(bodystream.Frame{IsLast: true}, nil)
		}
		if err != nil {
			return err
		}
	}
}

func (c *Coordinator) initiate(ctx context.Context) (string, error) {
	header := cos.NewHeaderMap()
	req := &reqengine.Request{
		Method:   http.MethodPost,
		Path:     c.resourcePath(),
		RawQuery: "uploads",
		Header:   header,
		Payload:  []byte{},
	}
	resp, err := c.Engine.Do(ctx, connection.NewPerThreadState(), req)
	if err != nil {
		return "", err
	}
	var uploadID string
	d := xmlenc.New()
	d.On("//InitiateMultipartUploadResult/UploadId", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node == xmlenc.Text {
			uploadID = text
		}
		return nil
	})
	if err := d.Run(byteReader(resp.Body)); err != nil {
		return "", err
	}
	if uploadID == "" {
		return "", errors.New("multipart: InitiateMultipartUploadResult missing UploadId")
	}
	return uploadID, nil
}

func (c *Coordinator) complete(ctx context.Context, uploadID string, parts []CompletedPart) (string, error) {
	body := BuildCompleteManifest(parts)
	header := cos.NewHeaderMap()
	header.Set("Content-Type", "application/xml")
	req := &reqengine.Request{
		Method:   http.MethodPost,
		Path:     c.resourcePath(),
		RawQuery: "uploadId=" + uploadID,
		Header:   header,
		Payload:  body,
	}
	resp, err := c.Engine.Do(ctx, connection.NewPerThreadState(), req)
	if err != nil {
		return "", err
	}

	var etag string
	d := xmlenc.New()
	d.On("//CompleteMultipartUploadResult/ETag", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node == xmlenc.Text {
			etag = text
		}
		return nil
	})
	if err := d.Run(byteReader(resp.Body)); err != nil {
		return "", err
	}
	return etag, nil
}

func (c *Coordinator) abort(ctx context.Context, uploadID string) error {
	header := cos.NewHeaderMap()
	req := &reqengine.Request{
		Method:   http.MethodDelete,
		Path:     c.resourcePath(),
		RawQuery: "uploadId=" + uploadID,
		Header:   header,
	}
	_, err := c.Engine.Do(ctx, connection.NewPerThreadState(), req)
	return err
}

func byteReader(b []byte) io.Reader { return bytes.NewReader(b) }
