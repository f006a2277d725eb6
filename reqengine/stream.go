package reqengine

import (
	"bytes"
	"io"
	"net/http"

	"github.com/emcecs/ecs-go-client/bodystream"
	"github.com/emcecs/ecs-go-client/connection"
	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/runtime"
	"github.com/emcecs/ecs-go-client/sign"
)

// plainUploadReader adapts a bodystream.Stream to io.Reader, popping frames
// as the transport asks for bytes and applying the host's upload throttle
// between pops (spec.md §4.6 phase 2, §4.5).
type plainUploadReader struct {
	stream *bodystream.Stream
	conn   *connection.Connection
	eng    *Engine
	buf    []byte
	cancel chan struct{}
	done   bool
}

func newPlainUploadReader(s *bodystream.Stream, conn *connection.Connection, eng *Engine) *plainUploadReader {
	return &plainUploadReader{stream: s, conn: conn, eng: eng, cancel: make(chan struct{})}
}

func (r *plainUploadReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.done {
			return 0, io.EOF
		}
		r.conn.Ctx.Throttle.Wait(r.conn.Host, runtime.Upload, r.conn.ConnectTimeout, r.cancel)
		f, err := r.stream.Pop(r.cancel)
		if err != nil {
			return 0, io.EOF
		}
		r.buf = f.Bytes
		if f.IsLast {
			r.done = true
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	r.conn.Ctx.Throttle.Consume(r.conn.Host, runtime.Upload, int64(n))
	if r.eng != nil {
		r.eng.record(func(rec Recorder) { rec.BytesSent(r.conn.Host, int64(n)) })
	}
	return n, nil
}

func (r *plainUploadReader) Close() { close(r.cancel) }

// chunkedUploadReader frames and signs each popped stream frame as a v4
// streaming chunk, emitting the terminal zero-length chunk once the upload
// stream signals its last frame (spec.md §4.2, §4.6 phase 2).
type chunkedUploadReader struct {
	stream    *bodystream.Stream
	conn      *connection.Connection
	eng       *Engine
	signer    *sign.ChunkSigner
	chunkSize int
	buf       bytes.Buffer
	pending   []byte
	cancel    chan struct{}
	finished  bool
}

func newChunkedUploadReader(s *bodystream.Stream, plan signingPlan, conn *connection.Connection, eng *Engine) *chunkedUploadReader {
	chunkSize := sign.ClampChunkSize(conn.V4ChunkSize)
	return &chunkedUploadReader{
		stream:    s,
		conn:      conn,
		eng:       eng,
		signer:    sign.NewChunkSigner(plan.chunkKey, plan.scope, plan.requestTime, plan.seedSig, chunkSize),
		chunkSize: chunkSize,
		cancel:    make(chan struct{}),
	}
}

func (r *chunkedUploadReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.finished {
			return 0, io.EOF
		}
		if err := r.fillOneChunk(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *chunkedUploadReader) fillOneChunk() error {
	r.buf.Reset()
	last := false
	for r.buf.Len() < r.chunkSize {
		r.conn.Ctx.Throttle.Wait(r.conn.Host, runtime.Upload, r.conn.ConnectTimeout, r.cancel)
		f, err := r.stream.Pop(r.cancel)
		if err != nil {
			last = true
			break
		}
		r.buf.Write(f.Bytes)
		r.conn.Ctx.Throttle.Consume(r.conn.Host, runtime.Upload, int64(len(f.Bytes)))
		if r.eng != nil {
			r.eng.record(func(rec Recorder) { rec.BytesSent(r.conn.Host, int64(len(f.Bytes))) })
		}
		if f.IsLast {
			last = true
			break
		}
	}

	payload := r.buf.Next(r.chunkSize)
	r.pending = append(r.pending, r.signer.Next(payload)...)
	if last {
		for r.buf.Len() > 0 {
			r.pending = append(r.pending, r.signer.Next(r.buf.Next(r.chunkSize))...)
		}
		if len(payload) > 0 {
			r.pending = append(r.pending, r.signer.Next(nil)...)
		}
		r.finished = true
	}
	return nil
}

func (r *chunkedUploadReader) Close() { close(r.cancel) }

// drainResponse performs spec.md §4.6 phase 5: buffers the body (always, on
// HTTP >= 400; otherwise only when no DownloadStream is supplied) or pushes
// frames onto req.DownloadStream, applying the download throttle between
// reads.
func (e *Engine) drainResponse(conn *connection.Connection, httpResp *http.Response, req *Request) (*Response, *cos.Result) {
	defer httpResp.Body.Close()

	headers := cos.NewHeaderMap()
	for name, vals := range httpResp.Header {
		for _, v := range vals {
			headers.Set(name, v)
		}
	}

	mustBuffer := req.DownloadStream == nil || httpResp.StatusCode >= 400

	if mustBuffer {
		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, &cos.Result{HTTPStatus: httpResp.StatusCode, HostAddr: conn.Host, Details: err.Error()}
		}
		e.record(func(r Recorder) { r.BytesReceived(conn.Host, int64(len(body))) })

		if httpResp.StatusCode >= 300 {
			return nil, resultFromErrorBody(httpResp.StatusCode, conn.Host, body, headers)
		}
		return &Response{StatusCode: httpResp.StatusCode, Header: headers, Body: body}, nil
	}

	const recvHighWater = 1000
	if req.DownloadStream == nil {
		req.DownloadStream = bodystream.New(recvHighWater)
	}
	cancel := make(chan struct{})
	buf := make([]byte, 8*1024)
	var offset int64
	for {
		n, err := httpResp.Body.Read(buf)
		if n > 0 {
			conn.Ctx.Throttle.Wait(conn.Host, runtime.Download, conn.ConnectTimeout, cancel)
			frame := bodystream.Frame{Bytes: append([]byte(nil), buf[:n]...), Offset: offset}
			offset += int64(n)
			if perr := req.DownloadStream.Push(frame, cancel); perr != nil {
				return nil, &cos.Result{HostAddr: conn.Host, Details: perr.Error()}
			}
			conn.Ctx.Throttle.Consume(conn.Host, runtime.Download, int64(n))
			e.record(func(r Recorder) { r.BytesReceived(conn.Host, int64(n)) })
		}
		if err == io.EOF {
			_ = req.DownloadStream.Push(bodystream.Frame{IsLast: true}, cancel)
			break
		}
		if err != nil {
			return nil, &cos.Result{HostAddr: conn.Host, Details: err.Error()}
		}
	}

	return &Response{StatusCode: httpResp.StatusCode, Header: headers}, nil
}

// resultFromErrorBody parses an S3 <Error> XML body (best-effort) into a
// cos.Result; an unparseable body still yields a Result carrying the HTTP
// status (the body bytes themselves are not kept).
func resultFromErrorBody(status int, host string, body []byte, headers *cos.HeaderMap) *cos.Result {
	res := &cos.Result{HTTPStatus: status, HostAddr: host}
	code, message, resource, requestID := parseS3ErrorXML(body)
	if code != "" {
		res.S3 = cos.ParseS3Error(code)
		res.S3CodeText = code
		res.Details = message
		res.S3Resource = resource
		res.S3RequestID = requestID
	}
	return res
}
