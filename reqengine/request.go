// Package reqengine drives one logical S3 request end-to-end (spec.md §4.6):
// session acquisition, IP selection, header construction and signing,
// v4-chunked or plain streaming, throttle-gated I/O, 401/407 auth replay, and
// response draining into either a buffer or a bodystream.Stream.
package reqengine

import (
	"github.com/emcecs/ecs-go-client/bodystream"
	"github.com/emcecs/ecs-go-client/cos"
)

// Request is one logical operation's input.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   *cos.HeaderMap // caller-supplied headers; host/date/content-length/auth are added or overwritten

	// Payload is the non-streaming body. Mutually exclusive with UploadStream.
	Payload []byte

	// UploadStream streams the body instead of buffering it; UploadLength is
	// its total byte count. Under v4 signing a stream upload is always sent
	// v4-chunked, with Content-Length and x-amz-decoded-content-length both
	// computed from UploadLength, so it must be the exact length. Under v2 a
	// negative UploadLength only omits the Content-Length header.
	UploadStream *bodystream.Stream
	UploadLength int64

	// DownloadStream, if set, receives the response body as pushed frames
	// instead of being accumulated into Response.Body. Ignored whenever the
	// response status is >= 400 (always buffered for error parsing).
	DownloadStream *bodystream.Stream

	// SignedPrefixes restricts v4's SignedHeaders list to header names with
	// one of these prefixes; nil signs every header.
	SignedPrefixes []string

	// SkipSigning bypasses S3 request signing entirely (spec.md §4.10:
	// "signature calculation is bypassed in admin mode"), leaving
	// authentication to the 401/407 challenge-and-replay path instead.
	SkipSigning bool
}

// Response is one attempt's successful output.
type Response struct {
	StatusCode int
	Header     *cos.HeaderMap
	Body       []byte // nil when Request.DownloadStream was used and status < 400
}
