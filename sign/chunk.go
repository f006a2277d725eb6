package sign

import (
	"fmt"
	"time"
)

// MinChunkSize is the minimum streaming v4 chunk size (spec.md §4.2, "minimum
// 8 KiB"). Open Question #2 in spec.md §9 is resolved conservatively: this is
// enforced as a hard clamp, not merely a suggested default.
const MinChunkSize = 8 * 1024

// StreamingPayloadHash and UnsignedPayloadHash are the two payload-hash
// sentinel tokens v4 supports besides a literal hex digest (spec.md §4.2).
const (
	StreamingPayloadHash = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"
	UnsignedPayloadHash  = "UNSIGNED-PAYLOAD"
)

// ClampChunkSize enforces MinChunkSize.
func ClampChunkSize(n int) int {
	if n < MinChunkSize {
		return MinChunkSize
	}
	return n
}

// ChunkWidth returns the number of hex digits wide enough to encode n, the
// fixed width every chunk-length prefix in one request shares (spec.md §4.2).
func ChunkWidth(n int) int {
	return len(fmt.Sprintf("%x", n))
}

// FramingOverhead returns the number of wire bytes one chunk's framing adds
// beyond its payload: width hex digits + ";chunk-signature=" + 64 hex
// signature digits + "\r\n" after the header + "\r\n" after the payload.
func FramingOverhead(width int) int64 {
	return int64(width) + int64(len(";chunk-signature=")) + 64 + 2 + 2
}

// TotalChunkedLength precomputes the exact Content-Length of a v4-chunked
// request body of bodyLen decoded bytes framed at chunkSize: bodyLen plus one
// framing overhead per full-or-partial data chunk plus one more for the
// trailing zero-length chunk (spec.md §4.2, verified against scenario E in
// spec.md §8).
func TotalChunkedLength(bodyLen int64, chunkSize int) int64 {
	width := ChunkWidth(chunkSize)
	overhead := FramingOverhead(width)
	numDataChunks := int64(0)
	if bodyLen > 0 {
		numDataChunks = (bodyLen + int64(chunkSize) - 1) / int64(chunkSize)
	}
	return bodyLen + (numDataChunks+1)*overhead
}

// ChunkSigner maintains the rolling signature chain for one streaming v4
// upload: each chunk's signature is computed from the previous chunk's
// signature (or, for the first chunk, the request's own seed signature).
type ChunkSigner struct {
	key         []byte
	scope       string // yyyymmdd/region/s3/aws4_request
	requestTime time.Time
	prevSig     string
	width       int
}

// NewChunkSigner seeds a ChunkSigner from the request-level v4 signature
// (seedSignature), which becomes "prev" for the first emitted chunk.
func NewChunkSigner(key []byte, scope string, requestTime time.Time, seedSignature string, chunkSize int) *ChunkSigner {
	return &ChunkSigner{
		key:         key,
		scope:       scope,
		requestTime: requestTime,
		prevSig:     seedSignature,
		width:       ChunkWidth(ClampChunkSize(chunkSize)),
	}
}

// SignChunk computes this chunk's signature given its payload (nil/empty for
// the final chunk) and advances the rolling chain.
func (c *ChunkSigner) SignChunk(payload []byte) string {
	var payloadHash string
	if len(payload) == 0 {
		payloadHash = emptyStringSHA256
	} else {
		payloadHash = HexSHA256(payload)
	}
	stringToSign := "AWS4-HMAC-SHA256-PAYLOAD\n" +
		c.requestTime.UTC().Format("20060102T150405Z") + "\n" +
		c.scope + "\n" +
		c.prevSig + "\n" +
		emptyStringSHA256 + "\n" +
		payloadHash
	sig := SignStringToSign(c.key, stringToSign)
	c.prevSig = sig
	return sig
}

// FrameChunk renders the wire bytes for one chunk given its (already
// computed, via SignChunk) signature: hex(N, width) ";chunk-signature=" sig
// "\r\n" payload "\r\n".
func (c *ChunkSigner) FrameChunk(payload []byte, signature string) []byte {
	header := fmt.Sprintf("%0*x;chunk-signature=%s\r\n", c.width, len(payload), signature)
	out := make([]byte, 0, len(header)+len(payload)+2)
	out = append(out, header...)
	out = append(out, payload...)
	out = append(out, '\r', '\n')
	return out
}

// Next signs and frames one chunk in a single call — the common case.
func (c *ChunkSigner) Next(payload []byte) []byte {
	sig := c.SignChunk(payload)
	return c.FrameChunk(payload, sig)
}
