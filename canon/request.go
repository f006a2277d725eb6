package canon

import (
	"strings"

	"github.com/emcecs/ecs-go-client/cos"
)

// Request holds everything needed to build a v4 canonical request string
// (spec.md §4.2): method, URI, query, headers, and a payload-hash token
// (already selected by the caller from {UNSIGNED-PAYLOAD,
// STREAMING-AWS4-HMAC-SHA256-PAYLOAD, hex-sha256(body)}).
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	Headers       *cos.HeaderMap
	SignedPrefixes []string // header-name prefixes included in SignedHeaders; nil means "all"
	PayloadHash   string
}

// CanonicalString renders the AWS v4 canonical request string:
//
//	METHOD
//	CanonicalURI
//	CanonicalQueryString
//	CanonicalHeaders
//	SignedHeaders
//	HashedPayload
func (r *Request) CanonicalString() string {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte('\n')
	sb.WriteString(EncodePath(V4Auth, r.Path))
	sb.WriteByte('\n')
	sb.WriteString(CanonicalQueryString(r.RawQuery))
	sb.WriteByte('\n')
	sb.WriteString(r.Headers.CanonicalBlock(r.SignedPrefixes...))
	sb.WriteByte('\n')
	sb.WriteString(r.Headers.SignedHeaderNames(r.SignedPrefixes...))
	sb.WriteByte('\n')
	sb.WriteString(r.PayloadHash)
	return sb.String()
}

// SignedHeaders returns the semicolon-joined list this request's canonical
// string was built with.
func (r *Request) SignedHeaders() string {
	return r.Headers.SignedHeaderNames(r.SignedPrefixes...)
}
