package reqengine

import (
	"net/http"
	"strconv"
	"time"

	"github.com/emcecs/ecs-go-client/canon"
	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/sign"
)

// toHTTPHeader renders h as a net/http.Header, preserving each header's
// display-cased name.
func toHTTPHeader(h *cos.HeaderMap) http.Header {
	out := make(http.Header, h.Len())
	h.ForEach(func(display, value string) {
		out.Add(display, value)
	})
	return out
}

// signingPlan is everything sendOnce needs to both sign the request and, for
// a v4-chunked upload, seed the per-chunk signer.
type signingPlan struct {
	v4Chunked   bool
	chunkKey    []byte
	scope       string
	seedSig     string
	requestTime time.Time
}

// buildAndSign finishes req.Header with host/date/content-length/payload-hash
// and an Authorization header, returning the chunk-signing plan (zero value
// if this attempt is not v4-chunked).
func buildAndSign(e *Engine, req *Request, ip string, requestTime time.Time) signingPlan {
	h := req.Header
	h.Set("Host", e.Conn.Host)
	h.Set("date", requestTime.UTC().Format(http.TimeFormat))
	h.SetIfAbsent("User-Agent", e.Conn.UserAgent)

	if req.Payload != nil {
		h.Set("Content-Length", strconv.Itoa(len(req.Payload)))
	}
	if req.SkipSigning {
		return signingPlan{}
	}

	chunked := req.UploadStream != nil && e.Conn.V4Signing

	if req.UploadStream != nil && req.UploadLength >= 0 && !chunked {
		h.Set("Content-Length", strconv.FormatInt(req.UploadLength, 10))
	}

	if !e.Conn.V4Signing {
		v2 := sign.V2{AccessKeyID: e.credAccessKey, Secret: e.credSecret}
		authHeader, _ := v2.SignV2(req.Method, req.Path, req.RawQuery, h, "")
		h.Set("Authorization", authHeader)
		return signingPlan{}
	}

	payloadHash := sign.HexSHA256(req.Payload)
	switch {
	case chunked:
		payloadHash = sign.StreamingPayloadHash
		chunkSize := sign.ClampChunkSize(e.Conn.V4ChunkSize)
		totalLen := sign.TotalChunkedLength(maxInt64(req.UploadLength, 0), chunkSize)
		h.Set("Content-Length", strconv.FormatInt(totalLen, 10))
		h.Set("Content-Encoding", "aws-chunked")
		h.Set("x-amz-decoded-content-length", strconv.FormatInt(req.UploadLength, 10))
	case req.Payload == nil:
		payloadHash = sign.UnsignedPayloadHash
	}
	h.Set("x-amz-content-sha256", payloadHash)

	canonReq := &canon.Request{
		Method:         req.Method,
		Path:           req.Path,
		RawQuery:       req.RawQuery,
		Headers:        h,
		SignedPrefixes: req.SignedPrefixes,
		PayloadHash:    payloadHash,
	}
	v4 := sign.V4{AccessKeyID: e.credAccessKey, Secret: e.credSecret, Region: e.Conn.Region, Keys: e.keyCache}
	authHeader, signature, scope := v4.Sign(canonReq, requestTime)
	h.Set("Authorization", authHeader)

	plan := signingPlan{requestTime: requestTime}
	if chunked {
		plan.v4Chunked = true
		plan.chunkKey = e.keyCache.Get(e.credSecret, e.Conn.Region, requestTime)
		plan.scope = scope
		plan.seedSig = signature
	}
	return plan
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
