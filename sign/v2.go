// Package sign implements the Signer (spec.md §4.2): S3 v2 and v4 request
// signing, including v4's streaming chunked-payload signing with its rolling
// signature chain. No signing is delegated to a third-party SDK — the
// framing byte-count precomputation and HMAC chaining are, per spec.md §9,
// the one piece of wire format that must be preserved exactly, so they are
// hand-written against stdlib crypto/hmac, crypto/sha1, crypto/sha256.
package sign

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"

	"github.com/emcecs/ecs-go-client/canon"
	"github.com/emcecs/ecs-go-client/cos"
)

// V2 holds the credential pair v2 signing needs.
type V2 struct {
	AccessKeyID string
	Secret      string
}

// SignV2 computes the v2 canonical string and its HMAC-SHA1 signature
// (spec.md §4.2, scenario A/F in §8). headers must already contain
// Content-MD5, Content-Type and Date/x-amz-date as applicable; they are read,
// never mutated. If expiresOverride is non-empty (presigned-URL mode) it
// replaces the Date line and only the bare base64 signature is returned
// instead of the wrapped "AWS keyId:sig" Authorization value.
func (v V2) SignV2(method, path, rawQuery string, headers *cos.HeaderMap, expiresOverride string) (authOrSig string, sig string) {
	contentMD5, _ := headers.Get("content-md5")
	contentType, _ := headers.Get("content-type")
	dateLine := expiresOverride
	if dateLine == "" {
		if d, ok := headers.Get("date"); ok {
			dateLine = d
		}
	}

	canonical := method + "\n" +
		contentMD5 + "\n" +
		contentType + "\n" +
		dateLine + "\n" +
		headers.CanonicalBlock("x-amz-", "x-emc-") +
		canon.V2CanonicalResource(path, rawQuery)

	mac := hmac.New(sha1.New, []byte(v.Secret))
	mac.Write([]byte(canonical))
	sig = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if expiresOverride != "" {
		return sig, sig
	}
	return "AWS " + v.AccessKeyID + ":" + sig, sig
}

// CanonicalStringV2 exposes the exact string that would be signed, for tests
// and for callers building presigned URLs that need the same bytes twice.
func (v V2) CanonicalStringV2(method, path, rawQuery string, headers *cos.HeaderMap, expiresOverride string) string {
	contentMD5, _ := headers.Get("content-md5")
	contentType, _ := headers.Get("content-type")
	dateLine := expiresOverride
	if dateLine == "" {
		if d, ok := headers.Get("date"); ok {
			dateLine = d
		}
	}
	return method + "\n" +
		contentMD5 + "\n" +
		contentType + "\n" +
		dateLine + "\n" +
		headers.CanonicalBlock("x-amz-", "x-emc-") +
		canon.V2CanonicalResource(path, rawQuery)
}
