package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/emcecs/ecs-go-client/canon"
)

const v4Scope = "s3/aws4_request"

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// HexSHA256 returns the lowercase hex SHA-256 of b, the "hashed payload"
// building block used throughout v4 signing (including the two empty-string
// literals the streaming chunk signature embeds).
func HexSHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var emptyStringSHA256 = HexSHA256(nil)

// DeriveSigningKey computes the 4-step HMAC chain spec.md §4.2 specifies:
// SigningKey = HMAC(HMAC(HMAC(HMAC("AWS4"+secret, yyyymmdd), region), "s3"), "aws4_request").
func DeriveSigningKey(secret, yyyymmdd, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(yyyymmdd))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte("s3"))
	return hmacSHA256(kService, []byte("aws4_request"))
}

// KeyCache caches one derived v4 signing key per (secret, region), keyed
// additionally by the UTC calendar date the key was derived for. It is
// re-derived whenever the UTC date rolls over or the secret/region changes
// (spec.md §5's "v4 SigningKey cache: single reader/writer lock per
// Connection; write on date rollover or secret/region change", and Open
// Question #1, resolved conservatively: recompute transparently).
type KeyCache struct {
	mu     sync.RWMutex
	date   string
	secret string
	region string
	key    []byte
}

// Get returns the signing key valid for now (in UTC), deriving and caching a
// fresh one if the date, secret, or region has changed since the last call.
func (kc *KeyCache) Get(secret, region string, now time.Time) []byte {
	date := now.UTC().Format("20060102")

	kc.mu.RLock()
	if kc.date == date && kc.secret == secret && kc.region == region {
		key := kc.key
		kc.mu.RUnlock()
		return key
	}
	kc.mu.RUnlock()

	kc.mu.Lock()
	defer kc.mu.Unlock()
	if kc.date == date && kc.secret == secret && kc.region == region {
		return kc.key
	}
	kc.key = DeriveSigningKey(secret, date, region)
	kc.date = date
	kc.secret = secret
	kc.region = region
	return kc.key
}

// V4 holds the credential pair and region v4 signing needs, plus the cache
// backing repeated calls on one Connection.
type V4 struct {
	AccessKeyID string
	Secret      string
	Region      string
	Keys        *KeyCache
}

// Sign computes the v4 signature for req at requestTime and returns the full
// Authorization header value plus the bare hex signature (the latter is what
// presigned-URL construction and streaming chunk signing both also need).
func (v *V4) Sign(req *canon.Request, requestTime time.Time) (authHeader, signature, scope string) {
	yyyymmdd := requestTime.UTC().Format("20060102")
	amzDate := requestTime.UTC().Format("20060102T150405Z")
	scope = yyyymmdd + "/" + v.Region + "/" + v4Scope

	canonical := req.CanonicalString()
	stringToSign := "AWS4-HMAC-SHA256\n" + amzDate + "\n" + scope + "\n" + HexSHA256([]byte(canonical))

	key := v.Keys.Get(v.Secret, v.Region, requestTime)
	sig := hmacSHA256(key, []byte(stringToSign))
	signature = hex.EncodeToString(sig)

	authHeader = "AWS4-HMAC-SHA256 Credential=" + v.AccessKeyID + "/" + scope +
		",SignedHeaders=" + req.SignedHeaders() +
		",Signature=" + signature
	return authHeader, signature, scope
}

// SignStringToSign is a low-level helper: given an already-built
// string-to-sign and the signing key, return the hex HMAC-SHA256 signature.
// Used by the streaming chunk signer, whose "string to sign" has a different
// shape (spec.md §4.2 chunk framing) than a normal request's.
func SignStringToSign(key []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))
}
