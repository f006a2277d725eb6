package s3

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/emcecs/ecs-go-client/canon"
	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/sign"
)

// MaxPresignExpiry is the hard clamp on presigned-URL lifetime (spec.md
// §4.10: "max expiry is clamped to 604800 seconds" — one week, v4's own
// ceiling).
const MaxPresignExpiry = 7 * 24 * time.Hour

func clampExpiry(d time.Duration) time.Duration {
	if d <= 0 || d > MaxPresignExpiry {
		return MaxPresignExpiry
	}
	return d
}

// PresignV2 builds a v2 presigned URL for method against bucket/key, valid
// until now+expiry (clamped to MaxPresignExpiry). Format per spec.md §6:
// "scheme://host[:port]/encoded/path?AWSAccessKeyId=...&Expires=<unix>&
// Signature=<percent-encoded-base64>", with '#' additionally percent-encoded
// and a trailing '=' replaced by '%3D'.
func (c *Client) PresignV2(method, bucket, key string, expiry time.Duration) (string, error) {
	ak, secret, err := c.Conn.Credentials.Retrieve()
	if err != nil {
		return "", errors.Wrap(err, "s3: presign v2: retrieving credentials")
	}

	expires := strconv.FormatInt(time.Now().Add(clampExpiry(expiry)).Unix(), 10)
	path := resourcePath(bucket, key)

	v2 := sign.V2{AccessKeyID: ak, Secret: secret}
	_, sig := v2.SignV2(method, path, "", cos.NewHeaderMap(), expires)

	encodedSig := presignEncode(sig)
	return fmt.Sprintf("%s%s?AWSAccessKeyId=%s&Expires=%s&Signature=%s",
		c.Conn.BaseURL(), canon.EncodePath(canon.Standard, path), url.QueryEscape(ak), expires, encodedSig), nil
}

// presignEncode applies v2's extra URL-escaping rules on top of standard
// query escaping: '#' is also percent-encoded (QueryEscape already does
// this) and a trailing '=' from base64 padding becomes "%3D" instead of the
// otherwise-legal unescaped '='.
func presignEncode(sig string) string {
	encoded := url.QueryEscape(sig)
	return strings.ReplaceAll(encoded, "=", "%3D")
}

// PresignV4 builds a v4 presigned URL (query-parameter signing) for method
// against bucket/key, valid for expiry (clamped to MaxPresignExpiry). Per
// spec.md §4.10, this always derives a fresh SigningKey. The key cached for
// the connection's normal request path is neither read nor invalidated: it
// stays in place for later requests. SignedHeaders is fixed at "host" (spec.md §6's exact format).
func (c *Client) PresignV4(method, bucket, key string, expiry time.Duration) (string, error) {
	ak, secret, err := c.Conn.Credentials.Retrieve()
	if err != nil {
		return "", errors.Wrap(err, "s3: presign v4: retrieving credentials")
	}

	now := time.Now().UTC()
	yyyymmdd := now.Format("20060102")
	amzDate := now.Format("20060102T150405Z")
	region := c.Conn.Region
	if region == "" {
		region = "us-east-1"
	}
	scope := yyyymmdd + "/" + region + "/s3/aws4_request"
	credential := ak + "/" + scope
	expirySeconds := strconv.FormatInt(int64(clampExpiry(expiry).Seconds()), 10)

	path := resourcePath(bucket, key)
	headers := cos.NewHeaderMap()
	headers.Set("host", c.Conn.Host)

	rawQuery := "X-Amz-Algorithm=AWS4-HMAC-SHA256" +
		"&X-Amz-Credential=" + url.QueryEscape(credential) +
		"&X-Amz-Date=" + amzDate +
		"&X-Amz-Expires=" + expirySeconds +
		"&X-Amz-SignedHeaders=host"

	req := &canon.Request{
		Method:      method,
		Path:        path,
		RawQuery:    rawQuery,
		Headers:     headers,
		PayloadHash: "UNSIGNED-PAYLOAD",
	}

	// a fresh, uncached key: presigned URLs don't share the connection's
	// KeyCache since their requestTime is arbitrary relative to normal
	// request traffic.
	key4 := sign.DeriveSigningKey(secret, yyyymmdd, region)
	stringToSign := "AWS4-HMAC-SHA256\n" + amzDate + "\n" + scope + "\n" + sign.HexSHA256([]byte(req.CanonicalString()))
	signature := sign.SignStringToSign(key4, stringToSign)

	return fmt.Sprintf("%s%s?%s&X-Amz-Signature=%s",
		c.Conn.BaseURL(), canon.EncodePath(canon.Standard, path), rawQuery, signature), nil
}
