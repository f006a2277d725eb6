package s3admin

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/emcecs/ecs-go-client/xmlenc"
)

// UserSecretKeys is the response to GET /object/user-secret-keys/<user>: ECS
// keeps up to two active secret keys per user to allow rotation without a
// window of invalid credentials.
type UserSecretKeys struct {
	SecretKey1          string
	KeyTimestamp1       string
	KeyExpiryTimestamp1 string
	SecretKey2          string
	KeyTimestamp2       string
	KeyExpiryTimestamp2 string
	Link                string
}

func userKeysPath(user, namespace string) string {
	p := "/object/user-secret-keys/" + url.PathEscape(user)
	if namespace != "" {
		p += "/" + url.PathEscape(namespace)
	}
	return p
}

// GetSecretKeys returns user's current secret-key pair. namespace may be
// empty to use the user's default namespace.
func (c *Client) GetSecretKeys(ctx context.Context, user, namespace string) (UserSecretKeys, error) {
	req, err := c.authedRequest(http.MethodGet, userKeysPath(user, namespace), "")
	if err != nil {
		return UserSecretKeys{}, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return UserSecretKeys{}, err
	}
	return parseUserSecretKeys(resp.Body)
}

func parseUserSecretKeys(body []byte) (UserSecretKeys, error) {
	var keys UserSecretKeys
	d := xmlenc.New()
	d.On("//user_secret_key/secret_key_1", textInto(&keys.SecretKey1))
	d.On("//user_secret_key/key_timestamp_1", textInto(&keys.KeyTimestamp1))
	d.On("//user_secret_key/key_expiry_timestamp_1", textInto(&keys.KeyExpiryTimestamp1))
	d.On("//user_secret_key/secret_key_2", textInto(&keys.SecretKey2))
	d.On("//user_secret_key/key_timestamp_2", textInto(&keys.KeyTimestamp2))
	d.On("//user_secret_key/key_expiry_timestamp_2", textInto(&keys.KeyExpiryTimestamp2))
	d.On("//user_secret_key/link", textInto(&keys.Link))

	if err := d.Run(bytes.NewReader(body)); err != nil {
		return UserSecretKeys{}, err
	}
	return keys, nil
}

// DefaultExistingKeyExpiryMins is how long CreateSecretKey leaves a
// pre-existing key valid for, matching the original admin client's default.
const DefaultExistingKeyExpiryMins = 2

// CreateSecretKey adds a new secret key for user (POST
// /object/user-secret-keys/<user>), optionally pinning the generated value
// to secretKey rather than letting ECS generate one. existingKeyExpiryMins
// controls how long the user's prior key (if any) stays valid for during
// rotation; DefaultExistingKeyExpiryMins matches the original tool's default.
func (c *Client) CreateSecretKey(ctx context.Context, user, namespace, secretKey string, existingKeyExpiryMins int) (SecretKeyInfo, error) {
	req, err := c.authedRequest(http.MethodPost, userKeysPath(user, ""), "")
	if err != nil {
		return SecretKeyInfo{}, err
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Payload = buildCreateSecretKey(namespace, secretKey, existingKeyExpiryMins)

	resp, err := c.do(ctx, req)
	if err != nil {
		return SecretKeyInfo{}, err
	}
	return parseSecretKeyInfo(resp.Body)
}

func buildCreateSecretKey(namespace, secretKey string, existingKeyExpiryMins int) []byte {
	var sb strings.Builder
	sb.WriteString("<user_secret_key_create><existing_key_expiry_time_mins>")
	sb.WriteString(strconv.Itoa(existingKeyExpiryMins))
	sb.WriteString("</existing_key_expiry_time_mins><namespace>")
	sb.WriteString(escapeXML(namespace))
	sb.WriteString("</namespace>")
	if secretKey != "" {
		sb.WriteString("<secretkey>")
		sb.WriteString(escapeXML(secretKey))
		sb.WriteString("</secretkey>")
	}
	sb.WriteString("</user_secret_key_create>")
	return []byte(sb.String())
}
