package s3admin

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/emcecs/ecs-go-client/xmlenc"
)

// UserInfo is one /object/users entry (spec.md §4.10's admin user listing).
type UserInfo struct {
	UserID    string
	Namespace string
}

// ListUsers returns every object-user ECS knows about (GET /object/users),
// grounded on the original admin client's XmlECSGetUsersCB callback.
func (c *Client) ListUsers(ctx context.Context) ([]UserInfo, error) {
	req, err := c.authedRequest(http.MethodGet, "/object/users", "")
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseUserList(resp.Body)
}

func parseUserList(body []byte) ([]UserInfo, error) {
	var users []UserInfo
	var cur UserInfo

	d := xmlenc.New()
	d.On("//users/blobuser", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, _ string) error {
		switch node {
		case xmlenc.ElementStart:
			cur = UserInfo{}
		case xmlenc.ElementEnd:
			users = append(users, cur)
		}
		return nil
	})
	d.On("//users/blobuser/userid", textInto(&cur.UserID))
	d.On("//users/blobuser/namespace", textInto(&cur.Namespace))

	if err := d.Run(bytes.NewReader(body)); err != nil {
		return nil, err
	}
	return users, nil
}

// SecretKeyInfo is one <user_secret_key> response, returned by both
// CreateUser and CreateSecretKey (the admin API hands back the same shape
// for "created a user with its first key" and "added a key to a user").
type SecretKeyInfo struct {
	SecretKey          string
	KeyTimestamp       string
	KeyExpiryTimestamp string
	Link               string
}

// CreateUser provisions a new object user under namespace (POST
// /object/users). tags, if non-empty, is carried through verbatim as the
// request's <tags> element.
func (c *Client) CreateUser(ctx context.Context, user, namespace, tags string) (SecretKeyInfo, error) {
	req, err := c.authedRequest(http.MethodPost, "/object/users", "")
	if err != nil {
		return SecretKeyInfo{}, err
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Payload = buildCreateUser(user, namespace, tags)

	resp, err := c.do(ctx, req)
	if err != nil {
		return SecretKeyInfo{}, err
	}
	return parseSecretKeyInfo(resp.Body)
}

func buildCreateUser(user, namespace, tags string) []byte {
	var sb strings.Builder
	sb.WriteString("<user_create_param><user>")
	sb.WriteString(escapeXML(user))
	sb.WriteString("</user><namespace>")
	sb.WriteString(escapeXML(namespace))
	sb.WriteString("</namespace>")
	if tags != "" {
		sb.WriteString("<tags>")
		sb.WriteString(escapeXML(tags))
		sb.WriteString("</tags>")
	}
	sb.WriteString("</user_create_param>")
	return []byte(sb.String())
}

func parseSecretKeyInfo(body []byte) (SecretKeyInfo, error) {
	var info SecretKeyInfo
	d := xmlenc.New()
	d.On("//user_secret_key/secret_key", textInto(&info.SecretKey))
	d.On("//user_secret_key/key_timestamp", textInto(&info.KeyTimestamp))
	d.On("//user_secret_key/key_expiry_timestamp", textInto(&info.KeyExpiryTimestamp))
	d.On("//user_secret_key/link", textInto(&info.Link))

	if err := d.Run(bytes.NewReader(body)); err != nil {
		return SecretKeyInfo{}, err
	}
	return info, nil
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}

// textInto returns an xmlenc.Handler that copies Text node content into dst.
func textInto(dst *string) xmlenc.Handler {
	return func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node == xmlenc.Text {
			*dst = text
		}
		return nil
	}
}
