package s3

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emcecs/ecs-go-client/connection"
	"github.com/emcecs/ecs-go-client/runtime"
)

func newPresignClient(t *testing.T) *Client {
	t.Helper()
	ctx := runtime.New()
	conn := connection.DefaultConnection(ctx, "ecs.example.com", []string{"10.0.0.1"})
	conn.Port = 9021
	conn.WithStaticCredentials("AKIAEXAMPLE", "secretkey")
	t.Cleanup(func() { conn.Ctx.Close() })
	return New(conn)
}

func TestClient_PresignV2(t *testing.T) {
	client := newPresignClient(t)
	rawURL, err := client.PresignV2("GET", "bucket", "key", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	require.Equal(t, "/bucket/key", u.Path)
	q := u.Query()
	require.Equal(t, "AKIAEXAMPLE", q.Get("AWSAccessKeyId"))
	require.NotEmpty(t, q.Get("Expires"))
	require.NotEmpty(t, q.Get("Signature"))
	require.True(t, strings.Contains(rawURL, "Signature="))
}

func TestClient_PresignV2_ClampsExpiry(t *testing.T) {
	client := newPresignClient(t)
	rawURL, err := client.PresignV2("GET", "bucket", "key", 365*24*time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	expires := u.Query().Get("Expires")
	require.NotEmpty(t, expires)
	exp, err := strconv.ParseInt(expires, 10, 64)
	require.NoError(t, err)
	require.LessOrEqual(t, exp, time.Now().Add(MaxPresignExpiry).Unix())
}

func TestClient_PresignV4(t *testing.T) {
	client := newPresignClient(t)
	client.Conn.V4Signing = true

	rawURL, err := client.PresignV4("GET", "bucket", "key", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "AWS4-HMAC-SHA256", q.Get("X-Amz-Algorithm"))
	require.Equal(t, "host", q.Get("X-Amz-SignedHeaders"))
	require.Equal(t, "900", q.Get("X-Amz-Expires"))
	require.NotEmpty(t, q.Get("X-Amz-Signature"))
	require.Contains(t, q.Get("X-Amz-Credential"), "AKIAEXAMPLE/")
}
