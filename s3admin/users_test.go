package s3admin

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func loggedIn(t *testing.T, extra http.HandlerFunc) (*Client, func()) {
	t.Helper()
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			w.Header().Set("X-SDS-AUTH-TOKEN", "tok-xyz")
			w.WriteHeader(http.StatusOK)
			return
		}
		require.Equal(t, "tok-xyz", r.Header.Get("X-SDS-AUTH-TOKEN"))
		extra(w, r)
	})
	require.NoError(t, client.Login(context.Background()))
	return client, func() {
		srv.Close()
		client.Conn.Ctx.Close()
	}
}

func TestClient_ListUsers(t *testing.T) {
	client, done := loggedIn(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/object/users", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<users>
  <blobuser><userid>alice</userid><namespace>ns1</namespace></blobuser>
  <blobuser><userid>bob</userid><namespace>ns2</namespace></blobuser>
</users>`))
	})
	defer done()

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "alice", users[0].UserID)
	require.Equal(t, "ns2", users[1].Namespace)
}

func TestClient_CreateUser(t *testing.T) {
	var body []byte
	client, done := loggedIn(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/object/users", r.URL.Path)
		require.Equal(t, "application/xml", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<user_secret_key>
  <secret_key>abc123</secret_key>
  <key_timestamp>2026-01-01T00:00:00.000Z</key_timestamp>
  <key_expiry_timestamp></key_expiry_timestamp>
  <link>https://host/object/user-secret-keys/alice</link>
</user_secret_key>`))
	})
	defer done()

	info, err := client.CreateUser(context.Background(), "alice", "ns1", "team=storage")
	require.NoError(t, err)
	require.Equal(t, "abc123", info.SecretKey)
	require.Contains(t, string(body), "<user>alice</user>")
	require.Contains(t, string(body), "<namespace>ns1</namespace>")
	require.Contains(t, string(body), "<tags>team=storage</tags>")
}

func TestClient_CreateUser_OmitsEmptyTags(t *testing.T) {
	var body []byte
	client, done := loggedIn(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<user_secret_key><secret_key>k</secret_key></user_secret_key>`))
	})
	defer done()

	_, err := client.CreateUser(context.Background(), "alice", "ns1", "")
	require.NoError(t, err)
	require.NotContains(t, string(body), "<tags>")
}
