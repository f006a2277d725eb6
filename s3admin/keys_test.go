package s3admin

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_GetSecretKeys(t *testing.T) {
	client, done := loggedIn(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/object/user-secret-keys/alice/ns1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<user_secret_key>
  <secret_key_1>key-one</secret_key_1>
  <key_timestamp_1>2026-01-01T00:00:00.000Z</key_timestamp_1>
  <secret_key_2></secret_key_2>
  <link>https://host/object/user-secret-keys/alice</link>
</user_secret_key>`))
	})
	defer done()

	keys, err := client.GetSecretKeys(context.Background(), "alice", "ns1")
	require.NoError(t, err)
	require.Equal(t, "key-one", keys.SecretKey1)
	require.Empty(t, keys.SecretKey2)
	require.Equal(t, "https://host/object/user-secret-keys/alice", keys.Link)
}

func TestClient_GetSecretKeys_NoNamespace(t *testing.T) {
	client, done := loggedIn(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/object/user-secret-keys/alice", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<user_secret_key></user_secret_key>`))
	})
	defer done()

	_, err := client.GetSecretKeys(context.Background(), "alice", "")
	require.NoError(t, err)
}

func TestClient_CreateSecretKey(t *testing.T) {
	var body []byte
	client, done := loggedIn(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/object/user-secret-keys/alice", r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<user_secret_key><secret_key>newkey</secret_key></user_secret_key>`))
	})
	defer done()

	info, err := client.CreateSecretKey(context.Background(), "alice", "ns1", "", DefaultExistingKeyExpiryMins)
	require.NoError(t, err)
	require.Equal(t, "newkey", info.SecretKey)
	require.Contains(t, string(body), "<existing_key_expiry_time_mins>2</existing_key_expiry_time_mins>")
	require.Contains(t, string(body), "<namespace>ns1</namespace>")
	require.NotContains(t, string(body), "<secretkey>")
}

func TestClient_CreateSecretKey_PinnedValue(t *testing.T) {
	var body []byte
	client, done := loggedIn(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<user_secret_key><secret_key>pinned</secret_key></user_secret_key>`))
	})
	defer done()

	_, err := client.CreateSecretKey(context.Background(), "alice", "ns1", "pinned-value", 5)
	require.NoError(t, err)
	require.Contains(t, string(body), "<secretkey>pinned-value</secretkey>")
	require.Contains(t, string(body), "<existing_key_expiry_time_mins>5</existing_key_expiry_time_mins>")
}
