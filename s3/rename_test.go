package s3

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_Rename(t *testing.T) {
	var methods []string
	var deletedSrc bool

	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		switch {
		case r.Method == http.MethodHead:
			w.Header().Set("Content-Length", "5")
			w.Header().Set("Content-Type", "text/plain")
			w.Header().Set("x-amz-meta-owner", "alice")
			w.Header().Set("x-amz-meta-temp", "drop-me")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.RawQuery == "acl":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut:
			require.Equal(t, "REPLACE", r.Header.Get("x-amz-metadata-directive"))
			require.Equal(t, "alice", r.Header.Get("x-amz-meta-owner"))
			require.Equal(t, "", r.Header.Get("x-amz-meta-temp"))
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`<CopyObjectResult><ETag>"new"</ETag></CopyObjectResult>`))
		case r.Method == http.MethodGet && r.URL.RawQuery == "acl":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`<AccessControlPolicy><Owner><ID>o</ID><DisplayName>o</DisplayName></Owner><AccessControlList></AccessControlList></AccessControlPolicy>`))
		case r.Method == http.MethodDelete:
			deletedSrc = true
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	info, err := client.Rename(context.Background(), "bucket", "src", "dst", RenameOptions{
		DeleteTags: []string{"temp"},
	})
	require.NoError(t, err)
	require.Equal(t, `"new"`, info.ETag)
	require.True(t, deletedSrc)
}

func TestClient_RenameKeepsSourceWhenRequested(t *testing.T) {
	var sawDelete bool
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.RawQuery == "acl":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`<CopyObjectResult><ETag>"new"</ETag></CopyObjectResult>`))
		case r.Method == http.MethodGet && r.URL.RawQuery == "acl":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`<AccessControlPolicy><Owner><ID>o</ID><DisplayName>o</DisplayName></Owner><AccessControlList></AccessControlList></AccessControlPolicy>`))
		case r.Method == http.MethodDelete:
			sawDelete = true
			w.WriteHeader(http.StatusNoContent)
		}
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	_, err := client.Rename(context.Background(), "bucket", "src", "dst", RenameOptions{KeepSource: true})
	require.NoError(t, err)
	require.False(t, sawDelete)
}
