package s3

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_BucketCRUD(t *testing.T) {
	var seen []string
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	ctx := context.Background()
	require.NoError(t, client.CreateBucket(ctx, "bucket"))
	require.NoError(t, client.HeadBucket(ctx, "bucket"))
	require.NoError(t, client.DeleteBucket(ctx, "bucket"))
	require.Equal(t, []string{http.MethodPut, http.MethodHead, http.MethodDelete}, seen)
}

func TestClient_Versioning(t *testing.T) {
	var putBody string
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, r.URL.Query().Has("versioning"))
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`<VersioningConfiguration><Status>Enabled</Status></VersioningConfiguration>`))
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			putBody = string(b)
			w.WriteHeader(http.StatusOK)
		}
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	ctx := context.Background()
	status, err := client.GetVersioning(ctx, "bucket")
	require.NoError(t, err)
	require.Equal(t, VersioningEnabled, status)

	require.NoError(t, client.PutVersioning(ctx, "bucket", VersioningSuspended))
	require.Contains(t, putBody, "<Status>Suspended</Status>")
}

func TestClient_Lifecycle(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, r.URL.Query().Has("lifecycle"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<LifecycleConfiguration>
  <Rule><ID>r1</ID><Prefix>logs/</Prefix><Status>Enabled</Status><Expiration><Days>30</Days></Expiration></Rule>
  <Rule><ID>r2</ID><Prefix>tmp/</Prefix><Status>Enabled</Status><Expiration><ExpiredObjectDeleteMarker>true</ExpiredObjectDeleteMarker></Expiration></Rule>
</LifecycleConfiguration>`))
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	rules, err := client.GetLifecycle(context.Background(), "bucket")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, 30, rules[0].ExpirationDays)
	require.True(t, rules[1].ExpiredObjectDeleteMarker)
}

func TestBuildLifecycle_MutuallyExclusiveExpiration(t *testing.T) {
	body := buildLifecycle([]LifecycleRule{
		{ID: "r1", Prefix: "a/", Status: "Enabled", ExpirationDate: "2030-01-01T00:00:00.000Z"},
		{ID: "r2", Prefix: "b/", Status: "Enabled", ExpirationDays: 7},
	})
	s := string(body)
	require.Contains(t, s, "<Date>2030-01-01T00:00:00.000Z</Date>")
	require.Contains(t, s, "<Days>7</Days>")
	require.NotContains(t, s, "<Days>7</Days><Date>")
}
