package s3

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emcecs/ecs-go-client/cos"
)

func TestClient_DeleteMultiple_SortsKeysAndDedupes(t *testing.T) {
	var body string
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, r.URL.Query().Has("delete"))
		require.NotEmpty(t, r.Header.Get("Content-MD5"))
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<DeleteResult></DeleteResult>`))
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	_, err := client.DeleteMultiple(context.Background(), "bucket", []string{"b", "a", "b"})
	require.NoError(t, err)
	require.Less(t, indexOf(body, "<Key>a</Key>"), indexOf(body, "<Key>b</Key>"))
	require.Equal(t, 2, countOccurrences(body, "<Object>"))
	require.Equal(t, 1, countOccurrences(body, "<Key>b</Key>"))
}

func TestClient_DeleteMultiple_SynthesizesErrorResult(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<DeleteResult><Error><Key>k</Key><Code>AccessDenied</Code><Message>nope</Message><RequestId>req-1</RequestId></Error></DeleteResult>`))
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	result, err := client.DeleteMultiple(context.Background(), "bucket", []string{"k"})
	require.Error(t, err)
	require.Len(t, result.Errors, 1)
	cr, ok := err.(*cos.Result)
	require.True(t, ok)
	require.Equal(t, http.StatusInternalServerError, cr.HTTPStatus)
	require.Equal(t, "req-1", cr.S3RequestID)
}

func TestBatchDeleter_FlushesAtThreshold(t *testing.T) {
	flushes := 0
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		flushes++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<DeleteResult></DeleteResult>`))
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	bd := client.NewBatchDeleter("bucket")
	ctx := context.Background()
	for i := 0; i < BulkDeleteFlushSize; i++ {
		require.NoError(t, bd.Add(ctx, "key-"+string(rune('a'+i%26))))
	}
	require.Equal(t, 1, flushes)

	require.NoError(t, bd.Add(ctx, "one-more"))
	require.NoError(t, bd.Flush(ctx))
	require.Equal(t, 2, flushes)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
