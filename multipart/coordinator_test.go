package multipart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emcecs/ecs-go-client/connection"
	"github.com/emcecs/ecs-go-client/reqengine"
	"github.com/emcecs/ecs-go-client/runtime"
)

func newTestCoordinator(t *testing.T, handler http.HandlerFunc) (*Coordinator, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	ctx := runtime.New()
	conn := connection.DefaultConnection(ctx, host, []string{host})
	conn.Port = port
	conn.V4Signing = true
	conn.WithStaticCredentials("AKIA", "secret")
	conn.MaxRetryCount = 0
	conn.RetryPauseMin = 0
	conn.RetryPauseMax = 0

	return &Coordinator{
		Engine:     reqengine.New(conn),
		Conn:       conn,
		Bucket:     "bucket",
		Key:        "obj",
		MaxThreads: 2,
		FrameSize:  4096,
	}, srv
}

// TestCoordinator_UploadAssemblesPartsInOrder drives a full Initiate -> N x
// UploadPart -> Complete lifecycle against a fake server and checks that the
// manifest sent to Complete lists parts in ascending PartNumber order
// regardless of the order the concurrent part uploads actually finished in.
func TestCoordinator_UploadAssemblesPartsInOrder(t *testing.T) {
	var partsSeen sync.Map // partNumber -> true
	var completeBody []byte
	var mu sync.Mutex

	coord, srv := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Query().Has("uploads"):
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`<InitiateMultipartUploadResult><UploadId>upload-1</UploadId></InitiateMultipartUploadResult>`))

		case r.Method == http.MethodPut && r.URL.Query().Get("uploadId") == "upload-1":
			partNumber := r.URL.Query().Get("partNumber")
			partsSeen.Store(partNumber, true)
			w.Header().Set("ETag", `"etag-`+partNumber+`"`)
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodPost && r.URL.Query().Get("uploadId") == "upload-1":
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			completeBody = body
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`<CompleteMultipartUploadResult><ETag>"final-etag"</ETag></CompleteMultipartUploadResult>`))

		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	defer srv.Close()
	defer coord.Conn.Ctx.Close()

	totalSize := int64(25 * 1024 * 1024) // 25MiB across 5MiB-target parts -> 5 parts
	source := bytes.NewReader(make([]byte, totalSize))

	etag, err := coord.Upload(context.Background(), source, totalSize, 5*1024*1024)
	require.NoError(t, err)
	require.Equal(t, `"final-etag"`, etag)

	mu.Lock()
	manifest := string(completeBody)
	mu.Unlock()

	// every part must appear in the manifest, in ascending order.
	prevIdx := -1
	for n := 1; n <= 5; n++ {
		tag := fmt.Sprintf("<PartNumber>%d</PartNumber>", n)
		idx := strings.Index(manifest, tag)
		require.Greaterf(t, idx, prevIdx, "part %d out of order in manifest", n)
		prevIdx = idx
		_, ok := partsSeen.Load(strconv.Itoa(n))
		require.Truef(t, ok, "part %d never uploaded", n)
	}
}

// TestCoordinator_UploadAbortsOnPartFailure verifies that when a part
// exhausts its retries, the coordinator issues an Abort (DELETE ?uploadId=)
// instead of a Complete.
func TestCoordinator_UploadAbortsOnPartFailure(t *testing.T) {
	var aborted atomic.Bool
	var completed atomic.Bool

	coord, srv := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Query().Has("uploads"):
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`<InitiateMultipartUploadResult><UploadId>upload-2</UploadId></InitiateMultipartUploadResult>`))

		case r.Method == http.MethodPut && r.URL.Query().Get("uploadId") == "upload-2":
			// every part upload fails; the part worker should exhaust its
			// retries and the coordinator should abort rather than complete.
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`<Error><Code>InternalError</Code><Message>boom</Message><RequestId>req-x</RequestId></Error>`))

		case r.Method == http.MethodDelete && r.URL.Query().Get("uploadId") == "upload-2":
			aborted.Store(true)
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodPost && r.URL.Query().Get("uploadId") == "upload-2":
			completed.Store(true)
			w.WriteHeader(http.StatusOK)

		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	defer srv.Close()
	defer coord.Conn.Ctx.Close()

	coord.MaxRetries = 1

	totalSize := int64(10 * 1024 * 1024)
	source := bytes.NewReader(make([]byte, totalSize))

	_, err := coord.Upload(context.Background(), source, totalSize, 5*1024*1024)
	require.Error(t, err)
	require.True(t, aborted.Load(), "expected Abort to be called after a part exhausted its retries")
	require.False(t, completed.Load(), "Complete must not be called when a part failed")
}
