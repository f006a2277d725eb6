package reqengine

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emcecs/ecs-go-client/bodystream"
	"github.com/emcecs/ecs-go-client/connection"
	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/runtime"
)

func newTestServerConnection(t *testing.T, handler http.HandlerFunc) (*connection.Connection, *httptest.Server) {
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
	return conn, srv
}

func TestEngine_BufferedPutAndGet(t *testing.T) {
	conn, srv := newTestServerConnection(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bucket/obj", r.URL.Path)
		require.Contains(t, r.Header.Get("Authorization"), "AWS4-HMAC-SHA256")
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, "hello world", string(body))
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()
	defer conn.Ctx.Close()

	eng := New(conn)
	req := &Request{
		Method:  http.MethodPut,
		Path:    "/bucket/obj",
		Header:  cos.NewHeaderMap(),
		Payload: []byte("hello world"),
	}
	resp, err := eng.Do(context.Background(), connection.NewPerThreadState(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag, ok := resp.Header.Get("Etag")
	require.True(t, ok)
	require.Equal(t, `"abc123"`, etag)
}

func TestEngine_ErrorBodyParsedIntoResult(t *testing.T) {
	conn, srv := newTestServerConnection(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`<Error><Code>NoSuchKey</Code><Message>missing</Message><RequestId>req-1</RequestId></Error>`))
	})
	defer srv.Close()
	defer conn.Ctx.Close()

	eng := New(conn)
	req := &Request{Method: http.MethodGet, Path: "/bucket/nope", Header: cos.NewHeaderMap()}
	_, err := eng.Do(context.Background(), connection.NewPerThreadState(), req)
	require.Error(t, err)

	result, ok := err.(*cos.Result)
	require.True(t, ok)
	require.Equal(t, 404, result.HTTPStatus)
	require.Equal(t, "req-1", result.S3RequestID)
	require.Equal(t, cos.ErrNoSuchKey, result.S3)
}

func TestEngine_StreamingUploadV4Chunked(t *testing.T) {
	var received []byte
	conn, srv := newTestServerConnection(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "aws-chunked", r.Header.Get("Content-Encoding"))
		body, _ := io.ReadAll(r.Body)
		received = body
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()
	defer conn.Ctx.Close()
	conn.V4ChunkSize = 8 * 1024

	stream := bodystream.New(8)
	go func() {
		_ = stream.Push(bodystream.Frame{Bytes: make([]byte, 8*1024)}, nil)
		_ = stream.Push(bodystream.Frame{Bytes: make([]byte, 100), IsLast: true}, nil)
	}()

	eng := New(conn)
	req := &Request{
		Method:       http.MethodPut,
		Path:         "/bucket/big",
		Header:       cos.NewHeaderMap(),
		UploadStream: stream,
		UploadLength: 8*1024 + 100,
	}
	_, err := eng.Do(context.Background(), connection.NewPerThreadState(), req)
	require.NoError(t, err)
	require.NotEmpty(t, received)
}

func TestEngine_DownloadStream(t *testing.T) {
	conn, srv := newTestServerConnection(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("streamed-body"))
	})
	defer srv.Close()
	defer conn.Ctx.Close()

	download := bodystream.New(8)
	eng := New(conn)
	req := &Request{
		Method:         http.MethodGet,
		Path:           "/bucket/obj",
		Header:         cos.NewHeaderMap(),
		DownloadStream: download,
	}

	var got []byte
	doneCh := make(chan struct{})
	go func() {
		for {
			f, err := download.Pop(nil)
			if err != nil {
				break
			}
			got = append(got, f.Bytes...)
			if f.IsLast {
				break
			}
		}
		close(doneCh)
	}()

	_, err := eng.Do(context.Background(), connection.NewPerThreadState(), req)
	require.NoError(t, err)
	<-doneCh
	require.Equal(t, "streamed-body", string(got))
}
