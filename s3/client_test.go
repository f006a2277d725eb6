package s3

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emcecs/ecs-go-client/connection"
	"github.com/emcecs/ecs-go-client/runtime"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
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

	return New(conn), srv
}
