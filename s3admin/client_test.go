package s3admin

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c := New(host, []string{host}, "admin", "changeme", false)
	c.Conn.Port = port
	c.Conn.MaxRetryCount = 0
	c.Conn.RetryPauseMin = 0
	c.Conn.RetryPauseMax = 0

	return c, srv
}
