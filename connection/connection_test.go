package connection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emcecs/ecs-go-client/runtime"
)

func newTestConnection() *Connection {
	ctx := runtime.New()
	c := DefaultConnection(ctx, "ecs.example.com", []string{"10.0.0.1", "10.0.0.2"})
	c.WithStaticCredentials("AKIA", "secret")
	return c
}

func TestConnection_ValidateRequiresHostCandidatesCredentials(t *testing.T) {
	c := newTestConnection()
	require.NoError(t, c.Validate())

	c.Host = ""
	require.Error(t, c.Validate())

	c = newTestConnection()
	c.Candidates = nil
	require.Error(t, c.Validate())

	c = newTestConnection()
	c.Credentials = nil
	require.Error(t, c.Validate())
}

func TestConnection_BaseURLReflectsTLS(t *testing.T) {
	c := newTestConnection()
	c.Port = 9020
	c.UseTLS = false
	require.Equal(t, "http://ecs.example.com:9020", c.BaseURL())

	c.UseTLS = true
	c.Port = 9021
	require.Equal(t, "https://ecs.example.com:9021", c.BaseURL())
}

func TestConnection_CloneIsIndependent(t *testing.T) {
	c := newTestConnection()
	clone := c.Clone()
	clone.Candidates[0] = "mutated"
	require.NotEqual(t, c.Candidates[0], clone.Candidates[0])
}

func TestConnection_ConfigureThrottleThenRemove(t *testing.T) {
	c := newTestConnection()
	defer c.Ctx.Close()

	c.UploadBPS = 1000
	c.ConfigureThrottle()

	c.UploadBPS = 0
	c.DownloadBPS = 0
	c.ConfigureThrottle() // must remove, not leave a zero-rate entry running
}

func TestPerThreadState_RetryAndAuthCeilings(t *testing.T) {
	p := NewPerThreadState()
	require.True(t, p.CanRetry(3))
	p.RetriesAttempted = 3
	require.False(t, p.CanRetry(3))

	require.True(t, p.CanReplayAuth())
	p.AuthCyclesAttempted = 3
	require.False(t, p.CanReplayAuth())
}

func TestPerThreadState_MarkUsedTracksExclusionSet(t *testing.T) {
	p := NewPerThreadState()
	require.False(t, p.UsedIPs["10.0.0.1"])
	p.MarkUsed("10.0.0.1")
	require.True(t, p.UsedIPs["10.0.0.1"])
}
