package bodystream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStream_PushPopOrderAndOffsets(t *testing.T) {
	s := New(4)
	require.NoError(t, s.Push(Frame{Bytes: []byte("abc")}, nil))
	require.NoError(t, s.Push(Frame{Bytes: []byte("de")}, nil))

	f1, err := s.Pop(nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), f1.Offset)
	require.Equal(t, "abc", string(f1.Bytes))

	f2, err := s.Pop(nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), f2.Offset, "offsets must be contiguous within a stream")
	require.Equal(t, "de", string(f2.Bytes))
}

func TestStream_TerminalFrameOnlyOnce(t *testing.T) {
	s := New(4)
	require.NoError(t, s.Push(Frame{IsLast: true}, nil))
	require.True(t, s.Terminated())
	err := s.Push(Frame{Bytes: []byte("x")}, nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestStream_PushBlocksAtHighWaterThenUnblocksOnPop(t *testing.T) {
	s := New(1)
	require.NoError(t, s.Push(Frame{Bytes: []byte("a")}, nil))

	done := make(chan struct{})
	go func() {
		_ = s.Push(Frame{Bytes: []byte("b")}, nil)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Push must block while at the high-water mark")
	case <-time.After(100 * time.Millisecond):
	}

	_, err := s.Pop(nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push must unblock once a Pop frees capacity")
	}
}

func TestStream_PopBlocksThenCancelReturnsClosed(t *testing.T) {
	s := New(4)
	cancel := make(chan struct{})

	done := make(chan error)
	go func() {
		_, err := s.Pop(cancel)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	close(cancel)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Pop did not observe cancellation")
	}
}

func TestStream_CloseUnblocksPop(t *testing.T) {
	s := New(4)
	done := make(chan error)
	go func() {
		_, err := s.Pop(nil)
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	s.Close()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock a pending Pop")
	}
}

func TestStream_DepthTracksQueueSize(t *testing.T) {
	s := New(4)
	require.Equal(t, 0, s.Depth())
	require.NoError(t, s.Push(Frame{Bytes: []byte("a")}, nil))
	require.Equal(t, 1, s.Depth())
	_, err := s.Pop(nil)
	require.NoError(t, err)
	require.Equal(t, 0, s.Depth())
}
