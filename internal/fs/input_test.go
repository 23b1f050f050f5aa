package fs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftfs/swiftfs/internal/config"
	"github.com/swiftfs/swiftfs/pkg/errors"
)

// pattern generates deterministic content so any byte mismatch after a
// seek is visible at its exact offset.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestInputStreamSequentialRead(t *testing.T) {
	fsys, srv := newTestFS(t, config.DefaultPartitionSize)
	ctx := context.Background()
	content := pattern(100_000)
	srv.PutObject("data", "/big", content)

	in, err := fsys.Open(ctx, "/big")
	require.NoError(t, err)
	defer in.Close()

	got, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))
}

func TestInputStreamSeek(t *testing.T) {
	fsys, srv := newTestFS(t, config.DefaultPartitionSize)
	ctx := context.Background()
	content := pattern(10_000)
	srv.PutObject("data", "/big", content)

	t.Run("chomped short forward seeks match a reopen", func(t *testing.T) {
		in, err := fsys.Open(ctx, "/big")
		require.NoError(t, err)
		defer in.Close()

		// Prime the stream so a window is open, then seek forward by
		// 100 twice; both should be chomped, not reopened.
		buf := make([]byte, 10)
		_, err = io.ReadFull(in, buf)
		require.NoError(t, err)

		_, err = in.Seek(100, io.SeekCurrent)
		require.NoError(t, err)
		_, err = in.Seek(100, io.SeekCurrent)
		require.NoError(t, err)

		got := make([]byte, 50)
		_, err = io.ReadFull(in, got)
		require.NoError(t, err)
		assert.Equal(t, content[210:260], got)
	})

	t.Run("absolute seek and read", func(t *testing.T) {
		in, err := fsys.Open(ctx, "/big")
		require.NoError(t, err)
		defer in.Close()

		pos, err := in.Seek(9_000, io.SeekStart)
		require.NoError(t, err)
		assert.Equal(t, int64(9_000), pos)

		got, err := io.ReadAll(in)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(content[9_000:], got))
	})

	t.Run("backward seek reopens", func(t *testing.T) {
		in, err := fsys.Open(ctx, "/big")
		require.NoError(t, err)
		defer in.Close()

		buf := make([]byte, 500)
		_, err = io.ReadFull(in, buf)
		require.NoError(t, err)

		_, err = in.Seek(5, io.SeekStart)
		require.NoError(t, err)
		got := make([]byte, 20)
		_, err = io.ReadFull(in, got)
		require.NoError(t, err)
		assert.Equal(t, content[5:25], got)
	})

	t.Run("seek to current position is a no-op", func(t *testing.T) {
		in, err := fsys.Open(ctx, "/big")
		require.NoError(t, err)
		defer in.Close()

		pos, err := in.Seek(0, io.SeekCurrent)
		require.NoError(t, err)
		assert.Equal(t, int64(0), pos)
	})

	t.Run("negative target rejected", func(t *testing.T) {
		in, err := fsys.Open(ctx, "/big")
		require.NoError(t, err)
		defer in.Close()

		_, err = in.Seek(-1, io.SeekStart)
		assert.Error(t, err)
	})
}

func TestInputStreamReconnectsOnMidReadFailure(t *testing.T) {
	fsys, srv := newTestFS(t, config.DefaultPartitionSize)
	ctx := context.Background()
	content := pattern(10_000)
	srv.PutObject("data", "/big", content)

	in, err := fsys.Open(ctx, "/big")
	require.NoError(t, err)
	defer in.Close()

	// The first GET body dies at byte 4000; the stream must reopen at
	// its position and deliver the rest without the caller noticing.
	srv.TruncateNextResponses(1, 4000)
	got, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))
}

func TestInputStreamSecondMidReadFailurePropagates(t *testing.T) {
	fsys, srv := newTestFS(t, config.DefaultPartitionSize)
	ctx := context.Background()
	srv.PutObject("data", "/big", pattern(10_000))

	in, err := fsys.Open(ctx, "/big")
	require.NoError(t, err)
	defer in.Close()

	// Both the initial body and the reconnect body die before the first
	// byte: one reopen is attempted, the second failure surfaces.
	srv.TruncateNextResponses(2, 0)
	_, err = io.ReadAll(in)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConnectionFailed), "got %v", err)
}

func TestInputStreamCloseIdempotent(t *testing.T) {
	fsys, srv := newTestFS(t, config.DefaultPartitionSize)
	srv.PutObject("data", "/f", []byte("x"))

	in, err := fsys.Open(context.Background(), "/f")
	require.NoError(t, err)

	require.NoError(t, in.Close())
	require.NoError(t, in.Close())

	_, err = in.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestInputStreamEOF(t *testing.T) {
	fsys, srv := newTestFS(t, config.DefaultPartitionSize)
	srv.PutObject("data", "/f", []byte("abc"))

	in, err := fsys.Open(context.Background(), "/f")
	require.NoError(t, err)
	defer in.Close()

	got, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	n, err := in.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}
