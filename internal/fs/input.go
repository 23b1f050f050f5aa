package fs

import (
	"context"
	"io"
	"log/slog"

	"github.com/swiftfs/swiftfs/internal/swift"
	"github.com/swiftfs/swiftfs/pkg/errors"
	"github.com/swiftfs/swiftfs/pkg/types"
)

// readWindow is how much of the object one ranged GET fetches. Short
// forward seeks inside the window are satisfied by discarding bytes
// from the open response instead of paying another request round trip.
const readWindow = int64(64 * 1024 * 1024)

// InputStream is a seekable reader over ranged GETs. The invariant is
// that pos only moves through successful reads or an explicit seek;
// when the underlying response dies mid-read the stream reopens at pos
// and retries exactly once.
type InputStream struct {
	client *swift.Client
	logger *slog.Logger
	path   swift.ObjectPath
	length int64

	ctx context.Context

	pos        int64
	windowLeft int64
	body       io.ReadCloser
	closed     bool
}

// NewInputStream opens a reader over the object at path, whose total
// length must already be known from metadata.
func NewInputStream(ctx context.Context, client *swift.Client, logger *slog.Logger, path swift.ObjectPath, length int64) *InputStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &InputStream{
		client: client,
		logger: logger.With("component", "input", "object", path.UriPath()),
		path:   path,
		length: length,
		ctx:    ctx,
	}
}

// Read implements io.Reader.
func (in *InputStream) Read(p []byte) (int, error) {
	if in.closed {
		return 0, errors.New(errors.ErrCodeStreamClosed, "read on closed stream").
			WithComponent("input")
	}
	if in.pos >= in.length {
		return 0, io.EOF
	}
	if in.body == nil {
		if err := in.open(); err != nil {
			return 0, err
		}
	}

	n, err := in.body.Read(p)
	in.pos += int64(n)
	in.windowLeft -= int64(n)

	switch {
	case err == nil:
		return n, nil
	case err == io.EOF:
		// End of the fetched window, not necessarily of the object.
		in.teardown()
		if in.pos >= in.length {
			return n, io.EOF
		}
		return n, nil
	default:
		// Mid-stream failure: reopen at the current position and retry
		// once. A second failure propagates.
		in.logger.Debug("read failed, reopening", "pos", in.pos, "error", err)
		in.teardown()
		if oerr := in.open(); oerr != nil {
			return n, oerr
		}
		m, rerr := in.body.Read(p[n:])
		in.pos += int64(m)
		in.windowLeft -= int64(m)
		if rerr != nil && rerr != io.EOF {
			in.teardown()
			return n + m, errors.New(errors.ErrCodeConnectionFailed,
				"read failed again after reconnect").
				WithComponent("input").WithCause(rerr)
		}
		if rerr == io.EOF {
			in.teardown()
			if in.pos >= in.length {
				return n + m, io.EOF
			}
		}
		return n + m, nil
	}
}

// Seek implements io.Seeker. A forward seek that stays inside the open
// window is satisfied by chomping: reading and discarding the gap,
// which beats a fresh ranged GET for short distances. Everything else
// tears the stream down; the next read reopens at the target.
func (in *InputStream) Seek(offset int64, whence int) (int64, error) {
	if in.closed {
		return 0, errors.New(errors.ErrCodeStreamClosed, "seek on closed stream").
			WithComponent("input")
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = in.pos + offset
	case io.SeekEnd:
		target = in.length + offset
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidState, "bad whence %d", whence).
			WithComponent("input")
	}
	if target < 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidState, "seek to negative offset %d", target).
			WithComponent("input")
	}
	if target == in.pos {
		return target, nil
	}

	diff := target - in.pos
	if in.body != nil && diff > 0 && diff <= in.windowLeft {
		if err := in.chomp(diff); err == nil {
			return in.pos, nil
		}
		// Chomp failure falls back to a reopen.
	}

	in.teardown()
	in.pos = target
	return target, nil
}

// chomp discards exactly n bytes from the open response.
func (in *InputStream) chomp(n int64) error {
	copied, err := io.CopyN(io.Discard, in.body, n)
	in.pos += copied
	in.windowLeft -= copied
	if err != nil {
		in.logger.Debug("chomp failed", "wanted", n, "got", copied, "error", err)
		return err
	}
	return nil
}

// open starts a ranged GET of one window at the current position.
func (in *InputStream) open() error {
	want := readWindow
	if remaining := in.length - in.pos; remaining < want {
		want = remaining
	}
	body, err := in.client.GetObjectRange(in.ctx, in.path, types.Range{Offset: in.pos, Size: want})
	if err != nil {
		return err
	}
	in.body = body
	in.windowLeft = want
	return nil
}

func (in *InputStream) teardown() {
	if in.body != nil {
		in.body.Close()
		in.body = nil
	}
	in.windowLeft = 0
}

// Close releases the open response. It is idempotent.
func (in *InputStream) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true
	in.teardown()
	return nil
}
