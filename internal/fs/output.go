package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/swiftfs/swiftfs/internal/swift"
	"github.com/swiftfs/swiftfs/pkg/errors"
)

// OutputStream stages writes in a local temp file and uploads on close:
// one whole object when the total stayed under the partition threshold,
// otherwise numbered part objects plus a manifest at the logical key.
// Part names are zero-padded so lexical segment order equals write
// order when the store assembles the manifest.
type OutputStream struct {
	client *swift.Client
	logger *slog.Logger
	path   swift.ObjectPath

	ctx context.Context

	staging       *os.File
	partitionSize int64
	bytesBuffered int64
	partNumber    int
	partsWritten  int
	closed        bool
}

// NewOutputStream creates the staging file and an open stream for the
// object at path. The partition threshold comes from the binding.
func NewOutputStream(ctx context.Context, client *swift.Client, logger *slog.Logger, path swift.ObjectPath) (*OutputStream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	staging, err := os.CreateTemp("", "swiftfs-upload-*")
	if err != nil {
		return nil, errors.New(errors.ErrCodeOperationFailed, "cannot create staging file").
			WithComponent("output").WithCause(err)
	}
	return &OutputStream{
		client:        client,
		logger:        logger.With("component", "output", "object", path.UriPath()),
		path:          path,
		ctx:           ctx,
		staging:       staging,
		partitionSize: client.Binding().PartitionSize,
		partNumber:    1,
	}, nil
}

// Write implements io.Writer. Crossing the partition threshold flushes
// the staging file as a numbered part object and starts a fresh one.
func (out *OutputStream) Write(p []byte) (int, error) {
	if out.closed {
		return 0, errors.New(errors.ErrCodeStreamClosed, "write on closed stream").
			WithComponent("output")
	}

	total := 0
	for len(p) > 0 {
		room := out.partitionSize - out.bytesBuffered
		chunk := p
		if int64(len(chunk)) > room {
			chunk = p[:room]
		}
		n, err := out.staging.Write(chunk)
		out.bytesBuffered += int64(n)
		total += n
		if err != nil {
			return total, errors.New(errors.ErrCodeOperationFailed, "staging write failed").
				WithComponent("output").WithCause(err)
		}
		p = p[n:]

		if out.bytesBuffered >= out.partitionSize {
			if err := out.flushPart(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// flushPart uploads the staging file as the next part object and
// replaces it with a fresh empty one.
func (out *OutputStream) flushPart() error {
	if err := out.uploadStaging(out.partPath(out.partNumber)); err != nil {
		return err
	}
	out.partNumber++
	out.partsWritten++

	name := out.staging.Name()
	out.staging.Close()
	os.Remove(name)

	staging, err := os.CreateTemp("", "swiftfs-upload-*")
	if err != nil {
		return errors.New(errors.ErrCodeOperationFailed, "cannot create staging file").
			WithComponent("output").WithCause(err)
	}
	out.staging = staging
	out.bytesBuffered = 0
	return nil
}

// Close uploads the pending data and, for multipart streams, the
// manifest object. The staging file is removed on every exit path,
// upload success or not, and further writes are refused.
func (out *OutputStream) Close() error {
	if out.closed {
		return nil
	}
	out.closed = true

	defer func() {
		name := out.staging.Name()
		out.staging.Close()
		os.Remove(name)
	}()

	if out.partsWritten == 0 {
		// Never crossed the threshold: one whole-object upload.
		return out.uploadStaging(out.path)
	}

	if out.bytesBuffered > 0 {
		if err := out.uploadStaging(out.partPath(out.partNumber)); err != nil {
			return err
		}
		out.partsWritten++
	}

	// Zero-length manifest at the logical key, pointing the store at
	// the part-name prefix.
	manifest := strings.TrimSuffix(out.path.UriPath(), "/") + "/"
	headers := map[string]string{swift.HeaderManifest: manifest}
	if err := out.client.PutObject(out.ctx, out.path, nil, 0, headers); err != nil {
		return err
	}
	out.logger.Debug("manifest written", "parts", out.partsWritten)
	return nil
}

// PartitionsWritten reports how many part objects have been uploaded.
func (out *OutputStream) PartitionsWritten() int {
	return out.partsWritten
}

// BytesBuffered reports the staging bytes not yet uploaded.
func (out *OutputStream) BytesBuffered() int64 {
	return out.bytesBuffered
}

func (out *OutputStream) partPath(n int) swift.ObjectPath {
	key := fmt.Sprintf("%s/%06d", strings.TrimSuffix(out.path.Object(), "/"), n)
	return swift.NewObjectPath(out.path.Container(), key)
}

// uploadStaging PUTs the staging file's current contents.
func (out *OutputStream) uploadStaging(target swift.ObjectPath) error {
	size := out.bytesBuffered
	if _, err := out.staging.Seek(0, 0); err != nil {
		return errors.New(errors.ErrCodeOperationFailed, "cannot rewind staging file").
			WithComponent("output").WithCause(err)
	}
	return out.client.PutObject(out.ctx, target, out.staging, size, nil)
}
