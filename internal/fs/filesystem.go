package fs

import (
	"context"
	"log/slog"
	"path"

	"github.com/swiftfs/swiftfs/internal/swift"
	"github.com/swiftfs/swiftfs/pkg/errors"
	"github.com/swiftfs/swiftfs/pkg/types"
)

// FileSystem is the path-keyed surface consumed by callers: create,
// open, delete, rename, mkdirs, list, metadata. It owns nothing but
// references; all state lives in the store and the streams it hands
// out.
type FileSystem struct {
	client *swift.Client
	store  *Store
	logger *slog.Logger
}

// NewFileSystem wires the surface over one client.
func NewFileSystem(client *swift.Client, logger *slog.Logger) *FileSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSystem{
		client: client,
		store:  NewStore(client, logger),
		logger: logger.With("component", "fs"),
	}
}

// Store exposes the underlying emulation layer.
func (f *FileSystem) Store() *Store { return f.store }

// GetMetadata resolves a path to its directory entry.
func (f *FileSystem) GetMetadata(ctx context.Context, p string) (*types.FileStatus, error) {
	return f.store.GetMetadata(ctx, p)
}

// ListStatus lists a directory, or returns the single entry for a
// file path.
func (f *FileSystem) ListStatus(ctx context.Context, p string) ([]types.FileStatus, error) {
	status, err := f.store.GetMetadata(ctx, p)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if err == nil && !status.IsDir {
		return []types.FileStatus{*status}, nil
	}
	return f.store.ListDirectory(ctx, p)
}

// Mkdirs creates the directory and any missing ancestors. An existing
// file anywhere in the chain fails the whole call.
func (f *FileSystem) Mkdirs(ctx context.Context, p string) error {
	p = normalizePath(p)

	var missing []string
	for cur := p; cur != "/"; cur = path.Dir(cur) {
		status, err := f.store.GetMetadata(ctx, cur)
		if err != nil {
			if errors.IsNotFound(err) {
				missing = append(missing, cur)
				continue
			}
			return err
		}
		if !status.IsDir {
			return errors.Newf(errors.ErrCodeOperationFailed,
				"cannot create directory %q: %q is a file", p, cur).
				WithComponent("fs").WithOperation("mkdirs")
		}
		break
	}

	// Deepest last, so ancestors appear before children.
	for i := len(missing) - 1; i >= 0; i-- {
		if err := f.store.CreateDirectory(ctx, missing[i]); err != nil {
			return err
		}
	}
	return nil
}

// Create opens an output stream for a new file, building missing
// parents. An existing file fails the call unless overwrite is set; an
// existing directory always does.
func (f *FileSystem) Create(ctx context.Context, p string, overwrite bool) (*OutputStream, error) {
	p = normalizePath(p)

	status, err := f.store.GetMetadata(ctx, p)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if err == nil {
		if status.IsDir {
			return nil, errors.Newf(errors.ErrCodeOperationFailed,
				"cannot create file over directory %q", p).
				WithComponent("fs").WithOperation("create")
		}
		if !overwrite {
			return nil, errors.Newf(errors.ErrCodeOperationFailed,
				"file %q already exists", p).
				WithComponent("fs").WithOperation("create")
		}
	}

	if parent := path.Dir(p); parent != "/" {
		if err := f.Mkdirs(ctx, parent); err != nil {
			return nil, err
		}
	}

	return NewOutputStream(ctx, f.client, f.logger, f.client.PathForObject(p))
}

// Open returns a seekable input stream over an existing file.
func (f *FileSystem) Open(ctx context.Context, p string) (*InputStream, error) {
	p = normalizePath(p)
	status, err := f.store.GetMetadata(ctx, p)
	if err != nil {
		return nil, err
	}
	if status.IsDir {
		return nil, errors.Newf(errors.ErrCodeOperationFailed,
			"cannot open directory %q for reading", p).
			WithComponent("fs").WithOperation("open")
	}
	return NewInputStream(ctx, f.client, f.logger, f.client.PathForObject(p), status.Size), nil
}

// Rename moves a file or a directory tree.
func (f *FileSystem) Rename(ctx context.Context, src, dst string) error {
	return f.store.Rename(ctx, src, dst)
}

// Delete removes a file, or a directory when it is empty or recursive
// is set. It reports false without error when nothing was there, so
// callers can treat delete-of-absent as a no-op.
func (f *FileSystem) Delete(ctx context.Context, p string, recursive bool) (bool, error) {
	p = normalizePath(p)

	status, err := f.store.GetMetadata(ctx, p)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	if !status.IsDir {
		return f.store.DeleteObject(ctx, p)
	}

	entries, err := f.store.ListDirectory(ctx, p)
	if err != nil {
		return false, err
	}
	if len(entries) > 0 && !recursive {
		return false, errors.Newf(errors.ErrCodeOperationFailed,
			"directory %q is not empty", p).
			WithComponent("fs").WithOperation("delete")
	}
	for _, entry := range entries {
		if _, err := f.Delete(ctx, entry.Path, true); err != nil {
			return false, err
		}
		f.store.pause()
	}

	if p == "/" {
		// The root has no marker object to remove.
		return true, nil
	}
	return f.store.DeleteObject(ctx, p)
}

// GetFileBlockLocations queries the placement of an object's replicas.
func (f *FileSystem) GetFileBlockLocations(ctx context.Context, p string) ([]string, error) {
	return f.client.GetObjectLocation(ctx, f.client.PathForObject(normalizePath(p)))
}
