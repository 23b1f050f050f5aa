// Package fs emulates a hierarchical filesystem over the flat Swift
// namespace: directory markers, prefix listings, copy-then-delete
// rename, and the seekable-read / staged-write stream adapters.
package fs

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/swiftfs/swiftfs/internal/swift"
	"github.com/swiftfs/swiftfs/pkg/errors"
	"github.com/swiftfs/swiftfs/pkg/types"
)

// Store implements the directory emulation on top of the Swift client.
// Directories are zero-length marker objects or pure listing prefixes;
// rename is a sequence of server-side copies and deletes with no
// atomicity beyond the single object.
type Store struct {
	client   *swift.Client
	logger   *slog.Logger
	throttle time.Duration
}

// NewStore builds the emulation layer over an authenticated or
// not-yet-authenticated client.
func NewStore(client *swift.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:   client,
		logger:   logger.With("component", "store"),
		throttle: client.Binding().ThrottleDelay,
	}
}

// GetMetadata resolves one path into a directory entry. A zero-length
// object counts as a directory marker; container-level aggregates (the
// root) are directories as well.
func (s *Store) GetMetadata(ctx context.Context, p string) (*types.FileStatus, error) {
	op := s.client.PathForObject(p)
	meta, isDir, err := s.client.HeadObject(ctx, op)
	if err != nil {
		return nil, err
	}
	status := &types.FileStatus{Path: normalizePath(p)}
	if isDir || meta.Size == 0 {
		status.IsDir = true
	}
	status.Size = meta.Size
	status.ModTime = meta.LastModified
	return status, nil
}

// ListDirectory lists the entries directly under a path. Each listed
// key is resolved with a HEAD; entries that vanish between listing and
// HEAD are skipped rather than failing the whole listing.
func (s *Store) ListDirectory(ctx context.Context, p string) ([]types.FileStatus, error) {
	prefix := normalizePath(p)
	if prefix != "/" {
		prefix += "/"
	}

	keys, err := s.client.ListPrefix(ctx, s.client.PathForObject(prefix), true)
	if err != nil {
		return nil, err
	}

	var entries []types.FileStatus
	for _, key := range keys {
		child := "/" + strings.TrimSuffix(key, "/")
		if child == strings.TrimSuffix(prefix, "/") || child == "" {
			// The directory's own marker shows up in its listing.
			continue
		}
		if strings.HasSuffix(key, "/") {
			entries = append(entries, types.FileStatus{Path: child, IsDir: true})
			continue
		}
		status, err := s.GetMetadata(ctx, child)
		if err != nil {
			if errors.IsNotFound(err) {
				s.logger.Debug("entry vanished during listing", "path", child)
				continue
			}
			return nil, err
		}
		entries = append(entries, *status)
	}
	return entries, nil
}

// ObjectExists reports whether anything lives at or under the path.
func (s *Store) ObjectExists(ctx context.Context, p string) (bool, error) {
	keys, err := s.client.ListPrefix(ctx, s.client.PathForObject(normalizePath(p)), false)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// CreateDirectory puts a zero-length marker object. The PUT is
// unconditional: re-creating an existing directory is idempotent.
func (s *Store) CreateDirectory(ctx context.Context, p string) error {
	return s.client.PutObject(ctx, s.client.PathForObject(normalizePath(p)), nil, 0, nil)
}

// DeleteObject removes one object; true only when the store confirms
// something was removed.
func (s *Store) DeleteObject(ctx context.Context, p string) (bool, error) {
	return s.client.DeleteObject(ctx, s.client.PathForObject(normalizePath(p)))
}

// Rename moves a file or directory tree by server-side copy plus
// delete. The operation is not atomic: a failure partway leaves some
// children moved, and that partial outcome is reported, never masked.
func (s *Store) Rename(ctx context.Context, src, dst string) error {
	src = normalizePath(src)
	dst = normalizePath(dst)

	if src == dst {
		return errors.Newf(errors.ErrCodeOperationFailed,
			"cannot rename %q onto itself", src).
			WithComponent("store").WithOperation("rename")
	}
	if src == "/" {
		return errors.New(errors.ErrCodeOperationFailed, "cannot rename the root").
			WithComponent("store").WithOperation("rename")
	}

	srcStatus, err := s.GetMetadata(ctx, src)
	if err != nil {
		return err
	}
	dstStatus, err := s.GetMetadata(ctx, dst)
	if err != nil && !errors.IsNotFound(err) {
		return err
	}
	dstExists := err == nil

	if !srcStatus.IsDir {
		return s.renameFile(ctx, src, dst, dstStatus, dstExists)
	}
	return s.renameDirectory(ctx, src, dst, dstStatus, dstExists)
}

func (s *Store) renameFile(ctx context.Context, src, dst string, dstStatus *types.FileStatus, dstExists bool) error {
	target := dst
	if dstExists {
		if !dstStatus.IsDir {
			return errors.Newf(errors.ErrCodeOperationFailed,
				"cannot rename %q over existing file %q", src, dst).
				WithComponent("store").WithOperation("rename")
		}
		target = path.Join(dst, path.Base(src))
	}
	if target == src {
		return errors.Newf(errors.ErrCodeOperationFailed,
			"cannot rename %q onto itself", src).
			WithComponent("store").WithOperation("rename")
	}
	return s.copyThenDelete(ctx, src, target)
}

func (s *Store) renameDirectory(ctx context.Context, src, dst string, dstStatus *types.FileStatus, dstExists bool) error {
	if dstExists && !dstStatus.IsDir {
		return errors.Newf(errors.ErrCodeOperationFailed,
			"cannot rename directory %q onto file %q", src, dst).
			WithComponent("store").WithOperation("rename")
	}

	targetRoot := dst
	if dstExists {
		targetRoot = path.Join(dst, path.Base(src))
	}
	if targetRoot == src {
		return errors.Newf(errors.ErrCodeOperationFailed,
			"cannot rename %q onto itself", src).
			WithComponent("store").WithOperation("rename")
	}
	if strings.HasPrefix(targetRoot+"/", src+"/") {
		return errors.Newf(errors.ErrCodeOperationFailed,
			"cannot rename %q into its own descendant %q", src, targetRoot).
			WithComponent("store").WithOperation("rename")
	}

	keys, err := s.client.ListPrefix(ctx, s.client.PathForObject(src+"/"), false)
	if err != nil {
		return err
	}

	if err := s.CreateDirectory(ctx, targetRoot); err != nil {
		return err
	}

	result := types.RenameResult{}
	for _, key := range keys {
		childSrc := "/" + key
		childDst := targetRoot + strings.TrimPrefix(childSrc, src)
		if err := s.copyThenDelete(ctx, childSrc, childDst); err != nil {
			s.logger.Warn("rename child failed", "src", childSrc, "dst", childDst, "error", err)
			result.Failed = append(result.Failed, childSrc)
		} else {
			result.Copied = append(result.Copied, childSrc)
		}
		s.pause()
	}

	// The source marker goes last so a crash leaves the source listable.
	if _, err := s.DeleteObject(ctx, src); err != nil && !errors.IsNotFound(err) {
		result.Failed = append(result.Failed, src)
	}

	if result.Partial() {
		return errors.Newf(errors.ErrCodeOperationFailed,
			"rename of %q to %q is incomplete; failed entries: %s",
			src, dst, strings.Join(result.Failed, ", ")).
			WithComponent("store").WithOperation("rename")
	}
	return nil
}

// copyThenDelete moves one object. Swift has no rename verb, so this
// two-step sequence is the primitive everything else builds on.
func (s *Store) copyThenDelete(ctx context.Context, src, dst string) error {
	if err := s.client.CopyObject(ctx, s.client.PathForObject(src), s.client.PathForObject(dst)); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, s.client.PathForObject(src))
	return err
}

// pause applies the configured inter-operation throttle during bulk
// copy/delete sequences, easing pressure on busy proxies.
func (s *Store) pause() {
	if s.throttle > 0 {
		time.Sleep(s.throttle)
	}
}

// normalizePath collapses a hierarchical path to a canonical absolute
// form without a trailing slash (except the root itself).
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	return cleaned
}
