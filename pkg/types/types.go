package types

import (
	"time"
)

// ObjectMetadata describes a single Swift object as reported by HEAD.
type ObjectMetadata struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag"`
	ContentType  string            `json:"content_type"`
	Manifest     string            `json:"manifest,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// IsManifest reports whether the object is a large-object manifest whose
// content is assembled from segment objects at read time.
func (m ObjectMetadata) IsManifest() bool {
	return m.Manifest != ""
}

// FileStatus describes one entry of the emulated filesystem namespace.
// A directory is either a zero-length marker object or a pure prefix
// inferred from the listing.
type FileStatus struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	IsDir   bool      `json:"is_dir"`
	ModTime time.Time `json:"mod_time"`
}

// Range represents a byte range of an object.
type Range struct {
	Offset int64 `json:"offset"`
	Size   int64 `json:"size"`
}

// ContainerStats carries the container-level counters used to
// distinguish an empty container from a missing one.
type ContainerStats struct {
	ObjectCount int64 `json:"object_count"`
	BytesUsed   int64 `json:"bytes_used"`
}

// RenameResult reports the outcome of a copy-then-delete rename. The
// operation is not atomic; on partial failure Copied and Failed together
// tell the caller which entries moved.
type RenameResult struct {
	Copied []string `json:"copied"`
	Failed []string `json:"failed"`
}

// Partial reports whether some entries failed to move.
func (r RenameResult) Partial() bool {
	return len(r.Failed) > 0
}
