package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectMetadataIsManifest(t *testing.T) {
	plain := ObjectMetadata{Key: "data/part-0000", Size: 42}
	assert.False(t, plain.IsManifest())

	dlo := ObjectMetadata{Key: "data/big", Manifest: "container/data/big/"}
	assert.True(t, dlo.IsManifest())
}

func TestRenameResultPartial(t *testing.T) {
	ok := RenameResult{Copied: []string{"/a/1", "/a/2"}}
	assert.False(t, ok.Partial())

	bad := RenameResult{Copied: []string{"/a/1"}, Failed: []string{"/a/2"}}
	assert.True(t, bad.Partial())
}
