package fs

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftfs/swiftfs/internal/config"
	"github.com/swiftfs/swiftfs/internal/swift"
	"github.com/swiftfs/swiftfs/internal/swift/swifttest"
	"github.com/swiftfs/swiftfs/pkg/utils"
)

// newTestFS starts a fake cluster and wires a filesystem over it. The
// partition size is tiny so multipart paths are cheap to exercise.
func newTestFS(t *testing.T, partitionSize int64) (*FileSystem, *swifttest.Server) {
	t.Helper()
	srv := swifttest.NewServer("tester", "secret")
	t.Cleanup(srv.Close)

	authURL, err := url.Parse(srv.AuthURL())
	require.NoError(t, err)
	binding := &config.Binding{
		Service:        "data",
		Container:      "data",
		AuthURL:        authURL,
		Username:       "tester",
		Password:       "secret",
		AuthMethod:     "keystone",
		RetryCount:     3,
		ConnectTimeout: 10 * time.Second,
		PartitionSize:  partitionSize,
	}
	client, err := swift.NewClient(binding, utils.NewDiscardLogger())
	require.NoError(t, err)

	return NewFileSystem(client, utils.NewDiscardLogger()), srv
}
