package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftfs/swiftfs/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swiftfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
global:
  log_level: DEBUG
services:
  acme:
    auth_url: https://auth.example.org/v2.0/tokens
    username: tester
    password: secret
    tenant: demo
    region: RegionOne
    public: true
    retry_count: 5
    connect_timeout: 30s
`)

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromFile(path))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "DEBUG", cfg.Global.LogLevel)
	svc, ok := cfg.Services["acme"]
	require.True(t, ok)
	assert.Equal(t, "tester", svc.Username)
	assert.Equal(t, "RegionOne", svc.Region)
	assert.True(t, svc.Public)
	assert.Equal(t, 5, svc.RetryCount)
	assert.Equal(t, 30*time.Second, svc.ConnectTimeout)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadService(t *testing.T) {
	cfg := NewDefault()
	cfg.Services["bad"] = ServiceConfig{
		AuthURL:    "not a url",
		Username:   "u",
		Password:   "p",
		AuthMethod: "kerberos",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AuthURL")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SWIFTFS_SERVICE", "envswift")
	t.Setenv("SWIFTFS_AUTH_URL", "https://auth.example.org/v2.0/tokens")
	t.Setenv("SWIFTFS_USERNAME", "envuser")
	t.Setenv("SWIFTFS_PASSWORD", "envpass")
	t.Setenv("SWIFTFS_RETRY_COUNT", "7")
	t.Setenv("SWIFTFS_PARTITION_SIZE", "1024")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	svc, ok := cfg.Services["envswift"]
	require.True(t, ok)
	assert.Equal(t, "envuser", svc.Username)
	assert.Equal(t, 7, svc.RetryCount)
	assert.Equal(t, int64(1024), svc.PartitionSize)
}

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func validConfig() *Configuration {
	cfg := NewDefault()
	cfg.Services["acme"] = ServiceConfig{
		AuthURL:  "https://auth.example.org/v2.0/tokens",
		Username: "tester",
		Password: "secret",
	}
	return cfg
}

func TestBindDefaults(t *testing.T) {
	b, err := Bind(mustURL(t, "swift://acme/data"), validConfig())
	require.NoError(t, err)

	assert.Equal(t, "acme", b.Service)
	assert.Equal(t, "acme", b.Container)
	assert.Equal(t, "keystone", b.AuthMethod)
	assert.Equal(t, DefaultRetryCount, b.RetryCount)
	assert.Equal(t, DefaultConnectTimeout, b.ConnectTimeout)
	assert.Equal(t, DefaultPartitionSize, b.PartitionSize)
	assert.False(t, b.UsePublicURL)
}

func TestBindRejections(t *testing.T) {
	cases := []struct {
		name string
		uri  string
		mut  func(*Configuration)
		code errors.ErrorCode
	}{
		{
			name: "dotted host",
			uri:  "swift://swift.example.org/data",
			mut:  func(*Configuration) {},
			code: errors.ErrCodeInvalidConfig,
		},
		{
			name: "no host",
			uri:  "swift:///data",
			mut:  func(*Configuration) {},
			code: errors.ErrCodeInvalidConfig,
		},
		{
			name: "unknown service",
			uri:  "swift://other/data",
			mut:  func(*Configuration) {},
			code: errors.ErrCodeMissingConfig,
		},
		{
			name: "missing username",
			uri:  "swift://acme/data",
			mut: func(c *Configuration) {
				s := c.Services["acme"]
				s.Username = ""
				c.Services["acme"] = s
			},
			code: errors.ErrCodeMissingConfig,
		},
		{
			name: "neither secret",
			uri:  "swift://acme/data",
			mut: func(c *Configuration) {
				s := c.Services["acme"]
				s.Password = ""
				c.Services["acme"] = s
			},
			code: errors.ErrCodeMissingConfig,
		},
		{
			name: "both secrets",
			uri:  "swift://acme/data",
			mut: func(c *Configuration) {
				s := c.Services["acme"]
				s.APIKey = "key"
				c.Services["acme"] = s
			},
			code: errors.ErrCodeInvalidConfig,
		},
		{
			name: "relative auth url",
			uri:  "swift://acme/data",
			mut: func(c *Configuration) {
				s := c.Services["acme"]
				s.AuthURL = "/v2.0/tokens"
				c.Services["acme"] = s
			},
			code: errors.ErrCodeInvalidConfig,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mut(cfg)
			_, err := Bind(mustURL(t, tc.uri), cfg)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func TestBindAPIKeyOnly(t *testing.T) {
	cfg := validConfig()
	s := cfg.Services["acme"]
	s.Password = ""
	s.APIKey = "k-123"
	s.Container = "files"
	cfg.Services["acme"] = s

	b, err := Bind(mustURL(t, "swift://acme/data"), cfg)
	require.NoError(t, err)
	assert.Equal(t, "k-123", b.APIKey)
	assert.Empty(t, b.Password)
	assert.Equal(t, "files", b.Container)
}
