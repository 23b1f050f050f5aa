// Package swift implements the OpenStack Swift REST client: session
// management, the request engine, path mapping, and the object-store
// operations the filesystem layer builds on.
package swift

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/swiftfs/swiftfs/internal/config"
	"github.com/swiftfs/swiftfs/pkg/errors"
	"github.com/swiftfs/swiftfs/pkg/retry"
)

// Swift protocol headers.
const (
	HeaderAuthToken     = "X-Auth-Token"
	HeaderNewest        = "X-Newest"
	HeaderManifest      = "X-Object-Manifest"
	HeaderDestination   = "Destination"
	HeaderStorageUser   = "X-Storage-User"
	HeaderStoragePass   = "X-Storage-Pass"
	HeaderStorageURL    = "X-Storage-Url"
	HeaderStorageToken  = "X-Storage-Token"
	HeaderObjectCount   = "X-Container-Object-Count"
	HeaderBytesUsed     = "X-Container-Bytes-Used"
	HeaderRange         = "Range"
	HeaderContentLength = "Content-Length"
	HeaderLastModified  = "Last-Modified"
	HeaderETag          = "Etag"
	HeaderContentType   = "Content-Type"

	// HeaderObjectMetaPrefix marks user metadata headers on objects.
	HeaderObjectMetaPrefix = "X-Object-Meta-"
)

// session is the authenticated triple. It is immutable once built and
// swapped wholesale, so a reader can never observe a token from one
// authentication cycle paired with an endpoint from another.
type session struct {
	token          string
	endpoint       *url.URL
	objectLocation *url.URL
}

// Client executes Swift REST operations for one endpoint binding. It is
// safe for use by multiple goroutines sharing a filesystem instance.
type Client struct {
	binding    *config.Binding
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *Metrics
	retryer    *retry.Retryer

	mu   sync.Mutex
	sess *session

	provisionOnce sync.Once
}

// NewClient builds a client from a binding. The HTTP client is owned by
// this instance; nothing here touches process-global transport state.
func NewClient(binding *config.Binding, logger *slog.Logger) (*Client, error) {
	if binding == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "nil binding").
			WithComponent("swift")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// The configured timeout bounds connection setup and time to first
	// response byte, never the body transfer: a ranged read window or a
	// multi-gigabyte part upload may legitimately run for minutes.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   binding.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.ResponseHeaderTimeout = binding.ConnectTimeout
	if binding.ProxyHost != "" {
		proxyURL, err := url.Parse(fmt.Sprintf("http://%s:%d", binding.ProxyHost, binding.ProxyPort))
		if err != nil {
			return nil, errors.Newf(errors.ErrCodeInvalidConfig,
				"invalid proxy %s:%d", binding.ProxyHost, binding.ProxyPort).
				WithComponent("swift").WithCause(err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = binding.RetryCount

	c := &Client{
		binding: binding,
		httpClient: &http.Client{
			Transport: transport,
		},
		logger:  logger.With("component", "swift", "service", binding.Service),
		metrics: NewMetrics(binding.Service),
	}
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.metrics.RecordRetry()
		c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "error", err)
	}
	c.retryer = retry.New(retryCfg)

	return c, nil
}

// Binding returns the endpoint binding this client was built from.
func (c *Client) Binding() *config.Binding { return c.binding }

// Metrics returns the client's request metrics.
func (c *Client) Metrics() *Metrics { return c.metrics }

// currentSession returns the session snapshot, or nil when
// unauthenticated.
func (c *Client) currentSession() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// setSession swaps in a freshly authenticated triple. Concurrent
// authenticators may race; the last writer wins.
func (c *Client) setSession(s *session) {
	c.mu.Lock()
	c.sess = s
	c.mu.Unlock()
}

// EnsureAuthenticated authenticates on first use and is a no-op once a
// session exists.
func (c *Client) EnsureAuthenticated(ctx context.Context) error {
	if c.currentSession() != nil {
		return nil
	}
	return c.Authenticate(ctx)
}

// Endpoint returns the authenticated data endpoint.
func (c *Client) Endpoint() (*url.URL, error) {
	s := c.currentSession()
	if s == nil {
		return nil, errors.New(errors.ErrCodeInvalidState, "client is not authenticated").
			WithComponent("swift")
	}
	return s.endpoint, nil
}

// PathForObject maps a hierarchical filesystem path onto this binding's
// container.
func (c *Client) PathForObject(path string) ObjectPath {
	return ObjectPathForPath(c.binding.Container, path)
}
