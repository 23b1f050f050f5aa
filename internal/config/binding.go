package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/swiftfs/swiftfs/pkg/errors"
)

// Binding is the immutable per-filesystem-instance record produced by
// Bind. Every component downstream of the binder reads its knobs from
// here and never from the raw configuration.
type Binding struct {
	// Service is the short instance name taken from the filesystem URI
	// host. It doubles as the Swift container name.
	Service string

	AuthURL   *url.URL
	Username  string
	Password  string
	APIKey    string
	Tenant    string
	Region    string
	Container string

	// AuthMethod is "keystone" (token-catalog) or "swauth"
	// (header-token).
	AuthMethod string

	// UsePublicURL selects the catalog publicURL over internalURL.
	UsePublicURL bool

	RetryCount     int
	ConnectTimeout time.Duration
	ThrottleDelay  time.Duration

	ProxyHost string
	ProxyPort int

	PartitionSize int64
}

// Bind resolves the filesystem URI against the configuration into a
// Binding. The URI host must be a short service alias: a host containing
// a dot is a fully-qualified name, which the per-instance lookup scheme
// does not support. Bind performs no network I/O.
func Bind(fsURI *url.URL, cfg *Configuration) (*Binding, error) {
	host := fsURI.Host
	if host == "" {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"filesystem URI %q has no host to use as a service name", fsURI).
			WithComponent("config").WithOperation("bind")
	}
	if strings.Contains(host, ".") {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"service name %q must be a short alias without dots", host).
			WithComponent("config").WithOperation("bind")
	}

	svc, ok := cfg.Services[host]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeMissingConfig,
			"no configuration for service %q under services:", host).
			WithComponent("config").WithOperation("bind")
	}

	if svc.AuthURL == "" {
		return nil, missingKey(host, "auth_url")
	}
	if svc.Username == "" {
		return nil, missingKey(host, "username")
	}
	if svc.Password == "" && svc.APIKey == "" {
		return nil, errors.Newf(errors.ErrCodeMissingConfig,
			"service %q needs one of password or api_key", host).
			WithComponent("config").WithOperation("bind")
	}
	if svc.Password != "" && svc.APIKey != "" {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"service %q sets both password and api_key; exactly one secret is allowed", host).
			WithComponent("config").WithOperation("bind")
	}

	authURL, err := url.Parse(svc.AuthURL)
	if err != nil || !authURL.IsAbs() {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"service %q auth_url %q is not an absolute URL", host, svc.AuthURL).
			WithComponent("config").WithOperation("bind").WithCause(err)
	}

	b := &Binding{
		Service:        host,
		AuthURL:        authURL,
		Username:       svc.Username,
		Password:       svc.Password,
		APIKey:         svc.APIKey,
		Tenant:         svc.Tenant,
		Region:         svc.Region,
		Container:      svc.Container,
		AuthMethod:     svc.AuthMethod,
		UsePublicURL:   svc.Public,
		RetryCount:     svc.RetryCount,
		ConnectTimeout: svc.ConnectTimeout,
		ThrottleDelay:  svc.ThrottleDelay,
		ProxyHost:      svc.ProxyHost,
		ProxyPort:      svc.ProxyPort,
		PartitionSize:  svc.PartitionSize,
	}

	if b.Container == "" {
		b.Container = host
	}
	if b.AuthMethod == "" {
		b.AuthMethod = DefaultAuthMethod
	}
	if b.RetryCount == 0 {
		b.RetryCount = DefaultRetryCount
	}
	if b.ConnectTimeout == 0 {
		b.ConnectTimeout = DefaultConnectTimeout
	}
	if b.ProxyHost != "" && b.ProxyPort == 0 {
		b.ProxyPort = DefaultProxyPort
	}
	if b.PartitionSize == 0 {
		b.PartitionSize = DefaultPartitionSize
	}

	return b, nil
}

func missingKey(service, key string) error {
	return errors.Newf(errors.ErrCodeMissingConfig,
		"service %q is missing required key %s", service, key).
		WithComponent("config").WithOperation("bind")
}
