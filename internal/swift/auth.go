package swift

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/swiftfs/swiftfs/pkg/errors"
)

// Catalog identifiers under which a Swift service may appear.
var (
	serviceCatalogNames = []string{"swift", "cloudFiles", "cloudfiles"}
	serviceCatalogType  = "object-store"
)

const objectEndpointPath = "/object_endpoint"

// keystone wire types.

type authRequest struct {
	Auth authPayload `json:"auth"`
}

type authPayload struct {
	PasswordCredentials *passwordCredentials `json:"passwordCredentials,omitempty"`
	APIKeyCredentials   *apiKeyCredentials   `json:"apiKeyCredentials,omitempty"`
	TenantName          string               `json:"tenantName,omitempty"`
}

type passwordCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type apiKeyCredentials struct {
	Username string `json:"username"`
	APIKey   string `json:"apiKey"`
}

type authResponse struct {
	Access struct {
		Token struct {
			ID     string `json:"id"`
			Tenant struct {
				ID string `json:"id"`
			} `json:"tenant"`
		} `json:"token"`
		ServiceCatalog []catalogEntry `json:"serviceCatalog"`
	} `json:"access"`
}

type catalogEntry struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Endpoints []catalogEndpoint `json:"endpoints"`
}

type catalogEndpoint struct {
	Region      string `json:"region"`
	PublicURL   string `json:"publicURL"`
	InternalURL string `json:"internalURL"`
}

// Authenticate runs the configured auth protocol and swaps in a fresh
// session. Concurrent callers each perform a full handshake; the last
// one to finish wins, which is harmless because authentication is
// idempotent.
func (c *Client) Authenticate(ctx context.Context) error {
	var (
		s   *session
		err error
	)
	switch c.binding.AuthMethod {
	case "swauth":
		s, err = c.authenticateSwauth(ctx)
	default:
		s, err = c.authenticateKeystone(ctx)
	}
	if err != nil {
		return err
	}

	c.setSession(s)
	c.logger.Debug("authenticated", "endpoint", s.endpoint.String())

	c.provisionOnce.Do(func() {
		if perr := c.CreateContainer(ctx); perr != nil {
			c.logger.Warn("default container provisioning failed",
				"container", c.binding.Container, "error", perr)
		}
	})

	return nil
}

// authenticateKeystone POSTs credentials as JSON and walks the service
// catalog for an object-store endpoint.
func (c *Client) authenticateKeystone(ctx context.Context) (*session, error) {
	payload := authPayload{TenantName: c.binding.Tenant}
	if c.binding.Password != "" {
		payload.PasswordCredentials = &passwordCredentials{
			Username: c.binding.Username,
			Password: c.binding.Password,
		}
	} else {
		payload.APIKeyCredentials = &apiKeyCredentials{
			Username: c.binding.Username,
			APIKey:   c.binding.APIKey,
		}
	}

	body, err := json.Marshal(authRequest{Auth: payload})
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidState, "cannot encode auth request").
			WithComponent("swift").WithOperation("authenticate").WithCause(err)
	}

	resp, err := c.do(ctx, operation{
		method:    http.MethodPost,
		url:       c.binding.AuthURL.String(),
		body:      bytes.NewReader(body),
		length:    int64(len(body)),
		headers:   map[string]string{HeaderContentType: "application/json"},
		accept:    []int{http.StatusOK, http.StatusNonAuthoritativeInfo},
		onAuthURL: true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidResponse, "malformed auth response body").
			WithComponent("swift").WithOperation("authenticate").
			WithRequest(http.MethodPost, c.binding.AuthURL.String()).WithCause(err)
	}
	if parsed.Access.Token.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidResponse, "auth response carries no token").
			WithComponent("swift").WithOperation("authenticate").
			WithRequest(http.MethodPost, c.binding.AuthURL.String())
	}

	endpoint, err := c.selectEndpoint(parsed.Access.ServiceCatalog)
	if err != nil {
		return nil, err
	}

	objectLocation, err := url.Parse(fmt.Sprintf("%s://%s%s/AUTH_%s",
		endpoint.Scheme, endpoint.Host, objectEndpointPath, parsed.Access.Token.Tenant.ID))
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidResponse, "cannot derive object-location URL").
			WithComponent("swift").WithOperation("authenticate").WithCause(err)
	}

	return &session{
		token:          parsed.Access.Token.ID,
		endpoint:       endpoint,
		objectLocation: objectLocation,
	}, nil
}

// selectEndpoint walks the catalog for a Swift entry and picks the
// endpoint matching the configured region, or the first endpoint when no
// region is set. The error on a miss lists everything that was searched
// so a misconfigured region is diagnosable from the message alone.
func (c *Client) selectEndpoint(catalog []catalogEntry) (*url.URL, error) {
	var searched []string
	for _, entry := range catalog {
		searched = append(searched, fmt.Sprintf("%s/%s", entry.Name, entry.Type))
		if !matchesSwift(entry) {
			continue
		}
		for _, ep := range entry.Endpoints {
			searched = append(searched, fmt.Sprintf("  region %q", ep.Region))
			if c.binding.Region != "" && ep.Region != c.binding.Region {
				continue
			}
			raw := ep.InternalURL
			if c.binding.UsePublicURL || raw == "" {
				raw = ep.PublicURL
			}
			if raw == "" {
				continue
			}
			u, err := url.Parse(raw)
			if err != nil {
				return nil, errors.Newf(errors.ErrCodeInvalidResponse,
					"catalog endpoint URL %q is malformed", raw).
					WithComponent("swift").WithOperation("authenticate").WithCause(err)
			}
			return u, nil
		}
	}

	return nil, errors.Newf(errors.ErrCodeAuthenticationFailed,
		"no object-store endpoint for region %q in service catalog; searched: %s",
		c.binding.Region, strings.Join(searched, ", ")).
		WithComponent("swift").WithOperation("authenticate")
}

func matchesSwift(entry catalogEntry) bool {
	if entry.Type == serviceCatalogType {
		return true
	}
	for _, name := range serviceCatalogNames {
		if entry.Name == name {
			return true
		}
	}
	return false
}

// authenticateSwauth runs the legacy header-token handshake: a GET with
// the credentials in X-Storage headers; the token and storage URL come
// back as response headers, no body parse and no catalog walk.
func (c *Client) authenticateSwauth(ctx context.Context) (*session, error) {
	resp, err := c.do(ctx, operation{
		method: http.MethodGet,
		url:    c.binding.AuthURL.String(),
		headers: map[string]string{
			HeaderStorageUser: c.binding.Username,
			HeaderStoragePass: c.binding.Password,
		},
		accept:    []int{http.StatusOK, http.StatusNoContent},
		onAuthURL: true,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	token := resp.Header.Get(HeaderAuthToken)
	if token == "" {
		token = resp.Header.Get(HeaderStorageToken)
	}
	storageURL := resp.Header.Get(HeaderStorageURL)
	if token == "" || storageURL == "" {
		return nil, errors.New(errors.ErrCodeInvalidResponse,
			"swauth response lacks token or storage URL headers").
			WithComponent("swift").WithOperation("authenticate").
			WithRequest(http.MethodGet, c.binding.AuthURL.String())
	}

	endpoint, err := url.Parse(storageURL)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeInvalidResponse,
			"swauth storage URL %q is malformed", storageURL).
			WithComponent("swift").WithOperation("authenticate").WithCause(err)
	}

	return &session{
		token:          token,
		endpoint:       endpoint,
		objectLocation: endpoint,
	}, nil
}
