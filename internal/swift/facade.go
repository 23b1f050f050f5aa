package swift

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/swiftfs/swiftfs/pkg/errors"
	"github.com/swiftfs/swiftfs/pkg/types"
)

// listFetchLimit caps one listing page. Swift itself serves at most
// 10000 entries per request.
const listFetchLimit = 10000

// HeadObject fetches object metadata. A response with no headers at all
// is treated as absence. Container-aggregate headers mark the entry as
// a directory; otherwise Content-Length and Last-Modified describe a
// file, and an unparseable Last-Modified is a hard error rather than a
// defaulted timestamp.
func (c *Client) HeadObject(ctx context.Context, path ObjectPath) (*types.ObjectMetadata, bool, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, false, err
	}
	u, err := c.objectURL(path)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.do(ctx, operation{
		method:  http.MethodHead,
		url:     u,
		headers: map[string]string{HeaderNewest: "true"},
		accept:  []int{http.StatusOK, http.StatusNoContent},
	})
	if err != nil {
		return nil, false, err
	}
	defer discard(resp)

	if len(resp.Header) == 0 {
		return nil, false, errors.Newf(errors.ErrCodeObjectNotFound,
			"no metadata for %s", path).
			WithComponent("swift").WithOperation("head")
	}

	if resp.Header.Get(HeaderObjectCount) != "" || resp.Header.Get(HeaderBytesUsed) != "" {
		return &types.ObjectMetadata{Key: path.Object()}, true, nil
	}

	meta := &types.ObjectMetadata{
		Key:         path.Object(),
		ETag:        resp.Header.Get(HeaderETag),
		ContentType: resp.Header.Get(HeaderContentType),
		Manifest:    resp.Header.Get(HeaderManifest),
	}
	for k, v := range resp.Header {
		if strings.HasPrefix(k, HeaderObjectMetaPrefix) && len(v) > 0 {
			if meta.Headers == nil {
				meta.Headers = map[string]string{}
			}
			meta.Headers[k] = v[0]
		}
	}
	if v := resp.Header.Get(HeaderContentLength); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false, errors.Newf(errors.ErrCodeInvalidResponse,
				"malformed Content-Length %q for %s", v, path).
				WithComponent("swift").WithOperation("head").WithCause(err)
		}
		meta.Size = n
	}
	if v := resp.Header.Get(HeaderLastModified); v != "" {
		ts, err := http.ParseTime(v)
		if err != nil {
			return nil, false, errors.Newf(errors.ErrCodeInvalidResponse,
				"malformed Last-Modified %q for %s", v, path).
				WithComponent("swift").WithOperation("head").WithCause(err)
		}
		meta.LastModified = ts
	}

	return meta, false, nil
}

// GetObject opens the full object content. The request carries
// X-Newest so reads are served from the latest replica rather than a
// stale one.
func (c *Client) GetObject(ctx context.Context, path ObjectPath) (io.ReadCloser, error) {
	return c.getObject(ctx, path, nil)
}

// GetObjectRange opens the byte range [rng.Offset, rng.Offset+rng.Size-1]
// of the object.
func (c *Client) GetObjectRange(ctx context.Context, path ObjectPath, rng types.Range) (io.ReadCloser, error) {
	hdr := fmt.Sprintf("bytes=%d-%d", rng.Offset, rng.Offset+rng.Size-1)
	return c.getObject(ctx, path, map[string]string{HeaderRange: hdr})
}

func (c *Client) getObject(ctx context.Context, path ObjectPath, extra map[string]string) (io.ReadCloser, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}
	u, err := c.objectURL(path)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{HeaderNewest: "true"}
	for k, v := range extra {
		headers[k] = v
	}

	resp, err := c.do(ctx, operation{
		method:  http.MethodGet,
		url:     u,
		headers: headers,
		accept:  []int{http.StatusOK, http.StatusPartialContent},
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ListPrefix lists object keys under a prefix, used to emulate
// directory listing over the flat namespace. A 404 from the store is
// normalized to an empty listing; absence of matches is not a fault.
func (c *Client) ListPrefix(ctx context.Context, path ObjectPath, delimiter bool) ([]string, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}
	s := c.currentSession()

	prefix := strings.TrimPrefix(path.Object(), "/")
	q := fmt.Sprintf("?prefix=%s&limit=%d", queryEscapePreserveSlash(prefix), listFetchLimit)
	if delimiter {
		q += "&delimiter=/"
	}
	u := strings.TrimSuffix(s.endpoint.String(), "/") + "/" + path.Container() + "/" + q

	resp, err := c.do(ctx, operation{
		method:  http.MethodGet,
		url:     u,
		headers: map[string]string{HeaderNewest: "true"},
		accept:  []int{http.StatusOK, http.StatusNoContent},
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "listing read failed").
			WithComponent("swift").WithOperation("list").WithCause(err)
	}
	c.metrics.RecordBytes("in", int64(len(data)))

	var keys []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			keys = append(keys, line)
		}
	}
	return keys, nil
}

// PutObject uploads body as the object at path. It serves whole-object
// uploads, zero-length directory markers, and manifest objects alike;
// extra headers carry X-Object-Manifest for the latter.
func (c *Client) PutObject(ctx context.Context, path ObjectPath, body io.Reader, length int64, extra map[string]string) error {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return err
	}
	u, err := c.objectURL(path)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, operation{
		method:  http.MethodPut,
		url:     u,
		headers: extra,
		body:    body,
		length:  length,
		accept: []int{http.StatusOK, http.StatusCreated,
			http.StatusAccepted, http.StatusNoContent},
	})
	if err != nil {
		return err
	}
	discard(resp)
	c.metrics.RecordBytes("out", length)
	return nil
}

// DeleteObject removes the object. Deleting something already gone is
// accepted silently, but the return value is true only when the store
// confirms content was actually removed.
func (c *Client) DeleteObject(ctx context.Context, path ObjectPath) (bool, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return false, err
	}
	u, err := c.objectURL(path)
	if err != nil {
		return false, err
	}

	resp, err := c.do(ctx, operation{
		method: http.MethodDelete,
		url:    u,
		accept: []int{http.StatusOK, http.StatusAccepted,
			http.StatusNoContent, http.StatusNotFound},
	})
	if err != nil {
		return false, err
	}
	removed := resp.StatusCode == http.StatusNoContent
	discard(resp)
	return removed, nil
}

// CopyObject performs a server-side copy via the COPY verb with a
// Destination header, avoiding a download round trip. Only 201 Created
// counts as success.
func (c *Client) CopyObject(ctx context.Context, src, dst ObjectPath) error {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return err
	}
	u, err := c.objectURL(src)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, operation{
		method:  "COPY",
		url:     u,
		headers: map[string]string{HeaderDestination: dst.UriPath()},
		accept:  []int{http.StatusCreated},
	})
	if err != nil {
		return err
	}
	discard(resp)
	return nil
}

// CreateContainer provisions the binding's container. PUT over an
// existing container returns 202, so re-provisioning is idempotent.
func (c *Client) CreateContainer(ctx context.Context) error {
	s := c.currentSession()
	if s == nil {
		return errors.New(errors.ErrCodeInvalidState, "client is not authenticated").
			WithComponent("swift").WithOperation("createContainer")
	}
	u := strings.TrimSuffix(s.endpoint.String(), "/") + "/" + c.binding.Container

	resp, err := c.do(ctx, operation{
		method: http.MethodPut,
		url:    u,
		accept: []int{http.StatusOK, http.StatusCreated,
			http.StatusAccepted, http.StatusNoContent},
	})
	if err != nil {
		return err
	}
	discard(resp)
	return nil
}

// ContainerStats HEADs the container and returns its aggregate
// counters, distinguishing an empty container from a missing one.
func (c *Client) ContainerStats(ctx context.Context) (*types.ContainerStats, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}
	s := c.currentSession()
	u := strings.TrimSuffix(s.endpoint.String(), "/") + "/" + c.binding.Container

	resp, err := c.do(ctx, operation{
		method: http.MethodHead,
		url:    u,
		accept: []int{http.StatusOK, http.StatusNoContent},
	})
	if err != nil {
		return nil, err
	}
	defer discard(resp)

	stats := &types.ContainerStats{}
	if v := resp.Header.Get(HeaderObjectCount); v != "" {
		stats.ObjectCount, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := resp.Header.Get(HeaderBytesUsed); v != "" {
		stats.BytesUsed, _ = strconv.ParseInt(v, 10, 64)
	}
	return stats, nil
}

// CheckHealth verifies cluster connectivity with a container HEAD,
// authenticating first if needed.
func (c *Client) CheckHealth(ctx context.Context) error {
	_, err := c.ContainerStats(ctx)
	return err
}

// GetObjectLocation queries the object-location endpoint for the
// replica URIs holding the object, for block-location-style placement
// queries.
func (c *Client) GetObjectLocation(ctx context.Context, path ObjectPath) ([]string, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}
	s := c.currentSession()
	u, err := pathToURL(s.objectLocation, path)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, operation{
		method: http.MethodGet,
		url:    u.String(),
		accept: []int{http.StatusOK},
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	var uris []string
	if err := json.NewDecoder(resp.Body).Decode(&uris); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidResponse, "malformed object-location response").
			WithComponent("swift").WithOperation("getObjectLocation").WithCause(err)
	}
	return uris, nil
}

// objectURL resolves an object path against the authenticated endpoint.
func (c *Client) objectURL(path ObjectPath) (string, error) {
	s := c.currentSession()
	if s == nil {
		return "", errors.New(errors.ErrCodeInvalidState, "client is not authenticated").
			WithComponent("swift")
	}
	u, err := pathToURL(s.endpoint, path)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// queryEscapePreserveSlash escapes a listing prefix for use in a query
// string while keeping path separators readable.
func queryEscapePreserveSlash(s string) string {
	segs := strings.Split(s, "/")
	for i, seg := range segs {
		segs[i] = strings.ReplaceAll(strings.ReplaceAll(seg, "%", "%25"), " ", "%20")
	}
	return strings.Join(segs, "/")
}
