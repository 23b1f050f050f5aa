package swift

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/swiftfs/swiftfs/pkg/errors"
)

// operation describes one REST request as data: verb, target, body and
// the status codes the caller accepts. A single executor consumes it,
// so per-verb behavior lives in these values rather than in types.
type operation struct {
	method  string
	url     string
	headers map[string]string

	// body and length describe the request payload. A replayable body
	// (nil or io.Seeker) is required for the 401 re-auth replay.
	body   io.Reader
	length int64

	// accept is the closed set of status codes that mean success for
	// this operation kind. Delete lists 404 here because deleting
	// something already gone is not a failure.
	accept []int

	// onAuthURL marks the authentication handshake itself: a 401 there
	// means bad credentials and is fatal, never replayed.
	onAuthURL bool
}

// do executes one operation. On success the response is returned with
// its body open; the caller owns closing it. On failure the body has
// been drained and closed and a typed error describes the outcome.
//
// A 401 from a non-auth endpoint triggers exactly one re-authentication
// and one replay of the same request; a second 401 surfaces as a
// connection failure, not a loop.
func (c *Client) do(ctx context.Context, op operation) (*http.Response, error) {
	resp, err := c.execute(ctx, op)
	if err != nil {
		return nil, err
	}
	if accepted(resp.StatusCode, op.accept) {
		return resp, nil
	}

	status := resp.StatusCode
	statusLine := resp.Status
	discard(resp)

	if status == http.StatusUnauthorized {
		if op.onAuthURL {
			return nil, errors.New(errors.ErrCodeAuthenticationFailed,
				"authentication rejected; check username and password/api_key").
				WithComponent("swift").WithRequest(op.method, op.url).
				WithStatus(status, statusLine)
		}

		c.metrics.RecordReauth()
		c.logger.Debug("token rejected, re-authenticating", "verb", op.method, "url", op.url)

		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		if err := rewind(op.body); err != nil {
			return nil, errors.New(errors.ErrCodeConnectionFailed,
				"cannot replay request body after re-authentication").
				WithComponent("swift").WithRequest(op.method, op.url).WithCause(err)
		}

		resp, err = c.execute(ctx, op)
		if err != nil {
			return nil, err
		}
		if accepted(resp.StatusCode, op.accept) {
			return resp, nil
		}
		status = resp.StatusCode
		statusLine = resp.Status
		discard(resp)

		if status == http.StatusUnauthorized {
			return nil, errors.New(errors.ErrCodeConnectionFailed,
				"request still unauthorized after re-authentication").
				WithComponent("swift").WithRequest(op.method, op.url).
				WithStatus(status, statusLine)
		}
	}

	return nil, mapStatus(op, status, statusLine)
}

// execute performs the transport round trip, retrying transport-level
// failures up to the binding's retry count. Status handling is the
// caller's concern; any response, whatever its code, is a successful
// round trip here.
func (c *Client) execute(ctx context.Context, op operation) (*http.Response, error) {
	var resp *http.Response
	first := true

	err := c.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		if !first {
			if err := rewind(op.body); err != nil {
				return errors.New(errors.ErrCodeInvalidState, "request body is not replayable").
					WithComponent("swift").WithRequest(op.method, op.url).WithCause(err)
			}
		}
		first = false

		req, err := http.NewRequestWithContext(ctx, op.method, op.url, op.body)
		if err != nil {
			return errors.Newf(errors.ErrCodePathInvalid, "cannot build request for %q", op.url).
				WithComponent("swift").WithCause(err)
		}
		if op.body != nil {
			req.ContentLength = op.length
		}
		for k, v := range op.headers {
			req.Header.Set(k, v)
		}
		if !op.onAuthURL {
			if s := c.currentSession(); s != nil {
				req.Header.Set(HeaderAuthToken, s.token)
			}
		}

		start := time.Now()
		resp, err = c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return errors.New(errors.ErrCodeConnectionTimeout, "request canceled or timed out").
					WithComponent("swift").WithRequest(op.method, op.url).WithCause(err)
			}
			return errors.Newf(errors.ErrCodeConnectionFailed, "transport failure").
				WithComponent("swift").WithRequest(op.method, op.url).WithCause(err)
		}

		c.metrics.RecordRequest(op.method, resp.StatusCode, time.Since(start).Seconds())
		c.logger.Debug("request", "verb", op.method, "url", op.url,
			"status", resp.StatusCode, "duration", time.Since(start))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// mapStatus translates a non-accepted status into the error taxonomy.
func mapStatus(op operation, status int, statusLine string) error {
	switch status {
	case http.StatusBadRequest:
		return errors.New(errors.ErrCodeBadRequest, "request rejected by the store").
			WithComponent("swift").WithRequest(op.method, op.url).
			WithStatus(status, statusLine)
	case http.StatusNotFound:
		return errors.New(errors.ErrCodeObjectNotFound, "no such object or container").
			WithComponent("swift").WithRequest(op.method, op.url).
			WithStatus(status, statusLine)
	case http.StatusRequestedRangeNotSatisfiable:
		return errors.New(errors.ErrCodeRangeInvalid, "requested range not satisfiable").
			WithComponent("swift").WithRequest(op.method, op.url).
			WithStatus(status, statusLine)
	default:
		return errors.Newf(errors.ErrCodeInvalidResponse, "unexpected status %d", status).
			WithComponent("swift").WithRequest(op.method, op.url).
			WithStatus(status, statusLine)
	}
}

func accepted(status int, accept []int) bool {
	for _, s := range accept {
		if s == status {
			return true
		}
	}
	return false
}

// discard drains and closes a response body so the connection can be
// reused. Called on every non-returned response.
func discard(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// rewind resets a replayable body to its start. Bodies are either nil
// or seekable; anything else cannot survive a retry or 401 replay.
func rewind(body io.Reader) error {
	if body == nil {
		return nil
	}
	if s, ok := body.(io.Seeker); ok {
		_, err := s.Seek(0, io.SeekStart)
		return err
	}
	return errors.New(errors.ErrCodeInvalidState, "non-seekable request body")
}
