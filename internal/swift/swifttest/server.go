// Package swifttest provides an in-memory Swift server for tests. It
// speaks just enough of the protocol to exercise the client end to end:
// keystone and swauth handshakes, object CRUD, COPY, prefix listings,
// byte ranges, and large-object manifests.
package swifttest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// Token issued by the fake handshakes.
	TestToken = "st-0123456789abcdef"
	// TenantID reported in keystone responses.
	TestTenantID = "tenant01"
)

type object struct {
	data     []byte
	modified time.Time
	manifest string
	meta     map[string]string
}

// Server is one in-memory Swift cluster behind an httptest listener.
type Server struct {
	ts *httptest.Server

	mu         sync.Mutex
	containers map[string]map[string]*object

	// Username/Password accepted by the handshakes.
	Username string
	Password string

	// RejectTokens forces 401 on data-path requests until the client
	// re-authenticates; used to test the reauth-and-replay path.
	rejectNext int
	authCount  int

	// truncateNext cuts object GET bodies short, simulating a
	// connection dropped mid-transfer.
	truncateNext  int
	truncateAfter int
}

// NewServer starts a fake cluster accepting the given credentials.
func NewServer(username, password string) *Server {
	s := &Server{
		containers: map[string]map[string]*object{},
		Username:   username,
		Password:   password,
	}
	s.ts = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Close shuts the listener down.
func (s *Server) Close() { s.ts.Close() }

// AuthURL is the keystone tokens endpoint.
func (s *Server) AuthURL() string { return s.ts.URL + "/v2.0/tokens" }

// SwauthURL is the header-token auth endpoint.
func (s *Server) SwauthURL() string { return s.ts.URL + "/auth/v1.0" }

// URL is the raw server address.
func (s *Server) URL() string { return s.ts.URL }

// AuthCount reports how many successful handshakes the server served.
func (s *Server) AuthCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCount
}

// RejectNextRequests makes the next n data-path requests fail with 401
// regardless of token, simulating token expiry.
func (s *Server) RejectNextRequests(n int) {
	s.mu.Lock()
	s.rejectNext = n
	s.mu.Unlock()
}

// TruncateNextResponses makes the next n object GET bodies stop after
// the given byte count. The declared Content-Length still names the
// full size, so the client observes a connection dropped mid-body.
func (s *Server) TruncateNextResponses(n, after int) {
	s.mu.Lock()
	s.truncateNext = n
	s.truncateAfter = after
	s.mu.Unlock()
}

// PutObject seeds an object directly, bypassing the HTTP surface.
func (s *Server) PutObject(container, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.container(container)
	c[key] = &object{data: data, modified: time.Now()}
}

// ObjectData returns a stored object's bytes for assertions.
func (s *Server) ObjectData(container, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[container]
	if !ok {
		return nil, false
	}
	o, ok := c[key]
	if !ok {
		return nil, false
	}
	return o.data, true
}

func (s *Server) container(name string) map[string]*object {
	c, ok := s.containers[name]
	if !ok {
		c = map[string]*object{}
		s.containers[name] = c
	}
	return c
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v2.0/tokens" && r.Method == http.MethodPost:
		s.handleKeystone(w, r)
	case r.URL.Path == "/auth/v1.0" && r.Method == http.MethodGet:
		s.handleSwauth(w, r)
	default:
		s.handleData(w, r)
	}
}

func (s *Server) handleKeystone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Auth struct {
			PasswordCredentials *struct {
				Username string `json:"username"`
				Password string `json:"password"`
			} `json:"passwordCredentials"`
			APIKeyCredentials *struct {
				Username string `json:"username"`
				APIKey   string `json:"apiKey"`
			} `json:"apiKeyCredentials"`
		} `json:"auth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ok := false
	if pc := req.Auth.PasswordCredentials; pc != nil {
		ok = pc.Username == s.Username && pc.Password == s.Password
	} else if ac := req.Auth.APIKeyCredentials; ac != nil {
		ok = ac.Username == s.Username && ac.APIKey == s.Password
	}
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	s.authCount++
	s.mu.Unlock()

	resp := map[string]interface{}{
		"access": map[string]interface{}{
			"token": map[string]interface{}{
				"id":     TestToken,
				"tenant": map[string]string{"id": TestTenantID},
			},
			"serviceCatalog": []map[string]interface{}{
				{
					"name": "nova",
					"type": "compute",
					"endpoints": []map[string]string{
						{"region": "RegionOne", "publicURL": s.ts.URL + "/compute"},
					},
				},
				{
					"name": "swift",
					"type": "object-store",
					"endpoints": []map[string]string{
						{
							"region":      "RegionOne",
							"publicURL":   s.ts.URL + "/v1/AUTH_" + TestTenantID,
							"internalURL": s.ts.URL + "/v1/AUTH_" + TestTenantID,
						},
					},
				},
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleSwauth(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Storage-User") != s.Username ||
		r.Header.Get("X-Storage-Pass") != s.Password {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.mu.Lock()
	s.authCount++
	s.mu.Unlock()
	w.Header().Set("X-Auth-Token", TestToken)
	w.Header().Set("X-Storage-Url", s.ts.URL+"/v1/AUTH_"+TestTenantID)
	w.WriteHeader(http.StatusOK)
}

// handleData serves the /v1/AUTH_<tenant>/<container>[/<key>] surface.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.rejectNext > 0 {
		s.rejectNext--
		s.mu.Unlock()
		http.Error(w, "token expired", http.StatusUnauthorized)
		return
	}
	s.mu.Unlock()

	if r.Header.Get("X-Auth-Token") != TestToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	trimmed := strings.TrimPrefix(r.URL.Path, "/v1/AUTH_"+TestTenantID)
	trimmed = strings.TrimPrefix(trimmed, "/")
	containerName, key, hasKey := strings.Cut(trimmed, "/")
	if containerName == "" {
		http.Error(w, "no container", http.StatusBadRequest)
		return
	}

	if !hasKey || key == "" {
		s.handleContainer(w, r, containerName)
		return
	}
	s.handleObject(w, r, containerName, "/"+key)
}

func (s *Server) handleContainer(w http.ResponseWriter, r *http.Request, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		if _, ok := s.containers[name]; ok {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		s.container(name)
		w.WriteHeader(http.StatusCreated)

	case http.MethodHead:
		c, ok := s.containers[name]
		if !ok {
			http.Error(w, "no such container", http.StatusNotFound)
			return
		}
		var bytesUsed int64
		for _, o := range c {
			bytesUsed += int64(len(o.data))
		}
		w.Header().Set("X-Container-Object-Count", strconv.Itoa(len(c)))
		w.Header().Set("X-Container-Bytes-Used", strconv.FormatInt(bytesUsed, 10))
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		c, ok := s.containers[name]
		if !ok {
			http.Error(w, "no such container", http.StatusNotFound)
			return
		}
		prefix := r.URL.Query().Get("prefix")
		delimiter := r.URL.Query().Get("delimiter")

		seen := map[string]bool{}
		var keys []string
		for k := range c {
			rel := strings.TrimPrefix(k, "/")
			if !strings.HasPrefix(rel, prefix) {
				continue
			}
			entry := rel
			if delimiter != "" {
				rest := rel[len(prefix):]
				if idx := strings.Index(rest, delimiter); idx >= 0 {
					entry = prefix + rest[:idx+len(delimiter)]
				}
			}
			if !seen[entry] {
				seen[entry] = true
				keys = append(keys, entry)
			}
		}
		if len(keys) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		sort.Strings(keys)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, strings.Join(keys, "\n"))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request, containerName, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[containerName]
	if !ok {
		http.Error(w, "no such container", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPut:
		data := readAll(r)
		var meta map[string]string
		for k, v := range r.Header {
			if strings.HasPrefix(k, "X-Object-Meta-") && len(v) > 0 {
				if meta == nil {
					meta = map[string]string{}
				}
				meta[k] = v[0]
			}
		}
		c[key] = &object{
			data:     data,
			modified: time.Now(),
			manifest: r.Header.Get("X-Object-Manifest"),
			meta:     meta,
		}
		w.WriteHeader(http.StatusCreated)

	case http.MethodHead, http.MethodGet:
		o, ok := c[key]
		if !ok {
			http.Error(w, "no such object", http.StatusNotFound)
			return
		}
		data := o.data
		if o.manifest != "" {
			data = s.assemble(o.manifest)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Last-Modified", o.modified.UTC().Format(http.TimeFormat))
		if o.manifest != "" {
			w.Header().Set("X-Object-Manifest", o.manifest)
		}
		for k, v := range o.meta {
			w.Header().Set(k, v)
		}

		if rng := r.Header.Get("Range"); rng != "" && r.Method == http.MethodGet {
			start, end, ok := parseRange(rng, int64(len(data)))
			if !ok {
				w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
				return
			}
			w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
			w.WriteHeader(http.StatusPartialContent)
			s.sendBody(w, data[start:end+1])
			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			s.sendBody(w, data)
		}

	case http.MethodDelete:
		if _, ok := c[key]; !ok {
			http.Error(w, "no such object", http.StatusNotFound)
			return
		}
		delete(c, key)
		w.WriteHeader(http.StatusNoContent)

	case "COPY":
		o, ok := c[key]
		if !ok {
			http.Error(w, "no such object", http.StatusNotFound)
			return
		}
		dest := r.Header.Get("Destination")
		if dest == "" {
			http.Error(w, "no destination", http.StatusBadRequest)
			return
		}
		dc, dk, _ := strings.Cut(strings.TrimPrefix(dest, "/"), "/")
		target := s.container(dc)
		cp := *o
		cp.modified = time.Now()
		target["/"+dk] = &cp
		w.WriteHeader(http.StatusCreated)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// sendBody writes an object payload, honoring a pending truncation.
// Headers declaring the full length are already out, so a short write
// reaches the client as an aborted body, not a clean EOF. Caller holds
// the lock.
func (s *Server) sendBody(w http.ResponseWriter, payload []byte) {
	if s.truncateNext > 0 {
		s.truncateNext--
		cut := s.truncateAfter
		if cut > len(payload) {
			cut = len(payload)
		}
		w.Write(payload[:cut])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		return
	}
	w.Write(payload)
}

// assemble concatenates the segment objects named by a manifest prefix
// (<container>/<key-prefix>) in key order.
func (s *Server) assemble(manifest string) []byte {
	cname, prefix, _ := strings.Cut(strings.TrimPrefix(manifest, "/"), "/")
	c, ok := s.containers[cname]
	if !ok {
		return nil
	}
	var keys []string
	for k := range c {
		rel := strings.TrimPrefix(k, "/")
		if strings.HasPrefix(rel, prefix) && c[k].manifest == "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var out []byte
	for _, k := range keys {
		out = append(out, c[k].data...)
	}
	return out
}

func parseRange(header string, size int64) (start, end int64, ok bool) {
	header = strings.TrimPrefix(header, "bytes=")
	a, b, found := strings.Cut(header, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(a, 10, 64)
	if err != nil || start >= size {
		return 0, 0, false
	}
	end = size - 1
	if b != "" {
		if e, err := strconv.ParseInt(b, 10, 64); err == nil && e < end {
			end = e
		}
	}
	if end < start {
		return 0, 0, false
	}
	return start, end, true
}

func readAll(r *http.Request) []byte {
	defer r.Body.Close()
	data, _ := io.ReadAll(r.Body)
	return data
}
