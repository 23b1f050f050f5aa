package swift

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/swiftfs/swiftfs/pkg/errors"
)

// authContext matches the account segment keystone injects into
// storage URLs. Paths arriving from that form are normalized so the
// object key never embeds an account id.
var authContext = regexp.MustCompile(`^.*/AUTH_\w*/`)

// ObjectPath addresses one object as a (container, key) pair. Two
// values are equal when their URI paths are equal, however the original
// string was split between container and key.
type ObjectPath struct {
	container string
	object    string
}

// NewObjectPath builds a path from an explicit container and key.
func NewObjectPath(container, object string) ObjectPath {
	return ObjectPath{container: container, object: object}
}

// ObjectPathForPath maps a hierarchical filesystem path onto the
// container named by the binding, stripping any auth-context segment.
func ObjectPathForPath(container, path string) ObjectPath {
	object := authContext.ReplaceAllString(path, "/")
	if !strings.HasPrefix(object, "/") {
		object = "/" + object
	}
	return ObjectPath{container: container, object: object}
}

// Container returns the container part.
func (p ObjectPath) Container() string { return p.container }

// Object returns the key part.
func (p ObjectPath) Object() string { return p.object }

// UriPath is the canonical form: container and key joined by exactly
// one slash. Equality and map keys are defined on this string.
func (p ObjectPath) UriPath() string {
	if strings.HasPrefix(p.object, "/") {
		return p.container + p.object
	}
	return p.container + "/" + p.object
}

// Equal reports whether two paths normalize to the same URI path.
func (p ObjectPath) Equal(other ObjectPath) bool {
	return p.UriPath() == other.UriPath()
}

// Parent returns the path one level up, or the container root.
func (p ObjectPath) Parent() ObjectPath {
	key := strings.TrimSuffix(p.object, "/")
	idx := strings.LastIndex(key, "/")
	if idx <= 0 {
		return ObjectPath{container: p.container, object: "/"}
	}
	return ObjectPath{container: p.container, object: key[:idx]}
}

// IsRoot reports whether the path addresses the container root.
func (p ObjectPath) IsRoot() bool {
	key := strings.TrimSuffix(p.object, "/")
	return key == ""
}

func (p ObjectPath) String() string {
	return "swift://" + p.UriPath()
}

// encodeObjectKey percent-encodes key segments that contain whitespace.
// Swift rejects a literal + as a space inside the path component, so
// the + produced by query-style escaping is rewritten to %20.
func encodeObjectKey(key string) string {
	if !strings.ContainsAny(key, " \t") {
		return key
	}
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	}
	return strings.Join(segs, "/")
}

// pathToURL joins an endpoint and an object path with exactly one
// separating slash, encoding the key as needed.
func pathToURL(endpoint *url.URL, p ObjectPath) (*url.URL, error) {
	base := strings.TrimSuffix(endpoint.String(), "/")
	key := encodeObjectKey(p.UriPath())
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	u, err := url.Parse(base + key)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodePathInvalid,
			"cannot form a URL for %q against %q", p.UriPath(), endpoint).
			WithComponent("swift").WithCause(err)
	}
	return u, nil
}
