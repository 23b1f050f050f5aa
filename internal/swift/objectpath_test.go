package swift

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPathForPath(t *testing.T) {
	cases := []struct {
		name string
		path string
		want string
	}{
		{"plain path", "/a/b/c", "data/a/b/c"},
		{"no leading slash", "a/b", "data/a/b"},
		{"auth context stripped", "/v1/AUTH_1234/a/b", "data/a/b"},
		{"nested auth context stripped", "/x/AUTH_abc/y", "data/y"},
		{"root", "/", "data/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := ObjectPathForPath("data", tc.path)
			assert.Equal(t, tc.want, p.UriPath())
		})
	}
}

func TestObjectPathEquality(t *testing.T) {
	// Different (container, key) splits that normalize to the same URI
	// path compare equal.
	a := NewObjectPath("data", "/a/b")
	b := NewObjectPath("data", "a/b")
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.UriPath(), b.UriPath())

	c := NewObjectPath("data", "/a/c")
	assert.False(t, a.Equal(c))
}

func TestObjectPathParentAndRoot(t *testing.T) {
	p := ObjectPathForPath("data", "/a/b/c")
	assert.Equal(t, "data/a/b", p.Parent().UriPath())
	assert.Equal(t, "data/a", p.Parent().Parent().UriPath())
	assert.Equal(t, "data/", p.Parent().Parent().Parent().UriPath())
	assert.True(t, p.Parent().Parent().Parent().IsRoot())
	assert.False(t, p.IsRoot())
	assert.True(t, ObjectPathForPath("data", "/").IsRoot())
}

func TestPathToURL(t *testing.T) {
	endpoint, err := url.Parse("https://swift.example.org/v1/AUTH_t")
	require.NoError(t, err)

	t.Run("exactly one separating slash", func(t *testing.T) {
		withSlash, err := url.Parse("https://swift.example.org/v1/AUTH_t/")
		require.NoError(t, err)

		p := ObjectPathForPath("data", "/a/b")
		u1, err := pathToURL(endpoint, p)
		require.NoError(t, err)
		u2, err := pathToURL(withSlash, p)
		require.NoError(t, err)

		assert.Equal(t, "https://swift.example.org/v1/AUTH_t/data/a/b", u1.String())
		assert.Equal(t, u1.String(), u2.String())
	})

	t.Run("whitespace keys are percent encoded without plus", func(t *testing.T) {
		p := ObjectPathForPath("data", "/dir name/file one.txt")
		u, err := pathToURL(endpoint, p)
		require.NoError(t, err)
		assert.Equal(t,
			"https://swift.example.org/v1/AUTH_t/data/dir%20name/file%20one.txt",
			u.String())
		assert.NotContains(t, u.String(), "+")
	})
}

func TestPathMappingRoundTrip(t *testing.T) {
	// Mapping a path and building its URL reproduces the normalized
	// object key under the endpoint prefix.
	endpoint, err := url.Parse("https://swift.example.org/v1/AUTH_t")
	require.NoError(t, err)

	for _, path := range []string{"/a/b/c", "/x", "/deep/tree/of/keys"} {
		p := ObjectPathForPath("data", path)
		u, err := pathToURL(endpoint, p)
		require.NoError(t, err)

		got := u.Path[len(endpoint.Path):]
		assert.Equal(t, "/"+p.UriPath(), got)
	}
}
