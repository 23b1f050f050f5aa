/*
Package config resolves filesystem URIs into immutable endpoint
bindings.

Configuration is YAML with environment overlays. Each Swift endpoint is
a named entry under services:, keyed by the short alias used as the host
of a swift://<alias>/path URI, so one process can talk to several
clusters at once. Bind copies the named entry into a Binding, applies
defaults, and rejects anything structurally unusable (dotted alias,
missing credentials, both secrets set, relative auth URL) before any
network traffic happens.
*/
package config
