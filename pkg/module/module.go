// Package module mounts prefixed HTTP modules, each with its own middleware stack.
package module

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JaimeStill/curator/pkg/middleware"
)

// Module serves a single-level path prefix such as "/api". Requests reach
// the inner handler with the prefix removed.
type Module struct {
	prefix string
	inner  http.Handler
	stack  middleware.Stack
	wrap   http.Handler
}

// New creates a Module for prefix. It panics when the prefix is not a
// single path segment with a leading slash.
func New(prefix string, inner http.Handler) *Module {
	if !strings.HasPrefix(prefix, "/") || len(prefix) < 2 || strings.Contains(prefix[1:], "/") {
		panic(fmt.Sprintf("module: invalid prefix %q", prefix))
	}
	return &Module{prefix: prefix, inner: inner}
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use adds middleware to the module's stack. Call before the module serves traffic.
func (m *Module) Use(fn middleware.Func) {
	m.stack.Use(fn)
	m.wrap = nil
}

// Handler returns the inner handler wrapped with the module's middleware.
func (m *Module) Handler() http.Handler {
	if m.wrap == nil {
		m.wrap = m.stack.Apply(m.inner)
	}
	return m.wrap
}

// ServeHTTP strips the prefix and dispatches to the wrapped handler.
func (m *Module) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, m.prefix)
	if rest == "" {
		rest = "/"
	}

	r2 := r.Clone(r.Context())
	r2.URL.Path = rest
	r2.URL.RawPath = ""
	m.Handler().ServeHTTP(w, r2)
}
