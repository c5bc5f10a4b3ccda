package module

import (
	"net/http"
	"strings"
)

// Router sends each request to the module owning the first path segment.
// Paths no module owns fall through to a plain ServeMux.
type Router struct {
	mounted  map[string]*Module
	fallback *http.ServeMux
}

func NewRouter() *Router {
	return &Router{
		mounted:  map[string]*Module{},
		fallback: http.NewServeMux(),
	}
}

// HandleNative registers a handler for paths outside every module.
func (r *Router) HandleNative(pattern string, handler http.HandlerFunc) {
	r.fallback.HandleFunc(pattern, handler)
}

// Mount attaches m under its prefix, replacing any module already there.
func (r *Router) Mount(m *Module) {
	r.mounted[m.prefix] = m
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if p := req.URL.Path; len(p) > 1 {
		req.URL.Path = strings.TrimSuffix(p, "/")
	}

	segment, _, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if m, ok := r.mounted["/"+segment]; ok {
		m.ServeHTTP(w, req)
		return
	}
	r.fallback.ServeHTTP(w, req)
}
