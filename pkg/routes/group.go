// Package routes declares HTTP route groups and registers them on a ServeMux.
package routes

import "net/http"

// Route binds a method and a pattern relative to its group to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Group organizes routes under a common prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		group.walk("", func(pattern string, h http.HandlerFunc) {
			mux.HandleFunc(pattern, h)
		})
	}
}

// Patterns returns the fully qualified ServeMux patterns of the group and its children.
func (g Group) Patterns() []string {
	var patterns []string
	g.walk("", func(pattern string, _ http.HandlerFunc) {
		patterns = append(patterns, pattern)
	})
	return patterns
}

func (g Group) walk(parentPrefix string, fn func(pattern string, h http.HandlerFunc)) {
	prefix := parentPrefix + g.Prefix
	for _, route := range g.Routes {
		fn(route.Method+" "+prefix+route.Pattern, route.Handler)
	}
	for _, child := range g.Children {
		child.walk(prefix, fn)
	}
}
