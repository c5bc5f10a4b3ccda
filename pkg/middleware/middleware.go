// Package middleware provides HTTP middleware and an ordered middleware stack.
package middleware

import (
	"net/http"
	"slices"
)

// Func wraps a handler with cross-cutting behavior.
type Func func(http.Handler) http.Handler

// Stack is an ordered list of middleware. The first entry is the outermost.
type Stack []Func

// Use appends fn to the stack.
func (s *Stack) Use(fn Func) {
	*s = append(*s, fn)
}

// Apply wraps handler so that requests pass through the stack in order.
func (s Stack) Apply(handler http.Handler) http.Handler {
	for _, fn := range slices.Backward(s) {
		handler = fn(handler)
	}
	return handler
}
