// Package middleware provides the HTTP middleware applied to API modules.
package middleware

import "net/http"

// Func wraps a handler with additional behavior.
type Func func(http.Handler) http.Handler

// Chain is an ordered middleware stack. The first Func added runs outermost.
type Chain struct {
	stack []Func
}

// New creates a Chain holding mws in order.
func New(mws ...Func) *Chain {
	c := &Chain{}
	c.Use(mws...)
	return c
}

// Use appends mws to the chain. Nil entries are skipped.
func (c *Chain) Use(mws ...Func) {
	for _, mw := range mws {
		if mw != nil {
			c.stack = append(c.stack, mw)
		}
	}
}

// Len returns the number of middleware in the chain.
func (c *Chain) Len() int {
	return len(c.stack)
}

// Then wraps handler with every middleware in the chain.
func (c *Chain) Then(handler http.Handler) http.Handler {
	for i := len(c.stack) - 1; i >= 0; i-- {
		handler = c.stack[i](handler)
	}
	return handler
}
