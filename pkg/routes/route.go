package routes

import "net/http"

// Route binds an HTTP method and pattern to a handler. Pattern is relative
// to the enclosing group prefix and may be empty.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// under returns the ServeMux pattern for r beneath prefix.
func (r Route) under(prefix string) string {
	path := prefix + r.Pattern
	if path == "" {
		path = "/"
	}
	return r.Method + " " + path
}
