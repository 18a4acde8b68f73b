package module

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// ErrDuplicatePrefix is returned when two modules claim the same prefix.
var ErrDuplicatePrefix = errors.New("module prefix already mounted")

// Router dispatches requests to mounted modules by their first path
// segment and falls back to a native ServeMux for everything else.
type Router struct {
	modules map[string]*Module
	native  *http.ServeMux
}

// NewRouter creates a Router with no modules and an empty fallback mux.
func NewRouter() *Router {
	return &Router{
		modules: make(map[string]*Module),
		native:  http.NewServeMux(),
	}
}

// HandleNative registers a handler function on the fallback mux.
func (r *Router) HandleNative(pattern string, handler http.HandlerFunc) {
	r.native.HandleFunc(pattern, handler)
}

// Handle registers a handler on the fallback mux.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.native.Handle(pattern, handler)
}

// Mount registers modules under their prefixes. Nothing is mounted when
// any prefix is already taken.
func (r *Router) Mount(modules ...*Module) error {
	seen := make(map[string]bool, len(modules))
	for _, m := range modules {
		if _, exists := r.modules[m.prefix]; exists || seen[m.prefix] {
			return fmt.Errorf("%w: %s", ErrDuplicatePrefix, m.prefix)
		}
		seen[m.prefix] = true
	}
	for _, m := range modules {
		r.modules[m.prefix] = m
	}
	return nil
}

// Prefixes returns the mounted module prefixes in sorted order.
func (r *Router) Prefixes() []string {
	out := make([]string, 0, len(r.modules))
	for prefix := range r.modules {
		out = append(out, prefix)
	}
	slices.Sort(out)
	return out
}

// ServeHTTP dispatches to the matching module or falls back to the native
// mux. A trailing slash is dropped before matching.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if path := req.URL.Path; len(path) > 1 && strings.HasSuffix(path, "/") {
		req = cloneRequest(req, strings.TrimSuffix(path, "/"))
	}

	if m, ok := r.modules[firstSegment(req.URL.Path)]; ok {
		m.Serve(w, req)
		return
	}
	r.native.ServeHTTP(w, req)
}

func firstSegment(path string) string {
	rest := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return "/" + rest
}
