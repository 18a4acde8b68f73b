// Package module mounts self-contained HTTP handlers under single-level path
// prefixes.
package module

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Montabos/Projet/pkg/middleware"
)

// ErrInvalidPrefix is returned for prefixes that are empty, relative, or
// nested.
var ErrInvalidPrefix = errors.New("invalid module prefix")

// Module is an HTTP handler that strips its prefix and delegates to an inner
// router with its own middleware stack.
type Module struct {
	prefix     string
	router     http.Handler
	middleware *middleware.Chain
}

// New creates a Module with the given single-level prefix (e.g. "/api").
// A trailing slash is ignored.
func New(prefix string, router http.Handler) (*Module, error) {
	prefix = strings.TrimSuffix(prefix, "/")
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	return &Module{
		prefix:     prefix,
		router:     router,
		middleware: middleware.New(),
	}, nil
}

// Handler returns the inner router wrapped with the module's middleware stack.
func (m *Module) Handler() http.Handler {
	return m.middleware.Then(m.router)
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Serve strips the module prefix from the request path and dispatches to the
// inner router.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	path := extractPath(req.URL.Path, m.prefix)
	m.Handler().ServeHTTP(w, cloneRequest(req, path))
}

// ServeHTTP serves requests that already carry the module prefix.
func (m *Module) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	m.Serve(w, req)
}

// Use adds middleware to the module's stack.
func (m *Module) Use(mws ...middleware.Func) {
	m.middleware.Use(mws...)
}

func cloneRequest(req *http.Request, path string) *http.Request {
	request := new(http.Request)
	*request = *req
	request.URL = new(url.URL)
	*request.URL = *req.URL
	request.URL.Path = path
	request.URL.RawPath = ""
	return request
}

func extractPath(fullPath, prefix string) string {
	path := strings.TrimPrefix(fullPath, prefix)
	if path == "" {
		return "/"
	}
	return path
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPrefix)
	}
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("%w: must start with /: %s", ErrInvalidPrefix, prefix)
	}
	if strings.Count(prefix, "/") != 1 {
		return fmt.Errorf("%w: must be a single-level sub-path: %s", ErrInvalidPrefix, prefix)
	}
	return nil
}
