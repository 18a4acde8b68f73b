package routes

import (
	"net/http"
	"strings"
)

// Group organizes routes under a common prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux and returns the
// patterns it registered, in registration order.
func Register(mux *http.ServeMux, groups ...Group) []string {
	return Mount(mux, "", groups...)
}

// Mount registers groups beneath base. A trailing slash on base is ignored.
func Mount(mux *http.ServeMux, base string, groups ...Group) []string {
	base = strings.TrimSuffix(base, "/")

	var patterns []string
	for _, group := range groups {
		patterns = registerGroup(mux, base, group, patterns)
	}
	return patterns
}

func registerGroup(mux *http.ServeMux, parentPrefix string, group Group, patterns []string) []string {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		pattern := route.under(fullPrefix)
		mux.HandleFunc(pattern, route.Handler)
		patterns = append(patterns, pattern)
	}
	for _, child := range group.Children {
		patterns = registerGroup(mux, fullPrefix, child, patterns)
	}
	return patterns
}
