package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Montabos/Projet/pkg/routes"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()

	patterns := routes.Register(mux, routes.Group{
		Prefix: "/items",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: ok},
			{Method: "GET", Pattern: "/{id}", Handler: ok},
		},
	})

	if len(patterns) != 2 || patterns[0] != "GET /items" || patterns[1] != "GET /items/{id}" {
		t.Errorf("patterns: got %v", patterns)
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"list items", "GET", "/items", http.StatusOK},
		{"get item", "GET", "/items/123", http.StatusOK},
		{"wrong method", "POST", "/items", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestNestedGroups(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux, routes.Group{
		Prefix: "/api",
		Children: []routes.Group{
			{
				Prefix: "/v1",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/items", Handler: ok},
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/items", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("nested route: got %d, want 200", rec.Code)
	}
}

func TestMountBase(t *testing.T) {
	mux := http.NewServeMux()

	patterns := routes.Mount(mux, "/api/", routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/resume", Handler: ok},
		},
	})

	if len(patterns) != 1 || patterns[0] != "POST /api/runs/{id}/resume" {
		t.Errorf("patterns: got %v", patterns)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/runs/abc/resume", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("mounted route: got %d, want 200", rec.Code)
	}
}
