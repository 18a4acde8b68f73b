// Package websearch queries an external web search service for fresh
// information.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrEmptyQuery indicates a search without query text.
var ErrEmptyQuery = errors.New("search query must not be empty")

// Result is a single search hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Tavily is a Searcher backed by the Tavily search API.
type Tavily struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	maxResults int
	depth      string
}

// NewTavily creates a Tavily client from a finalized config.
func NewTavily(cfg *Config) *Tavily {
	return &Tavily{
		client:     &http.Client{Timeout: cfg.TimeoutDuration()},
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/") + "/search",
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		depth:      cfg.Depth,
	}
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []Result `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	body, err := json.Marshal(tavilyRequest{
		Query:       query,
		MaxResults:  t.maxResults,
		SearchDepth: t.depth,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if len(out.Results) > t.maxResults {
		out.Results = out.Results[:t.maxResults]
	}
	return out.Results, nil
}
