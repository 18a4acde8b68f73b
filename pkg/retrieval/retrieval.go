// Package retrieval provides similarity search over a directory of markdown
// documents. Documents are embedded once, kept in memory, and ranked by
// cosine similarity against the embedded query.
package retrieval

import (
	"context"
	"errors"
)

var (
	// ErrNotIndexed indicates a search before the first successful build.
	ErrNotIndexed = errors.New("corpus not indexed")
	// ErrDimensionMismatch indicates the embedder returned vectors of
	// inconsistent length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Document is a single corpus file.
type Document struct {
	Source  string   `json:"source"`
	Title   string   `json:"title,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Content string   `json:"content"`
}

// Match is a document ranked against a query.
type Match struct {
	Document
	Score float64 `json:"score"`
}

// Searcher returns the k documents most similar to query, best first.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Match, error)
}
