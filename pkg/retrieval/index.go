package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Montabos/Projet/pkg/llm"
)

type entry struct {
	doc    Document
	vector []float32
	norm   float64
}

// Index is an in-memory Searcher rebuilt from the corpus directory.
// Search may run concurrently with Build; a build swaps the entries only
// once every document has been embedded.
type Index struct {
	embedder  llm.Embedder
	model     string
	dir       string
	pattern   string
	cachePath string
	batchSize int
	workers   int
	logger    *slog.Logger

	mu      sync.RWMutex
	entries []entry
	built   bool
}

type embeddingModeler interface {
	EmbeddingModel() string
}

// NewIndex creates an empty index over cfg.Dir. Call Build before Search.
func NewIndex(embedder llm.Embedder, cfg *Config, logger *slog.Logger) *Index {
	model := "default"
	if em, ok := embedder.(embeddingModeler); ok {
		model = em.EmbeddingModel()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Index{
		embedder:  embedder,
		model:     model,
		dir:       cfg.Dir,
		pattern:   cfg.Pattern,
		cachePath: cfg.Cache,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger.With("system", "retrieval"),
	}
}

// Dir returns the corpus directory.
func (ix *Index) Dir() string {
	return ix.dir
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Ready reports whether a build has completed.
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.built
}

// Build loads the corpus, embeds documents missing from the cache, and
// replaces the index contents. A missing corpus directory yields an empty
// index.
func (ix *Index) Build(ctx context.Context) error {
	start := time.Now()

	docs, err := ix.load()
	if err != nil {
		return err
	}

	cache, err := loadCache(ix.cachePath, ix.model)
	if err != nil {
		ix.logger.WarnContext(ctx, "embedding cache ignored", "error", err)
	}

	vectors := make([][]float32, len(docs))
	keys := make([]string, len(docs))
	var missing []int
	for i, d := range docs {
		keys[i] = contentKey(d.embedText())
		if v, ok := cache.Vectors[keys[i]]; ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, i)
	}

	if err := ix.embed(ctx, docs, missing, vectors); err != nil {
		return err
	}

	entries := make([]entry, 0, len(docs))
	fresh := make(map[string][]float32, len(docs))
	dim := -1
	for i, d := range docs {
		if dim == -1 {
			dim = len(vectors[i])
		} else if len(vectors[i]) != dim {
			return fmt.Errorf("%w: %s has %d, expected %d", ErrDimensionMismatch, d.Source, len(vectors[i]), dim)
		}
		fresh[keys[i]] = vectors[i]
		entries = append(entries, entry{doc: d, vector: vectors[i], norm: norm(vectors[i])})
	}

	cache.Vectors = fresh
	if err := cache.save(ix.cachePath); err != nil {
		ix.logger.WarnContext(ctx, "embedding cache not saved", "error", err)
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.built = true
	ix.mu.Unlock()

	ix.logger.InfoContext(
		ctx, "corpus indexed",
		"documents", len(entries),
		"embedded", len(missing),
		"cached", len(docs)-len(missing),
		"duration", time.Since(start),
	)
	return nil
}

func (ix *Index) load() ([]Document, error) {
	info, err := os.Stat(ix.dir)
	if os.IsNotExist(err) {
		ix.logger.Warn("corpus directory missing, index is empty", "dir", ix.dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat corpus dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory", ix.dir)
	}
	return LoadCorpus(os.DirFS(ix.dir), ix.pattern)
}

func (ix *Index) embed(ctx context.Context, docs []Document, missing []int, vectors [][]float32) error {
	if len(missing) == 0 {
		return nil
	}

	batches := slices.Collect(slices.Chunk(missing, ix.batchSize))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(min(ix.workers, len(batches)), 1))

	for _, batch := range batches {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			texts := make([]string, len(batch))
			for j, i := range batch {
				texts[j] = docs[i].embedText()
			}

			out, err := ix.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed %s: %w", docs[batch[0]].Source, err)
			}
			if len(out) != len(batch) {
				return fmt.Errorf("embed returned %d vectors for %d documents", len(out), len(batch))
			}

			for j, i := range batch {
				vectors[i] = out[j]
			}
			return nil
		})
	}

	return g.Wait()
}

// Search embeds query and returns up to k documents ordered by cosine
// similarity, highest first. Ties keep corpus order.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	ix.mu.RLock()
	entries := ix.entries
	built := ix.built
	ix.mu.RUnlock()

	if !built {
		return nil, ErrNotIndexed
	}
	if k <= 0 || len(entries) == 0 {
		return nil, nil
	}

	out, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("embed returned %d vectors for query", len(out))
	}
	q := out[0]
	qn := norm(q)

	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		if len(e.vector) != len(q) {
			return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(q), len(e.vector))
		}
		matches = append(matches, Match{Document: e.doc, Score: cosine(q, qn, e.vector, e.norm)})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
