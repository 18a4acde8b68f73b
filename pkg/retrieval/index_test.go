package retrieval_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Montabos/Projet/pkg/retrieval"
)

var vocabulary = []string{"meeting", "invoice", "travel", "budget"}

// keywordEmbedder maps text to keyword counts over a fixed vocabulary.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
	texts int
	err   error
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.texts += len(texts)
	e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make([]float32, len(vocabulary))
		for j, word := range vocabulary {
			v[j] = float32(strings.Count(lower, word))
		}
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedder) EmbeddingModel() string { return "keyword-v1" }

func (e *keywordEmbedder) embeddedTexts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.texts
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func newConfig(t *testing.T, dir string) *retrieval.Config {
	t.Helper()
	cfg := &retrieval.Config{
		Dir:       dir,
		Cache:     filepath.Join(t.TempDir(), "embeddings.json"),
		BatchSize: 2,
	}
	require.NoError(t, cfg.Finalize(nil))
	return cfg
}

func TestIndexSearch(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"meeting.md":       "Meeting notes: the meeting moved to Monday.",
		"finance/inv.md":   "Invoice 42 is overdue. Budget review pending.",
		"travel/policy.md": "Travel policy: book travel two weeks ahead.",
	})

	emb := &keywordEmbedder{}
	ix := retrieval.NewIndex(emb, newConfig(t, dir), discard())

	_, err := ix.Search(context.Background(), "meeting", 3)
	assert.ErrorIs(t, err, retrieval.ErrNotIndexed)

	require.NoError(t, ix.Build(context.Background()))
	assert.True(t, ix.Ready())
	assert.Equal(t, 3, ix.Len())

	matches, err := ix.Search(context.Background(), "confirm the meeting", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "meeting.md", matches[0].Source)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)

	matches, err = ix.Search(context.Background(), "budget", 5)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
	assert.Equal(t, "finance/inv.md", matches[0].Source)
}

func TestIndexUsesCache(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.md": "meeting",
		"b.md": "invoice",
	})
	cfg := newConfig(t, dir)

	first := &keywordEmbedder{}
	require.NoError(t, retrieval.NewIndex(first, cfg, discard()).Build(context.Background()))
	assert.Equal(t, 2, first.embeddedTexts())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.md"), []byte("travel"), 0o644))

	second := &keywordEmbedder{}
	ix := retrieval.NewIndex(second, cfg, discard())
	require.NoError(t, ix.Build(context.Background()))

	assert.Equal(t, 1, second.embeddedTexts(), "only the new document is embedded")
	assert.Equal(t, 3, ix.Len())
}

func TestIndexBuildErrors(t *testing.T) {
	t.Run("embedder failure keeps previous entries", func(t *testing.T) {
		dir := writeCorpus(t, map[string]string{"a.md": "meeting"})
		cfg := newConfig(t, dir)
		cfg.Cache = ""

		emb := &keywordEmbedder{}
		ix := retrieval.NewIndex(emb, cfg, discard())
		require.NoError(t, ix.Build(context.Background()))

		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("invoice"), 0o644))
		emb.err = errors.New("quota exceeded")

		assert.Error(t, ix.Build(context.Background()))
		assert.Equal(t, 1, ix.Len())
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		cfg := newConfig(t, filepath.Join(t.TempDir(), "absent"))
		ix := retrieval.NewIndex(&keywordEmbedder{}, cfg, discard())

		require.NoError(t, ix.Build(context.Background()))
		matches, err := ix.Search(context.Background(), "meeting", 5)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestConfigFinalize(t *testing.T) {
	cfg := &retrieval.Config{}
	require.NoError(t, cfg.Finalize(nil))
	assert.Equal(t, "**/*.md", cfg.Pattern)
	assert.True(t, cfg.WatchEnabled())

	t.Setenv("TEST_CORPUS_WATCH", "false")
	cfg = &retrieval.Config{}
	require.NoError(t, cfg.Finalize(&retrieval.Env{Watch: "TEST_CORPUS_WATCH"}))
	assert.False(t, cfg.WatchEnabled())

	bad := &retrieval.Config{Pattern: "[unclosed"}
	assert.Error(t, bad.Finalize(nil))
}
