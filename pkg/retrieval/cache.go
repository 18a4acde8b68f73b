package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// cacheFile persists embeddings keyed by a content hash so unchanged
// documents are not embedded again. Vectors from a different model are
// discarded.
type cacheFile struct {
	Model   string               `json:"model"`
	Vectors map[string][]float32 `json:"vectors"`
}

func contentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func loadCache(path, model string) (*cacheFile, error) {
	empty := &cacheFile{Model: model, Vectors: make(map[string][]float32)}
	if path == "" {
		return empty, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("read embedding cache: %w", err)
	}

	var c cacheFile
	if err := json.Unmarshal(data, &c); err != nil {
		return empty, fmt.Errorf("decode embedding cache: %w", err)
	}
	if c.Model != model || c.Vectors == nil {
		return empty, nil
	}
	return &c, nil
}

func (c *cacheFile) save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode embedding cache: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write embedding cache: %w", err)
	}
	return os.Rename(tmp, path)
}
