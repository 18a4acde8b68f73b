package retrieval

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

var frontMatterDelim = []byte("---")

type frontMatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// LoadCorpus reads every file in fsys matching pattern. Files are returned
// in lexical path order. Empty files are skipped.
func LoadCorpus(fsys fs.FS, pattern string) ([]Document, error) {
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("match corpus pattern %q: %w", pattern, err)
	}
	slices.Sort(matches)

	docs := make([]Document, 0, len(matches))
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		doc, err := ParseDocument(name, data)
		if err != nil {
			return nil, err
		}
		if doc.Content == "" {
			continue
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// ParseDocument splits optional YAML front matter from a markdown body.
// Front matter is a leading block enclosed by "---" lines. Without a title
// in front matter, the file name stem is used.
func ParseDocument(source string, data []byte) (Document, error) {
	doc := Document{Source: source}
	body := data

	if meta, rest, ok := splitFrontMatter(data); ok {
		var fm frontMatter
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return Document{}, fmt.Errorf("parse front matter in %s: %w", source, err)
		}
		doc.Title = fm.Title
		doc.Tags = fm.Tags
		body = rest
	}

	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(path.Base(source), path.Ext(source))
	}
	doc.Content = strings.TrimSpace(string(body))
	return doc, nil
}

func splitFrontMatter(data []byte) (meta, body []byte, ok bool) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	first, rest, found := bytes.Cut(data, []byte("\n"))
	if !found || !bytes.Equal(bytes.TrimSpace(first), frontMatterDelim) {
		return nil, data, false
	}

	for offset := 0; offset < len(rest); {
		line, _, _ := bytes.Cut(rest[offset:], []byte("\n"))
		if bytes.Equal(bytes.TrimSpace(line), frontMatterDelim) {
			end := offset + len(line)
			if end < len(rest) {
				end++
			}
			return rest[:offset], rest[end:], true
		}
		offset += len(line) + 1
	}

	return nil, data, false
}

// embedText is the text sent to the embedder for a document.
func (d Document) embedText() string {
	if d.Title == "" {
		return d.Content
	}
	return d.Title + "\n\n" + d.Content
}
