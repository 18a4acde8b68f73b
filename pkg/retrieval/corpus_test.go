package retrieval_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Montabos/Projet/pkg/retrieval"
)

func TestParseDocument(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		data    string
		want    retrieval.Document
		wantErr bool
	}{
		{
			name:   "plain body",
			source: "threads/meeting.md",
			data:   "\n# Meeting\n\nSee you Monday.\n",
			want: retrieval.Document{
				Source:  "threads/meeting.md",
				Title:   "meeting",
				Content: "# Meeting\n\nSee you Monday.",
			},
		},
		{
			name:   "front matter",
			source: "templates/thanks.md",
			data:   "---\ntitle: Thank you note\ntags: [client, template]\n---\nDear Client,\nThank you.\n",
			want: retrieval.Document{
				Source:  "templates/thanks.md",
				Title:   "Thank you note",
				Tags:    []string{"client", "template"},
				Content: "Dear Client,\nThank you.",
			},
		},
		{
			name:   "unterminated front matter is body",
			source: "notes.md",
			data:   "---\ntitle: x\nbody",
			want: retrieval.Document{
				Source:  "notes.md",
				Title:   "notes",
				Content: "---\ntitle: x\nbody",
			},
		},
		{
			name:    "invalid yaml",
			source:  "bad.md",
			data:    "---\ntitle: [unclosed\n---\nbody",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := retrieval.ParseDocument(tt.source, []byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadCorpus(t *testing.T) {
	fsys := fstest.MapFS{
		"a.md":               {Data: []byte("alpha")},
		"nested/deep/b.md":   {Data: []byte("beta")},
		"nested/ignored.txt": {Data: []byte("text")},
		"empty.md":           {Data: []byte("   \n")},
	}

	docs, err := retrieval.LoadCorpus(fsys, "**/*.md")
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "a.md", docs[0].Source)
	assert.Equal(t, "nested/deep/b.md", docs[1].Source)
	assert.Equal(t, "beta", docs[1].Content)
}
