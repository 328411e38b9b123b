package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterStatus(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Status("🔍", "searching")
	w.Status("", "indented")

	out := buf.String()
	assert.Contains(t, out, "🔍 searching")
	assert.Contains(t, out, "   indented")
}

func TestWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Successf("indexed %d chunks", 3)
	w.Warningf("%d skipped", 1)
	w.Errorf("failed: %s", "boom")

	out := buf.String()
	assert.Contains(t, out, "✅ indexed 3 chunks")
	assert.Contains(t, out, "1 skipped")
	assert.Contains(t, out, "❌ failed: boom")
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name    string
		content string
		n       int
		want    []string
	}{
		{"truncates", "a\nb\nc\nd", 2, []string{"a", "b"}},
		{"short content", "a\nb", 5, []string{"a", "b"}},
		{"trims trailing blanks", "a\n\n\n", 3, []string{"a"}},
		{"empty", "", 3, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Snippet(tt.content, tt.n))
		})
	}
}
