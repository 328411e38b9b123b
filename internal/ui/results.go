package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/quillsearch/quill/internal/output"
	"github.com/quillsearch/quill/internal/search"
)

// ResultRenderer writes fused results in a human-readable layout.
type ResultRenderer struct {
	out     io.Writer
	styles  Styles
	explain bool
}

// NewResultRenderer creates a renderer. With explain enabled, per-method
// ranks and scores are shown under each result.
func NewResultRenderer(out io.Writer, noColor, explain bool) *ResultRenderer {
	return &ResultRenderer{out: out, styles: GetStyles(noColor), explain: explain}
}

// Render writes the result list for a query.
func (r *ResultRenderer) Render(query string, results []*search.FusedResult) {
	if len(results) == 0 {
		fmt.Fprintf(r.out, "%s\n", r.styles.Label.Render(fmt.Sprintf("No results for %q", query)))
		return
	}

	header := fmt.Sprintf("Found %d results for %q", len(results), query)
	fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render(header))

	for i, res := range results {
		rank := r.styles.Rank.Render(fmt.Sprintf("%d.", i+1))
		doc := r.styles.Doc.Render(res.DocumentID)
		score := r.styles.Score.Render(fmt.Sprintf("score: %.4f", res.FusedScore))
		fmt.Fprintf(r.out, "%s %s (%s)\n", rank, doc, score)

		if r.explain {
			fmt.Fprintf(r.out, "   %s\n", r.styles.Label.Render(r.explainLine(res)))
		}

		for _, line := range output.Snippet(res.Text, 3) {
			fmt.Fprintf(r.out, "   %s\n", r.styles.Snippet.Render(line))
		}
		fmt.Fprintln(r.out)
	}
}

// explainLine formats per-method rank and score details for one result.
func (r *ResultRenderer) explainLine(res *search.FusedResult) string {
	vec := "vector: -"
	if res.VecRank > 0 {
		vec = fmt.Sprintf("vector: rank %d (%.4f)", res.VecRank, res.VecScore)
	}
	kw := "keyword: -"
	if res.KeywordRank > 0 {
		kw = fmt.Sprintf("keyword: rank %d (%.4f)", res.KeywordRank, res.KeywordScore)
	}
	line := vec + " | " + kw
	if len(res.MatchedTerms) > 0 {
		line += " | terms: " + strings.Join(res.MatchedTerms, ", ")
	}
	return line
}

// RenderStats writes an engine stats summary.
func (r *ResultRenderer) RenderStats(stats search.EngineStats) {
	fmt.Fprintf(r.out, "%s\n", r.styles.Header.Render("Index status"))
	rows := []struct {
		label string
		value string
	}{
		{"State", string(stats.State)},
		{"Documents", fmt.Sprintf("%d", stats.DocumentCount)},
		{"Chunks", fmt.Sprintf("%d", stats.ChunkCount)},
		{"Terms", fmt.Sprintf("%d", stats.Terms)},
		{"Version", fmt.Sprintf("%d", stats.IndexVersion)},
		{"Dimensions", fmt.Sprintf("%d", stats.Dimensions)},
		{"Vector backend", stats.VectorBackend},
	}
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %s %s\n",
			r.styles.Label.Render(fmt.Sprintf("%-15s", row.label)),
			row.value)
	}
}
