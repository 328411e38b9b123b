package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillsearch/quill/internal/output"
	"github.com/quillsearch/quill/internal/search"
	"github.com/quillsearch/quill/internal/ui"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	topK          int
	vectorWeight  float64
	keywordWeight float64
	format        string // "text", "json"
	explain       bool
	keywordOnly   bool
	vectorOnly    bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <terms>...",
		Short: "Search the indexed documents",
		Long: `Query runs dense vector search and BM25 keyword search in parallel
and fuses the two rankings with Reciprocal Rank Fusion.

Examples:
  quill query "error handling strategy"
  quill query "retry backoff" -n 10 --explain
  quill query "invoice" --keyword-only --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64Var(&opts.vectorWeight, "vector-weight", -1, "Vector ranking weight (default from config)")
	cmd.Flags().Float64Var(&opts.keywordWeight, "keyword-weight", -1, "Keyword ranking weight (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show per-method ranks and scores")
	cmd.Flags().BoolVar(&opts.keywordOnly, "keyword-only", false, "Keyword search only (skips query embedding)")
	cmd.Flags().BoolVar(&opts.vectorOnly, "vector-only", false, "Vector search only")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, query string, opts queryOptions) error {
	if opts.keywordOnly && opts.vectorOnly {
		return fmt.Errorf("--keyword-only and --vector-only are mutually exclusive")
	}

	engine, cfg, cleanup, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	searchOpts := search.QueryOptions{TopK: opts.topK}

	weights := search.Weights{
		Vector:  cfg.Search.VectorWeight,
		Keyword: cfg.Search.KeywordWeight,
	}
	if opts.vectorWeight >= 0 {
		weights.Vector = opts.vectorWeight
	}
	if opts.keywordWeight >= 0 {
		weights.Keyword = opts.keywordWeight
	}
	if opts.keywordOnly {
		weights.Vector = 0
	}
	if opts.vectorOnly {
		weights.Keyword = 0
	}
	searchOpts.Weights = &weights

	results, err := engine.Query(ctx, query, searchOpts)
	if err != nil {
		if errors.Is(err, search.ErrNoDocumentsIndexed) {
			output.New(cmd.OutOrStdout()).Status("", "No documents indexed. Run 'quill ingest' first.")
			return nil
		}
		return err
	}

	switch opts.format {
	case "json":
		return writeJSONResults(cmd, results)
	default:
		renderer := ui.NewResultRenderer(cmd.OutOrStdout(), noColor, opts.explain)
		renderer.Render(query, results)
		return nil
	}
}

// writeJSONResults emits results as indented JSON for scripting.
func writeJSONResults(cmd *cobra.Command, results []*search.FusedResult) error {
	type jsonResult struct {
		ChunkID      string   `json:"chunk_id"`
		DocumentID   string   `json:"document_id"`
		Score        float64  `json:"score"`
		VectorRank   int      `json:"vector_rank,omitempty"`
		KeywordRank  int      `json:"keyword_rank,omitempty"`
		MatchedTerms []string `json:"matched_terms,omitempty"`
		Text         string   `json:"text"`
	}

	out := make([]jsonResult, 0, len(results))
	for _, r := range results {
		out = append(out, jsonResult{
			ChunkID:      r.ChunkID,
			DocumentID:   r.DocumentID,
			Score:        r.FusedScore,
			VectorRank:   r.VecRank,
			KeywordRank:  r.KeywordRank,
			MatchedTerms: r.MatchedTerms,
			Text:         r.Text,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
