package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/quillsearch/quill/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, format string) error {
	engine, _, cleanup, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	stats := engine.Stats()

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"state":          stats.State,
			"documents":      stats.DocumentCount,
			"chunks":         stats.ChunkCount,
			"terms":          stats.Terms,
			"version":        stats.IndexVersion,
			"dimensions":     stats.Dimensions,
			"vector_backend": stats.VectorBackend,
		})
	}

	ui.NewResultRenderer(cmd.OutOrStdout(), noColor, false).RenderStats(stats)
	return nil
}
