package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/quillsearch/quill/internal/output"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>...",
		Short: "Remove documents from the index",
		Long: `Delete removes every chunk of the named documents from both indexes
and commits a new snapshot generation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), cmd, args)
		},
	}
}

func runDelete(ctx context.Context, cmd *cobra.Command, docIDs []string) error {
	engine, _, cleanup, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	out := output.New(cmd.OutOrStdout())

	for _, docID := range docIDs {
		removed, err := engine.Delete(ctx, docID)
		if err != nil {
			return err
		}
		if removed == 0 {
			out.Warningf("%s: not indexed", docID)
			continue
		}
		out.Successf("%s: %d chunks removed", docID, removed)
	}
	return nil
}
