package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quillsearch/quill/internal/output"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	id string // explicit document ID, stdin and single-file only
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Index documents into the engine",
		Long: `Ingest reads documents, splits them into overlapping chunks and adds
them to both the vector and keyword indexes as one atomic generation.

Re-ingesting a file replaces its previous chunks. Use '-' to read a
single document from stdin; without --id a random document ID is
assigned.

Examples:
  quill ingest notes.md
  quill ingest docs/*.txt
  cat report.txt | quill ingest - --id report`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "Document ID override (single document only)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, paths []string, opts ingestOptions) error {
	if opts.id != "" && len(paths) > 1 {
		return fmt.Errorf("--id can only be used with a single document")
	}

	engine, _, cleanup, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	out := output.New(cmd.OutOrStdout())

	for _, path := range paths {
		docID, text, err := readDocument(path, opts.id)
		if err != nil {
			return err
		}

		report, err := engine.Ingest(ctx, docID, text)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", docID, err)
		}

		out.Successf("%s: %d chunks indexed (version %d, %s)",
			docID, report.ChunksAdded, report.Version, report.Elapsed.Round(time.Millisecond))
		if report.ChunksSkipped > 0 {
			out.Warningf("%s: %d chunks skipped", docID, report.ChunksSkipped)
		}
		for _, w := range report.Warnings {
			out.Status("", w)
		}
	}
	return nil
}

// readDocument resolves the document ID and content for one ingest argument.
func readDocument(path, idOverride string) (docID, text string, err error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		docID = idOverride
		if docID == "" {
			// Stdin has no path to derive an ID from; mint one.
			docID = uuid.NewString()
		}
		return docID, string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}

	docID = idOverride
	if docID == "" {
		docID = filepath.ToSlash(filepath.Clean(path))
	}
	return docID, string(data), nil
}
