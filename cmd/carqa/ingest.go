package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest review files into the store",
	Long: `Ingest a review JSON file, or every review file under a directory.

Without an argument, the configured articles directory is ingested.

Examples:
  # Ingest the configured articles directory
  carqa ingest

  # Ingest a single review
  carqa ingest articles/raw/bmw-m5-expert-review.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.config.Articles.Dir
	if len(args) > 0 {
		path = args[0]
	}

	docs, err := a.processor.ProcessPath(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	a.logger.Info("ingestion complete",
		zap.String("path", path),
		zap.Int("documents", docs),
		zap.Int("total", a.store.DenseCount()),
	)
	fmt.Printf("Ingested %d documents from %s\n", docs, path)
	return nil
}
