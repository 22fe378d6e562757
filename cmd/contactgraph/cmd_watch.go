package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrypster/contactgraph/internal/importer"
	"github.com/scrypster/contactgraph/internal/notify"
)

var (
	watchOutput   string
	watchFormat   string
	watchDebounce = notify.DefaultDebounce
)

// watchCmd rebuilds whenever the extractor output changes
var watchCmd = &cobra.Command{
	Use:   "watch [input-dir]",
	Short: "Rebuild the graph whenever an input file changes",
	Long: `Builds once, then watches input-dir and rebuilds after extractor output
files change. Runs until interrupted. Every run is stored unless the storage
engine is "none".`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "Rewrite the document to this file after every run")
	watchCmd.Flags().StringVar(&watchFormat, "format", "", "Document format: json or yaml (default: from output extension)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", notify.DefaultDebounce, "Quiet period before a rebuild")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(0)
	defer cancel()

	dir := args[0]
	p, closeStore, err := newPipeline(true)
	if err != nil {
		return err
	}
	defer closeStore()

	rebuild := func(ctx context.Context) {
		result, err := p.RunDir(ctx, dir)
		if err != nil {
			logger.Error("rebuild failed", zap.Error(err))
			return
		}
		if err := writeDocument(cmd.OutOrStdout(), result.Snapshot, watchOutput, watchFormat); err != nil {
			logger.Error("failed to write document", zap.Error(err))
		}
		printSummary(cmd.ErrOrStderr(), result)
	}

	isInput := func(path string) bool {
		_, err := importer.InputForPath(path)
		return err == nil
	}
	w := notify.NewInputWatcher(dir, watchDebounce, isInput, func(ctx context.Context, changed []string) {
		logger.Info("inputs changed, rebuilding", zap.Strings("files", changed))
		rebuild(ctx)
	}, logger)

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	rebuild(ctx)
	<-ctx.Done()
	return nil
}
