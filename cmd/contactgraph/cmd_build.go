package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrypster/contactgraph/internal/engine"
	"github.com/scrypster/contactgraph/internal/export"
	"github.com/scrypster/contactgraph/internal/notify"
	"github.com/scrypster/contactgraph/internal/storage"
)

var (
	buildOutput  string
	buildFormat  string
	buildLabel   string
	buildNoStore bool
)

// buildCmd runs the pipeline once
var buildCmd = &cobra.Command{
	Use:   "build [input-dir]",
	Short: "Resolve identities and build the relationship graph",
	Long: `Loads every extractor output file under input-dir, resolves identities,
builds the relationship graph and writes the interchange document.

Examples:
  contactgraph build ./exports -o graph.json
  contactgraph build ./exports --format yaml -o - | less`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Write the document to this file (\"-\" for stdout)")
	buildCmd.Flags().StringVar(&buildFormat, "format", "", "Document format: json or yaml (default: from output extension)")
	buildCmd.Flags().StringVar(&buildLabel, "label", "", "Label stored with the run")
	buildCmd.Flags().BoolVar(&buildNoStore, "no-store", false, "Do not persist the snapshot")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()

	p, closeStore, err := newPipeline(!buildNoStore)
	if err != nil {
		return err
	}
	defer closeStore()
	p.Label = buildLabel

	result, err := p.RunDir(ctx, args[0])
	if err != nil {
		return err
	}

	if err := writeDocument(cmd.OutOrStdout(), result.Snapshot, buildOutput, buildFormat); err != nil {
		return err
	}
	printSummary(cmd.ErrOrStderr(), result)
	return nil
}

// newPipeline creates a pipeline over the configured store. Stored runs are
// announced through an event file in the data directory.
func newPipeline(persist bool) (*engine.Pipeline, func(), error) {
	var store storage.SnapshotStore
	closeStore := func() {}
	if persist {
		s, err := openStore(cfg)
		if err != nil {
			return nil, closeStore, err
		}
		if s != nil {
			store = s
			closeStore = func() { _ = s.Close() }
		}
	}

	p, err := engine.NewPipeline(cfg, store, logger)
	if err != nil {
		closeStore()
		return nil, func() {}, err
	}

	if store != nil {
		events := notify.NewEventWriter(cfg.Storage.DataPath)
		p.SetOnRunComplete(func(r *engine.RunResult) {
			if !r.Stored {
				return
			}
			if err := events.Notify(notify.EventRunComplete, r.RunID); err != nil {
				logger.Warn("failed to write run event", zap.Error(err))
			}
		})
	}
	return p, closeStore, nil
}

// writeDocument encodes s to path, or to stdout for "-". An empty path
// writes nothing.
func writeDocument(stdout io.Writer, s *export.Snapshot, path, format string) error {
	if path == "" {
		return nil
	}

	f := export.FormatForPath(path)
	if format != "" {
		var err error
		if f, err = export.ParseFormat(format); err != nil {
			return err
		}
	}

	if path == "-" {
		return export.Encode(stdout, s, f)
	}

	data, err := export.Marshal(s, f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func printSummary(w io.Writer, r *engine.RunResult) {
	fmt.Fprintf(w, "run %s: %d inputs, %d identities (%d merges), %d threads, %d edges",
		r.RunID, r.Inputs, r.Resolution.Len(), r.ResolveStats.Merges, r.BuildStats.Threads, r.BuildStats.Edges)
	if skipped := r.BuildStats.Skipped; skipped > 0 {
		fmt.Fprintf(w, ", %d records skipped", skipped)
	}
	if invalid := r.ResolveStats.InvalidHandles + r.BuildStats.InvalidHandles; invalid > 0 {
		fmt.Fprintf(w, ", %d invalid handles", invalid)
	}
	if r.Stored {
		fmt.Fprint(w, " (stored)")
	}
	fmt.Fprintln(w)
}
