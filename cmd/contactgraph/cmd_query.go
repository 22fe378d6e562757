package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/contactgraph/internal/export"
	"github.com/scrypster/contactgraph/internal/resolver"
	"github.com/scrypster/contactgraph/pkg/types"
)

var (
	querySnapshot string
	queryRun      string
	queryLimit    int
)

// showCmd prints one identity and its strongest relationships
var showCmd = &cobra.Command{
	Use:   "show [id|email|phone]",
	Short: "Show an identity and its strongest relationships",
	Long: `Looks up an identity by id (person:000001), email address or phone
number in the latest stored run, a given run (--run) or an exported document
(--snapshot), and lists its neighbors strongest first.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

// topCmd lists the heaviest edges
var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the strongest relationships",
	Args:  cobra.NoArgs,
	RunE:  runTop,
}

func init() {
	for _, c := range []*cobra.Command{showCmd, topCmd} {
		c.Flags().StringVar(&querySnapshot, "snapshot", "", "Read an exported document instead of the store")
		c.Flags().StringVar(&queryRun, "run", "", "Stored run id (default: latest)")
		c.Flags().IntVarP(&queryLimit, "limit", "n", 10, "Maximum number of rows (0 for all)")
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()

	s, err := loadSnapshot(ctx, querySnapshot, queryRun)
	if err != nil {
		return err
	}
	res := s.Resolution()

	p, err := lookupIdentity(res, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printIdentity(out, p)

	neighbors := s.Graph().Neighbors(p.ID)
	if queryLimit > 0 && len(neighbors) > queryLimit {
		neighbors = neighbors[:queryLimit]
	}
	if len(neighbors) == 0 {
		fmt.Fprintln(out, "no relationships")
		return nil
	}
	fmt.Fprintln(out, "relationships:")
	for _, n := range neighbors {
		fmt.Fprintf(out, "  %-14s %-24s weight=%.4f count=%d last=%s\n",
			n.ID, displayName(res, n.ID), n.Edge.Weight, n.Edge.Count(),
			n.Edge.LastInteraction.Format("2006-01-02"))
	}
	return nil
}

func runTop(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()

	s, err := loadSnapshot(ctx, querySnapshot, queryRun)
	if err != nil {
		return err
	}
	res := s.Resolution()

	out := cmd.OutOrStdout()
	for _, e := range s.Graph().TopEdges(queryLimit) {
		fmt.Fprintf(out, "%.4f  %s (%s) -- %s (%s)  %s\n",
			e.Weight, e.PersonA, displayName(res, e.PersonA), e.PersonB, displayName(res, e.PersonB),
			sourceSummary(e))
	}
	return nil
}

// loadSnapshot reads a document from path, or a run from the store. An
// empty runID selects the latest run.
func loadSnapshot(ctx context.Context, path, runID string) (*export.Snapshot, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return export.Decode(f, export.FormatForPath(path))
	}

	store, err := requireStore(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if runID != "" {
		return store.LoadSnapshot(ctx, runID)
	}
	_, s, err := store.LatestSnapshot(ctx)
	return s, err
}

// lookupIdentity resolves an identity id, email address or phone number.
func lookupIdentity(res *resolver.Resolution, arg string) (*types.PersonIdentity, error) {
	if strings.HasPrefix(arg, resolver.IDPrefix) {
		if p, ok := res.Identity(arg); ok {
			return p, nil
		}
		return nil, fmt.Errorf("unknown identity %s", arg)
	}

	raw := types.Phone(arg)
	if strings.Contains(arg, "@") {
		raw = types.Email(arg)
	}
	h, err := cfg.Normalizer().Normalize(raw)
	if err != nil {
		return nil, err
	}
	if p, ok := res.IdentityForHandle(h); ok {
		return p, nil
	}
	return nil, fmt.Errorf("no identity has handle %s", h.Key())
}

func printIdentity(w io.Writer, p *types.PersonIdentity) {
	fmt.Fprintf(w, "%s", p.ID)
	if p.DisplayName != "" {
		fmt.Fprintf(w, "  %s", p.DisplayName)
	}
	fmt.Fprintln(w)
	for _, h := range p.Handles {
		fmt.Fprintf(w, "  %-6s %s\n", h.Kind, h.Value)
	}
	sources := make([]string, len(p.Sources))
	for i, s := range p.Sources {
		sources[i] = string(s)
	}
	fmt.Fprintf(w, "  sources: %s  contact: %t\n", strings.Join(sources, ", "), p.ContactExists)
	if len(p.Aliases) > 0 {
		fmt.Fprintf(w, "  aliases: %s\n", strings.Join(p.Aliases, ", "))
	}
}

func displayName(res *resolver.Resolution, id string) string {
	if p, ok := res.Identity(id); ok && p.DisplayName != "" {
		return p.DisplayName
	}
	return "-"
}

// sourceSummary renders the per-source counts of an edge ("mail=1 messages=2").
func sourceSummary(e *types.RelationshipEdge) string {
	parts := make([]string, 0, len(e.Sources))
	for _, src := range e.SourceTags() {
		parts = append(parts, fmt.Sprintf("%s=%d", src, e.Sources[src].Count))
	}
	return strings.Join(parts, " ")
}
