// Package export serializes resolved identities, threads and relationship
// edges into the interchange document consumed by downstream clustering and
// reporting tools.
//
// The encoding is canonical: identities sort by id, threads by (source, id),
// edges by (person_a, person_b), map keys lexically and timestamps are UTC.
// Decoding an exported document and encoding it again yields the same bytes.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/contactgraph/internal/graph"
	"github.com/scrypster/contactgraph/internal/resolver"
	"github.com/scrypster/contactgraph/pkg/types"
)

// FormatVersion is the interchange document version.
const FormatVersion = 1

// Format is an interchange encoding.
type Format string

// Supported formats
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("export: unknown format %q", s)
}

// FormatForPath picks a format from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Snapshot is the interchange document.
type Snapshot struct {
	Version    int                      `json:"version" yaml:"version"`
	Identities []types.PersonIdentity   `json:"identities" yaml:"identities"`
	Threads    []types.Thread           `json:"threads" yaml:"threads"`
	Edges      []types.RelationshipEdge `json:"edges" yaml:"edges"`
	Aliases    map[string]string        `json:"aliases" yaml:"aliases"`
}

// FromGraph builds a canonical snapshot from a resolution and its graph.
func FromGraph(res *resolver.Resolution, g *graph.Graph) *Snapshot {
	s := &Snapshot{
		Version: FormatVersion,
		Aliases: res.Aliases(),
	}
	for _, p := range res.Identities() {
		cp := *p
		cp.Handles = append([]types.Handle(nil), p.Handles...)
		cp.Sources = append([]types.SourceTag(nil), p.Sources...)
		cp.Aliases = append([]string(nil), p.Aliases...)
		s.Identities = append(s.Identities, cp)
	}
	if g != nil {
		for _, t := range g.Threads() {
			cp := *t
			cp.Participants = append([]string(nil), t.Participants...)
			s.Threads = append(s.Threads, cp)
		}
		for _, e := range g.Edges() {
			cp := *e
			cp.Sources = make(map[types.SourceTag]types.SourceContribution, len(e.Sources))
			for k, v := range e.Sources {
				cp.Sources[k] = v
			}
			s.Edges = append(s.Edges, cp)
		}
	}
	s.Canonicalize()
	return s
}

// Resolution rebuilds the identity table of the snapshot.
func (s *Snapshot) Resolution() *resolver.Resolution {
	return resolver.NewResolution(s.Identities, s.Aliases)
}

// Graph rebuilds the relationship graph of the snapshot.
func (s *Snapshot) Graph() *graph.Graph {
	return graph.New(s.Threads, s.Edges)
}

// Canonicalize puts the snapshot into its canonical order in place.
func (s *Snapshot) Canonicalize() {
	if s.Version == 0 {
		s.Version = FormatVersion
	}
	if s.Identities == nil {
		s.Identities = []types.PersonIdentity{}
	}
	if s.Threads == nil {
		s.Threads = []types.Thread{}
	}
	if s.Edges == nil {
		s.Edges = []types.RelationshipEdge{}
	}
	if s.Aliases == nil {
		s.Aliases = map[string]string{}
	}

	for i := range s.Identities {
		p := &s.Identities[i]
		if p.Handles == nil {
			p.Handles = []types.Handle{}
		}
		if p.Sources == nil {
			p.Sources = []types.SourceTag{}
		}
		if len(p.Aliases) == 0 {
			p.Aliases = nil
		}
		p.Canonicalize()
	}
	sort.Slice(s.Identities, func(i, j int) bool {
		return s.Identities[i].ID < s.Identities[j].ID
	})

	for i := range s.Threads {
		t := &s.Threads[i]
		if t.Participants == nil {
			t.Participants = []string{}
		}
		t.LastActivity = t.LastActivity.UTC()
		t.Canonicalize()
	}
	sort.Slice(s.Threads, func(i, j int) bool {
		if s.Threads[i].Source != s.Threads[j].Source {
			return s.Threads[i].Source < s.Threads[j].Source
		}
		return s.Threads[i].ID < s.Threads[j].ID
	})

	for i := range s.Edges {
		e := &s.Edges[i]
		e.PersonA, e.PersonB = types.EdgeKey(e.PersonA, e.PersonB)
		e.LastInteraction = e.LastInteraction.UTC()
		if e.Sources == nil {
			e.Sources = map[types.SourceTag]types.SourceContribution{}
		}
		for k, c := range e.Sources {
			c.LastInteraction = c.LastInteraction.UTC()
			e.Sources[k] = c
		}
	}
	sort.Slice(s.Edges, func(i, j int) bool {
		if s.Edges[i].PersonA != s.Edges[j].PersonA {
			return s.Edges[i].PersonA < s.Edges[j].PersonA
		}
		return s.Edges[i].PersonB < s.Edges[j].PersonB
	})
}

// Encode writes the snapshot in the given format. The snapshot is
// canonicalized first.
func Encode(w io.Writer, s *Snapshot, format Format) error {
	data, err := Marshal(s, format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Marshal returns the canonical encoding of the snapshot.
func Marshal(s *Snapshot, format Format) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("export: %w: nil snapshot", types.ErrContractViolation)
	}
	s.Canonicalize()

	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("export: failed to marshal json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return nil, fmt.Errorf("export: failed to marshal yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("export: failed to flush yaml: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("export: unknown format %q", format)
}

// Decode reads a snapshot in the given format and canonicalizes it.
func Decode(r io.Reader, format Format) (*Snapshot, error) {
	var s Snapshot
	switch format {
	case FormatJSON, "":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("export: failed to decode json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("export: failed to decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("export: unknown format %q", format)
	}

	if s.Version > FormatVersion {
		return nil, fmt.Errorf("export: unsupported document version %d", s.Version)
	}
	s.Canonicalize()
	return &s, nil
}
