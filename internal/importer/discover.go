package importer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scrypster/contactgraph/pkg/types"
)

// Kind distinguishes contact observations from interaction records.
type Kind string

// Input kinds
const (
	KindContacts     Kind = "contacts"
	KindInteractions Kind = "interactions"
)

// Input is one extractor output file.
type Input struct {
	Path   string
	Source types.SourceTag // Default source for records that omit one
	Kind   Kind
}

// recordExtensions are the file types the loader understands.
var recordExtensions = map[string]bool{
	".json":   true,
	".jsonl":  true,
	".ndjson": true,
	".yaml":   true,
	".yml":    true,
}

// InputForPath derives an Input from a file name. The part of the base name
// before the first dot names the source: "contacts.json" holds contact
// records, "messages.jsonl" or "mail.2025.yaml" hold interaction records
// from that source.
func InputForPath(path string) (Input, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !recordExtensions[ext] {
		return Input{}, fmt.Errorf("importer: unsupported file type %q", path)
	}
	stem, _, _ := strings.Cut(filepath.Base(path), ".")
	source := types.ParseSourceTag(stem)
	if source == "" {
		return Input{}, fmt.Errorf("importer: cannot derive a source from %q", path)
	}

	kind := KindInteractions
	if source == types.SourceContacts {
		kind = KindContacts
	}
	return Input{Path: path, Source: source, Kind: kind}, nil
}

// Discover walks dirPath for extractor output files. Hidden directories are
// skipped; files are returned in path order.
func Discover(dirPath string) ([]Input, error) {
	var inputs []Input
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dirPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if !recordExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		in, err := InputForPath(path)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("importer: failed to walk %s: %w", dirPath, err)
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Path < inputs[j].Path })
	return inputs, nil
}
