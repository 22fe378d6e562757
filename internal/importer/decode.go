package importer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxLineBytes bounds a single JSON Lines record.
const maxLineBytes = 4 * 1024 * 1024

// decodeRecords decodes a record file into a slice of T. JSON files hold an
// array, JSON Lines files one object per line, YAML files a sequence.
func decodeRecords[T any](ctx context.Context, r io.Reader, path string) ([]T, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var out []T
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("importer: %s: %w", path, err)
		}
		return nonNil(out), nil

	case ".jsonl", ".ndjson":
		return decodeLines[T](ctx, r, path)

	case ".yaml", ".yml":
		var out []T
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&out); err != nil && err != io.EOF {
			return nil, fmt.Errorf("importer: %s: %w", path, err)
		}
		return nonNil(out), nil
	}
	return nil, fmt.Errorf("importer: unsupported file type %q", path)
}

func decodeLines[T any](ctx context.Context, r io.Reader, path string) ([]T, error) {
	out := []T{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		if line%1000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec T
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("importer: %s:%d: %w", path, line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("importer: %s: %w", path, err)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
