package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scrypster/contactgraph/internal/export"
	"github.com/scrypster/contactgraph/pkg/types"
)

// TimeLayout is the fixed-width UTC layout timestamps are stored in, so that
// text ordering matches time ordering and nanoseconds survive a round trip.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Placeholder is the bind parameter style of a SQL dialect.
type Placeholder int

// Placeholder styles
const (
	PlaceholderQuestion Placeholder = iota // ?, ?, ? (SQLite)
	PlaceholderDollar                      // $1, $2, $3 (PostgreSQL)
)

// Rebind rewrites a query written with ? placeholders into the style p.
func (p Placeholder) Rebind(query string) string {
	if p != PlaceholderDollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// SQLSnapshots implements the snapshot operations of SnapshotStore on top of
// database/sql. Backends own the connection and the schema; the table layout
// they create must match the statements used here.
type SQLSnapshots struct {
	db          *sql.DB
	placeholder Placeholder
	name        string
}

// NewSQLSnapshots wraps db. name prefixes error messages ("sqlite").
func NewSQLSnapshots(db *sql.DB, placeholder Placeholder, name string) *SQLSnapshots {
	return &SQLSnapshots{db: db, placeholder: placeholder, name: name}
}

// DB returns the underlying connection.
func (s *SQLSnapshots) DB() *sql.DB {
	return s.db
}

func (s *SQLSnapshots) q(query string) string {
	return s.placeholder.Rebind(query)
}

func (s *SQLSnapshots) errorf(format string, args ...any) error {
	return fmt.Errorf(s.name+": "+format, args...)
}

// SaveSnapshot stores snapshot under run.ID in a single transaction.
func (s *SQLSnapshots) SaveSnapshot(ctx context.Context, run RunInfo, snapshot *export.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: snapshot is required", ErrInvalidInput)
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("%w: run ID is required", ErrInvalidInput)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	snapshot.Canonicalize()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM runs WHERE id = ?`), run.ID).Scan(&exists)
	if err != nil {
		return s.errorf("failed to check run: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: run %s already stored", ErrInvalidInput, run.ID)
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO runs (id, label, created_at, format_version, identity_count, thread_count, edge_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.Label, FormatTime(run.CreatedAt), snapshot.Version,
		len(snapshot.Identities), len(snapshot.Threads), len(snapshot.Edges))
	if err != nil {
		return s.errorf("failed to insert run: %w", err)
	}

	if err := s.insertIdentities(ctx, tx, run.ID, snapshot); err != nil {
		return err
	}
	if err := s.insertThreads(ctx, tx, run.ID, snapshot); err != nil {
		return err
	}
	if err := s.insertEdges(ctx, tx, run.ID, snapshot); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (s *SQLSnapshots) insertIdentities(ctx context.Context, tx *sql.Tx, runID string, snapshot *export.Snapshot) error {
	identStmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO identities (run_id, id, display_name, contact_exists) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return s.errorf("failed to prepare identity insert: %w", err)
	}
	defer identStmt.Close()

	handleStmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO identity_handles (run_id, identity_id, kind, value) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return s.errorf("failed to prepare handle insert: %w", err)
	}
	defer handleStmt.Close()

	sourceStmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO identity_sources (run_id, identity_id, source) VALUES (?, ?, ?)`))
	if err != nil {
		return s.errorf("failed to prepare source insert: %w", err)
	}
	defer sourceStmt.Close()

	for _, p := range snapshot.Identities {
		if _, err := identStmt.ExecContext(ctx, runID, p.ID, p.DisplayName, p.ContactExists); err != nil {
			return s.errorf("failed to insert identity %s: %w", p.ID, err)
		}
		for _, h := range p.Handles {
			if _, err := handleStmt.ExecContext(ctx, runID, p.ID, string(h.Kind), h.Value); err != nil {
				return s.errorf("failed to insert handle of %s: %w", p.ID, err)
			}
		}
		for _, src := range p.Sources {
			if _, err := sourceStmt.ExecContext(ctx, runID, p.ID, string(src)); err != nil {
				return s.errorf("failed to insert source of %s: %w", p.ID, err)
			}
		}
	}

	aliasStmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO identity_aliases (run_id, alias, identity_id) VALUES (?, ?, ?)`))
	if err != nil {
		return s.errorf("failed to prepare alias insert: %w", err)
	}
	defer aliasStmt.Close()

	for alias, id := range snapshot.Aliases {
		if _, err := aliasStmt.ExecContext(ctx, runID, alias, id); err != nil {
			return s.errorf("failed to insert alias %s: %w", alias, err)
		}
	}
	return nil
}

func (s *SQLSnapshots) insertThreads(ctx context.Context, tx *sql.Tx, runID string, snapshot *export.Snapshot) error {
	threadStmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO threads (run_id, source, id, last_activity, message_count) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return s.errorf("failed to prepare thread insert: %w", err)
	}
	defer threadStmt.Close()

	partStmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO thread_participants (run_id, source, thread_id, identity_id) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return s.errorf("failed to prepare participant insert: %w", err)
	}
	defer partStmt.Close()

	for _, t := range snapshot.Threads {
		_, err := threadStmt.ExecContext(ctx, runID, string(t.Source), t.ID, FormatTime(t.LastActivity), t.MessageCount)
		if err != nil {
			return s.errorf("failed to insert thread %s: %w", t.Key(), err)
		}
		for _, id := range t.Participants {
			if _, err := partStmt.ExecContext(ctx, runID, string(t.Source), t.ID, id); err != nil {
				return s.errorf("failed to insert participant of %s: %w", t.Key(), err)
			}
		}
	}
	return nil
}

func (s *SQLSnapshots) insertEdges(ctx context.Context, tx *sql.Tx, runID string, snapshot *export.Snapshot) error {
	edgeStmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO edges (run_id, person_a, person_b, weight, last_interaction) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return s.errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	srcStmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO edge_sources (run_id, person_a, person_b, source, record_count, group_count, score, last_interaction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return s.errorf("failed to prepare edge source insert: %w", err)
	}
	defer srcStmt.Close()

	for _, e := range snapshot.Edges {
		_, err := edgeStmt.ExecContext(ctx, runID, e.PersonA, e.PersonB, e.Weight, FormatTime(e.LastInteraction))
		if err != nil {
			return s.errorf("failed to insert edge %s-%s: %w", e.PersonA, e.PersonB, err)
		}
		for src, c := range e.Sources {
			_, err := srcStmt.ExecContext(ctx, runID, e.PersonA, e.PersonB, string(src),
				c.Count, c.GroupCount, c.Score, FormatTime(c.LastInteraction))
			if err != nil {
				return s.errorf("failed to insert edge source %s-%s/%s: %w", e.PersonA, e.PersonB, src, err)
			}
		}
	}
	return nil
}

// LoadSnapshot rebuilds a stored snapshot.
func (s *SQLSnapshots) LoadSnapshot(ctx context.Context, runID string) (*export.Snapshot, error) {
	var version int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT format_version FROM runs WHERE id = ?`), runID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, s.errorf("failed to load run %s: %w", runID, err)
	}

	snapshot := &export.Snapshot{Version: version}
	if err := s.loadIdentities(ctx, runID, snapshot); err != nil {
		return nil, err
	}
	if err := s.loadThreads(ctx, runID, snapshot); err != nil {
		return nil, err
	}
	if err := s.loadEdges(ctx, runID, snapshot); err != nil {
		return nil, err
	}
	snapshot.Canonicalize()
	return snapshot, nil
}

func (s *SQLSnapshots) loadIdentities(ctx context.Context, runID string, snapshot *export.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, display_name, contact_exists FROM identities WHERE run_id = ? ORDER BY id`), runID)
	if err != nil {
		return s.errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		var p types.PersonIdentity
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.ContactExists); err != nil {
			return s.errorf("failed to scan identity: %w", err)
		}
		p.Handles = []types.Handle{}
		p.Sources = []types.SourceTag{}
		index[p.ID] = len(snapshot.Identities)
		snapshot.Identities = append(snapshot.Identities, p)
	}
	if err := rows.Err(); err != nil {
		return s.errorf("failed to iterate identities: %w", err)
	}

	lookup := func(id string) (*types.PersonIdentity, error) {
		i, ok := index[id]
		if !ok {
			return nil, s.errorf("run %s references unknown identity %s", runID, id)
		}
		return &snapshot.Identities[i], nil
	}

	err = s.each(ctx, `SELECT identity_id, kind, value FROM identity_handles WHERE run_id = ?`, runID, func(rows *sql.Rows) error {
		var id, kind, value string
		if err := rows.Scan(&id, &kind, &value); err != nil {
			return err
		}
		p, err := lookup(id)
		if err != nil {
			return err
		}
		p.Handles = append(p.Handles, types.Handle{Kind: types.HandleKind(kind), Value: value})
		return nil
	})
	if err != nil {
		return s.errorf("failed to load handles: %w", err)
	}

	err = s.each(ctx, `SELECT identity_id, source FROM identity_sources WHERE run_id = ?`, runID, func(rows *sql.Rows) error {
		var id, source string
		if err := rows.Scan(&id, &source); err != nil {
			return err
		}
		p, err := lookup(id)
		if err != nil {
			return err
		}
		p.Sources = append(p.Sources, types.SourceTag(source))
		return nil
	})
	if err != nil {
		return s.errorf("failed to load sources: %w", err)
	}

	snapshot.Aliases = make(map[string]string)
	err = s.each(ctx, `SELECT alias, identity_id FROM identity_aliases WHERE run_id = ?`, runID, func(rows *sql.Rows) error {
		var alias, id string
		if err := rows.Scan(&alias, &id); err != nil {
			return err
		}
		p, err := lookup(id)
		if err != nil {
			return err
		}
		snapshot.Aliases[alias] = id
		p.Aliases = append(p.Aliases, alias)
		return nil
	})
	if err != nil {
		return s.errorf("failed to load aliases: %w", err)
	}
	return nil
}

func (s *SQLSnapshots) loadThreads(ctx context.Context, runID string, snapshot *export.Snapshot) error {
	index := make(map[types.ThreadKey]int)
	err := s.each(ctx, `SELECT source, id, last_activity, message_count FROM threads WHERE run_id = ?`, runID, func(rows *sql.Rows) error {
		var t types.Thread
		var source, last string
		if err := rows.Scan(&source, &t.ID, &last, &t.MessageCount); err != nil {
			return err
		}
		ts, err := ParseTime(last)
		if err != nil {
			return err
		}
		t.Source = types.SourceTag(source)
		t.LastActivity = ts
		t.Participants = []string{}
		index[t.Key()] = len(snapshot.Threads)
		snapshot.Threads = append(snapshot.Threads, t)
		return nil
	})
	if err != nil {
		return s.errorf("failed to load threads: %w", err)
	}

	err = s.each(ctx, `SELECT source, thread_id, identity_id FROM thread_participants WHERE run_id = ?`, runID, func(rows *sql.Rows) error {
		var source, threadID, id string
		if err := rows.Scan(&source, &threadID, &id); err != nil {
			return err
		}
		key := types.ThreadKey{Source: types.SourceTag(source), ID: threadID}
		i, ok := index[key]
		if !ok {
			return fmt.Errorf("participant references unknown thread %s", key)
		}
		snapshot.Threads[i].Participants = append(snapshot.Threads[i].Participants, id)
		return nil
	})
	if err != nil {
		return s.errorf("failed to load thread participants: %w", err)
	}
	return nil
}

func (s *SQLSnapshots) loadEdges(ctx context.Context, runID string, snapshot *export.Snapshot) error {
	index := make(map[[2]string]int)
	err := s.each(ctx, `SELECT person_a, person_b, weight, last_interaction FROM edges WHERE run_id = ?`, runID, func(rows *sql.Rows) error {
		var e types.RelationshipEdge
		var last string
		if err := rows.Scan(&e.PersonA, &e.PersonB, &e.Weight, &last); err != nil {
			return err
		}
		ts, err := ParseTime(last)
		if err != nil {
			return err
		}
		e.LastInteraction = ts
		e.Sources = make(map[types.SourceTag]types.SourceContribution)
		index[[2]string{e.PersonA, e.PersonB}] = len(snapshot.Edges)
		snapshot.Edges = append(snapshot.Edges, e)
		return nil
	})
	if err != nil {
		return s.errorf("failed to load edges: %w", err)
	}

	err = s.each(ctx, `
		SELECT person_a, person_b, source, record_count, group_count, score, last_interaction
		FROM edge_sources WHERE run_id = ?`, runID, func(rows *sql.Rows) error {
		var a, b, source, last string
		var c types.SourceContribution
		if err := rows.Scan(&a, &b, &source, &c.Count, &c.GroupCount, &c.Score, &last); err != nil {
			return err
		}
		ts, err := ParseTime(last)
		if err != nil {
			return err
		}
		c.LastInteraction = ts
		i, ok := index[[2]string{a, b}]
		if !ok {
			return fmt.Errorf("contribution references unknown edge %s-%s", a, b)
		}
		snapshot.Edges[i].Sources[types.SourceTag(source)] = c
		return nil
	})
	if err != nil {
		return s.errorf("failed to load edge sources: %w", err)
	}
	return nil
}

// each runs a single-argument query and calls fn for every row.
func (s *SQLSnapshots) each(ctx context.Context, query string, arg any, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, s.q(query), arg)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LatestSnapshot returns the newest run and its snapshot.
func (s *SQLSnapshots) LatestSnapshot(ctx context.Context) (*RunInfo, *export.Snapshot, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, nil, err
	}
	if len(runs) == 0 {
		return nil, nil, fmt.Errorf("%w: no stored runs", ErrNotFound)
	}
	snapshot, err := s.LoadSnapshot(ctx, runs[0].ID)
	if err != nil {
		return nil, nil, err
	}
	return &runs[0], snapshot, nil
}

// ListRuns lists stored runs, newest first.
func (s *SQLSnapshots) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	query := `
		SELECT id, label, created_at, identity_count, thread_count, edge_count
		FROM runs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, s.errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var r RunInfo
		var created string
		if err := rows.Scan(&r.ID, &r.Label, &created, &r.Identities, &r.Threads, &r.Edges); err != nil {
			return nil, s.errorf("failed to scan run: %w", err)
		}
		if r.CreatedAt, err = ParseTime(created); err != nil {
			return nil, s.errorf("run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run. Child rows go with it through ON DELETE CASCADE.
func (s *SQLSnapshots) DeleteRun(ctx context.Context, runID string) error {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM runs WHERE id = ?`), runID)
	if err != nil {
		return s.errorf("failed to delete run %s: %w", runID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return s.errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return nil
}
