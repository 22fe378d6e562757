// This file contains test helpers only available during testing.
package postgres

import (
	"context"
	"fmt"
)

// TruncateForTest removes every stored run. Child tables follow through
// ON DELETE CASCADE.
func (s *Store) TruncateForTest(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "TRUNCATE TABLE runs CASCADE")
	if err != nil {
		return fmt.Errorf("postgres: failed to truncate runs: %w", err)
	}
	return nil
}
