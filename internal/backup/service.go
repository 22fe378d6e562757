package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/contactgraph/internal/logging"
)

// Service backs up and restores one SQLite database.
type Service struct {
	dbPath    string
	backupDir string
	retention RetentionPolicy
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a backup service for dbPath writing into backupDir.
func NewService(dbPath, backupDir string, retention RetentionPolicy, logger *zap.Logger) (*Service, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("backup: database path is required")
	}
	if backupDir == "" {
		return nil, fmt.Errorf("backup: backup directory is required")
	}
	if err := os.MkdirAll(backupDir, 0o700); err != nil {
		return nil, fmt.Errorf("backup: failed to create backup directory: %w", err)
	}
	return &Service{
		dbPath:    dbPath,
		backupDir: backupDir,
		retention: retention,
		logger:    logging.OrNop(logger),
		now:       time.Now,
	}, nil
}

// Dir returns the backup directory.
func (s *Service) Dir() string {
	return s.backupDir
}

// Backup writes a timestamped, verified copy of the database and then
// applies the retention policy. Retention failures are logged, not returned.
func (s *Service) Backup(ctx context.Context) (*Info, error) {
	if _, err := os.Stat(s.dbPath); err != nil {
		return nil, fmt.Errorf("backup: database not found: %w", err)
	}

	now := s.now()
	name := fmt.Sprintf("contactgraph-%s.db", now.Format("20060102-150405.000000"))
	path := filepath.Join(s.backupDir, name)

	if err := backupSQLite(ctx, s.dbPath, path); err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	if err := verifyBackup(ctx, path); err != nil {
		return nil, fmt.Errorf("backup: %s: %w", path, err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to stat backup: %w", err)
	}
	info := &Info{Path: path, Timestamp: now, Size: fi.Size(), Verified: true}

	removed, err := applyRetention(s.backupDir, s.retention, now)
	if err != nil {
		s.logger.Warn("backup: failed to apply retention policy", zap.Error(err))
	}
	s.logger.Info("backup: created",
		zap.String("path", path),
		zap.Int64("size", info.Size),
		zap.Int("pruned", removed),
	)
	return info, nil
}

// List lists the backups, newest first.
func (s *Service) List() ([]Info, error) {
	return listBackups(s.backupDir)
}

// Prune applies the retention policy and returns how many backups it removed.
func (s *Service) Prune() (int, error) {
	return applyRetention(s.backupDir, s.retention, s.now())
}

// Restore replaces the database with backupPath. The database must not be
// open. If the copy fails the previous database is put back.
func (s *Service) Restore(ctx context.Context, backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup: backup not found: %w", err)
	}

	preRestore := s.dbPath + ".pre-restore"
	if _, err := os.Stat(s.dbPath); err == nil {
		_ = os.Remove(preRestore)
		if err := backupSQLite(ctx, s.dbPath, preRestore); err != nil {
			return fmt.Errorf("backup: failed to create pre-restore copy: %w", err)
		}
		defer os.Remove(preRestore)
	}

	if err := restoreSQLite(ctx, backupPath, s.dbPath); err != nil {
		if _, statErr := os.Stat(preRestore); statErr == nil {
			if rbErr := restoreSQLite(ctx, preRestore, s.dbPath); rbErr != nil {
				return fmt.Errorf("backup: restore failed and rollback failed: %v (restore error: %w)", rbErr, err)
			}
			return fmt.Errorf("backup: restore failed, rolled back to previous state: %w", err)
		}
		return fmt.Errorf("backup: %w", err)
	}

	s.logger.Info("backup: database restored", zap.String("from", backupPath))
	return nil
}
