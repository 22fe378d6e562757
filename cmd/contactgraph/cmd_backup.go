package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scrypster/contactgraph/internal/backup"
	"github.com/scrypster/contactgraph/internal/config"
)

var backupDir string

// backupCmd copies the SQLite snapshot database
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the SQLite snapshot database",
	Long: `Write a verified copy of the SQLite snapshot database into the backup
directory and prune old backups (24 hourly, 7 daily, 4 weekly, 12 monthly).`,
	Args: cobra.NoArgs,
	RunE: runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [backup-file]",
	Short: "Replace the snapshot database with a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupRestore,
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove backups outside the retention policy",
	Args:  cobra.NoArgs,
	RunE:  runBackupPrune,
}

func init() {
	backupCmd.PersistentFlags().StringVar(&backupDir, "dir", "", "Backup directory (default: <data>/backups)")
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupPruneCmd)
}

func newBackupService() (*backup.Service, error) {
	if cfg.Storage.StorageEngine != config.EngineSQLite {
		return nil, fmt.Errorf("backup requires the sqlite storage engine (got %q)", cfg.Storage.StorageEngine)
	}
	dir := backupDir
	if dir == "" {
		dir = filepath.Join(cfg.Storage.DataPath, "backups")
	}
	return backup.NewService(cfg.DBPath(), dir, backup.DefaultRetention, logger)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()

	svc, err := newBackupService()
	if err != nil {
		return err
	}
	info, err := svc.Backup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %d bytes\n", info.Path, info.Size)
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	svc, err := newBackupService()
	if err != nil {
		return err
	}
	backups, err := svc.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(backups) == 0 {
		fmt.Fprintln(out, "no backups")
		return nil
	}
	for _, b := range backups {
		fmt.Fprintf(out, "%s  %s  %d bytes\n",
			b.Timestamp.Local().Format("2006-01-02 15:04:05"), b.Path, b.Size)
	}
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()

	svc, err := newBackupService()
	if err != nil {
		return err
	}
	if err := svc.Restore(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", args[0])
	return nil
}

func runBackupPrune(cmd *cobra.Command, args []string) error {
	svc, err := newBackupService()
	if err != nil {
		return err
	}
	removed, err := svc.Prune()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d backups\n", removed)
	return nil
}
