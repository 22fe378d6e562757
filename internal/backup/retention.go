package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// listBackups lists all backup files in the backup directory, newest first.
func listBackups(backupDir string) ([]Info, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read backup directory: %w", err)
	}

	backups := []Info{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(backupDir, entry.Name()),
			Timestamp: info.ModTime(),
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// expired returns the backups the policy no longer keeps as of now.
func expired(backups []Info, policy RetentionPolicy, now time.Time) []string {
	var toDelete []string
	var hourly, daily, weekly, monthly []Info

	for _, b := range backups {
		age := now.Sub(b.Timestamp)
		switch {
		case age < 24*time.Hour:
			hourly = append(hourly, b)
		case age < 7*24*time.Hour:
			daily = append(daily, b)
		case age < 30*24*time.Hour:
			weekly = append(weekly, b)
		case age < 365*24*time.Hour:
			monthly = append(monthly, b)
		default:
			toDelete = append(toDelete, b.Path)
		}
	}

	for _, tier := range []struct {
		backups []Info
		keep    int
	}{
		{hourly, policy.Hourly},
		{daily, policy.Daily},
		{weekly, policy.Weekly},
		{monthly, policy.Monthly},
	} {
		if len(tier.backups) > tier.keep {
			for _, b := range tier.backups[max(tier.keep, 0):] {
				toDelete = append(toDelete, b.Path)
			}
		}
	}
	return toDelete
}

// applyRetention removes the backups in backupDir that policy no longer
// keeps and returns how many were removed.
func applyRetention(backupDir string, policy RetentionPolicy, now time.Time) (int, error) {
	backups, err := listBackups(backupDir)
	if err != nil {
		return 0, err
	}

	removed := 0
	var lastErr error
	for _, path := range expired(backups, policy, now) {
		if err := os.Remove(path); err != nil {
			lastErr = err
			continue
		}
		removed++
	}
	if lastErr != nil {
		return removed, fmt.Errorf("backup: failed to delete some backups: %w", lastErr)
	}
	return removed, nil
}
