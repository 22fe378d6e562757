// Package backup copies the SQLite snapshot database to timestamped,
// integrity-checked backup files and prunes them with a tiered retention
// policy.
package backup

import (
	"time"
)

// RetentionPolicy defines how many backups to keep at each tier.
// Backups are categorized by age:
// - Hourly: backups less than 24 hours old
// - Daily: backups between 1-7 days old
// - Weekly: backups between 7-30 days old
// - Monthly: backups between 30-365 days old
// Backups older than a year are always removed.
type RetentionPolicy struct {
	Hourly  int
	Daily   int
	Weekly  int
	Monthly int
}

// DefaultRetention keeps a day of hourly, a week of daily, a month of weekly
// and a year of monthly backups.
var DefaultRetention = RetentionPolicy{Hourly: 24, Daily: 7, Weekly: 4, Monthly: 12}

// Info contains metadata about a backup file.
type Info struct {
	Path      string
	Timestamp time.Time
	Size      int64
	Verified  bool
}
