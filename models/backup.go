package models

import "time"

// BackupFile is the on-disk snapshot written before destructive cache
// operations, so a cleared payload set can be inspected or restored by hand.
type BackupFile struct {
	Timestamp  time.Time    `json:"timestamp"`
	Operation  string       `json:"operation"`
	EntryCount int          `json:"entryCount"`
	Entries    []CacheEntry `json:"entries"`
}
