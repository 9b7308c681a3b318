package model

import "time"

// VolumeSizeBytes is the fixed size of a single backup volume. The snapshot
// tool reports a volume count per backup set; multiplying by this constant
// approximates the size of a backup on disk.
const VolumeSizeBytes int64 = 250 * 1000000

// BackupRecord is one snapshot entry in the backup collection, either a full
// backup or an incremental depending on the most recent full before it.
type BackupRecord struct {
	Date time.Time // unique, orders the chain
	Full bool
	Size int64 // estimated from the reported volume count
}

// Chain is the sequence of backup records sorted by date descending (most
// recent first). Every consumer relies on that order: a full record marks a
// chain boundary, and the records above it are the increments depending on it.
type Chain []BackupRecord

// CurrentSegment returns the increments newer than the most recent full
// backup, the full backup itself, and whether a full backup exists at all.
func (c Chain) CurrentSegment() (increments []BackupRecord, full BackupRecord, ok bool) {
	for i, rec := range c {
		if rec.Full {
			return c[:i], rec, true
		}
	}
	return c, BackupRecord{}, false
}
