// Package status queries the snapshot tool for the state of the backup
// collection and parses its line-oriented listing into a backup chain.
package status

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/polarfoxDev/drydock/internal/duplicity"
	"github.com/polarfoxDev/drydock/internal/model"
)

// ErrStatusUnavailable indicates the status query itself failed. Callers
// must surface this rather than treat it as an empty collection.
var ErrStatusUnavailable = errors.New("backup status unavailable")

// ErrNoRecords indicates the query succeeded but the collection holds no
// backup sets: the genuine first-run state.
var ErrNoRecords = errors.New("no backup records found")

// Collector queries a destination through the snapshot tool.
type Collector struct {
	Tool    *duplicity.Tool
	LogFile string // status log file passed through to the tool
}

// Collect queries the destination and returns the chain sorted by date
// descending. A failing subprocess yields ErrStatusUnavailable; a clean run
// with no parseable records yields ErrNoRecords.
func (c *Collector) Collect(ctx context.Context) (model.Chain, error) {
	out, err := c.Tool.CollectionStatus(ctx, c.LogFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusUnavailable, err)
	}
	chain := Parse(out)
	if len(chain) == 0 {
		return nil, ErrNoRecords
	}
	return chain, nil
}

// Parse extracts backup records from a collection-status listing. Only lines
// of the form
//
//	 full <timestamp> <volume-count> ...
//	 inc <timestamp> <volume-count> ...
//
// are records; everything else is ignored. Records are deduplicated by date
// and sorted descending.
func Parse(out string) model.Chain {
	byDate := make(map[time.Time]model.BackupRecord)
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, " full") && !strings.HasPrefix(line, " inc") {
			continue
		}
		rec, ok := parseLine(line)
		if !ok {
			continue
		}
		byDate[rec.Date] = rec
	}
	chain := make(model.Chain, 0, len(byDate))
	for _, rec := range byDate {
		chain = append(chain, rec)
	}
	sort.Slice(chain, func(i, j int) bool { return chain[i].Date.After(chain[j].Date) })
	return chain
}

func parseLine(line string) (model.BackupRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return model.BackupRecord{}, false
	}
	date, err := parseTimestamp(fields[1])
	if err != nil {
		return model.BackupRecord{}, false
	}
	volumes, err := strconv.Atoi(fields[2])
	if err != nil {
		return model.BackupRecord{}, false
	}
	return model.BackupRecord{
		Date: date,
		Full: fields[0] == "full",
		Size: int64(volumes) * model.VolumeSizeBytes,
	}, true
}

// timestampLayouts covers the formats the tool emits depending on version.
var timestampLayouts = []string{
	"20060102T150405Z0700",
	"20060102T150405Z",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
