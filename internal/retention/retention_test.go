package retention

import (
	"testing"
	"time"

	"github.com/polarfoxDev/drydock/internal/model"
)

var base = time.Date(2025, time.June, 1, 3, 0, 0, 0, time.UTC)

func rec(full bool, daysAgo int, size int64) model.BackupRecord {
	return model.BackupRecord{
		Date: base.AddDate(0, 0, -daysAgo),
		Full: full,
		Size: size,
	}
}

func TestReldate_UnitTiers(t *testing.T) {
	cases := []struct {
		name string
		gap  time.Duration
		want string
	}{
		{"forty days", 40 * 24 * time.Hour, "1 month, 10 days"},
		{"three months", 92 * 24 * time.Hour, "3 months, 0 days"},
		{"eight days", 8 * 24 * time.Hour, "8 days"},
		{"three days", 3*24*time.Hour + 5*time.Hour, "3 days, 5 hours"},
		{"twenty-five hours", 25 * time.Hour, "1 day, 1 hours"},
		{"three hours", 3*time.Hour + 12*time.Minute, "3 hours, 12 minutes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Reldate(base.Add(-tc.gap), base, "clip")
			if got != tc.want {
				t.Fatalf("Reldate(-%v) = %q, want %q", tc.gap, got, tc.want)
			}
		})
	}
}

func TestReldate_FutureClips(t *testing.T) {
	got := Reldate(base.Add(time.Hour), base, "the future?")
	if got != "the future?" {
		t.Fatalf("Reldate future = %q, want clip", got)
	}
}

func TestShouldForceFull_NoFullBackup(t *testing.T) {
	if !ShouldForceFull(nil) {
		t.Fatalf("empty chain must force a full backup")
	}
	chain := model.Chain{rec(false, 1, 10), rec(false, 2, 10)}
	if !ShouldForceFull(chain) {
		t.Fatalf("chain without a full backup must force one")
	}
}

func TestShouldForceFull_ThresholdIsExclusive(t *testing.T) {
	// Exactly half the full size must not force a full backup.
	atHalf := model.Chain{rec(false, 1, 30), rec(false, 2, 20), rec(true, 3, 100)}
	if ShouldForceFull(atHalf) {
		t.Fatalf("increments at exactly 50%% must not force a full backup")
	}
	overHalf := model.Chain{rec(false, 1, 31), rec(false, 2, 20), rec(true, 3, 100)}
	if !ShouldForceFull(overHalf) {
		t.Fatalf("increments over 50%% must force a full backup")
	}
}

func TestShouldForceFull_StopsAtFirstFull(t *testing.T) {
	// Increments below the most recent full belong to an older chain and
	// must not count.
	chain := model.Chain{
		rec(false, 1, 10),
		rec(true, 2, 100),
		rec(false, 3, 500),
		rec(true, 4, 100),
	}
	if ShouldForceFull(chain) {
		t.Fatalf("older chain increments must not trigger a full backup")
	}
}

func TestDeletionEstimates_SharedAcrossSegment(t *testing.T) {
	// full(100) + two increments of 10: predicted days is
	// 3 + (50-20)/10 + 0.5 = 6.5, rounded half-to-even to 6.
	chain := model.Chain{
		rec(false, 0, 10),
		rec(false, 1, 10),
		rec(true, 2, 100),
	}
	got := DeletionEstimates(chain, 3, base)
	want := "approx. 6 days"
	for i, est := range got {
		if est != want {
			t.Fatalf("estimates[%d] = %q, want %q (every record in the segment shares the estimate)", i, est, want)
		}
	}
}

func TestDeletionEstimates_EmptyChain(t *testing.T) {
	if got := DeletionEstimates(nil, 3, base); len(got) != 0 {
		t.Fatalf("empty chain should yield no estimates, got %v", got)
	}
}

func TestDeletionEstimates_OlderSegmentFromRetentionBoundary(t *testing.T) {
	// Newest segment is a lone full backup (no increments, so no
	// extrapolated estimate). The older segment's newest increment is 2
	// days old with a 3 day window: one day of retention left.
	chain := model.Chain{
		rec(true, 1, 100),
		rec(false, 2, 10),
		rec(false, 3, 10),
		rec(true, 4, 100),
	}
	got := DeletionEstimates(chain, 3, base)
	if got[0] != "" {
		t.Fatalf("lone full backup should have no estimate, got %q", got[0])
	}
	want := "1 day, 0 hours"
	for i := 1; i < 4; i++ {
		if got[i] != want {
			t.Fatalf("estimates[%d] = %q, want %q", i, got[i], want)
		}
	}
}

func TestDeletionEstimates_ExpiredSegmentClips(t *testing.T) {
	chain := model.Chain{
		rec(true, 1, 100),
		rec(false, 10, 10),
		rec(true, 12, 100),
	}
	got := DeletionEstimates(chain, 3, base)
	if got[1] != "on next daily backup" || got[2] != "on next daily backup" {
		t.Fatalf("records past the retention window should report deletion on next backup, got %v", got)
	}
}
