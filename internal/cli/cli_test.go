package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestConfigSetAndShow(t *testing.T) {
	root := t.TempDir()
	t.Setenv("STORAGE_ROOT", root)
	t.Setenv("STORAGE_USER", "user-data")

	_, err := runCommand(t, "config", "set",
		"--target", "s3://backups.example.com/mail",
		"--user", "AKIDEXAMPLE",
		"--pass", "hunter2",
		"--min-age", "14",
	)
	if err != nil {
		t.Fatalf("config set: %v", err)
	}

	out, err := runCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{
		"target: s3://backups.example.com/mail",
		"target_user: AKIDEXAMPLE",
		"target_pass: (set)",
		"min_age_in_days: 14",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShowDefaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("STORAGE_ROOT", root)
	t.Setenv("STORAGE_USER", "user-data")

	out, err := runCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	wantTarget := "target: file://" + filepath.Join(root, "backup", "encrypted")
	if !strings.Contains(out, wantTarget) {
		t.Errorf("default target missing (%q):\n%s", wantTarget, out)
	}
	if !strings.Contains(out, "min_age_in_days: 3") {
		t.Errorf("default min age missing:\n%s", out)
	}
}

func TestConfigSetRequiresTarget(t *testing.T) {
	t.Setenv("STORAGE_ROOT", t.TempDir())
	if _, err := runCommand(t, "config", "set", "--min-age", "3"); err == nil {
		t.Fatalf("config set without --target should fail")
	}
}

func TestLogRunsOnFreshJournal(t *testing.T) {
	t.Setenv("STORAGE_ROOT", t.TempDir())
	t.Setenv("STORAGE_USER", "user-data")

	out, err := runCommand(t, "log", "--runs")
	if err != nil {
		t.Fatalf("log --runs: %v", err)
	}
	if !strings.Contains(out, "ID") || !strings.Contains(out, "STATUS") {
		t.Errorf("missing header:\n%s", out)
	}
}

func TestHumanSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{999, "999 B"},
		{250 * 1000000, "250.0 MB"},
		{1500000000, "1.5 GB"},
	}
	for _, tc := range cases {
		if got := humanSize(tc.in); got != tc.want {
			t.Errorf("humanSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
