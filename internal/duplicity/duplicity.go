package duplicity

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/polarfoxDev/drydock/internal/config"
)

// gpgOptions forces the cipher for all encrypting invocations.
const gpgOptions = "--cipher-algo=AES256"

// Tool invokes the duplicity binary against a single destination. The
// passphrase and any destination credentials travel in the subprocess
// environment only, never on the command line, so they cannot leak through
// the process list.
type Tool struct {
	Binary     string // duplicity executable, default "duplicity"
	ArchiveDir string // local cache/archive directory
	Target     string // destination URI
	Env        map[string]string
}

// EnvFor builds the subprocess environment for the given configuration:
// PASSPHRASE always, plus access key variables for object-storage targets.
func EnvFor(cfg config.Config, passphrase string) map[string]string {
	env := map[string]string{"PASSPHRASE": passphrase}
	if cfg.TargetScheme() == "s3" {
		env["AWS_ACCESS_KEY_ID"] = cfg.TargetUser
		env["AWS_SECRET_ACCESS_KEY"] = cfg.TargetPass
	}
	return env
}

func (t *Tool) run(ctx context.Context, args ...string) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "duplicity"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = os.Environ()
	for k, v := range t.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("duplicity %s failed: %w\n%s", args[0], err, stderr.String())
	}
	return stdout.String(), nil
}

// CollectionStatus queries the destination for the list of backup sets and
// returns the raw line-oriented listing.
func (t *Tool) CollectionStatus(ctx context.Context, logFile string) (string, error) {
	return t.run(ctx,
		"collection-status",
		"--archive-dir", t.ArchiveDir,
		"--log-file", logFile,
		"--gpg-options", gpgOptions,
		"--log-fd", "1",
		t.Target,
	)
}

// Backup creates a snapshot of sourceDir on the destination. The mode is
// "full" or "incr"; excludes keeps the backup metadata subtree itself out of
// the snapshot. --allow-source-mismatch tolerates a changed hostname since
// the chain was started.
func (t *Tool) Backup(ctx context.Context, full bool, sourceDir string, excludes []string) (string, error) {
	mode := "incr"
	if full {
		mode = "full"
	}
	args := []string{
		mode,
		"--archive-dir", t.ArchiveDir,
		"--asynchronous-upload",
	}
	for _, e := range excludes {
		args = append(args, "--exclude", e)
	}
	args = append(args,
		"--volsize", "250",
		"--gpg-options", gpgOptions,
		sourceDir,
		t.Target,
		"--allow-source-mismatch",
	)
	return t.run(ctx, args...)
}

// RemoveOlderThan deletes backup data older than the given number of days
// that is no longer needed by a live chain.
func (t *Tool) RemoveOlderThan(ctx context.Context, days int) (string, error) {
	return t.run(ctx,
		"remove-older-than", fmt.Sprintf("%dD", days),
		"--archive-dir", t.ArchiveDir,
		"--force",
		t.Target,
	)
}

// Cleanup removes orphaned temporary state left behind by an aborted run.
func (t *Tool) Cleanup(ctx context.Context) (string, error) {
	return t.run(ctx,
		"cleanup",
		"--archive-dir", t.ArchiveDir,
		"--force",
		t.Target,
	)
}

// Verify checks that the backup files on the destination are readable and
// compares their content against sourceDir.
func (t *Tool) Verify(ctx context.Context, sourceDir string, excludes []string) (string, error) {
	args := []string{
		"--verbosity", "info",
		"verify",
		"--compare-data",
		"--archive-dir", t.ArchiveDir,
	}
	for _, e := range excludes {
		args = append(args, "--exclude", e)
	}
	args = append(args, t.Target, sourceDir)
	return t.run(ctx, args...)
}
