// Package orchestrator runs the backup sequence: it suspends the services
// that write to the managed data root, drives the snapshot tool, prunes
// expired chains and brings the services back up, guaranteeing the restart
// on every path out of the suspended region.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/polarfoxDev/drydock/internal/config"
	"github.com/polarfoxDev/drydock/internal/duplicity"
	"github.com/polarfoxDev/drydock/internal/history"
	"github.com/polarfoxDev/drydock/internal/lockfile"
	"github.com/polarfoxDev/drydock/internal/logging"
	"github.com/polarfoxDev/drydock/internal/model"
	"github.com/polarfoxDev/drydock/internal/retention"
	"github.com/polarfoxDev/drydock/internal/secrets"
	"github.com/polarfoxDev/drydock/internal/service"
	"github.com/polarfoxDev/drydock/internal/status"
)

// Options configures one orchestrator. Zero values fall back to the
// defaults of the mail stack this tool protects.
type Options struct {
	Env      config.Environment
	Store    *config.Store
	Logger   *logging.Logger
	History  *history.DB // optional; nil disables the run journal
	Services *service.Manager

	// ServiceNames are stopped in order before the snapshot and restarted
	// in the same order after. Default: dovecot, postfix.
	ServiceNames []string
	// VerifyPorts are polled after the restart to confirm the services
	// actually came back up. Default: 25, 993.
	VerifyPorts []int
	// PortWaitTimeout bounds the wait per port. Default: 10s.
	PortWaitTimeout time.Duration

	DuplicityBinary string // default "duplicity"
	ChownBinary     string // default "chown"
	SuBinary        string // default "su"
}

// Orchestrator executes backup, verification and status operations against
// one managed data root.
type Orchestrator struct {
	env      config.Environment
	store    *config.Store
	log      *logging.Logger
	hist     *history.DB
	services *service.Manager

	serviceNames []string
	verifyPorts  []int
	portWait     time.Duration

	duplicityBin string
	chownBin     string
	suBin        string
}

// StatusReport is the assembled state of the backup collection for display.
type StatusReport struct {
	Directory      string // where local backups are stored
	PassphraseFile string
	Chain          model.Chain
	DeletedIn      []string // per record, aligned with Chain
}

// New builds an orchestrator, applying defaults for unset options.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		env:          opts.Env,
		store:        opts.Store,
		log:          opts.Logger,
		hist:         opts.History,
		services:     opts.Services,
		serviceNames: opts.ServiceNames,
		verifyPorts:  opts.VerifyPorts,
		portWait:     opts.PortWaitTimeout,
		duplicityBin: opts.DuplicityBinary,
		chownBin:     opts.ChownBinary,
		suBin:        opts.SuBinary,
	}
	if o.log == nil {
		o.log = logging.New(nil, os.Stdout)
	}
	if o.services == nil {
		o.services = &service.Manager{}
	}
	if o.serviceNames == nil {
		o.serviceNames = []string{"dovecot", "postfix"}
	}
	if o.verifyPorts == nil {
		o.verifyPorts = []int{25, 993}
	}
	if o.portWait == 0 {
		o.portWait = 10 * time.Second
	}
	if o.chownBin == "" {
		o.chownBin = "chown"
	}
	if o.suBin == "" {
		o.suBin = "su"
	}
	return o
}

func (o *Orchestrator) backupRoot() string { return o.env.BackupRoot() }
func (o *Orchestrator) cacheDir() string   { return filepath.Join(o.backupRoot(), "cache") }
func (o *Orchestrator) lockPath() string   { return filepath.Join(o.backupRoot(), "backup.lock") }
func (o *Orchestrator) statusLog() string  { return filepath.Join(o.backupRoot(), "duplicity_status") }
func (o *Orchestrator) hookPath() string   { return filepath.Join(o.backupRoot(), "after-backup") }

// legacyDir held unencrypted snapshots in the pre-encryption layout.
func (o *Orchestrator) legacyDir() string { return filepath.Join(o.backupRoot(), "duplicity") }

// migratedDir is outside the backup root so the next snapshot includes it.
func (o *Orchestrator) migratedDir() string {
	return filepath.Join(o.env.StorageRoot, "migrated_unencrypted_backup")
}

func (o *Orchestrator) encryptedDir() string { return filepath.Join(o.backupRoot(), "encrypted") }

func (o *Orchestrator) newTool(cfg config.Config, passphrase string) *duplicity.Tool {
	return &duplicity.Tool{
		Binary:     o.duplicityBin,
		ArchiveDir: o.cacheDir(),
		Target:     cfg.Target,
		Env:        duplicity.EnvFor(cfg, passphrase),
	}
}

// Status queries the collection and annotates each record with its deletion
// estimate.
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	cfg := o.store.Get()
	passphrase, err := secrets.ReadPassphrase(secrets.File(o.backupRoot()))
	if err != nil {
		return nil, err
	}
	collector := &status.Collector{Tool: o.newTool(cfg, passphrase), LogFile: o.statusLog()}
	chain, err := collector.Collect(ctx)
	if err != nil && !errors.Is(err, status.ErrNoRecords) {
		return nil, err
	}
	return &StatusReport{
		Directory:      o.encryptedDir(),
		PassphraseFile: secrets.File(o.backupRoot()),
		Chain:          chain,
		DeletedIn:      retention.DeletionEstimates(chain, cfg.MinAgeDays, time.Now()),
	}, nil
}

// PerformBackup runs the full orchestration sequence once. fullRequested
// forces a full backup; otherwise the mode is chosen by the forced-full
// policy. Step failures after the snapshot are logged as warnings rather
// than aborting: anything that risks leaving services down must never stop
// the sequence, and a skipped snapshot heals on the next nightly run.
func (o *Orchestrator) PerformBackup(ctx context.Context, fullRequested bool) error {
	lock, err := lockfile.Acquire(o.lockPath())
	if err != nil {
		return err
	}
	defer lock.Release()

	cfg := o.store.Get()

	// The passphrase must be usable before any service is touched.
	passphrase, err := secrets.ReadPassphrase(secrets.File(o.backupRoot()))
	if err != nil {
		return err
	}
	tool := o.newTool(cfg, passphrase)

	migrated, err := o.migrateLegacyLayout()
	if err != nil {
		return err
	}

	// On the first run, always do a full backup; an incremental has
	// nothing to build on. Otherwise force one when the increments since
	// the most recent full backup have grown large.
	full := fullRequested
	if !full {
		collector := &status.Collector{Tool: tool, LogFile: o.statusLog()}
		chain, err := collector.Collect(ctx)
		switch {
		case errors.Is(err, status.ErrNoRecords):
			full = true
		case err != nil:
			return err
		default:
			full = retention.ShouldForceFull(chain)
		}
	}
	mode := "incr"
	if full {
		mode = "full"
	}

	var runID int64
	if o.hist != nil {
		if runID, err = o.hist.StartRun(ctx, mode); err != nil {
			o.log.Warn("recording run start failed: %v", err)
		}
	}
	rl := o.log.ForRun(runID)
	rl.Info("starting %s backup to %s", mode, cfg.Target)

	restart, err := o.services.StopAll(ctx, o.serviceNames)
	if err != nil {
		rl.Error("stopping services failed: %v", err)
		if rerr := restart(ctx); rerr != nil {
			rl.Error("restarting services after failed stop: %v", rerr)
		}
		o.finishRun(ctx, runID, history.RunFailed, err.Error())
		return err
	}

	// Services are stopped from here on: every path through the snapshot
	// must run the restart before anything else happens.
	var snapErr, restartErr error
	func() {
		defer func() {
			restartErr = restart(ctx)
		}()
		_, snapErr = tool.Backup(ctx, full, o.env.StorageRoot, []string{o.backupRoot()})
		if snapErr != nil {
			rl.Warn("backup failed: %v", snapErr)
		} else {
			rl.Info("backup successful")
		}
	}()
	if restartErr != nil {
		o.finishRun(ctx, runID, history.RunFailed, restartErr.Error())
		return fmt.Errorf("restart services: %w", restartErr)
	}

	// Once the migrated legacy data is included in a new snapshot it is
	// safe to delete.
	if migrated && snapErr == nil {
		if err := os.RemoveAll(o.migratedDir()); err != nil {
			rl.Warn("removing migrated legacy backups failed: %v", err)
		}
	}

	warned := false
	if _, err := tool.RemoveOlderThan(ctx, cfg.MinAgeDays); err != nil {
		rl.Warn("removal of old backups failed: %v", err)
		warned = true
	}
	if _, err := tool.Cleanup(ctx); err != nil {
		rl.Warn("cleanup of backups failed: %v", err)
		warned = true
	}

	// Hand the local output to the data-owning account so the post-backup
	// hook, which runs as that account, can read it.
	if cfg.IsLocalTarget() {
		if err := o.chownRecursive(ctx, o.env.StorageUser, cfg.LocalPath()); err != nil {
			o.finishRun(ctx, runID, history.RunFailed, err.Error())
			return err
		}
	}

	if err := o.runPostHook(ctx, cfg, tool.Env, rl); err != nil {
		o.finishRun(ctx, runID, history.RunFailed, err.Error())
		return err
	}

	// The nightly status checks run right after this process exits and
	// must not catch a service that is still starting up.
	for _, port := range o.verifyPorts {
		if !service.WaitForPort(port, o.portWait) {
			rl.Warn("service on port %d not reachable after restart", port)
			warned = true
		}
	}

	switch {
	case snapErr != nil:
		o.finishRun(ctx, runID, history.RunFailed, "snapshot failed: "+snapErr.Error())
	case warned:
		o.finishRun(ctx, runID, history.RunPartial, "completed with warnings")
	default:
		o.finishRun(ctx, runID, history.RunSuccess, "")
	}
	return nil
}

// Verify checks that the destination's backup files are readable and match
// the managed data. Services keep running; verification only reads.
func (o *Orchestrator) Verify(ctx context.Context) (string, error) {
	cfg := o.store.Get()
	passphrase, err := secrets.ReadPassphrase(secrets.File(o.backupRoot()))
	if err != nil {
		return "", err
	}
	tool := o.newTool(cfg, passphrase)
	return tool.Verify(ctx, o.env.StorageRoot, []string{o.backupRoot()})
}

// migrateLegacyLayout performs the one-time transition from the unencrypted
// snapshot layout: the old output moves outside the backup root so the next
// snapshot includes (and thereby supersedes) it, and the encrypted output
// directory is cleared for its new purpose. A no-op once the legacy
// directory is gone.
func (o *Orchestrator) migrateLegacyLayout() (bool, error) {
	info, err := os.Stat(o.legacyDir())
	if err != nil || !info.IsDir() {
		return false, nil
	}
	o.log.Info("migrating legacy unencrypted backups out of %s", o.legacyDir())
	if err := os.Rename(o.legacyDir(), o.migratedDir()); err != nil {
		return false, fmt.Errorf("relocate legacy backups: %w", err)
	}
	if err := os.RemoveAll(o.encryptedDir()); err != nil {
		return true, fmt.Errorf("clear encrypted output directory: %w", err)
	}
	return true, nil
}

func (o *Orchestrator) chownRecursive(ctx context.Context, owner, dir string) error {
	if out, err := exec.CommandContext(ctx, o.chownBin, "-R", owner, dir).CombinedOutput(); err != nil {
		return fmt.Errorf("chown %s to %s: %w: %s", dir, owner, err, out)
	}
	return nil
}

// runPostHook executes the after-backup hook, if present, as the data-owning
// account rather than the privileged one running the orchestration. The hook
// receives the target URI as its argument and the snapshot tool's
// environment, so it can replicate the output to a remote system itself.
func (o *Orchestrator) runPostHook(ctx context.Context, cfg config.Config, toolEnv map[string]string, rl *logging.RunLogger) error {
	if _, err := os.Stat(o.hookPath()); err != nil {
		return nil
	}
	rl.Info("running post-backup hook %s", o.hookPath())
	cmd := exec.CommandContext(ctx, o.suBin, o.env.StorageUser, "-c", o.hookPath(), cfg.Target)
	cmd.Env = os.Environ()
	for k, v := range toolEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env,
		"STORAGE_ROOT="+o.env.StorageRoot,
		"STORAGE_USER="+o.env.StorageUser,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("post-backup hook: %w: %s", err, out)
	}
	return nil
}

func (o *Orchestrator) finishRun(ctx context.Context, runID int64, st history.RunStatus, message string) {
	if o.hist == nil || runID == 0 {
		return
	}
	if err := o.hist.FinishRun(ctx, runID, st, message); err != nil {
		o.log.Warn("recording run outcome failed: %v", err)
	}
}
