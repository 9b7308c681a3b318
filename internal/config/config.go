package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment describes the managed data layout. It is built once per
// invocation and passed explicitly to every component that needs it.
type Environment struct {
	StorageRoot string // root of the managed user data
	StorageUser string // account that owns the user data
}

// LoadEnvironment reads the environment from process env vars, falling back
// to the conventional locations.
func LoadEnvironment() Environment {
	env := Environment{
		StorageRoot: os.Getenv("STORAGE_ROOT"),
		StorageUser: os.Getenv("STORAGE_USER"),
	}
	if env.StorageRoot == "" {
		env.StorageRoot = "/home/user-data"
	}
	if env.StorageUser == "" {
		env.StorageUser = "user-data"
	}
	return env
}

// BackupRoot is the subtree of the storage root holding backup state: the
// encrypted output, the tool cache, the secret key and this tool's config.
func (e Environment) BackupRoot() string {
	return filepath.Join(e.StorageRoot, "backup")
}

// Config is the persisted backup configuration, a flat human-editable
// document.
type Config struct {
	MinAgeDays int    `yaml:"min_age_in_days"`
	Target     string `yaml:"target"`
	TargetUser string `yaml:"target_user,omitempty"`
	TargetPass string `yaml:"target_pass,omitempty"`
}

// TargetScheme returns the scheme of the target URI ("file", "s3", ...),
// which determines the transport and whether credentials are required.
func (c Config) TargetScheme() string {
	scheme, _, _ := strings.Cut(c.Target, ":")
	return scheme
}

// IsLocalTarget reports whether the target is on the local filesystem.
func (c Config) IsLocalTarget() bool { return c.TargetScheme() == "file" }

// LocalPath returns the filesystem path of a local target.
func (c Config) LocalPath() string {
	return strings.TrimPrefix(c.Target, "file://")
}

// Store loads and persists the backup configuration document.
type Store struct {
	path     string
	defaults Config
}

// ConfigFile is the name of the configuration document under the backup root.
const ConfigFile = "custom.yaml"

// NewStore returns a store for the configuration under the given backup root.
// min_age_in_days is the minimum amount of days a backup will be kept before
// it is eligible to be removed. Backups might be kept much longer if there's
// no new full backup yet.
func NewStore(backupRoot string) *Store {
	return &Store{
		path: filepath.Join(backupRoot, ConfigFile),
		defaults: Config{
			MinAgeDays: 3,
			Target:     "file://" + filepath.Join(backupRoot, "encrypted"),
		},
	}
}

// Get loads the persisted configuration. Any read or parse failure, or a
// document that is not a mapping, degrades silently to the built-in defaults
// so that a corrupt config never blocks a status query or a backup run.
func (s *Store) Get() Config {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return s.defaults
	}
	cfg := s.defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return s.defaults
	}
	if cfg.Target == "" || cfg.MinAgeDays < 0 {
		return s.defaults
	}
	return cfg
}

// Set overwrites the whole persisted configuration document. minAge is
// coerced to an integer when given as text. There is no partial-field merge:
// an update replaces the entire record.
func (s *Store) Set(target, user, pass, minAge string) error {
	days, err := strconv.Atoi(strings.TrimSpace(minAge))
	if err != nil {
		return fmt.Errorf("min age must be an integer: %w", err)
	}
	if days < 1 {
		days = 1
	}
	cfg := Config{
		MinAgeDays: days,
		Target:     target,
		TargetUser: user,
		TargetPass: pass,
	}
	return s.Write(cfg)
}

// Write persists the given configuration, replacing the previous document.
func (s *Store) Write(cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o640); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
