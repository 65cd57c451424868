package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the profile config file inside a profile directory.
const FileName = "config.toml"

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendJSONFile = "jsonfile"
	BackendMemory   = "memory"
)

// IPCConfig defines socket settings.
type IPCConfig struct {
	SocketPath   string `toml:"socketPath"`
	RequireToken bool   `toml:"requireToken"`
	Token        string `toml:"token"`
}

// StorageConfig selects and tunes the popup store.
type StorageConfig struct {
	Backend  string `toml:"backend"`
	DBPath   string `toml:"dbPath"`
	JSONPath string `toml:"jsonPath"`
	Unit     string `toml:"unit"`
}

// VCSRemote config.
type VCSRemote struct {
	URL string `toml:"url"`
}

// VCSConfig defines the git history of popup snapshots.
type VCSConfig struct {
	Enabled  bool      `toml:"enabled"`
	Branch   string    `toml:"branch"`
	AutoPush bool      `toml:"autoPush"`
	Remote   VCSRemote `toml:"remote"`
}

// LoggingConfig defines basic logging knobs.
type LoggingConfig struct {
	Level       string `toml:"level"`
	Format      string `toml:"format"`
	FilePath    string `toml:"filePath"`
	FileMaxSize int    `toml:"fileMaxSizeMB"`
}

// ProfileConfig aggregates service configuration for a profile.
type ProfileConfig struct {
	ProfileName string        `toml:"profileName"`
	Storage     StorageConfig `toml:"storage"`
	VCS         VCSConfig     `toml:"vcs"`
	IPC         IPCConfig     `toml:"ipc"`
	Logging     LoggingConfig `toml:"logging"`
}

// DefaultProfile returns the config written by `popctl init`.
func DefaultProfile(name string) *ProfileConfig {
	return &ProfileConfig{
		ProfileName: name,
		Storage: StorageConfig{
			Backend:  BackendSQLite,
			DBPath:   "state.db",
			JSONPath: "popups.store.json",
			Unit:     "magic_popups_popups",
		},
		VCS: VCSConfig{Branch: "main"},
		IPC: IPCConfig{SocketPath: "ipc.sock"},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "text",
			FileMaxSize: 10,
		},
	}
}

// Load reads config.toml from the provided path.
func Load(path string) (*ProfileConfig, error) {
	var cfg ProfileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadProfile reads config.toml from a profile directory.
func LoadProfile(profileDir string) (*ProfileConfig, error) {
	return Load(filepath.Join(profileDir, FileName))
}

// Save writes cfg as TOML.
func Save(path string, cfg *ProfileConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// ResolvePath makes p absolute relative to the profile directory.
func ResolvePath(profileDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(profileDir, p)
}

func (cfg *ProfileConfig) validate() error {
	if cfg.ProfileName == "" {
		return fmt.Errorf("profileName required")
	}
	if cfg.IPC.SocketPath == "" {
		return fmt.Errorf("ipc.socketPath required")
	}
	if cfg.IPC.RequireToken && cfg.IPC.Token == "" {
		return fmt.Errorf("ipc.token required when ipc.requireToken is set")
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendSQLite
	}
	switch cfg.Storage.Backend {
	case BackendSQLite:
		if cfg.Storage.DBPath == "" {
			return fmt.Errorf("storage.dbPath required")
		}
	case BackendJSONFile:
		if cfg.Storage.JSONPath == "" {
			return fmt.Errorf("storage.jsonPath required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Unit == "" {
		cfg.Storage.Unit = "magic_popups_popups"
	}
	if cfg.VCS.Branch == "" {
		cfg.VCS.Branch = "main"
	}
	return nil
}
