package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".ftpvista"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// HostConfig overrides scan settings for one server.
type HostConfig struct {
	// MaxDepth overrides the global maximum depth when positive.
	MaxDepth int `yaml:"maxDepth,omitempty"`

	// Ignores are added to the global ignore list.
	Ignores []string `yaml:"ignores,omitempty"`

	// User and Password replace the global credentials when User is set.
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// File is the structure of the .ftpvista configuration file. Every field
// is optional; unset fields keep their defaults.
type File struct {
	Interface           string   `yaml:"interface,omitempty"`
	CaptureFilter       string   `yaml:"captureFilter,omitempty"`
	Promiscuous         *bool    `yaml:"promiscuous,omitempty"`
	Blacklist           []string `yaml:"blacklist,omitempty"`
	ValidAddressPattern string   `yaml:"validAddressPattern,omitempty"`

	DuplicateWindow *time.Duration `yaml:"duplicateWindow,omitempty"`
	ProbeMethod     string         `yaml:"probeMethod,omitempty"`
	ProbeTimeout    time.Duration  `yaml:"probeTimeout,omitempty"`
	BannerCheck     *bool          `yaml:"bannerCheck,omitempty"`
	SOCKSProxy      string         `yaml:"socksProxy,omitempty"`

	QueueSize         int            `yaml:"queueSize,omitempty"`
	Workers           int            `yaml:"workers,omitempty"`
	ConnectTimeout    time.Duration  `yaml:"connectTimeout,omitempty"`
	MaxDepth          int            `yaml:"maxDepth,omitempty"`
	Ignores           []string       `yaml:"ignores,omitempty"`
	MinUpdateInterval *time.Duration `yaml:"minUpdateInterval,omitempty"`
	ReconnectLimit    int            `yaml:"reconnectLimit,omitempty"`
	ReconnectInterval time.Duration  `yaml:"reconnectInterval,omitempty"`

	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`

	DBDir string `yaml:"dbDir,omitempty"`

	// Hosts maps IPv4 addresses to per-host overrides.
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`
}

// LoadConfigFile loads a .ftpvista file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Hosts == nil {
		cf.Hosts = make(map[string]HostConfig)
	}

	return &cf, nil
}

// Apply copies the values set in the file onto c and keeps f for
// per-host lookups. Call it before applying command-line flags so flags
// win.
func (f *File) Apply(c *Config) {
	c.File = f

	setString(&c.Interface, f.Interface)
	setString(&c.CaptureFilter, f.CaptureFilter)
	if f.Promiscuous != nil {
		c.Promiscuous = *f.Promiscuous
	}
	if len(f.Blacklist) > 0 {
		c.Blacklist = f.Blacklist
	}
	setString(&c.ValidAddressPattern, f.ValidAddressPattern)

	if f.DuplicateWindow != nil {
		c.DuplicateWindow = *f.DuplicateWindow
	}
	setString(&c.ProbeMethod, f.ProbeMethod)
	if f.ProbeTimeout > 0 {
		c.ProbeTimeout = f.ProbeTimeout
	}
	if f.BannerCheck != nil {
		c.BannerCheck = *f.BannerCheck
	}
	setString(&c.SOCKSProxy, f.SOCKSProxy)

	if f.QueueSize > 0 {
		c.QueueSize = f.QueueSize
	}
	if f.Workers > 0 {
		c.Workers = f.Workers
	}
	if f.ConnectTimeout > 0 {
		c.ConnectTimeout = f.ConnectTimeout
	}
	if f.MaxDepth > 0 {
		c.MaxDepth = f.MaxDepth
	}
	if len(f.Ignores) > 0 {
		c.Ignores = f.Ignores
	}
	if f.MinUpdateInterval != nil {
		c.MinUpdateInterval = *f.MinUpdateInterval
	}
	if f.ReconnectLimit > 0 {
		c.ReconnectLimit = f.ReconnectLimit
	}
	if f.ReconnectInterval > 0 {
		c.ReconnectInterval = f.ReconnectInterval
	}

	if f.User != "" {
		c.User = f.User
		c.Password = f.Password
	}
	setString(&c.DBDir, f.DBDir)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .ftpvista in the current directory
// 3. Look for .ftpvista in the user's home directory
// 4. Look for .ftpvista in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	dirs = append(dirs, XDGConfigDir())

	for _, dir := range dirs {
		p := filepath.Join(dir, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
