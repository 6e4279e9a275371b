package config

import (
	"fmt"
	"net"
	"net/netip"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "ftpvista"

	// DefaultCaptureFilter selects ARP traffic, which every host on the
	// segment emits.
	DefaultCaptureFilter = "arp"

	// DefaultDuplicateWindow is how long an accepted address is ignored
	// by discovery.
	DefaultDuplicateWindow = 10 * time.Minute

	// DefaultProbeTimeout bounds the FTP port check.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultProbeMethod probes with a plain TCP connect.
	DefaultProbeMethod = ProbeTCP

	// DefaultQueueSize is the capacity of the discovery to indexer
	// hand-off queue.
	DefaultQueueSize = 100

	// DefaultWorkers is the number of hosts scanned at once.
	DefaultWorkers = 1

	// DefaultConnectTimeout bounds every FTP control and data exchange.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultMaxDepth is the deepest directory level scanned.
	DefaultMaxDepth = 50

	// DefaultMinUpdateInterval is the minimum time between two scans of
	// the same host.
	DefaultMinUpdateInterval = time.Hour

	// DefaultUser and DefaultPassword are the anonymous FTP credentials.
	DefaultUser     = "anonymous"
	DefaultPassword = "anonymous@"
)

// Probe methods.
const (
	ProbeTCP  = "tcp"
	ProbeNmap = "nmap"
)

// Config holds every ftpvista option. It is filled from defaults, then
// the .ftpvista file, then command-line flags.
type Config struct {
	// Interface is the network interface captured for discovery.
	Interface string

	// CaptureFilter is the BPF filter applied to the capture.
	CaptureFilter string

	// Promiscuous puts the interface in promiscuous mode.
	Promiscuous bool

	// Blacklist lists addresses that are never scanned.
	Blacklist []string

	// ValidAddressPattern is a regular expression matched at the start of
	// each discovered address. Empty accepts every address.
	ValidAddressPattern string

	// DuplicateWindow is how long an accepted address is ignored.
	DuplicateWindow time.Duration

	// ProbeMethod is ProbeTCP or ProbeNmap.
	ProbeMethod string

	// ProbeTimeout bounds the FTP port check.
	ProbeTimeout time.Duration

	// BannerCheck requires a 220 greeting before an address is accepted.
	BannerCheck bool

	// SOCKSProxy routes probes and FTP sessions through a SOCKS5 proxy
	// when set ("host:port").
	SOCKSProxy string

	// QueueSize is the capacity of the hand-off queue.
	QueueSize int

	// Workers is how many hosts are scanned at once.
	Workers int

	// ConnectTimeout bounds every FTP exchange.
	ConnectTimeout time.Duration

	// MaxDepth is the deepest directory level scanned.
	MaxDepth int

	// Ignores lists absolute paths that are never listed.
	Ignores []string

	// MinUpdateInterval is the minimum time between two scans of a host.
	MinUpdateInterval time.Duration

	// ReconnectLimit caps reconnects per scan; 0 means unlimited.
	ReconnectLimit int

	// ReconnectInterval is the minimum time between reconnects; 0 means
	// reconnect immediately.
	ReconnectInterval time.Duration

	// User and Password are the FTP credentials.
	User     string
	Password string

	// DBDir is the directory holding the SQLite store.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs switches log output to JSON.
	JSONLogs bool

	// JSONReport and MarkdownReport select the report format; plain text
	// is the default.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the report output path; empty means stdout.
	ReportFile string

	// ConfigFilePath is the explicit .ftpvista path, if any.
	ConfigFilePath string

	// File is the loaded configuration file, used for per-host overrides.
	File *File
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		CaptureFilter:     DefaultCaptureFilter,
		DuplicateWindow:   DefaultDuplicateWindow,
		ProbeMethod:       DefaultProbeMethod,
		ProbeTimeout:      DefaultProbeTimeout,
		QueueSize:         DefaultQueueSize,
		Workers:           DefaultWorkers,
		ConnectTimeout:    DefaultConnectTimeout,
		MaxDepth:          DefaultMaxDepth,
		MinUpdateInterval: DefaultMinUpdateInterval,
		User:              DefaultUser,
		Password:          DefaultPassword,
		DBDir:             XDGDataDir(),
		File:              &File{Hosts: make(map[string]HostConfig)},
	}
}

// XDGDataDir returns the XDG data directory for ftpvista, where the store
// lives by default.
// On Linux: ~/.local/share/ftpvista
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for ftpvista, searched
// for .ftpvista after the current and home directories.
// On Linux: ~/.config/ftpvista
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the options shared by every command.
// Discovery-only requirements are checked by ValidateDiscovery.
func (c *Config) Validate() error {
	if c.ProbeTimeout <= 0 || c.ConnectTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.MaxDepth <= 0 {
		return ErrInvalidMaxDepth
	}
	if c.MinUpdateInterval < 0 {
		return ErrInvalidUpdateInterval
	}
	if c.ReconnectLimit < 0 || c.ReconnectInterval < 0 {
		return ErrInvalidReconnectPolicy
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ValidateDiscovery checks the options needed by the discovery daemon on
// top of Validate.
func (c *Config) ValidateDiscovery() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Interface == "" {
		return ErrNoInterface
	}
	if _, err := regexp.Compile(c.ValidAddressPattern); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAddressPattern, err)
	}
	for _, addr := range c.Blacklist {
		ip, err := netip.ParseAddr(addr)
		if err != nil || !ip.Is4() {
			return fmt.Errorf("%w: %q", ErrInvalidBlacklistEntry, addr)
		}
	}
	if c.DuplicateWindow < 0 {
		return ErrInvalidDuplicateWindow
	}
	if c.ProbeMethod != ProbeTCP && c.ProbeMethod != ProbeNmap {
		return fmt.Errorf("%w: %q", ErrInvalidProbeMethod, c.ProbeMethod)
	}
	if c.QueueSize <= 0 {
		return ErrInvalidQueueSize
	}
	return nil
}

// ForHost returns the scan settings for addr: the global values with the
// file's per-host overrides applied. An addr carrying a port falls back to
// the override of its bare host.
func (c *Config) ForHost(addr string) HostConfig {
	hc := HostConfig{
		MaxDepth: c.MaxDepth,
		Ignores:  c.Ignores,
		User:     c.User,
		Password: c.Password,
	}
	if c.File == nil {
		return hc
	}

	override, ok := c.File.Hosts[addr]
	if !ok {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return hc
		}
		if override, ok = c.File.Hosts[host]; !ok {
			return hc
		}
	}
	if override.MaxDepth > 0 {
		hc.MaxDepth = override.MaxDepth
	}
	if len(override.Ignores) > 0 {
		hc.Ignores = append(append([]string(nil), c.Ignores...), override.Ignores...)
	}
	if override.User != "" {
		hc.User = override.User
		hc.Password = override.Password
	}
	return hc
}
