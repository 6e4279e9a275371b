package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoInterface is returned when discovery is started without a
	// capture interface.
	ErrNoInterface = errors.New("no capture interface specified: use --interface or set interface in .ftpvista")

	// ErrInvalidAddressPattern is returned when the valid-address pattern
	// does not compile.
	ErrInvalidAddressPattern = errors.New("invalid valid-address pattern")

	// ErrInvalidBlacklistEntry is returned when a blacklist entry is not an
	// IPv4 address.
	ErrInvalidBlacklistEntry = errors.New("invalid blacklist entry: must be an IPv4 address")

	// ErrInvalidTimeout is returned when a probe or connect timeout is not
	// positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDuplicateWindow is returned when the duplicate window is
	// negative.
	ErrInvalidDuplicateWindow = errors.New("invalid duplicate window: must be non-negative")

	// ErrInvalidProbeMethod is returned for an unknown probe method.
	ErrInvalidProbeMethod = errors.New("invalid probe method: must be tcp or nmap")

	// ErrInvalidQueueSize is returned when the hand-off queue would have no
	// capacity.
	ErrInvalidQueueSize = errors.New("invalid queue size: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidMaxDepth is returned when the maximum depth is not positive.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be positive")

	// ErrInvalidUpdateInterval is returned when the minimum update interval
	// is negative.
	ErrInvalidUpdateInterval = errors.New("invalid min update interval: must be non-negative")

	// ErrInvalidReconnectPolicy is returned for a negative reconnect limit
	// or interval.
	ErrInvalidReconnectPolicy = errors.New("invalid reconnect policy: limit and interval must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
