package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
)

// Config represents the complete configuration for the TzIndexor.
type Config struct {
	// Node contains the Tezos node connection configuration
	Node NodeConfig `yaml:"node" json:"node" toml:"node"`

	// DB contains the ledger database configuration
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`

	// Maintenance contains optional database maintenance settings
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`

	// Archive contains the raw block archive configuration
	Archive ArchiveConfig `yaml:"archive" json:"archive" toml:"archive"`

	// Protocols overrides or extends the built-in protocol constants
	Protocols []ProtocolConfig `yaml:"protocols,omitempty" json:"protocols,omitempty" toml:"protocols,omitempty"`

	// Ledger contains ledger consistency settings
	Ledger LedgerConfig `yaml:"ledger" json:"ledger" toml:"ledger"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`
}

// NodeConfig represents the configuration of the Tezos node client.
type NodeConfig struct {
	// URL is the base URL of the node RPC, e.g. "http://localhost:8732"
	URL string `yaml:"url" json:"url" toml:"url"`

	// Chain is the chain id path segment used in RPC calls
	Chain string `yaml:"chain" json:"chain" toml:"chain"`

	// Timeout is the per-request timeout
	Timeout common.Duration `yaml:"timeout" json:"timeout" toml:"timeout"`

	// PollInterval is how long the syncer waits when it has caught up with the node head
	PollInterval common.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`

	// Retry contains RPC retry configuration with exponential backoff
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`
}

// ApplyDefaults sets default values for optional node configuration fields.
func (n *NodeConfig) ApplyDefaults() {
	if n.Chain == "" {
		n.Chain = "main"
	}
	if n.Timeout.Duration == 0 {
		n.Timeout = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if n.PollInterval.Duration == 0 {
		n.PollInterval = common.NewDuration(5 * time.Second) //nolint:mnd
	}
	if n.Retry == nil {
		n.Retry = &RetryConfig{}
	}
	n.Retry.ApplyDefaults()
}

// Validate checks if the node configuration is valid.
func (n *NodeConfig) Validate() error {
	if n.URL == "" {
		return fmt.Errorf("node.url is required")
	}

	u, err := url.Parse(n.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("node.url must be an absolute http(s) URL")
	}

	if n.Retry != nil {
		if err := n.Retry.Validate(); err != nil {
			return fmt.Errorf("node.retry: %w", err)
		}
	}

	return nil
}

// RetryConfig represents RPC retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial request)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	// InitialBackoff is the initial backoff duration before first retry
	InitialBackoff common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration
	MaxBackoff common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(1 * time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// Validate checks if the retry configuration is valid.
func (r *RetryConfig) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if r.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be >= 1")
	}
	if r.MaxBackoff.Duration < r.InitialBackoff.Duration {
		return fmt.Errorf("max_backoff must not be lower than initial_backoff")
	}

	return nil
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	// Path is the file path to the SQLite database
	Path string `yaml:"path" json:"path" toml:"path"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	// WAL lets readers see committed blocks while a block is being applied
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous sets the synchronization level ("FULL", "NORMAL", "OFF")
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`

	// EnableForeignKeys enables foreign key constraint enforcement
	EnableForeignKeys bool `yaml:"enable_foreign_keys" json:"enable_foreign_keys" toml:"enable_foreign_keys"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
	// EnableForeignKeys defaults to false (zero value)
}

// Validate checks if the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("path is required")
	}

	if d.JournalMode != "" &&
		!slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return fmt.Errorf("journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}

	if d.Synchronous != "" && !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return fmt.Errorf("synchronous must be one of: FULL, NORMAL, OFF")
	}

	return nil
}

// MaintenanceConfig configures database maintenance behavior.
type MaintenanceConfig struct {
	// Enabled controls whether background maintenance runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// CheckInterval is how often to run maintenance (e.g., "30m", "1h")
	CheckInterval common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`

	// VacuumOnStartup runs maintenance immediately on startup
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`

	// WALCheckpointMode controls the WAL checkpoint aggressiveness
	// Options: PASSIVE, FULL, RESTART, TRUNCATE
	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

// ApplyDefaults sets default values for optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = common.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks if the maintenance configuration is valid.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" {
		validModes := []string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}
		if !slices.Contains(validModes, m.WALCheckpointMode) {
			return fmt.Errorf("maintenance.wal_checkpoint_mode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
		}
	}

	return nil
}

// ArchiveConfig configures the raw block archive used by revert paths.
type ArchiveConfig struct {
	// Path is the bbolt file holding archived blocks
	Path string `yaml:"path" json:"path" toml:"path"`

	// RetainBlocks is how many blocks behind the head are kept (0 = keep all)
	RetainBlocks uint64 `yaml:"retain_blocks" json:"retain_blocks" toml:"retain_blocks"`

	// OpenTimeout bounds how long opening the archive waits for the file lock
	OpenTimeout common.Duration `yaml:"open_timeout" json:"open_timeout" toml:"open_timeout"`
}

// ApplyDefaults sets default values for optional archive configuration fields.
func (a *ArchiveConfig) ApplyDefaults() {
	if a.OpenTimeout.Duration == 0 {
		a.OpenTimeout = common.NewDuration(5 * time.Second) //nolint:mnd
	}
}

// ProtocolConfig describes the constants of one protocol version.
type ProtocolConfig struct {
	// Hash is the protocol hash announced in block headers
	Hash string `yaml:"hash" json:"hash" toml:"hash"`

	// Code is the sequential protocol code used for dispatch
	Code int `yaml:"code" json:"code" toml:"code"`

	// FirstLevel is the first level produced under this protocol
	FirstLevel int64 `yaml:"first_level" json:"first_level" toml:"first_level"`

	BlocksPerCycle   int64 `yaml:"blocks_per_cycle" json:"blocks_per_cycle" toml:"blocks_per_cycle"`
	PreservedCycles  int64 `yaml:"preserved_cycles" json:"preserved_cycles" toml:"preserved_cycles"`
	BlockReward0     int64 `yaml:"block_reward0" json:"block_reward0" toml:"block_reward0"`
	RevelationReward int64 `yaml:"revelation_reward" json:"revelation_reward" toml:"revelation_reward"`
}

// Validate checks if the protocol configuration is valid.
func (p *ProtocolConfig) Validate() error {
	if p.Hash == "" {
		return fmt.Errorf("hash is required")
	}
	if p.Code < 1 {
		return fmt.Errorf("code must be positive")
	}
	if p.BlocksPerCycle <= 0 {
		return fmt.Errorf("blocks_per_cycle must be positive")
	}
	if p.PreservedCycles < 0 {
		return fmt.Errorf("preserved_cycles must not be negative")
	}

	return nil
}

// LedgerConfig holds ledger consistency settings.
type LedgerConfig struct {
	// StrictBalances treats a negative account balance after a commit as an invariant violation.
	// Only meaningful when every balance-affecting operation kind is indexed.
	StrictBalances bool `yaml:"strict_balances" json:"strict_balances" toml:"strict_balances"`
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components:
	//   - syncer: Node following and fork handling
	//   - pipeline: Block apply / revert
	//   - node-client: Tezos RPC client
	//   - reorg-detector: Fork detection
	//   - store: Ledger database
	//   - archive: Raw block archive
	//   - protocols: Protocol registry
	//   - maintenance: Database maintenance
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := common.AllComponents[common.ToLowerWithTrim(component)]; !validComponent {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(level)]; !valid {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if level, ok := l.ComponentLevels[component]; ok {
		return common.ToLowerWithTrim(level)
	}
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP endpoint are active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	// Format: "host:port" or ":port"
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listen_address is required when metrics are enabled")
		}
		if m.Path == "" {
			return fmt.Errorf("path is required when metrics are enabled")
		}
		if m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
	}
	return nil
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.Node.ApplyDefaults()
	c.DB.ApplyDefaults()
	c.Archive.ApplyDefaults()

	if c.Maintenance != nil {
		c.Maintenance.ApplyDefaults()
	}

	if c.Logging != nil {
		c.Logging.ApplyDefaults()
	}

	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Node.Validate(); err != nil {
		return err
	}

	if err := c.DB.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}

	if c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required")
	}

	if c.Archive.Path == c.DB.Path {
		return fmt.Errorf("archive.path must differ from db.path")
	}

	if c.Maintenance != nil {
		if err := c.Maintenance.Validate(); err != nil {
			return err
		}
	}

	hashes := make(map[string]struct{}, len(c.Protocols))
	codes := make(map[int]struct{}, len(c.Protocols))
	for i := range c.Protocols {
		p := &c.Protocols[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("protocols[%d]: %w", i, err)
		}
		if _, dup := hashes[p.Hash]; dup {
			return fmt.Errorf("protocols[%d]: duplicate hash '%s'", i, p.Hash)
		}
		if _, dup := codes[p.Code]; dup {
			return fmt.Errorf("protocols[%d]: duplicate code %d", i, p.Code)
		}
		hashes[p.Hash] = struct{}{}
		codes[p.Code] = struct{}{}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}
