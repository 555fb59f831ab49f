// Package config loads the daemon configuration from defaults, a TOML file,
// and FUTARCHYD_-prefixed environment variables, in that priority order.
package config

import (
	"encoding/hex"
	"path/filepath"

	"github.com/futarchy-labs/futarchyd/internal/core/market"
	"github.com/futarchy-labs/futarchyd/internal/indexer"
)

// Config is the complete futarchyd configuration.
type Config struct {
	// DAOID selects the DAO this node serves.
	DAOID uint64 `toml:"dao_id" mapstructure:"dao_id"`

	Server   ServerConfig   `toml:"server" mapstructure:"server"`
	Database DatabaseConfig `toml:"database" mapstructure:"database"`
	Indexer  IndexerConfig  `toml:"indexer" mapstructure:"indexer"`
	Market   MarketConfig   `toml:"market" mapstructure:"market"`
	Journal  JournalConfig  `toml:"journal" mapstructure:"journal"`

	DebugLogfile string `toml:"debug_logfile" mapstructure:"debug_logfile"`

	configPath string `toml:"-" mapstructure:"-"`
}

// ServerConfig configures the RPC and websocket surface.
type ServerConfig struct {
	// Addr is the listen address for HTTP JSON-RPC and /ws.
	Addr string `toml:"addr" mapstructure:"addr"`

	// RequestTimeoutMS bounds a single RPC request.
	RequestTimeoutMS int `toml:"request_timeout_ms" mapstructure:"request_timeout_ms"`
}

// DatabaseConfig selects the key-value backend for market state.
type DatabaseConfig struct {
	// Backend is "pebble", "leveldb", or "memory".
	Backend string `toml:"backend" mapstructure:"backend"`

	// Path is the on-disk database directory; ignored for memory.
	Path string `toml:"path" mapstructure:"path"`

	// CacheSize is the decoded-entry cache capacity.
	CacheSize int `toml:"cache_size" mapstructure:"cache_size"`
}

// IndexerConfig configures the relational event indexer.
type IndexerConfig struct {
	Enabled      bool   `toml:"enabled" mapstructure:"enabled"`
	Driver       string `toml:"driver" mapstructure:"driver"`
	DSN          string `toml:"dsn" mapstructure:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns" mapstructure:"max_idle_conns"`
}

// SQLConfig converts to the indexer's own config.
func (c IndexerConfig) SQLConfig() indexer.Config {
	return indexer.Config{
		Driver:       c.Driver,
		DSN:          c.DSN,
		MaxOpenConns: c.MaxOpenConns,
		MaxIdleConns: c.MaxIdleConns,
	}
}

// MarketConfig carries the per-DAO market parameters.
type MarketConfig struct {
	QueueCapacity     int `toml:"queue_capacity" mapstructure:"queue_capacity"`
	DAOLiquiditySlots int `toml:"dao_liquidity_slots" mapstructure:"dao_liquidity_slots"`

	AMMFeeBps uint64 `toml:"amm_fee_bps" mapstructure:"amm_fee_bps"`

	TwapStartDelayMS       uint64 `toml:"twap_start_delay_ms" mapstructure:"twap_start_delay_ms"`
	TwapCapStep            uint64 `toml:"twap_cap_step" mapstructure:"twap_cap_step"`
	TwapInitialObservation uint64 `toml:"twap_initial_observation" mapstructure:"twap_initial_observation"`

	PassThresholdBps uint64 `toml:"pass_threshold_bps" mapstructure:"pass_threshold_bps"`
	TradingPeriodMS  uint64 `toml:"trading_period_ms" mapstructure:"trading_period_ms"`

	MinAssetLiquidity  uint64 `toml:"min_asset_liquidity" mapstructure:"min_asset_liquidity"`
	MinStableLiquidity uint64 `toml:"min_stable_liquidity" mapstructure:"min_stable_liquidity"`

	RecreationWindowMS uint64 `toml:"recreation_window_ms" mapstructure:"recreation_window_ms"`

	HighValueFeeThreshold uint64 `toml:"high_value_fee_threshold" mapstructure:"high_value_fee_threshold"`
	MaxProposalChainDepth uint8  `toml:"max_proposal_chain_depth" mapstructure:"max_proposal_chain_depth"`

	SubsidyCranks     uint32 `toml:"subsidy_cranks" mapstructure:"subsidy_cranks"`
	KeeperFeePerCrank uint64 `toml:"keeper_fee_per_crank" mapstructure:"keeper_fee_per_crank"`

	// AdminAccount is the hex-encoded 20-byte identity allowed to collect
	// protocol fees. Empty disables collection.
	AdminAccount string `toml:"admin_account" mapstructure:"admin_account"`
}

// Params converts to the market core's parameter struct. AdminAccount must
// already be validated; a bad value decodes to the zero identity, which
// disables protocol fee collection.
func (c MarketConfig) Params() market.Params {
	var admin [20]byte
	if raw, err := hex.DecodeString(c.AdminAccount); err == nil && len(raw) == len(admin) {
		copy(admin[:], raw)
	}
	return market.Params{
		QueueCapacity:          c.QueueCapacity,
		DAOLiquiditySlots:      c.DAOLiquiditySlots,
		AMMFeeBps:              c.AMMFeeBps,
		TwapStartDelayMS:       c.TwapStartDelayMS,
		TwapCapStep:            c.TwapCapStep,
		TwapInitialObservation: c.TwapInitialObservation,
		PassThresholdBps:       c.PassThresholdBps,
		TradingPeriodMS:        c.TradingPeriodMS,
		MinAssetLiquidity:      c.MinAssetLiquidity,
		MinStableLiquidity:     c.MinStableLiquidity,
		RecreationWindowMS:     c.RecreationWindowMS,
		HighValueFeeThreshold:  c.HighValueFeeThreshold,
		MaxProposalChainDepth:  c.MaxProposalChainDepth,
		SubsidyCranks:          c.SubsidyCranks,
		KeeperFeePerCrank:      c.KeeperFeePerCrank,
		Admin:                  admin,
	}
}

// JournalConfig configures the durable event journal.
type JournalConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Path    string `toml:"path" mapstructure:"path"`
}

// GetConfigPath returns the path the config was loaded from, empty when only
// defaults and environment were used.
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() string {
	return "futarchyd.toml"
}

// ConfigPathFromDir returns the config path inside a directory.
func ConfigPathFromDir(configDir string) string {
	return filepath.Join(configDir, "futarchyd.toml")
}
