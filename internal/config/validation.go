package config

import (
	"encoding/hex"
	"fmt"

	"github.com/futarchy-labs/futarchyd/internal/core/fpmath"
	"github.com/futarchy-labs/futarchyd/internal/indexer"
)

// ValidateConfig performs validation on the complete configuration.
func ValidateConfig(config *Config) error {
	if config.DAOID == 0 {
		return fmt.Errorf("dao_id must be positive")
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := validateDatabaseConfig(&config.Database); err != nil {
		return fmt.Errorf("database config validation failed: %w", err)
	}
	if err := validateIndexerConfig(&config.Indexer); err != nil {
		return fmt.Errorf("indexer config validation failed: %w", err)
	}
	if err := validateMarketConfig(&config.Market); err != nil {
		return fmt.Errorf("market config validation failed: %w", err)
	}
	if config.Journal.Enabled && config.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	return nil
}

func validateServerConfig(server *ServerConfig) error {
	if server.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if server.RequestTimeoutMS <= 0 {
		return fmt.Errorf("request_timeout_ms must be positive, got %d", server.RequestTimeoutMS)
	}
	return nil
}

func validateDatabaseConfig(db *DatabaseConfig) error {
	switch db.Backend {
	case "pebble", "leveldb":
		if db.Path == "" {
			return fmt.Errorf("path is required for the %s backend", db.Backend)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown backend %q (supported: pebble, leveldb, memory)", db.Backend)
	}
	if db.CacheSize < 0 {
		return fmt.Errorf("cache_size cannot be negative, got %d", db.CacheSize)
	}
	return nil
}

func validateIndexerConfig(idx *IndexerConfig) error {
	if !idx.Enabled {
		return nil
	}
	switch idx.Driver {
	case indexer.DriverSQLite, indexer.DriverPostgres:
	default:
		return fmt.Errorf("unknown driver %q (supported: sqlite, postgres)", idx.Driver)
	}
	if idx.DSN == "" {
		return fmt.Errorf("dsn is required when the indexer is enabled")
	}
	return nil
}

func validateMarketConfig(m *MarketConfig) error {
	if m.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", m.QueueCapacity)
	}
	if m.DAOLiquiditySlots < 0 || m.DAOLiquiditySlots > m.QueueCapacity {
		return fmt.Errorf("dao_liquidity_slots must be within [0, queue_capacity], got %d", m.DAOLiquiditySlots)
	}
	if m.AMMFeeBps >= fpmath.FeeScale {
		return fmt.Errorf("amm_fee_bps must be below %d, got %d", fpmath.FeeScale, m.AMMFeeBps)
	}
	if m.PassThresholdBps >= fpmath.FeeScale {
		return fmt.Errorf("pass_threshold_bps must be below %d, got %d", fpmath.FeeScale, m.PassThresholdBps)
	}
	if m.TradingPeriodMS <= m.TwapStartDelayMS {
		return fmt.Errorf("trading_period_ms (%d) must exceed twap_start_delay_ms (%d)",
			m.TradingPeriodMS, m.TwapStartDelayMS)
	}
	if m.TwapCapStep == 0 {
		return fmt.Errorf("twap_cap_step must be positive")
	}
	if m.MinAssetLiquidity == 0 || m.MinStableLiquidity == 0 {
		return fmt.Errorf("per-pool liquidity floors must be positive")
	}
	if m.SubsidyCranks == 0 {
		return fmt.Errorf("subsidy_cranks must be positive")
	}
	if m.AdminAccount != "" {
		raw, err := hex.DecodeString(m.AdminAccount)
		if err != nil || len(raw) != 20 {
			return fmt.Errorf("admin_account must be 40 hex characters")
		}
	}
	return nil
}
