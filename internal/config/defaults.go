package config

import "github.com/spf13/viper"

// setDefaults sets every default value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("dao_id", 1)

	// Server defaults
	v.SetDefault("server.addr", "127.0.0.1:5005")
	v.SetDefault("server.request_timeout_ms", 30_000)

	// Database defaults
	v.SetDefault("database.backend", "pebble")
	v.SetDefault("database.path", "/var/lib/futarchyd/db")
	v.SetDefault("database.cache_size", 4096)

	// Indexer defaults: embedded sqlite, disabled until opted in
	v.SetDefault("indexer.enabled", false)
	v.SetDefault("indexer.driver", "sqlite")
	v.SetDefault("indexer.dsn", "/var/lib/futarchyd/index.db")
	v.SetDefault("indexer.max_open_conns", 0)
	v.SetDefault("indexer.max_idle_conns", 0)

	// Market defaults
	v.SetDefault("market.queue_capacity", 16)
	v.SetDefault("market.dao_liquidity_slots", 4)
	v.SetDefault("market.amm_fee_bps", 30)
	v.SetDefault("market.twap_start_delay_ms", 60_000)
	v.SetDefault("market.twap_cap_step", 1_000_000_000_000)
	v.SetDefault("market.twap_initial_observation", 1_000_000_000_000)
	v.SetDefault("market.pass_threshold_bps", 300)
	v.SetDefault("market.trading_period_ms", uint64(3*24*60*60*1000))
	v.SetDefault("market.min_asset_liquidity", 1_000_000)
	v.SetDefault("market.min_stable_liquidity", 1_000_000)
	v.SetDefault("market.recreation_window_ms", 0) // 0 selects the built-in window
	v.SetDefault("market.high_value_fee_threshold", 0)
	v.SetDefault("market.max_proposal_chain_depth", 8)
	v.SetDefault("market.subsidy_cranks", 12)
	v.SetDefault("market.keeper_fee_per_crank", 0)

	// Journal defaults
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", "/var/lib/futarchyd/journal.cbor")

	v.SetDefault("debug_logfile", "")
}
