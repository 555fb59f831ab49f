package market

// Clock supplies the coordinator's notion of time in unix milliseconds. The
// host injects it; tests use synthetic clocks.
type Clock interface {
	Now() uint64
}

// FeeManager custodies proposal fees while their proposals are resident.
// The coordinator never holds funds itself: a fee is deposited on admission,
// refunded to the proposer when the proposal is outbid, slashed to the DAO
// when it goes stale, and spent to the DAO when the proposal activates.
type FeeManager interface {
	Deposit(proposalID, amount uint64) error
	Refund(proposalID uint64) uint64
	Slash(proposalID uint64) uint64
}

// Params are the per-DAO market parameters. The DAO layer owns them; the
// coordinator only reads them.
type Params struct {
	// QueueCapacity bounds the proposal queue; DAOLiquiditySlots of it are
	// reserved for DAO-funded proposals.
	QueueCapacity     int
	DAOLiquiditySlots int

	// AMMFeeBps is the total swap fee for outcome pools.
	AMMFeeBps uint64

	TwapStartDelayMS       uint64
	TwapCapStep            uint64
	TwapInitialObservation uint64

	// PassThresholdBps is the margin by which a winning outcome's TWAP must
	// beat the baseline outcome's TWAP.
	PassThresholdBps uint64

	TradingPeriodMS uint64

	// MinAssetLiquidity / MinStableLiquidity are the per-pool funding floors
	// enforced at activation.
	MinAssetLiquidity  uint64
	MinStableLiquidity uint64

	RecreationWindowMS uint64

	// HighValueFeeThreshold marks a submission as high value when its fee
	// reaches it, granting a recreation reservation at admission even without
	// an eviction. Zero disables the heuristic.
	HighValueFeeThreshold uint64

	// MaxProposalChainDepth bounds how deep nth-order proposal chains may
	// nest.
	MaxProposalChainDepth uint8

	SubsidyCranks     uint32
	KeeperFeePerCrank uint64

	// Admin is the only identity allowed to collect accumulated protocol
	// fees. The zero value disables collection.
	Admin [20]byte
}

// DAOConfig resolves market parameters for a DAO.
type DAOConfig interface {
	MarketParams(daoID uint64) (Params, error)
}
