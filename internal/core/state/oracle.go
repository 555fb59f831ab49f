package state

import (
	"github.com/futarchy-labs/futarchyd/internal/core/oracle"
)

// SerializeOracle encodes a TWAP oracle.
func SerializeOracle(o *oracle.Oracle) []byte {
	w := &writer{}
	w.u8(entryVersion)
	w.u64(o.LastPrice)
	w.u64(o.LastTimestamp)
	w.u256(o.TotalCumulativePrice)
	w.u256(o.LastWindowEndCumulativePrice)
	w.u64(o.LastWindowEnd)
	w.u64(o.LastWindowTwap)
	w.u64(o.TwapStartDelay)
	w.u64(o.TwapCapStep)
	w.u64(o.MarketStartTime)
	w.u64(o.TwapInitializationPrice)
	w.boolean(o.Started())
	return w.buf
}

// ParseOracle decodes a TWAP oracle.
func ParseOracle(data []byte) (*oracle.Oracle, error) {
	r := &reader{buf: data}
	r.version()

	o := &oracle.Oracle{
		LastPrice:                    r.u64(),
		LastTimestamp:                r.u64(),
		TotalCumulativePrice:         r.u256(),
		LastWindowEndCumulativePrice: r.u256(),
		LastWindowEnd:                r.u64(),
		LastWindowTwap:               r.u64(),
		TwapStartDelay:               r.u64(),
		TwapCapStep:                  r.u64(),
		MarketStartTime:              r.u64(),
		TwapInitializationPrice:      r.u64(),
	}
	started := r.boolean()
	if err := r.done(); err != nil {
		return nil, err
	}
	if started {
		o.MarkStarted()
	}
	return o, nil
}
