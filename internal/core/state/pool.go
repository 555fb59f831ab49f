package state

import (
	"encoding/binary"

	"github.com/futarchy-labs/futarchyd/internal/core/amm"
)

// SerializePool encodes an outcome pool together with its owned oracle.
func SerializePool(p *amm.Pool) []byte {
	w := &writer{}
	w.u8(entryVersion)
	w.u64(p.MarketID)
	w.u8(p.OutcomeIdx)
	w.u64(p.AssetReserve)
	w.u64(p.StableReserve)
	w.u64(p.FeeBps)
	w.u64(p.ProtocolFeesStable)
	w.u64(p.LPSupply)
	w.u64(p.PendingLPReward)

	oracleBytes := SerializeOracle(p.Oracle)
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(oracleBytes)))
	w.buf = append(w.buf, oracleBytes...)
	return w.buf
}

// ParsePool decodes an outcome pool.
func ParsePool(data []byte) (*amm.Pool, error) {
	r := &reader{buf: data}
	r.version()

	p := &amm.Pool{
		MarketID:           r.u64(),
		OutcomeIdx:         r.u8(),
		AssetReserve:       r.u64(),
		StableReserve:      r.u64(),
		FeeBps:             r.u64(),
		ProtocolFeesStable: r.u64(),
		LPSupply:           r.u64(),
		PendingLPReward:    r.u64(),
	}
	oracleBytes := r.take(int(r.u32()))
	if err := r.done(); err != nil {
		return nil, err
	}

	o, err := ParseOracle(oracleBytes)
	if err != nil {
		return nil, err
	}
	p.Oracle = o
	return p, nil
}
