package state

import (
	"github.com/futarchy-labs/futarchyd/internal/core/subsidy"
)

// SerializeEscrow encodes a subsidy escrow.
func SerializeEscrow(e *subsidy.Escrow) []byte {
	w := &writer{}
	w.u8(entryVersion)
	w.u64(e.ProposalID)
	w.u64(e.DAOID)
	w.u32(uint32(len(e.AMMIDs)))
	for _, id := range e.AMMIDs {
		w.u64(id)
	}
	w.u64(e.SubsidyBalance)
	w.u64(e.TotalSubsidy)
	w.u32(e.CranksCompleted)
	w.u32(e.TotalCranks)
	w.u64(e.KeeperFeePerCrank)
	w.u64(e.LastCrankTime)
	return w.buf
}

// ParseEscrow decodes a subsidy escrow.
func ParseEscrow(data []byte) (*subsidy.Escrow, error) {
	r := &reader{buf: data}
	r.version()

	e := &subsidy.Escrow{
		ProposalID: r.u64(),
		DAOID:      r.u64(),
	}
	count := int(r.u32())
	for i := 0; i < count && r.err == nil; i++ {
		e.AMMIDs = append(e.AMMIDs, r.u64())
	}
	e.SubsidyBalance = r.u64()
	e.TotalSubsidy = r.u64()
	e.CranksCompleted = r.u32()
	e.TotalCranks = r.u32()
	e.KeeperFeePerCrank = r.u64()
	e.LastCrankTime = r.u64()
	if err := r.done(); err != nil {
		return nil, err
	}
	return e, nil
}
