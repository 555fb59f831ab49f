package state

import (
	"encoding/binary"

	"github.com/futarchy-labs/futarchyd/internal/core/queue"
)

// Proposal lifecycle stages as persisted.
const (
	ProposalStateTrading uint8 = iota
	ProposalStatePassed
	ProposalStateFailed
)

// ProposalEntry is the ledger representation of an activated proposal. Its
// outcome pools and escrow live under their own keylets; the entry carries
// only the lifecycle record.
type ProposalEntry struct {
	ProposalID uint64
	DAOID      uint64
	Proposer   [20]byte
	Data       queue.Data

	State        uint8
	HasEscrow    bool
	ActivatedAt  uint64
	TradingEndAt uint64

	// Winner and FinalTwaps are zero until the proposal is finalized.
	Winner     uint8
	FinalTwaps []uint64
}

// SerializeProposal encodes an activated proposal entry.
func SerializeProposal(p *ProposalEntry) []byte {
	w := &writer{}
	w.u8(entryVersion)
	w.u64(p.ProposalID)
	w.u64(p.DAOID)
	w.bytes20(p.Proposer)
	writeProposalData(w, p.Data)
	w.u8(p.State)
	w.boolean(p.HasEscrow)
	w.u64(p.ActivatedAt)
	w.u64(p.TradingEndAt)
	w.u8(p.Winner)
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(p.FinalTwaps)))
	for _, t := range p.FinalTwaps {
		w.u64(t)
	}
	return w.buf
}

// ParseProposal decodes an activated proposal entry.
func ParseProposal(data []byte) (*ProposalEntry, error) {
	r := &reader{buf: data}
	r.version()

	p := &ProposalEntry{
		ProposalID:   r.u64(),
		DAOID:        r.u64(),
		Proposer:     r.bytes20(),
		Data:         readProposalData(r),
		State:        r.u8(),
		HasEscrow:    r.boolean(),
		ActivatedAt:  r.u64(),
		TradingEndAt: r.u64(),
		Winner:       r.u8(),
	}
	count := int(r.u32())
	for i := 0; i < count && r.err == nil; i++ {
		p.FinalTwaps = append(p.FinalTwaps, r.u64())
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return p, nil
}
