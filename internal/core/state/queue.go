package state

import (
	"encoding/binary"

	"github.com/futarchy-labs/futarchyd/internal/core/queue"
)

func writeProposalData(w *writer, d queue.Data) {
	w.str(d.Title)
	w.str(d.Metadata)
	w.u8(d.OutcomeCount)
}

func readProposalData(r *reader) queue.Data {
	return queue.Data{
		Title:        r.str(),
		Metadata:     r.str(),
		OutcomeCount: r.u8(),
	}
}

func writeQueuedProposal(w *writer, p *queue.QueuedProposal) {
	w.u64(p.ProposalID)
	w.u64(p.DAOID)
	w.u64(p.Fee)
	w.boolean(p.UsesDAOLiquidity)
	w.bytes20(p.Proposer)
	writeProposalData(w, p.Data)
	w.u64(p.Bond)
	w.str(p.IntentKey)
	w.u8(p.ChainDepth)
	w.u8(p.ParentOutcome)
	w.u32(uint32(len(p.Children)))
	for _, d := range p.Children {
		writeProposalData(w, d)
	}
	w.u64(p.TimestampMS)
}

func readQueuedProposal(r *reader) *queue.QueuedProposal {
	p := &queue.QueuedProposal{
		ProposalID:       r.u64(),
		DAOID:            r.u64(),
		Fee:              r.u64(),
		UsesDAOLiquidity: r.boolean(),
		Proposer:         r.bytes20(),
		Data:             readProposalData(r),
		Bond:             r.u64(),
		IntentKey:        r.str(),
		ChainDepth:       r.u8(),
		ParentOutcome:    r.u8(),
	}
	count := int(r.u32())
	for i := 0; i < count && r.err == nil; i++ {
		p.Children = append(p.Children, readProposalData(r))
	}
	p.TimestampMS = r.u64()
	return p
}

// SerializeQueue encodes a proposal queue with its residents in priority
// order.
func SerializeQueue(q *queue.ProposalQueue) []byte {
	w := &writer{}
	w.u8(entryVersion)
	w.u64(q.DAOID)
	w.u32(uint32(q.TotalCapacity))
	w.u32(uint32(q.DAOLiquiditySlots))

	residents := q.Residents()
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(residents)))
	for _, p := range residents {
		writeQueuedProposal(w, p)
	}
	return w.buf
}

// ParseQueue decodes a proposal queue. Residents are re-admitted through the
// queue's own Insert path, so a corrupt entry that violates capacity or
// ordering constraints is rejected rather than reconstructed.
func ParseQueue(data []byte) (*queue.ProposalQueue, error) {
	r := &reader{buf: data}
	r.version()

	daoID := r.u64()
	capacity := int(r.u32())
	daoSlots := int(r.u32())
	count := int(r.u32())

	residents := make([]*queue.QueuedProposal, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		residents = append(residents, readQueuedProposal(r))
	}
	if err := r.done(); err != nil {
		return nil, err
	}

	q, err := queue.New(daoID, capacity, daoSlots)
	if err != nil {
		return nil, err
	}
	for _, p := range residents {
		if _, err := q.Insert(p); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// SerializeReservation encodes a recreation reservation.
func SerializeReservation(res *queue.Reservation) []byte {
	w := &writer{}
	w.u8(entryVersion)
	w.u64(res.ParentProposalID)
	w.u8(res.ChainDepth)
	w.u8(res.ParentOutcome)
	w.u64(res.OriginalFee)
	w.bytes20(res.Proposer)
	w.u64(res.RecreationExpiresAt)
	w.u32(res.RecreationCount)
	w.u32(uint32(len(res.ChildPayloads)))
	for _, d := range res.ChildPayloads {
		writeProposalData(w, d)
	}
	return w.buf
}

// ParseReservation decodes a recreation reservation.
func ParseReservation(data []byte) (*queue.Reservation, error) {
	r := &reader{buf: data}
	r.version()

	res := &queue.Reservation{
		ParentProposalID:    r.u64(),
		ChainDepth:          r.u8(),
		ParentOutcome:       r.u8(),
		OriginalFee:         r.u64(),
		Proposer:            r.bytes20(),
		RecreationExpiresAt: r.u64(),
		RecreationCount:     r.u32(),
	}
	count := int(r.u32())
	for i := 0; i < count && r.err == nil; i++ {
		res.ChildPayloads = append(res.ChildPayloads, readProposalData(r))
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return res, nil
}
