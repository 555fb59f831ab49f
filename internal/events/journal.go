package events

import (
	"errors"
	"fmt"
	"io"

	"github.com/ugorji/go/codec"
)

var (
	// ErrUnknownEventType indicates a journal record whose type tag has no
	// registered payload.
	ErrUnknownEventType = errors.New("events: unknown event type")
)

// envelope is the on-disk journal record: a type tag plus the CBOR-encoded
// payload, so readers can skip types they do not understand.
type envelope struct {
	Type    Type      `codec:"t"`
	Payload codec.Raw `codec:"p"`
}

func cborHandle() *codec.CborHandle {
	h := new(codec.CborHandle)
	h.Canonical = true
	h.Raw = true
	return h
}

// newPayload maps a type tag to an empty payload for decoding.
func newPayload(t Type) (Event, bool) {
	switch t {
	case TypeProposalQueued:
		return &ProposalQueued{}, true
	case TypeProposalEvicted:
		return &ProposalEvicted{}, true
	case TypeProposalActivated:
		return &ProposalActivated{}, true
	case TypeProposalFinalized:
		return &ProposalFinalized{}, true
	case TypeSwap:
		return &Swap{}, true
	case TypeLiquidityAdded:
		return &LiquidityAdded{}, true
	case TypeLiquidityRemoved:
		return &LiquidityRemoved{}, true
	case TypeSubsidyCranked:
		return &SubsidyCranked{}, true
	case TypeSubsidyFinalized:
		return &SubsidyFinalized{}, true
	}
	return nil, false
}

// JournalWriter appends CBOR event records to a stream.
type JournalWriter struct {
	enc *codec.Encoder
}

func NewJournalWriter(w io.Writer) *JournalWriter {
	return &JournalWriter{enc: codec.NewEncoder(w, cborHandle())}
}

// Append writes one event record.
func (j *JournalWriter) Append(ev Event) error {
	var payload []byte
	if err := codec.NewEncoderBytes(&payload, cborHandle()).Encode(ev); err != nil {
		return fmt.Errorf("encoding %s payload: %w", ev.EventType(), err)
	}
	return j.enc.Encode(envelope{Type: ev.EventType(), Payload: codec.Raw(payload)})
}

// JournalReader decodes event records from a stream.
type JournalReader struct {
	dec *codec.Decoder
}

func NewJournalReader(r io.Reader) *JournalReader {
	return &JournalReader{dec: codec.NewDecoder(r, cborHandle())}
}

// Next returns the next event, or io.EOF at end of stream.
func (j *JournalReader) Next() (Event, error) {
	var env envelope
	if err := j.dec.Decode(&env); err != nil {
		return nil, err
	}
	ev, ok := newPayload(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
	if err := codec.NewDecoderBytes(env.Payload, cborHandle()).Decode(ev); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", env.Type, err)
	}
	return deref(ev), nil
}

// deref unwraps decode targets so replayed events carry the same dynamic
// types as live ones emitted through the hub.
func deref(ev Event) Event {
	switch e := ev.(type) {
	case *ProposalQueued:
		return *e
	case *ProposalEvicted:
		return *e
	case *ProposalActivated:
		return *e
	case *ProposalFinalized:
		return *e
	case *Swap:
		return *e
	case *LiquidityAdded:
		return *e
	case *LiquidityRemoved:
		return *e
	case *SubsidyCranked:
		return *e
	case *SubsidyFinalized:
		return *e
	}
	return ev
}
