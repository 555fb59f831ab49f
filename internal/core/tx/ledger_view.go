package tx

import (
	"errors"

	"github.com/futarchy-labs/futarchyd/internal/core/ledger/keylet"
)

var (
	// ErrEntryExists rejects inserting over an existing entry.
	ErrEntryExists = errors.New("tx: entry already exists")

	// ErrEntryNotFound rejects updating or erasing a missing entry.
	ErrEntryNotFound = errors.New("tx: entry not found")
)

// LedgerView provides read/write access to market state. Read returns
// (nil, nil) for a missing entry.
type LedgerView interface {
	Read(k keylet.Keylet) ([]byte, error)
	Exists(k keylet.Keylet) (bool, error)
	Insert(k keylet.Keylet, data []byte) error
	Update(k keylet.Keylet, data []byte) error
	Erase(k keylet.Keylet) error

	// ForEach iterates over all entries; return false to stop early.
	ForEach(fn func(key [32]byte, data []byte) bool) error
}

// MemoryView is the in-memory LedgerView used standalone and in tests.
type MemoryView struct {
	entries map[[32]byte][]byte
}

// NewMemoryView creates an empty view.
func NewMemoryView() *MemoryView {
	return &MemoryView{entries: make(map[[32]byte][]byte)}
}

func (v *MemoryView) Read(k keylet.Keylet) ([]byte, error) {
	data, ok := v.entries[k.Key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (v *MemoryView) Exists(k keylet.Keylet) (bool, error) {
	_, ok := v.entries[k.Key]
	return ok, nil
}

func (v *MemoryView) Insert(k keylet.Keylet, data []byte) error {
	if _, ok := v.entries[k.Key]; ok {
		return ErrEntryExists
	}
	v.entries[k.Key] = append([]byte(nil), data...)
	return nil
}

func (v *MemoryView) Update(k keylet.Keylet, data []byte) error {
	if _, ok := v.entries[k.Key]; !ok {
		return ErrEntryNotFound
	}
	v.entries[k.Key] = append([]byte(nil), data...)
	return nil
}

func (v *MemoryView) Erase(k keylet.Keylet) error {
	if _, ok := v.entries[k.Key]; !ok {
		return ErrEntryNotFound
	}
	delete(v.entries, k.Key)
	return nil
}

func (v *MemoryView) ForEach(fn func(key [32]byte, data []byte) bool) error {
	for k, data := range v.entries {
		if !fn(k, data) {
			return nil
		}
	}
	return nil
}
