package tx

import (
	"github.com/futarchy-labs/futarchyd/internal/core/ledger/keylet"
)

// action is the kind of tracked modification.
type action int

const (
	actionCache action = iota
	actionInsert
	actionModify
	actionErase
)

// trackedEntry is one entry's staged state.
type trackedEntry struct {
	keylet  keylet.Keylet
	action  action
	current []byte
}

// stateTable wraps a LedgerView and stages every modification so a failing
// transactor leaves the base view untouched. On success the staged changes
// are committed in one pass; on failure the table is simply dropped.
type stateTable struct {
	base  LedgerView
	items map[[32]byte]*trackedEntry
}

func newStateTable(base LedgerView) *stateTable {
	return &stateTable{
		base:  base,
		items: make(map[[32]byte]*trackedEntry),
	}
}

func (t *stateTable) Read(k keylet.Keylet) ([]byte, error) {
	if e, ok := t.items[k.Key]; ok {
		if e.action == actionErase {
			return nil, nil
		}
		return e.current, nil
	}
	data, err := t.base.Read(k)
	if err != nil {
		return nil, err
	}
	if data != nil {
		t.items[k.Key] = &trackedEntry{keylet: k, action: actionCache, current: data}
	}
	return data, nil
}

func (t *stateTable) Exists(k keylet.Keylet) (bool, error) {
	if e, ok := t.items[k.Key]; ok {
		return e.action != actionErase, nil
	}
	return t.base.Exists(k)
}

func (t *stateTable) Insert(k keylet.Keylet, data []byte) error {
	if e, ok := t.items[k.Key]; ok {
		if e.action != actionErase {
			return ErrEntryExists
		}
		// Re-inserting an erased entry becomes a modify.
		e.action = actionModify
		e.current = data
		return nil
	}
	exists, err := t.base.Exists(k)
	if err != nil {
		return err
	}
	if exists {
		return ErrEntryExists
	}
	t.items[k.Key] = &trackedEntry{keylet: k, action: actionInsert, current: data}
	return nil
}

func (t *stateTable) Update(k keylet.Keylet, data []byte) error {
	if e, ok := t.items[k.Key]; ok {
		if e.action == actionErase {
			return ErrEntryNotFound
		}
		if e.action == actionCache {
			e.action = actionModify
		}
		e.current = data
		return nil
	}
	exists, err := t.base.Exists(k)
	if err != nil {
		return err
	}
	if !exists {
		return ErrEntryNotFound
	}
	t.items[k.Key] = &trackedEntry{keylet: k, action: actionModify, current: data}
	return nil
}

func (t *stateTable) Erase(k keylet.Keylet) error {
	if e, ok := t.items[k.Key]; ok {
		if e.action == actionErase {
			return ErrEntryNotFound
		}
		if e.action == actionInsert {
			// Inserted and erased in the same transaction: no trace.
			delete(t.items, k.Key)
			return nil
		}
		e.action = actionErase
		e.current = nil
		return nil
	}
	exists, err := t.base.Exists(k)
	if err != nil {
		return err
	}
	if !exists {
		return ErrEntryNotFound
	}
	t.items[k.Key] = &trackedEntry{keylet: k, action: actionErase}
	return nil
}

func (t *stateTable) ForEach(fn func(key [32]byte, data []byte) bool) error {
	stop := false
	err := t.base.ForEach(func(key [32]byte, data []byte) bool {
		if e, ok := t.items[key]; ok {
			if e.action == actionErase {
				return true
			}
			if !fn(key, e.current) {
				stop = true
				return false
			}
			return true
		}
		if !fn(key, data) {
			stop = true
			return false
		}
		return true
	})
	if err != nil || stop {
		return err
	}
	for key, e := range t.items {
		if e.action != actionInsert {
			continue
		}
		if !fn(key, e.current) {
			return nil
		}
	}
	return nil
}

// commit applies all staged changes to the base view.
func (t *stateTable) commit() error {
	for _, e := range t.items {
		switch e.action {
		case actionInsert:
			if err := t.base.Insert(e.keylet, e.current); err != nil {
				return err
			}
		case actionModify:
			if err := t.base.Update(e.keylet, e.current); err != nil {
				return err
			}
		case actionErase:
			if err := t.base.Erase(e.keylet); err != nil {
				return err
			}
		}
	}
	return nil
}
