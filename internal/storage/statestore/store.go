// Package statestore persists market ledger entries in a key-value database.
// Values above a size floor are LZ4-compressed, and a fixed-size LRU keeps
// hot entries decoded in memory. The store satisfies the transaction engine's
// ledger view, so an engine can run directly against disk.
package statestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/futarchy-labs/futarchyd/internal/core/ledger/keylet"
	"github.com/futarchy-labs/futarchyd/internal/core/tx"
	"github.com/futarchy-labs/futarchyd/internal/storage/compression"
	"github.com/futarchy-labs/futarchyd/internal/storage/keyValueDb"
)

const (
	// codecRaw and codecLZ4 tag the stored value envelope.
	codecRaw byte = 0
	codecLZ4 byte = 1

	// envelopeHeaderSize is the codec byte plus the original length.
	envelopeHeaderSize = 5

	// minCompressSize is the value size below which compression is skipped.
	minCompressSize = 64

	// DefaultCacheSize is the entry cache capacity when none is configured.
	DefaultCacheSize = 4096
)

// ErrCorruptValue is returned when a stored envelope cannot be decoded.
var ErrCorruptValue = errors.New("statestore: corrupt value envelope")

// Options configures a Store.
type Options struct {
	// CacheSize is the number of decoded entries kept in memory.
	// Zero selects DefaultCacheSize.
	CacheSize int
}

// Store is a persistent ledger view over a key-value database.
type Store struct {
	db    keyValueDb.DB
	lz4   compression.Compressor
	cache *lru.Cache[[32]byte, []byte]
}

var _ tx.LedgerView = (*Store)(nil)

// New creates a store over the given database.
func New(db keyValueDb.DB, opts Options) (*Store, error) {
	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[32]byte, []byte](size)
	if err != nil {
		return nil, err
	}
	lz4, err := compression.Get("lz4")
	if err != nil {
		return nil, err
	}
	return &Store{db: db, lz4: lz4, cache: cache}, nil
}

// encode wraps data in the value envelope, compressing when it pays off.
func (s *Store) encode(data []byte) ([]byte, error) {
	header := make([]byte, envelopeHeaderSize)
	binary.BigEndian.PutUint32(header[1:], uint32(len(data)))

	if len(data) >= minCompressSize {
		compressed, err := s.lz4.Compress(data)
		if err != nil {
			return nil, err
		}
		// A zero-length block means the data is incompressible.
		if len(compressed) > 0 && len(compressed) < len(data) {
			header[0] = codecLZ4
			return append(header, compressed...), nil
		}
	}

	header[0] = codecRaw
	return append(header, data...), nil
}

// decode unwraps a value envelope.
func (s *Store) decode(value []byte) ([]byte, error) {
	if len(value) < envelopeHeaderSize {
		return nil, ErrCorruptValue
	}
	originalSize := int(binary.BigEndian.Uint32(value[1:envelopeHeaderSize]))
	payload := value[envelopeHeaderSize:]

	switch value[0] {
	case codecRaw:
		if len(payload) != originalSize {
			return nil, ErrCorruptValue
		}
		return payload, nil
	case codecLZ4:
		return s.lz4.Decompress(payload, originalSize)
	}
	return nil, fmt.Errorf("%w: unknown codec %d", ErrCorruptValue, value[0])
}

// Read returns the entry data, or (nil, nil) when the entry does not exist.
func (s *Store) Read(k keylet.Keylet) ([]byte, error) {
	if data, ok := s.cache.Get(k.Key); ok {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	value, err := s.db.Read(context.Background(), k.Key[:])
	if err != nil {
		if errors.Is(err, keyValueDb.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	data, err := s.decode(value)
	if err != nil {
		return nil, err
	}
	s.cache.Add(k.Key, data)

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *Store) Exists(k keylet.Keylet) (bool, error) {
	if s.cache.Contains(k.Key) {
		return true, nil
	}
	_, err := s.db.Read(context.Background(), k.Key[:])
	if err != nil {
		if errors.Is(err, keyValueDb.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) Insert(k keylet.Keylet, data []byte) error {
	exists, err := s.Exists(k)
	if err != nil {
		return err
	}
	if exists {
		return tx.ErrEntryExists
	}
	return s.put(k, data)
}

func (s *Store) Update(k keylet.Keylet, data []byte) error {
	exists, err := s.Exists(k)
	if err != nil {
		return err
	}
	if !exists {
		return tx.ErrEntryNotFound
	}
	return s.put(k, data)
}

func (s *Store) put(k keylet.Keylet, data []byte) error {
	value, err := s.encode(data)
	if err != nil {
		return err
	}
	if err := s.db.Write(context.Background(), k.Key[:], value); err != nil {
		return err
	}
	s.cache.Add(k.Key, append([]byte(nil), data...))
	return nil
}

func (s *Store) Erase(k keylet.Keylet) error {
	exists, err := s.Exists(k)
	if err != nil {
		return err
	}
	if !exists {
		return tx.ErrEntryNotFound
	}
	if err := s.db.Delete(context.Background(), k.Key[:]); err != nil {
		return err
	}
	s.cache.Remove(k.Key)
	return nil
}

// ForEach visits every stored entry; return false from fn to stop early.
func (s *Store) ForEach(fn func(key [32]byte, data []byte) bool) error {
	iter, err := s.db.Iterator(context.Background(), nil, nil)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.Next() {
		raw := iter.Key()
		if len(raw) != 32 {
			return fmt.Errorf("%w: key length %d", ErrCorruptValue, len(raw))
		}
		var key [32]byte
		copy(key[:], raw)

		data, err := s.decode(iter.Value())
		if err != nil {
			return err
		}
		if !fn(key, data) {
			return nil
		}
	}
	return iter.Error()
}
