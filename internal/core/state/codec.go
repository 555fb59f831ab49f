// Package state serializes market entries to their binary ledger
// representation. Layouts are fixed big-endian with a leading version byte;
// every Parse function consumes the whole buffer or fails, so truncated or
// padded entries are never silently accepted.
package state

import (
	"encoding/binary"
	"errors"

	"github.com/futarchy-labs/futarchyd/internal/core/fpmath"
)

var (
	ErrShortEntry    = errors.New("state: entry truncated")
	ErrBadVersion    = errors.New("state: unsupported entry version")
	ErrTrailingBytes = errors.New("state: trailing bytes after entry")
)

const entryVersion byte = 1

type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) u64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

// u256 writes limbs most-significant first.
func (w *writer) u256(v fpmath.Uint256) {
	for i := 3; i >= 0; i-- {
		w.u64(v.Limbs[i])
	}
}

func (w *writer) bytes20(v [20]byte) {
	w.buf = append(w.buf, v[:]...)
}

// str writes a 16-bit length prefix followed by the raw bytes.
func (w *writer) str(s string) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(s)))
	w.buf = append(w.buf, s...)
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = ErrShortEntry
		return nil
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) boolean() bool {
	return r.u8() != 0
}

func (r *reader) u256() fpmath.Uint256 {
	var v fpmath.Uint256
	for i := 3; i >= 0; i-- {
		v.Limbs[i] = r.u64()
	}
	return v
}

func (r *reader) bytes20() [20]byte {
	var v [20]byte
	copy(v[:], r.take(20))
	return v
}

func (r *reader) str() string {
	b := r.take(2)
	if b == nil {
		return ""
	}
	n := int(binary.BigEndian.Uint16(b))
	return string(r.take(n))
}

// version checks the leading version byte.
func (r *reader) version() {
	if v := r.u8(); r.err == nil && v != entryVersion {
		r.err = ErrBadVersion
	}
}

// done fails unless the buffer was consumed exactly.
func (r *reader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return ErrTrailingBytes
	}
	return nil
}
