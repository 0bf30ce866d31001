// Package reader is a position-tracked view over a byte slice: the
// byte reader component (L) of the static analyzer. It is the
// descendant of the teacher's util.ByteReader, widened with seek,
// sub-slicing, and name reading per spec.md §4.1.
package reader

import (
	"unicode/utf8"

	"github.com/vertexdlt/wasmstat/wasmerr"
)

// Reader holds a (buffer, position, end) triple. Position is monotone
// non-decreasing except for explicit Seek calls; 0 <= pos <= end <=
// len(buf) always holds.
type Reader struct {
	buf []byte
	pos int
	end int
}

// New wraps the whole of buf.
func New(buf []byte) *Reader {
	return &Reader{buf: buf, pos: 0, end: len(buf)}
}

// Sub returns a fresh Reader over buf[start:end], used to scope a
// section payload so its own overruns can't read past the section.
func Sub(buf []byte, start, end int) *Reader {
	return &Reader{buf: buf, pos: start, end: end}
}

// Pos reports the current read offset.
func (r *Reader) Pos() int { return r.pos }

// End reports the exclusive upper bound this Reader may read up to.
func (r *Reader) End() int { return r.end }

// Len returns the backing buffer length (not the scoped end).
func (r *Reader) Len() int { return len(r.buf) }

// AtEnd reports whether the reader has consumed its entire span.
func (r *Reader) AtEnd() bool { return r.pos >= r.end }

// Remaining is the number of unread bytes left in the scoped span.
func (r *Reader) Remaining() int { return r.end - r.pos }

// Seek moves the read position, failing if it would leave [0, end].
func (r *Reader) Seek(p int) error {
	if p < 0 || p > r.end {
		return wasmerr.SeekOutOfRange(p)
	}
	r.pos = p
	return nil
}

// ReadU8 reads one byte and advances by 1.
func (r *Reader) ReadU8() (byte, error) {
	if r.pos+1 > r.end {
		return 0, wasmerr.EOF()
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads n bytes and advances by n.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, wasmerr.BadLength(n)
	}
	if r.pos+n > r.end {
		return nil, wasmerr.EOF()
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadName reads a ULEB-length-prefixed UTF-8 string.
func (r *Reader) ReadName() (string, error) {
	n, err := r.ReadULEB(32)
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", wasmerr.BadUTF8()
	}
	return string(b), nil
}

// ReadULEB reads an unsigned LEB128 integer, failing with a
// leb-overflow error if the accumulated shift would reach maxBits+7
// before a terminating byte (MSB clear). No minimum-encoding check.
func (r *Reader) ReadULEB(maxBits uint32) (uint64, error) {
	var result uint64
	var shift uint32
	for {
		if shift >= maxBits+7 {
			return 0, wasmerr.LebOverflow(maxBits)
		}
		b, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// ReadSLEB reads a signed LEB128 integer with the same termination
// rule as ReadULEB; after the terminating byte, if its 0x40 bit is set
// and the final shift is less than maxBits, the result is sign-extended.
func (r *Reader) ReadSLEB(maxBits uint32) (int64, error) {
	var result int64
	var shift uint32
	var b byte
	var err error
	for {
		if shift >= maxBits+7 {
			return 0, wasmerr.LebOverflow(maxBits)
		}
		b, err = r.ReadU8()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < maxBits && b&0x40 != 0 {
		result |= -(int64(1) << shift)
	}
	return result, nil
}
