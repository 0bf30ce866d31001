// Package leb128 is a thin, typed convenience layer over reader.Reader's
// generic ReadULEB/ReadSLEB, mirroring the teacher's leb128 package
// (which wrapped util.ByteReader the same way). Kept as its own
// package, rather than folded into reader, because module.go and the
// instruction walker both want the fixed-width ReadUint32/ReadInt64
// names the teacher's call sites already use.
package leb128

import "github.com/vertexdlt/wasmstat/reader"

// ReadUint32 reads a ULEB128 encoded value bounded to 32 bits.
func ReadUint32(r *reader.Reader) (uint32, error) {
	v, err := r.ReadULEB(32)
	return uint32(v), err
}

// ReadUint64 reads a ULEB128 encoded value bounded to 64 bits.
func ReadUint64(r *reader.Reader) (uint64, error) {
	return r.ReadULEB(64)
}

// ReadInt32 reads an SLEB128 encoded value bounded to 32 bits.
func ReadInt32(r *reader.Reader) (int32, error) {
	v, err := r.ReadSLEB(32)
	return int32(v), err
}

// ReadInt33 reads an SLEB128 encoded value bounded to 33 bits, the
// width the spec requires for block-types and heap-types.
func ReadInt33(r *reader.Reader) (int64, error) {
	return r.ReadSLEB(33)
}

// ReadInt64 reads an SLEB128 encoded value bounded to 64 bits.
func ReadInt64(r *reader.Reader) (int64, error) {
	return r.ReadSLEB(64)
}
