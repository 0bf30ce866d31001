// Package wasm implements the module reader (M): parsing the magic and
// version preamble, walking section envelopes, and assembling every
// function's signature plus its raw code body. It is the descendant of
// the teacher's wasm package (module.go/index.go), rewritten against
// the reader/leb128 primitives and narrowed to exactly what the
// instruction walker and stack tracer need — operand *counts*, not
// value types.
package wasm

import (
	"bytes"

	"github.com/vertexdlt/wasmstat/leb128"
	"github.com/vertexdlt/wasmstat/reader"
	"github.com/vertexdlt/wasmstat/wasmerr"
)

// Magic is Wasm's 4-byte magic number, the string "\0asm".
var Magic = [4]byte{0x00, 0x61, 0x73, 0x6d}

// VersionBytes is the only supported binary version, little-endian 1.
var VersionBytes = [4]byte{0x01, 0x00, 0x00, 0x00}

// FuncTypeForm is the leading byte of every type-section entry.
const FuncTypeForm byte = 0x60

// ElemTypeFuncRef is the only table element type the MVP allows.
const ElemTypeFuncRef byte = 0x70

// Import external-kind bytes.
const (
	ExternalFunction byte = 0x00
	ExternalTable    byte = 0x01
	ExternalMemory   byte = 0x02
	ExternalGlobal   byte = 0x03
)

// Section ids.
const (
	secCustom = iota
	secType
	secImport
	secFunction
	secTable
	secMemory
	secGlobal
	secExport
	secStart
	secElement
	secCode
	secData
)

// FuncType is a function signature reduced to operand counts, per
// spec.md §3: "a pair (param-arity, result-arity) — operand counts,
// not types."
type FuncType struct {
	Params  int
	Results int
}

// Module is the module reader's output (spec.md §3 "Module view").
type Module struct {
	// Types is the ordered sequence of declared function types.
	Types []FuncType
	// FuncSigs holds one type-section index per declared function;
	// imported functions come first, then module-defined ones.
	FuncSigs []int
	// CodeBodies holds one raw, not-yet-decoded function body per
	// module-defined function, aligned to the tail of FuncSigs.
	CodeBodies [][]byte
}

// ImportedFuncCount returns len(FuncSigs) - len(CodeBodies), clamped
// to zero so a malformed module never reports a negative import count.
func (m *Module) ImportedFuncCount() int {
	n := len(m.FuncSigs) - len(m.CodeBodies)
	if n < 0 {
		return 0
	}
	return n
}

// FuncSig resolves funcidx to its FuncType, checking both the
// func_sigs and types bounds. This is the one place spec.md's Open
// Question is settled: indices are validated lazily, only when a
// particular call site actually consumes them.
func (m *Module) FuncSig(funcidx int) (FuncType, error) {
	if funcidx < 0 || funcidx >= len(m.FuncSigs) {
		return FuncType{}, wasmerr.New(wasmerr.KindFuncidxOutOfRange, "funcidx %d out of range (%d functions)", funcidx, len(m.FuncSigs))
	}
	return m.Type(m.FuncSigs[funcidx])
}

// Type resolves typeidx against Types.
func (m *Module) Type(typeidx int) (FuncType, error) {
	if typeidx < 0 || typeidx >= len(m.Types) {
		return FuncType{}, wasmerr.New(wasmerr.KindTypeidxOutOfRange, "typeidx %d out of range (%d types)", typeidx, len(m.Types))
	}
	return m.Types[typeidx], nil
}

// ReadModule parses the module envelope and every section needed to
// type-check function signatures and locate code bodies (spec.md §4.2).
func ReadModule(buf []byte) (*Module, error) {
	r := reader.New(buf)

	magic, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, Magic[:]) {
		return nil, wasmerr.New(wasmerr.KindBadMagic, "got % x", magic)
	}

	version, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(version, VersionBytes[:]) {
		return nil, wasmerr.New(wasmerr.KindBadVersion, "got % x", version)
	}

	m := &Module{}
	for !r.AtEnd() {
		id, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		size, err := leb128.ReadUint32(r)
		if err != nil {
			return nil, err
		}
		start := r.Pos()
		end := start + int(size)
		if end > r.Len() {
			return nil, wasmerr.New(wasmerr.KindSectionExceedsFile, "section %d size %d exceeds file", id, size)
		}
		sec := reader.Sub(buf, start, end)

		if err := readSection(m, id, sec); err != nil {
			return nil, err
		}
		if !sec.AtEnd() {
			return nil, wasmerr.New(wasmerr.KindSectionNotConsumed, "section %d left %d bytes unread", id, sec.Remaining())
		}
		if err := r.Seek(end); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func readSection(m *Module, id byte, sec *reader.Reader) error {
	switch id {
	case secCustom:
		_, err := sec.ReadName()
		return err
	case secType:
		return readTypeSection(m, sec)
	case secImport:
		return readImportSection(m, sec)
	case secFunction:
		return readFunctionSection(m, sec)
	case secTable:
		return readTableSection(sec)
	case secMemory:
		return readMemorySection(sec)
	case secGlobal:
		return readGlobalSection(sec)
	case secExport:
		return readExportSection(sec)
	case secStart:
		_, err := leb128.ReadUint32(sec)
		return err
	case secElement:
		return readElementSection(sec)
	case secCode:
		return readCodeSection(m, sec)
	case secData:
		return readDataSection(sec)
	default:
		// Unknown proposal section: envelope already scoped sec to
		// [start, end); consume the whole payload unparsed so the
		// caller's AtEnd check passes.
		_, err := sec.ReadBytes(sec.Remaining())
		return err
	}
}

func readTypeSection(m *Module, sec *reader.Reader) error {
	count, err := leb128.ReadUint32(sec)
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := sec.ReadU8()
		if err != nil {
			return err
		}
		if form != FuncTypeForm {
			return wasmerr.New(wasmerr.KindUnsupportedTypeForm, "got 0x%02x", form)
		}
		params, err := readValTypeVec(sec)
		if err != nil {
			return err
		}
		results, err := readValTypeVec(sec)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
	}
	return nil
}

// readValTypeVec reads a vector of value-type bytes and returns only
// its length: this module tracks arities, never concrete types.
func readValTypeVec(sec *reader.Reader) (int, error) {
	n, err := leb128.ReadUint32(sec)
	if err != nil {
		return 0, err
	}
	if _, err := sec.ReadBytes(int(n)); err != nil {
		return 0, err
	}
	return int(n), nil
}

func readImportSection(m *Module, sec *reader.Reader) error {
	count, err := leb128.ReadUint32(sec)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := sec.ReadName(); err != nil {
			return err
		}
		if _, err := sec.ReadName(); err != nil {
			return err
		}
		kind, err := sec.ReadU8()
		if err != nil {
			return err
		}
		switch kind {
		case ExternalFunction:
			typeidx, err := leb128.ReadUint32(sec)
			if err != nil {
				return err
			}
			m.FuncSigs = append(m.FuncSigs, int(typeidx))
		case ExternalTable:
			if err := skipTable(sec); err != nil {
				return err
			}
		case ExternalMemory:
			if err := skipLimits(sec); err != nil {
				return err
			}
		case ExternalGlobal:
			if err := skipGlobalType(sec); err != nil {
				return err
			}
		default:
			return wasmerr.New(wasmerr.KindUnknownImportKind, "0x%02x", kind)
		}
	}
	return nil
}

func readFunctionSection(m *Module, sec *reader.Reader) error {
	count, err := leb128.ReadUint32(sec)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		typeidx, err := leb128.ReadUint32(sec)
		if err != nil {
			return err
		}
		m.FuncSigs = append(m.FuncSigs, int(typeidx))
	}
	return nil
}

func readTableSection(sec *reader.Reader) error {
	count, err := leb128.ReadUint32(sec)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if err := skipTable(sec); err != nil {
			return err
		}
	}
	return nil
}

func skipTable(sec *reader.Reader) error {
	elemType, err := sec.ReadU8()
	if err != nil {
		return err
	}
	if elemType != ElemTypeFuncRef {
		return wasmerr.New(wasmerr.KindUnsupportedTypeForm, "table elemtype 0x%02x", elemType)
	}
	return skipLimits(sec)
}

func readMemorySection(sec *reader.Reader) error {
	count, err := leb128.ReadUint32(sec)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if err := skipLimits(sec); err != nil {
			return err
		}
	}
	return nil
}

func skipLimits(sec *reader.Reader) error {
	flags, err := sec.ReadU8()
	if err != nil {
		return err
	}
	if _, err := leb128.ReadUint32(sec); err != nil { // min
		return err
	}
	if flags&0x01 != 0 {
		if _, err := leb128.ReadUint32(sec); err != nil { // max
			return err
		}
	}
	return nil
}

func skipGlobalType(sec *reader.Reader) error {
	if _, err := sec.ReadU8(); err != nil { // valtype
		return err
	}
	_, err := sec.ReadU8() // mut
	return err
}

func readGlobalSection(sec *reader.Reader) error {
	count, err := leb128.ReadUint32(sec)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if err := skipGlobalType(sec); err != nil {
			return err
		}
		if err := skipInitExpr(sec); err != nil {
			return err
		}
	}
	return nil
}

func readExportSection(sec *reader.Reader) error {
	count, err := leb128.ReadUint32(sec)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := sec.ReadName(); err != nil {
			return err
		}
		if _, err := sec.ReadU8(); err != nil { // kind
			return err
		}
		if _, err := leb128.ReadUint32(sec); err != nil { // idx
			return err
		}
	}
	return nil
}

func readElementSection(sec *reader.Reader) error {
	count, err := leb128.ReadUint32(sec)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := leb128.ReadUint32(sec); err != nil { // tableidx
			return err
		}
		if err := skipInitExpr(sec); err != nil {
			return err
		}
		n, err := leb128.ReadUint32(sec)
		if err != nil {
			return err
		}
		for j := uint32(0); j < n; j++ {
			if _, err := leb128.ReadUint32(sec); err != nil {
				return err
			}
		}
	}
	return nil
}

func readCodeSection(m *Module, sec *reader.Reader) error {
	count, err := leb128.ReadUint32(sec)
	if err != nil {
		return err
	}
	m.CodeBodies = make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := leb128.ReadUint32(sec)
		if err != nil {
			return err
		}
		body, err := sec.ReadBytes(int(size))
		if err != nil {
			return err
		}
		m.CodeBodies = append(m.CodeBodies, body)
	}
	return nil
}

func readDataSection(sec *reader.Reader) error {
	count, err := leb128.ReadUint32(sec)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := leb128.ReadUint32(sec); err != nil { // memidx
			return err
		}
		if err := skipInitExpr(sec); err != nil {
			return err
		}
		n, err := leb128.ReadUint32(sec)
		if err != nil {
			return err
		}
		if _, err := sec.ReadBytes(int(n)); err != nil {
			return err
		}
	}
	return nil
}

// MVP init-expr opcodes, per spec.md §4.2.
const (
	opI32Const  byte = 0x41
	opI64Const  byte = 0x42
	opF32Const  byte = 0x43
	opF64Const  byte = 0x44
	opGlobalGet byte = 0x23
	opExprEnd   byte = 0x0B
)

// skipInitExpr reads opcodes until the terminating end (0x0B),
// accepting only the MVP init-expr opcode set.
func skipInitExpr(sec *reader.Reader) error {
	for {
		op, err := sec.ReadU8()
		if err != nil {
			return err
		}
		switch op {
		case opExprEnd:
			return nil
		case opI32Const:
			if _, err := leb128.ReadInt32(sec); err != nil {
				return err
			}
		case opI64Const:
			if _, err := leb128.ReadInt64(sec); err != nil {
				return err
			}
		case opF32Const:
			if _, err := sec.ReadBytes(4); err != nil {
				return err
			}
		case opF64Const:
			if _, err := sec.ReadBytes(8); err != nil {
				return err
			}
		case opGlobalGet:
			if _, err := leb128.ReadUint32(sec); err != nil {
				return err
			}
		default:
			return wasmerr.New(wasmerr.KindNonMVPInitExpr, "opcode 0x%02x", op)
		}
	}
}
