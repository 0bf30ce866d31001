package opcode

import (
	"github.com/vertexdlt/wasmstat/leb128"
	"github.com/vertexdlt/wasmstat/reader"
	"github.com/vertexdlt/wasmstat/wasmerr"
)

// Local is one (count, value-type) entry of a function body's locals
// declaration.
type Local struct {
	Count   uint32
	ValType byte
}

// Memarg is the (align, offset) pair accompanying every load/store.
type Memarg struct {
	Align  uint32
	Offset uint32
}

// BrTable holds a br_table instruction's decoded targets.
type BrTable struct {
	Targets []uint32
	Default uint32
}

// CallIndirectImm holds call_indirect's two index immediates.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// Instruction is one decoded opcode, including whichever immediates
// it carries. Only the fields relevant to Opcode are populated; the
// zero value is used for the rest.
type Instruction struct {
	Pos      int
	Opcode   byte
	Mnemonic string

	U32          uint32 // br/br_if label, call funcidx, local/global idx, ref.func idx, table.get/set idx, memory.size/grow memidx, i32.const value
	BlockType    int64  // sleb33, for block/loop/if
	I64Const     int64  // sleb64, for i64.const
	RefNullType  int64  // sleb33 heap-type, for ref.null
	Memarg       Memarg
	BrTable      BrTable
	CallIndirect CallIndirectImm
	SelectTypes  int // length of select.t's value-type vector

	FCSubop    uint32
	FCSubopSet bool
}

// ReadLocals consumes a function body's locals declaration: a ULEB
// count followed by that many (count, valtype-byte) pairs.
func ReadLocals(r *reader.Reader) ([]Local, error) {
	n, err := leb128.ReadUint32(r)
	if err != nil {
		return nil, err
	}
	locals := make([]Local, 0, n)
	for i := uint32(0); i < n; i++ {
		count, err := leb128.ReadUint32(r)
		if err != nil {
			return nil, err
		}
		vt, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		locals = append(locals, Local{Count: count, ValType: vt})
	}
	return locals, nil
}

// Walker advances opcode by opcode over a function body, having
// already consumed its locals declaration.
type Walker struct {
	r      *reader.Reader
	Locals []Local
}

// NewWalker consumes body's locals declaration and returns a Walker
// positioned at the first opcode.
func NewWalker(body []byte) (*Walker, error) {
	r := reader.New(body)
	locals, err := ReadLocals(r)
	if err != nil {
		return nil, err
	}
	return &Walker{r: r, Locals: locals}, nil
}

// AtEnd reports whether the whole body has been consumed.
func (w *Walker) AtEnd() bool { return w.r.AtEnd() }

// Pos is the walker's current offset within the body.
func (w *Walker) Pos() int { return w.r.Pos() }

// Next decodes one opcode and its immediates, advancing the reader
// exactly past the opcode's last immediate byte (spec.md §8 property 1).
func (w *Walker) Next() (Instruction, error) {
	pos := w.r.Pos()
	op, err := w.r.ReadU8()
	if err != nil {
		return Instruction{}, err
	}
	ins := Instruction{Pos: pos, Opcode: op, Mnemonic: MnemonicOf(op)}

	switch {
	case op == 0x02 || op == 0x03 || op == 0x04: // block/loop/if
		bt, err := leb128.ReadInt33(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.BlockType = bt

	case op == 0x0C || op == 0x0D || op == 0x10 || // br, br_if, call
		op == 0x20 || op == 0x21 || op == 0x22 || // local.get/set/tee
		op == 0x23 || op == 0x24 || // global.get/set
		op == 0xD2: // ref.func
		v, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.U32 = v

	case op == 0x0E: // br_table
		count, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		targets := make([]uint32, count)
		for i := range targets {
			t, err := leb128.ReadUint32(w.r)
			if err != nil {
				return Instruction{}, err
			}
			targets[i] = t
		}
		def, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.BrTable = BrTable{Targets: targets, Default: def}

	case op == 0x11: // call_indirect
		typeidx, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		tableidx, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.CallIndirect = CallIndirectImm{TypeIdx: typeidx, TableIdx: tableidx}

	case op == 0x1C: // select.t
		n, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		if _, err := w.r.ReadBytes(int(n)); err != nil {
			return Instruction{}, err
		}
		ins.SelectTypes = int(n)

	case op == 0x25 || op == 0x26: // table.get/set
		v, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.U32 = v

	case op >= 0x28 && op <= 0x3E: // loads/stores
		align, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		offset, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.Memarg = Memarg{Align: align, Offset: offset}

	case op == 0x3F || op == 0x40: // memory.size/grow
		v, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.U32 = v

	case op == 0x41: // i32.const
		v, err := leb128.ReadInt32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.U32 = uint32(v)

	case op == 0x42: // i64.const
		v, err := leb128.ReadInt64(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.I64Const = v

	case op == 0x43: // f32.const
		if _, err := w.r.ReadBytes(4); err != nil {
			return Instruction{}, err
		}

	case op == 0x44: // f64.const
		if _, err := w.r.ReadBytes(8); err != nil {
			return Instruction{}, err
		}

	case op == 0xD0: // ref.null
		ht, err := leb128.ReadInt33(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.RefNullType = ht

	case op == 0xFC: // prefix: trunc-sat / bulk-memory / table ops
		sub, err := leb128.ReadUint32(w.r)
		if err != nil {
			return Instruction{}, err
		}
		ins.FCSubop = sub
		ins.FCSubopSet = true
		name, known := FCSubopName(sub)
		if !known {
			return Instruction{}, wasmerr.New(wasmerr.KindUnsupportedFCSubop, "0x%x at body+0x%x", sub, pos)
		}
		ins.Mnemonic = name
		if err := skipFCImmediates(w.r, sub); err != nil {
			return Instruction{}, err
		}

	case op == 0xFD || op == 0xFE: // SIMD / atomics: unsupported
		return Instruction{}, wasmerr.New(wasmerr.KindUnsupportedOpcode, "prefix 0x%02x at body+0x%x", op, pos)
	}

	return ins, nil
}

// skipFCImmediates consumes the one or two uleb32 index immediates
// the bulk-memory/table 0xFC subops (0x08..0x11) carry; subops
// 0x00..0x07 (saturating truncation) have none.
func skipFCImmediates(r *reader.Reader, sub uint32) error {
	var count int
	switch sub {
	case 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07:
		count = 0
	case 0x08, 0x0C, 0x0A, 0x0E: // memory.init, table.init, memory.copy, table.copy
		count = 2
	case 0x09, 0x0B, 0x0D, 0x0F, 0x10, 0x11: // data.drop, memory.fill, elem.drop, table.grow, table.size, table.fill
		count = 1
	default:
		return wasmerr.New(wasmerr.KindUnsupportedFCSubop, "0x%x", sub)
	}
	for i := 0; i < count; i++ {
		if _, err := leb128.ReadUint32(r); err != nil {
			return err
		}
	}
	return nil
}
