package stacktrace

import (
	"github.com/vertexdlt/wasmstat/opcode"
	"github.com/vertexdlt/wasmstat/wasm"
	"github.com/vertexdlt/wasmstat/wasmerr"
)

// blockTypeEmpty is the s33 void selector (-0x40).
const blockTypeEmpty int64 = -0x40

// blockArity resolves a block-type immediate to (params, results),
// per the GLOSSARY's "Block-type" entry: -0x40 = void, -1..-4 = a
// single scalar result, non-negative = a type-section index.
func blockArity(types []wasm.FuncType, blockType int64) (params int, results int, err error) {
	switch {
	case blockType == blockTypeEmpty:
		return 0, 0, nil
	case blockType >= -4 && blockType <= -1:
		return 0, 1, nil
	case blockType >= 0:
		if int(blockType) >= len(types) {
			return 0, 0, wasmerr.New(wasmerr.KindTypeidxOutOfRange, "block typeidx %d out of range (%d types)", blockType, len(types))
		}
		ft := types[blockType]
		return ft.Params, ft.Results, nil
	default:
		return 0, 0, wasmerr.New(wasmerr.KindInvalidBlockType, "%d", blockType)
	}
}

// Tracer tracks operand-stack height across one function body's
// structured control flow (spec.md §3 "Tracer state").
type Tracer struct {
	module *wasm.Module

	height int
	poly   bool
	frames []Frame
}

// NewTracer initializes a tracer for one function, with a synthetic
// function frame at the bottom of the control stack (base 0, label
// and end arity equal to the function's result arity).
func NewTracer(module *wasm.Module, fn wasm.FuncType) *Tracer {
	return &Tracer{
		module: module,
		height: 0,
		poly:   false,
		frames: []Frame{{
			Base:       0,
			LabelArity: fn.Results,
			EndArity:   fn.Results,
			Kind:       KindFunction,
		}},
	}
}

// Height is the current operand-stack height.
func (t *Tracer) Height() int { return t.height }

// Polymorphic reports whether the tracer is currently in the
// polymorphic-stack state.
func (t *Tracer) Polymorphic() bool { return t.poly }

// Depth is the number of control frames currently open, including the
// synthetic function frame.
func (t *Tracer) Depth() int { return len(t.frames) }

func (t *Tracer) top() *Frame { return &t.frames[len(t.frames)-1] }

// push adds n to the height.
func (t *Tracer) push(n int) {
	if n <= 0 {
		return
	}
	t.height += n
}

// pop subtracts n from the height. In normal mode, underflow is an
// error. In polymorphic mode, pops clamp at base (spec.md §3,
// "Invariant when not polymorphic ... when polymorphic, pops saturate
// at the current frame's base").
func (t *Tracer) pop(n int, base int) error {
	if n <= 0 {
		return nil
	}
	if !t.poly {
		if t.height < n {
			return wasmerr.New(wasmerr.KindOperandStackUnderflow, "have %d, need %d", t.height, n)
		}
		t.height -= n
		return nil
	}
	t.height -= n
	if t.height < base {
		t.height = base
	}
	return nil
}

// Step processes one decoded instruction, updating the stack model.
// It returns the resulting post-instruction operand-stack height.
func (t *Tracer) Step(ins opcode.Instruction) (int, error) {
	if len(t.frames) == 0 {
		if ins.Opcode == 0x0B {
			return 0, wasmerr.New(wasmerr.KindEndWithoutFrame, "at body+0x%x", ins.Pos)
		}
		return 0, wasmerr.New(wasmerr.KindTrailingBytes, "0x%02x at body+0x%x after the function's end", ins.Opcode, ins.Pos)
	}
	base := t.top().Base

	switch {
	case ins.Opcode == 0x00: // unreachable
		t.poly = true

	case ins.Opcode == 0x01: // nop

	case ins.Opcode == 0x02 || ins.Opcode == 0x03 || ins.Opcode == 0x04: // block/loop/if
		params, results, err := blockArity(t.module.Types, ins.BlockType)
		if err != nil {
			return 0, err
		}
		if ins.Opcode == 0x04 { // if: pop condition
			if err := t.pop(1, base); err != nil {
				return 0, err
			}
		}
		if err := t.pop(params, base); err != nil {
			return 0, err
		}
		var kind Kind
		labelArity := results
		switch ins.Opcode {
		case 0x02:
			kind = KindBlock
		case 0x03:
			kind = KindLoop
			labelArity = params
		case 0x04:
			kind = KindIf
		}
		t.frames = append(t.frames, Frame{
			Base:            t.height,
			LabelArity:      labelArity,
			EndArity:        results,
			Kind:            kind,
			PolymorphicBase: t.poly,
		})

	case ins.Opcode == 0x05: // else
		frame := t.top()
		if frame.Kind != KindIf {
			return 0, wasmerr.New(wasmerr.KindElseWithoutIf, "frame kind %s", frame.Kind)
		}
		frame.ThenPolymorphicEnd = t.poly
		t.height = frame.Base
		t.poly = frame.PolymorphicBase
		frame.Kind = KindElse

	case ins.Opcode == 0x0B: // end
		frame := t.frames[len(t.frames)-1]
		t.frames = t.frames[:len(t.frames)-1]

		if !t.poly {
			if t.height < frame.Base+frame.EndArity {
				return 0, wasmerr.New(wasmerr.KindResultUnderflow, "have %d, need %d", t.height-frame.Base, frame.EndArity)
			}
			if t.height != frame.Base+frame.EndArity {
				return 0, wasmerr.New(wasmerr.KindResultArityMismatch, "have %d, need %d", t.height-frame.Base, frame.EndArity)
			}
		}
		t.height = frame.Base + frame.EndArity

		if frame.Kind == KindElse {
			t.poly = frame.PolymorphicBase || (frame.ThenPolymorphicEnd && t.poly)
		} else {
			t.poly = frame.PolymorphicBase
		}

	case ins.Opcode == 0x0C: // br
		target, err := t.frameAt(ins.U32)
		if err != nil {
			return 0, err
		}
		if err := t.pop(target.LabelArity, base); err != nil {
			return 0, err
		}
		t.height = base
		t.poly = true

	case ins.Opcode == 0x0D: // br_if
		if _, err := t.frameAt(ins.U32); err != nil {
			return 0, err
		}
		if err := t.pop(1, base); err != nil {
			return 0, err
		}

	case ins.Opcode == 0x0E: // br_table
		def, err := t.frameAt(ins.BrTable.Default)
		if err != nil {
			return 0, err
		}
		for _, label := range ins.BrTable.Targets {
			if _, err := t.frameAt(label); err != nil {
				return 0, err
			}
		}
		if err := t.pop(1, base); err != nil { // index
			return 0, err
		}
		if err := t.pop(def.LabelArity, base); err != nil {
			return 0, err
		}
		t.height = base
		t.poly = true

	case ins.Opcode == 0x0F: // return
		fn := t.frames[0]
		if err := t.pop(fn.EndArity, base); err != nil {
			return 0, err
		}
		t.height = base
		t.poly = true

	case ins.Opcode == 0x10: // call
		ft, err := t.module.FuncSig(int(ins.U32))
		if err != nil {
			return 0, err
		}
		if err := t.pop(ft.Params, base); err != nil {
			return 0, err
		}
		t.push(ft.Results)

	case ins.Opcode == 0x11: // call_indirect
		ft, err := t.module.Type(int(ins.CallIndirect.TypeIdx))
		if err != nil {
			return 0, err
		}
		if err := t.pop(1, base); err != nil { // table element index
			return 0, err
		}
		if err := t.pop(ft.Params, base); err != nil {
			return 0, err
		}
		t.push(ft.Results)

	case ins.Opcode == 0x1A: // drop
		if err := t.pop(1, base); err != nil {
			return 0, err
		}

	case ins.Opcode == 0x1B || ins.Opcode == 0x1C: // select / select.t
		if err := t.pop(3, base); err != nil {
			return 0, err
		}
		t.push(1)

	case ins.Opcode == 0x20 || ins.Opcode == 0x23: // local.get / global.get
		t.push(1)

	case ins.Opcode == 0x21 || ins.Opcode == 0x24: // local.set / global.set
		if err := t.pop(1, base); err != nil {
			return 0, err
		}

	case ins.Opcode == 0x22: // local.tee
		if err := t.pop(1, base); err != nil {
			return 0, err
		}
		t.push(1)

	case ins.Opcode == 0x25: // table.get
		t.push(1)
	case ins.Opcode == 0x26: // table.set
		if err := t.pop(1, base); err != nil {
			return 0, err
		}

	case ins.Opcode >= 0x28 && ins.Opcode <= 0x35: // loads
		if err := t.pop(1, base); err != nil {
			return 0, err
		}
		t.push(1)

	case ins.Opcode >= 0x36 && ins.Opcode <= 0x3E: // stores
		if err := t.pop(2, base); err != nil {
			return 0, err
		}

	case ins.Opcode == 0x3F: // memory.size
		if ins.U32 != 0 {
			return 0, wasmerr.New(wasmerr.KindNonZeroMemidx, "memory.size memidx %d", ins.U32)
		}
		t.push(1)

	case ins.Opcode == 0x40: // memory.grow
		if ins.U32 != 0 {
			return 0, wasmerr.New(wasmerr.KindNonZeroMemidx, "memory.grow memidx %d", ins.U32)
		}
		if err := t.pop(1, base); err != nil {
			return 0, err
		}
		t.push(1)

	case ins.Opcode >= 0x41 && ins.Opcode <= 0x44: // *.const
		t.push(1)

	case ins.Opcode == 0x45 || ins.Opcode == 0x50: // i32.eqz / i64.eqz
		if err := t.pop(1, base); err != nil {
			return 0, err
		}
		t.push(1)

	case ins.Opcode >= 0x46 && ins.Opcode <= 0x4F, // i32 comparisons
		ins.Opcode >= 0x51 && ins.Opcode <= 0x5A, // i64 comparisons
		ins.Opcode >= 0x5B && ins.Opcode <= 0x66: // f32/f64 comparisons
		if err := t.pop(2, base); err != nil {
			return 0, err
		}
		t.push(1)

	case ins.Opcode >= 0x67 && ins.Opcode <= 0x69, // i32 unary
		ins.Opcode >= 0x79 && ins.Opcode <= 0x7B, // i64 unary
		ins.Opcode >= 0x8B && ins.Opcode <= 0x91, // f32 unary
		ins.Opcode >= 0x99 && ins.Opcode <= 0x9F, // f64 unary
		ins.Opcode >= 0xA7 && ins.Opcode <= 0xBF, // conversions/reinterpret
		ins.Opcode >= 0xC0 && ins.Opcode <= 0xC4: // sign-extension
		if err := t.pop(1, base); err != nil {
			return 0, err
		}
		t.push(1)

	case ins.Opcode >= 0x6A && ins.Opcode <= 0x78, // i32 binary
		ins.Opcode >= 0x7C && ins.Opcode <= 0x8A, // i64 binary
		ins.Opcode >= 0x92 && ins.Opcode <= 0x98, // f32 binary
		ins.Opcode >= 0xA0 && ins.Opcode <= 0xA6: // f64 binary
		if err := t.pop(2, base); err != nil {
			return 0, err
		}
		t.push(1)

	case ins.Opcode == 0xD0: // ref.null
		t.push(1)
	case ins.Opcode == 0xD1: // ref.is_null
		if err := t.pop(1, base); err != nil {
			return 0, err
		}
		t.push(1)
	case ins.Opcode == 0xD2: // ref.func
		t.push(1)

	case ins.Opcode == 0xFC:
		if err := t.stepFC(ins, base); err != nil {
			return 0, err
		}

	default:
		return 0, wasmerr.New(wasmerr.KindUnsupportedOpcode, "0x%02x at body+0x%x", ins.Opcode, ins.Pos)
	}

	return t.height, nil
}

// stepFC applies the stack effect of a decoded 0xFC subop (spec.md §4.4).
func (t *Tracer) stepFC(ins opcode.Instruction, base int) error {
	switch {
	case ins.FCSubop <= 0x07: // saturating truncation: unary
		if err := t.pop(1, base); err != nil {
			return err
		}
		t.push(1)
	case ins.FCSubop == 0x08, ins.FCSubop == 0x0A, ins.FCSubop == 0x0B, // memory.init/copy/fill
		ins.FCSubop == 0x0C, ins.FCSubop == 0x0E, ins.FCSubop == 0x11: // table.init/copy/fill
		return t.pop(3, base)
	case ins.FCSubop == 0x09, ins.FCSubop == 0x0D: // data.drop, elem.drop
		// net zero
	case ins.FCSubop == 0x0F: // table.grow
		if err := t.pop(2, base); err != nil {
			return err
		}
		t.push(1)
	case ins.FCSubop == 0x10: // table.size
		t.push(1)
	default:
		return wasmerr.New(wasmerr.KindUnsupportedFCSubop, "0x%x", ins.FCSubop)
	}
	return nil
}

// frameAt resolves a label index to its target control frame, failing
// with illegal-label-index if it is out of range.
func (t *Tracer) frameAt(label uint32) (*Frame, error) {
	if int(label) >= len(t.frames) {
		return nil, wasmerr.New(wasmerr.KindIllegalLabelIndex, "%d (depth %d)", label, len(t.frames))
	}
	return &t.frames[len(t.frames)-1-int(label)], nil
}
