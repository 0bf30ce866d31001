package stacktrace

import (
	"testing"

	"github.com/vertexdlt/wasmstat/opcode"
	"github.com/vertexdlt/wasmstat/wasm"
)

// run decodes body opcode by opcode and traces it against a function of
// signature fn, returning the post-instruction height after every step
// and the final error (nil on success).
func run(t *testing.T, body []byte, fn wasm.FuncType, module *wasm.Module) ([]int, error) {
	t.Helper()
	if module == nil {
		module = &wasm.Module{}
	}
	w, err := opcode.NewWalker(body)
	if err != nil {
		t.Fatalf("unexpected walker error: %v", err)
	}
	tr := NewTracer(module, fn)
	var heights []int
	for !w.AtEnd() {
		ins, err := w.Next()
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		h, err := tr.Step(ins)
		if err != nil {
			return heights, err
		}
		heights = append(heights, h)
	}
	return heights, nil
}

func TestTraceEmptyFunction(t *testing.T) {
	body := []byte{0x00, 0x0b} // 0 locals; end
	heights, err := run(t, body, wasm.FuncType{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(heights) != 1 || heights[0] != 0 {
		t.Fatalf("got %v, want [0]", heights)
	}
}

func TestTraceSingleConstant(t *testing.T) {
	body := []byte{0x00, 0x41, 0x07, 0x0b} // i32.const 7; end
	heights, err := run(t, body, wasm.FuncType{Results: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 1}
	for i, h := range want {
		if heights[i] != h {
			t.Fatalf("got %v, want %v", heights, want)
		}
	}
}

func TestTraceAdd(t *testing.T) {
	body := []byte{0x00, 0x41, 0x02, 0x41, 0x03, 0x6a, 0x0b}
	heights, err := run(t, body, wasm.FuncType{Results: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 2, 1, 1}
	for i, h := range want {
		if heights[i] != h {
			t.Fatalf("got %v, want %v", heights, want)
		}
	}
}

func TestTraceIfElseMergesHeight(t *testing.T) {
	// local.get 0; if (result i32); i32.const 1; else; i32.const 0; end; end
	body := []byte{0x00, 0x20, 0x00, 0x04, 0x7f, 0x41, 0x01, 0x05, 0x41, 0x00, 0x0b, 0x0b}
	heights, err := run(t, body, wasm.FuncType{Params: 1, Results: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	max := 0
	for _, h := range heights {
		if h > max {
			max = h
		}
	}
	if max != 1 {
		t.Fatalf("got max height %d, want 1", max)
	}
	if heights[len(heights)-1] != 1 {
		t.Fatalf("got final height %d, want 1", heights[len(heights)-1])
	}
}

func TestTraceUnreachableMakesDropPolymorphic(t *testing.T) {
	body := []byte{0x00, 0x00, 0x1a, 0x0b} // unreachable; drop; end
	heights, err := run(t, body, wasm.FuncType{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if heights[len(heights)-1] != 0 {
		t.Fatalf("got final height %d, want 0", heights[len(heights)-1])
	}
}

func TestTraceBrInBlock(t *testing.T) {
	body := []byte{0x00, 0x02, 0x40, 0x0c, 0x00, 0x0b, 0x0b} // block void; br 0; end; end
	heights, err := run(t, body, wasm.FuncType{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if heights[len(heights)-1] != 0 {
		t.Fatalf("got final height %d, want 0", heights[len(heights)-1])
	}
}

func TestTraceDropUnderflowsWithoutUnreachable(t *testing.T) {
	body := []byte{0x00, 0x1a, 0x0b} // drop with nothing on the stack; end
	_, err := run(t, body, wasm.FuncType{}, nil)
	if err == nil {
		t.Fatalf("expected operand-stack-underflow error")
	}
}

func TestTraceCallUsesModuleSignature(t *testing.T) {
	module := &wasm.Module{
		Types:    []wasm.FuncType{{Params: 2, Results: 1}},
		FuncSigs: []int{0},
	}
	body := []byte{0x00, 0x41, 0x01, 0x41, 0x02, 0x10, 0x00, 0x0b} // i32.const 1; i32.const 2; call 0; end
	heights, err := run(t, body, wasm.FuncType{Results: 1}, module)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if heights[len(heights)-1] != 1 {
		t.Fatalf("got final height %d, want 1", heights[len(heights)-1])
	}
}

func TestTraceIllegalLabelIndex(t *testing.T) {
	body := []byte{0x00, 0x0c, 0x05, 0x0b} // br 5 with no such depth; end
	_, err := run(t, body, wasm.FuncType{}, nil)
	if err == nil {
		t.Fatalf("expected illegal-label-index error")
	}
}

func TestTraceMemoryGrowNonZeroMemidxRejected(t *testing.T) {
	body := []byte{0x00, 0x41, 0x01, 0x40, 0x01, 0x0b} // i32.const 1; memory.grow 1; end
	_, err := run(t, body, wasm.FuncType{Results: 1}, nil)
	if err == nil {
		t.Fatalf("expected non-zero-memidx error")
	}
}
