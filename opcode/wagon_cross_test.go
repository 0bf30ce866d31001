package opcode_test

import (
	"bytes"
	"testing"

	wagon "github.com/go-interpreter/wagon/wasm"

	"github.com/vertexdlt/wasmstat/opcode"
	"github.com/vertexdlt/wasmstat/wasm"
)

// addModule mirrors wasm/module_test.go's fixture: one function
// (i32,i32)->i32 computing local.get 0 + local.get 1.
func addModule() []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d,
		0x01, 0x00, 0x00, 0x00,
		0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
		0x03, 0x02, 0x01, 0x00,
		0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
	}
}

// TestCrossValidateSignatureAgainstWagon checks this module's signature
// reader against go-interpreter/wagon's independent implementation, the
// same cross-validation idea vm/wasm_spec_test.go exercises against the
// official test suite.
func TestCrossValidateSignatureAgainstWagon(t *testing.T) {
	buf := addModule()

	ours, err := wasm.ReadModule(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	theirs, err := wagon.ReadModule(bytes.NewReader(buf), nil)
	if err != nil {
		t.Fatalf("wagon: unexpected error: %v", err)
	}

	if theirs.Types == nil || len(theirs.Types.Entries) != len(ours.Types) {
		t.Fatalf("type count mismatch: wagon %d, ours %d", len(theirs.Types.Entries), len(ours.Types))
	}
	sig := theirs.Types.Entries[0]
	ft := ours.Types[0]
	if len(sig.ParamTypes) != ft.Params {
		t.Fatalf("param count mismatch: wagon %d, ours %d", len(sig.ParamTypes), ft.Params)
	}
	if len(sig.ReturnTypes) != ft.Results {
		t.Fatalf("result count mismatch: wagon %d, ours %d", len(sig.ReturnTypes), ft.Results)
	}
}

// TestCrossValidateLocalsAgainstWagon checks this module's locals count
// and raw-body decoding against wagon's independent function-body
// reader, which parses the same locals declaration before stripping it
// (and the trailing end) from the code it hands back.
func TestCrossValidateLocalsAgainstWagon(t *testing.T) {
	buf := addModule()

	ours, err := wasm.ReadModule(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	theirs, err := wagon.ReadModule(bytes.NewReader(buf), nil)
	if err != nil {
		t.Fatalf("wagon: unexpected error: %v", err)
	}
	body := theirs.Code.Bodies[0]
	if len(body.Locals) != 0 {
		t.Fatalf("wagon reports %d local entries, want 0", len(body.Locals))
	}

	w, err := opcode.NewWalker(ours.CodeBodies[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.Locals) != 0 {
		t.Fatalf("got %d local entries, want 0", len(w.Locals))
	}

	count := 0
	for !w.AtEnd() {
		if _, err := w.Next(); err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		count++
	}
	// local.get, local.get, i32.add, end; wagon's stripped body omits
	// end, so its code is exactly one opcode shorter than ours.
	if count != 4 {
		t.Fatalf("got %d instructions, want 4", count)
	}
	if len(body.Code) != 5 { // 20 00 20 01 6a
		t.Fatalf("wagon reports %d code bytes, want 5", len(body.Code))
	}
}
