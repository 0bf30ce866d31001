package wasm

import "testing"

// addModule encodes a single function `(func (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.add)` with no imports, exports, or tables —
// just enough structure to exercise every section the reader touches.
func addModule() []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
		// type section: 1 type, (i32,i32)->i32
		0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
		// function section: 1 func, typeidx 0
		0x03, 0x02, 0x01, 0x00,
		// code section: 1 body, 0 locals, local.get 0; local.get 1; i32.add; end
		0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
	}
}

func TestReadModuleBasic(t *testing.T) {
	m, err := ReadModule(addModule())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Types) != 1 {
		t.Fatalf("got %d types, want 1", len(m.Types))
	}
	if m.Types[0].Params != 2 || m.Types[0].Results != 1 {
		t.Fatalf("got type %+v, want (2,1)", m.Types[0])
	}
	if len(m.CodeBodies) != 1 {
		t.Fatalf("got %d code bodies, want 1", len(m.CodeBodies))
	}
	if m.ImportedFuncCount() != 0 {
		t.Fatalf("got %d imported funcs, want 0", m.ImportedFuncCount())
	}
	ft, err := m.FuncSig(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ft.Params != 2 || ft.Results != 1 {
		t.Fatalf("got %+v, want (2,1)", ft)
	}
}

func TestReadModuleBadMagic(t *testing.T) {
	buf := addModule()
	buf[0] = 0xff
	if _, err := ReadModule(buf); err == nil {
		t.Fatalf("expected bad-magic error")
	}
}

func TestReadModuleBadVersion(t *testing.T) {
	buf := addModule()
	buf[4] = 0x02
	if _, err := ReadModule(buf); err == nil {
		t.Fatalf("expected bad-version error")
	}
}

func TestReadModuleSectionExceedsFile(t *testing.T) {
	buf := addModule()
	// Bump the type section's declared size past the remaining file.
	buf[9] = 0xff
	if _, err := ReadModule(buf); err == nil {
		t.Fatalf("expected section-exceeds-file error")
	}
}

func TestFuncSigOutOfRange(t *testing.T) {
	m, err := ReadModule(addModule())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.FuncSig(5); err == nil {
		t.Fatalf("expected funcidx-out-of-range error")
	}
}

func TestTypeOutOfRange(t *testing.T) {
	m, err := ReadModule(addModule())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Type(5); err == nil {
		t.Fatalf("expected typeidx-out-of-range error")
	}
}
