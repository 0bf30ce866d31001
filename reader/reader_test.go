package reader

import "testing"

func TestReadULEBSingleByte(t *testing.T) {
	r := New([]byte{0x05})
	v, err := r.ReadULEB(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 5 {
		t.Fatalf("got %d, want 5", v)
	}
	if !r.AtEnd() {
		t.Fatalf("expected reader to be at end")
	}
}

func TestReadULEBMultiByte(t *testing.T) {
	// 624485 encodes to 0xE5 0x8E 0x26 per the LEB128 spec example.
	r := New([]byte{0xE5, 0x8E, 0x26})
	v, err := r.ReadULEB(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 624485 {
		t.Fatalf("got %d, want 624485", v)
	}
}

func TestReadSLEBNegative(t *testing.T) {
	// -624485 encodes to 0x9B 0xF1 0x59.
	r := New([]byte{0x9B, 0xF1, 0x59})
	v, err := r.ReadSLEB(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != -624485 {
		t.Fatalf("got %d, want -624485", v)
	}
}

func TestReadSLEBSmallNegative(t *testing.T) {
	r := New([]byte{0x7f}) // -1
	v, err := r.ReadSLEB(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != -1 {
		t.Fatalf("got %d, want -1", v)
	}
}

func TestReadULEBOverflow(t *testing.T) {
	r := New([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	if _, err := r.ReadULEB(32); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestReadBytesEOF(t *testing.T) {
	r := New([]byte{0x01, 0x02})
	if _, err := r.ReadBytes(5); err == nil {
		t.Fatalf("expected EOF error")
	}
}

func TestSeekOutOfRange(t *testing.T) {
	r := New([]byte{0x01, 0x02})
	if err := r.Seek(10); err == nil {
		t.Fatalf("expected seek-out-of-range error")
	}
}

func TestReadNameValid(t *testing.T) {
	// length 5, "hello"
	r := New([]byte{0x05, 'h', 'e', 'l', 'l', 'o'})
	s, err := r.ReadName()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "hello" {
		t.Fatalf("got %q, want hello", s)
	}
}

func TestReadNameBadUTF8(t *testing.T) {
	r := New([]byte{0x01, 0xff})
	if _, err := r.ReadName(); err == nil {
		t.Fatalf("expected bad-utf8 error")
	}
}

func TestSubScopesEnd(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04}
	sub := Sub(buf, 1, 3)
	if sub.Remaining() != 2 {
		t.Fatalf("got remaining %d, want 2", sub.Remaining())
	}
	b, err := sub.ReadBytes(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b[0] != 0x02 || b[1] != 0x03 {
		t.Fatalf("got %v, want [0x02 0x03]", b)
	}
	if !sub.AtEnd() {
		t.Fatalf("expected sub-reader to be at end")
	}
}
