// Package wasmerr defines the single error type surfaced by every
// reader, wasm, opcode, stacktrace and analyze failure.
package wasmerr

import "fmt"

// Kind identifies the sub-category of a ParseError.
type Kind int

// Kind values, one per sub-kind spec.md §7 distinguishes by message content.
const (
	KindUnknown Kind = iota
	KindBadMagic
	KindBadVersion
	KindEOF
	KindSeekOutOfRange
	KindBadLength
	KindLebOverflow
	KindBadUTF8
	KindUnsupportedTypeForm
	KindUnknownImportKind
	KindNonMVPInitExpr
	KindSectionNotConsumed
	KindSectionExceedsFile
	KindUnsupportedOpcode
	KindUnsupportedFCSubop
	KindOperandStackUnderflow
	KindResultArityMismatch
	KindResultUnderflow
	KindIllegalLabelIndex
	KindNonZeroMemidx
	KindTrailingBytes
	KindElseWithoutIf
	KindEndWithoutFrame
	KindFuncidxOutOfRange
	KindTypeidxOutOfRange
	KindInvalidBlockType
	KindUnknownSection
)

var kindName = map[Kind]string{
	KindUnknown:               "unknown",
	KindBadMagic:              "bad-magic",
	KindBadVersion:            "bad-version",
	KindEOF:                   "EOF",
	KindSeekOutOfRange:        "seek-out-of-range",
	KindBadLength:             "bad-length",
	KindLebOverflow:           "leb-overflow",
	KindBadUTF8:               "bad-utf8",
	KindUnsupportedTypeForm:   "unsupported-type-form",
	KindUnknownImportKind:     "unknown-import-kind",
	KindNonMVPInitExpr:        "non-MVP-init-expr",
	KindSectionNotConsumed:    "section-not-consumed",
	KindSectionExceedsFile:    "section-exceeds-file",
	KindUnsupportedOpcode:     "unsupported-opcode",
	KindUnsupportedFCSubop:    "unsupported-0xFC-subop",
	KindOperandStackUnderflow: "operand-stack-underflow",
	KindResultArityMismatch:   "result-arity-mismatch",
	KindResultUnderflow:       "result-underflow",
	KindIllegalLabelIndex:     "illegal-label-index",
	KindNonZeroMemidx:         "non-zero-memidx",
	KindTrailingBytes:         "trailing-bytes",
	KindElseWithoutIf:         "else-without-if",
	KindEndWithoutFrame:       "end-without-frame",
	KindFuncidxOutOfRange:     "funcidx-out-of-range",
	KindTypeidxOutOfRange:     "typeidx-out-of-range",
	KindInvalidBlockType:      "invalid-blocktype",
	KindUnknownSection:        "unknown-section",
}

// ParseError is the one error kind the module surfaces, WasmParseError
// from spec.md §7. Kind distinguishes the sub-kind; Msg carries the
// human-readable detail.
type ParseError struct {
	Kind Kind
	Msg  string
}

// New builds a ParseError of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("wasm: %s: %s", kindName[e.Kind], e.Msg)
}

// Is lets errors.Is(err, wasmerr.EOF()) style comparisons work by Kind
// alone, ignoring Msg. cmd/wasmstat uses this to give truncated input a
// friendlier message than the raw ParseError string.
func (e *ParseError) Is(target error) bool {
	other, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// Sentinel-style constructors, mirroring the teacher's vm/error.go
// package-level Err* variable block (one function per named failure so
// call sites read the same as `return nil, wasmerr.EOF()`).

func EOF() *ParseError                 { return &ParseError{Kind: KindEOF, Msg: "unexpected end of input"} }
func BadLength(n int) *ParseError      { return New(KindBadLength, "negative length: %d", n) }
func SeekOutOfRange(p int) *ParseError { return New(KindSeekOutOfRange, "seek out of range: %d", p) }
func LebOverflow(maxBits uint32) *ParseError {
	return New(KindLebOverflow, "leb128 exceeds %d-bit bound", maxBits)
}
func BadUTF8() *ParseError { return New(KindBadUTF8, "invalid utf-8 string") }
