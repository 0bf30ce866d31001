// Package analyze is the driver layer (C): it runs the instruction
// walker and the stack tracer over every function body in a parsed
// module and assembles the two reports spec.md §6 defines — an opcode
// census and operand-stack statistics. It is grounded on
// original_source/tools/wasm_opcode_counter/opcode_counter.py's
// count_opcodes_in_code/count_single_mnemonic_in_code and
// tools/wasm_operand_stack_stats/stack_stats.py's
// trace_operand_stack_stats, ported onto the opcode.Walker and
// stacktrace.Tracer built for this module.
package analyze

import (
	"sort"

	"github.com/vertexdlt/wasmstat/opcode"
	"github.com/vertexdlt/wasmstat/wasm"
)

// MnemonicCount is one row of a census report. A slice of these, not a
// map, carries the report so JSON output has a fixed, reproducible key
// order (the SUPPLEMENTED FEATURES / deterministic output improvement
// over both original_source scripts, which relied on Python's
// insertion-ordered dict).
type MnemonicCount struct {
	Mnemonic string `json:"mnemonic"`
	Count    int    `json:"count"`
}

// FunctionCensus is one function's opcode counts, used when per-function
// breakdown is requested.
type FunctionCensus struct {
	FuncIndex int             `json:"func_index"`
	Counts    []MnemonicCount `json:"counts"`
	Total     int             `json:"total"`
}

// CensusOptions controls CountOpcodes.
type CensusOptions struct {
	// Mnemonic, if non-empty, restricts counting to a single mnemonic.
	Mnemonic string
	// ExcludeStructural drops block/loop/if/else/end from the counts.
	ExcludeStructural bool
	// PerFunction additionally reports each function's own counts.
	PerFunction bool
}

// CensusReport is CountOpcodes' result.
type CensusReport struct {
	Total      []MnemonicCount  `json:"total"`
	ByFunction []FunctionCensus `json:"by_function,omitempty"`
}

// CountOpcodes walks every module-defined function body and tallies
// mnemonic frequency, per spec.md §6's opcode-census operation.
func CountOpcodes(m *wasm.Module, opts CensusOptions) (CensusReport, error) {
	totals := map[string]int{}
	var byFunc []FunctionCensus

	for fi, body := range m.CodeBodies {
		w, err := opcode.NewWalker(body)
		if err != nil {
			return CensusReport{}, err
		}
		funcCounts := map[string]int{}
		for !w.AtEnd() {
			ins, err := w.Next()
			if err != nil {
				return CensusReport{}, err
			}
			if opts.ExcludeStructural && opcode.Structural[ins.Opcode] {
				continue
			}
			if opts.Mnemonic != "" && ins.Mnemonic != opts.Mnemonic {
				continue
			}
			totals[ins.Mnemonic]++
			if opts.PerFunction {
				funcCounts[ins.Mnemonic]++
			}
		}
		if opts.PerFunction {
			fc := FunctionCensus{FuncIndex: m.ImportedFuncCount() + fi, Counts: sortedCounts(funcCounts)}
			for _, c := range fc.Counts {
				fc.Total += c.Count
			}
			byFunc = append(byFunc, fc)
		}
	}

	return CensusReport{Total: sortedCounts(totals), ByFunction: byFunc}, nil
}

// sortedCounts turns a mnemonic->count map into a slice ordered by
// (descending count, ascending name), the ordering
// original_source/opcode_counter.py's --top mode uses.
func sortedCounts(counts map[string]int) []MnemonicCount {
	out := make([]MnemonicCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, MnemonicCount{Mnemonic: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Mnemonic < out[j].Mnemonic
	})
	return out
}

// TopMnemonics returns the n most frequent rows of an already-sorted
// census, the --top N feature supplemented from
// original_source/opcode_counter.py's argparse surface.
func TopMnemonics(counts []MnemonicCount, n int) []MnemonicCount {
	if n <= 0 || n >= len(counts) {
		return counts
	}
	return counts[:n]
}
