package analyze

import (
	"github.com/vertexdlt/wasmstat/opcode"
	"github.com/vertexdlt/wasmstat/stacktrace"
	"github.com/vertexdlt/wasmstat/wasm"
)

// StackOptions controls TraceStack.
type StackOptions struct {
	// Threshold is the height above which an instruction is counted as
	// "above threshold"; the default (0) counts every nonzero height.
	Threshold int
	// IncludeStructural counts block/loop/if/else/end instructions
	// toward the above/at-or-below tallies; by default they're skipped,
	// mirroring stack_stats.py's default.
	IncludeStructural bool
	// PerFunction additionally reports each function's own stats.
	PerFunction bool
}

// FunctionStackStats is one function's operand-stack statistics,
// grounded on original_source/tools/wasm_operand_stack_stats/stack_stats.py's
// FunctionStats dataclass.
type FunctionStackStats struct {
	FuncIndex       int `json:"func_index"`
	MaxHeight       int `json:"max_height"`
	AboveThreshold  int `json:"above_threshold"`
	AtOrBelow       int `json:"at_or_below_threshold"`
	InstructionScan int `json:"instructions_scanned"`
}

// StackReport is TraceStack's result.
type StackReport struct {
	Total      FunctionStackStats   `json:"total"`
	ByFunction []FunctionStackStats `json:"by_function,omitempty"`
}

// TraceStack runs the stack tracer over every module-defined function
// body, accumulating the per-instruction post-heights into the
// threshold tallies and running maximum spec.md §6's stack-tracer
// report describes.
func TraceStack(m *wasm.Module, opts StackOptions) (StackReport, error) {
	var total FunctionStackStats
	var byFunc []FunctionStackStats

	for fi, body := range m.CodeBodies {
		funcIndex := m.ImportedFuncCount() + fi
		typeidx := 0
		if funcIndex < len(m.FuncSigs) {
			typeidx = m.FuncSigs[funcIndex]
		}
		fn, err := m.Type(typeidx)
		if err != nil {
			return StackReport{}, err
		}

		w, err := opcode.NewWalker(body)
		if err != nil {
			return StackReport{}, err
		}
		tr := stacktrace.NewTracer(m, fn)

		stats := FunctionStackStats{FuncIndex: funcIndex}
		for !w.AtEnd() {
			ins, err := w.Next()
			if err != nil {
				return StackReport{}, err
			}
			height, err := tr.Step(ins)
			if err != nil {
				return StackReport{}, err
			}
			if !opts.IncludeStructural && opcode.Structural[ins.Opcode] {
				continue
			}
			stats.InstructionScan++
			if height > stats.MaxHeight {
				stats.MaxHeight = height
			}
			if height > opts.Threshold {
				stats.AboveThreshold++
			} else {
				stats.AtOrBelow++
			}
		}

		if stats.MaxHeight > total.MaxHeight {
			total.MaxHeight = stats.MaxHeight
		}
		total.AboveThreshold += stats.AboveThreshold
		total.AtOrBelow += stats.AtOrBelow
		total.InstructionScan += stats.InstructionScan

		if opts.PerFunction {
			byFunc = append(byFunc, stats)
		}
	}

	return StackReport{Total: total, ByFunction: byFunc}, nil
}
