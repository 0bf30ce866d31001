// Command wasmstat reads a WebAssembly 1.0 binary and reports either
// an opcode census or operand-stack statistics for its code section.
// It is the replacement for the teacher's root main.go CLI, rebuilt on
// spf13/cobra instead of the teacher's hand-rolled flag parsing, per
// spec.md §6's indicative command surface.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/vertexdlt/wasmstat/analyze"
	"github.com/vertexdlt/wasmstat/wasm"
	"github.com/vertexdlt/wasmstat/wasmerr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, wasmerr.EOF()) {
			log.Fatal("wasmstat: truncated module: unexpected end of input")
		}
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wasmstat",
		Short:         "Opcode census and operand-stack statistics for WebAssembly modules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newOpcodesCmd(), newStackCmd())
	return root
}

func loadModule(path string) (*wasm.Module, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return wasm.ReadModule(buf)
}

func newOpcodesCmd() *cobra.Command {
	var mnemonic string
	var excludeStructural bool
	var perFunction bool
	var top int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "opcodes <module.wasm>",
		Short: "Print opcode frequency across the module's code section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 0 {
				return fmt.Errorf("--top must be non-negative, got %d", top)
			}
			m, err := loadModule(args[0])
			if err != nil {
				return err
			}
			report, err := analyze.CountOpcodes(m, analyze.CensusOptions{
				Mnemonic:          mnemonic,
				ExcludeStructural: excludeStructural,
				PerFunction:       perFunction,
			})
			if err != nil {
				return err
			}
			report.Total = analyze.TopMnemonics(report.Total, top)

			if asJSON || env.Bool("WASMSTAT_JSON") {
				return printJSON(report)
			}
			printCensusText(report)
			return nil
		},
	}
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "print only the count of this mnemonic")
	cmd.Flags().BoolVar(&excludeStructural, "exclude-structural", false, "drop block/loop/if/else/end from the count")
	cmd.Flags().BoolVar(&perFunction, "per-function", false, "additionally report each function's own counts")
	cmd.Flags().IntVar(&top, "top", 0, "print the top-N most frequent mnemonics")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a text table")
	cmd.MarkFlagsMutuallyExclusive("mnemonic", "top")
	cmd.MarkFlagsOneRequired("mnemonic", "top")
	return cmd
}

func newStackCmd() *cobra.Command {
	var threshold int
	var includeStructural bool
	var perFunction bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stack <module.wasm>",
		Short: "Trace per-function operand-stack height across the module's code section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModule(args[0])
			if err != nil {
				return err
			}
			report, err := analyze.TraceStack(m, analyze.StackOptions{
				Threshold:         threshold,
				IncludeStructural: includeStructural,
				PerFunction:       perFunction,
			})
			if err != nil {
				return err
			}

			if asJSON || env.Bool("WASMSTAT_JSON") {
				return printJSON(report)
			}
			printStackText(report)
			return nil
		},
	}
	cmd.Flags().IntVar(&threshold, "threshold", env.Int("WASMSTAT_THRESHOLD", 0), "stack-height threshold separating the above/at-or-below tallies")
	cmd.Flags().BoolVar(&includeStructural, "include-structural", false, "count block/loop/if/else/end toward the tallies")
	cmd.Flags().BoolVar(&perFunction, "per-function", false, "additionally report each function's own stats")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a text table")
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printCensusText(report analyze.CensusReport) {
	bold := color.New(color.Bold)
	bold.Println("mnemonic\tcount")
	for _, row := range report.Total {
		fmt.Printf("%s\t%d\n", row.Mnemonic, row.Count)
	}
	for _, fc := range report.ByFunction {
		bold.Printf("\nfunction %d (total %d)\n", fc.FuncIndex, fc.Total)
		for _, row := range fc.Counts {
			fmt.Printf("  %s\t%d\n", row.Mnemonic, row.Count)
		}
	}
}

func printStackText(report analyze.StackReport) {
	bold := color.New(color.Bold)
	bold.Println("max_height\tabove_threshold\tat_or_below_threshold\tinstructions_scanned")
	t := report.Total
	fmt.Printf("%d\t%d\t%d\t%d\n", t.MaxHeight, t.AboveThreshold, t.AtOrBelow, t.InstructionScan)
	for _, fs := range report.ByFunction {
		bold.Printf("\nfunction %d\n", fs.FuncIndex)
		fmt.Printf("  max_height=%d above=%d at_or_below=%d scanned=%d\n",
			fs.MaxHeight, fs.AboveThreshold, fs.AtOrBelow, fs.InstructionScan)
	}
}
