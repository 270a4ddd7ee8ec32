package ssa

// Pass is a single SSA-to-SSA (or SSA-to-annotated-SSA) transformation.
// Passes mutate f in place and fail fast (§7: "a pass fails fast on the
// first structural error; passes do not attempt recovery").
type Pass func(f *Function) error

// WasmPipeline is the pass order spec §4.2 specifies for the Wasm
// target: rewritegeneric, decompose, lower_wasm, rewritedec, schedule,
// layout.
func WasmPipeline() []Pass {
	return []Pass{RewriteGeneric, Decompose, LowerWasm, RewriteDec, Schedule, Layout}
}

// NativePipeline is the pass order for the native (CLIF) target: the
// same front half (generic simplification, phi decomposition), but
// skipping the Wasm-specific lower_wasm/rewritedec/layout steps.
// Nothing in this module runs it: internal/backend's MachInst lowering
// consumes clif.Builder output, which only internal/wasm2clif produces,
// and internal/lower builds this package's SSA only.
func NativePipeline() []Pass {
	return []Pass{RewriteGeneric, Decompose, Schedule}
}

// Run applies passes to f in order, verifying invariants after each one
// (§7 "Verification mode"). It stops and returns the first error.
func Run(f *Function, passes []Pass) error {
	for _, p := range passes {
		if err := p(f); err != nil {
			return err
		}
		if err := Verify(f); err != nil {
			return err
		}
	}
	return nil
}
