package ssa

import "github.com/cot-lang/cotc/internal/types"

// LowerWasm rewrites generic ops into Wasm-specific ops (§4.2 step 3):
// `add` on an I64-typed value becomes `wasm_i64_add`. That is its only
// rewrite. It does not produce the wrap/extend ops
// (OpWasmI32WrapI64, OpWasmI64ExtendI32S/U) for integer casts across the
// 32/64 boundary, and gen.go, a straight one-value-to-one-instruction-
// sequence mapper, has no type-narrowing logic of its own either.
func LowerWasm(f *Function) error {
	for _, blk := range f.Blocks {
		for _, vid := range blk.Values {
			v := f.V(vid)
			if v.Op == OpAdd && f.Types.At(v.Type).Kind == types.KindI64 {
				v.Op = OpWasmI64Add
			}
		}
	}
	return nil
}
