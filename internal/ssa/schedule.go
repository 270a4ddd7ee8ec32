package ssa

import "github.com/cot-lang/cotc/internal/ceerror"

// Schedule assigns a total order to values within each block consistent
// with data-flow dependencies and side-effect ordering (§4.2 step 5).
// The lowerer already emits values in a valid order (it never refers to
// a value before defining it), so Schedule's job is to verify that
// invariant holds -- rematerializable constants aside, every pass up to
// this point could in principle have reordered a block's Values slice,
// so this is where an out-of-order def would finally be caught, rather
// than silently miscompiling downstream.
func Schedule(f *Function) error {
	for _, blk := range f.Blocks {
		defined := make(map[ValueID]bool, len(blk.Values)+len(blk.Params))
		for _, p := range blk.Params {
			defined[p] = true
		}
		for _, vid := range blk.Values {
			v := f.V(vid)
			for _, a := range v.Args {
				if f.V(a).Block == blk.ID && !defined[a] {
					return ceerror.New(ceerror.KindStructural,
						"value %d used in block %d before its definition", a, blk.ID).
						WithPass("schedule").WithValue(int(vid))
				}
			}
			defined[vid] = true
		}
	}
	return nil
}
