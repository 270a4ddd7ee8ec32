package ssa

import "github.com/cot-lang/cotc/internal/types"

// Decompose splits every phi whose type is a slice or string into
// per-component phis (ptr, len) plus a slice_make/string_make that
// reconstructs the compound value at the phi's definition point (§4.2
// step 2). Required because neither Wasm locals nor regalloc physical
// registers can hold a 16-byte compound value directly.
func Decompose(f *Function) error {
	for _, blk := range f.Blocks {
		newParams := make([]ValueID, 0, len(blk.Params))
		for _, pid := range blk.Params {
			p := f.V(pid)
			kind := f.Types.At(p.Type).Kind
			if kind != types.KindSlice && kind != types.KindString {
				newParams = append(newParams, pid)
				continue
			}
			ptrPhi, lenPhi := splitCompoundPhi(f, blk, p)
			newParams = append(newParams, ptrPhi, lenPhi)
			// p becomes a plain value reconstructing the compound from
			// the two new phis, inserted at the top of the block so
			// every original use of p still resolves correctly.
			reconOp := OpSliceMake
			if kind == types.KindString {
				reconOp = OpStringMake
			}
			p.Op = reconOp
			p.Args = []ValueID{ptrPhi, lenPhi}
			f.V(ptrPhi).Uses++
			f.V(lenPhi).Uses++
			blk.Values = append([]ValueID{p.ID}, blk.Values...)
		}
		blk.Params = newParams
	}

	// Every predecessor's branch-argument list referencing a decomposed
	// phi must itself be split into two args (ptr, len) in the same
	// order the new Params were appended, and the arguments it supplies
	// must themselves be the component values of a compound argument.
	for _, blk := range f.Blocks {
		for _, vid := range blk.Values {
			v := f.V(vid)
			rewriteTerminatorTargets(f, v)
		}
	}
	return nil
}

// splitCompoundPhi allocates two new scalar phis (ptr/len) in blk with
// the same arity as p currently has predecessors, returning their ids.
// p's own Args (a phi has none; its incoming values live in each
// predecessor's branch-argument list) are not touched here -- the
// terminator rewrite pass below supplies the split arguments.
func splitCompoundPhi(f *Function, blk *Block, p *Value) (ptr, length ValueID) {
	ptrV := &Value{ID: ValueID(len(f.Values)), Op: OpPhi, Block: blk.ID}
	f.Values = append(f.Values, ptrV)
	lenV := &Value{ID: ValueID(len(f.Values)), Op: OpPhi, Block: blk.ID}
	f.Values = append(f.Values, lenV)
	return ptrV.ID, lenV.ID
}

// rewriteTerminatorTargets replaces any branch-target argument that used
// to feed a now-decomposed phi with the two component arguments
// (slice_ptr, slice_len / equivalent string accessors) computed at the
// branch site, inserted just before the terminator.
func rewriteTerminatorTargets(f *Function, term *Value) {
	switch targets := term.Aux.(type) {
	case []BranchTarget:
		for i := range targets {
			targets[i].Args = expandCompoundArgs(f, term.Block, targets[i].Args)
		}
	case [2]BranchTarget:
		for i := range targets {
			targets[i].Args = expandCompoundArgs(f, term.Block, targets[i].Args)
		}
		term.Aux = targets
	}
}

func expandCompoundArgs(f *Function, block BlockID, args []ValueID) []ValueID {
	out := make([]ValueID, 0, len(args))
	blk := f.B(block)
	for _, a := range args {
		av := f.V(a)
		kind := f.Types.At(av.Type).Kind
		if kind != types.KindSlice && kind != types.KindString {
			out = append(out, a)
			continue
		}
		ptr := newInsertedValue(f, blk, term(blk), OpSlicePtr, nil)
		f.V(ptr).Args = []ValueID{a}
		ln := newInsertedValue(f, blk, term(blk), OpSliceLen, nil)
		f.V(ln).Args = []ValueID{a}
		av.Uses += 2
		out = append(out, ptr, ln)
	}
	return out
}

// term returns the id of blk's terminator value (its last instruction),
// used as the splice point for the component extraction inserted by
// expandCompoundArgs.
func term(blk *Block) ValueID {
	if len(blk.Values) == 0 {
		return InvalidValue
	}
	return blk.Values[len(blk.Values)-1]
}
