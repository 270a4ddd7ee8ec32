package ssa

// RewriteDec implements §4.2 step 4's slice_ptr(slice_make(p,l,_)) → p
// and slice_len(slice_make(_,l,_)) → l peephole (and the string_make
// analogues, since STRING decomposes the same way as a slice), plus
// rewriting string_concat into a call to the ARC runtime's
// cot_string_concat followed by string_make of its result, per §4.2's
// "string_concat(s1,s2) rewrites to static_call(...) + string_make".
func RewriteDec(f *Function) error {
	collapseMakeAccessors(f)
	rewriteStringConcat(f)
	return nil
}

func collapseMakeAccessors(f *Function) {
	for _, blk := range f.Blocks {
		for _, vid := range blk.Values {
			v := f.V(vid)
			if (v.Op != OpSlicePtr && v.Op != OpSliceLen) || len(v.Args) != 1 {
				continue
			}
			src := f.V(v.Args[0])
			if src.Op != OpSliceMake && src.Op != OpStringMake {
				continue
			}
			var repl ValueID
			if v.Op == OpSlicePtr {
				repl = src.Args[0]
			} else {
				repl = src.Args[1]
			}
			replaceUses(f, v.ID, repl)
		}
	}
}

// rewriteStringConcat lowers a string_concat value into two new values:
// a call to the runtime's cot_string_concat (ptr/len pairs of both
// operands in, result ptr out) and a string_make wrapping that result
// with the summed length. Empty operands are not special-cased, here or
// in the runtime: cot_string_concat allocates and copies into a fresh
// object even when one side is empty.
func rewriteStringConcat(f *Function) {
	for _, blk := range f.Blocks {
		for _, vid := range blk.Values {
			v := f.V(vid)
			if v.Op != OpStringConcat {
				continue
			}
			ptr1, len1, ptr2, len2 := v.Args[0], v.Args[1], v.Args[2], v.Args[3]
			for _, a := range v.Args {
				f.V(a).Uses--
			}

			call := newInsertedValue(f, blk, vid, OpCall, "cot_string_concat")
			f.V(call).Args = []ValueID{ptr1, len1, ptr2, len2}
			for _, a := range f.V(call).Args {
				f.V(a).Uses++
			}

			sumLen := newInsertedValue(f, blk, vid, OpAdd, nil)
			f.V(sumLen).Args = []ValueID{len1, len2}
			f.V(len1).Uses++
			f.V(len2).Uses++

			v.Op = OpStringMake
			v.Args = []ValueID{call, sumLen}
			f.V(call).Uses++
			f.V(sumLen).Uses++
		}
	}
}
