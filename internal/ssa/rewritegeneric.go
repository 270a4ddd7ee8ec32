package ssa

// RewriteGeneric performs target-independent algebraic simplification
// and the one rewrite spec §4.2 step 1 calls out by name:
// `const_string → string_make(addr,len)`. Constant folding is limited to
// the identities that are safe regardless of target (x+0, x*1, x*0,
// x-0) since anything target-specific belongs to lower_wasm or the
// native MachInst lowering instead.
func RewriteGeneric(f *Function) error {
	rewriteConstStrings(f)
	foldIdentities(f)
	return nil
}

// rewriteConstStrings moves every string literal's bytes into the
// function's literal pool and turns the const_string value into
// string_make(literal_addr, const_len), so every later pass only ever
// sees the two-scalar STRING representation (§3.1's "STRING is
// internally slice<u8>").
func rewriteConstStrings(f *Function) {
	for _, blk := range f.Blocks {
		for _, vid := range blk.Values {
			v := f.V(vid)
			if v.Op != OpConstString {
				continue
			}
			s, _ := v.Aux.(string)
			idx := f.AddLiteral([]byte(s))

			addr := newInsertedValue(f, blk, vid, OpLiteralAddr, idx)
			length := newInsertedValue(f, blk, vid, OpConstInt, int64(len(s)))

			v.Op = OpStringMake
			v.Aux = nil
			v.Args = []ValueID{addr, length}
			f.V(addr).Uses++
			f.V(length).Uses++
		}
	}
}

// newInsertedValue allocates a new, argument-less value and splices it
// into blk immediately before target, returning its id.
func newInsertedValue(f *Function, blk *Block, target ValueID, op Op, aux any) ValueID {
	id := ValueID(len(f.Values))
	f.Values = append(f.Values, &Value{ID: id, Op: op, Block: blk.ID, Aux: aux})
	insertBefore(blk, target, id)
	return id
}

func insertBefore(blk *Block, target ValueID, newIDs ...ValueID) {
	out := make([]ValueID, 0, len(blk.Values)+len(newIDs))
	for _, id := range blk.Values {
		if id == target {
			out = append(out, newIDs...)
		}
		out = append(out, id)
	}
	blk.Values = out
}

// foldIdentities folds `x+0`, `x-0`, `x*1` into `x` and `x*0` into `0`,
// the only algebraic simplifications safe to apply before the target is
// known.
func foldIdentities(f *Function) {
	for _, blk := range f.Blocks {
		for _, vid := range blk.Values {
			v := f.V(vid)
			if len(v.Args) != 2 {
				continue
			}
			rhs := f.V(v.Args[1])
			if rhs.Op != OpConstInt {
				continue
			}
			n, _ := rhs.Aux.(int64)
			switch {
			case (v.Op == OpAdd || v.Op == OpSub) && n == 0:
				replaceUses(f, v.ID, v.Args[0])
			case v.Op == OpMul && n == 1:
				replaceUses(f, v.ID, v.Args[0])
			case v.Op == OpMul && n == 0:
				v.Op, v.Aux = OpConstInt, int64(0)
				for _, a := range v.Args {
					f.V(a).Uses--
				}
				v.Args = nil
			}
		}
	}
}

// replaceUses rewrites every other value's reference to old so it
// refers to repl instead, updating use counts accordingly. old is left
// in its block as a dead value (uses 0); cotc has no separate
// dead-code-elimination pass, so a dead value with no side effects is
// simply never emitted downstream (wasmgen skips every value with zero
// uses and no side effect as it walks each block's values).
func replaceUses(f *Function, old, repl ValueID) {
	for _, blk := range f.Blocks {
		for _, vid := range blk.Values {
			if vid == old {
				continue
			}
			cand := f.V(vid)
			for i, a := range cand.Args {
				if a == old {
					cand.Args[i] = repl
					f.V(repl).Uses++
					f.V(old).Uses--
				}
			}
		}
	}
}
