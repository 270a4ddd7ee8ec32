package ssa

import "github.com/cot-lang/cotc/internal/ceerror"

// Verify checks the invariants spec §8 lists for "all functions, after
// any pass": use counts (property 1), predecessor/successor symmetry
// (property 2), and phi arity (property 3). Run calls this after every
// pass, in every build (§7 "Verification mode"); it fails fast on
// the first violation rather than collecting all of them, matching §7's
// "passes do not attempt recovery" policy.
func Verify(f *Function) error {
	if err := verifyUseCounts(f); err != nil {
		return err
	}
	if err := verifyEdges(f); err != nil {
		return err
	}
	return verifyPhis(f)
}

func verifyUseCounts(f *Function) error {
	counted := make([]int, len(f.Values))
	for _, blk := range f.Blocks {
		for _, vid := range blk.Values {
			v := f.V(vid)
			for _, a := range v.Args {
				counted[a]++
			}
			if targets, ok := v.Aux.([]BranchTarget); ok {
				for _, t := range targets {
					for _, a := range t.Args {
						counted[a]++
					}
				}
			}
			if pair, ok := v.Aux.([2]BranchTarget); ok {
				for _, t := range pair {
					for _, a := range t.Args {
						counted[a]++
					}
				}
			}
		}
	}
	for _, v := range f.Values {
		if counted[v.ID] != v.Uses {
			return ceerror.New(ceerror.KindStructural,
				"use-count mismatch for value %d (%s): recorded %d, actual %d",
				v.ID, v.Op, v.Uses, counted[v.ID]).WithValue(int(v.ID))
		}
	}
	return nil
}

func verifyEdges(f *Function) error {
	for _, blk := range f.Blocks {
		for i, s := range blk.Succs {
			succ := f.B(s.To)
			if s.Index >= len(succ.Preds) {
				return ceerror.New(ceerror.KindStructural,
					"block %d succ[%d] points at out-of-range pred slot %d in block %d",
					blk.ID, i, s.Index, s.To).WithBlock(int(blk.ID))
			}
			back := succ.Preds[s.Index]
			if back.To != blk.ID || back.Index != i {
				return ceerror.New(ceerror.KindStructural,
					"edge asymmetry: block %d succ[%d]=(%d,%d) but block %d pred[%d]=(%d,%d)",
					blk.ID, i, s.To, s.Index, s.To, s.Index, back.To, back.Index).WithBlock(int(blk.ID))
			}
		}
	}
	return nil
}

func verifyPhis(f *Function) error {
	for _, blk := range f.Blocks {
		for _, pid := range blk.Params {
			p := f.V(pid)
			n, ok := p.Aux.(int)
			if !ok {
				// Arity not yet recorded by the builder; args.len must
				// still match preds.len once the lowerer finishes a
				// block, so fall back to that check alone.
				n = len(blk.Preds)
			}
			if n != len(blk.Preds) {
				return ceerror.New(ceerror.KindStructural,
					"phi %d in block %d has arity %d, block has %d preds",
					pid, blk.ID, n, len(blk.Preds)).WithBlock(int(blk.ID)).WithValue(int(pid))
			}
		}
	}
	return nil
}
