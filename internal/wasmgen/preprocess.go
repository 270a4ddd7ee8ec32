package wasmgen

import (
	"github.com/cot-lang/cotc/internal/ceerror"
	"github.com/cot-lang/cotc/internal/ssa"
)

// Preprocess validates that f's control flow is one of the two shapes
// gen.go's structured walk knows how to emit -- straight-line, `if`
// (Block.Join) or `while` (Block.LoopAfter) -- so a malformed or
// unsupported CFG fails with a clear diagnostic (§7) instead of a
// confusing mis-encoded `.wasm` body. It also returns the block order
// its structured walk visits. Neither Generate nor internal/driver calls
// it; Generate does its own shape checks as it emits.
func Preprocess(f *ssa.Function) ([]ssa.BlockID, error) {
	var order []ssa.BlockID
	visited := make([]bool, len(f.Blocks))
	if err := walk(f, f.Entry, ssa.InvalidBlock, visited, &order); err != nil {
		return nil, err
	}
	return order, nil
}

func walk(f *ssa.Function, cur, stopAt ssa.BlockID, visited []bool, order *[]ssa.BlockID) error {
	for cur != stopAt && cur != ssa.InvalidBlock {
		if visited[cur] {
			return ceerror.New(ceerror.KindStructural, "block %d visited twice by structured walk (irreducible control flow?)", cur).WithBlock(int(cur)).WithPass("wasmgen.preprocess")
		}
		visited[cur] = true
		*order = append(*order, cur)
		blk := f.B(cur)

		if blk.Kind == ssa.BlockLoopHeader {
			if err := walk(f, lastBrIfTarget(f, blk, 0), cur, visited, order); err != nil {
				return err
			}
			cur = blk.LoopAfter
			continue
		}

		term := f.V(blk.Values[len(blk.Values)-1])
		switch term.Op {
		case ssa.OpReturn:
			return nil
		case ssa.OpBrIf:
			targets := term.Aux.([]ssa.BranchTarget)
			if len(targets) != 2 {
				return ceerror.New(ceerror.KindStructural, "br_if with %d targets", len(targets)).WithBlock(int(cur)).WithPass("wasmgen.preprocess")
			}
			if err := walk(f, targets[0].Block, blk.Join, visited, order); err != nil {
				return err
			}
			if err := walk(f, targets[1].Block, blk.Join, visited, order); err != nil {
				return err
			}
			if blk.Join == ssa.InvalidBlock {
				return nil
			}
			cur = blk.Join
		case ssa.OpBrTable:
			targets := term.Aux.([]ssa.BranchTarget)
			for _, t := range targets {
				if err := walk(f, t.Block, blk.Join, visited, order); err != nil {
					return err
				}
			}
			if blk.Join == ssa.InvalidBlock {
				return nil
			}
			cur = blk.Join
		case ssa.OpJump:
			targets := term.Aux.([]ssa.BranchTarget)
			cur = targets[0].Block
		default:
			return ceerror.New(ceerror.KindStructural, "block %d ends in non-terminator op %s", cur, term.Op).WithBlock(int(cur)).WithPass("wasmgen.preprocess")
		}
	}
	return nil
}

func lastBrIfTarget(f *ssa.Function, header *ssa.Block, i int) ssa.BlockID {
	term := f.V(header.Values[len(header.Values)-1])
	targets := term.Aux.([]ssa.BranchTarget)
	return targets[i].Block
}
