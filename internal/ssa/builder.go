package ssa

import "github.com/cot-lang/cotc/internal/types"

// Builder provides the imperative construction API internal/lower drives
// block-by-block, mirroring internal/clif.Builder's
// AllocateBasicBlock/SetCurrentBlock/InsertInstruction shape (clif is the
// native-path analogue of this same job) but working in terms of this
// package's Value/Block types instead.
type Builder struct {
	f       *Function
	current BlockID
}

// NewBuilder returns a Builder that lowers into f.
func NewBuilder(f *Function) *Builder { return &Builder{f: f, current: InvalidBlock} }

// Func returns the Function under construction.
func (b *Builder) Func() *Function { return b.f }

// CurrentBlock returns the block new values are appended to.
func (b *Builder) CurrentBlock() BlockID { return b.current }

// SetCurrentBlock redirects subsequent Emit calls to block.
func (b *Builder) SetCurrentBlock(block BlockID) { b.current = block }

// AllocateBlock creates a new, edge-less block and returns its id. The
// first block allocated for a Function becomes its Entry.
func (b *Builder) AllocateBlock(kind BlockKind) BlockID {
	id := BlockID(len(b.f.Blocks))
	blk := &Block{ID: id, Kind: kind, Join: InvalidBlock, LoopAfter: InvalidBlock}
	b.f.Blocks = append(b.f.Blocks, blk)
	if b.f.Entry == InvalidBlock {
		b.f.Entry = id
		blk.Kind = BlockFirst
	}
	return id
}

// AddEdge records a directed edge from `from` to `to`, maintaining the
// Preds/Succs invariant (§8 property 2): the new Succs entry and the new
// Preds entry each record the other's index.
func (b *Builder) AddEdge(from, to BlockID) {
	fb, tb := b.f.B(from), b.f.B(to)
	si := len(fb.Succs)
	pi := len(tb.Preds)
	fb.Succs = append(fb.Succs, Edge{To: to, Index: pi})
	tb.Preds = append(tb.Preds, Edge{To: from, Index: si})
}

// AllocatePhi adds a new block-parameter (phi) to block. The phi has no
// argument slots of its own: the value it takes along each incoming edge
// is the matching entry of that predecessor's BranchTarget.Args (see
// Block.Params), supplied when the predecessor's terminator is emitted.
func (b *Builder) AllocatePhi(block BlockID, typ types.TypeIndex) ValueID {
	blk := b.f.B(block)
	v := b.newValue(OpPhi, typ, block)
	blk.Params = append(blk.Params, v)
	return v
}

// Emit appends a new, non-terminator Value of op/typ with args to the
// current block and returns its id, bumping each arg's use count (§8
// property 1).
func (b *Builder) Emit(op Op, typ types.TypeIndex, aux any, args ...ValueID) ValueID {
	v := b.newValue(op, typ, b.current)
	b.f.V(v).Aux = aux
	b.f.V(v).Args = args
	b.f.B(b.current).Values = append(b.f.B(b.current).Values, v)
	for _, a := range args {
		b.f.V(a).Uses++
	}
	return v
}

// EmitTerminator appends a terminator Value (Jump/BrIf/BrTable/Return) to
// the current block. targets supplies the per-successor branch argument
// lists used both to bump each argument's use count and, later, as the
// data the layout/gen passes use to materialize the destination block's
// Params.
func (b *Builder) EmitTerminator(op Op, args []ValueID, targets []BranchTarget) ValueID {
	v := b.newValue(op, 0, b.current)
	vv := b.f.V(v)
	vv.Args = args
	vv.Aux = targets
	b.f.B(b.current).Values = append(b.f.B(b.current).Values, v)
	for _, a := range args {
		b.f.V(a).Uses++
	}
	for _, t := range targets {
		for _, a := range t.Args {
			b.f.V(a).Uses++
		}
	}
	return v
}

func (b *Builder) newValue(op Op, typ types.TypeIndex, block BlockID) ValueID {
	id := ValueID(len(b.f.Values))
	b.f.Values = append(b.f.Values, &Value{ID: id, Op: op, Type: typ, Block: block})
	return id
}

// Seal marks block as having all its predecessors wired; mirrors
// clif.Builder.Seal. cotc's lowerer builds structured control flow
// (if/while) where every predecessor is known before the block is
// entered, so Seal is only used for assertions, not incremental
// phi-resolution (no irreducible loops reach this lowerer).
func (b *Builder) Seal(block BlockID) { b.f.B(block).sealed = true }
