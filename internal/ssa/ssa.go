// Package ssa is the shared, target-independent SSA IR of spec §3.1: the
// IR the lowerer builds directly from a typed AST, and the IR ARC
// insertion and the Wasm-path optimization passes (§4.2) all operate on
// in place. It deliberately mirrors the shape of internal/clif (entity
// ids into parallel slices owned by a Function) without being the same
// IR: clif is Cranelift-level and native-only, this one is Wasm-capable
// and a level higher (it still has struct/slice/string-typed values;
// clif never does).
package ssa

import "github.com/cot-lang/cotc/internal/types"

// BlockID identifies a Block within a Function.
type BlockID int

// ValueID identifies a Value within a Function.
type ValueID int

const (
	// InvalidBlock and InvalidValue mark an absent block/value id. They
	// are -1, not the zero values of their id types, so they never alias
	// block/value 0.
	InvalidBlock BlockID = -1
	InvalidValue ValueID = -1
)

// BlockKind classifies a Block's role for the layout pass (§4.2 step 6).
type BlockKind int

const (
	BlockPlain BlockKind = iota
	BlockFirst           // function entry
	BlockIf              // has exactly two successors, from an `if` terminator
	BlockLoopHeader      // target of a back-edge; layout emits a Wasm `loop`
	BlockRet             // has no successors; ends in `return`
)

// Edge is one endpoint of a predecessor/successor pair. Index is this
// edge's position within the *peer* block's own edge list, i.e. for
// `b.Succs[i] = Edge{To: s, Index: j}` the invariant (§8 property 2)
// requires `s.Preds[j] = Edge{To: b, Index: i}`.
type Edge struct {
	To    BlockID
	Index int
}

// Block is a basic block: an ordered instruction list plus labelled
// predecessor/successor edges.
type Block struct {
	ID     BlockID
	Kind   BlockKind
	Values []ValueID
	Preds  []Edge
	Succs  []Edge

	// Params are this block's phi/block-parameter values, one per
	// variable live across the join this block represents. Params[i]'s
	// definition on the path through Preds[i] is Block.Succs-args of the
	// predecessor's terminator (see Value.Args on a terminator Value).
	Params []ValueID

	// Join is set by the lowerer on an `if`'s cond block (Kind ==
	// BlockIf) to the block where both arms rejoin, or InvalidBlock if
	// neither arm falls through. LoopAfter is set on a BlockLoopHeader
	// to the block execution resumes at once the loop condition is
	// false. Wasm codegen (internal/wasmgen) uses these directly to
	// place `block`/`loop`/`if`/`end` rather than re-deriving structure
	// from the raw CFG -- cot's only loop form is `while` and its only
	// branching form is `if`, so the lowerer already knows this shape
	// and recovering it a second time from edges alone would be pure
	// overhead.
	Join      BlockID
	LoopAfter BlockID

	sealed bool
}

// Value is a single SSA value: an Op tag, its TypeIndex, an optional
// Aux payload, its argument list, and a use counter that must always
// equal the number of times this value's id appears in any other
// value's Args or a terminator's branch-argument lists (§8 property 1).
type Value struct {
	ID    ValueID
	Op    Op
	Type  types.TypeIndex
	Block BlockID
	Args  []ValueID
	Uses  int

	// Aux carries an opcode-specific immediate: an integer constant, a
	// string-literal's content (before rewritegeneric moves it to the
	// literal pool), a callee name, a field offset, or a branch target
	// with its per-successor argument lists.
	Aux any

	Pos SourcePos
}

// SourcePos is copied from ast.Pos at lowering time so that later passes
// and the DWARF line-table builder don't need to keep the AST around.
type SourcePos struct {
	Line, Col int
}

// BranchTarget is the Aux payload of a Jump/BrIf/BrTable/Return
// terminator: one entry per successor edge, each carrying the argument
// values that become the target block's Params on that edge.
type BranchTarget struct {
	Block BlockID
	Args  []ValueID
}

// Function is a named, ordered list of Blocks (§3.1), a TypeRegistry
// (shared with the AST, not owned), and a literal pool for string
// constants (populated by rewritegeneric).
type Function struct {
	Name    string
	Types   *types.TypeRegistry
	Params  []types.TypeIndex
	Results []types.TypeIndex

	Blocks     []*Block
	Values     []*Value
	Entry      BlockID
	blockOrder []BlockID // set by the layout pass; empty before it runs

	// Literals is the string literal pool: index i is the backing bytes
	// for any OpLiteralAddr whose Aux names literal index i.
	Literals [][]byte
}

// NewFunction allocates an empty Function ready for a Builder to lower
// into.
func NewFunction(name string, reg *types.TypeRegistry, params []types.TypeIndex, results []types.TypeIndex) *Function {
	return &Function{Name: name, Types: reg, Params: params, Results: results, Entry: InvalidBlock}
}

// B returns the Block for id.
func (f *Function) B(id BlockID) *Block { return f.Blocks[id] }

// V returns the Value for id.
func (f *Function) V(id ValueID) *Value { return f.Values[id] }

// BlockOrder returns the block visitation order set by the layout pass,
// or nil if layout has not run yet.
func (f *Function) BlockOrder() []BlockID { return f.blockOrder }

// SetBlockOrder is called by the layout pass once it has computed the
// structured-control-flow-ready order.
func (f *Function) SetBlockOrder(order []BlockID) { f.blockOrder = order }

// AddLiteral appends bytes to the literal pool and returns its index.
func (f *Function) AddLiteral(b []byte) int {
	f.Literals = append(f.Literals, b)
	return len(f.Literals) - 1
}
