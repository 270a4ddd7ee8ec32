package wasmgen

import (
	"fmt"

	"github.com/cot-lang/cotc/internal/ceerror"
	"github.com/cot-lang/cotc/internal/leb128"
	"github.com/cot-lang/cotc/internal/ssa"
	"github.com/cot-lang/cotc/internal/types"
)

// FuncIndex resolves a callee name to its Wasm function index. cot's
// driver builds one before calling Generate: the module's declared
// functions first, then the ARC runtime's functions (internal/arcrt);
// the module has no imports.
type FuncIndex = map[string]Index

// GenContext is the link-time information gen.go needs that isn't present
// on the ssa.Function itself: where each function and literal ends up in
// the module being assembled.
type GenContext struct {
	Funcs    FuncIndex
	Literals []uint32 // byte offset of f.Literals[i] in the string-literal data segment
}

// Generate lowers f (already run through WasmPipeline, §4.2) into a Wasm
// function body and its signature. It assumes f's control flow is one of
// the two shapes internal/lower ever produces -- straight-line, `if`
// (Block.Join) or `while` (Block.LoopAfter) -- and fails rather than
// guessing at anything else (§7 fail-fast).
func Generate(f *ssa.Function, ctx *GenContext) (*Code, *FunctionType, error) {
	g := &gen{f: f, ctx: ctx, local: map[ssa.ValueID]Index{}}
	g.reserveParamLocals()
	g.reservePhiLocals()

	if err := g.region(f.Entry, ssa.InvalidBlock); err != nil {
		return nil, nil, err
	}

	return &Code{LocalTypes: g.localTypes[len(f.Params):], Body: g.buf}, g.signature(), nil
}

type gen struct {
	f   *ssa.Function
	ctx *GenContext

	local      map[ssa.ValueID]Index
	localTypes []ValueType
	buf        []byte

	labels []label
}

type labelKind int

const (
	lblBlock labelKind = iota // br targets this construct's exit
	lblLoop                   // br targets this construct's top
)

type label struct {
	kind   labelKind
	target ssa.BlockID
}

func (g *gen) signature() *FunctionType {
	sig := &FunctionType{}
	for _, p := range g.f.Params {
		sig.Params = append(sig.Params, valueType(g.f.Types, p))
	}
	for _, r := range g.f.Results {
		sig.Results = append(sig.Results, valueType(g.f.Types, r))
	}
	return sig
}

func valueType(reg *types.TypeRegistry, ti types.TypeIndex) ValueType {
	switch reg.At(ti).Kind {
	case types.KindI8, types.KindU8, types.KindI16, types.KindU16, types.KindI32, types.KindU32, types.KindBool:
		return ValueTypeI32
	case types.KindF32:
		return ValueTypeF32
	case types.KindF64:
		return ValueTypeF64
	default:
		// I64/U64/Pointer, and every compound kind's scalar components
		// (ptr/len are both stored i64-wide, §3.4/types.Size) default here.
		return ValueTypeI64
	}
}

// reserveParamLocals gives every OpParam value the Wasm local index Wasm
// itself assigns it (function parameters occupy locals 0..n-1).
func (g *gen) reserveParamLocals() {
	for _, p := range g.f.Params {
		g.localTypes = append(g.localTypes, valueType(g.f.Types, p))
	}
	for _, blk := range g.f.Blocks {
		for _, vid := range blk.Values {
			v := g.f.V(vid)
			if v.Op == ssa.OpParam {
				g.local[vid] = Index(v.Aux.(int))
			}
		}
	}
}

// reservePhiLocals allocates a fresh local for every block parameter up
// front, since a predecessor's terminator may need to store into it
// before the gen walk ever visits the block that owns it.
func (g *gen) reservePhiLocals() {
	for _, blk := range g.f.Blocks {
		for _, pid := range blk.Params {
			g.allocLocal(pid)
		}
	}
}

func (g *gen) allocLocal(vid ssa.ValueID) Index {
	if idx, ok := g.local[vid]; ok {
		return idx
	}
	idx := Index(len(g.localTypes))
	g.localTypes = append(g.localTypes, valueType(g.f.Types, g.f.V(vid).Type))
	g.local[vid] = idx
	return idx
}

func (g *gen) emit(b ...byte) { g.buf = append(g.buf, b...) }

func (g *gen) emitU32(v uint32) { g.buf = append(g.buf, leb128.EncodeUint32(v)...) }
func (g *gen) emitI32(v int32)  { g.buf = append(g.buf, leb128.EncodeInt32(v)...) }
func (g *gen) emitI64(v int64)  { g.buf = append(g.buf, leb128.EncodeInt64(v)...) }

// memarg emits a (align, offset) pair for a load/store opcode. Every
// caller passes align 0, the byte-alignment hint, which is valid for any
// access width.
func (g *gen) memarg(align uint32, offset int) {
	g.emitU32(align)
	g.emitI32(int32(offset))
}

func (g *gen) push(vid ssa.ValueID) {
	v := g.f.V(vid)
	if v.Op == ssa.OpConstInt || v.Op == ssa.OpLiteralAddr {
		g.pushRematerialized(v)
		return
	}
	idx := g.allocLocal(vid)
	g.emit(OpcodeLocalGet)
	g.emitU32(idx)
}

// pushRematerialized re-emits a cheap, side-effect-free constant at its
// use site instead of spilling it to a local, per §4.4.1's "rematerialize
// constants rather than spend a local on them".
func (g *gen) pushRematerialized(v *ssa.Value) {
	switch v.Op {
	case ssa.OpConstInt:
		if valueType(g.f.Types, v.Type) == ValueTypeI64 {
			g.emit(OpcodeI64Const)
			g.emitI64(v.Aux.(int64))
		} else {
			g.emit(OpcodeI32Const)
			g.emitI32(int32(v.Aux.(int64)))
		}
	case ssa.OpLiteralAddr:
		g.emit(OpcodeI64Const)
		g.emitI64(int64(g.ctx.Literals[v.Aux.(int)]))
	default:
		panic("BUG: not rematerializable")
	}
}

func (g *gen) store(vid ssa.ValueID) {
	idx := g.allocLocal(vid)
	g.emit(OpcodeLocalSet)
	g.emitU32(idx)
}

// addr pushes a pointer-typed value for use as a load/store's memory
// operand: pointers are carried i64-wide through the IR (matching
// types.Size's 8-byte pointer) but Wasm's linear memory is addressed with
// an i32, so every memory access wraps down at the access site.
func (g *gen) addr(vid ssa.ValueID) {
	g.push(vid)
	g.emit(OpcodeI32WrapI64)
}

func hasSideEffect(op ssa.Op) bool {
	switch op {
	case ssa.OpStore, ssa.OpCall, ssa.OpCallIndirect, ssa.OpNew, ssa.OpRetain, ssa.OpRelease:
		return true
	default:
		return false
	}
}

// region emits every block reachable starting at cur up to (but not
// including) stopAt, recursing into the `if`/`while` constructs it finds
// along the way. It returns once it reaches stopAt or a terminator that
// ends the enclosing construct (return, or a branch out of it).
func (g *gen) region(cur, stopAt ssa.BlockID) error {
	for cur != stopAt && cur != ssa.InvalidBlock {
		blk := g.f.B(cur)

		if blk.Kind == ssa.BlockLoopHeader {
			if err := g.genLoop(blk); err != nil {
				return err
			}
			cur = blk.LoopAfter
			continue
		}

		term, err := g.genValues(blk)
		if err != nil {
			return err
		}

		switch term.Op {
		case ssa.OpReturn:
			for _, a := range term.Args {
				g.push(a)
			}
			g.emit(OpcodeReturn)
			return nil

		case ssa.OpBrIf:
			targets := term.Aux.([]ssa.BranchTarget)
			if len(targets) != 2 {
				return ceerror.New(ceerror.KindCodegen, "br_if terminator with %d targets", len(targets)).WithPass("wasmgen")
			}
			g.push(term.Args[0])
			g.emit(OpcodeIf)
			g.emit(blockTypeByte(blk.Join, cur, g.f))
			g.labels = append(g.labels, label{lblBlock, blk.Join})
			if err := g.region(targets[0].Block, blk.Join); err != nil {
				return err
			}
			g.emit(OpcodeElse)
			if err := g.region(targets[1].Block, blk.Join); err != nil {
				return err
			}
			g.emit(OpcodeEnd)
			g.labels = g.labels[:len(g.labels)-1]
			if blk.Join == ssa.InvalidBlock {
				return nil
			}
			cur = blk.Join

		case ssa.OpJump:
			targets := term.Aux.([]ssa.BranchTarget)
			target := targets[0]
			g.genPhiStores(target)
			if depth, ok := g.depthOf(target.Block, lblLoop); ok {
				g.emit(OpcodeBr)
				g.emitU32(depth)
				return nil
			}
			cur = target.Block

		case ssa.OpBrTable:
			// cot's only br_table user is a tagged-union switch (§8 S6),
			// always exhaustive over a small, dense tag range. Rather
			// than a true Wasm br_table -- which needs each case target
			// wrapped in its own nested `block` purely to make the
			// label-depth arithmetic come out right -- this compiles it
			// as a cascading if/else-if chain on the tag value: simpler
			// to get right and just as correct, at the cost of an O(n)
			// rather than O(1) dispatch.
			targets := term.Aux.([]ssa.BranchTarget)
			if err := g.brTableChain(term.Args[0], targets, 0, blk.Join); err != nil {
				return err
			}
			if blk.Join == ssa.InvalidBlock {
				return nil
			}
			cur = blk.Join

		default:
			return ceerror.New(ceerror.KindCodegen, "block %d ends in non-terminator op %s", blk.ID, term.Op).WithBlock(int(blk.ID)).WithPass("wasmgen")
		}
	}
	return nil
}

// genLoop emits the standard `block $after / loop $cont ... end / end`
// wrapper for a while loop: the header's own values are its condition
// computation, and its BrIf chooses between continuing into the body and
// falling out to LoopAfter.
func (g *gen) genLoop(header *ssa.Block) error {
	g.emit(OpcodeBlock)
	g.emit(blockTypeByte(header.LoopAfter, header.ID, g.f))
	g.labels = append(g.labels, label{lblBlock, header.LoopAfter})
	g.emit(OpcodeLoop)
	g.emit(0x40) // loops are always void-typed; their "result" is the after-block's phis
	g.labels = append(g.labels, label{lblLoop, header.ID})

	term, err := g.genValues(header)
	if err != nil {
		return err
	}
	if term.Op != ssa.OpBrIf {
		return ceerror.New(ceerror.KindCodegen, "loop header %d does not end in br_if", header.ID).WithBlock(int(header.ID)).WithPass("wasmgen")
	}
	targets := term.Aux.([]ssa.BranchTarget)
	g.push(term.Args[0])
	g.emit(OpcodeI32Eqz)
	exitDepth, _ := g.depthOf(header.LoopAfter, lblBlock)
	g.emit(OpcodeBrIf)
	g.emitU32(exitDepth)

	if err := g.region(targets[0].Block, header.ID); err != nil {
		return err
	}

	g.emit(OpcodeEnd) // loop
	g.labels = g.labels[:len(g.labels)-1]
	g.emit(OpcodeEnd) // block
	g.labels = g.labels[:len(g.labels)-1]
	return nil
}

// brTableChain emits `tag == i` comparisons for targets[0:len-1], each
// wrapping its case in an `if`, with the final target as the fall-through
// else (switches are exhaustive, so it doubles as the default case).
func (g *gen) brTableChain(tag ssa.ValueID, targets []ssa.BranchTarget, i int, join ssa.BlockID) error {
	if i == len(targets)-1 {
		return g.region(targets[i].Block, join)
	}
	g.push(tag)
	g.emit(OpcodeI32Const)
	g.emitI32(int32(i))
	g.emit(OpcodeI32Eq)
	g.emit(OpcodeIf)
	g.emit(blockTypeByte(join, ssa.InvalidBlock, g.f))
	g.labels = append(g.labels, label{lblBlock, join})
	if err := g.region(targets[i].Block, join); err != nil {
		return err
	}
	g.emit(OpcodeElse)
	if err := g.brTableChain(tag, targets, i+1, join); err != nil {
		return err
	}
	g.emit(OpcodeEnd)
	g.labels = g.labels[:len(g.labels)-1]
	return nil
}

func (g *gen) depthOf(target ssa.BlockID, kind labelKind) (uint32, bool) {
	for i := len(g.labels) - 1; i >= 0; i-- {
		if g.labels[i].target == target && g.labels[i].kind == kind {
			return uint32(len(g.labels) - 1 - i), true
		}
	}
	return 0, false
}

// genPhiStores writes a jump's branch arguments into the target block's
// phi locals before control transfers there (Wasm has no block
// arguments, so phi resolution on this path is always `local.set` at the
// predecessor, per §9's "phi elimination via local.set/local.get").
func (g *gen) genPhiStores(t ssa.BranchTarget) {
	params := g.f.B(t.Block).Params
	for i, a := range t.Args {
		if i >= len(params) {
			break
		}
		g.push(a)
		g.store(params[i])
	}
}

// genValues emits every non-terminator value of blk and returns the
// terminator Value for the caller to handle.
func (g *gen) genValues(blk *ssa.Block) (*ssa.Value, error) {
	if len(blk.Values) == 0 {
		return nil, ceerror.New(ceerror.KindCodegen, "block %d has no terminator", blk.ID).WithBlock(int(blk.ID)).WithPass("wasmgen")
	}
	for _, vid := range blk.Values[:len(blk.Values)-1] {
		if err := g.genValue(g.f.V(vid)); err != nil {
			return nil, err
		}
	}
	return g.f.V(blk.Values[len(blk.Values)-1]), nil
}

func (g *gen) genValue(v *ssa.Value) error {
	if v.Uses == 0 && !hasSideEffect(v.Op) {
		return nil
	}
	switch v.Op {
	case ssa.OpParam, ssa.OpPhi, ssa.OpStringMake, ssa.OpSliceMake, ssa.OpConstInt, ssa.OpLiteralAddr:
		// Params/phis already have locals written by their producer;
		// *Make values are virtual (their ptr/len args ARE the real
		// values, per rewritedec's collapseMakeAccessors); ConstInt and
		// LiteralAddr are rematerialized at each use instead of stored.
		return nil

	case ssa.OpConstBool:
		g.emit(OpcodeI32Const)
		g.emitI32(int32(v.Aux.(int64)))
		g.store(v.ID)

	case ssa.OpAdd, ssa.OpWasmI64Add:
		return g.binop(v, g.i32i64(v, OpcodeI32Add, OpcodeI64Add))
	case ssa.OpSub:
		return g.binop(v, g.i32i64(v, OpcodeI32Sub, OpcodeI64Sub))
	case ssa.OpMul:
		return g.binop(v, g.i32i64(v, OpcodeI32Mul, OpcodeI64Mul))
	case ssa.OpDivS:
		return g.binop(v, g.i32i64(v, OpcodeI32DivS, OpcodeI64DivS))
	case ssa.OpDivU:
		return g.binop(v, g.i32i64(v, OpcodeI32DivU, OpcodeI64DivU))
	case ssa.OpRemS:
		return g.binop(v, g.i32i64(v, OpcodeI32RemS, OpcodeI64RemS))
	case ssa.OpRemU:
		return g.binop(v, g.i32i64(v, OpcodeI32RemU, OpcodeI64RemU))
	case ssa.OpAnd:
		return g.binop(v, g.i32i64(v, OpcodeI32And, OpcodeI64And))
	case ssa.OpOr:
		return g.binop(v, g.i32i64(v, OpcodeI32Or, OpcodeI64Or))
	case ssa.OpXor:
		return g.binop(v, g.i32i64(v, OpcodeI32Xor, OpcodeI64Xor))
	case ssa.OpShl:
		return g.binop(v, g.i32i64(v, OpcodeI32Shl, OpcodeI64Shl))
	case ssa.OpShrS:
		return g.binop(v, g.i32i64(v, OpcodeI32ShrS, OpcodeI64ShrS))
	case ssa.OpShrU:
		return g.binop(v, g.i32i64(v, OpcodeI32ShrU, OpcodeI64ShrU))

	case ssa.OpNeg:
		g.emit(g.i32i64(v, OpcodeI32Const, OpcodeI64Const))
		g.emitI32(0)
		g.push(v.Args[0])
		g.emit(g.i32i64(v, OpcodeI32Sub, OpcodeI64Sub))
		g.store(v.ID)

	case ssa.OpNot:
		g.push(v.Args[0])
		g.emit(OpcodeI32Eqz)
		g.store(v.ID)

	case ssa.OpIcmp:
		g.push(v.Args[0])
		g.push(v.Args[1])
		g.emit(icmpOpcode(g.f.Types, g.f.V(v.Args[0]).Type, v.Aux.(ssa.IcmpCond)))
		g.store(v.ID)

	case ssa.OpCall:
		for _, a := range v.Args {
			g.push(a)
		}
		idx, ok := g.ctx.Funcs[v.Aux.(string)]
		if !ok {
			return ceerror.New(ceerror.KindCodegen, "call to undeclared function %q", v.Aux.(string)).WithPass("wasmgen")
		}
		g.emit(OpcodeCall)
		g.emitU32(idx)
		if v.Type != types.Void {
			g.store(v.ID)
		}

	case ssa.OpLoad:
		g.addr(v.Args[0])
		g.emit(loadOpcode(g.f.Types, v.Type))
		g.memarg(0, v.Aux.(int))
		g.store(v.ID)

	case ssa.OpStore:
		g.addr(v.Args[0])
		g.push(v.Args[1])
		g.emit(storeOpcode(g.f.Types, g.f.V(v.Args[1]).Type))
		g.memarg(0, v.Aux.(int))

	case ssa.OpFieldAddr:
		g.push(v.Args[0])
		g.emit(OpcodeI64Const)
		g.emitI64(int64(v.Aux.(int)))
		g.emit(OpcodeI64Add)
		g.store(v.ID)

	case ssa.OpNew:
		// cot_alloc takes the payload size and returns an i64 payload
		// pointer with the §3.4 16-byte header already written just
		// behind it; every pointer the IR carries is i64-wide (the
		// runtime wraps to i32 itself wherever it touches memory), so no
		// conversion is needed at the call site.
		size := g.f.Types.Size(v.Type)
		g.emit(OpcodeI32Const)
		g.emitI32(int32(size))
		idx, ok := g.ctx.Funcs["cot_alloc"]
		if !ok {
			return ceerror.New(ceerror.KindCodegen, "cot_alloc not linked").WithPass("wasmgen")
		}
		g.emit(OpcodeCall)
		g.emitU32(idx)
		g.store(v.ID)

	case ssa.OpRetain:
		g.push(v.Args[0])
		idx := g.ctx.Funcs["cot_retain"]
		g.emit(OpcodeCall)
		g.emitU32(idx)

	case ssa.OpRelease:
		g.push(v.Args[0])
		idx := g.ctx.Funcs["cot_release"]
		g.emit(OpcodeCall)
		g.emitU32(idx)

	case ssa.OpStringConcat:
		for _, a := range v.Args {
			g.push(a)
		}
		idx := g.ctx.Funcs["cot_string_concat"]
		g.emit(OpcodeCall)
		g.emitU32(idx)
		g.store(v.ID)

	case ssa.OpStringEq:
		for _, a := range v.Args {
			g.push(a)
		}
		idx := g.ctx.Funcs["cot_string_eq"]
		g.emit(OpcodeCall)
		g.emitU32(idx)
		g.store(v.ID)

	case ssa.OpSlicePtr, ssa.OpSliceLen:
		// Only reachable if rewritedec's collapseMakeAccessors didn't
		// apply (the source wasn't a literal *Make value, e.g. it came
		// through a phi) -- unsupported by this generator's scope.
		return ceerror.New(ceerror.KindCodegen, "%s on a non-literal compound value", v.Op).WithValue(int(v.ID)).WithPass("wasmgen")

	case ssa.OpCondSelect:
		g.push(v.Args[0])
		g.push(v.Args[1])
		g.push(v.Args[2])
		g.emit(OpcodeSelect)
		g.store(v.ID)

	default:
		return ceerror.New(ceerror.KindCodegen, "gen: unhandled op %s", v.Op).WithValue(int(v.ID)).WithPass("wasmgen")
	}
	return nil
}

func (g *gen) binop(v *ssa.Value, opcode Opcode) error {
	g.push(v.Args[0])
	g.push(v.Args[1])
	g.emit(opcode)
	g.store(v.ID)
	return nil
}

func (g *gen) i32i64(v *ssa.Value, i32, i64 Opcode) Opcode {
	if valueType(g.f.Types, v.Type) == ValueTypeI64 {
		return i64
	}
	return i32
}

func loadOpcode(reg *types.TypeRegistry, ti types.TypeIndex) Opcode {
	switch valueType(reg, ti) {
	case ValueTypeI64:
		return OpcodeI64Load
	case ValueTypeF32:
		return OpcodeF32Load
	case ValueTypeF64:
		return OpcodeF64Load
	default:
		return OpcodeI32Load
	}
}

func storeOpcode(reg *types.TypeRegistry, ti types.TypeIndex) Opcode {
	switch valueType(reg, ti) {
	case ValueTypeI64:
		return OpcodeI64Store
	case ValueTypeF32:
		return OpcodeF32Store
	case ValueTypeF64:
		return OpcodeF64Store
	default:
		return OpcodeI32Store
	}
}

func icmpOpcode(reg *types.TypeRegistry, ti types.TypeIndex, cond ssa.IcmpCond) Opcode {
	is64 := valueType(reg, ti) == ValueTypeI64
	switch cond {
	case ssa.IcmpEq:
		if is64 {
			return OpcodeI64Eq
		}
		return OpcodeI32Eq
	case ssa.IcmpNe:
		if is64 {
			return OpcodeI64Ne
		}
		return OpcodeI32Ne
	case ssa.IcmpLtS:
		if is64 {
			return OpcodeI64LtS
		}
		return OpcodeI32LtS
	case ssa.IcmpLeS:
		if is64 {
			return OpcodeI64LeS
		}
		return OpcodeI32LeS
	case ssa.IcmpGtS:
		if is64 {
			return OpcodeI64GtS
		}
		return OpcodeI32GtS
	case ssa.IcmpGeS:
		if is64 {
			return OpcodeI64GeS
		}
		return OpcodeI32GeS
	case ssa.IcmpLtU:
		if is64 {
			return OpcodeI64LtU
		}
		return OpcodeI32LtU
	case ssa.IcmpLeU:
		if is64 {
			return OpcodeI64LeU
		}
		return OpcodeI32LeU
	case ssa.IcmpGtU:
		if is64 {
			return OpcodeI64GtU
		}
		return OpcodeI32GtU
	default:
		if is64 {
			return OpcodeI64GeU
		}
		return OpcodeI32GeU
	}
}

// blockTypeByte returns the block-type immediate for an `if`/`block`
// wrapper: void (0x40) unless join carries exactly one phi, in which case
// its result type is encoded directly (single-result block types need no
// type-section entry, §4.4.2's DecodeBlockType single-result cases).
func blockTypeByte(join, fallback ssa.BlockID, f *ssa.Function) byte {
	if join == ssa.InvalidBlock {
		return 0x40
	}
	params := f.B(join).Params
	if len(params) == 0 {
		return 0x40
	}
	if len(params) > 1 {
		// Multi-result block types need a type-section index, which gen
		// doesn't have access to at this point, so a join with more than
		// one live phi is not supported.
		panic(fmt.Sprintf("block %d has %d live phis, multi-result block types unsupported", join, len(params)))
	}
	return valueType(f.Types, f.V(params[0]).Type)
}
