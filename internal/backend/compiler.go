package backend

import (
	"context"
	"fmt"

	"github.com/cot-lang/cotc/internal/backend/regalloc"
	"github.com/cot-lang/cotc/internal/clif"
)

// NewCompiler returns a new Compiler that lowers the function currently
// built in b into m's ISA-specific machine code. One Compiler is reused
// across every function in a translation unit; Reset (via Machine.Reset)
// clears the per-function state between calls.
func NewCompiler(ctx context.Context, m Machine, b clif.Builder) Compiler {
	return newCompiler(ctx, m, b)
}

func newCompiler(ctx context.Context, m Machine, b clif.Builder) *compiler {
	c := &compiler{
		ctx:            ctx,
		mach:           m,
		builder:        b,
		alreadyLowered: map[*clif.Instruction]struct{}{},
	}
	m.SetCompiler(c)
	// Index every value already built into b so ValueDefinition works
	// immediately (lowerBlockArguments, in particular, is also invoked
	// standalone against an already-built block ahead of a full Lower
	// pass); assignVirtualRegisters rebuilds this in reverse postorder
	// once RunPasses has refreshed ref counts.
	c.collectValueDefs()
	return c
}

// collectValueDefs walks every block currently built in c.builder, in
// declaration order, recording each block parameter's and instruction
// result's SSAValueDefinition.
func (c *compiler) collectValueDefs() {
	b := c.builder
	refCounts := b.ValueRefCounts()
	refCountOf := func(id clif.ValueID) uint32 {
		if int(id) < len(refCounts) {
			return uint32(refCounts[id])
		}
		return 0
	}

	for blk := b.BlockIteratorBegin(); blk != nil; blk = b.BlockIteratorNext() {
		for i := 0; i < blk.Params(); i++ {
			p := blk.Param(i)
			c.setValueDef(p.ID(), SSAValueDefinition{V: p})
		}
		for instr := blk.Root(); instr != nil; instr = instr.Next() {
			r, rs := instr.Returns()
			if r.Valid() {
				c.setValueDef(r.ID(), SSAValueDefinition{V: r, Instr: instr, RefCount: refCountOf(r.ID())})
			}
			for _, r := range rs {
				c.setValueDef(r.ID(), SSAValueDefinition{V: r, Instr: instr, RefCount: refCountOf(r.ID())})
			}
		}
	}
}

func (c *compiler) setValueDef(id clif.ValueID, def SSAValueDefinition) {
	if need := int(id) + 1; need > len(c.valueDefs) {
		c.valueDefs = append(c.valueDefs, make([]SSAValueDefinition, need-len(c.valueDefs))...)
	}
	c.valueDefs[id] = def
}

// Compiler lowers one function's worth of clif IR, already built in a
// clif.Builder, into the ISA-specific machine code a Machine knows how to
// emit. It owns the SSA-value-to-virtual-register bookkeeping (§4.5.2's
// regalloc2-style vreg assignment) that every Machine's lowering methods
// consult through the *compiler value each one is handed via SetCompiler.
type Compiler interface {
	// Lower walks the function's blocks in reverse postorder and asks the
	// Machine to lower every instruction into machine-specific form.
	Lower()

	// RegAlloc runs register allocation over the lowered instructions.
	RegAlloc()

	// Finalize runs the post-regalloc passes (prologue/epilogue insertion,
	// relocation bookkeeping) and leaves Buf ready to read.
	Finalize()

	// Encode asks the Machine to encode its lowered, allocated instructions
	// into Buf.
	Encode()

	// Format returns a human-readable dump of the current lowering state,
	// for tests.
	Format() string

	// Buf returns the machine code accumulated by Emit4Bytes so far.
	Buf() []byte

	// Emit4Bytes appends a little-endian 32-bit instruction word to Buf.
	Emit4Bytes(w uint32)

	// AddRelocationInfo records that the 4 bytes about to be emitted at the
	// current end of Buf are a call-instruction placeholder targeting ref,
	// to be patched once every function's binary offset is known.
	AddRelocationInfo(ref clif.FuncRef)

	// AllocateVReg allocates a fresh virtual register of the given type.
	AllocateVReg(typ regalloc.RegType) regalloc.VReg

	// VRegOf returns the virtual register holding v.
	VRegOf(v clif.Value) regalloc.VReg

	// TypeOf returns the clif.Type a previously allocated VReg was typed
	// with, needed once regalloc has assigned it a RealReg and a Machine
	// must pick a spill-slot width.
	TypeOf(v regalloc.VReg) clif.Type

	// ValueDefinition returns v's definition: either a block parameter or
	// the instruction that produced it, plus how many times it's used.
	ValueDefinition(v clif.Value) *SSAValueDefinition

	// MatchInstr reports whether def is a single-use instruction with the
	// given opcode, so a Machine's tree-matching lowerer can fuse it into
	// the instruction consuming it instead of materializing it separately.
	MatchInstr(def *SSAValueDefinition, opcode clif.Opcode) bool

	// MatchInstrOneOf is MatchInstr generalized over a set of candidate
	// opcodes; it returns the one that matched, or clif.OpcodeInvalid.
	MatchInstrOneOf(def *SSAValueDefinition, opcodes []clif.Opcode) clif.Opcode

	// MarkLowered records that inst has already been folded into another
	// instruction's lowering, so Lower's instruction walk skips it.
	MarkLowered(inst *clif.Instruction)
}

// compiler is the concrete Compiler.
type compiler struct {
	ctx     context.Context
	mach    Machine
	builder clif.Builder

	nextVRegID      regalloc.VRegID
	ssaValueToVRegs []regalloc.VReg
	vRegTypes       []clif.Type

	valueDefs   []SSAValueDefinition
	returnVRegs []regalloc.VReg

	alreadyLowered map[*clif.Instruction]struct{}

	buf         []byte
	relocations []RelocationInfo
}

// RelocationInfo records a single call-instruction placeholder emitted by
// Compiler.Emit4Bytes via AddRelocationInfo, patched once Offset's caller
// and ref's binary offset are both known.
type RelocationInfo struct {
	// Offset is the byte offset into the function's machine code at which
	// the placeholder call sits.
	Offset int64
	// FuncRef is the callee the placeholder call targets.
	FuncRef clif.FuncRef
}

// ExecutableContext is the per-ISA bookkeeping a Machine keeps across a
// function's lowering (pending/ordered instructions, label positions).
// Its shape is ISA-specific (see each isa package's concrete context
// type); Compiler never reaches into it, so this is deliberately an
// empty marker interface rather than a method set Compiler would have
// to stay in lockstep with.
type ExecutableContext interface{}

// Lower implements Compiler.Lower.
func (c *compiler) Lower() {
	c.assignVirtualRegisters()

	b := c.builder
	for blk := b.BlockIteratorReversePostOrderBegin(); blk != nil; blk = b.BlockIteratorReversePostOrderNext() {
		c.lowerBlock(blk)
	}
}

func (c *compiler) lowerBlock(blk clif.BasicBlock) {
	cur := blk.Tail()

	var br0, br1 *clif.Instruction
	if cur != nil && cur.IsBranching() {
		br0 = cur
		cur = cur.Prev()
		if cur != nil && cur.IsBranching() {
			br1 = cur
			cur = cur.Prev()
		}
	}

	// br1, if present, is the conditional branch that falls through to
	// br0's unconditional jump/br_table when untaken; critical-edge
	// splitting guarantees a conditional branch never itself carries
	// block arguments, so only br0's Jump (if that's what it is) needs
	// lowerBlockArguments.
	if br1 != nil {
		c.mach.LowerConditionalBranch(br1)
	}
	if br0 != nil {
		if br0.Opcode() == clif.OpcodeJump {
			_, args, target := br0.BranchData()
			c.lowerBlockArguments(args, target)
		}
		c.mach.LowerSingleBranch(br0)
	}

	for ; cur != nil; cur = cur.Prev() {
		if _, ok := c.alreadyLowered[cur]; ok {
			continue
		}
		if cur.Opcode() == clif.OpcodeReturn {
			c.lowerReturn(cur)
			continue
		}
		c.mach.LowerInstr(cur)
	}
}

func (c *compiler) lowerReturn(instr *clif.Instruction) {
	for i, v := range instr.ReturnVals() {
		dst := c.returnVRegs[i]
		def := c.ValueDefinition(v)
		if def.IsFromInstr() && def.Instr.Constant() {
			c.mach.InsertLoadConstantBlockArg(def.Instr, dst)
			continue
		}
		if src := c.VRegOf(v); src != dst {
			c.mach.InsertMove(dst, src, v.Type())
		}
	}
	c.mach.InsertReturn()
}

type blockArgMove struct {
	src, dst regalloc.VReg
	typ      clif.Type
}

// lowerBlockArguments lowers the parallel assignment of args into succ's
// block parameters. A single non-constant move is inserted directly;
// two or more always go through temporary registers first, since any
// subset of them might alias succ's own parameter set (a back edge
// passing a permutation of the loop header's own params being the
// common case) and a naive in-place sequence of moves would clobber a
// source before it's read.
func (c *compiler) lowerBlockArguments(args []clif.Value, succ clif.BasicBlock) {
	if len(args) != succ.Params() {
		panic(fmt.Sprintf("BUG: mismatched number of block args: %d != %d", len(args), succ.Params()))
	}

	var moves []blockArgMove
	for i, arg := range args {
		dst := c.VRegOf(succ.Param(i))
		def := c.ValueDefinition(arg)
		if def.IsFromInstr() && def.Instr.Constant() {
			c.mach.InsertLoadConstantBlockArg(def.Instr, dst)
			continue
		}
		moves = append(moves, blockArgMove{src: c.VRegOf(arg), dst: dst, typ: arg.Type()})
	}

	switch len(moves) {
	case 0:
	case 1:
		if mov := moves[0]; mov.src != mov.dst {
			c.mach.InsertMove(mov.dst, mov.src, mov.typ)
		}
	default:
		tmps := make([]regalloc.VReg, len(moves))
		for i, mov := range moves {
			tmps[i] = c.AllocateVReg(regalloc.RegTypeOf(mov.typ))
			c.mach.InsertMove(tmps[i], mov.src, mov.typ)
		}
		for i, mov := range moves {
			c.mach.InsertMove(mov.dst, tmps[i], mov.typ)
		}
	}
}

// assignVirtualRegisters assigns a VReg to every block parameter and
// every instruction result in the function, in reverse postorder, before
// Lower's single backwards walk over each block's instructions begins.
func (c *compiler) assignVirtualRegisters() {
	b := c.builder
	refCounts := b.ValueRefCounts()

	need := len(refCounts)
	if need > len(c.ssaValueToVRegs) {
		c.ssaValueToVRegs = append(c.ssaValueToVRegs, make([]regalloc.VReg, need-len(c.ssaValueToVRegs))...)
		c.valueDefs = append(c.valueDefs, make([]SSAValueDefinition, need-len(c.valueDefs))...)
	}

	for blk := b.BlockIteratorReversePostOrderBegin(); blk != nil; blk = b.BlockIteratorReversePostOrderNext() {
		for i := 0; i < blk.Params(); i++ {
			p := blk.Param(i)
			vreg := c.AllocateVReg(regalloc.RegTypeOf(p.Type()))
			c.ssaValueToVRegs[p.ID()] = vreg
			c.valueDefs[p.ID()] = SSAValueDefinition{V: p}
		}

		for instr := blk.Root(); instr != nil; instr = instr.Next() {
			r, rs := instr.Returns()
			if r.Valid() {
				c.ssaValueToVRegs[r.ID()] = c.AllocateVReg(regalloc.RegTypeOf(r.Type()))
				c.valueDefs[r.ID()] = SSAValueDefinition{V: r, Instr: instr, RefCount: uint32(refCounts[r.ID()])}
			}
			for _, r := range rs {
				c.ssaValueToVRegs[r.ID()] = c.AllocateVReg(regalloc.RegTypeOf(r.Type()))
				c.valueDefs[r.ID()] = SSAValueDefinition{V: r, Instr: instr, RefCount: uint32(refCounts[r.ID()])}
			}
		}
	}

	retBlk := b.ReturnBlock()
	c.returnVRegs = c.returnVRegs[:0]
	for i := 0; i < retBlk.Params(); i++ {
		c.returnVRegs = append(c.returnVRegs, c.AllocateVReg(regalloc.RegTypeOf(retBlk.Param(i).Type())))
	}
}

// AllocateVReg implements Compiler.AllocateVReg.
func (c *compiler) AllocateVReg(typ regalloc.RegType) regalloc.VReg {
	id := c.nextVRegID
	c.nextVRegID++
	if int(id) >= len(c.vRegTypes) {
		c.vRegTypes = append(c.vRegTypes, make([]clif.Type, int(id)+1-len(c.vRegTypes))...)
	}
	r := regalloc.VReg(id).SetRegType(typ)
	switch typ {
	case regalloc.RegTypeInt:
		c.vRegTypes[id] = clif.TypeI64
	case regalloc.RegTypeFloat:
		c.vRegTypes[id] = clif.TypeF64
	}
	return r
}

// VRegOf implements Compiler.VRegOf.
func (c *compiler) VRegOf(v clif.Value) regalloc.VReg {
	return c.ssaValueToVRegs[v.ID()]
}

// TypeOf implements Compiler.TypeOf.
func (c *compiler) TypeOf(v regalloc.VReg) clif.Type {
	return c.vRegTypes[v.ID()]
}

// ValueDefinition implements Compiler.ValueDefinition.
func (c *compiler) ValueDefinition(v clif.Value) *SSAValueDefinition {
	return &c.valueDefs[v.ID()]
}

// MatchInstr implements Compiler.MatchInstr.
func (c *compiler) MatchInstr(def *SSAValueDefinition, opcode clif.Opcode) bool {
	return def.IsFromInstr() && def.RefCount == 1 && def.Instr.Opcode() == opcode
}

// MatchInstrOneOf implements Compiler.MatchInstrOneOf.
func (c *compiler) MatchInstrOneOf(def *SSAValueDefinition, opcodes []clif.Opcode) clif.Opcode {
	if !def.IsFromInstr() || def.RefCount != 1 {
		return clif.OpcodeInvalid
	}
	op := def.Instr.Opcode()
	for _, o := range opcodes {
		if o == op {
			return op
		}
	}
	return clif.OpcodeInvalid
}

// MarkLowered implements Compiler.MarkLowered.
func (c *compiler) MarkLowered(inst *clif.Instruction) {
	c.alreadyLowered[inst] = struct{}{}
}

// RegAlloc implements Compiler.RegAlloc.
func (c *compiler) RegAlloc() {
	c.mach.RegAlloc()
}

// Finalize implements Compiler.Finalize.
func (c *compiler) Finalize() {
	c.mach.PostRegAlloc()
}

// Encode implements Compiler.Encode.
func (c *compiler) Encode() {
	c.mach.Encode(c.ctx)
}

// Format implements Compiler.Format.
func (c *compiler) Format() string {
	return c.mach.Format()
}

// Buf implements Compiler.Buf.
func (c *compiler) Buf() []byte {
	return c.buf
}

// Emit4Bytes implements Compiler.Emit4Bytes.
func (c *compiler) Emit4Bytes(w uint32) {
	c.buf = append(c.buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
}

// AddRelocationInfo implements Compiler.AddRelocationInfo.
func (c *compiler) AddRelocationInfo(ref clif.FuncRef) {
	c.relocations = append(c.relocations, RelocationInfo{Offset: int64(len(c.buf)), FuncRef: ref})
}

// Reset clears the compiler's per-function state so it can be reused for
// the next function; called between Compile calls in internal/driver's
// native-build loop.
func (c *compiler) Reset() {
	for i := regalloc.VRegID(0); i < c.nextVRegID; i++ {
		c.vRegTypes[i] = 0
	}
	c.nextVRegID = 0
	c.buf = c.buf[:0]
	c.relocations = c.relocations[:0]
	c.returnVRegs = c.returnVRegs[:0]
	for k := range c.alreadyLowered {
		delete(c.alreadyLowered, k)
	}
	c.mach.Reset()
}
