// Package arcrt hand-assembles the small fixed set of Wasm functions that
// back cot's ARC object model (§3.4, §4.4.3): allocation, retain/release,
// and the two string primitives the type checker lowers `+` and `==` over
// cot_string values to. internal/wasmgen's SSA-driven gen.go never touches
// this package's bodies -- they're emitted once, by hand, exactly like the
// rest of a module's Code section entries, and internal/wasmgen/link.go
// splices them in alongside the functions gen.go produced.
//
// Every function here is written against the same uniform i64-wide pointer
// convention gen.go's call sites use: a pointer argument or result never
// needs wrapping or extending at the call boundary, only at the point a
// body actually touches linear memory (internal/wasmgen/gen.go's addr()
// does the equivalent narrowing for SSA-generated code).
package arcrt

import (
	"github.com/cot-lang/cotc/internal/leb128"
	"github.com/cot-lang/cotc/internal/wasmgen"
)

// Names of the runtime functions, in the fixed order link.go assigns them
// contiguous function indices. bytesCopy is internal plumbing shared by
// the two string primitives; it is never called directly by generated SSA
// code, unlike the other five (internal/wasmgen/gen.go's OpNew/OpRetain/
// OpRelease/OpStringConcat/OpStringEq cases).
const (
	Alloc        = "cot_alloc"
	Dealloc      = "cot_dealloc"
	Retain       = "cot_retain"
	Release      = "cot_release"
	StringConcat = "cot_string_concat"
	StringEq     = "cot_string_eq"
	bytesCopy    = "cot_bytes_copy"
)

// Names returns every function this package defines, in link order.
func Names() []string {
	return []string{Alloc, Dealloc, Retain, Release, bytesCopy, StringConcat, StringEq}
}

// HeaderSize is the §3.4 object header: an 8-byte metadata pointer
// (zeroed by Release on death, for weak-reference detection) followed by
// an 8-byte reference count. cot_alloc returns a pointer just past it.
const HeaderSize = 8 + 8

// Signatures returns the FunctionType of every name in Names(), keyed by
// name, matching the i64-wide convention described in the package doc.
func Signatures() map[string]*wasmgen.FunctionType {
	i32, i64 := wasmgen.ValueTypeI32, wasmgen.ValueTypeI64
	return map[string]*wasmgen.FunctionType{
		Alloc:        {Params: []wasmgen.ValueType{i32}, Results: []wasmgen.ValueType{i64}},
		Dealloc:      {Params: []wasmgen.ValueType{i64}},
		Retain:       {Params: []wasmgen.ValueType{i64}},
		Release:      {Params: []wasmgen.ValueType{i64}},
		bytesCopy:    {Params: []wasmgen.ValueType{i64, i64, i64}},
		StringConcat: {Params: []wasmgen.ValueType{i64, i64, i64, i64}, Results: []wasmgen.ValueType{i64}},
		StringEq:     {Params: []wasmgen.ValueType{i64, i64, i64, i64}, Results: []wasmgen.ValueType{i32}},
	}
}

// BuildContext is the link-time information these bodies need that isn't
// knowable until the rest of the module's function/global index spaces
// are laid out.
type BuildContext struct {
	// Funcs resolves every name in Names() to its assigned function
	// index; set by link.go before calling Build.
	Funcs map[string]wasmgen.Index
	// BumpGlobal is the index of the module's mutable i64 global holding
	// the next free linear-memory address (§4.4.3's bump allocator).
	BumpGlobal wasmgen.Index
}

// Build returns the Code for every function in Names(), keyed by name.
func Build(ctx *BuildContext) map[string]*wasmgen.Code {
	out := make(map[string]*wasmgen.Code, len(Names()))
	out[Alloc] = buildAlloc(ctx)
	out[Dealloc] = buildDealloc(ctx)
	out[Retain] = buildRetain(ctx)
	out[Release] = buildRelease(ctx)
	out[bytesCopy] = buildBytesCopy(ctx)
	out[StringConcat] = buildStringConcat(ctx)
	out[StringEq] = buildStringEq(ctx)
	return out
}

// asm is the same byte-and-LEB128-emitting helper internal/wasmgen/gen.go
// uses, duplicated here rather than shared: gen.go's gen struct is built
// around an *ssa.Function and a value/local map this package has no use
// for, so reusing it would mean threading a nil *ssa.Function through
// every call for no benefit.
type asm struct {
	buf        []byte
	localTypes []wasmgen.ValueType
}

func (a *asm) emit(op wasmgen.Opcode)      { a.buf = append(a.buf, op) }
func (a *asm) emitU32(v uint32)            { a.buf = append(a.buf, leb128.EncodeUint32(v)...) }
func (a *asm) emitI32(v int32)             { a.buf = append(a.buf, leb128.EncodeInt32(v)...) }
func (a *asm) emitI64(v int64)             { a.buf = append(a.buf, leb128.EncodeInt64(v)...) }
func (a *asm) local(t wasmgen.ValueType) wasmgen.Index {
	idx := wasmgen.Index(len(a.localTypes))
	a.localTypes = append(a.localTypes, t)
	return idx
}

// memarg emits a load/store instruction's natural-alignment + offset
// immediate pair. Every access in this package is byte- or word-aligned
// at offset 0 except the header fields, which is why align is always
// passed explicitly rather than inferred from the opcode.
func (a *asm) memarg(align uint32, offset uint32) {
	a.emitU32(align)
	a.emitU32(offset)
}

func (a *asm) localGet(idx wasmgen.Index)  { a.emit(wasmgen.OpcodeLocalGet); a.emitU32(idx) }
func (a *asm) localSet(idx wasmgen.Index)  { a.emit(wasmgen.OpcodeLocalSet); a.emitU32(idx) }
func (a *asm) localTee(idx wasmgen.Index)  { a.emit(wasmgen.OpcodeLocalTee); a.emitU32(idx) }
func (a *asm) globalGet(idx wasmgen.Index) { a.emit(wasmgen.OpcodeGlobalGet); a.emitU32(idx) }
func (a *asm) globalSet(idx wasmgen.Index) { a.emit(wasmgen.OpcodeGlobalSet); a.emitU32(idx) }

func (a *asm) call(idx wasmgen.Index) { a.emit(wasmgen.OpcodeCall); a.emitU32(idx) }

func (a *asm) i64const(v int64) { a.emit(wasmgen.OpcodeI64Const); a.emitI64(v) }
func (a *asm) i32const(v int32) { a.emit(wasmgen.OpcodeI32Const); a.emitI32(v) }

// wrap narrows the i64 pointer arithmetic result on top of the stack down
// to the i32 linear-memory address it actually is; every function in this
// package carries pointers i64-wide right up until the instant it issues
// a load or store, matching gen.go's addr().
func (a *asm) wrap() { a.emit(wasmgen.OpcodeI32WrapI64) }

// code finalizes the instructions accumulated so far into a Code entry.
// Like gen.go's Generate, it does not append the function body's closing
// 0x0b -- internal/wasmgen/assemble.go adds that uniformly for every Code
// regardless of which package produced it.
func (a *asm) code() *wasmgen.Code {
	return &wasmgen.Code{LocalTypes: a.localTypes, Body: a.buf}
}

// buildAlloc implements cot_alloc(size: i32) -> i64: bump-allocate
// HeaderSize+size bytes, write a fresh §3.4 header (metadata_ptr=0,
// ref_count=1), and return a pointer to the payload just past it. There
// is no free list and no shrink-to-fit; §4.4.3 explicitly scopes
// reclamation out of this runtime (see cot_dealloc).
func buildAlloc(ctx *BuildContext) *wasmgen.Code {
	a := &asm{}
	sizeParam := wasmgen.Index(0)
	addr := a.local(wasmgen.ValueTypeI64)

	a.globalGet(ctx.BumpGlobal)
	a.localSet(addr)

	// metadata_ptr = 0 at [addr+0]
	a.localGet(addr)
	a.wrap()
	a.i64const(0)
	a.emit(wasmgen.OpcodeI64Store)
	a.memarg(3, 0)

	// ref_count = 1 at [addr+8]
	a.localGet(addr)
	a.wrap()
	a.i64const(1)
	a.emit(wasmgen.OpcodeI64Store)
	a.memarg(3, 8)

	// bump = addr + HeaderSize + size
	a.localGet(addr)
	a.i64const(HeaderSize)
	a.emit(wasmgen.OpcodeI64Add)
	a.localGet(sizeParam)
	a.emit(wasmgen.OpcodeI64ExtendI32U)
	a.emit(wasmgen.OpcodeI64Add)
	a.globalSet(ctx.BumpGlobal)

	// result = addr + HeaderSize
	a.localGet(addr)
	a.i64const(HeaderSize)
	a.emit(wasmgen.OpcodeI64Add)
	a.emit(wasmgen.OpcodeReturn)
	return a.code()
}

// buildDealloc implements cot_dealloc(ptr: i64). The bump allocator never
// reclaims memory, so this is a documented no-op: it exists so every
// caller and the driver's destructor-dispatch plumbing has a stable
// symbol to call once real reclamation (or a GC) is wired in, rather than
// special-casing "no dealloc yet" at every call site.
func buildDealloc(ctx *BuildContext) *wasmgen.Code {
	a := &asm{}
	return a.code()
}

// buildRetain implements cot_retain(ptr: i64): returns immediately for a
// null ptr, otherwise increments the ref_count field at ptr-8.
func buildRetain(ctx *BuildContext) *wasmgen.Code {
	a := &asm{}
	ptr := wasmgen.Index(0)
	addr := a.local(wasmgen.ValueTypeI32)

	a.localGet(ptr)
	a.emit(wasmgen.OpcodeI64Eqz)
	a.emit(wasmgen.OpcodeIf)
	a.buf = append(a.buf, 0x40) // empty block type
	a.emit(wasmgen.OpcodeReturn)
	a.emit(wasmgen.OpcodeEnd)

	a.localGet(ptr)
	a.i64const(8)
	a.emit(wasmgen.OpcodeI64Sub)
	a.wrap()
	a.localSet(addr)

	a.localGet(addr)
	a.localGet(addr)
	a.emit(wasmgen.OpcodeI64Load)
	a.memarg(3, 0)
	a.i64const(1)
	a.emit(wasmgen.OpcodeI64Add)
	a.emit(wasmgen.OpcodeI64Store)
	a.memarg(3, 0)
	return a.code()
}

// buildRelease implements cot_release(ptr: i64): decrements the
// ref_count field at ptr-8, and on reaching zero zeroes metadata_ptr at
// ptr-16 so a live weak reference can observe the object's death (§3.4).
// A zero-refcount release does not dispatch a destructor through the
// per-type metadata and does not call cot_dealloc: it only marks the
// object dead.
func buildRelease(ctx *BuildContext) *wasmgen.Code {
	a := &asm{}
	ptr := wasmgen.Index(0)
	addr := a.local(wasmgen.ValueTypeI32)
	newCount := a.local(wasmgen.ValueTypeI64)

	a.localGet(ptr)
	a.i64const(8)
	a.emit(wasmgen.OpcodeI64Sub)
	a.wrap()
	a.localSet(addr)

	a.localGet(addr)
	a.localGet(addr)
	a.emit(wasmgen.OpcodeI64Load)
	a.memarg(3, 0)
	a.i64const(1)
	a.emit(wasmgen.OpcodeI64Sub)
	a.localTee(newCount)
	a.emit(wasmgen.OpcodeI64Store)
	a.memarg(3, 0)

	a.localGet(newCount)
	a.emit(wasmgen.OpcodeI64Eqz)
	a.emit(wasmgen.OpcodeIf)
	a.buf = append(a.buf, 0x40) // empty block type
	a.localGet(ptr)
	a.i64const(16)
	a.emit(wasmgen.OpcodeI64Sub)
	a.wrap()
	a.i64const(0)
	a.emit(wasmgen.OpcodeI64Store)
	a.memarg(3, 0)
	a.emit(wasmgen.OpcodeEnd)
	return a.code()
}

// buildBytesCopy implements cot_bytes_copy(dst, src, n: i64), a plain
// byte-at-a-time copy loop. cot's dependency set has no bulk-memory
// helper to reach for here (memory.copy would need the bulk-memory
// proposal, which api.CoreFeaturesV2 does not include), so this is
// written the same way a hand-rolled interpreter loop would be.
func buildBytesCopy(ctx *BuildContext) *wasmgen.Code {
	a := &asm{}
	dst, src, n := wasmgen.Index(0), wasmgen.Index(1), wasmgen.Index(2)
	i := a.local(wasmgen.ValueTypeI64)

	a.i64const(0)
	a.localSet(i)

	a.emit(wasmgen.OpcodeBlock)
	a.buf = append(a.buf, 0x40)
	a.emit(wasmgen.OpcodeLoop)
	a.buf = append(a.buf, 0x40)

	a.localGet(i)
	a.localGet(n)
	a.emit(wasmgen.OpcodeI64GeU)
	a.emit(wasmgen.OpcodeBrIf)
	a.emitU32(1) // exit the enclosing block

	a.localGet(dst)
	a.localGet(i)
	a.emit(wasmgen.OpcodeI64Add)
	a.wrap()
	a.localGet(src)
	a.localGet(i)
	a.emit(wasmgen.OpcodeI64Add)
	a.wrap()
	a.emit(wasmgen.OpcodeI32Load8U)
	a.memarg(0, 0)
	a.emit(wasmgen.OpcodeI32Store8)
	a.memarg(0, 0)

	a.localGet(i)
	a.i64const(1)
	a.emit(wasmgen.OpcodeI64Add)
	a.localSet(i)
	a.emit(wasmgen.OpcodeBr)
	a.emitU32(0) // back to the loop top

	a.emit(wasmgen.OpcodeEnd) // loop
	a.emit(wasmgen.OpcodeEnd) // block
	return a.code()
}

// buildStringConcat implements cot_string_concat(aPtr, aLen, bPtr, bLen:
// i64) -> i64. The result is a freshly allocated aLen+bLen-byte payload
// holding the concatenated bytes, addressed by cot_alloc's returned
// payload pointer -- the same ARC-managed object shape every other heap
// value gets, so a concatenated string retains and releases exactly like
// any other OpNew result. The length is not stored in the object; callers
// pair the returned pointer with aLen+bLen themselves.
func buildStringConcat(ctx *BuildContext) *wasmgen.Code {
	a := &asm{}
	aPtr, aLen, bPtr, bLen := wasmgen.Index(0), wasmgen.Index(1), wasmgen.Index(2), wasmgen.Index(3)
	dst := a.local(wasmgen.ValueTypeI64)
	total := a.local(wasmgen.ValueTypeI64)

	a.localGet(aLen)
	a.localGet(bLen)
	a.emit(wasmgen.OpcodeI64Add)
	a.localSet(total)

	a.localGet(total)
	a.wrap()
	a.call(ctx.Funcs[Alloc])
	a.localSet(dst)

	a.localGet(dst)
	a.localGet(aPtr)
	a.localGet(aLen)
	a.call(ctx.Funcs[bytesCopy])

	a.localGet(dst)
	a.localGet(aLen)
	a.emit(wasmgen.OpcodeI64Add)
	a.localGet(bPtr)
	a.localGet(bLen)
	a.call(ctx.Funcs[bytesCopy])

	a.localGet(dst)
	a.emit(wasmgen.OpcodeReturn)
	return a.code()
}

// buildStringEq implements cot_string_eq(aPtr, aLen, bPtr, bLen: i64) ->
// i32: a length check followed by a byte-at-a-time comparison loop,
// short-circuiting on the first mismatch.
func buildStringEq(ctx *BuildContext) *wasmgen.Code {
	a := &asm{}
	aPtr, aLen, bPtr, bLen := wasmgen.Index(0), wasmgen.Index(1), wasmgen.Index(2), wasmgen.Index(3)
	i := a.local(wasmgen.ValueTypeI64)

	a.localGet(aLen)
	a.localGet(bLen)
	a.emit(wasmgen.OpcodeI64Ne)
	a.emit(wasmgen.OpcodeIf)
	a.buf = append(a.buf, 0x40)
	a.i32const(0)
	a.emit(wasmgen.OpcodeReturn)
	a.emit(wasmgen.OpcodeEnd)

	a.i64const(0)
	a.localSet(i)

	a.emit(wasmgen.OpcodeBlock)
	a.buf = append(a.buf, 0x40)
	a.emit(wasmgen.OpcodeLoop)
	a.buf = append(a.buf, 0x40)

	a.localGet(i)
	a.localGet(aLen)
	a.emit(wasmgen.OpcodeI64GeU)
	a.emit(wasmgen.OpcodeBrIf)
	a.emitU32(1)

	a.localGet(aPtr)
	a.localGet(i)
	a.emit(wasmgen.OpcodeI64Add)
	a.wrap()
	a.emit(wasmgen.OpcodeI32Load8U)
	a.memarg(0, 0)
	a.localGet(bPtr)
	a.localGet(i)
	a.emit(wasmgen.OpcodeI64Add)
	a.wrap()
	a.emit(wasmgen.OpcodeI32Load8U)
	a.memarg(0, 0)
	a.emit(wasmgen.OpcodeI32Ne)
	a.emit(wasmgen.OpcodeIf)
	a.buf = append(a.buf, 0x40)
	a.i32const(0)
	a.emit(wasmgen.OpcodeReturn)
	a.emit(wasmgen.OpcodeEnd)

	a.localGet(i)
	a.i64const(1)
	a.emit(wasmgen.OpcodeI64Add)
	a.localSet(i)
	a.emit(wasmgen.OpcodeBr)
	a.emitU32(0)

	a.emit(wasmgen.OpcodeEnd) // loop
	a.emit(wasmgen.OpcodeEnd) // block

	a.i32const(1)
	a.emit(wasmgen.OpcodeReturn)
	return a.code()
}
