// Package driver is the top-level orchestration described in spec §5: it
// strings internal/ast -> internal/lower -> the internal/ssa pass
// pipeline (§4.2) -> a backend together, and is what cmd/cot's
// subcommands call into. BuildWasm covers the Wasm path end to end;
// this package has no entry point for the native path (internal/wasm2clif
// -> internal/backend -> internal/objfile).
package driver

import (
	"github.com/cot-lang/cotc/internal/arcrt"
	"github.com/cot-lang/cotc/internal/ceerror"
	"github.com/cot-lang/cotc/internal/leb128"
	"github.com/cot-lang/cotc/internal/lower"
	"github.com/cot-lang/cotc/internal/ssa"
	"github.com/cot-lang/cotc/internal/wasmgen"
)

// BuildWasm assembles prog's functions, the ARC runtime (internal/arcrt),
// and the destructor table (§4.3) into one Module and returns its encoded
// `.wasm` bytes. This is the point where internal/wasmgen (which must not
// import internal/arcrt's consumer-facing Build, since arcrt itself
// imports wasmgen for the Module/Code/FunctionType vocabulary its bodies
// are built from) and internal/arcrt actually meet.
func BuildWasm(prog *lower.Program) ([]byte, error) {
	m := &wasmgen.Module{}

	// Reserve one mutable i64 global for the bump allocator (§4.4.3)
	// before generating any function body, since cot_alloc and every
	// generated function that calls it needs its index up front.
	bumpGlobal := wasmgen.Index(len(m.GlobalSection))
	m.GlobalSection = append(m.GlobalSection, wasmgen.Global{
		Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeI64, Mutable: true},
		Init: wasmgen.ConstantExpression{Opcode: wasmgen.OpcodeI64Const, Data: leb128.EncodeInt64(0)},
	})

	funcs := make(wasmgen.FuncIndex, len(prog.Funcs)+len(arcrt.Names()))
	var order []string
	for _, f := range prog.Funcs {
		funcs[f.Name] = wasmgen.Index(len(order))
		order = append(order, f.Name)
	}
	for _, name := range arcrt.Names() {
		funcs[name] = wasmgen.Index(len(order))
		order = append(order, name)
	}

	// Run every function through the Wasm pass pipeline (§4.2) before
	// anything downstream looks at its shape: rewritegeneric (the
	// pipeline's first stage) is what moves each function's string
	// literals into f.Literals, so f.Literals is only final once this has
	// run.
	wasmPasses := ssa.WasmPipeline()
	for _, f := range prog.Funcs {
		if err := ssa.Run(f, wasmPasses); err != nil {
			return nil, ceerror.Wrap(ceerror.KindCodegen, err, "running pass pipeline on %q", f.Name).WithPass("driver.buildwasm")
		}
	}

	// The literal pool is shared across every function (string constants
	// are not deduplicated, within a function or across functions); lay
	// each function's literals into one data segment back to back, recording
	// their base offsets before Generate needs them.
	dataOffset := uint32(0)
	var literalData []byte
	literalOffsets := make(map[*ssa.Function][]uint32, len(prog.Funcs))
	for _, f := range prog.Funcs {
		offs := make([]uint32, len(f.Literals))
		for i, lit := range f.Literals {
			offs[i] = dataOffset
			literalData = append(literalData, lit...)
			dataOffset += uint32(len(lit))
		}
		literalOffsets[f] = offs
	}
	if len(literalData) > 0 {
		m.DataSection = append(m.DataSection, wasmgen.DataSegment{
			MemoryIndex:      0,
			OffsetExpression: wasmgen.ConstantExpression{Opcode: wasmgen.OpcodeI32Const, Data: leb128.EncodeInt32(0)},
			Init:             literalData,
		})
	}

	codes := make([]*wasmgen.Code, len(order))
	sigs := make([]*wasmgen.FunctionType, len(order))
	for i, f := range prog.Funcs {
		code, sig, err := wasmgen.Generate(f, &wasmgen.GenContext{Funcs: funcs, Literals: literalOffsets[f]})
		if err != nil {
			return nil, ceerror.Wrap(ceerror.KindCodegen, err, "generating %q", f.Name).WithPass("driver.buildwasm")
		}
		codes[i] = code
		sigs[i] = sig
	}

	rtSigs := arcrt.Signatures()
	rtCodes := arcrt.Build(&arcrt.BuildContext{Funcs: funcs, BumpGlobal: bumpGlobal})
	for i, name := range order[len(prog.Funcs):] {
		idx := len(prog.Funcs) + i
		codes[idx] = rtCodes[name]
		sigs[idx] = rtSigs[name]
	}

	typeIDs := map[string]wasmgen.Index{}
	for i, name := range order {
		id := wasmgen.FunctionTypeID(sigs[i])
		tIdx, ok := typeIDs[id]
		if !ok {
			tIdx = wasmgen.Index(len(m.TypeSection))
			m.TypeSection = append(m.TypeSection, *sigs[i])
			typeIDs[id] = tIdx
		}
		m.FunctionSection = append(m.FunctionSection, tIdx)
		m.CodeSection = append(m.CodeSection, *codes[i])
		m.ExportSection = append(m.ExportSection, wasmgen.Export{Name: name, Type: wasmgen.ExternTypeFunc, Index: wasmgen.Index(i)})
	}

	m.MemorySection = &wasmgen.Memory{Min: wasmgen.MemoryInitialPages}
	m.ExportSection = append(m.ExportSection, wasmgen.Export{Name: "memory", Type: wasmgen.ExternTypeMemory, Index: 0})

	// The destructor table (§3.4, §4.3): table index 0 is the reserved
	// null sentinel (no element written there, so an indirect call
	// through it traps rather than silently calling function 0), and
	// each named destructor's function index fills its assigned slot.
	destructors := prog.Destructor.FunctionNames()
	if len(destructors) > 0 {
		elems := make([]wasmgen.Index, len(destructors))
		for i, name := range destructors {
			idx, ok := funcs[name]
			if !ok {
				return nil, ceerror.New(ceerror.KindCodegen, "destructor %q has no matching function", name).WithPass("driver.buildwasm")
			}
			elems[i] = idx
		}
		m.TableSection = append(m.TableSection, wasmgen.Table{Type: wasmgen.ValueTypeFuncref, Min: uint32(len(destructors) + 1)})
		m.ElementSection = append(m.ElementSection, wasmgen.ElementSegment{
			TableIndex: 0,
			OffsetExpr: wasmgen.ConstantExpression{Opcode: wasmgen.OpcodeI32Const, Data: leb128.EncodeInt32(1)},
			Type:       wasmgen.ValueTypeFuncref,
			Mode:       wasmgen.ElementModeActive,
			Init:       elems,
		})
	}

	return wasmgen.Encode(m), nil
}
