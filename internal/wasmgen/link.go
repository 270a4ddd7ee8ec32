// Encode and the functions below it assemble an already-populated Module
// into `.wasm` bytes. Populating that Module from a lowered program --
// assigning function indices, generating each function's Code, wiring in
// the ARC runtime, and laying out the destructor element segment -- is
// internal/driver's job (it needs both this package and internal/arcrt,
// and arcrt already depends on this package for the Module/Code/
// FunctionType types its hand-assembled bodies are built from, so the
// orchestration has to live a level above both to avoid an import cycle).
package wasmgen

import "github.com/cot-lang/cotc/internal/leb128"

// Section ids, per the core spec's binary format (module.go's decode side
// never needed these -- internal/wasm2clif reads sections by position,
// not id, since cot never emits a custom section gap -- but assembling a
// well-formed file from scratch needs them).
const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionTable    = 4
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionElement  = 9
	sectionCode     = 10
	sectionData     = 11
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00} // "\0asm" + version 1

// MemoryInitialPages is how many 64KiB pages cot's single linear memory
// starts with. It is never grown: cot_alloc's bump pointer
// (internal/arcrt) does not issue memory.grow, so allocations are
// limited to these pages. The memory declares no maximum, matching
// api.CoreFeaturesV2's baseline (no shared-memory/threads feature, so a
// single unbounded-max memory is the simplest correct choice).
const MemoryInitialPages = 2

// Encode serializes m into `.wasm` bytes: the magic/version header
// followed by each non-empty section, in the section-id order the core
// spec requires a decoder to see them in.
func Encode(m *Module) []byte {
	out := append([]byte{}, wasmMagic...)

	if len(m.TypeSection) > 0 {
		out = appendSection(out, sectionType, encodeTypeSection(m.TypeSection))
	}
	if len(m.ImportSection) > 0 {
		out = appendSection(out, sectionImport, encodeImportSection(m.ImportSection))
	}
	if len(m.FunctionSection) > 0 {
		out = appendSection(out, sectionFunction, encodeFunctionSection(m.FunctionSection))
	}
	if len(m.TableSection) > 0 {
		out = appendSection(out, sectionTable, encodeTableSection(m.TableSection))
	}
	if m.MemorySection != nil {
		out = appendSection(out, sectionMemory, encodeMemorySection(m.MemorySection))
	}
	if len(m.GlobalSection) > 0 {
		out = appendSection(out, sectionGlobal, encodeGlobalSection(m.GlobalSection))
	}
	if len(m.ExportSection) > 0 {
		out = appendSection(out, sectionExport, encodeExportSection(m.ExportSection))
	}
	if len(m.ElementSection) > 0 {
		out = appendSection(out, sectionElement, encodeElementSection(m.ElementSection))
	}
	if len(m.CodeSection) > 0 {
		out = appendSection(out, sectionCode, encodeCodeSection(m.CodeSection))
	}
	if len(m.DataSection) > 0 {
		out = appendSection(out, sectionData, encodeDataSection(m.DataSection))
	}
	return out
}

func appendSection(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
	return append(out, body...)
}

func encodeTypeSection(types []FunctionType) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(types)))...)
	for _, t := range types {
		out = append(out, 0x60) // functype tag
		out = append(out, leb128.EncodeUint32(uint32(len(t.Params)))...)
		out = append(out, t.Params...)
		out = append(out, leb128.EncodeUint32(uint32(len(t.Results)))...)
		out = append(out, t.Results...)
	}
	return out
}

func encodeImportSection(imports []Import) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(imports)))...)
	for _, imp := range imports {
		out = append(out, encodeName(imp.Module)...)
		out = append(out, encodeName(imp.Name)...)
		out = append(out, imp.Type)
		switch imp.Type {
		case ExternTypeFunc:
			out = append(out, leb128.EncodeUint32(imp.DescFunc)...)
		case ExternTypeTable:
			out = append(out, encodeTable(*imp.DescTable)...)
		case ExternTypeMemory:
			out = append(out, encodeMemory(*imp.DescMem)...)
		case ExternTypeGlobal:
			out = append(out, imp.DescGlobal.ValType, boolByte(imp.DescGlobal.Mutable))
		}
	}
	return out
}

func encodeFunctionSection(idxs []Index) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(idxs)))...)
	for _, i := range idxs {
		out = append(out, leb128.EncodeUint32(i)...)
	}
	return out
}

func encodeTableSection(tables []Table) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(tables)))...)
	for _, t := range tables {
		out = append(out, encodeTable(t)...)
	}
	return out
}

func encodeTable(t Table) []byte {
	out := []byte{t.Type}
	return append(out, encodeLimits(t.Min, t.Max, t.HasMax)...)
}

func encodeMemorySection(mem *Memory) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(1)...)
	return append(out, encodeMemory(*mem)...)
}

func encodeMemory(mem Memory) []byte {
	return encodeLimits(mem.Min, mem.Max, mem.IsMaxEncoded)
}

func encodeLimits(min, max uint32, hasMax bool) []byte {
	if !hasMax {
		return append([]byte{0x00}, leb128.EncodeUint32(min)...)
	}
	out := append([]byte{0x01}, leb128.EncodeUint32(min)...)
	return append(out, leb128.EncodeUint32(max)...)
}

func encodeGlobalSection(globals []Global) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(globals)))...)
	for _, g := range globals {
		out = append(out, g.Type.ValType, boolByte(g.Type.Mutable))
		out = append(out, g.Init.Opcode)
		out = append(out, g.Init.Data...)
		out = append(out, OpcodeEnd)
	}
	return out
}

func encodeExportSection(exports []Export) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(exports)))...)
	for _, e := range exports {
		out = append(out, encodeName(e.Name)...)
		out = append(out, e.Type)
		out = append(out, leb128.EncodeUint32(e.Index)...)
	}
	return out
}

func encodeElementSection(elems []ElementSegment) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(elems)))...)
	for _, e := range elems {
		// Active, table index 0, funcref: the only shape cot's destructor
		// table ever needs (§4.3), encoded with the flags-0 element
		// segment variant rather than the full flags-bitfield grammar.
		out = append(out, 0x00)
		out = append(out, e.OffsetExpr.Opcode)
		out = append(out, e.OffsetExpr.Data...)
		out = append(out, OpcodeEnd)
		out = append(out, leb128.EncodeUint32(uint32(len(e.Init)))...)
		for _, f := range e.Init {
			out = append(out, leb128.EncodeUint32(f)...)
		}
	}
	return out
}

func encodeCodeSection(codes []Code) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(codes)))...)
	for i := range codes {
		out = append(out, Assemble(&codes[i])...)
	}
	return out
}

func encodeDataSection(segs []DataSegment) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(segs)))...)
	for _, s := range segs {
		out = append(out, 0x00) // active, memory index 0
		out = append(out, s.OffsetExpression.Opcode)
		out = append(out, s.OffsetExpression.Data...)
		out = append(out, OpcodeEnd)
		out = append(out, leb128.EncodeUint32(uint32(len(s.Init)))...)
		out = append(out, s.Init...)
	}
	return out
}

func encodeName(s string) []byte {
	out := leb128.EncodeUint32(uint32(len(s)))
	return append(out, []byte(s)...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
