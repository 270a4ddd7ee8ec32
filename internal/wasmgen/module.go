// Package wasmgen owns the binary-format side of the Wasm backend: the
// in-memory Module representation (§4.4.2's Type/Import/Function/Table/
// Memory/Global/Export/Element/Code/Data sections), the opcode table, and
// the encoder that assembles a Module into `.wasm` bytes. gen.go lowers a
// single SSA function to a Code (§4.4.1), preprocess.go offers a
// stand-alone check of its control-flow shape (not called by Generate
// or internal/driver), assemble.go encodes one Code into its
// code-section entry, and link.go's Encode serializes a fully-populated
// Module into the final `.wasm` byte stream. Building that Module out of
// a whole lowered program -- assigning function indices, invoking gen.go
// per function, and wiring in internal/arcrt -- is internal/driver's job;
// this file is the shared data model all of it operates on.
package wasmgen

import (
	"fmt"
	"io"

	"github.com/cot-lang/cotc/api"
	"github.com/cot-lang/cotc/internal/leb128"
)

// ValueType is a Wasm value type byte, using the encoding defined by the
// core spec (the same byte doubles as the type's LEB128-free encoding in
// a function type).
type ValueType = byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeV128      ValueType = 0x7b
	ValueTypeFuncref   ValueType = 0x70
	ValueTypeExternref ValueType = 0x6f
)

// RefTypeFuncref is the element type of every table cot emits: tables only
// ever hold function references, used for the ARC destructor table and
// call_indirect targets (§3.4, §4.3).
const RefTypeFuncref = ValueTypeFuncref

// ValueTypeName returns the human-readable name of a ValueType.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	default:
		return "unknown"
	}
}

// Index is a generic 0-based index into one of a module's index spaces
// (functions, types, globals, tables, memories, locals).
type Index = uint32

// ExternType classifies an Import or Export's target index space.
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// FunctionType is a Wasm function signature: zero or more parameter types
// followed by zero or more result types (multi-value, since cot always
// compiles against api.CoreFeaturesV2).
type FunctionType struct {
	Params, Results []ValueType

	// cached, set by FunctionTypeID on first use.
	cachedID string
}

// FunctionTypeID returns a string uniquely identifying this signature
// shape, used to deduplicate entries in the module's type section.
func FunctionTypeID(t *FunctionType) string {
	if t.cachedID != "" {
		return t.cachedID
	}
	buf := make([]byte, 0, len(t.Params)+len(t.Results)+1)
	buf = append(buf, t.Params...)
	buf = append(buf, '_')
	buf = append(buf, t.Results...)
	t.cachedID = string(buf)
	return t.cachedID
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// ConstantExpression is a constant-expression initializer (global inits,
// data/element segment offsets): an opcode plus its encoded immediate.
// cot only ever emits one of the four numeric *.const opcodes here, never
// global.get or ref.func initializers.
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte
}

// EvaluateI32 decodes a ConstantExpression known to hold an OpcodeI32Const
// immediate, as used for data/element segment offsets.
func (c ConstantExpression) EvaluateI32() int32 {
	v, _, err := leb128.LoadInt32(c.Data)
	if err != nil {
		panic(err)
	}
	return v
}

// Global is a single entry of the global section.
type Global struct {
	Type GlobalType
	Init ConstantExpression
}

// GlobalInstance is the runtime layout of one global slot inside a
// compiled module's instance data. internal/wasm2clif's global.get/
// global.set lowering addresses Val by a hardcoded offset rather than
// importing this type, so globalInstanceValueOffset in lower.go must be
// kept in sync with this layout (checked by TestGlobalInstanceValueOffset).
type GlobalInstance struct {
	Type ValueType
	_    [7]byte
	Val  uint64
}

// Memory describes a linear memory's page-count limits. One page is
// MemoryPageSize bytes.
type Memory struct {
	Min, Max     uint32
	IsMaxEncoded bool
}

const (
	MemoryPageSizeInBits = 16
	MemoryPageSize       = 1 << MemoryPageSizeInBits
)

// Table describes a table's element type and limits; cot only uses a
// single funcref table for the ARC destructor dispatch (§3.4, §4.3) and,
// on the Wasm path, indirect-call resolution.
type Table struct {
	Type     ValueType
	Min, Max uint32
	HasMax   bool
}

// Import is an entry of the import section; DescFunc/DescGlobal/DescMem/
// DescTable is valid depending on Type.
type Import struct {
	Module, Name string
	Type         ExternType
	DescFunc     Index
	DescGlobal   GlobalType
	DescMem      *Memory
	DescTable    *Table
}

// Export is an entry of the export section.
type Export struct {
	Name  string
	Type  ExternType
	Index Index
}

// Code is a function body: its declared local groups (already expanded
// into per-local types by the decoder, matching how internal/wasm2clif
// consumes it) and raw instruction bytes.
type Code struct {
	LocalTypes []ValueType
	Body       []byte
}

// ElementMode distinguishes how an ElementSegment initializes its table
// (cot never emits passive or declarative segments).
type ElementMode byte

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// ElementSegment initializes a range of a table with function indices,
// used exclusively for the ARC destructor table (§4.3) and call_indirect
// targets.
type ElementSegment struct {
	TableIndex Index
	OffsetExpr ConstantExpression
	Type       ValueType
	Mode       ElementMode
	Init       []Index
}

// DataSegment initializes a range of linear memory, used for string
// literal and FullMetadata constant pools (§3.4, §4.2 rewritegeneric).
type DataSegment struct {
	MemoryIndex       Index
	OffsetExpression  ConstantExpression
	Init              []byte
}

// Module is the in-memory representation of a `.wasm` file's sections, in
// the canonical spec order (§4.4.2's "link emits sections in spec order").
type Module struct {
	TypeSection     []FunctionType
	ImportSection   []Import
	FunctionSection []Index // index into TypeSection, one per defined (non-imported) function
	TableSection    []Table
	MemorySection   *Memory
	GlobalSection   []Global
	ExportSection   []Export
	ElementSection  []ElementSegment
	CodeSection     []Code
	DataSection     []DataSegment

	NameSection *NameSection

	ImportFunctionCount, ImportGlobalCount, ImportMemoryCount, ImportTableCount Index
}

// NameSection is the optional "name" custom section.
type NameSection struct {
	ModuleName    string
	FunctionNames map[Index]string
	LocalNames    map[Index]map[Index]string
}

// TypeOf resolves the FunctionType of function index idx, accounting for
// the imports-first index space convention (§4.4.2).
func (m *Module) TypeOf(idx Index) *FunctionType {
	if idx < m.ImportFunctionCount {
		for i := range m.ImportSection {
			imp := &m.ImportSection[i]
			if imp.Type == ExternTypeFunc {
				if idx == 0 {
					return &m.TypeSection[imp.DescFunc]
				}
				idx--
			}
		}
		panic("BUG: import function index out of range")
	}
	return &m.TypeSection[m.FunctionSection[idx-m.ImportFunctionCount]]
}

var (
	blockTypeEmpty = &FunctionType{}
	blockTypeI32   = &FunctionType{Results: []ValueType{ValueTypeI32}}
	blockTypeI64   = &FunctionType{Results: []ValueType{ValueTypeI64}}
	blockTypeF32   = &FunctionType{Results: []ValueType{ValueTypeF32}}
	blockTypeF64   = &FunctionType{Results: []ValueType{ValueTypeF64}}
	blockTypeV128  = &FunctionType{Results: []ValueType{ValueTypeV128}}
	blockTypeFunc  = &FunctionType{Results: []ValueType{ValueTypeFuncref}}
	blockTypeExt   = &FunctionType{Results: []ValueType{ValueTypeExternref}}
)

// DecodeBlockType reads the 33-bit signed LEB128 block type immediate
// following a block/loop/if opcode, resolving it to the FunctionType it
// denotes: one of the single-result encodings, the empty "v_v" signature
// (0x40), or an index into types for a multi-value signature.
//
// features gates the multi-value encoding: without api.CoreFeatureMultiValue
// a non-empty index is invalid, matching the core spec's pre-MVP block type
// grammar.
func DecodeBlockType(types []FunctionType, r io.ByteReader, features api.CoreFeatures) (*FunctionType, uint64, error) {
	v, num, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return nil, 0, fmt.Errorf("decode block type: %w", err)
	}
	if v < 0 {
		switch byte(v & 0x7f) {
		case 0x40:
			return blockTypeEmpty, num, nil
		case ValueTypeI32:
			return blockTypeI32, num, nil
		case ValueTypeI64:
			return blockTypeI64, num, nil
		case ValueTypeF32:
			return blockTypeF32, num, nil
		case ValueTypeF64:
			return blockTypeF64, num, nil
		case ValueTypeV128:
			return blockTypeV128, num, nil
		case ValueTypeFuncref:
			return blockTypeFunc, num, nil
		case ValueTypeExternref:
			return blockTypeExt, num, nil
		}
		return nil, 0, fmt.Errorf("invalid block type: %d", v)
	}
	if !features.IsEnabled(api.CoreFeatureMultiValue) {
		return nil, 0, fmt.Errorf("multi-value block types require CoreFeatureMultiValue")
	}
	if v >= int64(len(types)) {
		return nil, 0, fmt.Errorf("invalid block type signature index: %d", v)
	}
	return &types[v], num, nil
}
