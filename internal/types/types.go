// Package types implements the TypeRegistry shared by every SSA Function:
// the dense basic-type indices (I8..U64, F32/F64, BOOL, STRING, VOID) and
// the composite types (pointer, slice, array, struct, enum, tagged-union,
// optional, error-union, function) built on top of them.
//
// This is the front-end-facing type model consumed by internal/ast and
// internal/lower; it is distinct from internal/clif.Type, the much
// smaller machine-scalar type tag used once IR has been lowered to CLIF.
package types

import "fmt"

// TypeIndex is a dense index into a TypeRegistry. Basic types occupy fixed
// low indices so code can compare against e.g. Void without a registry
// lookup.
type TypeIndex int

// Kind tags which of Type's fields are meaningful.
type Kind byte

const (
	KindInvalid Kind = iota

	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindBool
	// KindString is internally slice<u8> (16 bytes: ptr + len). Kept as
	// its own Kind rather than folded into KindSlice because rewritedec
	// distinguishes `string_make`/`string_concat` from plain slice ops
	// even though both decompose to the same ptr/len pair.
	KindString
	KindVoid

	KindPointer
	KindSlice
	KindArray
	KindStruct
	KindEnum
	KindTaggedUnion
	KindOptional
	KindErrorUnion
	KindFunction
)

// Field is one member of a KindStruct type: its type and byte offset from
// the start of the struct, computed by the registry at Intern time using
// each field type's natural (C-like) alignment.
type Field struct {
	Name   string
	Type   TypeIndex
	Offset int
}

// Type is one entry of a TypeRegistry. Only the fields relevant to Kind are
// populated; the rest are zero.
type Type struct {
	Kind Kind

	// KindPointer, KindSlice, KindArray, KindOptional: the pointee/element/
	// wrapped type.
	Elem TypeIndex
	// KindArray: number of elements.
	Len int

	// KindStruct: ordered, offset-assigned fields.
	Fields []Field

	// KindEnum: the underlying integer type (one of KindI8..KindU64) and
	// the declared variant names, in declaration order; a variant's value
	// is its index unless the source assigns one explicitly, in which
	// case the checker (outside this package) records it out of band.
	Underlying TypeIndex
	Variants   []string

	// KindTaggedUnion: payload type per variant (parallel to Variants),
	// and the tag width cot always uses (4 bytes) plus the size of the
	// largest payload, since every variant is stored at the same offset
	// after the tag.
	VariantTypes   []TypeIndex
	MaxPayloadSize int

	// KindErrorUnion: the success type and the error type, stored as
	// {tag: u32, union of {Value, Err}} analogous to KindTaggedUnion with
	// exactly two variants, kept distinct because the lowerer needs to
	// recognize `try`/error-propagation sites structurally.
	Value TypeIndex
	Err   TypeIndex

	// KindFunction: parameter and result types. cot functions support at
	// most one result at the source level (multi-value is a Wasm/CLIF
	// signature concern, not a Cot-level one), but Results is a slice so
	// VOID can be represented as the empty case uniformly.
	Params  []TypeIndex
	Results []TypeIndex

	// cachedKey records the key a composite type was interned under, set
	// once at intern time; basic types never populate it.
	cachedKey string
}

// Fixed indices for every basic type, assigned by NewTypeRegistry in this
// order so TypeIndex comparisons against these constants never need a
// registry lookup.
const (
	I8 TypeIndex = iota
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	Bool
	String
	Void

	firstUserIndex
)

// TypeRegistry is the dense, deduplicated table of types owned by one SSA
// Function (per spec §3.1). Composite types are structurally interned:
// two struct/array/etc. Intern calls describing the same shape return the
// same TypeIndex.
type TypeRegistry struct {
	types []Type
	byKey map[string]TypeIndex
}

// NewTypeRegistry returns a registry with the fixed basic types already
// populated at their reserved low indices.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		types:  make([]Type, firstUserIndex, firstUserIndex+16),
		byKey: make(map[string]TypeIndex),
	}
	r.types[I8] = Type{Kind: KindI8}
	r.types[I16] = Type{Kind: KindI16}
	r.types[I32] = Type{Kind: KindI32}
	r.types[I64] = Type{Kind: KindI64}
	r.types[U8] = Type{Kind: KindU8}
	r.types[U16] = Type{Kind: KindU16}
	r.types[U32] = Type{Kind: KindU32}
	r.types[U64] = Type{Kind: KindU64}
	r.types[F32] = Type{Kind: KindF32}
	r.types[F64] = Type{Kind: KindF64}
	r.types[Bool] = Type{Kind: KindBool}
	r.types[String] = Type{Kind: KindString}
	r.types[Void] = Type{Kind: KindVoid}
	return r
}

// At returns the Type stored at ti. Panics on an out-of-range index, which
// indicates a bug upstream (a TypeIndex from a different registry, or one
// never Intern'd).
func (r *TypeRegistry) At(ti TypeIndex) *Type {
	return &r.types[ti]
}

// Size returns the byte size of ti's representation, used by the lowerer
// for local-slot offsets (§3.5's "summing actual sizes, not slot*8") and by
// struct field-offset assignment.
func (r *TypeRegistry) Size(ti TypeIndex) int {
	t := r.At(ti)
	switch t.Kind {
	case KindI8, KindU8, KindBool:
		return 1
	case KindI16, KindU16:
		return 2
	case KindI32, KindU32, KindF32:
		return 4
	case KindI64, KindU64, KindF64, KindPointer, KindFunction:
		return 8
	case KindString, KindSlice:
		return 16 // ptr + len
	case KindVoid:
		return 0
	case KindArray:
		return r.Size(t.Elem) * t.Len
	case KindStruct:
		if len(t.Fields) == 0 {
			return 0
		}
		last := t.Fields[len(t.Fields)-1]
		return alignUp(last.Offset+r.Size(last.Type), r.Align(ti))
	case KindEnum:
		return r.Size(t.Underlying)
	case KindTaggedUnion:
		return alignUp(4+t.MaxPayloadSize, r.Align(ti))
	case KindOptional:
		// {present: bool, value} tag-then-payload, tag padded to the
		// payload's alignment rather than packed, matching struct layout.
		return alignUp(r.Align(t.Elem), r.Align(t.Elem)) + r.Size(t.Elem)
	case KindErrorUnion:
		payload := r.Size(t.Value)
		if e := r.Size(t.Err); e > payload {
			payload = e
		}
		return alignUp(4+payload, r.Align(ti))
	default:
		panic(fmt.Sprintf("types: Size: invalid kind %d", t.Kind))
	}
}

// Align returns ti's natural (C-like) alignment requirement in bytes.
func (r *TypeRegistry) Align(ti TypeIndex) int {
	t := r.At(ti)
	switch t.Kind {
	case KindI8, KindU8, KindBool, KindVoid:
		return 1
	case KindI16, KindU16:
		return 2
	case KindI32, KindU32, KindF32:
		return 4
	case KindI64, KindU64, KindF64, KindPointer, KindFunction, KindString, KindSlice:
		return 8
	case KindArray:
		return r.Align(t.Elem)
	case KindStruct:
		max := 1
		for _, f := range t.Fields {
			if a := r.Align(f.Type); a > max {
				max = a
			}
		}
		return max
	case KindEnum:
		return r.Align(t.Underlying)
	case KindTaggedUnion:
		max := 4
		for _, vt := range t.VariantTypes {
			if a := r.Align(vt); a > max {
				max = a
			}
		}
		return max
	case KindOptional:
		if a := r.Align(t.Elem); a > 4 {
			return a
		}
		return 4
	case KindErrorUnion:
		max := 4
		if a := r.Align(t.Value); a > max {
			max = a
		}
		if a := r.Align(t.Err); a > max {
			max = a
		}
		return max
	default:
		panic(fmt.Sprintf("types: Align: invalid kind %d", t.Kind))
	}
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// IsHeapAllocated reports whether a value of this type is an ARC-managed
// pointer to a 16-byte-header heap object (§3.4), as opposed to an
// unmanaged scalar, slice header, or value-type composite. Only
// KindPointer to a KindStruct/KindEnum/KindTaggedUnion declared as a class
// (tracked by the checker, not this registry) would qualify in a fuller
// checker; at the IR level cot treats every KindPointer as ARC-managed,
// since cot has no raw/unsafe pointer type in its surface language.
func (r *TypeRegistry) IsHeapAllocated(ti TypeIndex) bool {
	return r.At(ti).Kind == KindPointer
}

func (r *TypeRegistry) intern(key string, t Type) TypeIndex {
	if ti, ok := r.byKey[key]; ok {
		return ti
	}
	t.cachedKey = key
	ti := TypeIndex(len(r.types))
	r.types = append(r.types, t)
	r.byKey[key] = ti
	return ti
}

// InternPointer returns the (deduplicated) pointer-to-elem type.
func (r *TypeRegistry) InternPointer(elem TypeIndex) TypeIndex {
	return r.intern(fmt.Sprintf("ptr(%d)", elem), Type{Kind: KindPointer, Elem: elem})
}

// InternSlice returns the (deduplicated) slice-of-elem type: a 16-byte
// {ptr, len} pair, structurally identical to STRING but for non-u8 element
// types.
func (r *TypeRegistry) InternSlice(elem TypeIndex) TypeIndex {
	return r.intern(fmt.Sprintf("slice(%d)", elem), Type{Kind: KindSlice, Elem: elem})
}

// InternArray returns the (deduplicated) fixed-length array type.
func (r *TypeRegistry) InternArray(elem TypeIndex, length int) TypeIndex {
	return r.intern(fmt.Sprintf("array(%d,%d)", elem, length), Type{Kind: KindArray, Elem: elem, Len: length})
}

// InternStruct returns the (deduplicated) struct type built from fields in
// declaration order, assigning each field's byte offset using its natural
// alignment (no user-specified packing in cot's surface language).
func (r *TypeRegistry) InternStruct(name string, fieldNames []string, fieldTypes []TypeIndex) TypeIndex {
	fields := make([]Field, len(fieldNames))
	offset := 0
	for i, ft := range fieldTypes {
		a := r.Align(ft)
		offset = alignUp(offset, a)
		fields[i] = Field{Name: fieldNames[i], Type: ft, Offset: offset}
		offset += r.Size(ft)
	}
	key := "struct:" + name
	for _, f := range fields {
		key += fmt.Sprintf(",%s@%d:%d", f.Name, f.Offset, f.Type)
	}
	return r.intern(key, Type{Kind: KindStruct, Fields: fields})
}

// InternEnum returns the (deduplicated) enum type: a fixed underlying
// integer representation plus its variant names in declaration order.
func (r *TypeRegistry) InternEnum(name string, underlying TypeIndex, variants []string) TypeIndex {
	key := fmt.Sprintf("enum:%s:%d", name, underlying)
	for _, v := range variants {
		key += "," + v
	}
	return r.intern(key, Type{Kind: KindEnum, Underlying: underlying, Variants: append([]string(nil), variants...)})
}

// InternTaggedUnion returns the (deduplicated) tagged-union type: a 4-byte
// tag followed by the largest variant's payload, all variants sharing that
// one payload slot.
func (r *TypeRegistry) InternTaggedUnion(name string, variants []string, variantTypes []TypeIndex) TypeIndex {
	max := 0
	for _, vt := range variantTypes {
		if s := r.Size(vt); s > max {
			max = s
		}
	}
	key := fmt.Sprintf("union:%s", name)
	for i, v := range variants {
		key += fmt.Sprintf(",%s:%d", v, variantTypes[i])
	}
	return r.intern(key, Type{
		Kind:           KindTaggedUnion,
		Variants:       append([]string(nil), variants...),
		VariantTypes:   append([]TypeIndex(nil), variantTypes...),
		MaxPayloadSize: max,
	})
}

// InternOptional returns the (deduplicated) optional-of-elem type.
func (r *TypeRegistry) InternOptional(elem TypeIndex) TypeIndex {
	return r.intern(fmt.Sprintf("optional(%d)", elem), Type{Kind: KindOptional, Elem: elem})
}

// InternErrorUnion returns the (deduplicated) error-union type: either a
// value of valueType or an error of errType, disambiguated by a tag.
func (r *TypeRegistry) InternErrorUnion(valueType, errType TypeIndex) TypeIndex {
	return r.intern(fmt.Sprintf("errunion(%d,%d)", valueType, errType), Type{Kind: KindErrorUnion, Value: valueType, Err: errType})
}

// InternFunction returns the (deduplicated) function type.
func (r *TypeRegistry) InternFunction(params, results []TypeIndex) TypeIndex {
	key := "fn("
	for _, p := range params {
		key += fmt.Sprintf("%d,", p)
	}
	key += ")->("
	for _, res := range results {
		key += fmt.Sprintf("%d,", res)
	}
	key += ")"
	return r.intern(key, Type{
		Kind:    KindFunction,
		Params:  append([]TypeIndex(nil), params...),
		Results: append([]TypeIndex(nil), results...),
	})
}

// String implements fmt.Stringer for diagnostics (§7 error messages embed
// type names).
func (r *TypeRegistry) String(ti TypeIndex) string {
	t := r.At(ti)
	switch t.Kind {
	case KindI8:
		return "i8"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindVoid:
		return "void"
	case KindPointer:
		return "*" + r.String(t.Elem)
	case KindSlice:
		return "[]" + r.String(t.Elem)
	case KindArray:
		return fmt.Sprintf("[%d]%s", t.Len, r.String(t.Elem))
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindTaggedUnion:
		return "union"
	case KindOptional:
		return "?" + r.String(t.Elem)
	case KindErrorUnion:
		return r.String(t.Err) + "!" + r.String(t.Value)
	case KindFunction:
		return "fn"
	default:
		panic(fmt.Sprintf("types: String: invalid kind %d", t.Kind))
	}
}
