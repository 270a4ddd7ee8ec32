package arc

import (
	"sort"

	"github.com/cot-lang/cotc/internal/ssa"
)

// DestructorTable maps each ARC-managed type name to its table index
// (§3.4: "destructor_table_index == 0 means no destructor"). Index 0 is
// always the reserved null sentinel; real destructors occupy 1..N in a
// deterministic order (sorted by type name) so repeated compiles of the
// same program produce byte-identical output.
type DestructorTable struct {
	index map[string]uint32
	funcs []string // funcs[i-1] is the function name for table index i, i>=1
}

// BuildDestructorTable scans every function in funcs, treating any
// function named "<TypeName>_deinit" as that type's destructor (§4.3),
// and assigns it a dense table index. Types with no `_deinit` function
// get index 0.
func BuildDestructorTable(funcNames []string) *DestructorTable {
	const suffix = "_deinit"
	var typeNames []string
	for _, name := range funcNames {
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			typeNames = append(typeNames, name[:len(name)-len(suffix)])
		}
	}
	sort.Strings(typeNames)

	t := &DestructorTable{index: make(map[string]uint32, len(typeNames))}
	for i, tn := range typeNames {
		t.index[tn] = uint32(i + 1)
		t.funcs = append(t.funcs, tn+suffix)
	}
	return t
}

// IndexOf returns typeName's destructor table index, or 0 (the null
// sentinel) if it has no destructor.
func (t *DestructorTable) IndexOf(typeName string) uint32 {
	return t.index[typeName]
}

// FunctionNames returns the destructor function names in table-index
// order (index 1 first), the order the Wasm element segment or the
// native dispatch table must list them in.
func (t *DestructorTable) FunctionNames() []string {
	return t.funcs
}

// EmitRetain emits a retain of ptr as a single OpRetain, which
// internal/wasmgen lowers to a call to the ARC runtime's cot_retain
// (internal/arcrt): a null check then an increment of the ref_count
// field at ptr-8 (§3.4's header layout). No retain is inlined.
// typeName is accepted but unused (cot_retain needs no type information,
// §4.4.3) so EmitRetain's signature matches EmitRelease's and both can
// be passed to arc.Reassign interchangeably.
func EmitRetain(b *ssa.Builder, ptr ssa.ValueID, typeName string) {
	b.Emit(ssa.OpRetain, 0, nil, ptr)
}

// EmitRelease emits a release of ptr, tagged with the static type name
// so link-time destructor resolution (§4.4.1's metadata_addr) knows
// which table slot a zero-refcount release should dispatch through.
func EmitRelease(b *ssa.Builder, ptr ssa.ValueID, typeName string) {
	b.Emit(ssa.OpRelease, 0, typeName, ptr)
}
