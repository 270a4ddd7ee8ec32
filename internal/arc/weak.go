package arc

import (
	"github.com/cot-lang/cotc/internal/ssa"
	"github.com/cot-lang/cotc/internal/types"
)

// Weak references are a supplemented feature: a
// non-owning reference that observes whether its target is still alive
// without itself holding a retain. cot's intrusive linked structures
// (e.g. a doubly-linked list node pointing back at its owner) need this
// to avoid a retain cycle, and spec §9's "Non-goals exclude GC, not weak
// refs" leaves room for it.
//
// A weak reference is represented as the same pointer bit pattern as a
// strong one; reading through it (LoadWeak) checks the target's
// metadata_ptr rather than its ref_count, since an object whose
// ref_count has already dropped to zero has its metadata_ptr cleared to
// 0 by cot_release (internal/arcrt); the runtime never reclaims or reuses
// that memory (cot_dealloc is a no-op). A weak read against a dead object therefore
// observes metadata_ptr == 0 and yields null instead of a dangling
// pointer, with no additional bookkeeping (no side table, no weak
// count) -- the simplest rendition that is still memory-safe.

// EmitLoadWeak emits the null-check sequence that reads through a weak
// reference: load metadata_ptr at ptr-16 (the header's first field,
// §3.4), compare against zero, and select between ptr and a null
// literal based on that comparison.
func EmitLoadWeak(b *ssa.Builder, i64, boolT types.TypeIndex, ptr ssa.ValueID) ssa.ValueID {
	metaPtr := b.Emit(ssa.OpLoad, i64, -16, ptr)
	zero := b.Emit(ssa.OpConstInt, i64, int64(0))
	alive := b.Emit(ssa.OpIcmp, boolT, ssa.IcmpNe, metaPtr, zero)
	nullV := b.Emit(ssa.OpConstInt, i64, int64(0))
	return b.Emit(ssa.OpCondSelect, i64, nil, ptr, nullV, alive)
}
