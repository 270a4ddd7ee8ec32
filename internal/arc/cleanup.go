// Package arc implements CleanupStack-style ARC insertion (spec §4.3),
// modelled on Swift SILGen's cleanup stack: every lexical scope pushes
// cleanups, and scope exit -- however it happens, fallthrough, break,
// continue, return, or a propagated error -- pops them in LIFO order,
// emitting a release for each. defer is the same mechanism: a deferred
// block is just another cleanup kind on the same stack, which is why
// both always run in the right order without two separate code paths.
package arc

import "github.com/cot-lang/cotc/internal/ssa"

// CleanupKind distinguishes what popping a given cleanup entry does.
type CleanupKind int

const (
	// CleanupRelease releases an ARC-managed pointer value.
	CleanupRelease CleanupKind = iota
	// CleanupDefer runs a deferred statement's already-lowered body.
	CleanupDefer
)

// Cleanup is one entry on the stack.
type Cleanup struct {
	Kind CleanupKind

	// Ptr is the value to release, set when Kind == CleanupRelease.
	Ptr ssa.ValueID
	// TypeName names the ARC-managed type, used to resolve the
	// destructor table index at link time (§3.4).
	TypeName string

	// Emit runs a deferred statement's lowered body, set when Kind ==
	// CleanupDefer. It is supplied by whoever calls PushDefer; this
	// package only needs to know *when* to call it, not how.
	// internal/lower does not lower defer statements and never pushes a
	// CleanupDefer entry.
	Emit func()
}

// Stack is a LIFO cleanup stack scoped to one function's lowering.
// internal/lower takes a marker at each block's entry and unwinds back
// to it on fallthrough, and unwinds the whole stack on return, like
// SILGen's scope objects. The lowered AST has no break or continue.
type Stack struct {
	entries []Cleanup
	emit    func(b *ssa.Builder, ptr ssa.ValueID, typeName string)
	b       *ssa.Builder
}

// NewStack returns an empty Stack that emits releases into b via emit.
func NewStack(b *ssa.Builder, emit func(b *ssa.Builder, ptr ssa.ValueID, typeName string)) *Stack {
	return &Stack{b: b, emit: emit}
}

// Mark returns the current depth, to be passed to UnwindTo at scope
// exit.
func (s *Stack) Mark() int { return len(s.entries) }

// PushRelease registers a release-on-scope-exit for ptr, an ARC-managed
// value of type typeName.
func (s *Stack) PushRelease(ptr ssa.ValueID, typeName string) {
	s.entries = append(s.entries, Cleanup{Kind: CleanupRelease, Ptr: ptr, TypeName: typeName})
}

// PushDefer registers a deferred statement, run (via emit) at scope
// exit in the same LIFO order as releases -- unifying defer and ARC
// release is exactly the point of this data structure (§9 "Cleanup
// stack = defer + release").
func (s *Stack) PushDefer(emit func()) {
	s.entries = append(s.entries, Cleanup{Kind: CleanupDefer, Emit: emit})
}

// UnwindTo pops every cleanup above mark, running each one, in reverse
// (LIFO) order, outermost cleanups running last. internal/lower calls it
// with a block's own mark on normal fallthrough and with mark 0 on
// return.
func (s *Stack) UnwindTo(mark int) {
	for i := len(s.entries) - 1; i >= mark; i-- {
		c := s.entries[i]
		switch c.Kind {
		case CleanupRelease:
			s.emit(s.b, c.Ptr, c.TypeName)
		case CleanupDefer:
			c.Emit()
		}
	}
	s.entries = s.entries[:mark]
}

// Reassign emits the retain-then-release-then-store sequence §4.3
// requires for `x = y`: retain(y); release(old_x); store(y, x). Order
// matters when x and y alias the same object -- retaining first keeps
// the refcount from hitting zero on self-assignment.
func Reassign(b *ssa.Builder, retain, release func(*ssa.Builder, ssa.ValueID, string), newVal, oldVal ssa.ValueID, typeName string, store func()) {
	retain(b, newVal, typeName)
	release(b, oldVal, typeName)
	store()
}
