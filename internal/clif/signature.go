package clif

import "fmt"

// SignatureID is the unique ID of a Signature used to reference it from
// call/call_indirect instructions without copying the full struct into
// every instruction.
type SignatureID uint32

// String implements fmt.Stringer.
func (s SignatureID) String() string {
	return fmt.Sprintf("sig%d", s)
}

// FuncRef is a reference to a function, either defined in this module or
// imported, used as the callee operand of OpcodeCall.
type FuncRef uint32

// String implements fmt.Stringer.
func (f FuncRef) String() string {
	return fmt.Sprintf("f%d", f)
}

// ArgumentPurpose classifies an ABI parameter the way Cranelift's AbiParam
// does; the backend's calling-convention code and the frontend's vmctx
// threading both consult it.
type ArgumentPurpose byte

const (
	// ArgumentPurposeNormal is an ordinary value parameter.
	ArgumentPurposeNormal ArgumentPurpose = iota
	// ArgumentPurposeVMContext carries the pointer to the per-instance
	// runtime context (ARC allocator state, table base, etc).
	ArgumentPurposeVMContext
	// ArgumentPurposeStructReturn marks a hidden pointer parameter used to
	// return a struct too large to fit in registers.
	ArgumentPurposeStructReturn
	// ArgumentPurposeStackArgument marks a parameter that is always passed
	// on the stack regardless of register availability (varargs-style ABIs).
	ArgumentPurposeStackArgument
)

// String implements fmt.Stringer.
func (p ArgumentPurpose) String() string {
	switch p {
	case ArgumentPurposeNormal:
		return "normal"
	case ArgumentPurposeVMContext:
		return "vmctx"
	case ArgumentPurposeStructReturn:
		return "sret"
	case ArgumentPurposeStackArgument:
		return "sarg"
	default:
		return "unknown"
	}
}

// ArgumentExtension describes whether a sub-word argument must be
// sign/zero-extended by the caller or callee per the platform ABI.
type ArgumentExtension byte

const (
	ArgumentExtensionNone ArgumentExtension = iota
	ArgumentExtensionZero
	ArgumentExtensionSign
)

// CallConv identifies the calling convention a Signature is lowered with.
type CallConv byte

const (
	// CallConvSystemV is the System V AMD64 / AAPCS64 default platform
	// calling convention used for every cot-compiled function.
	CallConvSystemV CallConv = iota
	// CallConvCotBuiltin is used for calls into the hand-written ARC
	// runtime builtins (cot_alloc, cot_retain, ...), which never spill
	// arguments to the stack and take a fixed register set.
	CallConvCotBuiltin
)

// Signature represents a function signature shared by both the Wasm and
// the native backend: a dense Params/Results list of Types, alongside
// parallel purpose/extension metadata consulted by the ABI layer.
//
// Signature is referenced by SignatureID from call sites so instructions
// stay small; the owning Builder holds the authoritative map.
type Signature struct {
	ID       SignatureID
	Params   []Type
	Results  []Type
	ParamPurposes  []ArgumentPurpose
	ResultPurposes []ArgumentPurpose
	ParamExtension []ArgumentExtension
	CC             CallConv
}

// String implements fmt.Stringer.
func (s *Signature) String() string {
	return fmt.Sprintf("%s: %v -> %v", s.ID, s.Params, s.Results)
}

// Purpose returns the ArgumentPurpose of the i-th parameter, defaulting to
// ArgumentPurposeNormal when the metadata slice wasn't populated.
func (s *Signature) Purpose(i int) ArgumentPurpose {
	if i < len(s.ParamPurposes) {
		return s.ParamPurposes[i]
	}
	return ArgumentPurposeNormal
}
