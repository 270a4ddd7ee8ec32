package ssa

// Op tags a Value's operation. Spec §3.1 describes "~150 variants:
// constants, arithmetic, memory, calls, phi, ARC-specific, Wasm-specific
// lowered variants"; this is the subset the lowerer, ARC insertion, and
// the Wasm pass pipeline actually produce and consume for the language
// surface spec §8's scenarios exercise. New variants are added the same
// way: one Op, one entry in String, one case in whichever pass rewrites
// or consumes it.
type Op int

const (
	OpInvalid Op = iota

	// --- constants & parameters ---
	OpConstInt    // Aux: int64
	OpConstBool   // Aux: int64, 0 or 1
	OpConstString // Aux: string (pre-rewritegeneric form; §4.2 step 1 target)
	OpParam       // Aux: param index

	// --- arithmetic & comparison (generic, target-independent) ---
	OpAdd
	OpSub
	OpMul
	OpDivS
	OpDivU
	OpRemS
	OpRemU
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShrS
	OpShrU
	OpNeg
	OpNot
	OpIcmp // Aux: IcmpCond

	// --- control flow ---
	OpJump    // Aux: []BranchTarget with one entry
	OpBrIf    // Args[0]=cond; Aux: []BranchTarget{then,else}
	OpBrTable // Args[0]=index; Aux: []BranchTarget, one per index value in order; the last also serves as default
	OpReturn  // Args: return values
	OpPhi     // block-parameter value; no Args of its own (see Block.Params)
	OpCall        // Aux: callee name
	OpCallIndirect // Args[0]=table index; Aux: signature + table slot

	// --- memory & aggregates ---
	OpLocalAddr   // Aux: local slot index
	OpGlobalAddr  // Aux: global index
	OpMetadataAddr // Aux: type name, resolved at link time (§4.4.1)
	OpLiteralAddr // Aux: literal pool index, resolved to a data offset at link time
	OpLoad        // Args[0]=addr; Aux: offset
	OpStore       // Args[0]=addr,[1]=value; Aux: offset
	OpSliceMake   // Args[0]=ptr,[1]=len
	OpSlicePtr    // Args[0]=slice
	OpSliceLen    // Args[0]=slice
	OpStringMake  // Args[0]=ptr,[1]=len
	OpStringConcat // Args[0..3]=ptr1,len1,ptr2,len2
	OpStringEq    // Args[0..3]=ptr1,len1,ptr2,len2
	OpStructMake  // Args: one per field, in declaration order
	OpFieldAddr   // Args[0]=base addr; Aux: byte offset
	OpCondSelect  // Args[0]=then,[1]=else,[2]=cond

	// --- ARC ---
	OpNew      // Aux: type name; allocates + initializes header (§3.4)
	OpRetain   // Args[0]=ptr
	OpRelease  // Args[0]=ptr; Aux: type name (destructor table lookup)

	// --- Wasm-specific lowered variants (produced by lower_wasm, §4.2 step 3) ---
	OpWasmI64Add
	OpWasmI32WrapI64
	OpWasmI64ExtendI32S
	OpWasmI64ExtendI32U

	opCount
)

var opNames = [...]string{
	OpInvalid:            "invalid",
	OpConstInt:           "const_int",
	OpConstBool:          "const_bool",
	OpConstString:        "const_string",
	OpParam:              "param",
	OpAdd:                "add",
	OpSub:                "sub",
	OpMul:                "mul",
	OpDivS:               "div_s",
	OpDivU:               "div_u",
	OpRemS:                "rem_s",
	OpRemU:               "rem_u",
	OpAnd:                "and",
	OpOr:                 "or",
	OpXor:                "xor",
	OpShl:                "shl",
	OpShrS:               "shr_s",
	OpShrU:               "shr_u",
	OpNeg:                "neg",
	OpNot:                "not",
	OpIcmp:               "icmp",
	OpJump:               "jump",
	OpBrIf:               "brif",
	OpBrTable:            "br_table",
	OpReturn:             "return",
	OpPhi:                "phi",
	OpCall:               "call",
	OpCallIndirect:       "call_indirect",
	OpLocalAddr:          "local_addr",
	OpGlobalAddr:         "global_addr",
	OpMetadataAddr:       "metadata_addr",
	OpLiteralAddr:        "literal_addr",
	OpLoad:               "load",
	OpStore:              "store",
	OpSliceMake:          "slice_make",
	OpSlicePtr:           "slice_ptr",
	OpSliceLen:           "slice_len",
	OpStringMake:         "string_make",
	OpStringConcat:       "string_concat",
	OpStringEq:           "string_eq",
	OpStructMake:         "struct_make",
	OpFieldAddr:          "field_addr",
	OpCondSelect:         "cond_select",
	OpNew:                "new",
	OpRetain:             "retain",
	OpRelease:            "release",
	OpWasmI64Add:         "wasm_i64_add",
	OpWasmI32WrapI64:     "wasm_i32_wrap_i64",
	OpWasmI64ExtendI32S:  "wasm_i64_extend_i32_s",
	OpWasmI64ExtendI32U:  "wasm_i64_extend_i32_u",
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "unknown_op"
}

// IsTerminator reports whether o ends a block.
func (o Op) IsTerminator() bool {
	switch o {
	case OpJump, OpBrIf, OpBrTable, OpReturn:
		return true
	default:
		return false
	}
}

// IcmpCond is the Aux payload of OpIcmp, mirroring clif's integer
// comparison condition set (§3.2) since both IRs need the same six
// orderings plus equality/inequality.
type IcmpCond int

const (
	IcmpEq IcmpCond = iota
	IcmpNe
	IcmpLtS
	IcmpLeS
	IcmpGtS
	IcmpGeS
	IcmpLtU
	IcmpLeU
	IcmpGtU
	IcmpGeU
)
