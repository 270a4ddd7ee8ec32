package testcases

import (
	"math"

	"github.com/cot-lang/cotc/internal/leb128"
	"github.com/cot-lang/cotc/internal/wasmgen"
)

const ExportName = "f"

var (
	Empty     = TestCase{Name: "empty", Module: SingleFunctionModule(vv, []byte{wasmgen.OpcodeEnd}, nil)}
	Constants = TestCase{Name: "consts", Module: SingleFunctionModule(wasmgen.FunctionType{
		Results: []wasmgen.ValueType{i32, i64, f32, f64},
	}, []byte{
		wasmgen.OpcodeI32Const, 1,
		wasmgen.OpcodeI64Const, 2,
		wasmgen.OpcodeF32Const,
		byte(math.Float32bits(32.0)),
		byte(math.Float32bits(32.0) >> 8),
		byte(math.Float32bits(32.0) >> 16),
		byte(math.Float32bits(32.0) >> 24),
		wasmgen.OpcodeF64Const,
		byte(math.Float64bits(64.0)),
		byte(math.Float64bits(64.0) >> 8),
		byte(math.Float64bits(64.0) >> 16),
		byte(math.Float64bits(64.0) >> 24),
		byte(math.Float64bits(64.0) >> 32),
		byte(math.Float64bits(64.0) >> 40),
		byte(math.Float64bits(64.0) >> 48),
		byte(math.Float64bits(64.0) >> 56),
		wasmgen.OpcodeEnd,
	}, nil)}
	Unreachable        = TestCase{Name: "unreachable", Module: SingleFunctionModule(vv, []byte{wasmgen.OpcodeUnreachable, wasmgen.OpcodeEnd}, nil)}
	OnlyReturn         = TestCase{Name: "only_return", Module: SingleFunctionModule(vv, []byte{wasmgen.OpcodeReturn, wasmgen.OpcodeEnd}, nil)}
	Params             = TestCase{Name: "params", Module: SingleFunctionModule(i32f32f64_v, []byte{wasmgen.OpcodeReturn, wasmgen.OpcodeEnd}, nil)}
	AddSubParamsReturn = TestCase{
		Name: "add_sub_params_return",
		Module: SingleFunctionModule(i32i32_i32, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32Add,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Sub,
			wasmgen.OpcodeEnd,
		}, nil),
	}
	Locals       = TestCase{Name: "locals", Module: SingleFunctionModule(vv, []byte{wasmgen.OpcodeEnd}, []wasmgen.ValueType{i32, i64, f32, f64})}
	LocalsParams = TestCase{
		Name: "locals_params",
		Module: SingleFunctionModule(
			i64f32f64_i64f32f64,
			[]byte{
				wasmgen.OpcodeLocalGet, 0,
				wasmgen.OpcodeLocalGet, 0,
				wasmgen.OpcodeI64Add,
				wasmgen.OpcodeLocalGet, 0,
				wasmgen.OpcodeI64Sub,

				wasmgen.OpcodeLocalGet, 1,
				wasmgen.OpcodeLocalGet, 1,
				wasmgen.OpcodeF32Add,
				wasmgen.OpcodeLocalGet, 1,
				wasmgen.OpcodeF32Sub,
				wasmgen.OpcodeLocalGet, 1,
				wasmgen.OpcodeF32Mul,
				wasmgen.OpcodeLocalGet, 1,
				wasmgen.OpcodeF32Div,
				wasmgen.OpcodeLocalGet, 1,
				wasmgen.OpcodeF32Max,
				wasmgen.OpcodeLocalGet, 1,
				wasmgen.OpcodeF32Min,

				wasmgen.OpcodeLocalGet, 2,
				wasmgen.OpcodeLocalGet, 2,
				wasmgen.OpcodeF64Add,
				wasmgen.OpcodeLocalGet, 2,
				wasmgen.OpcodeF64Sub,
				wasmgen.OpcodeLocalGet, 2,
				wasmgen.OpcodeF64Mul,
				wasmgen.OpcodeLocalGet, 2,
				wasmgen.OpcodeF64Div,
				wasmgen.OpcodeLocalGet, 2,
				wasmgen.OpcodeF64Max,
				wasmgen.OpcodeLocalGet, 2,
				wasmgen.OpcodeF64Min,

				wasmgen.OpcodeEnd,
			}, []wasmgen.ValueType{i32, i64, f32, f64},
		),
	}
	LocalParamReturn = TestCase{
		Name: "local_param_return",
		Module: SingleFunctionModule(i32_i32i32, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{i32}),
	}
	LocalParamTeeReturn = TestCase{
		Name: "local_param_tee_return",
		Module: SingleFunctionModule(i32_i32i32, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalTee, 1,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{i32}),
	}
	SwapParamAndReturn = TestCase{
		Name: "swap_param_and_return",
		Module: SingleFunctionModule(i32i32_i32i32, []byte{
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeEnd,
		}, nil),
	}
	Selects = TestCase{
		Name: "swap_param_and_return",
		Module: SingleFunctionModule(i32i32i64i64f32f32f64f64_i32i64, []byte{
			// i32 select.
			wasmgen.OpcodeLocalGet, 0, // x
			wasmgen.OpcodeLocalGet, 1, // y
			// cond
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64Eq,
			wasmgen.OpcodeSelect,

			// i64 select.
			wasmgen.OpcodeLocalGet, 2, // x
			wasmgen.OpcodeLocalGet, 3, // y
			wasmgen.OpcodeLocalGet, 1, // cond
			wasmgen.OpcodeTypedSelect, 1, wasmgen.ValueTypeI64,

			// f32 select.
			wasmgen.OpcodeLocalGet, 4, // x
			wasmgen.OpcodeLocalGet, 5, // y
			// cond
			wasmgen.OpcodeLocalGet, 6,
			wasmgen.OpcodeLocalGet, 7,
			wasmgen.OpcodeF64Gt,
			wasmgen.OpcodeTypedSelect, 1, wasmgen.ValueTypeF32,

			// f64 select.
			wasmgen.OpcodeLocalGet, 6, // x
			wasmgen.OpcodeLocalGet, 7, // y
			// cond
			wasmgen.OpcodeLocalGet, 4,
			wasmgen.OpcodeLocalGet, 5,
			wasmgen.OpcodeF32Ne,
			wasmgen.OpcodeTypedSelect, 1, wasmgen.ValueTypeF64,

			wasmgen.OpcodeEnd,
		}, nil),
	}
	SwapParamsAndReturn = TestCase{
		Name: "swap_params_and_return",
		Module: SingleFunctionModule(i32i32_i32i32, []byte{
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalSet, 1,
			wasmgen.OpcodeLocalSet, 0,
			wasmgen.OpcodeBlock, blockSignature_vv,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeEnd,
		}, nil),
	}
	BlockBr = TestCase{
		Name: "block_br",
		Module: SingleFunctionModule(vv, []byte{
			wasmgen.OpcodeBlock, 0,
			wasmgen.OpcodeBr, 0,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{i32, i64, f32, f64}),
	}
	BlockBrIf = TestCase{
		Name: "block_br_if",
		Module: SingleFunctionModule(vv, []byte{
			wasmgen.OpcodeBlock, 0,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeBrIf, 0,
			wasmgen.OpcodeUnreachable,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{i32}),
	}
	LoopBr = TestCase{
		Name: "loop_br",
		Module: SingleFunctionModule(vv, []byte{
			wasmgen.OpcodeLoop, 0,
			wasmgen.OpcodeBr, 0,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{}),
	}
	LoopBrWithParamResults = TestCase{
		Name: "loop_with_param_results",
		Module: SingleFunctionModule(i32i32_i32, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeLoop, 0,
			wasmgen.OpcodeI32Const, 1,
			wasmgen.OpcodeBrIf, 0,
			wasmgen.OpcodeDrop,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{}),
	}
	LoopBrIf = TestCase{
		Name: "loop_br_if",
		Module: SingleFunctionModule(vv, []byte{
			wasmgen.OpcodeLoop, 0,
			wasmgen.OpcodeI32Const, 1,
			wasmgen.OpcodeBrIf, 0,
			wasmgen.OpcodeReturn,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{}),
	}
	BlockBlockBr = TestCase{
		Name: "block_block_br",
		Module: SingleFunctionModule(vv, []byte{
			wasmgen.OpcodeBlock, 0,
			wasmgen.OpcodeBlock, 0,
			wasmgen.OpcodeBr, 1,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{i32, i64, f32, f64}),
	}
	IfWithoutElse = TestCase{
		Name: "if_without_else",
		Module: SingleFunctionModule(vv, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeIf, 0,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{i32}),
	}
	IfElse = TestCase{
		Name: "if_else",
		Module: SingleFunctionModule(vv, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeIf, 0,
			wasmgen.OpcodeElse,
			wasmgen.OpcodeBr, 1,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{i32}),
	}
	SinglePredecessorLocalRefs = TestCase{
		Name: "single_predecessor_local_refs",
		Module: &wasmgen.Module{
			TypeSection:     []wasmgen.FunctionType{vv, v_i32},
			FunctionSection: []wasmgen.Index{1},
			CodeSection: []wasmgen.Code{{
				LocalTypes: []wasmgen.ValueType{i32, i32, i32},
				Body: []byte{
					wasmgen.OpcodeLocalGet, 0,
					wasmgen.OpcodeIf, 0,
					// This is defined in the first block which is the sole predecessor of If.
					wasmgen.OpcodeLocalGet, 2,
					wasmgen.OpcodeReturn,
					wasmgen.OpcodeElse,
					wasmgen.OpcodeEnd,
					// This is defined in the first block which is the sole predecessor of this block.
					// Note that If block will never reach here because it's returning early.
					wasmgen.OpcodeLocalGet, 0,
					wasmgen.OpcodeEnd,
				},
			}},
		},
	}
	MultiPredecessorLocalRef = TestCase{
		Name: "multi_predecessor_local_ref",
		Module: SingleFunctionModule(i32i32_i32, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeIf, blockSignature_vv,
			// Set the first param to the local.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalSet, 2,
			wasmgen.OpcodeElse,
			// Set the second param to the local.
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeLocalSet, 2,
			wasmgen.OpcodeEnd,

			// Return the local as a result which has multiple definitions in predecessors (Then and Else).
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{i32}),
	}
	ReferenceValueFromUnsealedBlock = TestCase{
		Name: "reference_value_from_unsealed_block",
		Module: SingleFunctionModule(i32_i32, []byte{
			wasmgen.OpcodeLoop, blockSignature_vv,
			// Loop will not be sealed until we reach the end,
			// so this will result in referencing the unsealed definition search.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeReturn,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{i32}),
	}
	ReferenceValueFromUnsealedBlock2 = TestCase{
		Name: "reference_value_from_unsealed_block2",
		Module: SingleFunctionModule(i32_i32, []byte{
			wasmgen.OpcodeLoop, blockSignature_vv,
			wasmgen.OpcodeBlock, blockSignature_vv,

			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeBrIf, 1,
			wasmgen.OpcodeEnd,

			wasmgen.OpcodeEnd,
			wasmgen.OpcodeI32Const, 0,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{}),
	}
	ReferenceValueFromUnsealedBlock3 = TestCase{
		Name: "reference_value_from_unsealed_block3",
		Module: SingleFunctionModule(i32_v, []byte{
			wasmgen.OpcodeLoop, blockSignature_vv,
			wasmgen.OpcodeBlock, blockSignature_vv,

			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeBrIf, 2,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeI32Const, 1,
			wasmgen.OpcodeLocalSet, 0,
			wasmgen.OpcodeBr, 0,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{}),
	}
	Call = TestCase{
		Name: "call",
		Module: &wasmgen.Module{
			TypeSection:     []wasmgen.FunctionType{v_i32i32, v_i32, i32i32_i32, i32_i32i32},
			FunctionSection: []wasmgen.Index{0, 1, 2, 3},
			CodeSection: []wasmgen.Code{
				{Body: []byte{
					// Call v_i32.
					wasmgen.OpcodeCall, 1,
					// Call i32i32_i32.
					wasmgen.OpcodeI32Const, 5,
					wasmgen.OpcodeCall, 2,
					// Call i32_i32i32.
					wasmgen.OpcodeCall, 3,
					wasmgen.OpcodeEnd,
				}},
				// v_i32: return 100.
				{Body: []byte{wasmgen.OpcodeI32Const, 40, wasmgen.OpcodeEnd}},
				// i32i32_i32: adds.
				{Body: []byte{wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeI32Add, wasmgen.OpcodeEnd}},
				// i32_i32i32: duplicates.
				{Body: []byte{wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeEnd}},
			},
			ExportSection: []wasmgen.Export{{Name: ExportName, Index: 0, Type: wasmgen.ExternTypeFunc}},
		},
	}
	ManyMiddleValues = TestCase{
		Name: "many_middle_values",
		Module: SingleFunctionModule(wasmgen.FunctionType{
			Params:  []wasmgen.ValueType{i32, f32},
			Results: []wasmgen.ValueType{i32, f32},
		}, []byte{
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 1, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 2, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 3, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 4, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 5, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 6, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 7, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 8, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 9, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 10, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 11, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 12, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 13, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 14, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 15, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 16, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 17, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 18, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 19, wasmgen.OpcodeI32Mul,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 20, wasmgen.OpcodeI32Mul,

			wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add,
			wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add,
			wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add,
			wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add, wasmgen.OpcodeI32Add,

			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x80, 0x3f, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0, 0x40, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x40, 0x40, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x80, 0x40, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0xa0, 0x40, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0xc0, 0x40, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0xe0, 0x40, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x10, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x20, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x30, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x40, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x50, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x60, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x70, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x80, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x88, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x90, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0x98, 0x41, wasmgen.OpcodeF32Mul,
			wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeF32Const, 0, 0, 0xa0, 0x41, wasmgen.OpcodeF32Mul,

			wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add,
			wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add,
			wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add,
			wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add, wasmgen.OpcodeF32Add,

			wasmgen.OpcodeEnd,
		}, nil),
	}
	CallManyParams = TestCase{
		Name: "call_many_params",
		Module: &wasmgen.Module{
			TypeSection: []wasmgen.FunctionType{
				{Params: []wasmgen.ValueType{i32, i64, f32, f64}},
				{
					Params: []wasmgen.ValueType{
						i32, i64, f32, f64, i32, i64, f32, f64,
						i32, i64, f32, f64, i32, i64, f32, f64,
						i32, i64, f32, f64, i32, i64, f32, f64,
						i32, i64, f32, f64, i32, i64, f32, f64,
						i32, i64, f32, f64, i32, i64, f32, f64,
					},
				},
			},
			FunctionSection: []wasmgen.Index{0, 1},
			CodeSection: []wasmgen.Code{
				{
					Body: []byte{
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeCall, 1,
						wasmgen.OpcodeEnd,
					},
				},
				{Body: []byte{wasmgen.OpcodeEnd}},
			},
		},
	}
	CallManyReturns = TestCase{
		Name: "call_many_returns",
		Module: &wasmgen.Module{
			TypeSection: []wasmgen.FunctionType{
				{
					Params: []wasmgen.ValueType{i32, i64, f32, f64},
					Results: []wasmgen.ValueType{
						i32, i64, f32, f64, i32, i64, f32, f64,
						i32, i64, f32, f64, i32, i64, f32, f64,
						i32, i64, f32, f64, i32, i64, f32, f64,
						i32, i64, f32, f64, i32, i64, f32, f64,
						i32, i64, f32, f64, i32, i64, f32, f64,
					},
				},
			},
			FunctionSection: []wasmgen.Index{0, 0},
			CodeSection: []wasmgen.Code{
				{
					Body: []byte{
						wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
						wasmgen.OpcodeCall, 1,
						wasmgen.OpcodeEnd,
					},
				},
				{Body: []byte{
					wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
					wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
					wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
					wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
					wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
					wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
					wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
					wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
					wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
					wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
					wasmgen.OpcodeEnd,
				}},
			},
		},
	}
	ManyParamsSmallResults = TestCase{
		Name: "many_params_small_results",
		Module: SingleFunctionModule(wasmgen.FunctionType{
			Params: []wasmgen.ValueType{
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
			},
			Results: []wasmgen.ValueType{
				i32, i64, f32, f64,
			},
		}, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 9,
			wasmgen.OpcodeLocalGet, 18,
			wasmgen.OpcodeLocalGet, 27,
			wasmgen.OpcodeEnd,
		}, nil),
	}
	SmallParamsManyResults = TestCase{
		Name: "small_params_many_results",
		Module: SingleFunctionModule(wasmgen.FunctionType{
			Params: []wasmgen.ValueType{i32, i64, f32, f64},
			Results: []wasmgen.ValueType{
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
			},
		}, []byte{
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3, wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3, wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3, wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3, wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3, wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeEnd,
		}, nil),
	}
	ManyParamsManyResults = TestCase{
		Name: "many_params_many_results",
		Module: SingleFunctionModule(wasmgen.FunctionType{
			Params: []wasmgen.ValueType{
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
				i32, i64, f32, f64, i32, i64, f32, f64,
			},
			Results: []wasmgen.ValueType{
				f64, f32, i64, i32, f64, f32, i64, i32,
				f64, f32, i64, i32, f64, f32, i64, i32,
				f64, f32, i64, i32, f64, f32, i64, i32,
				f64, f32, i64, i32, f64, f32, i64, i32,
				f64, f32, i64, i32, f64, f32, i64, i32,
			},
		}, []byte{
			wasmgen.OpcodeLocalGet, 39, wasmgen.OpcodeLocalGet, 38, wasmgen.OpcodeLocalGet, 37, wasmgen.OpcodeLocalGet, 36,
			wasmgen.OpcodeLocalGet, 35, wasmgen.OpcodeLocalGet, 34, wasmgen.OpcodeLocalGet, 33, wasmgen.OpcodeLocalGet, 32,
			wasmgen.OpcodeLocalGet, 31, wasmgen.OpcodeLocalGet, 30, wasmgen.OpcodeLocalGet, 29, wasmgen.OpcodeLocalGet, 28,
			wasmgen.OpcodeLocalGet, 27, wasmgen.OpcodeLocalGet, 26, wasmgen.OpcodeLocalGet, 25, wasmgen.OpcodeLocalGet, 24,
			wasmgen.OpcodeLocalGet, 23, wasmgen.OpcodeLocalGet, 22, wasmgen.OpcodeLocalGet, 21, wasmgen.OpcodeLocalGet, 20,
			wasmgen.OpcodeLocalGet, 19, wasmgen.OpcodeLocalGet, 18, wasmgen.OpcodeLocalGet, 17, wasmgen.OpcodeLocalGet, 16,
			wasmgen.OpcodeLocalGet, 15, wasmgen.OpcodeLocalGet, 14, wasmgen.OpcodeLocalGet, 13, wasmgen.OpcodeLocalGet, 12,
			wasmgen.OpcodeLocalGet, 11, wasmgen.OpcodeLocalGet, 10, wasmgen.OpcodeLocalGet, 9, wasmgen.OpcodeLocalGet, 8,
			wasmgen.OpcodeLocalGet, 7, wasmgen.OpcodeLocalGet, 6, wasmgen.OpcodeLocalGet, 5, wasmgen.OpcodeLocalGet, 4,
			wasmgen.OpcodeLocalGet, 3, wasmgen.OpcodeLocalGet, 2, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeEnd,
		}, nil),
	}
	IntegerComparisons = TestCase{
		Name: "integer_comparisons",
		Module: SingleFunctionModule(wasmgen.FunctionType{
			Params:  []wasmgen.ValueType{i32, i32, i64, i64},
			Results: []wasmgen.ValueType{i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32},
		}, []byte{
			// eq.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32Eq,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64Eq,
			// neq.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32Ne,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64Ne,
			// LtS.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32LtS,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64LtS,
			// LtU.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32LtU,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64LtU,
			// GtS.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32GtS,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64GtS,
			// GtU.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32GtU,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64GtU,
			// LeS.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32LeS,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64LeS,
			// LeU.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32LeU,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64LeU,
			// GeS.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32GeS,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64GeS,
			// GeU.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32GeU,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64GeU,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{}),
	}
	IntegerShift = TestCase{
		Name: "integer_shift",
		Module: SingleFunctionModule(wasmgen.FunctionType{
			Params:  []wasmgen.ValueType{i32, i32, i64, i64},
			Results: []wasmgen.ValueType{i32, i32, i64, i64, i32, i32, i64, i64, i32, i32, i64, i64},
		}, []byte{
			// logical left.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32Shl,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Const, 31,
			wasmgen.OpcodeI32Shl,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64Shl,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeI64Const, 32,
			wasmgen.OpcodeI64Shl,
			// logical right.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32ShrU,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Const, 31,
			wasmgen.OpcodeI32ShrU,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64ShrU,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeI64Const, 32,
			wasmgen.OpcodeI64ShrU,
			// arithmetic right.
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI32ShrS,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Const, 31,
			wasmgen.OpcodeI32ShrS,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeI64ShrS,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeI64Const, 32,
			wasmgen.OpcodeI64ShrS,
			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{}),
	}
	IntegerExtensions = TestCase{
		Name: "integer_extensions",
		Module: SingleFunctionModule(wasmgen.FunctionType{
			Params:  []wasmgen.ValueType{i32, i64},
			Results: []wasmgen.ValueType{i64, i64, i64, i64, i64, i32, i32},
		}, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI64ExtendI32S,

			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI64ExtendI32U,

			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI64Extend8S,

			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI64Extend16S,

			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI64Extend32S,

			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Extend8S,

			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Extend16S,

			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{}),
	}
	IntegerBitCounts = TestCase{
		Name: "integer_bit_counts",
		Module: SingleFunctionModule(wasmgen.FunctionType{
			Params:  []wasmgen.ValueType{i32, i64},
			Results: []wasmgen.ValueType{i32, i32, i64, i64},
		}, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Clz,

			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Ctz,

			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI64Clz,

			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeI64Ctz,

			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{}),
	}
	FloatComparisons = TestCase{
		Name: "float_comparisons",
		Module: SingleFunctionModule(wasmgen.FunctionType{
			Params:  []wasmgen.ValueType{f32, f32, f64, f64},
			Results: []wasmgen.ValueType{i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32},
		}, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeF32Eq,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeF32Ne,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeF32Lt,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeF32Gt,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeF32Le,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeLocalGet, 1,
			wasmgen.OpcodeF32Ge,

			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeF64Eq,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeF64Ne,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeF64Lt,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeF64Gt,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeF64Le,
			wasmgen.OpcodeLocalGet, 2,
			wasmgen.OpcodeLocalGet, 3,
			wasmgen.OpcodeF64Ge,

			wasmgen.OpcodeEnd,
		}, []wasmgen.ValueType{}),
	}
	FibonacciRecursive = TestCase{
		Name: "recursive_fibonacci",
		Module: SingleFunctionModule(i32_i32, []byte{
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Const, 2,
			wasmgen.OpcodeI32LtS,
			wasmgen.OpcodeIf, blockSignature_vv,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeReturn,
			wasmgen.OpcodeEnd,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Const, 1,
			wasmgen.OpcodeI32Sub,
			wasmgen.OpcodeCall, 0,
			wasmgen.OpcodeLocalGet, 0,
			wasmgen.OpcodeI32Const, 2,
			wasmgen.OpcodeI32Sub,
			wasmgen.OpcodeCall, 0,
			wasmgen.OpcodeI32Add,
			wasmgen.OpcodeEnd,
		}, nil),
	}
	ImportedFunctionCall = TestCase{
		Name: "imported_function_call",
		Imported: &wasmgen.Module{
			ExportSection:   []wasmgen.Export{{Name: "i32_i32", Type: wasmgen.ExternTypeFunc}},
			TypeSection:     []wasmgen.FunctionType{i32_i32},
			FunctionSection: []wasmgen.Index{0},
			CodeSection: []wasmgen.Code{{Body: []byte{
				wasmgen.OpcodeLocalGet, 0,
				wasmgen.OpcodeLocalGet, 0,
				wasmgen.OpcodeI32Mul,
				wasmgen.OpcodeEnd,
			}}},
			NameSection: &wasmgen.NameSection{ModuleName: "env"},
		},
		Module: &wasmgen.Module{
			ImportFunctionCount: 1,
			TypeSection:         []wasmgen.FunctionType{i32_i32},
			ImportSection:       []wasmgen.Import{{Type: wasmgen.ExternTypeFunc, Module: "env", Name: "i32_i32"}},
			FunctionSection:     []wasmgen.Index{0},
			ExportSection:       []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 1}},
			CodeSection: []wasmgen.Code{{Body: []byte{
				wasmgen.OpcodeLocalGet, 0,
				wasmgen.OpcodeCall, 0,
				wasmgen.OpcodeEnd,
			}}},
		},
	}

	MemoryStoreBasic = TestCase{
		Name: "memory_load_basic",
		Module: &wasmgen.Module{
			TypeSection:     []wasmgen.FunctionType{{Params: []wasmgen.ValueType{i32, i32}, Results: []wasmgen.ValueType{i32}}},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
			MemorySection:   &wasmgen.Memory{Min: 1},
			FunctionSection: []wasmgen.Index{0},
			CodeSection: []wasmgen.Code{{Body: []byte{
				wasmgen.OpcodeLocalGet, 0, // offset
				wasmgen.OpcodeLocalGet, 1, // value
				wasmgen.OpcodeI32Store, 0x2, 0x0, // alignment=2 (natural alignment) staticOffset=0
				// Read back.
				wasmgen.OpcodeLocalGet, 0, // offset
				wasmgen.OpcodeI32Load, 0x2, 0x0, // alignment=2 (natural alignment) staticOffset=0
				wasmgen.OpcodeEnd,
			}}},
		},
	}

	MemoryStores = TestCase{
		Name: "memory_load_basic",
		Module: &wasmgen.Module{
			TypeSection:     []wasmgen.FunctionType{{Params: []wasmgen.ValueType{i32, i64, f32, f64}}},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
			MemorySection:   &wasmgen.Memory{Min: 1},
			FunctionSection: []wasmgen.Index{0},
			CodeSection: []wasmgen.Code{{Body: []byte{
				wasmgen.OpcodeI32Const, 0, // offset
				wasmgen.OpcodeLocalGet, 0, // value
				wasmgen.OpcodeI32Store, 0x2, 0x0,

				wasmgen.OpcodeI32Const, 8, // offset
				wasmgen.OpcodeLocalGet, 1, // value
				wasmgen.OpcodeI64Store, 0x3, 0x0,

				wasmgen.OpcodeI32Const, 16, // offset
				wasmgen.OpcodeLocalGet, 2, // value
				wasmgen.OpcodeF32Store, 0x2, 0x0,

				wasmgen.OpcodeI32Const, 24, // offset
				wasmgen.OpcodeLocalGet, 3, // value
				wasmgen.OpcodeF64Store, 0x3, 0x0,

				wasmgen.OpcodeI32Const, 32,
				wasmgen.OpcodeLocalGet, 0, // value
				wasmgen.OpcodeI32Store8, 0x0, 0,

				wasmgen.OpcodeI32Const, 40,
				wasmgen.OpcodeLocalGet, 0, // value
				wasmgen.OpcodeI32Store16, 0x1, 0,

				wasmgen.OpcodeI32Const, 48,
				wasmgen.OpcodeLocalGet, 1, // value
				wasmgen.OpcodeI64Store8, 0x0, 0,

				wasmgen.OpcodeI32Const, 56,
				wasmgen.OpcodeLocalGet, 1, // value
				wasmgen.OpcodeI64Store16, 0x1, 0,

				wasmgen.OpcodeI32Const, 0xc0, 0, // 64 in leb128.
				wasmgen.OpcodeLocalGet, 1, // value
				wasmgen.OpcodeI64Store32, 0x2, 0,

				wasmgen.OpcodeEnd,
			}}},
		},
	}

	MemoryLoadBasic = TestCase{
		Name: "memory_load_basic",
		Module: &wasmgen.Module{
			TypeSection: []wasmgen.FunctionType{{
				Params:  []wasmgen.ValueType{i32},
				Results: []wasmgen.ValueType{i32},
			}},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
			MemorySection:   &wasmgen.Memory{Min: 1},
			FunctionSection: []wasmgen.Index{0},
			CodeSection: []wasmgen.Code{{Body: []byte{
				wasmgen.OpcodeLocalGet, 0,
				wasmgen.OpcodeI32Load, 0x2, 0x0, // alignment=2 (natural alignment) staticOffset=0
				wasmgen.OpcodeEnd,
			}}},
			DataSection: []wasmgen.DataSegment{{OffsetExpression: constExprI32(0), Init: maskedBuf(int(wasmgen.MemoryPageSize))}},
		},
	}

	MemorySizeGrow = TestCase{
		Name: "memory_size_grow",
		Module: &wasmgen.Module{
			TypeSection:     []wasmgen.FunctionType{{Results: []wasmgen.ValueType{i32, i32, i32}}},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
			MemorySection:   &wasmgen.Memory{Min: 1, Max: 2, IsMaxEncoded: true},
			FunctionSection: []wasmgen.Index{0},
			CodeSection: []wasmgen.Code{{Body: []byte{
				wasmgen.OpcodeI32Const, 1,
				wasmgen.OpcodeMemoryGrow, 0, // return 1.
				wasmgen.OpcodeMemorySize, 0, // return 2.
				wasmgen.OpcodeI32Const, 1,
				wasmgen.OpcodeMemoryGrow, 0, // return -1 since already maximum size.
				wasmgen.OpcodeEnd,
			}}},
		},
	}

	MemoryLoadBasic2 = TestCase{
		Name: "memory_load_basic2",
		Module: &wasmgen.Module{
			TypeSection:     []wasmgen.FunctionType{i32_i32, {}},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
			MemorySection:   &wasmgen.Memory{Min: 1},
			FunctionSection: []wasmgen.Index{0, 1},
			CodeSection: []wasmgen.Code{
				{Body: []byte{
					wasmgen.OpcodeLocalGet, 0,
					wasmgen.OpcodeI32Const, 0,
					wasmgen.OpcodeI32Eq,
					wasmgen.OpcodeIf, blockSignature_vv,
					wasmgen.OpcodeCall, 0x1, // After this the memory buf/size pointer reloads.
					wasmgen.OpcodeElse, // But in Else block, we do nothing, so not reloaded.
					wasmgen.OpcodeEnd,

					// Therefore, this block should reload the memory buf/size pointer here.
					wasmgen.OpcodeLocalGet, 0,
					wasmgen.OpcodeI32Load, 0x2, 0x0, // alignment=2 (natural alignment) staticOffset=0

					wasmgen.OpcodeEnd,
				}},
				{Body: []byte{wasmgen.OpcodeEnd}},
			},
			DataSection: []wasmgen.DataSegment{{OffsetExpression: constExprI32(0), Init: maskedBuf(int(wasmgen.MemoryPageSize))}},
		},
	}

	ImportedMemoryGrow = TestCase{
		Name: "imported_memory_grow",
		Imported: &wasmgen.Module{
			ExportSection: []wasmgen.Export{
				{Name: "mem", Type: wasmgen.ExternTypeMemory, Index: 0},
				{Name: "size", Type: wasmgen.ExternTypeFunc, Index: 0},
			},
			MemorySection:   &wasmgen.Memory{Min: 1},
			TypeSection:     []wasmgen.FunctionType{v_i32},
			FunctionSection: []wasmgen.Index{0},
			CodeSection:     []wasmgen.Code{{Body: []byte{wasmgen.OpcodeMemorySize, 0, wasmgen.OpcodeEnd}}},
			DataSection:     []wasmgen.DataSegment{{OffsetExpression: constExprI32(0), Init: maskedBuf(int(wasmgen.MemoryPageSize))}},
			NameSection:     &wasmgen.NameSection{ModuleName: "env"},
		},
		Module: &wasmgen.Module{
			ImportMemoryCount:   1,
			ImportFunctionCount: 1,
			ImportSection: []wasmgen.Import{
				{Module: "env", Name: "mem", Type: wasmgen.ExternTypeMemory, DescMem: &wasmgen.Memory{Min: 1}},
				{Module: "env", Name: "size", Type: wasmgen.ExternTypeFunc, DescFunc: 0},
			},
			TypeSection:     []wasmgen.FunctionType{v_i32, {Results: []wasmgen.ValueType{i32, i32, i32, i32}}},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 1}},
			FunctionSection: []wasmgen.Index{1},
			CodeSection: []wasmgen.Code{
				{Body: []byte{
					wasmgen.OpcodeCall, 0, // Call imported size function. --> 1
					wasmgen.OpcodeMemorySize, 0, // --> 1.
					wasmgen.OpcodeI32Const, 10,
					wasmgen.OpcodeMemoryGrow, 0,
					wasmgen.OpcodeDrop,
					wasmgen.OpcodeCall, 0, // Call imported size function. --> 11.
					wasmgen.OpcodeMemorySize, 0, // --> 11.
					wasmgen.OpcodeEnd,
				}},
			},
		},
	}

	GlobalsGet = TestCase{
		Name: "globals_get",
		Module: &wasmgen.Module{
			TypeSection:     []wasmgen.FunctionType{{Results: []wasmgen.ValueType{i32, i64, f32, f64}}},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
			FunctionSection: []wasmgen.Index{0},
			GlobalSection: []wasmgen.Global{
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeI32, Mutable: false},
					Init: constExprI32(math.MinInt32),
				},
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeI64, Mutable: false},
					Init: constExprI64(math.MinInt64),
				},
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeF32, Mutable: false},
					Init: constExprF32(math.MaxFloat32),
				},
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeF64, Mutable: false},
					Init: constExprF64(math.MaxFloat64),
				},
			},
			CodeSection: []wasmgen.Code{
				{Body: []byte{
					wasmgen.OpcodeGlobalGet, 0,
					wasmgen.OpcodeGlobalGet, 1,
					wasmgen.OpcodeGlobalGet, 2,
					wasmgen.OpcodeGlobalGet, 3,
					wasmgen.OpcodeEnd,
				}},
			},
		},
	}

	GlobalsSet = TestCase{
		Name: "globals_get",
		Module: &wasmgen.Module{
			TypeSection:     []wasmgen.FunctionType{{Results: []wasmgen.ValueType{i32, i64, f32, f64}}},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
			FunctionSection: []wasmgen.Index{0},
			GlobalSection: []wasmgen.Global{
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeI32, Mutable: true},
					Init: constExprI32(0),
				},
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeI64, Mutable: true},
					Init: constExprI64(0),
				},
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeF32, Mutable: true},
					Init: constExprF32(0),
				},
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeF64, Mutable: true},
					Init: constExprF64(0),
				},
			},
			CodeSection: []wasmgen.Code{
				{Body: []byte{
					wasmgen.OpcodeI32Const, 1,
					wasmgen.OpcodeGlobalSet, 0,
					wasmgen.OpcodeGlobalGet, 0,
					wasmgen.OpcodeI64Const, 2,
					wasmgen.OpcodeGlobalSet, 1,
					wasmgen.OpcodeGlobalGet, 1,
					wasmgen.OpcodeF32Const, 0, 0, 64, 64, // 3.0
					wasmgen.OpcodeGlobalSet, 2,
					wasmgen.OpcodeGlobalGet, 2,
					wasmgen.OpcodeF64Const, 0, 0, 0, 0, 0, 0, 16, 64, // 4.0
					wasmgen.OpcodeGlobalSet, 3,
					wasmgen.OpcodeGlobalGet, 3,
					wasmgen.OpcodeEnd,
				}},
			},
		},
	}

	GlobalsMutable = TestCase{
		Module: &wasmgen.Module{
			TypeSection: []wasmgen.FunctionType{
				{Results: []wasmgen.ValueType{i32, i64, f32, f64, i32, i64, f32, f64}},
				{},
			},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
			FunctionSection: []wasmgen.Index{0, 1},
			GlobalSection: []wasmgen.Global{
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeI32, Mutable: true},
					Init: constExprI32(100),
				},
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeI64, Mutable: true},
					Init: constExprI64(200),
				},
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeF32, Mutable: true},
					Init: constExprF32(300.0),
				},
				{
					Type: wasmgen.GlobalType{ValType: wasmgen.ValueTypeF64, Mutable: true},
					Init: constExprF64(400.0),
				},
			},
			CodeSection: []wasmgen.Code{
				{Body: []byte{
					wasmgen.OpcodeGlobalGet, 0,
					wasmgen.OpcodeGlobalGet, 1,
					wasmgen.OpcodeGlobalGet, 2,
					wasmgen.OpcodeGlobalGet, 3,
					wasmgen.OpcodeCall, 1,
					wasmgen.OpcodeGlobalGet, 0,
					wasmgen.OpcodeGlobalGet, 1,
					wasmgen.OpcodeGlobalGet, 2,
					wasmgen.OpcodeGlobalGet, 3,
					wasmgen.OpcodeEnd,
				}},
				{Body: []byte{
					wasmgen.OpcodeI32Const, 1,
					wasmgen.OpcodeGlobalSet, 0,
					wasmgen.OpcodeI64Const, 2,
					wasmgen.OpcodeGlobalSet, 1,
					wasmgen.OpcodeF32Const, 0, 0, 64, 64, // 3.0
					wasmgen.OpcodeGlobalSet, 2,
					wasmgen.OpcodeF64Const, 0, 0, 0, 0, 0, 0, 16, 64, // 4.0
					wasmgen.OpcodeGlobalSet, 3,
					wasmgen.OpcodeReturn,
					wasmgen.OpcodeEnd,
				}},
			},
		},
	}

	MemoryLoads = TestCase{
		Name: "memory_loads",
		Module: &wasmgen.Module{
			TypeSection: []wasmgen.FunctionType{{
				Params: []wasmgen.ValueType{i32},
				Results: []wasmgen.ValueType{
					i32, i64, f32, f64, i32, i64, f32, f64,
					i32, i32, i32, i32, i32, i32, i32, i32,
					i64, i64, i64, i64, i64, i64, i64, i64, i64, i64, i64, i64,
				},
			}},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
			MemorySection:   &wasmgen.Memory{Min: 1},
			FunctionSection: []wasmgen.Index{0},
			CodeSection: []wasmgen.Code{{Body: []byte{
				// Basic loads (without extensions).
				wasmgen.OpcodeLocalGet, 0, // 0
				wasmgen.OpcodeI32Load, 0x2, 0x0, // alignment=2 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 1
				wasmgen.OpcodeI64Load, 0x3, 0x0, // alignment=3 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 2
				wasmgen.OpcodeF32Load, 0x2, 0x0, // alignment=2 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 3
				wasmgen.OpcodeF64Load, 0x3, 0x0, // alignment=3 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 4
				wasmgen.OpcodeI32Load, 0x2, 0xf, // alignment=2 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 5
				wasmgen.OpcodeI64Load, 0x3, 0xf, // alignment=3 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 6
				wasmgen.OpcodeF32Load, 0x2, 0xf, // alignment=2 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 7
				wasmgen.OpcodeF64Load, 0x3, 0xf, // alignment=3 (natural alignment) staticOffset=16

				// Extension integer loads.
				wasmgen.OpcodeLocalGet, 0, // 8
				wasmgen.OpcodeI32Load8S, 0x0, 0x0, // alignment=0 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 9
				wasmgen.OpcodeI32Load8S, 0x0, 0xf, // alignment=0 (natural alignment) staticOffset=16

				wasmgen.OpcodeLocalGet, 0, // 10
				wasmgen.OpcodeI32Load8U, 0x0, 0x0, // alignment=0 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 11
				wasmgen.OpcodeI32Load8U, 0x0, 0xf, // alignment=0 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 12
				wasmgen.OpcodeI32Load16S, 0x1, 0x0, // alignment=1 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 13
				wasmgen.OpcodeI32Load16S, 0x1, 0xf, // alignment=1 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 14
				wasmgen.OpcodeI32Load16U, 0x1, 0x0, // alignment=1 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 15
				wasmgen.OpcodeI32Load16U, 0x1, 0xf, // alignment=1 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 16
				wasmgen.OpcodeI64Load8S, 0x0, 0x0, // alignment=0 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 17
				wasmgen.OpcodeI64Load8S, 0x0, 0xf, // alignment=0 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 18
				wasmgen.OpcodeI64Load8U, 0x0, 0x0, // alignment=0 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 19

				wasmgen.OpcodeI64Load8U, 0x0, 0xf, // alignment=0 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 20
				wasmgen.OpcodeI64Load16S, 0x1, 0x0, // alignment=1 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 21
				wasmgen.OpcodeI64Load16S, 0x1, 0xf, // alignment=1 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 22
				wasmgen.OpcodeI64Load16U, 0x1, 0x0, // alignment=1 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 23
				wasmgen.OpcodeI64Load16U, 0x1, 0xf, // alignment=1 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 24
				wasmgen.OpcodeI64Load32S, 0x2, 0x0, // alignment=2 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 25
				wasmgen.OpcodeI64Load32S, 0x2, 0xf, // alignment=2 (natural alignment) staticOffset=16
				wasmgen.OpcodeLocalGet, 0, // 26
				wasmgen.OpcodeI64Load32U, 0x2, 0x0, // alignment=2 (natural alignment) staticOffset=0
				wasmgen.OpcodeLocalGet, 0, // 27
				wasmgen.OpcodeI64Load32U, 0x2, 0xf, // alignment=2 (natural alignment) staticOffset=16

				wasmgen.OpcodeEnd,
			}}},
			DataSection: []wasmgen.DataSegment{{OffsetExpression: constExprI32(0), Init: maskedBuf(int(wasmgen.MemoryPageSize))}},
		},
	}

	CallIndirect = TestCase{
		Module: &wasmgen.Module{
			TypeSection:     []wasmgen.FunctionType{i32_i32, {}, v_i32, v_i32i32},
			ExportSection:   []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
			FunctionSection: []wasmgen.Index{0, 1, 2, 3},
			TableSection:    []wasmgen.Table{{Type: wasmgen.RefTypeFuncref, Min: 1000}},
			ElementSection: []wasmgen.ElementSegment{
				{
					OffsetExpr: constExprI32(0), TableIndex: 0, Type: wasmgen.RefTypeFuncref, Mode: wasmgen.ElementModeActive,
					// Set the function 1, 2, 3 at the beginning of the table.
					Init: []wasmgen.Index{1, 2, 3},
				},
			},
			CodeSection: []wasmgen.Code{
				{Body: []byte{
					wasmgen.OpcodeLocalGet, 0,
					wasmgen.OpcodeCallIndirect, 2, 0, // Expecting type 2 (v_i32), in tables[0]
					wasmgen.OpcodeEnd,
				}},
				{Body: []byte{wasmgen.OpcodeEnd}},
				{Body: []byte{wasmgen.OpcodeI32Const, 10, wasmgen.OpcodeEnd}},
				{Body: []byte{wasmgen.OpcodeI32Const, 1, wasmgen.OpcodeI32Const, 1, wasmgen.OpcodeEnd}},
			},
		},
	}
)

type TestCase struct {
	Name             string
	Imported, Module *wasmgen.Module
}

func SingleFunctionModule(typ wasmgen.FunctionType, body []byte, localTypes []wasmgen.ValueType) *wasmgen.Module {
	return &wasmgen.Module{
		TypeSection:     []wasmgen.FunctionType{typ},
		FunctionSection: []wasmgen.Index{0},
		CodeSection: []wasmgen.Code{{
			LocalTypes: localTypes,
			Body:       body,
		}},
		ExportSection: []wasmgen.Export{{Name: ExportName, Type: wasmgen.ExternTypeFunc, Index: 0}},
	}
}

var (
	vv                              = wasmgen.FunctionType{}
	v_i32                           = wasmgen.FunctionType{Results: []wasmgen.ValueType{i32}}
	v_i32i32                        = wasmgen.FunctionType{Results: []wasmgen.ValueType{i32, i32}}
	i32_v                           = wasmgen.FunctionType{Params: []wasmgen.ValueType{i32}}
	i32_i32                         = wasmgen.FunctionType{Params: []wasmgen.ValueType{i32}, Results: []wasmgen.ValueType{i32}}
	i32i32_i32                      = wasmgen.FunctionType{Params: []wasmgen.ValueType{i32, i32}, Results: []wasmgen.ValueType{i32}}
	i32i32_i32i32                   = wasmgen.FunctionType{Params: []wasmgen.ValueType{i32, i32}, Results: []wasmgen.ValueType{i32, i32}}
	i32i32i64i64f32f32f64f64_i32i64 = wasmgen.FunctionType{Params: []wasmgen.ValueType{i32, i32, i64, i64, f32, f32, f64, f64}, Results: []wasmgen.ValueType{i32, i64, f32, f64}}
	i32_i32i32                      = wasmgen.FunctionType{Params: []wasmgen.ValueType{i32}, Results: []wasmgen.ValueType{i32, i32}}
	i32f32f64_v                     = wasmgen.FunctionType{Params: []wasmgen.ValueType{i32, f32, f64}, Results: nil}
	i64f32f64_i64f32f64             = wasmgen.FunctionType{Params: []wasmgen.ValueType{i64, f32, f64}, Results: []wasmgen.ValueType{i64, f32, f64}}
)

const (
	i32 = wasmgen.ValueTypeI32
	i64 = wasmgen.ValueTypeI64
	f32 = wasmgen.ValueTypeF32
	f64 = wasmgen.ValueTypeF64

	blockSignature_vv = 0x40 // 0x40 is the v_v signature in 33-bit signed. See wasmgen.DecodeBlockType.
)

func maskedBuf(size int) []byte {
	ret := make([]byte, size)
	for i := range ret {
		ret[i] = byte(i)
	}
	return ret
}

func constExprI32(i int32) wasmgen.ConstantExpression {
	return wasmgen.ConstantExpression{
		Opcode: wasmgen.OpcodeI32Const,
		Data:   leb128.EncodeInt32(i),
	}
}

func constExprI64(i int64) wasmgen.ConstantExpression {
	return wasmgen.ConstantExpression{
		Opcode: wasmgen.OpcodeI64Const,
		Data:   leb128.EncodeInt64(i),
	}
}

func constExprF32(i float32) wasmgen.ConstantExpression {
	b := math.Float32bits(i)
	return wasmgen.ConstantExpression{
		Opcode: wasmgen.OpcodeF32Const,
		Data:   []byte{byte(b), byte(b >> 8), byte(b >> 16), byte(b >> 24)},
	}
}

func constExprF64(i float64) wasmgen.ConstantExpression {
	b := math.Float64bits(i)
	return wasmgen.ConstantExpression{
		Opcode: wasmgen.OpcodeF64Const,
		Data: []byte{
			byte(b), byte(b >> 8), byte(b >> 16), byte(b >> 24),
			byte(b >> 32), byte(b >> 40), byte(b >> 48), byte(b >> 56),
		},
	}
}
