package lower

import (
	"github.com/cot-lang/cotc/internal/ast"
	"github.com/cot-lang/cotc/internal/ceerror"
	"github.com/cot-lang/cotc/internal/ssa"
	"github.com/cot-lang/cotc/internal/types"
)

func (fl *funcLowerer) lowerExpr(ex ast.Expr, e env) (ssa.ValueID, error) {
	switch ex.Kind {
	case ast.ExprIntLit:
		return fl.b.Emit(ssa.OpConstInt, ex.Type, ex.IntLit), nil

	case ast.ExprBoolLit:
		n := int64(0)
		if ex.BoolLit {
			n = 1
		}
		return fl.b.Emit(ssa.OpConstBool, ex.Type, n), nil

	case ast.ExprStringLit:
		return fl.b.Emit(ssa.OpConstString, ex.Type, ex.StringLit), nil

	case ast.ExprVar:
		v, ok := e[ex.Name]
		if !ok {
			return 0, ceerror.New(ceerror.KindStructural, "unresolved local %q reached the lowerer", ex.Name).WithPass("lower")
		}
		return v, nil

	case ast.ExprBinary:
		return fl.lowerBinary(ex, e)

	case ast.ExprUnary:
		arg, err := fl.lowerExpr(*ex.Arg, e)
		if err != nil {
			return 0, err
		}
		switch ex.UnOp {
		case ast.UnNeg:
			return fl.b.Emit(ssa.OpNeg, ex.Type, nil, arg), nil
		case ast.UnNot:
			return fl.b.Emit(ssa.OpNot, ex.Type, nil, arg), nil
		}
		return 0, ceerror.New(ceerror.KindStructural, "unhandled unary op %d", ex.UnOp).WithPass("lower")

	case ast.ExprCall:
		return fl.lowerCall(ex, e)

	case ast.ExprNew:
		return fl.lowerNew(ex, e)

	case ast.ExprField:
		return fl.lowerField(ex, e)

	case ast.ExprStructLit:
		return fl.lowerStructLit(ex, e)

	case ast.ExprSwitch:
		return fl.lowerSwitch(ex, e)

	case ast.ExprIndex:
		base, err := fl.lowerExpr(*ex.IndexBase, e)
		if err != nil {
			return 0, err
		}
		idx, err := fl.lowerExpr(*ex.IndexExpr, e)
		if err != nil {
			return 0, err
		}
		addr := fl.b.Emit(ssa.OpFieldAddr, ex.Type, idx, base)
		return fl.b.Emit(ssa.OpLoad, ex.Type, 0, addr), nil

	default:
		return 0, ceerror.New(ceerror.KindStructural, "unhandled expr kind %d", ex.Kind).WithPass("lower")
	}
}

func (fl *funcLowerer) lowerBinary(ex ast.Expr, e env) (ssa.ValueID, error) {
	lhs, err := fl.lowerExpr(*ex.LHS, e)
	if err != nil {
		return 0, err
	}
	rhs, err := fl.lowerExpr(*ex.RHS, e)
	if err != nil {
		return 0, err
	}

	if isStringType(fl.reg, ex.LHS.Type) {
		switch ex.BinOp {
		case ast.BinAdd:
			ptr1 := fl.b.Emit(ssa.OpSlicePtr, 0, nil, lhs)
			len1 := fl.b.Emit(ssa.OpSliceLen, 0, nil, lhs)
			ptr2 := fl.b.Emit(ssa.OpSlicePtr, 0, nil, rhs)
			len2 := fl.b.Emit(ssa.OpSliceLen, 0, nil, rhs)
			return fl.b.Emit(ssa.OpStringConcat, ex.Type, nil, ptr1, len1, ptr2, len2), nil
		case ast.BinEq:
			ptr1 := fl.b.Emit(ssa.OpSlicePtr, 0, nil, lhs)
			len1 := fl.b.Emit(ssa.OpSliceLen, 0, nil, lhs)
			ptr2 := fl.b.Emit(ssa.OpSlicePtr, 0, nil, rhs)
			len2 := fl.b.Emit(ssa.OpSliceLen, 0, nil, rhs)
			return fl.b.Emit(ssa.OpStringEq, ex.Type, nil, ptr1, len1, ptr2, len2), nil
		}
	}

	switch ex.BinOp {
	case ast.BinAdd:
		return fl.b.Emit(ssa.OpAdd, ex.Type, nil, lhs, rhs), nil
	case ast.BinSub:
		return fl.b.Emit(ssa.OpSub, ex.Type, nil, lhs, rhs), nil
	case ast.BinMul:
		return fl.b.Emit(ssa.OpMul, ex.Type, nil, lhs, rhs), nil
	case ast.BinDiv:
		return fl.b.Emit(ssa.OpDivS, ex.Type, nil, lhs, rhs), nil
	case ast.BinRem:
		return fl.b.Emit(ssa.OpRemS, ex.Type, nil, lhs, rhs), nil
	case ast.BinAnd:
		return fl.b.Emit(ssa.OpAnd, ex.Type, nil, lhs, rhs), nil
	case ast.BinOr:
		return fl.b.Emit(ssa.OpOr, ex.Type, nil, lhs, rhs), nil
	case ast.BinEq:
		return fl.b.Emit(ssa.OpIcmp, ex.Type, ssa.IcmpEq, lhs, rhs), nil
	case ast.BinNe:
		return fl.b.Emit(ssa.OpIcmp, ex.Type, ssa.IcmpNe, lhs, rhs), nil
	case ast.BinLt:
		return fl.b.Emit(ssa.OpIcmp, ex.Type, ssa.IcmpLtS, lhs, rhs), nil
	case ast.BinLe:
		return fl.b.Emit(ssa.OpIcmp, ex.Type, ssa.IcmpLeS, lhs, rhs), nil
	case ast.BinGt:
		return fl.b.Emit(ssa.OpIcmp, ex.Type, ssa.IcmpGtS, lhs, rhs), nil
	case ast.BinGe:
		return fl.b.Emit(ssa.OpIcmp, ex.Type, ssa.IcmpGeS, lhs, rhs), nil
	default:
		return 0, ceerror.New(ceerror.KindStructural, "unhandled binary op %d", ex.BinOp).WithPass("lower")
	}
}

func (fl *funcLowerer) lowerCall(ex ast.Expr, e env) (ssa.ValueID, error) {
	if ex.Callee == "len" && len(ex.Args) == 1 {
		s, err := fl.lowerExpr(ex.Args[0], e)
		if err != nil {
			return 0, err
		}
		return fl.b.Emit(ssa.OpSliceLen, ex.Type, nil, s), nil
	}

	args := make([]ssa.ValueID, len(ex.Args))
	for i, a := range ex.Args {
		v, err := fl.lowerExpr(a, e)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	return fl.b.Emit(ssa.OpCall, ex.Type, ex.Callee, args...), nil
}

// lowerNew lowers `new T{...}`: allocate a T-sized object (§3.4's
// 16-byte header plus payload), store each field, and register a
// scope-exit release for it (§4.3's "release for a temporary... or at
// end-of-scope for a named binding" -- the caller decides which by
// whether the result is bound via `let` or left as a temporary; lowerNew
// itself only allocates).
func (fl *funcLowerer) lowerNew(ex ast.Expr, e env) (ssa.ValueID, error) {
	ptr := fl.b.Emit(ssa.OpNew, ex.Type, ex.StructName)
	st := fl.reg.At(ex.Type)
	for i, fv := range ex.FieldVals {
		v, err := fl.lowerExpr(fv, e)
		if err != nil {
			return 0, err
		}
		off := fieldOffset(st, ex.FieldNames[i])
		fl.b.Emit(ssa.OpStore, 0, off, ptr, v)
	}
	return ptr, nil
}

func fieldOffset(st *types.Type, name string) int {
	for _, f := range st.Fields {
		if f.Name == name {
			return f.Offset
		}
	}
	return 0
}

func (fl *funcLowerer) lowerField(ex ast.Expr, e env) (ssa.ValueID, error) {
	base, err := fl.lowerExpr(*ex.FieldBase, e)
	if err != nil {
		return 0, err
	}
	st := fl.reg.At(ex.FieldBase.Type)
	off := fieldOffset(st, ex.FieldName)
	addr := fl.b.Emit(ssa.OpFieldAddr, ex.Type, off, base)
	return fl.b.Emit(ssa.OpLoad, ex.Type, 0, addr), nil
}

func (fl *funcLowerer) lowerStructLit(ex ast.Expr, e env) (ssa.ValueID, error) {
	args := make([]ssa.ValueID, len(ex.FieldVals))
	for i, fv := range ex.FieldVals {
		v, err := fl.lowerExpr(fv, e)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	return fl.b.Emit(ssa.OpStructMake, ex.Type, ex.StructName, args...), nil
}

// lowerSwitch lowers a tagged-union switch (spec §8 scenario S6) into a
// br_table on the union's tag field, one block per case extracting the
// payload (if the case binds one) before lowering that case's body as an
// expression whose value is the switch's own result.
func (fl *funcLowerer) lowerSwitch(ex ast.Expr, e env) (ssa.ValueID, error) {
	on, err := fl.lowerExpr(*ex.SwitchOn, e)
	if err != nil {
		return 0, err
	}
	tag := fl.b.Emit(ssa.OpFieldAddr, 0, 0, on)
	tagVal := fl.b.Emit(ssa.OpLoad, 0, 0, tag)

	condBlock := fl.b.CurrentBlock()
	caseBlocks := make([]ssa.BlockID, len(ex.SwitchCases))
	for i := range ex.SwitchCases {
		caseBlocks[i] = fl.b.AllocateBlock(ssa.BlockPlain)
		fl.b.AddEdge(condBlock, caseBlocks[i])
	}
	fl.b.SetCurrentBlock(condBlock)
	targets := make([]ssa.BranchTarget, len(caseBlocks))
	for i, cb := range caseBlocks {
		targets[i] = ssa.BranchTarget{Block: cb}
	}
	fl.b.EmitTerminator(ssa.OpBrTable, []ssa.ValueID{tagVal}, targets)

	joinBlock := fl.b.AllocateBlock(ssa.BlockPlain)
	fl.b.Func().B(condBlock).Join = joinBlock
	var liveCases int
	for i, c := range ex.SwitchCases {
		fl.b.SetCurrentBlock(caseBlocks[i])
		caseE := e.clone()
		if c.Binding != "" {
			payload := fl.b.Emit(ssa.OpFieldAddr, ex.Type, 4, on)
			caseE[c.Binding] = fl.b.Emit(ssa.OpLoad, ex.Type, 0, payload)
			fl.locals[c.Binding] = ex.Type
		}

		// A case's final statement is its result expression: the
		// checker only ever emits a trailing StmtExpr for the value a
		// switch-expression arm produces, everything before it is an
		// ordinary statement lowered for side effects only.
		body, resultExpr := c.Body, (*ast.Expr)(nil)
		if n := len(body); n > 0 && body[n-1].Kind == ast.StmtExpr {
			resultExpr = &body[n-1].Expr
			body = body[:n-1]
		}
		term, err := fl.lowerStmts(body, caseE)
		if err != nil {
			return 0, err
		}
		if term {
			continue
		}
		var result ssa.ValueID
		if resultExpr != nil {
			result, err = fl.lowerExpr(*resultExpr, caseE)
			if err != nil {
				return 0, err
			}
		} else {
			result = fl.b.Emit(ssa.OpConstInt, ex.Type, int64(0))
		}
		fl.b.AddEdge(fl.b.CurrentBlock(), joinBlock)
		fl.b.EmitTerminator(ssa.OpJump, nil, []ssa.BranchTarget{{Block: joinBlock, Args: []ssa.ValueID{result}}})
		liveCases++
	}
	fl.b.SetCurrentBlock(joinBlock)
	if liveCases == 0 {
		return 0, ceerror.New(ceerror.KindStructural, "switch has no reachable case").WithPass("lower")
	}
	return fl.b.AllocatePhi(joinBlock, ex.Type), nil
}

func isStringType(reg *types.TypeRegistry, ti types.TypeIndex) bool {
	return reg.At(ti).Kind == types.KindString
}
