// Package lower is the IR Lowerer of spec §4.1: it consumes a typed
// internal/ast.Program and produces one internal/ssa.Function per
// function declaration, allocating locals, building the CFG
// statement-by-statement, inserting phis at join points for variables
// assigned on more than one incoming edge, and synthesizing ARC
// cleanups via internal/arc as it goes (§4.3).
package lower

import (
	"github.com/cot-lang/cotc/internal/arc"
	"github.com/cot-lang/cotc/internal/ast"
	"github.com/cot-lang/cotc/internal/ceerror"
	"github.com/cot-lang/cotc/internal/ssa"
	"github.com/cot-lang/cotc/internal/types"
)

// Program is the lowered output: one SSA Function per declared function,
// plus the destructor table built by scanning all of their names (§4.3).
type Program struct {
	Funcs      []*ssa.Function
	Destructor *arc.DestructorTable
}

// Build lowers every function in prog.
func Build(prog *ast.Program) (*Program, error) {
	names := make([]string, len(prog.Funcs))
	for i, fd := range prog.Funcs {
		names[i] = fd.Name
	}
	out := &Program{Destructor: arc.BuildDestructorTable(names)}

	for _, fd := range prog.Funcs {
		f, err := lowerFunc(prog.Types, fd)
		if err != nil {
			return nil, ceerror.Wrap(ceerror.KindStructural, err, "lowering function %q", fd.Name).WithPass("lower")
		}
		out.Funcs = append(out.Funcs, f)
	}
	return out, nil
}

// env is the lowerer's variable scope: the current SSA value standing in
// for each in-scope local. It is copied (shallow) whenever control flow
// forks, and merged back via phis where branches rejoin.
type env map[string]ssa.ValueID

func (e env) clone() env {
	c := make(env, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

type funcLowerer struct {
	reg    *types.TypeRegistry
	f      *ssa.Function
	b      *ssa.Builder
	stack  *arc.Stack
	locals map[string]types.TypeIndex // declared type of each named local, for ARC bookkeeping
}

func lowerFunc(reg *types.TypeRegistry, fd *ast.FuncDecl) (*ssa.Function, error) {
	params := make([]types.TypeIndex, len(fd.Params))
	for i, p := range fd.Params {
		params[i] = p.Type
	}
	f := ssa.NewFunction(fd.Name, reg, params, fd.Results)
	b := ssa.NewBuilder(f)
	fl := &funcLowerer{reg: reg, f: f, b: b, locals: map[string]types.TypeIndex{}}
	fl.stack = arc.NewStack(b, func(b *ssa.Builder, ptr ssa.ValueID, typeName string) {
		arc.EmitRelease(b, ptr, typeName)
	})

	entry := b.AllocateBlock(ssa.BlockFirst)
	b.SetCurrentBlock(entry)

	e := env{}
	for i, p := range fd.Params {
		v := b.Emit(ssa.OpParam, p.Type, i)
		e[p.Name] = v
		fl.locals[p.Name] = p.Type
	}

	exit, err := fl.lowerStmts(fd.Body, e)
	if err != nil {
		return nil, err
	}
	if !exit {
		// Functions with no explicit trailing return fall off the end;
		// cot's checker guarantees every path returns a value for a
		// non-void function, so an empty return here only ever applies
		// to a void-result function.
		fl.stack.UnwindTo(0)
		b.EmitTerminator(ssa.OpReturn, nil, nil)
	}
	return f, nil
}

// lowerStmts lowers a statement list into the builder's current block,
// returning true if it ended in a terminator (return) so the caller
// knows not to fall through.
func (fl *funcLowerer) lowerStmts(stmts []ast.Stmt, e env) (terminated bool, err error) {
	mark := fl.stack.Mark()
	for _, s := range stmts {
		terminated, err = fl.lowerStmt(s, e)
		if err != nil {
			return false, err
		}
		if terminated {
			return true, nil
		}
	}
	fl.stack.UnwindTo(mark)
	return false, nil
}

func (fl *funcLowerer) lowerStmt(s ast.Stmt, e env) (bool, error) {
	switch s.Kind {
	case ast.StmtLet:
		v, err := fl.lowerExpr(s.Let.Value, e)
		if err != nil {
			return false, err
		}
		e[s.Let.Name] = v
		fl.locals[s.Let.Name] = s.Let.Type
		if fl.reg.IsHeapAllocated(s.Let.Type) {
			fl.stack.PushRelease(v, typeName(fl.reg, s.Let.Type))
		}
		return false, nil

	case ast.StmtAssign:
		newVal, err := fl.lowerExpr(s.Assign.Value, e)
		if err != nil {
			return false, err
		}
		if s.Assign.Target.Kind == ast.ExprVar {
			name := s.Assign.Target.Name
			old, ok := e[name]
			typ := fl.locals[name]
			if ok && fl.reg.IsHeapAllocated(typ) {
				tn := typeName(fl.reg, typ)
				arc.Reassign(fl.b, arc.EmitRetain, arc.EmitRelease, newVal, old, tn, func() {})
			}
			e[name] = newVal
			return false, nil
		}
		return false, ceerror.New(ceerror.KindStructural, "unsupported assignment target").WithPass("lower")

	case ast.StmtReturn:
		vals := make([]ssa.ValueID, len(s.Return.Values))
		for i, ex := range s.Return.Values {
			v, err := fl.lowerExpr(ex, e)
			if err != nil {
				return false, err
			}
			vals[i] = v
		}
		fl.stack.UnwindTo(0)
		fl.b.EmitTerminator(ssa.OpReturn, vals, nil)
		return true, nil

	case ast.StmtExpr:
		_, err := fl.lowerExpr(s.Expr, e)
		return false, err

	case ast.StmtIf:
		return fl.lowerIf(s.If, e)

	case ast.StmtWhile:
		return fl.lowerWhile(s.While, e)

	case ast.StmtBlock:
		return fl.lowerStmts(s.Block, e)

	default:
		return false, ceerror.New(ceerror.KindStructural, "unhandled statement kind %d", s.Kind).WithPass("lower")
	}
}

func typeName(reg *types.TypeRegistry, ti types.TypeIndex) string {
	return reg.String(ti)
}
