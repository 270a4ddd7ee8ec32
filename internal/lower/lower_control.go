package lower

import (
	"sort"

	"github.com/cot-lang/cotc/internal/ast"
	"github.com/cot-lang/cotc/internal/ssa"
)

// lowerIf lowers an if/else into two successor blocks and a join block,
// inserting a phi for every pre-existing variable whose value diverges
// between the branches (§4.1's "insert phi nodes at join points for
// variables assigned on multiple incoming edges"). An absent else
// clause is modelled as an empty else block that falls straight through
// to the join with the unchanged environment, so the rest of this
// function never special-cases "no else".
func (fl *funcLowerer) lowerIf(ifs *ast.IfStmt, e env) (bool, error) {
	cond, err := fl.lowerExpr(ifs.Cond, e)
	if err != nil {
		return false, err
	}
	condBlock := fl.b.CurrentBlock()
	fl.b.Func().B(condBlock).Kind = ssa.BlockIf

	thenBlock := fl.b.AllocateBlock(ssa.BlockPlain)
	elseBlock := fl.b.AllocateBlock(ssa.BlockPlain)
	fl.b.AddEdge(condBlock, thenBlock)
	fl.b.AddEdge(condBlock, elseBlock)
	fl.b.SetCurrentBlock(condBlock)
	fl.b.EmitTerminator(ssa.OpBrIf, []ssa.ValueID{cond}, []ssa.BranchTarget{
		{Block: thenBlock}, {Block: elseBlock},
	})

	fl.b.SetCurrentBlock(thenBlock)
	thenEnv := e.clone()
	thenTerm, err := fl.lowerStmts(ifs.Then, thenEnv)
	if err != nil {
		return false, err
	}
	thenEnd := fl.b.CurrentBlock()

	fl.b.SetCurrentBlock(elseBlock)
	var elseTerm bool
	elseEnv := e.clone()
	if ifs.Else != nil {
		elseTerm, err = fl.lowerStmts(ifs.Else, elseEnv)
		if err != nil {
			return false, err
		}
	}
	elseEnd := fl.b.CurrentBlock()

	var live []liveBranch
	if !thenTerm {
		live = append(live, liveBranch{thenEnd, thenEnv})
	}
	if !elseTerm {
		live = append(live, liveBranch{elseEnd, elseEnv})
	}
	if len(live) == 0 {
		return true, nil
	}

	joinBlock := fl.b.AllocateBlock(ssa.BlockPlain)
	fl.b.Func().B(condBlock).Join = joinBlock
	for _, lb := range live {
		fl.b.AddEdge(lb.block, joinBlock)
	}

	keys := changedKeys(e, collectEnvs(live))
	phis := make(map[string]ssa.ValueID, len(keys))
	for _, k := range keys {
		phis[k] = fl.b.AllocatePhi(joinBlock, fl.locals[k])
	}

	for _, lb := range live {
		fl.b.SetCurrentBlock(lb.block)
		args := make([]ssa.ValueID, len(keys))
		for i, k := range keys {
			args[i] = lb.env[k]
		}
		fl.b.EmitTerminator(ssa.OpJump, nil, []ssa.BranchTarget{{Block: joinBlock, Args: args}})
	}

	fl.b.SetCurrentBlock(joinBlock)
	for _, k := range keys {
		e[k] = phis[k]
	}
	return false, nil
}

// liveBranch is one if/else arm that fell through to the join point
// rather than returning, paired with the environment it exited with.
type liveBranch struct {
	block ssa.BlockID
	env   env
}

// lowerWhile lowers a while loop: a header block (holding a phi per
// variable the body reassigns), a body block, and a merge block. The
// set of variables needing a header phi is computed by scanning the
// body for assignments up front, mirroring the header-phi-first
// construction real SSA builders use for reducible loops (cot's
// `while` is always reducible -- it is the only source-level loop
// form, §3.1's BlockLoopHeader note).
func (fl *funcLowerer) lowerWhile(ws *ast.WhileStmt, e env) (bool, error) {
	assigned := assignedVars(ws.Body)
	var keys []string
	for k := range assigned {
		if _, ok := e[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	preheader := fl.b.CurrentBlock()
	header := fl.b.AllocateBlock(ssa.BlockLoopHeader)
	fl.b.AddEdge(preheader, header)
	fl.b.EmitTerminator(ssa.OpJump, nil, []ssa.BranchTarget{{Block: header, Args: valuesOf(e, keys)}})

	fl.b.SetCurrentBlock(header)
	phis := make(map[string]ssa.ValueID, len(keys))
	for _, k := range keys {
		phis[k] = fl.b.AllocatePhi(header, fl.locals[k])
	}
	headerEnv := e.clone()
	for _, k := range keys {
		headerEnv[k] = phis[k]
	}

	cond, err := fl.lowerExpr(ws.Cond, headerEnv)
	if err != nil {
		return false, err
	}
	condEnd := fl.b.CurrentBlock()

	body := fl.b.AllocateBlock(ssa.BlockPlain)
	after := fl.b.AllocateBlock(ssa.BlockPlain)
	fl.b.Func().B(header).LoopAfter = after
	fl.b.AddEdge(condEnd, body)
	fl.b.AddEdge(condEnd, after)
	fl.b.SetCurrentBlock(condEnd)
	fl.b.EmitTerminator(ssa.OpBrIf, []ssa.ValueID{cond}, []ssa.BranchTarget{{Block: body}, {Block: after}})

	fl.b.SetCurrentBlock(body)
	bodyEnv := headerEnv.clone()
	term, err := fl.lowerStmts(ws.Body, bodyEnv)
	if err != nil {
		return false, err
	}
	if !term {
		bodyEnd := fl.b.CurrentBlock()
		fl.b.AddEdge(bodyEnd, header)
		fl.b.SetCurrentBlock(bodyEnd)
		fl.b.EmitTerminator(ssa.OpJump, nil, []ssa.BranchTarget{{Block: header, Args: valuesOf(bodyEnv, keys)}})
	}

	fl.b.SetCurrentBlock(after)
	for k, v := range headerEnv {
		e[k] = v
	}
	return false, nil
}

func valuesOf(e env, keys []string) []ssa.ValueID {
	out := make([]ssa.ValueID, len(keys))
	for i, k := range keys {
		out[i] = e[k]
	}
	return out
}

func collectEnvs(live []liveBranch) []env {
	out := make([]env, len(live))
	for i, lb := range live {
		out[i] = lb.env
	}
	return out
}

// changedKeys returns, sorted for determinism, every key present in base
// whose value differs in at least one of envs.
func changedKeys(base env, envs []env) []string {
	var keys []string
	for k, v := range base {
		for _, e := range envs {
			if ev, ok := e[k]; ok && ev != v {
				keys = append(keys, k)
				break
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// assignedVars collects every variable name directly assigned within
// stmts (not descending into nested function literals, which cot's AST
// doesn't have -- every FuncDecl is top-level).
func assignedVars(stmts []ast.Stmt) map[string]bool {
	out := map[string]bool{}
	var walk func([]ast.Stmt)
	walk = func(ss []ast.Stmt) {
		for _, s := range ss {
			switch s.Kind {
			case ast.StmtAssign:
				if s.Assign.Target.Kind == ast.ExprVar {
					out[s.Assign.Target.Name] = true
				}
			case ast.StmtIf:
				walk(s.If.Then)
				walk(s.If.Else)
			case ast.StmtWhile:
				walk(s.While.Body)
			case ast.StmtBlock:
				walk(s.Block)
			}
		}
	}
	walk(stmts)
	return out
}
