package backend

import (
	"context"

	"github.com/cot-lang/cotc/internal/backend/regalloc"
	"github.com/cot-lang/cotc/internal/clif"
	"github.com/cot-lang/cotc/internal/cotapi"
)

// mockMachine implements Machine for testing the parts of compiler.go that
// don't need a real ISA lowerer: compiler_lower_test.go drives it directly
// through newCompiler, setting only the function/slice fields the test case
// at hand actually exercises.
type mockMachine struct {
	lowerSingleBranch      func(b *clif.Instruction)
	lowerConditionalBranch func(b *clif.Instruction)
	lowerInstr             func(instruction *clif.Instruction)
	reset                  func()
	insertMove             func(dst, src regalloc.VReg)
	insertLoadConstant     func(instr *clif.Instruction, vr regalloc.VReg)
	insertReturn           func()
	format                 func() string

	argResultInts   []regalloc.RealReg
	argResultFloats []regalloc.RealReg
}

var _ Machine = (*mockMachine)(nil)

func (m mockMachine) ExecutableContext() ExecutableContext { return nil }

func (m mockMachine) DisableStackCheck() {}

func (m mockMachine) SetCurrentABI(*FunctionABI) {}

func (m mockMachine) SetCompiler(Compiler) {}

func (m mockMachine) LowerSingleBranch(b *clif.Instruction) {
	if m.lowerSingleBranch != nil {
		m.lowerSingleBranch(b)
	}
}

func (m mockMachine) LowerConditionalBranch(b *clif.Instruction) {
	if m.lowerConditionalBranch != nil {
		m.lowerConditionalBranch(b)
	}
}

func (m mockMachine) LowerInstr(instr *clif.Instruction) {
	if m.lowerInstr != nil {
		m.lowerInstr(instr)
	}
}

func (m mockMachine) Reset() {
	if m.reset != nil {
		m.reset()
	}
}

func (m mockMachine) InsertMove(dst, src regalloc.VReg, typ clif.Type) {
	if m.insertMove != nil {
		m.insertMove(dst, src)
	}
}

func (m mockMachine) InsertReturn() {
	if m.insertReturn != nil {
		m.insertReturn()
	}
}

func (m mockMachine) InsertLoadConstantBlockArg(instr *clif.Instruction, vr regalloc.VReg) {
	if m.insertLoadConstant != nil {
		m.insertLoadConstant(instr, vr)
	}
}

func (m mockMachine) Format() string {
	if m.format != nil {
		return m.format()
	}
	return ""
}

func (m mockMachine) RegAlloc() {}

func (m mockMachine) PostRegAlloc() {}

func (m mockMachine) ResolveRelocations(map[clif.FuncRef]int, []byte, []RelocationInfo) {}

func (m mockMachine) UpdateRelocationInfo(r *RelocationInfo, totalSize int, body []byte) []byte {
	return body
}

func (m mockMachine) Encode(ctx context.Context) {}

func (m mockMachine) CompileGoFunctionTrampoline(cotapi.ExitCode, *clif.Signature, bool) []byte {
	panic("TODO")
}

func (m mockMachine) CompileStackGrowCallSequence() []byte {
	panic("TODO")
}

func (m mockMachine) CompileEntryPreamble(*clif.Signature) []byte {
	panic("TODO")
}

func (m mockMachine) LowerParams(params []clif.Value) {}

func (m mockMachine) LowerReturns(returns []clif.Value) {}

func (m mockMachine) ArgsResultsRegs() (argResultInts, argResultFloats []regalloc.RealReg) {
	return m.argResultInts, m.argResultFloats
}
