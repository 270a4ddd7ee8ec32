package frontend

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cot-lang/cotc/api"
	"github.com/cot-lang/cotc/internal/clif"
	"github.com/cot-lang/cotc/internal/cotapi"
	"github.com/cot-lang/cotc/internal/leb128"
	"github.com/cot-lang/cotc/internal/wasmgen"
)

type (
	// loweringState is used to keep the state of lowering.
	loweringState struct {
		// values holds the values on the Wasm stack.
		values           []clif.Value
		controlFrames    []controlFrame
		unreachable      bool
		unreachableDepth int
		tmpForBrTable    []uint32
		pc               int
	}
	controlFrame struct {
		kind controlFrameKind
		// originalStackLen holds the number of values on the Wasm stack
		// when start executing this control frame minus params for the block.
		originalStackLenWithoutParam int
		// blk is the loop header if this is loop, and is the else-block if this is an if frame.
		blk,
		// followingBlock is the basic block we enter if we reach "end" of block.
		followingBlock clif.BasicBlock
		blockType *wasmgen.FunctionType
		// clonedArgs hold the arguments to Else block.
		clonedArgs []clif.Value
	}

	controlFrameKind byte
)

// String implements fmt.Stringer for debugging.
func (l *loweringState) String() string {
	var str []string
	for _, v := range l.values {
		str = append(str, fmt.Sprintf("v%v", v.ID()))
	}
	var frames []string
	for i := range l.controlFrames {
		frames = append(frames, l.controlFrames[i].kind.String())
	}
	return fmt.Sprintf("\n\tunreachable=%v(depth=%d)\n\tstack: %s\n\tcontrol frames: %s",
		l.unreachable, l.unreachableDepth,
		strings.Join(str, ", "),
		strings.Join(frames, ", "),
	)
}

const (
	controlFrameKindFunction = iota + 1
	controlFrameKindLoop
	controlFrameKindIfWithElse
	controlFrameKindIfWithoutElse
	controlFrameKindBlock
)

// String implements fmt.Stringer for debugging.
func (k controlFrameKind) String() string {
	switch k {
	case controlFrameKindFunction:
		return "function"
	case controlFrameKindLoop:
		return "loop"
	case controlFrameKindIfWithElse:
		return "if_with_else"
	case controlFrameKindIfWithoutElse:
		return "if_without_else"
	case controlFrameKindBlock:
		return "block"
	default:
		panic(k)
	}
}

// isLoop returns true if this is a loop frame.
func (ctrl *controlFrame) isLoop() bool {
	return ctrl.kind == controlFrameKindLoop
}

// reset resets the state of loweringState for reuse.
func (l *loweringState) reset() {
	l.values = l.values[:0]
	l.controlFrames = l.controlFrames[:0]
	l.pc = 0
	l.unreachable = false
	l.unreachableDepth = 0
}

func (l *loweringState) peek() (ret clif.Value) {
	tail := len(l.values) - 1
	return l.values[tail]
}

func (l *loweringState) pop() (ret clif.Value) {
	tail := len(l.values) - 1
	ret = l.values[tail]
	l.values = l.values[:tail]
	return
}

func (l *loweringState) push(ret clif.Value) {
	l.values = append(l.values, ret)
}

func (l *loweringState) nPopInto(n int, dst []clif.Value) {
	if n == 0 {
		return
	}
	tail := len(l.values)
	begin := tail - n
	view := l.values[begin:tail]
	copy(dst, view)
	l.values = l.values[:begin]
}

func (l *loweringState) nPeekDup(n int) []clif.Value {
	if n == 0 {
		return nil
	}
	tail := len(l.values)
	view := l.values[tail-n : tail]
	return cloneValuesList(view)
}

func (l *loweringState) ctrlPop() (ret controlFrame) {
	tail := len(l.controlFrames) - 1
	ret = l.controlFrames[tail]
	l.controlFrames = l.controlFrames[:tail]
	return
}

func (l *loweringState) ctrlPush(ret controlFrame) {
	l.controlFrames = append(l.controlFrames, ret)
}

func (l *loweringState) ctrlPeekAt(n int) (ret *controlFrame) {
	tail := len(l.controlFrames) - 1
	return &l.controlFrames[tail-n]
}

// lowerBody lowers the body of the Wasm function to the SSA form.
func (c *Compiler) lowerBody(entryBlk clif.BasicBlock) {
	c.ssaBuilder.Seal(entryBlk)

	// Pushes the empty control frame which corresponds to the function return.
	c.loweringState.ctrlPush(controlFrame{
		kind:           controlFrameKindFunction,
		blockType:      c.wasmFunctionTyp,
		followingBlock: c.ssaBuilder.ReturnBlock(),
	})

	for c.loweringState.pc < len(c.wasmFunctionBody) {
		c.lowerCurrentOpcode()
	}
}

func (c *Compiler) state() *loweringState {
	return &c.loweringState
}

func (c *Compiler) lowerCurrentOpcode() {
	op := c.wasmFunctionBody[c.loweringState.pc]

	builder := c.ssaBuilder
	state := c.state()
	switch op {
	case wasmgen.OpcodeI32Const:
		c := c.readI32s()
		if state.unreachable {
			break
		}

		iconst := builder.AllocateInstruction().AsIconst32(uint32(c)).Insert(builder)
		value := iconst.Return()
		state.push(value)
	case wasmgen.OpcodeI64Const:
		c := c.readI64s()
		if state.unreachable {
			break
		}
		iconst := builder.AllocateInstruction().AsIconst64(uint64(c)).Insert(builder)
		value := iconst.Return()
		state.push(value)
	case wasmgen.OpcodeF32Const:
		f32 := c.readF32()
		if state.unreachable {
			break
		}
		f32const := builder.AllocateInstruction().
			AsF32const(f32).
			Insert(builder).
			Return()
		state.push(f32const)
	case wasmgen.OpcodeF64Const:
		f64 := c.readF64()
		if state.unreachable {
			break
		}
		f64const := builder.AllocateInstruction().
			AsF64const(f64).
			Insert(builder).
			Return()
		state.push(f64const)
	case wasmgen.OpcodeI32Add, wasmgen.OpcodeI64Add:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		iadd := builder.AllocateInstruction()
		iadd.AsIadd(x, y)
		builder.InsertInstruction(iadd)
		value := iadd.Return()
		state.push(value)
	case wasmgen.OpcodeI32Sub, wasmgen.OpcodeI64Sub:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		isub := builder.AllocateInstruction()
		isub.AsIsub(x, y)
		builder.InsertInstruction(isub)
		value := isub.Return()
		state.push(value)
	case wasmgen.OpcodeF32Add, wasmgen.OpcodeF64Add:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		iadd := builder.AllocateInstruction()
		iadd.AsFadd(x, y)
		builder.InsertInstruction(iadd)
		value := iadd.Return()
		state.push(value)
	case wasmgen.OpcodeI32Mul, wasmgen.OpcodeI64Mul:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		imul := builder.AllocateInstruction()
		imul.AsImul(x, y)
		builder.InsertInstruction(imul)
		value := imul.Return()
		state.push(value)
	case wasmgen.OpcodeF32Sub, wasmgen.OpcodeF64Sub:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		isub := builder.AllocateInstruction()
		isub.AsFsub(x, y)
		builder.InsertInstruction(isub)
		value := isub.Return()
		state.push(value)
	case wasmgen.OpcodeF32Mul, wasmgen.OpcodeF64Mul:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		isub := builder.AllocateInstruction()
		isub.AsFmul(x, y)
		builder.InsertInstruction(isub)
		value := isub.Return()
		state.push(value)
	case wasmgen.OpcodeF32Div, wasmgen.OpcodeF64Div:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		isub := builder.AllocateInstruction()
		isub.AsFdiv(x, y)
		builder.InsertInstruction(isub)
		value := isub.Return()
		state.push(value)
	case wasmgen.OpcodeF32Max, wasmgen.OpcodeF64Max:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		isub := builder.AllocateInstruction()
		isub.AsFmax(x, y)
		builder.InsertInstruction(isub)
		value := isub.Return()
		state.push(value)
	case wasmgen.OpcodeF32Min, wasmgen.OpcodeF64Min:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		isub := builder.AllocateInstruction()
		isub.AsFmin(x, y)
		builder.InsertInstruction(isub)
		value := isub.Return()
		state.push(value)
	case wasmgen.OpcodeI64Extend8S:
		if state.unreachable {
			break
		}
		c.insertIntegerExtend(true, 8, 64)
	case wasmgen.OpcodeI64Extend16S:
		if state.unreachable {
			break
		}
		c.insertIntegerExtend(true, 16, 64)
	case wasmgen.OpcodeI64Extend32S, wasmgen.OpcodeI64ExtendI32S:
		if state.unreachable {
			break
		}
		c.insertIntegerExtend(true, 32, 64)
	case wasmgen.OpcodeI64ExtendI32U:
		if state.unreachable {
			break
		}
		c.insertIntegerExtend(false, 32, 64)
	case wasmgen.OpcodeI32Extend8S:
		if state.unreachable {
			break
		}
		c.insertIntegerExtend(true, 8, 32)
	case wasmgen.OpcodeI32Extend16S:
		if state.unreachable {
			break
		}
		c.insertIntegerExtend(true, 16, 32)
	case wasmgen.OpcodeI32Eqz, wasmgen.OpcodeI64Eqz:
		if state.unreachable {
			break
		}
		x := state.pop()
		zero := builder.AllocateInstruction()
		if op == wasmgen.OpcodeI32Eqz {
			zero.AsIconst32(0)
		} else {
			zero.AsIconst64(0)
		}
		builder.InsertInstruction(zero)
		icmp := builder.AllocateInstruction().
			AsIcmp(x, zero.Return(), clif.IntegerCmpCondEqual).
			Insert(builder).
			Return()
		state.push(icmp)
	case wasmgen.OpcodeI32Eq, wasmgen.OpcodeI64Eq:
		if state.unreachable {
			break
		}
		c.insertIcmp(clif.IntegerCmpCondEqual)
	case wasmgen.OpcodeI32Ne, wasmgen.OpcodeI64Ne:
		if state.unreachable {
			break
		}
		c.insertIcmp(clif.IntegerCmpCondNotEqual)
	case wasmgen.OpcodeI32LtS, wasmgen.OpcodeI64LtS:
		if state.unreachable {
			break
		}
		c.insertIcmp(clif.IntegerCmpCondSignedLessThan)
	case wasmgen.OpcodeI32LtU, wasmgen.OpcodeI64LtU:
		if state.unreachable {
			break
		}
		c.insertIcmp(clif.IntegerCmpCondUnsignedLessThan)
	case wasmgen.OpcodeI32GtS, wasmgen.OpcodeI64GtS:
		if state.unreachable {
			break
		}
		c.insertIcmp(clif.IntegerCmpCondSignedGreaterThan)
	case wasmgen.OpcodeI32GtU, wasmgen.OpcodeI64GtU:
		if state.unreachable {
			break
		}
		c.insertIcmp(clif.IntegerCmpCondUnsignedGreaterThan)
	case wasmgen.OpcodeI32LeS, wasmgen.OpcodeI64LeS:
		if state.unreachable {
			break
		}
		c.insertIcmp(clif.IntegerCmpCondSignedLessThanOrEqual)
	case wasmgen.OpcodeI32LeU, wasmgen.OpcodeI64LeU:
		if state.unreachable {
			break
		}
		c.insertIcmp(clif.IntegerCmpCondUnsignedLessThanOrEqual)
	case wasmgen.OpcodeI32GeS, wasmgen.OpcodeI64GeS:
		if state.unreachable {
			break
		}
		c.insertIcmp(clif.IntegerCmpCondSignedGreaterThanOrEqual)
	case wasmgen.OpcodeI32GeU, wasmgen.OpcodeI64GeU:
		if state.unreachable {
			break
		}
		c.insertIcmp(clif.IntegerCmpCondUnsignedGreaterThanOrEqual)

	case wasmgen.OpcodeF32Eq, wasmgen.OpcodeF64Eq:
		if state.unreachable {
			break
		}
		c.insertFcmp(clif.FloatCmpCondEqual)
	case wasmgen.OpcodeF32Ne, wasmgen.OpcodeF64Ne:
		if state.unreachable {
			break
		}
		c.insertFcmp(clif.FloatCmpCondNotEqual)
	case wasmgen.OpcodeF32Lt, wasmgen.OpcodeF64Lt:
		if state.unreachable {
			break
		}
		c.insertFcmp(clif.FloatCmpCondLessThan)
	case wasmgen.OpcodeF32Gt, wasmgen.OpcodeF64Gt:
		if state.unreachable {
			break
		}
		c.insertFcmp(clif.FloatCmpCondGreaterThan)
	case wasmgen.OpcodeF32Le, wasmgen.OpcodeF64Le:
		if state.unreachable {
			break
		}
		c.insertFcmp(clif.FloatCmpCondLessThanOrEqual)
	case wasmgen.OpcodeF32Ge, wasmgen.OpcodeF64Ge:
		if state.unreachable {
			break
		}
		c.insertFcmp(clif.FloatCmpCondGreaterThanOrEqual)
	case wasmgen.OpcodeF32Neg, wasmgen.OpcodeF64Neg:
		if state.unreachable {
			break
		}
		x := state.pop()
		v := builder.AllocateInstruction().AsFneg(x).Insert(builder).Return()
		state.push(v)
	case wasmgen.OpcodeF32Sqrt, wasmgen.OpcodeF64Sqrt:
		if state.unreachable {
			break
		}
		x := state.pop()
		v := builder.AllocateInstruction().AsSqrt(x).Insert(builder).Return()
		state.push(v)
	case wasmgen.OpcodeF32Abs, wasmgen.OpcodeF64Abs:
		if state.unreachable {
			break
		}
		x := state.pop()
		v := builder.AllocateInstruction().AsFabs(x).Insert(builder).Return()
		state.push(v)
	case wasmgen.OpcodeF32Copysign, wasmgen.OpcodeF64Copysign:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		v := builder.AllocateInstruction().AsFcopysign(x, y).Insert(builder).Return()
		state.push(v)

	case wasmgen.OpcodeF32Ceil, wasmgen.OpcodeF64Ceil:
		if state.unreachable {
			break
		}
		x := state.pop()
		v := builder.AllocateInstruction().AsCeil(x).Insert(builder).Return()
		state.push(v)
	case wasmgen.OpcodeF32Floor, wasmgen.OpcodeF64Floor:
		if state.unreachable {
			break
		}
		x := state.pop()
		v := builder.AllocateInstruction().AsFloor(x).Insert(builder).Return()
		state.push(v)
	case wasmgen.OpcodeF32Trunc, wasmgen.OpcodeF64Trunc:
		if state.unreachable {
			break
		}
		x := state.pop()
		v := builder.AllocateInstruction().AsTrunc(x).Insert(builder).Return()
		state.push(v)
	case wasmgen.OpcodeF32Nearest, wasmgen.OpcodeF64Nearest:
		if state.unreachable {
			break
		}
		x := state.pop()
		v := builder.AllocateInstruction().AsNearest(x).Insert(builder).Return()
		state.push(v)
	case wasmgen.OpcodeI64TruncF64S, wasmgen.OpcodeI64TruncF32S,
		wasmgen.OpcodeI32TruncF64S, wasmgen.OpcodeI32TruncF32S,
		wasmgen.OpcodeI64TruncF64U, wasmgen.OpcodeI64TruncF32U,
		wasmgen.OpcodeI32TruncF64U, wasmgen.OpcodeI32TruncF32U:
		if state.unreachable {
			break
		}
		ret := builder.AllocateInstruction().AsFcvtToInt(
			state.pop(),
			c.execCtxPtrValue,
			op == wasmgen.OpcodeI64TruncF64S || op == wasmgen.OpcodeI64TruncF32S || op == wasmgen.OpcodeI32TruncF32S || op == wasmgen.OpcodeI32TruncF64S,
			op == wasmgen.OpcodeI64TruncF64S || op == wasmgen.OpcodeI64TruncF32S || op == wasmgen.OpcodeI64TruncF64U || op == wasmgen.OpcodeI64TruncF32U,
			false,
		).Insert(builder).Return()
		state.push(ret)
	case wasmgen.OpcodeMiscPrefix:
		state.pc++
		// A misc opcode is encoded as an unsigned variable 32-bit integer.
		miscOpUint, num, err := leb128.LoadUint32(c.wasmFunctionBody[state.pc:])
		if err != nil {
			// In normal conditions this should never happen because the function has passed validation.
			panic(fmt.Sprintf("failed to read misc opcode: %v", err))
		}
		state.pc += int(num - 1)
		miscOp := wasmgen.OpcodeMisc(miscOpUint)
		switch miscOp {
		case wasmgen.OpcodeMiscI64TruncSatF64S, wasmgen.OpcodeMiscI64TruncSatF32S,
			wasmgen.OpcodeMiscI32TruncSatF64S, wasmgen.OpcodeMiscI32TruncSatF32S,
			wasmgen.OpcodeMiscI64TruncSatF64U, wasmgen.OpcodeMiscI64TruncSatF32U,
			wasmgen.OpcodeMiscI32TruncSatF64U, wasmgen.OpcodeMiscI32TruncSatF32U:
			if state.unreachable {
				break
			}
			ret := builder.AllocateInstruction().AsFcvtToInt(
				state.pop(),
				c.execCtxPtrValue,
				miscOp == wasmgen.OpcodeMiscI64TruncSatF64S || miscOp == wasmgen.OpcodeMiscI64TruncSatF32S || miscOp == wasmgen.OpcodeMiscI32TruncSatF32S || miscOp == wasmgen.OpcodeMiscI32TruncSatF64S,
				miscOp == wasmgen.OpcodeMiscI64TruncSatF64S || miscOp == wasmgen.OpcodeMiscI64TruncSatF32S || miscOp == wasmgen.OpcodeMiscI64TruncSatF64U || miscOp == wasmgen.OpcodeMiscI64TruncSatF32U,
				true,
			).Insert(builder).Return()
			state.push(ret)
		default:
			panic("Unknown MiscOp " + strconv.Itoa(int(miscOpUint)))
		}

	case wasmgen.OpcodeI32ReinterpretF32:
		if state.unreachable {
			break
		}
		reinterpret := builder.AllocateInstruction().
			AsBitcast(state.pop(), clif.TypeI32).
			Insert(builder).Return()
		state.push(reinterpret)

	case wasmgen.OpcodeI64ReinterpretF64:
		if state.unreachable {
			break
		}
		reinterpret := builder.AllocateInstruction().
			AsBitcast(state.pop(), clif.TypeI64).
			Insert(builder).Return()
		state.push(reinterpret)

	case wasmgen.OpcodeF32ReinterpretI32:
		if state.unreachable {
			break
		}
		reinterpret := builder.AllocateInstruction().
			AsBitcast(state.pop(), clif.TypeF32).
			Insert(builder).Return()
		state.push(reinterpret)

	case wasmgen.OpcodeF64ReinterpretI64:
		if state.unreachable {
			break
		}
		reinterpret := builder.AllocateInstruction().
			AsBitcast(state.pop(), clif.TypeF64).
			Insert(builder).Return()
		state.push(reinterpret)

	case wasmgen.OpcodeI32DivS, wasmgen.OpcodeI64DivS:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		result := builder.AllocateInstruction().AsSDiv(x, y, c.execCtxPtrValue).Insert(builder).Return()
		state.push(result)

	case wasmgen.OpcodeI32DivU, wasmgen.OpcodeI64DivU:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		result := builder.AllocateInstruction().AsUDiv(x, y, c.execCtxPtrValue).Insert(builder).Return()
		state.push(result)

	case wasmgen.OpcodeI32RemS, wasmgen.OpcodeI64RemS:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		result := builder.AllocateInstruction().AsSRem(x, y, c.execCtxPtrValue).Insert(builder).Return()
		state.push(result)

	case wasmgen.OpcodeI32RemU, wasmgen.OpcodeI64RemU:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		result := builder.AllocateInstruction().AsURem(x, y, c.execCtxPtrValue).Insert(builder).Return()
		state.push(result)

	case wasmgen.OpcodeI32And, wasmgen.OpcodeI64And:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		and := builder.AllocateInstruction()
		and.AsBand(x, y)
		builder.InsertInstruction(and)
		value := and.Return()
		state.push(value)
	case wasmgen.OpcodeI32Or, wasmgen.OpcodeI64Or:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		or := builder.AllocateInstruction()
		or.AsBor(x, y)
		builder.InsertInstruction(or)
		value := or.Return()
		state.push(value)
	case wasmgen.OpcodeI32Xor, wasmgen.OpcodeI64Xor:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		xor := builder.AllocateInstruction()
		xor.AsBxor(x, y)
		builder.InsertInstruction(xor)
		value := xor.Return()
		state.push(value)
	case wasmgen.OpcodeI32Shl, wasmgen.OpcodeI64Shl:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		ishl := builder.AllocateInstruction()
		ishl.AsIshl(x, y)
		builder.InsertInstruction(ishl)
		value := ishl.Return()
		state.push(value)
	case wasmgen.OpcodeI32ShrU, wasmgen.OpcodeI64ShrU:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		ishl := builder.AllocateInstruction()
		ishl.AsUshr(x, y)
		builder.InsertInstruction(ishl)
		value := ishl.Return()
		state.push(value)
	case wasmgen.OpcodeI32ShrS, wasmgen.OpcodeI64ShrS:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		ishl := builder.AllocateInstruction()
		ishl.AsSshr(x, y)
		builder.InsertInstruction(ishl)
		value := ishl.Return()
		state.push(value)
	case wasmgen.OpcodeI32Rotl, wasmgen.OpcodeI64Rotl:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		rotl := builder.AllocateInstruction()
		rotl.AsRotl(x, y)
		builder.InsertInstruction(rotl)
		value := rotl.Return()
		state.push(value)
	case wasmgen.OpcodeI32Rotr, wasmgen.OpcodeI64Rotr:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		rotr := builder.AllocateInstruction()
		rotr.AsRotr(x, y)
		builder.InsertInstruction(rotr)
		value := rotr.Return()
		state.push(value)
	case wasmgen.OpcodeI32Clz, wasmgen.OpcodeI64Clz:
		if state.unreachable {
			break
		}
		x := state.pop()
		clz := builder.AllocateInstruction()
		clz.AsClz(x)
		builder.InsertInstruction(clz)
		value := clz.Return()
		state.push(value)
	case wasmgen.OpcodeI32Ctz, wasmgen.OpcodeI64Ctz:
		if state.unreachable {
			break
		}
		x := state.pop()
		ctz := builder.AllocateInstruction()
		ctz.AsCtz(x)
		builder.InsertInstruction(ctz)
		value := ctz.Return()
		state.push(value)
	case wasmgen.OpcodeI32Popcnt, wasmgen.OpcodeI64Popcnt:
		if state.unreachable {
			break
		}
		x := state.pop()
		popcnt := builder.AllocateInstruction()
		popcnt.AsPopcnt(x)
		builder.InsertInstruction(popcnt)
		value := popcnt.Return()
		state.push(value)

	case wasmgen.OpcodeI32WrapI64:
		if state.unreachable {
			break
		}
		x := state.pop()
		wrap := builder.AllocateInstruction().AsIreduce(x, clif.TypeI32).Insert(builder).Return()
		state.push(wrap)
	case wasmgen.OpcodeGlobalGet:
		index := c.readI32u()
		if state.unreachable {
			break
		}
		v := c.getWasmGlobalValue(index, false)
		state.push(v)
	case wasmgen.OpcodeGlobalSet:
		index := c.readI32u()
		if state.unreachable {
			break
		}
		v := state.pop()
		c.setWasmGlobalValue(index, v)
	case wasmgen.OpcodeLocalGet:
		index := c.readI32u()
		if state.unreachable {
			break
		}
		variable := c.localVariable(index)
		v := builder.MustFindValue(variable)
		state.push(v)
	case wasmgen.OpcodeLocalSet:
		index := c.readI32u()
		if state.unreachable {
			break
		}
		variable := c.localVariable(index)
		newValue := state.pop()
		builder.DefineVariableInCurrentBB(variable, newValue)

	case wasmgen.OpcodeLocalTee:
		index := c.readI32u()
		if state.unreachable {
			break
		}
		variable := c.localVariable(index)
		newValue := state.peek()
		builder.DefineVariableInCurrentBB(variable, newValue)

	case wasmgen.OpcodeSelect, wasmgen.OpcodeTypedSelect:
		if op == wasmgen.OpcodeTypedSelect {
			state.pc += 2 // ignores the type which is only needed during validation.
		}

		if state.unreachable {
			break
		}

		cond := state.pop()
		v2 := state.pop()
		v1 := state.pop()

		sl := builder.AllocateInstruction().
			AsSelect(cond, v1, v2).
			Insert(builder).
			Return()
		state.push(sl)

	case wasmgen.OpcodeMemorySize:
		state.pc++ // skips the memory index.
		if state.unreachable {
			break
		}

		var memSizeInBytes clif.Value
		if c.offset.LocalMemoryBegin < 0 {
			memInstPtr := builder.AllocateInstruction().
				AsLoad(c.moduleCtxPtrValue, c.offset.ImportedMemoryBegin.U32(), clif.TypeI64).
				Insert(builder).
				Return()

			memSizeInBytes = builder.AllocateInstruction().
				AsLoad(memInstPtr, memoryInstanceBufSizeOffset, clif.TypeI32).
				Insert(builder).
				Return()
		} else {
			memSizeInBytes = builder.AllocateInstruction().
				AsLoad(c.moduleCtxPtrValue, c.offset.LocalMemoryLen().U32(), clif.TypeI32).
				Insert(builder).
				Return()
		}

		amount := builder.AllocateInstruction()
		amount.AsIconst32(uint32(wasmgen.MemoryPageSizeInBits))
		builder.InsertInstruction(amount)
		memSize := builder.AllocateInstruction().
			AsUshr(memSizeInBytes, amount.Return()).
			Insert(builder).
			Return()
		state.push(memSize)

	case wasmgen.OpcodeMemoryGrow:
		state.pc++ // skips the memory index.
		if state.unreachable {
			break
		}

		c.storeCallerModuleContext()

		pages := state.pop()
		loadPtr := builder.AllocateInstruction().
			AsLoad(c.execCtxPtrValue,
				cotapi.ExecutionContextOffsets.MemoryGrowTrampolineAddress.U32(),
				clif.TypeI64,
			).Insert(builder).Return()

		// TODO: reuse the slice.
		args := []clif.Value{c.execCtxPtrValue, pages}

		callGrowRet := builder.
			AllocateInstruction().
			AsCallIndirect(loadPtr, &c.memoryGrowSig, args).
			Insert(builder).Return()
		state.push(callGrowRet)

		// After the memory grow, reload the cached memory base and len.
		c.reloadMemoryBaseLen()

	case wasmgen.OpcodeI32Store,
		wasmgen.OpcodeI64Store,
		wasmgen.OpcodeF32Store,
		wasmgen.OpcodeF64Store,
		wasmgen.OpcodeI32Store8,
		wasmgen.OpcodeI32Store16,
		wasmgen.OpcodeI64Store8,
		wasmgen.OpcodeI64Store16,
		wasmgen.OpcodeI64Store32:

		_, offset := c.readMemArg()
		if state.unreachable {
			break
		}

		var opSize uint64
		var opcode clif.Opcode
		switch op {
		case wasmgen.OpcodeI32Store, wasmgen.OpcodeF32Store:
			opcode = clif.OpcodeStore
			opSize = 4
		case wasmgen.OpcodeI64Store, wasmgen.OpcodeF64Store:
			opcode = clif.OpcodeStore
			opSize = 8
		case wasmgen.OpcodeI32Store8, wasmgen.OpcodeI64Store8:
			opcode = clif.OpcodeIstore8
			opSize = 1
		case wasmgen.OpcodeI32Store16, wasmgen.OpcodeI64Store16:
			opcode = clif.OpcodeIstore16
			opSize = 2
		case wasmgen.OpcodeI64Store32:
			opcode = clif.OpcodeIstore32
			opSize = 4
		default:
			panic("BUG")
		}

		value := state.pop()
		baseAddr := state.pop()
		addr := c.memOpSetup(baseAddr, uint64(offset), opSize)
		builder.AllocateInstruction().
			AsStore(opcode, value, addr, offset).
			Insert(builder)

	case wasmgen.OpcodeI32Load,
		wasmgen.OpcodeI64Load,
		wasmgen.OpcodeF32Load,
		wasmgen.OpcodeF64Load,
		wasmgen.OpcodeI32Load8S,
		wasmgen.OpcodeI32Load8U,
		wasmgen.OpcodeI32Load16S,
		wasmgen.OpcodeI32Load16U,
		wasmgen.OpcodeI64Load8S,
		wasmgen.OpcodeI64Load8U,
		wasmgen.OpcodeI64Load16S,
		wasmgen.OpcodeI64Load16U,
		wasmgen.OpcodeI64Load32S,
		wasmgen.OpcodeI64Load32U:
		_, offset := c.readMemArg()
		if state.unreachable {
			break
		}

		var opSize uint64
		switch op {
		case wasmgen.OpcodeI32Load, wasmgen.OpcodeF32Load:
			opSize = 4
		case wasmgen.OpcodeI64Load, wasmgen.OpcodeF64Load:
			opSize = 8
		case wasmgen.OpcodeI32Load8S, wasmgen.OpcodeI32Load8U:
			opSize = 1
		case wasmgen.OpcodeI32Load16S, wasmgen.OpcodeI32Load16U:
			opSize = 2
		case wasmgen.OpcodeI64Load8S, wasmgen.OpcodeI64Load8U:
			opSize = 1
		case wasmgen.OpcodeI64Load16S, wasmgen.OpcodeI64Load16U:
			opSize = 2
		case wasmgen.OpcodeI64Load32S, wasmgen.OpcodeI64Load32U:
			opSize = 4
		default:
			panic("BUG")
		}

		baseAddr := state.pop()
		addr := c.memOpSetup(baseAddr, uint64(offset), opSize)
		load := builder.AllocateInstruction()
		switch op {
		case wasmgen.OpcodeI32Load:
			load.AsLoad(addr, offset, clif.TypeI32)
		case wasmgen.OpcodeI64Load:
			load.AsLoad(addr, offset, clif.TypeI64)
		case wasmgen.OpcodeF32Load:
			load.AsLoad(addr, offset, clif.TypeF32)
		case wasmgen.OpcodeF64Load:
			load.AsLoad(addr, offset, clif.TypeF64)
		case wasmgen.OpcodeI32Load8S:
			load.AsExtLoad(clif.OpcodeSload8, addr, offset, false)
		case wasmgen.OpcodeI32Load8U:
			load.AsExtLoad(clif.OpcodeUload8, addr, offset, false)
		case wasmgen.OpcodeI32Load16S:
			load.AsExtLoad(clif.OpcodeSload16, addr, offset, false)
		case wasmgen.OpcodeI32Load16U:
			load.AsExtLoad(clif.OpcodeUload16, addr, offset, false)
		case wasmgen.OpcodeI64Load8S:
			load.AsExtLoad(clif.OpcodeSload8, addr, offset, true)
		case wasmgen.OpcodeI64Load8U:
			load.AsExtLoad(clif.OpcodeUload8, addr, offset, true)
		case wasmgen.OpcodeI64Load16S:
			load.AsExtLoad(clif.OpcodeSload16, addr, offset, true)
		case wasmgen.OpcodeI64Load16U:
			load.AsExtLoad(clif.OpcodeUload16, addr, offset, true)
		case wasmgen.OpcodeI64Load32S:
			load.AsExtLoad(clif.OpcodeSload32, addr, offset, true)
		case wasmgen.OpcodeI64Load32U:
			load.AsExtLoad(clif.OpcodeUload32, addr, offset, true)
		default:
			panic("BUG")
		}
		builder.InsertInstruction(load)
		state.push(load.Return())
	case wasmgen.OpcodeBlock:
		// Note: we do not need to create a BB for this as that would always have only one predecessor
		// which is the current BB, and therefore it's always ok to merge them in any way.

		bt := c.readBlockType()

		if state.unreachable {
			state.unreachableDepth++
			break
		}

		followingBlk := builder.AllocateBasicBlock()
		c.addBlockParamsFromWasmTypes(bt.Results, followingBlk)

		state.ctrlPush(controlFrame{
			kind:                         controlFrameKindBlock,
			originalStackLenWithoutParam: len(state.values) - len(bt.Params),
			followingBlock:               followingBlk,
			blockType:                    bt,
		})
	case wasmgen.OpcodeLoop:
		bt := c.readBlockType()

		if state.unreachable {
			state.unreachableDepth++
			break
		}

		loopHeader, afterLoopBlock := builder.AllocateBasicBlock(), builder.AllocateBasicBlock()
		c.addBlockParamsFromWasmTypes(bt.Params, loopHeader)
		c.addBlockParamsFromWasmTypes(bt.Results, afterLoopBlock)

		originalLen := len(state.values) - len(bt.Params)
		state.ctrlPush(controlFrame{
			originalStackLenWithoutParam: originalLen,
			kind:                         controlFrameKindLoop,
			blk:                          loopHeader,
			followingBlock:               afterLoopBlock,
			blockType:                    bt,
		})

		var args []clif.Value
		if len(bt.Params) > 0 {
			args = cloneValuesList(state.values[originalLen:])
		}

		// Insert the jump to the header of loop.
		br := builder.AllocateInstruction()
		br.AsJump(args, loopHeader)
		builder.InsertInstruction(br)

		c.switchTo(originalLen, loopHeader)
	case wasmgen.OpcodeIf:
		bt := c.readBlockType()

		if state.unreachable {
			state.unreachableDepth++
			break
		}

		v := state.pop()
		thenBlk, elseBlk, followingBlk := builder.AllocateBasicBlock(), builder.AllocateBasicBlock(), builder.AllocateBasicBlock()

		// We do not make the Wasm-level block parameters as SSA-level block params for if-else blocks
		// since they won't be PHI and the definition is unique.

		// On the other hand, the following block after if-else-end will likely have
		// multiple definitions (one in Then and another in Else blocks).
		c.addBlockParamsFromWasmTypes(bt.Results, followingBlk)

		var args []clif.Value
		if len(bt.Params) > 0 {
			args = cloneValuesList(state.values[len(state.values)-len(bt.Params):])
		}

		// Insert the conditional jump to the Else block.
		brz := builder.AllocateInstruction()
		brz.AsBrz(v, nil, elseBlk)
		builder.InsertInstruction(brz)

		// Then, insert the jump to the Then block.
		br := builder.AllocateInstruction()
		br.AsJump(nil, thenBlk)
		builder.InsertInstruction(br)

		state.ctrlPush(controlFrame{
			kind:                         controlFrameKindIfWithoutElse,
			originalStackLenWithoutParam: len(state.values) - len(bt.Params),
			blk:                          elseBlk,
			followingBlock:               followingBlk,
			blockType:                    bt,
			clonedArgs:                   args,
		})

		builder.SetCurrentBlock(thenBlk)

		// Then and Else (if exists) have only one predecessor.
		builder.Seal(thenBlk)
		builder.Seal(elseBlk)
	case wasmgen.OpcodeElse:
		ifctrl := state.ctrlPeekAt(0)
		if unreachable := state.unreachable; unreachable && state.unreachableDepth > 0 {
			// If it is currently in unreachable and is a nested if,
			// we just remove the entire else block.
			break
		}

		ifctrl.kind = controlFrameKindIfWithElse
		if !state.unreachable {
			// If this Then block is currently reachable, we have to insert the branching to the following BB.
			followingBlk := ifctrl.followingBlock // == the BB after if-then-else.
			args := c.loweringState.nPeekDup(len(ifctrl.blockType.Results))
			c.insertJumpToBlock(args, followingBlk)
		} else {
			state.unreachable = false
		}

		// Reset the stack so that we can correctly handle the else block.
		state.values = state.values[:ifctrl.originalStackLenWithoutParam]
		elseBlk := ifctrl.blk
		for _, arg := range ifctrl.clonedArgs {
			state.push(arg)
		}

		builder.SetCurrentBlock(elseBlk)

	case wasmgen.OpcodeEnd:
		if state.unreachableDepth > 0 {
			state.unreachableDepth--
			break
		}

		ctrl := state.ctrlPop()
		followingBlk := ctrl.followingBlock

		unreachable := state.unreachable
		if !unreachable {
			// Top n-th args will be used as a result of the current control frame.
			args := c.loweringState.nPeekDup(len(ctrl.blockType.Results))

			// Insert the unconditional branch to the target.
			c.insertJumpToBlock(args, followingBlk)
		} else { // recover from the unreachable state.
			state.unreachable = false
		}

		switch ctrl.kind {
		case controlFrameKindFunction:
			break // This is the very end of function.
		case controlFrameKindLoop:
			// Loop header block can be reached from any br/br_table contained in the loop,
			// so now that we've reached End of it, we can seal it.
			builder.Seal(ctrl.blk)
		case controlFrameKindIfWithoutElse:
			// If this is the end of Then block, we have to emit the empty Else block.
			elseBlk := ctrl.blk
			builder.SetCurrentBlock(elseBlk)
			c.insertJumpToBlock(ctrl.clonedArgs, followingBlk)
		}

		builder.Seal(ctrl.followingBlock)

		// Ready to start translating the following block.
		c.switchTo(ctrl.originalStackLenWithoutParam, followingBlk)

	case wasmgen.OpcodeBr:
		labelIndex := c.readI32u()
		if state.unreachable {
			break
		}

		targetBlk, argNum := state.brTargetArgNumFor(labelIndex)
		args := c.loweringState.nPeekDup(argNum)
		c.insertJumpToBlock(args, targetBlk)

		state.unreachable = true

	case wasmgen.OpcodeBrIf:
		labelIndex := c.readI32u()
		if state.unreachable {
			break
		}

		v := state.pop()

		targetBlk, argNum := state.brTargetArgNumFor(labelIndex)
		args := c.loweringState.nPeekDup(argNum)

		// Insert the conditional jump to the target block.
		brnz := builder.AllocateInstruction()
		brnz.AsBrnz(v, args, targetBlk)
		builder.InsertInstruction(brnz)

		// Insert the unconditional jump to the Else block which corresponds to after br_if.
		elseBlk := builder.AllocateBasicBlock()
		c.insertJumpToBlock(nil, elseBlk)

		// Now start translating the instructions after br_if.
		builder.Seal(elseBlk) // Else of br_if has the current block as the only one successor.
		builder.SetCurrentBlock(elseBlk)

	case wasmgen.OpcodeBrTable:
		labels := state.tmpForBrTable
		labels = labels[:0]
		labelCount := c.readI32u()
		for i := 0; i < int(labelCount); i++ {
			labels = append(labels, c.readI32u())
		}
		labels = append(labels, c.readI32u()) // default label.
		if state.unreachable {
			break
		}

		index := state.pop()
		if labelCount == 0 { // If this br_table is empty, we can just emit the unconditional jump.
			targetBlk, argNum := state.brTargetArgNumFor(labels[0])
			args := c.loweringState.nPeekDup(argNum)
			c.insertJumpToBlock(args, targetBlk)
		} else {
			c.lowerBrTable(labels, index)
		}
		state.unreachable = true

	case wasmgen.OpcodeNop:
	case wasmgen.OpcodeReturn:
		if state.unreachable {
			break
		}
		results := c.loweringState.nPeekDup(c.results())
		instr := builder.AllocateInstruction()

		instr.AsReturn(results)
		builder.InsertInstruction(instr)
		state.unreachable = true

	case wasmgen.OpcodeUnreachable:
		if state.unreachable {
			break
		}
		exit := builder.AllocateInstruction()
		exit.AsExitWithCode(c.execCtxPtrValue, cotapi.ExitCodeUnreachable)
		builder.InsertInstruction(exit)
		state.unreachable = true

	case wasmgen.OpcodeCallIndirect:
		typeIndex := c.readI32u()
		tableIndex := c.readI32u()
		if state.unreachable {
			break
		}
		c.lowerCallIndirect(typeIndex, tableIndex)

	case wasmgen.OpcodeCall:
		fnIndex := c.readI32u()
		if state.unreachable {
			break
		}

		// Before transfer the control to the callee, we have to store the current module's moduleContextPtr
		// into execContext.callerModuleContextPtr in case when the callee is a Go function.
		//
		// TODO: maybe this can be optimized out if this is in-module function calls. Investigate later.
		c.storeCallerModuleContext()

		var typIndex wasmgen.Index
		if fnIndex < c.m.ImportFunctionCount {
			var fi int
			for i := range c.m.ImportSection {
				imp := &c.m.ImportSection[i]
				if imp.Type == wasmgen.ExternTypeFunc {
					if fi == int(fnIndex) {
						typIndex = imp.DescFunc
						break
					}
					fi++
				}
			}
		} else {
			typIndex = c.m.FunctionSection[fnIndex-c.m.ImportFunctionCount]
		}
		typ := &c.m.TypeSection[typIndex]

		// TODO: reuse slice?
		argN := len(typ.Params)
		args := make([]clif.Value, argN+2)
		args[0] = c.execCtxPtrValue
		state.nPopInto(argN, args[2:])

		sig := c.signatures[typ]
		call := builder.AllocateInstruction()
		if fnIndex >= c.m.ImportFunctionCount {
			args[1] = c.moduleCtxPtrValue // This case the callee module is itself.
			call.AsCall(FunctionIndexToFuncRef(fnIndex), sig, args)
			builder.InsertInstruction(call)
		} else {
			// This case we have to read the address of the imported function from the module context.
			moduleCtx := c.moduleCtxPtrValue
			loadFuncPtr, loadModuleCtxPtr := builder.AllocateInstruction(), builder.AllocateInstruction()
			funcPtrOffset, moduleCtxPtrOffset, _ := c.offset.ImportedFunctionOffset(fnIndex)
			loadFuncPtr.AsLoad(moduleCtx, funcPtrOffset.U32(), clif.TypeI64)
			loadModuleCtxPtr.AsLoad(moduleCtx, moduleCtxPtrOffset.U32(), clif.TypeI64)
			builder.InsertInstruction(loadFuncPtr)
			builder.InsertInstruction(loadModuleCtxPtr)

			args[1] = loadModuleCtxPtr.Return() // This case the callee module is itself.

			call.AsCallIndirect(loadFuncPtr.Return(), sig, args)
			builder.InsertInstruction(call)
		}

		first, rest := call.Returns()
		if first.Valid() {
			state.push(first)
		}
		for _, v := range rest {
			state.push(v)
		}

		c.reloadAfterCall()

	case wasmgen.OpcodeDrop:
		if state.unreachable {
			break
		}
		_ = state.pop()
	case wasmgen.OpcodeF64ConvertI32S, wasmgen.OpcodeF64ConvertI64S, wasmgen.OpcodeF64ConvertI32U, wasmgen.OpcodeF64ConvertI64U:
		if state.unreachable {
			break
		}
		result := builder.AllocateInstruction().AsFcvtFromInt(
			state.pop(),
			op == wasmgen.OpcodeF64ConvertI32S || op == wasmgen.OpcodeF64ConvertI64S,
			true,
		).Insert(builder).Return()
		state.push(result)
	case wasmgen.OpcodeF32ConvertI32S, wasmgen.OpcodeF32ConvertI64S, wasmgen.OpcodeF32ConvertI32U, wasmgen.OpcodeF32ConvertI64U:
		if state.unreachable {
			break
		}
		result := builder.AllocateInstruction().AsFcvtFromInt(
			state.pop(),
			op == wasmgen.OpcodeF32ConvertI32S || op == wasmgen.OpcodeF32ConvertI64S,
			false,
		).Insert(builder).Return()
		state.push(result)
	case wasmgen.OpcodeF32DemoteF64:
		if state.unreachable {
			break
		}
		cvt := builder.AllocateInstruction()
		cvt.AsFdemote(state.pop())
		builder.InsertInstruction(cvt)
		state.push(cvt.Return())
	case wasmgen.OpcodeF64PromoteF32:
		if state.unreachable {
			break
		}
		cvt := builder.AllocateInstruction()
		cvt.AsFpromote(state.pop())
		builder.InsertInstruction(cvt)
		state.push(cvt.Return())

	case wasmgen.OpcodeVecPrefix:
		state.pc++
		vecOp := c.wasmFunctionBody[state.pc]
		switch vecOp {
		case wasmgen.OpcodeVecV128Const:
			state.pc++
			lo := binary.LittleEndian.Uint64(c.wasmFunctionBody[state.pc:])
			state.pc += 8
			hi := binary.LittleEndian.Uint64(c.wasmFunctionBody[state.pc:])
			state.pc += 7
			ret := builder.AllocateInstruction().AsVconst(lo, hi).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16Abs, wasmgen.OpcodeVecI16x8Abs, wasmgen.OpcodeVecI32x4Abs, wasmgen.OpcodeVecI64x2Abs:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16Abs:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8Abs:
				lane = clif.VecLaneI16x8
			case wasmgen.OpcodeVecI32x4Abs:
				lane = clif.VecLaneI32x4
			case wasmgen.OpcodeVecI64x2Abs:
				lane = clif.VecLaneI64x2
			}
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVIabs(v1, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16Neg, wasmgen.OpcodeVecI16x8Neg, wasmgen.OpcodeVecI32x4Neg, wasmgen.OpcodeVecI64x2Neg:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16Neg:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8Neg:
				lane = clif.VecLaneI16x8
			case wasmgen.OpcodeVecI32x4Neg:
				lane = clif.VecLaneI32x4
			case wasmgen.OpcodeVecI64x2Neg:
				lane = clif.VecLaneI64x2
			}
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVIneg(v1, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16Popcnt:
			if state.unreachable {
				break
			}
			lane := clif.VecLaneI8x16
			v1 := state.pop()

			ret := builder.AllocateInstruction().AsVIpopcnt(v1, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16Add, wasmgen.OpcodeVecI16x8Add, wasmgen.OpcodeVecI32x4Add, wasmgen.OpcodeVecI64x2Add:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16Add:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8Add:
				lane = clif.VecLaneI16x8
			case wasmgen.OpcodeVecI32x4Add:
				lane = clif.VecLaneI32x4
			case wasmgen.OpcodeVecI64x2Add:
				lane = clif.VecLaneI64x2
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVIadd(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16AddSatS, wasmgen.OpcodeVecI16x8AddSatS:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16AddSatS:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8AddSatS:
				lane = clif.VecLaneI16x8
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVSaddSat(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16AddSatU, wasmgen.OpcodeVecI16x8AddSatU:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16AddSatU:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8AddSatU:
				lane = clif.VecLaneI16x8
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVUaddSat(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16SubSatS, wasmgen.OpcodeVecI16x8SubSatS:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16SubSatS:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8SubSatS:
				lane = clif.VecLaneI16x8
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVSsubSat(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16SubSatU, wasmgen.OpcodeVecI16x8SubSatU:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16SubSatU:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8SubSatU:
				lane = clif.VecLaneI16x8
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVUsubSat(v1, v2, lane).Insert(builder).Return()
			state.push(ret)

		case wasmgen.OpcodeVecI8x16Sub, wasmgen.OpcodeVecI16x8Sub, wasmgen.OpcodeVecI32x4Sub, wasmgen.OpcodeVecI64x2Sub:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16Sub:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8Sub:
				lane = clif.VecLaneI16x8
			case wasmgen.OpcodeVecI32x4Sub:
				lane = clif.VecLaneI32x4
			case wasmgen.OpcodeVecI64x2Sub:
				lane = clif.VecLaneI64x2
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVIsub(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16MinS, wasmgen.OpcodeVecI16x8MinS, wasmgen.OpcodeVecI32x4MinS:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16MinS:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8MinS:
				lane = clif.VecLaneI16x8
			case wasmgen.OpcodeVecI32x4MinS:
				lane = clif.VecLaneI32x4
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVImin(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16MinU, wasmgen.OpcodeVecI16x8MinU, wasmgen.OpcodeVecI32x4MinU:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16MinU:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8MinU:
				lane = clif.VecLaneI16x8
			case wasmgen.OpcodeVecI32x4MinU:
				lane = clif.VecLaneI32x4
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVUmin(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16MaxS, wasmgen.OpcodeVecI16x8MaxS, wasmgen.OpcodeVecI32x4MaxS:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16MaxS:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8MaxS:
				lane = clif.VecLaneI16x8
			case wasmgen.OpcodeVecI32x4MaxS:
				lane = clif.VecLaneI32x4
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVImax(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16MaxU, wasmgen.OpcodeVecI16x8MaxU, wasmgen.OpcodeVecI32x4MaxU:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16MaxU:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8MaxU:
				lane = clif.VecLaneI16x8
			case wasmgen.OpcodeVecI32x4MaxU:
				lane = clif.VecLaneI32x4
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVUmax(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI8x16AvgrU, wasmgen.OpcodeVecI16x8AvgrU:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI8x16AvgrU:
				lane = clif.VecLaneI8x16
			case wasmgen.OpcodeVecI16x8AvgrU:
				lane = clif.VecLaneI16x8
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVAvgRound(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		case wasmgen.OpcodeVecI16x8Mul, wasmgen.OpcodeVecI32x4Mul, wasmgen.OpcodeVecI64x2Mul:
			if state.unreachable {
				break
			}
			var lane clif.VecLane
			switch vecOp {
			case wasmgen.OpcodeVecI16x8Mul:
				lane = clif.VecLaneI16x8
			case wasmgen.OpcodeVecI32x4Mul:
				lane = clif.VecLaneI32x4
			case wasmgen.OpcodeVecI64x2Mul:
				lane = clif.VecLaneI64x2
			}
			v2 := state.pop()
			v1 := state.pop()
			ret := builder.AllocateInstruction().AsVImul(v1, v2, lane).Insert(builder).Return()
			state.push(ret)
		default:
			panic("TODO: unsupported vector instruction: " + wasmgen.VectorInstructionName(vecOp))
		}
	default:
		panic("TODO: unsupported instruction: " + wasmgen.InstructionName(op))
	}

	if cotapi.FrontEndLoggingEnabled {
		fmt.Println("--------- Translated " + wasmgen.InstructionName(op) + " --------")
		fmt.Println("state: " + c.loweringState.String())
		fmt.Println(c.formatBuilder())
		fmt.Println("--------------------------")
	}
	c.loweringState.pc++
}

const (
	tableInstanceBaseAddressOffset = 0
	tableInstanceLenOffset         = tableInstanceBaseAddressOffset + 8
)

func (c *Compiler) lowerCallIndirect(typeIndex, tableIndex uint32) {
	builder := c.ssaBuilder
	state := c.state()

	targetOffsetInTable := state.pop()

	// Load the table.
	tableOffset := c.offset.TableOffset(int(tableIndex))
	loadTableInstancePtr := builder.AllocateInstruction()
	loadTableInstancePtr.AsLoad(c.moduleCtxPtrValue, tableOffset.U32(), clif.TypeI64)
	builder.InsertInstruction(loadTableInstancePtr)
	tableInstancePtr := loadTableInstancePtr.Return()

	// Load the table's length.
	loadTableLen := builder.AllocateInstruction()
	loadTableLen.AsLoad(tableInstancePtr, tableInstanceLenOffset, clif.TypeI32)
	builder.InsertInstruction(loadTableLen)
	tableLen := loadTableLen.Return()

	// Compare the length and the target, and trap if out of bounds.
	checkOOB := builder.AllocateInstruction()
	checkOOB.AsIcmp(targetOffsetInTable, tableLen, clif.IntegerCmpCondUnsignedGreaterThanOrEqual)
	builder.InsertInstruction(checkOOB)
	exitIfOOB := builder.AllocateInstruction()
	exitIfOOB.AsExitIfTrueWithCode(c.execCtxPtrValue, checkOOB.Return(), cotapi.ExitCodeTableOutOfBounds)
	builder.InsertInstruction(exitIfOOB)

	// Get the base address of wasmgen.TableInstance.References.
	loadTableBaseAddress := builder.AllocateInstruction()
	loadTableBaseAddress.AsLoad(tableInstancePtr, tableInstanceBaseAddressOffset, clif.TypeI64)
	builder.InsertInstruction(loadTableBaseAddress)
	tableBase := loadTableBaseAddress.Return()

	// Calculate the address of the target function. First we need to multiply targetOffsetInTable by 8 (pointer size).
	multiplyBy8 := builder.AllocateInstruction()
	three := builder.AllocateInstruction()
	three.AsIconst64(3)
	builder.InsertInstruction(three)
	multiplyBy8.AsIshl(targetOffsetInTable, three.Return())
	builder.InsertInstruction(multiplyBy8)
	targetOffsetInTableMultipliedBy8 := multiplyBy8.Return()
	// Then add the multiplied value to the base which results in the address of the target function (*cotapi.functionInstance)
	calcFunctionInstancePtrAddressInTable := builder.AllocateInstruction()
	calcFunctionInstancePtrAddressInTable.AsIadd(tableBase, targetOffsetInTableMultipliedBy8)
	builder.InsertInstruction(calcFunctionInstancePtrAddressInTable)
	functionInstancePtrAddress := calcFunctionInstancePtrAddressInTable.Return()
	loadFunctionInstancePtr := builder.AllocateInstruction()
	loadFunctionInstancePtr.AsLoad(functionInstancePtrAddress, 0, clif.TypeI64)
	builder.InsertInstruction(loadFunctionInstancePtr)
	functionInstancePtr := loadFunctionInstancePtr.Return()

	// Check if it is not the null pointer.
	zero := builder.AllocateInstruction()
	zero.AsIconst64(0)
	builder.InsertInstruction(zero)
	checkNull := builder.AllocateInstruction()
	checkNull.AsIcmp(functionInstancePtr, zero.Return(), clif.IntegerCmpCondEqual)
	builder.InsertInstruction(checkNull)
	exitIfNull := builder.AllocateInstruction()
	exitIfNull.AsExitIfTrueWithCode(c.execCtxPtrValue, checkNull.Return(), cotapi.ExitCodeIndirectCallNullPointer)
	builder.InsertInstruction(exitIfNull)

	// We need to do the type check. First, load the target function instance's typeID.
	loadTypeID := builder.AllocateInstruction()
	loadTypeID.AsLoad(functionInstancePtr, cotapi.FunctionInstanceTypeIDOffset, clif.TypeI32)
	builder.InsertInstruction(loadTypeID)
	actualTypeID := loadTypeID.Return()

	// Next, we load the expected TypeID:
	loadTypeIDsBegin := builder.AllocateInstruction()
	loadTypeIDsBegin.AsLoad(c.moduleCtxPtrValue, c.offset.TypeIDs1stElement.U32(), clif.TypeI64)
	builder.InsertInstruction(loadTypeIDsBegin)
	typeIDsBegin := loadTypeIDsBegin.Return()

	loadExpectedTypeID := builder.AllocateInstruction()
	loadExpectedTypeID.AsLoad(typeIDsBegin, uint32(typeIndex)*4 /* size of wasmgen.FunctionTypeID */, clif.TypeI32)
	builder.InsertInstruction(loadExpectedTypeID)
	expectedTypeID := loadExpectedTypeID.Return()

	// Check if the type ID matches.
	checkTypeID := builder.AllocateInstruction()
	checkTypeID.AsIcmp(actualTypeID, expectedTypeID, clif.IntegerCmpCondNotEqual)
	builder.InsertInstruction(checkTypeID)
	exitIfNotMatch := builder.AllocateInstruction()
	exitIfNotMatch.AsExitIfTrueWithCode(c.execCtxPtrValue, checkTypeID.Return(), cotapi.ExitCodeIndirectCallTypeMismatch)
	builder.InsertInstruction(exitIfNotMatch)

	// Now ready to call the function. Load the executable and moduleContextOpaquePtr from the function instance.
	loadExecutablePtr := builder.AllocateInstruction()
	loadExecutablePtr.AsLoad(functionInstancePtr, cotapi.FunctionInstanceExecutableOffset, clif.TypeI64)
	builder.InsertInstruction(loadExecutablePtr)
	executablePtr := loadExecutablePtr.Return()
	loadModuleContextOpaquePtr := builder.AllocateInstruction()
	loadModuleContextOpaquePtr.AsLoad(functionInstancePtr, cotapi.FunctionInstanceModuleContextOpaquePtrOffset, clif.TypeI64)
	builder.InsertInstruction(loadModuleContextOpaquePtr)
	moduleContextOpaquePtr := loadModuleContextOpaquePtr.Return()

	// TODO: reuse slice?
	typ := &c.m.TypeSection[typeIndex]
	argN := len(typ.Params)
	args := make([]clif.Value, argN+2)
	args[0] = c.execCtxPtrValue
	args[1] = moduleContextOpaquePtr
	state.nPopInto(argN, args[2:])

	// Before transfer the control to the callee, we have to store the current module's moduleContextPtr
	// into execContext.callerModuleContextPtr in case when the callee is a Go function.
	c.storeCallerModuleContext()

	call := builder.AllocateInstruction()
	call.AsCallIndirect(executablePtr, c.signatures[typ], args)
	builder.InsertInstruction(call)

	first, rest := call.Returns()
	if first.Valid() {
		state.push(first)
	}
	for _, v := range rest {
		state.push(v)
	}

	c.reloadAfterCall()
}

// memOpSetup inserts the bounds check and calculates the address of the memory operation (loads/stores).
func (c *Compiler) memOpSetup(baseAddr clif.Value, constOffset, operationSizeInBytes uint64) (address clif.Value) {
	builder := c.ssaBuilder

	ceil := constOffset + operationSizeInBytes
	ceilConst := builder.AllocateInstruction()
	ceilConst.AsIconst64(ceil)
	builder.InsertInstruction(ceilConst)

	// We calculate the offset in 64-bit space.
	extBaseAddr := builder.AllocateInstruction()
	extBaseAddr.AsUExtend(baseAddr, 32, 64)
	builder.InsertInstruction(extBaseAddr)

	// Note: memLen is already zero extended to 64-bit space at the load time.
	memLen := c.getMemoryLenValue(false)

	// baseAddrPlusCeil = baseAddr + ceil
	baseAddrPlusCeil := builder.AllocateInstruction()
	baseAddrPlusCeil.AsIadd(extBaseAddr.Return(), ceilConst.Return())
	builder.InsertInstruction(baseAddrPlusCeil)

	// Check for out of bounds memory access: `memLen >= baseAddrPlusCeil`.
	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(memLen, baseAddrPlusCeil.Return(), clif.IntegerCmpCondUnsignedLessThan)
	builder.InsertInstruction(cmp)
	exitIfNZ := builder.AllocateInstruction()
	exitIfNZ.AsExitIfTrueWithCode(c.execCtxPtrValue, cmp.Return(), cotapi.ExitCodeMemoryOutOfBounds)
	builder.InsertInstruction(exitIfNZ)

	// Load the value from memBase + extBaseAddr.
	memBase := c.getMemoryBaseValue(false)
	addrCalc := builder.AllocateInstruction()
	addrCalc.AsIadd(memBase, extBaseAddr.Return())
	builder.InsertInstruction(addrCalc)
	return addrCalc.Return()
}

func (c *Compiler) reloadAfterCall() {
	// Note that when these are not used in the following instructions, they will be optimized out.
	// So in any ways, we define them!

	// After calling any function, memory buffer might have changed. So we need to re-defined the variable.
	if c.needMemory {
		c.reloadMemoryBaseLen()
	}

	// Also, any mutable Global can change.
	for _, index := range c.mutableGlobalVariablesIndexes {
		_ = c.getWasmGlobalValue(index, true)
	}
}

func (c *Compiler) reloadMemoryBaseLen() {
	_ = c.getMemoryBaseValue(true)
	_ = c.getMemoryLenValue(true)
}

// globalInstanceValueOffset is the offsetOf .Value field of wasmgen.GlobalInstance.
const globalInstanceValueOffset = 8

func (c *Compiler) setWasmGlobalValue(index wasmgen.Index, v clif.Value) {
	variable := c.globalVariables[index]
	instanceOffset := c.offset.GlobalInstanceOffset(index)

	builder := c.ssaBuilder
	loadGlobalInstPtr := builder.AllocateInstruction()
	loadGlobalInstPtr.AsLoad(c.moduleCtxPtrValue, uint32(instanceOffset), clif.TypeI64)
	builder.InsertInstruction(loadGlobalInstPtr)

	store := builder.AllocateInstruction()
	store.AsStore(clif.OpcodeStore, v, loadGlobalInstPtr.Return(), uint32(globalInstanceValueOffset))
	builder.InsertInstruction(store)

	// The value has changed to `v`, so we record it.
	builder.DefineVariableInCurrentBB(variable, v)
}

func (c *Compiler) getWasmGlobalValue(index wasmgen.Index, forceLoad bool) clif.Value {
	variable := c.globalVariables[index]
	typ := c.globalVariablesTypes[index]
	instanceOffset := c.offset.GlobalInstanceOffset(index)

	builder := c.ssaBuilder
	if !forceLoad {
		if v := builder.FindValueInLinearPath(variable); v.Valid() {
			return v
		}
	}

	loadGlobalInstPtr := builder.AllocateInstruction()
	loadGlobalInstPtr.AsLoad(c.moduleCtxPtrValue, uint32(instanceOffset), clif.TypeI64)
	builder.InsertInstruction(loadGlobalInstPtr)

	load := builder.AllocateInstruction()
	load.AsLoad(loadGlobalInstPtr.Return(), uint32(globalInstanceValueOffset), typ)
	builder.InsertInstruction(load)
	ret := load.Return()
	builder.DefineVariableInCurrentBB(variable, ret)
	return ret
}

const (
	memoryInstanceBufOffset     = 0
	memoryInstanceBufSizeOffset = memoryInstanceBufOffset + 8
)

func (c *Compiler) getMemoryBaseValue(forceReload bool) clif.Value {
	builder := c.ssaBuilder
	variable := c.memoryBaseVariable
	if !forceReload {
		if v := builder.FindValueInLinearPath(variable); v.Valid() {
			return v
		}
	}

	var ret clif.Value
	if c.offset.LocalMemoryBegin < 0 {
		loadMemInstPtr := builder.AllocateInstruction()
		loadMemInstPtr.AsLoad(c.moduleCtxPtrValue, c.offset.ImportedMemoryBegin.U32(), clif.TypeI64)
		builder.InsertInstruction(loadMemInstPtr)
		memInstPtr := loadMemInstPtr.Return()

		loadBufPtr := builder.AllocateInstruction()
		loadBufPtr.AsLoad(memInstPtr, memoryInstanceBufOffset, clif.TypeI64)
		builder.InsertInstruction(loadBufPtr)
		ret = loadBufPtr.Return()
	} else {
		load := builder.AllocateInstruction()
		load.AsLoad(c.moduleCtxPtrValue, c.offset.LocalMemoryBase().U32(), clif.TypeI64)
		builder.InsertInstruction(load)
		ret = load.Return()
	}

	builder.DefineVariableInCurrentBB(variable, ret)
	return ret
}

func (c *Compiler) getMemoryLenValue(forceReload bool) clif.Value {
	variable := c.memoryLenVariable
	builder := c.ssaBuilder
	if !forceReload {
		if v := builder.FindValueInLinearPath(variable); v.Valid() {
			return v
		}
	}

	var ret clif.Value
	if c.offset.LocalMemoryBegin < 0 {
		loadMemInstPtr := builder.AllocateInstruction()
		loadMemInstPtr.AsLoad(c.moduleCtxPtrValue, c.offset.ImportedMemoryBegin.U32(), clif.TypeI64)
		builder.InsertInstruction(loadMemInstPtr)
		memInstPtr := loadMemInstPtr.Return()

		loadBufSizePtr := builder.AllocateInstruction()
		loadBufSizePtr.AsLoad(memInstPtr, memoryInstanceBufSizeOffset, clif.TypeI64)
		builder.InsertInstruction(loadBufSizePtr)

		ret = loadBufSizePtr.Return()
	} else {
		load := builder.AllocateInstruction()
		load.AsExtLoad(clif.OpcodeUload32, c.moduleCtxPtrValue, c.offset.LocalMemoryLen().U32(), true)
		builder.InsertInstruction(load)
		ret = load.Return()
	}

	builder.DefineVariableInCurrentBB(variable, ret)
	return ret
}

func (c *Compiler) insertIcmp(cond clif.IntegerCmpCond) {
	state, builder := c.state(), c.ssaBuilder
	y, x := state.pop(), state.pop()
	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(x, y, cond)
	builder.InsertInstruction(cmp)
	value := cmp.Return()
	state.push(value)
}

func (c *Compiler) insertFcmp(cond clif.FloatCmpCond) {
	state, builder := c.state(), c.ssaBuilder
	y, x := state.pop(), state.pop()
	cmp := builder.AllocateInstruction()
	cmp.AsFcmp(x, y, cond)
	builder.InsertInstruction(cmp)
	value := cmp.Return()
	state.push(value)
}

// storeCallerModuleContext stores the current module's moduleContextPtr into execContext.callerModuleContextPtr.
func (c *Compiler) storeCallerModuleContext() {
	builder := c.ssaBuilder
	execCtx := c.execCtxPtrValue
	store := builder.AllocateInstruction()
	store.AsStore(clif.OpcodeStore,
		c.moduleCtxPtrValue, execCtx, cotapi.ExecutionContextOffsets.CallerModuleContextPtr.U32())
	builder.InsertInstruction(store)
}

func (c *Compiler) readI32u() uint32 {
	v, n, err := leb128.LoadUint32(c.wasmFunctionBody[c.loweringState.pc+1:])
	if err != nil {
		panic(err) // shouldn't be reached since compilation comes after validation.
	}
	c.loweringState.pc += int(n)
	return v
}

func (c *Compiler) readI32s() int32 {
	v, n, err := leb128.LoadInt32(c.wasmFunctionBody[c.loweringState.pc+1:])
	if err != nil {
		panic(err) // shouldn't be reached since compilation comes after validation.
	}
	c.loweringState.pc += int(n)
	return v
}

func (c *Compiler) readI64s() int64 {
	v, n, err := leb128.LoadInt64(c.wasmFunctionBody[c.loweringState.pc+1:])
	if err != nil {
		panic(err) // shouldn't be reached since compilation comes after validation.
	}
	c.loweringState.pc += int(n)
	return v
}

func (c *Compiler) readF32() float32 {
	v := math.Float32frombits(binary.LittleEndian.Uint32(c.wasmFunctionBody[c.loweringState.pc+1:]))
	c.loweringState.pc += 4
	return v
}

func (c *Compiler) readF64() float64 {
	v := math.Float64frombits(binary.LittleEndian.Uint64(c.wasmFunctionBody[c.loweringState.pc+1:]))
	c.loweringState.pc += 8
	return v
}

// readBlockType reads the block type from the current position of the bytecode reader.
func (c *Compiler) readBlockType() *wasmgen.FunctionType {
	state := c.state()

	c.br.Reset(c.wasmFunctionBody[state.pc+1:])
	bt, num, err := wasmgen.DecodeBlockType(c.m.TypeSection, c.br, api.CoreFeaturesV2)
	if err != nil {
		panic(err) // shouldn't be reached since compilation comes after validation.
	}
	state.pc += int(num)

	return bt
}

func (c *Compiler) readMemArg() (align, offset uint32) {
	state := c.state()

	align, num, err := leb128.LoadUint32(c.wasmFunctionBody[state.pc+1:])
	if err != nil {
		panic(fmt.Errorf("read memory align: %v", err))
	}

	state.pc += int(num)
	offset, num, err = leb128.LoadUint32(c.wasmFunctionBody[state.pc+1:])
	if err != nil {
		panic(fmt.Errorf("read memory offset: %v", err))
	}

	state.pc += int(num)
	return align, offset
}

// insertJumpToBlock inserts a jump instruction to the given block in the current block.
func (c *Compiler) insertJumpToBlock(args []clif.Value, targetBlk clif.BasicBlock) {
	builder := c.ssaBuilder
	jmp := builder.AllocateInstruction()
	jmp.AsJump(args, targetBlk)
	builder.InsertInstruction(jmp)
}

func (c *Compiler) insertIntegerExtend(signed bool, from, to byte) {
	state := c.state()
	builder := c.ssaBuilder
	v := state.pop()
	extend := builder.AllocateInstruction()
	if signed {
		extend.AsSExtend(v, from, to)
	} else {
		extend.AsUExtend(v, from, to)
	}
	builder.InsertInstruction(extend)
	value := extend.Return()
	state.push(value)
}

func (c *Compiler) switchTo(originalStackLen int, targetBlk clif.BasicBlock) {
	if targetBlk.Preds() == 0 {
		c.loweringState.unreachable = true
	}

	// Now we should adjust the stack and start translating the continuation block.
	c.loweringState.values = c.loweringState.values[:originalStackLen]

	c.ssaBuilder.SetCurrentBlock(targetBlk)

	// At this point, blocks params consist only of the Wasm-level parameters,
	// (since it's added only when we are trying to resolve variable *inside* this block).
	for i := 0; i < targetBlk.Params(); i++ {
		value := targetBlk.Param(i)
		c.loweringState.push(value)
	}
}

// cloneValuesList clones the given values list.
func cloneValuesList(in []clif.Value) (ret []clif.Value) {
	ret = make([]clif.Value, len(in))
	for i := range ret {
		ret[i] = in[i]
	}
	return
}

// results returns the number of results of the current function.
func (c *Compiler) results() int {
	return len(c.wasmFunctionTyp.Results)
}

func (c *Compiler) lowerBrTable(labels []uint32, index clif.Value) {
	state := c.state()
	builder := c.ssaBuilder

	f := state.ctrlPeekAt(int(labels[0]))
	var numArgs int
	if f.isLoop() {
		numArgs = len(f.blockType.Params)
	} else {
		numArgs = len(f.blockType.Results)
	}

	targets := make([]clif.BasicBlock, len(labels))

	// We need trampoline blocks since depending on the target block structure, we might end up inserting moves before jumps,
	// which cannot be done with br_table. Instead, we can do such per-block moves in the trampoline blocks.
	// At the linking phase (very end of the backend), we can remove the unnecessary jumps, and therefore no runtime overhead.
	args := c.loweringState.nPeekDup(numArgs) // Args are always on the top of the stack.
	currentBlk := builder.CurrentBlock()
	for i, l := range labels {
		targetBlk, _ := state.brTargetArgNumFor(l)
		trampoline := builder.AllocateBasicBlock()
		builder.SetCurrentBlock(trampoline)
		c.insertJumpToBlock(args, targetBlk)
		targets[i] = trampoline
	}
	builder.SetCurrentBlock(currentBlk)

	// If the target block has no arguments, we can just jump to the target block.
	brTable := builder.AllocateInstruction()
	brTable.AsBrTable(index, targets)
	builder.InsertInstruction(brTable)

	for _, trampoline := range targets {
		builder.Seal(trampoline)
	}
}

func (l *loweringState) brTargetArgNumFor(labelIndex uint32) (targetBlk clif.BasicBlock, argNum int) {
	targetFrame := l.ctrlPeekAt(int(labelIndex))
	if targetFrame.isLoop() {
		targetBlk, argNum = targetFrame.blk, len(targetFrame.blockType.Params)
	} else {
		targetBlk, argNum = targetFrame.followingBlock, len(targetFrame.blockType.Results)
	}
	return
}
