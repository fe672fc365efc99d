package cpu

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bhimatak/cpusim16/device"
)

// progOf builds a Program with one opcode per instruction.
func progOf(codes ...Code) (prog *Program) {
	prog = &Program{}

	addr := 0
	for n, code := range codes {
		prog.Opcodes = append(prog.Opcodes, Opcode{
			LineNo:  n + 1,
			Addr:    addr,
			Codes:   []Code{code},
			LinkImm: -1,
		})
		addr += int(code.Size())
	}

	return
}

// runCodes loads a program and ticks it to completion.
func runCodes(t *testing.T, cpu *Cpu, codes ...Code) (err error) {
	t.Helper()

	err = cpu.LoadProgram(progOf(codes...))
	if err != nil {
		return
	}

	for {
		err = cpu.Tick()
		if errors.Is(err, ErrHalted) {
			err = nil
			return
		}
		if err != nil {
			return
		}
	}
}

func TestStoreLoadWord(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()

	err := cpu.StoreWord(0x100, 0x1234)
	assert.NoError(err)

	// Little-endian, low byte masked with a bitwise and.
	assert.Equal(byte(0x34), cpu.Memory[0x100])
	assert.Equal(byte(0x12), cpu.Memory[0x101])

	val, err := cpu.LoadWord(0x100)
	assert.NoError(err)
	assert.Equal(uint16(0x1234), val)

	// The last valid word address is 0xFFFE.
	err = cpu.StoreWord(0xFFFE, 0xBEEF)
	assert.NoError(err)
	val, err = cpu.LoadWord(0xFFFE)
	assert.NoError(err)
	assert.Equal(uint16(0xBEEF), val)

	err = cpu.StoreWord(0xFFFF, 0x5555)
	var erange ErrAddrRange
	assert.ErrorAs(err, &erange)
	assert.Equal(uint16(0xFFFF), uint16(erange))

	_, err = cpu.LoadWord(0xFFFF)
	assert.ErrorAs(err, &erange)
}

func TestExecuteAlu(t *testing.T) {
	table := [](struct {
		name  string
		codes []Code
		ax    uint16
		zero  bool
		sign  bool
		carry bool
	}){
		{"mov", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0x1234),
			MakeCodeHalt(),
		}, 0x1234, false, false, false},
		{"add", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0x1200),
			MakeCode(OP_ADD, ARG_REG_AX, ARG_IMM, 0x0034),
			MakeCodeHalt(),
		}, 0x1234, false, false, false},
		{"add_wrap", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0xFFFF),
			MakeCode(OP_ADD, ARG_REG_AX, ARG_IMM, 1),
			MakeCodeHalt(),
		}, 0, true, false, true},
		{"sub", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 7),
			MakeCode(OP_SUB, ARG_REG_AX, ARG_IMM, 5),
			MakeCodeHalt(),
		}, 2, false, false, false},
		{"sub_borrow", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 5),
			MakeCode(OP_SUB, ARG_REG_AX, ARG_IMM, 7),
			MakeCodeHalt(),
		}, 0xFFFE, false, true, true},
		{"cmp_equal", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 5),
			MakeCode(OP_CMP, ARG_REG_AX, ARG_IMM, 5),
			MakeCodeHalt(),
		}, 5, true, false, false},
		{"and", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0xFF0F),
			MakeCode(OP_AND, ARG_REG_AX, ARG_IMM, 0x00FF),
			MakeCodeHalt(),
		}, 0x000F, false, false, false},
		{"or", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0xF000),
			MakeCode(OP_OR, ARG_REG_AX, ARG_IMM, 0x000F),
			MakeCodeHalt(),
		}, 0xF00F, false, true, false},
		{"xor_self", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0x1234),
			MakeCode(OP_XOR, ARG_REG_AX, ARG_REG_AX),
			MakeCodeHalt(),
		}, 0, true, false, false},
		{"shl_carry", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0x8001),
			MakeCode(OP_SHL, ARG_REG_AX, ARG_IMM, 1),
			MakeCodeHalt(),
		}, 0x0002, false, false, true},
		{"shr_carry", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 3),
			MakeCode(OP_SHR, ARG_REG_AX, ARG_IMM, 1),
			MakeCodeHalt(),
		}, 1, false, false, true},
		{"not", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0x00FF),
			MakeCode(OP_NOT, ARG_REG_AX, ARG_NONE),
			MakeCodeHalt(),
		}, 0xFF00, false, true, false},
		{"inc_wrap", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0xFFFF),
			MakeCode(OP_INC, ARG_REG_AX, ARG_NONE),
			MakeCodeHalt(),
		}, 0, true, false, false},
		{"dec", []Code{
			MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 1),
			MakeCode(OP_DEC, ARG_REG_AX, ARG_NONE),
			MakeCodeHalt(),
		}, 0, true, false, false},
	}

	for _, entry := range table {
		assert := assert.New(t)

		cpu := NewCpu()
		err := runCodes(t, cpu, entry.codes...)
		assert.NoError(err, entry.name)

		assert.Equal(entry.ax, cpu.Register[REG_AX], entry.name)
		assert.Equal(entry.zero, cpu.Zero, entry.name)
		assert.Equal(entry.sign, cpu.Sign, entry.name)
		assert.Equal(entry.carry, cpu.Carry, entry.name)
		assert.True(cpu.Halted, entry.name)
	}
}

func TestExecuteMemory(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	err := runCodes(t, cpu,
		MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0xCAFE),
		MakeCode(OP_MOV, ARG_MEM, ARG_REG_AX, 0x0200),
		MakeCode(OP_MOV, ARG_REG_BX, ARG_MEM, 0x0200),
		MakeCodeHalt(),
	)
	assert.NoError(err)

	assert.Equal(uint16(0xCAFE), cpu.Register[REG_BX])
	assert.Equal(byte(0xFE), cpu.Memory[0x0200])
	assert.Equal(byte(0xCA), cpu.Memory[0x0201])
}

func TestExecuteIndirect(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	err := runCodes(t, cpu,
		MakeCode(OP_MOV, ARG_REG_BX, ARG_IMM, 0x0300),
		MakeCode(OP_MOV, ARG_IND_BX, ARG_IMM, 0x0077),
		MakeCode(OP_MOV, ARG_REG_CX, ARG_IND_BX),
		MakeCodeHalt(),
	)
	assert.NoError(err)

	assert.Equal(uint16(0x0077), cpu.Register[REG_CX])
	val, err := cpu.LoadWord(0x0300)
	assert.NoError(err)
	assert.Equal(uint16(0x0077), val)
}

func TestExecuteJump(t *testing.T) {
	assert := assert.New(t)

	// 0: mov ax 1
	// 4: jmp 12
	// 8: mov ax 2   (skipped)
	// 12: hlt
	cpu := NewCpu()
	err := runCodes(t, cpu,
		MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 1),
		MakeCode(OP_JMP, ARG_NONE, ARG_IMM, 12),
		MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 2),
		MakeCodeHalt(),
	)
	assert.NoError(err)

	assert.Equal(uint16(1), cpu.Register[REG_AX])
	assert.Equal(3, cpu.Ticks)
}

func TestExecuteLoop(t *testing.T) {
	assert := assert.New(t)

	// 0: mov cx 3
	// 4: dec cx
	// 6: jne 4
	// 10: hlt
	cpu := NewCpu()
	err := runCodes(t, cpu,
		MakeCode(OP_MOV, ARG_REG_CX, ARG_IMM, 3),
		MakeCode(OP_DEC, ARG_REG_CX, ARG_NONE),
		MakeCode(OP_JNE, ARG_NONE, ARG_IMM, 4),
		MakeCodeHalt(),
	)
	assert.NoError(err)

	assert.Equal(uint16(0), cpu.Register[REG_CX])
	assert.True(cpu.Zero)
	assert.Equal(8, cpu.Ticks)
}

func TestExecuteCall(t *testing.T) {
	assert := assert.New(t)

	// 0: mov ax 1
	// 4: call 10
	// 8: hlt
	// 10: mov ax 2
	// 14: ret
	cpu := NewCpu()
	err := runCodes(t, cpu,
		MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 1),
		MakeCode(OP_CALL, ARG_NONE, ARG_IMM, 10),
		MakeCodeHalt(),
		MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 2),
		MakeCode(OP_RET, ARG_NONE, ARG_NONE),
	)
	assert.NoError(err)

	assert.Equal(uint16(2), cpu.Register[REG_AX])
	assert.True(cpu.Stack.Empty())
}

func TestExecutePushPop(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	err := runCodes(t, cpu,
		MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0x1111),
		MakeCode(OP_MOV, ARG_REG_BX, ARG_IMM, 0x2222),
		MakeCode(OP_PUSH, ARG_NONE, ARG_REG_AX),
		MakeCode(OP_PUSH, ARG_NONE, ARG_REG_BX),
		MakeCode(OP_POP, ARG_REG_CX, ARG_NONE),
		MakeCode(OP_POP, ARG_REG_DX, ARG_NONE),
		MakeCodeHalt(),
	)
	assert.NoError(err)

	assert.Equal(uint16(0x2222), cpu.Register[REG_CX])
	assert.Equal(uint16(0x1111), cpu.Register[REG_DX])
}

func TestExecuteStackFull(t *testing.T) {
	assert := assert.New(t)

	var codes []Code
	for range STACK_LIMIT + 1 {
		codes = append(codes, MakeCode(OP_PUSH, ARG_NONE, ARG_REG_AX))
	}
	codes = append(codes, MakeCodeHalt())

	cpu := NewCpu()
	err := runCodes(t, cpu, codes...)
	assert.ErrorIs(err, ErrStackFull)
	assert.Equal(STACK_LIMIT, len(cpu.Stack.Data))
}

func TestExecuteStackEmpty(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	err := runCodes(t, cpu,
		MakeCode(OP_POP, ARG_REG_AX, ARG_NONE),
		MakeCodeHalt(),
	)
	assert.ErrorIs(err, ErrStackEmpty)
}

func TestExecutePcRange(t *testing.T) {
	assert := assert.New(t)

	// No halt; execution runs off the end of the program.
	cpu := NewCpu()
	err := runCodes(t, cpu,
		MakeCode(OP_NOP, ARG_NONE, ARG_NONE),
	)

	var erange ErrPcRange
	assert.ErrorAs(err, &erange)
	assert.Equal(uint16(2), uint16(erange))
}

func TestExecutePort(t *testing.T) {
	assert := assert.New(t)

	con := &device.Console{
		Input: strings.NewReader("A"),
	}
	out := &bytes.Buffer{}
	con.Output = out

	cpu := NewCpu()
	cpu.Port = con

	err := runCodes(t, cpu,
		MakeCode(OP_IN, ARG_REG_AX, ARG_NONE),
		MakeCode(OP_OUT, ARG_NONE, ARG_REG_AX),
		MakeCode(OP_IN, ARG_REG_BX, ARG_NONE),
		MakeCodeHalt(),
	)
	assert.NoError(err)

	assert.Equal(uint16('A'), cpu.Register[REG_AX])
	assert.Equal([]byte("A"), out.Bytes())

	// End of input reads as zero with carry set.
	assert.Equal(uint16(0), cpu.Register[REG_BX])
	assert.True(cpu.Carry)
}

func TestExecutePortMissing(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	err := runCodes(t, cpu,
		MakeCode(OP_OUT, ARG_NONE, ARG_REG_AX),
		MakeCodeHalt(),
	)
	assert.ErrorIs(err, ErrPortInvalid)
}

func TestReset(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	err := runCodes(t, cpu,
		MakeCode(OP_MOV, ARG_REG_AX, ARG_IMM, 0x1234),
		MakeCodeHalt(),
	)
	assert.NoError(err)
	assert.True(cpu.Halted)
	assert.NotZero(cpu.Ticks)

	err = cpu.Reset()
	assert.NoError(err)

	assert.Equal(uint16(0), cpu.Register[REG_AX])
	assert.Equal(uint16(CODE_ORIGIN), cpu.Pc)
	assert.Equal(0, cpu.Ticks)
	assert.False(cpu.Halted)
	assert.Equal(byte(0), cpu.Memory[CODE_ORIGIN])
}

func TestRegByName(t *testing.T) {
	assert := assert.New(t)

	reg, ok := RegByName("AX")
	assert.True(ok)
	assert.Equal(REG_AX, reg)

	reg, ok = RegByName("dx")
	assert.True(ok)
	assert.Equal(REG_DX, reg)

	_, ok = RegByName("ex")
	assert.False(ok)
}

func TestCpuString(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	text := cpu.String()

	assert.Contains(text, "ax: 0000")
	assert.Contains(text, "pc: 0000")
	assert.Contains(text, "stack: ----")
}

func TestCpuDefines(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()

	defines := map[string]string{}
	for name, value := range cpu.Defines() {
		defines[name] = value
	}

	assert.Equal("65536", defines["MEMORY_SIZE"])
	assert.Equal("16", defines["STACK_LIMIT"])
	assert.Equal("0", defines["CODE_ORIGIN"])
}
