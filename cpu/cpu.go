package cpu

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"strings"

	"github.com/bhimatak/cpusim16/device"
)

// Port is the byte I/O device interface used by the IN and OUT instructions.
type Port device.Port

const (
	MEMORY_SIZE = 65536 // Flat memory size in bytes.
	CODE_ORIGIN = 0     // Byte address programs are loaded at.
)

var _cpu_defines = map[string]string{
	"MEMORY_SIZE": fmt.Sprintf("%v", MEMORY_SIZE),
	"STACK_LIMIT": fmt.Sprintf("%v", STACK_LIMIT),
	"CODE_ORIGIN": fmt.Sprintf("%v", CODE_ORIGIN),
}

// Reg is a register bank index.
type Reg int

const (
	REG_AX = Reg(0)
	REG_BX = Reg(1)
	REG_CX = Reg(2)
	REG_DX = Reg(3)
)

// regMap maps register names to register bank indexes.
var regMap = map[string]Reg{
	"ax": REG_AX,
	"bx": REG_BX,
	"cx": REG_CX,
	"dx": REG_DX,
}

// RegByName resolves a symbolic register name, case-insensitively.
func RegByName(name string) (reg Reg, ok bool) {
	reg, ok = regMap[strings.ToLower(name)]
	return
}

// Cpu is the simulation context for the 16-bit teaching processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Register [4]uint16 // Register bank (AX, BX, CX, DX).
	Pc       uint16    // Program counter, a byte address into memory.
	Zero     bool      // Zero flag.
	Sign     bool      // Sign flag (bit 15 of the last result).
	Carry    bool      // Carry flag.
	Halted   bool      // Set by HLT.

	Memory [MEMORY_SIZE]byte // Flat byte-addressable memory.
	Stack  Stack             // Call/data stack simulation.

	CodeEnd uint16 // First byte address past the loaded program.
	Ticks   int    // Executed instruction counter.

	Port Port // IN/OUT device.
}

// NewCpu creates a new CPU with zeroed state.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	regs := []string{
		"ax", "bx", "cx", "dx",
		"pc",
		"flags",
		"stack",
		"ticks",
	}
	for _, reg := range regs {
		var strval string
		switch reg {
		case "ax", "bx", "cx", "dx":
			val := cpu.Register[regMap[reg]]
			strval = fmt.Sprintf("%04X", val)
		case "pc":
			strval = fmt.Sprintf("%04X", cpu.Pc)
		case "flags":
			strval = fmt.Sprintf("z=%v s=%v c=%v", cpu.Zero, cpu.Sign, cpu.Carry)
		case "stack":
			val, ok := cpu.Stack.Peek()
			if ok {
				strval = fmt.Sprintf("%04X", val)
			} else {
				strval = "----"
			}
		case "ticks":
			strval = fmt.Sprintf("%v", cpu.Ticks)
		}
		text += fmt.Sprintf("% 5s: %v\n", reg, strval)
	}

	return
}

// Reset the CPU state.
// - Clears the registers, flags, stack, and memory.
// - Zeros statistics counters.
// - Rewinds the attached port.
// - Sets the program counter to the code origin.
func (cpu *Cpu) Reset() (err error) {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	clear(cpu.Memory[:])
	cpu.Stack.Reset()
	cpu.Zero = false
	cpu.Sign = false
	cpu.Carry = false
	cpu.Halted = false
	cpu.Pc = CODE_ORIGIN
	cpu.CodeEnd = CODE_ORIGIN
	cpu.Ticks = 0

	if cpu.Port != nil {
		cpu.Port.Rewind()
	}

	return
}

// StoreByte writes a byte to memory.
func (cpu *Cpu) StoreByte(addr uint16, value byte) (err error) {
	cpu.Memory[addr] = value

	return
}

// LoadByte reads a byte from memory.
func (cpu *Cpu) LoadByte(addr uint16) (value byte, err error) {
	value = cpu.Memory[addr]

	return
}

// StoreWord writes a 16-bit word to memory, low byte first.
// The word must fit entirely in memory.
func (cpu *Cpu) StoreWord(addr uint16, value uint16) (err error) {
	if int(addr)+1 >= MEMORY_SIZE {
		err = ErrAddrRange(addr)
		return
	}

	cpu.Memory[addr] = byte(value & 0xff)
	cpu.Memory[addr+1] = byte((value >> 8) & 0xff)

	return
}

// LoadWord reads a 16-bit word from memory, low byte first.
func (cpu *Cpu) LoadWord(addr uint16) (value uint16, err error) {
	if int(addr)+1 >= MEMORY_SIZE {
		err = ErrAddrRange(addr)
		return
	}

	value = (uint16(cpu.Memory[addr+1]) << 8) | uint16(cpu.Memory[addr])

	return
}

// LoadProgram encodes the assembled program into memory at the code origin,
// and records the end of the loaded image.
func (cpu *Cpu) LoadProgram(prog *Program) (err error) {
	words := prog.Binary()
	if CODE_ORIGIN+len(words)*2 >= MEMORY_SIZE {
		err = ErrProgramSize
		return
	}

	addr := uint16(CODE_ORIGIN)
	for _, word := range words {
		err = cpu.StoreWord(addr, word)
		if err != nil {
			return
		}
		addr += 2
	}

	cpu.CodeEnd = addr

	return
}

// FetchCode fetches the instruction at the program counter, along with
// its immediate words.
func (cpu *Cpu) FetchCode() (code Code, err error) {
	if cpu.Halted {
		err = ErrHalted
		return
	}

	if cpu.Pc%2 != 0 {
		err = ErrPcAlign(cpu.Pc)
		return
	}

	if cpu.Pc >= cpu.CodeEnd {
		err = ErrPcRange(cpu.Pc)
		return
	}

	word, err := cpu.LoadWord(cpu.Pc)
	if err != nil {
		return
	}
	code = Code{Word: word}

	addr := cpu.Pc
	for range code.ImmediateNeed() {
		addr += 2
		if addr >= cpu.CodeEnd {
			err = ErrOpcodeImm
			return
		}
		var imm uint16
		imm, err = cpu.LoadWord(addr)
		if err != nil {
			return
		}
		code.Immediates = append(code.Immediates, imm)
	}

	return
}

// Tick executes a single CPU instruction cycle.
func (cpu *Cpu) Tick() (err error) {
	code, err := cpu.FetchCode()
	if err != nil {
		return
	}

	err = cpu.Execute(code)

	return
}

// Execute executes a single decoded instruction.
func (cpu *Cpu) Execute(code Code) (err error) {
	defer func() {
		if err != nil && !errors.Is(err, ErrHalted) {
			err = errors.Join(ErrOpcode(code), err)
		}
	}()
	if cpu.Verbose {
		log.Printf("%04x: %v", cpu.Pc, code)
	}

	next_pc := cpu.Pc + code.Size()

	op := code.Op()
	dst := code.Dst()
	src := code.Src()
	imms := code.Immediates

	switch op {
	case OP_NOP:
		if dst != ARG_NONE || src != ARG_NONE {
			err = ErrOpcodeDecode
			return
		}
	case OP_HLT:
		if dst != ARG_NONE || src != ARG_NONE {
			err = ErrOpcodeDecode
			return
		}
		cpu.Halted = true
	case OP_MOV, OP_ADD, OP_SUB, OP_AND, OP_OR, OP_XOR, OP_SHL, OP_SHR, OP_CMP:
		var input, val uint16
		var set_target func(value uint16) error
		input, set_target, imms, err = cpu.getTarget(dst, imms)
		if err != nil {
			err = errors.Join(ErrOpcodeDst, err)
			return
		}
		val, imms, err = cpu.getValue(src, imms)
		if err != nil {
			err = errors.Join(ErrOpcodeSrc, err)
			return
		}
		output, carry, has_carry := cpu.doAlu(op, input, val)
		if op != OP_MOV {
			cpu.setZeroSign(output)
			if has_carry {
				cpu.Carry = carry
			}
		}
		if op != OP_CMP {
			err = set_target(output)
			if err != nil {
				err = errors.Join(ErrOpcodeDst, err)
				return
			}
		}
	case OP_NOT, OP_INC, OP_DEC:
		if src != ARG_NONE {
			err = ErrOpcodeSrc
			return
		}
		var input uint16
		var set_target func(value uint16) error
		input, set_target, imms, err = cpu.getTarget(dst, imms)
		if err != nil {
			err = errors.Join(ErrOpcodeDst, err)
			return
		}
		var output uint16
		switch op {
		case OP_NOT:
			output = ^input
		case OP_INC:
			output = input + 1
		case OP_DEC:
			output = input - 1
		}
		cpu.setZeroSign(output)
		err = set_target(output)
		if err != nil {
			err = errors.Join(ErrOpcodeDst, err)
			return
		}
	case OP_JMP, OP_JE, OP_JNE, OP_JL, OP_JG, OP_JC:
		if dst != ARG_NONE {
			err = ErrOpcodeDst
			return
		}
		var target uint16
		target, imms, err = cpu.getValue(src, imms)
		if err != nil {
			err = errors.Join(ErrOpcodeSrc, err)
			return
		}
		var taken bool
		switch op {
		case OP_JMP:
			taken = true
		case OP_JE:
			taken = cpu.Zero
		case OP_JNE:
			taken = !cpu.Zero
		case OP_JL:
			taken = cpu.Sign
		case OP_JG:
			taken = !cpu.Zero && !cpu.Sign
		case OP_JC:
			taken = cpu.Carry
		}
		if taken {
			next_pc = target
		}
	case OP_PUSH:
		if dst != ARG_NONE {
			err = ErrOpcodeDst
			return
		}
		var val uint16
		val, imms, err = cpu.getValue(src, imms)
		if err != nil {
			err = errors.Join(ErrOpcodeSrc, err)
			return
		}
		if cpu.Stack.Full() {
			err = ErrStackFull
			return
		}
		cpu.Stack.Push(val)
	case OP_POP:
		if src != ARG_NONE {
			err = ErrOpcodeSrc
			return
		}
		var set_target func(value uint16) error
		_, set_target, imms, err = cpu.getTarget(dst, imms)
		if err != nil {
			err = errors.Join(ErrOpcodeDst, err)
			return
		}
		val, ok := cpu.Stack.Pop()
		if !ok {
			err = ErrStackEmpty
			return
		}
		err = set_target(val)
		if err != nil {
			err = errors.Join(ErrOpcodeDst, err)
			return
		}
	case OP_CALL:
		if dst != ARG_NONE {
			err = ErrOpcodeDst
			return
		}
		var target uint16
		target, imms, err = cpu.getValue(src, imms)
		if err != nil {
			err = errors.Join(ErrOpcodeSrc, err)
			return
		}
		if cpu.Stack.Full() {
			err = ErrStackFull
			return
		}
		cpu.Stack.Push(next_pc)
		next_pc = target
	case OP_RET:
		if dst != ARG_NONE || src != ARG_NONE {
			err = ErrOpcodeDecode
			return
		}
		val, ok := cpu.Stack.Pop()
		if !ok {
			err = ErrStackEmpty
			return
		}
		next_pc = val
	case OP_IN:
		if src != ARG_NONE {
			err = ErrOpcodeSrc
			return
		}
		if cpu.Port == nil {
			err = ErrPortInvalid
			return
		}
		var set_target func(value uint16) error
		_, set_target, imms, err = cpu.getTarget(dst, imms)
		if err != nil {
			err = errors.Join(ErrOpcodeDst, err)
			return
		}
		var val uint16
		b, rerr := cpu.Port.ReadByte()
		switch {
		case errors.Is(rerr, io.EOF):
			// End of input reads as zero with the carry flag set.
			cpu.Carry = true
		case rerr != nil:
			err = rerr
			return
		default:
			val = uint16(b)
			cpu.Carry = false
		}
		err = set_target(val)
		if err != nil {
			err = errors.Join(ErrOpcodeDst, err)
			return
		}
	case OP_OUT:
		if dst != ARG_NONE {
			err = ErrOpcodeDst
			return
		}
		if cpu.Port == nil {
			err = ErrPortInvalid
			return
		}
		var val uint16
		val, imms, err = cpu.getValue(src, imms)
		if err != nil {
			err = errors.Join(ErrOpcodeSrc, err)
			return
		}
		err = cpu.Port.WriteByte(byte(val & 0xff))
		if err != nil {
			return
		}
	default:
		err = ErrOpcodeDecode
		return
	}

	if len(imms) != 0 {
		err = ErrOpcodeImm
		return
	}

	cpu.Pc = next_pc
	cpu.Ticks += 1

	return
}

// setZeroSign updates the Zero and Sign flags from a result value.
func (cpu *Cpu) setZeroSign(result uint16) {
	cpu.Zero = result == 0
	cpu.Sign = (result & 0x8000) != 0
}

// getTarget resolves a destination operand into its current value and a
// writer, consuming an immediate word where the operand requires one.
func (cpu *Cpu) getTarget(dst CodeArg, imms_in []uint16) (input uint16, set func(value uint16) error, imms []uint16, err error) {
	imms = imms_in

	switch {
	case dst >= ARG_REG_AX && dst <= ARG_REG_DX:
		reg := Reg(dst)
		input = cpu.Register[reg]
		set = func(value uint16) error {
			cpu.Register[reg] = value
			return nil
		}
	case dst >= ARG_IND_AX && dst <= ARG_IND_DX:
		addr := cpu.Register[dst-ARG_IND_AX]
		input, err = cpu.LoadWord(addr)
		if err != nil {
			return
		}
		set = func(value uint16) error {
			return cpu.StoreWord(addr, value)
		}
	case dst == ARG_MEM:
		if len(imms) < 1 {
			err = ErrOpcodeImm
			return
		}
		addr := imms[0]
		imms = imms[1:]
		input, err = cpu.LoadWord(addr)
		if err != nil {
			return
		}
		set = func(value uint16) error {
			return cpu.StoreWord(addr, value)
		}
	default:
		err = ErrTargetInvalid
	}

	return
}

// getValue gets the value specified by the operand code, based on CPU
// state or the immediate words that followed the instruction.
func (cpu *Cpu) getValue(src CodeArg, imms_in []uint16) (value uint16, imms []uint16, err error) {
	imms = imms_in

	switch {
	case src >= ARG_REG_AX && src <= ARG_REG_DX:
		value = cpu.Register[Reg(src)]
	case src >= ARG_IND_AX && src <= ARG_IND_DX:
		value, err = cpu.LoadWord(cpu.Register[src-ARG_IND_AX])
	case src == ARG_IMM:
		if len(imms) < 1 {
			err = ErrOpcodeImm
			return
		}
		value = imms[0]
		imms = imms[1:]
	case src == ARG_MEM:
		if len(imms) < 1 {
			err = ErrOpcodeImm
			return
		}
		value, err = cpu.LoadWord(imms[0])
		imms = imms[1:]
	default:
		err = ErrOpcodeDecode
	}

	return
}

// doAlu performs the requested ALU action, and returns the output value.
// All arithmetic is modulo 2^16.
func (cpu *Cpu) doAlu(op CodeOp, input uint16, value uint16) (output uint16, carry bool, has_carry bool) {
	switch op {
	case OP_MOV:
		output = value
	case OP_ADD:
		sum := uint32(input) + uint32(value)
		output = uint16(sum)
		carry = sum > 0xffff
		has_carry = true
	case OP_SUB, OP_CMP:
		output = input - value
		carry = value > input
		has_carry = true
	case OP_AND:
		output = input & value
	case OP_OR:
		output = input | value
	case OP_XOR:
		output = input ^ value
	case OP_SHL:
		value &= 0xf // clamp to 15 bits of shift
		output = input << value
		if value > 0 {
			carry = ((input >> (16 - value)) & 1) != 0
		}
		has_carry = true
	case OP_SHR:
		value &= 0xf // clamp to 15 bits of shift
		output = input >> value
		if value > 0 {
			carry = ((input >> (value - 1)) & 1) != 0
		}
		has_carry = true
	}

	return
}
