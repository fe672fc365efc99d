package cpu

import (
	"fmt"
)

// CodeOp is an instruction operation type.
type CodeOp int

//go:generate go tool stringer -linecomment -type=CodeOp
const (
	OP_NOP  = CodeOp(0)  // nop
	OP_HLT  = CodeOp(1)  // hlt
	OP_MOV  = CodeOp(2)  // mov
	OP_ADD  = CodeOp(3)  // add
	OP_SUB  = CodeOp(4)  // sub
	OP_INC  = CodeOp(5)  // inc
	OP_DEC  = CodeOp(6)  // dec
	OP_AND  = CodeOp(7)  // and
	OP_OR   = CodeOp(8)  // or
	OP_XOR  = CodeOp(9)  // xor
	OP_NOT  = CodeOp(10) // not
	OP_SHL  = CodeOp(11) // shl
	OP_SHR  = CodeOp(12) // shr
	OP_CMP  = CodeOp(13) // cmp
	OP_JMP  = CodeOp(14) // jmp
	OP_JE   = CodeOp(15) // je
	OP_JNE  = CodeOp(16) // jne
	OP_JL   = CodeOp(17) // jl
	OP_JG   = CodeOp(18) // jg
	OP_JC   = CodeOp(19) // jc
	OP_PUSH = CodeOp(20) // push
	OP_POP  = CodeOp(21) // pop
	OP_CALL = CodeOp(22) // call
	OP_RET  = CodeOp(23) // ret
	OP_IN   = CodeOp(24) // in
	OP_OUT  = CodeOp(25) // out
)

// CodeArg is an instruction operand decode type.
type CodeArg int

//go:generate go tool stringer -linecomment -type=CodeArg
const (
	ARG_REG_AX = CodeArg(0)  // ax
	ARG_REG_BX = CodeArg(1)  // bx
	ARG_REG_CX = CodeArg(2)  // cx
	ARG_REG_DX = CodeArg(3)  // dx
	ARG_IND_AX = CodeArg(4)  // [ax]
	ARG_IND_BX = CodeArg(5)  // [bx]
	ARG_IND_CX = CodeArg(6)  // [cx]
	ARG_IND_DX = CodeArg(7)  // [dx]
	ARG_IMM    = CodeArg(8)  // imm
	ARG_MEM    = CodeArg(9)  // [imm]
	ARG_NONE   = CodeArg(10) // -
)

// Writable returns true if the CodeArg represents a writable destination.
func (arg CodeArg) Writable() bool {
	return arg <= ARG_IND_DX || arg == ARG_MEM
}

// Opcode represents a line of assembled code with its source location and generated instructions.
type Opcode struct {
	LineNo    int
	Addr      int
	Words     []string
	Codes     []Code
	LinkLabel string
	LinkImm   int
}

// Size returns the number of memory bytes the opcode occupies.
func (op *Opcode) Size() (size int) {
	for _, code := range op.Codes {
		size += int(code.Size())
	}

	return
}

// Code represents a single instruction word with optional immediate values.
type Code struct {
	Word       uint16
	Immediates []uint16
}

// MakeCode creates an instruction word from an operation and its operands.
func MakeCode(op CodeOp, dst, src CodeArg, imms ...uint16) Code {
	return Code{
		Word:       (uint16(op) << 8) | ((uint16(dst) & 0xf) << 4) | (uint16(src) & 0xf),
		Immediates: imms,
	}
}

// MakeCodeHalt creates an end-of-program instruction.
func MakeCodeHalt() Code {
	return MakeCode(OP_HLT, ARG_NONE, ARG_NONE)
}

// Op returns the operation from the instruction word.
func (code Code) Op() CodeOp {
	return CodeOp((code.Word >> 8) & 0xff)
}

// Dst returns the destination operand code from the instruction word.
func (code Code) Dst() CodeArg {
	return CodeArg((code.Word >> 4) & 0xf)
}

// Src returns the source operand code from the instruction word.
func (code Code) Src() CodeArg {
	return CodeArg((code.Word >> 0) & 0xf)
}

// ImmediateNeed returns the number of 16-bit immediate words required by this instruction.
func (code Code) ImmediateNeed() (need int) {
	if code.Dst() == ARG_MEM {
		need += 1
	}

	src := code.Src()
	if src == ARG_IMM || src == ARG_MEM {
		need += 1
	}

	return
}

// Size returns the number of memory bytes the instruction occupies,
// including its immediate words.
func (code Code) Size() uint16 {
	return uint16(2 * (1 + len(code.Immediates)))
}

// String returns the assembly language representation of this instruction.
func (code Code) String() (out string) {
	op := code.Op()

	out = fmt.Sprintf("%v.%v.%v imm:%#v", op.String(), code.Dst().String(), code.Src().String(), code.Immediates)

	return
}
