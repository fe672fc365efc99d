package cpu

import (
	"errors"

	"github.com/bhimatak/cpusim16/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrHalted      = errors.New(f("cpu halted"))
	ErrStackEmpty  = errors.New(f("stack empty"))
	ErrStackFull   = errors.New(f("stack full"))
	ErrPortInvalid = errors.New(f("port not attached"))
	ErrProgramSize = errors.New(f("program too large for memory"))

	// Instruction decode errors
	ErrOpcodeDecode = errors.New(f("decode"))
	ErrOpcodeDst    = errors.New(f("dst"))
	ErrOpcodeSrc    = errors.New(f("src"))
	ErrOpcodeImm    = errors.New(f("imm"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrWordSyntax         = errors.New(f(".word syntax"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrLabelPair          = errors.New(f("multiple label references"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm    = errors.New(f(".endm without .macro"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeValueMissing = errors.New(f("value missing"))
	ErrTargetInvalid      = errors.New(f("target invalid"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
)

// ErrPcRange indicates a program counter outside the loaded program.
type ErrPcRange uint16

func (err ErrPcRange) Error() string {
	return f("pc 0x%04x outside program", uint16(err))
}

// ErrPcAlign indicates a program counter not aligned to an instruction word.
type ErrPcAlign uint16

func (err ErrPcAlign) Error() string {
	return f("pc 0x%04x not word aligned", uint16(err))
}

// ErrAddrRange indicates a word access that does not fit in memory.
type ErrAddrRange uint16

func (err ErrAddrRange) Error() string {
	return f("address 0x%04x out of range", uint16(err))
}

type ErrOpcode Code

func (eo ErrOpcode) Error() string {
	return f("bad opcode 0x%04x %v", uint16(eo.Word), Code(eo).String())
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseValue string

func (err ErrParseValue) Error() string {
	return f("'%v' is not a value, register, or label", string(err))
}

type ErrParseCharacter string

func (err ErrParseCharacter) Error() string {
	return f("'%v' is not a character", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err ErrMacro) Unwrap() error {
	return err.Err
}
