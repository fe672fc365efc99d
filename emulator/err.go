package emulator

import (
	"github.com/bhimatak/cpusim16/translate"
)

var f = translate.From

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	return f("line %d %v", err.LineNo, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}

// ErrTickLimit indicates a run exceeded its tick budget.
type ErrTickLimit int

func (err ErrTickLimit) Error() string {
	return f("tick limit %v exceeded", int(err))
}

// ErrProfileRegister indicates an unknown register name in a run profile.
type ErrProfileRegister string

func (err ErrProfileRegister) Error() string {
	return f("profile register '%v' unknown", string(err))
}

// ErrProfileMemory indicates a memory pre-load extending past the end
// of memory.
type ErrProfileMemory uint16

func (err ErrProfileMemory) Error() string {
	return f("profile memory image at 0x%04x exceeds memory", uint16(err))
}
