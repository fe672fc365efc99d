package emulator

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"

	"github.com/bhimatak/cpusim16/cpu"
	"github.com/bhimatak/cpusim16/device"
	"github.com/bhimatak/cpusim16/internal"
)

const (
	TICK_LIMIT = 1_000_000 // Default tick budget for a run.
)

var _emulator_defines = map[string]string{
	"TICK_LIMIT": fmt.Sprintf("%v", TICK_LIMIT),
}

// Emulator state. CPU + program listing + console device.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.

	Console device.Console // Console IO device.
}

// NewEmulator creates a new emulator with the console attached to the
// CPU's I/O port.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{},
	}

	emu.Cpu.Port = &emu.Console

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
		emu.Console.Defines(),
	)
}

// Assemble parses assembly text into the emulator's program listing,
// with the emulator's defines predefined as equates.
func (emu *Emulator) Assemble(input io.Reader) (err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}
	for name, value := range emu.Defines() {
		asm.Predefine(name, value)
	}

	prog, err := asm.Parse(input)
	if err != nil {
		return
	}

	emu.Program = prog

	return
}

// Reset the emulator state and reload the program image into memory.
func (emu *Emulator) Reset() (err error) {
	emu.Cpu.Verbose = emu.Verbose

	err = emu.Cpu.Reset()
	if err != nil {
		return
	}

	err = emu.Cpu.LoadProgram(emu.Program)

	return
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Code returns the current instruction code.
func (emu *Emulator) Code() cpu.Code {
	for addr, code := range emu.Program.Codes() {
		if emu.Cpu.Pc == addr {
			return code
		}
	}

	return cpu.Code{}
}

// Tick performs a single tick of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: lineno, Err: err}
		}
	}()

	err = emu.Cpu.Tick()
	if errors.Is(err, cpu.ErrHalted) {
		err = nil
		done = true
		return
	}
	if err != nil {
		return
	}

	done = emu.Cpu.Halted

	return
}

// Run ticks the emulator until the program halts or the tick limit is
// reached. A limit of 0 uses TICK_LIMIT.
func (emu *Emulator) Run(limit int) (err error) {
	if limit == 0 {
		limit = TICK_LIMIT
	}

	for range limit {
		var done bool
		done, err = emu.Tick()
		if err != nil || done {
			return
		}
	}

	err = ErrTickLimit(limit)

	return
}
