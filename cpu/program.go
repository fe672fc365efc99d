package cpu

import (
	"iter"
)

type Program struct {
	Opcodes []Opcode
}

type Debug struct {
	*Opcode
	Index int
}

// Debug looks up the source opcode covering a byte address, along with the
// index of the instruction word within it.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if int(addr) >= op.Addr && int(addr) < op.Addr+op.Size() {
			offset := int(addr) - op.Addr
			index := 0
			for _, code := range op.Codes[:len(op.Codes)-1] {
				size := int(code.Size())
				if offset < size {
					break
				}
				offset -= size
				index++
			}
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  index,
			}
			break
		}
	}

	return
}

// Binary returns the flat word image of the program.
func (prog *Program) Binary() (words []uint16) {
	for _, code := range prog.Codes() {
		words = append(words, code.Word)
		words = append(words, code.Immediates...)
	}

	return
}

// Codes iterates over the (byte address, instruction) pairs of the program.
func (prog *Program) Codes() iter.Seq2[uint16, Code] {
	return func(yield func(addr uint16, code Code) bool) {
		for _, op := range prog.Opcodes {
			addr := uint16(op.Addr)
			for _, code := range op.Codes {
				if !yield(addr, code) {
					return
				}
				addr += code.Size()
			}
		}
	}
}
