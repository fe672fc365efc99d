// Package cpu implements the 16-bit teaching processor and its assembler.
//
// The processor consists of four 16-bit general-purpose registers (AX-DX),
// a program counter, Zero/Sign/Carry condition flags, a bounded call stack,
// and a flat 64 KiB byte-addressable memory. Programs are assembled into
// packed 16-bit instruction words, loaded into memory at the code origin,
// and executed by a fetch/decode/execute loop.
//
// The assembler provides an x86-flavored assembly language for the
// instruction set, supporting labels, equates, macros, and compile-time
// expression evaluation.
package cpu
