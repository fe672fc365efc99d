// Package device provides I/O device models for the cpusim16 emulator.
// Devices operate at the byte level and are attached to the processor's
// single I/O port, serving the IN and OUT instructions.
package device

// Port defines the interface for all I/O devices in the cpusim16 system.
type Port interface {
	// Rewind resets the device to its initial state.
	Rewind()
	// ReadByte reads the next input byte, or io.EOF at end of input.
	ReadByte() (value byte, err error)
	// WriteByte writes a single byte to the output.
	WriteByte(value byte) error
}
