package device

import (
	"errors"
	"io"
	"iter"
	"maps"
)

// Console provides sequential byte I/O for the IN and OUT instructions.
// It wraps an io.Reader for input and io.Writer for output. A nil Input
// reads as end of input; a nil Output discards writes.
type Console struct {
	Input  io.Reader
	Output io.Writer
}

// Defines returns an iter of defines for the device.
func (con *Console) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{})
}

// Rewind is not possible on console streams.
func (con *Console) Rewind() {
}

// ReadByte reads the next byte from the input stream, or io.EOF at
// end of input.
func (con *Console) ReadByte() (value byte, err error) {
	if con.Input == nil {
		err = io.EOF
		return
	}

	var one [1]byte
	_, err = io.ReadFull(con.Input, one[:])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return
	}

	value = one[0]

	return
}

// WriteByte writes a single byte to the output stream.
func (con *Console) WriteByte(value byte) (err error) {
	if con.Output == nil {
		return
	}

	_, err = con.Output.Write([]byte{value})

	return
}
