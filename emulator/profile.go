package emulator

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/bhimatak/cpusim16/cpu"
)

// MemoryImage is a run profile memory pre-load: consecutive words stored
// starting at Addr.
type MemoryImage struct {
	Addr  uint16   `yaml:"addr"`
	Words []uint16 `yaml:"words"`
}

// Profile is a run profile: tick budget, tracing, initial register values,
// memory pre-loads, and extra assembler defines.
type Profile struct {
	Limit     int               `yaml:"limit"`
	Trace     bool              `yaml:"trace"`
	Registers map[string]uint16 `yaml:"registers"`
	Memory    []MemoryImage     `yaml:"memory"`
	Defines   map[string]string `yaml:"defines"`
}

// LoadProfile decodes a YAML run profile. Unknown fields are errors.
func LoadProfile(input io.Reader) (prof *Profile, err error) {
	prof = &Profile{}

	dec := yaml.NewDecoder(input)
	dec.KnownFields(true)

	err = dec.Decode(prof)
	if err != nil {
		prof = nil
		return
	}

	return
}

// Apply sets the profile's register values and memory pre-loads on a
// freshly reset emulator.
func (prof *Profile) Apply(emu *Emulator) (err error) {
	for name, value := range prof.Registers {
		reg, ok := cpu.RegByName(name)
		if !ok {
			err = ErrProfileRegister(name)
			return
		}
		emu.Cpu.Register[reg] = value
	}

	for _, image := range prof.Memory {
		if int(image.Addr)+2*len(image.Words) > cpu.MEMORY_SIZE {
			err = ErrProfileMemory(image.Addr)
			return
		}
		addr := image.Addr
		for _, word := range image.Words {
			err = emu.Cpu.StoreWord(addr, word)
			if err != nil {
				return
			}
			addr += 2
		}
	}

	return
}
