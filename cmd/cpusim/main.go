package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/bhimatak/cpusim16/cpu"
	"github.com/bhimatak/cpusim16/emulator"
)

func main() {
	var compile string
	var profile string
	var input string
	var output string
	var limit int
	var trace bool
	var dump bool
	var verbose bool

	flag.StringVar(&compile, "c", "", ".asm file to compile")
	flag.StringVar(&profile, "p", "", ".yaml run profile")
	flag.StringVar(&input, "i", "-", "Console input")
	flag.StringVar(&output, "o", "-", "Console output")
	flag.IntVar(&limit, "l", 0, "Tick limit (0 for the default)")
	flag.BoolVar(&trace, "t", false, "Trace each executed line")
	flag.BoolVar(&dump, "d", false, "Dump CPU state at exit")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	prof := &emulator.Profile{}
	if len(profile) != 0 {
		inf, err := os.Open(profile)
		if err != nil {
			log.Fatalf("%v: %v", profile, err)
		}
		defer inf.Close()

		prof, err = emulator.LoadProfile(inf)
		if err != nil {
			log.Fatalf("%v: %v", profile, err)
		}
	}

	if limit == 0 {
		limit = prof.Limit
	}
	if prof.Trace {
		trace = true
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose

	// Compile a new instruction stream.
	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := &cpu.Assembler{}
		for name, value := range emu.Defines() {
			asm.Predefine(name, value)
		}
		for name, value := range prof.Defines {
			asm.Predefine(name, value)
		}

		prog, err := asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		emu.Program = prog
	}

	if input == "-" {
		emu.Console.Input = os.Stdin
	} else {
		inf, err := os.Open(input)
		if err != nil {
			log.Fatalf("%v: %v", input, err)
		}
		defer inf.Close()
		emu.Console.Input = inf
	}

	if output == "-" {
		emu.Console.Output = os.Stdout
	} else {
		ouf, err := os.Create(output)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		defer ouf.Close()
		emu.Console.Output = ouf
	}

	err := emu.Reset()
	if err != nil {
		log.Fatal(err)
	}
	err = prof.Apply(emu)
	if err != nil {
		log.Fatal(err)
	}

	if !trace {
		err = emu.Run(limit)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		if limit == 0 {
			limit = emulator.TICK_LIMIT
		}
		for n := 0; ; n++ {
			if n >= limit {
				log.Fatal(emulator.ErrTickLimit(limit))
			}
			dbg := emu.Program.Debug(emu.Cpu.Pc)
			if dbg.Opcode != nil {
				fmt.Fprintf(os.Stderr, "%04X: %v\n", emu.Cpu.Pc, strings.Join(dbg.Words, " "))
			}
			done, err := emu.Tick()
			if err != nil {
				log.Fatal(err)
			}
			if done {
				break
			}
		}
	}

	if dump {
		fmt.Print(emu.Cpu.String())
	}
}
