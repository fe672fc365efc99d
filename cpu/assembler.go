package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Assembler is a single pass macro assembler for the 16-bit teaching CPU.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string   // Predefines
	Label     map[string]int      // Map of jump labels to byte addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// labelRe matches label and identifier words.
var labelRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// opSpec describes the operand shape of a mnemonic.
type opSpec struct {
	op      CodeOp
	nargs   int  // Operand count.
	has_dst bool // First operand is a destination.
}

// opMap maps mnemonics to their operation and operand shape.
var opMap = map[string]opSpec{
	"nop":  {OP_NOP, 0, false},
	"hlt":  {OP_HLT, 0, false},
	"mov":  {OP_MOV, 2, true},
	"add":  {OP_ADD, 2, true},
	"sub":  {OP_SUB, 2, true},
	"and":  {OP_AND, 2, true},
	"or":   {OP_OR, 2, true},
	"xor":  {OP_XOR, 2, true},
	"shl":  {OP_SHL, 2, true},
	"shr":  {OP_SHR, 2, true},
	"cmp":  {OP_CMP, 2, true},
	"not":  {OP_NOT, 1, true},
	"inc":  {OP_INC, 1, true},
	"dec":  {OP_DEC, 1, true},
	"jmp":  {OP_JMP, 1, false},
	"je":   {OP_JE, 1, false},
	"jne":  {OP_JNE, 1, false},
	"jl":   {OP_JL, 1, false},
	"jg":   {OP_JG, 1, false},
	"jc":   {OP_JC, 1, false},
	"push": {OP_PUSH, 1, false},
	"pop":  {OP_POP, 1, true},
	"call": {OP_CALL, 1, false},
	"ret":  {OP_RET, 0, false},
	"in":   {OP_IN, 1, true},
	"out":  {OP_OUT, 1, false},
}

// aliasMap maps alternate mnemonics to their canonical form.
var aliasMap = map[string]string{
	"jz":   "je",
	"jnz":  "jne",
	"halt": "hlt",
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value uint16, err error) {
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}
	invert := false
	if word[0] == '~' {
		invert = true
		word = word[1:]
		if len(word) == 0 {
			err = ErrParseNumber("~")
			return
		}
	}
	if word[0] == '\'' {
		// Character quotes should have been expanded into
		// values in parseLine()
		err = ErrParseCharacter(word[1 : len(word)-1])
		return
	}
	v64, err := strconv.ParseInt(word, 0, 17)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	if v64 < 0 {
		value = uint16(0xffff + (v64 + 1))
	} else {
		value = uint16(v64)
	}

	if invert {
		value = ^value
	}

	return
}

// argOf parses a single operand word into an operand code, its immediate
// words, and an optional label reference for the final link pass.
func (asm *Assembler) argOf(word string) (arg CodeArg, imms []uint16, label string, err error) {
	reg, is_reg := regMap[strings.ToLower(word)]
	if is_reg {
		arg = CodeArg(reg)
		return
	}

	if strings.HasPrefix(word, "[") && strings.HasSuffix(word, "]") {
		inner := word[1 : len(word)-1]
		if len(inner) == 0 {
			err = ErrParseValue(word)
			return
		}

		reg, is_reg = regMap[strings.ToLower(inner)]
		if is_reg {
			arg = ARG_IND_AX + CodeArg(reg)
			return
		}

		arg = ARG_MEM
		if labelRe.MatchString(inner) {
			label = inner
			imms = []uint16{0}
			return
		}

		var value uint16
		value, err = asm.valueOf(inner)
		if err != nil {
			return
		}
		imms = []uint16{value}
		return
	}

	arg = ARG_IMM
	if labelRe.MatchString(word) {
		label = word
		imms = []uint16{0}
		return
	}

	var value uint16
	value, err = asm.valueOf(word)
	if err != nil {
		return
	}
	imms = []uint16{value}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint16, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		value16, verr := asm.valueOf(str)
		if verr != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt(int(value16))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = uint16(st_int64)
	return
}

// parseLine parses a single line as an opcode.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	re := regexp.MustCompile(`'\\?[^']'`)
	line = re.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	re = regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#v", value)
	})
	if err != nil {
		return
	}

	// Operand commas are optional.
	line = strings.ReplaceAll(line, ",", " ")

	words = slices.DeleteFunc(strings.Split(line, " "), func(a string) bool { return len(a) == 0 })

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if len(words) > 0 && words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		if len(word) == 0 {
			continue
		}

		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]int, 16)
		}
		asm.Label[label] = asm.currentAddr()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", fmt.Sprintf("%v_%v_", name, lineno))
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, macro.LineNo+n)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentAddr gets the byte address following the last assembled opcode.
func (asm *Assembler) currentAddr() int {
	if len(asm.Opcode) == 0 {
		return CODE_ORIGIN
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return last.Addr + last.Size()
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.Opcode = asm.Opcode[:0]
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		all_words := strings.Split(line, " ")

		var words []string
		for _, single := range all_words {
			if len(single) > 0 {
				words = append(words, single)
			}
		}

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of jump labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}
		label := op.LinkLabel
		addr, ok := asm.Label[label]
		if !ok {
			err = ErrLabelMissing(label)
			return
		}
		if len(op.Codes) < 1 {
			log.Fatalf("Unable to link label '%s' to line %d: %v", label, op.LineNo, op.Words)
		}
		linked := &op.Codes[len(op.Codes)-1]
		if op.LinkImm < 0 || op.LinkImm >= len(linked.Immediates) {
			log.Fatalf("Missing immediate for link label '%s' at line %d: %v", label, op.LineNo, op.Words)
		}
		linked.Immediates[op.LinkImm] = uint16(addr)
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
	}

	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var codes []Code
	var label string
	link_imm := -1

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if len(codes) == 0 {
			return
		}
		opcode := Opcode{LineNo: lineno, Addr: asm.currentAddr(), Words: initial_words, Codes: codes, LinkLabel: label, LinkImm: link_imm}
		asm.Opcode = append(asm.Opcode, opcode)
	}()

	mnemonic := strings.ToLower(words[0])

	// .word V ... emits raw data words in place.
	if mnemonic == ".word" {
		if len(words) < 2 {
			err = ErrWordSyntax
			return
		}
		for _, word := range words[1:] {
			var value uint16
			value, err = asm.valueOf(word)
			if err != nil {
				return
			}
			codes = append(codes, Code{Word: value})
		}
		return
	}

	alias, ok := aliasMap[mnemonic]
	if ok {
		mnemonic = alias
	}

	spec, ok := opMap[mnemonic]
	if !ok {
		err = ErrInstructionInvalid
		return
	}

	operands := words[1:]
	if len(operands) < spec.nargs {
		err = ErrOpcodeValueMissing
		return
	}
	if len(operands) > spec.nargs {
		err = ErrOpcodeExtraArgs
		return
	}

	dst := ARG_NONE
	src := ARG_NONE
	var imms []uint16

	parse := func(word string, writable bool) (arg CodeArg, perr error) {
		var arg_imms []uint16
		var arg_label string
		arg, arg_imms, arg_label, perr = asm.argOf(word)
		if perr != nil {
			return
		}
		if writable && !arg.Writable() {
			perr = ErrTargetInvalid
			return
		}
		if len(arg_label) != 0 {
			if len(label) != 0 {
				perr = ErrLabelPair
				return
			}
			label = arg_label
			link_imm = len(imms) + len(arg_imms) - 1
		}
		imms = append(imms, arg_imms...)
		return
	}

	if spec.nargs >= 1 {
		if spec.has_dst {
			dst, err = parse(operands[0], true)
		} else {
			src, err = parse(operands[0], false)
		}
		if err != nil {
			return
		}
	}
	if spec.nargs == 2 {
		src, err = parse(operands[1], false)
		if err != nil {
			return
		}
	}

	codes = append(codes, MakeCode(spec.op, dst, src, imms...))

	return
}
