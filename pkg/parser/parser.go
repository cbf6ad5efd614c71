// Package parser reads an x86-64 execution trace and decodes each line
// into an xinst.Instruction. Grounded in
// _examples/original_source/parser.cpp's createAddrOperand /
// createDataOperand / createOperand / parseTrace.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/vmhunt/symx/pkg/regs"
	"github.com/vmhunt/symx/pkg/xinst"
)

// Address-expression forms inside a "ptr [...]" bracket, longest/most
// specific form first so a shorter pattern never wins against a prefix
// of a longer one. Mirrors parser.cpp's addr7 > addr5 > addr6 > addr4 >
// addr3 > addr1 > addr2 precedence.
var (
	addrBaseIndexScaleDisp = regexp.MustCompile(`^(\w+)\+(\w+)\*(\d+)([+-]0x[0-9a-fA-F]+)$`) // addr7
	addrBaseDisp           = regexp.MustCompile(`^(\w+)([+-]0x[0-9a-fA-F]+)$`)               // addr5 (was addr1 in original numbering but kept distinct here)
	addrIndexScaleDisp     = regexp.MustCompile(`^(\w+)\*(\d+)([+-]0x[0-9a-fA-F]+)$`)        // addr6
	addrBaseIndexScale     = regexp.MustCompile(`^(\w+)\+(\w+)\*(\d+)$`)                     // addr4
	addrBaseIndex          = regexp.MustCompile(`^(\w+)\+(\w+)$`)                            // addr3
	addrBaseOnly           = regexp.MustCompile(`^(\w+)$`)                                   // addr2
	addrDispOnly           = regexp.MustCompile(`^(0x[0-9a-fA-F]+)$`)                        // addr1

	reg64  = regexp.MustCompile(`^(rax|rbx|rcx|rdx|rsi|rdi|rbp|rsp|r8|r9|r10|r11|r12|r13|r14|r15)$`)
	reg32  = regexp.MustCompile(`^(eax|ebx|ecx|edx|esi|edi|ebp|esp|r8d|r9d|r10d|r11d|r12d|r13d|r14d|r15d)$`)
	reg16  = regexp.MustCompile(`^(ax|bx|cx|dx|si|di|bp|sp|r8w|r9w|r10w|r11w|r12w|r13w|r14w|r15w)$`)
	reg8   = regexp.MustCompile(`^(al|bl|cl|dl|ah|bh|ch|dh|sil|dil|bpl|spl|r8b|r9b|r10b|r11b|r12b|r13b|r14b|r15b)$`)
	immRe  = regexp.MustCompile(`^-?0x[0-9a-fA-F]+$`)
	ptrPfx   = regexp.MustCompile(`^(byte|word|dword|qword)\s+ptr\s*\[(.+)\]$`)
	bareAddr = regexp.MustCompile(`^\[(.+)\]$`)
)

func widthForPtr(kw string) int {
	switch kw {
	case "byte":
		return 1
	case "word":
		return 2
	case "dword":
		return 4
	case "qword":
		return 8
	default:
		return 8
	}
}

// createAddrOperand parses the bracketed expression of a memory operand
// (without resolving it to a concrete address — that comes from the
// trace's raddr/waddr fields). It records the raw text for diagnostics.
func createAddrOperand(expr string, width int) xinst.Operand {
	return xinst.Operand{Kind: xinst.OperandMem, Width: width, MemExpr: expr}
}

// createDataOperand parses a register or immediate operand.
func createDataOperand(tok string) xinst.Operand {
	switch {
	case reg64.MatchString(tok):
		return xinst.Operand{Kind: xinst.OperandReg, Reg: regs.Parse(tok), Width: 8}
	case reg32.MatchString(tok):
		return xinst.Operand{Kind: xinst.OperandReg, Reg: regs.Parse(tok), Width: 4}
	case reg16.MatchString(tok):
		return xinst.Operand{Kind: xinst.OperandReg, Reg: regs.Parse(tok), Width: 2}
	case reg8.MatchString(tok):
		return xinst.Operand{Kind: xinst.OperandReg, Reg: regs.Parse(tok), Width: 1}
	case immRe.MatchString(tok):
		v, _ := parseHex(tok)
		return xinst.Operand{Kind: xinst.OperandImm, Imm: v, Width: 8}
	default:
		// Unrecognised token: treated as an immediate 0 with the raw
		// text kept for diagnostics, rather than aborting the parse.
		return xinst.Operand{Kind: xinst.OperandImm, Imm: 0, Width: 8, MemExpr: tok}
	}
}

func parseHex(tok string) (uint64, error) {
	neg := strings.HasPrefix(tok, "-")
	if neg {
		tok = tok[1:]
	}
	tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
	v, err := strconv.ParseUint(tok, 16, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}

// createOperand dispatches on "ptr [...]" bracket presence, mirroring
// parser.cpp's createOperand.
func createOperand(tok string) xinst.Operand {
	tok = strings.TrimSpace(tok)
	if m := ptrPfx.FindStringSubmatch(tok); m != nil {
		width := widthForPtr(m[1])
		inner := m[2]
		// The addr1..addr7 regexes above are tried in precedence order,
		// but a match and a non-match yield the same operand: only the
		// expression text is kept, and the concrete address always
		// comes from the trace's raddr/waddr.
		for _, re := range []*regexp.Regexp{addrBaseIndexScaleDisp, addrBaseDisp, addrIndexScaleDisp, addrBaseIndexScale, addrBaseIndex, addrDispOnly, addrBaseOnly} {
			if re.MatchString(inner) {
				return createAddrOperand(inner, width)
			}
		}
		return createAddrOperand(inner, width)
	}
	// A bracketed expression without a width prefix still addresses
	// memory; it defaults to 64 bits (spec.md §4.1).
	if m := bareAddr.FindStringSubmatch(tok); m != nil {
		return createAddrOperand(m[1], 8)
	}
	return createDataOperand(tok)
}

func parseOperands(text string) []xinst.Operand {
	if text == "" {
		return nil
	}
	parts := splitOperands(text)
	ops := make([]xinst.Operand, 0, len(parts))
	for _, p := range parts {
		ops = append(ops, createOperand(strings.TrimSpace(p)))
	}
	return ops
}

// splitOperands splits on top-level commas only (commas inside "[...]"
// scale-index expressions do not separate operands).
func splitOperands(text string) []string {
	var out []string
	depth := 0
	last := 0
	for i, r := range text {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, text[last:i])
				last = i + 1
			}
		}
	}
	out = append(out, text[last:])
	return out
}

// ParseLine decodes one trace line of the form:
//
//	<addr>;<mnemonic> <operands>;<r0>,<r1>,...,<r15>,<raddr>,<waddr>
//
// An empty raddr/waddr field (two consecutive commas, or a trailing
// field of "-") means the instruction performed no memory access on
// that side. Mirrors original_source/parser.cpp's parseTrace.
func ParseLine(line string) (*xinst.Instruction, error) {
	fields := strings.SplitN(line, ";", 3)
	if len(fields) != 3 {
		return nil, fmt.Errorf("parser: malformed trace line (want 3 ';'-separated fields): %q", line)
	}
	addr, err := parseHex(fields[0])
	if err != nil {
		return nil, fmt.Errorf("parser: bad instruction address %q: %w", fields[0], err)
	}

	asmFields := strings.SplitN(strings.TrimSpace(fields[1]), " ", 2)
	mnemonic := strings.ToLower(asmFields[0])
	var operandText string
	if len(asmFields) == 2 {
		operandText = asmFields[1]
	}

	ctx := strings.Split(fields[2], ",")
	if len(ctx) != 18 {
		return nil, fmt.Errorf("parser: expected 18 comma-separated context fields, got %d: %q", len(ctx), fields[2])
	}
	in := &xinst.Instruction{Addr: addr, Mnemonic: mnemonic, Operands: parseOperands(operandText)}
	for i := 0; i < 16; i++ {
		v, err := parseHex(strings.TrimSpace(ctx[i]))
		if err != nil {
			return nil, fmt.Errorf("parser: bad context register field %d (%q): %w", i, ctx[i], err)
		}
		in.CtxRegs[i] = v
	}
	if raw := strings.TrimSpace(ctx[16]); raw != "" && raw != "-" {
		v, err := parseHex(raw)
		if err != nil {
			return nil, fmt.Errorf("parser: bad raddr field %q: %w", raw, err)
		}
		in.HasRAddr, in.RAddr = true, v
	}
	if raw := strings.TrimSpace(ctx[17]); raw != "" && raw != "-" {
		v, err := parseHex(raw)
		if err != nil {
			return nil, fmt.Errorf("parser: bad waddr field %q: %w", raw, err)
		}
		in.HasWAddr, in.WAddr = true, v
	}
	return in, nil
}

// ParseTrace reads every line from r, in order, decoding each into an
// Instruction. A 1MiB scanner buffer is used since a single line can
// carry sixteen hex registers plus two addresses (mirrors the teacher's
// own verifyJSONL scanner sizing).
func ParseTrace(r io.Reader) ([]*xinst.Instruction, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var out []*xinst.Instruction
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		in, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("parser: line %d: %w", lineNo, err)
		}
		out = append(out, in)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parser: scanning trace: %w", err)
	}
	return out, nil
}
