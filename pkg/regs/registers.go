// Package regs models the x86-64 general-purpose register file: the
// sixteen 64-bit parents and every narrower alias (32/16/8-bit, plus the
// legacy AH/BH/CH/DH high-byte forms) a trace can name.
package regs

// Register is a closed enumeration of every register name that can
// appear in a trace operand. It replaces the string-equality ladders
// original_source/core.cpp used (isReg64/isReg32/isReg16/isReg8,
// reg2string) with a table lookup.
type Register int

const (
	RegUnknown Register = iota

	RAX
	RBX
	RCX
	RDX
	RSI
	RDI
	RBP
	RSP
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	EAX
	EBX
	ECX
	EDX
	ESI
	EDI
	EBP
	ESP
	R8D
	R9D
	R10D
	R11D
	R12D
	R13D
	R14D
	R15D

	AX
	BX
	CX
	DX
	SI
	DI
	BP
	SP
	R8W
	R9W
	R10W
	R11W
	R12W
	R13W
	R14W
	R15W

	AL
	BL
	CL
	DL
	SIL
	DIL
	BPL
	SPL
	R8B
	R9B
	R10B
	R11B
	R12B
	R13B
	R14B
	R15B

	AH
	BH
	CH
	DH

	// Segment registers are recognised but never resolved to an address
	// (out of scope, spec.md §1 Non-goals). Kept as distinct tags so the
	// parser and diagnostics can name them instead of falling back to
	// RegUnknown.
	CS
	DS
	ES
	FS
	GS
	SSEG

	registerCount
)

// Parent is one of the sixteen 64-bit general-purpose registers that
// every alias ultimately decomposes into. Segment registers have no
// Parent and are never byte-decomposed.
type Parent int

const (
	ParentNone Parent = iota
	PRAX
	PRBX
	PRCX
	PRDX
	PRSI
	PRDI
	PRSP
	PRBP
	PR8
	PR9
	PR10
	PR11
	PR12
	PR13
	PR14
	PR15

	parentCount
)

// Info describes how a Register alias maps onto its Parent's byte
// range, and whether reading/writing it requires the AH/BH/CH/DH
// high-byte shift (mask 0xFF00, shift 8) instead of a plain low mask.
type Info struct {
	Parent     Parent
	ByteOffset int // offset of the alias's first byte within Parent
	ByteWidth  int // number of bytes the alias covers
	HighByte   bool
}

var table [registerCount]Info

func reg(r Register, p Parent, offset, width int, high bool) {
	table[r] = Info{Parent: p, ByteOffset: offset, ByteWidth: width, HighByte: high}
}

func init() {
	quads := []struct {
		p                    Parent
		r64, r32, r16, r8lo Register
	}{
		{PRAX, RAX, EAX, AX, AL},
		{PRBX, RBX, EBX, BX, BL},
		{PRCX, RCX, ECX, CX, CL},
		{PRDX, RDX, EDX, DX, DL},
		{PRSI, RSI, ESI, SI, SIL},
		{PRDI, RDI, EDI, DI, DIL},
		{PRBP, RBP, EBP, BP, BPL},
		{PRSP, RSP, ESP, SP, SPL},
		{PR8, R8, R8D, R8W, R8B},
		{PR9, R9, R9D, R9W, R9B},
		{PR10, R10, R10D, R10W, R10B},
		{PR11, R11, R11D, R11W, R11B},
		{PR12, R12, R12D, R12W, R12B},
		{PR13, R13, R13D, R13W, R13B},
		{PR14, R14, R14D, R14W, R14B},
		{PR15, R15, R15D, R15W, R15B},
	}
	for _, q := range quads {
		reg(q.r64, q.p, 0, 8, false)
		reg(q.r32, q.p, 0, 4, false)
		reg(q.r16, q.p, 0, 2, false)
		reg(q.r8lo, q.p, 0, 1, false)
	}
	reg(AH, PRAX, 1, 1, true)
	reg(BH, PRBX, 1, 1, true)
	reg(CH, PRCX, 1, 1, true)
	reg(DH, PRDX, 1, 1, true)
}

// Lookup returns the byte-layout Info for r. The zero Info (ParentNone)
// is returned for RegUnknown and for segment registers, neither of
// which decomposes into a parent's byte range.
func Lookup(r Register) Info {
	if r <= RegUnknown || r >= registerCount {
		return Info{}
	}
	return table[r]
}

// IsSegment reports whether r is a segment register.
func IsSegment(r Register) bool {
	switch r {
	case CS, DS, ES, FS, GS, SSEG:
		return true
	default:
		return false
	}
}

var names = map[Register]string{
	RAX: "rax", RBX: "rbx", RCX: "rcx", RDX: "rdx", RSI: "rsi", RDI: "rdi", RBP: "rbp", RSP: "rsp",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11", R12: "r12", R13: "r13", R14: "r14", R15: "r15",
	EAX: "eax", EBX: "ebx", ECX: "ecx", EDX: "edx", ESI: "esi", EDI: "edi", EBP: "ebp", ESP: "esp",
	R8D: "r8d", R9D: "r9d", R10D: "r10d", R11D: "r11d", R12D: "r12d", R13D: "r13d", R14D: "r14d", R15D: "r15d",
	AX: "ax", BX: "bx", CX: "cx", DX: "dx", SI: "si", DI: "di", BP: "bp", SP: "sp",
	R8W: "r8w", R9W: "r9w", R10W: "r10w", R11W: "r11w", R12W: "r12w", R13W: "r13w", R14W: "r14w", R15W: "r15w",
	AL: "al", BL: "bl", CL: "cl", DL: "dl", SIL: "sil", DIL: "dil", BPL: "bpl", SPL: "spl",
	R8B: "r8b", R9B: "r9b", R10B: "r10b", R11B: "r11b", R12B: "r12b", R13B: "r13b", R14B: "r14b", R15B: "r15b",
	AH: "ah", BH: "bh", CH: "ch", DH: "dh",
	CS: "cs", DS: "ds", ES: "es", FS: "fs", GS: "gs", SSEG: "ss",
}

var byName map[string]Register

func init() {
	byName = make(map[string]Register, len(names))
	for r, n := range names {
		byName[n] = r
	}
}

// String returns the assembly name of r, or "unk" for RegUnknown.
// Mirrors original_source/core.cpp's reg2string.
func (r Register) String() string {
	if n, ok := names[r]; ok {
		return n
	}
	return "unk"
}

// Parse looks up a Register by its lowercase assembly name. Unrecognised
// names resolve to RegUnknown rather than erroring: callers decide
// whether an unrecognised operand is fatal.
func Parse(name string) Register {
	if r, ok := byName[name]; ok {
		return r
	}
	return RegUnknown
}
