// Package value implements the symbolic Value/Operation DAG: an
// arena-allocated, monotonic-id node graph with non-reducing
// construction (no constant folding at build time — only the concrete
// evaluator in pkg/formula reduces a formula to a number). Grounded in
// original_source/mg-symengine.cpp's Value/Operation structs and
// buildop1/buildop2, redesigned per spec.md §9: raw pointers become
// arena indices, and the string opcode becomes the closed Operation enum.
package value

import (
	"fmt"
	"sort"
)

// Operation is the closed set of node operators an Operation-producing
// Value (Kind Symbol or Concrete, NumArgs>0) can carry.
type Operation int

const (
	opNone Operation = iota
	Add
	Sub
	Imul
	Div
	Mod
	And
	Or
	Xor
	Shl
	Shr
	Sar
	Neg
	Not
	Bswap
	// Mov exists only so the CVC emitter's operator table is complete
	// (spec.md §9 Open Question 1): the symbolic executor never
	// actually wraps a plain mov in this operator — see pkg/engine.
	// inc/dec have no dedicated operator: the executor lowers them to
	// Add/Sub against a literal 1 instead of carrying a redundant node kind.
	Mov
)

func (o Operation) String() string {
	switch o {
	case Add:
		return "BVPLUS"
	case Sub:
		return "BVSUB"
	case Imul:
		return "BVMULT"
	case Div:
		return "BVDIV"
	case Mod:
		return "BVMOD"
	case And:
		return "BVAND"
	case Or:
		return "BVOR"
	case Xor:
		return "BVXOR"
	case Shl:
		return "BVSHL"
	case Shr:
		return "BVLSHR"
	case Sar:
		return "BVASHR"
	case Neg:
		return "BVNEG"
	case Not:
		return "BVNOT"
	case Bswap:
		return "BSWAP"
	case Mov:
		return "MOV"
	default:
		return "?"
	}
}

// Arity reports how many operand Values an Operation expects.
func (o Operation) Arity() int {
	switch o {
	case Neg, Not, Bswap, Mov:
		return 1
	default:
		return 2
	}
}

// Kind tags a Value's fundamental shape, per spec.md §3: SYMBOL and
// CONCRETE are the two ordinary node types (each may be either a true
// leaf or the result of an Operation — Kind tracks whether the node's
// dependency closure includes a free variable, not whether it has
// operands), and HYBRID is reserved for the distinct piecewise bit-range
// composition original_source/mg-symengine.cpp's writeVal builds (a map
// from non-overlapping bit ranges to child Values). pkg/engine does not
// build Hybrid nodes: its partial register and memory overlays are
// composed from Shl/Shr/And/Or Operations.
type Kind int

const (
	// Symbol is a node whose resolved value depends on at least one
	// unresolved input: a fresh free variable itself, or an Operation
	// over operands where at least one is (transitively) a Symbol.
	Symbol Kind = iota
	// Concrete is a node with no unresolved input in its dependency
	// closure: a literal leaf, or an Operation whose every operand is
	// Concrete. The algebra does not fold this to a literal at
	// construction time (see BuildOp1/BuildOp2) — Concrete here is a
	// type tag, not a reduction.
	Concrete
	// Hybrid is a piecewise composition over disjoint bit ranges (see
	// Range/BuildHybrid), not an Operation result.
	Hybrid
)

// ID is a Value's index into its owning Arena.
type ID int

const invalid ID = -1

// Range is one child's bit span within a HYBRID composition: bits
// [Lo,Hi] (inclusive, 0 = least significant) are taken from Child.
// Ranges within one Value.Ranges are pairwise disjoint and, together,
// cover [0, WidthBit). Mirrors original_source/mg-symengine.cpp's
// BitRange-keyed childs map.
type Range struct {
	Lo, Hi int
	Child  ID
}

// Value is one DAG node. Args holds operand IDs for Operation nodes
// (Kind Symbol or Concrete with NumArgs>0); Ranges holds the piecewise
// children for Kind Hybrid.
type Value struct {
	ID       ID
	Kind     Kind
	Name     string // Symbol leaf: its input name, e.g. "rax@init" or "mem[0x1000]@init"
	Const    uint64 // Concrete leaf: the literal
	Op       Operation
	Args     [2]ID
	NumArgs  int
	Ranges   []Range // Hybrid only
	WidthBit int     // bit width this value represents; used for printing and masking
}

// Arena owns every Value allocated during one analysis run.
type Arena struct {
	values []Value
}

func NewArena() *Arena { return &Arena{} }

func (a *Arena) Get(id ID) *Value { return &a.values[id] }

// Len returns the number of Values allocated in a so far.
func (a *Arena) Len() int { return len(a.values) }

func (a *Arena) alloc(v Value) ID {
	v.ID = ID(len(a.values))
	a.values = append(a.values, v)
	return v.ID
}

// Symbol allocates a fresh unresolved input Value.
func (a *Arena) Symbol(name string, widthBits int) ID {
	return a.alloc(Value{Kind: Symbol, Name: name, WidthBit: widthBits})
}

// Concrete allocates a known-literal Value, masked to widthBits.
func (a *Arena) Concrete(c uint64, widthBits int) ID {
	if widthBits < 64 {
		c &= (uint64(1) << widthBits) - 1
	}
	return a.alloc(Value{Kind: Concrete, Const: c, WidthBit: widthBits})
}

// effectiveKind reports whether id resolves to SYMBOL or CONCRETE for
// type-propagation purposes (spec.md §4.4). For an ordinary node this is
// just its own Kind; for a Hybrid composition it is SYMBOL if any of its
// bit-range children is (transitively) SYMBOL, else CONCRETE — a Hybrid
// node has no Kind of its own to consult directly since Hybrid is a
// distinct shape, not a type.
func effectiveKind(a *Arena, id ID) Kind {
	v := a.Get(id)
	if v.Kind != Hybrid {
		return v.Kind
	}
	for _, r := range v.Ranges {
		if effectiveKind(a, r.Child) == Symbol {
			return Symbol
		}
	}
	return Concrete
}

// BuildOp1 constructs a unary Operation node without reducing it, even
// if x is itself Concrete — matching buildop1's non-folding contract.
// Kind propagates per spec.md §4.4's type-propagation rule rather than
// being hardcoded: SYMBOL if x is (effectively) SYMBOL, else CONCRETE.
func (a *Arena) BuildOp1(op Operation, x ID) ID {
	if op.Arity() != 1 {
		panic(fmt.Sprintf("value: BuildOp1 called with %d-ary operation %v", op.Arity(), op))
	}
	k := Concrete
	if effectiveKind(a, x) == Symbol {
		k = Symbol
	}
	w := a.Get(x).WidthBit
	return a.alloc(Value{Kind: k, Op: op, Args: [2]ID{x, invalid}, NumArgs: 1, WidthBit: w})
}

// BuildOp2 constructs a binary Operation node without reducing it,
// matching buildop2's non-folding contract (constant folding happens
// only in the concrete evaluator, pkg/formula.Conexec). Kind propagates
// per spec.md §4.4: SYMBOL if either operand is (effectively) SYMBOL,
// else CONCRETE.
func (a *Arena) BuildOp2(op Operation, x, y ID) ID {
	if op.Arity() != 2 {
		panic(fmt.Sprintf("value: BuildOp2 called with %d-ary operation %v", op.Arity(), op))
	}
	k := Concrete
	if effectiveKind(a, x) == Symbol || effectiveKind(a, y) == Symbol {
		k = Symbol
	}
	w := a.Get(x).WidthBit
	return a.alloc(Value{Kind: k, Op: op, Args: [2]ID{x, y}, NumArgs: 2, WidthBit: w})
}

// BuildHybrid composes a piecewise Value from non-overlapping,
// fully-covering bit-range children, matching
// original_source/mg-symengine.cpp's writeVal. The register file and
// memory store do not call it (they fold overlays into one value via
// shift/mask Operations); pkg/formula calls it when cloning an existing
// Hybrid node. ranges need not be pre-sorted; BuildHybrid
// panics if they don't exactly tile [0, widthBits).
func (a *Arena) BuildHybrid(ranges []Range, widthBits int) ID {
	rs := append([]Range(nil), ranges...)
	sort.Slice(rs, func(i, j int) bool { return rs[i].Lo < rs[j].Lo })
	next := 0
	for _, r := range rs {
		if r.Lo != next {
			panic(fmt.Sprintf("value: BuildHybrid ranges not contiguous: expected next range to start at bit %d, got %d", next, r.Lo))
		}
		next = r.Hi + 1
	}
	if next != widthBits {
		panic(fmt.Sprintf("value: BuildHybrid ranges cover %d bits, want %d", next, widthBits))
	}
	return a.alloc(Value{Kind: Hybrid, Ranges: rs, WidthBit: widthBits})
}

// ArgList returns the operand IDs an Operation node actually uses.
func (v *Value) ArgList() []ID {
	return v.Args[:v.NumArgs]
}
