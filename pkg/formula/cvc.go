package formula

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vmhunt/symx/pkg/value"
)

func nodeName(prefix string, id value.ID) string { return fmt.Sprintf("%sN%d", prefix, id) }

// cvcTerm renders a single node's right-hand side, referencing earlier
// nodes by their LET-bound name rather than re-expanding them — this is
// what preserves DAG sharing in the emitted text, unlike Print.
func cvcTerm(a *value.Arena, id value.ID, prefix string) string {
	v := a.Get(id)
	if v.NumArgs > 0 {
		if v.NumArgs == 1 {
			return fmt.Sprintf("%s(%s)", v.Op, nodeName(prefix, v.Args[0]))
		}
		return fmt.Sprintf("%s(%s, %s)", v.Op, nodeName(prefix, v.Args[0]), nodeName(prefix, v.Args[1]))
	}
	switch v.Kind {
	case value.Symbol:
		return v.Name
	case value.Concrete:
		return fmt.Sprintf("0hex%016X", v.Const)
	default: // Hybrid
		parts := make([]string, len(v.Ranges))
		for i, r := range v.Ranges {
			parts[i] = fmt.Sprintf("%s[%d:%d]", nodeName(prefix, r.Child), r.Hi, r.Lo)
		}
		return strings.Join(parts, "@")
	}
}

// EmitCVC renders root as a CVC3 bit-vector LET chain: one binding per
// DAG node in dependency order, so a value referenced from multiple
// places is computed once. Mirrors
// original_source/mg-symengine.cpp's outputCVC/outputCVCFormula.
func EmitCVC(a *value.Arena, root value.ID) string {
	return emitCVCPrefixed(a, root, "")
}

func emitCVCPrefixed(a *value.Arena, root value.ID, prefix string) string {
	order := topoOrder(a, root)
	var b strings.Builder
	for _, id := range order {
		// Symbol leaves are bound too (LET N0 = rax@init IN ...), since
		// every operand reference below is by LET-bound node name.
		fmt.Fprintf(&b, "LET %s = %s IN\n", nodeName(prefix, id), cvcTerm(a, id, prefix))
	}
	fmt.Fprintf(&b, "%s;\n", nodeName(prefix, root))
	return b.String()
}

// SymbolMap renames left-formula symbol names to right-formula symbol
// names before an equivalence comparison, e.g. when comparing two
// independently-symbolically-executed regions whose inputs were named
// from different starting points.
type SymbolMap map[string]string

// renameSymbols rebuilds the subgraph rooted at root into a fresh arena
// with every Symbol name passed through m, and returns the clone arena
// together with the translated root's id in that clone.
func renameSymbols(a *value.Arena, root value.ID, m SymbolMap) (*value.Arena, value.ID) {
	if len(m) == 0 {
		return a, root
	}
	clone := value.NewArena()
	translated := make(map[value.ID]value.ID)
	var walk func(id value.ID) value.ID
	walk = func(id value.ID) value.ID {
		if out, ok := translated[id]; ok {
			return out
		}
		v := a.Get(id)
		var out value.ID
		if v.NumArgs > 0 {
			args := make([]value.ID, v.NumArgs)
			for i, arg := range v.ArgList() {
				args[i] = walk(arg)
			}
			if v.NumArgs == 1 {
				out = clone.BuildOp1(v.Op, args[0])
			} else {
				out = clone.BuildOp2(v.Op, args[0], args[1])
			}
		} else {
			switch v.Kind {
			case value.Symbol:
				name := v.Name
				if renamed, ok := m[name]; ok {
					name = renamed
				}
				out = clone.Symbol(name, v.WidthBit)
			case value.Concrete:
				out = clone.Concrete(v.Const, v.WidthBit)
			default: // Hybrid
				ranges := make([]value.Range, len(v.Ranges))
				for i, r := range v.Ranges {
					ranges[i] = value.Range{Lo: r.Lo, Hi: r.Hi, Child: walk(r.Child)}
				}
				out = clone.BuildHybrid(ranges, v.WidthBit)
			}
		}
		translated[id] = out
		return out
	}
	translatedRoot := walk(root)
	return clone, translatedRoot
}

// EmitChkEq renders a CVC3 query asserting left and right are equal
// bit-vector formulas, applying an optional symbol rename to left's
// free variables first. The two formulas' LET-bound node names are
// kept in separate "L"/"R" namespaces since they may come from two
// unrelated arenas that otherwise allocate overlapping ids. Mirrors
// original_source/mg-symengine.cpp's outputChkEqCVC.
func EmitChkEq(leftArena *value.Arena, left value.ID, rightArena *value.Arena, right value.ID, rename SymbolMap) string {
	renamedArena, renamedRoot := renameSymbols(leftArena, left, rename)

	var b strings.Builder
	b.WriteString(emitCVCPrefixed(renamedArena, renamedRoot, "L_"))
	b.WriteString(emitCVCPrefixed(rightArena, right, "R_"))
	fmt.Fprintf(&b, "QUERY %s = %s;\n", nodeName("L_", renamedRoot), nodeName("R_", right))
	return b.String()
}

// BitMapping is one candidate bit-level correspondence between a pair
// of formulas' inputs and outputs: InputBits maps a left input bit
// index to the right input bit index it must equal, and OutputBits
// does the same for the bit positions of the two formulas' results.
// Indices count from 0 across the concatenation of all of a side's
// input symbols in InputIDs order (64 bits per symbol), matching
// original_source/mg-symengine.cpp's FullMap (a pair of int->int maps).
type BitMapping struct {
	InputBits  map[int]int
	OutputBits map[int]int
}

// cvcPostfixTerm renders v as a fully self-contained (non-LET-sharing)
// prefix expression with every Symbol leaf's name suffixed by postfix,
// matching original_source/mg-symengine.cpp's outputCVC under a given
// sympostfix: this is what lets the same input symbol name used as a
// bit-concatenation LET target (e.g. "rax@inita") also be the name the
// formula itself references.
func cvcPostfixTerm(a *value.Arena, id value.ID, postfix string) string {
	v := a.Get(id)
	if v.NumArgs > 0 {
		if v.NumArgs == 1 {
			return fmt.Sprintf("%s(%s)", v.Op, cvcPostfixTerm(a, v.Args[0], postfix))
		}
		return fmt.Sprintf("%s(%s, %s)", v.Op, cvcPostfixTerm(a, v.Args[0], postfix), cvcPostfixTerm(a, v.Args[1], postfix))
	}
	switch v.Kind {
	case value.Symbol:
		return v.Name + postfix
	case value.Concrete:
		return fmt.Sprintf("0hex%016X", v.Const)
	default: // Hybrid
		parts := make([]string, len(v.Ranges))
		for i, r := range v.Ranges {
			parts[i] = fmt.Sprintf("%s[%d:%d]", cvcPostfixTerm(a, r.Child, postfix), r.Hi, r.Lo)
		}
		return strings.Join(parts, "@")
	}
}

func sortedKeys(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// EmitBitEquivalence renders one CVC3 per-bit equivalence query per
// mapping in mappings, matching original_source/mg-symengine.cpp's
// outputBitCVC: every bit of every input symbol on both sides is
// declared as its own BV(1) variable; the mapping's input bits are
// asserted equal; those bits are concatenated back into each side's
// named input symbols via a LET chain; each side's result is computed
// from there; and the mapping's output bits are asserted equal. The
// i-th returned string is the query for mappings[i] — callers write
// each to its own formulaN.cvc file, one per candidate mapping, exactly
// as outputBitCVC does.
func EmitBitEquivalence(leftArena *value.Arena, left value.ID, leftInputs []value.ID, rightArena *value.Arena, right value.ID, rightInputs []value.ID, mappings []BitMapping) []string {
	out := make([]string, len(mappings))
	for i, mp := range mappings {
		out[i] = emitOneBitEquivalence(leftArena, left, leftInputs, rightArena, right, rightInputs, mp)
	}
	return out
}

func emitOneBitEquivalence(leftArena *value.Arena, left value.ID, leftInputs []value.ID, rightArena *value.Arena, right value.ID, rightInputs []value.ID, mp BitMapping) string {
	var b strings.Builder

	for i := 0; i < 64*len(leftInputs); i++ {
		fmt.Fprintf(&b, "bit%da: BV(1);\n", i)
	}
	for i := 0; i < 64*len(rightInputs); i++ {
		fmt.Fprintf(&b, "bit%db: BV(1);\n", i)
	}

	for _, k := range sortedKeys(mp.InputBits) {
		fmt.Fprintf(&b, "ASSERT(bit%da = bit%db);\n", k, mp.InputBits[k])
	}
	b.WriteString("\n")

	b.WriteString("\nQUERY(\n")

	for i, id := range leftInputs {
		fmt.Fprintf(&b, "LET %sa = ", leftArena.Get(id).Name)
		for j := 0; j < 63; j++ {
			fmt.Fprintf(&b, "bit%da@", i*64+j)
		}
		fmt.Fprintf(&b, "bit%da IN (\n", i*64+63)
	}
	for i, id := range rightInputs {
		fmt.Fprintf(&b, "LET %sb = ", rightArena.Get(id).Name)
		for j := 0; j < 63; j++ {
			fmt.Fprintf(&b, "bit%db@", i*64+j)
		}
		fmt.Fprintf(&b, "bit%db IN (\n", i*64+63)
	}

	b.WriteString("LET out1 = ")
	b.WriteString(cvcPostfixTerm(leftArena, left, "a"))
	b.WriteString(" IN (\n")

	b.WriteString("LET out2 = ")
	b.WriteString(cvcPostfixTerm(rightArena, right, "b"))
	b.WriteString(" IN (\n")

	outKeys := sortedKeys(mp.OutputBits)
	for i, k := range outKeys {
		v := mp.OutputBits[k]
		if i < len(outKeys)-1 {
			fmt.Fprintf(&b, "out1[%d:%d] = out2[%d:%d] AND\n", k, k, v, v)
		} else {
			fmt.Fprintf(&b, "out1[%d:%d] = out2[%d:%d]\n", k, k, v, v)
		}
	}

	for i := 0; i < len(leftInputs)+len(rightInputs); i++ {
		b.WriteString(")")
	}
	b.WriteString(")));\n")
	b.WriteString("COUNTEREXAMPLE;")
	return b.String()
}
