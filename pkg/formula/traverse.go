// Package formula implements inspection and export over a value.Arena's
// DAG: collecting a formula's free inputs, printing it, concretely
// evaluating it, and emitting CVC3 bit-vector syntax (including the
// equivalence-check query templates). Grounded in
// original_source/mg-symengine.cpp's traverse/getInputs/eval/outputCVC*
// family.
package formula

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vmhunt/symx/pkg/value"
)

// Inputs returns every Symbol name reachable from root, deduplicated
// and sorted, via a visited-set DFS (spec.md §5: traversals must track
// visited nodes rather than re-walking shared subexpressions).
func Inputs(a *value.Arena, root value.ID) []string {
	seen := make(map[value.ID]bool)
	names := make(map[string]bool)
	var walk func(id value.ID)
	walk = func(id value.ID) {
		if seen[id] {
			return
		}
		seen[id] = true
		v := a.Get(id)
		if v.NumArgs > 0 {
			for _, arg := range v.ArgList() {
				walk(arg)
			}
			return
		}
		switch v.Kind {
		case value.Symbol:
			names[v.Name] = true
		case value.Hybrid:
			for _, r := range v.Ranges {
				walk(r.Child)
			}
		}
	}
	walk(root)
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// InputIDs returns the Value id of every Symbol leaf reachable from
// root, deduplicated and ordered by name (so the order is stable across
// calls/arenas for otherwise-identical formulas). Unlike Inputs, which
// only reports names, this is for callers that need to address each
// leaf's individual bits (e.g. EmitBitEquivalence).
func InputIDs(a *value.Arena, root value.ID) []value.ID {
	seen := make(map[value.ID]bool)
	byName := make(map[string]value.ID)
	var walk func(id value.ID)
	walk = func(id value.ID) {
		if seen[id] {
			return
		}
		seen[id] = true
		v := a.Get(id)
		if v.NumArgs > 0 {
			for _, arg := range v.ArgList() {
				walk(arg)
			}
			return
		}
		switch v.Kind {
		case value.Symbol:
			byName[v.Name] = id
		case value.Hybrid:
			for _, r := range v.Ranges {
				walk(r.Child)
			}
		}
	}
	walk(root)
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]value.ID, len(names))
	for i, n := range names {
		out[i] = byName[n]
	}
	return out
}

// Print renders root as a fully-expanded prefix expression, e.g.
// "(BVPLUS rax@init 0x2)". Shared subexpressions are printed once per
// occurrence (no LET folding) — use EmitCVC for the sharing-preserving form.
func Print(a *value.Arena, root value.ID) string {
	v := a.Get(root)
	if v.NumArgs > 0 {
		if v.NumArgs == 1 {
			return fmt.Sprintf("(%s %s)", v.Op, Print(a, v.Args[0]))
		}
		return fmt.Sprintf("(%s %s %s)", v.Op, Print(a, v.Args[0]), Print(a, v.Args[1]))
	}
	switch v.Kind {
	case value.Symbol:
		return v.Name
	case value.Concrete:
		return fmt.Sprintf("0x%x", v.Const)
	default: // Hybrid
		parts := make([]string, len(v.Ranges))
		for i, r := range v.Ranges {
			parts[i] = fmt.Sprintf("[%d:%d]=%s", r.Hi, r.Lo, Print(a, r.Child))
		}
		return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
	}
}

// topoOrder returns every node reachable from root in dependency order
// (operands before the node that uses them), each appearing once.
func topoOrder(a *value.Arena, root value.ID) []value.ID {
	seen := make(map[value.ID]bool)
	var order []value.ID
	var walk func(id value.ID)
	walk = func(id value.ID) {
		if seen[id] {
			return
		}
		seen[id] = true
		v := a.Get(id)
		if v.NumArgs > 0 {
			for _, arg := range v.ArgList() {
				walk(arg)
			}
		} else if v.Kind == value.Hybrid {
			for _, r := range v.Ranges {
				walk(r.Child)
			}
		}
		order = append(order, id)
	}
	walk(root)
	return order
}
