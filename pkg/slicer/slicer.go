// Package slicer computes a backward program slice: the subsequence of
// instructions that can affect a criterion instruction's inputs.
// Grounded in original_source/slicer.cpp's backslice.
package slicer

import "github.com/vmhunt/symx/pkg/xinst"

type workingSet map[xinst.Parameter]bool

func (w workingSet) addAll(ps []xinst.Parameter) {
	for _, p := range ps {
		if p.Kind != xinst.ParamIMM {
			w[p] = true
		}
	}
}

func (w workingSet) removeAll(ps []xinst.Parameter) {
	for _, p := range ps {
		delete(w, p)
	}
}

func (w workingSet) anyIn(ps []xinst.Parameter) bool {
	for _, p := range ps {
		if w[p] {
			return true
		}
	}
	return false
}

// SliceCriterion computes the backward slice of instrs with respect to
// the instruction at criterionIdx, seeding the liveness working set from
// that instruction's own read Parameters and walking backward. The
// criterion instruction is always included in the result.
//
// xchg's two independent (dst,src)/(dst2,src2) pairs are each checked
// and can each independently pull their instruction into the slice,
// matching original_source/slicer.cpp's backslice dst2/src2 handling —
// but see DESIGN.md: the original never actually populated dst2/src2 via
// its parameter builder, so this path was previously unreachable.
func SliceCriterion(instrs []*xinst.Instruction, criterionIdx int) []*xinst.Instruction {
	if criterionIdx < 0 || criterionIdx >= len(instrs) {
		return nil
	}
	criterion := instrs[criterionIdx]
	work := make(workingSet)
	work.addAll(criterion.Src)
	work.addAll(criterion.Src2)

	result := []*xinst.Instruction{criterion}
	for i := criterionIdx - 1; i >= 0; i-- {
		in := instrs[i]
		fired := false
		if work.anyIn(in.Dst) {
			work.removeAll(in.Dst)
			work.addAll(in.Src)
			fired = true
		}
		if work.anyIn(in.Dst2) {
			work.removeAll(in.Dst2)
			work.addAll(in.Src2)
			fired = true
		}
		if fired {
			result = append([]*xinst.Instruction{in}, result...)
		}
	}
	return result
}

// Slice computes the backward slice with respect to the trace's last
// instruction, matching original_source/slicer.cpp's main() driver.
func Slice(instrs []*xinst.Instruction) []*xinst.Instruction {
	if len(instrs) == 0 {
		return nil
	}
	return SliceCriterion(instrs, len(instrs)-1)
}
