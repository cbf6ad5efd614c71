package formula

import (
	"fmt"
	"math/bits"

	"github.com/vmhunt/symx/pkg/value"
)

// Conexec concretely evaluates root given a binding for every Symbol it
// depends on. The binding's key set must exactly equal Inputs(a, root);
// mirrors original_source/mg-symengine.cpp's conexec, which validates
// this before evaluating. Arithmetic wraps with C-style unsigned 64-bit
// semantics (Go's uint64 arithmetic already wraps this way).
func Conexec(a *value.Arena, root value.ID, inputs map[string]uint64) (uint64, error) {
	want := Inputs(a, root)
	if len(want) != len(inputs) {
		return 0, fmt.Errorf("formula: conexec expects exactly %d input(s) %v, got %d", len(want), want, len(inputs))
	}
	for _, n := range want {
		if _, ok := inputs[n]; !ok {
			return 0, fmt.Errorf("formula: conexec missing binding for input %q", n)
		}
	}
	return eval(a, root, inputs)
}

func eval(a *value.Arena, id value.ID, inputs map[string]uint64) (uint64, error) {
	v := a.Get(id)
	if v.NumArgs == 0 {
		switch v.Kind {
		case value.Concrete:
			return v.Const, nil
		case value.Symbol:
			val, ok := inputs[v.Name]
			if !ok {
				return 0, fmt.Errorf("formula: conexec missing binding for input %q", v.Name)
			}
			return val, nil
		case value.Hybrid:
			return evalHybrid(a, v, inputs)
		default:
			return 0, fmt.Errorf("formula: conexec: node %d has no operation and an unrecognised leaf kind", id)
		}
	}

	args := make([]uint64, v.NumArgs)
	for i, arg := range v.ArgList() {
		x, err := eval(a, arg, inputs)
		if err != nil {
			return 0, err
		}
		args[i] = x
	}
	switch v.Op {
	case value.Add:
		return args[0] + args[1], nil
	case value.Sub:
		return args[0] - args[1], nil
	case value.Imul:
		return args[0] * args[1], nil
	case value.Div:
		if args[1] == 0 {
			return 0, fmt.Errorf("formula: conexec: division by zero")
		}
		return args[0] / args[1], nil
	case value.Mod:
		if args[1] == 0 {
			return 0, fmt.Errorf("formula: conexec: modulo by zero")
		}
		return args[0] % args[1], nil
	case value.And:
		return args[0] & args[1], nil
	case value.Or:
		return args[0] | args[1], nil
	case value.Xor:
		return args[0] ^ args[1], nil
	case value.Shl:
		return args[0] << (args[1] & 63), nil
	case value.Shr:
		return args[0] >> (args[1] & 63), nil
	case value.Sar:
		return uint64(int64(args[0]) >> (args[1] & 63)), nil
	case value.Neg:
		return ^args[0] + 1, nil
	case value.Not:
		return ^args[0], nil
	case value.Bswap:
		return bits.ReverseBytes64(args[0]), nil
	case value.Mov:
		return args[0], nil
	default:
		return 0, fmt.Errorf("formula: conexec does not recognise operation %v", v.Op)
	}
}

// evalHybrid concretely resolves a piecewise bit-range composition by
// evaluating each child and reassembling it into its bit span via shift
// and mask, mirroring how a HYBRID node's childs map reads back out in
// original_source/mg-symengine.cpp.
func evalHybrid(a *value.Arena, v *value.Value, inputs map[string]uint64) (uint64, error) {
	var acc uint64
	for _, r := range v.Ranges {
		child, err := eval(a, r.Child, inputs)
		if err != nil {
			return 0, err
		}
		width := uint(r.Hi - r.Lo + 1)
		if width < 64 {
			child &= (uint64(1) << width) - 1
		}
		acc |= child << uint(r.Lo)
	}
	return acc, nil
}
