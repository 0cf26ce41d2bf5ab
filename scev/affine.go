package scev

import "github.com/viant/polyscop/cfg"

// IsAffine reports whether the expression has a faithful piecewise-affine
// form over the iterators of the region's loops and a set of parameters.
// inRegion reports whether a loop belongs to the region under analysis.
//
// The validator runs before an access offset is admitted as affine; offsets
// it rejects degrade to a universal access relation instead of failing the
// build. Unsigned shapes (zero extension, truncation, unsigned division and
// maximum) have no affine form under the signed-value assumption. A
// recurrence step must be a compile-time constant so the iterator
// coefficient stays integral.
func IsAffine(e Expr, inRegion func(*cfg.Loop) bool) bool {
	switch x := e.(type) {
	case *Constant:
		return true
	case *Unknown:
		return true
	case *SignExtend:
		return IsAffine(x.Op, inRegion)
	case *Add:
		for _, op := range x.Ops {
			if !IsAffine(op, inRegion) {
				return false
			}
		}
		return true
	case *Mul:
		nonConst := 0
		for _, op := range x.Ops {
			if _, ok := op.(*Constant); ok {
				continue
			}
			nonConst++
			if !IsAffine(op, inRegion) {
				return false
			}
		}
		return nonConst <= 1
	case *AddRec:
		if !inRegion(x.Loop) {
			return false
		}
		if _, ok := x.Step.(*Constant); !ok {
			return false
		}
		return IsAffine(x.Start, inRegion)
	case *SMax:
		for _, op := range x.Ops {
			if !IsAffine(op, inRegion) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Unknowns collects every unknown of the expression in visit order.
func Unknowns(e Expr) []*Unknown {
	var out []*Unknown
	var walk func(Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case *Unknown:
			out = append(out, x)
		case *Add:
			for _, op := range x.Ops {
				walk(op)
			}
		case *Mul:
			for _, op := range x.Ops {
				walk(op)
			}
		case *AddRec:
			walk(x.Start)
			walk(x.Step)
		case *SMax:
			for _, op := range x.Ops {
				walk(op)
			}
		case *UMax:
			for _, op := range x.Ops {
				walk(op)
			}
		case *SignExtend:
			walk(x.Op)
		case *ZeroExtend:
			walk(x.Op)
		case *Truncate:
			walk(x.Op)
		case *UDiv:
			walk(x.X)
			walk(x.Y)
		}
	}
	walk(e)
	return out
}

// SplitPointer separates an address expression into its unique pointer base
// and the remaining offset. The base distributes through sums and through
// the start of a recurrence; nil is returned when no pointer unknown is
// present.
func SplitPointer(e Expr) (*Unknown, Expr) {
	switch x := e.(type) {
	case *Unknown:
		if x.Pointer {
			return x, NewConstant(0)
		}
		return nil, e
	case *Add:
		for i, op := range x.Ops {
			base, rest := SplitPointer(op)
			if base == nil {
				continue
			}
			ops := make([]Expr, 0, len(x.Ops))
			ops = append(ops, x.Ops[:i]...)
			ops = append(ops, rest)
			ops = append(ops, x.Ops[i+1:]...)
			return base, NewAdd(ops...)
		}
		return nil, e
	case *AddRec:
		base, rest := SplitPointer(x.Start)
		if base == nil {
			return nil, e
		}
		return base, &AddRec{Start: rest, Step: x.Step, Loop: x.Loop}
	default:
		return nil, e
	}
}
