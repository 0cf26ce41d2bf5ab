package scop

import (
	"fmt"

	"github.com/viant/polyscop/cfg"
	"github.com/viant/polyscop/poly"
	"github.com/viant/polyscop/scev"
)

// affinator translates closed-form expressions into piecewise-affine
// functions over one statement's iteration space. Irreducible subexpressions
// become parameter dimensions, registered lazily on the owning model.
type affinator struct {
	scop *Scop
	st   *Statement
}

func (a *affinator) space(params ...poly.ID) *poly.Space {
	return poly.SetSpace(len(a.st.nest), params...).WithTupleName(a.st.name)
}

// translate maps an expression to its affine form. An expression already
// registered as a parameter stays one regardless of its shape. Shapes
// without a faithful affine form under the signed-value assumption indicate
// that upstream detection let a non-affine region through, a broken
// contract.
func (a *affinator) translate(e scev.Expr) *poly.PwAff {
	if param, ok := a.scop.parameterFor(e); ok {
		return a.paramRef(param.ID)
	}
	switch x := e.(type) {
	case *scev.Constant:
		return poly.PwAffFromAff(poly.ZeroAff(a.space()).WithConstant(x.Value))
	case *scev.Add:
		acc := a.translate(x.Ops[0])
		for _, op := range x.Ops[1:] {
			acc = acc.Add(a.translate(op))
		}
		return acc
	case *scev.Mul:
		acc := a.translate(x.Ops[0])
		for _, op := range x.Ops[1:] {
			acc = acc.Mul(a.translate(op))
		}
		return acc
	case *scev.SignExtend:
		return a.translate(x.Op)
	case *scev.AddRec:
		start := a.translate(x.Start)
		step := a.translate(x.Step)
		return start.Add(step.Mul(a.iterator(x.Loop)))
	case *scev.SMax:
		acc := a.translate(x.Ops[0])
		for _, op := range x.Ops[1:] {
			acc = acc.Max(a.translate(op))
		}
		return acc
	case *scev.ZeroExtend, *scev.Truncate, *scev.UDiv, *scev.UMax:
		panic(fmt.Sprintf("scop: expression %s has no affine form", e))
	}
	return a.paramRef(a.scop.registerParameter(e))
}

// iterator returns the unit-coefficient function on the dimension of the
// given loop within the statement's nest.
func (a *affinator) iterator(l *cfg.Loop) *poly.PwAff {
	for i, it := range a.st.nest {
		if it.Loop == l {
			return poly.PwAffFromAff(poly.ZeroAff(a.space()).WithInCoeff(i, 1))
		}
	}
	panic(fmt.Sprintf("scop: loop %s does not enclose %s", l.Header.Name(), a.st.name))
}

func (a *affinator) paramRef(id poly.ID) *poly.PwAff {
	return poly.PwAffFromAff(poly.ZeroAff(a.space(id)).WithParamCoeff(0, 1))
}
