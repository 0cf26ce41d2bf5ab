package poly

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInexactDivision is returned when a scale-down would leave a remainder.
// Access offsets are computed in element-granularity units, so the division
// by the element size must always be exact; a remainder indicates a
// malformed offset.
var ErrInexactDivision = errors.New("poly: inexact division in scale-down")

// Aff is an integer affine function over the input dimensions and parameters
// of its domain space: cst + sum(param[i]*p_i) + sum(in[i]*d_i).
type Aff struct {
	space *Space
	cst   *big.Int
	param []*big.Int
	in    []*big.Int
}

// ZeroAff creates the zero function on the given domain space.
func ZeroAff(space *Space) *Aff {
	return &Aff{
		space: space.clone(),
		cst:   big.NewInt(0),
		param: zeros(space.NParams()),
		in:    zeros(space.NOut()),
	}
}

func zeros(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = big.NewInt(0)
	}
	return out
}

func cloneInts(v []*big.Int) []*big.Int {
	out := make([]*big.Int, len(v))
	for i, x := range v {
		out[i] = new(big.Int).Set(x)
	}
	return out
}

func (a *Aff) clone() *Aff {
	return &Aff{
		space: a.space.clone(),
		cst:   new(big.Int).Set(a.cst),
		param: cloneInts(a.param),
		in:    cloneInts(a.in),
	}
}

// Space returns the domain space of the function.
func (a *Aff) Space() *Space { return a.space.clone() }

// WithConstant returns a copy with the constant term increased by v.
func (a *Aff) WithConstant(v *big.Int) *Aff {
	c := a.clone()
	c.cst.Add(c.cst, v)
	return c
}

// WithInCoeff returns a copy with the coefficient of input dimension i set.
func (a *Aff) WithInCoeff(i int, v int64) *Aff {
	c := a.clone()
	c.in[i] = big.NewInt(v)
	return c
}

// WithParamCoeff returns a copy with the coefficient of parameter dimension
// i set.
func (a *Aff) WithParamCoeff(i int, v int64) *Aff {
	c := a.clone()
	c.param[i] = big.NewInt(v)
	return c
}

// IsConstant reports whether the function has no dimension coefficients at
// all, i.e. evaluates to the same integer everywhere.
func (a *Aff) IsConstant() bool {
	for _, v := range a.param {
		if v.Sign() != 0 {
			return false
		}
	}
	for _, v := range a.in {
		if v.Sign() != 0 {
			return false
		}
	}
	return true
}

// alignAffs re-expresses both functions over the union of their parameter
// spaces.
func alignAffs(a, b *Aff) (*Aff, *Aff) {
	space, fromA, fromB := alignSpaces(a.space, b.space)
	return a.remap(space, fromA), b.remap(space, fromB)
}

func (a *Aff) remap(space *Space, fromA []int) *Aff {
	c := &Aff{
		space: space.clone(),
		cst:   new(big.Int).Set(a.cst),
		param: zeros(space.NParams()),
		in:    cloneInts(a.in),
	}
	for i, v := range a.param {
		c.param[fromA[i]].Set(v)
	}
	return c
}

// Add returns the pointwise sum of two affine functions.
func (a *Aff) Add(b *Aff) *Aff {
	x, y := alignAffs(a, b)
	x.cst.Add(x.cst, y.cst)
	for i := range x.param {
		x.param[i].Add(x.param[i], y.param[i])
	}
	for i := range x.in {
		x.in[i].Add(x.in[i], y.in[i])
	}
	return x
}

// Neg returns the pointwise negation.
func (a *Aff) Neg() *Aff {
	c := a.clone()
	c.cst.Neg(c.cst)
	for i := range c.param {
		c.param[i].Neg(c.param[i])
	}
	for i := range c.in {
		c.in[i].Neg(c.in[i])
	}
	return c
}

// Sub returns the pointwise difference a - b.
func (a *Aff) Sub(b *Aff) *Aff { return a.Add(b.Neg()) }

// Mul returns the product of two affine functions. At least one factor must
// be constant; the product of two non-constant functions is not affine and
// indicates that a non-affine expression slipped past upstream validation.
func (a *Aff) Mul(b *Aff) *Aff {
	x, y := alignAffs(a, b)
	if !y.IsConstant() {
		x, y = y, x
	}
	if !y.IsConstant() {
		panic("poly: product of two non-constant affine expressions")
	}
	k := y.cst
	x.cst.Mul(x.cst, k)
	for i := range x.param {
		x.param[i].Mul(x.param[i], k)
	}
	for i := range x.in {
		x.in[i].Mul(x.in[i], k)
	}
	return x
}

// ScaleDown divides every coefficient and the constant by v. The division
// must be exact; ErrInexactDivision is returned otherwise.
func (a *Aff) ScaleDown(v int64) (*Aff, error) {
	if v == 0 {
		return nil, fmt.Errorf("poly: scale-down by zero")
	}
	d := big.NewInt(v)
	c := a.clone()
	terms := append([]*big.Int{c.cst}, c.param...)
	terms = append(terms, c.in...)
	var rem big.Int
	for _, t := range terms {
		t.QuoRem(t, d, &rem)
		if rem.Sign() != 0 {
			return nil, ErrInexactDivision
		}
	}
	return c, nil
}

// Eval evaluates the function at the given point. Parameters are looked up
// by name.
func (a *Aff) Eval(dims []int64, params map[string]int64) *big.Int {
	if len(dims) != len(a.in) {
		panic(fmt.Sprintf("poly: point has %d dims, expected %d", len(dims), len(a.in)))
	}
	v := new(big.Int).Set(a.cst)
	var t big.Int
	for i, c := range a.param {
		pv, ok := params[a.space.params[i].Name]
		if !ok && c.Sign() != 0 {
			panic("poly: no value for parameter " + a.space.params[i].Name)
		}
		v.Add(v, t.Mul(c, big.NewInt(pv)))
	}
	for i, c := range a.in {
		v.Add(v, t.Mul(c, big.NewInt(dims[i])))
	}
	return v
}
