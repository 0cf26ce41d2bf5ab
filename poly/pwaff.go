package poly

import "math/big"

// piece is one cell of a piecewise-affine function: the function equals aff
// on dom. The domain set and the function are kept over identical spaces.
type piece struct {
	dom *Set
	aff *Aff
}

// PwAff is a piecewise integer affine function over a domain space.
type PwAff struct {
	space  *Space
	pieces []piece
}

// PwAffFromAff wraps an affine function as a piecewise function defined on
// the whole domain.
func PwAffFromAff(aff *Aff) *PwAff {
	return &PwAff{
		space:  aff.space.clone(),
		pieces: []piece{{dom: UniverseSet(aff.space), aff: aff.clone()}},
	}
}

// Space returns the domain space of the function.
func (p *PwAff) Space() *Space { return p.space.clone() }

// IsConstant reports whether every piece of the function is constant.
func (p *PwAff) IsConstant() bool {
	for _, pc := range p.pieces {
		if !pc.aff.IsConstant() {
			return false
		}
	}
	return true
}

// pairDom intersects the domains of two pieces and re-expresses both affs
// over the resulting space.
func pairDom(a, b piece) (*Set, *Aff, *Aff) {
	dom := a.dom.Intersect(b.dom)
	x, y := alignAffs(a.aff, b.aff)
	return dom, x, y
}

func (p *PwAff) mapPairs(o *PwAff, f func(dom *Set, x, y *Aff) []piece) *PwAff {
	space, _, _ := alignSpaces(p.space, o.space)
	out := &PwAff{space: space}
	for _, a := range p.pieces {
		for _, b := range o.pieces {
			dom, x, y := pairDom(a, b)
			out.pieces = append(out.pieces, f(dom, x, y)...)
		}
	}
	return out
}

// Add returns the pointwise sum.
func (p *PwAff) Add(o *PwAff) *PwAff {
	return p.mapPairs(o, func(dom *Set, x, y *Aff) []piece {
		return []piece{{dom: dom, aff: x.Add(y)}}
	})
}

// Sub returns the pointwise difference.
func (p *PwAff) Sub(o *PwAff) *PwAff { return p.Add(o.Neg()) }

// Neg returns the pointwise negation.
func (p *PwAff) Neg() *PwAff {
	out := &PwAff{space: p.space.clone()}
	for _, pc := range p.pieces {
		out.pieces = append(out.pieces, piece{dom: pc.dom.clone(), aff: pc.aff.Neg()})
	}
	return out
}

// Mul returns the pointwise product. At least one side must be piecewise
// constant; otherwise the product is not affine and Mul panics.
func (p *PwAff) Mul(o *PwAff) *PwAff {
	if !p.IsConstant() && !o.IsConstant() {
		panic("poly: product of two non-constant piecewise affine expressions")
	}
	return p.mapPairs(o, func(dom *Set, x, y *Aff) []piece {
		return []piece{{dom: dom, aff: x.Mul(y)}}
	})
}

// Max returns the pointwise signed maximum, splitting each overlapping piece
// pair into the region where the left side dominates and the region where
// the right side is strictly larger.
func (p *PwAff) Max(o *PwAff) *PwAff {
	return p.mapPairs(o, func(dom *Set, x, y *Aff) []piece {
		left := dom.addConstraint(consGE(x, y))
		right := dom.addConstraint(consGT(y, x))
		return []piece{{dom: left, aff: x}, {dom: right, aff: y}}
	})
}

// ScaleDown divides the function by v; the division must be exact on every
// piece.
func (p *PwAff) ScaleDown(v int64) (*PwAff, error) {
	out := &PwAff{space: p.space.clone()}
	for _, pc := range p.pieces {
		aff, err := pc.aff.ScaleDown(v)
		if err != nil {
			return nil, err
		}
		out.pieces = append(out.pieces, piece{dom: pc.dom.clone(), aff: aff})
	}
	return out, nil
}

// Eval evaluates the function at the given point, selecting the piece whose
// domain contains it. The second result is false when no piece covers the
// point.
func (p *PwAff) Eval(dims []int64, params map[string]int64) (*big.Int, bool) {
	for _, pc := range p.pieces {
		if pc.dom.Contains(dims, params) {
			return pc.aff.Eval(dims, params), true
		}
	}
	return nil, false
}

// consGE builds the constraint x - y >= 0 over the (already aligned) space.
func consGE(x, y *Aff) constraint {
	d := x.Sub(y)
	return constraint{cst: d.cst, param: d.param, in: d.in}
}

// consGT builds the strict constraint x - y - 1 >= 0.
func consGT(x, y *Aff) constraint {
	d := x.Sub(y)
	d.cst.Sub(d.cst, big.NewInt(1))
	return constraint{cst: d.cst, param: d.param, in: d.in}
}

// consEQ builds the constraint x - y = 0.
func consEQ(x, y *Aff) constraint {
	d := x.Sub(y)
	return constraint{eq: true, cst: d.cst, param: d.param, in: d.in}
}

// cmpSet folds the piece pairs of two functions into a set of points where
// the given comparison holds.
func cmpSet(p, o *PwAff, f func(x, y *Aff) []constraint) *Set {
	space, _, _ := alignSpaces(p.space, o.space)
	out := EmptySet(space)
	for _, a := range p.pieces {
		for _, b := range o.pieces {
			dom, x, y := pairDom(a, b)
			for _, c := range f(x, y) {
				dom = dom.addConstraint(c)
			}
			out = out.Union(dom)
		}
	}
	return out
}

// EqSet returns the set of points where p = o.
func (p *PwAff) EqSet(o *PwAff) *Set {
	return cmpSet(p, o, func(x, y *Aff) []constraint { return []constraint{consEQ(x, y)} })
}

// NeSet returns the set of points where p != o.
func (p *PwAff) NeSet(o *PwAff) *Set {
	return p.LtSet(o).Union(p.GtSet(o))
}

// LtSet returns the set of points where p < o.
func (p *PwAff) LtSet(o *PwAff) *Set {
	return cmpSet(p, o, func(x, y *Aff) []constraint { return []constraint{consGT(y, x)} })
}

// LeSet returns the set of points where p <= o.
func (p *PwAff) LeSet(o *PwAff) *Set {
	return cmpSet(p, o, func(x, y *Aff) []constraint { return []constraint{consGE(y, x)} })
}

// GtSet returns the set of points where p > o.
func (p *PwAff) GtSet(o *PwAff) *Set { return o.LtSet(p) }

// GeSet returns the set of points where p >= o.
func (p *PwAff) GeSet(o *PwAff) *Set { return o.LeSet(p) }

// NonnegSet returns the set of points where p >= 0.
func (p *PwAff) NonnegSet() *Set {
	out := EmptySet(p.space)
	for _, pc := range p.pieces {
		zero := ZeroAff(pc.aff.space)
		out = out.Union(pc.dom.addConstraint(consGE(pc.aff, zero)))
	}
	return out
}
