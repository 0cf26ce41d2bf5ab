package poly

import (
	"fmt"
	"math/big"
)

// Map is a union of basic relations between an input and an output tuple.
type Map struct {
	space     *Space
	disjuncts []basic
}

// UniverseMap creates the unconstrained relation over the given space.
func UniverseMap(space *Space) *Map {
	if !space.isMap {
		panic("poly: universe map over a set space")
	}
	return &Map{space: space.clone(), disjuncts: []basic{{}}}
}

// MapFromPwAff turns a one-dimensional piecewise-affine function into the
// relation { in -> [v] : v = f(in) on the piece domains }.
func MapFromPwAff(p *PwAff) *Map {
	space := MapSpace(p.space.NOut(), 1, p.space.params...)
	space.inName = p.space.outName
	out := &Map{space: space}
	for _, pc := range p.pieces {
		// Pieces carry their own parameter order; re-express them over the
		// function's space before lifting.
		dom := pc.dom.AlignParams(p.space)
		aff := pc.aff.remapInto(p.space)
		eq := constraint{
			eq:    true,
			cst:   new(big.Int).Neg(aff.cst),
			param: negInts(aff.param),
			in:    negInts(aff.in),
			out:   []*big.Int{big.NewInt(1)},
		}
		// Each piece-domain disjunct becomes its own basic relation.
		for _, d := range dom.disjuncts {
			m := basic{}
			for _, c := range d.cons {
				cc := c.clone()
				cc.out = zeros(1)
				m.cons = append(m.cons, cc)
			}
			m.cons = append(m.cons, eq.clone())
			out.disjuncts = append(out.disjuncts, m)
		}
	}
	return out
}

// remapInto re-expresses the function over the parameter order of the given
// space, which must carry every parameter the function uses.
func (a *Aff) remapInto(space *Space) *Aff {
	remap := make([]int, len(a.space.params))
	for i, p := range a.space.params {
		idx := space.ParamIndex(p)
		if idx < 0 {
			panic("poly: parameter missing from target space")
		}
		remap[i] = idx
	}
	return a.remap(space, remap)
}

func negInts(v []*big.Int) []*big.Int {
	out := make([]*big.Int, len(v))
	for i, x := range v {
		out[i] = new(big.Int).Neg(x)
	}
	return out
}

func (m *Map) clone() *Map {
	d := make([]basic, len(m.disjuncts))
	for i, b := range m.disjuncts {
		d[i] = b.clone()
	}
	return &Map{space: m.space.clone(), disjuncts: d}
}

// Space returns the space of the relation.
func (m *Map) Space() *Space { return m.space.clone() }

// NIn returns the number of input dimensions.
func (m *Map) NIn() int { return m.space.NIn() }

// NOut returns the number of output dimensions.
func (m *Map) NOut() int { return m.space.NOut() }

// WithInName returns a copy with the input tuple name replaced.
func (m *Map) WithInName(name string) *Map {
	c := m.clone()
	c.space.inName = name
	return c
}

// WithOutName returns a copy with the output tuple name replaced.
func (m *Map) WithOutName(name string) *Map {
	c := m.clone()
	c.space.outName = name
	return c
}

// Equate returns a copy constrained by out[i] = in[j].
func (m *Map) Equate(out, in int) *Map {
	c := m.clone()
	eq := constraint{
		eq:    true,
		cst:   big.NewInt(0),
		param: zeros(m.space.NParams()),
		in:    zeros(m.space.NIn()),
		out:   zeros(m.space.NOut()),
	}
	eq.in[in] = big.NewInt(1)
	eq.out[out] = big.NewInt(-1)
	for i := range c.disjuncts {
		c.disjuncts[i].cons = append(c.disjuncts[i].cons, eq.clone())
	}
	return c
}

// FixOut returns a copy constrained by out[i] = v.
func (m *Map) FixOut(i int, v int64) *Map {
	c := m.clone()
	eq := constraint{
		eq:    true,
		cst:   big.NewInt(-v),
		param: zeros(m.space.NParams()),
		in:    zeros(m.space.NIn()),
		out:   zeros(m.space.NOut()),
	}
	eq.out[i] = big.NewInt(1)
	for j := range c.disjuncts {
		c.disjuncts[j].cons = append(c.disjuncts[j].cons, eq.clone())
	}
	return c
}

// AlignParams re-expresses the relation over the parameter dimensions of the
// given space. Aligning an already-aligned relation is a no-op.
func (m *Map) AlignParams(target *Space) *Map {
	space, remap := m.space.alignInto(target)
	n := space.NParams()
	out := &Map{space: space}
	for _, b := range m.disjuncts {
		nb := basic{}
		for _, c := range b.cons {
			nb.cons = append(nb.cons, c.remapParams(n, remap))
		}
		out.disjuncts = append(out.disjuncts, nb)
	}
	return out
}

// Apply evaluates the relation at an input point and returns the output
// tuple, provided every output dimension is pinned by a unit-coefficient
// equality (fixed or equated dimensions, and relations built from affine
// functions, always are). The second result is false when no disjunct covers
// the point.
func (m *Map) Apply(in []int64, params map[string]int64) ([]int64, bool) {
	if len(in) != m.space.NIn() {
		panic(fmt.Sprintf("poly: point has %d dims, expected %d", len(in), m.space.NIn()))
	}
	pv := make([]*big.Int, m.space.NParams())
	for i, id := range m.space.params {
		pv[i] = big.NewInt(params[id.Name])
	}
	iv := bigs(in)
	for _, b := range m.disjuncts {
		out, ok := solveOutputs(b, pv, iv, m.space.NOut())
		if ok {
			return out, true
		}
	}
	return nil, false
}

// solveOutputs deduces the output tuple from unit-coefficient equalities and
// then checks every constraint of the disjunct.
func solveOutputs(b basic, pv, iv []*big.Int, nOut int) ([]int64, bool) {
	out := make([]*big.Int, nOut)
	for _, c := range b.cons {
		if !c.eq {
			continue
		}
		idx, nonZero := -1, 0
		for i, k := range c.out {
			if k.Sign() != 0 {
				nonZero++
				idx = i
			}
		}
		if nonZero != 1 || out[idx] != nil {
			continue
		}
		k := c.out[idx]
		if k.CmpAbs(big.NewInt(1)) != 0 {
			continue
		}
		// cst + param·pv + in·iv + k*out[idx] = 0
		v := new(big.Int).Set(c.cst)
		var t big.Int
		for i, q := range c.param {
			v.Add(v, t.Mul(q, pv[i]))
		}
		for i, q := range c.in {
			v.Add(v, t.Mul(q, iv[i]))
		}
		if k.Sign() > 0 {
			v.Neg(v)
		}
		out[idx] = v
	}
	res := make([]int64, nOut)
	ov := make([]*big.Int, nOut)
	for i, v := range out {
		if v == nil {
			return nil, false
		}
		ov[i] = v
		res[i] = v.Int64()
	}
	for _, c := range b.cons {
		if !c.holds(pv, iv, ov) {
			return nil, false
		}
	}
	return res, true
}
