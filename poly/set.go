package poly

import (
	"fmt"
	"math/big"
)

// constraint is one affine condition over the dimensions of a space:
// cst + param·p + in·i + out·o  (= 0 | >= 0).
type constraint struct {
	eq    bool
	cst   *big.Int
	param []*big.Int
	in    []*big.Int
	out   []*big.Int
}

func (c constraint) clone() constraint {
	return constraint{
		eq:    c.eq,
		cst:   new(big.Int).Set(c.cst),
		param: cloneInts(c.param),
		in:    cloneInts(c.in),
		out:   cloneInts(c.out),
	}
}

func (c constraint) remapParams(n int, remap []int) constraint {
	d := c.clone()
	d.param = zeros(n)
	for i, v := range c.param {
		d.param[remap[i]].Set(v)
	}
	return d
}

func (c constraint) holds(params, in, out []*big.Int) bool {
	v := new(big.Int).Set(c.cst)
	var t big.Int
	for i, k := range c.param {
		v.Add(v, t.Mul(k, params[i]))
	}
	for i, k := range c.in {
		v.Add(v, t.Mul(k, in[i]))
	}
	for i, k := range c.out {
		v.Add(v, t.Mul(k, out[i]))
	}
	if c.eq {
		return v.Sign() == 0
	}
	return v.Sign() >= 0
}

func (c constraint) equal(o constraint) bool {
	if c.eq != o.eq || c.cst.Cmp(o.cst) != 0 {
		return false
	}
	same := func(a, b []*big.Int) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i].Cmp(b[i]) != 0 {
				return false
			}
		}
		return true
	}
	return same(c.param, o.param) && same(c.in, o.in) && same(c.out, o.out)
}

// basic is a conjunction of constraints: one disjunct of a set or relation.
type basic struct {
	cons []constraint
}

// add appends a constraint unless the conjunction already carries it.
func (b *basic) add(c constraint) {
	for _, have := range b.cons {
		if have.equal(c) {
			return
		}
	}
	b.cons = append(b.cons, c)
}

func (b basic) clone() basic {
	cons := make([]constraint, len(b.cons))
	for i, c := range b.cons {
		cons[i] = c.clone()
	}
	return basic{cons: cons}
}

// Set is a union of basic sets over a common space. A set with no disjuncts
// is empty; a single disjunct with no constraints is the universe.
type Set struct {
	space     *Space
	disjuncts []basic
}

// UniverseSet creates the unconstrained set over the given space.
func UniverseSet(space *Space) *Set {
	return &Set{space: space.clone(), disjuncts: []basic{{}}}
}

// EmptySet creates the empty set over the given space.
func EmptySet(space *Space) *Set {
	return &Set{space: space.clone()}
}

func (s *Set) clone() *Set {
	d := make([]basic, len(s.disjuncts))
	for i, b := range s.disjuncts {
		d[i] = b.clone()
	}
	return &Set{space: s.space.clone(), disjuncts: d}
}

// Space returns the space of the set.
func (s *Set) Space() *Space { return s.space.clone() }

// IsEmpty reports whether the set has no disjuncts. It does not attempt to
// prove that constrained disjuncts are unsatisfiable.
func (s *Set) IsEmpty() bool { return len(s.disjuncts) == 0 }

// WithTupleName returns a copy of the set with its tuple name replaced.
func (s *Set) WithTupleName(name string) *Set {
	c := s.clone()
	c.space = c.space.WithTupleName(name)
	return c
}

// addConstraint returns a copy of the set with the constraint added to every
// disjunct. The constraint must already be expressed over the set's space.
func (s *Set) addConstraint(c constraint) *Set {
	d := s.clone()
	for i := range d.disjuncts {
		d.disjuncts[i].add(c.clone())
	}
	return d
}

// Intersect returns the intersection of two sets, aligning their parameter
// spaces.
func (s *Set) Intersect(o *Set) *Set {
	space, fromS, fromO := alignSpaces(s.space, o.space)
	n := space.NParams()
	out := &Set{space: space}
	for _, bs := range s.disjuncts {
		for _, bo := range o.disjuncts {
			var m basic
			for _, c := range bs.cons {
				m.add(c.remapParams(n, fromS))
			}
			for _, c := range bo.cons {
				m.add(c.remapParams(n, fromO))
			}
			out.disjuncts = append(out.disjuncts, m)
		}
	}
	return out
}

// Union returns the union of two sets, aligning their parameter spaces.
func (s *Set) Union(o *Set) *Set {
	space, fromS, fromO := alignSpaces(s.space, o.space)
	n := space.NParams()
	out := &Set{space: space}
	for _, bs := range s.disjuncts {
		m := basic{}
		for _, c := range bs.cons {
			m.cons = append(m.cons, c.remapParams(n, fromS))
		}
		out.disjuncts = append(out.disjuncts, m)
	}
	for _, bo := range o.disjuncts {
		m := basic{}
		for _, c := range bo.cons {
			m.cons = append(m.cons, c.remapParams(n, fromO))
		}
		out.disjuncts = append(out.disjuncts, m)
	}
	return out
}

// AlignParams re-expresses the set over the parameter dimensions of the
// given space, appending any parameters the target does not carry. Aligning
// an already-aligned set is a no-op.
func (s *Set) AlignParams(target *Space) *Set {
	space, remap := s.space.alignInto(target)
	n := space.NParams()
	out := &Set{space: space}
	for _, b := range s.disjuncts {
		m := basic{}
		for _, c := range b.cons {
			m.cons = append(m.cons, c.remapParams(n, remap))
		}
		out.disjuncts = append(out.disjuncts, m)
	}
	return out
}

// Contains reports whether the given point belongs to the set. Parameter
// values are looked up by name.
func (s *Set) Contains(dims []int64, params map[string]int64) bool {
	if len(dims) != s.space.NOut() {
		panic(fmt.Sprintf("poly: point has %d dims, expected %d", len(dims), s.space.NOut()))
	}
	pv := s.paramValues(params)
	dv := bigs(dims)
	for _, b := range s.disjuncts {
		ok := true
		for _, c := range b.cons {
			if !c.holds(pv, dv, nil) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (s *Set) paramValues(params map[string]int64) []*big.Int {
	pv := make([]*big.Int, s.space.NParams())
	for i, id := range s.space.params {
		pv[i] = big.NewInt(params[id.Name])
	}
	return pv
}

func bigs(v []int64) []*big.Int {
	out := make([]*big.Int, len(v))
	for i, x := range v {
		out[i] = big.NewInt(x)
	}
	return out
}

// UnionSet is a union of sets over distinct tuple spaces, used for
// cross-statement domain queries.
type UnionSet struct {
	sets []*Set
}

// NewUnionSet creates a union set from the given sets.
func NewUnionSet(sets ...*Set) *UnionSet {
	return &UnionSet{sets: sets}
}

// Add returns a union set extended by one more set.
func (u *UnionSet) Add(s *Set) *UnionSet {
	return &UnionSet{sets: append(append([]*Set{}, u.sets...), s)}
}

// Sets returns the member sets in insertion order.
func (u *UnionSet) Sets() []*Set { return u.sets }
