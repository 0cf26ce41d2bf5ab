package scop

import (
	"fmt"

	"github.com/viant/polyscop/cfg"
	"github.com/viant/polyscop/extract"
	"github.com/viant/polyscop/poly"
)

// Iteration pairs an induction variable with its loop; a statement's nest
// lists them outermost first.
type Iteration struct {
	IV   *cfg.Var
	Loop *cfg.Loop
}

// Statement models one basic block's dynamic instances across the
// iterations of its enclosing loops.
type Statement struct {
	scop       *Scop
	block      *cfg.Block
	name       string
	nest       []Iteration
	domain     *poly.Set
	scattering *poly.Map
	accesses   []*MemoryAccess
}

func newStatement(s *Scop, facts *extract.Facts, block *cfg.Block, nest []Iteration, scatter []int) *Statement {
	st := &Statement{
		scop:  s,
		block: block,
		name:  "Stmt_" + sanitize(block.Name()),
		nest:  append([]Iteration{}, nest...),
	}
	af := &affinator{scop: s, st: st}
	st.domain = st.buildDomain(af, facts)
	st.scattering = st.buildScattering(scatter)
	for _, fact := range facts.Accesses[block] {
		st.accesses = append(st.accesses, newAccess(st, af, fact))
	}
	return st
}

// buildDomain constrains the universal set over the iteration vector by the
// loop bounds, outermost to innermost, then by every branch condition
// reaching the block. A block outside any loop keeps a zero-dimensional
// single-point domain.
func (st *Statement) buildDomain(af *affinator, facts *extract.Facts) *poly.Set {
	dom := poly.UniverseSet(poly.SetSpace(len(st.nest)).WithTupleName(st.name))
	for _, it := range st.nest {
		iter := af.iterator(it.Loop)
		dom = dom.Intersect(iter.NonnegSet())
		bound, ok := facts.Bounds[it.Loop]
		if !ok {
			continue
		}
		dom = dom.Intersect(iter.LeSet(af.translate(bound)))
	}
	for _, cond := range facts.Conditions[st.block] {
		dom = dom.Intersect(st.conditionSet(af, cond))
	}
	return dom
}

// conditionSet translates one dominating comparison into the set of
// iterations satisfying it. Unsigned predicates have no translation under
// the signed-value assumption and mean the upstream detector accepted a
// region it must reject.
func (st *Statement) conditionSet(af *affinator, cond extract.Comparison) *poly.Set {
	if !cond.Pred.IsSigned() {
		panic(fmt.Sprintf("scop: unsigned predicate in condition of %s", st.name))
	}
	lhs, rhs := af.translate(cond.LHS), af.translate(cond.RHS)
	switch cond.Pred {
	case cfg.PredEQ:
		return lhs.EqSet(rhs)
	case cfg.PredNE:
		return lhs.NeSet(rhs)
	case cfg.PredSLT:
		return lhs.LtSet(rhs)
	case cfg.PredSLE:
		return lhs.LeSet(rhs)
	case cfg.PredSGT:
		return lhs.GtSet(rhs)
	case cfg.PredSGE:
		return lhs.GeSet(rhs)
	}
	panic("scop: unknown predicate")
}

// buildScattering maps the iteration vector onto the flat execution-order
// tuple: lexical position constants alternate with iterator copies, and the
// tail up to the region-wide dimensionality is pinned to zero so every
// statement scatters into the same space.
func (st *Statement) buildScattering(scatter []int) *poly.Map {
	depth := len(st.nest)
	nOut := 2*st.scop.maxDepth + 1
	m := poly.UniverseMap(poly.MapSpace(depth, nOut)).
		WithInName(st.name).WithOutName("scattering")
	for i := 0; i <= depth; i++ {
		m = m.FixOut(2*i, int64(scatter[i]))
	}
	for i := 0; i < depth; i++ {
		m = m.Equate(2*i+1, i)
	}
	for i := 2*depth + 1; i < nOut; i++ {
		m = m.FixOut(i, 0)
	}
	return m
}

// Name returns the statement name, Stmt_ plus the sanitized block label.
func (st *Statement) Name() string { return st.name }

// Block returns the modeled basic block.
func (st *Statement) Block() *cfg.Block { return st.block }

// Nest returns the iteration vector pairs, outermost first.
func (st *Statement) Nest() []Iteration { return append([]Iteration{}, st.nest...) }

// Domain returns the iteration domain.
func (st *Statement) Domain() *poly.Set { return st.domain }

// Scattering returns the execution-order relation.
func (st *Statement) Scattering() *poly.Map { return st.scattering }

// SetScattering installs a new execution order, releasing the old relation.
func (st *Statement) SetScattering(m *poly.Map) { st.scattering = m }

// Accesses returns the statement's accesses in program order.
func (st *Statement) Accesses() []*MemoryAccess {
	return append([]*MemoryAccess{}, st.accesses...)
}

func (st *Statement) alignParams(space *poly.Space) {
	st.domain = st.domain.AlignParams(space)
	st.scattering = st.scattering.AlignParams(space)
	for _, access := range st.accesses {
		access.alignParams(space)
	}
}
