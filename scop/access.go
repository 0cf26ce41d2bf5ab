package scop

import (
	"github.com/viant/polyscop/cfg"
	"github.com/viant/polyscop/extract"
	"github.com/viant/polyscop/poly"
)

// AccessType is the direction of a memory access.
type AccessType int

const (
	ReadAccess AccessType = iota
	MustWriteAccess
	MayWriteAccess
)

// String returns the dump label of the access type.
func (t AccessType) String() string {
	switch t {
	case ReadAccess:
		return "ReadAccess"
	case MustWriteAccess:
		return "MustWriteAccess"
	case MayWriteAccess:
		return "MayWriteAccess"
	}
	return "UnknownAccess"
}

// MemoryAccess relates a statement's iteration vector to the abstract
// element coordinate one memory operation touches. A non-affine offset
// degrades to the universal relation: every iteration may touch any element,
// and a definite write weakens to a may-write. The rewritten slot belongs to
// downstream transformation and is never set during construction.
type MemoryAccess struct {
	stmt      *Statement
	kind      AccessType
	base      cfg.Value
	instr     cfg.Instr
	relation  *poly.Map
	rewritten *poly.Map
}

func newAccess(st *Statement, af *affinator, fact extract.Access) *MemoryAccess {
	access := &MemoryAccess{stmt: st, base: fact.Base, instr: fact.Instr}
	switch fact.Kind {
	case extract.Read, extract.ScalarRead:
		access.kind = ReadAccess
	default:
		access.kind = MustWriteAccess
	}
	name := "MemRef_" + sanitize(fact.Base.Name())
	if fact.Affine {
		offset := af.translate(fact.Offset)
		// Offsets are byte-granular; the relation works in elements.
		if scaled, err := offset.ScaleDown(fact.ElemSize); err == nil {
			access.relation = poly.MapFromPwAff(scaled).WithOutName(name)
			return access
		}
		// A remainder means the offset does not stay on element boundaries;
		// fall through to the conservative relation.
	}
	if access.kind == MustWriteAccess {
		access.kind = MayWriteAccess
	}
	access.relation = poly.UniverseMap(poly.MapSpace(len(st.nest), 1)).
		WithInName(st.name).WithOutName(name)
	return access
}

// Type returns the access direction.
func (a *MemoryAccess) Type() AccessType { return a.kind }

// Base returns the accessed base address or scalar value.
func (a *MemoryAccess) Base() cfg.Value { return a.base }

// Instr returns the originating instruction.
func (a *MemoryAccess) Instr() cfg.Instr { return a.instr }

// Statement returns the owning statement.
func (a *MemoryAccess) Statement() *Statement { return a.stmt }

// Relation returns the access relation, preferring a rewritten one when the
// downstream consumer installed it.
func (a *MemoryAccess) Relation() *poly.Map {
	if a.rewritten != nil {
		return a.rewritten
	}
	return a.relation
}

// Rewritten returns the replacement relation, or nil.
func (a *MemoryAccess) Rewritten() *poly.Map { return a.rewritten }

// SetRewritten installs a replacement relation, e.g. after privatization.
func (a *MemoryAccess) SetRewritten(m *poly.Map) { a.rewritten = m }

func (a *MemoryAccess) alignParams(space *poly.Space) {
	a.relation = a.relation.AlignParams(space)
	if a.rewritten != nil {
		a.rewritten = a.rewritten.AlignParams(space)
	}
}
