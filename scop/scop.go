// Package scop assembles the polyhedral program model of one control-flow
// region: per-statement iteration domains, access relations and scattering
// functions, expressed over a single global parameter space.
package scop

import (
	"strconv"
	"strings"

	"github.com/viant/polyscop/cfg"
	"github.com/viant/polyscop/extract"
	"github.com/viant/polyscop/poly"
	"github.com/viant/polyscop/scev"
)

// Parameter is one dimension of the model's global parameter space: an
// irreducible symbolic expression discovered during construction. Dimension
// indices follow discovery order and never change once assigned.
type Parameter struct {
	Expr scev.Expr
	ID   poly.ID
	Dim  int
}

// Scop is the program model of one region.
type Scop struct {
	region     *cfg.Region
	context    *poly.Set
	params     []*Parameter
	paramIdx   map[uint64]int
	statements []*Statement
	maxDepth   int
}

// Build assembles the model from the extracted facts of one region in a
// single depth-first pass, then unifies the parameter space. Early-built
// objects cannot know about parameters later statements discover, so
// construction runs discover-then-align.
func Build(facts *extract.Facts) *Scop {
	s := &Scop{
		region:   facts.Region,
		maxDepth: facts.MaxLoopDepth,
		paramIdx: make(map[uint64]int),
	}
	scatter := make([]int, facts.MaxLoopDepth+1)
	s.buildRegion(facts, facts.Region, nil, scatter)
	s.RealignParams()
	return s
}

// buildRegion walks the region elements in layout order. A loop sub-region
// pushes its induction variable before recursing; on exit its scatter
// counter resets and the parent's advances, so sibling nests at equal depth
// keep their sequential order. Blocks without access facts contribute no
// statement.
func (s *Scop) buildRegion(facts *extract.Facts, region *cfg.Region, nest []Iteration, scatter []int) {
	if l := region.Loop; l != nil {
		nest = append(nest, Iteration{IV: facts.IVs[l], Loop: l})
	}
	depth := len(nest)
	for _, el := range region.Elements {
		switch e := el.(type) {
		case *cfg.Region:
			s.buildRegion(facts, e, nest, scatter)
		case *cfg.Block:
			if len(facts.Accesses[e]) == 0 {
				continue
			}
			s.statements = append(s.statements, newStatement(s, facts, e, nest, scatter))
			scatter[depth]++
		}
	}
	if region.Loop == nil {
		return
	}
	scatter[depth] = 0
	scatter[depth-1]++
}

// parameterFor looks up a registered parameter by structural identity.
func (s *Scop) parameterFor(e scev.Expr) (*Parameter, bool) {
	dim, ok := s.paramIdx[scev.Key(e)]
	if !ok {
		return nil, false
	}
	return s.params[dim], true
}

// registerParameter returns the dimension ID of the expression, creating it
// on first sight. Parameters accumulate monotonically during one build.
func (s *Scop) registerParameter(e scev.Expr) poly.ID {
	key := scev.Key(e)
	if dim, ok := s.paramIdx[key]; ok {
		return s.params[dim].ID
	}
	dim := len(s.params)
	id := poly.ID{Name: parameterName(e, dim), Key: key}
	s.params = append(s.params, &Parameter{Expr: e, ID: id, Dim: dim})
	s.paramIdx[key] = dim
	return id
}

// parameterName derives a dump name: the underlying value identifier when
// one exists and does not collide with the reserved synthesized form,
// p_<dim> otherwise.
func parameterName(e scev.Expr, dim int) string {
	if u, ok := e.(*scev.Unknown); ok {
		if name := sanitize(u.Value.Name()); name != "" && !strings.HasPrefix(name, "p_") {
			return name
		}
	}
	return "p_" + strconv.Itoa(dim)
}

// RealignParams rebuilds the context over every parameter discovered so far
// and re-expresses each statement's domain, scattering and access relations
// over that space. Realigning an aligned model is a no-op.
func (s *Scop) RealignParams() {
	ids := make([]poly.ID, len(s.params))
	for i, p := range s.params {
		ids[i] = p.ID
	}
	space := poly.ParamsSpace(ids...)
	s.context = poly.UniverseSet(space)
	for _, st := range s.statements {
		st.alignParams(space)
	}
}

// Region returns the modeled region.
func (s *Scop) Region() *cfg.Region { return s.region }

// Context returns the constraint set over the parameter space.
func (s *Scop) Context() *poly.Set { return s.context }

// SetContext installs a refined parameter constraint set.
func (s *Scop) SetContext(set *poly.Set) { s.context = set }

// ParamSpace returns the global parameter space.
func (s *Scop) ParamSpace() *poly.Space { return s.context.Space() }

// Parameters returns the parameter table in dimension order.
func (s *Scop) Parameters() []*Parameter {
	return append([]*Parameter{}, s.params...)
}

// Statements returns the statements in execution order.
func (s *Scop) Statements() []*Statement {
	return append([]*Statement{}, s.statements...)
}

// MaxLoopDepth returns the deepest loop nesting of the region.
func (s *Scop) MaxLoopDepth() int { return s.maxDepth }

// Domains returns the union of all statement domains.
func (s *Scop) Domains() *poly.UnionSet {
	u := poly.NewUnionSet()
	for _, st := range s.statements {
		u = u.Add(st.domain)
	}
	return u
}

// String renders the model for diagnostics and interchange.
func (s *Scop) String() string {
	var b strings.Builder
	b.WriteString("Context:\n    " + s.context.String() + "\n")
	b.WriteString("Statements {\n")
	for _, st := range s.statements {
		b.WriteString("    " + st.name + "\n")
		b.WriteString("        Domain := " + st.domain.String() + ";\n")
		b.WriteString("        Scattering := " + st.scattering.String() + ";\n")
		for _, access := range st.accesses {
			b.WriteString("        " + access.kind.String() + " := " + access.Relation().String() + ";\n")
		}
	}
	b.WriteString("}")
	return b.String()
}
