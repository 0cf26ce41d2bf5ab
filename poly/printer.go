package poly

import (
	"math/big"
	"strings"
)

// The canonical textual form is the interchange format of the library:
//
//	[N, M] -> { Stmt_bb3[i0, i1] : i0 >= 0 and N - i0 >= 0 }
//	[M] -> { Stmt_bb3[i0, i1] -> MemRef_A[o0] : o0 = 64i0 + i1 }
//
// Disjuncts are joined by "; ". Equalities are printed solved for a
// unit-coefficient dimension when one exists; inequalities are printed as
// stored, terms ordered input dims, output dims, params, constant.

type term struct {
	coeff *big.Int
	name  string // empty for the constant term
}

func (s *Space) paramName(i int) string {
	if s.params[i].Name != "" {
		return s.params[i].Name
	}
	return "p" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func dimNames(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + itoa(i)
	}
	return out
}

func (c constraint) terms(space *Space, setDims bool) []term {
	var out []term
	inNames := dimNames("i", len(c.in))
	outNames := dimNames("o", len(c.out))
	for i, k := range c.in {
		if k.Sign() != 0 {
			out = append(out, term{coeff: k, name: inNames[i]})
		}
	}
	if !setDims {
		for i, k := range c.out {
			if k.Sign() != 0 {
				out = append(out, term{coeff: k, name: outNames[i]})
			}
		}
	}
	for i, k := range c.param {
		if k.Sign() != 0 {
			out = append(out, term{coeff: k, name: space.paramName(i)})
		}
	}
	if c.cst.Sign() != 0 {
		out = append(out, term{coeff: c.cst, name: ""})
	}
	return out
}

func formatTerms(terms []term) string {
	if len(terms) == 0 {
		return "0"
	}
	var b strings.Builder
	one := big.NewInt(1)
	for i, t := range terms {
		neg := t.coeff.Sign() < 0
		abs := new(big.Int).Abs(t.coeff)
		switch {
		case i == 0 && neg:
			b.WriteString("-")
		case i > 0 && neg:
			b.WriteString(" - ")
		case i > 0:
			b.WriteString(" + ")
		}
		if t.name == "" {
			b.WriteString(abs.String())
			continue
		}
		if abs.Cmp(one) != 0 {
			b.WriteString(abs.String())
		}
		b.WriteString(t.name)
	}
	return b.String()
}

func negTerms(terms []term) []term {
	out := make([]term, len(terms))
	for i, t := range terms {
		out[i] = term{coeff: new(big.Int).Neg(t.coeff), name: t.name}
	}
	return out
}

// formatConstraint renders one constraint, solving unit-coefficient
// equalities for readability.
func formatConstraint(c constraint, space *Space, setDims bool) string {
	ts := c.terms(space, setDims)
	if !c.eq {
		return formatTerms(ts) + " >= 0"
	}
	one := big.NewInt(1)
	pivot := -1
	// Prefer solving for an output dimension, then an input dimension.
	for i := len(ts) - 1; i >= 0; i-- {
		if ts[i].name != "" && new(big.Int).Abs(ts[i].coeff).Cmp(one) == 0 {
			pivot = i
			if strings.HasPrefix(ts[i].name, "o") {
				break
			}
		}
	}
	if pivot < 0 {
		return formatTerms(ts) + " = 0"
	}
	lhs := ts[pivot]
	rest := append(append([]term{}, ts[:pivot]...), ts[pivot+1:]...)
	if lhs.coeff.Sign() > 0 {
		rest = negTerms(rest)
	}
	return lhs.name + " = " + formatTerms(rest)
}

func (s *Space) paramsPrefix() string {
	if len(s.params) == 0 {
		return ""
	}
	names := make([]string, len(s.params))
	for i := range s.params {
		names[i] = s.paramName(i)
	}
	return "[" + strings.Join(names, ", ") + "] -> "
}

func tuple(name string, dims []string) string {
	return name + "[" + strings.Join(dims, ", ") + "]"
}

// String renders the set in the canonical form.
func (s *Set) String() string {
	prefix := s.space.paramsPrefix()
	if len(s.disjuncts) == 0 {
		return prefix + "{ }"
	}
	head := tuple(s.space.outName, dimNames("i", s.space.NOut()))
	var parts []string
	for _, b := range s.disjuncts {
		parts = append(parts, formatBody(head, b, s.space, true))
	}
	return prefix + "{ " + strings.Join(parts, "; ") + " }"
}

// String renders the relation in the canonical form.
func (m *Map) String() string {
	prefix := m.space.paramsPrefix()
	if len(m.disjuncts) == 0 {
		return prefix + "{ }"
	}
	head := tuple(m.space.inName, dimNames("i", m.space.NIn())) +
		" -> " + tuple(m.space.outName, dimNames("o", m.space.NOut()))
	var parts []string
	for _, b := range m.disjuncts {
		parts = append(parts, formatBody(head, b, m.space, false))
	}
	return prefix + "{ " + strings.Join(parts, "; ") + " }"
}

func formatBody(head string, b basic, space *Space, setDims bool) string {
	if len(b.cons) == 0 {
		return head
	}
	var cs []string
	for _, c := range b.cons {
		cs = append(cs, formatConstraint(c, space, setDims))
	}
	return head + " : " + strings.Join(cs, " and ")
}

// String renders the union set, one member per disjunct group.
func (u *UnionSet) String() string {
	if len(u.sets) == 0 {
		return "{ }"
	}
	// Members are expected to share a parameter space after alignment.
	prefix := u.sets[0].space.paramsPrefix()
	var parts []string
	for _, s := range u.sets {
		head := tuple(s.space.outName, dimNames("i", s.space.NOut()))
		if len(s.disjuncts) == 0 {
			continue
		}
		for _, b := range s.disjuncts {
			parts = append(parts, formatBody(head, b, s.space, true))
		}
	}
	return prefix + "{ " + strings.Join(parts, "; ") + " }"
}
