// Package poly implements the integer polyhedral arithmetic the model builder
// is expressed in: spaces with identified parameter dimensions, affine and
// piecewise-affine functions, integer sets and relations, and the canonical
// textual form used for dumps and interchange.
//
// All objects follow value semantics: operations return new objects and never
// mutate their receivers, so every object has exactly one conceptual owner.
// Integer values are interpreted as signed throughout.
package poly

import "fmt"

// ID identifies one parameter dimension. Two IDs denote the same parameter
// when both the name and the structural key match.
type ID struct {
	Name string
	Key  uint64
}

// Space describes the dimensionality of a set or relation: its parameter
// dimensions, its input/output (or set) dimensions and its tuple names.
type Space struct {
	params  []ID
	in      int // input dims; 0 for sets
	out     int // output dims for maps, set dims for sets
	isMap   bool
	inName  string
	outName string
}

// ParamsSpace creates a zero-dimensional space over the given parameters.
func ParamsSpace(params ...ID) *Space {
	return &Space{params: cloneIDs(params)}
}

// SetSpace creates a space with the given set dimensions and parameters.
func SetSpace(dims int, params ...ID) *Space {
	return &Space{params: cloneIDs(params), out: dims}
}

// MapSpace creates a relation space with the given input and output
// dimensions and parameters.
func MapSpace(in, out int, params ...ID) *Space {
	return &Space{params: cloneIDs(params), in: in, out: out, isMap: true}
}

// NParams returns the number of parameter dimensions.
func (s *Space) NParams() int { return len(s.params) }

// NIn returns the number of input dimensions.
func (s *Space) NIn() int { return s.in }

// NOut returns the number of output dimensions for relations and the number
// of set dimensions for sets.
func (s *Space) NOut() int { return s.out }

// Param returns the ID of the parameter dimension at the given position.
func (s *Space) Param(i int) ID { return s.params[i] }

// Params returns the parameter dimensions in order.
func (s *Space) Params() []ID { return cloneIDs(s.params) }

// TupleName returns the set tuple name (sets) or the input tuple name (maps).
func (s *Space) TupleName() string {
	if s.isMap {
		return s.inName
	}
	return s.outName
}

// OutName returns the output tuple name of a relation space.
func (s *Space) OutName() string { return s.outName }

// WithTupleName returns a copy of the space with the set tuple name replaced.
func (s *Space) WithTupleName(name string) *Space {
	c := s.clone()
	if s.isMap {
		c.inName = name
	} else {
		c.outName = name
	}
	return c
}

// WithOutName returns a copy of a relation space with the output tuple name
// replaced.
func (s *Space) WithOutName(name string) *Space {
	c := s.clone()
	c.outName = name
	return c
}

// ParamIndex returns the dimension position of the given parameter, or -1.
func (s *Space) ParamIndex(id ID) int {
	for i, p := range s.params {
		if p == id {
			return i
		}
	}
	return -1
}

func (s *Space) clone() *Space {
	c := *s
	c.params = cloneIDs(s.params)
	return &c
}

func cloneIDs(ids []ID) []ID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]ID, len(ids))
	copy(out, ids)
	return out
}

// sameDims reports whether two spaces agree on everything but parameters.
func (s *Space) sameDims(o *Space) bool {
	return s.in == o.in && s.out == o.out && s.isMap == o.isMap
}

// mergeParams computes the union of the parameter dimensions of two spaces,
// keeping the order of s and appending the parameters only o knows about. The
// returned index slices remap each space's parameter positions into the
// union.
func mergeParams(s, o *Space) (union []ID, fromS, fromO []int) {
	union = cloneIDs(s.params)
	fromS = make([]int, len(s.params))
	for i := range s.params {
		fromS[i] = i
	}
	fromO = make([]int, len(o.params))
	for i, p := range o.params {
		idx := -1
		for j, q := range union {
			if p == q {
				idx = j
				break
			}
		}
		if idx < 0 {
			idx = len(union)
			union = append(union, p)
		}
		fromO[i] = idx
	}
	return union, fromS, fromO
}

// alignSpaces returns a common space for a binary operation on objects with
// the given spaces, together with the parameter remapping of each side. The
// non-parameter dimensions must agree.
func alignSpaces(s, o *Space) (*Space, []int, []int) {
	if !s.sameDims(o) {
		panic(fmt.Sprintf("poly: incompatible spaces: %d/%d in, %d/%d out",
			s.in, o.in, s.out, o.out))
	}
	union, fromS, fromO := mergeParams(s, o)
	c := s.clone()
	c.params = union
	if c.outName == "" {
		c.outName = o.outName
	}
	if c.inName == "" {
		c.inName = o.inName
	}
	return c, fromS, fromO
}

// withParams returns a copy of the space with the parameter dimensions
// replaced by the given list.
func (s *Space) withParams(params []ID) *Space {
	c := s.clone()
	c.params = cloneIDs(params)
	return c
}

// alignInto computes the parameter remapping of s into the parameter list of
// target, appending parameters target does not carry. Used by AlignParams.
func (s *Space) alignInto(target *Space) (*Space, []int) {
	union := cloneIDs(target.params)
	remap := make([]int, len(s.params))
	for i, p := range s.params {
		idx := -1
		for j, q := range union {
			if p == q {
				idx = j
				break
			}
		}
		if idx < 0 {
			idx = len(union)
			union = append(union, p)
		}
		remap[i] = idx
	}
	return s.withParams(union), remap
}
