// Package extract scans a region's blocks for the raw facts the model
// builder consumes: memory accesses, scalar cross-statement dependences,
// per-loop backedge-taken counts and the branch conditions dominating each
// block.
package extract

import (
	"fmt"

	"github.com/viant/polyscop/cfg"
	"github.com/viant/polyscop/scev"
)

// Kind classifies an access fact.
type Kind int

const (
	Read Kind = iota
	Write
	ScalarRead
	ScalarWrite
)

// String returns the fact kind label.
func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	case ScalarRead:
		return "scalar read"
	case ScalarWrite:
		return "scalar write"
	}
	return "unknown"
}

// Access is one memory operation or scalar def/use edge of a block. Scalar
// edges are pseudo-accesses of element size 1 at offset 0.
type Access struct {
	Kind     Kind
	Base     cfg.Value
	Offset   scev.Expr
	ElemSize int64
	Affine   bool
	Instr    cfg.Instr
}

// Comparison is one branch condition dominating a block, already reduced to
// closed forms. Constant conditions arrive as 0 <= 1 or 0 >= 1.
type Comparison struct {
	LHS  scev.Expr
	RHS  scev.Expr
	Pred cfg.Predicate
}

// Facts holds everything the pass learned about one region.
type Facts struct {
	Region       *cfg.Region
	Accesses     map[*cfg.Block][]Access
	Bounds       map[*cfg.Loop]scev.Expr
	Conditions   map[*cfg.Block][]Comparison
	IVs          map[*cfg.Loop]*cfg.Var
	MaxLoopDepth int
}

// Pass extracts facts for the model builder. The analyses it depends on are
// plain constructor arguments.
type Pass struct {
	dom   *cfg.DomTree
	pdom  *cfg.DomTree
	loops *cfg.LoopInfo
	eval  *scev.Analysis
}

// New creates the pass over the given analyses.
func New(dom, pdom *cfg.DomTree, loops *cfg.LoopInfo, eval *scev.Analysis) *Pass {
	return &Pass{dom: dom, pdom: pdom, loops: loops, eval: eval}
}

// Run collects the facts of one region. A region loop without a canonical
// induction variable breaks the upstream detection contract and panics.
func (p *Pass) Run(region *cfg.Region) *Facts {
	facts := &Facts{
		Region:     region,
		Accesses:   make(map[*cfg.Block][]Access),
		Bounds:     make(map[*cfg.Loop]scev.Expr),
		Conditions: make(map[*cfg.Block][]Comparison),
		IVs:        make(map[*cfg.Loop]*cfg.Var),
	}
	blocks := region.Blocks()
	member := make(map[*cfg.Block]bool, len(blocks))
	for _, b := range blocks {
		member[b] = true
	}
	inRegion := func(l *cfg.Loop) bool { return l != nil && member[l.Header] }

	p.collectLoops(facts, member)
	scalars := p.scalarDependences(blocks, member, inRegion)
	for _, b := range blocks {
		if accesses := p.blockAccesses(b, member, inRegion, scalars); len(accesses) > 0 {
			facts.Accesses[b] = accesses
		}
		if conds := p.conditions(b, region); len(conds) > 0 {
			facts.Conditions[b] = conds
		}
	}
	return facts
}

func (p *Pass) collectLoops(facts *Facts, member map[*cfg.Block]bool) {
	for _, l := range p.loops.Loops {
		if !member[l.Header] {
			continue
		}
		iv := p.eval.InductionVariable(l)
		if iv == nil {
			panic(fmt.Sprintf("extract: loop %s has no canonical induction variable", l.Header.Name()))
		}
		facts.IVs[l] = p.eval.InductionValue(l)
		if count := p.eval.BackedgeTakenCount(l); count != nil {
			facts.Bounds[l] = count
		}
	}
	for b := range member {
		if d := regionDepth(p.loops.LoopFor(b), member); d > facts.MaxLoopDepth {
			facts.MaxLoopDepth = d
		}
	}
}

func regionDepth(l *cfg.Loop, member map[*cfg.Block]bool) int {
	d := 0
	for ; l != nil; l = l.Parent {
		if member[l.Header] {
			d++
		}
	}
	return d
}

// scalarDependences finds values used outside their defining block that the
// evaluator cannot rebuild from iterators and parameters; such values need a
// pseudo memory slot.
func (p *Pass) scalarDependences(blocks []*cfg.Block, member map[*cfg.Block]bool, inRegion func(*cfg.Loop) bool) map[*cfg.Var]bool {
	scalars := make(map[*cfg.Var]bool)
	note := func(b *cfg.Block, v cfg.Value) {
		x, ok := v.(*cfg.Var)
		if !ok || x.Def == nil {
			return
		}
		def := x.Def.Parent()
		if def == b || !member[def] {
			return
		}
		if p.synthesizable(x, member, inRegion) {
			return
		}
		scalars[x] = true
	}
	for _, b := range blocks {
		for _, in := range b.Instrs {
			for _, op := range operands(in) {
				note(b, op)
			}
		}
	}
	return scalars
}

// synthesizable reports whether a value's closed form is affine over the
// region's loops with every unknown invariant in the region.
func (p *Pass) synthesizable(v cfg.Value, member map[*cfg.Block]bool, inRegion func(*cfg.Loop) bool) bool {
	e := p.eval.Expr(v)
	if !scev.IsAffine(e, inRegion) {
		return false
	}
	for _, u := range scev.Unknowns(e) {
		x, ok := u.Value.(*cfg.Var)
		if !ok || x.Def == nil {
			continue
		}
		if member[x.Def.Parent()] {
			return false
		}
	}
	return true
}

func operands(in cfg.Instr) []cfg.Value {
	switch x := in.(type) {
	case *cfg.Load:
		return []cfg.Value{x.Addr}
	case *cfg.Store:
		return []cfg.Value{x.Addr, x.Val}
	case *cfg.BinOp:
		return []cfg.Value{x.X, x.Y}
	case *cfg.Compare:
		return []cfg.Value{x.X, x.Y}
	case *cfg.Phi:
		out := make([]cfg.Value, 0, len(x.Edges))
		for _, e := range x.Edges {
			out = append(out, e.Value)
		}
		return out
	case *cfg.Branch:
		if x.Cond != nil {
			return []cfg.Value{x.Cond}
		}
	}
	return nil
}

func result(in cfg.Instr) *cfg.Var {
	switch x := in.(type) {
	case *cfg.Load:
		return x.Result
	case *cfg.BinOp:
		return x.Result
	case *cfg.Compare:
		return x.Result
	case *cfg.Phi:
		return x.Result
	}
	return nil
}

// blockAccesses collects the block's access facts in instruction order:
// scalar reads for cross-block operands precede the instruction's own memory
// access, a scalar write follows the definition of an escaping value.
func (p *Pass) blockAccesses(b *cfg.Block, member map[*cfg.Block]bool, inRegion func(*cfg.Loop) bool, scalars map[*cfg.Var]bool) []Access {
	var out []Access
	for _, in := range b.Instrs {
		for _, op := range operands(in) {
			x, ok := op.(*cfg.Var)
			if !ok || !scalars[x] || x.Def.Parent() == b {
				continue
			}
			out = append(out, Access{Kind: ScalarRead, Base: x, Offset: scev.NewConstant(0), ElemSize: 1, Affine: true, Instr: in})
		}
		switch x := in.(type) {
		case *cfg.Load:
			out = append(out, p.memoryAccess(Read, x, x.Addr, x.ElemSize, inRegion, member))
		case *cfg.Store:
			out = append(out, p.memoryAccess(Write, x, x.Addr, x.ElemSize, inRegion, member))
		}
		if res := result(in); res != nil && scalars[res] {
			out = append(out, Access{Kind: ScalarWrite, Base: res, Offset: scev.NewConstant(0), ElemSize: 1, Affine: true, Instr: in})
		}
	}
	return out
}

func (p *Pass) memoryAccess(kind Kind, in cfg.Instr, addr cfg.Value, elemSize int64, inRegion func(*cfg.Loop) bool, member map[*cfg.Block]bool) Access {
	e := p.eval.Expr(addr)
	base, offset := scev.SplitPointer(e)
	if base == nil {
		return Access{Kind: kind, Base: addr, Offset: e, ElemSize: elemSize, Affine: false, Instr: in}
	}
	affine := scev.IsAffine(offset, inRegion) && p.offsetInvariant(offset, member)
	return Access{Kind: kind, Base: base.Value, Offset: offset, ElemSize: elemSize, Affine: affine, Instr: in}
}

// offsetInvariant rejects offsets whose parameters are themselves computed
// inside the region; those cannot live in the model's parameter space.
func (p *Pass) offsetInvariant(offset scev.Expr, member map[*cfg.Block]bool) bool {
	for _, u := range scev.Unknowns(offset) {
		x, ok := u.Value.(*cfg.Var)
		if !ok || x.Def == nil {
			continue
		}
		if member[x.Def.Parent()] {
			return false
		}
	}
	return true
}

// conditions walks the dominator tree from the block to the region entry.
// The condition at an immediate dominator is skipped when the current node
// post-dominates it: both sides of that branch reconverge before the block,
// so it does not constrain execution. The predicate is inverted when the
// block sits on the else side.
func (p *Pass) conditions(b *cfg.Block, region *cfg.Region) []Comparison {
	var out []Comparison
	for cur := b; cur != region.Entry; {
		parent := p.dom.IDom(cur)
		if parent == nil {
			break
		}
		if !p.pdom.Dominates(cur, parent) {
			if br := parent.Terminator(); br != nil && br.IsConditional() {
				inverted := p.dom.Dominates(br.Else, b)
				out = append(out, p.comparison(br.Cond, inverted))
			}
		}
		cur = parent
	}
	return out
}

func (p *Pass) comparison(cond cfg.Value, inverted bool) Comparison {
	if c, ok := cond.(*cfg.Const); ok {
		taken := (c.Value != 0) != inverted
		pred := cfg.PredSLE
		if !taken {
			pred = cfg.PredSGE
		}
		return Comparison{LHS: scev.NewConstant(0), RHS: scev.NewConstant(1), Pred: pred}
	}
	v, ok := cond.(*cfg.Var)
	if !ok || v.Def == nil {
		panic(fmt.Sprintf("extract: branch condition %s is not a comparison", cond.Name()))
	}
	cmp, ok := v.Def.(*cfg.Compare)
	if !ok {
		panic(fmt.Sprintf("extract: branch condition %s is not a comparison", cond.Name()))
	}
	pred := cmp.Pred
	if inverted {
		pred = pred.Inverse()
	}
	return Comparison{LHS: p.eval.Expr(cmp.X), RHS: p.eval.Expr(cmp.Y), Pred: pred}
}
