package scev

import (
	"math/big"
	"sort"

	"github.com/viant/polyscop/cfg"
)

// Option customises the analysis.
type Option func(*Analysis)

// WithPointerBases marks values as pointer bases; their unknowns become
// access bases instead of integer parameters.
func WithPointerBases(values ...cfg.Value) Option {
	return func(a *Analysis) {
		for _, v := range values {
			a.pointers[v] = true
		}
	}
}

// Analysis derives closed forms for integer values of a function: a
// recurrence per canonical induction variable and a backedge-taken count per
// counted loop. Translation is memoized per value.
type Analysis struct {
	loops    *cfg.LoopInfo
	pointers map[cfg.Value]bool
	exprs    map[cfg.Value]Expr
	recs     map[*cfg.Var]*AddRec
	ivs      map[*cfg.Loop]*AddRec
	ivVars   map[*cfg.Loop]*cfg.Var
	counts   map[*cfg.Loop]Expr
}

// NewAnalysis analyses the function. Loops are classified outermost first so
// a start value of an inner recurrence can reference the enclosing iterator.
func NewAnalysis(fn *cfg.Function, loops *cfg.LoopInfo, options ...Option) *Analysis {
	a := &Analysis{
		loops:    loops,
		pointers: make(map[cfg.Value]bool),
		exprs:    make(map[cfg.Value]Expr),
		recs:     make(map[*cfg.Var]*AddRec),
		ivs:      make(map[*cfg.Loop]*AddRec),
		ivVars:   make(map[*cfg.Loop]*cfg.Var),
		counts:   make(map[*cfg.Loop]Expr),
	}
	for _, option := range options {
		option(a)
	}
	ordered := make([]*cfg.Loop, len(loops.Loops))
	copy(ordered, loops.Loops)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Depth() < ordered[j].Depth()
	})
	for _, l := range ordered {
		a.classifyLoop(l)
	}
	for _, l := range ordered {
		if count := a.deriveCount(l); count != nil {
			a.counts[l] = count
		}
	}
	return a
}

// InductionVariable returns the canonical recurrence of the loop, or nil
// when no header phi classifies as one.
func (a *Analysis) InductionVariable(l *cfg.Loop) *AddRec { return a.ivs[l] }

// InductionValue returns the variable carrying the loop's canonical
// recurrence, or nil.
func (a *Analysis) InductionValue(l *cfg.Loop) *cfg.Var { return a.ivVars[l] }

// BackedgeTakenCount returns the number of times the loop's backedge runs,
// or nil when it cannot be derived.
func (a *Analysis) BackedgeTakenCount(l *cfg.Loop) Expr { return a.counts[l] }

// Expr translates a value into its closed form.
func (a *Analysis) Expr(v cfg.Value) Expr {
	if cached, ok := a.exprs[v]; ok {
		return cached
	}
	e := a.translate(v)
	a.exprs[v] = e
	return e
}

// CanSynthesize reports whether the value is rebuildable from iterators and
// parameters alone, so a use in another block needs no scalar dependence.
func (a *Analysis) CanSynthesize(v cfg.Value, inRegion func(*cfg.Loop) bool) bool {
	return IsAffine(a.Expr(v), inRegion)
}

func (a *Analysis) translate(v cfg.Value) Expr {
	switch x := v.(type) {
	case *cfg.Const:
		return &Constant{Value: big.NewInt(x.Value)}
	case *cfg.Var:
		if a.pointers[v] {
			return &Unknown{Value: x, Pointer: true}
		}
		if rec := a.recs[x]; rec != nil {
			return rec
		}
		if x.Def == nil {
			return &Unknown{Value: x}
		}
		if bin, ok := x.Def.(*cfg.BinOp); ok {
			left := a.Expr(bin.X)
			right := a.Expr(bin.Y)
			switch bin.Op {
			case cfg.OpAdd:
				return NewAdd(left, right)
			case cfg.OpSub:
				return Minus(left, right)
			case cfg.OpMul:
				return NewMul(left, right)
			}
		}
		return &Unknown{Value: x}
	}
	return &Unknown{Value: v}
}

// classifyLoop inspects the header phis; the first one matching the
// phi-plus-invariant-step pattern becomes the loop's canonical recurrence.
func (a *Analysis) classifyLoop(l *cfg.Loop) {
	for _, in := range l.Header.Instrs {
		phi, ok := in.(*cfg.Phi)
		if !ok {
			continue
		}
		rec := a.classifyPhi(l, phi)
		if rec == nil {
			continue
		}
		a.recs[phi.Result] = rec
		if a.ivs[l] == nil {
			a.ivs[l] = rec
			a.ivVars[l] = phi.Result
		}
	}
}

func (a *Analysis) classifyPhi(l *cfg.Loop, phi *cfg.Phi) *AddRec {
	var start cfg.Value
	var step Expr
	for _, edge := range phi.Edges {
		if !l.Contains(edge.Block) {
			if start != nil && start != edge.Value {
				return nil
			}
			start = edge.Value
			continue
		}
		next, ok := edge.Value.(*cfg.Var)
		if !ok || next.Def == nil {
			return nil
		}
		bin, ok := next.Def.(*cfg.BinOp)
		if !ok {
			return nil
		}
		step = a.stepOf(l, phi, bin)
		if step == nil {
			return nil
		}
	}
	if start == nil || step == nil {
		return nil
	}
	return &AddRec{Start: a.Expr(start), Step: step, Loop: l}
}

func (a *Analysis) stepOf(l *cfg.Loop, phi *cfg.Phi, bin *cfg.BinOp) Expr {
	var raw cfg.Value
	negate := false
	switch {
	case bin.Op == cfg.OpAdd && bin.X == phi.Result:
		raw = bin.Y
	case bin.Op == cfg.OpAdd && bin.Y == phi.Result:
		raw = bin.X
	case bin.Op == cfg.OpSub && bin.X == phi.Result:
		raw = bin.Y
		negate = true
	default:
		return nil
	}
	if !loopInvariant(l, raw) {
		return nil
	}
	step := a.Expr(raw)
	if negate {
		step = NewMul(NewConstant(-1), step)
	}
	return step
}

func loopInvariant(l *cfg.Loop, v cfg.Value) bool {
	x, ok := v.(*cfg.Var)
	if !ok || x.Def == nil {
		return true
	}
	return !l.Contains(x.Def.Parent())
}

// deriveCount derives the backedge-taken count from the loop's single
// exiting conditional branch comparing the canonical iterator against an
// invariant limit. Counts exist only for unit-magnitude constant steps; the
// inequality predicates yield the exact count, the disequality one is
// clamped at zero.
func (a *Analysis) deriveCount(l *cfg.Loop) Expr {
	rec := a.ivs[l]
	ivVar := a.ivVars[l]
	if rec == nil {
		return nil
	}
	step, ok := rec.Step.(*Constant)
	if !ok {
		return nil
	}
	cmp, exitOnFalse := a.exitCompare(l)
	if cmp == nil {
		return nil
	}
	pred := cmp.Pred
	if !exitOnFalse {
		pred = pred.Inverse()
	}
	var limit cfg.Value
	switch {
	case cmp.X == cfg.Value(ivVar):
		limit = cmp.Y
	case cmp.Y == cfg.Value(ivVar):
		limit = cmp.X
		pred = mirror(pred)
	default:
		return nil
	}
	if !loopInvariant(l, limit) {
		return nil
	}
	start := rec.Start
	end := a.Expr(limit)
	one := big.NewInt(1)
	switch {
	case step.Value.Cmp(one) == 0:
		switch pred {
		case cfg.PredSLT:
			return Minus(Minus(end, start), NewConstant(1))
		case cfg.PredSLE:
			return Minus(end, start)
		case cfg.PredNE:
			return &SMax{Ops: []Expr{NewConstant(0), Minus(Minus(end, start), NewConstant(1))}}
		}
	case step.Value.Cmp(big.NewInt(-1)) == 0:
		switch pred {
		case cfg.PredSGT:
			return Minus(Minus(start, end), NewConstant(1))
		case cfg.PredSGE:
			return Minus(start, end)
		case cfg.PredNE:
			return &SMax{Ops: []Expr{NewConstant(0), Minus(Minus(start, end), NewConstant(1))}}
		}
	}
	return nil
}

// exitCompare finds the single in-loop conditional branch with a successor
// outside the loop and returns its compare, plus whether the false edge
// leaves the loop.
func (a *Analysis) exitCompare(l *cfg.Loop) (*cfg.Compare, bool) {
	var cmp *cfg.Compare
	var exitOnFalse bool
	for b := range l.Blocks {
		br := b.Terminator()
		if br == nil || !br.IsConditional() {
			continue
		}
		thenIn, elseIn := l.Contains(br.Then), l.Contains(br.Else)
		if thenIn == elseIn {
			continue
		}
		if cmp != nil {
			return nil, false
		}
		v, ok := br.Cond.(*cfg.Var)
		if !ok || v.Def == nil {
			return nil, false
		}
		c, ok := v.Def.(*cfg.Compare)
		if !ok {
			return nil, false
		}
		cmp = c
		exitOnFalse = thenIn
	}
	return cmp, exitOnFalse
}

func mirror(p cfg.Predicate) cfg.Predicate {
	switch p {
	case cfg.PredSLT:
		return cfg.PredSGT
	case cfg.PredSLE:
		return cfg.PredSGE
	case cfg.PredSGT:
		return cfg.PredSLT
	case cfg.PredSGE:
		return cfg.PredSLE
	case cfg.PredULT:
		return cfg.PredUGT
	case cfg.PredULE:
		return cfg.PredUGE
	case cfg.PredUGT:
		return cfg.PredULT
	case cfg.PredUGE:
		return cfg.PredULE
	}
	return p
}
