package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/polyscop/cfg"
	"github.com/viant/polyscop/scev"
)

func analyses(fn *cfg.Function, pointers ...cfg.Value) (*cfg.DomTree, *cfg.DomTree, *cfg.LoopInfo, *scev.Analysis) {
	dom := cfg.NewDomTree(fn)
	pdom := cfg.NewPostDomTree(fn)
	loops := cfg.DetectLoops(fn, dom)
	eval := scev.NewAnalysis(fn, loops, scev.WithPointerBases(pointers...))
	return dom, pdom, loops, eval
}

func storeTo(b *cfg.Block, addr cfg.Value) {
	b.Append(&cfg.Store{Addr: addr, Val: cfg.ConstInt(0), ElemSize: 8})
}

func TestDiamondConditions(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	left := fn.NewBlock("left")
	right := fn.NewBlock("right")
	join := fn.NewBlock("join")

	array := cfg.NewVar("A")
	n := cfg.NewVar("N")
	cond := cfg.NewVar("cmp")
	cmp := &cfg.Compare{Result: cond, Pred: cfg.PredSLT, X: n, Y: cfg.ConstInt(10)}
	cond.Def = cmp
	entry.Append(cmp)
	entry.SetBranch(cond, left, right)
	storeTo(left, array)
	left.SetBranch(nil, join, nil)
	storeTo(right, array)
	right.SetBranch(nil, join, nil)
	storeTo(join, array)

	dom, pdom, loops, eval := analyses(fn, array)
	region := cfg.BuildRegionTree(fn, loops, entry, nil)
	facts := New(dom, pdom, loops, eval).Run(region)

	var testCases = []struct {
		description string
		block       *cfg.Block
		expect      []string
	}{
		{description: "then side keeps the predicate", block: left, expect: []string{"N slt 10"}},
		{description: "else side inverts the predicate", block: right, expect: []string{"N sge 10"}},
		{description: "reconvergence point is unconstrained", block: join, expect: nil},
		{description: "entry is unconstrained", block: entry, expect: nil},
	}
	for _, testCase := range testCases {
		var actual []string
		for _, c := range facts.Conditions[testCase.block] {
			actual = append(actual, c.LHS.String()+" "+predName(c.Pred)+" "+c.RHS.String())
		}
		assert.EqualValues(t, testCase.expect, actual, testCase.description)
	}
}

func predName(p cfg.Predicate) string {
	switch p {
	case cfg.PredEQ:
		return "eq"
	case cfg.PredNE:
		return "ne"
	case cfg.PredSLT:
		return "slt"
	case cfg.PredSLE:
		return "sle"
	case cfg.PredSGT:
		return "sgt"
	case cfg.PredSGE:
		return "sge"
	}
	return "u"
}

func TestConstantCondition(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	left := fn.NewBlock("left")
	right := fn.NewBlock("right")
	join := fn.NewBlock("join")

	array := cfg.NewVar("A")
	entry.SetBranch(cfg.ConstInt(1), left, right)
	storeTo(left, array)
	left.SetBranch(nil, join, nil)
	storeTo(right, array)
	right.SetBranch(nil, join, nil)

	dom, pdom, loops, eval := analyses(fn, array)
	region := cfg.BuildRegionTree(fn, loops, entry, nil)
	facts := New(dom, pdom, loops, eval).Run(region)

	taken := facts.Conditions[left]
	if assert.Len(t, taken, 1, "taken side") {
		assert.EqualValues(t, cfg.PredSLE, taken[0].Pred, "feasible constant condition reads 0 <= 1")
		assert.EqualValues(t, "0", taken[0].LHS.String())
		assert.EqualValues(t, "1", taken[0].RHS.String())
	}
	dead := facts.Conditions[right]
	if assert.Len(t, dead, 1, "dead side") {
		assert.EqualValues(t, cfg.PredSGE, dead[0].Pred, "infeasible constant condition reads 0 >= 1")
	}
}

func TestLoopFacts(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	header := fn.NewBlock("header")
	body := fn.NewBlock("body")
	exit := fn.NewBlock("exit")

	array := cfg.NewVar("A")
	n := cfg.NewVar("N")
	iv := cfg.NewVar("i")
	next := cfg.NewVar("i.next")
	cond := cfg.NewVar("cmp")

	phi := &cfg.Phi{Result: iv, Edges: []cfg.PhiEdge{
		{Block: entry, Value: cfg.ConstInt(0)},
		{Block: body, Value: next},
	}}
	iv.Def = phi
	header.Append(phi)
	cmp := &cfg.Compare{Result: cond, Pred: cfg.PredSLT, X: iv, Y: n}
	cond.Def = cmp
	header.Append(cmp)

	scaled := cfg.NewVar("off")
	mul := &cfg.BinOp{Result: scaled, Op: cfg.OpMul, X: iv, Y: cfg.ConstInt(8)}
	scaled.Def = mul
	body.Append(mul)
	addr := cfg.NewVar("ptr")
	add := &cfg.BinOp{Result: addr, Op: cfg.OpAdd, X: array, Y: scaled}
	addr.Def = add
	body.Append(add)
	storeTo(body, addr)
	inc := &cfg.BinOp{Result: next, Op: cfg.OpAdd, X: iv, Y: cfg.ConstInt(1)}
	next.Def = inc
	body.Append(inc)

	entry.SetBranch(nil, header, nil)
	header.SetBranch(cond, body, exit)
	body.SetBranch(nil, header, nil)

	dom, pdom, loops, eval := analyses(fn, array)
	region := cfg.BuildRegionTree(fn, loops, entry, exit)
	facts := New(dom, pdom, loops, eval).Run(region)

	loop := loops.LoopFor(header)
	assert.EqualValues(t, 1, facts.MaxLoopDepth)
	assert.Equal(t, iv, facts.IVs[loop])
	if assert.NotNil(t, facts.Bounds[loop]) {
		assert.EqualValues(t, "(N + -1)", facts.Bounds[loop].String())
	}

	accesses := facts.Accesses[body]
	if assert.Len(t, accesses, 1, "one store, no scalar traffic") {
		access := accesses[0]
		assert.EqualValues(t, Write, access.Kind)
		assert.Equal(t, cfg.Value(array), access.Base)
		assert.True(t, access.Affine)
		assert.EqualValues(t, int64(8), access.ElemSize)
		assert.EqualValues(t, "(8 * {0,+,1}<header>)", access.Offset.String())
	}

	conds := facts.Conditions[body]
	if assert.Len(t, conds, 1, "loop exit test dominates the body") {
		assert.EqualValues(t, cfg.PredSLT, conds[0].Pred)
		assert.EqualValues(t, "{0,+,1}<header>", conds[0].LHS.String())
		assert.EqualValues(t, "N", conds[0].RHS.String())
	}
}

func TestScalarDependences(t *testing.T) {
	fn := cfg.NewFunction("f")
	first := fn.NewBlock("first")
	second := fn.NewBlock("second")

	array := cfg.NewVar("A")
	loaded := cfg.NewVar("x")
	load := &cfg.Load{Result: loaded, Addr: array, ElemSize: 8}
	loaded.Def = load
	first.Append(load)
	first.SetBranch(nil, second, nil)

	sum := cfg.NewVar("y")
	add := &cfg.BinOp{Result: sum, Op: cfg.OpAdd, X: loaded, Y: cfg.ConstInt(1)}
	sum.Def = add
	second.Append(add)
	storeTo(second, array)

	dom, pdom, loops, eval := analyses(fn, array)
	region := cfg.BuildRegionTree(fn, loops, first, nil)
	facts := New(dom, pdom, loops, eval).Run(region)

	var kinds = func(b *cfg.Block) []Kind {
		var out []Kind
		for _, a := range facts.Accesses[b] {
			out = append(out, a.Kind)
		}
		return out
	}
	assert.EqualValues(t, []Kind{Read, ScalarWrite}, kinds(first), "definition writes its pseudo slot")
	assert.EqualValues(t, []Kind{ScalarRead, Write}, kinds(second), "use reads it before executing")

	pseudo := facts.Accesses[second][0]
	assert.Equal(t, cfg.Value(loaded), pseudo.Base)
	assert.EqualValues(t, int64(1), pseudo.ElemSize)
	assert.EqualValues(t, "0", pseudo.Offset.String())
}
