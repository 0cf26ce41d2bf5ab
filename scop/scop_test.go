package scop

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	"github.com/viant/polyscop/cfg"
	"github.com/viant/polyscop/extract"
	"github.com/viant/polyscop/poly"
	"github.com/viant/polyscop/scev"
	"gopkg.in/yaml.v3"
)

func buildModel(fn *cfg.Function, entry, exit *cfg.Block, pointers ...cfg.Value) *Scop {
	dom := cfg.NewDomTree(fn)
	pdom := cfg.NewPostDomTree(fn)
	loops := cfg.DetectLoops(fn, dom)
	eval := scev.NewAnalysis(fn, loops, scev.WithPointerBases(pointers...))
	region := cfg.BuildRegionTree(fn, loops, entry, exit)
	facts := extract.New(dom, pdom, loops, eval).Run(region)
	return Build(facts)
}

// storeElem appends addr = base + idx*size and a store through it.
func storeElem(b *cfg.Block, base cfg.Value, idx cfg.Value, size int64, tag string) {
	off := cfg.NewVar(tag + ".off")
	mul := &cfg.BinOp{Result: off, Op: cfg.OpMul, X: idx, Y: cfg.ConstInt(size)}
	off.Def = mul
	b.Append(mul)
	ptr := cfg.NewVar(tag + ".ptr")
	add := &cfg.BinOp{Result: ptr, Op: cfg.OpAdd, X: base, Y: off}
	ptr.Def = add
	b.Append(add)
	b.Append(&cfg.Store{Addr: ptr, Val: cfg.ConstInt(0), ElemSize: size})
}

// countedLoop appends header and body blocks for i running from 0 while
// i < limit, with the body acting as latch. The caller wires the preheader
// branch.
func countedLoop(fn *cfg.Function, tag string, limit cfg.Value, exit *cfg.Block) (header, body *cfg.Block) {
	header = fn.NewBlock(tag + ".header")
	body = fn.NewBlock(tag + ".body")

	iv := cfg.NewVar(tag + ".i")
	next := cfg.NewVar(tag + ".i.next")
	cond := cfg.NewVar(tag + ".cmp")

	phi := &cfg.Phi{Result: iv, Edges: []cfg.PhiEdge{{Value: cfg.ConstInt(0)}, {Block: body, Value: next}}}
	iv.Def = phi
	header.Append(phi)
	cmp := &cfg.Compare{Result: cond, Pred: cfg.PredSLT, X: iv, Y: limit}
	cond.Def = cmp
	header.Append(cmp)
	header.SetBranch(cond, body, exit)

	inc := &cfg.BinOp{Result: next, Op: cfg.OpAdd, X: iv, Y: cfg.ConstInt(1)}
	next.Def = inc

	return header, body
}

// closeLoop appends the increment and backedge; the phi's entry edge is
// patched to the real preheader.
func closeLoop(header, body, preheader *cfg.Block) {
	phi := header.Instrs[0].(*cfg.Phi)
	phi.Edges[0].Block = preheader
	inc := phi.Edges[1].Value.(*cfg.Var).Def
	body.Append(inc)
	body.SetBranch(nil, header, nil)
}

func TestSinglePointStatement(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	array := cfg.NewVar("%A")
	storeElem(entry, array, cfg.ConstInt(0), 8, "s")

	s := buildModel(fn, entry, nil, array)

	expect := `Context:
    { [] }
Statements {
    Stmt_entry
        Domain := { Stmt_entry[] };
        Scattering := { Stmt_entry[] -> scattering[o0] : o0 = 0 };
        MustWriteAccess := { Stmt_entry[] -> MemRef_A[o0] : o0 = 0 };
}`
	assert.EqualValues(t, expect, s.String())

	statements := s.Statements()
	if assert.Len(t, statements, 1) {
		assert.Empty(t, statements[0].Nest())
		assert.EqualValues(t, 1, statements[0].Scattering().NOut())
	}
}

func TestNestedLoopModel(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	oheader := fn.NewBlock("outer.header")
	iheader := fn.NewBlock("inner.header")
	body := fn.NewBlock("body")
	olatch := fn.NewBlock("outer.latch")
	exit := fn.NewBlock("exit")

	array := cfg.NewVar("%A")
	n := cfg.NewVar("N")
	m := cfg.NewVar("M")

	i := cfg.NewVar("i")
	iNext := cfg.NewVar("i.next")
	c0 := cfg.NewVar("cmp.i")
	oPhi := &cfg.Phi{Result: i, Edges: []cfg.PhiEdge{{Block: entry, Value: cfg.ConstInt(0)}, {Block: olatch, Value: iNext}}}
	i.Def = oPhi
	oheader.Append(oPhi)
	oCmp := &cfg.Compare{Result: c0, Pred: cfg.PredSLT, X: i, Y: n}
	c0.Def = oCmp
	oheader.Append(oCmp)

	j := cfg.NewVar("j")
	jNext := cfg.NewVar("j.next")
	c1 := cfg.NewVar("cmp.j")
	iPhi := &cfg.Phi{Result: j, Edges: []cfg.PhiEdge{{Block: oheader, Value: cfg.ConstInt(0)}, {Block: body, Value: jNext}}}
	j.Def = iPhi
	iheader.Append(iPhi)
	iCmp := &cfg.Compare{Result: c1, Pred: cfg.PredSLT, X: j, Y: m}
	c1.Def = iCmp
	iheader.Append(iCmp)

	// A[i*64 + j], 8-byte elements: offset bytes = (i*64 + j) * 8
	row := cfg.NewVar("row")
	rowMul := &cfg.BinOp{Result: row, Op: cfg.OpMul, X: i, Y: cfg.ConstInt(64)}
	row.Def = rowMul
	body.Append(rowMul)
	cell := cfg.NewVar("cell")
	cellAdd := &cfg.BinOp{Result: cell, Op: cfg.OpAdd, X: row, Y: j}
	cell.Def = cellAdd
	body.Append(cellAdd)
	storeElem(body, array, cell, 8, "st")
	jInc := &cfg.BinOp{Result: jNext, Op: cfg.OpAdd, X: j, Y: cfg.ConstInt(1)}
	jNext.Def = jInc
	body.Append(jInc)

	iInc := &cfg.BinOp{Result: iNext, Op: cfg.OpAdd, X: i, Y: cfg.ConstInt(1)}
	iNext.Def = iInc
	olatch.Append(iInc)

	entry.SetBranch(nil, oheader, nil)
	oheader.SetBranch(c0, iheader, exit)
	iheader.SetBranch(c1, body, olatch)
	body.SetBranch(nil, iheader, nil)
	olatch.SetBranch(nil, oheader, nil)

	s := buildModel(fn, entry, exit, array)

	expect := `Context:
    [N, M] -> { [] }
Statements {
    Stmt_body
        Domain := [N, M] -> { Stmt_body[i0, i1] : i0 >= 0 and -i0 + N - 1 >= 0 and i1 >= 0 and -i1 + M - 1 >= 0 };
        Scattering := [N, M] -> { Stmt_body[i0, i1] -> scattering[o0, o1, o2, o3, o4] : o0 = 0 and o2 = 0 and o4 = 0 and o1 = i0 and o3 = i1 };
        MustWriteAccess := [N, M] -> { Stmt_body[i0, i1] -> MemRef_A[o0] : o0 = 64i0 + i1 };
}`
	assert.EqualValues(t, expect, s.String())

	statements := s.Statements()
	if !assert.Len(t, statements, 1) {
		return
	}
	st := statements[0]
	assert.Len(t, st.Nest(), 2)
	assert.EqualValues(t, 2, s.MaxLoopDepth())

	params := map[string]int64{"N": 4, "M": 10}
	assert.True(t, st.Domain().Contains([]int64{3, 9}, params))
	assert.False(t, st.Domain().Contains([]int64{4, 0}, params))
	assert.False(t, st.Domain().Contains([]int64{0, 10}, params))

	access := st.Accesses()[0]
	out, ok := access.Relation().Apply([]int64{2, 5}, params)
	if assert.True(t, ok) {
		assert.EqualValues(t, []int64{2*64 + 5}, out)
	}
}

func TestNonAffineConditionFailsFast(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	exit := fn.NewBlock("exit")
	n := cfg.NewVar("N")
	x := cfg.NewVar("x")
	array := cfg.NewVar("%A")

	header, body := countedLoop(fn, "loop", n, exit)
	entry.SetBranch(nil, header, nil)

	guarded := fn.NewBlock("guarded")
	iv := header.Instrs[0].(*cfg.Phi).Result
	// i*x is not affine: the branch condition cannot be translated
	prod := cfg.NewVar("prod")
	mul := &cfg.BinOp{Result: prod, Op: cfg.OpMul, X: iv, Y: x}
	prod.Def = mul
	body.Append(mul)
	cond := cfg.NewVar("cmp.x")
	cmp := &cfg.Compare{Result: cond, Pred: cfg.PredSLT, X: prod, Y: n}
	cond.Def = cmp
	body.Append(cmp)

	storeElem(guarded, array, iv, 8, "st")

	latch := fn.NewBlock("latch")
	body.SetBranch(cond, guarded, latch)
	guarded.SetBranch(nil, latch, nil)
	phi := header.Instrs[0].(*cfg.Phi)
	inc := phi.Edges[1].Value.(*cfg.Var).Def
	latch.Append(inc)
	phi.Edges[1].Block = latch
	latch.SetBranch(nil, header, nil)

	assert.Panics(t, func() {
		buildModel(fn, entry, exit, array)
	})
}

func TestSiblingLoopOrder(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	exit := fn.NewBlock("exit")
	array := cfg.NewVar("%A")
	n := cfg.NewVar("N")

	storeElem(entry, array, cfg.ConstInt(0), 8, "pre")

	tail := fn.NewBlock("tail")
	// the first loop exits into the second loop's header, the second into tail
	h2, b2 := countedLoop(fn, "second", n, tail)
	h1, b1 := countedLoop(fn, "first", n, h2)

	storeElem(b1, array, h1.Instrs[0].(*cfg.Phi).Result, 8, "st1")
	storeElem(b2, array, h2.Instrs[0].(*cfg.Phi).Result, 8, "st2")

	entry.SetBranch(nil, h1, nil)
	closeLoop(h1, b1, entry)
	closeLoop(h2, b2, h1)
	storeElem(tail, array, cfg.ConstInt(0), 8, "post")
	tail.SetBranch(nil, exit, nil)

	s := buildModel(fn, entry, exit, array)

	statements := s.Statements()
	if !assert.Len(t, statements, 4) {
		return
	}
	names := make([]string, len(statements))
	for i, st := range statements {
		names[i] = st.Name()
	}
	assert.EqualValues(t, []string{"Stmt_entry", "Stmt_first_body", "Stmt_second_body", "Stmt_tail"}, names)

	// every statement scatters into the same space regardless of its depth
	for _, st := range statements {
		assert.EqualValues(t, 2*s.MaxLoopDepth()+1, st.Scattering().NOut(), st.Name())
	}

	params := map[string]int64{"N": 3}
	at := func(st *Statement, point ...int64) []int64 {
		out, ok := st.Scattering().Apply(point, params)
		if !assert.True(t, ok, st.Name()) {
			return nil
		}
		return out
	}
	var testCases = []struct {
		description string
		before      []int64
		after       []int64
	}{
		{description: "pre-loop before first loop", before: at(statements[0]), after: at(statements[1], 0)},
		{description: "first loop iterations stay ordered", before: at(statements[1], 0), after: at(statements[1], 2)},
		{description: "first loop before second loop", before: at(statements[1], 2), after: at(statements[2], 0)},
		{description: "second loop before tail", before: at(statements[2], 2), after: at(statements[3])},
	}
	for _, testCase := range testCases {
		assert.True(t, lexLess(testCase.before, testCase.after), testCase.description)
	}
}

func lexLess(a, b []int64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func TestNonAffineAccessDegrades(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	exit := fn.NewBlock("exit")
	array := cfg.NewVar("%A")
	n := cfg.NewVar("N")
	x := cfg.NewVar("x")

	header, body := countedLoop(fn, "loop", n, exit)
	entry.SetBranch(nil, header, nil)
	iv := header.Instrs[0].(*cfg.Phi).Result

	// A[i*x]: two symbolic factors, no affine form
	prod := cfg.NewVar("prod")
	mul := &cfg.BinOp{Result: prod, Op: cfg.OpMul, X: iv, Y: x}
	prod.Def = mul
	body.Append(mul)
	storeElem(body, array, prod, 8, "st")
	closeLoop(header, body, entry)

	s := buildModel(fn, entry, exit, array)

	statements := s.Statements()
	if !assert.Len(t, statements, 1) {
		return
	}
	access := statements[0].Accesses()[0]
	assert.EqualValues(t, MayWriteAccess, access.Type(), "definite write weakens to may-write")
	assert.EqualValues(t, "[N] -> { Stmt_loop_body[i0] -> MemRef_A[o0] }", access.Relation().String(),
		"every iteration may touch any element")
}

func TestInexactElementStrideDegrades(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	exit := fn.NewBlock("exit")
	array := cfg.NewVar("%A")
	n := cfg.NewVar("N")

	header, body := countedLoop(fn, "loop", n, exit)
	entry.SetBranch(nil, header, nil)
	iv := header.Instrs[0].(*cfg.Phi).Result

	// byte offset i*4 against 8-byte elements: the scale-down cannot be exact
	off := cfg.NewVar("off")
	mul := &cfg.BinOp{Result: off, Op: cfg.OpMul, X: iv, Y: cfg.ConstInt(4)}
	off.Def = mul
	body.Append(mul)
	ptr := cfg.NewVar("ptr")
	add := &cfg.BinOp{Result: ptr, Op: cfg.OpAdd, X: array, Y: off}
	ptr.Def = add
	body.Append(add)
	body.Append(&cfg.Store{Addr: ptr, Val: cfg.ConstInt(0), ElemSize: 8})
	closeLoop(header, body, entry)

	s := buildModel(fn, entry, exit, array)

	access := s.Statements()[0].Accesses()[0]
	assert.EqualValues(t, MayWriteAccess, access.Type())
	assert.EqualValues(t, "[N] -> { Stmt_loop_body[i0] -> MemRef_A[o0] }", access.Relation().String())
}

func TestParameterAlignment(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	exit := fn.NewBlock("exit")
	array := cfg.NewVar("%A")
	n := cfg.NewVar("N")

	storeElem(entry, array, cfg.ConstInt(0), 8, "pre")
	header, body := countedLoop(fn, "loop", n, exit)
	entry.SetBranch(nil, header, nil)
	storeElem(body, array, header.Instrs[0].(*cfg.Phi).Result, 8, "st")
	closeLoop(header, body, entry)

	s := buildModel(fn, entry, exit, array)

	want := s.ParamSpace().Params()
	for _, st := range s.Statements() {
		assert.EqualValues(t, want, st.Domain().Space().Params(), st.Name())
		assert.EqualValues(t, want, st.Scattering().Space().Params(), st.Name())
		for _, access := range st.Accesses() {
			assert.EqualValues(t, want, access.Relation().Space().Params(), st.Name())
		}
	}

	// realigning an aligned model changes nothing
	before := s.String()
	s.RealignParams()
	assert.EqualValues(t, before, s.String())
}

func TestAccessRewrittenSlot(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	array := cfg.NewVar("%A")
	storeElem(entry, array, cfg.ConstInt(0), 8, "s")

	s := buildModel(fn, entry, nil, array)
	access := s.Statements()[0].Accesses()[0]
	built := access.Relation()

	replacement := poly.UniverseMap(poly.MapSpace(0, 1)).
		WithInName("Stmt_entry").WithOutName("MemRef_A_priv")
	access.SetRewritten(replacement)
	assert.Equal(t, replacement, access.Relation(), "replacement wins once installed")
	assert.NotEqual(t, built, access.Relation())
}

func TestExporterRoundTrip(t *testing.T) {
	fn := cfg.NewFunction("f")
	entry := fn.NewBlock("entry")
	exit := fn.NewBlock("exit")
	array := cfg.NewVar("%A")
	n := cfg.NewVar("N")

	header, body := countedLoop(fn, "loop", n, exit)
	entry.SetBranch(nil, header, nil)
	storeElem(body, array, header.Instrs[0].(*cfg.Phi).Result, 8, "st")
	closeLoop(header, body, entry)

	s := buildModel(fn, entry, exit, array)

	fs := afs.New()
	exporter := NewExporter(WithService(fs))
	ctx := context.Background()
	URL := filepath.Join(t.TempDir(), "model.yaml")
	if !assert.NoError(t, exporter.Export(ctx, s, URL)) {
		return
	}
	data, err := fs.DownloadWithURL(ctx, URL)
	if !assert.NoError(t, err) {
		return
	}
	var actual Model
	if !assert.NoError(t, yaml.Unmarshal(data, &actual)) {
		return
	}
	if diff := cmp.Diff(*exporter.Model(s), actual); diff != "" {
		t.Errorf("exported model mismatch (-want +got):\n%s", diff)
	}
}
