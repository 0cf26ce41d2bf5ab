package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// diamond builds:
//
//	entry -> then -> join -> tail
//	      \-> else -/
func diamond() (*Function, *Block, *Block, *Block, *Block, *Block) {
	fn := NewFunction("diamond")
	entry := fn.NewBlock("entry")
	then := fn.NewBlock("then")
	els := fn.NewBlock("else")
	join := fn.NewBlock("join")
	tail := fn.NewBlock("tail")
	cond := NewVar("cond")
	entry.SetBranch(cond, then, els)
	then.SetBranch(nil, join, nil)
	els.SetBranch(nil, join, nil)
	join.SetBranch(nil, tail, nil)
	return fn, entry, then, els, join, tail
}

func TestDomTree(t *testing.T) {
	fn, entry, then, els, join, tail := diamond()
	dom := NewDomTree(fn)

	assert.Equal(t, entry, dom.IDom(then))
	assert.Equal(t, entry, dom.IDom(els))
	assert.Equal(t, entry, dom.IDom(join), "join is reached on both arms")
	assert.Equal(t, join, dom.IDom(tail))
	assert.True(t, dom.Dominates(entry, tail))
	assert.False(t, dom.Dominates(then, join))
	assert.True(t, dom.Dominates(join, join))
}

func TestPostDomTree(t *testing.T) {
	fn, entry, then, els, join, tail := diamond()
	pdom := NewPostDomTree(fn)

	assert.True(t, pdom.Dominates(join, entry), "join post-dominates the branch")
	assert.True(t, pdom.Dominates(join, then))
	assert.True(t, pdom.Dominates(tail, entry))
	assert.False(t, pdom.Dominates(then, entry))
	assert.False(t, pdom.Dominates(els, entry))
}

// loopNest builds a canonical doubly-nested counted loop:
//
//	entry -> outer.header -> inner.header -> body -> inner.latch
//	         ^                ^___________________________/
//	         \____ outer.latch <- inner exit
//	outer exit -> tail
func loopNest() (*Function, map[string]*Block) {
	fn := NewFunction("nest")
	names := []string{"entry", "outer", "inner", "body", "outer.latch", "tail"}
	blocks := make(map[string]*Block, len(names))
	for _, n := range names {
		blocks[n] = fn.NewBlock(n)
	}
	blocks["entry"].SetBranch(nil, blocks["outer"], nil)
	blocks["outer"].SetBranch(NewVar("oc"), blocks["inner"], blocks["tail"])
	blocks["inner"].SetBranch(NewVar("ic"), blocks["body"], blocks["outer.latch"])
	blocks["body"].SetBranch(nil, blocks["inner"], nil)
	blocks["outer.latch"].SetBranch(nil, blocks["outer"], nil)
	return fn, blocks
}

func TestDetectLoops(t *testing.T) {
	fn, blocks := loopNest()
	dom := NewDomTree(fn)
	li := DetectLoops(fn, dom)

	assert.Len(t, li.Loops, 2)
	outer := li.LoopFor(blocks["outer"])
	inner := li.LoopFor(blocks["inner"])
	assert.Equal(t, blocks["outer"], outer.Header)
	assert.Equal(t, blocks["inner"], inner.Header)
	assert.Equal(t, outer, inner.Parent)
	assert.EqualValues(t, 1, outer.Depth())
	assert.EqualValues(t, 2, inner.Depth())
	assert.Equal(t, inner, li.LoopFor(blocks["body"]), "body belongs to the innermost loop")
	assert.Equal(t, outer, li.LoopFor(blocks["outer.latch"]))
	assert.True(t, outer.Contains(blocks["inner"]))
	assert.False(t, inner.Contains(blocks["outer.latch"]))
}

func TestBuildRegionTree(t *testing.T) {
	fn, blocks := loopNest()
	dom := NewDomTree(fn)
	li := DetectLoops(fn, dom)

	region := BuildRegionTree(fn, li, blocks["entry"], blocks["tail"])

	assert.Equal(t, blocks["entry"], region.Entry)
	assert.Equal(t, blocks["tail"], region.Exit)
	assert.Len(t, region.Elements, 2, "entry block plus the outer loop sub-region")
	assert.Equal(t, blocks["entry"], region.Elements[0])

	outer, ok := region.Elements[1].(*Region)
	assert.True(t, ok)
	assert.Equal(t, blocks["outer"], outer.Entry)
	assert.NotNil(t, outer.Loop)

	// outer contains its header, the inner loop sub-region, and its latch.
	assert.Equal(t, blocks["outer"], outer.Elements[0])
	inner, ok := outer.Elements[1].(*Region)
	assert.True(t, ok)
	assert.Equal(t, blocks["inner"], inner.Entry)
	assert.Equal(t, []Element{blocks["inner"], blocks["body"]}, inner.Elements)
	assert.Equal(t, blocks["outer.latch"], outer.Elements[2])

	assert.False(t, region.Contains(blocks["tail"]))
	assert.True(t, region.Contains(blocks["body"]))
}

func TestPredicateInverse(t *testing.T) {
	testCases := []struct {
		description string
		pred        Predicate
		expect      Predicate
	}{
		{description: "eq", pred: PredEQ, expect: PredNE},
		{description: "slt", pred: PredSLT, expect: PredSGE},
		{description: "sle", pred: PredSLE, expect: PredSGT},
		{description: "ult", pred: PredULT, expect: PredUGE},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, testCase.pred.Inverse(), testCase.description)
		assert.Equal(t, testCase.pred, testCase.expect.Inverse(), testCase.description)
	}
}
