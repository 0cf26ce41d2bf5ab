// Package cfg provides the control-flow IR the polyhedral model builder
// consumes, together with the generic upstream analyses it depends on:
// dominator and post-dominator trees, the natural-loop forest and the region
// tree. Analyses are plain constructors taking explicit arguments; there is
// no pass registration framework.
package cfg

import "strconv"

// Value is an SSA-flavoured operand: either a named Var or a Const.
type Value interface {
	Name() string
}

// Const is a compile-time signed integer constant.
type Const struct {
	Value int64
}

// Name returns the decimal rendering of the constant.
func (c *Const) Name() string { return strconv.FormatInt(c.Value, 10) }

// ConstInt creates a constant value.
func ConstInt(v int64) *Const { return &Const{Value: v} }

// Var is a named value produced by an instruction or live on entry (an
// argument or a global base address).
type Var struct {
	ID  string
	Def Instr // nil for values live on region entry
}

// Name returns the variable identifier.
func (v *Var) Name() string { return v.ID }

// NewVar creates a free variable with no defining instruction.
func NewVar(id string) *Var { return &Var{ID: id} }

// Instr is one instruction of a basic block.
type Instr interface {
	Parent() *Block
	setParent(*Block)
}

type instr struct {
	block *Block
}

func (i *instr) Parent() *Block     { return i.block }
func (i *instr) setParent(b *Block) { i.block = b }

// Load reads one element of ElemSize bytes from Addr.
type Load struct {
	instr
	Result   *Var
	Addr     Value
	ElemSize int64
}

// Store writes one element of ElemSize bytes to Addr.
type Store struct {
	instr
	Addr     Value
	Val      Value
	ElemSize int64
}

// Op is a binary arithmetic operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
)

// BinOp computes Result = X Op Y.
type BinOp struct {
	instr
	Result *Var
	Op     Op
	X, Y   Value
}

// Predicate is an integer comparison predicate. Unsigned predicates exist in
// the IR but are rejected by the affine translation stage.
type Predicate int

const (
	PredEQ Predicate = iota
	PredNE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
	PredULT
	PredULE
	PredUGT
	PredUGE
)

// Inverse returns the logical negation of the predicate.
func (p Predicate) Inverse() Predicate {
	switch p {
	case PredEQ:
		return PredNE
	case PredNE:
		return PredEQ
	case PredSLT:
		return PredSGE
	case PredSLE:
		return PredSGT
	case PredSGT:
		return PredSLE
	case PredSGE:
		return PredSLT
	case PredULT:
		return PredUGE
	case PredULE:
		return PredUGT
	case PredUGT:
		return PredULE
	case PredUGE:
		return PredULT
	}
	panic("cfg: unknown predicate")
}

// IsSigned reports whether the predicate belongs to the signed subset
// (equality predicates count as signed).
func (p Predicate) IsSigned() bool { return p <= PredSGE }

// Compare computes Result = X Pred Y.
type Compare struct {
	instr
	Result *Var
	Pred   Predicate
	X, Y   Value
}

// PhiEdge is one incoming value of a Phi.
type PhiEdge struct {
	Block *Block
	Value Value
}

// Phi merges values flowing in from predecessor blocks.
type Phi struct {
	instr
	Result *Var
	Edges  []PhiEdge
}

// Branch terminates a block. Cond nil or Else nil makes it unconditional.
type Branch struct {
	instr
	Cond Value
	Then *Block
	Else *Block
}

// IsConditional reports whether the branch has two successors.
func (b *Branch) IsConditional() bool { return b.Cond != nil && b.Else != nil }

// Block is one basic block.
type Block struct {
	BlockName string
	Index     int
	Instrs    []Instr
	Succs     []*Block
	Preds     []*Block
	Fn        *Function
}

// Name returns the block label.
func (b *Block) Name() string { return b.BlockName }

// Append adds an instruction to the block.
func (b *Block) Append(i Instr) {
	i.setParent(b)
	b.Instrs = append(b.Instrs, i)
}

// Terminator returns the final instruction if it is a branch.
func (b *Block) Terminator() *Branch {
	if len(b.Instrs) == 0 {
		return nil
	}
	br, _ := b.Instrs[len(b.Instrs)-1].(*Branch)
	return br
}

// SetBranch appends a terminator and wires the successor and predecessor
// edges. A nil els makes the branch unconditional.
func (b *Block) SetBranch(cond Value, then, els *Block) *Branch {
	br := &Branch{Cond: cond, Then: then, Else: els}
	b.Append(br)
	b.addEdge(then)
	if els != nil {
		b.addEdge(els)
	}
	return br
}

func (b *Block) addEdge(succ *Block) {
	b.Succs = append(b.Succs, succ)
	succ.Preds = append(succ.Preds, b)
}

// Function is an ordered collection of basic blocks.
type Function struct {
	FnName string
	Blocks []*Block
	Entry  *Block
}

// NewFunction creates an empty function.
func NewFunction(name string) *Function {
	return &Function{FnName: name}
}

// NewBlock appends a new named block; the first block becomes the entry.
func (f *Function) NewBlock(name string) *Block {
	b := &Block{BlockName: name, Index: len(f.Blocks), Fn: f}
	f.Blocks = append(f.Blocks, b)
	if f.Entry == nil {
		f.Entry = b
	}
	return b
}

// ReversePostorder returns the blocks reachable from entry in reverse
// postorder.
func (f *Function) ReversePostorder() []*Block {
	seen := make(map[*Block]bool)
	var post []*Block
	var visit func(*Block)
	visit = func(b *Block) {
		seen[b] = true
		for _, s := range b.Succs {
			if !seen[s] {
				visit(s)
			}
		}
		post = append(post, b)
	}
	if f.Entry != nil {
		visit(f.Entry)
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
