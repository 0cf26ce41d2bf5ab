// Package scev models scalar-recurrence expressions: the closed forms a
// recurrence analysis derives for integer values in a region. Expressions
// are immutable; identity is structural. All values are interpreted as
// signed — a known, deliberate restriction carried over from the source
// design.
package scev

import (
	"math/big"
	"strings"

	"github.com/viant/polyscop/cfg"
)

// Expr is one scalar-recurrence expression node.
type Expr interface {
	// String returns the canonical form; structural identity is defined
	// over it.
	String() string
}

// Constant is a compile-time integer.
type Constant struct {
	Value *big.Int
}

// NewConstant creates a constant expression.
func NewConstant(v int64) *Constant { return &Constant{Value: big.NewInt(v)} }

func (c *Constant) String() string { return c.Value.String() }

// Unknown wraps a value the analysis cannot reduce further. Unknowns are the
// seeds of the model's parameter space.
type Unknown struct {
	Value   cfg.Value
	Pointer bool // base addresses are pointers, not integer parameters
}

func (u *Unknown) String() string { return u.Value.Name() }

// Add is the sum of its operands.
type Add struct {
	Ops []Expr
}

func (a *Add) String() string { return nary("+", a.Ops) }

// Mul is the product of its operands.
type Mul struct {
	Ops []Expr
}

func (m *Mul) String() string { return nary("*", m.Ops) }

// AddRec is the affine recurrence {Start,+,Step}<Loop>: the value starts at
// Start and advances by Step once per iteration of Loop.
type AddRec struct {
	Start Expr
	Step  Expr
	Loop  *cfg.Loop
}

func (r *AddRec) String() string {
	return "{" + r.Start.String() + ",+," + r.Step.String() + "}<" + r.Loop.Header.Name() + ">"
}

// SMax is the signed maximum of its operands.
type SMax struct {
	Ops []Expr
}

func (m *SMax) String() string { return fn("smax", m.Ops) }

// UMax is the unsigned maximum of its operands. It has no affine form under
// the signed-value assumption.
type UMax struct {
	Ops []Expr
}

func (m *UMax) String() string { return fn("umax", m.Ops) }

// SignExtend widens its operand; a no-op under the signed-value assumption.
type SignExtend struct {
	Op Expr
}

func (s *SignExtend) String() string { return "sext(" + s.Op.String() + ")" }

// ZeroExtend widens its operand with zero fill.
type ZeroExtend struct {
	Op Expr
}

func (z *ZeroExtend) String() string { return "zext(" + z.Op.String() + ")" }

// Truncate narrows its operand.
type Truncate struct {
	Op Expr
}

func (t *Truncate) String() string { return "trunc(" + t.Op.String() + ")" }

// UDiv is the unsigned quotient of its operands.
type UDiv struct {
	X, Y Expr
}

func (u *UDiv) String() string { return "(" + u.X.String() + " /u " + u.Y.String() + ")" }

func nary(op string, ops []Expr) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = o.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}

func fn(name string, ops []Expr) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = o.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// NewAdd folds a sum: constants are combined, zero terms dropped and single
// operands flattened.
func NewAdd(ops ...Expr) Expr {
	cst := big.NewInt(0)
	rest := make([]Expr, 0, len(ops))
	for _, op := range ops {
		if c, ok := op.(*Constant); ok {
			cst.Add(cst, c.Value)
			continue
		}
		rest = append(rest, op)
	}
	if cst.Sign() != 0 || len(rest) == 0 {
		rest = append(rest, &Constant{Value: cst})
	}
	if len(rest) == 1 {
		return rest[0]
	}
	return &Add{Ops: rest}
}

// NewMul folds a product: constants are combined, unit factors dropped, a
// zero factor collapses the product and single operands are flattened.
func NewMul(ops ...Expr) Expr {
	cst := big.NewInt(1)
	rest := make([]Expr, 0, len(ops))
	for _, op := range ops {
		if c, ok := op.(*Constant); ok {
			cst.Mul(cst, c.Value)
			continue
		}
		rest = append(rest, op)
	}
	if cst.Sign() == 0 {
		return &Constant{Value: cst}
	}
	if cst.Cmp(big.NewInt(1)) != 0 || len(rest) == 0 {
		rest = append([]Expr{&Constant{Value: cst}}, rest...)
	}
	if len(rest) == 1 {
		return rest[0]
	}
	return &Mul{Ops: rest}
}

// Minus builds x - y as x + (-1)*y.
func Minus(x, y Expr) Expr {
	return NewAdd(x, NewMul(NewConstant(-1), y))
}
