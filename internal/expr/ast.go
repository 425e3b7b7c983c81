package expr

import "math"

// NodeKind tags the shape of an Expr tree node, mirroring the source's
// Expression::Type enum.
type NodeKind int

const (
	NodeConstant NodeKind = iota
	NodeVariable
	NodeUnary
	NodeArithmetic
	NodeRelational
	NodeLogical
)

// Op enumerates every operator across the unary/arithmetic/relational/
// logical node kinds; each Expr uses the subset relevant to its NodeKind.
type Op int

const (
	OpNone Op = iota
	OpPlus
	OpNegate
	OpNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLT
	OpLE
	OpGT
	OpGE
	OpEQ
	OpNE
	OpAnd
	OpOr
	OpXor
)

// Expr is an owned expression tree node: a literal Constant, a named
// Variable, or an operator over one (Unary) or two (Arithmetic/Relational/
// Logical) child expressions. There is no sharing and no cycles.
type Expr struct {
	Kind  NodeKind
	Op    Op
	Value Value  // Constant
	Name  string // Variable
	Left  *Expr
	Right *Expr // nil for Unary
}

// Eval recursively evaluates the tree against ctx.
func (e *Expr) Eval(ctx *Context) (Value, error) {
	switch e.Kind {
	case NodeConstant:
		return e.Value, nil
	case NodeVariable:
		v, ok := ctx.Get(e.Name)
		if !ok {
			return Value{}, newErr(ErrNullVariable, e.Name)
		}
		return v, nil
	case NodeUnary:
		return e.evalUnary(ctx)
	case NodeArithmetic:
		return e.evalArithmetic(ctx)
	case NodeRelational:
		return e.evalRelational(ctx)
	case NodeLogical:
		return e.evalLogical(ctx)
	default:
		return Value{}, newErr(ErrUnknownType, "")
	}
}

func (e *Expr) evalUnary(ctx *Context) (Value, error) {
	v, err := e.Left.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	switch e.Op {
	case OpPlus:
		if !v.IsArithmetic() {
			return Value{}, newErr(ErrUnsupportedOp, "unary + requires a numeric operand")
		}
		return v, nil
	case OpNegate:
		switch v.Kind() {
		case KindInt64:
			n, _ := v.AsInt()
			return Int(-n), nil
		case KindDouble:
			d, _ := v.AsDouble()
			return Double(-d), nil
		default:
			return Value{}, newErr(ErrUnsupportedOp, "unary - requires a numeric operand")
		}
	case OpNot:
		return Bool(!v.AsBool()), nil
	default:
		return Value{}, newErr(ErrUnknownOp, "")
	}
}

func isAddOverflow(a, b int64) bool {
	if b > 0 && a > math.MaxInt64-b {
		return true
	}
	if b < 0 && a < math.MinInt64-b {
		return true
	}
	return false
}

func isSubOverflow(a, b int64) bool {
	if b < 0 && a > math.MaxInt64+b {
		return true
	}
	if b > 0 && a < math.MinInt64+b {
		return true
	}
	return false
}

func isMulOverflow(a, b int64) bool {
	if a == 0 || b == 0 {
		return false
	}
	r := a * b
	return r/b != a
}

func (e *Expr) evalArithmetic(ctx *Context) (Value, error) {
	l, err := e.Left.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	r, err := e.Right.Eval(ctx)
	if err != nil {
		return Value{}, err
	}

	if l.Kind() == KindString || r.Kind() == KindString {
		if e.Op == OpAdd && l.Kind() == KindString && r.Kind() == KindString {
			return String(l.AsString() + r.AsString()), nil
		}
		return Value{}, newErr(ErrUnsupportedOp, "string operands only support +")
	}
	if !l.IsArithmetic() || !r.IsArithmetic() {
		return Value{}, newErr(ErrUnsupportedOp, "arithmetic requires numeric operands")
	}

	bothInt := l.Kind() == KindInt64 && r.Kind() == KindInt64
	if bothInt {
		a, _ := l.AsInt()
		b, _ := r.AsInt()
		switch e.Op {
		case OpAdd:
			if isAddOverflow(a, b) {
				return Value{}, newErr(ErrArithmeticOverflow, "int64 addition overflow")
			}
			return Int(a + b), nil
		case OpSub:
			if isSubOverflow(a, b) {
				return Value{}, newErr(ErrArithmeticOverflow, "int64 subtraction overflow")
			}
			return Int(a - b), nil
		case OpMul:
			if isMulOverflow(a, b) {
				return Value{}, newErr(ErrArithmeticOverflow, "int64 multiplication overflow")
			}
			return Int(a * b), nil
		case OpDiv:
			if b == 0 {
				return Value{}, newErr(ErrDivideByZero, "")
			}
			return Int(a / b), nil
		case OpMod:
			if b == 0 {
				return Value{}, newErr(ErrDivideByZero, "")
			}
			return Int(a % b), nil
		}
		return Value{}, newErr(ErrUnknownOp, "")
	}

	a, _ := l.AsDouble()
	b, _ := r.AsDouble()
	switch e.Op {
	case OpAdd:
		return Double(a + b), nil
	case OpSub:
		return Double(a - b), nil
	case OpMul:
		return Double(a * b), nil
	case OpDiv:
		if b == 0 {
			return Value{}, newErr(ErrDivideByZero, "")
		}
		return Double(a / b), nil
	case OpMod:
		if b == 0 {
			return Value{}, newErr(ErrDivideByZero, "")
		}
		return Double(math.Remainder(a, b)), nil
	}
	return Value{}, newErr(ErrUnknownOp, "")
}

func (e *Expr) evalRelational(ctx *Context) (Value, error) {
	l, err := e.Left.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	r, err := e.Right.Eval(ctx)
	if err != nil {
		return Value{}, err
	}

	if e.Op == OpEQ {
		return Bool(l.Equal(r)), nil
	}
	if e.Op == OpNE {
		return Bool(!l.Equal(r)), nil
	}

	// Ordering comparisons (<,<=,>,>=): DESIGN.md open-question #2 rejects
	// cross-type comparison rather than falling back to tag ordering.
	if l.IsArithmetic() && r.IsArithmetic() {
		a, _ := l.AsDouble()
		b, _ := r.AsDouble()
		switch e.Op {
		case OpLT:
			return Bool(a < b), nil
		case OpLE:
			return Bool(a <= b), nil
		case OpGT:
			return Bool(a > b), nil
		case OpGE:
			return Bool(a >= b), nil
		}
		return Value{}, newErr(ErrUnknownOp, "")
	}
	if l.Kind() == KindString && r.Kind() == KindString {
		switch e.Op {
		case OpLT:
			return Bool(l.AsString() < r.AsString()), nil
		case OpLE:
			return Bool(l.AsString() <= r.AsString()), nil
		case OpGT:
			return Bool(l.AsString() > r.AsString()), nil
		case OpGE:
			return Bool(l.AsString() >= r.AsString()), nil
		}
		return Value{}, newErr(ErrUnknownOp, "")
	}
	return Value{}, newErr(ErrTypeMismatch, "cannot order-compare "+l.Kind().String()+" and "+r.Kind().String())
}

func (e *Expr) evalLogical(ctx *Context) (Value, error) {
	l, err := e.Left.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	switch e.Op {
	case OpAnd:
		if !l.AsBool() {
			return Bool(false), nil
		}
		r, err := e.Right.Eval(ctx)
		if err != nil {
			return Value{}, err
		}
		return Bool(r.AsBool()), nil
	case OpOr:
		if l.AsBool() {
			return Bool(true), nil
		}
		r, err := e.Right.Eval(ctx)
		if err != nil {
			return Value{}, err
		}
		return Bool(r.AsBool()), nil
	case OpXor:
		r, err := e.Right.Eval(ctx)
		if err != nil {
			return Value{}, err
		}
		return Bool(l.AsBool() != r.AsBool()), nil
	default:
		return Value{}, newErr(ErrUnknownOp, "")
	}
}
