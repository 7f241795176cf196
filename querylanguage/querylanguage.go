// Package querylanguage provides the predicate language used by parsed
// statements. Expressions are plain values: they are built once by the
// translator, shared read-only by every execution of a cached statement,
// and evaluated to SQL by the sqlgraph package.
//
//	p := querylanguage.And(
//		querylanguage.FieldEQ("name", "a8m"),
//		querylanguage.FieldIn("org", "fb", "ent"),
//	)
//	p.String() // name == "a8m" && org in ["fb","ent"]
package querylanguage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// An Op represents a predicate operator.
type Op int

// Builtin operators.
const (
	OpAnd   Op = iota // logical and.
	OpOr              // logical or.
	OpNot             // logical negation.
	OpEQ              // =
	OpNEQ             // <>
	OpGT              // >
	OpGTE             // >=
	OpLT              // <
	OpLTE             // <=
	OpIn              // IN
	OpNotIn           // NOT IN
)

var ops = [...]string{
	OpAnd:   "&&",
	OpOr:    "||",
	OpNot:   "!",
	OpEQ:    "==",
	OpNEQ:   "!=",
	OpGT:    ">",
	OpGTE:   ">=",
	OpLT:    "<",
	OpLTE:   "<=",
	OpIn:    "in",
	OpNotIn: "not in",
}

// String returns the text representation of an operator.
func (o Op) String() string {
	if o >= 0 && int(o) < len(ops) {
		return ops[o]
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// A Func represents a function expression.
type Func string

// Builtin functions.
const (
	FuncEqualFold    Func = "equal_fold"    // equals case-insensitive
	FuncContains     Func = "contains"      // containing
	FuncContainsFold Func = "contains_fold" // containing case-insensitive
	FuncHasPrefix    Func = "has_prefix"    // startingWith
	FuncHasSuffix    Func = "has_suffix"    // endingWith
	FuncLike         Func = "like"          // SQL LIKE pattern
)

type (
	// The Expr interface must be implemented by all expressions.
	Expr interface {
		expr()
		fmt.Stringer
	}

	// P represents an expression that returns a boolean value depending on its variables.
	P interface {
		Expr
		Negate() P
	}
)

type (
	// A UnaryExpr represents a unary expression.
	UnaryExpr struct {
		Op Op
		X  Expr
	}

	// A BinaryExpr represents a binary expression.
	BinaryExpr struct {
		Op   Op
		X, Y Expr
	}

	// A NaryExpr represents a n-ary expression.
	NaryExpr struct {
		Op Op
		Xs []Expr
	}

	// A CallExpr represents a function call with its arguments.
	CallExpr struct {
		Func Func
		Args []Expr
	}

	// A Field represents an entity attribute.
	Field struct {
		Name string
	}

	// A Value represents an arbitrary literal value.
	Value struct {
		V any
	}

	// A List represents a parenthesized list of expressions, the
	// right operand of in and not in.
	List struct {
		Xs []Expr
	}

	// A Param represents a query parameter. Named parameters have a
	// non-empty Name, positional ones a Position starting at 1.
	Param struct {
		Name     string
		Position int
	}
)

// Not returns a new predicate that is the negation of p.
func Not(x P) P {
	return &UnaryExpr{Op: OpNot, X: x}
}

// And returns a composed predicate that represents the logical AND predicate.
func And(x, y P, z ...P) P {
	if len(z) == 0 {
		return &BinaryExpr{Op: OpAnd, X: x, Y: y}
	}
	return &NaryExpr{Op: OpAnd, Xs: append([]Expr{x, y}, p2expr(z)...)}
}

// Or returns a composed predicate that represents the logical OR predicate.
func Or(x, y P, z ...P) P {
	if len(z) == 0 {
		return &BinaryExpr{Op: OpOr, X: x, Y: y}
	}
	return &NaryExpr{Op: OpOr, Xs: append([]Expr{x, y}, p2expr(z)...)}
}

// F returns a field expression for the given name.
func F(name string) *Field {
	return &Field{Name: name}
}

// V returns a value expression.
func V(v any) *Value {
	return &Value{V: v}
}

// NamedParam returns a named parameter expression.
func NamedParam(name string) *Param {
	return &Param{Name: name}
}

// PositionalParam returns a positional parameter expression.
func PositionalParam(pos int) *Param {
	return &Param{Position: pos}
}

// EQ returns a predicate to check if the expressions are equal.
func EQ(x, y Expr) P {
	return &BinaryExpr{Op: OpEQ, X: x, Y: y}
}

// NEQ returns a predicate to check if the expressions are not equal.
func NEQ(x, y Expr) P {
	return &BinaryExpr{Op: OpNEQ, X: x, Y: y}
}

// GT returns a predicate to check if the expression x > than expression y.
func GT(x, y Expr) P {
	return &BinaryExpr{Op: OpGT, X: x, Y: y}
}

// GTE returns a predicate to check if the expression x >= than expression y.
func GTE(x, y Expr) P {
	return &BinaryExpr{Op: OpGTE, X: x, Y: y}
}

// LT returns a predicate to check if the expression x < than expression y.
func LT(x, y Expr) P {
	return &BinaryExpr{Op: OpLT, X: x, Y: y}
}

// LTE returns a predicate to check if the expression x <= than expression y.
func LTE(x, y Expr) P {
	return &BinaryExpr{Op: OpLTE, X: x, Y: y}
}

// In returns a predicate to check if the expression x is a member of y.
func In(x, y Expr) P {
	return &BinaryExpr{Op: OpIn, X: x, Y: y}
}

// NotIn returns a predicate to check if the expression x is not a member of y.
func NotIn(x, y Expr) P {
	return &BinaryExpr{Op: OpNotIn, X: x, Y: y}
}

// IsNil returns a predicate to check if the expression is null.
func IsNil(x Expr) P {
	return EQ(x, V(nil))
}

// NotNil returns a predicate to check if the expression is not null.
func NotNil(x Expr) P {
	return NEQ(x, V(nil))
}

// Call returns a function call predicate.
func Call(fn Func, args ...Expr) P {
	return &CallExpr{Func: fn, Args: args}
}

// FieldEQ returns a predicate to check if a field is equivalent to a given value.
func FieldEQ(name string, v any) P {
	return EQ(F(name), V(v))
}

// FieldNEQ returns a predicate to check if a field is not equivalent to a given value.
func FieldNEQ(name string, v any) P {
	return NEQ(F(name), V(v))
}

// FieldGT returns a predicate to check if a field is > than the given value.
func FieldGT(name string, v any) P {
	return GT(F(name), V(v))
}

// FieldGTE returns a predicate to check if a field is >= than the given value.
func FieldGTE(name string, v any) P {
	return GTE(F(name), V(v))
}

// FieldLT returns a predicate to check if a field is < than the given value.
func FieldLT(name string, v any) P {
	return LT(F(name), V(v))
}

// FieldLTE returns a predicate to check if a field is <= than the given value.
func FieldLTE(name string, v any) P {
	return LTE(F(name), V(v))
}

// FieldIn returns a predicate to check if the field value matches any value in the given list.
func FieldIn(name string, vs ...any) P {
	return In(F(name), V(vs))
}

// FieldNotIn returns a predicate to check if the field value doesn't match any value in the given list.
func FieldNotIn(name string, vs ...any) P {
	return NotIn(F(name), V(vs))
}

// FieldNil returns a predicate to check if a field is nil (null in databases).
func FieldNil(name string) P {
	return IsNil(F(name))
}

// FieldNotNil returns a predicate to check if a field is not nil (not null in databases).
func FieldNotNil(name string) P {
	return NotNil(F(name))
}

// FieldEqualFold returns a predicate to check if the field is equal to the given string under case-folding.
func FieldEqualFold(name string, v string) P {
	return Call(FuncEqualFold, F(name), V(v))
}

// FieldContains returns a predicate to check if the field value contains a substr.
func FieldContains(name, substr string) P {
	return Call(FuncContains, F(name), V(substr))
}

// FieldContainsFold returns a predicate to check if the field value contains a substr under case-folding.
func FieldContainsFold(name, substr string) P {
	return Call(FuncContainsFold, F(name), V(substr))
}

// FieldHasPrefix returns a predicate to check if the field starts with the given prefix.
func FieldHasPrefix(name, prefix string) P {
	return Call(FuncHasPrefix, F(name), V(prefix))
}

// FieldHasSuffix returns a predicate to check if the field ends with the given suffix.
func FieldHasSuffix(name, suffix string) P {
	return Call(FuncHasSuffix, F(name), V(suffix))
}

// FieldLike returns a predicate to check if the field matches the given SQL LIKE pattern.
func FieldLike(name, pattern string) P {
	return Call(FuncLike, F(name), V(pattern))
}

// Negate negates the predicate.
func (e *UnaryExpr) Negate() P {
	return Not(e)
}

// Negate negates the predicate.
func (e *BinaryExpr) Negate() P {
	return Not(e)
}

// Negate negates the predicate.
func (e *NaryExpr) Negate() P {
	return Not(e)
}

// Negate negates the predicate.
func (e *CallExpr) Negate() P {
	return Not(e)
}

// String returns the text representation of a unary expression.
func (e *UnaryExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.X)
}

// String returns the text representation of a binary expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.X, e.Op, e.Y)
}

// String returns the text representation of a n-ary expression.
func (e *NaryExpr) String() string {
	var s strings.Builder
	s.WriteByte('(')
	for i, x := range e.Xs {
		if i > 0 {
			s.WriteString(" " + e.Op.String() + " ")
		}
		s.WriteString(x.String())
	}
	s.WriteByte(')')
	return s.String()
}

// String returns the text representation of a call expression.
func (e *CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Func, strings.Join(args, ", "))
}

// String returns the text representation of a field.
func (f *Field) String() string {
	return f.Name
}

// String returns the text representation of a value.
func (v *Value) String() string {
	if v == nil || v.V == nil {
		return "nil"
	}
	buf, err := json.Marshal(v.V)
	if err != nil {
		return fmt.Sprint(v.V)
	}
	return string(buf)
}

// String returns the text representation of a list.
func (l *List) String() string {
	xs := make([]string, len(l.Xs))
	for i, x := range l.Xs {
		xs[i] = x.String()
	}
	return "[" + strings.Join(xs, ",") + "]"
}

// String returns the text representation of a parameter.
func (p *Param) String() string {
	if p.Name != "" {
		return ":" + p.Name
	}
	return "?" + strconv.Itoa(p.Position)
}

// IsNil reports if the value expression represents a null literal.
func (v *Value) IsNil() bool {
	return v == nil || v.V == nil
}

// Walk traverses the expression in depth-first order and calls fn for every
// node. If fn returns false, the children of the node are skipped.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch e := e.(type) {
	case *UnaryExpr:
		Walk(e.X, fn)
	case *BinaryExpr:
		Walk(e.X, fn)
		Walk(e.Y, fn)
	case *NaryExpr:
		for _, x := range e.Xs {
			Walk(x, fn)
		}
	case *CallExpr:
		for _, x := range e.Args {
			Walk(x, fn)
		}
	case *List:
		for _, x := range e.Xs {
			Walk(x, fn)
		}
	}
}

// Params returns the parameters referenced by the expression, in the
// order of their first occurrence.
func Params(e Expr) []*Param {
	var (
		ps   []*Param
		seen = make(map[string]struct{})
	)
	Walk(e, func(x Expr) bool {
		if p, ok := x.(*Param); ok {
			if _, ok := seen[p.String()]; !ok {
				seen[p.String()] = struct{}{}
				ps = append(ps, p)
			}
		}
		return true
	})
	return ps
}

// Fields returns the names of the fields referenced by the expression.
func Fields(e Expr) []string {
	var (
		fs   []string
		seen = make(map[string]struct{})
	)
	Walk(e, func(x Expr) bool {
		if f, ok := x.(*Field); ok {
			if _, ok := seen[f.Name]; !ok {
				seen[f.Name] = struct{}{}
				fs = append(fs, f.Name)
			}
		}
		return true
	})
	return fs
}

func p2expr(ps []P) []Expr {
	expr := make([]Expr, len(ps))
	for i := range ps {
		expr[i] = ps[i]
	}
	return expr
}

func (*Field) expr()      {}
func (*Value) expr()      {}
func (*List) expr()       {}
func (*Param) expr()      {}
func (*CallExpr) expr()   {}
func (*UnaryExpr) expr()  {}
func (*BinaryExpr) expr() {}
func (*NaryExpr) expr()   {}
