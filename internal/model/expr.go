package model

import (
	"fmt"
	"strings"
)

// ExprOp is the operator of a propositional expression node.
type ExprOp int

const (
	OpVar ExprOp = iota
	OpNot
	OpAnd
	OpOr
	OpImplies
)

// Expr is a propositional expression over feature identifiers. An absent or
// unselected feature evaluates to false.
type Expr struct {
	Op   ExprOp
	Var  string  // OpVar
	Args []*Expr // OpNot: 1, others: 2
}

func Var(id string) *Expr      { return &Expr{Op: OpVar, Var: id} }
func Not(e *Expr) *Expr        { return &Expr{Op: OpNot, Args: []*Expr{e}} }
func And(a, b *Expr) *Expr     { return &Expr{Op: OpAnd, Args: []*Expr{a, b}} }
func Or(a, b *Expr) *Expr      { return &Expr{Op: OpOr, Args: []*Expr{a, b}} }
func Implies(a, b *Expr) *Expr { return &Expr{Op: OpImplies, Args: []*Expr{a, b}} }

// OrAll folds a non-empty list into a right-associated disjunction.
func OrAll(ids []string) *Expr {
	e := Var(ids[len(ids)-1])
	for i := len(ids) - 2; i >= 0; i-- {
		e = Or(Var(ids[i]), e)
	}
	return e
}

// Eval evaluates the expression against a selection predicate.
func (e *Expr) Eval(selected func(string) bool) bool {
	switch e.Op {
	case OpVar:
		return selected(e.Var)
	case OpNot:
		return !e.Args[0].Eval(selected)
	case OpAnd:
		return e.Args[0].Eval(selected) && e.Args[1].Eval(selected)
	case OpOr:
		return e.Args[0].Eval(selected) || e.Args[1].Eval(selected)
	case OpImplies:
		return !e.Args[0].Eval(selected) || e.Args[1].Eval(selected)
	}
	return false
}

// Vars returns the distinct feature ids mentioned, in first-seen order.
func (e *Expr) Vars() []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(x *Expr)
	walk = func(x *Expr) {
		if x.Op == OpVar {
			if !seen[x.Var] {
				seen[x.Var] = true
				out = append(out, x.Var)
			}
			return
		}
		for _, a := range x.Args {
			walk(a)
		}
	}
	walk(e)
	return out
}

func (e *Expr) precedence() int {
	switch e.Op {
	case OpVar:
		return 4
	case OpNot:
		return 3
	case OpAnd:
		return 2
	case OpOr:
		return 1
	}
	return 0 // implies
}

// String renders the canonical textual form used in the model file.
func (e *Expr) String() string {
	var sb strings.Builder
	e.write(&sb, 0)
	return sb.String()
}

func (e *Expr) write(sb *strings.Builder, parent int) {
	prec := e.precedence()
	paren := prec < parent
	if paren {
		sb.WriteByte('(')
	}
	switch e.Op {
	case OpVar:
		sb.WriteString(e.Var)
	case OpNot:
		sb.WriteByte('!')
		e.Args[0].write(sb, prec+1)
	case OpAnd:
		e.Args[0].write(sb, prec)
		sb.WriteString(" & ")
		e.Args[1].write(sb, prec+1)
	case OpOr:
		e.Args[0].write(sb, prec)
		sb.WriteString(" | ")
		e.Args[1].write(sb, prec+1)
	case OpImplies:
		e.Args[0].write(sb, prec+1)
		sb.WriteString(" => ")
		e.Args[1].write(sb, prec)
	}
	if paren {
		sb.WriteByte(')')
	}
}

// ParseExpr parses the textual expression form back into an AST.
// Grammar, loosest first: implies (right assoc), or, and, not, atom.
func ParseExpr(s string) (*Expr, error) {
	p := &exprParser{input: s}
	e, err := p.implies()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("unexpected trailing input at %d in %q", p.pos, s)
	}
	return e, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek(tok string) bool {
	p.skipSpace()
	return strings.HasPrefix(p.input[p.pos:], tok)
}

func (p *exprParser) eat(tok string) bool {
	if p.peek(tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *exprParser) implies() (*Expr, error) {
	left, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.eat("=>") {
		right, err := p.implies()
		if err != nil {
			return nil, err
		}
		return Implies(left, right), nil
	}
	return left, nil
}

func (p *exprParser) or() (*Expr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for !p.peek("=>") && p.eat("|") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

func (p *exprParser) and() (*Expr, error) {
	left, err := p.atom()
	if err != nil {
		return nil, err
	}
	for p.eat("&") {
		right, err := p.atom()
		if err != nil {
			return nil, err
		}
		left = And(left, right)
	}
	return left, nil
}

func (p *exprParser) atom() (*Expr, error) {
	p.skipSpace()
	switch {
	case p.eat("!"):
		e, err := p.atom()
		if err != nil {
			return nil, err
		}
		return Not(e), nil
	case p.eat("("):
		e, err := p.implies()
		if err != nil {
			return nil, err
		}
		if !p.eat(")") {
			return nil, fmt.Errorf("missing ) at %d in %q", p.pos, p.input)
		}
		return e, nil
	}

	start := p.pos
	for p.pos < len(p.input) && isIdentByte(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return nil, fmt.Errorf("expected identifier at %d in %q", start, p.input)
	}
	return Var(p.input[start:p.pos]), nil
}

func isIdentByte(b byte) bool {
	return b == '.' || b == '_' || b == '-' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
