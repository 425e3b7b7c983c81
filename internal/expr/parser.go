package expr

// Parse lexes text and builds an expression tree. It is the single public
// entry point for the expression grammar:
//
//	|| -> && / xor -> == != -> < <= > >= -> + - -> * / % -> unary + - ! -> primary
//
// A hand-written recursive-descent parser with equivalent precedence is
// used in place of a generated LALR grammar.
func Parse(text string) (*Expr, error) {
	p := &parser{lex: newLexer(text)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, newErr(ErrParse, "unexpected trailing input")
	}
	return node, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.tok.kind != kind {
		return newErr(ErrParse, "expected "+what)
	}
	return p.advance()
}

func (p *parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: NodeLogical, Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (*Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd || p.tok.kind == tokXor {
		op := OpAnd
		if p.tok.kind == tokXor {
			op = OpXor
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: NodeLogical, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (*Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokEQ || p.tok.kind == tokNE {
		op := OpEQ
		if p.tok.kind == tokNE {
			op = OpNE
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: NodeRelational, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseRelational() (*Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op Op
		switch p.tok.kind {
		case tokLT:
			op = OpLT
		case tokLE:
			op = OpLE
		case tokGT:
			op = OpGT
		case tokGE:
			op = OpGE
		default:
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: NodeRelational, Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseAdditive() (*Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokPlus || p.tok.kind == tokMinus {
		op := OpAdd
		if p.tok.kind == tokMinus {
			op = OpSub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: NodeArithmetic, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokStar || p.tok.kind == tokSlash || p.tok.kind == tokPercent {
		var op Op
		switch p.tok.kind {
		case tokStar:
			op = OpMul
		case tokSlash:
			op = OpDiv
		case tokPercent:
			op = OpMod
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: NodeArithmetic, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (*Expr, error) {
	switch p.tok.kind {
	case tokPlus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: NodeUnary, Op: OpPlus, Left: inner}, nil
	case tokMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: NodeUnary, Op: OpNegate, Left: inner}, nil
	case tokNot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: NodeUnary, Op: OpNot, Left: inner}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *parser) parsePrimary() (*Expr, error) {
	switch p.tok.kind {
	case tokInt:
		v := p.tok.i
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Expr{Kind: NodeConstant, Value: Int(v)}, nil
	case tokDouble:
		v := p.tok.d
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Expr{Kind: NodeConstant, Value: Double(v)}, nil
	case tokString:
		v := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Expr{Kind: NodeConstant, Value: String(v)}, nil
	case tokVariable:
		name := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Expr{Kind: NodeVariable, Name: name}, nil
	case tokIdent:
		switch p.tok.text {
		case "true":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &Expr{Kind: NodeConstant, Value: Bool(true)}, nil
		case "false":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &Expr{Kind: NodeConstant, Value: Bool(false)}, nil
		default:
			return nil, newErr(ErrParse, "unexpected identifier "+p.tok.text)
		}
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, newErr(ErrParse, "unexpected token, expected an expression")
	}
}
