// Package boolexp parses, evaluates and prints MUSH lock keys.
package boolexp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

var (
	ErrSyntax        = errors.New("boolexp: syntax error")
	ErrUnknownObject = errors.New("boolexp: unknown object")
)

// parser holds the state for parsing a lock string.
type parser struct {
	db    *gamedb.Database
	actor gamedb.DBRef
	src   string
	pos   int
	err   error
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) advance() byte {
	ch := p.peek()
	if ch != 0 {
		p.pos++
	}
	return ch
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) fail(err error) *gamedb.BoolExp {
	if p.err == nil {
		p.err = err
	}
	return nil
}

// Parse parses a lock string into a BoolExp tree. Names are resolved from
// actor's point of view. An empty string parses to nil, the unlocked key.
// Grammar:
//
//	E → T ('|' E)?
//	T → F ('&' T)?
//	F → '!' F | '@' L | '+' L | '=' L | '$' L | L
//	L → '(' E ')' | '#' number | '#true' | '#false' | name ':' pattern | name '/' pattern | name
func Parse(db *gamedb.Database, actor gamedb.DBRef, text string) (*gamedb.BoolExp, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	p := &parser{db: db, actor: actor, src: text}
	b := p.parseE()
	p.skipSpaces()
	if p.err == nil && p.pos < len(p.src) {
		p.err = fmt.Errorf("%w: unexpected %q", ErrSyntax, p.src[p.pos:])
	}
	if p.err != nil {
		return nil, p.err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	return b, nil
}

func (p *parser) parseE() *gamedb.BoolExp {
	left := p.parseT()
	if p.err != nil {
		return nil
	}
	p.skipSpaces()
	if p.peek() == '|' {
		p.advance()
		right := p.parseE()
		if right == nil {
			return p.fail(fmt.Errorf("%w: missing right side of '|'", ErrSyntax))
		}
		return &gamedb.BoolExp{Type: gamedb.BoolOr, Sub1: left, Sub2: right}
	}
	return left
}

func (p *parser) parseT() *gamedb.BoolExp {
	left := p.parseF()
	if p.err != nil {
		return nil
	}
	p.skipSpaces()
	if p.peek() == '&' {
		p.advance()
		right := p.parseT()
		if right == nil {
			return p.fail(fmt.Errorf("%w: missing right side of '&'", ErrSyntax))
		}
		return &gamedb.BoolExp{Type: gamedb.BoolAnd, Sub1: left, Sub2: right}
	}
	return left
}

func (p *parser) parseF() *gamedb.BoolExp {
	p.skipSpaces()
	switch p.peek() {
	case '!':
		p.advance()
		sub := p.parseF()
		if sub == nil {
			return p.fail(fmt.Errorf("%w: '!' needs an operand", ErrSyntax))
		}
		return &gamedb.BoolExp{Type: gamedb.BoolNot, Sub1: sub}
	case '@':
		p.advance()
		sub := p.parseLiteral()
		if sub == nil || sub.Type != gamedb.BoolConst {
			return p.fail(fmt.Errorf("%w: '@' needs an object", ErrSyntax))
		}
		return &gamedb.BoolExp{Type: gamedb.BoolIndir, Sub1: sub}
	case '+', '=':
		op := p.advance()
		sub := p.parseLiteral()
		if sub == nil || (sub.Type != gamedb.BoolConst && sub.Type != gamedb.BoolAttr) {
			return p.fail(fmt.Errorf("%w: '%c' needs an object or attribute", ErrSyntax, op))
		}
		typ := gamedb.BoolCarry
		if op == '=' {
			typ = gamedb.BoolIs
		}
		return &gamedb.BoolExp{Type: typ, Sub1: sub}
	case '$':
		p.advance()
		sub := p.parseLiteral()
		if sub == nil || sub.Type != gamedb.BoolConst {
			return p.fail(fmt.Errorf("%w: '$' needs an object", ErrSyntax))
		}
		return &gamedb.BoolExp{Type: gamedb.BoolOwner, Sub1: sub}
	default:
		return p.parseLiteral()
	}
}

func (p *parser) parseLiteral() *gamedb.BoolExp {
	p.skipSpaces()
	if p.err != nil {
		return nil
	}
	if p.peek() == '(' {
		p.advance()
		sub := p.parseE()
		if p.err != nil {
			return nil
		}
		p.skipSpaces()
		if p.advance() != ')' {
			return p.fail(fmt.Errorf("%w: missing ')'", ErrSyntax))
		}
		return sub
	}

	// Collect a name token up to an operator or an attribute separator.
	start := p.pos
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '&' || ch == '|' || ch == '!' || ch == '(' || ch == ')' {
			break
		}
		if ch == ':' || ch == '/' {
			name := strings.TrimSpace(p.src[start:p.pos])
			if name == "" {
				return p.fail(fmt.Errorf("%w: missing attribute name", ErrSyntax))
			}
			p.pos++
			patStart := p.pos
			for p.pos < len(p.src) {
				pc := p.src[p.pos]
				if pc == '&' || pc == '|' || pc == ')' {
					break
				}
				p.pos++
			}
			typ := gamedb.BoolAttr
			if ch == '/' {
				typ = gamedb.BoolEval
			}
			return &gamedb.BoolExp{
				Type:   typ,
				Attr:   strings.ToUpper(name),
				StrVal: strings.TrimSpace(p.src[patStart:p.pos]),
			}
		}
		p.pos++
	}

	token := strings.TrimSpace(p.src[start:p.pos])
	if token == "" {
		return nil
	}
	switch strings.ToLower(token) {
	case "#true":
		return &gamedb.BoolExp{Type: gamedb.BoolTrue}
	case "#false":
		return &gamedb.BoolExp{Type: gamedb.BoolFalse}
	}
	if token[0] == '#' {
		n, err := strconv.Atoi(token[1:])
		if err != nil {
			return p.fail(fmt.Errorf("%w: bad dbref %q", ErrSyntax, token))
		}
		if !p.db.Valid(gamedb.DBRef(n)) {
			return p.fail(fmt.Errorf("%w: %s", ErrUnknownObject, token))
		}
		return &gamedb.BoolExp{Type: gamedb.BoolConst, Thing: gamedb.DBRef(n)}
	}

	ref := p.db.Match(p.actor, token)
	if ref == gamedb.Nothing || ref == gamedb.Ambiguous {
		return p.fail(fmt.Errorf("%w: %q", ErrUnknownObject, token))
	}
	return &gamedb.BoolExp{Type: gamedb.BoolConst, Thing: ref}
}
