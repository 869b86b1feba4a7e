// Package parser implements a recursive-descent parser for stacklang.
//
// The parser converts the lexer's token stream into a tree of ast.Statement
// nodes, one tree per REPL line. Each grammar rule below corresponds to one
// parsing method; methods call each other recursively for nested
// expressions. The parser keeps a one-token lookahead (cur) and
// advances eagerly, which is enough because the grammar never needs to
// backtrack.
//
// Unlike an error-accumulating parser, Parse aborts at the first
// syntactic violation and returns it as an error: a REPL line is either
// entirely valid or entirely rejected, and the caller re-prompts.
//
// Expression precedence, lowest to highest:
//
//	1. logical or        ||
//	2. logical and        &&
//	3. comparison         == != < <= > >=
//	4. additive           + -
//	5. multiplicative     * / %
//	6. unary prefix       !
//	7. primary            integer literal, identifier, ( expression )
//
// Each level is left-associative and implemented as "parse one operand
// at the next-higher level, then fold in same-level operators while they
// keep appearing" — the standard recursive-descent precedence climb.
package parser

import (
	"fmt"
	"strconv"

	"github.com/jlang/stacklang/pkg/ast"
	"github.com/jlang/stacklang/pkg/lexer"
)

// Parser holds parsing state for a single source line.
type Parser struct {
	tokens []lexer.Token
	pos    int
}

// New tokenizes input and returns a Parser ready to parse it.
func New(input string) *Parser {
	return &Parser{tokens: lexer.New(input).Tokenize()}
}

// Parse consumes every token up to TokenEOF and returns the resulting
// statement list, or the first parse error encountered.
func Parse(input string) (*ast.Program, error) {
	p := New(input)
	var stmts []ast.Statement
	for !p.atEOF() {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return &ast.Program{Statements: stmts}, nil
}

func (p *Parser) cur() lexer.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return lexer.Token{Kind: lexer.TokenEOF}
}

func (p *Parser) atEOF() bool {
	return p.cur().Kind == lexer.TokenEOF
}

// advance returns the current token and moves past it.
func (p *Parser) advance() lexer.Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect advances past the current token if it has kind k, otherwise
// returns a parse error built from msg.
func (p *Parser) expect(k lexer.TokenType, msg string) error {
	if p.cur().Kind != k {
		return fmt.Errorf("%s", msg)
	}
	p.advance()
	return nil
}

// parseStatement dispatches on the current token, per the statement
// grammar in spec §4.2.
func (p *Parser) parseStatement() (ast.Statement, error) {
	tok := p.cur()

	switch {
	case tok.Kind == lexer.TokenKeyword && tok.Lexeme == "if":
		return p.parseIf()
	case tok.Kind == lexer.TokenKeyword && tok.Lexeme == "while":
		return p.parseWhile()
	case tok.Kind == lexer.TokenIdentifier:
		return p.parseAssignment()
	case tok.Kind == lexer.TokenKeyword && tok.Lexeme == "print":
		return p.parsePrint()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseIf() (ast.Statement, error) {
	p.advance() // consume 'if'
	if err := p.expect(lexer.TokenLParen, "Expected '(' after if/while"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenRParen, "Expected ')' after condition"); err != nil {
		return nil, err
	}

	thenStmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	var elseStmt ast.Statement
	if p.cur().Kind == lexer.TokenKeyword && p.cur().Lexeme == "else" {
		p.advance() // consume 'else'
		elseStmt, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}

	return &ast.If{Cond: cond, Then: thenStmt, Else: elseStmt}, nil
}

func (p *Parser) parseWhile() (ast.Statement, error) {
	p.advance() // consume 'while'
	if err := p.expect(lexer.TokenLParen, "Expected '(' after if/while"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenRParen, "Expected ')' after condition"); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	return &ast.While{Cond: cond, Body: body}, nil
}

func (p *Parser) parseAssignment() (ast.Statement, error) {
	name := p.advance().Lexeme
	if err := p.expect(lexer.TokenAssign, "Expected '=' after identifier"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenSemicolon, "Expected semicolon after assignment"); err != nil {
		return nil, err
	}
	return &ast.Assignment{Name: name, Expr: expr}, nil
}

func (p *Parser) parsePrint() (ast.Statement, error) {
	p.advance() // consume 'print'
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenSemicolon, "Expected semicolon after print"); err != nil {
		return nil, err
	}
	return &ast.Print{Expr: expr}, nil
}

func (p *Parser) parseExpressionStatement() (ast.Statement, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenSemicolon, "Expected semicolon after expression"); err != nil {
		return nil, err
	}
	return &ast.ExpressionStatement{Expr: expr}, nil
}

func (p *Parser) parseExpression() (ast.Expression, error) {
	return p.parseLogicalOr()
}

func (p *Parser) parseLogicalOr() (ast.Expression, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.TokenOperator && p.cur().Lexeme == "||" {
		op := p.advance().Lexeme
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (ast.Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.TokenOperator && p.cur().Lexeme == "&&" {
		op := p.advance().Lexeme
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.TokenOperator && comparisonOps[p.cur().Lexeme] {
		op := p.advance().Lexeme
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.TokenOperator && (p.cur().Lexeme == "+" || p.cur().Lexeme == "-") {
		op := p.advance().Lexeme
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.TokenOperator && (p.cur().Lexeme == "*" || p.cur().Lexeme == "/" || p.cur().Lexeme == "%") {
		op := p.advance().Lexeme
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	if p.cur().Kind == lexer.TokenOperator && p.cur().Lexeme == "!" {
		p.advance()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: "!", Child: child}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	tok := p.cur()

	switch tok.Kind {
	case lexer.TokenNumber:
		p.advance()
		n, err := strconv.Atoi(tok.Lexeme)
		if err != nil {
			return nil, fmt.Errorf("Unexpected token in factor: %s", tok.Lexeme)
		}
		return &ast.Number{Value: n}, nil

	case lexer.TokenIdentifier:
		p.advance()
		return &ast.Identifier{Name: tok.Lexeme}, nil

	case lexer.TokenLParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.TokenRParen, "Expected ')'"); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, fmt.Errorf("Unexpected token in factor: %s", tok.Lexeme)
	}
}
