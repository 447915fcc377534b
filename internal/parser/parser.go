// Package parser implements Grimoire's recursive-descent parser (spec.md
// §4.B): tokens → a concrete SpellAST of sections, trigger handlers and
// statements.
//
// Surface grammar (informal; the spec fixes the token/IR shapes, this repo
// fixes the concrete syntax between them):
//
//	spell Name:
//	  version: "1.0.0"
//	  description: "..."
//	  params:
//	    amount: number = 100
//	  assets:
//	    usdc: { chain: 1, address: 0xA0b8, decimals: 6 }
//	  venues:
//	    main = @aave
//	    lending:
//	      - @aave
//	      - @compound
//	  skills:
//	    swap: [@uniswap, @sushiswap]
//	  advisors:
//	    oracle: { model: "gpt", scope: "risk" }
//	  limits:
//	    guard minHealth warn:
//	      healthFactor > 1.1
//	      message: "health factor low"
//	  on manual:
//	    x = 1
//	    if x > 0:
//	      emit big(v=x)
//	    @aave.deposit(asset="usdc", amount=x, onFailure=retry(3))
//	    result = oracle.ask(**should we proceed?**, schema=bool, timeout=30s, fallback=true)
package parser

import (
	"fmt"

	"github.com/franalgaba/grimoire-sub002/internal/ast"
	"github.com/franalgaba/grimoire-sub002/internal/expr"
	"github.com/franalgaba/grimoire-sub002/internal/invariant"
	"github.com/franalgaba/grimoire-sub002/internal/token"
)

// Parser consumes a token stream and produces a SpellAST.
type Parser struct {
	toks []token.Token
	pos  int
	errs Errors
}

// New creates a Parser over a token stream (e.g. from lexer.Tokenize).
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse parses a full spell. On any unrecoverable syntax error it returns a
// nil AST and a non-nil Errors value (spec.md §4.B / §7).
func Parse(toks []token.Token) (*ast.SpellAST, error) {
	p := New(toks)
	spell := p.parseSpell()
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return spell, nil
}

// --- token stream helpers ---

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) atKeyword(kw string) bool {
	return p.cur().Kind == token.KEYWORD && p.cur().Value == kw
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) token.Token {
	if !p.at(k) {
		p.fail("expected %s, got %s %q", k, p.cur().Kind, p.cur().Value)
		return p.cur()
	}
	return p.advance()
}

func (p *Parser) fail(format string, args ...any) {
	t := p.cur()
	p.errs = append(p.errs, &ParseError{Code: ErrParse, Message: sprintf(format, args...), Line: t.Line, Column: t.Column})
	p.synchronize()
}

// synchronize skips tokens until the next NEWLINE/DEDENT/EOF so later
// statements can still be attempted (spec.md §4.B: recoverable at
// statement boundaries).
func (p *Parser) synchronize() {
	for !p.at(token.EOF) && !p.at(token.NEWLINE) && !p.at(token.DEDENT) {
		p.advance()
	}
	if p.at(token.NEWLINE) {
		p.advance()
	}
}

func (p *Parser) skipNewlines() {
	for p.at(token.NEWLINE) {
		p.advance()
	}
}

// guardProgress panics (via internal/invariant) if a block-loop iteration
// consumed no tokens since prevPos. Every per-declaration parse function
// either advances on success or calls fail()/synchronize() on error, both
// of which always consume at least one token except when already
// positioned on EOF/DEDENT — so failing to progress here means the parser
// itself has a bug, never a malformed spell (that already produced a
// ParseError and resynchronized).
func (p *Parser) guardProgress(prevPos int, where string) {
	invariant.Invariant(p.pos > prevPos || p.at(token.EOF) || p.at(token.DEDENT),
		"parser stuck in %s() at pos %d", where, prevPos)
}

// expectBlockStart consumes ':' NEWLINE INDENT.
func (p *Parser) expectBlockStart() {
	p.expect(token.COLON)
	p.skipNewlines()
	p.expect(token.INDENT)
}

func (p *Parser) atBlockEnd() bool {
	return p.at(token.DEDENT) || p.at(token.EOF)
}

// --- top level ---

func (p *Parser) parseSpell() *ast.SpellAST {
	sp := &ast.SpellAST{}
	p.skipNewlines()
	if !p.atKeyword("spell") {
		p.fail("expected 'spell' declaration")
		return sp
	}
	p.advance()
	if p.at(token.IDENTIFIER) {
		sp.Name = p.advance().Value
	} else {
		p.fail("expected spell name")
	}
	p.expectBlockStart()

	for !p.atBlockEnd() {
		p.skipNewlines()
		if p.atBlockEnd() {
			break
		}
		prevPos := p.pos
		p.parseSection(sp)
		p.guardProgress(prevPos, "parseSpell")
		p.skipNewlines()
	}
	if p.at(token.DEDENT) {
		p.advance()
	}
	return sp
}

func (p *Parser) parseSection(sp *ast.SpellAST) {
	switch {
	case p.at(token.IDENTIFIER) && p.cur().Value == "version":
		p.advance()
		p.expect(token.COLON)
		sp.Version = p.parsePrimitiveString()
		p.skipNewlines()
	case p.at(token.IDENTIFIER) && p.cur().Value == "description":
		p.advance()
		p.expect(token.COLON)
		sp.Description = p.parsePrimitiveString()
		p.skipNewlines()
	case p.atKeyword("params"):
		p.advance()
		p.expectBlockStart()
		for !p.atBlockEnd() {
			p.skipNewlines()
			if p.atBlockEnd() {
				break
			}
			prevPos := p.pos
			sp.Params = append(sp.Params, p.parseParamDecl())
			p.guardProgress(prevPos, "parseSection:params")
			p.skipNewlines()
		}
		p.expect(token.DEDENT)
	case p.atKeyword("assets"):
		p.advance()
		p.expectBlockStart()
		for !p.atBlockEnd() {
			p.skipNewlines()
			if p.atBlockEnd() {
				break
			}
			prevPos := p.pos
			sp.Assets = append(sp.Assets, p.parseAssetDecl())
			p.guardProgress(prevPos, "parseSection:assets")
			p.skipNewlines()
		}
		p.expect(token.DEDENT)
	case p.atKeyword("venues"):
		p.advance()
		p.expectBlockStart()
		for !p.atBlockEnd() {
			p.skipNewlines()
			if p.atBlockEnd() {
				break
			}
			prevPos := p.pos
			sp.Venues = append(sp.Venues, p.parseVenueEntries()...)
			p.guardProgress(prevPos, "parseSection:venues")
			p.skipNewlines()
		}
		p.expect(token.DEDENT)
	case p.atKeyword("skills"):
		p.advance()
		p.expectBlockStart()
		for !p.atBlockEnd() {
			p.skipNewlines()
			if p.atBlockEnd() {
				break
			}
			prevPos := p.pos
			sp.Skills = append(sp.Skills, p.parseSkillDecl())
			p.guardProgress(prevPos, "parseSection:skills")
			p.skipNewlines()
		}
		p.expect(token.DEDENT)
	case p.atKeyword("advisors"):
		p.advance()
		p.expectBlockStart()
		for !p.atBlockEnd() {
			p.skipNewlines()
			if p.atBlockEnd() {
				break
			}
			prevPos := p.pos
			sp.Advisors = append(sp.Advisors, p.parseAdvisorDecl())
			p.guardProgress(prevPos, "parseSection:advisors")
			p.skipNewlines()
		}
		p.expect(token.DEDENT)
	case p.atKeyword("limits"):
		p.advance()
		p.expectBlockStart()
		for !p.atBlockEnd() {
			p.skipNewlines()
			if p.atBlockEnd() {
				break
			}
			prevPos := p.pos
			sp.Guards = append(sp.Guards, p.parseGuardDecl())
			p.guardProgress(prevPos, "parseSection:limits")
			p.skipNewlines()
		}
		p.expect(token.DEDENT)
	case p.atKeyword("on"):
		sp.Triggers = append(sp.Triggers, p.parseTrigger())
	default:
		p.fail("unexpected token in spell body: %s %q", p.cur().Kind, p.cur().Value)
		p.advance()
	}
}

func (p *Parser) parsePrimitiveString() string {
	if p.at(token.STRING) {
		return p.advance().Value
	}
	p.fail("expected string literal")
	return ""
}

func (p *Parser) parseParamDecl() ast.ParamDecl {
	d := ast.ParamDecl{}
	if p.at(token.IDENTIFIER) {
		d.Name = p.advance().Value
	} else {
		p.fail("expected param name")
	}
	p.expect(token.COLON)
	if p.at(token.IDENTIFIER) {
		d.Type = p.advance().Value
	} else {
		p.fail("expected param type")
	}
	if p.at(token.ASSIGN) {
		p.advance()
		d.Default = p.parseExpr()
	}
	return d
}

func (p *Parser) parseAssetDecl() ast.AssetDecl {
	d := ast.AssetDecl{}
	if p.at(token.IDENTIFIER) {
		d.Symbol = p.advance().Value
	} else {
		p.fail("expected asset symbol")
	}
	p.expect(token.COLON)
	p.expect(token.LBRACE)
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		key := p.expect(token.IDENTIFIER).Value
		p.expect(token.COLON)
		switch key {
		case "chain":
			d.Chain = uint64(p.parseNumberLiteral())
		case "address":
			d.Address = p.expect(token.ADDRESS).Value
		case "decimals":
			d.Decimals = int(p.parseNumberLiteral())
		default:
			p.parseExpr()
		}
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RBRACE)
	return d
}

func (p *Parser) parseNumberLiteral() float64 {
	if p.at(token.NUMBER) {
		return p.advance().Num
	}
	p.fail("expected number")
	return 0
}

// parseVenueEntries parses one venues-block line: either `alias = @handle`
// or a categorical group `group:` followed by an indented `- @handle` list.
func (p *Parser) parseVenueEntries() []ast.VenueDecl {
	if p.at(token.IDENTIFIER) && p.peekIs(1, token.ASSIGN) {
		alias := p.advance().Value
		p.advance() // '='
		handle := p.expect(token.VENUE_REF).Value
		return []ast.VenueDecl{{Alias: alias, Address: handle}}
	}
	group := p.expect(token.IDENTIFIER).Value
	p.expect(token.COLON)
	p.skipNewlines()
	p.expect(token.INDENT)
	var out []ast.VenueDecl
	for !p.atBlockEnd() {
		p.skipNewlines()
		if p.atBlockEnd() {
			break
		}
		if p.at(token.OPERATOR) && p.cur().Value == "-" {
			p.advance()
		}
		handle := p.expect(token.VENUE_REF).Value
		out = append(out, ast.VenueDecl{Alias: handle, Group: group, Address: handle})
		p.skipNewlines()
	}
	p.expect(token.DEDENT)
	return out
}

func (p *Parser) peekIs(offset int, k token.Kind) bool {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return k == token.EOF
	}
	return p.toks[idx].Kind == k
}

func (p *Parser) parseSkillDecl() ast.SkillDecl {
	d := ast.SkillDecl{}
	d.Name = p.expect(token.IDENTIFIER).Value
	d.Type = d.Name
	p.expect(token.COLON)
	p.expect(token.LBRACKET)
	for !p.at(token.RBRACKET) && !p.at(token.EOF) {
		d.Adapters = append(d.Adapters, p.expect(token.VENUE_REF).Value)
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RBRACKET)
	return d
}

func (p *Parser) parseAdvisorDecl() ast.AdvisorDecl {
	d := ast.AdvisorDecl{}
	d.Name = p.expect(token.IDENTIFIER).Value
	p.expect(token.COLON)
	p.expect(token.LBRACE)
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		key := p.expect(token.IDENTIFIER).Value
		p.expect(token.COLON)
		val := p.expect(token.STRING).Value
		switch key {
		case "model":
			d.Model = val
		case "scope":
			d.Scope = val
		}
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RBRACE)
	return d
}

func (p *Parser) parseGuardDecl() ast.GuardDecl {
	g := ast.GuardDecl{Severity: "error"}
	if p.atKeyword("limits") {
		p.advance()
	}
	if p.at(token.IDENTIFIER) && p.cur().Value == "guard" {
		p.advance()
	}
	g.ID = p.expect(token.IDENTIFIER).Value
	if p.at(token.IDENTIFIER) {
		g.Severity = p.advance().Value
	}
	p.expectBlockStart()
	g.Check = p.parseExpr()
	p.skipNewlines()
	if p.at(token.IDENTIFIER) && p.cur().Value == "message" {
		p.advance()
		p.expect(token.COLON)
		g.Message = p.parsePrimitiveString()
		p.skipNewlines()
	}
	p.expect(token.DEDENT)
	return g
}

func (p *Parser) parseTrigger() ast.Trigger {
	p.advance() // 'on'
	t := ast.Trigger{}
	switch {
	case p.at(token.IDENTIFIER) && p.cur().Value == "manual":
		p.advance()
		t.Kind = ast.TriggerManual
	case p.at(token.IDENTIFIER) && p.cur().Value == "hourly":
		p.advance()
		t.Kind = ast.TriggerHourly
	case p.at(token.IDENTIFIER) && p.cur().Value == "daily":
		p.advance()
		t.Kind = ast.TriggerDaily
	case p.at(token.IDENTIFIER) && p.cur().Value == "schedule":
		p.advance()
		p.expect(token.LPAREN)
		t.Kind = ast.TriggerSchedule
		t.Cron = p.parsePrimitiveString()
		p.expect(token.RPAREN)
	case p.at(token.IDENTIFIER) && p.cur().Value == "event":
		p.advance()
		p.expect(token.LPAREN)
		t.Kind = ast.TriggerEvent
		t.Event = p.parsePrimitiveString()
		p.expect(token.RPAREN)
	default:
		p.fail("unknown trigger kind %q", p.cur().Value)
	}
	p.expectBlockStart()
	t.Body = p.parseStatements()
	p.expect(token.DEDENT)
	return t
}

// --- statements ---

func (p *Parser) parseStatements() []ast.Statement {
	var out []ast.Statement
	for !p.atBlockEnd() {
		p.skipNewlines()
		if p.atBlockEnd() {
			break
		}
		prevPos := p.pos
		out = append(out, p.parseStatement())
		p.guardProgress(prevPos, "parseStatements")
		p.skipNewlines()
	}
	return out
}

func (p *Parser) parseStatement() ast.Statement {
	switch {
	case p.atKeyword("if"):
		return p.parseConditional()
	case p.atKeyword("for"):
		return p.parseFor()
	case p.at(token.IDENTIFIER) && p.cur().Value == "repeat":
		return p.parseRepeat()
	case p.at(token.IDENTIFIER) && p.cur().Value == "until":
		return p.parseUntil()
	case p.atKeyword("atomic"):
		p.advance()
		p.expectBlockStart()
		body := p.parseStatements()
		p.expect(token.DEDENT)
		return ast.Statement{Kind: ast.StmtAtomic, Body: body}
	case p.at(token.IDENTIFIER) && p.cur().Value == "try":
		return p.parseTry()
	case p.atKeyword("emit"):
		return p.parseEmit()
	case p.atKeyword("wait"):
		p.advance()
		return ast.Statement{Kind: ast.StmtWait, Duration: p.parseExpr()}
	case p.atKeyword("halt"):
		p.advance()
		s := ast.Statement{Kind: ast.StmtHalt}
		if p.at(token.LPAREN) {
			p.advance()
			if !p.at(token.RPAREN) {
				s.Message = p.parseExpr()
			}
			p.expect(token.RPAREN)
		}
		return s
	case p.at(token.IDENTIFIER) && p.peekIsAssignKeywordBlock():
		return p.parseBoundBlock()
	case p.at(token.IDENTIFIER) && (p.cur().Value == "state" || p.cur().Value == "ephemeral") && p.peekIs(1, token.DOT):
		return p.parseStateAssign()
	case p.at(token.IDENTIFIER) && p.peekIs(1, token.ASSIGN):
		name := p.advance().Value
		p.advance() // '='
		val := p.parseExpr()
		return ast.Statement{Kind: ast.StmtAssign, Variable: name, Value: val}
	default:
		e := p.parseExpr()
		return ast.Statement{Kind: ast.StmtExpr, Value: e}
	}
}

// parseStateAssign parses `state.x = expr` / `ephemeral.x = expr`
// statements (spec.md §3 state.persistent/state.ephemeral), distinct from
// the expression-level state.x/ephemeral.x *read* forms handled in
// parsePrimary.
func (p *Parser) parseStateAssign() ast.Statement {
	kind := p.advance().Value // 'state' or 'ephemeral'
	p.expect(token.DOT)
	name := p.expect(token.IDENTIFIER).Value
	p.expect(token.ASSIGN)
	val := p.parseExpr()
	s := ast.Statement{Kind: ast.StmtAssign, Variable: name, Value: val}
	if kind == "state" {
		s.Persistent = true
	} else {
		s.Ephemeral = true
	}
	return s
}

// peekIsAssignKeywordBlock detects `name = parallel(...):` / `name =
// pipeline(...):` forms, which need block parsing rather than a plain
// expression statement.
func (p *Parser) peekIsAssignKeywordBlock() bool {
	if !p.peekIs(1, token.ASSIGN) {
		return false
	}
	idx := p.pos + 2
	if idx >= len(p.toks) {
		return false
	}
	v := p.toks[idx].Value
	return p.toks[idx].Kind == token.IDENTIFIER && (v == "parallel" || v == "pipeline")
}

func (p *Parser) parseBoundBlock() ast.Statement {
	name := p.advance().Value
	p.advance() // '='
	kw := p.advance().Value
	switch kw {
	case "parallel":
		s := p.parseParallel()
		s.OutputBinding = name
		return s
	case "pipeline":
		s := p.parsePipeline()
		s.OutputBinding = name
		return s
	}
	p.fail("unknown block form %q", kw)
	return ast.Statement{Kind: ast.StmtExpr}
}

func (p *Parser) parseConditional() ast.Statement {
	p.advance() // 'if'
	s := ast.Statement{Kind: ast.StmtConditional}
	s.Cond = p.parseExpr()
	p.expectBlockStart()
	s.Then = p.parseStatements()
	p.expect(token.DEDENT)
	p.skipNewlines()
	if p.atKeyword("else") {
		p.advance()
		p.expectBlockStart()
		s.Else = p.parseStatements()
		p.expect(token.DEDENT)
	}
	return s
}

func (p *Parser) parseFor() ast.Statement {
	p.advance() // 'for'
	s := ast.Statement{Kind: ast.StmtFor}
	s.LoopVar = p.expect(token.IDENTIFIER).Value
	if !p.atKeyword("in") {
		p.fail("expected 'in' in for-loop")
	} else {
		p.advance()
	}
	s.Source = p.parseExpr()
	p.expectBlockStart()
	s.Body = p.parseStatements()
	p.expect(token.DEDENT)
	return s
}

func (p *Parser) parseRepeat() ast.Statement {
	p.advance() // 'repeat'
	s := ast.Statement{Kind: ast.StmtRepeat}
	s.Count = p.parseExpr()
	p.expectBlockStart()
	s.Body = p.parseStatements()
	p.expect(token.DEDENT)
	return s
}

func (p *Parser) parseUntil() ast.Statement {
	p.advance() // 'until'
	s := ast.Statement{Kind: ast.StmtUntil}
	s.Cond = p.parseExpr()
	p.expectBlockStart()
	s.Body = p.parseStatements()
	p.expect(token.DEDENT)
	return s
}

func (p *Parser) parseParallel() ast.Statement {
	s := ast.Statement{Kind: ast.StmtParallel, Join: ast.JoinSpec{Mode: "all"}, OnFail: "abort"}
	p.expect(token.LPAREN)
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		key := p.expect(token.IDENTIFIER).Value
		p.expect(token.ASSIGN)
		switch key {
		case "join":
			s.Join = p.parseJoinSpec()
		case "onFail":
			s.OnFail = p.expect(token.IDENTIFIER).Value
		default:
			p.parseExpr()
		}
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	p.expectBlockStart()
	for !p.atBlockEnd() {
		p.skipNewlines()
		if p.atBlockEnd() {
			break
		}
		if p.at(token.IDENTIFIER) && p.cur().Value == "branch" {
			p.advance()
			b := ast.ParallelBranch{}
			b.Name = p.expect(token.IDENTIFIER).Value
			b.ID = b.Name
			p.expectBlockStart()
			b.Steps = p.parseStatements()
			p.expect(token.DEDENT)
			s.Branches = append(s.Branches, b)
		} else {
			p.fail("expected 'branch' in parallel block")
			p.advance()
		}
		p.skipNewlines()
	}
	p.expect(token.DEDENT)
	return s
}

func (p *Parser) parseJoinSpec() ast.JoinSpec {
	mode := p.expect(token.IDENTIFIER).Value
	js := ast.JoinSpec{Mode: mode}
	if p.at(token.LPAREN) {
		p.advance()
		if mode == "any" {
			js.Count = int(p.parseNumberLiteral())
		} else if mode == "best" {
			js.Order = p.expect(token.IDENTIFIER).Value
		}
		p.expect(token.RPAREN)
	}
	return js
}

func (p *Parser) parsePipeline() ast.Statement {
	s := ast.Statement{Kind: ast.StmtPipeline}
	p.expect(token.LPAREN)
	s.PipeSource = p.parseExpr()
	p.expect(token.RPAREN)
	p.expectBlockStart()
	for !p.atBlockEnd() {
		p.skipNewlines()
		if p.atBlockEnd() {
			break
		}
		s.Stages = append(s.Stages, p.parsePipelineStage())
		p.skipNewlines()
	}
	p.expect(token.DEDENT)
	return s
}

func (p *Parser) parsePipelineStage() ast.PipelineStage {
	op := p.expect(token.IDENTIFIER).Value
	st := ast.PipelineStage{Op: op, Order: "asc"}
	switch op {
	case "where":
		st.Pred = p.parseExpr()
	case "sort":
		if p.at(token.IDENTIFIER) && p.cur().Value == "by" {
			p.advance()
		}
		st.By = p.parseExpr()
		if p.at(token.IDENTIFIER) && p.cur().Value == "order" {
			p.advance()
			p.expect(token.ASSIGN)
			st.Order = p.expect(token.IDENTIFIER).Value
		}
	case "map":
		p.expectBlockStart()
		st.Body = p.parseStatements()
		p.expect(token.DEDENT)
	case "take", "skip":
		st.N = p.parseExpr()
	default:
		p.fail("unknown pipeline stage %q", op)
	}
	return st
}

func (p *Parser) parseTry() ast.Statement {
	p.advance() // 'try'
	s := ast.Statement{Kind: ast.StmtTry}
	p.expectBlockStart()
	s.TryBody = p.parseStatements()
	p.expect(token.DEDENT)
	p.skipNewlines()
	for p.at(token.IDENTIFIER) && p.cur().Value == "catch" {
		p.advance()
		cb := ast.CatchBlock{}
		if !p.at(token.COLON) {
			cb.Matcher = p.parseExpr()
		}
		p.expectBlockStart()
		cb.Body = p.parseStatements()
		p.expect(token.DEDENT)
		s.Catches = append(s.Catches, cb)
		p.skipNewlines()
	}
	return s
}

func (p *Parser) parseEmit() ast.Statement {
	p.advance() // 'emit'
	s := ast.Statement{Kind: ast.StmtEmit}
	s.Event = p.expect(token.IDENTIFIER).Value
	if p.at(token.LPAREN) {
		p.advance()
		for !p.at(token.RPAREN) && !p.at(token.EOF) {
			name := p.expect(token.IDENTIFIER).Value
			p.expect(token.ASSIGN)
			s.Data = append(s.Data, ast.NamedArg{Name: name, Value: p.parseExpr()})
			if p.at(token.COMMA) {
				p.advance()
			}
		}
		p.expect(token.RPAREN)
	}
	return s
}

// --- expressions (precedence climbing) ---

func (p *Parser) parseExpr() *expr.Expr { return p.parseOr() }

func (p *Parser) parseOr() *expr.Expr {
	left := p.parseAnd()
	for p.at(token.OPERATOR) && p.cur().Value == "or" {
		p.advance()
		right := p.parseAnd()
		left = &expr.Expr{Kind: expr.BinOp, Op: "or", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() *expr.Expr {
	left := p.parseNot()
	for p.at(token.OPERATOR) && p.cur().Value == "and" {
		p.advance()
		right := p.parseNot()
		left = &expr.Expr{Kind: expr.BinOp, Op: "and", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseNot() *expr.Expr {
	if p.at(token.OPERATOR) && p.cur().Value == "not" {
		p.advance()
		return &expr.Expr{Kind: expr.UnOp, Op: "not", Arg: p.parseNot()}
	}
	return p.parseComparison()
}

var cmpOps = map[string]bool{"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true}

func (p *Parser) parseComparison() *expr.Expr {
	left := p.parseAdditive()
	for p.at(token.OPERATOR) && cmpOps[p.cur().Value] {
		op := p.advance().Value
		right := p.parseAdditive()
		left = &expr.Expr{Kind: expr.BinOp, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() *expr.Expr {
	left := p.parseMultiplicative()
	for p.at(token.OPERATOR) && (p.cur().Value == "+" || p.cur().Value == "-") {
		op := p.advance().Value
		right := p.parseMultiplicative()
		left = &expr.Expr{Kind: expr.BinOp, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() *expr.Expr {
	left := p.parseUnary()
	for p.at(token.OPERATOR) && (p.cur().Value == "*" || p.cur().Value == "/" || p.cur().Value == "%") {
		op := p.advance().Value
		right := p.parseUnary()
		left = &expr.Expr{Kind: expr.BinOp, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() *expr.Expr {
	if p.at(token.OPERATOR) && p.cur().Value == "-" {
		p.advance()
		return &expr.Expr{Kind: expr.UnOp, Op: "-", Arg: p.parseUnary()}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() *expr.Expr {
	e := p.parsePrimary()
	for {
		switch {
		case p.at(token.DOT):
			p.advance()
			name := p.expect(token.IDENTIFIER).Value
			if p.at(token.LPAREN) {
				e = p.parseCallArgs(&expr.Expr{Kind: expr.Call, Recv: e, Fn: name})
			} else {
				e = &expr.Expr{Kind: expr.Field, Obj: e, Field: name}
			}
		case p.at(token.LBRACKET):
			p.advance()
			idx := p.parseExpr()
			p.expect(token.RBRACKET)
			e = &expr.Expr{Kind: expr.Index, Obj: e, Idx: idx}
		default:
			return e
		}
	}
}

func (p *Parser) parseCallArgs(call *expr.Expr) *expr.Expr {
	p.expect(token.LPAREN)
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		if p.at(token.IDENTIFIER) && p.peekIs(1, token.ASSIGN) {
			name := p.advance().Value
			p.advance()
			call.Args = append(call.Args, p.parseExpr())
			call.ArgNames = append(call.ArgNames, name)
		} else {
			call.Args = append(call.Args, p.parseExpr())
			call.ArgNames = append(call.ArgNames, "")
		}
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	return call
}

func (p *Parser) parsePrimary() *expr.Expr {
	t := p.cur()
	switch t.Kind {
	case token.KEYWORD:
		// "params" doubles as a section header and a dotted-access prefix
		// (params.amount); every other keyword is invalid in expression
		// position.
		if t.Value == "params" && p.peekIs(1, token.DOT) {
			p.advance()
			p.advance() // '.'
			name := p.expect(token.IDENTIFIER).Value
			return &expr.Expr{Kind: expr.Param, Name: name}
		}
		p.fail("unexpected keyword %q in expression", t.Value)
		p.advance()
		return expr.Lit(nil, "null")
	case token.NUMBER:
		p.advance()
		return expr.Lit(t.Num, "number")
	case token.PERCENTAGE:
		p.advance()
		return expr.Lit(t.Num, "percentage")
	case token.STRING:
		p.advance()
		return expr.Lit(t.Value, "string")
	case token.BOOLEAN:
		p.advance()
		return expr.Lit(t.Value == "true", "boolean")
	case token.ADDRESS:
		p.advance()
		return expr.Lit(t.Value, "address")
	case token.ADVISORY:
		p.advance()
		return expr.Lit(t.Value, "prompt")
	case token.VENUE_REF:
		p.advance()
		return &expr.Expr{Kind: expr.VenueRef, Name: t.Value}
	case token.LPAREN:
		p.advance()
		e := p.parseExpr()
		p.expect(token.RPAREN)
		return e
	case token.LBRACKET:
		p.advance()
		var items []*expr.Expr
		for !p.at(token.RBRACKET) && !p.at(token.EOF) {
			items = append(items, p.parseExpr())
			if p.at(token.COMMA) {
				p.advance()
			}
		}
		p.expect(token.RBRACKET)
		return &expr.Expr{Kind: expr.Array, Items: items}
	case token.LBRACE:
		p.advance()
		obj := &expr.Expr{Kind: expr.Object, Values: map[string]*expr.Expr{}}
		for !p.at(token.RBRACE) && !p.at(token.EOF) {
			key := p.identOrString()
			p.expect(token.COLON)
			val := p.parseExpr()
			obj.Keys = append(obj.Keys, key)
			obj.Values[key] = val
			if p.at(token.COMMA) {
				p.advance()
			}
		}
		p.expect(token.RBRACE)
		return obj
	case token.IDENTIFIER:
		p.advance()
		if t.Value == "params" && p.at(token.DOT) {
			p.advance()
			name := p.expect(token.IDENTIFIER).Value
			return &expr.Expr{Kind: expr.Param, Name: name}
		}
		if t.Value == "state" && p.at(token.DOT) {
			p.advance()
			name := p.expect(token.IDENTIFIER).Value
			return &expr.Expr{Kind: expr.Persistent, Name: name}
		}
		if t.Value == "ephemeral" && p.at(token.DOT) {
			p.advance()
			name := p.expect(token.IDENTIFIER).Value
			return &expr.Expr{Kind: expr.Ephemeral, Name: name}
		}
		if p.at(token.LPAREN) {
			return p.parseCallArgs(&expr.Expr{Kind: expr.Call, Fn: t.Value})
		}
		return &expr.Expr{Kind: expr.Binding, Name: t.Value}
	default:
		p.fail("unexpected token in expression: %s %q", t.Kind, t.Value)
		p.advance()
		return expr.Lit(nil, "null")
	}
}

func (p *Parser) identOrString() string {
	if p.at(token.STRING) {
		return p.advance().Value
	}
	return p.expect(token.IDENTIFIER).Value
}

func sprintf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
