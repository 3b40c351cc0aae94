package iltext

import (
	"fmt"
	"strings"

	"github.com/splanck/viper-sub016/internal/ir"
)

// ParseError collects every diagnostic found while parsing; errors are
// accumulated rather than short-circuited so a user sees every problem
// from one run, per spec §4.C/§7.
type ParseError struct {
	Diags []Diagnostic
}

// Diagnostic is one parse failure, carrying the source position it was
// found at.
type Diagnostic struct {
	Pos     Pos
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Pos.Line, d.Pos.Col, d.Message)
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d parse error(s):", len(e.Diags))
	for _, d := range e.Diags {
		sb.WriteString("\n  ")
		sb.WriteString(d.String())
	}
	return sb.String()
}

type parser struct {
	toks []Token
	pos  int

	diags []Diagnostic

	// sym maps a function-local name ("n", "t1", ...) to its ValueID;
	// reset per function.
	sym map[string]ir.ValueID
	fn  *ir.Function

	// fileIdx is stamped onto every parsed instruction's SourceLoc.File,
	// so a later SourceManager lookup can map it back to the file this
	// text came from. 0 means "no file", matching SourceLoc's own
	// unknown-file convention.
	fileIdx int
}

// Parse scans and parses src into a Module. If any diagnostics were
// produced, the returned error is a non-nil *ParseError; the Module
// result in that case may be partially populated and should not be used.
// Instructions parsed this way carry no file identity (SourceLoc.File
// stays 0); use ParseFile when source-level tracing needs to resolve
// lines back to a file on disk.
func Parse(src string) (*ir.Module, error) {
	return ParseFile(src, 0)
}

// ParseFile is Parse, additionally stamping fileIdx onto every parsed
// instruction's SourceLoc.File. Callers that register the source path
// with a srcmgr.Manager pass the index that call returned.
func ParseFile(src string, fileIdx int) (*ir.Module, error) {
	toks, err := Tokens(src)
	if err != nil {
		le := err.(*LexError)
		return nil, &ParseError{Diags: []Diagnostic{{Pos: le.Pos, Message: le.Message}}}
	}
	p := &parser{toks: toks, fileIdx: fileIdx}
	m := p.parseModule()
	if len(p.diags) > 0 {
		return m, &ParseError{Diags: p.diags}
	}
	return m, nil
}

func (p *parser) cur() Token  { return p.toks[p.pos] }
func (p *parser) peekN(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errf(pos Pos, format string, args ...any) {
	p.diags = append(p.diags, Diagnostic{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (p *parser) expectPunct(s string) bool {
	if p.cur().Kind == TokPunct && p.cur().Text == s {
		p.advance()
		return true
	}
	p.errf(Pos{p.cur().Line, p.cur().Col}, "expected %q, got %q", s, p.cur().Text)
	return false
}

func (p *parser) expectIdent(s string) bool {
	if p.cur().Kind == TokIdent && p.cur().Text == s {
		p.advance()
		return true
	}
	p.errf(Pos{p.cur().Line, p.cur().Col}, "expected %q, got %q", s, p.cur().Text)
	return false
}

func (p *parser) parseModule() *ir.Module {
	m := ir.NewModule()

	p.expectIdent("il")
	// The "<major>.<minor>.<patch>" header tokenizes as a float
	// ("<major>.<minor>") followed by a '.' and a trailing int, since the
	// lexer has no notion of a three-part version literal.
	if p.cur().Kind == TokFloat {
		verTok := p.advance()
		major, minor := splitVersionFloat(verTok.Text)
		m.Version[0], m.Version[1] = major, minor
		if p.cur().Kind == TokPunct && p.cur().Text == "." {
			p.advance()
			if p.cur().Kind == TokInt {
				m.Version[2] = int(p.advance().IntVal)
			}
		}
	}

	for {
		switch {
		case p.cur().Kind == TokIdent && p.cur().Text == "extern":
			p.parseExtern(m)
		case p.cur().Kind == TokIdent && p.cur().Text == "global":
			p.parseGlobal(m)
		case p.cur().Kind == TokIdent && p.cur().Text == "func":
			p.parseFunc(m)
		case p.cur().Kind == TokEOF:
			return m
		default:
			p.errf(Pos{p.cur().Line, p.cur().Col}, "unexpected token %q at module scope", p.cur().Text)
			p.advance()
		}
	}
}

// splitVersionFloat splits a lexed "<major>.<minor>" float token's text
// back into its two integer components for the module version header.
func splitVersionFloat(text string) (major, minor int) {
	for i := 0; i < len(text); i++ {
		if text[i] == '.' {
			major = atoiSafe(text[:i])
			minor = atoiSafe(text[i+1:])
			return
		}
	}
	return atoiSafe(text), 0
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return n
		}
		n = n*10 + int(s[i]-'0')
	}
	return n
}

func (p *parser) parseType() ir.Type {
	tok := p.cur()
	if tok.Kind != TokIdent {
		p.errf(Pos{tok.Line, tok.Col}, "expected type name, got %q", tok.Text)
		return ir.Void
	}
	t, ok := ir.ParseType(tok.Text)
	if !ok {
		p.errf(Pos{tok.Line, tok.Col}, "unknown type %q", tok.Text)
		p.advance()
		return ir.Void
	}
	p.advance()
	return t
}

func (p *parser) parseExtern(m *ir.Module) {
	p.advance() // "extern"
	if p.cur().Kind != TokGlobal {
		p.errf(Pos{p.cur().Line, p.cur().Col}, "expected @name after 'extern'")
		return
	}
	name := p.advance().Text
	p.expectPunct("(")
	var params []ir.Type
	for !(p.cur().Kind == TokPunct && p.cur().Text == ")") {
		params = append(params, p.parseType())
		if p.cur().Kind == TokPunct && p.cur().Text == "," {
			p.advance()
		}
	}
	p.expectPunct(")")
	ret := ir.Void
	if p.cur().Kind == TokPunct && p.cur().Text == "->" {
		p.advance()
		ret = p.parseType()
	}
	m.AddExtern(&ir.Extern{Name: name, Params: params, RetType: ret})
}

func (p *parser) parseGlobal(m *ir.Module) {
	p.advance() // "global"
	p.expectIdent("const")
	p.expectIdent("str")
	if p.cur().Kind != TokGlobal {
		p.errf(Pos{p.cur().Line, p.cur().Col}, "expected @name in global declaration")
		return
	}
	name := p.advance().Text
	p.expectPunct("=")
	if p.cur().Kind != TokString {
		p.errf(Pos{p.cur().Line, p.cur().Col}, "expected string literal in global declaration")
		return
	}
	payload := p.advance().Text
	m.AddGlobal(&ir.Global{Name: name, Payload: payload})
}

func (p *parser) parseFunc(m *ir.Module) {
	p.advance() // "func"
	if p.cur().Kind != TokGlobal {
		p.errf(Pos{p.cur().Line, p.cur().Col}, "expected @name after 'func'")
		return
	}
	name := p.advance().Text

	p.expectPunct("(")
	var params []ir.Param
	for !(p.cur().Kind == TokPunct && p.cur().Text == ")") {
		if p.cur().Kind != TokPercent {
			p.errf(Pos{p.cur().Line, p.cur().Col}, "expected %%param in function parameter list")
			break
		}
		pname := p.advance().Text
		p.expectPunct(":")
		pty := p.parseType()
		params = append(params, ir.Param{Name: pname, Type: pty})
		if p.cur().Kind == TokPunct && p.cur().Text == "," {
			p.advance()
		}
	}
	p.expectPunct(")")
	ret := ir.Void
	if p.cur().Kind == TokPunct && p.cur().Text == "->" {
		p.advance()
		ret = p.parseType()
	}

	fn := ir.NewFunction(name, ret, params)
	for i := range fn.Params {
		fn.Params[i].Temp = fn.AllocTemp()
	}
	p.fn = fn
	p.sym = make(map[string]ir.ValueID)
	for _, prm := range fn.Params {
		p.sym[prm.Name] = prm.Temp
		fn.SetName(prm.Temp, prm.Name)
	}

	p.expectPunct("{")
	for !(p.cur().Kind == TokPunct && p.cur().Text == "}") && p.cur().Kind != TokEOF {
		p.parseBlock(fn)
	}
	p.expectPunct("}")

	m.AddFunc(fn)
	p.fn = nil
	p.sym = nil
}

// blockHeaderAhead reports whether the parser is positioned at a block
// header (IDENT optionally followed by a parenthesized parameter list,
// then ':') rather than an instruction.
func (p *parser) blockHeaderAhead() bool {
	if p.cur().Kind != TokIdent {
		return false
	}
	nxt := p.peekN(1)
	return (nxt.Kind == TokPunct && nxt.Text == ":") || (nxt.Kind == TokPunct && nxt.Text == "(")
}

func (p *parser) parseBlock(fn *ir.Function) {
	if !p.blockHeaderAhead() {
		p.errf(Pos{p.cur().Line, p.cur().Col}, "expected block label, got %q", p.cur().Text)
		p.advance()
		return
	}
	label := p.advance().Text
	blk := fn.AppendBlock(label)

	if p.cur().Kind == TokPunct && p.cur().Text == "(" {
		p.advance()
		for !(p.cur().Kind == TokPunct && p.cur().Text == ")") {
			if p.cur().Kind != TokPercent {
				p.errf(Pos{p.cur().Line, p.cur().Col}, "expected %%param in block parameter list")
				break
			}
			pname := p.advance().Text
			p.expectPunct(":")
			pty := p.parseType()
			id := fn.AllocTemp()
			blk.Params = append(blk.Params, ir.Param{Name: pname, Type: pty, Temp: id})
			p.sym[pname] = id
			fn.SetName(id, pname)
			if p.cur().Kind == TokPunct && p.cur().Text == "," {
				p.advance()
			}
		}
		p.expectPunct(")")
	}
	p.expectPunct(":")

	for !p.blockHeaderAhead() && !(p.cur().Kind == TokPunct && p.cur().Text == "}") && p.cur().Kind != TokEOF {
		in := p.parseInstr()
		if in != nil {
			blk.Append(in)
		}
	}
}

func (p *parser) resolveName(name string) ir.Value {
	if id, ok := p.sym[name]; ok {
		return ir.Temp(id)
	}
	p.errf(Pos{p.cur().Line, p.cur().Col}, "use of undeclared name %%%s", name)
	return ir.Value{}
}

func (p *parser) parseOperand() ir.Value {
	tok := p.cur()
	switch tok.Kind {
	case TokPercent:
		p.advance()
		return p.resolveName(tok.Text)
	case TokInt:
		p.advance()
		return ir.ConstInt(tok.IntVal)
	case TokFloat:
		p.advance()
		return ir.ConstFloat(tok.FloatVal)
	case TokString:
		p.advance()
		return ir.ConstStr(tok.Text)
	case TokGlobal:
		p.advance()
		return ir.GlobalAddr(tok.Text)
	case TokIdent:
		switch tok.Text {
		case "true":
			p.advance()
			return ir.ConstBool(true)
		case "false":
			p.advance()
			return ir.ConstBool(false)
		case "null":
			p.advance()
			return ir.NullPtr
		}
	}
	p.errf(Pos{tok.Line, tok.Col}, "expected operand, got %q", tok.Text)
	p.advance()
	return ir.Value{}
}

// parseInstr parses one instruction, in the form:
//
//	[%result[:type] =] Opcode [@callee] [operand, operand, ...] [label[(args)] ...]
func (p *parser) parseInstr() *ir.Instr {
	in := p.fn.AllocInstr()
	start := p.cur()
	in.Loc = ir.SourceLoc{File: p.fileIdx, Line: start.Line, Column: start.Col}

	// A no-result instruction always starts with its opcode identifier, so
	// seeing %name first unambiguously means a result assignment.
	if p.cur().Kind == TokPercent {
		resultName := p.advance().Text
		var declaredType ir.Type
		hasType := false
		if p.cur().Kind == TokPunct && p.cur().Text == ":" {
			p.advance()
			declaredType = p.parseType()
			hasType = true
		}
		p.expectPunct("=")
		op := p.parseOpcodeName()
		in.Op = op
		p.parseOperandsAndTargets(in)

		id := p.fn.AllocTemp()
		in.HasResult = true
		in.Result = id
		if hasType {
			in.ResultType = declaredType
		} else {
			in.ResultType = inferResultType(op, in.Args)
		}
		p.sym[resultName] = id
		p.fn.SetName(id, resultName)
		return in
	}

	op := p.parseOpcodeName()
	in.Op = op
	p.parseOperandsAndTargets(in)
	return in
}

func (p *parser) parseOpcodeName() ir.Opcode {
	tok := p.cur()
	if tok.Kind != TokIdent {
		p.errf(Pos{tok.Line, tok.Col}, "expected opcode, got %q", tok.Text)
		return ir.OpInvalid
	}
	op, ok := ir.ParseOpcode(tok.Text)
	if !ok {
		p.errf(Pos{tok.Line, tok.Col}, "unknown opcode %q", tok.Text)
		p.advance()
		return ir.OpInvalid
	}
	p.advance()
	return op
}

func (p *parser) atInstrOrBlockBoundary() bool {
	if p.cur().Kind == TokEOF {
		return true
	}
	if p.cur().Kind == TokPunct && p.cur().Text == "}" {
		return true
	}
	return p.blockHeaderAhead()
}

// parseOperandsAndTargets consumes an optional @callee, the instruction's
// value operands, and its trailing branch targets, in the textual forms:
//
//	Add %a, %b
//	Br label(args)
//	CBr %cond, trueLabel(args), falseLabel(args)
//	SwitchI32 %scrut, default(args), 0 case0(args), 1 case1(args)
func (p *parser) parseOperandsAndTargets(in *ir.Instr) {
	if in.Op == ir.OpCall && p.cur().Kind == TokGlobal {
		in.Callee = p.advance().Text
		p.skipComma()
	}

	if in.Op == ir.OpSwitchI32 {
		in.Args = append(in.Args, p.parseOperand())
		p.skipComma()
		p.parseBranchTarget(in) // default target
		for p.atComma() {
			p.advance()
			caseTok := p.cur()
			if caseTok.Kind != TokInt {
				p.errf(Pos{caseTok.Line, caseTok.Col}, "expected case integer, got %q", caseTok.Text)
				return
			}
			p.advance()
			in.SwitchCases = append(in.SwitchCases, int32(caseTok.IntVal))
			p.parseBranchTarget(in)
		}
		return
	}

	for !p.atInstrOrBlockBoundary() && p.cur().Line == in.Loc.Line && !p.isLabelAhead() {
		in.Args = append(in.Args, p.parseOperand())
		if p.atComma() {
			p.advance()
			continue
		}
		break
	}

	for !p.atInstrOrBlockBoundary() && p.cur().Line == in.Loc.Line && p.isLabelAhead() {
		p.parseBranchTarget(in)
		if p.atComma() {
			p.advance()
		}
	}
}

func (p *parser) atComma() bool {
	return p.cur().Kind == TokPunct && p.cur().Text == ","
}

func (p *parser) skipComma() {
	if p.atComma() {
		p.advance()
	}
}

// isLabelAhead reports whether the current token begins a branch target
// rather than a value operand. Every bare identifier is a label reference
// except the operand keywords true/false/null, which parseOperand itself
// consumes.
func (p *parser) isLabelAhead() bool {
	if p.cur().Kind != TokIdent {
		return false
	}
	switch p.cur().Text {
	case "true", "false", "null":
		return false
	default:
		return true
	}
}

func (p *parser) parseBranchTarget(in *ir.Instr) {
	label := p.advance().Text
	in.Labels = append(in.Labels, label)
	var args []ir.Value
	if p.cur().Kind == TokPunct && p.cur().Text == "(" {
		p.advance()
		for !(p.cur().Kind == TokPunct && p.cur().Text == ")") {
			args = append(args, p.parseOperand())
			if p.cur().Kind == TokPunct && p.cur().Text == "," {
				p.advance()
			}
		}
		p.expectPunct(")")
	}
	in.BrArgs = append(in.BrArgs, args)
}

// inferResultType fills in a result type for a parsed instruction whose
// textual form omitted the optional ":type" annotation, using the same
// per-opcode-family rule the verifier otherwise enforces explicitly.
func inferResultType(op ir.Opcode, args []ir.Value) ir.Type {
	switch {
	case op.IsCompare():
		return ir.I1
	case op.IsArith():
		return ir.I64
	}
	switch op {
	case ir.OpAlloca, ir.OpGEP, ir.OpAddrOf:
		return ir.Ptr
	case ir.OpConstStr:
		return ir.Str
	case ir.OpConstNull:
		return ir.Ptr
	case ir.OpErrGetKind, ir.OpErrGetCode, ir.OpErrGetIp, ir.OpErrGetLine:
		return ir.I64
	case ir.OpEhEntry:
		return ir.Error
	default:
		return ir.I64
	}
}
