// # internal/engine/parser/parser.go
package parser

import (
	"strings"
)

// parser is the construct parser: it recognizes decorators, function and
// class declarations and top-level imports, and skips every other statement.
// Tokens are pulled from the scanner on demand; a lexical error ends the
// token stream and takes precedence over whatever the parser reports.
type parser struct {
	path   string
	src    []byte
	sc     *Scanner
	buf    []Token
	lexErr error
	last   Token
	diags  *diagnostics
}

func parseTree(path string, src []byte, opts ScanOptions, diags *diagnostics) (*moduleNode, error) {
	p := &parser{
		path:  path,
		src:   src,
		sc:    NewScanner(path, src, opts),
		diags: diags,
	}
	m, err := p.parseModule()
	if p.lexErr != nil {
		return nil, p.lexErr
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *parser) fill(n int) {
	for len(p.buf) < n {
		if p.lexErr != nil {
			p.buf = append(p.buf, Token{Kind: TokenEOF, Pos: p.last.End, End: p.last.End})
			continue
		}
		tok, err := p.sc.Next()
		if err != nil {
			p.lexErr = err
			continue
		}
		p.buf = append(p.buf, tok)
	}
}

func (p *parser) peek() Token {
	return p.peekAt(0)
}

func (p *parser) peekAt(k int) Token {
	p.fill(k + 1)
	return p.buf[k]
}

func (p *parser) next() Token {
	tok := p.peek()
	if tok.Kind == TokenEOF {
		return tok
	}
	p.buf = p.buf[1:]
	if !tok.isLayout() {
		p.last = tok
	}
	return tok
}

func (p *parser) acceptOp(op string) bool {
	if p.peek().IsOp(op) {
		p.next()
		return true
	}
	return false
}

func (p *parser) errorf(span Span, format string, args ...any) *ParseError {
	return newParseError(p.path, span, format, args...)
}

func (p *parser) text(from, to Position) string {
	return string(p.src[from.Offset:to.Offset])
}

func (p *parser) unclosed(open Token) *ParseError {
	return p.errorf(open.Span(), "'%s' was never closed", open.Text)
}

// listError explains why tok cannot continue the bracketed list opened by open.
func (p *parser) listError(open Token, tok Token) *ParseError {
	switch {
	case tok.isLayout(), tok.Kind == TokenKeyword && statementKeywords[tok.Text]:
		return p.unclosed(open)
	case isCloseBracket(tok):
		return p.errorf(tok.Span(), "closing parenthesis '%s' does not match opening parenthesis '%s' on line %d",
			tok.Text, open.Text, open.Pos.Line)
	}
	return p.errorf(tok.Span(), "invalid syntax: unexpected %s", tok.describe())
}

func (p *parser) parseModule() (*moduleNode, error) {
	m := &moduleNode{}
	first := true
	for {
		tok := p.peek()
		switch {
		case tok.Kind == TokenEOF:
			return m, nil
		case tok.Kind == TokenNewline:
			p.next()
			continue
		case tok.Kind == TokenIndent:
			return nil, p.errorf(tok.Span(), "unexpected indent")
		case first && tok.Kind == TokenString:
			if doc, ok := p.docstring(); ok {
				m.doc = doc
				first = false
				continue
			}
		}
		first = false

		switch {
		case p.startsDecl():
			d, err := p.parseDecl()
			if err != nil {
				return nil, err
			}
			m.decls = append(m.decls, d)
		case tok.IsKeyword("import"), tok.IsKeyword("from"):
			p.parseImport(m)
		default:
			p.skipStatement()
		}
	}
}

func (p *parser) startsDecl() bool {
	tok := p.peek()
	return tok.IsOp("@") || tok.IsKeyword("def") || tok.IsKeyword("class") ||
		tok.IsKeyword("async") && p.peekAt(1).IsKeyword("def")
}

// skipStatement consumes one simple statement, or a compound statement
// header and its indented block.
func (p *parser) skipStatement() {
	for {
		tok := p.next()
		switch tok.Kind {
		case TokenEOF:
			return
		case TokenIndent:
			p.skipBlock()
			return
		case TokenDedent:
			return
		case TokenNewline:
			if p.peek().Kind == TokenIndent {
				p.next()
				p.skipBlock()
			}
			return
		}
	}
}

// skipBlock consumes tokens through the DEDENT that closes the block whose
// INDENT was just consumed.
func (p *parser) skipBlock() {
	depth := 1
	for {
		switch p.next().Kind {
		case TokenEOF:
			return
		case TokenIndent:
			depth++
		case TokenDedent:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// docstring consumes a statement made only of string literals and returns
// its cleaned text. Byte and f-string literals do not count.
func (p *parser) docstring() (string, bool) {
	var parts []string
	k := 0
	for ; p.peekAt(k).Kind == TokenString; k++ {
		body, ok := stringValue(p.peekAt(k).Text)
		if !ok {
			return "", false
		}
		parts = append(parts, body)
	}
	if k == 0 || p.peekAt(k).Kind != TokenNewline {
		return "", false
	}
	for i := 0; i <= k; i++ {
		p.next()
	}
	return cleanDoc(strings.Join(parts, "")), true
}

func (p *parser) parseDecl() (declNode, error) {
	var decorators []decoratorNode
	for p.peek().IsOp("@") {
		d, err := p.parseDecorator()
		if err != nil {
			return declNode{}, err
		}
		decorators = append(decorators, d)
	}

	tok := p.peek()
	start := tok.Pos
	if len(decorators) > 0 {
		start = decorators[0].span.Start
	}
	switch {
	case tok.IsKeyword("class"):
		c, err := p.parseClass(start, decorators)
		return declNode{class: c}, err
	case tok.IsKeyword("def"), tok.IsKeyword("async") && p.peekAt(1).IsKeyword("def"):
		f, err := p.parseFunction(start, decorators)
		return declNode{fn: f}, err
	}
	return declNode{}, p.errorf(tok.Span(), "expected 'def' or 'class' after decorator, found %s", tok.describe())
}

func (p *parser) parseDecorator() (decoratorNode, error) {
	at := p.next()
	first := p.peek()
	if first.Kind != TokenName {
		return decoratorNode{}, p.errorf(first.Span(), "invalid decorator syntax: expected a name after '@', found %s", first.describe())
	}
	name, err := p.dottedName()
	if err != nil {
		return decoratorNode{}, err
	}

	d := decoratorNode{name: name}
	if open := p.peek(); open.IsOp("(") {
		p.next()
		args, _, err := p.captureExpr(func(t Token) bool { return t.IsOp(")") }, &open)
		if err != nil {
			return decoratorNode{}, err
		}
		if tok := p.peek(); !tok.IsOp(")") {
			return decoratorNode{}, p.listError(open, tok)
		}
		p.next()
		d.args = args
		d.hasArgs = true
	}

	end := p.last.End
	if tok := p.peek(); tok.Kind != TokenNewline {
		return decoratorNode{}, p.errorf(tok.Span(), "invalid decorator syntax: unexpected %s", tok.describe())
	}
	p.next()
	d.raw = p.text(first.Pos, end)
	d.span = Span{Start: at.Pos, End: end}
	return d, nil
}

func (p *parser) dottedName() (string, *ParseError) {
	var b strings.Builder
	b.WriteString(p.next().Text)
	for p.peek().IsOp(".") {
		p.next()
		tok := p.peek()
		if tok.Kind != TokenName {
			return "", p.errorf(tok.Span(), "invalid syntax: expected a name after '.', found %s", tok.describe())
		}
		p.next()
		b.WriteByte('.')
		b.WriteString(tok.Text)
	}
	return b.String(), nil
}

func (p *parser) parseFunction(start Position, decorators []decoratorNode) (*funcNode, error) {
	f := &funcNode{decorators: decorators}
	if p.peek().IsKeyword("async") {
		p.next()
		f.isAsync = true
	}
	p.next()

	nameTok := p.peek()
	if nameTok.Kind != TokenName {
		return nil, p.errorf(nameTok.Span(), "expected a function name after 'def', found %s", nameTok.describe())
	}
	p.next()
	f.name = nameTok.Text
	typeParams, err := p.typeParams()
	if err != nil {
		return nil, err
	}
	f.typeParams = typeParams

	open := p.peek()
	if !open.IsOp("(") {
		return nil, p.errorf(open.Span(), "expected '(' after function name %q, found %s", f.name, open.describe())
	}
	p.next()
	params, err := p.parseParams(open)
	if err != nil {
		return nil, err
	}
	f.params = params

	if p.acceptOp("->") {
		arrow := p.last
		text, span, err := p.captureExpr(func(t Token) bool { return t.IsOp(":") }, nil)
		if err != nil {
			return nil, err
		}
		if text == "" {
			return nil, p.errorf(arrow.Span(), "expected a return annotation after '->'")
		}
		f.returns = &annotationNode{text: text, span: span}
	}

	block, doc, err := p.openSuite("function definition")
	if err != nil {
		return nil, err
	}
	f.doc = doc
	if block {
		if d, ok := p.docstring(); ok {
			f.doc = d
		}
		p.skipBlock()
	}
	f.span = Span{Start: start, End: p.last.End}
	return f, nil
}

func (p *parser) parseParams(open Token) ([]paramNode, error) {
	var params []paramNode
	for {
		tok := p.peek()
		if tok.IsOp(")") {
			p.next()
			return params, nil
		}

		var prm paramNode
		named := true
		switch {
		case tok.IsOp("/"):
			p.next()
			named = false
		case tok.IsOp("*"):
			p.next()
			if p.peek().Kind == TokenName {
				prm.variadicPositional = true
			} else {
				named = false
			}
		case tok.IsOp("**"):
			p.next()
			if t := p.peek(); t.Kind != TokenName {
				return nil, p.errorf(t.Span(), "expected a parameter name after '**', found %s", t.describe())
			}
			prm.variadicKeyword = true
		case tok.Kind != TokenName:
			return nil, p.listError(open, tok)
		}

		if named {
			prm.name = p.next().Text
			if p.acceptOp(":") {
				colon := p.last
				text, span, err := p.captureExpr(func(t Token) bool {
					return t.IsOp(",") || t.IsOp(")") || t.IsOp("=")
				}, &open)
				if err != nil {
					return nil, err
				}
				if text == "" {
					return nil, p.errorf(colon.Span(), "annotation with no expression for parameter %q", prm.name)
				}
				prm.annotation = &annotationNode{text: text, span: span}
			}
			if p.acceptOp("=") {
				eq := p.last
				text, _, err := p.captureExpr(func(t Token) bool { return t.IsOp(",") || t.IsOp(")") }, &open)
				if err != nil {
					return nil, err
				}
				if text == "" {
					return nil, p.errorf(eq.Span(), "expected a default value for parameter %q", prm.name)
				}
				prm.hasDefault = true
				prm.defaultText = text
			}
			params = append(params, prm)
		}

		switch tok := p.peek(); {
		case tok.IsOp(","):
			p.next()
		case tok.IsOp(")"):
		default:
			return nil, p.listError(open, tok)
		}
	}
}

// captureExpr consumes an expression up to the first token at bracket depth
// zero that satisfies stop, and returns its source text. A line end or a
// statement keyword reached before the brackets balance means a bracket was
// left open: the innermost one, or open when the expression itself is
// balanced. Commas belonging to a lambda's parameters do not stop capture.
func (p *parser) captureExpr(stop func(Token) bool, open *Token) (string, Span, error) {
	var stack []Token
	var first, last Token
	n := 0
	lambdas := 0

scan:
	for {
		tok := p.peek()
		if len(stack) == 0 {
			switch {
			case tok.IsKeyword("lambda"):
				lambdas++
			case lambdas > 0 && tok.IsOp(":"):
				lambdas--
			case lambdas > 0 && tok.IsOp(","):
			case stop(tok):
				break scan
			}
		}

		switch {
		case tok.isLayout(), tok.Kind == TokenKeyword && statementKeywords[tok.Text]:
			if len(stack) > 0 {
				return "", Span{}, p.unclosed(stack[len(stack)-1])
			}
			if open != nil {
				return "", Span{}, p.unclosed(*open)
			}
			break scan
		case isOpenBracket(tok):
			stack = append(stack, tok)
		case isCloseBracket(tok):
			if len(stack) == 0 {
				break scan
			}
			top := stack[len(stack)-1]
			if closerFor[top.Text] != tok.Text {
				return "", Span{}, p.errorf(tok.Span(), "closing parenthesis '%s' does not match opening parenthesis '%s' on line %d",
					tok.Text, top.Text, top.Pos.Line)
			}
			stack = stack[:len(stack)-1]
		}

		p.next()
		if n == 0 {
			first = tok
		}
		last = tok
		n++
	}

	if n == 0 {
		return "", Span{}, nil
	}
	span := Span{Start: first.Pos, End: last.End}
	return p.text(span.Start, span.End), span, nil
}

// typeParams consumes an optional PEP 695 type parameter list and returns
// its contents as opaque text.
func (p *parser) typeParams() (string, error) {
	open := p.peek()
	if !open.IsOp("[") {
		return "", nil
	}
	p.next()
	text, _, err := p.captureExpr(func(t Token) bool { return t.IsOp("]") }, &open)
	if err != nil {
		return "", err
	}
	if tok := p.peek(); !tok.IsOp("]") {
		return "", p.listError(open, tok)
	}
	if text == "" {
		return "", p.errorf(open.Span(), "type parameter list cannot be empty")
	}
	p.next()
	return collapseSpace(text), nil
}

// openSuite consumes the ':' ending a compound statement header. It reports
// whether an indented block follows; for a suite written on the header line
// it consumes the line and returns its docstring, if any.
func (p *parser) openSuite(what string) (bool, string, error) {
	tok := p.peek()
	if !tok.IsOp(":") {
		return false, "", p.errorf(tok.Span(), "expected ':' to end the %s header, found %s", what, tok.describe())
	}
	p.next()

	if p.peek().Kind != TokenNewline {
		if doc, ok := p.docstring(); ok {
			return false, doc, nil
		}
		p.skipStatement()
		return false, "", nil
	}
	p.next()
	if tok := p.peek(); tok.Kind != TokenIndent {
		return false, "", p.errorf(tok.Span(), "expected an indented block after %s", what)
	}
	p.next()
	return true, "", nil
}

func (p *parser) parseClass(start Position, decorators []decoratorNode) (*classNode, error) {
	p.next()
	nameTok := p.peek()
	if nameTok.Kind != TokenName {
		return nil, p.errorf(nameTok.Span(), "expected a class name after 'class', found %s", nameTok.describe())
	}
	p.next()

	c := &classNode{name: nameTok.Text, decorators: decorators}
	typeParams, err := p.typeParams()
	if err != nil {
		return nil, err
	}
	c.typeParams = typeParams
	if open := p.peek(); open.IsOp("(") {
		p.next()
		if err := p.parseBases(c, open); err != nil {
			return nil, err
		}
	}

	block, doc, err := p.openSuite("class definition")
	if err != nil {
		return nil, err
	}
	c.doc = doc
	if block {
		if err := p.parseClassBody(c); err != nil {
			return nil, err
		}
	}
	c.span = Span{Start: start, End: p.last.End}
	return c, nil
}

func (p *parser) parseBases(c *classNode, open Token) error {
	stop := func(t Token) bool { return t.IsOp(",") || t.IsOp(")") }
	for {
		tok := p.peek()
		if tok.IsOp(")") {
			p.next()
			return nil
		}

		switch {
		case tok.IsOp("**"):
			p.next()
			text, _, err := p.captureExpr(stop, &open)
			if err != nil {
				return err
			}
			if text == "" {
				return p.errorf(tok.Span(), "expected an expression after '**'")
			}
			c.keywords = append(c.keywords, "**"+text)
		case tok.Kind == TokenName && p.peekAt(1).IsOp("="):
			p.next()
			eq := p.next()
			text, _, err := p.captureExpr(stop, &open)
			if err != nil {
				return err
			}
			if text == "" {
				return p.errorf(eq.Span(), "expected a value for keyword argument %q", tok.Text)
			}
			c.keywords = append(c.keywords, tok.Text+"="+text)
		default:
			text, span, err := p.captureExpr(stop, &open)
			if err != nil {
				return err
			}
			if text == "" {
				return p.listError(open, p.peek())
			}
			c.bases = append(c.bases, baseNode{text: collapseSpace(text), span: span})
		}

		switch tok := p.peek(); {
		case tok.IsOp(","):
			p.next()
		case tok.IsOp(")"):
		default:
			return p.listError(open, tok)
		}
	}
}

// parseClassBody collects the methods of a class. Nested classes are parsed
// for syntax and then dropped with a diagnostic; other statements are skipped.
func (p *parser) parseClassBody(c *classNode) error {
	first := true
	for {
		tok := p.peek()
		switch {
		case tok.Kind == TokenDedent:
			p.next()
			return nil
		case tok.Kind == TokenEOF:
			return nil
		case tok.Kind == TokenNewline:
			p.next()
			continue
		case tok.Kind == TokenIndent:
			return p.errorf(tok.Span(), "unexpected indent")
		case first && tok.Kind == TokenString:
			if doc, ok := p.docstring(); ok {
				c.doc = doc
				first = false
				continue
			}
		}
		first = false

		if !p.startsDecl() {
			p.skipStatement()
			continue
		}
		d, err := p.parseDecl()
		if err != nil {
			return err
		}
		if d.fn != nil {
			c.members = append(c.members, d.fn)
			continue
		}
		p.diags.add(DiagNestedClass, d.class.span, "nested class %q in %q is not part of the symbol tree", d.class.name, c.name)
	}
}

// parseImport records a top-level import statement. Malformed imports are
// reported as diagnostics and skipped.
func (p *parser) parseImport(m *moduleNode) {
	start := p.peek().Pos
	imports, err := p.importStatement()
	if err == nil {
		switch tok := p.peek(); {
		case tok.IsOp(";"):
			p.next()
		case tok.Kind == TokenNewline, tok.Kind == TokenEOF:
		default:
			err = p.errorf(tok.Span(), "invalid syntax: unexpected %s", tok.describe())
		}
	}
	if err != nil {
		p.diags.add(DiagInvalidImport, Span{Start: start, End: p.last.End}, "%s", err.Message)
		p.skipStatement()
		return
	}
	for i := range imports {
		imports[i].Span = Span{Start: start, End: p.last.End}
	}
	m.imports = append(m.imports, imports...)
}

func (p *parser) importStatement() ([]Import, *ParseError) {
	if p.next().IsKeyword("import") {
		var out []Import
		for {
			imp, err := p.importedModule()
			if err != nil {
				return nil, err
			}
			out = append(out, imp)
			if !p.acceptOp(",") {
				return out, nil
			}
		}
	}

	imp := Import{}
	for {
		if p.acceptOp(".") {
			imp.Level++
		} else if p.acceptOp("...") {
			imp.Level += 3
		} else {
			break
		}
	}
	if p.peek().Kind == TokenName {
		name, err := p.dottedName()
		if err != nil {
			return nil, err
		}
		imp.Module = name
	} else if imp.Level == 0 {
		tok := p.peek()
		return nil, p.errorf(tok.Span(), "expected a module name after 'from', found %s", tok.describe())
	}

	if tok := p.peek(); !tok.IsKeyword("import") {
		return nil, p.errorf(tok.Span(), "expected 'import', found %s", tok.describe())
	}
	p.next()

	if p.acceptOp("*") {
		imp.Items = []ImportItem{{Name: "*"}}
		return []Import{imp}, nil
	}
	parens := p.acceptOp("(")
	for {
		tok := p.peek()
		if tok.Kind != TokenName {
			return nil, p.errorf(tok.Span(), "expected a name to import, found %s", tok.describe())
		}
		p.next()
		item := ImportItem{Name: tok.Text}
		if p.peek().IsKeyword("as") {
			p.next()
			alias := p.peek()
			if alias.Kind != TokenName {
				return nil, p.errorf(alias.Span(), "expected a name after 'as', found %s", alias.describe())
			}
			p.next()
			item.Alias = alias.Text
		}
		imp.Items = append(imp.Items, item)

		if !p.acceptOp(",") {
			break
		}
		if parens && p.peek().IsOp(")") {
			break
		}
	}
	if parens {
		if tok := p.peek(); !tok.IsOp(")") {
			return nil, p.errorf(tok.Span(), "expected ')' to close the import list, found %s", tok.describe())
		}
		p.next()
	}
	return []Import{imp}, nil
}

func (p *parser) importedModule() (Import, *ParseError) {
	tok := p.peek()
	if tok.Kind != TokenName {
		return Import{}, p.errorf(tok.Span(), "expected a module name, found %s", tok.describe())
	}
	name, err := p.dottedName()
	if err != nil {
		return Import{}, err
	}
	imp := Import{Module: name}
	if p.peek().IsKeyword("as") {
		p.next()
		alias := p.peek()
		if alias.Kind != TokenName {
			return Import{}, p.errorf(alias.Span(), "expected a name after 'as', found %s", alias.describe())
		}
		p.next()
		imp.Alias = alias.Text
	}
	return imp, nil
}

// cleanDoc strips the indentation shared by all lines after the first, then
// surrounding blank space.
func cleanDoc(doc string) string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	doc = strings.ReplaceAll(doc, "\t", "        ")
	lines := strings.Split(doc, "\n")

	margin := -1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" {
			continue
		}
		if indent := len(line) - len(trimmed); margin < 0 || indent < margin {
			margin = indent
		}
	}

	lines[0] = strings.TrimSpace(lines[0])
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		if margin > 0 && len(line) >= margin {
			line = line[margin:]
		}
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
