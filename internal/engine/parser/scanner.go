package parser

import (
	"bytes"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ScanOptions tunes how strictly the scanner treats literal contents.
type ScanOptions struct {
	// LenientEscapes accepts unknown backslash escapes such as "\d" in
	// non-raw strings instead of failing with a LexError. Malformed \x, \u,
	// \U and \N escapes are always errors.
	LenientEscapes bool
}

// Scanner turns source text into a stream of tokens. Indentation is tracked
// as a stack of column widths and reported with INDENT/DEDENT tokens;
// newlines inside brackets are joined and produce no NEWLINE.
//
// A Scanner is not safe for concurrent use. Reset (or All) restarts it from
// the first byte.
type Scanner struct {
	path string
	src  []byte
	opts ScanOptions

	off           int
	line          int
	lineStart     int
	depth         int
	indents       []int
	pending       []Token
	atLineStart   bool
	lineHasTokens bool
	done          bool
}

func NewScanner(path string, src []byte, opts ScanOptions) *Scanner {
	s := &Scanner{path: path, src: src, opts: opts}
	s.Reset()
	return s
}

func (s *Scanner) Reset() {
	s.off = 0
	s.line = 1
	s.lineStart = 0
	s.depth = 0
	s.indents = append(s.indents[:0], 0)
	s.pending = s.pending[:0]
	s.atLineStart = true
	s.lineHasTokens = false
	s.done = false
	if bytes.HasPrefix(s.src, []byte{0xEF, 0xBB, 0xBF}) {
		s.off = 3
		s.lineStart = 3
	}
}

// All restarts the scanner and yields every token through EOF. Iteration
// stops after the first error.
func (s *Scanner) All() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		s.Reset()
		for {
			tok, err := s.Next()
			if err != nil {
				yield(Token{}, err)
				return
			}
			if !yield(tok, nil) || tok.Kind == TokenEOF {
				return
			}
		}
	}
}

// Tokenize scans src to completion.
func Tokenize(path string, src []byte, opts ScanOptions) ([]Token, error) {
	var out []Token
	for tok, err := range NewScanner(path, src, opts).All() {
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// Next returns the next token. After EOF it keeps returning EOF.
func (s *Scanner) Next() (Token, error) {
	if tok, ok := s.popPending(); ok {
		return tok, nil
	}
	if s.done {
		p := s.pos()
		return Token{Kind: TokenEOF, Pos: p, End: p}, nil
	}
	if s.atLineStart && s.depth == 0 {
		if err := s.scanIndentation(); err != nil {
			return Token{}, err
		}
		if tok, ok := s.popPending(); ok {
			return tok, nil
		}
	}

	for {
		if err := s.skipSpace(); err != nil {
			return Token{}, err
		}
		if s.off >= len(s.src) {
			return s.finish(), nil
		}

		c := s.src[s.off]
		if c != '\n' && c != '\r' {
			return s.scanToken()
		}

		start := s.pos()
		s.consumeNewline()
		if s.depth > 0 {
			continue
		}
		s.atLineStart = true
		if !s.lineHasTokens {
			return s.Next()
		}
		s.lineHasTokens = false
		return Token{Kind: TokenNewline, Pos: start, End: start}, nil
	}
}

func (s *Scanner) popPending() (Token, bool) {
	if len(s.pending) == 0 {
		return Token{}, false
	}
	tok := s.pending[0]
	s.pending = s.pending[1:]
	return tok, true
}

func (s *Scanner) pos() Position {
	return s.posAt(s.off)
}

// posAt is only valid for offsets on the current line.
func (s *Scanner) posAt(off int) Position {
	return Position{Offset: off, Line: s.line, Column: off - s.lineStart + 1}
}

func (s *Scanner) errorAt(p Position, format string, args ...any) *LexError {
	return newLexError(s.path, p, format, args...)
}

func (s *Scanner) emit(tok Token) (Token, error) {
	if !tok.isLayout() {
		s.lineHasTokens = true
	}
	return tok, nil
}

func (s *Scanner) consumeNewline() {
	if s.src[s.off] == '\r' {
		s.off++
		if s.off < len(s.src) && s.src[s.off] == '\n' {
			s.off++
		}
	} else {
		s.off++
	}
	s.line++
	s.lineStart = s.off
}

func (s *Scanner) skipComment() {
	for s.off < len(s.src) && s.src[s.off] != '\n' && s.src[s.off] != '\r' {
		s.off++
	}
}

func (s *Scanner) skipSpace() error {
	for s.off < len(s.src) {
		switch c := s.src[s.off]; c {
		case ' ', '\t', '\f':
			s.off++
		case '#':
			s.skipComment()
		case '\\':
			next := s.off + 1
			if next >= len(s.src) {
				return s.errorAt(s.pos(), "unexpected end of file after line continuation character")
			}
			if s.src[next] != '\n' && s.src[next] != '\r' {
				return s.errorAt(s.pos(), "unexpected character after line continuation character")
			}
			s.off++
			s.consumeNewline()
		default:
			return nil
		}
	}
	return nil
}

// scanIndentation measures the first non-blank line at the cursor and
// queues INDENT or DEDENT tokens against the indentation stack.
func (s *Scanner) scanIndentation() error {
	for {
		col := 0
	measure:
		for s.off < len(s.src) {
			switch s.src[s.off] {
			case ' ':
				col++
			case '\t':
				col = (col/8 + 1) * 8
			case '\f':
				col = 0
			default:
				break measure
			}
			s.off++
		}

		if s.off >= len(s.src) {
			s.atLineStart = false
			return nil
		}
		switch s.src[s.off] {
		case '#':
			s.skipComment()
			continue
		case '\n', '\r':
			s.consumeNewline()
			continue
		}

		s.atLineStart = false
		p := s.pos()
		top := s.indents[len(s.indents)-1]
		switch {
		case col > top:
			s.indents = append(s.indents, col)
			s.pending = append(s.pending, Token{Kind: TokenIndent, Pos: s.posAt(s.lineStart), End: p})
		case col < top:
			for col < top {
				s.indents = s.indents[:len(s.indents)-1]
				s.pending = append(s.pending, Token{Kind: TokenDedent, Pos: p, End: p})
				top = s.indents[len(s.indents)-1]
			}
			if col != top {
				return s.errorAt(p, "unindent does not match any outer indentation level")
			}
		}
		return nil
	}
}

func (s *Scanner) finish() Token {
	p := s.pos()
	if s.lineHasTokens {
		s.lineHasTokens = false
		s.pending = append(s.pending, Token{Kind: TokenNewline, Pos: p, End: p})
	}
	for len(s.indents) > 1 {
		s.indents = s.indents[:len(s.indents)-1]
		s.pending = append(s.pending, Token{Kind: TokenDedent, Pos: p, End: p})
	}
	s.pending = append(s.pending, Token{Kind: TokenEOF, Pos: p, End: p})
	s.done = true
	tok, _ := s.popPending()
	return tok
}

func (s *Scanner) scanToken() (Token, error) {
	start := s.pos()
	c := s.src[s.off]

	switch {
	case c == '"' || c == '\'':
		return s.scanString(start, "")
	case isDigit(c) || (c == '.' && s.off+1 < len(s.src) && isDigit(s.src[s.off+1])):
		s.scanNumber()
		return s.emit(Token{Kind: TokenNumber, Text: string(s.src[start.Offset:s.off]), Pos: start, End: s.pos()})
	case c == '_' || c < utf8.RuneSelf && unicode.IsLetter(rune(c)):
		return s.scanWord(start)
	case c >= utf8.RuneSelf:
		r, _ := utf8.DecodeRune(s.src[s.off:])
		if unicode.IsLetter(r) {
			return s.scanWord(start)
		}
		return Token{}, s.errorAt(start, "unexpected character %q", r)
	}

	rest := s.src[s.off:]
	for _, op := range operators {
		if !bytes.HasPrefix(rest, []byte(op)) {
			continue
		}
		s.off += len(op)
		switch op {
		case "(", "[", "{":
			s.depth++
		case ")", "]", "}":
			if s.depth > 0 {
				s.depth--
			}
		}
		return s.emit(Token{Kind: TokenOp, Text: op, Pos: start, End: s.pos()})
	}
	return Token{}, s.errorAt(start, "unexpected character %q", rune(c))
}

func (s *Scanner) scanWord(start Position) (Token, error) {
	for s.off < len(s.src) {
		r, size := utf8.DecodeRune(s.src[s.off:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r) {
			break
		}
		s.off += size
	}
	text := string(s.src[start.Offset:s.off])
	if s.off < len(s.src) && (s.src[s.off] == '"' || s.src[s.off] == '\'') && isStringPrefix(text) {
		return s.scanString(start, text)
	}
	kind := TokenName
	if keywords[text] {
		kind = TokenKeyword
	}
	return s.emit(Token{Kind: kind, Text: text, Pos: start, End: s.pos()})
}

func isStringPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

func (s *Scanner) scanNumber() {
	if s.src[s.off] == '0' && s.off+1 < len(s.src) && strings.IndexByte("xXoObB", s.src[s.off+1]) >= 0 {
		s.off += 2
		for s.off < len(s.src) && (isHexDigit(s.src[s.off]) || s.src[s.off] == '_') {
			s.off++
		}
		return
	}
	s.scanDigits()
	if s.off < len(s.src) && s.src[s.off] == '.' {
		s.off++
		s.scanDigits()
	}
	if s.off < len(s.src) && (s.src[s.off] == 'e' || s.src[s.off] == 'E') {
		next := s.off + 1
		if next < len(s.src) && (s.src[next] == '+' || s.src[next] == '-') {
			next++
		}
		if next < len(s.src) && isDigit(s.src[next]) {
			s.off = next
			s.scanDigits()
		}
	}
	if s.off < len(s.src) && (s.src[s.off] == 'j' || s.src[s.off] == 'J') {
		s.off++
	}
}

func (s *Scanner) scanDigits() {
	for s.off < len(s.src) && (isDigit(s.src[s.off]) || s.src[s.off] == '_') {
		s.off++
	}
}

func (s *Scanner) scanString(start Position, prefix string) (Token, error) {
	lower := strings.ToLower(prefix)
	raw := strings.Contains(lower, "r")
	isBytes := strings.Contains(lower, "b")

	quote := s.src[s.off]
	triple := s.off+2 < len(s.src) && s.src[s.off+1] == quote && s.src[s.off+2] == quote
	unterminated := "unterminated string literal"
	if triple {
		s.off += 3
		unterminated = "unterminated triple-quoted string literal"
	} else {
		s.off++
	}

	for {
		if s.off >= len(s.src) {
			return Token{}, s.errorAt(start, "%s", unterminated)
		}
		switch c := s.src[s.off]; {
		case c == '\\':
			if raw {
				s.off++
				if s.off < len(s.src) {
					if s.src[s.off] == '\n' || s.src[s.off] == '\r' {
						s.consumeNewline()
					} else {
						s.off++
					}
				}
				continue
			}
			if err := s.scanEscape(isBytes); err != nil {
				return Token{}, err
			}
		case c == quote:
			if !triple {
				s.off++
				return s.emit(Token{Kind: TokenString, Text: string(s.src[start.Offset:s.off]), Pos: start, End: s.pos()})
			}
			if s.off+2 < len(s.src) && s.src[s.off+1] == quote && s.src[s.off+2] == quote {
				s.off += 3
				return s.emit(Token{Kind: TokenString, Text: string(s.src[start.Offset:s.off]), Pos: start, End: s.pos()})
			}
			s.off++
		case c == '\n' || c == '\r':
			if !triple {
				return Token{}, s.errorAt(start, "%s", unterminated)
			}
			s.consumeNewline()
		default:
			s.off++
		}
	}
}

// scanEscape validates one backslash escape in a non-raw literal. The cursor
// is on the backslash.
func (s *Scanner) scanEscape(isBytes bool) error {
	escPos := s.pos()
	s.off++
	if s.off >= len(s.src) {
		return nil
	}

	c := s.src[s.off]
	switch {
	case c == '\n' || c == '\r':
		s.consumeNewline()
		return nil
	case strings.IndexByte("\\'\"abfnrtv", c) >= 0:
		s.off++
		return nil
	case c >= '0' && c <= '7':
		for i := 0; i < 3 && s.off < len(s.src) && s.src[s.off] >= '0' && s.src[s.off] <= '7'; i++ {
			s.off++
		}
		return nil
	case c == 'x':
		return s.scanHexEscape(escPos, 'x', 2)
	case c == 'u' && !isBytes:
		return s.scanHexEscape(escPos, 'u', 4)
	case c == 'U' && !isBytes:
		return s.scanHexEscape(escPos, 'U', 8)
	case c == 'N' && !isBytes:
		s.off++
		if s.off >= len(s.src) || s.src[s.off] != '{' {
			return s.errorAt(escPos, "malformed \\N character escape")
		}
		end := bytes.IndexAny(s.src[s.off:], "}\n\r")
		if end < 0 || s.src[s.off+end] != '}' {
			return s.errorAt(escPos, "malformed \\N character escape")
		}
		s.off += end + 1
		return nil
	}

	if s.opts.LenientEscapes {
		return nil
	}
	r, _ := utf8.DecodeRune(s.src[s.off:])
	return s.errorAt(escPos, "invalid escape sequence '\\%c'", r)
}

func (s *Scanner) scanHexEscape(escPos Position, letter byte, n int) error {
	s.off++
	for i := 0; i < n; i++ {
		if s.off >= len(s.src) || !isHexDigit(s.src[s.off]) {
			return s.errorAt(escPos, "truncated \\%cXX escape", letter)
		}
		s.off++
	}
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
