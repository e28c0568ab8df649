package parser

import "fmt"

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenName
	TokenKeyword
	TokenNumber
	TokenString
	TokenOp
	TokenNewline
	TokenIndent
	TokenDedent
)

var tokenKindNames = [...]string{
	TokenEOF:     "EOF",
	TokenName:    "NAME",
	TokenKeyword: "KEYWORD",
	TokenNumber:  "NUMBER",
	TokenString:  "STRING",
	TokenOp:      "OP",
	TokenNewline: "NEWLINE",
	TokenIndent:  "INDENT",
	TokenDedent:  "DEDENT",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Position is a location in source text. Line and Column are 1-based;
// Column counts bytes.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span covers [Start, End) of a construct.
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

type Token struct {
	Kind TokenKind
	Text string
	Pos  Position
	End  Position
}

func (t Token) Span() Span {
	return Span{Start: t.Pos, End: t.End}
}

func (t Token) Is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Text == text
}

func (t Token) IsOp(text string) bool {
	return t.Kind == TokenOp && t.Text == text
}

func (t Token) IsKeyword(text string) bool {
	return t.Kind == TokenKeyword && t.Text == text
}

// layout tokens carry structure but no source text of their own.
func (t Token) isLayout() bool {
	switch t.Kind {
	case TokenNewline, TokenIndent, TokenDedent, TokenEOF:
		return true
	}
	return false
}

func (t Token) describe() string {
	switch t.Kind {
	case TokenEOF:
		return "end of file"
	case TokenNewline:
		return "end of line"
	case TokenIndent:
		return "indent"
	case TokenDedent:
		return "dedent"
	}
	return fmt.Sprintf("%q", t.Text)
}

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// statementKeywords never appear inside an expression; meeting one while
// capturing an annotation or default means a bracket was left open.
var statementKeywords = map[string]bool{
	"def": true, "class": true, "return": true, "pass": true, "import": true,
	"raise": true, "while": true, "with": true, "try": true, "except": true,
	"finally": true, "del": true, "global": true, "nonlocal": true,
	"assert": true, "break": true, "continue": true, "elif": true,
}

// Longest first so that prefix matching picks "**=" over "**" over "*".
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "**", "//", "==", "!=", "<=", ">=", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"(", ")", "[", "]", "{", "}", ":", ",", ".", ";", "@", "=",
	"+", "-", "*", "/", "%", "&", "|", "^", "~", "<", ">", "!",
}

var closerFor = map[string]string{"(": ")", "[": "]", "{": "}"}

func isOpenBracket(t Token) bool {
	return t.Kind == TokenOp && (t.Text == "(" || t.Text == "[" || t.Text == "{")
}

func isCloseBracket(t Token) bool {
	return t.Kind == TokenOp && (t.Text == ")" || t.Text == "]" || t.Text == "}")
}
