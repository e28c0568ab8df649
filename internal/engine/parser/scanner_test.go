package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize_IndentationBlocks(t *testing.T) {
	toks, err := Tokenize("a.py", []byte("def f(x):\n    return x\n"), ScanOptions{})
	require.NoError(t, err)

	assert.Equal(t, []TokenKind{
		TokenKeyword, TokenName, TokenOp, TokenName, TokenOp, TokenOp, TokenNewline,
		TokenIndent, TokenKeyword, TokenName, TokenNewline,
		TokenDedent, TokenEOF,
	}, kinds(toks))
	assert.Equal(t, "def", toks[0].Text)
	assert.Equal(t, Position{Offset: 14, Line: 2, Column: 5}, toks[8].Pos)
}

func TestTokenize_BlankLinesAndComments(t *testing.T) {
	src := "# header\n\nx = 1  # trailing\n\n    # indented comment\ny = 2\n"
	toks, err := Tokenize("a.py", []byte(src), ScanOptions{})
	require.NoError(t, err)

	assert.Equal(t, []TokenKind{
		TokenName, TokenOp, TokenNumber, TokenNewline,
		TokenName, TokenOp, TokenNumber, TokenNewline,
		TokenEOF,
	}, kinds(toks))
}

func TestTokenize_ImplicitLineJoining(t *testing.T) {
	src := "call(a,\n     b,\n  c)\nz = [\n1]\n"
	toks, err := Tokenize("a.py", []byte(src), ScanOptions{})
	require.NoError(t, err)

	newlines := 0
	for _, tok := range toks {
		if tok.Kind == TokenNewline {
			newlines++
		}
		assert.NotEqual(t, TokenIndent, tok.Kind)
	}
	assert.Equal(t, 2, newlines)
}

func TestTokenize_BackslashContinuation(t *testing.T) {
	toks, err := Tokenize("a.py", []byte("x = 1 + \\\n    2\n"), ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{TokenName, TokenOp, TokenNumber, TokenOp, TokenNumber, TokenNewline, TokenEOF}, kinds(toks))
}

func TestTokenize_StringLiterals(t *testing.T) {
	src := `a = r"\d+" + b'\x00' + f"{x}" + """multi
line""" + 'it\'s'` + "\n"
	toks, err := Tokenize("a.py", []byte(src), ScanOptions{})
	require.NoError(t, err)

	var strs []string
	for _, tok := range toks {
		if tok.Kind == TokenString {
			strs = append(strs, tok.Text)
		}
	}
	assert.Equal(t, []string{`r"\d+"`, `b'\x00'`, `f"{x}"`, "\"\"\"multi\nline\"\"\"", `'it\'s'`}, strs)
}

func TestTokenize_Operators(t *testing.T) {
	toks, err := Tokenize("a.py", []byte("def f(**kw) -> None: x **= 2 ... @\n"), ScanOptions{})
	require.NoError(t, err)

	var ops []string
	for _, tok := range toks {
		if tok.Kind == TokenOp {
			ops = append(ops, tok.Text)
		}
	}
	assert.Equal(t, []string{"(", "**", ")", "->", ":", "**=", "...", "@"}, ops)
}

func TestTokenize_TabsAdvanceToMultipleOfEight(t *testing.T) {
	src := "if x:\n\tif y:\n\t\tpass\n        z\n"
	toks, err := Tokenize("a.py", []byte(src), ScanOptions{})
	require.NoError(t, err)

	indents, dedents := 0, 0
	for _, tok := range toks {
		switch tok.Kind {
		case TokenIndent:
			indents++
		case TokenDedent:
			dedents++
		}
	}
	assert.Equal(t, 2, indents)
	assert.Equal(t, 2, dedents)
}

func TestTokenize_LexErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
		pos     Position
	}{
		{
			name:    "unterminated string",
			src:     "x = \"abc\n",
			message: "unterminated string literal",
			pos:     Position{Offset: 4, Line: 1, Column: 5},
		},
		{
			name:    "unterminated triple quote",
			src:     "x = 1\ndoc = '''never\nclosed\n",
			message: "unterminated triple-quoted string literal",
			pos:     Position{Offset: 12, Line: 2, Column: 7},
		},
		{
			name:    "invalid escape",
			src:     "s = \"a\\d\"\n",
			message: "invalid escape sequence '\\d'",
			pos:     Position{Offset: 6, Line: 1, Column: 7},
		},
		{
			name:    "truncated hex escape",
			src:     "s = '\\x4'\n",
			message: "truncated \\xXX escape",
			pos:     Position{Offset: 5, Line: 1, Column: 6},
		},
		{
			name:    "dedent to unknown level",
			src:     "if x:\n    a\n  b\n",
			message: "unindent does not match any outer indentation level",
			pos:     Position{Offset: 14, Line: 3, Column: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize("bad.py", []byte(tt.src), ScanOptions{})
			require.Error(t, err)

			var lexErr *LexError
			require.True(t, errors.As(err, &lexErr), "expected *LexError, got %T", err)
			assert.Equal(t, tt.message, lexErr.Message)
			assert.Equal(t, tt.pos, lexErr.Pos)
			assert.Contains(t, lexErr.Error(), "bad.py:")
		})
	}
}

func TestTokenize_LenientEscapes(t *testing.T) {
	src := []byte("pattern = \"\\d+\\s\"\n")

	_, err := Tokenize("a.py", src, ScanOptions{})
	require.Error(t, err)

	toks, err := Tokenize("a.py", src, ScanOptions{LenientEscapes: true})
	require.NoError(t, err)
	assert.Equal(t, `"\d+\s"`, toks[2].Text)

	_, err = Tokenize("a.py", []byte("s = '\\xZZ'\n"), ScanOptions{LenientEscapes: true})
	require.Error(t, err, "malformed hex escapes stay fatal in lenient mode")
}

func TestScanner_AllIsRestartable(t *testing.T) {
	sc := NewScanner("a.py", []byte("class A:\n    pass\n"), ScanOptions{})

	collect := func() []Token {
		var out []Token
		for tok, err := range sc.All() {
			require.NoError(t, err)
			out = append(out, tok)
		}
		return out
	}

	first := collect()
	second := collect()
	assert.Equal(t, first, second)
	assert.Equal(t, TokenEOF, first[len(first)-1].Kind)

	tok, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, TokenEOF, tok.Kind, "Next keeps returning EOF after the end")
}

func TestScanner_AllStopsEarly(t *testing.T) {
	sc := NewScanner("a.py", []byte("a b c d\n"), ScanOptions{})
	n := 0
	for range sc.All() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestScanner_SkipsByteOrderMark(t *testing.T) {
	toks, err := Tokenize("a.py", []byte("\xEF\xBB\xBFx = 1\n"), ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, "x", toks[0].Text)
	assert.Equal(t, 1, toks[0].Pos.Column)
}
