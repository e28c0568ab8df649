package parser

import (
	"fmt"

	"symtree/internal/core/errors"
)

// LexError is a fatal scanning failure: an unterminated literal, a bad
// escape sequence or an indentation level that matches no open block.
type LexError struct {
	Path    string
	Message string
	Pos     Position
}

func newLexError(path string, pos Position, format string, args ...any) *LexError {
	return &LexError{Path: path, Message: fmt.Sprintf(format, args...), Pos: pos}
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s (byte offset %d)", e.Path, e.Pos.Line, e.Pos.Column, e.Message, e.Pos.Offset)
}

func (e *LexError) ErrorCode() errors.ErrorCode {
	return errors.CodeLexError
}

// ParseError is a fatal syntax failure in a declaration. The file that
// produced it yields no SourceFile.
type ParseError struct {
	Path    string
	Message string
	Span    Span
}

func newParseError(path string, span Span, format string, args ...any) *ParseError {
	return &ParseError{Path: path, Message: fmt.Sprintf(format, args...), Span: span}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

func (e *ParseError) ErrorCode() errors.ErrorCode {
	return errors.CodeParseError
}

// SpanOf reports the source location carried by a LexError or ParseError.
func SpanOf(err error) (Span, bool) {
	switch e := err.(type) {
	case *LexError:
		return Span{Start: e.Pos, End: e.Pos}, true
	case *ParseError:
		return e.Span, true
	}
	return Span{}, false
}
