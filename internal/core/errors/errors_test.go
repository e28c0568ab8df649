package errors

import (
	"errors"
	"fmt"
	"testing"
)

type codedErr struct{ code ErrorCode }

func (c codedErr) Error() string        { return "coded" }
func (c codedErr) ErrorCode() ErrorCode { return c.code }

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		if err.Error() != "[NOT_FOUND] resource not found" {
			t.Errorf("expected [NOT_FOUND] resource not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid input")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeWithWrapped", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		if !IsCode(err, CodeInternal) {
			t.Error("expected IsCode to return true for wrapped CodeInternal")
		}
	})

	t.Run("IsCodeThroughCoded", func(t *testing.T) {
		err := fmt.Errorf("parse a.py: %w", codedErr{code: CodeParseError})
		if !IsCode(err, CodeParseError) {
			t.Error("expected IsCode to see the coded error through fmt wrapping")
		}
		wrapped := Wrap(codedErr{code: CodeLexError}, CodeInternal, "batch")
		if !IsCode(wrapped, CodeLexError) {
			t.Error("expected IsCode to see the inner lex code")
		}
		if CodeOf(wrapped) != CodeInternal {
			t.Errorf("expected outermost code INTERNAL_ERROR, got %s", CodeOf(wrapped))
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(errors.New("boom"), CtxPath, "a.py")
		var de *DomainError
		if !errors.As(err, &de) {
			t.Fatal("expected DomainError")
		}
		if de.Context[CtxPath] != "a.py" {
			t.Errorf("expected path context, got %v", de.Context)
		}
	})
}
