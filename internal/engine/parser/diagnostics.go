package parser

import (
	"fmt"
	"slices"
)

type DiagnosticKind string

const (
	DiagUnmatchedSetter        DiagnosticKind = "unmatched-setter"
	DiagConflictingDecorators  DiagnosticKind = "conflicting-decorators"
	DiagSelfReferentialBase    DiagnosticKind = "self-referential-base"
	DiagDuplicateBase          DiagnosticKind = "duplicate-base"
	DiagUnrecognizedAnnotation DiagnosticKind = "unrecognized-annotation"
	DiagNestedClass            DiagnosticKind = "nested-class"
	DiagInvalidImport          DiagnosticKind = "invalid-import"
	DiagOutlineMismatch        DiagnosticKind = "outline-mismatch"
)

// Diagnostic is a non-fatal irregularity found while building a SourceFile.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	Span    Span           `json:"span"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Span.Start.Line, d.Span.Start.Column, d.Kind, d.Message)
}

type diagnostics struct {
	list []Diagnostic
}

func (d *diagnostics) add(kind DiagnosticKind, span Span, format string, args ...any) {
	d.list = append(d.list, Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span})
}

// sorted returns the diagnostics in source order; ties keep the order in
// which they were recorded.
func (d *diagnostics) sorted() []Diagnostic {
	out := slices.Clone(d.list)
	slices.SortStableFunc(out, func(a, b Diagnostic) int {
		return a.Span.Start.Offset - b.Span.Start.Offset
	})
	return out
}
