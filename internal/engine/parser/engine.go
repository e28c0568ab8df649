// # internal/engine/parser/engine.go
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"symtree/internal/core/errors"
	"symtree/internal/shared/util"
)

// Parse builds the symbol tree of one file. It performs no I/O and keeps no
// state between calls, so files may be parsed concurrently. A *LexError or
// *ParseError aborts the file and no partial tree is returned.
func Parse(path string, src []byte, opts ScanOptions) (*SourceFile, error) {
	diags := &diagnostics{}
	m, err := parseTree(path, src, opts, diags)
	if err != nil {
		return nil, err
	}
	return assemble(path, m, diags), nil
}

var DefaultExtensions = []string{".py", ".pyi"}

type Options struct {
	// Extensions lists the file suffixes ParseFile accepts. Empty means
	// DefaultExtensions.
	Extensions     []string
	LenientEscapes bool
	// Verify cross-checks every parsed file against the tree-sitter Python
	// grammar and reports disagreements as outline-mismatch diagnostics.
	Verify bool
}

// Parser is the file-level front of the engine used by the application
// layer: it filters paths by extension and optionally verifies results.
type Parser struct {
	opts       ScanOptions
	extensions map[string]bool
	verifier   *OutlineVerifier
}

func NewParser(opts Options) *Parser {
	p := &Parser{
		opts:       ScanOptions{LenientEscapes: opts.LenientEscapes},
		extensions: make(map[string]bool),
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		p.extensions[ext] = true
	}
	if opts.Verify {
		p.verifier = NewOutlineVerifier()
	}
	return p
}

func (p *Parser) ParseFile(path string, content []byte) (*SourceFile, error) {
	if !p.IsSupportedPath(path) {
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("unsupported file type: %s", path))
	}
	diags := &diagnostics{}
	m, err := parseTree(path, content, p.opts, diags)
	if err != nil {
		return nil, err
	}
	file := assemble(path, m, diags)
	if p.verifier != nil {
		diags.list = append(diags.list, p.verifier.Verify(file, content)...)
		file.Diagnostics = diags.sorted()
	}
	return file, nil
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

// IsTestFile matches pytest's default discovery names and conftest.py.
func (p *Parser) IsTestFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.HasPrefix(name, "test_") || strings.HasSuffix(name, "_test") || name == "conftest"
}

func (p *Parser) SupportedExtensions() []string {
	return util.SortedStringKeys(p.extensions)
}
