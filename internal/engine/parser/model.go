// # internal/engine/parser/model.go
package parser

import "strings"

type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindClass    SymbolKind = "class"
)

// Symbol is either a *Function or a *Class.
type Symbol interface {
	Kind() SymbolKind
	Meta() *SymbolMeta
	symbol()
}

// SymbolMeta holds the attributes shared by every symbol.
type SymbolMeta struct {
	Name       string         `json:"name"`
	Doc        string         `json:"doc,omitempty"`
	Decorators []DecoratorRef `json:"decorators,omitempty"`
	// TypeParams is the raw text inside a PEP 695 list, "T, *Ts" for
	// `def f[T, *Ts]`.
	TypeParams string `json:"type_params,omitempty"`
	Span       Span   `json:"span"`
}

type Role string

const (
	RolePlain          Role = "plain"
	RoleProperty       Role = "property"
	RolePropertySetter Role = "property_setter"
	RoleClassMethod    Role = "classmethod"
	RoleStaticMethod   Role = "staticmethod"
)

type Function struct {
	SymbolMeta
	Params   []Parameter `json:"params"`
	Returns  TypeRef     `json:"-"`
	IsAsync  bool        `json:"is_async"`
	IsMethod bool        `json:"is_method"`
	Role     Role        `json:"role"`
	// GetterName is set on property setters: the getter they were paired with.
	GetterName string `json:"getter,omitempty"`
}

func (f *Function) Kind() SymbolKind  { return KindFunction }
func (f *Function) Meta() *SymbolMeta { return &f.SymbolMeta }
func (f *Function) symbol()           {}

// IsPrivate follows the name-mangling convention for methods (`__x` but not
// `__x__`) and the leading-underscore convention for module-level functions.
func (f *Function) IsPrivate() bool {
	if f.IsMethod {
		return strings.HasPrefix(f.Name, "__") && !strings.HasSuffix(f.Name, "__")
	}
	return strings.HasPrefix(f.Name, "_")
}

// Signature renders the header of f without decorators, e.g.
// "async def fetch(url: str, *args) -> dict". Positional-only and
// keyword-only markers are not reproduced.
func (f *Function) Signature() string {
	var b strings.Builder
	if f.IsAsync {
		b.WriteString("async ")
	}
	b.WriteString("def ")
	b.WriteString(f.Name)
	if f.TypeParams != "" {
		b.WriteString("[" + f.TypeParams + "]")
	}
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	if f.Returns != nil {
		b.WriteString(" -> ")
		b.WriteString(f.Returns.String())
	}
	return b.String()
}

type Class struct {
	SymbolMeta
	Bases []string `json:"bases"`
	// BaseLinks mirrors Bases one-to-one with same-file lookups.
	BaseLinks []BaseLink `json:"-"`
	// Keywords holds the raw `key=value` and `**mapping` entries of the base
	// list, such as metaclass=ABCMeta.
	Keywords []string    `json:"keywords,omitempty"`
	Members  []*Function `json:"members"`
	// Diamonds lists same-file ancestors reachable through more than one base.
	Diamonds []string `json:"diamonds,omitempty"`
}

func (c *Class) Kind() SymbolKind  { return KindClass }
func (c *Class) Meta() *SymbolMeta { return &c.SymbolMeta }
func (c *Class) symbol()           {}

func (c *Class) Signature() string {
	if c.TypeParams != "" {
		return "class " + c.Name + "[" + c.TypeParams + "]"
	}
	return "class " + c.Name
}

func (c *Class) HasMultipleInheritance() bool {
	return len(c.Bases) > 1
}

func (c *Class) IsPrivate() bool {
	return strings.HasPrefix(c.Name, "_")
}

// Member returns the last member with the given name.
func (c *Class) Member(name string) *Function {
	for i := len(c.Members) - 1; i >= 0; i-- {
		if c.Members[i].Name == name {
			return c.Members[i]
		}
	}
	return nil
}

// Property is a getter with the setters bound to it.
type Property struct {
	Name    string
	Getter  *Function
	Setters []*Function
}

// Properties groups the class's property getters with their setters, in
// getter declaration order.
func (c *Class) Properties() []Property {
	var out []Property
	index := make(map[*Function]int)
	for _, m := range c.Members {
		switch m.Role {
		case RoleProperty:
			index[m] = len(out)
			out = append(out, Property{Name: m.Name, Getter: m})
		case RolePropertySetter:
			if getter := c.getterBefore(m); getter != nil {
				if i, ok := index[getter]; ok {
					out[i].Setters = append(out[i].Setters, m)
				}
			}
		}
	}
	return out
}

// getterBefore finds the Property-role member a setter was bound to.
func (c *Class) getterBefore(setter *Function) *Function {
	seen := false
	for i := len(c.Members) - 1; i >= 0; i-- {
		m := c.Members[i]
		if m == setter {
			seen = true
			continue
		}
		if seen && m.Role == RoleProperty && m.Name == setter.GetterName {
			return m
		}
	}
	return nil
}

// BaseLink is the same-file lookup for one declared base name. Local is nil
// when no earlier class in the file has that name.
type BaseLink struct {
	Name          string
	Local         *Class
	SelfReference bool
}

type Parameter struct {
	Name               string  `json:"name"`
	Annotation         TypeRef `json:"-"`
	HasDefault         bool    `json:"has_default"`
	Default            string  `json:"default,omitempty"`
	VariadicPositional bool    `json:"variadic_positional,omitempty"`
	VariadicKeyword    bool    `json:"variadic_keyword,omitempty"`
}

func (p Parameter) String() string {
	var b strings.Builder
	switch {
	case p.VariadicPositional:
		b.WriteByte('*')
	case p.VariadicKeyword:
		b.WriteString("**")
	}
	b.WriteString(p.Name)
	if p.Annotation != nil {
		b.WriteString(": ")
		b.WriteString(p.Annotation.String())
	}
	if p.HasDefault {
		if p.Annotation != nil {
			b.WriteString(" = ")
		} else {
			b.WriteByte('=')
		}
		b.WriteString(p.Default)
	}
	return b.String()
}

type DecoratorKind string

const (
	DecoratorUnknown        DecoratorKind = "unknown"
	DecoratorProperty       DecoratorKind = "property"
	DecoratorPropertySetter DecoratorKind = "property_setter"
	DecoratorClassMethod    DecoratorKind = "classmethod"
	DecoratorStaticMethod   DecoratorKind = "staticmethod"
)

func (k DecoratorKind) role() Role {
	switch k {
	case DecoratorProperty:
		return RoleProperty
	case DecoratorPropertySetter:
		return RolePropertySetter
	case DecoratorClassMethod:
		return RoleClassMethod
	case DecoratorStaticMethod:
		return RoleStaticMethod
	}
	return RolePlain
}

type DecoratorRef struct {
	// Raw is the decorator expression as written, without the leading '@'.
	Raw  string `json:"raw"`
	Name string `json:"name"`
	// Args is the text between the call parentheses, unevaluated.
	Args    string        `json:"args,omitempty"`
	HasArgs bool          `json:"has_args,omitempty"`
	Kind    DecoratorKind `json:"kind"`
	// Target is the getter name a PropertySetter decorator is bound to.
	Target string `json:"target,omitempty"`
	Span   Span   `json:"span"`
}

// Import is one top-level import statement. Level counts the leading dots
// of a relative `from` import.
type Import struct {
	Module string       `json:"module"`
	Alias  string       `json:"alias,omitempty"`
	Items  []ImportItem `json:"items,omitempty"`
	Level  int          `json:"level,omitempty"`
	Span   Span         `json:"span"`
}

// ImportItem is one name of a `from` import; Name is "*" for a star import.
type ImportItem struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// SourceFile is the symbol tree of one file. It is not modified after Parse
// returns it.
type SourceFile struct {
	Path        string       `json:"path"`
	Module      string       `json:"module"`
	Doc         string       `json:"doc,omitempty"`
	Symbols     []Symbol     `json:"-"`
	Imports     []Import     `json:"imports,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

func (f *SourceFile) Functions() []*Function {
	var out []*Function
	for _, s := range f.Symbols {
		if fn, ok := s.(*Function); ok {
			out = append(out, fn)
		}
	}
	return out
}

func (f *SourceFile) Classes() []*Class {
	var out []*Class
	for _, s := range f.Symbols {
		if c, ok := s.(*Class); ok {
			out = append(out, c)
		}
	}
	return out
}

// Lookup returns the last top-level symbol with the given name.
func (f *SourceFile) Lookup(name string) Symbol {
	for i := len(f.Symbols) - 1; i >= 0; i-- {
		if f.Symbols[i].Meta().Name == name {
			return f.Symbols[i]
		}
	}
	return nil
}
