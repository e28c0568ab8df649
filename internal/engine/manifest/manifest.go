// # internal/engine/manifest/manifest.go
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"symtree/internal/core/errors"
	"symtree/internal/shared/util"
)

type Scope string

const (
	ScopeRuntime     Scope = "runtime"
	ScopeDevelopment Scope = "development"
	ScopeOptional    Scope = "optional"
)

const (
	SourceRequirements = "requirements.txt"
	SourcePyproject    = "pyproject.toml"
)

// Dependency is one direct requirement declared by a project manifest.
// Version is the raw specifier ("==2.0", "^1.4", ">=3,<4") or "*" when
// the manifest pins nothing.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Scope   Scope  `json:"scope"`
	Extra   string `json:"extra,omitempty"`
	Source  string `json:"source"`
}

// Extract reads the dependency manifest of the project rooted at root.
// pyproject.toml takes precedence; requirements.txt is only consulted when
// it is absent. A project with neither yields no dependencies.
func Extract(root string) ([]Dependency, error) {
	pyproject := filepath.Join(root, SourcePyproject)
	if data, err := os.ReadFile(pyproject); err == nil {
		deps, err := ParsePyproject(data)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxPath, pyproject)
		}
		return deps, nil
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.CodeInternal, "read "+pyproject)
	}

	requirements := filepath.Join(root, SourceRequirements)
	data, err := os.ReadFile(requirements)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "read "+requirements)
	}
	return ParseRequirements(data), nil
}

var requirementPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*(.*)$`)

// ParseRequirements reads a pip requirements file. Options (-r, -e, --hash)
// and URL requirements are skipped, as are environment markers and extras.
func ParseRequirements(data []byte) []Dependency {
	var out []Dependency
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(stripComment(line))
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		dep, ok := parseRequirement(line)
		if !ok {
			continue
		}
		dep.Scope = ScopeRuntime
		dep.Source = SourceRequirements
		out = append(out, dep)
	}
	return out
}

func stripComment(line string) string {
	if strings.HasPrefix(strings.TrimSpace(line), "#") {
		return ""
	}
	if i := strings.Index(line, " #"); i >= 0 {
		return line[:i]
	}
	return line
}

// parseRequirement splits a PEP 508 requirement into name and specifier.
func parseRequirement(req string) (Dependency, bool) {
	req, _, _ = strings.Cut(req, ";")
	m := requirementPattern.FindStringSubmatch(strings.TrimSpace(req))
	if m == nil {
		return Dependency{}, false
	}
	spec := strings.Join(strings.Fields(m[3]), "")
	if strings.HasPrefix(spec, "@") || strings.Contains(spec, "://") {
		return Dependency{}, false
	}
	spec = strings.Trim(spec, "()")
	if spec == "" {
		spec = "*"
	}
	return Dependency{Name: m[1], Version: spec}, true
}

type pyprojectFile struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
			Group           map[string]struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"group"`
			Extras map[string][]string `toml:"extras"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// ParsePyproject reads PEP 621 [project] tables and Poetry [tool.poetry]
// tables. Packages named in [tool.poetry.extras] or marked optional = true
// are reported with ScopeOptional.
func ParsePyproject(data []byte) ([]Dependency, error) {
	var doc pyprojectFile
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "invalid pyproject.toml")
	}

	var out []Dependency
	for _, req := range doc.Project.Dependencies {
		if dep, ok := parseRequirement(req); ok {
			dep.Scope, dep.Source = ScopeRuntime, SourcePyproject
			out = append(out, dep)
		}
	}
	for _, extra := range util.SortedStringKeys(doc.Project.OptionalDependencies) {
		for _, req := range doc.Project.OptionalDependencies[extra] {
			if dep, ok := parseRequirement(req); ok {
				dep.Scope, dep.Extra, dep.Source = ScopeOptional, extra, SourcePyproject
				out = append(out, dep)
			}
		}
	}

	poetry := doc.Tool.Poetry
	optional := make(map[string]string)
	for _, extra := range util.SortedStringKeys(poetry.Extras) {
		for _, name := range poetry.Extras[extra] {
			if _, seen := optional[name]; !seen {
				optional[name] = extra
			}
		}
	}

	add := func(table map[string]any, scope Scope) error {
		for _, name := range util.SortedStringKeys(table) {
			if name == "python" {
				continue
			}
			version, isOptional, err := poetryConstraint(table[name])
			if err != nil {
				return errors.New(errors.CodeValidationError,
					fmt.Sprintf("pyproject.toml: dependency %q: %v", name, err))
			}
			dep := Dependency{Name: name, Version: version, Scope: scope, Source: SourcePyproject}
			if extra, ok := optional[name]; ok {
				dep.Scope, dep.Extra = ScopeOptional, extra
			} else if isOptional {
				dep.Scope = ScopeOptional
			}
			out = append(out, dep)
		}
		return nil
	}

	if err := add(poetry.Dependencies, ScopeRuntime); err != nil {
		return nil, err
	}
	if err := add(poetry.DevDependencies, ScopeDevelopment); err != nil {
		return nil, err
	}
	for _, group := range util.SortedStringKeys(poetry.Group) {
		if err := add(poetry.Group[group].Dependencies, ScopeDevelopment); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// poetryConstraint accepts the three Poetry forms: a version string, an
// inline table and an array of inline tables (the first one is used).
func poetryConstraint(v any) (string, bool, error) {
	switch c := v.(type) {
	case string:
		return c, false, nil
	case map[string]any:
		version, _ := c["version"].(string)
		if version == "" {
			version = "*"
		}
		optional, _ := c["optional"].(bool)
		return version, optional, nil
	case []map[string]any:
		if len(c) == 0 {
			return "", false, fmt.Errorf("empty constraint list")
		}
		return poetryConstraint(c[0])
	case []any:
		if len(c) == 0 {
			return "", false, fmt.Errorf("empty constraint list")
		}
		return poetryConstraint(c[0])
	default:
		return "", false, fmt.Errorf("unsupported constraint type %T", v)
	}
}
