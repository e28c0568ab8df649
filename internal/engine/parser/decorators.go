package parser

import "strings"

// decoratorRef classifies a decorator by its text alone. A `<name>.setter`
// decorator comes back Unknown with its target set; only resolveFunction can
// pair it with a getter. Called decorators such as @property() are never
// recognized.
func decoratorRef(d decoratorNode) (ref DecoratorRef, setterTarget string) {
	ref = DecoratorRef{
		Raw:     d.raw,
		Name:    d.name,
		Args:    d.args,
		HasArgs: d.hasArgs,
		Kind:    DecoratorUnknown,
		Span:    d.span,
	}
	if d.hasArgs {
		return ref, ""
	}

	if target, ok := strings.CutSuffix(d.name, ".setter"); ok {
		return ref, target
	}
	switch d.name[strings.LastIndexByte(d.name, '.')+1:] {
	case "property":
		ref.Kind = DecoratorProperty
	case "classmethod":
		ref.Kind = DecoratorClassMethod
	case "staticmethod":
		ref.Kind = DecoratorStaticMethod
	}
	return ref, ""
}

// resolveFunction classifies fn's decorators and settles its role.
// owner is the enclosing class with the members resolved so far; it is nil
// for module-level functions.
//
// A setter binds to the nearest earlier member named after its target,
// which must be a property getter or a setter bound to the same getter.
// When several recognized kinds are present, the first one declared wins.
func resolveFunction(fn *Function, node *funcNode, owner *Class, diags *diagnostics) {
	fn.Role = RolePlain
	var first DecoratorKind
	conflict := false

	for _, d := range node.decorators {
		ref, target := decoratorRef(d)
		if target != "" {
			var getter *Function
			if owner != nil {
				getter = owner.Member(target)
			}
			if isPropertyOf(getter, target) {
				ref.Kind = DecoratorPropertySetter
				ref.Target = target
			} else {
				diags.add(DiagUnmatchedSetter, d.span,
					"@%s on %q has no earlier @property getter named %q in the same class", d.raw, fn.Name, target)
			}
		}
		fn.Decorators = append(fn.Decorators, ref)

		if ref.Kind == DecoratorUnknown {
			continue
		}
		switch {
		case first == "":
			first = ref.Kind
			fn.Role = ref.Kind.role()
			fn.GetterName = ref.Target
		case ref.Kind != first:
			conflict = true
		}
	}

	if conflict {
		var kinds []string
		for _, ref := range fn.Decorators {
			if ref.Kind != DecoratorUnknown {
				kinds = append(kinds, "@"+ref.Raw)
			}
		}
		diags.add(DiagConflictingDecorators, node.span,
			"%q has conflicting decorators %s; using %s", fn.Name, strings.Join(kinds, ", "), first)
	}
}

func isPropertyOf(fn *Function, name string) bool {
	if fn == nil {
		return false
	}
	return fn.Role == RoleProperty || fn.Role == RolePropertySetter && fn.GetterName == name
}

// resolveClassDecorators keeps class decorators verbatim. Setter syntax has
// no meaning on a class and stays Unknown.
func resolveClassDecorators(nodes []decoratorNode) []DecoratorRef {
	var out []DecoratorRef
	for _, d := range nodes {
		ref, _ := decoratorRef(d)
		out = append(out, ref)
	}
	return out
}
