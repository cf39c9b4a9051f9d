// Package generictest normalizes user-authored generic test declarations
// into canonical, uniquely named, executable test descriptors. It
// disambiguates the two legal declaration syntaxes, reconciles configuration
// supplied in the legacy top-level position and the nested config block,
// renders templated config values, and deterministically derives the
// compiled and fully-qualified names a test is addressed by.
package generictest

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// testNamePattern accepts an optionally namespaced test token:
// "unique" or "dbt_utils.equality".
var testNamePattern = regexp.MustCompile(
	`^(?:(?P<namespace>[a-zA-Z_][0-9a-zA-Z_]*)\.)?(?P<name>[a-zA-Z_][0-9a-zA-Z_]*)$`,
)

// testKwargsName is the placeholder the macro execution stage binds the
// resolved argument mapping to when running the compiled test.
const testKwargsName = "_generic_test_kwargs"

// ValueRenderer resolves a possibly-templated configuration value into a
// native value. Implementations report unresolvable references through an
// error exposing an UndefinedName() string method.
type ValueRenderer interface {
	RenderNative(expr string) (any, error)
}

// identityRenderer passes values through untouched. Used when no renderer
// is injected.
type identityRenderer struct{}

func (identityRenderer) RenderNative(expr string) (any, error) { return expr, nil }

// Builder is the fully resolved descriptor of one generic test. It is
// constructed in a single pass from a raw declaration and a target, and is
// read-only afterwards.
type Builder struct {
	target      TargetRef
	packageName string
	columnName  string
	renderer    ValueRenderer

	name      string
	namespace string

	args   map[string]any
	config map[string]any

	description  string
	compiledName string
	fqnName      string
}

// NewBuilder normalizes decl against target and resolves its configuration.
// packageName is the owning project package; a namespaced test token
// overrides it. columnName is empty for model- and table-level tests.
// A nil renderer leaves string config values untouched.
func NewBuilder(
	decl any,
	target TargetRef,
	packageName string,
	columnName string,
	renderer ValueRenderer,
	opts ExtractOptions,
) (*Builder, error) {
	testName, args, err := ExtractTestArgs(decl, columnName, opts)
	if err != nil {
		return nil, err
	}
	if _, ok := args["model"]; ok {
		return nil, &ReservedArgumentError{Arg: "model"}
	}
	if renderer == nil {
		renderer = identityRenderer{}
	}

	b := &Builder{
		target:      target,
		packageName: packageName,
		columnName:  columnName,
		renderer:    renderer,
		args:        args,
	}

	m := testNamePattern.FindStringSubmatch(testName)
	if m == nil {
		return nil, &MalformedTestNameError{Token: testName}
	}
	b.namespace = m[1]
	b.name = m[2]

	ref, err := modelArg(target)
	if err != nil {
		return nil, err
	}
	b.args["model"] = ref

	if raw, ok := b.args["config"]; ok {
		if _, isMap := raw.(map[string]any); !isMap {
			return nil, &InvalidShapeError{Reason: "config must be a mapping", Value: raw}
		}
	}
	b.config, err = b.resolveLegacyConfig()
	if err != nil {
		return nil, err
	}

	// Whatever the allow-list did not consume from the nested block is
	// merged as-is, keeping forward-compatible config keys working.
	if raw, ok := b.args["config"]; ok {
		delete(b.args, "config")
		extra, err := b.renderValues(raw.(map[string]any))
		if err != nil {
			return nil, err
		}
		for k, v := range extra {
			b.config[k] = v
		}
	}

	if b.namespace != "" {
		b.packageName = b.namespace
	}

	if d, ok := b.args["description"]; ok {
		delete(b.args, "description")
		if s, ok := d.(string); ok {
			b.description = s
		} else if d != nil {
			b.description = fmt.Sprintf("%v", d)
		}
	}

	// A user-supplied name opts out of synthesis entirely; uniqueness is
	// the caller's responsibility then.
	if n, ok := b.args["name"]; ok {
		delete(b.args, "name")
		s, ok := n.(string)
		if !ok {
			return nil, &InvalidShapeError{Reason: "custom test name must be a string", Value: n}
		}
		if s == "" || len(s) >= maxNameLen {
			return nil, &InvalidShapeError{Reason: "custom test name must be non-empty and shorter than 64 characters", Value: n}
		}
		b.compiledName = s
		b.fqnName = s
	} else {
		typeLabel, targetName, err := synthesisInputs(target, b.name, b.namespace)
		if err != nil {
			return nil, err
		}
		short, full := SynthesizeNames(typeLabel, targetName, b.args)
		b.compiledName = short
		b.fqnName = full
		// The hashed short name must also win as the relation alias,
		// unless the user configured one.
		if short != full {
			if _, ok := b.config["alias"]; !ok {
				b.config["alias"] = short
			}
		}
	}

	return b, nil
}

// Name is the local test name without namespace.
func (b *Builder) Name() string { return b.name }

// Namespace is the package prefix of the test token, or "".
func (b *Builder) Namespace() string { return b.namespace }

// PackageName is the package owning the test macro.
func (b *Builder) PackageName() string { return b.packageName }

// ColumnName is the column the test is attached to, or "".
func (b *Builder) ColumnName() string { return b.columnName }

// Target returns the model, node, or source the test is attached to.
func (b *Builder) Target() TargetRef { return b.target }

// Version is the model version the test is pinned to, or "".
func (b *Builder) Version() string {
	if t, ok := b.target.(ModelTarget); ok {
		return t.Version
	}
	return ""
}

// Description is the user-supplied test description, default empty.
func (b *Builder) Description() string { return b.description }

// CompiledName is the short, file-safe test name (< 64 characters).
func (b *Builder) CompiledName() string { return b.compiledName }

// FQNName is the full, collision-resistant test name.
func (b *Builder) FQNName() string { return b.fqnName }

// Args is the resolved argument mapping, including the synthesized "model"
// reference. The map is owned by the builder; callers must not mutate it.
func (b *Builder) Args() map[string]any { return b.args }

// Config is the resolved, rendered configuration mapping. The map is owned
// by the builder; callers must not mutate it.
func (b *Builder) Config() map[string]any { return b.config }

// Tags returns the resolved tags. A bare string coerces to a one-element
// list. Validation is deliberately lazy: it happens here, not at
// construction.
func (b *Builder) Tags() ([]string, error) {
	raw, ok := b.config["tags"]
	if !ok || raw == nil {
		return nil, nil
	}
	switch val := raw.(type) {
	case string:
		return []string{val}, nil
	case []string:
		return slices.Clone(val), nil
	case []any:
		tags := make([]string, len(val))
		for i, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, &TagsError{Value: elem}
			}
			tags[i] = s
		}
		return tags, nil
	default:
		return nil, &TagsError{Value: raw}
	}
}

// MacroName is the conventional name of the macro implementing the test,
// namespaced when the test token was.
func (b *Builder) MacroName() string {
	name := "test_" + b.name
	if b.namespace != "" {
		name = b.namespace + "." + name
	}
	return name
}

// ConfigCall renders the config invocation appended to the compiled test,
// or "" when no config survived resolution. Keys are emitted in sorted
// order so the output is deterministic.
func (b *Builder) ConfigCall() string {
	if len(b.config) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.config))
	for _, key := range slices.Sorted(maps.Keys(b.config)) {
		parts = append(parts, key+"="+formatConfigValue(b.config[key]))
	}
	return fmt.Sprintf("{{ config(%s) }}", strings.Join(parts, ","))
}

// RawCode is the source handed to the macro execution stage: the test macro
// invocation with the argument mapping bound as keyword arguments, followed
// by the config call.
func (b *Builder) RawCode() string {
	return fmt.Sprintf("{{ %s(**%s) }}%s", b.MacroName(), testKwargsName, b.ConfigCall())
}

// formatConfigValue renders one config value for the config call: strings
// are double-quoted with internal quotes escaped, everything else uses its
// default string form.
func formatConfigValue(v any) string {
	if s, ok := v.(string); ok {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return fmt.Sprintf("%v", v)
}
