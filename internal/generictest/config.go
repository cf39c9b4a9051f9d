package generictest

import (
	"errors"
	"maps"
	"slices"
)

// configArgs is the fixed allow-list of config keys that may appear as
// legacy top-level test arguments.
var configArgs = []string{
	"severity",
	"tags",
	"enabled",
	"where",
	"limit",
	"warn_if",
	"error_if",
	"fail_calc",
	"store_failures",
	"store_failures_as",
	"meta",
	"database",
	"schema",
	"alias",
}

// resolveLegacyConfig moves recognized config keys out of the flat argument
// mapping, reconciling the legacy top-level placement with the nested
// "config" block. A truthy legacy value alongside the same key in the nested
// block is a conflict; a falsy or absent legacy value silently defers to the
// nested one. Matched nested keys are consumed so only forward-compatible
// extras remain in the block afterwards.
func (b *Builder) resolveLegacyConfig() (map[string]any, error) {
	nested, _ := b.args["config"].(map[string]any)

	config := make(map[string]any, len(configArgs))
	for _, key := range configArgs {
		value := b.args[key]
		delete(b.args, key)

		if truthy(value) && nested != nil {
			if _, dup := nested[key]; dup {
				return nil, &DuplicateConfigKeyError{Key: key}
			}
		}
		if !truthy(value) && nested != nil {
			if v, ok := nested[key]; ok {
				value = v
				delete(nested, key)
			}
		}
		config[key] = value
	}
	return b.renderValues(config)
}

// renderValues renders every string config value through the injected
// renderer. Non-strings pass through unchanged and nil results are dropped,
// which also prunes the allow-list placeholders for keys never supplied.
func (b *Builder) renderValues(config map[string]any) (map[string]any, error) {
	rendered := make(map[string]any, len(config))
	for _, key := range slices.Sorted(maps.Keys(config)) {
		value := config[key]
		if expr, ok := value.(string); ok {
			result, err := b.renderer.RenderNative(expr)
			if err != nil {
				var undef interface{ UndefinedName() string }
				if errors.As(err, &undef) {
					return nil, &ConfigRenderError{
						Target: b.target.TargetName(),
						Column: b.columnName,
						Test:   b.name,
						Key:    key,
						Msg:    err.Error(),
						cause:  err,
					}
				}
				return nil, err
			}
			value = result
		}
		if value != nil {
			rendered[key] = value
		}
	}
	return rendered, nil
}

// truthy reports whether a legacy config value counts as supplied. Nil,
// false, empty strings, zero numbers, and empty collections all count as
// absent, deferring to the nested config block.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	case []string:
		return len(val) > 0
	default:
		return true
	}
}
