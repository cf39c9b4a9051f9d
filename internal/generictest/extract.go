package generictest

import (
	"fmt"

	"github.com/mitchellh/copystructure"

	"github.com/slatedata/slate/internal/deprecations"
)

// Deprecation event IDs emitted while normalizing declarations.
const (
	// DeprecationMissingArgumentsProperty: the project requires test
	// arguments under a dedicated "arguments" key but the declaration still
	// uses the flat legacy layout.
	DeprecationMissingArgumentsProperty = "missing-arguments-property-in-generic-test"

	// DeprecationArgumentsProperty: the declaration uses the "arguments" key
	// although the project does not require it yet.
	DeprecationArgumentsProperty = "arguments-property-in-generic-test"
)

// ExtractOptions control declaration normalization.
type ExtractOptions struct {
	// RequireArgumentsProperty mirrors the project-level flag: when set,
	// test arguments are expected under a dedicated "arguments" key and
	// flat legacy arguments only warn.
	RequireArgumentsProperty bool

	// Deprecations receives non-fatal migration signals. Nil discards them.
	Deprecations deprecations.Sink
}

// ExtractTestArgs normalizes a raw test declaration into its name token and
// a flat argument mapping. Two shapes are accepted:
//
//	{"test_name": "unique", "config": {...}}       all other keys are arguments
//	{"unique": {"config": {...}}}                  single key is the name
//
// The returned arguments are a deep copy; the caller's declaration is never
// mutated or aliased. A non-empty columnName is injected as "column_name".
func ExtractTestArgs(raw any, columnName string, opts ExtractOptions) (string, map[string]any, error) {
	sink := opts.Deprecations
	if sink == nil {
		sink = deprecations.Discard
	}

	decl, ok := raw.(map[string]any)
	if !ok {
		return "", nil, &InvalidShapeError{Reason: "test declaration must be a mapping", Value: raw}
	}

	var nameVal any
	var rawArgs any
	if v, ok := decl["test_name"]; ok {
		nameVal = v
		rest := make(map[string]any, len(decl)-1)
		for k, val := range decl {
			if k != "test_name" {
				rest[k] = val
			}
		}
		rawArgs = rest
	} else {
		if len(decl) != 1 {
			return "", nil, &InvalidShapeError{
				Reason: fmt.Sprintf("expected exactly one key, got %d", len(decl)),
				Value:  raw,
			}
		}
		for k, v := range decl {
			nameVal = k
			rawArgs = v
		}
	}

	testName, ok := nameVal.(string)
	if !ok {
		return "", nil, &InvalidShapeError{Reason: "test name must be a string", Value: nameVal}
	}
	args, ok := rawArgs.(map[string]any)
	if !ok {
		return "", nil, &InvalidShapeError{Reason: "test arguments must be a mapping", Value: rawArgs}
	}

	copied, err := copystructure.Copy(args)
	if err != nil {
		return "", nil, fmt.Errorf("copying test arguments: %w", err)
	}
	args = copied.(map[string]any)

	if columnName != "" {
		args["column_name"] = columnName
	}

	if opts.RequireArgumentsProperty {
		nested, _ := args["arguments"].(map[string]any)
		delete(args, "arguments")
		if len(nested) == 0 && hasArgumentKeys(args) {
			sink.Warn(DeprecationMissingArgumentsProperty, map[string]any{
				"test_name": testName,
			})
		}
		for k, v := range nested {
			args[k] = v
		}
	} else if raw, ok := args["arguments"]; ok {
		sink.Warn(DeprecationArgumentsProperty, map[string]any{
			"test_name": testName,
			"arguments": raw,
		})
		// A malformed arguments value is discarded either way, so both
		// modes feed the same flat mapping into name synthesis.
		delete(args, "arguments")
		if nested, ok := raw.(map[string]any); ok {
			for k, v := range nested {
				args[k] = v
			}
		}
	}

	return testName, args, nil
}

// hasArgumentKeys reports whether args carries any key that would have been
// expected under the "arguments" property.
func hasArgumentKeys(args map[string]any) bool {
	for k := range args {
		if k != "config" && k != "column_name" {
			return true
		}
	}
	return false
}
