package generictest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRenderer resolves a fixed set of expressions and reports everything
// else as an undefined reference.
type stubRenderer struct {
	values map[string]any
}

type stubUndefinedError struct{ name string }

func (e *stubUndefinedError) Error() string         { return "undefined: " + e.name }
func (e *stubUndefinedError) UndefinedName() string { return e.name }

func (r *stubRenderer) RenderNative(expr string) (any, error) {
	if v, ok := r.values[expr]; ok {
		return v, nil
	}
	return nil, &stubUndefinedError{name: expr}
}

func mustBuilder(t *testing.T, decl any, target TargetRef, column string) *Builder {
	t.Helper()
	b, err := NewBuilder(decl, target, "main", column, nil, ExtractOptions{})
	require.NoError(t, err)
	return b
}

func TestNewBuilder_Basic(t *testing.T) {
	b := mustBuilder(t,
		map[string]any{"unique": map[string]any{}},
		ModelTarget{Name: "orders"}, "id",
	)

	assert.Equal(t, "unique", b.Name())
	assert.Empty(t, b.Namespace())
	assert.Equal(t, "main", b.PackageName())
	assert.Equal(t, "id", b.ColumnName())
	assert.Equal(t, "unique_orders_id", b.CompiledName())
	assert.Equal(t, "unique_orders_id", b.FQNName())
	assert.Equal(t, "{{ get_where_subquery(ref('orders')) }}", b.Args()["model"])
	assert.Equal(t, "test_unique", b.MacroName())
	assert.Equal(t, "{{ test_unique(**_generic_test_kwargs) }}", b.RawCode())
	assert.Empty(t, b.Config())
	assert.Empty(t, b.Version())
}

func TestNewBuilder_NamespacedToken(t *testing.T) {
	b := mustBuilder(t,
		map[string]any{"dbt_utils.equality": map[string]any{
			"compare_model": "ref_table",
		}},
		ModelTarget{Name: "orders"}, "",
	)

	assert.Equal(t, "equality", b.Name())
	assert.Equal(t, "dbt_utils", b.Namespace())
	assert.Equal(t, "dbt_utils", b.PackageName(), "namespace overrides the project package")
	assert.Equal(t, "dbt_utils.test_equality", b.MacroName())
	assert.Equal(t, "dbt_utils_equality_orders_ref_table", b.FQNName())
}

func TestNewBuilder_MalformedToken(t *testing.T) {
	for _, token := range []string{"", "9unique", "a.b.c", "uni que", "pkg.", ".unique"} {
		t.Run(fmt.Sprintf("%q", token), func(t *testing.T) {
			_, err := NewBuilder(
				map[string]any{token: map[string]any{}},
				ModelTarget{Name: "orders"}, "main", "", nil, ExtractOptions{},
			)
			var nameErr *MalformedTestNameError
			require.ErrorAs(t, err, &nameErr)
			assert.Equal(t, token, nameErr.Token)
		})
	}
}

func TestNewBuilder_ReservedModelArgument(t *testing.T) {
	_, err := NewBuilder(
		map[string]any{"unique": map[string]any{"model": "sneaky"}},
		ModelTarget{Name: "orders"}, "main", "", nil, ExtractOptions{},
	)
	var resErr *ReservedArgumentError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "model", resErr.Arg)
}

func TestNewBuilder_LegacyConfigArgs(t *testing.T) {
	b := mustBuilder(t,
		map[string]any{"unique": map[string]any{
			"severity": "ERROR",
			"tags":     []any{"nightly"},
		}},
		ModelTarget{Name: "orders"}, "id",
	)

	assert.Equal(t, "ERROR", b.Config()["severity"])
	assert.NotContains(t, b.Args(), "severity", "config keys move out of the arguments")
	assert.NotContains(t, b.Args(), "tags")
}

func TestNewBuilder_ConfigConflicts(t *testing.T) {
	t.Run("truthy legacy value conflicts with nested", func(t *testing.T) {
		_, err := NewBuilder(
			map[string]any{"unique": map[string]any{
				"severity": "ERROR",
				"config":   map[string]any{"severity": "warn"},
			}},
			ModelTarget{Name: "orders"}, "main", "", nil, ExtractOptions{},
		)
		var dupErr *DuplicateConfigKeyError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, "severity", dupErr.Key)
	})

	t.Run("falsy legacy value defers to nested", func(t *testing.T) {
		b := mustBuilder(t,
			map[string]any{"unique": map[string]any{
				"severity": "",
				"config":   map[string]any{"severity": "warn"},
			}},
			ModelTarget{Name: "orders"}, "",
		)
		assert.Equal(t, "warn", b.Config()["severity"])
	})

	t.Run("absent legacy value takes nested", func(t *testing.T) {
		b := mustBuilder(t,
			map[string]any{"unique": map[string]any{
				"config": map[string]any{"where": "id > 0"},
			}},
			ModelTarget{Name: "orders"}, "",
		)
		assert.Equal(t, "id > 0", b.Config()["where"])
	})
}

func TestNewBuilder_UnrecognizedConfigKeysMerge(t *testing.T) {
	b := mustBuilder(t,
		map[string]any{"unique": map[string]any{
			"config": map[string]any{
				"severity":   "warn",
				"custom_key": 42,
			},
		}},
		ModelTarget{Name: "orders"}, "",
	)

	assert.Equal(t, "warn", b.Config()["severity"])
	assert.Equal(t, 42, b.Config()["custom_key"], "unknown nested config keys pass through")
	assert.NotContains(t, b.Args(), "config", "the nested block is consumed")
}

func TestNewBuilder_ConfigNotAMapping(t *testing.T) {
	_, err := NewBuilder(
		map[string]any{"unique": map[string]any{"config": "severity: warn"}},
		ModelTarget{Name: "orders"}, "main", "", nil, ExtractOptions{},
	)
	var shapeErr *InvalidShapeError
	require.ErrorAs(t, err, &shapeErr)
}

func TestNewBuilder_RendersConfigValues(t *testing.T) {
	renderer := &stubRenderer{values: map[string]any{
		"{{ vars['sev'] }}": "warn",
		"id > 0":            "id > 0",
		"ERROR":             "ERROR",
	}}

	b, err := NewBuilder(
		map[string]any{"unique": map[string]any{
			"severity": "{{ vars['sev'] }}",
			"where":    "id > 0",
		}},
		ModelTarget{Name: "orders"}, "main", "", renderer, ExtractOptions{},
	)
	require.NoError(t, err)

	assert.Equal(t, "warn", b.Config()["severity"])
	assert.Equal(t, "id > 0", b.Config()["where"])
}

func TestNewBuilder_UndefinedReferenceInConfig(t *testing.T) {
	renderer := &stubRenderer{values: map[string]any{}}

	_, err := NewBuilder(
		map[string]any{"unique": map[string]any{"severity": "{{ sev }}"}},
		ModelTarget{Name: "orders"}, "main", "status", renderer, ExtractOptions{},
	)

	var renderErr *ConfigRenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, "orders", renderErr.Target)
	assert.Equal(t, "status", renderErr.Column)
	assert.Equal(t, "unique", renderErr.Test)
	assert.Equal(t, "severity", renderErr.Key)
	assert.Contains(t, renderErr.Error(), "orders.status")

	var undef *stubUndefinedError
	assert.True(t, errors.As(err, &undef), "the renderer error stays on the chain")
}

func TestNewBuilder_CustomName(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		b := mustBuilder(t,
			map[string]any{"unique": map[string]any{"name": "orders_must_be_unique"}},
			ModelTarget{Name: "orders"}, "id",
		)
		assert.Equal(t, "orders_must_be_unique", b.CompiledName())
		assert.Equal(t, "orders_must_be_unique", b.FQNName())
		assert.NotContains(t, b.Args(), "name")
		assert.NotContains(t, b.Config(), "alias", "custom names never trigger alias injection")
	})

	t.Run("invalid", func(t *testing.T) {
		for name, val := range map[string]any{
			"empty":      "",
			"non-string": 7,
			"too long":   "x_123456789_123456789_123456789_123456789_123456789_123456789_123456789",
		} {
			t.Run(name, func(t *testing.T) {
				_, err := NewBuilder(
					map[string]any{"unique": map[string]any{"name": val}},
					ModelTarget{Name: "orders"}, "main", "", nil, ExtractOptions{},
				)
				var shapeErr *InvalidShapeError
				require.ErrorAs(t, err, &shapeErr)
			})
		}
	})
}

func TestNewBuilder_AliasInjection(t *testing.T) {
	longArgs := map[string]any{
		"values": []any{"placed", "shipped", "delivered", "returned", "cancelled"},
	}

	t.Run("hashed short name becomes the alias", func(t *testing.T) {
		b := mustBuilder(t,
			map[string]any{"accepted_values": longArgs},
			ModelTarget{Name: "orders_status_pipeline"}, "order_status",
		)
		require.NotEqual(t, b.FQNName(), b.CompiledName())
		assert.Equal(t, b.CompiledName(), b.Config()["alias"])
	})

	t.Run("user alias wins", func(t *testing.T) {
		decl := map[string]any{"accepted_values": map[string]any{
			"values": longArgs["values"],
			"alias":  "my_alias",
		}}
		b := mustBuilder(t, decl, ModelTarget{Name: "orders_status_pipeline"}, "order_status")
		require.NotEqual(t, b.FQNName(), b.CompiledName())
		assert.Equal(t, "my_alias", b.Config()["alias"])
	})
}

func TestNewBuilder_Description(t *testing.T) {
	withDesc := mustBuilder(t,
		map[string]any{"unique": map[string]any{"description": "ids must be unique"}},
		ModelTarget{Name: "orders"}, "id",
	)
	withoutDesc := mustBuilder(t,
		map[string]any{"unique": map[string]any{}},
		ModelTarget{Name: "orders"}, "id",
	)

	assert.Equal(t, "ids must be unique", withDesc.Description())
	assert.NotContains(t, withDesc.Args(), "description")
	assert.Equal(t, withoutDesc.FQNName(), withDesc.FQNName(),
		"the description must not influence the synthesized name")
}

func TestBuilder_Tags(t *testing.T) {
	build := func(t *testing.T, tags any) *Builder {
		t.Helper()
		return mustBuilder(t,
			map[string]any{"unique": map[string]any{"config": map[string]any{"tags": tags}}},
			ModelTarget{Name: "orders"}, "id",
		)
	}

	t.Run("string coerces to a one-element list", func(t *testing.T) {
		tags, err := build(t, "nightly").Tags()
		require.NoError(t, err)
		assert.Equal(t, []string{"nightly"}, tags)
	})

	t.Run("list of strings", func(t *testing.T) {
		tags, err := build(t, []any{"nightly", "finance"}).Tags()
		require.NoError(t, err)
		assert.Equal(t, []string{"nightly", "finance"}, tags)
	})

	t.Run("absent tags", func(t *testing.T) {
		b := mustBuilder(t,
			map[string]any{"unique": map[string]any{}},
			ModelTarget{Name: "orders"}, "id",
		)
		tags, err := b.Tags()
		require.NoError(t, err)
		assert.Nil(t, tags)
	})

	t.Run("construction succeeds even with bad tags", func(t *testing.T) {
		b := build(t, []any{"ok", 5})
		_, err := b.Tags()
		var tagsErr *TagsError
		require.ErrorAs(t, err, &tagsErr)
		assert.Equal(t, 5, tagsErr.Value)
	})

	t.Run("non-list non-string tags", func(t *testing.T) {
		_, err := build(t, 7).Tags()
		var tagsErr *TagsError
		require.ErrorAs(t, err, &tagsErr)
	})
}

func TestBuilder_ConfigCallAndRawCode(t *testing.T) {
	b := mustBuilder(t,
		map[string]any{"unique": map[string]any{
			"severity": "ERROR",
			"config":   map[string]any{"where": `status = "open"`},
		}},
		ModelTarget{Name: "orders"}, "id",
	)

	assert.Equal(t,
		`{{ config(severity="ERROR",where="status = \"open\"") }}`,
		b.ConfigCall(), "keys sort and quotes escape")
	assert.Equal(t,
		`{{ test_unique(**_generic_test_kwargs) }}{{ config(severity="ERROR",where="status = \"open\"") }}`,
		b.RawCode())
}

func TestBuilder_ConfigCallNonStringValues(t *testing.T) {
	b := mustBuilder(t,
		map[string]any{"unique": map[string]any{
			"config": map[string]any{"enabled": true, "limit": 100},
		}},
		ModelTarget{Name: "orders"}, "",
	)
	assert.Equal(t, "{{ config(enabled=true,limit=100) }}", b.ConfigCall())
}
