// Package schema parses schema YAML documents declaring models, sources,
// and the generic tests attached to them or their columns. It produces the
// raw (target, column, declaration) triples the test builder consumes; it
// performs no normalization itself.
package schema

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/slatedata/slate/internal/generictest"
)

// Document is one parsed schema file.
type Document struct {
	Version int      `mapstructure:"version"`
	Models  []Model  `mapstructure:"models"`
	Sources []Source `mapstructure:"sources"`
}

// Model declares tests on a model and its columns.
type Model struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Version     string   `mapstructure:"version"`
	Columns     []Column `mapstructure:"columns"`
	Tests       []any    `mapstructure:"tests"`
	DataTests   []any    `mapstructure:"data_tests"`
}

// Source declares an external source and its tables.
type Source struct {
	Name        string  `mapstructure:"name"`
	Description string  `mapstructure:"description"`
	Tables      []Table `mapstructure:"tables"`
}

// Table is one table of a source.
type Table struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Columns     []Column `mapstructure:"columns"`
	Tests       []any    `mapstructure:"tests"`
	DataTests   []any    `mapstructure:"data_tests"`
}

// Column declares tests on a single column.
type Column struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Tests       []any  `mapstructure:"tests"`
	DataTests   []any  `mapstructure:"data_tests"`
}

// Declaration pairs a raw generic test declaration with the target and
// column it was authored on.
type Declaration struct {
	Target generictest.TargetRef
	Column string
	Raw    any
}

// ParseError reports a schema file that could not be decoded.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// Load reads and parses one schema file.
func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from scanning the schema directory
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	doc, err := Parse(content)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.File = path
		}
		return nil, err
	}
	return doc, nil
}

// Parse decodes schema YAML content. Decoding is two-phase: YAML into a
// loose map, then a weakly typed mapstructure pass into the typed document
// so values like `version: 2` on a model survive as strings.
func Parse(content []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	var doc Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("building schema decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid schema document: %v", err)}
	}
	return &doc, nil
}

// Declarations flattens the document into raw test declarations, each tied
// to its model, source table, and optional column.
func (d *Document) Declarations() []Declaration {
	var out []Declaration

	for _, model := range d.Models {
		target := generictest.ModelTarget{Name: model.Name, Version: model.Version}
		for _, entry := range testEntries(model.Tests, model.DataTests) {
			out = append(out, Declaration{Target: target, Raw: entry})
		}
		for _, col := range model.Columns {
			for _, entry := range testEntries(col.Tests, col.DataTests) {
				out = append(out, Declaration{Target: target, Column: col.Name, Raw: entry})
			}
		}
	}

	for _, src := range d.Sources {
		for _, tbl := range src.Tables {
			target := generictest.SourceTarget{SourceName: src.Name, TableName: tbl.Name}
			for _, entry := range testEntries(tbl.Tests, tbl.DataTests) {
				out = append(out, Declaration{Target: target, Raw: entry})
			}
			for _, col := range tbl.Columns {
				for _, entry := range testEntries(col.Tests, col.DataTests) {
					out = append(out, Declaration{Target: target, Column: col.Name, Raw: entry})
				}
			}
		}
	}

	return out
}

// testEntries normalizes the authoring shorthands of a tests list. Both the
// legacy "tests" key and the newer "data_tests" key contribute entries.
func testEntries(tests, dataTests []any) []any {
	entries := append(append([]any{}, tests...), dataTests...)
	out := make([]any, 0, len(entries))
	for _, entry := range entries {
		out = append(out, normalizeEntry(entry))
	}
	return out
}

// normalizeEntry expands authoring shorthands into the mapping shape the
// builder accepts: a bare string "unique" becomes {"unique": {}}, and a
// single-key mapping with a nil value gets an empty argument mapping.
// Anything else passes through untouched so shape errors surface from the
// builder with full context.
func normalizeEntry(entry any) any {
	switch val := entry.(type) {
	case string:
		return map[string]any{val: map[string]any{}}
	case map[string]any:
		if _, ok := val["test_name"]; ok {
			return val
		}
		if len(val) == 1 {
			for k, v := range val {
				if v == nil {
					return map[string]any{k: map[string]any{}}
				}
			}
		}
		return val
	default:
		return entry
	}
}
