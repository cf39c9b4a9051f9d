// Package commands implements the slate subcommands.
package commands

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/slatedata/slate/internal/cli/config"
	"github.com/slatedata/slate/internal/deprecations"
	"github.com/slatedata/slate/internal/generictest"
	"github.com/slatedata/slate/internal/render"
	"github.com/slatedata/slate/internal/schema"
)

// CompiledTest couples one resolved test descriptor with its source file.
type CompiledTest struct {
	File    string
	Builder *generictest.Builder
}

// newLogger builds the command logger. Verbose enables debug output.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newRenderer builds the config value renderer from the project vars.
// Templates see the project vars as the "vars" dict and the environment
// name as "env".
func newRenderer(cfg *config.Config) (*render.Renderer, error) {
	vars := cfg.Vars
	if vars == nil {
		vars = map[string]any{}
	}
	return render.NewRenderer(map[string]any{
		"env":  cfg.Environment,
		"vars": vars,
	})
}

// schemaFiles lists the YAML schema files under dir, sorted for
// deterministic output.
func schemaFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		switch filepath.Ext(d.Name()) {
		case ".yml", ".yaml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning schema directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// loadTests parses every schema file under cfg.SchemaDir and builds a
// descriptor for each declared generic test. Files parse in parallel;
// results keep file order.
func loadTests(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]CompiledTest, error) {
	files, err := schemaFiles(cfg.SchemaDir)
	if err != nil {
		return nil, err
	}

	renderer, err := newRenderer(cfg)
	if err != nil {
		return nil, err
	}
	opts := generictest.ExtractOptions{
		RequireArgumentsProperty: cfg.RequireArgumentsProperty,
		Deprecations:             deprecations.NewSlogSink(logger),
	}

	results := make([][]CompiledTest, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range files {
		g.Go(func() error {
			doc, err := schema.Load(path)
			if err != nil {
				return err
			}
			var tests []CompiledTest
			for _, decl := range doc.Declarations() {
				b, err := generictest.NewBuilder(
					decl.Raw, decl.Target, cfg.PackageName, decl.Column, renderer, opts,
				)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				tests = append(tests, CompiledTest{File: path, Builder: b})
			}
			results[i] = tests
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []CompiledTest
	for _, tests := range results {
		all = append(all, tests...)
	}
	return all, nil
}
