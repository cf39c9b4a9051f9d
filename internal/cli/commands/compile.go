package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/slatedata/slate/internal/cli/config"
	"github.com/slatedata/slate/internal/macro"
)

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	Watch bool // Recompile when schema files change
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile generic tests to executable artifacts",
		Long: `Parse the project's schema files, normalize every generic test
declaration into a canonical descriptor, and write one compiled artifact per
test into the target directory. The artifact file is named by the test's
compiled name and contains the macro invocation handed to execution.`,
		Example: `  # Compile all schema tests
  slate compile

  # Recompile on schema changes
  slate compile --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Recompile when schema files change")
	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions) error {
	cfg := config.Current()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	logger := newLogger(cfg)

	if err := compileOnce(cmd.Context(), cfg, logger); err != nil {
		if !opts.Watch {
			return err
		}
		// Watch mode keeps running after a failed build.
		logger.Error("compile failed", "error", err)
	}
	if !opts.Watch {
		return nil
	}
	return watchAndCompile(cmd.Context(), cfg, logger)
}

// compileOnce performs one full compile pass over the project.
func compileOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger = logger.With("run_id", uuid.New().String())
	start := time.Now()

	registry, err := macro.LoadDir(cfg.MacrosDir)
	if err != nil {
		return err
	}

	tests, err := loadTests(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.TargetDir, 0o755); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}

	for _, t := range tests {
		b := t.Builder
		if registry.Len() > 0 && !registry.Lookup(b.MacroName()) {
			logger.Warn("no macro found for test",
				"macro", b.MacroName(),
				"test", b.CompiledName(),
				"file", t.File,
			)
		}
		out := filepath.Join(cfg.TargetDir, b.CompiledName()+".sql")
		if err := os.WriteFile(out, []byte(b.RawCode()+"\n"), 0o644); err != nil { //nolint:gosec // G306: compiled artifacts are not secrets
			return fmt.Errorf("writing compiled test %s: %w", out, err)
		}
		logger.Debug("compiled test",
			"name", b.CompiledName(),
			"fqn", b.FQNName(),
			"macro", b.MacroName(),
		)
	}

	logger.Info("compile finished",
		"tests", len(tests),
		"target_dir", cfg.TargetDir,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// watchAndCompile recompiles whenever a schema file changes. Events are
// debounced so editors that write in bursts trigger a single rebuild.
func watchAndCompile(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDir(watcher, cfg.SchemaDir); err != nil {
		return fmt.Errorf("failed to watch schema dir: %w", err)
	}

	logger.Info("watching for schema changes", "dir", cfg.SchemaDir)

	var debounce *time.Timer
	rebuild := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-rebuild:
			if err := compileOnce(ctx, cfg, logger); err != nil {
				logger.Error("compile failed", "error", err)
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			switch filepath.Ext(event.Name) {
			case ".yml", ".yaml":
			default:
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case rebuild <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

// watchDir recursively adds a directory tree to the watcher.
func watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if len(info.Name()) > 0 && info.Name()[0] == '.' && path != dir {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}
