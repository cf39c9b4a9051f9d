// Package config loads slate project configuration from the project file,
// environment variables, and CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Default directory layout, relative to the project root.
const (
	DefaultSchemaDir = "models"
	DefaultMacrosDir = "macros"
	DefaultTargetDir = "target/tests"
	DefaultPackage   = "main"
)

// Config is the resolved slate project configuration.
type Config struct {
	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`

	SchemaDir   string `koanf:"schema_dir"`
	MacrosDir   string `koanf:"macros_dir"`
	TargetDir   string `koanf:"target_dir"`
	PackageName string `koanf:"package_name"`
	Environment string `koanf:"environment"`

	// RequireArgumentsProperty gates the new declaration format: when set,
	// test arguments are expected under a dedicated "arguments" key.
	RequireArgumentsProperty bool `koanf:"require_arguments_property"`

	// Vars is the render context for templated config values.
	Vars map[string]any `koanf:"vars"`

	Verbose bool `koanf:"verbose"`
}

// Package-level koanf instance and the last loaded config.
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findConfigFile finds the project file to use.
// Priority: explicit path > slate.yaml > slate.yml.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"slate.yaml", "slate.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// resolvePathRelativeTo resolves a path against baseDir unless it is empty
// or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Load loads configuration from the project file, environment variables,
// and flags. Precedence (highest to lowest): flags > env vars > file >
// defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Fresh koanf instance for every load.
	k = koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"schema_dir":                 DefaultSchemaDir,
		"macros_dir":                 DefaultMacrosDir,
		"target_dir":                 DefaultTargetDir,
		"package_name":               DefaultPackage,
		"environment":                "dev",
		"require_arguments_property": false,
		"verbose":                    false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// SLATE_SCHEMA_DIR -> schema_dir
	if err := k.Load(env.Provider("SLATE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SLATE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only flags that were explicitly set participate.
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// The project root anchors all relative paths: the config file's
	// directory when one was found, the working directory otherwise.
	root := "."
	if configFileUsed != "" {
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			root = filepath.Dir(abs)
		}
	} else if cwd, err := os.Getwd(); err == nil {
		root = cwd
	}
	cfg.ProjectRoot = root
	cfg.SchemaDir = resolvePathRelativeTo(cfg.SchemaDir, root)
	cfg.MacrosDir = resolvePathRelativeTo(cfg.MacrosDir, root)
	cfg.TargetDir = resolvePathRelativeTo(cfg.TargetDir, root)

	currentConfig = &cfg
	return &cfg, nil
}

// Current returns the last loaded config, or nil before Load succeeds.
func Current() *Config {
	return currentConfig
}

// GetConfigFileUsed returns the path of the loaded project file, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// Reset clears loader state. Used for testing.
func Reset() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}
