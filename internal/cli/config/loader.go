package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	sharedcfg "github.com/leapstack-labs/leapfuzz/internal/config"
	"github.com/leapstack-labs/leapfuzz/internal/engine"
	"github.com/leapstack-labs/leapfuzz/internal/generator"
	"github.com/leapstack-labs/leapfuzz/internal/oracle"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store the loaded config in context.
type configKey struct{}

// envPrefix prefixes environment overrides. A double underscore separates
// nested keys: LEAPFUZZ_TARGET__HOST sets target.host.
const envPrefix = "LEAPFUZZ_"

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
)

// findConfigFile finds the config file to use.
// Priority: explicit path > leapfuzz.yaml > leapfuzz.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"leapfuzz.yaml", "leapfuzz.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}

func defaults() map[string]any {
	gen := generator.DefaultConfig()
	weights := engine.DefaultWeights()
	orc := oracle.DefaultConfig()
	return map[string]any{
		"steps":          DefaultSteps,
		"state_path":     DefaultStateFile,
		"verbose":        false,
		"output":         DefaultOutput,
		"progress_every": DefaultProgressEvery,

		"generator.max_databases":    gen.MaxDatabases,
		"generator.max_tables":       gen.MaxTables,
		"generator.max_views":        gen.MaxViews,
		"generator.max_dictionaries": gen.MaxDictionaries,
		"generator.max_functions":    gen.MaxFunctions,
		"generator.max_columns":      gen.MaxColumns,
		"generator.min_insert_rows":  gen.MinInsertRows,
		"generator.max_insert_rows":  gen.MaxInsertRows,
		"generator.max_depth":        gen.Expr.MaxDepth,
		"generator.max_width":        gen.Expr.MaxWidth,
		"generator.backup_path":      gen.BackupPath,

		"oracles.correctness":  weights.Correctness,
		"oracles.dump_reload":  weights.DumpReload,
		"oracles.settings":     weights.Settings,
		"oracles.peer":         weights.Peer,
		"oracles.file_path":    orc.FilePath,
		"oracles.max_settings": orc.MaxSettings,
	}
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (LEAPFUZZ_ prefix)
	// Transform: LEAPFUZZ_TARGET__HOST -> target.host
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// --state is short for state_path
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve a relative state path against the config file directory,
	// unless it came from --state
	fromFlag := flags != nil && flags.Changed("state")
	if configFileUsed != "" && !fromFlag && cfg.StatePath != ":memory:" && !filepath.IsAbs(cfg.StatePath) {
		cfg.StatePath = filepath.Join(filepath.Dir(configFileUsed), cfg.StatePath)
	}

	// Initialize default target if not specified
	if cfg.Target == nil {
		cfg.Target = &TargetConfig{Type: DefaultTargetType, Host: DefaultTargetHost}
	}
	for _, t := range cfg.targets() {
		sharedcfg.ApplyTargetDefaults(t)
		expandTargetEnvVars(t)
	}
	cfg.MinIO.AccessKey = expandEnvVars(cfg.MinIO.AccessKey)
	cfg.MinIO.SecretKey = expandEnvVars(cfg.MinIO.SecretKey)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// targets returns the target followed by the peers.
func (c *Config) targets() []*TargetConfig {
	out := []*TargetConfig{c.Target}
	for _, name := range c.PeerNames() {
		out = append(out, c.Peers[name])
	}
	return out
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig returns ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context, or nil.
func GetConfig(ctx context.Context) *Config {
	c, _ := ctx.Value(configKey{}).(*Config)
	return c
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Password = expandEnvVars(t.Password)
	t.User = expandEnvVars(t.User)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	t.Path = expandEnvVars(t.Path)
}
