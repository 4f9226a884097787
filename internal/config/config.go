package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/lockplane/schemaclone/internal/cloneerr"
)

// FileName is the config file searched for from the working directory up to
// the project root.
const FileName = "schemaclone.toml"

const (
	defaultEnvironmentName = "local"

	DefaultLogTable  = "SCHEMACLONE_CHANGELOG"
	DefaultLockTable = "SCHEMACLONE_CHANGELOCK"

	// Table names used by the migration engine when nothing else is
	// configured. The provisioner must never share them.
	EngineLogTable  = "DATABASECHANGELOG"
	EngineLockTable = "DATABASECHANGELOGLOCK"

	PolicyRequireAny = "require-any"
	PolicyRequireAll = "require-all"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EnvironmentConfig describes a single named environment from schemaclone.toml.
type EnvironmentConfig struct {
	Description string   `toml:"description"`
	URL         string   `toml:"url"`
	Username    string   `toml:"username"`
	Password    string   `toml:"password"`
	Database    string   `toml:"database"`
	Schema      string   `toml:"schema"`
	Schemas     []string `toml:"schemas"`
	Driver      string   `toml:"driver"`
	DriverPath  string   `toml:"driver_path"`
}

// ProvisionConfig is the [provision] section. Unset booleans default to true.
type ProvisionConfig struct {
	ClearChangeHistory  *bool  `toml:"clear_change_history"`
	DeleteCreateTarget  *bool  `toml:"delete_create_target"`
	LogTable            string `toml:"log_table"`
	LockTable           string `toml:"lock_table"`
	SchemaFailurePolicy string `toml:"schema_failure_policy"`
}

// ProvisionSettings is ProvisionConfig with defaults applied.
type ProvisionSettings struct {
	ClearChangeHistory  bool
	DeleteCreateTarget  bool
	LogTable            string
	LockTable           string
	SchemaFailurePolicy string
}

// TransformConfig is the [transform] section: fields to drop, string
// suffixes per field, and expr-lang rewrites per field.
type TransformConfig struct {
	Drop   []string          `toml:"drop"`
	Suffix map[string]string `toml:"suffix"`
	Expr   map[string]string `toml:"expr"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsConfig struct {
	File string `toml:"file"`
}

type Config struct {
	DefaultEnvironment string                       `toml:"default_environment"`
	Environments       map[string]EnvironmentConfig `toml:"environments"`
	Provision          ProvisionConfig              `toml:"provision"`
	Transform          TransformConfig              `toml:"transform"`
	Logging            LoggingConfig                `toml:"logging"`
	Metrics            MetricsConfig                `toml:"metrics"`
	ConfigFilePath     string                       `toml:"-"`

	configDir string
}

// LoadConfig finds schemaclone.toml in the working directory or one of its
// parents, stopping at the project root. No file yields an empty Config.
func LoadConfig() (*Config, error) {
	startDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dir := startDir
	for {
		configPath := filepath.Join(dir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			return LoadConfigFile(configPath)
		}

		if isProjectRoot(dir) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return &Config{}, nil
}

// LoadConfigFile parses the config at path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cloneerr.New(cloneerr.Configuration, "load config", path, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, cloneerr.New(cloneerr.Configuration, "load config", path,
			fmt.Errorf("failed to parse toml: %w", err))
	}

	config.ConfigFilePath = path
	config.configDir = filepath.Dir(path)
	return &config, nil
}

// ConfigDir is the directory holding the config file, or "" when no file
// was loaded.
func (c *Config) ConfigDir() string {
	if c == nil {
		return ""
	}
	if c.configDir != "" {
		return c.configDir
	}
	if c.ConfigFilePath != "" {
		return filepath.Dir(c.ConfigFilePath)
	}
	return ""
}

// ProjectDir is the nearest project root at or above ConfigDir.
func (c *Config) ProjectDir() string {
	dir := c.ConfigDir()
	if dir == "" {
		return ""
	}
	for {
		if isProjectRoot(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ProvisionSettings applies defaults to the [provision] section.
func (c *Config) ProvisionSettings() ProvisionSettings {
	settings := ProvisionSettings{
		ClearChangeHistory:  true,
		DeleteCreateTarget:  true,
		LogTable:            DefaultLogTable,
		LockTable:           DefaultLockTable,
		SchemaFailurePolicy: PolicyRequireAny,
	}
	if c == nil {
		return settings
	}

	p := c.Provision
	if p.ClearChangeHistory != nil {
		settings.ClearChangeHistory = *p.ClearChangeHistory
	}
	if p.DeleteCreateTarget != nil {
		settings.DeleteCreateTarget = *p.DeleteCreateTarget
	}
	if p.LogTable != "" {
		settings.LogTable = p.LogTable
	}
	if p.LockTable != "" {
		settings.LockTable = p.LockTable
	}
	if p.SchemaFailurePolicy != "" {
		settings.SchemaFailurePolicy = p.SchemaFailurePolicy
	}
	return settings
}

// Validate checks values that cannot be caught by parsing alone.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.validate(); err != nil {
		return cloneerr.New(cloneerr.Configuration, "validate config", c.ConfigFilePath, err)
	}
	return nil
}

func (c *Config) validate() error {
	settings := c.ProvisionSettings()

	for _, table := range []string{settings.LogTable, settings.LockTable} {
		if !identifierPattern.MatchString(table) {
			return fmt.Errorf("tracking table name %q is not a valid identifier", table)
		}
		upper := strings.ToUpper(table)
		if upper == EngineLogTable || upper == EngineLockTable {
			return fmt.Errorf("tracking table %q collides with the migration engine default", table)
		}
	}
	if strings.EqualFold(settings.LogTable, settings.LockTable) {
		return fmt.Errorf("log_table and lock_table must differ, both are %q", settings.LogTable)
	}

	switch settings.SchemaFailurePolicy {
	case PolicyRequireAny, PolicyRequireAll:
	default:
		return fmt.Errorf("schema_failure_policy must be %q or %q, got %q",
			PolicyRequireAny, PolicyRequireAll, settings.SchemaFailurePolicy)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}

	for name, env := range c.Environments {
		if env.DriverPath != "" && env.Driver == "" {
			return fmt.Errorf("environment %q sets driver_path without driver", name)
		}
	}
	return nil
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
		return true
	}
	return false
}
