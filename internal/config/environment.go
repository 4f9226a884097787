package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/lockplane/schemaclone/internal/cloneerr"
)

// ResolvedEnvironment represents a fully-resolved environment with concrete values.
type ResolvedEnvironment struct {
	Name       string
	URL        string
	Username   string
	Password   string
	Database   string
	Schema     string
	Schemas    []string
	Driver     string
	DriverPath string
	DotenvPath string
	FromConfig bool
	FromDotenv bool
}

// SchemaList returns Schemas, falling back to the single Schema.
func (e *ResolvedEnvironment) SchemaList() []string {
	if len(e.Schemas) > 0 {
		return e.Schemas
	}
	if e.Schema != "" {
		return []string{e.Schema}
	}
	return nil
}

// ResolveEnvironment merges the named environment from the config with the
// values of .env.<name>. Values from the dotenv file win over the config.
// An empty name selects default_environment, then "local".
func ResolveEnvironment(config *Config, name string) (*ResolvedEnvironment, error) {
	envName := strings.TrimSpace(name)
	explicit := envName != ""
	if envName == "" {
		if config != nil && config.DefaultEnvironment != "" {
			envName = config.DefaultEnvironment
			explicit = true
		} else {
			envName = defaultEnvironmentName
		}
	}

	var (
		envConfig EnvironmentConfig
		envExists bool
	)
	if config != nil && config.Environments != nil {
		if cfg, ok := config.Environments[envName]; ok {
			envConfig = cfg
			envExists = true
		}
	}

	resolved := &ResolvedEnvironment{
		Name:       envName,
		URL:        envConfig.URL,
		Username:   envConfig.Username,
		Password:   envConfig.Password,
		Database:   envConfig.Database,
		Schema:     envConfig.Schema,
		Schemas:    envConfig.Schemas,
		Driver:     envConfig.Driver,
		DriverPath: envConfig.DriverPath,
		FromConfig: envExists,
	}

	var (
		baseDir        string
		projectDir     string
		dotenvFileName = ".env." + envName
	)
	if config != nil && config.ConfigDir() != "" {
		baseDir = config.ConfigDir()
		projectDir = config.ProjectDir()
	} else if cwd, err := os.Getwd(); err == nil {
		baseDir = cwd
	}

	if baseDir != "" {
		resolved.DotenvPath = filepath.Join(baseDir, dotenvFileName)
	} else {
		resolved.DotenvPath = dotenvFileName
	}

	if _, err := os.Stat(resolved.DotenvPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, cloneerr.New(cloneerr.Configuration, "resolve environment", envName,
				fmt.Errorf("failed to access %s: %w", resolved.DotenvPath, err))
		}
		if projectDir != "" && projectDir != baseDir {
			altPath := filepath.Join(projectDir, dotenvFileName)
			if altInfo, altErr := os.Stat(altPath); altErr == nil && !altInfo.IsDir() {
				resolved.DotenvPath = altPath
			}
		}
	}

	if info, err := os.Stat(resolved.DotenvPath); err == nil && !info.IsDir() {
		values, err := godotenv.Read(resolved.DotenvPath)
		if err != nil {
			return nil, cloneerr.New(cloneerr.Configuration, "resolve environment", envName,
				fmt.Errorf("failed to read %s: %w", resolved.DotenvPath, err))
		}
		resolved.FromDotenv = true
		applyDotenv(resolved, values)
	}

	if resolved.DriverPath != "" {
		resolved.DriverPath = resolvePath(resolved.DriverPath, baseDir)
	}

	if explicit && !envExists && !resolved.FromDotenv {
		return nil, cloneerr.New(cloneerr.Configuration, "resolve environment", envName,
			fmt.Errorf("environment %q not defined in %s and %s not found", envName, FileName, resolved.DotenvPath))
	}

	return resolved, nil
}

func applyDotenv(resolved *ResolvedEnvironment, values map[string]string) {
	if value := values["DATABASE_URL"]; value != "" {
		resolved.URL = value
	}

	// Dialect-specific variables only fill in when DATABASE_URL is absent.
	if values["DATABASE_URL"] == "" {
		if value := values["POSTGRES_URL"]; value != "" {
			resolved.URL = value
		} else if value := values["SQLITE_DB_PATH"]; value != "" {
			resolved.URL = value
		} else if value := values["LIBSQL_URL"]; value != "" {
			if authToken := values["LIBSQL_AUTH_TOKEN"]; authToken != "" {
				resolved.URL = fmt.Sprintf("%s?authToken=%s", value, url.QueryEscape(authToken))
			} else {
				resolved.URL = value
			}
		}
	}

	if value := values["DATABASE_USERNAME"]; value != "" {
		resolved.Username = value
	}
	if value := values["DATABASE_PASSWORD"]; value != "" {
		resolved.Password = value
	}
	if value := values["DATABASE_NAME"]; value != "" {
		resolved.Database = value
	}
	if value := values["DATABASE_SCHEMA"]; value != "" {
		resolved.Schema = value
	}
	if value := values["DATABASE_SCHEMAS"]; value != "" {
		resolved.Schemas = splitList(value)
	}
	if value := values["DATABASE_DRIVER"]; value != "" {
		resolved.Driver = value
	}
	if value := values["DATABASE_DRIVER_PATH"]; value != "" {
		resolved.DriverPath = value
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func resolvePath(path, base string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}
