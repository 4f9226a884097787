package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lockplane/schemaclone/database"
	"github.com/lockplane/schemaclone/internal/cloneerr"
	"github.com/lockplane/schemaclone/internal/config"
	"github.com/lockplane/schemaclone/internal/connection"
)

// connFlags are the connection flags shared by the commands
type connFlags struct {
	url        string
	username   string
	password   string
	database   string
	schema     string
	schemas    []string
	driver     string
	driverPath string
}

func (f *connFlags) register(cmd *cobra.Command, withDriver bool) {
	cmd.Flags().StringVar(&f.url, "url", "", "Server connection URL (postgres://, sqlite:///dir, file:dir or libsql://)")
	cmd.Flags().StringVar(&f.username, "username", "", "Database user")
	cmd.Flags().StringVar(&f.password, "password", "", "Database password")
	cmd.Flags().StringVar(&f.database, "database", "", "Database name")
	cmd.Flags().StringVar(&f.schema, "schema", "", "Schema name (default: public for PostgreSQL, main for SQLite)")
	cmd.Flags().StringSliceVar(&f.schemas, "schemas", nil, "Comma-separated schema names (default: --schema)")
	if withDriver {
		cmd.Flags().StringVar(&f.driver, "target-driver", "", "database/sql driver name to use instead of the built-in one")
		cmd.Flags().StringVar(&f.driverPath, "target-driver-path", "", "Go plugin that registers --target-driver")
	}
}

// resolve overlays the environment onto flags that were not set on the
// command line.
func (f connFlags) resolve(cmd *cobra.Command, env *config.ResolvedEnvironment) connFlags {
	if env == nil {
		return f
	}
	pick := func(name, flagValue, envValue string) string {
		if cmd.Flags().Changed(name) || envValue == "" {
			return flagValue
		}
		return envValue
	}

	out := f
	out.url = pick("url", f.url, env.URL)
	out.username = pick("username", f.username, env.Username)
	out.password = pick("password", f.password, env.Password)
	out.database = pick("database", f.database, env.Database)
	out.schema = pick("schema", f.schema, env.Schema)
	out.driver = pick("target-driver", f.driver, env.Driver)
	out.driverPath = pick("target-driver-path", f.driverPath, env.DriverPath)
	if !cmd.Flags().Changed("schemas") && len(env.Schemas) > 0 {
		out.schemas = env.Schemas
	}
	return out
}

func (f connFlags) request() connection.Request {
	req := connection.Request{URL: strings.TrimSpace(f.url), Username: f.username, Password: f.password}
	if f.driver != "" || f.driverPath != "" {
		req.Driver = &connection.DriverSpec{Name: f.driver, Path: f.driverPath}
	}
	return req
}

// schemaList returns --schemas, then --schema, then the dialect default
func (f connFlags) schemaList() []string {
	var out []string
	for _, s := range f.schemas {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}
	if f.schema != "" {
		return []string{f.schema}
	}
	if schema := connection.DetectDialect(f.url).DefaultSchema(); schema != "" {
		return []string{schema}
	}
	return nil
}

// requireCredentials checks the flags every connecting command needs.
// SQLite and libSQL take no username, and libSQL's password is its
// optional auth token, so only PostgreSQL requires both.
func (f connFlags) requireCredentials(extra ...string) error {
	required := []string{"url", f.url}
	if connection.DetectDialect(f.url) == database.DialectPostgres {
		required = append(required, "username", f.username, "password", f.password)
	}
	return requireFlags(append(required, extra...)...)
}

// requireFlags takes flag name/value pairs and reports every empty one as
// a configuration error.
func requireFlags(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, "--"+pairs[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return cloneerr.New(cloneerr.Configuration, "check flags", "",
		fmt.Errorf("missing required flags: %s", strings.Join(missing, ", ")))
}
