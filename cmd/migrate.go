package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lockplane/schemaclone/internal/connection"
	"github.com/lockplane/schemaclone/internal/migrations"
	"github.com/lockplane/schemaclone/internal/telemetry"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Check connectivity and apply versioned SQL migrations",
	Long: `Connect to the database, then apply every pending migration from
--migrations. Files follow the golang-migrate naming scheme:
<version>_<title>.up.sql and <version>_<title>.down.sql.`,
	Example: `  schemaclone migrate --url postgres://localhost:5432/app --username admin --password secret \
    --migrations db/migrations`,
	RunE: runMigrate,
}

var (
	migrateConn connFlags
	migrateDir  string
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateConn.url, "url", "", "Database connection URL")
	migrateCmd.Flags().StringVar(&migrateConn.username, "username", "", "Database user")
	migrateCmd.Flags().StringVar(&migrateConn.password, "password", "", "Database password")
	migrateCmd.Flags().StringVar(&migrateConn.database, "database", "", "Database name (default: the one in --url)")
	migrateCmd.Flags().StringVar(&migrateDir, "migrations", "migrations", "Directory of migration files")
}

type migrateOptions struct {
	conn connFlags
	dir  string
}

func runMigrate(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.finish()

	conn := migrateConn.resolve(cmd, s.env)
	if err := conn.requireCredentials("migrations", migrateDir); err != nil {
		return err
	}
	return s.migrate(cmd.Context(), migrateOptions{conn: conn, dir: migrateDir})
}

func (s *session) migrate(ctx context.Context, opts migrateOptions) error {
	req, err := opts.conn.request().ForDatabase(opts.conn.database)
	if err != nil {
		return err
	}

	db, err := s.provider.Acquire(ctx, req)
	if err != nil {
		s.failure("Connection check failed: %v", err)
		return reported(err)
	}
	s.success("Connected to %s", connection.Redact(req.URL))

	stop := s.metrics.Time(telemetry.PhaseMigrate)
	result, err := migrations.Up(db, req.Dialect(), opts.dir, telemetry.Component(s.logger, "migrate"))
	stop()
	if err != nil {
		s.failure("Migration failed: %v", err)
		return reported(err)
	}

	if result.Changed {
		s.success("Migrated to version %d", result.Version)
	} else {
		s.success("No change, database is at version %d", result.Version)
	}
	return nil
}
