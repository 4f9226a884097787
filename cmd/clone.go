package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/lockplane/schemaclone/internal/changelog"
	"github.com/lockplane/schemaclone/internal/cloneerr"
	"github.com/lockplane/schemaclone/internal/engine"
	"github.com/lockplane/schemaclone/internal/provision"
	"github.com/lockplane/schemaclone/internal/telemetry"
)

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Lift a schema and clone it onto a fresh database on the same server",
	Long: `Lift the schema of --database into a temporary changelog under --tmp-path,
then drop and recreate the target database on the same server and replay the
changelog into it. The temporary changelog is removed when the command exits.`,
	Example: `  # Clone sales into salesClone
  schemaclone clone --url postgres://localhost:5432/postgres --username admin --password secret \
    --database sales --schema public --tmp-path /tmp

  # Clone a SQLite database in ./data into ./data/staging.db
  schemaclone clone --url sqlite://./data --database sales --target-database staging --tmp-path /tmp`,
	RunE: runClone,
}

var (
	cloneConn    connFlags
	cloneTarget  string
	cloneTmpPath string
)

func init() {
	rootCmd.AddCommand(cloneCmd)

	cloneConn.register(cloneCmd, false)
	cloneCmd.Flags().StringVar(&cloneTarget, "target-database", "", "Database to provision (default: <database>Clone)")
	cloneCmd.Flags().StringVar(&cloneTmpPath, "tmp-path", "", "Directory for the temporary changelog file")
}

type cloneOptions struct {
	conn    connFlags
	target  string
	tmpPath string
}

func runClone(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.finish()

	conn := cloneConn.resolve(cmd, s.env)
	if err := conn.requireCredentials("database", conn.database, "tmp-path", cloneTmpPath); err != nil {
		return err
	}
	target := cloneTarget
	if target == "" {
		target = conn.database + "Clone"
	}

	return s.clone(cmd.Context(), cloneOptions{conn: conn, target: target, tmpPath: cloneTmpPath})
}

func (s *session) clone(ctx context.Context, opts cloneOptions) error {
	schemas := opts.conn.schemaList()
	if len(schemas) == 0 {
		return cloneerr.Newf(cloneerr.Configuration, "clone", opts.conn.database, "no schema given and none can be derived from the URL")
	}
	schema := schemas[0]
	if opts.target == opts.conn.database {
		return cloneerr.Newf(cloneerr.Configuration, "clone", opts.target, "target database must differ from the source database")
	}
	if err := s.confirmDestructive("clone", opts.target); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(opts.tmpPath, opts.conn.database+"-*.xml")
	if err != nil {
		return cloneerr.New(cloneerr.Configuration, "create temporary changelog", opts.tmpPath, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()
	s.logger.Info().Str("path", tmpPath).Msg("Created temporary changelog")

	req := opts.conn.request()
	e, err := engine.New(req.Dialect(), engine.WithLogger(telemetry.Component(s.logger, "engine")))
	if err != nil {
		return err
	}

	if err := s.liftTo(ctx, e, opts.conn, schema, tmpPath); err != nil {
		s.failure("Failed to lift %s: %v", opts.conn.database, err)
		return reported(err)
	}

	doc, err := changelog.Load(tmpPath)
	if err != nil {
		s.failure("Failed to read lifted changelog: %v", err)
		return reported(err)
	}

	admin, err := s.provider.OpenAdmin(ctx, req)
	if err != nil {
		s.failure("Failed to connect to server: %v", err)
		return reported(err)
	}
	defer func() { _ = admin.Close() }()

	s.logger.Info().Str("source", opts.conn.database).Str("target", opts.target).Msg("Cloning")
	plan := provision.DestructiveClone(opts.target, schema)
	return s.provision(ctx, admin, provision.ChangelogApplier{Engine: e, Document: doc}, plan)
}

// liftTo snapshots one schema of conn.database into path
func (s *session) liftTo(ctx context.Context, e *engine.Engine, conn connFlags, schema, path string) error {
	req, err := conn.request().ForDatabase(conn.database)
	if err != nil {
		return err
	}
	db, err := s.provider.Acquire(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	stop := s.metrics.Time(telemetry.PhaseLift)
	doc, err := e.Diff(ctx, db, engine.CatalogAndSchema{Catalog: conn.database, Schema: schema})
	elapsed := stop()
	if err != nil {
		return err
	}

	if err := changelog.Save(path, doc); err != nil {
		return err
	}
	s.logger.Info().
		Str("schema", schema).
		Int("change_sets", len(doc.ChangeSets)).
		Dur("elapsed", elapsed).
		Msg("Lifted schema")
	s.success("Lifted %s (%d change sets)", schema, len(doc.ChangeSets))
	return nil
}
