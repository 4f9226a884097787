package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lockplane/schemaclone/internal/changelog"
	"github.com/lockplane/schemaclone/internal/engine"
	"github.com/lockplane/schemaclone/internal/provision"
	"github.com/lockplane/schemaclone/internal/telemetry"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision a database from an existing changelog",
	Long: `Replay an existing JSON or XML changelog onto --database, creating the
schemas in --schemas first.

By default the target database is dropped and recreated. With --create-only
an existing database is kept and only missing objects are created.`,
	Example: `  # Recreate hr from a lifted changelog
  schemaclone create --url postgres://localhost:5432/postgres --username admin --password secret \
    --database hr --schemas dbo --changelog changelog_dbo.json

  # Keep the existing database
  schemaclone create -e staging --database hr --changelog changelog_dbo.json --create-only`,
	RunE: runCreate,
}

var (
	createConn      connFlags
	createChangelog string
	createOnly      bool
)

func init() {
	rootCmd.AddCommand(createCmd)

	createConn.register(createCmd, true)
	createCmd.Flags().StringVar(&createChangelog, "changelog", "", "Changelog file to replay (.json or .xml)")
	createCmd.Flags().BoolVar(&createOnly, "create-only", false, "Do not drop the target database first")
}

type createOptions struct {
	conn       connFlags
	changelog  string
	createOnly bool
}

func runCreate(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.finish()

	conn := createConn.resolve(cmd, s.env)
	if err := conn.requireCredentials("database", conn.database, "changelog", createChangelog); err != nil {
		return err
	}
	return s.create(cmd.Context(), createOptions{conn: conn, changelog: createChangelog, createOnly: createOnly})
}

func (s *session) create(ctx context.Context, opts createOptions) error {
	doc, err := changelog.Load(opts.changelog)
	if err != nil {
		s.failure("Failed to read changelog: %v", err)
		return reported(err)
	}

	schemas := opts.conn.schemaList()
	plan := provision.DestructiveClone(opts.conn.database, schemas...)
	if opts.createOnly {
		plan = provision.CreateOnly(opts.conn.database, schemas...)
	} else if err := s.confirmDestructive("create", opts.conn.database); err != nil {
		return err
	}

	admin, err := s.provider.OpenAdmin(ctx, opts.conn.request())
	if err != nil {
		s.failure("Failed to connect to server: %v", err)
		return reported(err)
	}
	defer func() { _ = admin.Close() }()

	e, err := engine.New(admin.Dialect(), engine.WithLogger(telemetry.Component(s.logger, "engine")))
	if err != nil {
		return err
	}

	s.logger.Info().Str("changelog", opts.changelog).Int("change_sets", len(doc.ChangeSets)).Msg("Loaded changelog")
	return s.provision(ctx, admin, provision.ChangelogApplier{Engine: e, Document: doc}, plan)
}
