package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lockplane/schemaclone/internal/cloneerr"
	"github.com/lockplane/schemaclone/internal/engine"
	"github.com/lockplane/schemaclone/internal/telemetry"
	"github.com/lockplane/schemaclone/internal/transform"
)

var liftCmd = &cobra.Command{
	Use:   "lift",
	Short: "Lift schemas into rewritten JSON changelogs",
	Long: `Lift each schema in --schemas (default --schema) into a JSON changelog and
rewrite it with the [transform] rules from schemaclone.toml, writing
<output-base>_<schema>.json per schema.

Without [transform] rules, table remarks are dropped and catalog names get a
"Clone" suffix.`,
	Example: `  # Lift two schemas into changelog_public.json and changelog_reporting.json
  schemaclone lift --url postgres://localhost:5432/postgres --username admin --password secret \
    --database sales --schemas public,reporting

  # Choose where the files go
  schemaclone lift -e staging --output-base out/sales`,
	RunE: runLift,
}

var (
	liftConn       connFlags
	liftOutputBase string
	liftTmpPath    string
)

func init() {
	rootCmd.AddCommand(liftCmd)

	liftConn.register(liftCmd, true)
	liftCmd.Flags().StringVar(&liftOutputBase, "output-base", "changelog", "Output path prefix; files are written to <output-base>_<schema>.json")
	liftCmd.Flags().StringVar(&liftTmpPath, "tmp-path", "", "Directory for intermediate changelogs (default: system temp dir)")
}

type liftOptions struct {
	conn       connFlags
	outputBase string
	tmpPath    string
}

func runLift(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.finish()

	conn := liftConn.resolve(cmd, s.env)
	if err := conn.requireCredentials("output-base", liftOutputBase); err != nil {
		return err
	}
	return s.lift(cmd.Context(), liftOptions{conn: conn, outputBase: liftOutputBase, tmpPath: liftTmpPath})
}

// lift writes one rewritten changelog per schema. A failing schema is
// reported and the remaining schemas are still lifted.
func (s *session) lift(ctx context.Context, opts liftOptions) error {
	rules, err := transform.RulesFromConfig(s.cfg.Transform)
	if err != nil {
		return cloneerr.New(cloneerr.Configuration, "load transform rules", s.cfg.ConfigFilePath, err)
	}
	schemas := opts.conn.schemaList()
	if len(schemas) == 0 {
		return cloneerr.Newf(cloneerr.Configuration, "lift", opts.conn.database, "no schema given and none can be derived from the URL")
	}

	e, err := engine.New(opts.conn.request().Dialect(), engine.WithLogger(telemetry.Component(s.logger, "engine")))
	if err != nil {
		return err
	}

	var failed []error
	for _, schema := range schemas {
		out, err := s.liftSchema(ctx, e, rules, opts, schema)
		if err != nil {
			s.logger.Error().Err(err).Str("schema", schema).Msg("Failed to lift schema")
			s.failure("Schema %s: %v", schema, err)
			failed = append(failed, err)
			continue
		}
		s.success("Wrote %s", out)
	}
	if len(failed) > 0 {
		return reported(errors.Join(failed...))
	}
	return nil
}

func (s *session) liftSchema(ctx context.Context, e *engine.Engine, rules transform.Rules, opts liftOptions, schema string) (string, error) {
	tmp, err := os.CreateTemp(opts.tmpPath, "schemaclone-"+schema+"-*.json")
	if err != nil {
		return "", cloneerr.New(cloneerr.Configuration, "create temporary changelog", opts.tmpPath, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := s.liftTo(ctx, e, opts.conn, schema, tmpPath); err != nil {
		return "", err
	}

	out := filepath.Clean(fmt.Sprintf("%s_%s.json", opts.outputBase, schema))
	t := transform.New(rules,
		transform.WithLogger(telemetry.Component(s.logger, "transform")),
		transform.WithName(out))

	stop := s.metrics.Time(telemetry.PhaseTransform)
	stats, err := t.File(tmpPath, out)
	stop()
	s.metrics.RecordTransform(stats.Dropped, stats.Rewritten)
	if err != nil {
		return "", err
	}

	s.logger.Info().
		Str("output", out).
		Int("dropped", stats.Dropped).
		Int("rewritten", stats.Rewritten).
		Msg("Transformed changelog")
	return out, nil
}
