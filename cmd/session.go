package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lockplane/schemaclone/internal/cloneerr"
	"github.com/lockplane/schemaclone/internal/config"
	"github.com/lockplane/schemaclone/internal/confirm"
	"github.com/lockplane/schemaclone/internal/connection"
	"github.com/lockplane/schemaclone/internal/provision"
	"github.com/lockplane/schemaclone/internal/telemetry"
)

// session is the state shared by one command invocation
type session struct {
	cfg      *config.Config
	env      *config.ResolvedEnvironment
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	provider *connection.Provider

	stderr     io.Writer
	assumeYes  bool
	reportPath string
}

func newSession(cmd *cobra.Command) (*session, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfigPath != "" {
		cfg, err = config.LoadConfigFile(flagConfigPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		if !cloneerr.Is(err, cloneerr.Configuration) {
			err = cloneerr.New(cloneerr.Configuration, "load config", flagConfigPath, err)
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCfg := cfg.Logging
	logCfg.Level = telemetry.ResolveLevel(flagLogLevel, cfg.Logging.Level)
	logger, err := telemetry.NewLogger(logCfg)
	if err != nil {
		return nil, cloneerr.New(cloneerr.Configuration, "configure logging", "", err)
	}

	env, err := config.ResolveEnvironment(cfg, flagEnvironment)
	if err != nil {
		return nil, err
	}
	if env.FromConfig || env.FromDotenv {
		logger.Debug().Str("environment", env.Name).Str("dotenv", env.DotenvPath).Msg("Resolved environment")
	}

	return &session{
		cfg:        cfg,
		env:        env,
		logger:     logger.With().Str("command", cmd.Name()).Logger(),
		metrics:    telemetry.NewMetrics(),
		provider:   connection.NewProvider(connection.WithLogger(telemetry.Component(logger, "connection"))),
		stderr:     cmd.ErrOrStderr(),
		assumeYes:  flagYes,
		reportPath: flagReportPath,
	}, nil
}

func (s *session) success(format string, args ...any) {
	_, _ = color.New(color.FgGreen).Fprintf(s.stderr, "✓ "+format+"\n", args...)
}

func (s *session) failure(format string, args ...any) {
	_, _ = color.New(color.FgRed).Fprintf(s.stderr, "✗ "+format+"\n", args...)
}

// finish logs the timing summary of every phase that ran and writes the
// metrics file when one is configured.
func (s *session) finish() {
	for _, phase := range []string{telemetry.PhaseLift, telemetry.PhaseTransform, telemetry.PhaseProvision, telemetry.PhaseMigrate} {
		summary := s.metrics.Summary(phase)
		if summary.Count == 0 {
			continue
		}
		s.logger.Info().
			Str("phase", phase).
			Uint64("events", summary.Count).
			Dur("mean", summary.Mean()).
			Msgf("Mean time for %s over %d events", phase, summary.Count)
	}

	if s.cfg == nil || s.cfg.Metrics.File == "" {
		return
	}
	path := s.cfg.Metrics.File
	if !filepath.IsAbs(path) && s.cfg.ConfigDir() != "" {
		path = filepath.Join(s.cfg.ConfigDir(), path)
	}
	if err := s.metrics.WriteToTextfile(path); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write metrics file")
	}
}

// confirmDestructive asks the user to type the target database name.
// It returns nil without prompting for --yes or a non-interactive stdin.
func (s *session) confirmDestructive(action, database string) error {
	if s.assumeYes || !confirm.Interactive(os.Stdin) {
		return nil
	}
	ok, err := confirm.Prompt(action, database, os.Stdin, s.stderr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s of %s cancelled", action, database)
	}
	return nil
}

// provision runs plan against admin and reports the outcome
func (s *session) provision(ctx context.Context, admin *connection.Admin, applier provision.Applier, plan provision.Plan) error {
	opts := provision.OptionsFromSettings(s.cfg.ProvisionSettings())
	opts.Logger = telemetry.Component(s.logger, "provision")
	opts.Metrics = s.metrics

	stop := s.metrics.Time(telemetry.PhaseProvision)
	rc := provision.NewRun(plan, opts)
	outcome := rc.Execute(ctx, admin, applier)
	elapsed := stop()

	if s.reportPath != "" {
		if err := rc.Report().Save(s.reportPath); err != nil {
			s.logger.Warn().Err(err).Str("path", s.reportPath).Msg("Failed to write run report")
		}
	}

	if step, aborted := outcome.AbortedAt(); aborted {
		s.failure("Provisioning %s aborted at %s: %v", plan.Database, step, outcome.Err)
		return reported(outcome.Err)
	}
	s.success("Provisioned %s in %s (%s)", plan.Database, elapsed.Round(time.Millisecond), strings.Join(stepNames(plan), ", "))
	return nil
}

func stepNames(plan provision.Plan) []string {
	names := make([]string, len(plan.Steps))
	for i, step := range plan.Steps {
		names[i] = step.String()
	}
	return names
}
