package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockplane/schemaclone/database"
	"github.com/lockplane/schemaclone/internal/cloneerr"
	"github.com/lockplane/schemaclone/internal/config"
	"github.com/lockplane/schemaclone/internal/engine"
	"github.com/lockplane/schemaclone/internal/telemetry"
)

// SchemaFailurePolicy decides whether a group of CreateSchema steps with
// failures aborts the run.
type SchemaFailurePolicy string

const (
	// RequireAny aborts only when no schema of the group was created.
	RequireAny SchemaFailurePolicy = config.PolicyRequireAny
	// RequireAll aborts when any schema of the group failed.
	RequireAll SchemaFailurePolicy = config.PolicyRequireAll
)

// Options configure a run.
type Options struct {
	// ClearChangeHistory enables DropChangeTracking, including the cleanup
	// after ApplyChangelog. When false those steps succeed without changes.
	ClearChangeHistory bool
	// DeleteCreateTarget enables DropDatabase and CreateDatabase. When false
	// those steps succeed without changes.
	DeleteCreateTarget bool

	Tables              engine.TrackingTables
	SchemaFailurePolicy SchemaFailurePolicy

	Logger  zerolog.Logger
	Metrics *telemetry.Metrics
	Now     func() time.Time
}

// DefaultOptions returns the options for the default [provision] settings.
func DefaultOptions() Options {
	var cfg *config.Config
	return OptionsFromSettings(cfg.ProvisionSettings())
}

// OptionsFromSettings converts configured settings into run options.
func OptionsFromSettings(s config.ProvisionSettings) Options {
	return Options{
		ClearChangeHistory:  s.ClearChangeHistory,
		DeleteCreateTarget:  s.DeleteCreateTarget,
		Tables:              engine.TrackingTables{Log: s.LogTable, Lock: s.LockTable},
		SchemaFailurePolicy: SchemaFailurePolicy(s.SchemaFailurePolicy),
		Logger:              zerolog.Nop(),
	}
}

// StepRecord is one entry of the step-invocation log.
type StepRecord struct {
	Step     Step
	Status   Status
	Error    string
	Start    time.Time
	Duration time.Duration
}

// RunContext holds the state of a single run. Each run gets its own.
type RunContext struct {
	Options Options
	Plan    Plan
	Records []StepRecord
	Outcome Outcome

	logger zerolog.Logger
	now    func() time.Time
}

// NewRun returns a fresh context for running plan.
func NewRun(plan Plan, opts Options) *RunContext {
	if opts.SchemaFailurePolicy == "" {
		opts.SchemaFailurePolicy = RequireAny
	}
	rc := &RunContext{
		Options: opts,
		Plan:    plan,
		logger:  opts.Logger.With().Str("database", plan.Database).Logger(),
		now:     opts.Now,
	}
	if rc.now == nil {
		rc.now = time.Now
	}
	return rc
}

// Run executes plan against target and returns how it ended. Steps run in
// plan order and the first failure stops the run.
func Run(ctx context.Context, target database.Admin, applier Applier, plan Plan, opts Options) Outcome {
	return NewRun(plan, opts).Execute(ctx, target, applier)
}

// Execute runs the plan. It never returns an error: failures are reported
// through the Outcome and the step records.
func (rc *RunContext) Execute(ctx context.Context, target database.Admin, applier Applier) Outcome {
	steps := rc.Plan.Steps
	rc.logger.Info().Str("plan", rc.Plan.String()).Msg("Starting provisioning run")

	for i := 0; i < len(steps); {
		if steps[i].Kind == CreateSchema {
			end := i
			for end < len(steps) && steps[end].Kind == CreateSchema {
				end++
			}
			if index, err := rc.runSchemaGroup(ctx, target, i, end); err != nil {
				return rc.abort(index, err)
			}
			i = end
			continue
		}

		result := rc.record(steps[i], func() StepResult {
			return rc.runStep(ctx, target, applier, steps[i])
		})
		if result.Status == Failed {
			return rc.abort(i, result.Err)
		}
		i++
	}

	rc.Outcome = Outcome{Completed: true, Index: len(steps)}
	rc.logger.Info().Int("steps", len(steps)).Msg("Provisioning run completed")
	return rc.Outcome
}

func (rc *RunContext) abort(index int, err error) Outcome {
	rc.Outcome = Outcome{Step: rc.Plan.Steps[index], Index: index, Err: err}
	rc.logger.Error().Err(err).Str("step", rc.Outcome.Step.String()).Msg("Provisioning run aborted")
	return rc.Outcome
}

// runSchemaGroup attempts every CreateSchema step in steps[start:end] and
// applies the schema failure policy. On abort it returns the index of the
// first failed step.
func (rc *RunContext) runSchemaGroup(ctx context.Context, target database.Admin, start, end int) (int, error) {
	firstFailed := -1
	var errs []error
	for i := start; i < end; i++ {
		step := rc.Plan.Steps[i]
		result := rc.record(step, func() StepResult {
			return rc.fromErr(step, target.CreateSchema(ctx, rc.Plan.Database, step.Schema))
		})
		if result.Status == Failed {
			if firstFailed < 0 {
				firstFailed = i
			}
			errs = append(errs, result.Err)
		}
	}

	if firstFailed < 0 {
		return 0, nil
	}
	total := end - start
	switch rc.Options.SchemaFailurePolicy {
	case RequireAll:
		return firstFailed, errs[0]
	default:
		if len(errs) == total {
			return firstFailed, fmt.Errorf("none of %d schemas could be created: %w", total, errors.Join(errs...))
		}
		rc.logger.Warn().Int("failed", len(errs)).Int("schemas", total).Msg("Continuing with the schemas that were created")
		return 0, nil
	}
}

func (rc *RunContext) runStep(ctx context.Context, target database.Admin, applier Applier, step Step) StepResult {
	name := rc.Plan.Database
	switch step.Kind {
	case DropChangeTracking:
		return rc.fromErr(step, rc.dropChangeTracking(ctx, target))

	case DropDatabase:
		if !rc.Options.DeleteCreateTarget {
			return success()
		}
		return rc.fromErr(step, target.DropDatabase(ctx, name))

	case CreateDatabase:
		if !rc.Options.DeleteCreateTarget {
			return success()
		}
		return rc.fromErr(step, target.CreateDatabase(ctx, name))

	case ApplyChangelog:
		if err := rc.applyChangelog(ctx, target, applier); err != nil {
			return rc.fromErr(step, err)
		}
		if err := rc.dropChangeTracking(ctx, target); err != nil {
			return rc.fromErr(step, fmt.Errorf("changelog applied but clearing change tracking failed: %w", err))
		}
		return success()

	case CreateSchema:
		return rc.fromErr(step, target.CreateSchema(ctx, name, step.Schema))
	}
	return failure(cloneerr.Newf(cloneerr.Configuration, step.String(), name, "unknown step kind"))
}

func (rc *RunContext) dropChangeTracking(ctx context.Context, target database.Admin) error {
	if !rc.Options.ClearChangeHistory {
		return nil
	}
	return target.DropTrackingTables(ctx, rc.Plan.Database, rc.Options.Tables.Names())
}

func (rc *RunContext) applyChangelog(ctx context.Context, target database.Admin, applier Applier) error {
	if applier == nil {
		return cloneerr.Newf(cloneerr.Configuration, "apply changelog", rc.Plan.Database, "no changelog to apply")
	}
	db, err := target.Connect(ctx, rc.Plan.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return applier.Apply(ctx, db, rc.Options.Tables)
}

// fromErr turns a step error into a result. Errors already classified keep
// their kind; anything else is a destructive step failure.
func (rc *RunContext) fromErr(step Step, err error) StepResult {
	if err == nil {
		return success()
	}
	if cloneerr.KindOf(err) == 0 {
		err = cloneerr.New(cloneerr.DestructiveStep, step.String(), rc.Plan.Database, err)
	}
	return failure(err)
}

// record runs fn and appends its result to the step-invocation log.
func (rc *RunContext) record(step Step, fn func() StepResult) StepResult {
	start := rc.now()
	result := fn()
	duration := rc.now().Sub(start)

	rec := StepRecord{Step: step, Status: result.Status, Start: start, Duration: duration}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	rc.Records = append(rc.Records, rec)
	rc.Options.Metrics.RecordStep(step.Kind.String(), result.Status.String())

	event := rc.logger.Info()
	if result.Status == Failed {
		event = rc.logger.Error().Err(result.Err)
	}
	event.Str("step", step.String()).Dur("duration", duration).Msgf("Step %s", result.Status)
	return result
}
