// Package provision drives a target database through an ordered plan of
// provisioning steps: clearing change tracking, dropping and recreating the
// database, creating schemas and replaying a changelog.
package provision

import (
	"fmt"
	"strings"
)

// Kind identifies what a Step does.
type Kind int

const (
	// DropChangeTracking drops the log and lock tables of the target.
	DropChangeTracking Kind = iota + 1
	// DropDatabase drops the target database if it exists.
	DropDatabase
	// CreateDatabase creates the target database if it is absent.
	CreateDatabase
	// CreateSchema creates Step.Schema inside the target if it is absent.
	CreateSchema
	// ApplyChangelog replays the changelog and then clears change tracking.
	ApplyChangelog
)

func (k Kind) String() string {
	switch k {
	case DropChangeTracking:
		return "DropChangeTracking"
	case DropDatabase:
		return "DropDatabase"
	case CreateDatabase:
		return "CreateDatabase"
	case CreateSchema:
		return "CreateSchema"
	case ApplyChangelog:
		return "ApplyChangelog"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Step is one unit of a Plan. Schema is only set for CreateSchema.
type Step struct {
	Kind   Kind
	Schema string
}

func (s Step) String() string {
	if s.Kind == CreateSchema {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Schema)
	}
	return s.Kind.String()
}

// Plan is the ordered list of steps run against Database.
type Plan struct {
	Database string
	Steps    []Step
}

func (p Plan) String() string {
	names := make([]string, len(p.Steps))
	for i, step := range p.Steps {
		names[i] = step.String()
	}
	return fmt.Sprintf("%s: %s", p.Database, strings.Join(names, ", "))
}

// DestructiveClone drops and recreates database before replaying the
// changelog into it.
func DestructiveClone(database string, schemas ...string) Plan {
	steps := []Step{{Kind: DropChangeTracking}, {Kind: DropDatabase}, {Kind: CreateDatabase}}
	steps = append(steps, schemaSteps(schemas)...)
	steps = append(steps, Step{Kind: ApplyChangelog})
	return Plan{Database: database, Steps: steps}
}

// CreateOnly creates database if needed and replays the changelog, keeping
// whatever the database already holds.
func CreateOnly(database string, schemas ...string) Plan {
	steps := []Step{{Kind: DropChangeTracking}, {Kind: CreateDatabase}}
	steps = append(steps, schemaSteps(schemas)...)
	steps = append(steps, Step{Kind: ApplyChangelog})
	return Plan{Database: database, Steps: steps}
}

func schemaSteps(schemas []string) []Step {
	var steps []Step
	for _, schema := range schemas {
		if schema = strings.TrimSpace(schema); schema != "" {
			steps = append(steps, Step{Kind: CreateSchema, Schema: schema})
		}
	}
	return steps
}
