package provision

import "fmt"

// Status is the result of one step.
type Status int

const (
	Succeeded Status = iota + 1
	Failed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepResult is what running a step produced. Err is set when Status is
// Failed.
type StepResult struct {
	Status Status
	Err    error
}

func success() StepResult {
	return StepResult{Status: Succeeded}
}

func failure(err error) StepResult {
	return StepResult{Status: Failed, Err: err}
}

// Outcome is the result of a whole run: either every step succeeded, or the
// run stopped at Step (index Index in the plan) because of Err.
type Outcome struct {
	Completed bool
	Step      Step
	Index     int
	Err       error
}

// AbortedAt returns the step the run stopped at, and false for a
// completed run.
func (o Outcome) AbortedAt() (Step, bool) {
	return o.Step, !o.Completed
}

func (o Outcome) String() string {
	if o.Completed {
		return "completed"
	}
	return fmt.Sprintf("aborted at step %d %s: %v", o.Index+1, o.Step, o.Err)
}
