package provision

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report is the JSON form of a finished run
type Report struct {
	Version   string         `json:"version"`
	Database  string         `json:"database"`
	Completed bool           `json:"completed"`
	AbortedAt string         `json:"aborted_at,omitempty"` // Step the run stopped at
	Error     string         `json:"error,omitempty"`
	Steps     []ReportRecord `json:"steps"`
}

// ReportRecord is one step invocation
type ReportRecord struct {
	Step       string    `json:"step"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Report summarizes the run for persisting
func (rc *RunContext) Report() Report {
	r := Report{
		Version:   "1",
		Database:  rc.Plan.Database,
		Completed: rc.Outcome.Completed,
		Steps:     make([]ReportRecord, 0, len(rc.Records)),
	}
	if step, aborted := rc.Outcome.AbortedAt(); aborted {
		r.AbortedAt = step.String()
		if rc.Outcome.Err != nil {
			r.Error = rc.Outcome.Err.Error()
		}
	}
	for _, rec := range rc.Records {
		r.Steps = append(r.Steps, ReportRecord{
			Step:       rec.Step.String(),
			Status:     rec.Status.String(),
			Error:      rec.Error,
			StartedAt:  rec.Start,
			DurationMS: rec.Duration.Milliseconds(),
		})
	}
	return r
}

// Save writes the report to path
func (r Report) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	// Write atomically (write to temp file, then rename)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to save report file: %w", err)
	}
	return nil
}

// LoadReport reads a report written by Save
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}
	return &r, nil
}
