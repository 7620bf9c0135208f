package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Status is the outcome of one analyzer in a run
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped" // Not started because an earlier analyzer aborted the run
)

type AnalyzerResult struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Command     string        `json:"command"`
	LogFile     string        `json:"log_file"`
	Status      Status        `json:"status"`
	ExitCode    int           `json:"exit_code"`
	PID         int           `json:"pid,omitempty"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	Duration    time.Duration `json:"duration"`
	LogSize     int64         `json:"log_size"`
	Error       string        `json:"error,omitempty"`

	Err error `json:"-"`
}

// RunReport summarizes one Monitor run. It does not interpret log contents.
type RunReport struct {
	ID         string           `json:"id"`
	LogDir     string           `json:"log_dir"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Results    []AnalyzerResult `json:"results"`
}

func NewRunReport(logDir string) *RunReport {
	return &RunReport{
		ID:        uuid.NewString(),
		LogDir:    logDir,
		StartedAt: time.Now(),
	}
}

func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
}

func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *RunReport) count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

func (r *RunReport) Succeeded() int { return r.count(StatusSucceeded) }
func (r *RunReport) Failed() int    { return r.count(StatusFailed) }
func (r *RunReport) Skipped() int   { return r.count(StatusSkipped) }

// OK reports whether every analyzer succeeded
func (r *RunReport) OK() bool {
	return r.Succeeded() == len(r.Results)
}

// Summary renders a short human readable table of the run
func (r *RunReport) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s finished in %s: %d succeeded, %d failed, %d skipped\n",
		r.ID, r.Duration().Round(time.Millisecond), r.Succeeded(), r.Failed(), r.Skipped())

	width := 0
	for _, res := range r.Results {
		if len(res.Name) > width {
			width = len(res.Name)
		}
	}

	for _, res := range r.Results {
		if res.Status == StatusSkipped {
			fmt.Fprintf(&sb, "  %-9s %-*s\n", "skipped", width, res.Name)
			continue
		}
		fmt.Fprintf(&sb, "  %-9s %-*s  exit %-3d %8s  %8s  %s\n",
			res.Status, width, res.Name, res.ExitCode,
			res.Duration.Round(time.Millisecond),
			humanize.Bytes(uint64(res.LogSize)),
			filepath.Join(r.LogDir, res.LogFile))
		if res.Error != "" {
			fmt.Fprintf(&sb, "  %-9s %-*s  %s\n", "", width, "", res.Error)
		}
	}
	return sb.String()
}
