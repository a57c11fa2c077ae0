package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nacplan/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Planned 42 circuits (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// stageReporter forwards pipeline stage events to a spinner and logs stage
// timings at debug level.
type stageReporter struct {
	observability.NoopPipelineHooks
	spinner *Spinner
	logger  *log.Logger
}

func (r *stageReporter) OnStageStart(_ context.Context, stage string) {
	if r.spinner != nil {
		r.spinner.SetMessage("Planning: " + stage + "...")
	}
}

func (r *stageReporter) OnStageComplete(_ context.Context, stage string, d time.Duration, err error) {
	if err != nil {
		r.logger.Debug("stage failed", "stage", stage, "error", err)
		return
	}
	r.logger.Debug("stage done", "stage", stage, "duration", d.Round(time.Microsecond))
}

// watchStages registers a stageReporter for the duration of a command and
// returns a function that restores the previous hooks.
func watchStages(s *Spinner, l *log.Logger) func() {
	prev := observability.Pipeline()
	observability.SetPipelineHooks(&stageReporter{spinner: s, logger: l})
	return func() { observability.SetPipelineHooks(prev) }
}
