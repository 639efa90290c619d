// Package steps executes collection operations behind a per-step error
// boundary. A step's failure, including a panic inside its action, is
// converted into an Outcome and one activity-log marker line; it never
// reaches the orchestrator as a Go error.
package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lockdiag/artifact"
	"lockdiag/collect"
	"lockdiag/internal/activitylog"
)

type Runner struct {
	Activity *activitylog.Log
	Logger   *zap.Logger
}

// Run executes one step and finalizes its outcome. Exactly one STEP marker
// line is appended per call, whatever happens inside the action.
func (r *Runner) Run(ctx context.Context, rc collect.RunContext, step collect.Step) (o collect.Outcome) {
	o = collect.Outcome{Name: step.Name(), Kind: step.Kind()}

	defer func() {
		if p := recover(); p != nil {
			o.Status = collect.StatusFailed
			o.Reason = collect.ReasonException
			o.Error = fmt.Sprintf("panic: %v", p)
			r.failLine(step.Kind(), &o)
			r.Logger.Error("step panicked",
				zap.String("step", o.Name), zap.String("panic", o.Error))
		}
		o.FinishedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}()

	res, err := step.Run(ctx, rc)
	o.OutputPath = res.OutputPath
	o.Channel = res.Channel
	o.ExitCode = res.ExitCode
	o.Count = res.Count
	o.Attempted = res.Attempted
	o.Exists, o.SizeOK = artifact.Validate(res.OutputPath, step.MinArtifactBytes())

	if err != nil {
		o.Status = collect.StatusFailed
		var re *collect.ReasonError
		if errors.As(err, &re) {
			o.Reason = re.Reason
			if len(re.Attempted) > 0 {
				o.Attempted = re.Attempted
			}
			if re.Err != nil {
				o.Error = re.Err.Error()
			}
		} else {
			o.Reason = collect.ReasonException
			o.Error = err.Error()
		}
		r.failLine(step.Kind(), &o)
		r.Logger.Warn("step failed",
			zap.String("step", o.Name), zap.String("reason", string(o.Reason)), zap.String("error", o.Error))
		return o
	}

	if res.ExitCode != 0 {
		o.Status = collect.StatusFailed
		o.Reason = collect.ReasonExportFailed
		r.failLine(step.Kind(), &o)
		r.Logger.Warn("step failed",
			zap.String("step", o.Name), zap.Int("exit", o.ExitCode))
		return o
	}
	if !o.Exists || !o.SizeOK {
		o.Status = collect.StatusFailed
		o.Reason = collect.ReasonEmptyOrMissing
		r.failLine(step.Kind(), &o)
		r.Logger.Warn("step produced no valid artifact",
			zap.String("step", o.Name), zap.String("file", o.OutputPath))
		return o
	}

	o.Status = collect.StatusSuccess
	if sha, size, herr := artifact.SHA256File(o.OutputPath); herr == nil {
		o.SHA256 = sha
		o.SizeBytes = size
	}

	switch step.Kind() {
	case collect.KindArchive:
		r.Activity.ArchiveSucceeded(o.OutputPath)
	case collect.KindReportExtraction:
		r.Activity.ReportSucceeded(o.OutputPath, o.Count)
	default:
		r.Activity.ExportSucceeded(o.Name, o.Channel, o.OutputPath)
	}
	r.Logger.Info("step succeeded",
		zap.String("step", o.Name), zap.String("output", o.OutputPath), zap.Int64("bytes", o.SizeBytes))
	return o
}

func (r *Runner) failLine(kind collect.Kind, o *collect.Outcome) {
	switch kind {
	case collect.KindArchive:
		r.Activity.ArchiveFailed(string(o.Reason), o.OutputPath)
	case collect.KindReportExtraction:
		r.Activity.ReportFailed(string(o.Reason), o.OutputPath)
	default:
		switch o.Reason {
		case collect.ReasonException:
			r.Activity.ExportException(o.Name, o.OutputPath, o.Error)
		case collect.ReasonNoChannel:
			r.Activity.ExportExhausted(o.Name, o.Attempted, o.OutputPath)
		default:
			r.Activity.ExportFailed(o.Name, string(o.Reason), o.ExitCode, o.Exists, o.SizeOK, o.OutputPath)
		}
	}
}
