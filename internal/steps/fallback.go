package steps

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lockdiag/artifact"
	"lockdiag/collect"
	"lockdiag/internal/activitylog"
	"lockdiag/internal/winutil"
)

// ChannelFallback exports one logical event log from an ordered list of
// equivalent channel names. Channels get renamed across OS builds, so an
// absent candidate is skipped with a warning rather than counted as a
// failure; the first candidate that yields a valid artifact wins and later
// ones are never tried.
type ChannelFallback struct {
	Exporter winutil.EventLogExporter
	Activity *activitylog.Log
	Logger   *zap.Logger
	MinBytes int64
}

func (f *ChannelFallback) ResolveAndExport(ctx context.Context, candidates []string, outputPath string) (collect.Result, error) {
	attempted := make([]string, 0, len(candidates))
	for _, ch := range candidates {
		attempted = append(attempted, ch)

		if !f.Exporter.ChannelExists(ctx, ch) {
			f.Activity.Append(activitylog.Warn, fmt.Sprintf("channel '%s' not present; skipping", ch))
			f.Logger.Warn("channel not present", zap.String("channel", ch))
			continue
		}

		code, err := f.Exporter.Export(ctx, ch, outputPath)
		if err != nil {
			f.Logger.Warn("channel export did not run",
				zap.String("channel", ch), zap.Error(err))
			continue
		}

		exists, sizeOK := artifact.Validate(outputPath, f.MinBytes)
		if code == 0 && exists && sizeOK {
			return collect.Result{
				OutputPath: outputPath,
				Channel:    ch,
				ExitCode:   code,
				Attempted:  attempted,
			}, nil
		}
		f.Logger.Warn("channel export produced no valid artifact",
			zap.String("channel", ch), zap.Int("exit", code),
			zap.Bool("exists", exists), zap.Bool("sizeOK", sizeOK))
	}

	return collect.Result{OutputPath: outputPath, Attempted: attempted},
		&collect.ReasonError{Reason: collect.ReasonNoChannel, Attempted: attempted}
}
