// Package run owns one collection run: a fresh timestamped output directory,
// the activity log, a fixed sequence of steps, the optional archive, and the
// manifest. Only directory creation may abort the run; every step failure is
// isolated and the run always reaches its summary line.
package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lockdiag/artifact"
	"lockdiag/collect"
	"lockdiag/internal/activitylog"
	"lockdiag/internal/profile"
	"lockdiag/internal/steps"
	"lockdiag/internal/winutil"
)

const activityLogName = "CollectionActivity.log"

// Collaborators are the external tools a run shells out to, injectable for
// tests.
type Collaborators struct {
	EventLog  winutil.EventLogExporter
	Registry  winutil.RegistryExporter
	Commander winutil.Commander
	ReportGen winutil.ReportGenerator
}

func DefaultCollaborators() Collaborators {
	cmd := winutil.ExecCommander{}
	return Collaborators{
		EventLog:  winutil.WevtutilExporter{Cmd: cmd},
		Registry:  winutil.RegExporter{Cmd: cmd},
		Commander: cmd,
		ReportGen: winutil.MdmDiagnosticsGenerator{Cmd: cmd},
	}
}

type Options struct {
	Profile  profile.Profile
	BasePath string
	UseTemp  bool
	Zip      bool
	MDM      bool

	// Console mirrors every activity-log line; defaults to os.Stdout.
	Console io.Writer
	Logger  *zap.Logger
	Now     func() time.Time
	Collab  Collaborators
}

type Result struct {
	RunID       string
	OutputDir   string
	ArchivePath string
	Outcomes    []collect.Outcome
	Succeeded   int
}

// Run executes one collection run to completion. The returned error is
// non-nil only for initialization faults (unresolvable or unwritable output
// root, manifest write failure); step failures are reported through
// Result.Outcomes and the activity log.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Collab == (Collaborators{}) {
		opts.Collab = DefaultCollaborators()
	}

	started := opts.Now()
	outDir, err := createRunDir(opts, started)
	if err != nil {
		return Result{}, err
	}

	alog, err := activitylog.Open(filepath.Join(outDir, activityLogName), opts.Console)
	if err != nil {
		return Result{}, fmt.Errorf("open activity log: %w", err)
	}
	defer alog.Close()

	runID := uuid.NewString()
	rc := collect.RunContext{RunID: runID, Family: opts.Profile.Family, OutputDir: outDir}
	alog.Append(activitylog.Info, fmt.Sprintf("%s diagnostic collection started; run='%s'; output='%s'",
		rc.Family, runID, outDir))
	opts.Logger.Info("collection started",
		zap.String("run", runID), zap.String("output", outDir))

	runner := &steps.Runner{Activity: alog, Logger: opts.Logger}

	res := Result{RunID: runID, OutputDir: outDir}
	for _, st := range buildSteps(opts, alog) {
		res.Outcomes = append(res.Outcomes, runner.Run(ctx, rc, st))
	}

	manifest := collect.Manifest{
		RunID:      runID,
		Family:     rc.Family,
		StartedAt:  started.UTC().Format(time.RFC3339Nano),
		FinishedAt: opts.Now().UTC().Format(time.RFC3339Nano),
		OutputDir:  outDir,
		Steps:      res.Outcomes,
	}
	if err := collect.WriteManifest(outDir, manifest); err != nil {
		return res, fmt.Errorf("write manifest: %w", err)
	}

	if opts.Zip {
		dest := outDir + ".zip"
		outcome := runner.Run(ctx, rc, steps.NewArchiveStep(dest))
		res.Outcomes = append(res.Outcomes, outcome)
		if outcome.Status == collect.StatusSuccess {
			res.ArchivePath = dest
		}
		// The archived copy of the manifest predates the archive step;
		// the on-disk one records it.
		manifest.Steps = res.Outcomes
		manifest.FinishedAt = opts.Now().UTC().Format(time.RFC3339Nano)
		if err := collect.WriteManifest(outDir, manifest); err != nil {
			return res, fmt.Errorf("write manifest: %w", err)
		}
	}

	for _, o := range res.Outcomes {
		if o.Status == collect.StatusSuccess {
			res.Succeeded++
		}
	}
	alog.Append(activitylog.Info, fmt.Sprintf("Collection complete; steps=%d; succeeded=%d; output='%s'",
		len(res.Outcomes), res.Succeeded, outDir))
	opts.Logger.Info("collection complete",
		zap.Int("steps", len(res.Outcomes)), zap.Int("succeeded", res.Succeeded), zap.String("output", outDir))
	return res, nil
}

// createRunDir resolves the base path and creates a fresh run directory named
// <Family>Logs-DD-MM-YYYY-HH-MM under it. The minute-granularity name is kept
// byte-exact for grep tooling; if a directory from an earlier invocation in
// the same minute exists, a short unique suffix is appended.
func createRunDir(opts Options, started time.Time) (string, error) {
	base, err := resolveBase(opts)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%sLogs-%s", opts.Profile.Family, started.Format("02-01-2006-15-04"))
	outDir := filepath.Join(base, name)
	if _, serr := os.Stat(outDir); serr == nil {
		outDir = outDir + "-" + uuid.NewString()[:8]
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return outDir, nil
}

func resolveBase(opts Options) (string, error) {
	if opts.BasePath != "" {
		return opts.BasePath, nil
	}
	if opts.UseTemp {
		return os.TempDir(), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve output base: %w", err)
	}
	return filepath.Join(home, "Documents"), nil
}

// buildSteps assembles the fixed step sequence from the profile: status
// queries, event-log channel exports, registry exports, then the optional
// MDM report extraction. Order matters only for log readability; the steps
// are independent.
func buildSteps(opts Options, alog *activitylog.Log) []collect.Step {
	var out []collect.Step
	for _, q := range opts.Profile.Queries {
		out = append(out, steps.NewQueryStep(q, opts.Collab.Commander))
	}

	fallback := &steps.ChannelFallback{
		Exporter: opts.Collab.EventLog,
		Activity: alog,
		Logger:   opts.Logger,
		MinBytes: artifact.MinExportBytes,
	}
	for _, c := range opts.Profile.Channels {
		out = append(out, steps.NewChannelStep(c, fallback))
	}

	for _, r := range opts.Profile.RegistryKeys {
		out = append(out, steps.NewRegistryStep(r, opts.Collab.Registry))
	}

	if opts.MDM {
		out = append(out, steps.NewReportStep(opts.Profile.Report, opts.Collab.ReportGen))
	}
	return out
}
