package steps

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"lockdiag/artifact"
	"lockdiag/collect"
	"lockdiag/internal/profile"
	"lockdiag/internal/winutil"
	"lockdiag/report"
)

// QueryStep runs one external status command and captures its combined
// output as a text artifact. Output is written even on a non-zero exit so
// the tool's own error text is preserved for diagnosis.
type QueryStep struct {
	spec profile.QuerySpec
	cmd  winutil.Commander
}

func NewQueryStep(spec profile.QuerySpec, cmd winutil.Commander) *QueryStep {
	return &QueryStep{spec: spec, cmd: cmd}
}

func (s *QueryStep) Name() string            { return s.spec.Name }
func (s *QueryStep) Kind() collect.Kind      { return collect.KindFileQuery }
func (s *QueryStep) MinArtifactBytes() int64 { return artifact.MinTextBytes }

func (s *QueryStep) Run(ctx context.Context, rc collect.RunContext) (collect.Result, error) {
	path := filepath.Join(rc.OutputDir, s.spec.Output)

	out, code, err := s.cmd.Run(ctx, s.spec.Command, s.spec.Args...)
	if err != nil {
		return collect.Result{OutputPath: path}, fmt.Errorf("run %s: %w", s.spec.Command, err)
	}
	if werr := artifact.WriteFileAtomic(path, out, 0o600); werr != nil {
		return collect.Result{OutputPath: path, ExitCode: code}, fmt.Errorf("write %s: %w", path, werr)
	}
	return collect.Result{OutputPath: path, Channel: s.spec.Command, ExitCode: code}, nil
}

// RegistryStep exports one registry key recursively.
type RegistryStep struct {
	spec profile.RegistrySpec
	reg  winutil.RegistryExporter
}

func NewRegistryStep(spec profile.RegistrySpec, reg winutil.RegistryExporter) *RegistryStep {
	return &RegistryStep{spec: spec, reg: reg}
}

func (s *RegistryStep) Name() string            { return s.spec.Name }
func (s *RegistryStep) Kind() collect.Kind      { return collect.KindRegistryExport }
func (s *RegistryStep) MinArtifactBytes() int64 { return artifact.MinTextBytes }

func (s *RegistryStep) Run(ctx context.Context, rc collect.RunContext) (collect.Result, error) {
	path := filepath.Join(rc.OutputDir, s.spec.Output)

	code, err := s.reg.Export(ctx, s.spec.Key, path)
	if err != nil {
		return collect.Result{OutputPath: path}, fmt.Errorf("export %s: %w", s.spec.Key, err)
	}
	return collect.Result{OutputPath: path, Channel: s.spec.Key, ExitCode: code}, nil
}

// ChannelStep exports one logical event log through an ordered candidate
// fallback.
type ChannelStep struct {
	spec     profile.ChannelSpec
	fallback *ChannelFallback
}

func NewChannelStep(spec profile.ChannelSpec, fallback *ChannelFallback) *ChannelStep {
	return &ChannelStep{spec: spec, fallback: fallback}
}

func (s *ChannelStep) Name() string            { return s.spec.Name }
func (s *ChannelStep) Kind() collect.Kind      { return collect.KindChannelExport }
func (s *ChannelStep) MinArtifactBytes() int64 { return artifact.MinExportBytes }

func (s *ChannelStep) Run(ctx context.Context, rc collect.RunContext) (collect.Result, error) {
	path := filepath.Join(rc.OutputDir, s.spec.Output)
	return s.fallback.ResolveAndExport(ctx, s.spec.Candidates, path)
}

// ReportStep invokes the MDM diagnostics generator and filters its XML
// report down to the nodes matching the profile's selector. Missing report,
// malformed report, and a report with no matching nodes are distinct
// failures because each needs different operator remediation.
type ReportStep struct {
	spec profile.ReportSpec
	gen  winutil.ReportGenerator
}

func NewReportStep(spec profile.ReportSpec, gen winutil.ReportGenerator) *ReportStep {
	return &ReportStep{spec: spec, gen: gen}
}

func (s *ReportStep) Name() string            { return "mdm-report" }
func (s *ReportStep) Kind() collect.Kind      { return collect.KindReportExtraction }
func (s *ReportStep) MinArtifactBytes() int64 { return artifact.MinTextBytes }

func (s *ReportStep) Run(ctx context.Context, rc collect.RunContext) (collect.Result, error) {
	dst := filepath.Join(rc.OutputDir, s.spec.Output)

	if err := s.gen.Generate(ctx, rc.OutputDir); err != nil {
		return collect.Result{OutputPath: dst}, fmt.Errorf("generate report: %w", err)
	}

	src := filepath.Join(rc.OutputDir, s.spec.Source)
	count, err := report.ExtractFile(src, dst, report.Selector{
		NodeTag: s.spec.NodeTag,
		Field:   s.spec.Field,
		Value:   s.spec.Value,
		RootTag: s.spec.RootTag,
	})
	if err != nil {
		var pe *report.ParseError
		switch {
		case errors.Is(err, report.ErrSourceMissing):
			return collect.Result{OutputPath: dst}, &collect.ReasonError{Reason: collect.ReasonSourceNotFound, Err: err}
		case errors.As(err, &pe):
			return collect.Result{OutputPath: dst}, &collect.ReasonError{Reason: collect.ReasonParseFailure, Err: err}
		default:
			return collect.Result{OutputPath: dst}, err
		}
	}
	if count == 0 {
		return collect.Result{OutputPath: dst}, &collect.ReasonError{Reason: collect.ReasonNoMatches}
	}
	return collect.Result{OutputPath: dst, Channel: s.spec.Source, Count: count}, nil
}
