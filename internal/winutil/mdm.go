package winutil

import "context"

// ReportGenerator produces the MDM diagnostic report files into a directory.
// Its output schema is an unversioned external dependency; the collector owns
// only the filtering of what it writes.
type ReportGenerator interface {
	Generate(ctx context.Context, outputDir string) error
}

// MdmDiagnosticsGenerator drives MdmDiagnosticsTool.exe.
type MdmDiagnosticsGenerator struct {
	Cmd Commander
}

func (g MdmDiagnosticsGenerator) Generate(ctx context.Context, outputDir string) error {
	_, _, err := g.Cmd.Run(ctx, "MdmDiagnosticsTool", "-out", outputDir)
	return err
}
