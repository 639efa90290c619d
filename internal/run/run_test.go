package run

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockdiag/collect"
	"lockdiag/internal/profile"
)

const mdmFixture = `<?xml version="1.0" encoding="UTF-8"?>
<MDMEnterpriseDiagnosticsReport>
  <PolicyManager>
    <ConfigSource>
      <Area>
        <PolicyAreaName>BitLocker</PolicyAreaName>
        <RequireDeviceEncryption>1</RequireDeviceEncryption>
      </Area>
      <Area>
        <PolicyAreaName>Firewall</PolicyAreaName>
      </Area>
    </ConfigSource>
  </PolicyManager>
</MDMEnterpriseDiagnosticsReport>`

type fakeCmd struct {
	errs map[string]error
}

func (f *fakeCmd) Run(_ context.Context, name string, _ ...string) ([]byte, int, error) {
	if err := f.errs[name]; err != nil {
		return nil, -1, err
	}
	return []byte(name + " output\n"), 0, nil
}

type fakeEventLog struct {
	present bool
	size    int
}

func (f *fakeEventLog) ChannelExists(context.Context, string) bool { return f.present }

func (f *fakeEventLog) Export(_ context.Context, _, outputPath string) (int, error) {
	b := make([]byte, f.size)
	rand.New(rand.NewSource(3)).Read(b)
	return 0, os.WriteFile(outputPath, b, 0o600)
}

type fakeRegistry struct {
	err error
}

func (f *fakeRegistry) Export(_ context.Context, key, outputPath string) (int, error) {
	if f.err != nil {
		return -1, f.err
	}
	return 0, os.WriteFile(outputPath, []byte("Windows Registry Editor Version 5.00\n["+key+"]\n"), 0o600)
}

type fakeGenerator struct {
	report string
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, outputDir string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(filepath.Join(outputDir, "MDMDiagReport.xml"), []byte(f.report), 0o600)
}

func happyCollaborators() Collaborators {
	return Collaborators{
		Commander: &fakeCmd{},
		EventLog:  &fakeEventLog{present: true, size: 4096},
		Registry:  &fakeRegistry{},
		ReportGen: &fakeGenerator{report: mdmFixture},
	}
}

func activityLog(t *testing.T, outDir string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(outDir, activityLogName))
	require.NoError(t, err)
	return string(b)
}

func TestRunHappyPath(t *testing.T) {
	base := t.TempDir()
	var console bytes.Buffer

	res, err := Run(context.Background(), Options{
		Profile:  profile.Default(),
		BasePath: base,
		Zip:      true,
		MDM:      true,
		Console:  &console,
		Collab:   happyCollaborators(),
	})
	require.NoError(t, err)

	// 2 queries + 3 channels + 2 registry keys + mdm + archive.
	require.Len(t, res.Outcomes, 9)
	assert.Equal(t, 9, res.Succeeded)

	assert.True(t, strings.HasPrefix(filepath.Base(res.OutputDir), "BitLockerLogs-"),
		"output directory %q must carry the family-stamped name", res.OutputDir)
	assert.Equal(t, base, filepath.Dir(res.OutputDir))

	log := activityLog(t, res.OutputDir)
	assert.Equal(t, 9, strings.Count(log, "STEP: "), "one marker line per step")
	assert.Contains(t, log, "Collection complete; steps=9; succeeded=9;")
	assert.Contains(t, console.String(), "Collection complete",
		"console must mirror the activity log")

	// Archive sits next to the run directory, not inside it.
	require.NotEmpty(t, res.ArchivePath)
	assert.Equal(t, base, filepath.Dir(res.ArchivePath))
	assert.Equal(t, res.OutputDir+".zip", res.ArchivePath)

	// Manifest records every outcome.
	mb, err := os.ReadFile(filepath.Join(res.OutputDir, "manifest.json"))
	require.NoError(t, err)
	var m collect.Manifest
	require.NoError(t, json.Unmarshal(mb, &m))
	assert.Equal(t, res.RunID, m.RunID)
	assert.Len(t, m.Steps, 9)

	// MDM extraction found the matching policy area.
	assert.Contains(t, log, "STEP: MDM XML parsing succeeded;")
	assert.Contains(t, log, "count=1")
}

func TestRunWithoutOptionalSteps(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Profile:  profile.Default(),
		BasePath: t.TempDir(),
		Console:  &bytes.Buffer{},
		Collab:   happyCollaborators(),
	})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 7)
	assert.Empty(t, res.ArchivePath)
	assert.Equal(t, 7, strings.Count(activityLog(t, res.OutputDir), "STEP: "))
}

func TestRunStepFailureDoesNotAbort(t *testing.T) {
	collab := happyCollaborators()
	collab.Commander = &fakeCmd{errs: map[string]error{
		"manage-bde": errors.New(`exec: "manage-bde": executable file not found`),
	}}

	res, err := Run(context.Background(), Options{
		Profile:  profile.Default(),
		BasePath: t.TempDir(),
		Console:  &bytes.Buffer{},
		Collab:   collab,
	})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 7)
	assert.Equal(t, collect.StatusFailed, res.Outcomes[0].Status)
	assert.Equal(t, collect.ReasonException, res.Outcomes[0].Reason)
	for _, o := range res.Outcomes[1:] {
		assert.Equal(t, collect.StatusSuccess, o.Status, "step %s must still run", o.Name)
	}

	log := activityLog(t, res.OutputDir)
	assert.Contains(t, log, "STEP: bitlocker-status export failed; reason='exception';")
	assert.Equal(t, 7, strings.Count(log, "STEP: "))
}

func TestRunAllFailuresStillCompletes(t *testing.T) {
	boom := errors.New("access denied")
	collab := Collaborators{
		Commander: &fakeCmd{errs: map[string]error{"manage-bde": boom, "systeminfo": boom}},
		EventLog:  &fakeEventLog{present: false},
		Registry:  &fakeRegistry{err: boom},
		ReportGen: &fakeGenerator{err: boom},
	}

	res, err := Run(context.Background(), Options{
		Profile:  profile.Default(),
		BasePath: t.TempDir(),
		MDM:      true,
		Console:  &bytes.Buffer{},
		Collab:   collab,
	})
	require.NoError(t, err, "a run with zero successful steps still completes")

	assert.Equal(t, 0, res.Succeeded)
	require.Len(t, res.Outcomes, 8)

	log := activityLog(t, res.OutputDir)
	assert.Contains(t, log, "Collection complete; steps=8; succeeded=0;")
	assert.Contains(t, log, "reason='no channel succeeded'")
	assert.Contains(t, log, "attempted='Microsoft-Windows-BitLocker/BitLocker Management, Microsoft-Windows-BitLocker/Operational'")
}

func TestRunDistinctDirsWithinSameMinute(t *testing.T) {
	base := t.TempDir()
	stamp := time.Date(2026, 8, 29, 14, 5, 0, 0, time.UTC)
	opts := func() Options {
		return Options{
			Profile:  profile.Default(),
			BasePath: base,
			Console:  &bytes.Buffer{},
			Collab:   happyCollaborators(),
			Now:      func() time.Time { return stamp },
		}
	}

	first, err := Run(context.Background(), opts())
	require.NoError(t, err)
	second, err := Run(context.Background(), opts())
	require.NoError(t, err)

	assert.NotEqual(t, first.OutputDir, second.OutputDir,
		"rapid repeated invocations must never share an output root")
	assert.Equal(t, filepath.Join(base, "BitLockerLogs-29-08-2026-14-05"), first.OutputDir)
	assert.True(t, strings.HasPrefix(filepath.Base(second.OutputDir), "BitLockerLogs-29-08-2026-14-05-"))

	for _, dir := range []string{first.OutputDir, second.OutputDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestRunUnwritableBaseAborts(t *testing.T) {
	base := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(base, []byte("x"), 0o600))

	_, err := Run(context.Background(), Options{
		Profile:  profile.Default(),
		BasePath: base,
		Console:  &bytes.Buffer{},
		Collab:   happyCollaborators(),
	})
	require.Error(t, err, "initialization is the only phase allowed to abort the run")
	assert.Contains(t, err.Error(), "create output directory")
}

func TestRunArchiveFailureDoesNotInvalidateRun(t *testing.T) {
	base := t.TempDir()
	stamp := time.Date(2026, 8, 29, 14, 5, 0, 0, time.UTC)

	// A directory squatting on the archive destination makes the zip step
	// fail without touching anything already collected.
	require.NoError(t, os.MkdirAll(filepath.Join(base, "BitLockerLogs-29-08-2026-14-05.zip"), 0o755))

	res, err := Run(context.Background(), Options{
		Profile:  profile.Default(),
		BasePath: base,
		Zip:      true,
		Console:  &bytes.Buffer{},
		Collab:   happyCollaborators(),
		Now:      func() time.Time { return stamp },
	})
	require.NoError(t, err)

	last := res.Outcomes[len(res.Outcomes)-1]
	assert.Equal(t, collect.KindArchive, last.Kind)
	assert.Equal(t, collect.StatusFailed, last.Status)
	assert.Empty(t, res.ArchivePath)
	assert.Equal(t, 7, res.Succeeded, "collection steps are unaffected by the archive failure")
	assert.Contains(t, activityLog(t, res.OutputDir), "STEP: ZIP archive failed;")

	// Collected artifacts and the log remain on disk.
	_, statErr := os.Stat(filepath.Join(res.OutputDir, activityLogName))
	assert.NoError(t, statErr)
}
