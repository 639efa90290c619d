package steps

import (
	"context"

	"lockdiag/artifact"
	"lockdiag/collect"
	"lockdiag/internal/archive"
)

// ArchiveStep zips the whole run directory, activity log included, into a
// file next to it. It runs last, under the same isolate-and-log contract as
// every other step; a failed archive never invalidates what is already on
// disk.
type ArchiveStep struct {
	dest string
}

func NewArchiveStep(dest string) *ArchiveStep { return &ArchiveStep{dest: dest} }

func (s *ArchiveStep) Name() string            { return "zip-archive" }
func (s *ArchiveStep) Kind() collect.Kind      { return collect.KindArchive }
func (s *ArchiveStep) MinArtifactBytes() int64 { return artifact.MinExportBytes }

func (s *ArchiveStep) Run(ctx context.Context, rc collect.RunContext) (collect.Result, error) {
	if err := ctx.Err(); err != nil {
		return collect.Result{OutputPath: s.dest}, err
	}
	if err := archive.ZipDir(rc.OutputDir, s.dest); err != nil {
		return collect.Result{OutputPath: s.dest}, err
	}
	return collect.Result{OutputPath: s.dest}, nil
}
