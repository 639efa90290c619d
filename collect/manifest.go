package collect

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Manifest is the structured twin of the activity log: one entry per step,
// written once when the run completes.
type Manifest struct {
	RunID      string    `json:"run_id"`
	Family     string    `json:"family"`
	StartedAt  string    `json:"started_at"`
	FinishedAt string    `json:"finished_at"`
	OutputDir  string    `json:"output_dir"`
	Steps      []Outcome `json:"steps"`
}

func WriteManifest(outputDir string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "manifest.json"), b, 0o600)
}
