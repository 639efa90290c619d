// Package winutil wraps the external tools the collector shells out to.
// Every tool sits behind a small interface so the orchestrator can be tested
// with fakes; nothing above this package touches os/exec directly.
package winutil

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Commander runs one external command to completion, capturing combined
// output. A non-zero exit from a command that ran is reported through the
// exit code with a nil error; only failures to start (tool missing, bad
// path) surface as errors.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) (output []byte, exitCode int, err error)
}

type ExecCommander struct{}

func (ExecCommander) Run(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return out.Bytes(), ee.ExitCode(), nil
	}
	if err != nil {
		return nil, -1, err
	}
	return out.Bytes(), 0, nil
}
