// Package activitylog writes the per-run activity log. The log is the
// primary forensic artifact of a run and its "STEP:" marker lines are an
// external contract consumed by triage tooling, so every line is flushed to
// disk as soon as it is appended and the marker text is fixed.
package activitylog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

type Level string

const (
	Info  Level = "INFO"
	Warn  Level = "WARN"
	Error Level = "ERROR"
)

const timeLayout = "2006-01-02 15:04:05"

// Log is a single-writer, append-only line log. Lines appear in exactly the
// order Append is called; each line is mirrored to the console writer.
type Log struct {
	f      *os.File
	mirror io.Writer
	now    func() time.Time
}

// Open creates or appends to the log file at path. mirror receives a copy of
// every line; pass nil to disable mirroring.
func Open(path string, mirror io.Writer) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &Log{f: f, mirror: mirror, now: time.Now}, nil
}

func (l *Log) Close() error { return l.f.Close() }

// Append writes one timestamped line and syncs it to disk. Write errors are
// swallowed: a failing log must not take the run down with it.
func (l *Log) Append(level Level, msg string) {
	line := fmt.Sprintf("%s %-5s %s\n", l.now().Format(timeLayout), level, msg)
	_, _ = l.f.WriteString(line)
	_ = l.f.Sync()
	if l.mirror != nil {
		_, _ = io.WriteString(l.mirror, line)
	}
}

// Marker lines. The exact text below is grepped by downstream triage tooling
// and must not change.

func (l *Log) ExportSucceeded(op, channel, output string) {
	l.Append(Info, fmt.Sprintf("STEP: %s export succeeded; channel='%s'; output='%s'", op, channel, output))
}

func (l *Log) ExportFailed(op, reason string, exit int, exists, sizeOK bool, file string) {
	l.Append(Error, fmt.Sprintf("STEP: %s export failed; reason='%s'; exit=%d; exists=%t; sizeOK=%t; file='%s'",
		op, reason, exit, exists, sizeOK, file))
}

func (l *Log) ExportException(op, file, errMsg string) {
	l.Append(Error, fmt.Sprintf("STEP: %s export failed; reason='exception'; file='%s'; error='%s'", op, file, errMsg))
}

func (l *Log) ExportExhausted(op string, attempted []string, file string) {
	l.Append(Error, fmt.Sprintf("STEP: %s export failed; reason='no channel succeeded'; attempted='%s'; file='%s'",
		op, strings.Join(attempted, ", "), file))
}

func (l *Log) ArchiveSucceeded(output string) {
	l.Append(Info, fmt.Sprintf("STEP: ZIP archive succeeded; output='%s'", output))
}

func (l *Log) ArchiveFailed(reason, file string) {
	l.Append(Error, fmt.Sprintf("STEP: ZIP archive failed; reason='%s'; file='%s'", reason, file))
}

func (l *Log) ReportSucceeded(output string, count int) {
	l.Append(Info, fmt.Sprintf("STEP: MDM XML parsing succeeded; output='%s'; count=%d", output, count))
}

func (l *Log) ReportFailed(reason, file string) {
	l.Append(Error, fmt.Sprintf("STEP: MDM XML parsing failed; reason='%s'; file='%s'", reason, file))
}
