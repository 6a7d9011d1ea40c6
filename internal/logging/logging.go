// Package logging wires structured console output alongside a rotating
// on-disk log file, the same two-sink shape the teacher's own log.go
// split between a terminal writer and a size-rolled file: charmbracelet/log
// for structured, leveled output and github.com/jrick/logrotate/rotator for
// the on-disk roll, which is by size. lestrrat-go/strftime puts the date on
// which New was called into the file name; the file is not switched when
// the date changes.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/jrick/logrotate/rotator"
	"github.com/lestrrat-go/strftime"
)

// DefaultMaxRollKB is the rotator's size threshold before it starts a new
// file, matching the conservative default the teacher used for its own
// text logs.
const DefaultMaxRollKB = 10 * 1024

// Logger is a charmbracelet/log.Logger writing to both stderr and a
// rotating file.
type Logger struct {
	*charmlog.Logger
	rotator *rotator.Rotator
}

// New opens (creating dir if needed) a dated log file under dir named
// prefix-YYYYMMDD.log and returns a Logger that writes every record to
// both stderr and that file.
func New(dir, prefix string, level charmlog.Level) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}

	namePattern, err := strftime.New(prefix + "-%Y%m%d.log")
	if err != nil {
		return nil, fmt.Errorf("logging: compile filename pattern: %w", err)
	}
	var name strings.Builder
	if err := namePattern.Format(&name, time.Now()); err != nil {
		return nil, fmt.Errorf("logging: format filename: %w", err)
	}

	rot, err := rotator.New(filepath.Join(dir, name.String()), DefaultMaxRollKB, false, 3)
	if err != nil {
		return nil, fmt.Errorf("logging: open rotator: %w", err)
	}

	out := io.MultiWriter(os.Stderr, rot)
	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
		Level:           level,
	})

	return &Logger{Logger: l, rotator: rot}, nil
}

// Close flushes and releases the underlying rotator.
func (l *Logger) Close() error {
	return l.rotator.Close()
}
