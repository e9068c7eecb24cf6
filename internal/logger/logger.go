// Package logger configures logrus for the server: INFO and WARN go to
// stdout, ERROR and above to stderr, optionally everything to a file too.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options selects the level, format and optional file of a logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Path   string // empty for no log file
	Stdout io.Writer
	Stderr io.Writer
}

// levelRouter is a hook that writes ERROR+ entries to stderr and the rest to
// stdout. The logger's own output is discarded.
type levelRouter struct {
	stdout    io.Writer
	stderr    io.Writer
	formatter logrus.Formatter
}

func (h *levelRouter) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *levelRouter) Fire(e *logrus.Entry) error {
	line, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	if e.Level <= logrus.ErrorLevel {
		_, err = h.stderr.Write(line)
	} else {
		_, err = h.stdout.Write(line)
	}
	return err
}

// Configure sets up l according to opts. It returns a cleanup function that
// closes the log file, or nil when none was opened.
func Configure(l *logrus.Logger, opts Options) (func(), error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
		level = parsed
	}

	var formatter logrus.Formatter
	switch strings.ToLower(opts.Format) {
	case "", "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	stdoutW := opts.Stdout
	if stdoutW == nil {
		stdoutW = os.Stdout
	}
	stderrW := opts.Stderr
	if stderrW == nil {
		stderrW = os.Stderr
	}

	var cleanup func()
	if opts.Path != "" {
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(stdoutW, f)
		stderrW = io.MultiWriter(stderrW, f)
	}

	l.SetLevel(level)
	l.SetFormatter(formatter)
	l.SetOutput(io.Discard)
	l.ReplaceHooks(logrus.LevelHooks{})
	l.AddHook(&levelRouter{stdout: stdoutW, stderr: stderrW, formatter: formatter})
	return cleanup, nil
}
