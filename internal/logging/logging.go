// Package logging builds the process-wide structured logger. Components
// receive a child logger tagged with their own prefix.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// New returns a timestamped logger writing to w at the given level
// ("debug", "info", "warn", "error").
func New(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05.000",
	})
	logger.SetStyles(styles())
	return logger, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// Since formats an elapsed duration for log fields.
func Since(t time.Time) string {
	return time.Since(t).Round(time.Millisecond).String()
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	s.Prefix = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	s.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERRO").
		Bold(true).
		Foreground(lipgloss.Color("204"))
	s.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	s.Keys["file"] = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	return s
}
