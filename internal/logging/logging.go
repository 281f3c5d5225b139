package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const logFileName = "app.log"

// Setup creates a text slog.Logger writing to stdout and to app.log under
// logDir. The file copy feeds the recent-log section of error
// notification emails. If the file cannot be opened, logging degrades to
// stdout only.
func Setup(logDir string) *slog.Logger {
	var w io.Writer = os.Stdout
	if err := os.MkdirAll(logDir, 0o755); err == nil {
		f, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			w = io.MultiWriter(os.Stdout, f)
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Recent returns the last n lines of the run log for error reports.
func Recent(logDir string, n int) []string {
	raw, err := os.ReadFile(filepath.Join(logDir, logFileName))
	if err != nil {
		return []string{"no log file found"}
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
