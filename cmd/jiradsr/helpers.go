package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
)

// setupLogger writes the run log to logs/ under the base path and mirrors
// it to stderr when interactive. The returned path is what gets attached
// to the run summary email.
func setupLogger(basePath, runID string, verbose, interactive bool) (*slog.Logger, string, func(), error) {
	logDir := filepath.Join(basePath, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, "", nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("jiradsr_%s_%s.log", time.Now().Format("2006-01-02_150405"), runID))
	f, err := os.Create(logPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create log file: %w", err)
	}

	var w io.Writer = f
	if interactive {
		w = io.MultiWriter(f, os.Stderr)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	return logger, logPath, func() { _ = f.Close() }, nil
}

func newSpinner(description string) *progressbar.ProgressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	_ = bar.RenderBlank()
	return bar
}

func finishBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
