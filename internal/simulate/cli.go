// Package simulate drives the calibration API with simulated users whose
// tastes are known, and checks the ratings the service stores.
package simulate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/calibrate/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging initializes the global logger to write to the console and,
// when logFile is non-empty, to that file as well.
func SetupLogging(logFile, format string) (io.Closer, error) {
	if logFile == "" {
		return io.NopCloser(nil), logger.Init(logger.WithFormat(format))
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithFormat(format), logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file, nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Calibrate Simulation Tool
=========================

Seeds rated items for simulated users, calibrates fresh items through the
HTTP API by answering comparisons from each user's hidden taste, and checks
the ratings the service stores.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -owners int
        Number of simulated users (default 20)
  -seed-items int
        Items rated up front per user (default 8)
  -sessions int
        Calibration sessions per user (default 5)
  -workers int
        Users simulated concurrently (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed int
        Random seed for tastes and judging noise (default: current time)
  -output string
        Write a JSON report with final libraries to this file
  -log string
        Also write logs to this file
  -verbose
        Log every comparison
  -help
        Show this help message

Examples:
  go run ./cmd/simulate -owners 100 -sessions 10
  go run ./cmd/simulate -seed 42 -output report.json
`)
}
