package simulate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/ballpark/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "rehearsal_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the rehearsal tool.
func ShowHelp() {
	os.Stdout.WriteString(`Ballpark Rehearsal Tool
=======================

Drives a full game night against a running ballpark server: joins a
roster of teams, plays timed rounds with random wagers, reveals each
round, and verifies the final standings.

Usage:
  go run cmd/simulate/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -admin-key string
        Operator credential for admin endpoints (default "change-me")
  -teams int
        Number of teams to join (default 8)
  -rounds int
        Number of rounds to play (default 3)
  -workers int
        Number of concurrent workers (default 4)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for final standings (default: standings_TIMESTAMP.json)
  -log string
        Log file for run output (default: rehearsal_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Rehearse with default settings
  go run cmd/simulate/main.go

  # Rehearse a bigger night
  go run cmd/simulate/main.go -teams 24 -rounds 6 -url http://localhost:8080

  # Rehearse against a secured server
  go run cmd/simulate/main.go -admin-key swordfish -verbose
`)
}
