package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/ballpark/internal/simulate"
)

// Default configuration constants.
const (
	defaultTeams      = 8
	defaultRounds     = 3
	defaultWorkers    = 4
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:8080", "Base URL of the service")
		adminKey   = flag.String("admin-key", "change-me", "Operator credential for admin endpoints")
		teams      = flag.Int("teams", defaultTeams, "Number of teams to join")
		rounds     = flag.Int("rounds", defaultRounds, "Number of rounds to play")
		workers    = flag.Int("workers", defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for final standings (default: standings_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for run output (default: rehearsal_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	// Setup logging
	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	// Create rehearsal configuration
	config := &simulate.Config{
		BaseURL:    *baseURL,
		AdminKey:   *adminKey,
		Teams:      *teams,
		Rounds:     *rounds,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	// Run the rehearsal
	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Rehearsal failed: " + err.Error() + "\n")
		return
	}
}
