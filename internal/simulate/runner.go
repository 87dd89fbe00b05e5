package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/ballpark/pkg/logger"
)

// File permission constants.
const (
	directoryPermission  = 0750
	outputFilePermission = 0600
)

// Run executes the complete game night rehearsal.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting ballpark rehearsal",
		logger.String("baseURL", config.BaseURL),
		logger.Int("teams", config.Teams),
		logger.Int("rounds", config.Rounds),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	client := newHTTPClient(config.Timeout, config.AdminKey)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Join the roster
	if err := joinTeams(ctx, config, client, stats); err != nil {
		return fmt.Errorf("team join failed: %w", err)
	}

	// Step 3: Play the rounds
	for round := 1; round <= config.Rounds; round++ {
		if err := playRound(ctx, config, client, round, stats); err != nil {
			return fmt.Errorf("round %d failed: %w", round, err)
		}
	}

	// Step 4: Fetch the final standings
	standings, err := fetchStandings(ctx, client, config.BaseURL)
	if err != nil {
		return fmt.Errorf("standings retrieval failed: %w", err)
	}

	// Step 5: Verify the standings
	if err := verifyStandings(config, standings, stats); err != nil {
		return fmt.Errorf("standings verification failed: %w", err)
	}

	// Step 6: Save standings to file
	if err := saveStandingsToFile(ctx, config, standings); err != nil {
		logger.Get().Warn(ctx, "failed to save standings to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "rehearsal completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")

	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveStandingsToFile saves the final standings to a JSON file.
func saveStandingsToFile(ctx context.Context, config *Config, teams []Team) error {
	if len(teams) == 0 {
		return fmt.Errorf("no standings to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "standings_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(teams, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal standings: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(filename, data, outputFilePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "standings saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final rehearsal statistics.
func displayFinalStats(stats *Stats) {
	var successRate float64

	if total := stats.WagersAccepted + stats.WagersRejected; total > 0 {
		successRate = float64(stats.WagersAccepted) / float64(total) * PercentageMultiplier
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("teamsJoined", stats.TeamsJoined),
		logger.Int("roundsPlayed", stats.RoundsPlayed),
		logger.Int("wagersAccepted", stats.WagersAccepted),
		logger.Int("wagersRejected", stats.WagersRejected),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate))
}
