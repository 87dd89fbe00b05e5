package simulate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Request bodies for the endpoints the rehearsal drives.
type joinRequest struct {
	Name string `json:"name"`
}

type startRequest struct {
	Theme string `json:"theme"`
}

type wagerRequest struct {
	TeamID         string  `json:"teamId"`
	RoundID        string  `json:"roundId"`
	PredictedValue float64 `json:"predictedValue"`
	BidAmount      float64 `json:"bidAmount"`
}

type revealRequest struct {
	RoundID     string  `json:"roundId"`
	ActualValue float64 `json:"actualValue"`
}

// joinTeams registers the roster concurrently using a worker pool.
func joinTeams(ctx context.Context, config *Config, client *HTTPClient, stats *Stats) error {
	log.Printf("📤 Joining %d teams with %d workers...", config.Teams, config.Workers)

	names := generateTeamNames(config.Teams)
	url := config.BaseURL + "/api/teams/join"

	// Counters for statistics
	var (
		joined int64
		failed int64
	)

	nameChan := make(chan string, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for name := range nameChan {
				select {
				case <-ctx.Done():
					return
				default:
					if err := joinSingleTeam(ctx, client, url, name); err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("⚠️ join failed for %q: %v", name, err)
						}
						continue
					}
					atomic.AddInt64(&joined, 1)
				}
			}
		}()
	}

	// Send names to workers
	go func() {
		defer close(nameChan)
		for _, name := range names {
			select {
			case <-ctx.Done():
				return
			case nameChan <- name:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	stats.TeamsJoined = int(atomic.LoadInt64(&joined))
	if failedCount := atomic.LoadInt64(&failed); failedCount > 0 {
		return fmt.Errorf("joined %d of %d teams (%d failed)", stats.TeamsJoined, config.Teams, failedCount)
	}

	log.Printf("✅ Joined %d teams", stats.TeamsJoined)
	return nil
}

// joinSingleTeam registers one team and checks the response shape.
func joinSingleTeam(ctx context.Context, client *HTTPClient, url, name string) error {
	resp, err := client.Post(ctx, url, joinRequest{Name: name})
	if err != nil {
		return fmt.Errorf("failed to submit join request: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, decodeAPIError(body))
	}

	var team Team
	if err := unmarshalJSON(body, &team); err != nil {
		return fmt.Errorf("failed to parse team: %w", err)
	}
	if team.ID == "" {
		return fmt.Errorf("server returned a team without an id")
	}
	return nil
}

// fetchStandings retrieves the current teams sorted by balance.
func fetchStandings(ctx context.Context, client *HTTPClient, baseURL string) ([]Team, error) {
	resp, err := client.Get(ctx, baseURL+"/api/teams")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch standings: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read standings: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, decodeAPIError(body))
	}

	var teams []Team
	if err := unmarshalJSON(body, &teams); err != nil {
		return nil, fmt.Errorf("failed to parse standings: %w", err)
	}
	return teams, nil
}

// playRound drives one full round: open it, wager every team, reveal it.
func playRound(ctx context.Context, config *Config, client *HTTPClient, roundNum int, stats *Stats) error {
	teams, err := fetchStandings(ctx, client, config.BaseURL)
	if err != nil {
		return err
	}

	theme, actual := pickTheme()
	round, err := startRound(ctx, client, config.BaseURL, theme)
	if err != nil {
		return err
	}
	log.Printf("🔍 Round %d open: %s", roundNum, theme)

	accepted, rejected := submitWagers(ctx, config, client, round.ID, actual, teams)
	stats.WagersAccepted += accepted
	stats.WagersRejected += rejected

	if err := revealRound(ctx, client, config.BaseURL, round.ID, actual); err != nil {
		return err
	}

	stats.RoundsPlayed++
	log.Printf("✅ Round %d revealed with answer %.0f: %d wagers accepted, %d rejected",
		roundNum, actual, accepted, rejected)
	return nil
}

// startRound opens a new round with the given theme.
func startRound(ctx context.Context, client *HTTPClient, baseURL, theme string) (*Round, error) {
	resp, err := client.PostAdmin(ctx, baseURL+"/api/admin/rounds", startRequest{Theme: theme})
	if err != nil {
		return nil, fmt.Errorf("failed to start round: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read round: %w", err)
	}

	if resp.StatusCode == StatusUnauthorized {
		return nil, fmt.Errorf("admin key rejected; pass the server's key with -admin-key")
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, decodeAPIError(body))
	}

	var round Round
	if err := unmarshalJSON(body, &round); err != nil {
		return nil, fmt.Errorf("failed to parse round: %w", err)
	}
	if round.Status != "open" {
		return nil, fmt.Errorf("round opened with status %q", round.Status)
	}
	return &round, nil
}

// submitWagers places one wager per team using a worker pool.
func submitWagers(ctx context.Context, config *Config, client *HTTPClient, roundID string, actual float64, teams []Team) (int, int) {
	url := config.BaseURL + "/api/submissions"

	// Counters for statistics
	var (
		accepted int64
		rejected int64
	)

	teamChan := make(chan Team, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for team := range teamChan {
				select {
				case <-ctx.Done():
					return
				default:
					wager := wagerRequest{
						TeamID:         team.ID,
						RoundID:        roundID,
						PredictedValue: guessAround(actual),
						BidAmount:      bidFor(team.Balance),
					}
					if submitSingleWager(ctx, client, url, wager) {
						atomic.AddInt64(&accepted, 1)
					} else {
						atomic.AddInt64(&rejected, 1)
						if config.Verbose {
							log.Printf("⚠️ wager rejected for team %s", team.Name)
						}
					}
				}
			}
		}()
	}

	// Send teams to workers
	go func() {
		defer close(teamChan)
		for _, team := range teams {
			select {
			case <-ctx.Done():
				return
			case teamChan <- team:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	if config.Verbose {
		log.Printf("📊 Wagers: %d accepted, %d rejected",
			atomic.LoadInt64(&accepted), atomic.LoadInt64(&rejected))
	}
	return int(atomic.LoadInt64(&accepted)), int(atomic.LoadInt64(&rejected))
}

// submitSingleWager reports whether the server accepted the wager.
func submitSingleWager(ctx context.Context, client *HTTPClient, url string, wager wagerRequest) bool {
	resp, err := client.Post(ctx, url, wager)
	if err != nil {
		return false
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return false
	}

	if resp.StatusCode != StatusOK {
		return false
	}

	var ack Ack
	if err := unmarshalJSON(body, &ack); err != nil {
		return false
	}
	return ack.Success
}

// revealRound closes the round with the actual answer, settling wagers.
func revealRound(ctx context.Context, client *HTTPClient, baseURL, roundID string, actual float64) error {
	resp, err := client.PostAdmin(ctx, baseURL+"/api/admin/rounds/reveal", revealRequest{
		RoundID:     roundID,
		ActualValue: actual,
	})
	if err != nil {
		return fmt.Errorf("failed to reveal round: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read reveal response: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, decodeAPIError(body))
	}

	var ack Ack
	if err := unmarshalJSON(body, &ack); err != nil {
		return fmt.Errorf("failed to parse reveal response: %w", err)
	}
	if !ack.Success {
		return fmt.Errorf("reveal was not acknowledged")
	}
	return nil
}

// decodeAPIError extracts the server's error message, falling back to the raw body.
func decodeAPIError(body []byte) string {
	var apiErr APIError
	if err := unmarshalJSON(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return string(body)
}
