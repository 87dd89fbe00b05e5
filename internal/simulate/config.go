package simulate

import "time"

// Config holds configuration for a rehearsal run
type Config struct {
	BaseURL    string        // Base URL of the service
	AdminKey   string        // Operator credential for admin endpoints
	Teams      int           // Number of teams to join
	Rounds     int           // Number of rounds to play
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for final standings
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// Team mirrors the team entity returned by the API
type Team struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

// Round mirrors the round entity returned by the API
type Round struct {
	ID          string   `json:"id"`
	Theme       string   `json:"theme"`
	Status      string   `json:"status"`
	ActualValue *float64 `json:"actual_value"`
}

// Ack represents the response from a wager submission
type Ack struct {
	Success bool `json:"success"`
}

// APIError represents an error payload from the service
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stats holds rehearsal statistics
type Stats struct {
	TeamsJoined    int
	RoundsPlayed   int
	WagersAccepted int
	WagersRejected int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
