package simulate

import (
	"fmt"
	"log"
)

// verifyStandings checks the final standings for internal consistency.
func verifyStandings(config *Config, teams []Team, stats *Stats) error {
	log.Println("🔍 Verifying standings...")

	if len(teams) == 0 {
		return fmt.Errorf("no teams in standings")
	}

	// A server that hosted earlier games lists more teams than we joined.
	if len(teams) != stats.TeamsJoined {
		log.Printf("⚠️  Standings list %d teams, rehearsal joined %d (previous game data?)",
			len(teams), stats.TeamsJoined)
	}

	for i, team := range teams {
		if team.Balance < 0 {
			return fmt.Errorf("team %s is overdrawn: balance %.2f", team.Name, team.Balance)
		}
		if i > 0 && team.Balance > teams[i-1].Balance {
			return fmt.Errorf("standings not sorted: %s (%.2f) listed below %s (%.2f)",
				team.Name, team.Balance, teams[i-1].Name, teams[i-1].Balance)
		}
	}

	displayStandings(teams, config.Verbose)

	log.Println("✅ Standings verification completed")
	return nil
}

// displayStandings shows the top teams and optional balance statistics.
func displayStandings(teams []Team, verbose bool) {
	topN := TopDisplayCount
	if len(teams) < topN {
		topN = len(teams)
	}

	log.Printf("🏆 Top %d teams:", topN)
	for i := 0; i < topN; i++ {
		team := teams[i]
		log.Printf("   %d. %s - Balance: %.2f", i+1, team.Name, team.Balance)
	}

	if verbose && len(teams) > 0 {
		total := totalBalance(teams)

		log.Printf(`📊 Balance statistics:
   Total: %.2f
   Average: %.2f
   Maximum: %.2f
   Minimum: %.2f
`, total, total/float64(len(teams)), teams[0].Balance, teams[len(teams)-1].Balance)
	}
}

// totalBalance sums the balances across all teams.
func totalBalance(teams []Team) float64 {
	sum := 0.0
	for _, team := range teams {
		sum += team.Balance
	}
	return sum
}
