package simulate

import (
	"crypto/rand"
	"math"
	"math/big"
	"strconv"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
)

// Constants for wager generation ranges.
const (
	guessSpreadFraction = 0.3
	wildGuessOdds       = 10
	wildGuessSpread     = 1.5
	bidFractionMin      = 0.05
	bidFractionRange    = 0.4
	minimumBid          = 1.0
	centsPerUnit        = 100
)

// nameAdjectives and nameNouns combine into trivia-night team names.
var nameAdjectives = []string{
	"mighty", "sly", "rowdy", "caffeinated", "feral", "dapper",
	"sleepy", "turbo", "haunted", "golden", "crunchy", "sideways",
}

var nameNouns = []string{
	"melons", "otters", "accountants", "noodles", "wizards", "pigeons",
	"llamas", "toasters", "pirates", "cacti", "bagels", "meerkats",
}

// themePrompt is an estimation question with a plausible answer range.
type themePrompt struct {
	text string
	min  float64
	max  float64
}

// themePrompts are the questions the rehearsal cycles through.
var themePrompts = []themePrompt{
	{text: "How many jellybeans fit in a 2-liter jar?", min: 600, max: 900},
	{text: "Total career goals scored by Pelé?", min: 700, max: 1300},
	{text: "Height of the Eiffel Tower in meters?", min: 250, max: 350},
	{text: "Average weight of an adult hippo in kilograms?", min: 1300, max: 1800},
	{text: "Number of keys on a full-size piano?", min: 60, max: 110},
	{text: "Distance from the Earth to the Moon in thousands of kilometers?", min: 350, max: 420},
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randomIndex returns a random index in [0, n).
func randomIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateTeamNames produces n unique team names. When the adjective and
// noun pools run dry, a numeric suffix keeps names unique.
func generateTeamNames(n int) []string {
	names := make([]string, 0, n)
	seen := make(map[string]bool, n)

	for len(names) < n {
		name := nameAdjectives[randomIndex(len(nameAdjectives))] + " " + nameNouns[randomIndex(len(nameNouns))]
		if seen[name] {
			name = name + " " + strconv.Itoa(len(names)+1)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	return names
}

// pickTheme selects a prompt and rolls the actual answer inside its range.
func pickTheme() (string, float64) {
	prompt := themePrompts[randomIndex(len(themePrompts))]
	actual := prompt.min + getRandomFloat()*(prompt.max-prompt.min)
	return prompt.text, math.Round(actual)
}

// guessAround produces a prediction scattered around the actual answer.
// Most guesses land within 30% of the answer; about one in ten is wild.
func guessAround(actual float64) float64 {
	spread := guessSpreadFraction
	if randomIndex(wildGuessOdds) == 0 {
		spread = wildGuessSpread
	}

	// Shift by up to +/- spread of the actual value.
	offset := (getRandomFloat()*2 - 1) * spread * actual
	guess := actual + offset
	if guess < 0 {
		guess = 0
	}
	return roundToCents(guess)
}

// bidFor picks a wager between 5% and 45% of the team's balance.
func bidFor(balance float64) float64 {
	bid := balance * (bidFractionMin + getRandomFloat()*bidFractionRange)
	if bid < minimumBid {
		bid = minimumBid
	}
	return roundToCents(bid)
}

// roundToCents rounds a float to two decimal places.
func roundToCents(v float64) float64 {
	return math.Round(v*centsPerUnit) / centsPerUnit
}
