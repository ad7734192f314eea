package brackets

import (
	"errors"
	"fmt"
	"math"

	"github.com/padelops/bracket-engine/models"
)

var (
	ErrNotEnoughTeams = errors.New("not enough teams to generate a knockout bracket (minimum 2)")
	ErrTooManyTeams   = fmt.Errorf("too many teams for a knockout bracket (maximum %d)", MaxBracketTeams)
)

// SingleEliminationGenerator builds a balanced knockout skeleton from ranked
// seeds: first-round pairings that keep top seeds apart until late rounds,
// bye slots for the gap up to the bracket size, and forward links from every
// match to the one its winner feeds.
type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() *SingleEliminationGenerator {
	return &SingleEliminationGenerator{}
}

// Generate lays out the full bracket for the given seeds. Match numbers are
// assigned sequentially starting at startMatchNumber and round numbers start
// at startRound, so a knockout phase appended after a group stage continues
// the bracket's existing sequence. Matches with a single filled slot are
// marked as byes; the caller auto-resolves them. Zero-filled first-round
// matches cannot occur: byes never exceed half the bracket.
func (g *SingleEliminationGenerator) Generate(seeds []models.TeamSeed, startMatchNumber, startRound int) ([]models.GeneratedMatch, error) {
	n := len(seeds)
	if n < MinKnockoutTeams {
		return nil, ErrNotEnoughTeams
	}
	if n > MaxBracketTeams {
		return nil, ErrTooManyTeams
	}

	size := NextPowerOfTwo(n)
	totalRounds := int(math.Log2(float64(size)))

	teamBySeed := make(map[int]int, n)
	for _, s := range seeds {
		teamBySeed[s.Seed] = s.TeamID
	}

	order := SeedOrder(size)

	matches := make([]models.GeneratedMatch, 0, size-1)
	matchNumber := startMatchNumber

	// First match number of each round, needed to resolve forward links.
	roundStart := make([]int, totalRounds+1)
	num := startMatchNumber
	for r := 1; r <= totalRounds; r++ {
		roundStart[r-1] = num
		num += size >> uint(r)
	}

	// Round 1: pair adjacent slots of the seed order.
	for i := 0; i < size/2; i++ {
		gm := models.GeneratedMatch{
			RoundNumber: startRound,
			MatchNumber: matchNumber,
			RoundName:   RoundName(1, totalRounds),
		}
		if teamID, ok := teamBySeed[order[2*i]]; ok {
			t := teamID
			gm.Team1ID = &t
		}
		if teamID, ok := teamBySeed[order[2*i+1]]; ok {
			t := teamID
			gm.Team2ID = &t
		}
		gm.IsBye = (gm.Team1ID == nil) != (gm.Team2ID == nil)

		if totalRounds > 1 {
			next := roundStart[1] + i/2
			pos := i%2 + 1
			gm.NextMatchNumber = &next
			gm.NextMatchPosition = &pos
		}
		matches = append(matches, gm)
		matchNumber++
	}

	// Later rounds: placeholder matches filled by the winners of the two
	// feeding matches of the previous round.
	for r := 2; r <= totalRounds; r++ {
		matchesInRound := size >> uint(r)
		for i := 0; i < matchesInRound; i++ {
			gm := models.GeneratedMatch{
				RoundNumber: startRound + r - 1,
				MatchNumber: matchNumber,
				RoundName:   RoundName(r, totalRounds),
			}
			if r < totalRounds {
				next := roundStart[r] + i/2
				pos := i%2 + 1
				gm.NextMatchNumber = &next
				gm.NextMatchPosition = &pos
			}
			matches = append(matches, gm)
			matchNumber++
		}
	}

	return matches, nil
}
