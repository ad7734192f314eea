package services

import (
	"fmt"

	"github.com/padelops/bracket-engine/models"
)

// ScoreResult is the outcome of a valid set-by-set score.
type ScoreResult struct {
	WinnerTeam int
	SetsTeam1  int
	SetsTeam2  int
}

// ValidateScore checks a set-by-set score against the match format and
// returns the winner with the set tally. It is the single source of truth
// for score legality: pure, side-effect free, no defaults applied anywhere
// else. Errors wrap ErrScoreInvalid with the concrete reason.
func ValidateScore(sets []models.SetScore, format *models.MatchFormat) (*ScoreResult, error) {
	if len(sets) == 0 {
		return nil, invalidScore("no sets provided")
	}

	gamesPerSet, setsToPlay, tiebreakAllowed, pointsPerSet := format.Resolved()
	setsToWin := (setsToPlay + 1) / 2

	result := &ScoreResult{}
	for i, set := range sets {
		if result.SetsTeam1 >= setsToWin || result.SetsTeam2 >= setsToWin {
			return nil, invalidScore("match already decided before set %d", i+1)
		}

		var winner int
		var err error
		if pointsPerSet != nil {
			winner, err = validateExpressSet(set, *pointsPerSet)
		} else {
			winner, err = validateClassicSet(set, gamesPerSet, tiebreakAllowed)
		}
		if err != nil {
			return nil, fmt.Errorf("set %d: %w", i+1, err)
		}
		if winner == 1 {
			result.SetsTeam1++
		} else {
			result.SetsTeam2++
		}
	}

	switch {
	case result.SetsTeam1 >= setsToWin:
		result.WinnerTeam = 1
	case result.SetsTeam2 >= setsToWin:
		result.WinnerTeam = 2
	default:
		return nil, invalidScore("incomplete: neither side reached %d sets", setsToWin)
	}
	return result, nil
}

// validateClassicSet accepts a regular win (G games vs 0..G-2), and with
// tiebreaks enabled the extended (G+1)-(G-1) set or the (G+1)-G tiebreak
// set. The tiebreak set additionally needs an embedded tiebreak sub-score
// reaching at least 7 with a two-point margin.
func validateClassicSet(set models.SetScore, gamesPerSet int, tiebreakAllowed bool) (int, error) {
	hi, lo := set.Team1, set.Team2
	winner := 1
	if set.Team2 > set.Team1 {
		hi, lo = set.Team2, set.Team1
		winner = 2
	}
	if hi < 0 || lo < 0 {
		return 0, invalidScore("negative games")
	}

	switch {
	case hi == gamesPerSet && lo >= 0 && lo <= gamesPerSet-2:
		return winner, nil
	case tiebreakAllowed && hi == gamesPerSet+1 && lo == gamesPerSet-1:
		return winner, nil
	case tiebreakAllowed && hi == gamesPerSet+1 && lo == gamesPerSet:
		return winner, validateTiebreak(set, winner)
	}
	return 0, invalidScore("%d-%d is not a valid set for %d games per set", set.Team1, set.Team2, gamesPerSet)
}

func validateTiebreak(set models.SetScore, winner int) error {
	if set.TiebreakTeam1 == nil || set.TiebreakTeam2 == nil {
		return invalidScore("tiebreak set is missing the tiebreak score")
	}
	tbWinner, tbLoser := *set.TiebreakTeam1, *set.TiebreakTeam2
	if winner == 2 {
		tbWinner, tbLoser = tbLoser, tbWinner
	}
	if tbWinner < 7 || tbWinner-tbLoser < 2 {
		return invalidScore("tiebreak %d-%d needs at least 7 points and a 2-point margin", *set.TiebreakTeam1, *set.TiebreakTeam2)
	}
	return nil
}

// validateExpressSet: the set goes to whichever side reaches exactly the
// target with the opponent strictly below it.
func validateExpressSet(set models.SetScore, target int) (int, error) {
	switch {
	case set.Team1 == target && set.Team2 >= 0 && set.Team2 < target:
		return 1, nil
	case set.Team2 == target && set.Team1 >= 0 && set.Team1 < target:
		return 2, nil
	}
	return 0, invalidScore("%d-%d is not a valid set for target %d points", set.Team1, set.Team2, target)
}

func invalidScore(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrScoreInvalid, fmt.Sprintf(format, args...))
}
