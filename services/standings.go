package services

import (
	"sort"

	"github.com/padelops/bracket-engine/models"
)

// ComputeStandings derives standing rows from match history alone. It is a
// full recompute: safe to call repeatedly, never patched incrementally.
// When grouped is true only group matches count, one table per group;
// otherwise all decided matches feed a single flat table (group 0) and
// knockout teams get their deepest round recorded.
func ComputeStandings(bracketID int, matches []*models.Match, grouped bool) []models.StandingInput {
	type tally struct {
		teamID       int
		group        int
		points       int
		played       int
		won          int
		lost         int
		gamesWon     int
		gamesLost    int
		roundReached string
		roundNumber  int
	}

	type key struct{ teamID, group int }
	tallies := make(map[key]*tally)

	get := func(teamID, group int) *tally {
		k := key{teamID, group}
		t, ok := tallies[k]
		if !ok {
			t = &tally{teamID: teamID, group: group}
			tallies[k] = t
		}
		return t
	}

	for _, m := range matches {
		group := 0
		if m.GroupNumber != nil {
			group = *m.GroupNumber
		}
		if grouped {
			if m.GroupNumber == nil {
				continue
			}
		} else {
			group = 0
		}

		// Seed rows for every team that appears, played or not.
		for _, teamID := range []*int{m.Team1ID, m.Team2ID} {
			if teamID == nil {
				continue
			}
			t := get(*teamID, group)
			if !grouped && m.IsKnockout() && m.RoundNumber > t.roundNumber {
				t.roundNumber = m.RoundNumber
				t.roundReached = m.RoundName
			}
		}

		if m.Status != models.MatchCompleted && m.Status != models.MatchForfeit {
			continue
		}
		if m.WinnerTeam == nil || m.Team1ID == nil {
			continue
		}
		// Byes and forfeits with a single filled slot count as a win for
		// the present side but bring no games.
		if m.Team2ID == nil {
			t := get(*m.Team1ID, group)
			t.played++
			t.won++
			t.points++
			continue
		}

		t1 := get(*m.Team1ID, group)
		t2 := get(*m.Team2ID, group)
		t1.played++
		t2.played++
		if *m.WinnerTeam == 1 {
			t1.won++
			t1.points++
			t2.lost++
		} else {
			t2.won++
			t2.points++
			t1.lost++
		}
		for _, set := range m.SetScores {
			t1.gamesWon += set.Team1
			t1.gamesLost += set.Team2
			t2.gamesWon += set.Team2
			t2.gamesLost += set.Team1
		}
	}

	ordered := make([]*tally, 0, len(tallies))
	for _, t := range tallies {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.group != b.group {
			return a.group < b.group
		}
		return lessByRank(a.points, a.gamesWon-a.gamesLost, a.gamesWon, a.teamID,
			b.points, b.gamesWon-b.gamesLost, b.gamesWon, b.teamID)
	})

	inputs := make([]models.StandingInput, 0, len(ordered))
	position := 0
	lastGroup := -1
	for _, t := range ordered {
		if t.group != lastGroup {
			position = 0
			lastGroup = t.group
		}
		position++
		teamID := t.teamID
		input := models.StandingInput{
			BracketID:       bracketID,
			TeamID:          &teamID,
			GroupNumber:     t.group,
			Position:        position,
			TotalPoints:     t.points,
			MatchesPlayed:   t.played,
			MatchesWon:      t.won,
			MatchesLost:     t.lost,
			GamesWon:        t.gamesWon,
			GamesLost:       t.gamesLost,
			PointDifference: t.gamesWon - t.gamesLost,
		}
		if t.roundReached != "" {
			name := t.roundReached
			input.RoundReached = &name
		}
		inputs = append(inputs, input)
	}
	return inputs
}

// lessByRank is the qualification ordering used everywhere standings are
// ranked: points, then game difference, then games won, with team id as the
// stable tail.
func lessByRank(aPoints, aDiff, aGames, aTeam, bPoints, bDiff, bGames, bTeam int) bool {
	if aPoints != bPoints {
		return aPoints > bPoints
	}
	if aDiff != bDiff {
		return aDiff > bDiff
	}
	if aGames != bGames {
		return aGames > bGames
	}
	return aTeam < bTeam
}
