package brackets

import (
	"fmt"

	"github.com/padelops/bracket-engine/models"
)

// RoundRobinGenerator emits the all-pairs match list for one group: every
// unordered pair of teams exactly once, in index order.
type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() *RoundRobinGenerator {
	return &RoundRobinGenerator{}
}

// Generate creates n(n-1)/2 matches for the group, with sequential match
// numbers starting at startMatchNumber. Group matches all live in round 1
// and carry no forward link; promotion to a knockout phase is decided from
// standings, not from the match graph.
func (g *RoundRobinGenerator) Generate(teamIDs []int, groupNumber, startMatchNumber int) ([]models.GeneratedMatch, error) {
	if len(teamIDs) < 2 {
		return nil, fmt.Errorf("group %d: not enough teams for a round robin (found %d, min 2)", groupNumber, len(teamIDs))
	}

	matches := make([]models.GeneratedMatch, 0, len(teamIDs)*(len(teamIDs)-1)/2)
	matchNumber := startMatchNumber

	for i := 0; i < len(teamIDs); i++ {
		for j := i + 1; j < len(teamIDs); j++ {
			t1, t2, group := teamIDs[i], teamIDs[j], groupNumber
			matches = append(matches, models.GeneratedMatch{
				RoundNumber: 1,
				MatchNumber: matchNumber,
				RoundName:   GroupName(groupNumber),
				Team1ID:     &t1,
				Team2ID:     &t2,
				GroupNumber: &group,
			})
			matchNumber++
		}
	}

	return matches, nil
}

// GroupName labels groups "Group A", "Group B", ... falling back to the
// numeric form past Z.
func GroupName(groupNumber int) string {
	if groupNumber >= 1 && groupNumber <= 26 {
		return "Group " + string(rune('A'+groupNumber-1))
	}
	return fmt.Sprintf("Group %d", groupNumber)
}
