package brackets

import (
	"sort"

	"github.com/padelops/bracket-engine/models"
)

// AntiRematchPlacer reshuffles seed assignments so teams that already met in
// the same origin group avoid meeting again in the early knockout rounds.
// It swaps which team holds which seed number; the seed-to-slot geometry of
// the bracket itself never changes.
//
// The heuristic is best-effort: when the bracket geometry cannot separate a
// group (more teams than halves or quarters), residual conflicts remain and
// that is an accepted outcome, not an error.
type AntiRematchPlacer struct{}

func NewAntiRematchPlacer() *AntiRematchPlacer {
	return &AntiRematchPlacer{}
}

// Place expects seeds numbered contiguously 1..N and a team-to-origin-group
// map. Group 0 (or a missing entry) means "no group": those teams neither
// constrain nor take part in any swap.
func (p *AntiRematchPlacer) Place(seeds []models.TeamSeed, originGroup map[int]int) []models.TeamSeed {
	out := make([]models.TeamSeed, len(seeds))
	copy(out, seeds)
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })

	n := len(out)
	if n < 4 {
		return out
	}

	size := NextPowerOfTwo(n)
	order := SeedOrder(size)
	slotOfSeed := make([]int, size+1)
	for slot, seed := range order {
		slotOfSeed[seed] = slot
	}

	st := &placementState{
		out:        out,
		origin:     originGroup,
		size:       size,
		order:      order,
		slotOfSeed: slotOfSeed,
	}

	// Most constrained groups first: the more qualifiers a group sent, the
	// fewer options remain for it later.
	type groupInfo struct {
		id      int
		members int
	}
	counts := map[int]int{}
	for _, s := range out {
		if g := originGroup[s.TeamID]; g != 0 {
			counts[g]++
		}
	}
	groupList := make([]groupInfo, 0, len(counts))
	for id, c := range counts {
		groupList = append(groupList, groupInfo{id, c})
	}
	sort.Slice(groupList, func(i, j int) bool {
		if groupList[i].members != groupList[j].members {
			return groupList[i].members > groupList[j].members
		}
		return groupList[i].id < groupList[j].id
	})

	for _, g := range groupList {
		switch {
		case g.members == 2:
			st.separateHalves(g.id)
		case g.members >= 3:
			st.spreadQuarters(g.id)
		}
	}

	st.fixFirstRoundPairs()

	return st.out
}

type placementState struct {
	out        []models.TeamSeed
	origin     map[int]int
	size       int
	order      []int
	slotOfSeed []int
}

// Position i always carries seed i+1; swaps exchange teams, not seeds.
func (st *placementState) groupAt(i int) int { return st.origin[st.out[i].TeamID] }

func (st *placementState) halfOf(i int) int {
	if st.slotOfSeed[i+1] < st.size/2 {
		return 0
	}
	return 1
}

func (st *placementState) quarterOf(i int) int {
	return st.slotOfSeed[i+1] / (st.size / 4)
}

func (st *placementState) swap(i, j int) {
	st.out[i].TeamID, st.out[j].TeamID = st.out[j].TeamID, st.out[i].TeamID
}

func (st *placementState) membersOf(group int) []int {
	var members []int
	for i := range st.out {
		if st.groupAt(i) == group {
			members = append(members, i)
		}
	}
	return members
}

// separateHalves handles a two-team conflict: when both sit in the same
// bracket half, the lower-ranked one trades places with the nearest-seeded
// team from a different group in the opposite half.
func (st *placementState) separateHalves(group int) {
	members := st.membersOf(group)
	if len(members) != 2 || st.halfOf(members[0]) != st.halfOf(members[1]) {
		return
	}
	moved := members[1]
	best := -1
	for j := range st.out {
		if st.groupAt(j) == group || st.halfOf(j) == st.halfOf(moved) {
			continue
		}
		if best == -1 || abs(j-moved) < abs(best-moved) {
			best = j
		}
	}
	if best >= 0 {
		st.swap(moved, best)
	}
}

// spreadQuarters walks a three-plus group's members in seed order and, on a
// repeated-quarter conflict, relocates the member into a quarter the group
// does not use yet, provided the displaced team does not land in a quarter
// its own group already occupies.
func (st *placementState) spreadQuarters(group int) {
	used := map[int]bool{}
	for _, m := range st.membersOf(group) {
		q := st.quarterOf(m)
		if !used[q] {
			used[q] = true
			continue
		}
		if j := st.findQuarterCandidate(group, q, used, m); j >= 0 {
			st.swap(m, j)
			used[st.quarterOf(j)] = true
		} else {
			// No safe relocation; the conflict stays.
			used[q] = true
		}
	}
}

func (st *placementState) findQuarterCandidate(group, conflictQuarter int, used map[int]bool, near int) int {
	best := -1
	for j := range st.out {
		cg := st.groupAt(j)
		if cg == group || used[st.quarterOf(j)] {
			continue
		}
		if cg != 0 && st.groupOccupiesQuarter(cg, conflictQuarter, j) {
			continue
		}
		if best == -1 || abs(j-near) < abs(best-near) {
			best = j
		}
	}
	return best
}

func (st *placementState) groupOccupiesQuarter(group, quarter, except int) bool {
	for _, m := range st.membersOf(group) {
		if m != except && st.quarterOf(m) == quarter {
			return true
		}
	}
	return false
}

// fixFirstRoundPairs is the safety net: any first-round pairing of two
// same-group teams gets one side swapped into another pair whose counterpart
// comes from a different group, as long as that swap opens no new conflict.
func (st *placementState) fixFirstRoundPairs() {
	n := len(st.out)
	for k := 0; k < st.size/2; k++ {
		a, b := st.order[2*k]-1, st.order[2*k+1]-1
		if a >= n || b >= n {
			continue
		}
		ga := st.groupAt(a)
		if ga == 0 || ga != st.groupAt(b) {
			continue
		}
		for k2 := 0; k2 < st.size/2; k2++ {
			if k2 == k {
				continue
			}
			c, d := st.order[2*k2]-1, st.order[2*k2+1]-1
			if c >= n || d >= n {
				continue
			}
			if st.groupAt(c) != ga && st.groupAt(d) != ga {
				st.swap(b, c)
				break
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
