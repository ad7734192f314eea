package brackets

// Generators emit storage-free match graphs keyed by match number. The
// persistence layer resolves number links to durable ids after bulk insert.

const (
	MinKnockoutTeams = 2
	MaxBracketTeams  = 128
	MaxGroups        = 16
)

// NextPowerOfTwo returns the smallest power of two >= n (and at least 2).
func NextPowerOfTwo(n int) int {
	size := 2
	for size < n {
		size <<= 1
	}
	return size
}

// RoundName maps a round to its display label given the total number of
// rounds in the bracket.
func RoundName(roundNumber, totalRounds int) string {
	switch totalRounds - roundNumber {
	case 0:
		return "Final"
	case 1:
		return "Semifinals"
	case 2:
		return "Quarterfinals"
	case 3:
		return "Round of 16"
	case 4:
		return "Round of 32"
	}
	return "Round " + itoa(roundNumber)
}

// itoa avoids pulling strconv into the hot path for tiny positive ints.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// SeedOrder returns the slot order for a bracket of the given size (a power
// of two): the seed placed in each slot, top to bottom. Adjacent slot pairs
// form the first-round matches. The recursion keeps seeds 1 and 2 in
// opposite halves, seeds 1-4 in distinct quarters, and so on.
func SeedOrder(size int) []int {
	order := []int{1, 2}
	for len(order) < size {
		doubled := len(order) * 2
		next := make([]int, 0, doubled)
		for _, seed := range order {
			next = append(next, seed, doubled+1-seed)
		}
		order = next
	}
	return order
}
