package game

import (
	"slices"
	"sort"
)

// SidePot is one eligibility tier of the pot.
type SidePot struct {
	Amount int `json:"amount"`
	// Cap is the per-player contribution level that closes this tier.
	Cap      int   `json:"cap"`
	Eligible []int `json:"eligible"`
	// Uncalled marks a tier funded by a single player. It goes back to that
	// player without a showdown.
	Uncalled bool `json:"uncalled,omitempty"`
}

// Allocate partitions committed chips into pot tiers. contributions maps a
// seat to everything it put in this hand; folded seats fund the tiers they
// reached but are never eligible to win.
//
// Tiers are cut at each distinct contribution of a live seat, ascending. A
// tier collects, from every contributor, the slice of their contribution
// between the previous cap and this one. Folded chips above the highest live
// contribution are added to the top tier.
func Allocate(contributions map[int]int, folded map[int]bool) []SidePot {
	var caps []int
	for seat, c := range contributions {
		if c > 0 && !folded[seat] && !slices.Contains(caps, c) {
			caps = append(caps, c)
		}
	}
	sort.Ints(caps)

	seats := make([]int, 0, len(contributions))
	for seat := range contributions {
		seats = append(seats, seat)
	}
	sort.Ints(seats)

	var pots []SidePot
	prev := 0
	for _, cp := range caps {
		pot := SidePot{Cap: cp}
		funders := 0
		for _, seat := range seats {
			c := contributions[seat]
			share := min(c, cp) - min(c, prev)
			if share > 0 {
				pot.Amount += share
				funders++
			}
			if c >= cp && !folded[seat] {
				pot.Eligible = append(pot.Eligible, seat)
			}
		}
		pot.Uncalled = funders == 1
		pots = append(pots, pot)
		prev = cp
	}

	leftover := 0
	for _, c := range contributions {
		if c > prev {
			leftover += c - prev
		}
	}
	if leftover > 0 {
		if len(pots) == 0 {
			// Everyone folded; only reachable when a caller allocates a
			// settled hand. Keep the chips visible rather than losing them.
			return []SidePot{{Amount: leftover, Cap: prev}}
		}
		last := &pots[len(pots)-1]
		last.Amount += leftover
		last.Uncalled = false
	}
	return pots
}

// potTotal sums tier amounts.
func potTotal(pots []SidePot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}
