package poker

import "math/bits"

// HandRank is a totally ordered hand strength. Higher values are stronger.
// The hand class occupies the bits above 20; below it up to five ranks are
// packed four bits each, most significant first, so two ranks compare with a
// single integer comparison.
type HandRank uint32

// HandClass enumerates hand categories from weakest to strongest.
type HandClass uint8

const (
	HighCard HandClass = iota + 1
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

const classShift = 20

var classNames = [...]string{
	HighCard:      "High Card",
	Pair:          "Pair",
	TwoPair:       "Two Pair",
	ThreeOfAKind:  "Three of a Kind",
	Straight:      "Straight",
	Flush:         "Flush",
	FullHouse:     "Full House",
	FourOfAKind:   "Four of a Kind",
	StraightFlush: "Straight Flush",
	RoyalFlush:    "Royal Flush",
}

func (c HandClass) String() string {
	if c < HighCard || c > RoyalFlush {
		return "Unknown"
	}
	return classNames[c]
}

// Class returns the hand category.
func (hr HandRank) Class() HandClass {
	return HandClass(hr >> classShift)
}

// String returns a human-readable hand description.
func (hr HandRank) String() string {
	return hr.Class().String()
}

// Evaluate ranks the best five-card hand available from hole plus board.
// It expects five to seven cards in total.
func Evaluate(hole, board []Card) HandRank {
	cards := make([]Card, 0, len(hole)+len(board))
	cards = append(cards, hole...)
	cards = append(cards, board...)
	return EvaluateCards(cards)
}

// EvaluateCards ranks the best five-card hand available from cards.
func EvaluateCards(cards []Card) HandRank {
	var suitMasks [4]uint16
	var counts [Ace + 1]uint8
	var rankMask uint16
	for _, c := range cards {
		bit := rankBit(c.Rank)
		suitMasks[c.Suit&3] |= bit
		rankMask |= bit
		counts[c.Rank]++
	}

	var flushMask uint16
	for _, m := range suitMasks {
		if bits.OnesCount16(m) < 5 {
			continue
		}
		if high := straightHigh(m); high != 0 {
			if high == Ace {
				return makeRank(RoyalFlush, Ace)
			}
			return makeRank(StraightFlush, high)
		}
		flushMask = m
	}

	var quad, trip, secondTrip Rank
	var pairs []Rank
	for r := Ace; r >= Two; r-- {
		switch counts[r] {
		case 4:
			quad = r
		case 3:
			if trip == 0 {
				trip = r
			} else if secondTrip == 0 {
				secondTrip = r
			}
		case 2:
			pairs = append(pairs, r)
		}
	}

	if quad != 0 {
		return makeRank(FourOfAKind, append([]Rank{quad}, topRanks(rankMask&^rankBit(quad), 1)...)...)
	}
	if trip != 0 {
		fill := secondTrip
		if len(pairs) > 0 && pairs[0] > fill {
			fill = pairs[0]
		}
		if fill != 0 {
			return makeRank(FullHouse, trip, fill)
		}
	}
	if flushMask != 0 {
		return makeRank(Flush, topRanks(flushMask, 5)...)
	}
	if high := straightHigh(rankMask); high != 0 {
		return makeRank(Straight, high)
	}
	if trip != 0 {
		return makeRank(ThreeOfAKind, append([]Rank{trip}, topRanks(rankMask&^rankBit(trip), 2)...)...)
	}
	if len(pairs) >= 2 {
		rest := rankMask &^ (rankBit(pairs[0]) | rankBit(pairs[1]))
		return makeRank(TwoPair, append([]Rank{pairs[0], pairs[1]}, topRanks(rest, 1)...)...)
	}
	if len(pairs) == 1 {
		return makeRank(Pair, append([]Rank{pairs[0]}, topRanks(rankMask&^rankBit(pairs[0]), 3)...)...)
	}
	return makeRank(HighCard, topRanks(rankMask, 5)...)
}

// CompareWinners returns the best rank among ranks and the indexes of every
// entry that ties for it. It returns zero and nil for an empty input.
func CompareWinners(ranks []HandRank) (best HandRank, winners []int) {
	for i, r := range ranks {
		switch {
		case r > best:
			best = r
			winners = []int{i}
		case r == best && winners != nil:
			winners = append(winners, i)
		}
	}
	return best, winners
}

func rankBit(r Rank) uint16 {
	return 1 << (r - Two)
}

// straightHigh returns the top rank of the highest straight in mask, or zero.
// The wheel (A-2-3-4-5) counts as a five-high straight.
func straightHigh(mask uint16) Rank {
	// Shift so bit r-1 holds rank r, then mirror the ace into bit 0.
	m := mask << 1
	if mask&rankBit(Ace) != 0 {
		m |= 1
	}
	for high := Ace; high >= Five; high-- {
		window := uint16(0x1F) << (high - 5)
		if m&window == window {
			return high
		}
	}
	return 0
}

// topRanks returns up to n ranks present in mask, highest first.
func topRanks(mask uint16, n int) []Rank {
	out := make([]Rank, 0, n)
	for r := Ace; r >= Two && len(out) < n; r-- {
		if mask&rankBit(r) != 0 {
			out = append(out, r)
		}
	}
	return out
}

func makeRank(class HandClass, ranks ...Rank) HandRank {
	v := HandRank(class) << classShift
	shift := 16
	for _, r := range ranks {
		v |= HandRank(r) << shift
		shift -= 4
	}
	return v
}
