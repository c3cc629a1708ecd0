package poker

import (
	"fmt"
	"strings"
)

// Suit represents a card suit.
type Suit uint8

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

const suitChars = "cdhs"

// String returns the single-letter suit code.
func (s Suit) String() string {
	if s > Spades {
		return "?"
	}
	return string(suitChars[s])
}

// Rank represents a card rank, Two through Ace.
type Rank uint8

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

const rankChars = "23456789TJQKA"

// String returns the single-character rank code.
func (r Rank) String() string {
	if r < Two || r > Ace {
		return "?"
	}
	return string(rankChars[r-Two])
}

// Card is a single playing card. The zero value is not a valid card.
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a card from a rank and suit.
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// Valid reports whether the card is one of the 52 standard cards.
func (c Card) Valid() bool {
	return c.Rank >= Two && c.Rank <= Ace && c.Suit <= Spades
}

// String returns the two-character form, e.g. "As" or "Td".
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// index returns the card's position 0..51 in a fresh, ordered deck.
func (c Card) index() int {
	return int(c.Suit)*13 + int(c.Rank-Two)
}

// ParseCard parses a two-character card string like "As", "Td" or "2c".
// "10" is accepted as an alias for "T".
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "10") {
		s = "T" + s[2:]
	}
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	r := strings.IndexByte(rankChars, upper(s[0]))
	if r < 0 {
		return Card{}, fmt.Errorf("invalid rank in card %q", s)
	}
	su := strings.IndexByte(suitChars, lower(s[1]))
	if su < 0 {
		return Card{}, fmt.Errorf("invalid suit in card %q", s)
	}
	return Card{Rank: Two + Rank(r), Suit: Suit(su)}, nil
}

// ParseCards parses a whitespace or comma separated list of cards.
func ParseCards(s string) ([]Card, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// MustParseCards is ParseCards for fixed test and fixture strings.
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}

// MarshalText encodes the card in its two-character form, so cards travel
// through JSON as strings.
func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card rank=%d suit=%d", c.Rank, c.Suit)
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes the two-character form.
func (c *Card) UnmarshalText(b []byte) error {
	parsed, err := ParseCard(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// FormatCards renders cards separated by spaces.
func FormatCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}
