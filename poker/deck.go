package poker

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// ErrInsufficientCards is returned when a deal asks for more cards than remain.
var ErrInsufficientCards = errors.New("insufficient cards in deck")

// Source supplies uniform integers in [0, n). *rand.Rand from math/rand/v2
// satisfies it, which is how tests get reproducible decks.
type Source interface {
	IntN(n int) int
}

type cryptoSource struct{}

func (cryptoSource) IntN(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return int(v.Int64())
}

// CryptoSource returns a Source backed by crypto/rand.
func CryptoSource() Source {
	return cryptoSource{}
}

// Deck is an ordered stack of cards dealt from the top.
type Deck struct {
	cards []Card
	next  int
}

// NewShuffledDeck returns a 52-card deck shuffled with a cryptographically
// strong source.
func NewShuffledDeck() *Deck {
	return NewDeck(CryptoSource())
}

// NewDeck returns a 52-card deck shuffled with src.
func NewDeck(src Source) *Deck {
	d := &Deck{cards: OrderedCards()}
	d.shuffle(src)
	return d
}

// OrderedCards returns the 52 cards in suit-major order.
func OrderedCards() []Card {
	cards := make([]Card, 0, 52)
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			cards = append(cards, NewCard(rank, suit))
		}
	}
	return cards
}

// DeckFromCards rebuilds a deck whose undealt cards are exactly cards, top
// first. It is used to restore a persisted deck and to script test hands.
func DeckFromCards(cards []Card) (*Deck, error) {
	var seen [52]bool
	for _, c := range cards {
		if !c.Valid() {
			return nil, fmt.Errorf("invalid card rank=%d suit=%d", c.Rank, c.Suit)
		}
		if seen[c.index()] {
			return nil, fmt.Errorf("duplicate card %s", c)
		}
		seen[c.index()] = true
	}
	return &Deck{cards: append([]Card(nil), cards...)}, nil
}

// shuffle is a Fisher-Yates shuffle: for i from the last position down to 1,
// swap position i with a uniformly chosen j in [0, i].
func (d *Deck) shuffle(src Source) {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes n cards from the top of the deck.
func (d *Deck) Deal(n int) ([]Card, error) {
	if n < 0 || d.next+n > len(d.cards) {
		return nil, fmt.Errorf("deal %d with %d left: %w", n, d.Remaining(), ErrInsufficientCards)
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards, nil
}

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}

// Cards returns a copy of the undealt cards, top first.
func (d *Deck) Cards() []Card {
	return append([]Card(nil), d.cards[d.next:]...)
}
