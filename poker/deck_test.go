package poker

import (
	"errors"
	"testing"

	"github.com/lox/cardroom/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShuffledDeckIsPermutation(t *testing.T) {
	t.Parallel()
	d := NewShuffledDeck()
	require.Equal(t, 52, d.Remaining())

	cards, err := d.Deal(52)
	require.NoError(t, err)

	seen := map[Card]bool{}
	for _, c := range cards {
		require.True(t, c.Valid(), "card %v", c)
		require.False(t, seen[c], "duplicate %s", c)
		seen[c] = true
	}
	assert.Len(t, seen, 52)
	assert.Equal(t, 0, d.Remaining())
}

func TestDeckDeterministicWithSeed(t *testing.T) {
	t.Parallel()
	a := NewDeck(randutil.New(42))
	b := NewDeck(randutil.New(42))
	c := NewDeck(randutil.New(43))

	assert.Equal(t, a.Cards(), b.Cards())
	assert.NotEqual(t, a.Cards(), c.Cards())
}

func TestDeckDeal(t *testing.T) {
	t.Parallel()
	d := NewDeck(randutil.New(7))
	top := d.Cards()[:5]

	hole, err := d.Deal(2)
	require.NoError(t, err)
	assert.Equal(t, top[:2], hole)

	flop, err := d.Deal(3)
	require.NoError(t, err)
	assert.Equal(t, top[2:5], flop)
	assert.Equal(t, 47, d.Remaining())

	_, err = d.Deal(48)
	require.True(t, errors.Is(err, ErrInsufficientCards))
	assert.Equal(t, 47, d.Remaining(), "failed deal must not consume cards")
}

func TestDeckFromCards(t *testing.T) {
	t.Parallel()
	d, err := DeckFromCards(MustParseCards("As Kd 2c"))
	require.NoError(t, err)
	cards, err := d.Deal(3)
	require.NoError(t, err)
	assert.Equal(t, "As Kd 2c", FormatCards(cards))

	_, err = DeckFromCards(MustParseCards("As As"))
	assert.Error(t, err)
}

// The position of the ace of spades after a shuffle should be roughly uniform.
func TestShuffleDistribution(t *testing.T) {
	t.Parallel()
	rng := randutil.New(1)
	const trials = 52 * 400
	var positions [52]int
	target := NewCard(Ace, Spades)
	for range trials {
		for i, c := range NewDeck(rng).Cards() {
			if c == target {
				positions[i]++
				break
			}
		}
	}
	for i, n := range positions {
		assert.InDelta(t, 400, n, 120, "position %d", i)
	}
}
