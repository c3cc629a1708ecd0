package table

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/store"
	"github.com/lox/cardroom/poker"
)

func testConfig() Config {
	return Config{
		ID:            "t1",
		Name:          "Test",
		MaxSeats:      6,
		SmallBlind:    10,
		BigBlind:      20,
		ActionTimeout: 10 * time.Second,
		HandPause:     2 * time.Second,
		BuyInMin:      100,
		BuyInMax:      1000,
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) types() []string {
	var out []string
	for _, e := range r.all() {
		out = append(out, e.Type())
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func lastOf[T Event](r *recorder) (T, bool) {
	events := r.all()
	for i := len(events) - 1; i >= 0; i-- {
		if e, ok := events[i].(T); ok {
			return e, true
		}
	}
	var zero T
	return zero, false
}

func allOf[T Event](r *recorder) []T {
	var out []T
	for _, e := range r.all() {
		if ev, ok := e.(T); ok {
			out = append(out, ev)
		}
	}
	return out
}

// syncPersister applies writes immediately so tests can inspect the store.
type syncPersister struct {
	st store.Store
}

func (p syncPersister) Enqueue(_ string, fn store.WriteFunc) bool {
	_ = fn(context.Background(), p.st)
	return true
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	clock  *quartz.Mock
	table  *Table
	events *recorder
	store  *store.Memory
}

// deckQueue hands out the given decks in order, then seeded shuffles.
func deckQueue(decks ...*poker.Deck) func() *poker.Deck {
	var mu sync.Mutex
	seeded := SeededDecks(7)
	return func() *poker.Deck {
		mu.Lock()
		defer mu.Unlock()
		if len(decks) > 0 {
			d := decks[0]
			decks = decks[1:]
			return d
		}
		return seeded()
	}
}

func newHarness(t *testing.T, cfg Config, decks ...*poker.Deck) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		ctx:    context.Background(),
		clock:  quartz.NewMock(t),
		events: &recorder{},
		store:  store.NewMemory(),
	}
	h.table = h.start(cfg, decks...)
	return h
}

func (h *harness) options(decks ...*poker.Deck) []Option {
	bus := NewBus()
	bus.Subscribe(h.events.add)
	return []Option{
		WithClock(h.clock),
		WithLogger(log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})),
		WithBus(bus),
		WithPersister(syncPersister{st: h.store}),
		WithDeckFactory(deckQueue(decks...)),
	}
}

func (h *harness) start(cfg Config, decks ...*poker.Deck) *Table {
	h.t.Helper()
	tbl, err := New(cfg, h.options(decks...)...)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = tbl.Stop(context.Background()) })
	return tbl
}

func (h *harness) join(player string, seat, buyIn int) {
	h.t.Helper()
	got, err := h.table.Join(h.ctx, player, player, seat, buyIn)
	require.NoError(h.t, err)
	require.Equal(h.t, seat, got)
}

func (h *harness) act(player, action string, amount int) {
	h.t.Helper()
	a := mustParseAction(h.t, action)
	require.NoError(h.t, h.table.Act(h.ctx, player, a, amount), "%s %s %d", player, action, amount)
}

// fireNext advances the clock to the next timer and waits until the table
// has handled whatever it posted.
func (h *harness) fireNext() time.Duration {
	h.t.Helper()
	d, w := h.clock.AdvanceNext()
	w.MustWait(h.ctx)
	h.snapshot()
	return d
}

func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.clock.Advance(d).MustWait(h.ctx)
	h.snapshot()
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()
	snap, err := h.table.Snapshot(h.ctx)
	require.NoError(h.t, err)
	return snap
}

func (h *harness) seat(n int) SeatView {
	h.t.Helper()
	v, ok := h.snapshot().Seat(n)
	require.True(h.t, ok, "seat %d empty", n)
	return v
}

// pending reports whether any timer is armed.
func (h *harness) pending() bool {
	_, ok := h.clock.Peek()
	return ok
}

// scriptedDeck deals holes in deal order (starting left of the button),
// then board, then the rest of the deck.
func scriptedDeck(t *testing.T, holes []string, board string) *poker.Deck {
	t.Helper()
	var top []poker.Card
	parsed := make([][]poker.Card, len(holes))
	for i, cards := range holes {
		parsed[i] = poker.MustParseCards(cards)
	}
	for round := range 2 {
		for _, cards := range parsed {
			top = append(top, cards[round])
		}
	}
	top = append(top, poker.MustParseCards(board)...)
	used := make(map[poker.Card]bool, len(top))
	for _, c := range top {
		used[c] = true
	}
	for _, c := range poker.OrderedCards() {
		if !used[c] {
			top = append(top, c)
		}
	}
	deck, err := poker.DeckFromCards(top)
	require.NoError(t, err)
	return deck
}
