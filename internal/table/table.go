// Package table runs a poker table: seats, button rotation, the action clock
// and the hand lifecycle. Each Table owns one goroutine that performs every
// mutation, so actions, timer expiries and joins for a table are strictly
// serialised while different tables run in parallel.
package table

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/handid"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/lox/cardroom/internal/timer"
	"github.com/lox/cardroom/poker"
)

// MaxChatRunes is the longest chat message relayed; longer ones are cut.
const MaxChatRunes = 200

type command struct {
	fn    func() error
	reply chan error
}

// Option configures a Table.
type Option func(*Table)

func WithClock(clock quartz.Clock) Option {
	return func(t *Table) { t.clock = clock }
}

func WithLogger(logger *log.Logger) Option {
	return func(t *Table) { t.logger = logger }
}

func WithBus(bus *Bus) Option {
	return func(t *Table) { t.bus = bus }
}

func WithPersister(p Persister) Option {
	return func(t *Table) { t.persist = p }
}

// SeededDecks returns a deck factory that shuffles from a generator seeded
// with seed. Two factories with the same seed deal the same hands. The
// returned function is not safe for concurrent use.
func SeededDecks(seed int64) func() *poker.Deck {
	rng := randutil.New(seed)
	return func() *poker.Deck { return poker.NewDeck(rng) }
}

// WithDeckFactory replaces the crypto-shuffled deck used for each hand.
func WithDeckFactory(fn func() *poker.Deck) Option {
	return func(t *Table) { t.newDeck = fn }
}

// Table is a running table. All methods are safe for concurrent use.
type Table struct {
	cfg     Config
	clock   quartz.Clock
	logger  *log.Logger
	bus     *Bus
	persist Persister
	newDeck func() *poker.Deck

	cmds     chan command
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// Owned by the run goroutine.
	seats       []*seat
	button      int
	handNumber  int
	hand        *game.Hand
	last        *game.Hand
	handStarted time.Time
	timer       *timer.TurnTimer
	pause       *quartz.Timer
	pauseToken  uint64
	needsReview bool
	seq         uint64
}

// New validates cfg and starts the table goroutine.
func New(cfg Config, opts ...Option) (*Table, error) {
	t, err := newTable(cfg, opts...)
	if err != nil {
		return nil, err
	}
	t.start()
	return t, nil
}

func newTable(cfg Config, opts ...Option) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Table{
		cfg:     cfg,
		clock:   quartz.NewReal(),
		logger:  log.Default(),
		persist: discardPersister{},
		newDeck: poker.NewShuffledDeck,
		cmds:    make(chan command, 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		seats:   make([]*seat, cfg.MaxSeats),
		button:  -1,
	}
	if cfg.DeckSeed != 0 {
		t.newDeck = SeededDecks(cfg.DeckSeed)
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.bus == nil {
		t.bus = NewBus()
	}
	t.logger = t.logger.WithPrefix("table").With("table", cfg.ID)
	t.timer = timer.New(t.clock, func(e timer.Expiry) {
		t.post(func() { t.onExpiry(e) })
	})
	return t, nil
}

func (t *Table) start() {
	go t.run()
}

// ID returns the table id.
func (t *Table) ID() string { return t.cfg.ID }

// Config returns the table settings.
func (t *Table) Config() Config { return t.cfg }

// Bus returns the bus the table publishes on.
func (t *Table) Bus() *Bus { return t.bus }

func (t *Table) run() {
	defer close(t.done)
	for {
		select {
		case cmd := <-t.cmds:
			err := cmd.fn()
			if cmd.reply != nil {
				cmd.reply <- err
			}
		case <-t.quit:
			t.timer.Cancel()
			t.stopPause()
			if t.hand != nil {
				// Left unfinished in storage; Restore refunds it.
				t.logger.Warn("Stopping with hand in progress", "hand", t.hand.ID)
			}
			return
		}
	}
}

// call runs fn on the table goroutine and waits for its result.
func (t *Table) call(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case t.cmds <- cmd:
	case <-t.done:
		return ErrTableClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-t.done:
		select {
		case err := <-cmd.reply:
			return err
		default:
			return ErrTableClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting for it. Used by clock callbacks.
func (t *Table) post(fn func()) {
	select {
	case t.cmds <- command{fn: func() error { fn(); return nil }}:
	case <-t.done:
	}
}

// Stop halts the table goroutine and its timers.
func (t *Table) Stop(ctx context.Context) error {
	t.stopOnce.Do(func() { close(t.quit) })
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join seats playerID. seat -1 takes the lowest free seat. A player who is
// already seated is reconnected to their seat, which clears sitting out and
// any pending leave; a busted player may top up with buyIn.
func (t *Table) Join(ctx context.Context, playerID, name string, seatNo, buyIn int) (int, error) {
	if playerID == "" {
		return 0, fmt.Errorf("%w: empty player id", ErrNotSeated)
	}
	var result int
	err := t.call(ctx, func() error {
		if s := t.seatOf(playerID); s != nil {
			result = s.Seat
			return t.rejoin(s, buyIn)
		}
		if buyIn <= 0 {
			buyIn = t.cfg.BuyInMax
			if buyIn == 0 {
				buyIn = t.cfg.BuyInMin
			}
		}
		if !t.cfg.validBuyIn(buyIn) {
			return fmt.Errorf("%w: %d not in %d-%d", ErrInvalidBuyIn, buyIn, t.cfg.BuyInMin, t.cfg.BuyInMax)
		}
		switch {
		case seatNo < 0:
			seatNo = t.freeSeat()
			if seatNo < 0 {
				return ErrTableFull
			}
		case seatNo >= len(t.seats):
			return fmt.Errorf("%w: %d", ErrInvalidSeat, seatNo)
		case t.seats[seatNo] != nil:
			return fmt.Errorf("%w: %d", ErrSeatOccupied, seatNo)
		}
		if name == "" {
			name = playerID
		}
		s := &seat{
			Seat:      seatNo,
			PlayerID:  playerID,
			Name:      name,
			Stack:     buyIn,
			TimeBank:  t.cfg.TimeBank,
			Connected: true,
		}
		t.seats[seatNo] = s
		result = seatNo
		t.logger.Info("Player joined", "player", playerID, "seat", seatNo, "stack", buyIn)
		t.publish(&PlayerJoined{EventHeader: t.header(), Seat: seatNo, PlayerID: playerID, Name: name, Stack: buyIn})
		t.persistTable()
		t.scheduleNextHand()
		return nil
	})
	return result, err
}

func (t *Table) rejoin(s *seat, buyIn int) error {
	if s.Stack == 0 && buyIn > 0 && !t.inHand(s) {
		if !t.cfg.validBuyIn(buyIn) {
			return fmt.Errorf("%w: %d not in %d-%d", ErrInvalidBuyIn, buyIn, t.cfg.BuyInMin, t.cfg.BuyInMax)
		}
		s.Stack = buyIn
		t.persistTable()
	}
	before := s.status()
	s.Connected = true
	s.SittingOut = false
	s.LeaveAfterHand = false
	if s.status() != before {
		t.logger.Info("Player reconnected", "player", s.PlayerID, "seat", s.Seat)
		t.publish(&StatusChanged{EventHeader: t.header(), Seat: s.Seat, PlayerID: s.PlayerID, Status: s.status()})
	}
	t.scheduleNextHand()
	return nil
}

// Leave removes playerID. A player dealt into the current hand keeps the
// seat, marked sitting out, until the hand settles; if it is their turn they
// check or fold at once.
func (t *Table) Leave(ctx context.Context, playerID string) error {
	return t.call(ctx, func() error {
		s := t.seatOf(playerID)
		if s == nil {
			return ErrNotSeated
		}
		if !t.inHand(s) {
			t.vacate(s)
			return nil
		}
		s.LeaveAfterHand = true
		s.SittingOut = true
		t.logger.Info("Player leaving after hand", "player", playerID, "seat", s.Seat)
		t.publish(&StatusChanged{EventHeader: t.header(), Seat: s.Seat, PlayerID: s.PlayerID, Status: s.status()})
		t.forceIfActing(s)
		return nil
	})
}

// Disconnect marks playerID's connection lost. They stay dealt in and their
// clock keeps running.
func (t *Table) Disconnect(ctx context.Context, playerID string) error {
	return t.call(ctx, func() error {
		s := t.seatOf(playerID)
		if s == nil {
			return ErrNotSeated
		}
		if !s.Connected {
			return nil
		}
		s.Connected = false
		t.logger.Info("Player disconnected", "player", playerID, "seat", s.Seat)
		t.publish(&StatusChanged{EventHeader: t.header(), Seat: s.Seat, PlayerID: s.PlayerID, Status: s.status()})
		return nil
	})
}

// SitOut stops dealing playerID into hands. In a hand they are checked or
// folded whenever action reaches them.
func (t *Table) SitOut(ctx context.Context, playerID string) error {
	return t.call(ctx, func() error {
		s := t.seatOf(playerID)
		if s == nil {
			return ErrNotSeated
		}
		if s.SittingOut {
			return nil
		}
		s.SittingOut = true
		t.publish(&StatusChanged{EventHeader: t.header(), Seat: s.Seat, PlayerID: s.PlayerID, Status: s.status()})
		t.forceIfActing(s)
		return nil
	})
}

// SitIn deals playerID into hands again.
func (t *Table) SitIn(ctx context.Context, playerID string) error {
	return t.call(ctx, func() error {
		s := t.seatOf(playerID)
		if s == nil {
			return ErrNotSeated
		}
		if !s.SittingOut || s.LeaveAfterHand {
			return nil
		}
		s.SittingOut = false
		t.publish(&StatusChanged{EventHeader: t.header(), Seat: s.Seat, PlayerID: s.PlayerID, Status: s.status()})
		t.scheduleNextHand()
		return nil
	})
}

// Act applies a player decision. amount is the raise-to total for bet and
// raise. Validation errors leave the table unchanged.
func (t *Table) Act(ctx context.Context, playerID string, action game.Action, amount int) error {
	return t.call(ctx, func() error {
		s := t.seatOf(playerID)
		if s == nil {
			return ErrNotSeated
		}
		if t.hand == nil {
			return ErrNoHand
		}
		if !t.inHand(s) || t.hand.ActorSeat != s.Seat {
			return game.ErrNotYourTurn
		}
		from := len(t.hand.Log)
		out, err := t.hand.ProcessAction(s.Seat, action, amount)
		if err != nil {
			var inv *game.InvariantError
			if errors.As(err, &inv) {
				t.abort(err)
			}
			return err
		}
		s.TimeBank = max(s.TimeBank-t.timer.Cancel(), 0)
		if t.emitOutcome(out, from) {
			t.advance()
		}
		return nil
	})
}

// Chat relays a message from a seated player. Messages are trimmed and cut
// to MaxChatRunes.
func (t *Table) Chat(ctx context.Context, playerID, message string) error {
	message = truncateRunes(strings.TrimSpace(message), MaxChatRunes)
	if message == "" {
		return ErrEmptyMessage
	}
	return t.call(ctx, func() error {
		s := t.seatOf(playerID)
		if s == nil {
			return ErrNotSeated
		}
		t.publish(&ChatPosted{EventHeader: t.header(), Seat: s.Seat, PlayerID: s.PlayerID, Name: s.Name, Message: message})
		return nil
	})
}

// Snapshot returns the unredacted table state.
func (t *Table) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := t.call(ctx, func() error {
		snap = t.snapshot()
		return nil
	})
	return snap, err
}

// View calls fn with the unredacted state on the table's goroutine, so no
// event can be published between the snapshot and whatever fn does with it.
// fn must not block or call back into the table.
func (t *Table) View(ctx context.Context, fn func(Snapshot)) error {
	return t.call(ctx, func() error {
		fn(t.snapshot())
		return nil
	})
}

// ClearReview lifts the hold placed on the table by an aborted hand.
func (t *Table) ClearReview(ctx context.Context) error {
	return t.call(ctx, func() error {
		if !t.needsReview {
			return nil
		}
		t.needsReview = false
		t.logger.Info("Review cleared")
		t.persistTable()
		t.scheduleNextHand()
		return nil
	})
}

func (t *Table) seatOf(playerID string) *seat {
	for _, s := range t.seats {
		if s != nil && s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

func (t *Table) freeSeat() int {
	for i, s := range t.seats {
		if s == nil {
			return i
		}
	}
	return -1
}

func (t *Table) inHand(s *seat) bool {
	if t.hand == nil {
		return false
	}
	p := t.hand.Player(s.Seat)
	return p != nil && p.ID == s.PlayerID
}

func (t *Table) vacate(s *seat) {
	t.seats[s.Seat] = nil
	t.logger.Info("Player left", "player", s.PlayerID, "seat", s.Seat, "stack", s.Stack)
	t.publish(&PlayerLeft{EventHeader: t.header(), Seat: s.Seat, PlayerID: s.PlayerID, Stack: s.Stack})
	t.persistTable()
}

func (t *Table) header() EventHeader {
	t.seq++
	h := EventHeader{
		TableID: t.cfg.ID,
		Seq:     t.seq,
		Time:    t.clock.Now(),
	}
	if t.hand != nil {
		h.HandID = t.hand.ID
	}
	return h
}

// publish stamps the post-event snapshot on e and sends it.
func (t *Table) publish(e Event) {
	e.stamp(t.snapshot())
	t.bus.Publish(e)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func newHandID() string {
	return handid.New()
}
