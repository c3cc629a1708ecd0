package table

import (
	"sync"
	"time"

	"github.com/lox/cardroom/internal/game"
)

// Event types, as used on the bus and the NATS mirror.
const (
	TypeHandStarted   = "hand_started"
	TypeAction        = "action"
	TypePhaseChange   = "phase_change"
	TypeTurnChanged   = "turn_changed"
	TypeHandComplete  = "hand_complete"
	TypePlayerJoined  = "player_joined"
	TypePlayerLeft    = "player_left"
	TypeStatusChanged = "status_changed"
	TypeChat          = "chat"
	TypeTableFlagged  = "table_flagged"
)

// Event is a table domain event. Events are published from the table's own
// goroutine, in order, each with the next per-table sequence number.
type Event interface {
	Type() string
	Meta() EventHeader
	stamp(Snapshot)
}

// EventHeader is common to every event. State is the full, unredacted table
// snapshot after the event; subscribers must redact it per recipient.
type EventHeader struct {
	TableID string    `json:"tableId"`
	HandID  string    `json:"handId,omitempty"`
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	State   Snapshot  `json:"-"`
}

func (h EventHeader) Meta() EventHeader { return h }

func (h *EventHeader) stamp(s Snapshot) { h.State = s }

type HandStarted struct {
	EventHeader
	Number         int   `json:"number"`
	Button         int   `json:"button"`
	SmallBlindSeat int   `json:"smallBlindSeat"`
	BigBlindSeat   int   `json:"bigBlindSeat"`
	Seats          []int `json:"seats"`
}

type ActionTaken struct {
	EventHeader
	Record game.ActionRecord `json:"record"`
	Pot    int               `json:"pot"`
	Stack  int               `json:"stack"`
}

type PhaseChanged struct {
	EventHeader
	Change game.StreetChange `json:"change"`
}

type TurnChanged struct {
	EventHeader
	Seat      int           `json:"seat"`
	PlayerID  string        `json:"playerId"`
	Legal     game.Legal    `json:"legal"`
	Deadline  time.Time     `json:"deadline"`
	Remaining time.Duration `json:"remaining"`
	InBank    bool          `json:"inBank"`
}

type HandCompleted struct {
	EventHeader
	Result game.Result `json:"result"`
	// Stacks maps seat to stack after settlement.
	Stacks map[int]int `json:"stacks"`
}

type PlayerJoined struct {
	EventHeader
	Seat     int    `json:"seat"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Stack    int    `json:"stack"`
}

type PlayerLeft struct {
	EventHeader
	Seat     int    `json:"seat"`
	PlayerID string `json:"playerId"`
	Stack    int    `json:"stack"`
}

type StatusChanged struct {
	EventHeader
	Seat     int    `json:"seat"`
	PlayerID string `json:"playerId"`
	Status   Status `json:"status"`
}

type ChatPosted struct {
	EventHeader
	Seat     int    `json:"seat"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}

type TableFlagged struct {
	EventHeader
	Reason string `json:"reason"`
}

func (HandStarted) Type() string   { return TypeHandStarted }
func (ActionTaken) Type() string   { return TypeAction }
func (PhaseChanged) Type() string  { return TypePhaseChange }
func (TurnChanged) Type() string   { return TypeTurnChanged }
func (HandCompleted) Type() string { return TypeHandComplete }
func (PlayerJoined) Type() string  { return TypePlayerJoined }
func (PlayerLeft) Type() string    { return TypePlayerLeft }
func (StatusChanged) Type() string { return TypeStatusChanged }
func (ChatPosted) Type() string    { return TypeChat }
func (TableFlagged) Type() string  { return TypeTableFlagged }

// Subscriber receives events. It is called on the publishing table's
// goroutine and must not block.
type Subscriber func(Event)

// Bus fans table events out to subscribers. One Bus may serve many tables.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]Subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]Subscriber)}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers e to every subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}
