package client

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/lox/cardroom/poker"
)

// Message represents a WebSocket message between client and server
type Message struct {
	Type      MessageType     `json:"type"`
	TableID   string          `json:"tableId,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Seq       uint64          `json:"seq,omitempty"`
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Data, v)
}

// MessageType represents the type of a WebSocket message
type MessageType string

// Client to Server message types
const (
	MessageTypeAction MessageType = "action"
	MessageTypeResync MessageType = "resync"
	MessageTypeSitOut MessageType = "sit_out"
	MessageTypeSitIn  MessageType = "sit_in"
	MessageTypeLeave  MessageType = "leave"
)

// Server to Client message types
const (
	MessageTypeGameState    MessageType = "game_state"
	MessageTypePlayerAction MessageType = "player_action"
	MessageTypeHandUpdate   MessageType = "hand_update"
	MessageTypeTurnUpdate   MessageType = "turn_update"
	MessageTypePlayerJoined MessageType = "player_joined"
	MessageTypePlayerLeft   MessageType = "player_left"
	MessageTypePlayerStatus MessageType = "player_status"
	MessageTypeError        MessageType = "error"
)

// Sent in both directions
const (
	MessageTypeChat MessageType = "chat"
	MessageTypePing MessageType = "ping"
	MessageTypePong MessageType = "pong"
)

// ActionData is sent to act on the current turn
type ActionData struct {
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

// ChatData is sent to post a chat message
type ChatData struct {
	Message string `json:"message"`
}

// ErrorData reports a rejected request or a closed session
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Legal lists what the actor may do. Raise amounts are raise-to totals.
type Legal struct {
	Actions    []string `json:"actions"`
	ToCall     int      `json:"toCall"`
	MinRaiseTo int      `json:"minRaiseTo,omitempty"`
	MaxRaiseTo int      `json:"maxRaiseTo,omitempty"`
}

func (l Legal) Allows(action string) bool {
	return slices.Contains(l.Actions, action)
}

// TurnUpdate is the payload of turn_update
type TurnUpdate struct {
	Seat          int       `json:"seat"`
	Legal         Legal     `json:"legal"`
	Deadline      time.Time `json:"deadline"`
	TimeRemaining float64   `json:"timeRemaining"`
	InBank        bool      `json:"inBank"`
}

// SeatState is one occupied seat as seen by this player
type SeatState struct {
	Seat      int          `json:"seat"`
	PlayerID  string       `json:"playerId"`
	Name      string       `json:"name"`
	Stack     int          `json:"stack"`
	Status    string       `json:"status"`
	InHand    bool         `json:"inHand"`
	Bet       int          `json:"bet"`
	Folded    bool         `json:"folded"`
	AllIn     bool         `json:"allIn"`
	HoleCards []poker.Card `json:"holeCards,omitempty"`
}

// HandState is the hand in progress, or the one just finished
type HandState struct {
	ID         string       `json:"id"`
	Number     int          `json:"number"`
	Phase      string       `json:"phase"`
	Live       bool         `json:"live"`
	Pot        int          `json:"pot"`
	Board      []poker.Card `json:"board"`
	Button     int          `json:"button"`
	CurrentBet int          `json:"currentBet"`
	ActorSeat  int          `json:"actorSeat"`
}

// GameState is the payload of game_state: the whole table, redacted for
// this player
type GameState struct {
	TableID    string      `json:"tableId"`
	Name       string      `json:"name"`
	MaxSeats   int         `json:"maxSeats"`
	SmallBlind int         `json:"smallBlind"`
	BigBlind   int         `json:"bigBlind"`
	Seats      []SeatState `json:"seats"`
	Button     int         `json:"button"`
	HandNumber int         `json:"handNumber"`
	Hand       *HandState  `json:"hand,omitempty"`
	Seq        uint64      `json:"seq"`
}

// Seat returns the seat held by playerID.
func (s *GameState) Seat(playerID string) (SeatState, bool) {
	for _, v := range s.Seats {
		if v.PlayerID == playerID {
			return v, true
		}
	}
	return SeatState{}, false
}
