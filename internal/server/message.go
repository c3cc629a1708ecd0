package server

import (
	"encoding/json"
	"time"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/table"
	"github.com/lox/cardroom/poker"
)

// Message is the envelope for every frame in both directions. Server
// messages caused by a table event carry that event's sequence number.
type Message struct {
	Type      MessageType     `json:"type"`
	TableID   string          `json:"tableId,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Seq       uint64          `json:"seq,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	msg := &Message{Type: messageType, Timestamp: time.Now()}
	if data == nil {
		return msg, nil
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	msg.Data = dataBytes
	return msg, nil
}

// Client → Server Messages

type ActionData struct {
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

type ChatData struct {
	Message string `json:"message"`
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PlayerActionData struct {
	Seat   int         `json:"seat"`
	Action game.Action `json:"action"`
	Amount int         `json:"amount"`
	BetTo  int         `json:"betTo"`
	Street game.Street `json:"street"`
	Forced bool        `json:"forced,omitempty"`
	Pot    int         `json:"pot"`
	Stack  int         `json:"stack"`
}

// HandUpdateData reports a phase transition. Result and Stacks are set once
// the hand is complete.
type HandUpdateData struct {
	HandID string       `json:"handId"`
	Phase  game.Street  `json:"phase"`
	Board  []poker.Card `json:"board"`
	Pot    int          `json:"pot"`
	Result *game.Result `json:"result,omitempty"`
	Stacks map[int]int  `json:"stacks,omitempty"`
}

type TurnUpdateData struct {
	Seat          int        `json:"seat"`
	Legal         game.Legal `json:"legal"`
	Deadline      time.Time  `json:"deadline"`
	TimeRemaining float64    `json:"timeRemaining"`
	InBank        bool       `json:"inBank"`
}

type PlayerJoinedData struct {
	Seat  int    `json:"seat"`
	Name  string `json:"name"`
	Stack int    `json:"stack"`
}

type PlayerLeftData struct {
	Seat  int `json:"seat"`
	Stack int `json:"stack"`
}

type PlayerStatusData struct {
	Seat   int          `json:"seat"`
	Status table.Status `json:"status"`
}

type ChatPostedData struct {
	Seat    int    `json:"seat"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// TableInfo summarises a table for GET /tables.
type TableInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	SmallBlind  int    `json:"smallBlind"`
	BigBlind    int    `json:"bigBlind"`
	Ante        int    `json:"ante,omitempty"`
	HandNumber  int    `json:"handNumber"`
	InHand      bool   `json:"inHand"`
	NeedsReview bool   `json:"needsReview,omitempty"`
}

func tableInfoFromSnapshot(s table.Snapshot) TableInfo {
	return TableInfo{
		ID:          s.TableID,
		Name:        s.Name,
		PlayerCount: len(s.Seats),
		MaxPlayers:  s.MaxSeats,
		SmallBlind:  s.SmallBlind,
		BigBlind:    s.BigBlind,
		Ante:        s.Ante,
		HandNumber:  s.HandNumber,
		InHand:      s.Hand != nil && s.Hand.Live,
		NeedsReview: s.NeedsReview,
	}
}
