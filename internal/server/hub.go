package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/table"
)

// detachTimeout bounds the table call made when a connection goes away.
const detachTimeout = 5 * time.Second

// Hub turns table events into protocol messages for the connections at each
// table. Only game_state carries hole cards, and it is redacted separately
// for every recipient.
type Hub struct {
	registry    *registry
	clock       quartz.Clock
	logger      *log.Logger
	unsubscribe func()
}

// NewHub subscribes to bus, which must be the bus the tables publish on.
func NewHub(bus *table.Bus, clock quartz.Clock, logger *log.Logger) *Hub {
	if clock == nil {
		clock = quartz.NewReal()
	}
	h := &Hub{
		registry: newRegistry(),
		clock:    clock,
		logger:   logger.WithPrefix("hub"),
	}
	h.unsubscribe = bus.Subscribe(h.handleEvent)
	return h
}

// Close unsubscribes from the bus and closes every connection.
func (h *Hub) Close() {
	h.unsubscribe()
	for _, c := range h.registry.all() {
		_ = c.Close()
	}
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	return h.registry.count()
}

// Attach seats playerID at tbl over ws, replacing any earlier connection for
// the same player. The new connection first receives a full game_state.
func (h *Hub) Attach(ctx context.Context, ws *websocket.Conn, tbl *table.Table, playerID, name string, seat, buyIn int) *Connection {
	c := newConnection(ws, h, tbl, playerID)
	if prev := h.registry.add(c); prev != nil {
		h.logger.Info("Replacing connection", "table", c.tableID, "player", playerID)
		prev.sendError("replaced", "Connection replaced by a newer session")
		_ = prev.Close()
	}

	seatNo, err := tbl.Join(ctx, playerID, name, seat, buyIn)
	if err != nil {
		c.sendFailure(err)
		c.Start()
		_ = c.Close()
		return c
	}
	h.logger.Info("Player connected", "table", c.tableID, "player", playerID, "seat", seatNo)

	if err := h.sendState(ctx, c); err != nil {
		c.sendFailure(err)
	}
	c.Start()
	return c
}

// detach forgets c. If c was still the player's authoritative connection
// the player is marked disconnected at the table.
func (h *Hub) detach(c *Connection) {
	if !h.registry.remove(c) || c.left.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), detachTimeout)
	defer cancel()
	if err := c.table.Disconnect(ctx, c.playerID); err != nil {
		h.logger.Debug("Disconnect not recorded", "table", c.tableID, "player", c.playerID, "error", err)
		return
	}
	h.logger.Info("Player disconnected", "table", c.tableID, "player", c.playerID)
}

// sendState queues a game_state for c from inside the table's goroutine, so
// it is ordered correctly against the event stream.
func (h *Hub) sendState(ctx context.Context, c *Connection) error {
	return c.table.View(ctx, func(s table.Snapshot) {
		h.sendSnapshot(c, s)
	})
}

func (h *Hub) sendSnapshot(c *Connection, s table.Snapshot) {
	msg, err := NewMessage(MessageTypeGameState, s.RedactFor(c.playerID))
	if err != nil {
		h.logger.Error("Failed to encode game state", "error", err)
		return
	}
	msg.TableID = s.TableID
	msg.PlayerID = c.playerID
	msg.Seq = s.Seq
	_ = c.SendMessage(msg)
}

// handleEvent is the bus subscriber. It runs on the table's goroutine and
// only queues messages.
func (h *Hub) handleEvent(e table.Event) {
	meta := e.Meta()
	conns := h.registry.forTable(meta.TableID)
	if len(conns) == 0 {
		return
	}

	switch ev := e.(type) {
	case *table.HandStarted, *table.TableFlagged:
		h.broadcastState(conns, meta.State)

	case *table.ActionTaken:
		h.broadcast(conns, meta, MessageTypePlayerAction, ev.Record.Player, PlayerActionData{
			Seat:   ev.Record.Seat,
			Action: ev.Record.Action,
			Amount: ev.Record.Amount,
			BetTo:  ev.Record.BetTo,
			Street: ev.Record.Street,
			Forced: ev.Record.Forced,
			Pot:    ev.Pot,
			Stack:  ev.Stack,
		})

	case *table.PhaseChanged:
		h.broadcast(conns, meta, MessageTypeHandUpdate, "", HandUpdateData{
			HandID: meta.HandID,
			Phase:  ev.Change.Street,
			Board:  ev.Change.Board,
			Pot:    ev.Change.Pot,
		})

	case *table.TurnChanged:
		h.broadcast(conns, meta, MessageTypeTurnUpdate, ev.PlayerID, TurnUpdateData{
			Seat:          ev.Seat,
			Legal:         ev.Legal,
			Deadline:      ev.Deadline,
			TimeRemaining: ev.Remaining.Seconds(),
			InBank:        ev.InBank,
		})

	case *table.HandCompleted:
		update := HandUpdateData{
			HandID: ev.Result.HandID,
			Phase:  game.StreetComplete,
			Result: &ev.Result,
			Stacks: ev.Stacks,
		}
		if hv := meta.State.Hand; hv != nil {
			update.Board = hv.Board
			update.Pot = hv.Pot
		}
		h.broadcast(conns, meta, MessageTypeHandUpdate, "", update)
		h.broadcastState(conns, meta.State)

	case *table.PlayerJoined:
		h.broadcast(conns, meta, MessageTypePlayerJoined, ev.PlayerID, PlayerJoinedData{
			Seat: ev.Seat, Name: ev.Name, Stack: ev.Stack,
		})

	case *table.PlayerLeft:
		h.broadcast(conns, meta, MessageTypePlayerLeft, ev.PlayerID, PlayerLeftData{
			Seat: ev.Seat, Stack: ev.Stack,
		})

	case *table.StatusChanged:
		h.broadcast(conns, meta, MessageTypePlayerStatus, ev.PlayerID, PlayerStatusData{
			Seat: ev.Seat, Status: ev.Status,
		})

	case *table.ChatPosted:
		h.broadcast(conns, meta, MessageTypeChat, ev.PlayerID, ChatPostedData{
			Seat: ev.Seat, Name: ev.Name, Message: ev.Message,
		})
	}
}

func (h *Hub) broadcast(conns []*Connection, meta table.EventHeader, t MessageType, playerID string, data interface{}) {
	msg, err := NewMessage(t, data)
	if err != nil {
		h.logger.Error("Failed to encode message", "type", t, "error", err)
		return
	}
	msg.TableID = meta.TableID
	msg.PlayerID = playerID
	msg.Timestamp = meta.Time
	msg.Seq = meta.Seq
	for _, c := range conns {
		_ = c.SendMessage(msg)
	}
	h.logger.Debug("Broadcast", "table", meta.TableID, "type", t, "seq", meta.Seq, "recipients", len(conns))
}

func (h *Hub) broadcastState(conns []*Connection, s table.Snapshot) {
	for _, c := range conns {
		h.sendSnapshot(c, s)
	}
}
