package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/table"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBufferSize = 256

	// HeartbeatInterval is how often the server sends a ping message.
	HeartbeatInterval = 30 * time.Second

	// HeartbeatGrace is how long past a missed ping a silent client is kept.
	HeartbeatGrace = 10 * time.Second
)

var errHeartbeatMissed = errors.New("heartbeat missed")

// Connection is one player's WebSocket session at one table.
type Connection struct {
	id       string
	tableID  string
	playerID string
	table    *table.Table
	conn     *websocket.Conn
	send     chan *Message
	hub      *Hub
	clock    quartz.Clock
	logger   *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	// lastSeen is the clock time, in unix nanoseconds, of the last inbound frame.
	lastSeen atomic.Int64
	// left is set once the player asked to leave, so closing does not mark
	// them disconnected.
	left atomic.Bool
}

func newConnection(ws *websocket.Conn, hub *Hub, tbl *table.Table, playerID string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	c := &Connection{
		id:       id,
		tableID:  tbl.ID(),
		playerID: playerID,
		table:    tbl,
		conn:     ws,
		send:     make(chan *Message, sendBufferSize),
		hub:      hub,
		clock:    hub.clock,
		logger:   hub.logger.WithPrefix("conn").With("table", tbl.ID(), "player", playerID),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.touch()
	return c
}

// Start begins handling the connection
func (c *Connection) Start() {
	c.clock.TickerFunc(c.ctx, HeartbeatInterval, c.heartbeat, "conn", "heartbeat")
	go c.writePump()
	go c.readPump()
}

// Close stops the connection. Messages already queued are flushed first.
func (c *Connection) Close() error {
	c.closeOnce.Do(c.cancel)
	return nil
}

// Done is closed once the underlying socket is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// SendMessage queues msg without blocking. A connection whose buffer is full
// is closed; the client recovers with a fresh game_state on reconnect.
func (c *Connection) SendMessage(msg *Message) error {
	if c.ctx.Err() != nil {
		return ErrConnectionClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) touch() {
	c.lastSeen.Store(c.clock.Now().UnixNano())
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() {
		_ = c.Close()
		c.hub.detach(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		c.touch()

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("Malformed message", "error", err)
			c.sendError("invalid_message", "Failed to parse message")
			continue
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	defer func() {
		_ = c.Close()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.logger.Debug("Failed to write message", "error", err)
				return
			}
		case <-c.ctx.Done():
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Connection) write(msg *Message) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *Connection) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// heartbeat pings the client, closing the connection once nothing has been
// heard from it for a full interval plus the grace period.
func (c *Connection) heartbeat() error {
	idle := c.clock.Now().Sub(time.Unix(0, c.lastSeen.Load()))
	if idle > HeartbeatInterval+HeartbeatGrace {
		c.logger.Warn("Heartbeat missed, closing connection", "idle", idle)
		_ = c.Close()
		return errHeartbeatMissed
	}
	msg, _ := NewMessage(MessageTypePing, nil)
	msg.TableID = c.tableID
	_ = c.SendMessage(msg)
	return nil
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type)

	if !c.hub.registry.owns(c) {
		c.sendError("replaced", "Connection replaced by a newer session")
		return
	}

	var err error
	switch msg.Type {
	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse action data")
			return
		}
		var action game.Action
		if action, err = game.ParseAction(data.Action); err == nil {
			err = c.table.Act(c.ctx, c.playerID, action, data.Amount)
		}

	case MessageTypeChat:
		var data ChatData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse chat data")
			return
		}
		err = c.table.Chat(c.ctx, c.playerID, data.Message)

	case MessageTypePing:
		pong, _ := NewMessage(MessageTypePong, nil)
		pong.TableID = c.tableID
		_ = c.SendMessage(pong)

	case MessageTypePong:
		// touch already recorded it

	case MessageTypeResync:
		err = c.hub.sendState(c.ctx, c)

	case MessageTypeSitOut:
		err = c.table.SitOut(c.ctx, c.playerID)

	case MessageTypeSitIn:
		err = c.table.SitIn(c.ctx, c.playerID)

	case MessageTypeLeave:
		c.left.Store(true)
		if err = c.table.Leave(c.ctx, c.playerID); err != nil {
			c.left.Store(false)
			break
		}
		_ = c.Close()

	default:
		err = fmt.Errorf("%w: %s", ErrUnknownMessage, msg.Type)
	}

	if err != nil {
		c.sendFailure(err)
	}
}

// sendFailure reports err to this connection only.
func (c *Connection) sendFailure(err error) {
	code := errorCode(err)
	if code == "internal_error" {
		c.logger.Error("Request failed", "error", err)
	} else {
		c.logger.Debug("Request rejected", "code", code, "error", err)
	}
	c.sendError(code, err.Error())
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	errorMsg.TableID = c.tableID
	errorMsg.PlayerID = c.playerID
	_ = c.SendMessage(errorMsg)
}
