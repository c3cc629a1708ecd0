// Package client is a reconnecting WebSocket client for a cardroom table.
//
// A Client keeps one player seated at one table. Dropped connections are
// retried with exponential backoff and jitter; when the server keeps
// answering 503 the client pauses for a while before trying again. Calling
// Leave gives up the seat and ends Run.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lestrrat-go/backoff/v2"
)

// AnySeat lets the table pick a free seat.
const AnySeat = -1

const writeWait = 10 * time.Second

var (
	// ErrReplaced is returned by Run when another session took over the seat.
	ErrReplaced = errors.New("session replaced by another connection")

	// ErrNotConnected is returned when sending while no session is open.
	ErrNotConnected = errors.New("not connected")
)

// HandshakeError is an HTTP response that refused the WebSocket upgrade.
type HandshakeError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HandshakeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("handshake failed: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("handshake failed: %d", e.StatusCode)
}

// Overloaded reports whether the server asked clients to back off.
func (e *HandshakeError) Overloaded() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusTooManyRequests
}

// Handler receives messages of one type. Handlers run on the read loop, in
// arrival order, and must not block for long.
type Handler func(*Message)

// Config configures a Client.
type Config struct {
	// URL is the server's WebSocket endpoint, e.g. ws://localhost:8080/ws.
	URL    string
	Table  string
	Player string
	Name   string
	// Seat is the requested seat, or AnySeat.
	Seat  int
	BuyIn int
	// Token is sent as a bearer token when set.
	Token string

	// Backoff paces reconnect attempts. It is restarted after every session
	// that got past the handshake.
	Backoff backoff.Policy
	// BreakerThreshold is how many overloaded handshakes in a row trip the
	// breaker.
	BreakerThreshold int
	// BreakerPause is how long a tripped breaker waits before retrying.
	BreakerPause time.Duration

	Clock  quartz.Clock
	Logger *log.Logger
	Dialer *websocket.Dialer
}

func (c *Config) applyDefaults() {
	if c.Backoff == nil {
		c.Backoff = backoff.Exponential(
			backoff.WithMinInterval(500*time.Millisecond),
			backoff.WithMaxInterval(30*time.Second),
			backoff.WithJitterFactor(0.3),
			backoff.WithMaxRetries(0),
		)
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 3
	}
	if c.BreakerPause <= 0 {
		c.BreakerPause = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = quartz.NewReal()
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Name == "" {
		c.Name = c.Player
	}
}

// Client keeps a player connected to a table.
type Client struct {
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	handlers map[MessageType][]Handler
	conn     *websocket.Conn
	cancel   context.CancelFunc
	left     bool

	// writeMu serializes frames on conn.
	writeMu sync.Mutex

	// read loop state
	lastSeq uint64
	state   *GameState
}

// New creates a client. Nothing is dialled until Run.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:      cfg,
		logger:   cfg.Logger.WithPrefix("client").With("table", cfg.Table, "player", cfg.Player),
		handlers: make(map[MessageType][]Handler),
	}
}

// On registers h for messages of type t.
func (c *Client) On(t MessageType, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = append(c.handlers[t], h)
}

// State returns the latest game_state received, with later events not
// applied. It is nil before the first one arrives.
func (c *Client) State() *GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether a session is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run connects and keeps reconnecting until ctx is cancelled, Leave is
// called, the seat is taken over, or the server refuses the request itself.
// It returns nil after Leave.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.left {
		c.mu.Unlock()
		return nil
	}
	c.cancel = cancel
	c.mu.Unlock()

	overloaded := 0
	for {
		var lastErr error
		restart := false
		b := c.cfg.Backoff.Start(ctx)

		for backoff.Continue(b) {
			served, err := c.session(ctx)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, ErrReplaced) {
				return err
			}

			var hs *HandshakeError
			switch {
			case errors.As(err, &hs) && hs.Overloaded():
				overloaded++
			case errors.As(err, &hs) && hs.StatusCode >= 400 && hs.StatusCode < 500:
				return err
			default:
				overloaded = 0
			}

			if overloaded >= c.cfg.BreakerThreshold {
				c.logger.Warn("Server overloaded, pausing reconnects", "attempts", overloaded, "pause", c.cfg.BreakerPause)
				overloaded = 0
				if err := c.pause(ctx); err != nil {
					break
				}
				restart = true
				break
			}
			if served {
				c.logger.Info("Connection lost, reconnecting", "error", err)
				restart = true
				break
			}
			c.logger.Debug("Connect failed", "error", err)
		}

		if ctx.Err() != nil {
			if c.hasLeft() {
				return nil
			}
			return ctx.Err()
		}
		if !restart {
			return fmt.Errorf("giving up reconnecting: %w", lastErr)
		}
	}
}

// pause waits out a tripped breaker.
func (c *Client) pause(ctx context.Context) error {
	t := c.cfg.Clock.NewTimer(c.cfg.BreakerPause, "client", "breaker")
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) hasLeft() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}

	q := u.Query()
	q.Set("table", c.cfg.Table)
	q.Set("player", c.cfg.Player)
	q.Set("name", c.cfg.Name)
	if c.cfg.Seat >= 0 {
		q.Set("seat", strconv.Itoa(c.cfg.Seat))
	}
	if c.cfg.BuyIn > 0 {
		q.Set("buyIn", strconv.Itoa(c.cfg.BuyIn))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// session runs one connection to completion. served reports whether the
// handshake succeeded.
func (c *Client) session(ctx context.Context) (served bool, err error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return false, err
	}
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	ws, resp, err := c.cfg.Dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return false, handshakeError(resp)
		}
		return false, err
	}
	c.logger.Info("Connected", "url", endpoint)

	c.mu.Lock()
	c.conn = ws
	c.lastSeq = 0
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = ws.Close()
	}()

	stop := context.AfterFunc(ctx, func() {
		c.writeMu.Lock()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.writeMu.Unlock()
		_ = ws.Close()
	})
	defer stop()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return true, err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Malformed message", "error", err)
			continue
		}
		if err := c.handle(&msg); err != nil {
			return true, err
		}
	}
}

func handshakeError(resp *http.Response) error {
	defer resp.Body.Close()
	he := &HandshakeError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var data ErrorData
	if json.Unmarshal(body, &data) == nil {
		he.Code, he.Message = data.Code, data.Message
	}
	return he
}

// handle updates sequence tracking and dispatches msg.
func (c *Client) handle(msg *Message) error {
	switch msg.Type {
	case MessageTypePing:
		if err := c.send(MessageTypePong, nil); err != nil {
			c.logger.Debug("Failed to answer ping", "error", err)
		}
	case MessageTypeError:
		var data ErrorData
		if err := msg.Decode(&data); err == nil && data.Code == "replaced" {
			c.dispatch(msg)
			return ErrReplaced
		}
	case MessageTypeGameState:
		var state GameState
		if err := msg.Decode(&state); err != nil {
			c.logger.Warn("Bad game state", "error", err)
			break
		}
		c.mu.Lock()
		c.state = &state
		c.lastSeq = msg.Seq
		c.mu.Unlock()
	default:
		c.track(msg.Seq)
	}
	c.dispatch(msg)
	return nil
}

// track notes an event sequence number, asking for a fresh snapshot when
// one was skipped.
func (c *Client) track(seq uint64) {
	if seq == 0 {
		return
	}
	c.mu.Lock()
	last := c.lastSeq
	if seq > last {
		c.lastSeq = seq
	}
	c.mu.Unlock()

	if last != 0 && seq > last+1 {
		c.logger.Warn("Missed events, resyncing", "last", last, "got", seq)
		if err := c.Resync(); err != nil {
			c.logger.Debug("Resync failed", "error", err)
		}
	}
}

func (c *Client) dispatch(msg *Message) {
	c.mu.Lock()
	handlers := c.handlers[msg.Type]
	c.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

func (c *Client) send(t MessageType, data interface{}) error {
	msg := Message{Type: t, TableID: c.cfg.Table, Timestamp: c.cfg.Clock.Now()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		msg.Data = raw
	}

	c.mu.Lock()
	ws := c.conn
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(msg)
}

// Act sends an action for the current turn. amount is the raise-to total
// for bet and raise and ignored otherwise.
func (c *Client) Act(action string, amount int) error {
	return c.send(MessageTypeAction, ActionData{Action: action, Amount: amount})
}

// Chat posts a chat message to the table.
func (c *Client) Chat(message string) error {
	return c.send(MessageTypeChat, ChatData{Message: message})
}

// Resync asks for a fresh game_state.
func (c *Client) Resync() error {
	return c.send(MessageTypeResync, nil)
}

// SitOut stops being dealt in from the next hand.
func (c *Client) SitOut() error {
	return c.send(MessageTypeSitOut, nil)
}

// SitIn resumes being dealt in.
func (c *Client) SitIn() error {
	return c.send(MessageTypeSitIn, nil)
}

// Leave gives up the seat and stops reconnecting. Run returns nil.
func (c *Client) Leave() error {
	err := c.send(MessageTypeLeave, nil)
	if errors.Is(err, ErrNotConnected) {
		err = nil
	}
	c.mu.Lock()
	c.left = true
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return err
}
