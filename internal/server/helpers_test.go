package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/table"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type testServer struct {
	t       *testing.T
	ctx     context.Context
	clock   *quartz.Mock
	table   *table.Table
	manager *table.Manager
	srv     *Server
	http    *httptest.Server
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ts := &testServer{t: t, ctx: context.Background(), clock: quartz.NewMock(t)}

	bus := table.NewBus()
	tbl, err := table.New(table.Config{
		ID:            "main",
		Name:          "Main",
		MaxSeats:      6,
		SmallBlind:    10,
		BigBlind:      20,
		ActionTimeout: 10 * time.Second,
		HandPause:     2 * time.Second,
		BuyInMin:      100,
		BuyInMax:      1000,
	}, table.WithClock(ts.clock), table.WithLogger(quietLogger()), table.WithBus(bus))
	require.NoError(t, err)
	ts.table = tbl
	ts.manager = table.NewManager()
	require.NoError(t, ts.manager.Add(tbl))

	opts.Clock = ts.clock
	ts.srv = NewServer("", ts.manager, bus, quietLogger(), opts)
	ts.http = httptest.NewServer(ts.srv.Handler())
	t.Cleanup(func() {
		ts.srv.Hub().Close()
		ts.http.Close()
		_ = ts.manager.Stop(context.Background())
	})
	return ts
}

func (ts *testServer) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws?" + query
}

// dial connects and waits for the initial game_state.
func (ts *testServer) dial(query string) (*wsClient, table.Snapshot) {
	ts.t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(query), nil)
	require.NoError(ts.t, err)
	c := &wsClient{t: ts.t, conn: conn}
	ts.t.Cleanup(func() { _ = conn.Close() })
	return c, c.state(c.readUntil(MessageTypeGameState))
}

func (ts *testServer) get(path string) *http.Response {
	ts.t.Helper()
	resp, err := http.Get(ts.http.URL + path)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// fireNext advances the mock clock to the next timer and waits for it.
func (ts *testServer) fireNext() time.Duration {
	ts.t.Helper()
	d, w := ts.clock.AdvanceNext()
	w.MustWait(ts.ctx)
	return d
}

func (ts *testServer) seat(playerID string) table.SeatView {
	ts.t.Helper()
	snap, err := ts.table.Snapshot(ts.ctx)
	require.NoError(ts.t, err)
	v, ok := snap.SeatOf(playerID)
	require.True(ts.t, ok, "%s not seated", playerID)
	return v
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (c *wsClient) send(t MessageType, data interface{}) {
	c.t.Helper()
	msg, err := NewMessage(t, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *wsClient) read() Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

// readUntil skips messages until one of type t arrives.
func (c *wsClient) readUntil(t MessageType) Message {
	c.t.Helper()
	for {
		if msg := c.read(); msg.Type == t {
			return msg
		}
	}
}

// readAllUntil returns every message up to and including the first of type t.
func (c *wsClient) readAllUntil(t MessageType) []Message {
	c.t.Helper()
	var out []Message
	for {
		msg := c.read()
		out = append(out, msg)
		if msg.Type == t {
			return out
		}
	}
}

func (c *wsClient) state(msg Message) table.Snapshot {
	c.t.Helper()
	require.Equal(c.t, MessageTypeGameState, msg.Type)
	var s table.Snapshot
	require.NoError(c.t, json.Unmarshal(msg.Data, &s))
	return s
}

func (c *wsClient) errorData(msg Message) ErrorData {
	c.t.Helper()
	require.Equal(c.t, MessageTypeError, msg.Type)
	var e ErrorData
	require.NoError(c.t, json.Unmarshal(msg.Data, &e))
	return e
}

// expectClosed reads until the server closes the socket.
func (c *wsClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.t.Fatal("connection was not closed")
			}
			return
		}
	}
}
