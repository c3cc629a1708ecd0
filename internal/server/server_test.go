package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/auth"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/table"
)

// startHand seats a and b heads-up, deals the first hand and waits until
// both have the dealt game_state.
func startHand(t *testing.T, ts *testServer) (a, b *wsClient, stateA, stateB table.Snapshot) {
	t.Helper()
	a, _ = ts.dial("table=main&player=a&seat=0&buyIn=500")
	b, _ = ts.dial("table=main&player=b&seat=1&buyIn=500")
	assert.Equal(t, 2*time.Second, ts.fireNext())
	return a, b, handState(a), handState(b)
}

// handState reads until a game_state for a dealt hand arrives.
func handState(c *wsClient) table.Snapshot {
	c.t.Helper()
	for {
		if s := c.state(c.readUntil(MessageTypeGameState)); s.Hand != nil {
			return s
		}
	}
}

// readAction reads until a player_action for action arrives, failing on any
// error message seen on the way.
func readAction(c *wsClient, action game.Action) (Message, PlayerActionData) {
	c.t.Helper()
	for {
		msg := c.read()
		require.NotEqual(c.t, MessageTypeError, msg.Type, "unexpected error: %s", msg.Data)
		if msg.Type != MessageTypePlayerAction {
			continue
		}
		var data PlayerActionData
		require.NoError(c.t, json.Unmarshal(msg.Data, &data))
		if data.Action == action {
			return msg, data
		}
	}
}

func TestConnectSeatsPlayerAndSendsState(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})

	_, snap := ts.dial("table=main&player=a&name=Alice&buyIn=500")
	require.Len(t, snap.Seats, 1)
	v := snap.Seats[0]
	assert.Equal(t, "a", v.PlayerID)
	assert.Equal(t, "Alice", v.Name)
	assert.Equal(t, 500, v.Stack)
	assert.Equal(t, table.StatusActive, v.Status)
	assert.Nil(t, snap.Hand)
	assert.NotZero(t, snap.Seq)
	assert.Equal(t, 1, ts.srv.Hub().ConnectionCount())
}

func TestGameStateIsRedactedPerPlayer(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	_, _, stateA, stateB := startHand(t, ts)

	for player, snap := range map[string]table.Snapshot{"a": stateA, "b": stateB} {
		require.NotNil(t, snap.Hand)
		assert.True(t, snap.Hand.Live)
		for _, v := range snap.Seats {
			if v.PlayerID == player {
				assert.Len(t, v.HoleCards, 2, "%s sees own cards", player)
			} else {
				assert.Nil(t, v.HoleCards, "%s cannot see %s", player, v.PlayerID)
			}
		}
	}
}

func TestActionsBroadcastAndErrorsStayPrivate(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	a, b, _, _ := startHand(t, ts)

	// Heads-up the button (a) posts the small blind and acts first.
	b.send(MessageTypeAction, ActionData{Action: "check"})
	assert.Equal(t, "not_your_turn", b.errorData(b.readUntil(MessageTypeError)).Code)

	a.send(MessageTypeAction, ActionData{Action: "dance"})
	assert.Equal(t, "invalid_action", a.errorData(a.readUntil(MessageTypeError)).Code)
	a.send(MessageTypeAction, ActionData{Action: "raise", Amount: 25})
	assert.Equal(t, "raise_too_small", a.errorData(a.readUntil(MessageTypeError)).Code)

	a.send(MessageTypeAction, ActionData{Action: "call"})
	msgA, call := readAction(a, game.Call)
	assert.Equal(t, 0, call.Seat)
	assert.Equal(t, 10, call.Amount)
	assert.Equal(t, 40, call.Pot)
	assert.Equal(t, 480, call.Stack)
	assert.Equal(t, "a", msgA.PlayerID)

	msgB, _ := readAction(b, game.Call)
	assert.Equal(t, msgA.Seq, msgB.Seq, "one event, one sequence number")

	turn := b.readUntil(MessageTypeTurnUpdate)
	assert.Equal(t, "b", turn.PlayerID)
	var data TurnUpdateData
	require.NoError(t, json.Unmarshal(turn.Data, &data))
	assert.Equal(t, 1, data.Seat)
	assert.True(t, data.Legal.Allows(game.Check))
	assert.InDelta(t, 10, data.TimeRemaining, 0.001)
	assert.Greater(t, turn.Seq, msgB.Seq)
}

func TestPhaseChangesArriveAsHandUpdates(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	a, b, _, _ := startHand(t, ts)

	a.send(MessageTypeAction, ActionData{Action: "call"})
	readAction(b, game.Call)
	b.send(MessageTypeAction, ActionData{Action: "check"})

	msg := a.readUntil(MessageTypeHandUpdate)
	var update HandUpdateData
	require.NoError(t, json.Unmarshal(msg.Data, &update))
	assert.Equal(t, game.StreetFlop, update.Phase)
	assert.Len(t, update.Board, 3)
	assert.Equal(t, 40, update.Pot)
	assert.NotEmpty(t, update.HandID)
}

func TestHandCompletionReportsResult(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	a, b, _, _ := startHand(t, ts)

	a.send(MessageTypeAction, ActionData{Action: "fold"})
	var update HandUpdateData
	for {
		msg := b.readUntil(MessageTypeHandUpdate)
		require.NoError(t, json.Unmarshal(msg.Data, &update))
		if update.Phase == game.StreetComplete {
			break
		}
	}
	require.NotNil(t, update.Result)
	assert.False(t, update.Result.Showdown)
	assert.Equal(t, map[int]int{0: 490, 1: 510}, update.Stacks)

	snap := b.state(b.readUntil(MessageTypeGameState))
	require.NotNil(t, snap.Hand)
	assert.False(t, snap.Hand.Live)
	a.readUntil(MessageTypeGameState)
}

func TestProtocolErrorsKeepConnectionOpen(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	a, _ := ts.dial("table=main&player=a")

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "invalid_message", a.errorData(a.readUntil(MessageTypeError)).Code)

	a.send("bogus", nil)
	assert.Equal(t, "unknown_message_type", a.errorData(a.readUntil(MessageTypeError)).Code)

	a.send(MessageTypeAction, "call")
	assert.Equal(t, "invalid_message", a.errorData(a.readUntil(MessageTypeError)).Code)

	a.send(MessageTypeAction, ActionData{Action: "check"})
	assert.Equal(t, "no_hand", a.errorData(a.readUntil(MessageTypeError)).Code)

	a.send(MessageTypePing, nil)
	assert.Equal(t, MessageTypePong, a.readUntil(MessageTypePong).Type)
}

func TestChatIsBroadcast(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	a, _ := ts.dial("table=main&player=a&name=Alice")
	b, _ := ts.dial("table=main&player=b")

	a.send(MessageTypeChat, ChatData{Message: "  gl hf  "})
	msg := b.readUntil(MessageTypeChat)
	assert.Equal(t, "a", msg.PlayerID)
	var data ChatPostedData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "gl hf", data.Message)
	assert.Equal(t, "Alice", data.Name)

	a.send(MessageTypeChat, ChatData{Message: "   "})
	assert.Equal(t, "empty_message", a.errorData(a.readUntil(MessageTypeError)).Code)
}

func TestResyncSendsFreshState(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	a, first := ts.dial("table=main&player=a")
	ts.dial("table=main&player=b")

	a.send(MessageTypeResync, nil)
	msg := a.readUntil(MessageTypeGameState)
	snap := a.state(msg)
	assert.Len(t, snap.Seats, 2)
	assert.Greater(t, snap.Seq, first.Seq)
	assert.Equal(t, snap.Seq, msg.Seq)
}

func TestNewConnectionReplacesOld(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	old, _ := ts.dial("table=main&player=a&buyIn=500")
	current, snap := ts.dial("table=main&player=a")

	assert.Equal(t, "replaced", old.errorData(old.readUntil(MessageTypeError)).Code)
	old.expectClosed()

	require.Len(t, snap.Seats, 1)
	assert.Equal(t, 500, snap.Seats[0].Stack, "rejoining keeps the stack")
	assert.Equal(t, table.StatusActive, ts.seat("a").Status)

	current.send(MessageTypeResync, nil)
	current.readUntil(MessageTypeGameState)
}

func TestDisconnectKeepsSeatUntilReconnect(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	a, b, _, _ := startHand(t, ts)

	require.NoError(t, a.conn.Close())
	require.Eventually(t, func() bool {
		return ts.seat("a").Status == table.StatusDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	msg := b.readUntil(MessageTypePlayerStatus)
	assert.Equal(t, "a", msg.PlayerID)
	var status PlayerStatusData
	require.NoError(t, json.Unmarshal(msg.Data, &status))
	assert.Equal(t, table.StatusDisconnected, status.Status)

	_, snap := ts.dial("table=main&player=a")
	require.NotNil(t, snap.Hand)
	assert.True(t, snap.Hand.Live, "the hand carried on")
	mine, ok := snap.SeatOf("a")
	require.True(t, ok)
	assert.Equal(t, table.StatusActive, mine.Status)
	assert.Len(t, mine.HoleCards, 2)
}

func TestHeartbeat(t *testing.T) {
	t.Parallel()

	t.Run("silent client is dropped", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t, Options{})
		a, _ := ts.dial("table=main&player=a")

		assert.Equal(t, HeartbeatInterval, ts.fireNext())
		a.readUntil(MessageTypePing)
		ts.fireNext()
		a.expectClosed()
		require.Eventually(t, func() bool {
			return ts.seat("a").Status == table.StatusDisconnected
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("answered ping keeps the connection", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t, Options{})
		a, _ := ts.dial("table=main&player=a")

		ts.fireNext()
		a.readUntil(MessageTypePing)
		a.send(MessageTypePong, nil)
		// The server answers in order, so this pong proves ours was read.
		a.send(MessageTypePing, nil)
		a.readUntil(MessageTypePong)

		ts.fireNext()
		a.readUntil(MessageTypePing)
		assert.Equal(t, table.StatusActive, ts.seat("a").Status)
	})
}

func TestSitOutSitInAndLeave(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	a, _ := ts.dial("table=main&player=a")
	b, _ := ts.dial("table=main&player=b")

	status := func() table.Status {
		msg := b.readUntil(MessageTypePlayerStatus)
		require.Equal(t, "a", msg.PlayerID)
		var data PlayerStatusData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		return data.Status
	}

	a.send(MessageTypeSitOut, nil)
	assert.Equal(t, table.StatusSittingOut, status())
	a.send(MessageTypeSitIn, nil)
	assert.Equal(t, table.StatusActive, status())

	a.send(MessageTypeLeave, nil)
	left := b.readUntil(MessageTypePlayerLeft)
	assert.Equal(t, "a", left.PlayerID)
	a.expectClosed()

	snap, err := ts.table.Snapshot(ts.ctx)
	require.NoError(t, err)
	require.Len(t, snap.Seats, 1)
	assert.Equal(t, "b", snap.Seats[0].PlayerID)
}

func TestJoinFailureIsReportedThenClosed(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL("table=main&player=a&buyIn=5"), nil)
	require.NoError(t, err)
	c := &wsClient{t: t, conn: conn}
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, "invalid_buy_in", c.errorData(c.readUntil(MessageTypeError)).Code)
	c.expectClosed()
}

func TestHandshakeRejections(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"no player", "table=main", http.StatusBadRequest},
		{"bad seat", "table=main&player=a&seat=x", http.StatusBadRequest},
		{"unknown table", "table=nope&player=a", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(ts.wsURL(tt.query), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}

func TestHTTPEndpoints(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{})

	resp := ts.get("/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	startHand(t, ts)

	resp = ts.get("/tables")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Tables []TableInfo `json:"tables"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Tables, 1)
	assert.Equal(t, "main", list.Tables[0].ID)
	assert.Equal(t, 2, list.Tables[0].PlayerCount)
	assert.True(t, list.Tables[0].InHand)

	resp = ts.get("/tables/main")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var snap table.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.NotNil(t, snap.Hand)
	for _, v := range snap.Seats {
		assert.Nil(t, v.HoleCards, "public view hides %s", v.PlayerID)
	}

	resp = ts.get("/tables/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e ErrorData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "unknown_table", e.Code)
}

func TestJWTAuthentication(t *testing.T) {
	t.Parallel()
	v := auth.NewJWTValidator("secret")
	ts := newTestServer(t, Options{Validator: v})

	_, resp, err := websocket.DefaultDialer.Dial(ts.wsURL("table=main&player=a"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	tok, err := v.Issue("p1", "Pat", time.Hour)
	require.NoError(t, err)
	_, snap := ts.dial("table=main&player=spoofed&token=" + tok)
	require.Len(t, snap.Seats, 1)
	assert.Equal(t, "p1", snap.Seats[0].PlayerID, "identity comes from the token")
	assert.Equal(t, "Pat", snap.Seats[0].Name)

	tok2, err := v.Issue("p2", "", time.Hour)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL("table=main"), http.Header{"Authorization": {"Bearer " + tok2}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	c := &wsClient{t: t, conn: conn}
	snap = c.state(c.readUntil(MessageTypeGameState))
	_, ok := snap.SeatOf("p2")
	assert.True(t, ok)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{RateLimitPerMinute: 2})
	assert.Equal(t, http.StatusOK, ts.get("/health").StatusCode)
	assert.Equal(t, http.StatusOK, ts.get("/health").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, ts.get("/health").StatusCode)
}

func TestOriginCheck(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, Options{AllowedOrigins: []string{"https://ok.example"}})

	_, resp, err := websocket.DefaultDialer.Dial(ts.wsURL("table=main&player=a"),
		http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, ts.http.URL+"/tables", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://ok.example")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "https://ok.example", res.Header.Get("Access-Control-Allow-Origin"))
}
