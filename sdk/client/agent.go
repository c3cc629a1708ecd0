package client

// Decision is an agent's choice for one turn. Amount is the raise-to total
// for bet and raise.
type Decision struct {
	Action string
	Amount int
}

// Agent decides what to do when it is the player's turn.
type Agent interface {
	Decide(state *GameState, turn TurnUpdate) Decision
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(state *GameState, turn TurnUpdate) Decision

func (f AgentFunc) Decide(state *GameState, turn TurnUpdate) Decision {
	return f(state, turn)
}

func Fold() Decision  { return Decision{Action: "fold"} }
func Check() Decision { return Decision{Action: "check"} }
func Call() Decision  { return Decision{Action: "call"} }
func AllIn() Decision { return Decision{Action: "all_in"} }

// RaiseTo bets or raises to amount, whichever is legal.
func RaiseTo(turn TurnUpdate, amount int) Decision {
	if turn.Legal.Allows("bet") {
		return Decision{Action: "bet", Amount: amount}
	}
	return Decision{Action: "raise", Amount: amount}
}

// Passive checks when it can and folds otherwise.
var Passive Agent = AgentFunc(func(_ *GameState, turn TurnUpdate) Decision {
	if turn.Legal.Allows("check") {
		return Check()
	}
	return Fold()
})

// CallingStation checks or calls every bet.
var CallingStation Agent = AgentFunc(func(_ *GameState, turn TurnUpdate) Decision {
	switch {
	case turn.Legal.Allows("check"):
		return Check()
	case turn.Legal.Allows("call"):
		return Call()
	case turn.Legal.Allows("all_in"):
		return AllIn()
	}
	return Fold()
})

// Play acts for the player with agent whenever a turn_update names the
// player's seat.
func (c *Client) Play(agent Agent) {
	c.On(MessageTypeTurnUpdate, func(msg *Message) {
		var turn TurnUpdate
		if err := msg.Decode(&turn); err != nil {
			c.logger.Warn("Bad turn update", "error", err)
			return
		}
		state := c.State()
		if state == nil {
			return
		}
		seat, ok := state.Seat(c.cfg.Player)
		if !ok || seat.Seat != turn.Seat {
			return
		}
		d := agent.Decide(state, turn)
		c.logger.Debug("Acting", "action", d.Action, "amount", d.Amount)
		if err := c.Act(d.Action, d.Amount); err != nil {
			c.logger.Warn("Failed to send action", "error", err)
		}
	})
}
