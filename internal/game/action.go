package game

import (
	"fmt"
	"strings"
)

// Street is a phase of the hand.
type Street uint8

const (
	StreetBlinds Street = iota
	StreetPreflop
	StreetFlop
	StreetTurn
	StreetRiver
	StreetShowdown
	StreetComplete
)

var streetNames = [...]string{"blinds", "preflop", "flop", "turn", "river", "showdown", "complete"}

func (s Street) String() string {
	if int(s) >= len(streetNames) {
		return "unknown"
	}
	return streetNames[s]
}

// MarshalText encodes the street by name.
func (s Street) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a street name.
func (s *Street) UnmarshalText(b []byte) error {
	for i, name := range streetNames {
		if name == string(b) {
			*s = Street(i)
			return nil
		}
	}
	return fmt.Errorf("unknown street %q", b)
}

// Betting reports whether players act on this street.
func (s Street) Betting() bool {
	return s >= StreetPreflop && s <= StreetRiver
}

// Action is a player decision or a forced post.
type Action uint8

const (
	Fold Action = iota + 1
	Check
	Call
	Bet
	Raise
	AllIn

	// Forced posts, logged but never submitted by players.
	PostAnte
	PostSmallBlind
	PostBigBlind
)

var actionNames = map[Action]string{
	Fold:           "fold",
	Check:          "check",
	Call:           "call",
	Bet:            "bet",
	Raise:          "raise",
	AllIn:          "all_in",
	PostAnte:       "ante",
	PostSmallBlind: "small_blind",
	PostBigBlind:   "big_blind",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes any action name, including forced posts.
func (a *Action) UnmarshalText(b []byte) error {
	for act, name := range actionNames {
		if name == string(b) {
			*a = act
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", b)
}

// ParseAction parses a player action name. "allin" is accepted for all_in.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "bet":
		return Bet, nil
	case "raise":
		return Raise, nil
	case "all_in", "allin":
		return AllIn, nil
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, s)
}

// ActionRecord is one immutable entry of a hand's action log.
type ActionRecord struct {
	HandID string `json:"handId"`
	Seq    int    `json:"seq"`
	Seat   int    `json:"seat"`
	Player string `json:"player"`
	Action Action `json:"action"`
	// Amount is the chips moved from the stack by this action.
	Amount int `json:"amount"`
	// BetTo is the player's street bet after the action.
	BetTo  int    `json:"betTo"`
	Street Street `json:"street"`
	Forced bool   `json:"forced,omitempty"`
}
