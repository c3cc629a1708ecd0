// Package game implements the authoritative Texas Hold'em hand engine.
//
// A Hand owns one hand's lifecycle from blind posting to payout:
//
//	blinds -> preflop -> flop -> turn -> river -> showdown -> complete
//
// Every chip movement goes through Hand.ProcessAction, which validates turn
// order and bet sizing, advances the street when a betting round closes and
// settles the pot when the hand ends. Nothing else mutates a Hand, so the
// caller only has to serialise calls into it (see internal/table).
//
// # Basic Usage
//
//	h, err := game.NewHand("h1", game.Config{SmallBlind: 5, BigBlind: 10},
//	    []game.Seat{{Seat: 0, ID: "alice", Stack: 1000}, {Seat: 3, ID: "bob", Stack: 1000}},
//	    0)
//	out, err := h.ProcessAction(h.ActorSeat, game.Call, 0)
//	if out.Result != nil {
//	    // hand complete, out.Result.Payouts holds the chips won per seat
//	}
//
// # Deterministic Testing
//
// Pass WithDeck to script the cards:
//
//	deck, _ := poker.DeckFromCards(poker.MustParseCards("As Ad Kc Kd 2h 7c 9s Jd Qh"))
//	h, _ := game.NewHand(id, cfg, seats, button, game.WithDeck(deck))
//
// # Betting Rules
//
// Bet and raise amounts are "raise to" totals for the street. A raise smaller
// than the last full raise is only legal as an all-in, and it does not reopen
// betting to players who already acted on the last full raise: they may call
// or fold but not re-raise.
package game
