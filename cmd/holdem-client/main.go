package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lox/cardroom/sdk/client"
)

var CLI struct {
	Server   string `short:"s" long:"server" default:"ws://localhost:8080/ws" help:"Server WebSocket URL"`
	Table    string `short:"t" long:"table" default:"main" help:"Table id"`
	Player   string `short:"p" long:"player" required:"" help:"Player id"`
	Name     string `short:"n" long:"name" help:"Display name (defaults to the player id)"`
	Seat     int    `long:"seat" default:"-1" help:"Seat to take, -1 for any"`
	BuyIn    int    `long:"buy-in" help:"Chips to bring, 0 for the table maximum"`
	Token    string `long:"token" env:"CARDROOM_TOKEN" help:"Bearer token when the server requires one"`
	Strategy string `long:"strategy" default:"passive" enum:"passive,calling" help:"Built-in agent: passive or calling"`
	Hands    int    `long:"hands" help:"Leave the table after this many hands, 0 to play until interrupted"`
	LogLevel string `short:"l" long:"log-level" default:"info" help:"Log level"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("holdem-client"),
		kong.Description("Sits a simple automated player at a table"),
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if lvl, err := log.ParseLevel(CLI.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if err := run(logger); err != nil {
		logger.Error("Client stopped", "error", err)
		kctx.Exit(1)
	}
}

func run(logger *log.Logger) error {
	c := client.New(client.Config{
		URL:    CLI.Server,
		Table:  CLI.Table,
		Player: CLI.Player,
		Name:   CLI.Name,
		Seat:   CLI.Seat,
		BuyIn:  CLI.BuyIn,
		Token:  CLI.Token,
		Logger: logger,
	})

	agent := client.Passive
	if CLI.Strategy == "calling" {
		agent = client.CallingStation
	}
	c.Play(agent)

	hands := 0
	c.On(client.MessageTypeHandUpdate, func(msg *client.Message) {
		var update struct {
			HandID string      `json:"handId"`
			Phase  string      `json:"phase"`
			Stacks map[int]int `json:"stacks"`
		}
		if err := json.Unmarshal(msg.Data, &update); err != nil || update.Phase != "complete" {
			return
		}
		hands++
		stack := 0
		if state := c.State(); state != nil {
			if seat, ok := state.Seat(CLI.Player); ok {
				stack = update.Stacks[seat.Seat]
			}
		}
		logger.Info("Hand complete", "hand", update.HandID, "played", hands, "stack", stack)
		if CLI.Hands > 0 && hands >= CLI.Hands {
			logger.Info("Hand limit reached, leaving")
			if err := c.Leave(); err != nil {
				logger.Warn("Leave failed", "error", err)
			}
		}
	})
	c.On(client.MessageTypeError, func(msg *client.Message) {
		var data client.ErrorData
		if err := msg.Decode(&data); err == nil {
			logger.Warn("Server error", "code", data.Code, "message", data.Message)
		}
	})
	c.On(client.MessageTypeChat, func(msg *client.Message) {
		var data struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if err := msg.Decode(&data); err == nil {
			fmt.Printf("<%s> %s\n", data.Name, data.Message)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = c.Leave()
	}()

	err := c.Run(context.Background())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
