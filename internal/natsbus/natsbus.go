// Package natsbus mirrors table events onto NATS for tooling outside the
// game server, such as hand history and admin dashboards. Only public state
// is published: hole cards appear only where a showdown revealed them.
package natsbus

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/lox/cardroom/internal/table"
)

// Config holds connection settings.
type Config struct {
	URL           string
	Token         string
	SubjectPrefix string
}

// Connect dials NATS, reconnecting forever in the background after the first
// connection succeeds.
func Connect(cfg Config, logger *log.Logger) (*nats.Conn, error) {
	logger = logger.WithPrefix("nats")
	opts := []nats.Option{
		nats.Name("cardroom"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("Disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	return nats.Connect(cfg.URL, opts...)
}

// Publisher is the part of *nats.Conn the mirror needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the message body published for each event.
type Envelope struct {
	Type    string         `json:"type"`
	TableID string         `json:"tableId"`
	HandID  string         `json:"handId,omitempty"`
	Seq     uint64         `json:"seq"`
	Time    time.Time      `json:"time"`
	Data    table.Event    `json:"data"`
	State   table.Snapshot `json:"state"`
}

// Mirror republishes table events.
type Mirror struct {
	pub    Publisher
	prefix string
	logger *log.Logger
}

func NewMirror(pub Publisher, prefix string, logger *log.Logger) *Mirror {
	if prefix == "" {
		prefix = "cardroom"
	}
	return &Mirror{pub: pub, prefix: strings.TrimSuffix(prefix, "."), logger: logger.WithPrefix("nats")}
}

// Subject returns <prefix>.table.<id>.<type>.
func (m *Mirror) Subject(tableID, eventType string) string {
	return m.prefix + ".table." + tableID + "." + eventType
}

// Handle is a table.Subscriber.
func (m *Mirror) Handle(e table.Event) {
	meta := e.Meta()
	body, err := json.Marshal(Envelope{
		Type:    e.Type(),
		TableID: meta.TableID,
		HandID:  meta.HandID,
		Seq:     meta.Seq,
		Time:    meta.Time,
		Data:    e,
		State:   meta.State.RedactFor(""),
	})
	if err != nil {
		m.logger.Error("Could not encode event", "type", e.Type(), "error", err)
		return
	}
	subject := m.Subject(meta.TableID, e.Type())
	if err := m.pub.Publish(subject, body); err != nil {
		m.logger.Warn("Publish failed", "subject", subject, "error", err)
	}
}
