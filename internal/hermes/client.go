// Package hermes is pythia's client for the swarm NATS bus.
package hermes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects pythia publishes to or consumes from.
const (
	// SubjectMessageStored carries live chat messages from Chronicle.
	SubjectMessageStored = "swarm.chronicle.message.stored"

	// SubjectExample carries candidate examples derived in live mode.
	SubjectExample = "swarm.pythia.example"

	// SubjectDatasetBuilt announces a completed batch build.
	SubjectDatasetBuilt = "swarm.pythia.dataset.built"

	// SubjectFineTuneCreated announces a submitted fine-tuning job.
	SubjectFineTuneCreated = "swarm.pythia.finetune.created"
)

// MessageStoredEvent is the payload published by Chronicle for each stored
// chat message. Shape matches the export record schema.
type MessageStoredEvent struct {
	Channel   string          `json:"channel"`
	Thread    string          `json:"thread_ts"`
	TS        string          `json:"ts"`
	User      string          `json:"user"`
	Text      string          `json:"text"`
	Reactions []ReactionEntry `json:"reactions"`
}

// ReactionEntry is one emoji reaction on a stored message.
type ReactionEntry struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
}

// CandidateExample is published per live emission: the delayed conversation
// prefix and the users who engaged since. Label encoding is batch-only (the
// vocabulary needs a full corpus pass), so live consumers get user IDs.
type CandidateExample struct {
	EntityKey    string    `json:"entity_key"`
	At           time.Time `json:"at"`
	Prompt       string    `json:"prompt"`
	EngagedUsers []string  `json:"engaged_users"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
