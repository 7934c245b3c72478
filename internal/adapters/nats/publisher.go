package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectReloadPrefix is followed by the client id.
	SubjectReloadPrefix   = "map.reload."
	SubjectReloadAll      = "map.reload.>"
	SubjectMembersUpdated = "map.members.updated"

	// HeaderInstance names the process that published an event.
	HeaderInstance = "Membermap-Instance"
)

// membersUpdated is the payload of SubjectMembersUpdated.
type membersUpdated struct {
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn     *nats.Conn
	js       nats.JetStreamContext
	instance string
}

// NewPublisher connects to NATS and enables JetStream. instance is stamped
// on reload events so the publishing process can skip its own.
func NewPublisher(url, instance string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure the stream exists
	cfg := nats.StreamConfig{
		Name:      "MAP_EVENTS",
		Subjects:  []string{"map.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    1 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js, instance: instance}, nil
}

// PublishReload tells every instance and browser of clientID to rebuild the map.
func (p *Publisher) PublishReload(ctx context.Context, clientID string) error {
	_, err := p.js.PublishMsg(reloadMsg(clientID, p.instance), nats.Context(ctx))
	return err
}

func reloadMsg(clientID, instance string) *nats.Msg {
	msg := nats.NewMsg(SubjectReloadPrefix + clientID)
	msg.Data = []byte(clientID)
	if instance != "" {
		msg.Header.Set(HeaderInstance, instance)
	}
	return msg
}

func (p *Publisher) PublishMembersUpdated(ctx context.Context, count int) error {
	data, err := json.Marshal(membersUpdated{Count: count, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectMembersUpdated, data, nats.Context(ctx),
		nats.MsgId("members-"+strconv.FormatInt(time.Now().UnixNano(), 10)))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
