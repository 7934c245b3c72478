package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn     *nats.Conn
	js       nats.JetStreamContext
	instance string
	subs     []*nats.Subscription
}

// NewSubscriber creates a subscriber. instance names this process's
// durable consumers so every API instance sees every event.
func NewSubscriber(url, instance string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js, instance: instance}, nil
}

// SubscribeReloads delivers reloads published by other instances. This
// instance already rebuilt the view before publishing.
func (s *Subscriber) SubscribeReloads(ctx context.Context, handler func(ctx context.Context, clientID string) error) error {
	sub, err := s.js.Subscribe(SubjectReloadAll, func(msg *nats.Msg) {
		if fromInstance(msg, s.instance) {
			_ = msg.Ack()
			return
		}
		clientID := ClientFromSubject(msg.Subject)
		if clientID == "" {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, clientID); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("reload-"+s.instance),
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Subscriber) SubscribeMembersUpdated(ctx context.Context, handler func(ctx context.Context, count int) error) error {
	sub, err := s.js.Subscribe(SubjectMembersUpdated, func(msg *nats.Msg) {
		var ev membersUpdated
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, ev.Count); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("members-"+s.instance),
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func fromInstance(msg *nats.Msg, instance string) bool {
	return instance != "" && msg.Header != nil && msg.Header.Get(HeaderInstance) == instance
}

// ClientFromSubject extracts the client id from a reload subject.
func ClientFromSubject(subject string) string {
	return strings.TrimPrefix(subject, SubjectReloadPrefix)
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
