// Package events publishes import and connection lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

var (
	_ driven.EventPublisher = (*Publisher)(nil)
	_ driven.EventPublisher = Nop{}
)

// DefaultStream is the JetStream stream events are stored in.
const DefaultStream = "CONNECT_EVENTS"

const subjectRoot = "connect"

// jetStream is the part of nats.JetStreamContext the publisher uses.
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher writes events to NATS JetStream with per-event deduplication IDs.
type Publisher struct {
	nc  *nats.Conn
	js  jetStream
	now func() time.Time
}

// NewPublisher connects to url and ensures the stream exists.
func NewPublisher(url, stream string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("sercha-connect"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get JetStream context: %w", err)
	}
	if err := ensureStream(js, stream); err != nil {
		nc.Close()
		return nil, err
	}
	return &Publisher{nc: nc, js: js, now: time.Now}, nil
}

func ensureStream(js nats.JetStreamContext, stream string) error {
	if stream == "" {
		stream = DefaultStream
	}
	if info, err := js.StreamInfo(stream); err == nil && info != nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:       stream,
		Subjects:   []string{subjectRoot + ".>"},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		Duplicates: 10 * time.Minute,
		MaxAge:     30 * 24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("create stream %s: %w", stream, err)
	}
	return nil
}

// ImportFinishedEvent is the payload of connect.<user>.<provider>.import.finished.
type ImportFinishedEvent struct {
	RunID       string              `json:"run_id"`
	UserID      string              `json:"user_id"`
	Provider    domain.ProviderType `json:"provider"`
	Kind        domain.ItemKind     `json:"kind"`
	State       domain.RunState     `json:"state"`
	AbortReason domain.AbortReason  `json:"abort_reason,omitempty"`
	Partial     bool                `json:"partial"`
	Attempted   int                 `json:"attempted"`
	Succeeded   int                 `json:"succeeded"`
	Failed      int                 `json:"failed"`
	FinishedAt  time.Time           `json:"finished_at"`
}

// AccountDisconnectedEvent is the payload of connect.<user>.<provider>.disconnected.
type AccountDisconnectedEvent struct {
	UserID         string              `json:"user_id"`
	Provider       domain.ProviderType `json:"provider"`
	ItemsDeleted   int                 `json:"items_deleted"`
	DisconnectedAt time.Time           `json:"disconnected_at"`
}

// ImportFinished publishes the outcome of one run. The run ID deduplicates.
func (p *Publisher) ImportFinished(_ context.Context, r *domain.ImportReport) error {
	event := ImportFinishedEvent{
		RunID:       r.RunID,
		UserID:      r.UserID,
		Provider:    r.Provider,
		Kind:        r.Selector.Kind,
		State:       r.State,
		AbortReason: r.AbortReason,
		Partial:     r.Partial,
		Attempted:   r.Attempted,
		Succeeded:   r.Succeeded,
		Failed:      r.Failed,
		FinishedAt:  r.FinishedAt,
	}
	return p.publish(Subject(r.UserID, r.Provider, "import.finished"), event, r.RunID)
}

// AccountDisconnected publishes a completed disconnect.
func (p *Publisher) AccountDisconnected(_ context.Context, userID string, provider domain.ProviderType, itemsDeleted int) error {
	now := p.now().UTC()
	event := AccountDisconnectedEvent{
		UserID:         userID,
		Provider:       provider,
		ItemsDeleted:   itemsDeleted,
		DisconnectedAt: now,
	}
	msgID := fmt.Sprintf("%s/%s/disconnected/%d", userID, provider, now.UnixNano())
	return p.publish(Subject(userID, provider, "disconnected"), event, msgID)
}

func (p *Publisher) publish(subject string, event any, msgID string) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	if _, err := p.js.Publish(subject, payload, nats.MsgId(msgID)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

// Subject builds connect.<user>.<provider>.<event>. Characters NATS treats
// as separators or wildcards are replaced in the user token.
func Subject(userID string, provider domain.ProviderType, event string) string {
	return strings.Join([]string{subjectRoot, subjectToken(userID), subjectToken(string(provider)), event}, ".")
}

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return tokenReplacer.Replace(s)
}

// Nop discards events.
type Nop struct{}

// ImportFinished implements driven.EventPublisher.
func (Nop) ImportFinished(context.Context, *domain.ImportReport) error { return nil }

// AccountDisconnected implements driven.EventPublisher.
func (Nop) AccountDisconnected(context.Context, string, domain.ProviderType, int) error { return nil }
