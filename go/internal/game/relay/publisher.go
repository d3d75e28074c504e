package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/burgerrush/go/internal/game/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Envelope is the record published for each mirrored event
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType events.Name     `json:"eventType"`
	Target    string          `json:"target,omitempty"` // connection id for caller-only replies
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a fresh envelope
func NewEnvelope(event events.Name, target string, payload any, now time.Time) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{
		EventID:   uuid.New().String(),
		EventType: event,
		Target:    target,
		Timestamp: now,
		Payload:   data,
	}, nil
}

// Publisher ships envelopes to an external bus
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// NoopPublisher discards everything; used when no bus is configured
type NoopPublisher struct{}

// Publish drops the envelope
func (NoopPublisher) Publish(context.Context, Envelope) error { return nil }

// Close is a no-op
func (NoopPublisher) Close() error { return nil }

// JetStreamConfig locates the NATS server and names the stream events land in
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration // How long to keep messages
	Replicas      int
	Duplicates    time.Duration // Window for duplicate detection
}

// DefaultJetStreamConfig returns the stream settings used when the config file names none
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "GAME_EVENTS",
		SubjectPrefix: "game.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		MaxAge:        24 * time.Hour,
		Replicas:      1,
		Duplicates:    2 * time.Minute,
	}
}

// Subject returns the subject an event is published on
func (c JetStreamConfig) Subject(event events.Name) string {
	return fmt.Sprintf("%s.%s", c.SubjectPrefix, event)
}

// JetStreamPublisher publishes envelopes to a JetStream stream
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStreamPublisher connects to NATS and creates or updates the configured stream
func NewJetStreamPublisher(cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.Name("burgerrush-relay"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Game session lifecycle events",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.Duplicates,
	}

	stream, err := p.js.CreateOrUpdateStream(ctx, sc)
	if err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}

	log.Info().
		Str("stream", stream.CachedInfo().Config.Name).
		Str("subjects", sc.Subjects[0]).
		Msg("JetStream stream ready")
	return nil
}

// Publish sends the envelope. The event id doubles as the JetStream dedupe id.
func (p *JetStreamPublisher) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := p.config.Subject(env.EventType)
	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(env.EventID))
	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", env.EventID).
		Uint64("seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published event to JetStream")
	return nil
}

// Connected reports whether the underlying NATS connection is up
func (p *JetStreamPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains pending publishes and closes the connection
func (p *JetStreamPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
