package relay

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/burgerrush/go/internal/game/events"
	"github.com/rs/zerolog/log"
)

// Gateway is the transport being mirrored
type Gateway interface {
	SendToAll(event events.Name, payload any)
	SendToCaller(callerID string, event events.Name, payload any)
}

// DefaultEvents are the lifecycle events mirrored when no list is configured.
// Per-tick updates and field relays are left out on purpose: they are high volume
// and carry nothing a consumer cannot rebuild from the lifecycle.
var DefaultEvents = []events.Name{events.Started, events.Stopped, events.Finished, events.ScoreUpdate}

const defaultQueueSize = 256

// Mirror forwards every send to the wrapped gateway and queues a copy of selected
// events for the publisher. Sends never wait on the network; Run does the publishing.
type Mirror struct {
	inner     Gateway
	publisher Publisher
	clock     clockwork.Clock
	allow     map[events.Name]bool
	queue     chan Envelope
	timeout   time.Duration
}

// MirrorOption configures a Mirror
type MirrorOption func(*Mirror)

// WithEvents replaces the mirrored event list
func WithEvents(names ...events.Name) MirrorOption {
	return func(m *Mirror) {
		m.allow = make(map[events.Name]bool, len(names))
		for _, n := range names {
			m.allow[n] = true
		}
	}
}

// WithQueueSize sets how many envelopes may wait for publishing
func WithQueueSize(n int) MirrorOption {
	return func(m *Mirror) {
		if n > 0 {
			m.queue = make(chan Envelope, n)
		}
	}
}

// WithMirrorClock sets the clock used for envelope timestamps
func WithMirrorClock(clock clockwork.Clock) MirrorOption {
	return func(m *Mirror) {
		m.clock = clock
	}
}

// NewMirror wraps inner so the selected events are also queued for publisher
func NewMirror(inner Gateway, publisher Publisher, opts ...MirrorOption) *Mirror {
	m := &Mirror{
		inner:     inner,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
		queue:     make(chan Envelope, defaultQueueSize),
		timeout:   5 * time.Second,
	}
	WithEvents(DefaultEvents...)(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendToAll delivers through the wrapped gateway and mirrors the event
func (m *Mirror) SendToAll(event events.Name, payload any) {
	m.inner.SendToAll(event, payload)
	m.capture(event, "", payload)
}

// SendToCaller delivers through the wrapped gateway and mirrors the event
func (m *Mirror) SendToCaller(callerID string, event events.Name, payload any) {
	m.inner.SendToCaller(callerID, event, payload)
	m.capture(event, callerID, payload)
}

func (m *Mirror) capture(event events.Name, target string, payload any) {
	if !m.allow[event] {
		return
	}

	env, err := NewEnvelope(event, target, payload, m.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to build relay envelope")
		return
	}

	select {
	case m.queue <- env:
	default:
		log.Warn().Str("event", string(event)).Msg("relay queue full, dropping event")
	}
}

// Run publishes queued envelopes until ctx is done, then closes the publisher
func (m *Mirror) Run(ctx context.Context) {
	log.Info().Msg("event relay started")
	defer func() {
		if err := m.publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close relay publisher")
		}
		log.Info().Msg("event relay stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-m.queue:
			m.publish(ctx, env)
		}
	}
}

func (m *Mirror) publish(ctx context.Context, env Envelope) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.publisher.Publish(ctx, env); err != nil {
		log.Error().
			Err(err).
			Str("event_id", env.EventID).
			Str("event", string(env.EventType)).
			Msg("failed to publish relay event")
	}
}
