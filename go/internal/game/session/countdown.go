package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/burgerrush/go/internal/game/events"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the length of one tick
const DefaultInterval = time.Second

// Emitter delivers a named event to every connected client
type Emitter interface {
	SendToAll(event events.Name, payload any)
}

// Countdown drives the session clock. It owns no state of its own; every decision
// is made against State so that stop and finish from other handlers are observed
// on the next wake.
type Countdown struct {
	state    *State
	emitter  Emitter
	clock    clockwork.Clock
	interval time.Duration
}

// CountdownOption configures a Countdown
type CountdownOption func(*Countdown)

// WithClock swaps the clock, mainly for tests
func WithClock(clock clockwork.Clock) CountdownOption {
	return func(c *Countdown) {
		c.clock = clock
	}
}

// WithInterval overrides the tick length
func WithInterval(d time.Duration) CountdownOption {
	return func(c *Countdown) {
		if d > 0 {
			c.interval = d
		}
	}
}

// NewCountdown creates a countdown bound to the given session
func NewCountdown(state *State, emitter Emitter, opts ...CountdownOption) *Countdown {
	c := &Countdown{
		state:    state,
		emitter:  emitter,
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run emits an update, waits one interval and ticks, for as long as the lease holds.
// When the run ends it stops the session and announces the finish, unless a newer
// start has taken over in the meantime. Cancelling ctx aborts without announcing.
func (c *Countdown) Run(ctx context.Context, lease Lease) {
	log.Debug().Uint64("lease", uint64(lease)).Msg("countdown started")

	for {
		remaining, ok := c.state.Holds(lease)
		if !ok {
			break
		}

		c.emitter.SendToAll(events.Update, events.UpdatePayload{Time: remaining})

		select {
		case <-c.clock.After(c.interval):
		case <-ctx.Done():
			log.Debug().Uint64("lease", uint64(lease)).Msg("countdown cancelled")
			return
		}

		if _, ok := c.state.Advance(lease); !ok {
			break
		}
	}

	if !c.state.Release(lease) {
		log.Debug().Uint64("lease", uint64(lease)).Msg("countdown superseded by a newer start")
		return
	}

	c.emitter.SendToAll(events.Finished, events.FinishedPayload{Msg: events.MsgCountdownFinished})
	log.Info().Uint64("lease", uint64(lease)).Msg("countdown finished")
}
