package router

import (
	"context"
	"encoding/json"

	"github.com/mcdev12/burgerrush/go/internal/game/events"
	"github.com/mcdev12/burgerrush/go/internal/game/session"
	"github.com/rs/zerolog/log"
)

// Gateway is what the router needs from the transport
type Gateway interface {
	SendToAll(event events.Name, payload any)
	SendToCaller(callerID string, event events.Name, payload any)
}

// Countdown runs the session clock for a lease
type Countdown interface {
	Run(ctx context.Context, lease session.Lease)
}

// Config holds the tunables for inbound event handling
type Config struct {
	DefaultSeconds int // used when start carries no usable seconds
	MaxSeconds     int // upper clamp for seconds; 0 disables it
	DefaultSID     string
}

// DefaultConfig returns the defaults for a game session
func DefaultConfig() Config {
	return Config{
		DefaultSeconds: 120,
		MaxSeconds:     3600,
		DefaultSID:     "anon",
	}
}

// Router maps inbound client events onto the session and fans out the results.
// Handlers never block: state changes happen under the session lock and all
// outbound traffic is queued by the gateway.
type Router struct {
	ctx       context.Context
	state     *session.State
	countdown Countdown
	gateway   Gateway
	config    Config
}

// New creates a router. ctx bounds the lifetime of the countdowns it spawns.
func New(ctx context.Context, state *session.State, countdown Countdown, gateway Gateway, config Config) *Router {
	return &Router{
		ctx:       ctx,
		state:     state,
		countdown: countdown,
		gateway:   gateway,
		config:    config,
	}
}

// Dispatch handles a single event from a client
func (r *Router) Dispatch(callerID string, name events.Name, data json.RawMessage) {
	switch name {
	case events.Start:
		r.handleStart(callerID, data)
	case events.Stop:
		r.handleStop(callerID)
	case events.Finish:
		r.handleFinish(callerID)
	case events.FieldUpdate:
		r.handleFieldUpdate(data)
	case events.ScoreUpdate:
		r.handleScoreUpdate(data)
	default:
		log.Debug().
			Str("connection_id", callerID).
			Str("event", string(name)).
			Msg("ignoring unknown event")
	}
}

// Join syncs a newly connected client with the current session
func (r *Router) Join(callerID string) {
	snap := r.state.Snapshot()
	r.gateway.SendToCaller(callerID, events.State, events.StatePayload{
		Running: snap.Running,
		Time:    snap.Remaining,
		Scores:  snap.Scores,
	})
}

// Leave is called once a client has disconnected
func (r *Router) Leave(callerID string) {
	log.Debug().Str("connection_id", callerID).Msg("client left session")
}

func (r *Router) handleStart(callerID string, data json.RawMessage) {
	fields := decodeFields(data)
	seconds := r.clampSeconds(intField(fields, "seconds", r.config.DefaultSeconds))

	lease, ok := r.state.TryStart(seconds)
	if !ok {
		log.Debug().
			Str("connection_id", callerID).
			Msg("start ignored, session already running")
		return
	}

	r.gateway.SendToCaller(callerID, events.Started, events.StartedPayload{Seconds: seconds})
	go r.countdown.Run(r.ctx, lease)

	log.Info().
		Str("connection_id", callerID).
		Int("seconds", seconds).
		Msg("session started")
}

func (r *Router) handleStop(callerID string) {
	r.state.Stop()
	r.gateway.SendToCaller(callerID, events.Stopped, events.StoppedPayload{Msg: events.MsgCountdownStopped})
	log.Info().Str("connection_id", callerID).Msg("session stopped")
}

func (r *Router) handleFinish(callerID string) {
	r.state.Finish()
	r.gateway.SendToCaller(callerID, events.Finished, events.FinishedPayload{Msg: events.MsgForcedFinish})
	log.Info().Str("connection_id", callerID).Msg("session finished")
}

func (r *Router) handleFieldUpdate(data json.RawMessage) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	r.gateway.SendToAll(events.FieldUpdate, data)
}

func (r *Router) handleScoreUpdate(data json.RawMessage) {
	fields := decodeFields(data)
	sid := stringField(fields, "sid", r.config.DefaultSID)
	score := intField(fields, "score", 0)

	scores := r.state.SetScore(sid, score)
	r.gateway.SendToAll(events.ScoreUpdate, events.ScoresPayload(scores))

	log.Debug().
		Str("sid", sid).
		Int("score", score).
		Msg("score updated")
}

func (r *Router) clampSeconds(seconds int) int {
	if seconds < 0 {
		return 0
	}
	if r.config.MaxSeconds > 0 && seconds > r.config.MaxSeconds {
		return r.config.MaxSeconds
	}
	return seconds
}
