package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/burgerrush/go/internal/game/gateway"
	"github.com/mcdev12/burgerrush/go/internal/game/relay"
	"github.com/mcdev12/burgerrush/go/internal/game/router"
	"github.com/mcdev12/burgerrush/go/internal/game/session"
	"github.com/rs/zerolog/log"
)

type Services struct {
	State   *session.State
	Router  *router.Router
	Gateway *gateway.Service
	Relay   *relay.Mirror
}

func setupPublisher(config *Config) (relay.Publisher, error) {
	if config.Relay.NATSURL == "" {
		log.Info().Msg("NATS_URL not set, event relay disabled")
		return relay.NoopPublisher{}, nil
	}

	jsConfig := relay.DefaultJetStreamConfig()
	jsConfig.URL = config.Relay.NATSURL
	jsConfig.StreamName = config.Relay.Stream
	jsConfig.SubjectPrefix = config.Relay.SubjectPrefix

	publisher, err := relay.NewJetStreamPublisher(jsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
	}
	return publisher, nil
}

func setupServices(ctx context.Context, config *Config, publisher relay.Publisher) *Services {
	// Session → transport → relay decorator → countdown/router → HTTP handlers
	state := session.NewState()

	connConfig := gateway.DefaultConnectionConfig()
	connConfig.AllowedOrigins = config.Server.AllowedOrigins
	connectionManager := gateway.NewConnectionManager(connConfig)

	mirror := relay.NewMirror(connectionManager, publisher, relay.WithEvents(config.RelayEvents()...))

	countdown := session.NewCountdown(state, mirror)

	routerConfig := router.DefaultConfig()
	routerConfig.DefaultSeconds = config.Game.DefaultSeconds
	routerConfig.MaxSeconds = config.Game.MaxSeconds
	eventRouter := router.New(ctx, state, countdown, mirror, routerConfig)

	return &Services{
		State:   state,
		Router:  eventRouter,
		Gateway: gateway.NewService(connectionManager, eventRouter, state),
		Relay:   mirror,
	}
}
