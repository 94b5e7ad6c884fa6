// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

// Package main is the entry point for the Chorus realtime backend.
//
// Chorus delivers platform events (new followers, playlist invites, direct
// messages) to connected clients in realtime, reliably. Two cooperating
// subsystems make that work:
//
//  1. The transactional outbox: domain writes enqueue an event record
//     alongside their own state change; a background publisher drains
//     pending records to NATS JetStream at least once.
//  2. The push fanout: every instance subscribes to every broadcast
//     subject and delivers to the recipients connected locally. Clients
//     that reconnect present a cursor and have missed events replayed
//     from a warm cache or the durable notification store.
//
// # Startup order
//
//  1. Configuration (koanf: defaults, config.yaml, CHORUS_* env vars)
//  2. Logging (zerolog)
//  3. Badger store shared by outbox, replay cache and notifications
//  4. NATS: embedded JetStream server or external cluster
//  5. Event bus publisher and broadcast subscriber (watermill)
//  6. Supervisor tree (suture): data, messaging and api layers
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the supervisor tree: the HTTP server drains
// in-flight requests, the outbox loop waits for settlement callbacks, and
// the embedded NATS server shuts down last.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/chorusapp/chorus/internal/api"
	"github.com/chorusapp/chorus/internal/config"
	"github.com/chorusapp/chorus/internal/eventbus"
	"github.com/chorusapp/chorus/internal/logging"
	"github.com/chorusapp/chorus/internal/notification"
	"github.com/chorusapp/chorus/internal/outbox"
	"github.com/chorusapp/chorus/internal/push"
	"github.com/chorusapp/chorus/internal/supervisor"
	"github.com/chorusapp/chorus/internal/supervisor/services"
)

// notificationRetention is how long delivered notifications stay queryable.
const notificationRetention = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("nats_embedded", cfg.NATS.Embedded).
		Strs("channels", cfg.Push.Channels).
		Msg("Starting Chorus")

	// Shared Badger store: outbox records, replay cache, notifications.
	badgerOpts := badger.DefaultOptions(cfg.Store.Path).WithLogger(nil)
	if cfg.Store.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	// NATS: embedded JetStream for single-binary deployments, external
	// URL for multi-instance fanout.
	natsURL := cfg.NATS.URL
	var embedded *eventbus.EmbeddedServer
	if cfg.NATS.Embedded {
		embedded, err = eventbus.NewEmbeddedServer(&eventbus.ServerConfig{
			Host:              cfg.NATS.EmbeddedHost,
			Port:              cfg.NATS.EmbeddedPort,
			StoreDir:          cfg.NATS.StoreDir,
			JetStreamMaxMem:   cfg.NATS.MaxMemory,
			JetStreamMaxStore: cfg.NATS.MaxStore,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server ready")
	}

	wmLogger := watermill.NewSlogLogger(logging.NewSlogLogger())

	busPublisher, err := eventbus.NewPublisher(eventbus.PublisherConfig{
		URL:             natsURL,
		MaxReconnects:   cfg.NATS.MaxReconnects,
		ReconnectWait:   cfg.NATS.ReconnectWait,
		ReconnectBuffer: cfg.NATS.ReconnectBuffer,
		TrackMsgID:      cfg.NATS.TrackMsgID,
	}, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event bus publisher")
	}
	defer busPublisher.Close()

	if cfg.Outbox.BreakerEnabled {
		busPublisher.SetCircuitBreaker(eventbus.NewPublishBreaker())
	}

	broadcast, err := eventbus.NewBroadcastSubscriber(eventbus.SubscriberConfig{
		URL:           natsURL,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
		CloseTimeout:  cfg.NATS.CloseTimeout,
	}, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create broadcast subscriber")
	}
	defer broadcast.Close()

	// Stores and domain services.
	outboxStore := outbox.NewBadgerStore(db)
	notifStore := notification.NewBadgerStore(db)
	notifService := notification.NewService(notifStore, outboxStore)

	replayCache := push.NewBadgerReplayCache(db, cfg.Push.ReplayCacheTTL, cfg.Push.ReplayCacheMaxEvents)
	manager := push.NewManager(push.NewRegistry(), replayCache, notification.NewEventSource(notifStore))

	outboxPublisher := outbox.NewPublisher(outboxStore, busPublisher, outbox.Config{
		BatchSize:   cfg.Outbox.BatchSize,
		MaxRetry:    cfg.Outbox.MaxRetry,
		PublishRate: cfg.Outbox.PublishRate,
	})

	// HTTP surface.
	handler := api.NewHandler(manager, notifService, cfg.Server, cfg.Push)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervisor tree.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewOutboxService(outboxPublisher, cfg.Outbox.PublishInterval))
	tree.AddDataService(services.NewCleanupService("outbox-retention", cfg.Outbox.CleanupInterval,
		func(ctx context.Context) error {
			return outboxPublisher.CleanupOldEvents(ctx, cfg.Outbox.Retention)
		}))
	tree.AddDataService(services.NewCleanupService("notification-retention", cfg.Outbox.CleanupInterval,
		func(ctx context.Context) error {
			_, err := notifService.Cleanup(ctx, notificationRetention)
			return err
		}))

	if embedded != nil {
		tree.AddMessagingService(services.NewNATSServerService(embedded, cfg.Server.ShutdownTimeout))
	}
	for _, channel := range cfg.Push.Channels {
		consumer := push.NewChannelSubscriber(channel, manager)
		tree.AddMessagingService(services.NewSubscriberService(broadcast, consumer))
	}
	tree.AddMessagingService(services.NewHeartbeatService(manager, cfg.Push.HeartbeatInterval))

	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}

	logging.Info().Msg("Chorus stopped")
}
