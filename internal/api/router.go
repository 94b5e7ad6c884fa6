// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chorusapp/chorus/internal/config"
)

// NewRouter wires all HTTP routes.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Reconnect storms after a deploy are the realistic abuse case on
		// the connect endpoint.
		connectLimit := cfg.ConnectRateLimit
		if connectLimit <= 0 {
			connectLimit = 60
		}
		r.With(httprate.LimitByIP(connectLimit, time.Minute)).
			Get("/events/connect", h.Connect)

		r.Route("/notifications", func(r chi.Router) {
			r.Use(httprate.LimitByIP(300, time.Minute))
			r.Post("/", h.Notify)
			r.Get("/", h.ListNotifications)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})
	})

	return r
}
