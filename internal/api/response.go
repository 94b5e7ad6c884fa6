// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/chorusapp/chorus/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
