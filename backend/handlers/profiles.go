// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/messaging"
	"github.com/inclusivelearn/eduaccess/backend/middleware"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

type ProfileHandler struct {
	profiles storage.ProfileStore
	activity storage.ActivityStore
	log      *zap.Logger
}

func NewProfileHandler(profiles storage.ProfileStore, activity storage.ActivityStore, log *zap.Logger) *ProfileHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileHandler{profiles: profiles, activity: activity, log: log.Named("profiles")}
}

// GetProfile returns the public profile of one user.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respondFailure(w, h.log, wrapStorage("get profile", err))
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// ListActivity returns the caller's most recent activity log entries.
func (h *ProfileHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxActivityLimit {
			respondFailure(w, h.log, &messaging.ValidationError{Field: "limit", Reason: "must be between 1 and 100"})
			return
		}
		limit = n
	}

	entries, err := h.activity.ListActivity(r.Context(), userID, limit)
	if err != nil {
		respondFailure(w, h.log, wrapStorage("list activity", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activity": entries,
		"count":    len(entries),
	})
}

// wrapStorage marks a store failure as a gateway error. ErrNotFound stays
// reachable through Unwrap.
func wrapStorage(op string, err error) error {
	return &messaging.GatewayError{Op: op, Err: err}
}
