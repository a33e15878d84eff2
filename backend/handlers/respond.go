// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/messaging"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps messaging and storage errors onto HTTP statuses.
// Gateway failures are logged and answered without their internals.
func respondFailure(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case messaging.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case messaging.IsGateway(err):
		log.Error("gateway request failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "Storage is unavailable, please try again")
	default:
		log.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal error")
	}
}
