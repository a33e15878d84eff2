// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package integration

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/handlers"
	"github.com/inclusivelearn/eduaccess/backend/middleware"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

// Migrator is implemented by stores that own a schema.
type Migrator interface {
	Migrate() error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Messaging mounts the messaging API onto a router.
type Messaging struct {
	gateway         storage.Gateway
	messageHandler  *handlers.MessageHandler
	profileHandler  *handlers.ProfileHandler
	realtimeHandler *handlers.RealtimeHandler
	jwtSecret       string
	jwtIssuer       string
	log             *zap.Logger
}

// Config holds configuration for the messaging integration
type Config struct {
	Gateway        storage.Gateway
	Bus            storage.EventBus
	JWTSecret      string
	JWTIssuer      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// New builds the integration and runs the store's migrations when it has any.
func New(config *Config) (*Messaging, error) {
	if config.Gateway == nil {
		return nil, &ValidationError{Message: "storage gateway is not configured"}
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e := &Messaging{
		gateway:         config.Gateway,
		messageHandler:  handlers.NewMessageHandler(config.Gateway, log),
		profileHandler:  handlers.NewProfileHandler(config.Gateway, config.Gateway, log),
		realtimeHandler: handlers.NewRealtimeHandler(config.Gateway, config.Bus, config.AllowedOrigins, log),
		jwtSecret:       config.JWTSecret,
		jwtIssuer:       config.JWTIssuer,
		log:             log,
	}
	if err := e.ValidateSetup(); err != nil {
		return nil, err
	}

	if m, ok := config.Gateway.(Migrator); ok {
		if err := m.Migrate(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// RegisterRoutes adds the messaging routes to an existing router.
// If authMiddleware is nil, it will use the built-in JWT validation
func (e *Messaging) RegisterRoutes(router *mux.Router, authMiddleware func(http.Handler) http.Handler) {
	api := router.PathPrefix("/api").Subrouter()

	if authMiddleware != nil {
		api.Use(authMiddleware)
	} else {
		api.Use(middleware.NewAuthMiddleware(e.jwtSecret, e.jwtIssuer))
	}

	api.HandleFunc("/messages/conversations", e.messageHandler.ListConversations).Methods("GET", "OPTIONS")
	api.HandleFunc("/messages/conversations/{userId}", e.messageHandler.GetConversation).Methods("GET", "OPTIONS")
	api.HandleFunc("/messages/conversations/{userId}/read", e.messageHandler.MarkConversationRead).Methods("POST", "OPTIONS")
	api.HandleFunc("/messages/send", e.messageHandler.SendMessage).Methods("POST", "OPTIONS")
	api.HandleFunc("/messages/ws", e.realtimeHandler.ServeWS).Methods("GET")

	api.HandleFunc("/profiles/{userId}", e.profileHandler.GetProfile).Methods("GET", "OPTIONS")
	api.HandleFunc("/activity", e.profileHandler.ListActivity).Methods("GET", "OPTIONS")
}

// Health reports whether the backing store is reachable.
func (e *Messaging) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := e.gateway.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			e.log.Warn("health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Database unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Shutdown closes open sockets and waits for background activity writes.
func (e *Messaging) Shutdown() {
	e.realtimeHandler.Close()
	e.messageHandler.Wait()
}

// ValidateSetup checks if the messaging module is properly configured
func (e *Messaging) ValidateSetup() error {
	if e.jwtSecret == "" {
		return &ValidationError{Message: "JWT secret is not configured"}
	}
	return nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
