// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inclusivelearn/eduaccess/backend/config"
	"github.com/inclusivelearn/eduaccess/backend/storage/memory"
)

func TestRunServerShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	shutdown := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, srv, func() { close(shutdown) })
	}()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	select {
	case <-shutdown:
	default:
		t.Fatal("shutdown hook was not called")
	}
}

func TestRunServerReportsListenErrors(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:-1", Handler: http.NotFoundHandler()}
	err := runServer(context.Background(), srv, func() {})
	assert.Error(t, err)
}

func TestOpenStorageMemoryDriver(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: config.DriverMemory}}

	gateway, bus, closeStore, err := openStorage(cfg, nil)
	require.NoError(t, err)
	defer closeStore()

	store, ok := gateway.(*memory.Store)
	require.True(t, ok)
	assert.Same(t, store, bus)

	profiles, err := store.ListProfiles(context.Background(), []string{"teacher-sarah-williams"})
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}
