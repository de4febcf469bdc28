// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package config_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/farcall/farcall/config"
	"github.com/rs/zerolog"
)

func TestFlagClient(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/flags/shiny":
			fmt.Fprintln(w, `{"enabled":true}`)
		case "/flags/dull":
			fmt.Fprintln(w, `{"enabled":false}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	fc := config.NewFlagClient(srv.URL, zerolog.Nop())

	if !fc.IsEnabled(ctx, "shiny", false) {
		t.Error("shiny: got false, want true")
	}
	if fc.IsEnabled(ctx, "dull", true) {
		t.Error("dull: got true, want false")
	}

	// A repeat lookup within the TTL must be served from cache.
	before := hits.Load()
	if !fc.IsEnabled(ctx, "shiny", false) {
		t.Error("shiny (cached): got false, want true")
	}
	if got := hits.Load(); got != before {
		t.Errorf("cached lookup hit the service: %d requests, want %d", got, before)
	}

	// Unknown flags and service errors fall back.
	if !fc.IsEnabled(ctx, "missing", true) {
		t.Error("missing flag: got false, want fallback true")
	}
	if fc.IsEnabled(ctx, "missing", false) {
		t.Error("missing flag: got true, want fallback false")
	}
}

func TestFlagClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	fc := config.NewFlagClient(url, zerolog.Nop())
	if !fc.IsEnabled(context.Background(), "anything", true) {
		t.Error("unreachable service: got false, want fallback true")
	}
}

func TestFlagClientNil(t *testing.T) {
	var fc *config.FlagClient
	if !fc.IsEnabled(context.Background(), "x", true) {
		t.Error("nil client: got false, want fallback true")
	}
	if fc := config.NewFlagClient("", zerolog.Nop()); fc != nil {
		t.Errorf("NewFlagClient(\"\"): got %v, want nil", fc)
	}
}
