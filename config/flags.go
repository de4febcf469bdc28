// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// flagTTL bounds how long a fetched flag value is served from cache.
const flagTTL = 30 * time.Second

// A FlagClient queries a remote feature-flag service over HTTP. Lookups are
// fail-soft: any transport or decoding error yields the caller's fallback
// value, so an unreachable flag service never blocks execution. A nil
// *FlagClient is valid and always reports the fallback.
type FlagClient struct {
	base string
	hc   *http.Client
	log  zerolog.Logger

	mu    sync.RWMutex
	cache map[string]flagState
}

type flagState struct {
	enabled bool
	at      time.Time
}

// NewFlagClient constructs a client for the flag service at base, or nil if
// base is empty.
func NewFlagClient(base string, log zerolog.Logger) *FlagClient {
	if base == "" {
		return nil
	}
	return &FlagClient{
		base:  base,
		hc:    &http.Client{Timeout: 5 * time.Second},
		log:   log,
		cache: make(map[string]flagState),
	}
}

// IsEnabled reports whether the named flag is enabled, consulting the cache
// before the service. It returns fallback when the client is nil or the
// service cannot be reached.
func (c *FlagClient) IsEnabled(ctx context.Context, name string, fallback bool) bool {
	if c == nil {
		return fallback
	}
	c.mu.RLock()
	st, ok := c.cache[name]
	c.mu.RUnlock()
	if ok && time.Since(st.at) < flagTTL {
		return st.enabled
	}

	enabled, err := c.fetch(ctx, name)
	if err != nil {
		c.log.Debug().Err(err).Str("flag", name).Msg("flag lookup failed")
		return fallback
	}
	c.mu.Lock()
	c.cache[name] = flagState{enabled: enabled, at: time.Now()}
	c.mu.Unlock()
	return enabled
}

func (c *FlagClient) fetch(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/flags/"+name, http.NoBody)
	if err != nil {
		return false, err
	}
	rsp, err := c.hc.Do(req)
	if err != nil {
		return false, err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("flag service: %s", rsp.Status)
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(rsp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.Enabled, nil
}
