// world_directory.go: HTTP world directory client with retry and caching
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultWorldCacheTTL   = time.Minute
	DefaultWorldMaxRetries = 3
	maxWorldListingSize    = 4 << 20
)

// HTTPWorldDirectory fetches the world listing as JSON from a URL.
// Successful listings are cached for CacheTTL.
type HTTPWorldDirectory struct {
	URL        string
	Client     *http.Client
	CacheTTL   time.Duration
	MaxRetries uint64
	// InitialInterval is the first retry delay; it grows exponentially.
	InitialInterval time.Duration

	logger Logger

	mu        sync.Mutex
	cached    *WorldResult
	fetchedAt time.Time
}

// NewHTTPWorldDirectory creates a directory client with default retry and cache settings.
func NewHTTPWorldDirectory(url string, logger Logger) *HTTPWorldDirectory {
	return &HTTPWorldDirectory{
		URL:             url,
		Client:          &http.Client{Timeout: 10 * time.Second},
		CacheTTL:        DefaultWorldCacheTTL,
		MaxRetries:      DefaultWorldMaxRetries,
		InitialInterval: 200 * time.Millisecond,
		logger:          NewLogger(logger).With("component", "world_directory"),
	}
}

// Worlds returns the cached listing or fetches a fresh one.
func (d *HTTPWorldDirectory) Worlds(ctx context.Context) (*WorldResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil && time.Since(d.fetchedAt) < d.CacheTTL {
		return d.cached, nil
	}

	var result *WorldResult
	op := func() error {
		r, err := d.fetch(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		d.logger.Debug("World listing fetch failed, retrying", "url", d.URL, "error", err, "wait", wait)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, d.MaxRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", d.URL, err)
	}

	d.cached = result
	d.fetchedAt = time.Now()
	return result, nil
}

// Invalidate drops the cached listing.
func (d *HTTPWorldDirectory) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = nil
}

func (d *HTTPWorldDirectory) fetch(ctx context.Context) (*WorldResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("world directory returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("world directory returned %s", resp.Status))
	}

	var result WorldResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxWorldListingSize)).Decode(&result); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode world listing: %w", err))
	}
	return &result, nil
}

// StaticWorldDirectory serves a fixed listing.
type StaticWorldDirectory struct {
	Result *WorldResult
	Err    error
}

// Worlds returns the fixed listing and error.
func (s StaticWorldDirectory) Worlds(context.Context) (*WorldResult, error) {
	return s.Result, s.Err
}
