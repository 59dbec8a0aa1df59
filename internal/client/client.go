package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"expensetracker/internal/config"
	"expensetracker/internal/log"
)

// Client bundles everything a front-end needs.
type Client struct {
	API          *API
	Availability *Availability
	Session      *Session
	Tracker      *Tracker
	Preferences  *Preferences

	closer func() error
}

// Options wires a Client from parts. Store and API are required.
type Options struct {
	API         *API
	Store       LocalStore
	HealthTTL   time.Duration
	HealthLimit time.Duration
	Offline     bool
	Logger      *log.Logger
	Now         func() time.Time
}

// NewWithOptions builds a Client around an existing API and store.
func NewWithOptions(ctx context.Context, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentClient)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	avail := NewAvailability(opts.API, opts.HealthTTL, opts.HealthLimit)
	avail.now = now
	avail.ForceOffline(opts.Offline)

	fb := fallback{avail: avail, logger: logger}
	session := newSession(opts.API, opts.Store, fb, logger)
	session.now = now

	prefs, err := LoadPreferences(ctx, opts.Store)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	return &Client{
		API:          opts.API,
		Availability: avail,
		Session:      session,
		Tracker: &Tracker{
			api:     opts.API,
			store:   opts.Store,
			session: session,
			avail:   avail,
			logger:  logger,
			now:     now,
		},
		Preferences: prefs,
	}, nil
}

// New opens the local store at cfg.LocalDBPath and connects to cfg.APIURL.
func New(ctx context.Context, cfg *config.ClientConfig, logger *log.Logger) (*Client, error) {
	store, err := OpenSQLiteStore(cfg.LocalDBPath)
	if err != nil {
		return nil, err
	}
	api := NewAPI(cfg.APIURL, &http.Client{Timeout: cfg.Timeout})

	c, err := NewWithOptions(ctx, Options{
		API:         api,
		Store:       store,
		HealthTTL:   cfg.HealthTTL,
		HealthLimit: cfg.HealthTimeout,
		Offline:     cfg.Offline,
		Logger:      logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	c.closer = store.Close
	return c, nil
}

// Close releases the local store.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
