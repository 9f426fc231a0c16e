// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhevm is a client for confidential smart contracts. It owns the
// lifecycle of an external FHE engine, encrypts typed plaintexts for
// submission on-chain, and requests decryption through signed authorization
// requests.
package fhevm

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/luxfi/log"
	"golang.org/x/sync/singleflight"

	"github.com/luxfi/fhevm/crypto/fhe"
)

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithMetrics sets the client metrics
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client owns at most one engine instance for its current configuration.
//
// Concurrent callers of Handle that arrive while a bootstrap is running share
// its outcome. UpdateConfig and Dispose drop the current engine; a bootstrap
// that was already running against the old configuration still completes for
// the callers waiting on it, but its engine is never installed.
type Client struct {
	factory fhe.EngineFactory
	log     log.Logger
	metrics *Metrics

	lock       sync.RWMutex
	config     Config
	engine     fhe.Engine
	generation uint64

	bootstraps singleflight.Group
}

// New creates a client. No engine is constructed until Initialize or Handle
// is called.
func New(cfg Config, factory fhe.EngineFactory, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, newError(KindConfiguration, "new client", err)
	}
	if factory == nil {
		return nil, newError(KindConfiguration, "new client", ErrNoEngineFactory)
	}
	c := &Client{
		factory: factory,
		config:  cfg,
		log:     log.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Initialize bootstraps the engine if it is not already available. Callers
// that arrive while a bootstrap is in flight wait for the same outcome. A
// failed bootstrap is not remembered, so a later call retries.
func (c *Client) Initialize(ctx context.Context) error {
	_, err := c.initialize(ctx)
	return err
}

// Handle returns the current engine, initializing it first if needed.
func (c *Client) Handle(ctx context.Context) (fhe.Engine, error) {
	c.lock.RLock()
	engine := c.engine
	c.lock.RUnlock()
	if engine != nil {
		return engine, nil
	}

	engine, err := c.initialize(ctx)
	if err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, newError(KindInitialization, "get handle", ErrNotInitialized)
	}
	return engine, nil
}

// IsInitialized reports whether an engine is currently held
func (c *Client) IsInitialized() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.engine != nil
}

// Config returns a copy of the current configuration
func (c *Client) Config() Config {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.config
}

// Generation identifies the current configuration. It changes on every
// UpdateConfig and Dispose.
func (c *Client) Generation() uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.generation
}

// UpdateConfig merges update into the configuration and invalidates the
// current engine. The next Handle call bootstraps against the new
// configuration.
func (c *Client) UpdateConfig(update ConfigUpdate) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	next := c.config.Merge(update)
	if err := next.Validate(); err != nil {
		return newError(KindConfiguration, "update config", err)
	}
	c.config = next
	c.engine = nil
	c.generation++

	c.log.Info("configuration updated",
		log.Uint64("chainID", next.Network.ChainID),
		log.Uint64("generation", c.generation),
	)
	return nil
}

// GatewayURL resolves the decryption gateway for the current configuration.
func (c *Client) GatewayURL() (string, error) {
	return ResolveGatewayURL(c.Config())
}

// Dispose drops the engine and any pending bootstrap. It is safe to call
// more than once.
func (c *Client) Dispose() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.engine != nil {
		c.log.Debug("engine disposed")
	}
	c.engine = nil
	c.generation++
}

func (c *Client) initialize(ctx context.Context) (fhe.Engine, error) {
	c.lock.RLock()
	engine := c.engine
	generation := c.generation
	cfg := c.config
	c.lock.RUnlock()
	if engine != nil {
		return engine, nil
	}

	// The bootstrap is shared, so it must not be canceled by whichever caller
	// happened to start it.
	bootstrapCtx := context.WithoutCancel(ctx)
	results := c.bootstraps.DoChan(strconv.FormatUint(generation, 10), func() (interface{}, error) {
		return c.bootstrap(bootstrapCtx, generation, cfg)
	})

	select {
	case <-ctx.Done():
		return nil, newError(KindInitialization, "initialize", ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		engine, _ := res.Val.(fhe.Engine)
		return engine, nil
	}
}

func (c *Client) bootstrap(ctx context.Context, generation uint64, cfg Config) (fhe.Engine, error) {
	start := time.Now()
	engine, err := c.construct(ctx, cfg)
	c.metrics.observeBootstrap(float64(time.Since(start).Milliseconds()), err)
	if err != nil {
		c.log.Error("failed to initialize engine",
			log.Uint64("chainID", cfg.Network.ChainID),
			log.Err(err),
		)
		return nil, newError(KindInitialization, "initialize", err)
	}

	c.lock.Lock()
	if c.generation == generation {
		c.engine = engine
	}
	c.lock.Unlock()

	c.log.Info("engine initialized",
		log.Uint64("chainID", cfg.Network.ChainID),
		log.Uint64("generation", generation),
	)
	return engine, nil
}

func (c *Client) construct(ctx context.Context, cfg Config) (fhe.Engine, error) {
	gateway, err := ResolveGatewayURL(cfg)
	if err != nil {
		return nil, err
	}
	return c.factory(ctx, cfg.engineConfig(gateway))
}
