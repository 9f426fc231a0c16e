// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine provides an fhe.Engine that encrypts through a pluggable
// Encoder and decrypts through the decryption gateway.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/luxfi/log"

	"github.com/luxfi/fhevm/cache"
	"github.com/luxfi/fhevm/crypto/fhe"
	"github.com/luxfi/fhevm/gateway"
	"github.com/luxfi/fhevm/utils"
)

const (
	defaultKeyTimeout = 30 * time.Second
	defaultKeyTTL     = 10 * time.Minute
)

var (
	_ fhe.Engine = (*Engine)(nil)

	errNilEncoder = errors.New("encoder factory returned nil")
)

// Encoder encrypts plaintexts under a network public key. Implementations
// wrap the native TFHE library.
type Encoder interface {
	EncryptBool(value bool) ([]byte, error)
	Encrypt8(value uint8) ([]byte, error)
	Encrypt16(value uint16) ([]byte, error)
	Encrypt32(value uint32) ([]byte, error)
	Encrypt64(value uint64) ([]byte, error)
	Encrypt128(value *uint256.Int) ([]byte, error)
	Encrypt256(value *uint256.Int) ([]byte, error)
	EncryptAddress(value common.Address) ([]byte, error)
}

// EncoderFactory builds an Encoder for a chain and its public key.
type EncoderFactory func(chainID uint64, publicKey string) (Encoder, error)

// Decrypter is the decryption half of the gateway client
type Decrypter interface {
	UserDecrypt(ctx context.Context, contract common.Address, handle common.Hash, signature []byte) (fhe.Plaintext, error)
	PublicDecrypt(ctx context.Context, contract common.Address, handle common.Hash) (fhe.Plaintext, error)
	PublicKey(ctx context.Context) (string, error)
}

// Engine is an initialized engine bound to one configuration.
type Engine struct {
	Encoder
	gateway   Decrypter
	publicKey string
}

// PublicKey returns the network public key the encoder was built with
func (e *Engine) PublicKey() string {
	return e.publicKey
}

func (e *Engine) Decrypt(ctx context.Context, contract common.Address, handle common.Hash, signature []byte) (fhe.Plaintext, error) {
	return e.gateway.UserDecrypt(ctx, contract, handle, signature)
}

func (e *Engine) PublicDecrypt(ctx context.Context, contract common.Address, handle common.Hash) (fhe.Plaintext, error) {
	return e.gateway.PublicDecrypt(ctx, contract, handle)
}

// Option configures a Factory
type Option func(*Factory)

// WithLogger sets the logger
func WithLogger(l log.Logger) Option {
	return func(f *Factory) {
		f.log = l
	}
}

// WithKeyTimeout bounds how long a bootstrap retries fetching the public key
func WithKeyTimeout(d time.Duration) Option {
	return func(f *Factory) {
		f.keyTimeout = d
	}
}

// WithGatewayDialer replaces how a gateway client is built for a URL
func WithGatewayDialer(dial func(url string) Decrypter) Option {
	return func(f *Factory) {
		f.dial = dial
	}
}

// Factory builds engines. Public keys fetched from a gateway are shared by
// every engine built for that gateway until they expire.
type Factory struct {
	encoders   EncoderFactory
	dial       func(url string) Decrypter
	keys       *cache.TTLCache[string, string]
	keyTimeout time.Duration
	log        log.Logger
}

// NewFactory returns a Factory whose New method satisfies fhe.EngineFactory.
func NewFactory(encoders EncoderFactory, opts ...Option) *Factory {
	f := &Factory{
		encoders:   encoders,
		keys:       cache.NewTTLCache[string, string](defaultKeyTTL),
		keyTimeout: defaultKeyTimeout,
		log:        log.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.dial == nil {
		f.dial = func(url string) Decrypter {
			return gateway.New(url, gateway.WithLogger(f.log))
		}
	}
	return f
}

// New bootstraps an engine for cfg. When cfg carries no public key it is
// fetched from the gateway.
func (f *Factory) New(ctx context.Context, cfg fhe.EngineConfig) (fhe.Engine, error) {
	gw := f.dial(cfg.GatewayURL)

	publicKey := cfg.PublicKey
	if publicKey == "" {
		var err error
		publicKey, err = f.keys.Get(cfg.GatewayURL, func(string) (string, error) {
			return f.fetchKey(ctx, gw, cfg.GatewayURL)
		}, false)
		if err != nil {
			return nil, err
		}
	}

	encoder, err := f.encoders(cfg.ChainID, publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	if encoder == nil {
		return nil, errNilEncoder
	}

	f.log.Debug("engine created",
		log.Uint64("chainID", cfg.ChainID),
		log.String("gateway", cfg.GatewayURL),
	)
	return &Engine{
		Encoder:   encoder,
		gateway:   gw,
		publicKey: publicKey,
	}, nil
}

func (f *Factory) fetchKey(ctx context.Context, gw Decrypter, url string) (string, error) {
	var key string
	err := utils.WithRetriesTimeout(ctx, f.log, "fetch public key", func() error {
		var err error
		key, err = gw.PublicKey(ctx)
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) && gwErr.StatusCode >= 400 && gwErr.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}, f.keyTimeout)
	if err != nil {
		return "", fmt.Errorf("failed to fetch public key from %s: %w", url, err)
	}
	return key, nil
}
