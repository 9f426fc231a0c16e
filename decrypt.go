// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/log"

	"github.com/luxfi/fhevm/cache"
	"github.com/luxfi/fhevm/crypto/eip712"
	"github.com/luxfi/fhevm/crypto/fhe"
)

// DecryptionParams identifies a ciphertext and the user asking to read it.
type DecryptionParams struct {
	ContractAddress common.Address
	UserAddress     common.Address
	Handle          common.Hash
	Signer          eip712.Credential
}

// publicKey identifies a public decryption. generation ties it to the
// configuration it was decrypted under.
type publicKey struct {
	generation uint64
	contract   common.Address
	handle     common.Hash
}

func (k publicKey) String() string {
	return strconv.FormatUint(k.generation, 10) + "/" + k.contract.Hex() + "/" + k.handle.Hex()
}

// versioned is implemented by handle providers whose engine can be replaced.
// The generation changes every time it is.
type versioned interface {
	Generation() uint64
}

// configured is implemented by handle providers that carry a Config
type configured interface {
	Config() Config
}

var (
	_ versioned  = (*Client)(nil)
	_ configured = (*Client)(nil)
)

type publicResult struct {
	plaintext fhe.Plaintext
	err       error
}

// DecryptorOption configures a Decryptor
type DecryptorOption func(*Decryptor)

// WithDecryptorLogger sets the logger
func WithDecryptorLogger(l log.Logger) DecryptorOption {
	return func(d *Decryptor) {
		d.log = l
	}
}

// WithDecryptorMetrics sets the metrics
func WithDecryptorMetrics(m *Metrics) DecryptorOption {
	return func(d *Decryptor) {
		d.metrics = m
	}
}

// WithSignatureService overrides the signing service, e.g. to supply a
// different nonce source.
func WithSignatureService(s *eip712.Service) DecryptorOption {
	return func(d *Decryptor) {
		d.signatures = s
	}
}

// WithPublicCache memoizes up to size successful public decryptions.
// Publicly decrypted values are immutable, so entries never expire, but they
// are only served for the configuration they were decrypted under.
func WithPublicCache(size int) DecryptorOption {
	return func(d *Decryptor) {
		d.public = cache.NewLRUCache[publicKey, fhe.Plaintext](size)
	}
}

// Decryptor requests plaintexts back from the decryption service.
type Decryptor struct {
	handles    HandleProvider
	signatures *eip712.Service
	public     *cache.LRUCache[publicKey, fhe.Plaintext]
	log        log.Logger
	metrics    *Metrics
}

// NewDecryptor returns a Decryptor that borrows its engine from handles.
func NewDecryptor(handles HandleProvider, opts ...DecryptorOption) *Decryptor {
	d := &Decryptor{
		handles: handles,
		log:     log.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.signatures == nil {
		d.signatures = eip712.NewService(nil)
	}
	return d
}

// RequestUserDecrypt signs an authorization request with params.Signer and
// submits it to the engine. When params.Signer is nil the credential of the
// client configuration is used.
func (d *Decryptor) RequestUserDecrypt(ctx context.Context, params DecryptionParams) (fhe.Plaintext, error) {
	pt, err := d.userDecrypt(ctx, params)
	d.metrics.observeDecrypt("user", err)
	return pt, err
}

func (d *Decryptor) userDecrypt(ctx context.Context, params DecryptionParams) (fhe.Plaintext, error) {
	if err := checkTarget(params.ContractAddress, params.Handle); err != nil {
		return fhe.Plaintext{}, newError(KindDecryption, "user decrypt", err)
	}
	params.Signer = d.credential(params.Signer)
	if params.Signer == nil {
		return fhe.Plaintext{}, newError(KindSignature, "user decrypt", ErrMissingSigner)
	}

	engine, err := d.handles.Handle(ctx)
	if err != nil {
		return fhe.Plaintext{}, err
	}

	req, err := d.signatures.Sign(
		ctx,
		params.Signer,
		params.ContractAddress,
		params.Handle,
		params.UserAddress,
		nil,
	)
	if err != nil {
		return fhe.Plaintext{}, newError(KindSignature, "user decrypt", err)
	}

	pt, err := engine.Decrypt(ctx, params.ContractAddress, params.Handle, req.Signature)
	if err != nil {
		d.log.Debug("user decryption failed",
			log.Stringer("contract", params.ContractAddress),
			log.Stringer("handle", params.Handle),
			log.Err(err),
		)
		return fhe.Plaintext{}, newError(KindDecryption, "user decrypt", err)
	}
	return pt, nil
}

// RequestPublicDecrypt decrypts a ciphertext the contract has marked public.
// No signature is produced. Whether the ciphertext is public is decided by
// the decryption service.
func (d *Decryptor) RequestPublicDecrypt(ctx context.Context, contract common.Address, handle common.Hash) (fhe.Plaintext, error) {
	pt, err := d.publicDecrypt(ctx, contract, handle)
	d.metrics.observeDecrypt("public", err)
	return pt, err
}

func (d *Decryptor) publicDecrypt(ctx context.Context, contract common.Address, handle common.Hash) (fhe.Plaintext, error) {
	if err := checkTarget(contract, handle); err != nil {
		return fhe.Plaintext{}, newError(KindDecryption, "public decrypt", err)
	}

	// Read before Handle so an entry is never filed under a newer
	// configuration than the engine that produced it.
	var generation uint64
	if v, ok := d.handles.(versioned); ok {
		generation = v.Generation()
	}
	engine, err := d.handles.Handle(ctx)
	if err != nil {
		return fhe.Plaintext{}, err
	}

	key := publicKey{generation: generation, contract: contract, handle: handle}
	var pt fhe.Plaintext
	if d.public != nil {
		pt, err = d.cachedPublicDecrypt(ctx, engine, key)
	} else {
		pt, err = engine.PublicDecrypt(ctx, contract, handle)
	}
	if err != nil {
		d.log.Debug("public decryption failed",
			log.Stringer("contract", contract),
			log.Stringer("handle", handle),
			log.Err(err),
		)
		return fhe.Plaintext{}, newError(KindDecryption, "public decrypt", err)
	}
	return pt, nil
}

// cachedPublicDecrypt goes through the cache. Concurrent misses share one
// fetch, so it must not be canceled by whichever caller happened to start it;
// each caller stops waiting when its own ctx is done.
func (d *Decryptor) cachedPublicDecrypt(ctx context.Context, engine fhe.Engine, key publicKey) (fhe.Plaintext, error) {
	fetchCtx := context.WithoutCancel(ctx)
	fetch := func(k publicKey) (fhe.Plaintext, error) {
		return engine.PublicDecrypt(fetchCtx, k.contract, k.handle)
	}

	results := make(chan publicResult, 1)
	go func() {
		pt, err := d.public.Get(key, fetch, false)
		results <- publicResult{plaintext: pt, err: err}
	}()

	select {
	case <-ctx.Done():
		return fhe.Plaintext{}, ctx.Err()
	case res := <-results:
		return res.plaintext, res.err
	}
}

// DecryptBatch performs user decryptions one at a time in order. It stops at
// the first failure and returns only that failure.
func (d *Decryptor) DecryptBatch(ctx context.Context, params []DecryptionParams) ([]fhe.Plaintext, error) {
	results := make([]fhe.Plaintext, 0, len(params))
	for i, p := range params {
		pt, err := d.RequestUserDecrypt(ctx, p)
		if err != nil {
			d.log.Debug("batch decryption aborted",
				log.Int("index", i),
				log.Int("size", len(params)),
			)
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		results = append(results, pt)
	}
	return results, nil
}

// CreateReencryptionRequest signs an authorization that moves read access to
// handle from one address to another. Nothing is decrypted locally; the
// request is handed to whoever performs the re-encryption. A nil cred falls
// back to the credential of the client configuration.
func (d *Decryptor) CreateReencryptionRequest(
	ctx context.Context,
	contract common.Address,
	handle common.Hash,
	from common.Address,
	to common.Address,
	cred eip712.Credential,
) (*eip712.SignedRequest, error) {
	if err := checkTarget(contract, handle); err != nil {
		return nil, newError(KindDecryption, "create reencryption request", err)
	}
	cred = d.credential(cred)
	if cred == nil {
		return nil, newError(KindSignature, "create reencryption request", ErrMissingSigner)
	}
	req, err := d.signatures.SignReencryption(ctx, cred, contract, handle, from, to, nil)
	if err != nil {
		return nil, newError(KindSignature, "create reencryption request", err)
	}
	return req, nil
}

// credential returns cred, or the configured credential when cred is nil
func (d *Decryptor) credential(cred eip712.Credential) eip712.Credential {
	if cred != nil {
		return cred
	}
	if c, ok := d.handles.(configured); ok {
		return c.Config().Credential
	}
	return nil
}

func checkTarget(contract common.Address, handle common.Hash) error {
	if contract == (common.Address{}) || handle == (common.Hash{}) {
		return ErrMissingHandle
	}
	return nil
}
