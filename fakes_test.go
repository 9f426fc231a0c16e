// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/luxfi/fhevm/crypto/fhe"
	"github.com/luxfi/fhevm/engine"
	"github.com/luxfi/fhevm/signer"
)

var errEngine = errors.New("engine failure")

func testConfig() Config {
	return Config{
		Network: Network{
			ChainID: 11155111,
			RPCURL:  "https://rpc.sepolia.example",
		},
	}
}

// fakeEngine encodes through engine.PlainEncoder and answers decryptions
// from a table keyed by handle.
type fakeEngine struct {
	engine.PlainEncoder

	id int

	lock       sync.Mutex
	values     map[common.Hash]fhe.Plaintext
	public     map[common.Hash]bool
	failures   map[common.Hash]error
	signatures map[common.Hash][]byte
	calls      []common.Hash
	encryptErr error
}

func newFakeEngine(id int) *fakeEngine {
	return &fakeEngine{
		id:         id,
		values:     make(map[common.Hash]fhe.Plaintext),
		public:     make(map[common.Hash]bool),
		failures:   make(map[common.Hash]error),
		signatures: make(map[common.Hash][]byte),
	}
}

func (e *fakeEngine) Encrypt8(v uint8) ([]byte, error) {
	if e.encryptErr != nil {
		return nil, e.encryptErr
	}
	return e.PlainEncoder.Encrypt8(v)
}

func (e *fakeEngine) EncryptBool(v bool) ([]byte, error) {
	if e.encryptErr != nil {
		return nil, e.encryptErr
	}
	return e.PlainEncoder.EncryptBool(v)
}

func (e *fakeEngine) Encrypt256(v *uint256.Int) ([]byte, error) {
	if e.encryptErr != nil {
		return nil, e.encryptErr
	}
	return e.PlainEncoder.Encrypt256(v)
}

func (e *fakeEngine) Decrypt(_ context.Context, _ common.Address, handle common.Hash, sig []byte) (fhe.Plaintext, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.calls = append(e.calls, handle)
	e.signatures[handle] = sig
	if err := e.failures[handle]; err != nil {
		return fhe.Plaintext{}, err
	}
	return e.values[handle], nil
}

func (e *fakeEngine) PublicDecrypt(_ context.Context, _ common.Address, handle common.Hash) (fhe.Plaintext, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.calls = append(e.calls, handle)
	if !e.public[handle] {
		return fhe.Plaintext{}, fhe.ErrNotPublic
	}
	return e.values[handle], nil
}

func (e *fakeEngine) attempted() []common.Hash {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]common.Hash(nil), e.calls...)
}

// staticHandles always returns the same engine
type staticHandles struct {
	engine fhe.Engine
	err    error
}

func (s staticHandles) Handle(context.Context) (fhe.Engine, error) {
	return s.engine, s.err
}

func newTestCredential() *signer.LocalSigner {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	s, err := signer.NewLocalSigner(key, big.NewInt(11155111))
	if err != nil {
		panic(err)
	}
	return s
}
