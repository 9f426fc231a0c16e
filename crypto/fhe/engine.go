// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Engine is an initialized instance of the external FHE engine.
//
// The encrypt methods encode a single plaintext under the network public key,
// one method per ciphertext width. Decrypt asks the decryption service for a
// plaintext on behalf of a user who has signed an authorization request;
// PublicDecrypt does the same for ciphertexts the contract has marked public.
type Engine interface {
	EncryptBool(value bool) ([]byte, error)
	Encrypt8(value uint8) ([]byte, error)
	Encrypt16(value uint16) ([]byte, error)
	Encrypt32(value uint32) ([]byte, error)
	Encrypt64(value uint64) ([]byte, error)
	Encrypt128(value *uint256.Int) ([]byte, error)
	Encrypt256(value *uint256.Int) ([]byte, error)
	EncryptAddress(value common.Address) ([]byte, error)

	Decrypt(ctx context.Context, contract common.Address, handle common.Hash, signature []byte) (Plaintext, error)
	PublicDecrypt(ctx context.Context, contract common.Address, handle common.Hash) (Plaintext, error)
}

// EngineConfig is the resolved configuration an engine is built from.
type EngineConfig struct {
	ChainID     uint64
	RPCURL      string
	GatewayURL  string
	ACLAddress  common.Address
	KMSVerifier common.Address
	PublicKey   string
}

// EngineFactory constructs an engine. It may perform network I/O (fetching
// keys, loading parameters) and is expected to be expensive.
type EngineFactory func(ctx context.Context, cfg EngineConfig) (Engine, error)
