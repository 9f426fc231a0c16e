// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package signer provides credentials that sign decryption authorization
// requests.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/luxfi/fhevm/crypto/eip712"
)

var (
	_ eip712.Credential = (*LocalSigner)(nil)
	_ eip712.Credential = (*RemoteSigner)(nil)

	ErrNilKey           = errors.New("nil private key")
	ErrAddressMismatch  = errors.New("remote signer returned a signature for a different address")
	ErrBadSignatureSize = errors.New("unexpected signature length")
)

// LocalSigner signs with an in-memory secp256k1 key
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewLocalSigner creates a signer for key on chainID
func NewLocalSigner(key *ecdsa.PrivateKey, chainID *big.Int) (*LocalSigner, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	id := new(big.Int)
	if chainID != nil {
		id.Set(chainID)
	}
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: id,
	}, nil
}

// NewLocalSignerFromHex parses a hex encoded private key, with or without 0x prefix
func NewLocalSignerFromHex(hexKey string, chainID *big.Int) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewLocalSigner(key, chainID)
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

func (s *LocalSigner) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.chainID), nil
}

// SignTypedData signs the EIP-712 digest of data. The recovery id is returned
// in the 27/28 form wallets produce.
func (s *LocalSigner) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	hash, err := eip712.Hash(data)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignerClient is the transport to an external signing service such as a
// wallet or a key management service.
type SignerClient interface {
	// Account returns the address the service signs for
	Account(ctx context.Context) (common.Address, error)
	// ChainID returns the chain the service is connected to
	ChainID(ctx context.Context) (*big.Int, error)
	// SignTypedData implements eth_signTypedData_v4
	SignTypedData(ctx context.Context, account common.Address, data apitypes.TypedData) (hexutil.Bytes, error)
}

// RemoteSigner signs through a SignerClient
type RemoteSigner struct {
	client  SignerClient
	address common.Address
}

// NewRemoteSigner fetches the account from the remote service
func NewRemoteSigner(ctx context.Context, client SignerClient) (*RemoteSigner, error) {
	addr, err := client.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get remote account: %w", err)
	}
	return &RemoteSigner{
		client:  client,
		address: addr,
	}, nil
}

func (s *RemoteSigner) Address() common.Address {
	return s.address
}

func (s *RemoteSigner) ChainID(ctx context.Context) (*big.Int, error) {
	return s.client.ChainID(ctx)
}

// SignTypedData asks the remote service for a signature and checks that it
// recovers to the expected account.
func (s *RemoteSigner) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	sig, err := s.client.SignTypedData(ctx, s.address, data)
	if err != nil {
		return nil, fmt.Errorf("failed to sign remotely: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: %d", ErrBadSignatureSize, len(sig))
	}
	hash, err := eip712.Hash(data)
	if err != nil {
		return nil, err
	}
	recovered, err := eip712.RecoverAddress(hash, sig)
	if err != nil {
		return nil, err
	}
	if recovered != s.address {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrAddressMismatch, recovered, s.address)
	}
	return sig, nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
