// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eip712

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrSignerMismatch    = errors.New("credential does not control the source address")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrUnknownPrimary    = errors.New("type schema does not define the message type")
	ErrZeroContract      = errors.New("contract address is zero")
)

// BuildDomain returns the signing domain for a contract on a chain.
func BuildDomain(contract common.Address, chainID *big.Int) Domain {
	id := new(big.Int)
	if chainID != nil {
		id.Set(chainID)
	}
	return Domain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainID:           id,
		VerifyingContract: contract,
	}
}

// Service signs decryption authorization requests.
type Service struct {
	nonces NonceSource
}

// NewService returns a Service. A nil NonceSource selects a MonotonicNonce.
func NewService(nonces NonceSource) *Service {
	if nonces == nil {
		nonces = NewMonotonicNonce()
	}
	return &Service{nonces: nonces}
}

// Sign produces a signed decryption request for (contract, handle, user). If
// nonce is nil the service's NonceSource provides one.
func (s *Service) Sign(
	ctx context.Context,
	cred Credential,
	contract common.Address,
	handle common.Hash,
	user common.Address,
	nonce *big.Int,
) (*SignedRequest, error) {
	return s.sign(ctx, cred, Message{
		ContractAddress: contract,
		Handle:          handle,
		UserAddress:     user,
		Nonce:           nonce,
	})
}

// SignReencryption produces a request that delegates read access to handle
// from one address to another. The credential must sign for from.
func (s *Service) SignReencryption(
	ctx context.Context,
	cred Credential,
	contract common.Address,
	handle common.Hash,
	from common.Address,
	to common.Address,
	nonce *big.Int,
) (*SignedRequest, error) {
	if cred != nil && cred.Address() != from {
		return nil, fmt.Errorf("%w: credential %s, source %s", ErrSignerMismatch, cred.Address(), from)
	}
	return s.sign(ctx, cred, Message{
		ContractAddress: contract,
		Handle:          handle,
		UserAddress:     from,
		ToAddress:       &to,
		Nonce:           nonce,
	})
}

func (s *Service) sign(ctx context.Context, cred Credential, msg Message) (*SignedRequest, error) {
	if cred == nil {
		return nil, ErrMissingCredential
	}
	if msg.ContractAddress == (common.Address{}) {
		return nil, ErrZeroContract
	}
	if msg.Nonce == nil {
		msg.Nonce = s.nonces.Next()
	} else {
		msg.Nonce = new(big.Int).Set(msg.Nonce)
	}

	chainID, err := cred.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	domain := BuildDomain(msg.ContractAddress, chainID)

	sig, err := cred.SignTypedData(ctx, NewTypedData(domain, msg, msg.Types()))
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	return &SignedRequest{
		Signature: sig,
		Domain:    domain,
		Message:   msg,
	}, nil
}

// Verify recovers the address that produced signature over domain and message
// under the given type schema. It has no side effects.
func Verify(signature []byte, domain Domain, message Message, types apitypes.Types) (common.Address, error) {
	if _, ok := types[message.PrimaryType()]; !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownPrimary, message.PrimaryType())
	}
	hash, err := Hash(NewTypedData(domain, message, types))
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, signature)
}

// VerifyRequest recovers the signer of a SignedRequest using its own schema.
func VerifyRequest(req *SignedRequest) (common.Address, error) {
	return Verify(req.Signature, req.Domain, req.Message, req.Message.Types())
}

// RecoverAddress recovers the signer of a 65 byte signature over hash.
// Both the 0/1 and the 27/28 recovery id conventions are accepted.
func RecoverAddress(hash common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, signature[crypto.RecoveryIDOffset])
	}
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
