// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package eip712 builds, signs and verifies the typed authorization messages
// that gate decryption of on-chain ciphertexts.
package eip712

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/luxfi/ids"
)

const (
	// DomainName is the fixed scheme name of every decryption domain
	DomainName = "FHEVM Decryption"
	// DomainVersion is the fixed scheme version
	DomainVersion = "1"

	DecryptionRequestType   = "DecryptionRequest"
	ReencryptionRequestType = "ReencryptionRequest"

	domainType = "EIP712Domain"
)

var domainFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// DecryptionRequestTypes is the type schema of a user decryption request.
var DecryptionRequestTypes = apitypes.Types{
	domainType: domainFields,
	DecryptionRequestType: {
		{Name: "contractAddress", Type: "address"},
		{Name: "handle", Type: "bytes32"},
		{Name: "userAddress", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	},
}

// ReencryptionRequestTypes is the type schema of a transfer of decryption
// rights from one address to another.
var ReencryptionRequestTypes = apitypes.Types{
	domainType: domainFields,
	ReencryptionRequestType: {
		{Name: "contractAddress", Type: "address"},
		{Name: "handle", Type: "bytes32"},
		{Name: "fromAddress", Type: "address"},
		{Name: "toAddress", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	},
}

// Credential is anything able to produce an EIP-712 signature: a local key,
// a wallet, a remote signing service.
type Credential interface {
	// Address is the account the credential signs for
	Address() common.Address
	// ChainID is the chain the credential is connected to
	ChainID(ctx context.Context) (*big.Int, error)
	// SignTypedData returns a 65 byte [R || S || V] signature over the typed data hash
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// Domain binds a signature to one contract on one chain.
type Domain struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ChainID           *big.Int       `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
}

func (d Domain) typed() apitypes.TypedDataDomain {
	chainID := new(big.Int)
	if d.ChainID != nil {
		chainID.Set(d.ChainID)
	}
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(chainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// Message is the signed payload. ToAddress is set only for re-encryption
// requests, in which case UserAddress is the party giving up read access.
type Message struct {
	ContractAddress common.Address  `json:"contractAddress"`
	Handle          common.Hash     `json:"handle"`
	UserAddress     common.Address  `json:"userAddress"`
	ToAddress       *common.Address `json:"toAddress,omitempty"`
	Nonce           *big.Int        `json:"nonce"`
}

// PrimaryType returns the EIP-712 primary type name of the message
func (m Message) PrimaryType() string {
	if m.ToAddress != nil {
		return ReencryptionRequestType
	}
	return DecryptionRequestType
}

// Types returns the type schema matching the message
func (m Message) Types() apitypes.Types {
	if m.ToAddress != nil {
		return ReencryptionRequestTypes
	}
	return DecryptionRequestTypes
}

func (m Message) typed() apitypes.TypedDataMessage {
	nonce := new(big.Int)
	if m.Nonce != nil {
		nonce.Set(m.Nonce)
	}
	if m.ToAddress != nil {
		return apitypes.TypedDataMessage{
			"contractAddress": m.ContractAddress.Hex(),
			"handle":          m.Handle.Hex(),
			"fromAddress":     m.UserAddress.Hex(),
			"toAddress":       m.ToAddress.Hex(),
			"nonce":           nonce,
		}
	}
	return apitypes.TypedDataMessage{
		"contractAddress": m.ContractAddress.Hex(),
		"handle":          m.Handle.Hex(),
		"userAddress":     m.UserAddress.Hex(),
		"nonce":           nonce,
	}
}

// SignedRequest is a signature together with the exact domain and message it covers.
type SignedRequest struct {
	Signature hexutil.Bytes `json:"signature"`
	Domain    Domain        `json:"domain"`
	Message   Message       `json:"message"`
}

// TypedData returns the structure that was signed
func (r *SignedRequest) TypedData() apitypes.TypedData {
	return NewTypedData(r.Domain, r.Message, r.Message.Types())
}

// ID returns the EIP-712 digest of the request. Two requests share an ID only
// if they authorize the same thing with the same nonce.
func (r *SignedRequest) ID() (ids.ID, error) {
	hash, err := Hash(r.TypedData())
	if err != nil {
		return ids.Empty, err
	}
	return ids.ID(hash), nil
}

// NewTypedData assembles the typed data structure for a domain and message
// under the given schema.
func NewTypedData(domain Domain, message Message, types apitypes.Types) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       types,
		PrimaryType: message.PrimaryType(),
		Domain:      domain.typed(),
		Message:     message.typed(),
	}
}

// Hash returns the EIP-712 signing digest of data
func Hash(data apitypes.TypedData) (common.Hash, error) {
	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(digest), nil
}
