// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/fhevm/crypto/eip712"
	"github.com/luxfi/fhevm/crypto/fhe"
)

// DefaultGateways maps chain ids to the decryption gateway used when the
// configuration does not name one.
var DefaultGateways = map[uint64]string{
	11155111: "https://gateway.sepolia.zama.ai", // Sepolia
	5:        "https://gateway.goerli.zama.ai",  // Goerli
}

// Network identifies the chain the client talks to.
type Network struct {
	ChainID uint64 `json:"chainId"`
	RPCURL  string `json:"rpcUrl"`
	Name    string `json:"name,omitempty"`
}

// Contracts holds optional service addresses.
type Contracts struct {
	Gateway     string         `json:"gateway,omitempty"`
	KMSVerifier common.Address `json:"kmsVerifier,omitempty"`
}

// Config is the client configuration supplied at session start.
type Config struct {
	Network    Network        `json:"network"`
	Contracts  Contracts      `json:"contracts,omitempty"`
	ACLAddress common.Address `json:"aclAddress,omitempty"`
	PublicKey  string         `json:"publicKey,omitempty"`

	// Credential is the caller's signing handle. It is never serialized.
	Credential eip712.Credential `json:"-"`
}

// NetworkUpdate is a partial Network; nil fields are left unchanged.
type NetworkUpdate struct {
	ChainID *uint64
	RPCURL  *string
	Name    *string
}

// ConfigUpdate is a partial Config passed to Client.UpdateConfig.
type ConfigUpdate struct {
	Network    *NetworkUpdate
	Contracts  *Contracts
	ACLAddress *common.Address
	PublicKey  *string
	Credential eip712.Credential
}

// Validate checks the invariants of a configuration.
func (c Config) Validate() error {
	if c.Network.ChainID == 0 {
		return ErrInvalidChainID
	}
	u, err := url.Parse(c.Network.RPCURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRPCURL, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRPCURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidRPCURL)
	}
	if c.Contracts.Gateway != "" {
		g, err := url.Parse(c.Contracts.Gateway)
		if err != nil || (g.Scheme != "http" && g.Scheme != "https") || g.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidGateway, c.Contracts.Gateway)
		}
	}
	return nil
}

// Merge returns a copy of c with the fields present in u applied. Network
// fields merge one by one; the other fields are replaced when present.
func (c Config) Merge(u ConfigUpdate) Config {
	out := c
	if u.Network != nil {
		if u.Network.ChainID != nil {
			out.Network.ChainID = *u.Network.ChainID
		}
		if u.Network.RPCURL != nil {
			out.Network.RPCURL = *u.Network.RPCURL
		}
		if u.Network.Name != nil {
			out.Network.Name = *u.Network.Name
		}
	}
	if u.Contracts != nil {
		out.Contracts = *u.Contracts
	}
	if u.ACLAddress != nil {
		out.ACLAddress = *u.ACLAddress
	}
	if u.PublicKey != nil {
		out.PublicKey = *u.PublicKey
	}
	if u.Credential != nil {
		out.Credential = u.Credential
	}
	return out
}

// ResolveGatewayURL returns the configured gateway override, or the built-in
// default for the chain.
func ResolveGatewayURL(c Config) (string, error) {
	if c.Contracts.Gateway != "" {
		return c.Contracts.Gateway, nil
	}
	if gw, ok := DefaultGateways[c.Network.ChainID]; ok {
		return gw, nil
	}
	return "", newError(
		KindConfiguration,
		"resolve gateway",
		fmt.Errorf("%w for chain id %d", ErrMissingGateway, c.Network.ChainID),
	)
}

func (c Config) engineConfig(gatewayURL string) fhe.EngineConfig {
	return fhe.EngineConfig{
		ChainID:     c.Network.ChainID,
		RPCURL:      c.Network.RPCURL,
		GatewayURL:  gatewayURL,
		ACLAddress:  c.ACLAddress,
		KMSVerifier: c.Contracts.KMSVerifier,
		PublicKey:   c.PublicKey,
	}
}
