// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package signer

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var (
	_ SignerClient = (*RPCClient)(nil)

	errNoAccounts = errors.New("node exposes no accounts")
)

// RPCClient is a SignerClient over a JSON-RPC endpoint that manages keys
// (a wallet bridge, clef, or a dev node with unlocked accounts).
type RPCClient struct {
	rpc *rpc.Client
}

func NewRPCClient(c *rpc.Client) *RPCClient {
	return &RPCClient{rpc: c}
}

func (c *RPCClient) Account(ctx context.Context) (common.Address, error) {
	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, errNoAccounts
	}
	return accounts[0], nil
}

func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := c.rpc.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return (*big.Int)(&id), nil
}

func (c *RPCClient) SignTypedData(ctx context.Context, account common.Address, data apitypes.TypedData) (hexutil.Bytes, error) {
	var sig hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &sig, "eth_signTypedData_v4", account, data); err != nil {
		return nil, err
	}
	return sig, nil
}
