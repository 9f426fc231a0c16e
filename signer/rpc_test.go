// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhevm/crypto/eip712"
)

// walletService serves the eth_ methods a wallet exposes
type walletService struct {
	key *ecdsa.PrivateKey
}

func (w *walletService) Accounts() []common.Address {
	return []common.Address{crypto.PubkeyToAddress(w.key.PublicKey)}
}

func (*walletService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(31337))
}

func (w *walletService) SignTypedData_v4(_ common.Address, data apitypes.TypedData) (hexutil.Bytes, error) {
	hash, err := eip712.Hash(data)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash.Bytes(), w.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func TestRPCClient(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)

	server := rpc.NewServer()
	require.NoError(server.RegisterName("eth", &walletService{key: key}))
	t.Cleanup(server.Stop)
	client := rpc.DialInProc(server)
	t.Cleanup(client.Close)

	ctx := context.Background()
	remote, err := NewRemoteSigner(ctx, NewRPCClient(client))
	require.NoError(err)
	require.Equal(crypto.PubkeyToAddress(key.PublicKey), remote.Address())

	chainID, err := remote.ChainID(ctx)
	require.NoError(err)
	require.Equal(int64(31337), chainID.Int64())

	req, err := eip712.NewService(nil).Sign(
		ctx,
		remote,
		common.HexToAddress("0x01"),
		common.HexToHash("0x02"),
		remote.Address(),
		nil,
	)
	require.NoError(err)

	recovered, err := eip712.VerifyRequest(req)
	require.NoError(err)
	require.Equal(remote.Address(), recovered)
}
