// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eip712_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhevm/crypto/eip712"
	"github.com/luxfi/fhevm/signer"
)

var (
	testContract = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testHandle   = common.HexToHash("0x42")
	testChainID  = big.NewInt(11155111)
)

func newTestSigner(t *testing.T) *signer.LocalSigner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := signer.NewLocalSigner(key, testChainID)
	require.NoError(t, err)
	return s
}

type fixedNonce int64

func (n fixedNonce) Next() *big.Int { return big.NewInt(int64(n)) }

func TestBuildDomain(t *testing.T) {
	require := require.New(t)

	d := eip712.BuildDomain(testContract, testChainID)
	require.Equal(eip712.DomainName, d.Name)
	require.Equal(eip712.DomainVersion, d.Version)
	require.Equal(testContract, d.VerifyingContract)
	require.Zero(testChainID.Cmp(d.ChainID))

	// the domain owns its chain id
	d.ChainID.SetInt64(1)
	require.Equal(int64(11155111), testChainID.Int64())

	require.Zero(eip712.BuildDomain(testContract, nil).ChainID.Sign())
}

func TestSignAndVerify(t *testing.T) {
	require := require.New(t)

	cred := newTestSigner(t)
	svc := eip712.NewService(fixedNonce(7))

	req, err := svc.Sign(context.Background(), cred, testContract, testHandle, cred.Address(), nil)
	require.NoError(err)
	require.Len(req.Signature, crypto.SignatureLength)
	require.Equal(int64(7), req.Message.Nonce.Int64())
	require.Equal(eip712.DecryptionRequestType, req.Message.PrimaryType())
	require.Zero(testChainID.Cmp(req.Domain.ChainID))

	recovered, err := eip712.VerifyRequest(req)
	require.NoError(err)
	require.Equal(cred.Address(), recovered)

	recovered, err = eip712.Verify(req.Signature, req.Domain, req.Message, eip712.DecryptionRequestTypes)
	require.NoError(err)
	require.Equal(cred.Address(), recovered)

	id, err := req.ID()
	require.NoError(err)
	require.NotEqual(ids.Empty, id)
}

func TestVerifyDetectsTampering(t *testing.T) {
	require := require.New(t)

	cred := newTestSigner(t)
	svc := eip712.NewService(nil)

	req, err := svc.Sign(context.Background(), cred, testContract, testHandle, cred.Address(), big.NewInt(1))
	require.NoError(err)

	tampered := req.Message
	tampered.Handle = common.HexToHash("0x43")
	recovered, err := eip712.Verify(req.Signature, req.Domain, tampered, eip712.DecryptionRequestTypes)
	require.NoError(err)
	require.NotEqual(cred.Address(), recovered)

	_, err = eip712.Verify(req.Signature[:64], req.Domain, req.Message, eip712.DecryptionRequestTypes)
	require.ErrorIs(err, eip712.ErrInvalidSignature)

	_, err = eip712.Verify(req.Signature, req.Domain, req.Message, eip712.ReencryptionRequestTypes)
	require.ErrorIs(err, eip712.ErrUnknownPrimary)
}

func TestDistinctNoncesProduceDistinctSignatures(t *testing.T) {
	require := require.New(t)

	cred := newTestSigner(t)
	svc := eip712.NewService(nil)
	ctx := context.Background()

	first, err := svc.Sign(ctx, cred, testContract, testHandle, cred.Address(), big.NewInt(1))
	require.NoError(err)
	second, err := svc.Sign(ctx, cred, testContract, testHandle, cred.Address(), big.NewInt(2))
	require.NoError(err)
	require.NotEqual(first.Signature, second.Signature)

	firstID, err := first.ID()
	require.NoError(err)
	secondID, err := second.ID()
	require.NoError(err)
	require.NotEqual(firstID, secondID)

	// default nonces never repeat
	a, err := svc.Sign(ctx, cred, testContract, testHandle, cred.Address(), nil)
	require.NoError(err)
	b, err := svc.Sign(ctx, cred, testContract, testHandle, cred.Address(), nil)
	require.NoError(err)
	require.Equal(1, b.Message.Nonce.Cmp(a.Message.Nonce))
}

func TestSignValidation(t *testing.T) {
	cred := newTestSigner(t)
	svc := eip712.NewService(nil)

	tests := []struct {
		name     string
		cred     eip712.Credential
		contract common.Address
		want     error
	}{
		{name: "missing credential", cred: nil, contract: testContract, want: eip712.ErrMissingCredential},
		{name: "zero contract", cred: cred, contract: common.Address{}, want: eip712.ErrZeroContract},
		{name: "bad signature length", cred: shortSigner{cred}, contract: testContract, want: eip712.ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Sign(context.Background(), tt.cred, tt.contract, testHandle, cred.Address(), nil)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignReencryption(t *testing.T) {
	require := require.New(t)

	cred := newTestSigner(t)
	other := newTestSigner(t)
	svc := eip712.NewService(nil)
	ctx := context.Background()

	req, err := svc.SignReencryption(ctx, cred, testContract, testHandle, cred.Address(), other.Address(), nil)
	require.NoError(err)
	require.Equal(eip712.ReencryptionRequestType, req.Message.PrimaryType())
	require.Equal(other.Address(), *req.Message.ToAddress)

	recovered, err := eip712.VerifyRequest(req)
	require.NoError(err)
	require.Equal(cred.Address(), recovered)

	_, err = svc.SignReencryption(ctx, cred, testContract, testHandle, other.Address(), cred.Address(), nil)
	require.ErrorIs(err, eip712.ErrSignerMismatch)
}

func TestRecoverAddressRecoveryIDs(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)
	hash := crypto.Keccak256Hash([]byte("fhevm"))
	sig, err := crypto.Sign(hash.Bytes(), key)
	require.NoError(err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	got, err := eip712.RecoverAddress(hash, sig)
	require.NoError(err)
	require.Equal(want, got)

	shifted := append([]byte(nil), sig...)
	shifted[crypto.RecoveryIDOffset] += 27
	got, err = eip712.RecoverAddress(hash, shifted)
	require.NoError(err)
	require.Equal(want, got)

	shifted[crypto.RecoveryIDOffset] = 5
	_, err = eip712.RecoverAddress(hash, shifted)
	require.ErrorIs(err, eip712.ErrInvalidSignature)
}

func TestMonotonicNonce(t *testing.T) {
	require := require.New(t)

	n := eip712.NewMonotonicNonce()
	prev := n.Next()
	for i := 0; i < 1000; i++ {
		next := n.Next()
		require.Equal(1, next.Cmp(prev))
		prev = next
	}
}

// shortSigner truncates the signature of the wrapped credential
type shortSigner struct {
	*signer.LocalSigner
}

func (s shortSigner) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	sig, err := s.LocalSigner.SignTypedData(ctx, data)
	if err != nil {
		return nil, err
	}
	return sig[:10], nil
}
