// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		name      string
		retryable bool
		is        func(error) bool
	}{
		{KindInitialization, "initialization", true, IsInitializationError},
		{KindConfiguration, "configuration", false, IsConfigurationError},
		{KindTypeMismatch, "type mismatch", false, IsTypeMismatchError},
		{KindEncryption, "encryption", true, IsEncryptionError},
		{KindDecryption, "decryption", true, IsDecryptionError},
		{KindSignature, "signature", false, IsSignatureError},
		{KindContractCall, "contract call", true, IsContractCallError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			err := newError(tt.kind, "op", errEngine)
			require.Equal(tt.name, tt.kind.String())
			require.Equal(tt.retryable, tt.kind.Retryable())
			require.True(tt.is(err))
			require.True(tt.is(fmt.Errorf("wrapped: %w", err)))
			require.ErrorIs(err, errEngine)

			kind, ok := KindOf(err)
			require.True(ok)
			require.Equal(tt.kind, kind)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	require := require.New(t)

	err := newError(KindDecryption, "public decrypt", errors.New("not public"))
	require.Equal("fhevm: public decrypt failed: not public", err.Error())
	require.Equal("not public", err.Message())

	bare := &Error{Kind: KindSignature, Op: "sign"}
	require.Equal("fhevm: sign failed", bare.Error())
	require.Equal("signature error", bare.Message())

	_, ok := KindOf(errors.New("plain"))
	require.False(ok)
	require.False(IsDecryptionError(nil))
}

func TestNestedKinds(t *testing.T) {
	require := require.New(t)

	inner := newError(KindConfiguration, "resolve gateway", ErrMissingGateway)
	outer := newError(KindInitialization, "initialize", inner)

	require.True(IsInitializationError(outer))
	require.True(IsConfigurationError(outer))
	require.False(IsDecryptionError(outer))

	kind, ok := KindOf(outer)
	require.True(ok)
	require.Equal(KindInitialization, kind)
}
