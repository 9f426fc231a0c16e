// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/luxfi/fhevm/crypto/fhe"
)

var (
	_ Encoder = PlainEncoder{}
	_ Encoder = UnavailableEncoder{}

	// ErrNoEncoder is returned by every UnavailableEncoder method
	ErrNoEncoder = errors.New("no encoder available; encryption is disabled")
)

// PlainEncoder produces ciphertext-shaped bytes without encrypting anything:
// a one byte type tag followed by the big-endian value at the type's width.
// It exists for local networks and tests that run without the native library.
type PlainEncoder struct{}

// NewPlainEncoder is an EncoderFactory returning a PlainEncoder
func NewPlainEncoder(uint64, string) (Encoder, error) {
	return PlainEncoder{}, nil
}

func (PlainEncoder) EncryptBool(value bool) ([]byte, error) {
	b := byte(0)
	if value {
		b = 1
	}
	return []byte{byte(fhe.EBool), b}, nil
}

func (PlainEncoder) Encrypt8(value uint8) ([]byte, error) {
	return []byte{byte(fhe.EUint8), value}, nil
}

func (PlainEncoder) Encrypt16(value uint16) ([]byte, error) {
	return binary.BigEndian.AppendUint16([]byte{byte(fhe.EUint16)}, value), nil
}

func (PlainEncoder) Encrypt32(value uint32) ([]byte, error) {
	return binary.BigEndian.AppendUint32([]byte{byte(fhe.EUint32)}, value), nil
}

func (PlainEncoder) Encrypt64(value uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64([]byte{byte(fhe.EUint64)}, value), nil
}

func (PlainEncoder) Encrypt128(value *uint256.Int) ([]byte, error) {
	b := value.Bytes32()
	return append([]byte{byte(fhe.EUint128)}, b[16:]...), nil
}

func (PlainEncoder) Encrypt256(value *uint256.Int) ([]byte, error) {
	b := value.Bytes32()
	return append([]byte{byte(fhe.EUint256)}, b[:]...), nil
}

func (PlainEncoder) EncryptAddress(value common.Address) ([]byte, error) {
	return append([]byte{byte(fhe.EAddress)}, value.Bytes()...), nil
}

// UnavailableEncoder refuses every encryption. It lets a decrypt-only client
// run without the native library and without falling back to PlainEncoder.
type UnavailableEncoder struct{}

// NewUnavailableEncoder is an EncoderFactory returning an UnavailableEncoder
func NewUnavailableEncoder(uint64, string) (Encoder, error) {
	return UnavailableEncoder{}, nil
}

func (UnavailableEncoder) EncryptBool(bool) ([]byte, error) { return nil, ErrNoEncoder }
func (UnavailableEncoder) Encrypt8(uint8) ([]byte, error) { return nil, ErrNoEncoder }
func (UnavailableEncoder) Encrypt16(uint16) ([]byte, error) { return nil, ErrNoEncoder }
func (UnavailableEncoder) Encrypt32(uint32) ([]byte, error) { return nil, ErrNoEncoder }
func (UnavailableEncoder) Encrypt64(uint64) ([]byte, error) { return nil, ErrNoEncoder }
func (UnavailableEncoder) Encrypt128(*uint256.Int) ([]byte, error) { return nil, ErrNoEncoder }
func (UnavailableEncoder) Encrypt256(*uint256.Int) ([]byte, error) { return nil, ErrNoEncoder }
func (UnavailableEncoder) EncryptAddress(common.Address) ([]byte, error) { return nil, ErrNoEncoder }
