// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhe defines the narrow boundary between this client and the external
// homomorphic encryption engine. Nothing in this package performs cryptography;
// it names the ciphertext widths, the engine operations, and the plaintext
// values an engine hands back.
package fhe

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrUnknownType is returned when a type tag is not one of the supported widths
	ErrUnknownType = errors.New("unknown encrypted type")

	// ErrNotPublic is returned by engines when a ciphertext is not marked for public decryption
	ErrNotPublic = errors.New("ciphertext is not publicly decryptable")
)

// EncryptedType represents the type of an encrypted value
type EncryptedType uint8

const (
	EBool EncryptedType = iota
	EUint8
	EUint16
	EUint32
	EUint64
	EUint128
	EUint256
	EAddress
)

// String returns the string representation of the encrypted type
func (t EncryptedType) String() string {
	switch t {
	case EBool:
		return "ebool"
	case EUint8:
		return "euint8"
	case EUint16:
		return "euint16"
	case EUint32:
		return "euint32"
	case EUint64:
		return "euint64"
	case EUint128:
		return "euint128"
	case EUint256:
		return "euint256"
	case EAddress:
		return "eaddress"
	default:
		return "unknown"
	}
}

// BitSize returns the plaintext bit width of the encrypted type
func (t EncryptedType) BitSize() int {
	switch t {
	case EBool:
		return 1
	case EUint8:
		return 8
	case EUint16:
		return 16
	case EUint32:
		return 32
	case EUint64:
		return 64
	case EUint128:
		return 128
	case EUint256:
		return 256
	case EAddress:
		return 160
	default:
		return 0
	}
}

// IsInteger reports whether t is one of the unsigned integer widths
func (t EncryptedType) IsInteger() bool {
	return t >= EUint8 && t <= EUint256
}

// Valid reports whether t is a known type tag
func (t EncryptedType) Valid() bool {
	return t <= EAddress
}

// MarshalText implements encoding.TextMarshaler
func (t EncryptedType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *EncryptedType) UnmarshalText(text []byte) error {
	parsed, err := ParseEncryptedType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseEncryptedType parses the lower-case tag name ("euint8", "ebool", ...)
func ParseEncryptedType(s string) (EncryptedType, error) {
	for t := EBool; t <= EAddress; t++ {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Plaintext is a decrypted value together with the width it was encrypted under.
type Plaintext struct {
	Type  EncryptedType
	value uint256.Int
}

// NewBoolPlaintext wraps a boolean result
func NewBoolPlaintext(b bool) Plaintext {
	p := Plaintext{Type: EBool}
	if b {
		p.value.SetOne()
	}
	return p
}

// NewIntPlaintext wraps an integer result of the given width
func NewIntPlaintext(t EncryptedType, v *uint256.Int) Plaintext {
	p := Plaintext{Type: t}
	if v != nil {
		p.value.Set(v)
	}
	return p
}

// NewAddressPlaintext wraps an address result
func NewAddressPlaintext(addr common.Address) Plaintext {
	p := Plaintext{Type: EAddress}
	p.value.SetBytes(addr.Bytes())
	return p
}

// Bool returns the value as a boolean. Any non-zero value is true.
func (p Plaintext) Bool() bool {
	return !p.value.IsZero()
}

// Uint64 returns the low 64 bits of the value
func (p Plaintext) Uint64() uint64 {
	return p.value.Uint64()
}

// Big returns the value as a new big.Int
func (p Plaintext) Big() *big.Int {
	return p.value.ToBig()
}

// Address returns the low 20 bytes of the value as an address
func (p Plaintext) Address() common.Address {
	b := p.value.Bytes20()
	return common.Address(b)
}

// String renders the value the way it is displayed to users: "true"/"false",
// a decimal integer, or a checksummed address.
func (p Plaintext) String() string {
	switch {
	case p.Type == EBool:
		if p.Bool() {
			return "true"
		}
		return "false"
	case p.Type == EAddress:
		return p.Address().Hex()
	default:
		return p.value.Dec()
	}
}

// ParsePlaintext is the inverse of Plaintext.String for a known type. Integers
// may be given in decimal or 0x-prefixed hex and must fit the type's width.
func ParsePlaintext(t EncryptedType, s string) (Plaintext, error) {
	switch {
	case t == EBool:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1":
			return NewBoolPlaintext(true), nil
		case "false", "0":
			return NewBoolPlaintext(false), nil
		}
		return Plaintext{}, fmt.Errorf("invalid %s value %q", t, s)
	case t == EAddress:
		if !common.IsHexAddress(s) {
			return Plaintext{}, fmt.Errorf("invalid %s value %q", t, s)
		}
		return NewAddressPlaintext(common.HexToAddress(s)), nil
	case t.IsInteger():
		b, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
		if !ok || b.Sign() < 0 {
			return Plaintext{}, fmt.Errorf("invalid %s value %q", t, s)
		}
		v, overflow := uint256.FromBig(b)
		if overflow {
			return Plaintext{}, fmt.Errorf("%s does not fit in %s", s, t)
		}
		if v.BitLen() > t.BitSize() {
			return Plaintext{}, fmt.Errorf("%s does not fit in %s", s, t)
		}
		return NewIntPlaintext(t, v), nil
	default:
		return Plaintext{}, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
}
