// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/luxfi/log"

	"github.com/luxfi/fhevm/crypto/fhe"
)

var _ HandleProvider = (*Client)(nil)

// HandleProvider supplies the engine an operation runs against.
type HandleProvider interface {
	Handle(ctx context.Context) (fhe.Engine, error)
}

// Ciphertext is the encoded form of one plaintext.
type Ciphertext struct {
	Type fhe.EncryptedType `json:"type"`
	Data []byte            `json:"-"`
	// Hex is Data as 0x-prefixed lower-case hex
	Hex string `json:"hex"`
	// Contract is the contract the input was produced for, if any
	Contract *common.Address `json:"contract,omitempty"`

	plaintext interface{}
}

// DebugPlaintext returns the value that was encrypted when the Encryptor was
// built with WithDebugPlaintext. It is never serialized.
func (c *Ciphertext) DebugPlaintext() (interface{}, bool) {
	return c.plaintext, c.plaintext != nil
}

// EncryptRequest is one item of a batch
type EncryptRequest struct {
	Value interface{}
	Type  fhe.EncryptedType
}

// EncryptorOption configures an Encryptor
type EncryptorOption func(*Encryptor)

// WithDebugPlaintext keeps the plaintext on returned ciphertexts. Only for
// development builds.
func WithDebugPlaintext() EncryptorOption {
	return func(e *Encryptor) {
		e.debug = true
	}
}

// WithEncryptorLogger sets the logger
func WithEncryptorLogger(l log.Logger) EncryptorOption {
	return func(e *Encryptor) {
		e.log = l
	}
}

// WithEncryptorMetrics sets the metrics
func WithEncryptorMetrics(m *Metrics) EncryptorOption {
	return func(e *Encryptor) {
		e.metrics = m
	}
}

// Encryptor encodes plaintexts into ciphertexts of a declared type.
type Encryptor struct {
	handles HandleProvider
	log     log.Logger
	metrics *Metrics
	debug   bool
}

// NewEncryptor returns an Encryptor that borrows its engine from handles for
// every call.
func NewEncryptor(handles HandleProvider, opts ...EncryptorOption) *Encryptor {
	e := &Encryptor{
		handles: handles,
		log:     log.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encrypt encodes value as a ciphertext of type typ.
//
// Booleans require EBool, 0x-prefixed 20 byte hex strings require EAddress,
// and non-negative integers (any Go integer type, *big.Int or *uint256.Int)
// require one of the unsigned integer types wide enough to hold them. Any
// other combination fails with a TypeMismatch error before the engine is
// touched.
func (e *Encryptor) Encrypt(ctx context.Context, value interface{}, typ fhe.EncryptedType) (*Ciphertext, error) {
	input, err := checkPlaintext(value, typ)
	if err != nil {
		e.metrics.observeEncrypt(typ.String(), err)
		return nil, newError(KindTypeMismatch, "encrypt", err)
	}

	engine, err := e.handles.Handle(ctx)
	if err != nil {
		return nil, err
	}

	data, err := input.encode(engine)
	e.metrics.observeEncrypt(typ.String(), err)
	if err != nil {
		e.log.Debug("engine failed to encrypt",
			log.Stringer("type", typ),
			log.Err(err),
		)
		return nil, newError(KindEncryption, "encrypt", err)
	}

	ct := &Ciphertext{
		Type: typ,
		Data: data,
		Hex:  hexutil.Encode(data),
	}
	if e.debug {
		ct.plaintext = value
	}
	return ct, nil
}

// EncryptInput encrypts value for use as an argument to contract.
func (e *Encryptor) EncryptInput(
	ctx context.Context,
	value interface{},
	typ fhe.EncryptedType,
	contract common.Address,
) (*Ciphertext, error) {
	ct, err := e.Encrypt(ctx, value, typ)
	if err != nil {
		return nil, err
	}
	ct.Contract = &contract
	return ct, nil
}

// EncryptBatch encrypts items one at a time in order. It stops at the first
// failure and returns only that failure.
func (e *Encryptor) EncryptBatch(ctx context.Context, items []EncryptRequest) ([]*Ciphertext, error) {
	results := make([]*Ciphertext, 0, len(items))
	for i, item := range items {
		ct, err := e.Encrypt(ctx, item.Value, item.Type)
		if err != nil {
			e.log.Debug("batch encryption aborted",
				log.Int("index", i),
				log.Int("size", len(items)),
			)
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		results = append(results, ct)
	}
	return results, nil
}

// plaintextInput is a value that has been checked against its declared type
type plaintextInput struct {
	typ     fhe.EncryptedType
	boolean bool
	integer *uint256.Int
	address common.Address
}

func (p plaintextInput) encode(engine fhe.Engine) ([]byte, error) {
	switch p.typ {
	case fhe.EBool:
		return engine.EncryptBool(p.boolean)
	case fhe.EUint8:
		return engine.Encrypt8(uint8(p.integer.Uint64()))
	case fhe.EUint16:
		return engine.Encrypt16(uint16(p.integer.Uint64()))
	case fhe.EUint32:
		return engine.Encrypt32(uint32(p.integer.Uint64()))
	case fhe.EUint64:
		return engine.Encrypt64(p.integer.Uint64())
	case fhe.EUint128:
		return engine.Encrypt128(p.integer)
	case fhe.EUint256:
		return engine.Encrypt256(p.integer)
	case fhe.EAddress:
		return engine.EncryptAddress(p.address)
	default:
		return nil, fmt.Errorf("%w: %d", fhe.ErrUnknownType, uint8(p.typ))
	}
}

func checkPlaintext(value interface{}, typ fhe.EncryptedType) (plaintextInput, error) {
	if !typ.Valid() {
		return plaintextInput{}, fmt.Errorf("%w: %d", fhe.ErrUnknownType, uint8(typ))
	}
	in := plaintextInput{typ: typ}

	switch v := value.(type) {
	case bool:
		if typ != fhe.EBool {
			return in, fmt.Errorf("boolean values must use %s, got %s", fhe.EBool, typ)
		}
		in.boolean = v
		return in, nil

	case string:
		if !strings.HasPrefix(v, "0x") && !strings.HasPrefix(v, "0X") {
			return in, fmt.Errorf("%w: string %q is not 0x-prefixed", ErrUnsupportedKind, v)
		}
		if typ != fhe.EAddress {
			return in, fmt.Errorf("address values must use %s, got %s", fhe.EAddress, typ)
		}
		if !common.IsHexAddress(v) {
			return in, fmt.Errorf("%q is not a 20 byte hex address", v)
		}
		in.address = common.HexToAddress(v)
		return in, nil

	case common.Address:
		if typ != fhe.EAddress {
			return in, fmt.Errorf("address values must use %s, got %s", fhe.EAddress, typ)
		}
		in.address = v
		return in, nil
	}

	n, ok, err := toUint256(value)
	if !ok {
		return in, fmt.Errorf("%w: %T", ErrUnsupportedKind, value)
	}
	if !typ.IsInteger() {
		return in, fmt.Errorf("numeric values must use an unsigned integer type, got %s", typ)
	}
	if err != nil {
		return in, err
	}
	if n.BitLen() > typ.BitSize() {
		return in, fmt.Errorf("%w: %s does not fit in %s", ErrOutOfRange, n.Dec(), typ)
	}
	in.integer = n
	return in, nil
}

// toUint256 converts the supported numeric kinds. ok is false when value is
// not numeric at all; err is set when it is numeric but not representable.
func toUint256(value interface{}) (n *uint256.Int, ok bool, err error) {
	signed := func(i int64) (*uint256.Int, bool, error) {
		if i < 0 {
			return nil, true, fmt.Errorf("%w: negative value %d", ErrOutOfRange, i)
		}
		return uint256.NewInt(uint64(i)), true, nil
	}

	switch v := value.(type) {
	case int:
		return signed(int64(v))
	case int8:
		return signed(int64(v))
	case int16:
		return signed(int64(v))
	case int32:
		return signed(int64(v))
	case int64:
		return signed(v)
	case uint:
		return uint256.NewInt(uint64(v)), true, nil
	case uint8:
		return uint256.NewInt(uint64(v)), true, nil
	case uint16:
		return uint256.NewInt(uint64(v)), true, nil
	case uint32:
		return uint256.NewInt(uint64(v)), true, nil
	case uint64:
		return uint256.NewInt(v), true, nil
	case *big.Int:
		if v == nil {
			return nil, false, nil
		}
		if v.Sign() < 0 {
			return nil, true, fmt.Errorf("%w: negative value %s", ErrOutOfRange, v)
		}
		z, overflow := uint256.FromBig(v)
		if overflow {
			return nil, true, fmt.Errorf("%w: %s exceeds 256 bits", ErrOutOfRange, v)
		}
		return z, true, nil
	case *uint256.Int:
		if v == nil {
			return nil, false, nil
		}
		return new(uint256.Int).Set(v), true, nil
	default:
		return nil, false, nil
	}
}
