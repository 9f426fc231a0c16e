// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract is a typed bridge to plain, non-encrypted contract calls
// and event queries. Every remote operation is declared up front as a Method
// and checked against the contract ABI when the Bridge is built.
package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/fhevm"
)

// Backend is the node connection a Bridge needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// CallOptions adjusts a single Call. TransactOpts is required for writes and
// ignored for reads.
type CallOptions struct {
	Value        *big.Int
	GasLimit     uint64
	TransactOpts *bind.TransactOpts
}

// CallResult is the outcome of Call. Success is false exactly when Error is
// set; a successful write always carries TxHash and Receipt.
type CallResult struct {
	Success bool
	TxHash  common.Hash
	Data    []interface{}
	Receipt *types.Receipt
	Error   error
}

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the logger
func WithLogger(l log.Logger) Option {
	return func(b *Bridge) {
		b.log = l
	}
}

// Bridge dispatches declared methods against one deployed contract.
type Bridge struct {
	address common.Address
	abi     abi.ABI
	backend Backend
	bound   *bind.BoundContract
	methods map[string]boundMethod
	log     log.Logger

	subsLock sync.Mutex
	subs     set.Set[uint64]
	nextSub  uint64
}

// New binds methods against the contract at address. It fails if any method
// is missing from the ABI or declared with the wrong kind.
func New(address common.Address, parsed abi.ABI, backend Backend, methods []Method, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		address: address,
		abi:     parsed,
		backend: backend,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
		methods: make(map[string]boundMethod, len(methods)),
		log:     log.NewNoOpLogger(),
		subs:    set.NewSet[uint64](0),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, m := range methods {
		bm, err := bindMethod(parsed, m)
		if err != nil {
			return nil, err
		}
		b.methods[m.Name] = bm
	}
	return b, nil
}

// NewFromJSON parses abiJSON and calls New
func NewFromJSON(address common.Address, abiJSON string, backend Backend, methods []Method, opts ...Option) (*Bridge, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return New(address, parsed, backend, methods, opts...)
}

func (b *Bridge) Address() common.Address {
	return b.address
}

func (b *Bridge) ABI() abi.ABI {
	return b.abi
}

// Call invokes a declared method. It never returns an error directly:
// failures of any kind, including reverts, are reported in the result.
func (b *Bridge) Call(ctx context.Context, inv Invocation, opts CallOptions) CallResult {
	res, err := b.call(ctx, inv, opts)
	if err != nil {
		b.log.Debug("contract call failed",
			log.String("method", inv.Method),
			log.Stringer("contract", b.address),
			log.Err(err),
		)
		res.Success = false
		res.Error = &fhevm.Error{Kind: fhevm.KindContractCall, Op: inv.Method, Err: err}
		return res
	}
	res.Success = true
	return res
}

func (b *Bridge) call(ctx context.Context, inv Invocation, opts CallOptions) (CallResult, error) {
	m, err := b.lookup(inv)
	if err != nil {
		return CallResult{}, err
	}
	if m.Kind != Write {
		data, err := b.read(ctx, m, inv.Args)
		return CallResult{Data: data}, err
	}

	if opts.TransactOpts == nil {
		return CallResult{}, ErrNoTransactor
	}
	if opts.Value != nil && opts.Value.Sign() > 0 && !m.abi.IsPayable() {
		return CallResult{}, fmt.Errorf("%w: %s", ErrNotPayable, m.Name)
	}
	txOpts := *opts.TransactOpts
	txOpts.Context = ctx
	if opts.Value != nil {
		txOpts.Value = opts.Value
	}
	if opts.GasLimit != 0 {
		txOpts.GasLimit = opts.GasLimit
	}

	tx, err := b.bound.Transact(&txOpts, m.Name, inv.Args...)
	if err != nil {
		return CallResult{}, err
	}
	res := CallResult{TxHash: tx.Hash()}

	receipt, err := bind.WaitMined(ctx, b.backend, tx)
	if err != nil {
		return res, fmt.Errorf("failed to confirm %s: %w", tx.Hash(), err)
	}
	res.Receipt = receipt
	if receipt.Status != types.ReceiptStatusSuccessful {
		return res, fmt.Errorf("%w: %s", ErrReverted, tx.Hash())
	}

	b.log.Debug("transaction confirmed",
		log.String("method", m.Name),
		log.Stringer("tx", tx.Hash()),
		log.Stringer("block", receipt.BlockNumber),
	)
	return res, nil
}

// ReadHandle calls a ReadHandle method and returns the ciphertext handle.
// Unlike Call, failures are returned as errors.
func (b *Bridge) ReadHandle(ctx context.Context, inv Invocation) (common.Hash, error) {
	handle, err := b.readHandle(ctx, inv)
	if err != nil {
		return common.Hash{}, &fhevm.Error{Kind: fhevm.KindContractCall, Op: inv.Method, Err: err}
	}
	return handle, nil
}

func (b *Bridge) readHandle(ctx context.Context, inv Invocation) (common.Hash, error) {
	m, err := b.lookup(inv)
	if err != nil {
		return common.Hash{}, err
	}
	if m.Kind != ReadHandle {
		return common.Hash{}, fmt.Errorf("%w: %s is declared %s", ErrKindMismatch, m.Name, m.Kind)
	}
	out, err := b.read(ctx, m, inv.Args)
	if err != nil {
		return common.Hash{}, err
	}
	if len(out) != 1 {
		return common.Hash{}, fmt.Errorf("%w: %d outputs", ErrBadHandle, len(out))
	}
	switch v := out[0].(type) {
	case [32]byte:
		return common.Hash(v), nil
	case *big.Int:
		return common.BigToHash(v), nil
	default:
		return common.Hash{}, fmt.Errorf("%w: %T", ErrBadHandle, v)
	}
}

func (b *Bridge) read(ctx context.Context, m boundMethod, args []interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, m.Name, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bridge) lookup(inv Invocation) (boundMethod, error) {
	m, ok := b.methods[inv.Method]
	if !ok {
		return boundMethod{}, fmt.Errorf("%w: %s", ErrUnknownMethod, inv.Method)
	}
	if err := m.validate(inv.Args); err != nil {
		return boundMethod{}, err
	}
	return m, nil
}
