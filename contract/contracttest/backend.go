// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contracttest provides an in-memory node for exercising contract
// bridges without a chain.
package contracttest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var errShortCall = errors.New("call data shorter than a method selector")

// CallHandler answers a read of method with the given decoded arguments
type CallHandler func(method *abi.Method, args []interface{}) ([]interface{}, error)

// ReceiptHandler returns the logs emitted by a mined transaction
type ReceiptHandler func(method *abi.Method, args []interface{}, tx *types.Transaction) []*types.Log

// Backend answers calls from Outputs or OnCall, mines every sent transaction
// immediately, and serves Logs to filters and subscriptions. The exported
// fields may be set before use and, under Lock, while in use.
type Backend struct {
	ABI abi.ABI

	sync.Mutex
	Outputs       map[string][]interface{}
	OnCall        CallHandler
	OnReceipt     ReceiptHandler
	Err           error
	ReceiptStatus uint64
	Latest        uint64
	Logs          []types.Log

	sent          []*types.Transaction
	receipts      map[common.Hash]*types.Receipt
	queries       []ethereum.FilterQuery
	subscriptions []*Subscription
}

// NewBackend returns a backend for contracts with the given ABI
func NewBackend(parsed abi.ABI) *Backend {
	return &Backend{
		ABI:           parsed,
		Outputs:       make(map[string][]interface{}),
		ReceiptStatus: types.ReceiptStatusSuccessful,
		receipts:      make(map[common.Hash]*types.Receipt),
	}
}

// Sent returns the transactions sent so far
func (b *Backend) Sent() []*types.Transaction {
	b.Lock()
	defer b.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// Queries returns the log filters received so far
func (b *Backend) Queries() []ethereum.FilterQuery {
	b.Lock()
	defer b.Unlock()
	return append([]ethereum.FilterQuery(nil), b.queries...)
}

// Subscriptions returns the log subscriptions opened so far
func (b *Backend) Subscriptions() []*Subscription {
	b.Lock()
	defer b.Unlock()
	return append([]*Subscription(nil), b.subscriptions...)
}

func (*Backend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (*Backend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (b *Backend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.Lock()
	defer b.Unlock()

	if b.Err != nil {
		return nil, b.Err
	}
	m, args, err := b.decodeCall(call.Data)
	if err != nil {
		return nil, err
	}
	out := b.Outputs[m.Name]
	if b.OnCall != nil {
		out, err = b.OnCall(m, args)
		if err != nil {
			return nil, err
		}
	}
	return m.Outputs.Pack(out...)
}

func (b *Backend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	b.Lock()
	defer b.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(b.Latest)}, nil
}

func (b *Backend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.Lock()
	defer b.Unlock()
	return uint64(len(b.sent)), nil
}

func (*Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (*Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (*Backend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.Lock()
	defer b.Unlock()

	if b.Err != nil {
		return b.Err
	}
	m, args, err := b.decodeCall(tx.Data())
	if err != nil {
		return err
	}

	b.sent = append(b.sent, tx)
	b.Latest++
	receipt := &types.Receipt{
		Status:      b.ReceiptStatus,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.Latest),
	}
	if b.OnReceipt != nil && b.ReceiptStatus == types.ReceiptStatusSuccessful {
		for _, lg := range b.OnReceipt(m, args, tx) {
			if lg.Address == (common.Address{}) && tx.To() != nil {
				lg.Address = *tx.To()
			}
			lg.TxHash = tx.Hash()
			lg.BlockNumber = b.Latest
			receipt.Logs = append(receipt.Logs, lg)
			b.Logs = append(b.Logs, *lg)
		}
	}
	b.receipts[tx.Hash()] = receipt
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.Lock()
	defer b.Unlock()

	if r, ok := b.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (b *Backend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.Lock()
	defer b.Unlock()

	if b.Err != nil {
		return nil, b.Err
	}
	b.queries = append(b.queries, q)
	var out []types.Log
	for _, lg := range b.Logs {
		if q.FromBlock != nil && lg.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && lg.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if !matchTopics(lg.Topics, q.Topics) {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

func (b *Backend) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	b.Lock()
	defer b.Unlock()

	if b.Err != nil {
		return nil, b.Err
	}
	sub := &Subscription{
		logs: ch,
		errs: make(chan error, 1),
	}
	b.subscriptions = append(b.subscriptions, sub)
	return sub, nil
}

func (b *Backend) decodeCall(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errShortCall
	}
	m, err := b.ABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return m, args, nil
}

func matchTopics(have []common.Hash, want [][]common.Hash) bool {
	for i, options := range want {
		if len(options) == 0 {
			continue
		}
		if i >= len(have) {
			return false
		}
		found := false
		for _, o := range options {
			if o == have[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Subscription is a log subscription opened on a Backend
type Subscription struct {
	logs chan<- types.Log
	errs chan error
	once sync.Once
}

// Send delivers lg to the subscriber
func (s *Subscription) Send(lg types.Log) {
	s.logs <- lg
}

// Fail ends the subscription with err
func (s *Subscription) Fail(err error) {
	s.errs <- err
}

func (s *Subscription) Err() <-chan error {
	return s.errs
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { close(s.errs) })
}
