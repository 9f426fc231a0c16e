// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhevm"
	"github.com/luxfi/fhevm/contract/contracttest"
)

const counterABI = `[
	{"type":"function","name":"count","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"increment","stateMutability":"nonpayable","inputs":[{"name":"by","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"event","name":"Incremented","anonymous":false,"inputs":[
		{"name":"by","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]}
]`

var (
	testAddress = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	testChainID = big.NewInt(1337)

	errNode = errors.New("node unavailable")
)

var counterMethods = []Method{
	{Name: "count", Kind: Read},
	{Name: "balanceOf", Kind: ReadHandle},
	{Name: "increment", Kind: Write},
	{Name: "deposit", Kind: Write},
}

func parseCounterABI(t *testing.T) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(counterABI))
	require.NoError(t, err)
	return parsed
}

func incrementedLog(t *testing.T, parsed abi.ABI, block uint64, by common.Address, amount int64) types.Log {
	ev := parsed.Events["Incremented"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(amount))
	require.NoError(t, err)
	return types.Log{
		Address:     testAddress,
		Topics:      []common.Hash{ev.ID, common.BytesToHash(by.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block))),
	}
}

func newFakeBackend(t *testing.T) *contracttest.Backend {
	return contracttest.NewBackend(parseCounterABI(t))
}

func newTestBridge(t *testing.T, backend *contracttest.Backend) *Bridge {
	b, err := New(testAddress, parseCounterABI(t), backend, counterMethods)
	require.NoError(t, err)
	return b
}

func newTransactOpts(t *testing.T) *bind.TransactOpts {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(key, testChainID)
	require.NoError(t, err)
	return opts
}

func TestNewValidatesMethods(t *testing.T) {
	parsed := parseCounterABI(t)
	backend := newFakeBackend(t)

	tests := []struct {
		name    string
		methods []Method
		want    error
	}{
		{name: "valid", methods: counterMethods},
		{name: "missing", methods: []Method{{Name: "reset", Kind: Write}}, want: ErrMethodNotInABI},
		{name: "write declared read", methods: []Method{{Name: "increment", Kind: Read}}, want: ErrKindMismatch},
		{name: "read declared write", methods: []Method{{Name: "count", Kind: Write}}, want: ErrKindMismatch},
		{name: "handle with wrong output", methods: []Method{{Name: "deposit", Kind: ReadHandle}}, want: ErrKindMismatch},
		{name: "unknown kind", methods: []Method{{Name: "count", Kind: Kind(9)}}, want: ErrKindMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(testAddress, parsed, backend, tt.methods)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := NewFromJSON(testAddress, "not json", backend, nil)
	require.Error(t, err)
}

func TestCallRead(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend(t)
	backend.Outputs["count"] = []interface{}{big.NewInt(41)}
	b := newTestBridge(t, backend)

	res := b.Call(context.Background(), Invoke("count"), CallOptions{})
	require.True(res.Success)
	require.NoError(res.Error)
	require.Len(res.Data, 1)
	require.Equal(int64(41), res.Data[0].(*big.Int).Int64())
	require.Equal(common.Hash{}, res.TxHash)
}

func TestCallFailuresBecomeResults(t *testing.T) {
	tests := []struct {
		name  string
		inv   Invocation
		opts  func(*testing.T) CallOptions
		setup func(*contracttest.Backend)
		want  error
	}{
		{
			name: "undeclared method",
			inv:  Invoke("reset"),
			want: ErrUnknownMethod,
		},
		{
			name: "bad arguments",
			inv:  Invoke("increment", "one"),
			want: ErrInvalidArgs,
		},
		{
			name: "missing arguments",
			inv:  Invoke("increment"),
			want: ErrInvalidArgs,
		},
		{
			name: "write without transactor",
			inv:  Invoke("increment", big.NewInt(1)),
			want: ErrNoTransactor,
		},
		{
			name: "value to nonpayable",
			inv:  Invoke("increment", big.NewInt(1)),
			opts: func(t *testing.T) CallOptions {
				return CallOptions{TransactOpts: newTransactOpts(t), Value: big.NewInt(1)}
			},
			want: ErrNotPayable,
		},
		{
			name:  "node error on read",
			inv:   Invoke("count"),
			setup: func(f *contracttest.Backend) { f.Err = errNode },
			want:  errNode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			backend := newFakeBackend(t)
			if tt.setup != nil {
				tt.setup(backend)
			}
			b := newTestBridge(t, backend)
			var opts CallOptions
			if tt.opts != nil {
				opts = tt.opts(t)
			}

			res := b.Call(context.Background(), tt.inv, opts)
			require.False(res.Success)
			require.Error(res.Error)
			require.ErrorIs(res.Error, tt.want)
			require.True(fhevm.IsContractCallError(res.Error))
			require.Empty(backend.Sent())
		})
	}
}

func TestCallWrite(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend(t)
	b := newTestBridge(t, backend)
	opts := newTransactOpts(t)

	res := b.Call(context.Background(), Invoke("increment", big.NewInt(3)), CallOptions{
		TransactOpts: opts,
		GasLimit:     80_000,
	})
	require.True(res.Success)
	require.NoError(res.Error)
	require.NotEqual(common.Hash{}, res.TxHash)
	require.NotNil(res.Receipt)

	sent := backend.Sent()
	require.Len(sent, 1)
	tx := sent[0]
	require.Equal(res.TxHash, tx.Hash())
	require.Equal(uint64(80_000), tx.Gas())
	require.Equal(testAddress, *tx.To())

	// the caller's options are not modified
	require.Zero(opts.GasLimit)
	require.Nil(opts.Value)

	res = b.Call(context.Background(), Invoke("deposit"), CallOptions{
		TransactOpts: opts,
		Value:        big.NewInt(5),
	})
	require.True(res.Success)
	require.Equal(int64(5), backend.Sent()[1].Value().Int64())
}

func TestCallWriteReverted(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend(t)
	backend.ReceiptStatus = types.ReceiptStatusFailed
	b := newTestBridge(t, backend)

	res := b.Call(context.Background(), Invoke("increment", big.NewInt(1)), CallOptions{
		TransactOpts: newTransactOpts(t),
	})
	require.False(res.Success)
	require.ErrorIs(res.Error, ErrReverted)
	require.NotEqual(common.Hash{}, res.TxHash)
	require.NotNil(res.Receipt)
}

func TestReadHandle(t *testing.T) {
	require := require.New(t)

	handle := [32]byte{0xde, 0xad}
	backend := newFakeBackend(t)
	backend.Outputs["balanceOf"] = []interface{}{handle}
	b := newTestBridge(t, backend)

	got, err := b.ReadHandle(context.Background(), Invoke("balanceOf", common.Address{1}))
	require.NoError(err)
	require.Equal(common.Hash(handle), got)

	_, err = b.ReadHandle(context.Background(), Invoke("count"))
	require.True(fhevm.IsContractCallError(err))
	require.ErrorIs(err, ErrKindMismatch)

	backend.Err = errNode
	_, err = b.ReadHandle(context.Background(), Invoke("balanceOf", common.Address{1}))
	require.True(fhevm.IsContractCallError(err))
	require.ErrorIs(err, errNode)
}

func TestQueryEvents(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend(t)
	alice := common.HexToAddress("0xa11ce")
	bob := common.HexToAddress("0xb0b")
	backend.Logs = []types.Log{
		incrementedLog(t, backend.ABI, 10, alice, 1),
		incrementedLog(t, backend.ABI, 2500, bob, 2),
		incrementedLog(t, backend.ABI, 4100, alice, 3),
	}
	backend.Latest = 5000
	b := newTestBridge(t, backend)

	events, err := b.QueryEvents(context.Background(), "Incremented", nil, nil, nil)
	require.NoError(err)
	require.Len(events, 3)
	require.Len(backend.Queries(), 3)
	require.Equal("Incremented", events[0].Name)
	require.Equal(alice, events[0].Fields["by"])
	require.Equal(int64(1), events[0].Fields["amount"].(*big.Int).Int64())

	events, err = b.QueryEvents(
		context.Background(),
		"Incremented",
		[][]interface{}{{alice}},
		big.NewInt(100),
		big.NewInt(5000),
	)
	require.NoError(err)
	require.Len(events, 1)
	require.Equal(uint64(4100), events[0].Log.BlockNumber)

	_, err = b.QueryEvents(context.Background(), "Decremented", nil, nil, nil)
	require.ErrorIs(err, ErrUnknownEvent)

	_, err = b.QueryEvents(context.Background(), "Incremented", [][]interface{}{{alice}, {bob}}, nil, nil)
	require.ErrorIs(err, ErrInvalidArgs)
}

func TestSubscribe(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend(t)
	b := newTestBridge(t, backend)

	var (
		lock     sync.Mutex
		received []Event
	)
	sub, err := b.Subscribe(context.Background(), "Incremented", nil, func(ev Event) {
		lock.Lock()
		received = append(received, ev)
		lock.Unlock()
	})
	require.NoError(err)
	require.Equal(1, b.ActiveSubscriptions())
	require.Len(backend.Subscriptions(), 1)

	feed := backend.Subscriptions()[0]
	feed.Send(incrementedLog(t, backend.ABI, 1, common.Address{1}, 7))
	require.Eventually(func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(received) == 1
	}, time.Second, time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()
	<-sub.Done()
	require.Zero(b.ActiveSubscriptions())
	require.NoError(sub.Err())

	lock.Lock()
	defer lock.Unlock()
	require.Equal(int64(7), received[0].Fields["amount"].(*big.Int).Int64())
}

func TestSubscribeFailure(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend(t)
	b := newTestBridge(t, backend)

	sub, err := b.Subscribe(context.Background(), "Incremented", nil, func(Event) {})
	require.NoError(err)

	feed := backend.Subscriptions()[0]
	feed.Fail(errNode)
	<-sub.Done()
	require.ErrorIs(sub.Err(), errNode)
	require.Zero(b.ActiveSubscriptions())

	_, err = b.Subscribe(context.Background(), "Missing", nil, func(Event) {})
	require.ErrorIs(err, ErrUnknownEvent)

	backend.Err = errNode
	_, err = b.Subscribe(context.Background(), "Incremented", nil, func(Event) {})
	require.ErrorIs(err, errNode)
}

func TestDecodeLogRejectsForeignLogs(t *testing.T) {
	backend := newFakeBackend(t)
	b := newTestBridge(t, backend)

	lg := incrementedLog(t, backend.ABI, 1, common.Address{1}, 3)
	ev, err := b.DecodeLog("Incremented", lg)
	require.NoError(t, err)
	require.Equal(t, int64(3), ev.Fields["amount"].(*big.Int).Int64())

	lg.Address = common.Address{0xff}
	_, err = b.DecodeLog("Incremented", lg)
	require.ErrorIs(t, err, ErrForeignLog)
}
