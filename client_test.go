// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhevm/crypto/fhe"
)

// countingFactory builds a new fakeEngine per call, optionally blocking
// until release is closed.
type countingFactory struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
	configs chan fhe.EngineConfig
}

func (f *countingFactory) build(ctx context.Context, cfg fhe.EngineConfig) (fhe.Engine, error) {
	n := f.calls.Add(1)
	if f.configs != nil {
		f.configs <- cfg
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return newFakeEngine(int(n)), nil
}

func TestNewValidatesConfig(t *testing.T) {
	f := &countingFactory{}

	_, err := New(Config{}, f.build)
	require.True(t, IsConfigurationError(err))
	require.ErrorIs(t, err, ErrInvalidChainID)

	_, err = New(testConfig(), nil)
	require.True(t, IsConfigurationError(err))
	require.ErrorIs(t, err, ErrNoEngineFactory)

	c, err := New(testConfig(), f.build)
	require.NoError(t, err)
	require.False(t, c.IsInitialized())
	require.Zero(t, f.calls.Load())
}

func TestConcurrentHandleBootstrapsOnce(t *testing.T) {
	require := require.New(t)

	f := &countingFactory{release: make(chan struct{})}
	c, err := New(testConfig(), f.build)
	require.NoError(err)

	const callers = 16
	var (
		wg      sync.WaitGroup
		engines = make([]fhe.Engine, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engines[i], errs[i] = c.Handle(context.Background())
		}(i)
	}

	// let every caller join the in-flight bootstrap before it completes
	require.Eventually(func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()

	require.Equal(int32(1), f.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(errs[i])
		require.Same(engines[0], engines[i])
	}
	require.True(c.IsInitialized())

	again, err := c.Handle(context.Background())
	require.NoError(err)
	require.Same(engines[0], again)
	require.Equal(int32(1), f.calls.Load())
}

func TestInitializeIsIdempotent(t *testing.T) {
	require := require.New(t)

	f := &countingFactory{}
	c, err := New(testConfig(), f.build)
	require.NoError(err)

	require.NoError(c.Initialize(context.Background()))
	require.NoError(c.Initialize(context.Background()))
	require.Equal(int32(1), f.calls.Load())
}

func TestUpdateConfigInvalidatesHandle(t *testing.T) {
	require := require.New(t)

	f := &countingFactory{}
	c, err := New(testConfig(), f.build)
	require.NoError(err)

	first, err := c.Handle(context.Background())
	require.NoError(err)

	chainID := uint64(5)
	require.NoError(c.UpdateConfig(ConfigUpdate{
		Network: &NetworkUpdate{ChainID: &chainID},
	}))
	require.False(c.IsInitialized())

	cfg := c.Config()
	require.Equal(uint64(5), cfg.Network.ChainID)
	require.Equal("https://rpc.sepolia.example", cfg.Network.RPCURL)

	second, err := c.Handle(context.Background())
	require.NoError(err)
	require.NotSame(first, second)
	require.Equal(2, second.(*fakeEngine).id)
}

func TestUpdateConfigRejectsInvalid(t *testing.T) {
	require := require.New(t)

	f := &countingFactory{}
	c, err := New(testConfig(), f.build)
	require.NoError(err)
	require.NoError(c.Initialize(context.Background()))

	bad := "ftp://rpc.example"
	err = c.UpdateConfig(ConfigUpdate{Network: &NetworkUpdate{RPCURL: &bad}})
	require.True(IsConfigurationError(err))
	require.ErrorIs(err, ErrInvalidRPCURL)

	// the previous configuration and engine are kept
	require.True(c.IsInitialized())
	require.Equal("https://rpc.sepolia.example", c.Config().Network.RPCURL)
}

func TestUpdateDuringBootstrapIsNotInstalled(t *testing.T) {
	require := require.New(t)

	f := &countingFactory{release: make(chan struct{})}
	c, err := New(testConfig(), f.build)
	require.NoError(err)

	done := make(chan fhe.Engine)
	go func() {
		e, _ := c.Handle(context.Background())
		done <- e
	}()
	require.Eventually(func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	name := "renamed"
	require.NoError(c.UpdateConfig(ConfigUpdate{Network: &NetworkUpdate{Name: &name}}))
	close(f.release)

	stale := <-done
	require.NotNil(stale)
	require.False(c.IsInitialized())

	fresh, err := c.Handle(context.Background())
	require.NoError(err)
	require.NotSame(stale, fresh)
	require.Equal(int32(2), f.calls.Load())
}

func TestBootstrapFailureAllowsRetry(t *testing.T) {
	require := require.New(t)

	errKeys := errors.New("keys unavailable")
	f := &countingFactory{err: errKeys}
	c, err := New(testConfig(), f.build)
	require.NoError(err)

	_, err = c.Handle(context.Background())
	require.True(IsInitializationError(err))
	require.ErrorIs(err, errKeys)
	require.False(c.IsInitialized())

	f.err = nil
	e, err := c.Handle(context.Background())
	require.NoError(err)
	require.NotNil(e)
	require.Equal(int32(2), f.calls.Load())
}

func TestCallerCancellationDoesNotAbortBootstrap(t *testing.T) {
	require := require.New(t)

	f := &countingFactory{release: make(chan struct{})}
	c, err := New(testConfig(), f.build)
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error)
	go func() {
		_, err := c.Handle(ctx)
		errs <- err
	}()
	require.Eventually(func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	err = <-errs
	require.True(IsInitializationError(err))
	require.ErrorIs(err, context.Canceled)

	close(f.release)
	require.Eventually(c.IsInitialized, time.Second, time.Millisecond)
	require.Equal(int32(1), f.calls.Load())
}

func TestDispose(t *testing.T) {
	require := require.New(t)

	f := &countingFactory{}
	c, err := New(testConfig(), f.build)
	require.NoError(err)
	require.NoError(c.Initialize(context.Background()))

	c.Dispose()
	c.Dispose()
	require.False(c.IsInitialized())

	require.NoError(c.Initialize(context.Background()))
	require.Equal(int32(2), f.calls.Load())
}

func TestBootstrapUsesResolvedGateway(t *testing.T) {
	tests := []struct {
		name     string
		chainID  uint64
		override string
		want     string
		wantErr  bool
	}{
		{
			name:    "goerli default",
			chainID: 5,
			want:    "https://gateway.goerli.zama.ai",
		},
		{
			name:     "override wins",
			chainID:  11155111,
			override: "https://gw.internal.example",
			want:     "https://gw.internal.example",
		},
		{
			name:    "unknown chain",
			chainID: 1,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			cfg := testConfig()
			cfg.Network.ChainID = tt.chainID
			cfg.Contracts.Gateway = tt.override
			cfg.PublicKey = "0xkey"

			f := &countingFactory{configs: make(chan fhe.EngineConfig, 1)}
			c, err := New(cfg, f.build)
			require.NoError(err)

			err = c.Initialize(context.Background())
			if tt.wantErr {
				require.True(IsConfigurationError(err))
				require.ErrorIs(err, ErrMissingGateway)
				require.Zero(f.calls.Load())
				return
			}
			require.NoError(err)

			got := <-f.configs
			require.Equal(tt.want, got.GatewayURL)
			require.Equal(tt.chainID, got.ChainID)
			require.Equal("0xkey", got.PublicKey)
		})
	}
}

func TestBootstrapMetrics(t *testing.T) {
	require := require.New(t)

	registry := prometheus.NewRegistry()
	m, err := NewMetrics(registry)
	require.NoError(err)

	f := &countingFactory{err: errEngine}
	c, err := New(testConfig(), f.build, WithMetrics(m))
	require.NoError(err)

	require.Error(c.Initialize(context.Background()))
	f.err = nil
	require.NoError(c.Initialize(context.Background()))

	require.InDelta(2, testutil.ToFloat64(m.bootstraps), 0)
	require.InDelta(1, testutil.ToFloat64(m.bootstrapFailures), 0)

	_, err = NewMetrics(registry)
	require.Error(err)
}
