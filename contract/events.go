// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/luxfi/log"
)

// MaxBlocksPerRequest bounds the block range of a single eth_getLogs request
const MaxBlocksPerRequest = 2000

// Event is a decoded contract log.
type Event struct {
	Name   string
	Fields map[string]interface{}
	Log    types.Log
}

// QueryEvents returns the named events emitted in [from, to]. filters match
// the event's indexed arguments in order; a nil entry matches anything. A nil
// from starts at genesis and a nil to ends at the latest block.
func (b *Bridge) QueryEvents(
	ctx context.Context,
	name string,
	filters [][]interface{},
	from *big.Int,
	to *big.Int,
) ([]Event, error) {
	topics, err := b.topics(name, filters)
	if err != nil {
		return nil, err
	}

	start := new(big.Int)
	if from != nil {
		start.Set(from)
	}
	end := to
	if end == nil {
		header, err := b.backend.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest block: %w", err)
		}
		end = header.Number
	}

	var events []Event
	step := big.NewInt(MaxBlocksPerRequest)
	for lo := start; lo.Cmp(end) <= 0; lo = new(big.Int).Add(lo, step) {
		hi := new(big.Int).Add(lo, big.NewInt(MaxBlocksPerRequest-1))
		if hi.Cmp(end) > 0 {
			hi.Set(end)
		}
		logs, err := b.backend.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: lo,
			ToBlock:   hi,
			Addresses: []common.Address{b.address},
			Topics:    topics,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to filter %s logs in [%s, %s]: %w", name, lo, hi, err)
		}
		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			ev, err := b.DecodeLog(name, lg)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

// Subscription delivers events to a callback until Unsubscribe is called or
// the underlying subscription fails.
type Subscription struct {
	id      uint64
	sub     ethereum.Subscription
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool

	errLock sync.Mutex
	err     error
}

// Unsubscribe stops delivery. No callback starts after it returns. It is safe
// to call more than once and from inside the callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.sub.Unsubscribe()
		close(s.quit)
	})
}

// Done is closed when delivery has stopped
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the subscription, if any
func (s *Subscription) Err() error {
	s.errLock.Lock()
	defer s.errLock.Unlock()
	return s.err
}

// Subscribe watches for new occurrences of the named event and passes each
// decoded event to callback on a dedicated goroutine. ctx only bounds
// establishing the subscription; delivery continues until Unsubscribe.
func (b *Bridge) Subscribe(
	ctx context.Context,
	name string,
	filters [][]interface{},
	callback func(Event),
) (*Subscription, error) {
	if _, err := b.topics(name, filters); err != nil {
		return nil, err
	}
	logs, sub, err := b.bound.WatchLogs(&bind.WatchOpts{Context: ctx}, name, filters...)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}

	b.subsLock.Lock()
	b.nextSub++
	s := &Subscription{
		id:   b.nextSub,
		sub:  sub,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	b.subs.Add(s.id)
	b.subsLock.Unlock()

	go b.deliver(s, name, logs, callback)
	return s, nil
}

// ActiveSubscriptions returns the number of subscriptions still delivering
func (b *Bridge) ActiveSubscriptions() int {
	b.subsLock.Lock()
	defer b.subsLock.Unlock()
	return b.subs.Len()
}

func (b *Bridge) deliver(s *Subscription, name string, logs <-chan types.Log, callback func(Event)) {
	defer func() {
		b.subsLock.Lock()
		b.subs.Remove(s.id)
		b.subsLock.Unlock()
		close(s.done)
	}()

	for {
		select {
		case <-s.quit:
			return
		case err, ok := <-s.sub.Err():
			if ok && err != nil {
				s.errLock.Lock()
				s.err = err
				s.errLock.Unlock()
				b.log.Warn("event subscription failed",
					log.String("event", name),
					log.Err(err),
				)
			}
			return
		case lg, ok := <-logs:
			if !ok {
				return
			}
			if lg.Removed {
				continue
			}
			ev, err := b.DecodeLog(name, lg)
			if err != nil {
				b.log.Debug("dropping undecodable log",
					log.String("event", name),
					log.Stringer("tx", lg.TxHash),
					log.Err(err),
				)
				continue
			}
			if s.stopped.Load() {
				return
			}
			callback(ev)
		}
	}
}

func (b *Bridge) topics(name string, filters [][]interface{}) ([][]common.Hash, error) {
	ev, ok := b.abi.Events[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	indexed := 0
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed++
		}
	}
	if len(filters) > indexed {
		return nil, fmt.Errorf("%w: %s has %d indexed arguments, got %d filters", ErrInvalidArgs, name, indexed, len(filters))
	}
	rest, err := abi.MakeTopics(filters...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return append([][]common.Hash{{ev.ID}}, rest...), nil
}

// DecodeLog decodes lg as the named event of this contract.
func (b *Bridge) DecodeLog(name string, lg types.Log) (Event, error) {
	if lg.Address != b.address {
		return Event{}, fmt.Errorf("%w: emitted by %s", ErrForeignLog, lg.Address)
	}
	fields := make(map[string]interface{})
	if err := b.bound.UnpackLogIntoMap(fields, name, lg); err != nil {
		return Event{}, fmt.Errorf("failed to decode %s log: %w", name, err)
	}
	return Event{Name: name, Fields: fields, Log: lg}, nil
}
