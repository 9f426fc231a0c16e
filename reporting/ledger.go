// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reporting is a typed client for the anonymous reporting ledger, a
// confidential contract where whistleblowers file reports and authorized
// investigators track them to resolution.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/luxfi/log"

	"github.com/luxfi/fhevm/contract"
)

var (
	ErrReportNotFound    = errors.New("report does not exist")
	ErrNoSubmissionEvent = errors.New("receipt carries no ReportSubmitted event")
	ErrUnexpectedOutput  = errors.New("unexpected contract output")
	ErrEmptyNotes        = errors.New("investigation notes are empty")
)

var methods = []contract.Method{
	{Name: methodSubmit, Kind: contract.Write},
	{Name: methodAssign, Kind: contract.Write},
	{Name: methodUpdateStatus, Kind: contract.Write},
	{Name: methodAddNotes, Kind: contract.Write},
	{Name: methodAddInvestigator, Kind: contract.Write},
	{Name: methodRemoveInvestigator, Kind: contract.Write},
	{Name: methodReportInfo, Kind: contract.Read},
	{Name: methodStats, Kind: contract.Read},
	{Name: methodIsInvestigator, Kind: contract.Read},
	{Name: methodAuthority, Kind: contract.Read},
}

// Option configures a Ledger
type Option func(*Ledger)

// WithLogger sets the logger
func WithLogger(l log.Logger) Option {
	return func(ledger *Ledger) {
		ledger.log = l
	}
}

// Ledger wraps one deployed reporting contract.
type Ledger struct {
	bridge *contract.Bridge
	log    log.Logger
}

// New binds a Ledger to the contract at address.
func New(address common.Address, backend contract.Backend, opts ...Option) (*Ledger, error) {
	l := &Ledger{log: log.NewNoOpLogger()}
	for _, opt := range opts {
		opt(l)
	}

	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse reporting ABI: %w", err)
	}
	l.bridge, err = contract.New(address, parsed, backend, methods, contract.WithLogger(l.log))
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Address() common.Address {
	return l.bridge.Address()
}

// SubmitReport files a report and returns the id the contract assigned to it.
func (l *Ledger) SubmitReport(ctx context.Context, category Category, anonymous bool, opts *bind.TransactOpts) (Submission, error) {
	if !category.Valid() {
		return Submission{}, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(category))
	}
	res, err := l.transact(ctx, opts, methodSubmit, uint8(category), anonymous)
	if err != nil {
		return Submission{}, err
	}

	id, err := l.submittedID(res.Receipt)
	if err != nil {
		return Submission{}, fmt.Errorf("%w: tx %s", err, res.TxHash)
	}
	l.log.Info("report submitted",
		log.Uint64("reportID", uint64(id)),
		log.Stringer("category", category),
		log.Stringer("txHash", res.TxHash),
	)
	return Submission{ReportID: id, TxHash: res.TxHash}, nil
}

// AssignInvestigator hands a report to an investigator
func (l *Ledger) AssignInvestigator(ctx context.Context, reportID uint32, investigator common.Address, opts *bind.TransactOpts) (common.Hash, error) {
	res, err := l.transact(ctx, opts, methodAssign, reportID, investigator)
	return res.TxHash, err
}

// UpdateStatus moves a report to status
func (l *Ledger) UpdateStatus(ctx context.Context, reportID uint32, status Status, opts *bind.TransactOpts) (common.Hash, error) {
	if !status.Valid() {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrUnknownStatus, uint8(status))
	}
	res, err := l.transact(ctx, opts, methodUpdateStatus, reportID, uint8(status))
	return res.TxHash, err
}

// AddNotes appends investigation notes to a report
func (l *Ledger) AddNotes(ctx context.Context, reportID uint32, notes string, opts *bind.TransactOpts) (common.Hash, error) {
	if notes == "" {
		return common.Hash{}, ErrEmptyNotes
	}
	res, err := l.transact(ctx, opts, methodAddNotes, reportID, notes)
	return res.TxHash, err
}

// AddInvestigator authorizes an investigator. Only the authority may call it.
func (l *Ledger) AddInvestigator(ctx context.Context, investigator common.Address, opts *bind.TransactOpts) (common.Hash, error) {
	res, err := l.transact(ctx, opts, methodAddInvestigator, investigator)
	return res.TxHash, err
}

// RemoveInvestigator revokes an investigator. Only the authority may call it.
func (l *Ledger) RemoveInvestigator(ctx context.Context, investigator common.Address, opts *bind.TransactOpts) (common.Hash, error) {
	res, err := l.transact(ctx, opts, methodRemoveInvestigator, investigator)
	return res.TxHash, err
}

// ReportInfo returns the public state of a report, or ErrReportNotFound.
func (l *Ledger) ReportInfo(ctx context.Context, reportID uint32) (Report, error) {
	out, err := l.read(ctx, methodReportInfo, reportID)
	if err != nil {
		return Report{}, err
	}
	if len(out) != 4 {
		return Report{}, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedOutput, methodReportInfo, len(out))
	}

	exists, err := as[bool](out, 3)
	if err != nil {
		return Report{}, err
	}
	if !exists {
		return Report{}, fmt.Errorf("%w: %d", ErrReportNotFound, reportID)
	}
	status, err := as[uint8](out, 0)
	if err != nil {
		return Report{}, err
	}
	submitted, err := as[*big.Int](out, 1)
	if err != nil {
		return Report{}, err
	}
	investigator, err := as[common.Address](out, 2)
	if err != nil {
		return Report{}, err
	}
	return Report{
		ID:           reportID,
		Status:       Status(status),
		SubmittedAt:  unixTime(submitted),
		Investigator: investigator,
	}, nil
}

// Stats returns the ledger-wide counters
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	out, err := l.read(ctx, methodStats)
	if err != nil {
		return Stats{}, err
	}
	var counts [3]uint32
	for i := range counts {
		counts[i], err = as[uint32](out, i)
		if err != nil {
			return Stats{}, err
		}
	}
	return Stats{
		Total:    counts[0],
		Resolved: counts[1],
		Pending:  counts[2],
	}, nil
}

// IsAuthorizedInvestigator reports whether user may work on reports
func (l *Ledger) IsAuthorizedInvestigator(ctx context.Context, user common.Address) (bool, error) {
	out, err := l.read(ctx, methodIsInvestigator, user)
	if err != nil {
		return false, err
	}
	return as[bool](out, 0)
}

// Authority returns the address that manages investigators
func (l *Ledger) Authority(ctx context.Context) (common.Address, error) {
	out, err := l.read(ctx, methodAuthority)
	if err != nil {
		return common.Address{}, err
	}
	return as[common.Address](out, 0)
}

// Submissions returns the ReportSubmitted events in [from, to]. When ids is
// non-empty only those reports are returned.
func (l *Ledger) Submissions(ctx context.Context, from, to *big.Int, ids ...uint32) ([]ReportSubmitted, error) {
	events, err := l.bridge.QueryEvents(ctx, EventReportSubmitted, idFilter(ids), from, to)
	if err != nil {
		return nil, err
	}
	out := make([]ReportSubmitted, 0, len(events))
	for _, ev := range events {
		s, err := toSubmitted(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// StatusChanges returns the ReportStatusChanged events in [from, to]. When
// ids is non-empty only those reports are returned.
func (l *Ledger) StatusChanges(ctx context.Context, from, to *big.Int, ids ...uint32) ([]ReportStatusChanged, error) {
	events, err := l.bridge.QueryEvents(ctx, EventReportStatusChanged, idFilter(ids), from, to)
	if err != nil {
		return nil, err
	}
	out := make([]ReportStatusChanged, 0, len(events))
	for _, ev := range events {
		c, err := toStatusChanged(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// WatchSubmissions calls fn for every report filed from now on until the
// returned subscription is stopped.
func (l *Ledger) WatchSubmissions(ctx context.Context, fn func(ReportSubmitted)) (*contract.Subscription, error) {
	return l.bridge.Subscribe(ctx, EventReportSubmitted, nil, func(ev contract.Event) {
		s, err := toSubmitted(ev)
		if err != nil {
			l.log.Warn("dropping malformed event", log.String("event", ev.Name), log.Err(err))
			return
		}
		fn(s)
	})
}

// WatchStatusChanges calls fn for every status update of the given reports,
// or of all reports when ids is empty, until the subscription is stopped.
func (l *Ledger) WatchStatusChanges(ctx context.Context, fn func(ReportStatusChanged), ids ...uint32) (*contract.Subscription, error) {
	return l.bridge.Subscribe(ctx, EventReportStatusChanged, idFilter(ids), func(ev contract.Event) {
		c, err := toStatusChanged(ev)
		if err != nil {
			l.log.Warn("dropping malformed event", log.String("event", ev.Name), log.Err(err))
			return
		}
		fn(c)
	})
}

func (l *Ledger) transact(ctx context.Context, opts *bind.TransactOpts, method string, args ...interface{}) (contract.CallResult, error) {
	res := l.bridge.Call(ctx, contract.Invoke(method, args...), contract.CallOptions{TransactOpts: opts})
	if !res.Success {
		return res, res.Error
	}
	return res, nil
}

func (l *Ledger) read(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	res := l.bridge.Call(ctx, contract.Invoke(method, args...), contract.CallOptions{})
	if !res.Success {
		return nil, res.Error
	}
	return res.Data, nil
}

func (l *Ledger) submittedID(receipt *types.Receipt) (uint32, error) {
	if receipt == nil {
		return 0, ErrNoSubmissionEvent
	}
	id := l.bridge.ABI().Events[EventReportSubmitted].ID
	for _, lg := range receipt.Logs {
		if lg.Address != l.bridge.Address() || len(lg.Topics) == 0 || lg.Topics[0] != id {
			continue
		}
		ev, err := l.bridge.DecodeLog(EventReportSubmitted, *lg)
		if err != nil {
			return 0, err
		}
		s, err := toSubmitted(ev)
		if err != nil {
			return 0, err
		}
		return s.ReportID, nil
	}
	return 0, ErrNoSubmissionEvent
}

func toSubmitted(ev contract.Event) (ReportSubmitted, error) {
	id, err := fieldAs[uint32](ev, "reportId")
	if err != nil {
		return ReportSubmitted{}, err
	}
	category, err := fieldAs[uint8](ev, "category")
	if err != nil {
		return ReportSubmitted{}, err
	}
	ts, err := fieldAs[*big.Int](ev, "timestamp")
	if err != nil {
		return ReportSubmitted{}, err
	}
	return ReportSubmitted{
		ReportID:  id,
		Category:  Category(category),
		Timestamp: unixTime(ts),
		Log:       ev.Log,
	}, nil
}

func toStatusChanged(ev contract.Event) (ReportStatusChanged, error) {
	id, err := fieldAs[uint32](ev, "reportId")
	if err != nil {
		return ReportStatusChanged{}, err
	}
	status, err := fieldAs[uint8](ev, "newStatus")
	if err != nil {
		return ReportStatusChanged{}, err
	}
	return ReportStatusChanged{
		ReportID: id,
		Status:   Status(status),
		Log:      ev.Log,
	}, nil
}

func idFilter(ids []uint32) [][]interface{} {
	if len(ids) == 0 {
		return nil
	}
	match := make([]interface{}, len(ids))
	for i, id := range ids {
		match[i] = id
	}
	return [][]interface{}{match}
}

func as[T any](values []interface{}, i int) (T, error) {
	var zero T
	if i >= len(values) {
		return zero, fmt.Errorf("%w: missing value %d", ErrUnexpectedOutput, i)
	}
	v, ok := values[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: value %d is %T, want %T", ErrUnexpectedOutput, i, values[i], zero)
	}
	return v, nil
}

func fieldAs[T any](ev contract.Event, name string) (T, error) {
	var zero T
	v, ok := ev.Fields[name].(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s.%s is %T, want %T", ErrUnexpectedOutput, ev.Name, name, ev.Fields[name], zero)
	}
	return v, nil
}

func unixTime(secs *big.Int) time.Time {
	if secs == nil || !secs.IsInt64() {
		return time.Time{}
	}
	return time.Unix(secs.Int64(), 0).UTC()
}
