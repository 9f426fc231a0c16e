// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies client failures. Codes are stable and grouped by the
// component that raises them.
type ErrorKind int32

const (
	KindInitialization ErrorKind = 1001 + iota
	KindConfiguration
)

const (
	KindTypeMismatch ErrorKind = 2001 + iota
	KindEncryption
)

const (
	KindDecryption ErrorKind = 3001 + iota
	KindSignature
)

const (
	KindContractCall ErrorKind = 4001
)

func (k ErrorKind) String() string {
	switch k {
	case KindInitialization:
		return "initialization"
	case KindConfiguration:
		return "configuration"
	case KindTypeMismatch:
		return "type mismatch"
	case KindEncryption:
		return "encryption"
	case KindDecryption:
		return "decryption"
	case KindSignature:
		return "signature"
	case KindContractCall:
		return "contract call"
	default:
		return "unknown"
	}
}

// Retryable reports whether retrying the same operation without changing
// configuration or inputs can succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindInitialization, KindEncryption, KindDecryption, KindContractCall:
		return true
	default:
		return false
	}
}

var (
	ErrMissingGateway  = errors.New("no gateway URL configured")
	ErrInvalidChainID  = errors.New("chain id must be positive")
	ErrInvalidRPCURL   = errors.New("invalid rpc url")
	ErrInvalidGateway  = errors.New("invalid gateway url")
	ErrNotInitialized  = errors.New("engine instance not initialized")
	ErrNoEngineFactory = errors.New("no engine factory")
	ErrMissingHandle   = errors.New("contract address and handle are required")
	ErrMissingSigner   = errors.New("a signing credential is required")
	ErrOutOfRange      = errors.New("value out of range for encrypted type")
	ErrUnsupportedKind = errors.New("unsupported plaintext kind")
)

// Error is returned by every client operation. Message() is suitable for
// showing to end users; Unwrap exposes the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fhevm: %s failed", e.Op)
	}
	return fmt.Sprintf("fhevm: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the human readable part of the error without the package prefix.
func (e *Error) Message() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Err.Error()
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

func IsInitializationError(err error) bool { return IsKind(err, KindInitialization) }
func IsConfigurationError(err error) bool  { return IsKind(err, KindConfiguration) }
func IsTypeMismatchError(err error) bool   { return IsKind(err, KindTypeMismatch) }
func IsEncryptionError(err error) bool     { return IsKind(err, KindEncryption) }
func IsDecryptionError(err error) bool     { return IsKind(err, KindDecryption) }
func IsSignatureError(err error) bool      { return IsKind(err, KindSignature) }
func IsContractCallError(err error) bool   { return IsKind(err, KindContractCall) }
