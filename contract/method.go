// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Kind describes how a remote method is dispatched.
type Kind uint8

const (
	// Read is a view or pure call answered by the node without a transaction
	Read Kind = iota
	// Write sends a transaction and waits for its receipt
	Write
	// ReadHandle is a Read whose single output is a ciphertext handle
	ReadHandle
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	case ReadHandle:
		return "read-handle"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownMethod  = errors.New("method is not declared on this bridge")
	ErrMethodNotInABI = errors.New("method not found in ABI")
	ErrKindMismatch   = errors.New("method kind does not match its ABI")
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrNotPayable     = errors.New("method is not payable")
	ErrNoTransactor   = errors.New("write requires transact options")
	ErrReverted       = errors.New("transaction reverted")
	ErrUnknownEvent   = errors.New("event not found in ABI")
	ErrBadHandle      = errors.New("method did not return a handle")
	ErrForeignLog     = errors.New("log was not emitted by this contract")
)

// Method declares one remote operation a Bridge may invoke.
type Method struct {
	Name string
	Kind Kind
}

// Invocation is a call of a declared method with concrete arguments.
type Invocation struct {
	Method string
	Args   []interface{}
}

// Invoke is shorthand for building an Invocation
func Invoke(method string, args ...interface{}) Invocation {
	return Invocation{Method: method, Args: args}
}

type boundMethod struct {
	Method
	abi abi.Method
}

func bindMethod(parsed abi.ABI, m Method) (boundMethod, error) {
	am, ok := parsed.Methods[m.Name]
	if !ok {
		return boundMethod{}, fmt.Errorf("%w: %s", ErrMethodNotInABI, m.Name)
	}
	switch m.Kind {
	case Read:
		if !am.IsConstant() {
			return boundMethod{}, fmt.Errorf("%w: %s is %s, declared %s", ErrKindMismatch, m.Name, am.StateMutability, m.Kind)
		}
	case ReadHandle:
		if !am.IsConstant() {
			return boundMethod{}, fmt.Errorf("%w: %s is %s, declared %s", ErrKindMismatch, m.Name, am.StateMutability, m.Kind)
		}
		if len(am.Outputs) != 1 || !isHandleType(am.Outputs[0].Type) {
			return boundMethod{}, fmt.Errorf("%w: %s must return a single bytes32 or uint256", ErrKindMismatch, m.Name)
		}
	case Write:
		if am.IsConstant() {
			return boundMethod{}, fmt.Errorf("%w: %s is %s, declared %s", ErrKindMismatch, m.Name, am.StateMutability, m.Kind)
		}
	default:
		return boundMethod{}, fmt.Errorf("%w: unknown kind %d", ErrKindMismatch, m.Kind)
	}
	return boundMethod{Method: m, abi: am}, nil
}

func isHandleType(t abi.Type) bool {
	switch t.T {
	case abi.FixedBytesTy:
		return t.Size == 32
	case abi.UintTy:
		return t.Size == 256
	default:
		return false
	}
}

// validate packs args against the method inputs so malformed invocations
// fail before anything is sent.
func (m boundMethod) validate(args []interface{}) error {
	if _, err := m.abi.Inputs.Pack(args...); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrInvalidArgs, m.Name, err)
	}
	return nil
}
