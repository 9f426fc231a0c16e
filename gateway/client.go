// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gateway is an HTTP client for the decryption gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/luxfi/log"

	"github.com/luxfi/fhevm/crypto/fhe"
)

const (
	userDecryptPath   = "/v1/decrypt/user"
	publicDecryptPath = "/v1/decrypt/public"
	keysPath          = "/v1/keys"

	// RequestIDHeader carries a per-request uuid for correlation with gateway logs
	RequestIDHeader = "X-Request-ID"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

var errEmptyPublicKey = errors.New("gateway returned an empty public key")

// Error is a non-2xx response from the gateway.
type Error struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway: status %d (request %s)", e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("gateway: status %d: %s (request %s)", e.StatusCode, e.Message, e.RequestID)
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithLogger sets the logger
func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// Client talks to one gateway.
type Client struct {
	baseURL string
	http    *http.Client
	log     log.Logger
}

// New returns a client for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the gateway root
func (c *Client) BaseURL() string {
	return c.baseURL
}

type userDecryptRequest struct {
	ContractAddress common.Address `json:"contractAddress"`
	Handle          common.Hash    `json:"handle"`
	Signature       hexutil.Bytes  `json:"signature"`
}

type publicDecryptRequest struct {
	ContractAddress common.Address `json:"contractAddress"`
	Handle          common.Hash    `json:"handle"`
}

type decryptResponse struct {
	Type  fhe.EncryptedType `json:"type"`
	Value string            `json:"value"`
}

type keysResponse struct {
	PublicKey string `json:"publicKey"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// UserDecrypt submits a signed decryption request.
func (c *Client) UserDecrypt(
	ctx context.Context,
	contract common.Address,
	handle common.Hash,
	signature []byte,
) (fhe.Plaintext, error) {
	var resp decryptResponse
	err := c.do(ctx, http.MethodPost, userDecryptPath, userDecryptRequest{
		ContractAddress: contract,
		Handle:          handle,
		Signature:       signature,
	}, &resp)
	if err != nil {
		return fhe.Plaintext{}, err
	}
	return fhe.ParsePlaintext(resp.Type, resp.Value)
}

// PublicDecrypt decrypts a ciphertext marked public by its contract. A 403
// from the gateway is reported as fhe.ErrNotPublic.
func (c *Client) PublicDecrypt(ctx context.Context, contract common.Address, handle common.Hash) (fhe.Plaintext, error) {
	var resp decryptResponse
	err := c.do(ctx, http.MethodPost, publicDecryptPath, publicDecryptRequest{
		ContractAddress: contract,
		Handle:          handle,
	}, &resp)
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusForbidden {
		return fhe.Plaintext{}, fmt.Errorf("%w: %w", fhe.ErrNotPublic, err)
	}
	if err != nil {
		return fhe.Plaintext{}, err
	}
	return fhe.ParsePlaintext(resp.Type, resp.Value)
}

// PublicKey fetches the network public key
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	var resp keysResponse
	if err := c.do(ctx, http.MethodGet, keysPath, nil, &resp); err != nil {
		return "", err
	}
	if resp.PublicKey == "" {
		return "", errEmptyPublicKey
	}
	return resp.PublicKey, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := &Error{
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var decoded errorResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != "" {
			gwErr.Message = decoded.Error
		} else {
			gwErr.Message = strings.TrimSpace(string(raw))
		}
		c.log.Debug("gateway request failed",
			log.String("path", path),
			log.String("requestID", requestID),
			log.Int("status", resp.StatusCode),
		)
		return gwErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
