// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/log"
)

// WithRetriesTimeout uses an exponential backoff to run the operation until it
// succeeds, ctx is done, or timeout has elapsed. Errors wrapped with
// backoff.Permanent stop the retries immediately.
func WithRetriesTimeout(
	ctx context.Context,
	logger log.Logger,
	name string,
	operation backoff.Operation,
	timeout time.Duration,
) error {
	expBackOff := backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(timeout),
	)
	notify := func(err error, next time.Duration) {
		logger.Warn("operation failed, retrying",
			log.String("operation", name),
			log.Stringer("next", next),
			log.Err(err),
		)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(expBackOff, ctx), notify)
}
