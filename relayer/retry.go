package relayer

import (
	"context"
	"errors"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/cenkalti/backoff/v4"
)

// retry runs op with exponential backoff until it succeeds, timeout elapses or
// it fails with a contract error. Contract errors are deterministic and are
// never retried.
func retry(ctx context.Context, timeout time.Duration, what string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = timeout
	operation := func() error {
		err := op()
		var contractErr *host.ContractError
		if errors.As(err, &contractErr) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Warnf("%s failed, retrying in %s: %v", what, next, err)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}
