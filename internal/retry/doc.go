// Package retry runs an operation until it succeeds, fails permanently, or
// runs out of attempts, sleeping an exponentially growing interval between
// attempts.
//
// The wait before retry n (1-based) is 2^n times the configured unit, with
// no jitter, so a unit of one second yields 2s, 4s, 8s ...
//
//	err := retry.Do(ctx, retry.Config{Attempts: 3, Unit: time.Second},
//	    func(ctx context.Context, attempt int) error {
//	        return callUpstream(ctx)
//	    },
//	    &retry.Options{ShouldRetry: retry.IsTransportError},
//	)
package retry
