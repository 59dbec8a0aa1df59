package client

import (
	"context"

	"expensetracker/internal/log"
)

// fallback decides, per call, whether to use the backend or the local copy.
type fallback struct {
	avail  *Availability
	logger *log.Logger
	// localOnly is set for accounts that exist only on this device.
	localOnly bool
}

// withFallback runs online when the backend is reachable and stores its
// result with mirror. A transport failure marks the backend offline and
// retries locally; API errors are returned as they are.
func withFallback[T any](
	ctx context.Context,
	fb fallback,
	op string,
	online func(context.Context) (T, error),
	mirror func(context.Context, T) error,
	offline func(context.Context) (T, error),
) (T, error) {
	if fb.localOnly || !fb.avail.Online(ctx) {
		return offline(ctx)
	}

	v, err := online(ctx)
	if err == nil {
		if mirror != nil {
			if merr := mirror(ctx, v); merr != nil {
				fb.logger.Warn("Failed to mirror result locally",
					log.FieldOperation, op,
					log.FieldError, merr)
			}
		}
		return v, nil
	}
	if !isTransportError(err) {
		return v, err
	}

	fb.logger.Warn("Backend unreachable, using local store",
		log.FieldOperation, op,
		log.FieldError, err)
	fb.avail.MarkOffline()
	return offline(ctx)
}
