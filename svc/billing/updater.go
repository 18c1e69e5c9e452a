package billing

import (
	"context"
	"errors"
)

type loadFunc func(ctx context.Context) (*Subscription, error)

// decideFunc computes the patch for the loaded record. Returning ok=false
// means the record is already where it should be (or must not change).
type decideFunc func(ctx context.Context, cur *Subscription) (patch Patch, ok bool, err error)

// updater runs read-decide-write cycles with optimistic concurrency.
// On conflict the record is re-read and the decision recomputed.
type updater struct {
	store   Store
	retries int
}

// apply returns the record before and after the write. after equals before
// when nothing changed.
func (u updater) apply(ctx context.Context, load loadFunc, decide decideFunc) (before, after *Subscription, err error) {
	for attempt := 0; ; attempt++ {
		cur, err := load(ctx)
		if err != nil {
			return nil, nil, err
		}

		patch, ok, err := decide(ctx, cur)
		if err != nil {
			return cur, nil, err
		}
		if !ok || !patch.Changes(cur) {
			return cur, cur, nil
		}

		next, err := u.store.Update(ctx, cur.UserID, patch, &cur.UpdatedAt)
		if err == nil {
			return cur, next, nil
		}
		if !errors.Is(err, ErrConflict) {
			return cur, nil, err
		}
		if attempt >= u.retries {
			return cur, nil, errors.Join(ErrConcurrentUpdate, err)
		}
	}
}
