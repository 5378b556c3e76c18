// Package lock serializes work per key. The chat pipeline holds one lock per
// conversation for the whole of a message exchange so that concurrent
// messages on the same conversation cannot interleave their writes.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context was done or the wait budget ran out.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker hands out exclusive locks keyed by an arbitrary string. The returned
// release function is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
