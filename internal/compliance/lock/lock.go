// Package lock serializes mutations of one driver's compliance record.
package lock

import (
	"context"
	"errors"
)

// ErrContention is returned when the lock could not be acquired in time.
var ErrContention = errors.New("lock contention")

// Locker grants exclusive access to a key. The returned func releases it and
// is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
