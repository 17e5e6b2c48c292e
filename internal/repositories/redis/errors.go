package redis

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
)

// Error satisfies repositories.RepositoryError for the Redis cart store.
type Error struct {
	op          string
	err         error
	notFound    bool
	unavailable bool
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }

func (e *Error) Unwrap() error { return e.err }

func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict is always false; cart writes are last-writer-wins.
func (e *Error) IsConflict() bool { return false }

func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, redis.Nil) {
		return &Error{op: op, err: err, notFound: true}
	}
	var netErr net.Error
	unavailable := errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed)
	return &Error{op: op, err: err, unavailable: unavailable}
}
