package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTransientConflict is returned after a lock or serialization conflict
// survives every retry attempt. Callers may safely retry the whole request.
var ErrTransientConflict = errors.New("transient conflict, request can be retried")

// SQLSTATE codes treated as retryable. 40001 serialization_failure,
// 40P01 deadlock_detected, 55P03 lock_not_available.
func IsRetryableSQLState(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// IsUniqueViolation reports whether err is a 23505 unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// RetryPolicy bounds the retry loop around transactional work.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy matches the worker-per-request execution model:
// a handful of quick attempts, then surface the conflict.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 25 * time.Millisecond}

// Retry runs fn until it succeeds, fails with a non-retryable error, or
// exhausts the policy. Retryable SQLSTATEs back off exponentially; after
// the final attempt they surface as ErrTransientConflict.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := policy.Backoff
	if backoff <= 0 {
		backoff = 25 * time.Millisecond
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !IsRetryableSQLState(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return errors.Join(ErrTransientConflict, err)
}
