package concurrency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
)

// KeyedMutex serializes work per key. Entries are dropped when no goroutine holds or waits
// for the key.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the lock for key and returns the function that releases it.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Tracker counts in-flight operations on a handle and lets Close wait for them.
type Tracker struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Enter registers an operation. It fails with ErrStoreClosed once Close has been called.
func (t *Tracker) Enter() (leave func(), err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, apperrors.ErrStoreClosed
	}
	t.wg.Add(1)
	return t.wg.Done, nil
}

// Close rejects new operations and waits for running ones, or for ctx. It reports whether
// this call performed the close.
func (t *Tracker) Close(ctx context.Context) (bool, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false, nil
	}
	t.closed = true
	t.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return true, nil
	case <-ctx.Done():
		return true, fmt.Errorf("waiting for in-flight operations: %w", ctx.Err())
	}
}

func (t *Tracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Bounded runs fn with a deadline of d. fn runs on its own goroutine so that blocking calls
// which ignore ctx still return control to the caller; a late fn keeps running to completion,
// so anything it holds must be released from inside fn.
// Exceeding d is reported as ErrTimeout, parent cancellation as the context error.
func Bounded(ctx context.Context, d time.Duration, op string, fn func(ctx context.Context) error) error {
	_, err := BoundedResult(ctx, d, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, nil)
	return err
}

// BoundedResult is Bounded for a function producing a value. The value only reaches the caller
// through the return; one produced after the deadline is handed to discard instead.
func BoundedResult[T any](ctx context.Context, d time.Duration, op string, fn func(ctx context.Context) (T, error), discard func(T)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		cancel()
		if errors.Is(r.err, context.DeadlineExceeded) {
			return zero, timeoutError(op, d)
		}
		return r.value, r.err
	case <-ctx.Done():
		err := ctx.Err()
		go func() {
			r := <-done
			cancel()
			if r.err == nil && discard != nil {
				discard(r.value)
			}
		}()
		if errors.Is(err, context.DeadlineExceeded) {
			return zero, timeoutError(op, d)
		}
		return zero, err
	}
}

func timeoutError(op string, d time.Duration) error {
	return fmt.Errorf("%s after %s: %w", op, d, apperrors.ErrTimeout)
}
