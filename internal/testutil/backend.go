package testutil

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrBackendDown is returned by every FailingBackend call.
var ErrBackendDown = errors.New("simulated backend outage")

// FailingBackend is a distributed cache tier that always fails, used to prove
// that cache callers degrade to the local tier.
type FailingBackend struct {
	calls atomic.Int64
}

// Calls returns how many operations were attempted.
func (b *FailingBackend) Calls() int64 {
	return b.calls.Load()
}

func (b *FailingBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.calls.Add(1)
	return nil, ErrBackendDown
}

func (b *FailingBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.calls.Add(1)
	return ErrBackendDown
}

func (b *FailingBackend) Delete(ctx context.Context, key string) (bool, error) {
	b.calls.Add(1)
	return false, ErrBackendDown
}

func (b *FailingBackend) DeletePrefix(ctx context.Context, prefix string) ([]string, error) {
	b.calls.Add(1)
	return nil, ErrBackendDown
}

func (b *FailingBackend) Flush(ctx context.Context) error {
	b.calls.Add(1)
	return ErrBackendDown
}

func (b *FailingBackend) Ping(ctx context.Context) error {
	b.calls.Add(1)
	return ErrBackendDown
}

func (b *FailingBackend) Close() error {
	return nil
}
