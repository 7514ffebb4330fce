package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/observability"
	"github.com/aretw0/flashsol/pkg/ports"
)

type metricsMiddleware struct {
	next    ports.KVStore
	metrics *observability.Metrics
}

// NewMetricsMiddleware records latency and errors of every store call.
// A missing key is not counted as an error.
func NewMetricsMiddleware(metrics *observability.Metrics) Middleware {
	return func(next ports.KVStore) ports.KVStore {
		return &metricsMiddleware{next: next, metrics: metrics}
	}
}

func (m *metricsMiddleware) observe(op string, start time.Time, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		err = nil
	}
	m.metrics.ObserveStoreOp(op, time.Since(start), err)
}

func (m *metricsMiddleware) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := m.next.Set(ctx, key, value, ttl)
	m.observe("set", start, err)
	return err
}

func (m *metricsMiddleware) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	v, err := m.next.Get(ctx, key)
	m.observe("get", start, err)
	return v, err
}

func (m *metricsMiddleware) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := m.next.Delete(ctx, key)
	m.observe("delete", start, err)
	return err
}

func (m *metricsMiddleware) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := m.next.SetNX(ctx, key, value, ttl)
	m.observe("setnx", start, err)
	return ok, err
}

func (m *metricsMiddleware) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := m.next.Exists(ctx, key)
	m.observe("exists", start, err)
	return ok, err
}

func (m *metricsMiddleware) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	start := time.Now()
	ok, err := m.next.CompareAndDelete(ctx, key, value)
	m.observe("compare_and_delete", start, err)
	return ok, err
}

func (m *metricsMiddleware) CompareAndExpire(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := m.next.CompareAndExpire(ctx, key, value, ttl)
	m.observe("compare_and_expire", start, err)
	return ok, err
}
