package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PoolStatser exposes connection pool counters
type PoolStatser interface {
	PoolStats() sql.DBStats
}

var attrPoolState = attribute.Key("state")

// RegisterPoolMetrics reports db_pool_connections{state=in_use|idle},
// db_pool_connections_max and db_pool_wait_total on every collection. The
// returned registration stops reporting when unregistered.
func RegisterPoolMetrics(meter metric.Meter, pool PoolStatser) (metric.Registration, error) {
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Database connections by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge db_pool_connections: %w", err)
	}
	maxConns, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum open database connections, 0 when unbounded"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge db_pool_connections_max: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connections waited for because the pool was exhausted"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter db_pool_wait_total: %w", err)
	}

	inUse := metric.WithAttributes(attrPoolState.String("in_use"))
	idle := metric.WithAttributes(attrPoolState.String("idle"))
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := pool.PoolStats()
		o.ObserveInt64(conns, int64(s.InUse), inUse)
		o.ObserveInt64(conns, int64(s.Idle), idle)
		o.ObserveInt64(maxConns, int64(s.MaxOpenConnections))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, conns, maxConns, waits)
}
