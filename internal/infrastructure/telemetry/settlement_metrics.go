package telemetry

import (
	"context"
	"time"

	"github.com/plebmarket/backend/internal/domain/settlement"
	"go.opentelemetry.io/otel/metric"
)

// SettlementMetrics records reconciliation loop activity.
type SettlementMetrics struct {
	events         *Counter
	cursor         *Gauge
	applyDuration  *Histogram
	feedReconnects *Counter
	gatewayCalls   *Counter
	gatewayLatency *Histogram
}

// NewSettlementMetrics creates the settlement instruments on meter.
func NewSettlementMetrics(meter metric.Meter) (*SettlementMetrics, error) {
	events, err := NewCounter(meter, "settlement_events_total", "Settlement feed events by outcome", "{event}")
	if err != nil {
		return nil, err
	}
	cursor, err := NewGauge(meter, "settlement_cursor", "Last committed settle index", "{index}")
	if err != nil {
		return nil, err
	}
	apply, err := NewHistogram(meter, "settlement_apply_duration_seconds", "Time to match and commit one event", "s", ApplyDurationBuckets)
	if err != nil {
		return nil, err
	}
	reconnects, err := NewCounter(meter, "settlement_feed_reconnects_total", "Feed subscriptions re-established", "{reconnect}")
	if err != nil {
		return nil, err
	}
	calls, err := NewCounter(meter, "lightning_gateway_calls_total", "Invoice gateway and resolver calls", "{call}")
	if err != nil {
		return nil, err
	}
	latency, err := NewHistogram(meter, "lightning_gateway_duration_seconds", "Invoice gateway and resolver latency", "s", GatewayDurationBuckets)
	if err != nil {
		return nil, err
	}
	return &SettlementMetrics{
		events:         events,
		cursor:         cursor,
		applyDuration:  apply,
		feedReconnects: reconnects,
		gatewayCalls:   calls,
		gatewayLatency: latency,
	}, nil
}

// RecordEvent counts one processed event.
func (m *SettlementMetrics) RecordEvent(ctx context.Context, outcome settlement.Outcome) {
	m.events.Inc(ctx, AttrOutcome.String(string(outcome)))
}

// RecordCursor publishes the committed cursor.
func (m *SettlementMetrics) RecordCursor(ctx context.Context, index uint64) {
	m.cursor.Record(ctx, int64(index))
}

// RecordApplyDuration records how long one event took.
func (m *SettlementMetrics) RecordApplyDuration(ctx context.Context, d time.Duration) {
	m.applyDuration.RecordDuration(ctx, d)
}

// RecordReconnect counts a feed resubscription.
func (m *SettlementMetrics) RecordReconnect(ctx context.Context) {
	m.feedReconnects.Inc(ctx)
}

// RecordGatewayCall counts and times one outbound Lightning call.
func (m *SettlementMetrics) RecordGatewayCall(ctx context.Context, operation string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayCalls.Inc(ctx, AttrOperation.String(operation), AttrResult.String(result))
	m.gatewayLatency.RecordDuration(ctx, d, AttrOperation.String(operation))
}
