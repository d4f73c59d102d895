package infra

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tsinling0525/flowrun/ctxlog"
	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/plugin"
)

type NullBus struct{}

func (NullBus) Emit(context.Context, string, map[string]any) error { return nil }

// LogBus writes every event to the context logger.
type LogBus struct {
	Level slog.Level
}

func (b LogBus) Emit(ctx context.Context, event string, fields map[string]any) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	ctxlog.FromContext(ctx).LogAttrs(ctx, b.Level, event, attrs...)
	return nil
}

// MultiBus fans events out to every bus.
type MultiBus []plugin.EventBus

func (m MultiBus) Emit(ctx context.Context, event string, fields map[string]any) error {
	var errs []error
	for _, b := range m {
		if err := b.Emit(ctx, event, fields); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MetricsBus turns lifecycle events into prometheus samples.
type MetricsBus struct {
	M *Metrics
}

func (b MetricsBus) Emit(ctx context.Context, event string, fields map[string]any) error {
	nodeType, _ := fields["type"].(string)
	switch event {
	case "node_completed":
		b.M.NodeResults.WithLabelValues(nodeType, string(model.NodeSucceeded)).Inc()
		b.observeDuration(nodeType, fields)
	case "node_failed":
		b.M.NodeResults.WithLabelValues(nodeType, string(model.NodeFailed)).Inc()
		b.observeDuration(nodeType, fields)
	case "node_skipped":
		b.M.NodeResults.WithLabelValues(nodeType, string(model.NodeSkipped)).Inc()
	case "execution_completed":
		status, _ := fields["status"].(string)
		b.M.Executions.WithLabelValues(status).Inc()
		if n, ok := fields["tokens"].(int); ok && n > 0 {
			b.M.Tokens.Add(float64(n))
		}
		if s, ok := fields["cost"].(string); ok {
			if d, err := decimal.NewFromString(s); err == nil && d.IsPositive() {
				b.M.Cost.Add(d.InexactFloat64())
			}
		}
	}
	return nil
}

func (b MetricsBus) observeDuration(nodeType string, fields map[string]any) {
	if ms, ok := fields["duration_ms"].(int64); ok {
		b.M.NodeDuration.WithLabelValues(nodeType).Observe((time.Duration(ms) * time.Millisecond).Seconds())
	}
}

var (
	_ plugin.EventBus = NullBus{}
	_ plugin.EventBus = LogBus{}
	_ plugin.EventBus = MultiBus(nil)
	_ plugin.EventBus = MetricsBus{}
)
