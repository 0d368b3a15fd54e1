package match

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/icco/minesduel"
)

const meterName = "github.com/icco/minesduel/match"

type metrics struct {
	created  metric.Int64Counter
	joined   metric.Int64Counter
	started  metric.Int64Counter
	finished metric.Int64Counter
	steps    metric.Int64Counter
}

func newMetrics(log *zap.SugaredLogger) *metrics {
	meter := otel.Meter(meterName)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			log.Warnw("could not create counter", "name", name, zap.Error(err))
		}
		return c
	}

	return &metrics{
		created:  counter("minesduel.matches.created", "Matches created"),
		joined:   counter("minesduel.matches.joined", "Second players seated"),
		started:  counter("minesduel.matches.started", "Matches moved to active, by trigger"),
		finished: counter("minesduel.matches.finished", "Matches finished, by trigger"),
		steps:    counter("minesduel.steps", "Steps logged, by action"),
	}
}

func add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metrics) transition(ctx context.Context, t minesduel.Trigger) {
	attr := attribute.String("trigger", string(t))
	switch t {
	case minesduel.TriggerBothReady, minesduel.TriggerFirstStep:
		add(ctx, m.started, attr)
	case "":
	default:
		add(ctx, m.finished, attr)
	}
}

func actionAttr(a minesduel.Action) attribute.KeyValue {
	return attribute.String("action", string(a))
}
