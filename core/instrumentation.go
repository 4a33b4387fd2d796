package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scopeName = "github.com/koscakluka/ema-dialogue/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

type turnMetrics struct {
	outcomes metric.Int64Counter
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

func newTurnMetrics() turnMetrics {
	m := turnMetrics{}

	var err error
	if m.outcomes, err = meter.Int64Counter("ema_dialogue.turn.outcomes",
		metric.WithDescription("Resolved turns by outcome"),
	); err != nil {
		logger.Warn("failed to create turn outcome counter", "error", err)
		m.outcomes = noop.Int64Counter{}
	}

	if m.attempts, err = meter.Int64Counter("ema_dialogue.turn.attempts",
		metric.WithDescription("Listening attempts started"),
	); err != nil {
		logger.Warn("failed to create turn attempt counter", "error", err)
		m.attempts = noop.Int64Counter{}
	}

	if m.duration, err = meter.Float64Histogram("ema_dialogue.turn.duration",
		metric.WithDescription("Time from prompt start to resolution"),
		metric.WithUnit("s"),
	); err != nil {
		logger.Warn("failed to create turn duration histogram", "error", err)
		m.duration = noop.Float64Histogram{}
	}

	return m
}
