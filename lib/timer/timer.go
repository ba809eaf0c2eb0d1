package timer

import (
	"context"
	"time"

	"churn/lib/tracer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fnDuration = promauto.NewSummaryVec(prometheus.SummaryOpts{
	Name: "churn_step_duration_seconds",
	Help: "Duration of individual steps of a scoring run",
	Objectives: map[float64]float64{
		0.50: 0.05,
		0.90: 0.05,
		0.99: 0.01,
	},
}, []string{"function_name"})

type Timer struct {
	ctx      context.Context
	funcName string
	timer    *prometheus.Timer
	span     tracer.Span
}

// Stop records the elapsed time in the duration summary, ends the span and
// adds an event to the context's trace, if any.
func (t Timer) Stop() {
	t.timer.ObserveDuration()
	t.span.End()
	record(t.ctx, t.funcName, time.Now())
}

// Fail marks the timed span as failed.
func (t Timer) Fail(err error) {
	t.span.RecordError(err)
}

// Annotate attaches a key/value to the timed span.
func (t Timer) Annotate(key string, val int) {
	t.span.SetIntAttribute(key, val)
}

// Start times funcName. The returned context carries the span so nested
// timers become child spans.
func Start(ctx context.Context, funcName string) (context.Context, Timer) {
	span := tracer.StartSpan(ctx, funcName)
	return span.Context(), Timer{
		ctx:      ctx,
		funcName: funcName,
		timer:    prometheus.NewTimer(fnDuration.WithLabelValues(funcName)),
		span:     span,
	}
}
