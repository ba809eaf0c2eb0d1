package tracer

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-logr/stdr"
	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type TracerArgs struct {
	OtlpEndpoint string `arg:"--otlp-endpoint,env:OTLP_ENDPOINT" default:"" help:"OpenTelemetry collector address, tracing is disabled when empty"`
}

type Span struct {
	c    context.Context
	span oteltrace.Span
}

func (s Span) Context() context.Context {
	return s.c
}

func (s Span) End() {
	s.span.End()
}

func (s Span) SetIntAttribute(attrName string, val int) {
	s.span.SetAttributes(attribute.Int(attrName, val))
}

// RecordError marks the span as failed.
func (s Span) RecordError(err error) {
	s.span.RecordError(err)
}

func StartSpan(ctx context.Context, name string) Span {
	tracer := otel.Tracer("churn")
	cCtx, span := tracer.Start(ctx, name)
	return Span{
		c:    cCtx,
		span: span,
	}
}

// InitProvider installs a global tracer provider exporting to the OTLP
// collector at endpoint. The returned function flushes and stops it.
func InitProvider(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	traceExporter, err := otlptracegrpc.New(
		ctx, otlptracegrpc.WithInsecure(), otlptracegrpc.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter, err: %v", err)
	}

	idg := xray.NewIDGenerator()

	// A batch job emits a handful of spans, so every trace is sampled.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithIDGenerator(idg))

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(xray.Propagator{})

	// otel reports dropped spans and exporter failures through this logger
	stdrLogger := stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile))
	stdr.SetVerbosity(1)
	otel.SetLogger(stdrLogger)

	return tp.Shutdown, nil
}
