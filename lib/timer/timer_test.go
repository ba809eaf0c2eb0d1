package timer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTracing(t *testing.T) {
	ctx := WithTracing(context.Background())
	_, t1 := Start(ctx, "load_model")
	t1.Stop()
	_, t2 := Start(ctx, "read_input")
	t2.Stop()

	core, logs := observer.New(zap.DebugLevel)
	assert.NoError(t, LogTracingInfo(ctx, zap.New(core)))
	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "load_model")
	assert.Contains(t, entries[0].Message, "read_input")
}

func TestNoTracing(t *testing.T) {
	ctx := context.Background()
	_, tm := Start(ctx, "noop")
	tm.Stop()

	core, logs := observer.New(zap.DebugLevel)
	assert.NoError(t, LogTracingInfo(ctx, zap.New(core)))
	assert.Empty(t, logs.All())
}
