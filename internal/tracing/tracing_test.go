package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type memoryExporter struct {
	spans []sdktrace.ReadOnlySpan
}

func (m *memoryExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	m.spans = append(m.spans, spans...)
	return nil
}

func (m *memoryExporter) Shutdown(context.Context) error { return nil }

func TestSpans(t *testing.T) {
	exp := &memoryExporter{}
	require.NoError(t, InitWithExporter("guard-test", "dev", exp))

	ctx, parent := Start(t.Context(), "propose", map[string]string{"action.type": "dca_buy"})
	_, child := Start(ctx, "classify", nil)
	child.Set("risk.level", "low")
	child.End(nil)
	parent.End(errors.New("queue full"))

	require.Len(t, exp.spans, 2)
	assert.Equal(t, "classify", exp.spans[0].Name())
	assert.Equal(t, codes.Ok, exp.spans[0].Status().Code)
	assert.Equal(t, exp.spans[1].SpanContext().SpanID(), exp.spans[0].Parent().SpanID())
	assert.Equal(t, "propose", exp.spans[1].Name())
	assert.Equal(t, codes.Error, exp.spans[1].Status().Code)
}

func TestNilSpan(t *testing.T) {
	var s *Span
	assert.NotPanics(t, func() {
		s.Set("k", "v")
		s.With(map[string]string{"k": "v"})
		s.End(nil)
	})
}
