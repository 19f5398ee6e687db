package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(false, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestWithSpanReturnsError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	err := WithSpan(context.Background(), "test", func(context.Context) error { return boom },
		attribute.String("endpoint", "streaming.list"))
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, WithSpan(context.Background(), "ok", func(context.Context) error { return nil }))
}

func TestSetupStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(true, &buf)
	require.NoError(t, err)

	require.NoError(t, WithSpan(context.Background(), "heygen.streaming.list", func(context.Context) error { return nil }))
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "heygen.streaming.list")
}
