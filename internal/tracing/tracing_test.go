package tracing

import (
	"context"
	"testing"

	"github.com/gatereg/registry/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerIsUsableBeforeInit(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "pre-init-span")
	defer span.End()
	assert.NotNil(t, span)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestInitEnabledConfiguresTracerAndShutdown(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{Enabled: true, ServiceName: "gatereg-test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	defer shutdown()

	_, span := Tracer().Start(context.Background(), "post-init-span")
	assert.NotNil(t, span)
	span.End()
}
