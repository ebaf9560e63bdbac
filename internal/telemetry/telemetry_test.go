package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetup_NoneIsNoop(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Options{}, zerolog.Nop())
	require.NoError(t, err)
	require.Nil(t, tp)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, shutdown, err := Setup(context.Background(), Options{Exporter: "stdout", Writer: &buf, ServiceName: "poemd-test"}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "session.generate")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, buf.String(), "session.generate")
	require.Contains(t, buf.String(), "poemd-test")
}

func TestSetup_Errors(t *testing.T) {
	_, _, err := Setup(context.Background(), Options{Exporter: "otlp"}, zerolog.Nop())
	require.Error(t, err)
	_, _, err = Setup(context.Background(), Options{Exporter: "zipkin"}, zerolog.Nop())
	require.Error(t, err)
}
