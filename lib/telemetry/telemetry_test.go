package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOtlpConnEnabled(t *testing.T) {
	require.False(t, OtlpConnConfig{}.Enabled())
	require.False(t, OtlpConnConfig{Headers: map[string]string{"a": "b"}}.Enabled())

	grpc := OtlpConnConfig{GrpcEndpoint: "http://localhost:4317", HttpEndpoint: "http://localhost:4318"}
	require.True(t, grpc.Enabled())
	require.Equal(t, "grpc", grpc.transport())
	require.Equal(t, "http://localhost:4317", grpc.endpoint())

	http := OtlpConnConfig{HttpEndpoint: "http://localhost:4318"}
	require.Equal(t, "http", http.transport())
	require.Equal(t, "http://localhost:4318", http.endpoint())
}

func TestSetupWithoutEndpointsIsNoop(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, "rarebird-test", Config{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(ctx))
}

func TestSetupTracesOnly(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, "rarebird-test", Config{
		Otlp: OtlpConfig{
			Traces: OtlpConnConfig{HttpEndpoint: "http://127.0.0.1:1/v1/traces"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)

	// nothing was recorded, so the batcher has nothing to flush
	require.NoError(t, tel.TracerProvider.Shutdown(ctx))
}

func TestPerfSample(t *testing.T) {
	var goroutines, allocated int64 = -1, -1
	gauges := perfGauges{
		cpu:        func(context.Context, float64) {},
		allocated:  func(_ context.Context, v int64) { allocated = v },
		live:       func(context.Context, int64) {},
		goroutines: func(_ context.Context, v int64) { goroutines = v },
	}
	gauges.sample(context.Background())

	require.GreaterOrEqual(t, goroutines, int64(1))
	require.GreaterOrEqual(t, allocated, int64(0))
}
