package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

// DefaultPerfInterval is how often InstrumentPerfStats samples the process.
const DefaultPerfInterval = time.Second * 30

type perfGauges struct {
	cpu        func(context.Context, float64)
	allocated  func(context.Context, int64)
	live       func(context.Context, int64)
	goroutines func(context.Context, int64)
}

func newPerfGauges() perfGauges {
	meter := otel.Meter("rarebird/process")
	cpuGauge, _ := meter.Float64Gauge("process.cpu_usage")
	memoryGauge, _ := meter.Int64Gauge("process.allocated_mb")
	liveObjectsGauge, _ := meter.Int64Gauge("process.live_objects")
	goroutineGauge, _ := meter.Int64Gauge("process.goroutines")

	return perfGauges{
		cpu:        func(ctx context.Context, v float64) { cpuGauge.Record(ctx, v) },
		allocated:  func(ctx context.Context, v int64) { memoryGauge.Record(ctx, v) },
		live:       func(ctx context.Context, v int64) { liveObjectsGauge.Record(ctx, v) },
		goroutines: func(ctx context.Context, v int64) { goroutineGauge.Record(ctx, v) },
	}
}

func (g perfGauges) sample(ctx context.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	cpuUsage, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		slog.DebugContext(ctx, "failed to read cpu usage", "err", err)
	} else if len(cpuUsage) > 0 {
		g.cpu(ctx, cpuUsage[0])
	}

	g.allocated(ctx, int64(memStats.Alloc/1_000_000))
	g.live(ctx, int64(memStats.Mallocs)-int64(memStats.Frees))
	g.goroutines(ctx, int64(runtime.NumGoroutine()))
}

// InstrumentPerfStats samples process gauges every interval until ctx is
// done. A non-positive interval uses DefaultPerfInterval.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPerfInterval
	}
	gauges := newPerfGauges()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				gauges.sample(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
