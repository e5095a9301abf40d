package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type endpointStat struct {
	requests int64
	bytes    int64
}

var (
	errorsMarketplace int64
	errorsPoller      int64
	warnsMarketplace  int64
	warnsPoller       int64
	cyclesSucceeded   int64
	cyclesFailed      int64
	salesRead         int64
	endpoints         sync.Map // map[string]*endpointStat
)

func recordWarn(component string) {
	if strings.Contains(component, "marketplace") {
		atomic.AddInt64(&warnsMarketplace, 1)
	} else if strings.Contains(component, "poller") {
		atomic.AddInt64(&warnsPoller, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "marketplace") {
		atomic.AddInt64(&errorsMarketplace, 1)
	} else if strings.Contains(component, "poller") {
		atomic.AddInt64(&errorsPoller, 1)
	}
}

// IncrementCycle counts a finished poll cycle.
func IncrementCycle(success bool) {
	if success {
		atomic.AddInt64(&cyclesSucceeded, 1)
		return
	}
	atomic.AddInt64(&cyclesFailed, 1)
}

// IncrementSalesRead counts normalized sale records.
func IncrementSalesRead(n int) {
	atomic.AddInt64(&salesRead, int64(n))
}

// RecordEndpointRead counts one marketplace response body of size bytes.
func RecordEndpointRead(endpoint string, size int) {
	v, _ := endpoints.LoadOrStore(endpoint, &endpointStat{})
	es := v.(*endpointStat)
	atomic.AddInt64(&es.requests, 1)
	atomic.AddInt64(&es.bytes, int64(size))
}

// StartReport begins periodic logging of runtime and cycle statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func reportFields() Fields {
	endpointData := map[string]map[string]int64{}
	endpoints.Range(func(k, v any) bool {
		es := v.(*endpointStat)
		endpointData[k.(string)] = map[string]int64{
			"requests": atomic.LoadInt64(&es.requests),
			"bytes":    atomic.LoadInt64(&es.bytes),
		}
		return true
	})

	return Fields{
		"errors_marketplace": atomic.LoadInt64(&errorsMarketplace),
		"errors_poller":      atomic.LoadInt64(&errorsPoller),
		"warns_marketplace":  atomic.LoadInt64(&warnsMarketplace),
		"warns_poller":       atomic.LoadInt64(&warnsPoller),
		"cycles_succeeded":   atomic.LoadInt64(&cyclesSucceeded),
		"cycles_failed":      atomic.LoadInt64(&cyclesFailed),
		"sales_read":         atomic.LoadInt64(&salesRead),
		"goroutines":         runtime.NumGoroutine(),
		"endpoints":          endpointData,
	}
}

func logReport(ctx context.Context, log *Log) {
	fields := reportFields()

	cpuPct := 0.0
	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}
	memoryMB := 0.0
	if memStats, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memoryMB = float64(memStats.Used) / 1024 / 1024
	}
	fields["cpu_percent"] = cpuPct
	fields["memory_mb"] = int64(memoryMB)

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(memoryMB)},
		{MetricName: aws.String("CyclesSucceeded"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["cycles_succeeded"].(int64)))},
		{MetricName: aws.String("CyclesFailed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["cycles_failed"].(int64)))},
		{MetricName: aws.String("SalesRead"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["sales_read"].(int64)))},
		{MetricName: aws.String("ErrorsMarketplace"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_marketplace"].(int64)))},
	}

	for name, stats := range fields["endpoints"].(map[string]map[string]int64) {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("EndpointRequests"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Endpoint"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["requests"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("EndpointBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Endpoint"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
