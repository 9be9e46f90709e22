// Command smsqueue-bench measures enqueue and claim/report throughput of a smsqueue backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/velmie/smsqueue"
	"github.com/velmie/smsqueue/internal/backend"
	"github.com/velmie/smsqueue/internal/config"
)

type mode string

const (
	modeConsume mode = "consume"
	modeEnqueue mode = "enqueue"
)

const (
	defaultRecords      = 10000
	defaultPayloadBytes = 140
	defaultWorkers      = 4
	defaultProducers    = 4
	defaultMinDBConns   = 4
	benchPollInterval   = 10 * time.Millisecond
	benchReceiver       = "+15550000000"
	percentileP50       = 0.50
	percentileP95       = 0.95
	percentileP99       = 0.99
)

var (
	errInvalidMode       = errors.New("smsqueue-bench: invalid mode")
	errRecordsInvalid    = errors.New("smsqueue-bench: records must be positive")
	errProcessedMismatch = errors.New("smsqueue-bench: processed records mismatch")
)

type result struct {
	Mode           mode          `json:"mode"`
	Backend        string        `json:"backend"`
	Records        int           `json:"records"`
	Processed      int64         `json:"processed"`
	Duration       time.Duration `json:"duration"`
	SeedDuration   time.Duration `json:"seed_duration"`
	Throughput     float64       `json:"throughput_msg_per_sec"`
	Workers        int           `json:"workers"`
	Producers      int           `json:"producers"`
	PayloadBytes   int           `json:"payload_bytes"`
	LatencyP50Ms   float64       `json:"latency_p50_ms"`
	LatencyP95Ms   float64       `json:"latency_p95_ms"`
	LatencyP99Ms   float64       `json:"latency_p99_ms"`
	LatencyMaxMs   float64       `json:"latency_max_ms"`
	LatencyMeanMs  float64       `json:"latency_mean_ms"`
	LatencySamples int           `json:"latency_samples"`
	GoTotalAlloc   uint64        `json:"go_total_alloc_bytes"`
	GoNumGC        uint32        `json:"go_num_gc"`
}

type benchConfig struct {
	backend   string
	records   int
	payload   string
	workers   int
	producers int
}

func main() {
	var (
		backendName  string
		dsn          string
		table        string
		authTable    string
		runMode      string
		records      int
		payloadBytes int
		workers      int
		producers    int
		jsonOut      bool
	)

	flag.StringVar(&backendName, "backend", config.BackendMemory, "Backend: memory, mysql, postgres or gorm")
	flag.StringVar(&dsn, "dsn", os.Getenv("SMSQUEUE_DSN"), "Database DSN for sql backends")
	flag.StringVar(&table, "table", "sms_queue_bench", "Queue table name (ignored by gorm)")
	flag.StringVar(&authTable, "auth-table", "sms_authorization_bench", "Authorization table name (ignored by gorm)")
	flag.StringVar(&runMode, "mode", string(modeConsume), "Benchmark mode: consume or enqueue")
	flag.IntVar(&records, "records", defaultRecords, "Number of messages")
	flag.IntVar(&payloadBytes, "payload-bytes", defaultPayloadBytes, "Payload size in bytes")
	flag.IntVar(&workers, "workers", defaultWorkers, "Worker goroutines (consume mode)")
	flag.IntVar(&producers, "producers", defaultProducers, "Concurrent producers")
	flag.BoolVar(&jsonOut, "json", false, "Print JSON result")
	flag.Parse()

	benchMode, err := parseMode(runMode)
	if err != nil {
		exitErr(err)
	}
	if records <= 0 {
		exitErr(errRecordsInvalid)
	}

	cfg := config.Default()
	cfg.Backend = backendName
	cfg.DSN = dsn
	cfg.Table = table
	cfg.AuthTable = authTable
	cfg.Migrate = true
	cfg.DBMaxConns = maxInt(defaultMinDBConns, workers+producers)

	ctx := context.Background()
	store, closeStore, err := backend.Open(ctx, cfg, smsqueue.NopLogger{})
	if err != nil {
		exitErr(err)
	}
	defer closeStore()

	bc := benchConfig{
		backend:   backendName,
		records:   records,
		payload:   strings.Repeat("a", payloadBytes),
		workers:   workers,
		producers: producers,
	}

	var res result
	switch benchMode {
	case modeConsume:
		res, err = runConsume(ctx, store, bc)
	case modeEnqueue:
		res, err = runEnqueue(ctx, store, bc)
	}
	if err != nil {
		exitErr(err)
	}

	if jsonOut {
		if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
			exitErr(err)
		}

		return
	}

	fmt.Printf(
		"RESULT mode=%s backend=%s records=%d duration=%s throughput=%.0f/s workers=%d producers=%d payload=%dB p50=%.2fms p99=%.2fms\n",
		res.Mode,
		res.Backend,
		res.Records,
		res.Duration,
		res.Throughput,
		res.Workers,
		res.Producers,
		res.PayloadBytes,
		res.LatencyP50Ms,
		res.LatencyP99Ms,
	)
}

// runConsume seeds records messages, then drains them through a Worker and measures
// claim latency.
func runConsume(ctx context.Context, store smsqueue.Store, cfg benchConfig) (result, error) {
	seedStart := time.Now()
	if _, err := produce(ctx, store, cfg); err != nil {
		return result{}, err
	}
	seedDuration := time.Since(seedStart)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics := &benchMetrics{target: int64(cfg.records), cancel: cancel}
	svc := smsqueue.NewService(store, store, smsqueue.WithMetrics(metrics))
	worker := smsqueue.NewWorker(svc, svc,
		smsqueue.DelivererFunc(func(context.Context, smsqueue.Message) error { return nil }),
		smsqueue.WithWorkers(cfg.workers),
		smsqueue.WithPollInterval(benchPollInterval),
	)

	memStart := readMemStats()
	start := time.Now()
	err := worker.Run(ctx)
	duration := time.Since(start)
	if err != nil && !errors.Is(err, context.Canceled) {
		return result{}, err
	}

	processed := metrics.Processed()
	if processed < int64(cfg.records) {
		return result{}, fmt.Errorf("%w: processed %d records, expected %d", errProcessedMismatch, processed, cfg.records)
	}

	res := newResult(modeConsume, cfg, processed, duration, metrics.claims.Snapshot(), memStart)
	res.SeedDuration = seedDuration

	return res, nil
}

// runEnqueue measures concurrent Enqueue calls.
func runEnqueue(ctx context.Context, store smsqueue.Store, cfg benchConfig) (result, error) {
	memStart := readMemStats()
	start := time.Now()
	latency, err := produce(ctx, store, cfg)
	duration := time.Since(start)
	if err != nil {
		return result{}, err
	}

	return newResult(modeEnqueue, cfg, int64(cfg.records), duration, latency.Snapshot(), memStart), nil
}

func produce(ctx context.Context, store smsqueue.Queue, cfg benchConfig) (*latencyStats, error) {
	producers := maxInt(1, cfg.producers)
	latency := &latencyStats{}

	var (
		next    atomic.Int64
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for next.Add(1) <= int64(cfg.records) {
				start := time.Now()
				if _, err := store.Enqueue(ctx, benchReceiver, cfg.payload); err != nil {
					errOnce.Do(func() { runErr = err })
					return
				}
				latency.Record(time.Since(start))
			}
		}()
	}
	wg.Wait()

	return latency, runErr
}

func newResult(m mode, cfg benchConfig, processed int64, duration time.Duration, snap latencySnapshot, memStart runtime.MemStats) result {
	memEnd := readMemStats()

	return result{
		Mode:           m,
		Backend:        cfg.backend,
		Records:        cfg.records,
		Processed:      processed,
		Duration:       duration,
		Throughput:     float64(processed) / duration.Seconds(),
		Workers:        cfg.workers,
		Producers:      cfg.producers,
		PayloadBytes:   len(cfg.payload),
		LatencyP50Ms:   msFloat(snap.P50),
		LatencyP95Ms:   msFloat(snap.P95),
		LatencyP99Ms:   msFloat(snap.P99),
		LatencyMaxMs:   msFloat(snap.Max),
		LatencyMeanMs:  msFloat(snap.Mean),
		LatencySamples: snap.Count,
		GoTotalAlloc:   memEnd.TotalAlloc - memStart.TotalAlloc,
		GoNumGC:        memEnd.NumGC - memStart.NumGC,
	}
}

type benchMetrics struct {
	smsqueue.NopMetrics

	processed int64
	target    int64
	cancel    func()
	claims    latencyStats
}

func (m *benchMetrics) ObserveClaimDuration(d time.Duration) {
	m.claims.Record(d)
}

func (m *benchMetrics) AddSent(n int) {
	if n == 0 {
		return
	}
	total := atomic.AddInt64(&m.processed, int64(n))
	if m.target > 0 && m.cancel != nil && total >= m.target {
		m.cancel()
	}
}

func (m *benchMetrics) Processed() int64 {
	return atomic.LoadInt64(&m.processed)
}

type latencyStats struct {
	mu      sync.Mutex
	samples []time.Duration
}

func (l *latencyStats) Record(d time.Duration) {
	l.mu.Lock()
	l.samples = append(l.samples, d)
	l.mu.Unlock()
}

func (l *latencyStats) Snapshot() latencySnapshot {
	l.mu.Lock()
	samples := append([]time.Duration(nil), l.samples...)
	l.mu.Unlock()
	if len(samples) == 0 {
		return latencySnapshot{}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	return latencySnapshot{
		P50:   percentile(samples, percentileP50),
		P95:   percentile(samples, percentileP95),
		P99:   percentile(samples, percentileP99),
		Max:   samples[len(samples)-1],
		Mean:  meanDuration(samples),
		Count: len(samples),
	}
}

type latencySnapshot struct {
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(samples)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(samples) {
		idx = len(samples) - 1
	}

	return samples[idx]
}

func meanDuration(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}

	return sum / time.Duration(len(samples))
}

func readMemStats() runtime.MemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return ms
}

func msFloat(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func parseMode(value string) (mode, error) {
	switch mode(value) {
	case modeConsume, modeEnqueue:
		return mode(value), nil
	default:
		return "", fmt.Errorf("%w: %s", errInvalidMode, value)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
