package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llamactl/pkg/types"
)

// Defaults applied when corresponding CacheConfig fields are unset.
const (
	defaultInterval      = 2 * time.Second
	defaultDiagnoseEvery = 15
	stopPoll             = 100 * time.Millisecond
	stopJoinTimeout      = 5 * time.Second
)

// Diagnoser runs one crash-diagnosis pass.
type Diagnoser interface {
	Run(ctx context.Context) types.DiagnosisReport
}

// CacheConfig encapsulates tunables for Cache construction.
type CacheConfig struct {
	Reader   *Reader
	Interval time.Duration
	// Diagnoser, when set, runs every DiagnoseEvery samples; critical results
	// are logged but never interrupt sampling.
	Diagnoser     Diagnoser
	DiagnoseEvery int
	Logger        zerolog.Logger
}

// Cache owns the background sampling goroutine and the latest snapshot.
// Get never performs I/O; the whole snapshot is replaced under the lock after
// each cycle so readers always observe a consistent device list.
type Cache struct {
	reader        *Reader
	interval      time.Duration
	diag          Diagnoser
	diagnoseEvery int
	log           zerolog.Logger

	mu   sync.Mutex
	snap types.TelemetrySnapshot

	runMu  sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCache constructs a Cache from CacheConfig, pre-filled with sentinel
// stats for every configured device so Get is serviceable before the first
// sample lands.
func NewCache(cfg CacheConfig) *Cache {
	c := &Cache{
		reader:        cfg.Reader,
		interval:      cfg.Interval,
		diag:          cfg.Diagnoser,
		diagnoseEvery: cfg.DiagnoseEvery,
		log:           cfg.Logger,
	}
	if c.interval <= 0 {
		c.interval = defaultInterval
	}
	if c.diagnoseEvery <= 0 {
		c.diagnoseEvery = defaultDiagnoseEvery
	}
	snap := types.TelemetrySnapshot{}
	for _, d := range cfg.Reader.Devices() {
		snap.Devices = append(snap.Devices, DefaultStats(d))
	}
	c.snap = snap
	return c
}

// Start launches the sampling loop. Calling Start on a running cache is a
// no-op.
func (c *Cache) Start() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.stopCh != nil {
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.run(c.stopCh, c.doneCh)
	c.log.Info().Dur("interval", c.interval).Msg("telemetry sampling started")
}

// Stop signals the loop and joins it with a bounded timeout. Idempotent.
func (c *Cache) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	select {
	case <-c.doneCh:
	case <-time.After(stopJoinTimeout):
		c.log.Warn().Msg("telemetry loop did not stop in time")
	}
	c.stopCh = nil
	c.doneCh = nil
	c.log.Info().Msg("telemetry sampling stopped")
}

// Get returns a copy of the latest snapshot. Never blocks on hardware.
func (c *Cache) Get() types.TelemetrySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSnapshot(c.snap)
}

// ForceUpdate runs one synchronous collection cycle and returns the result.
func (c *Cache) ForceUpdate() types.TelemetrySnapshot {
	c.sample()
	return c.Get()
}

func (c *Cache) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	samples := 0
	for {
		c.sample()
		samples++
		if c.diag != nil && samples%c.diagnoseEvery == 0 {
			c.diagnose()
		}
		// Sleep until the next cycle, polling for stop so shutdown is
		// never delayed by a full interval.
		deadline := time.Now().Add(c.interval)
		for {
			select {
			case <-stopCh:
				return
			case <-time.After(stopPoll):
			}
			if !time.Now().Before(deadline) {
				break
			}
		}
	}
}

// sample replaces the snapshot with a fresh collection. A panicking reader
// degrades to sentinel stats instead of killing the loop.
func (c *Cache) sample() {
	snap := c.safeCollect()
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	samplesTotal.Inc()
	if n := len(snap.Errors); n > 0 {
		sampleErrorsTotal.Add(float64(n))
		c.log.Debug().Strs("errors", snap.Errors).Msg("telemetry sample had errors")
	}
}

func (c *Cache) safeCollect() (snap types.TelemetrySnapshot) {
	defer func() {
		if r := recover(); r != nil {
			snap = types.TelemetrySnapshot{CollectedAt: time.Now()}
			for _, d := range c.reader.Devices() {
				snap.Devices = append(snap.Devices, DefaultStats(d))
			}
			snap.Errors = []string{fmt.Sprintf("collect panic: %v", r)}
			c.log.Error().Interface("panic", r).Msg("telemetry collect panicked")
		}
	}()
	return c.reader.Collect()
}

func (c *Cache) diagnose() {
	report := c.diag.Run(context.Background())
	diagnosesTotal.WithLabelValues(report.Severity).Inc()
	if report.Severity == types.SeverityCritical {
		c.log.Error().
			Bool("d_state", report.DStateProcesses).
			Bool("sysfs_healthy", report.SysfsHealthy).
			Bool("journal_errors", report.JournalErrors).
			Str("recommendation", report.Recommendation).
			Msg("gpu crash diagnosis critical")
	}
}

func cloneSnapshot(s types.TelemetrySnapshot) types.TelemetrySnapshot {
	out := s
	out.Devices = append([]types.GPUStats(nil), s.Devices...)
	out.Errors = append([]string(nil), s.Errors...)
	return out
}
