package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"llamactl/pkg/types"
)

// workerHandle is the supervisor's record of the one live worker. At most
// one exists at any time; Start retires the previous one first.
type workerHandle struct {
	pid        int
	pgid       int
	generation string
	model      string
	host       string
	port       string
	startedAt  time.Time

	cmd    *exec.Cmd
	waitCh chan error
}

// StartResult reports a successful launch.
type StartResult struct {
	Model      string
	Host       string
	Port       string
	PID        int
	Generation string
	// PreviousStopped is set when a running worker had to be retired first.
	PreviousStopped bool
}

// StopOutcome classifies how a stop sequence ended.
type StopOutcome string

const (
	// StopOutcomeNoWorker: stop called with no worker; nothing was done.
	StopOutcomeNoWorker StopOutcome = "no_worker"
	// StopOutcomeStopped: worker and any orphans are gone.
	StopOutcomeStopped StopOutcome = "stopped"
	// StopOutcomeDegraded: matching processes survived SIGKILL and the
	// sweep. Usually a GPU memory crash; only a reset clears it.
	StopOutcomeDegraded StopOutcome = "degraded"
)

// StopResult reports a stop sequence: its outcome, the orphan PIDs the sweep
// killed and any PIDs that survived it.
type StopResult struct {
	Outcome      StopOutcome
	SweptPIDs    []int32
	LeftoverPIDs []int32
}

// Supervisor owns the worker process lifecycle. All public methods are safe
// for concurrent use; one mutex serializes every lifecycle transition.
type Supervisor struct {
	cfg  SupervisorConfig
	logs *LogStreamer

	mu     sync.Mutex
	handle *workerHandle
}

// New constructs a Supervisor from cfg, applying defaults for unset fields.
func New(cfg SupervisorConfig) *Supervisor {
	cfg = cfg.withDefaults()
	return &Supervisor{cfg: cfg, logs: NewLogStreamer(cfg.Logger)}
}

// Start launches the worker described by lc. A running worker is fully
// stopped first, so two workers are never alive at once. The log buffers are
// cleared and re-seeded with a start banner. If the process dies within the
// start grace window the handle is discarded and an early-exit error carrying
// the exit code is returned.
func (s *Supervisor) Start(lc LaunchConfig) (StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(lc.Model) == "" {
		return StartResult{}, ErrModelRequired()
	}

	var prevStopped bool
	if s.handle != nil {
		s.cfg.Logger.Info().Str("model", s.handle.model).Msg("retiring previous worker before start")
		s.stopLocked()
		prevStopped = true
	}

	s.logs.Reset()
	s.logs.System(fmt.Sprintf("STARTING MODEL: %s on %s:%s", lc.Model, lc.Host, lc.Port))

	cmd := exec.Command(s.cfg.LlamaBin, lc.Args(s.cfg.ModelDir, s.cfg.SlotsDir)...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return StartResult{}, ErrSpawnFailed(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return StartResult{}, ErrSpawnFailed(err)
	}
	if err := cmd.Start(); err != nil {
		s.cfg.Logger.Error().Err(err).Str("bin", s.cfg.LlamaBin).Msg("worker spawn failed")
		return StartResult{}, ErrSpawnFailed(err)
	}

	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		// Setpgid made the child its own group leader.
		pgid = cmd.Process.Pid
	}
	h := &workerHandle{
		pid:        cmd.Process.Pid,
		pgid:       pgid,
		generation: uuid.NewString(),
		model:      lc.Model,
		host:       lc.Host,
		port:       lc.Port,
		startedAt:  time.Now(),
		cmd:        cmd,
		waitCh:     make(chan error, 1),
	}
	s.logs.Attach(stdout, stderr)
	go func() {
		// Readers must hit EOF before Wait may close the pipes.
		s.logs.Join()
		h.waitCh <- cmd.Wait()
	}()

	workerStartsTotal.Inc()
	s.cfg.Logger.Info().
		Int("pid", h.pid).
		Str("model", lc.Model).
		Str("host", lc.Host).
		Str("port", lc.Port).
		Msg("worker spawned")
	s.cfg.Publisher.Publish(Event{Name: "worker_start", Model: lc.Model, Fields: map[string]any{
		"pid": h.pid, "host": lc.Host, "port": lc.Port,
	}})

	select {
	case werr := <-h.waitCh:
		code := waitExitCode(werr)
		s.logs.System(fmt.Sprintf("CRITICAL ERROR: Process exited immediately with code %d", code))
		s.cfg.Logger.Error().Int("pid", h.pid).Int("code", code).Str("model", lc.Model).Msg("worker exited inside start grace window")
		workerEarlyExitsTotal.Inc()
		s.cfg.Publisher.Publish(Event{Name: "worker_exit_early", Model: lc.Model, Fields: map[string]any{
			"pid": h.pid, "code": code,
		}})
		return StartResult{}, ErrExitedEarly(code)
	case <-time.After(s.cfg.StartGrace):
	}

	s.handle = h
	s.cfg.Publisher.Publish(Event{Name: "worker_ready", Model: lc.Model, Fields: map[string]any{
		"pid": h.pid, "generation": h.generation,
	}})
	return StartResult{
		Model:           lc.Model,
		Host:            lc.Host,
		Port:            lc.Port,
		PID:             h.pid,
		Generation:      h.generation,
		PreviousStopped: prevStopped,
	}, nil
}

// Stop retires the worker: SIGTERM to its process group, SIGKILL after a
// bounded wait, then a process-table sweep for orphans and a cache clear.
// With no worker it is a safe no-op. A worker that outlives SIGKILL and the
// sweep yields a degraded outcome rather than an error.
func (s *Supervisor) Stop() StopResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Supervisor) stopLocked() StopResult {
	h := s.handle
	if h == nil {
		workerStopsTotal.WithLabelValues(string(StopOutcomeNoWorker)).Inc()
		return StopResult{Outcome: StopOutcomeNoWorker}
	}

	res := StopResult{Outcome: StopOutcomeStopped}
	s.cfg.Logger.Info().Int("pid", h.pid).Int("pgid", h.pgid).Msg("stopping worker group")
	if err := unix.Kill(-h.pgid, unix.SIGTERM); err != nil {
		s.cfg.Logger.Warn().Err(err).Int("pgid", h.pgid).Msg("SIGTERM delivery failed")
	}
	if !waitExit(h.waitCh, s.cfg.StopWait) {
		s.cfg.Logger.Warn().Int("pid", h.pid).Dur("waited", s.cfg.StopWait).Msg("graceful stop timed out, escalating to SIGKILL")
		_ = unix.Kill(-h.pgid, unix.SIGKILL)
		if !waitExit(h.waitCh, s.cfg.KillWait) {
			s.cfg.Logger.Error().Int("pid", h.pid).Msg("worker survived SIGKILL, presumed stuck in uninterruptible sleep")
			res.Outcome = StopOutcomeDegraded
		}
	}
	s.handle = nil

	res.SweptPIDs, res.LeftoverPIDs = s.sweep()
	if len(res.LeftoverPIDs) > 0 {
		res.Outcome = StopOutcomeDegraded
	}
	s.clearCache()

	workerStopsTotal.WithLabelValues(string(res.Outcome)).Inc()
	s.cfg.Publisher.Publish(Event{Name: "worker_stop", Model: h.model, Fields: map[string]any{
		"outcome": string(res.Outcome), "swept_pids": res.SweptPIDs, "leftover_pids": res.LeftoverPIDs,
	}})
	return res
}

// sweep force-kills every process matching the worker name, then re-lists
// once to find survivors. Covers orphans the group signal missed.
func (s *Supervisor) sweep() (swept, leftover []int32) {
	procs, err := s.cfg.Inspector.Matching(s.cfg.WorkerName)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Msg("orphan sweep scan failed")
		return nil, nil
	}
	self := int32(os.Getpid())
	for _, p := range procs {
		if p.PID == self {
			continue
		}
		_ = unix.Kill(int(p.PID), unix.SIGKILL)
		swept = append(swept, p.PID)
	}
	if len(swept) == 0 {
		return nil, nil
	}
	sweepKilledTotal.Add(float64(len(swept)))
	s.cfg.Logger.Info().Ints32("pids", swept).Msg("swept orphan worker processes")
	s.cfg.Publisher.Publish(Event{Name: "worker_sweep", Fields: map[string]any{"pids": swept}})

	time.Sleep(s.cfg.SweepWait)
	again, err := s.cfg.Inspector.Matching(s.cfg.WorkerName)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Msg("post-sweep re-scan failed")
		return swept, nil
	}
	for _, p := range again {
		if p.PID == self {
			continue
		}
		leftover = append(leftover, p.PID)
	}
	if len(leftover) > 0 {
		s.cfg.Logger.Error().Ints32("pids", leftover).Msg("worker processes survived the sweep")
	}
	return swept, leftover
}

func (s *Supervisor) clearCache() {
	if s.cfg.CacheDir == "" {
		return
	}
	if err := os.RemoveAll(s.cfg.CacheDir); err != nil {
		s.cfg.Logger.Error().Err(err).Str("dir", s.cfg.CacheDir).Msg("cache clear failed")
		return
	}
	s.cfg.Logger.Debug().Str("dir", s.cfg.CacheDir).Msg("worker cache cleared")
}

// Status reports whether a worker handle exists, plus its identity. The
// handle survives a worker crash until the next Start or Stop; liveness
// beyond handle existence is the diagnosis layer's concern.
func (s *Supervisor) Status() types.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return types.StatusResponse{Running: false}
	}
	return types.StatusResponse{
		Running:       true,
		PID:           s.handle.pid,
		Model:         s.handle.model,
		UptimeSeconds: int64(time.Since(s.handle.startedAt).Seconds()),
	}
}

// DrainLogs returns the log entries accumulated since the previous drain.
func (s *Supervisor) DrainLogs() []types.LogEntry { return s.logs.Drain() }

// RecentLogs returns the retained log history, oldest first.
func (s *Supervisor) RecentLogs() []types.LogEntry { return s.logs.Recent() }

// Close retires any live worker. For process shutdown paths.
func (s *Supervisor) Close() {
	s.Stop()
}

func waitExit(ch <-chan error, d time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

func waitExitCode(werr error) int {
	var ee *exec.ExitError
	if errors.As(werr, &ee) {
		return ee.ExitCode()
	}
	return 0
}
