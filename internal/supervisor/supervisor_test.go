package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llamactl/pkg/types"
)

// writeScript drops an executable shell script standing in for the worker.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "worker.sh")
	if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

// fakeInspector replays scripted process-table scans, one per Matching call.
type fakeInspector struct {
	mu    sync.Mutex
	scans [][]types.ProcessState
}

func (f *fakeInspector) Matching(string) ([]types.ProcessState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scans) == 0 {
		return nil, nil
	}
	out := f.scans[0]
	f.scans = f.scans[1:]
	return out, nil
}

func newTestSupervisor(t *testing.T, bin string, mut ...func(*SupervisorConfig)) (*Supervisor, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	cfg := SupervisorConfig{
		LlamaBin:   bin,
		ModelDir:   t.TempDir(),
		CacheDir:   filepath.Join(t.TempDir(), "cache"),
		SlotsDir:   t.TempDir(),
		WorkerName: "worker-name-without-matches",
		StartGrace: 200 * time.Millisecond,
		StopWait:   2 * time.Second,
		KillWait:   2 * time.Second,
		SweepWait:  50 * time.Millisecond,
		Publisher:  pub,
		Inspector:  &fakeInspector{},
		Logger:     zerolog.Nop(),
	}
	for _, m := range mut {
		m(&cfg)
	}
	s := New(cfg)
	t.Cleanup(s.Close)
	return s, pub
}

func launchFor(model string) LaunchConfig {
	return LaunchConfig{Model: model, Host: "127.0.0.1", Port: "4000"}
}

func eventNames(pub *MemoryPublisher) []string {
	var names []string
	for _, e := range pub.Events() {
		names = append(names, e.Name)
	}
	return names
}

func hasEvent(pub *MemoryPublisher, name string) bool {
	for _, e := range pub.Events() {
		if e.Name == name {
			return true
		}
	}
	return false
}

// waitForLogText polls the drain queue until a line containing want shows up.
func waitForLogText(t *testing.T, s *Supervisor, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range s.DrainLogs() {
			if strings.Contains(e.Text, want) {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("log line containing %q never arrived; recent: %+v", want, s.RecentLogs())
}

func TestStartRequiresModel(t *testing.T) {
	s, _ := newTestSupervisor(t, "/bin/true")
	_, err := s.Start(LaunchConfig{Model: "   "})
	if !IsModelRequired(err) {
		t.Fatalf("err = %v, want model-required", err)
	}
}

func TestStartSpawnFailure(t *testing.T) {
	s, _ := newTestSupervisor(t, filepath.Join(t.TempDir(), "no-such-binary"))
	_, err := s.Start(launchFor("a.gguf"))
	if !IsSpawnFailed(err) {
		t.Fatalf("err = %v, want spawn failure", err)
	}
	if st := s.Status(); st.Running {
		t.Fatal("status running after failed spawn")
	}
}

func TestStartEarlyExit(t *testing.T) {
	bin := writeScript(t, "#!/bin/sh\nexit 7\n")
	s, pub := newTestSupervisor(t, bin)
	_, err := s.Start(launchFor("a.gguf"))
	if !IsExitedEarly(err) {
		t.Fatalf("err = %v, want early exit", err)
	}
	if code, ok := ExitCode(err); !ok || code != 7 {
		t.Fatalf("exit code = %d (%v), want 7", code, ok)
	}
	if !strings.Contains(err.Error(), "exited immediately") || !strings.Contains(err.Error(), "7") {
		t.Fatalf("error text %q", err)
	}
	if st := s.Status(); st.Running {
		t.Fatal("status running after early exit")
	}

	var banner, critical bool
	for _, e := range s.RecentLogs() {
		if strings.Contains(e.Text, "STARTING MODEL: a.gguf on 127.0.0.1:4000") {
			banner = true
		}
		if strings.Contains(e.Text, "CRITICAL ERROR: Process exited immediately with code 7") {
			critical = true
		}
	}
	if !banner || !critical {
		t.Fatalf("banner=%v critical=%v, logs: %+v", banner, critical, s.RecentLogs())
	}
	if !hasEvent(pub, "worker_start") || !hasEvent(pub, "worker_exit_early") {
		t.Fatalf("events = %v", eventNames(pub))
	}
}

func TestStartSuccessThenStop(t *testing.T) {
	bin := writeScript(t, `#!/bin/sh
echo ready
trap 'exit 0' TERM
while :; do sleep 0.1; done
`)
	cacheDir := filepath.Join(t.TempDir(), "cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, "slot.bin"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, pub := newTestSupervisor(t, bin, func(cfg *SupervisorConfig) {
		cfg.CacheDir = cacheDir
	})

	res, err := s.Start(launchFor("a.gguf"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.PID <= 0 || res.Generation == "" || res.PreviousStopped {
		t.Fatalf("result = %+v", res)
	}
	st := s.Status()
	if !st.Running || st.Model != "a.gguf" || st.PID != res.PID {
		t.Fatalf("status = %+v", st)
	}
	waitForLogText(t, s, "ready")

	stop := s.Stop()
	if stop.Outcome != StopOutcomeStopped {
		t.Fatalf("stop outcome = %q", stop.Outcome)
	}
	if s.Status().Running {
		t.Fatal("status running after stop")
	}
	if _, err := os.Stat(cacheDir); !os.IsNotExist(err) {
		t.Fatalf("cache dir still present: %v", err)
	}
	if !hasEvent(pub, "worker_ready") || !hasEvent(pub, "worker_stop") {
		t.Fatalf("events = %v", eventNames(pub))
	}
}

func TestStartWhileRunningRetiresPrevious(t *testing.T) {
	bin := writeScript(t, `#!/bin/sh
trap 'exit 0' TERM
while :; do sleep 0.1; done
`)
	s, pub := newTestSupervisor(t, bin)

	first, err := s.Start(launchFor("a.gguf"))
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := s.Start(launchFor("b.gguf"))
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !second.PreviousStopped {
		t.Fatal("second start did not report the retired worker")
	}
	if second.PID == first.PID {
		t.Fatal("second start reused the first pid")
	}
	st := s.Status()
	if !st.Running || st.Model != "b.gguf" {
		t.Fatalf("status = %+v", st)
	}
	if !hasEvent(pub, "worker_stop") {
		t.Fatalf("events = %v", eventNames(pub))
	}
}

func TestConcurrentStartsLeaveOneWorker(t *testing.T) {
	bin := writeScript(t, `#!/bin/sh
trap 'exit 0' TERM
while :; do sleep 0.1; done
`)
	s, _ := newTestSupervisor(t, bin)

	const callers = 4
	var wg sync.WaitGroup
	results := make([]StartResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Start(launchFor(fmt.Sprintf("m%d.gguf", i)))
		}(i)
	}
	wg.Wait()

	fresh := 0
	pids := make(map[int]bool, callers)
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("start %d: %v", i, errs[i])
		}
		if pids[results[i].PID] {
			t.Fatalf("pid %d handed out twice", results[i].PID)
		}
		pids[results[i].PID] = true
		if !results[i].PreviousStopped {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("fresh starts = %d, want exactly 1", fresh)
	}
	st := s.Status()
	if !st.Running || !pids[st.PID] {
		t.Fatalf("status = %+v, pids = %v", st, pids)
	}
}

func TestStopWithoutWorker(t *testing.T) {
	s, _ := newTestSupervisor(t, "/bin/true")
	res := s.Stop()
	if res.Outcome != StopOutcomeNoWorker {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if len(res.SweptPIDs) != 0 || len(res.LeftoverPIDs) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestStopEscalatesToSigkill(t *testing.T) {
	bin := writeScript(t, `#!/bin/sh
trap '' TERM
while :; do sleep 0.05; done
`)
	s, _ := newTestSupervisor(t, bin, func(cfg *SupervisorConfig) {
		cfg.StopWait = 150 * time.Millisecond
	})
	if _, err := s.Start(launchFor("a.gguf")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	begin := time.Now()
	res := s.Stop()
	if res.Outcome != StopOutcomeStopped {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if elapsed := time.Since(begin); elapsed < 150*time.Millisecond {
		t.Fatalf("stop returned before the graceful wait elapsed: %v", elapsed)
	}
	if s.Status().Running {
		t.Fatal("status running after escalated stop")
	}
}

func TestStopDegradedWhenSweepLeavesSurvivors(t *testing.T) {
	orphan := exec.Command("sleep", "60")
	if err := orphan.Start(); err != nil {
		t.Fatalf("start orphan: %v", err)
	}
	t.Cleanup(func() {
		_ = orphan.Process.Kill()
		_ = orphan.Wait()
	})
	opid := int32(orphan.Process.Pid)
	scan := []types.ProcessState{{PID: opid, Status: "blocked", Name: "worker-name-without-matches"}}

	bin := writeScript(t, `#!/bin/sh
trap 'exit 0' TERM
while :; do sleep 0.1; done
`)
	s, _ := newTestSupervisor(t, bin, func(cfg *SupervisorConfig) {
		cfg.Inspector = &fakeInspector{scans: [][]types.ProcessState{scan, scan}}
	})
	if _, err := s.Start(launchFor("a.gguf")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := s.Stop()
	if res.Outcome != StopOutcomeDegraded {
		t.Fatalf("outcome = %q, want degraded", res.Outcome)
	}
	if len(res.SweptPIDs) != 1 || res.SweptPIDs[0] != opid {
		t.Fatalf("swept = %v", res.SweptPIDs)
	}
	if len(res.LeftoverPIDs) != 1 || res.LeftoverPIDs[0] != opid {
		t.Fatalf("leftover = %v", res.LeftoverPIDs)
	}
}

func TestCloseRetiresWorker(t *testing.T) {
	bin := writeScript(t, `#!/bin/sh
trap 'exit 0' TERM
while :; do sleep 0.1; done
`)
	s, _ := newTestSupervisor(t, bin)
	if _, err := s.Start(launchFor("a.gguf")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Close()
	if s.Status().Running {
		t.Fatal("status running after Close")
	}
}
