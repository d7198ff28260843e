package diagnose

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llamactl/pkg/types"
)

func TestAssembleSeverityLadder(t *testing.T) {
	cases := []struct {
		name         string
		dPIDs        []int32
		sysfsHealthy bool
		sysfsErrs    []string
		journalMsgs  []string
		wantSeverity string
		wantRecWord  string
	}{
		{
			name:         "all clear",
			sysfsHealthy: true,
			wantSeverity: types.SeverityInfo,
			wantRecWord:  "No issues detected",
		},
		{
			name:         "d state dominates",
			dPIDs:        []int32{4242},
			sysfsHealthy: false,
			sysfsErrs:    []string{"gpu_busy_percent: permission denied"},
			journalMsgs:  []string{"amdgpu: gpu reset"},
			wantSeverity: types.SeverityCritical,
			wantRecWord:  "Hard system reset",
		},
		{
			name:         "d state alone",
			dPIDs:        []int32{7},
			sysfsHealthy: true,
			wantSeverity: types.SeverityCritical,
			wantRecWord:  "Hard system reset",
		},
		{
			name:         "sysfs down with journal evidence",
			sysfsHealthy: false,
			sysfsErrs:    []string{"pp_dpm_sclk: no such file"},
			journalMsgs:  []string{"amdgpu: ring gfx timeout"},
			wantSeverity: types.SeverityCritical,
			wantRecWord:  "journalctl shows GPU errors",
		},
		{
			name:         "sysfs down alone",
			sysfsHealthy: false,
			sysfsErrs:    []string{"pp_dpm_mclk: no such file"},
			wantSeverity: types.SeverityWarning,
			wantRecWord:  "sysfs paths inaccessible",
		},
		{
			name:         "journal evidence alone",
			sysfsHealthy: true,
			journalMsgs:  []string{"amdgpu: VRAM allocation error"},
			wantSeverity: types.SeverityWarning,
			wantRecWord:  "errors in system logs",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Unix(1_700_000_000, 0)
			rep := assemble(now, tc.dPIDs, tc.sysfsHealthy, tc.sysfsErrs, tc.journalMsgs)
			if rep.Severity != tc.wantSeverity {
				t.Fatalf("severity = %q, want %q", rep.Severity, tc.wantSeverity)
			}
			if !strings.Contains(rep.Recommendation, tc.wantRecWord) {
				t.Fatalf("recommendation %q missing %q", rep.Recommendation, tc.wantRecWord)
			}
			if rep.Timestamp != now.Unix() {
				t.Errorf("timestamp = %d, want %d", rep.Timestamp, now.Unix())
			}
			if rep.DStateProcesses != (len(tc.dPIDs) > 0) {
				t.Errorf("d_state_processes = %v", rep.DStateProcesses)
			}
			if rep.JournalErrors != (len(tc.journalMsgs) > 0) {
				t.Errorf("journalctl_errors = %v", rep.JournalErrors)
			}
			if rep.DStatePIDs == nil || rep.SysfsErrors == nil || rep.JournalMessages == nil {
				t.Errorf("report slices must be non-nil for JSON encoding: %+v", rep)
			}
		})
	}
}

func TestMatchesJournalPattern(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"kernel: amdgpu 0000:03:00.0: amdgpu: GPU reset begin!", true},
		{"kernel: amdgpu: ring gfx_0.0.0 timeout", true},
		{"kernel: amdgpu: fence wait failed", true},
		{"kernel: [drm:amdgpu_job_timedout] *ERROR* ring sdma0 timeout", true},
		{"kernel: memory allocation of 4096 bytes failed", true},
		{"kernel: VRAM read ERROR at 0x1000", true},
		{"llama-server hung in D state for 30s", true},
		{"task llama-server blocked in uninterruptible sleep", true},
		{"sshd[812]: error: kex_exchange_identification", false},
		{"kernel: usb 1-1: device descriptor read/64, error -110", false},
		{"systemd[1]: Failed to start some.service", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := matchesJournalPattern(tc.line); got != tc.want {
			t.Errorf("matchesJournalPattern(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

// fakeSysfs lays out the critical per-card files under a temp root and
// returns the root.
func fakeSysfs(t *testing.T, card string) string {
	t.Helper()
	root := t.TempDir()
	dev := filepath.Join(root, card, "device")
	hwmon := filepath.Join(dev, "hwmon", "hwmon3")
	if err := os.MkdirAll(hwmon, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(dev, "gpu_busy_percent"): "42\n",
		filepath.Join(dev, "pp_dpm_sclk"):      "0: 500Mhz\n1: 2100Mhz *\n",
		filepath.Join(dev, "pp_dpm_mclk"):      "0: 96Mhz *\n",
		filepath.Join(hwmon, "temp1_input"):    "51000\n",
	}
	for p, content := range files {
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestSysfsHealthAllReadable(t *testing.T) {
	r := &Runner{Card: "card1", Log: zerolog.Nop(), sysfsRoot: fakeSysfs(t, "card1")}
	healthy, errs := r.sysfsHealth()
	if !healthy {
		t.Fatalf("healthy = false, errs = %v", errs)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %v, want none", errs)
	}
}

func TestSysfsHealthMissingFile(t *testing.T) {
	root := fakeSysfs(t, "card1")
	if err := os.Remove(filepath.Join(root, "card1", "device", "pp_dpm_sclk")); err != nil {
		t.Fatal(err)
	}
	r := &Runner{Card: "card1", Log: zerolog.Nop(), sysfsRoot: root}
	healthy, errs := r.sysfsHealth()
	if healthy {
		t.Fatal("healthy = true after removing pp_dpm_sclk")
	}
	if len(errs) != 1 || !strings.Contains(errs[0], "pp_dpm_sclk") {
		t.Fatalf("errs = %v, want one pp_dpm_sclk error", errs)
	}
}

func TestSysfsHealthMissingHwmon(t *testing.T) {
	root := fakeSysfs(t, "card1")
	if err := os.RemoveAll(filepath.Join(root, "card1", "device", "hwmon")); err != nil {
		t.Fatal(err)
	}
	r := &Runner{Card: "card1", Log: zerolog.Nop(), sysfsRoot: root}
	healthy, errs := r.sysfsHealth()
	if healthy {
		t.Fatal("healthy = true without hwmon")
	}
	if len(errs) != 1 || !strings.Contains(errs[0], "No matches for pattern") {
		t.Fatalf("errs = %v, want glob miss", errs)
	}
}

func TestJournalErrorsUnavailable(t *testing.T) {
	r := &Runner{
		Log:          zerolog.Nop(),
		journalBin:   filepath.Join(t.TempDir(), "journalctl-missing"),
		journalSince: defaultJournalSince,
		execTimeout:  time.Second,
	}
	if msgs := r.journalErrors(context.Background()); msgs != nil {
		t.Fatalf("msgs = %v, want nil when journalctl is missing", msgs)
	}

	r.journalBin = "/bin/false"
	if msgs := r.journalErrors(context.Background()); msgs != nil {
		t.Fatalf("msgs = %v, want nil when journalctl fails", msgs)
	}
}

func TestJournalErrorsFiltersPatterns(t *testing.T) {
	script := filepath.Join(t.TempDir(), "journalctl")
	body := `#!/bin/sh
echo "May 01 10:00:00 host kernel: amdgpu 0000:03:00.0: amdgpu: GPU reset begin!"
echo "May 01 10:00:01 host sshd[812]: error: kex_exchange_identification"
echo "May 01 10:00:02 host kernel: amdgpu: ring gfx timeout, signaled seq=100"
`
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	r := &Runner{
		Log:          zerolog.Nop(),
		journalBin:   script,
		journalSince: defaultJournalSince,
		execTimeout:  5 * time.Second,
	}
	msgs := r.journalErrors(context.Background())
	if len(msgs) != 2 {
		t.Fatalf("msgs = %v, want the two amdgpu lines", msgs)
	}
	for _, m := range msgs {
		if !strings.Contains(strings.ToLower(m), "amdgpu") {
			t.Errorf("unexpected message %q", m)
		}
	}
}

type stubInspector struct {
	procs []types.ProcessState
	err   error
}

func (s stubInspector) Matching(string) ([]types.ProcessState, error) { return s.procs, s.err }

func TestRunWithStubbedProbes(t *testing.T) {
	r := &Runner{
		WorkerName: "llama-server",
		Card:       "card1",
		Log:        zerolog.Nop(),
		inspector: stubInspector{procs: []types.ProcessState{
			{PID: 101, Status: "blocked", Name: "llama-server"},
			{PID: 102, Status: "sleep", Name: "llama-server"},
		}},
		sysfsRoot:    fakeSysfs(t, "card1"),
		journalBin:   "/bin/false",
		journalSince: defaultJournalSince,
		execTimeout:  time.Second,
	}
	rep := r.Run(context.Background())
	if rep.Severity != types.SeverityCritical {
		t.Fatalf("severity = %q, want critical for a blocked worker", rep.Severity)
	}
	if len(rep.DStatePIDs) != 1 || rep.DStatePIDs[0] != 101 {
		t.Fatalf("d_state_pids = %v, want [101]", rep.DStatePIDs)
	}
	if !rep.SysfsHealthy {
		t.Errorf("sysfs reported unhealthy: %v", rep.SysfsErrors)
	}
}
