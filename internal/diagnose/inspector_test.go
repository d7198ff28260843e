package diagnose

import (
	"os/exec"
	"testing"
	"time"

	"llamactl/pkg/types"
)

func TestInspectorMatchingFindsLiveProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	ins := NewInspector()
	pid := int32(cmd.Process.Pid)
	deadline := time.Now().Add(3 * time.Second)
	var found *types.ProcessState
	for found == nil && time.Now().Before(deadline) {
		procs, err := ins.Matching("sleep")
		if err != nil {
			t.Fatalf("Matching: %v", err)
		}
		for i := range procs {
			if procs[i].PID == pid {
				found = &procs[i]
				break
			}
		}
		if found == nil {
			time.Sleep(50 * time.Millisecond)
		}
	}
	if found == nil {
		t.Fatalf("child pid %d never showed up in the scan", pid)
	}
	if found.Status == "" {
		t.Error("status not classified")
	}
	for _, p := range DStatePIDs([]types.ProcessState{*found}) {
		t.Errorf("sleeping child %d misread as uninterruptible", p)
	}
}

func TestInspectorMatchingNoHits(t *testing.T) {
	procs, err := NewInspector().Matching("no-such-worker-a8f3e1")
	if err != nil {
		t.Fatalf("Matching: %v", err)
	}
	if len(procs) != 0 {
		t.Fatalf("procs = %v, want none", procs)
	}
}

func TestDStatePIDs(t *testing.T) {
	procs := []types.ProcessState{
		{PID: 10, Status: "sleep"},
		{PID: 11, Status: "blocked"},
		{PID: 12, Status: "running"},
		{PID: 13, Status: "blocked"},
	}
	pids := DStatePIDs(procs)
	if len(pids) != 2 || pids[0] != 11 || pids[1] != 13 {
		t.Fatalf("pids = %v, want [11 13]", pids)
	}
}
