package diagnose

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"llamactl/pkg/types"
)

// Inspector lists worker-related processes from the process table.
type Inspector struct{}

// NewInspector constructs a process-table inspector.
func NewInspector() *Inspector { return &Inspector{} }

// Matching returns every process whose name or command line contains name
// (case-insensitive), with its run state classified. Processes that vanish
// mid-scan are skipped.
func (Inspector) Matching(name string) ([]types.ProcessState, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("process table: %w", err)
	}
	needle := strings.ToLower(name)
	var out []types.ProcessState
	for _, p := range procs {
		pname, nameErr := p.Name()
		cmdline, _ := p.Cmdline()
		if nameErr != nil && cmdline == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(pname), needle) &&
			!strings.Contains(strings.ToLower(cmdline), needle) {
			continue
		}
		st := "unknown"
		if ss, err := p.Status(); err == nil && len(ss) > 0 {
			st = ss[0]
		}
		out = append(out, types.ProcessState{
			PID:     p.Pid,
			Status:  st,
			Name:    pname,
			Cmdline: cmdline,
		})
	}
	return out, nil
}

// DStatePIDs filters the uninterruptible-sleep processes out of a scan.
// A worker stuck in this state cannot be killed and usually marks a GPU
// memory crash.
func DStatePIDs(procs []types.ProcessState) []int32 {
	var pids []int32
	for _, p := range procs {
		if p.Status == process.Blocked {
			pids = append(pids, p.PID)
		}
	}
	return pids
}
