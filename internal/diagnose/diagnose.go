// Package diagnose detects GPU memory crashes. A worker stuck in
// uninterruptible sleep is the strongest signal; an unreadable sysfs tree
// and amdgpu faults in the system journal corroborate. Probes degrade to
// report fields, they never fail the call.
package diagnose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"llamactl/pkg/types"
)

const (
	defaultSysfsRoot    = "/sys/class/drm"
	defaultJournalSince = "10 minutes ago"
	defaultExecTimeout  = 10 * time.Second
	sysfsProbeBytes     = 1024
)

// journalPatterns mark GPU trouble in lowercased error-level journal lines.
var journalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`amdgpu.*error`),
	regexp.MustCompile(`amdgpu.*failed`),
	regexp.MustCompile(`amdgpu.*timeout`),
	regexp.MustCompile(`gpu.*reset`),
	regexp.MustCompile(`memory.*allocation.*failed`),
	regexp.MustCompile(`vram.*error`),
	regexp.MustCompile(`d state`),
	regexp.MustCompile(`uninterruptible`),
}

// Runner performs one crash-diagnosis pass per Run call.
type Runner struct {
	// Process name probed for D state, normally the worker executable name.
	WorkerName string
	// Representative card whose sysfs liveness stands in for the GPU.
	Card string
	Log  zerolog.Logger

	inspector    interface{ Matching(string) ([]types.ProcessState, error) }
	sysfsRoot    string
	journalBin   string
	journalSince string
	execTimeout  time.Duration
}

// NewRunner builds a Runner with defaults for the given worker name and card.
func NewRunner(workerName, card string, log zerolog.Logger) *Runner {
	return &Runner{
		WorkerName:   workerName,
		Card:         card,
		Log:          log,
		inspector:    NewInspector(),
		sysfsRoot:    defaultSysfsRoot,
		journalBin:   "journalctl",
		journalSince: defaultJournalSince,
		execTimeout:  defaultExecTimeout,
	}
}

// Run assembles a full diagnosis report. Probe failures degrade the report,
// they never fail the call. The context bounds the journal scan.
func (r *Runner) Run(ctx context.Context) types.DiagnosisReport {
	procs, err := r.inspector.Matching(r.WorkerName)
	if err != nil {
		r.Log.Error().Err(err).Msg("process scan failed")
	}
	dPIDs := DStatePIDs(procs)
	for _, pid := range dPIDs {
		r.Log.Warn().Int32("pid", pid).Msg("process in uninterruptible sleep")
	}

	healthy, sysfsErrs := r.sysfsHealth()
	if !healthy {
		r.Log.Warn().Str("card", r.Card).Strs("errors", sysfsErrs).Msg("gpu sysfs health check failed")
	}

	journalMsgs := r.journalErrors(ctx)

	return assemble(time.Now(), dPIDs, healthy, sysfsErrs, journalMsgs)
}

// assemble applies the severity ladder to the probe results. D state always
// dominates; sysfs failure combined with journal errors is also critical.
func assemble(now time.Time, dPIDs []int32, sysfsHealthy bool, sysfsErrs, journalMsgs []string) types.DiagnosisReport {
	report := types.DiagnosisReport{
		Timestamp:       now.Unix(),
		DStateProcesses: len(dPIDs) > 0,
		DStatePIDs:      emptyIfNilPIDs(dPIDs),
		SysfsHealthy:    sysfsHealthy,
		SysfsErrors:     emptyIfNil(sysfsErrs),
		JournalErrors:   len(journalMsgs) > 0,
		JournalMessages: emptyIfNil(journalMsgs),
		Severity:        types.SeverityInfo,
		Recommendation:  "No issues detected",
	}
	hasJournal := len(journalMsgs) > 0
	switch {
	case report.DStateProcesses:
		report.Severity = types.SeverityCritical
		report.Recommendation = "CRITICAL: Processes in D (uninterruptible sleep) state detected. " +
			"This indicates GPU memory crash. Processes cannot be killed. " +
			"Recommended action: Hard system reset required."
	case !sysfsHealthy && hasJournal:
		report.Severity = types.SeverityCritical
		report.Recommendation = "CRITICAL: GPU sysfs inaccessible and journalctl shows GPU errors. " +
			"GPU may be crashed. Check GPU health and consider reset."
	case !sysfsHealthy:
		report.Severity = types.SeverityWarning
		report.Recommendation = "WARNING: GPU sysfs paths inaccessible. GPU may be unstable. " +
			"Monitor closely and consider stopping model."
	case hasJournal:
		report.Severity = types.SeverityWarning
		report.Recommendation = "WARNING: GPU-related errors in system logs. " +
			"Monitor GPU stability and consider reducing overclock."
	}
	return report
}

// sysfsHealth verifies the representative card's critical sysfs paths exist
// and read back.
func (r *Runner) sysfsHealth() (bool, []string) {
	dev := filepath.Join(r.sysfsRoot, r.Card, "device")
	paths := []string{
		filepath.Join(dev, "gpu_busy_percent"),
		filepath.Join(dev, "pp_dpm_sclk"),
		filepath.Join(dev, "pp_dpm_mclk"),
		filepath.Join(dev, "hwmon", "hwmon*", "temp1_input"),
	}
	var errs []string
	for _, p := range paths {
		actual := p
		if strings.Contains(p, "*") {
			matches, _ := filepath.Glob(p)
			if len(matches) == 0 {
				errs = append(errs, fmt.Sprintf("No matches for pattern: %s", p))
				continue
			}
			actual = matches[0]
		}
		if err := probeRead(actual); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", actual, err))
		}
	}
	return len(errs) == 0, errs
}

func probeRead(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	buf := make([]byte, sysfsProbeBytes)
	if _, err := f.Read(buf); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// journalErrors scans recent error-priority journal lines for GPU fault
// patterns. A missing or failing journalctl reads as no evidence.
func (r *Runner) journalErrors(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, r.execTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, r.journalBin, "--since", r.journalSince, "--priority=err", "--no-pager")
	out, err := cmd.Output()
	if err != nil {
		r.Log.Debug().Err(err).Msg("journalctl scan unavailable")
		return nil
	}
	var msgs []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		if matchesJournalPattern(line) {
			msgs = append(msgs, line)
			r.Log.Warn().Str("line", line).Msg("gpu-related error in journal")
		}
	}
	return msgs
}

func matchesJournalPattern(line string) bool {
	l := strings.ToLower(line)
	for _, p := range journalPatterns {
		if p.MatchString(l) {
			return true
		}
	}
	return false
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyIfNilPIDs(s []int32) []int32 {
	if s == nil {
		return []int32{}
	}
	return s
}
