package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"llamactl/pkg/types"
)

const defaultSysfsRoot = "/sys/class/drm"

// Active DPM level lines look like "2: 1206Mhz *".
var clockRe = regexp.MustCompile(`(?i)(\d+)\s*Mhz`)

// Reader collects one telemetry snapshot per call from the amdgpu sysfs tree.
// Every field is read independently; a missing or unreadable sensor leaves the
// field at its sentinel value and never affects other fields or devices.
type Reader struct {
	root  string
	cards []DeviceConfig
}

// NewReader builds a Reader over the configured cards.
func NewReader(cards []DeviceConfig) *Reader {
	return &Reader{root: defaultSysfsRoot, cards: append([]DeviceConfig(nil), cards...)}
}

// Devices returns the configured card list.
func (r *Reader) Devices() []DeviceConfig {
	return append([]DeviceConfig(nil), r.cards...)
}

// Collect reads all configured devices once.
func (r *Reader) Collect() types.TelemetrySnapshot {
	snap := types.TelemetrySnapshot{CollectedAt: time.Now()}
	for _, c := range r.cards {
		st, errs := r.readCard(c)
		snap.Devices = append(snap.Devices, st)
		for _, e := range errs {
			snap.Errors = append(snap.Errors, fmt.Sprintf("%s: %v", c.Card, e))
		}
	}
	return snap
}

// DefaultStats is the sentinel snapshot entry for a card no sample has
// reached yet.
func DefaultStats(c DeviceConfig) types.GPUStats {
	return types.GPUStats{
		Card:     c.Card,
		Name:     c.Name,
		VulkanID: c.VulkanID,
		Temp:     "N/A",
		Usage:    "0%",
		Power:    "N/A",
		GPUClock: "N/A",
		MemClock: "N/A",
		FanSpeed: "N/A",
		Memory:   "0.00Gi/0.00Gi",
	}
}

func (r *Reader) readCard(c DeviceConfig) (types.GPUStats, []error) {
	st := DefaultStats(c)
	dev := filepath.Join(r.root, c.Card, "device")
	var errs []error
	record := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	// Edge temperature, millidegrees C.
	if p, ok := globOne(filepath.Join(dev, "hwmon", "hwmon*", "temp1_input")); ok {
		v, err := readInt(p)
		if err == nil {
			st.Temp = fmt.Sprintf("%d°C", v/1000)
		}
		record(err)
	}

	// Average power draw, microwatts.
	if p, ok := globOne(filepath.Join(dev, "hwmon", "hwmon*", "power1_average")); ok {
		v, err := readInt(p)
		if err == nil {
			st.Power = fmt.Sprintf("%dW", v/1000000)
		}
		record(err)
	}

	// Busy percentage is served pre-formatted by the kernel.
	if p := filepath.Join(dev, "gpu_busy_percent"); pathExists(p) {
		v, err := readTrimmed(p)
		if err == nil {
			st.Usage = v + "%"
		}
		record(err)
	}

	if v, tried, err := r.activeClock(filepath.Join(dev, "pp_dpm_sclk")); tried {
		if err == nil && v != "" {
			st.GPUClock = v
		}
		record(err)
	}
	if v, tried, err := r.activeClock(filepath.Join(dev, "pp_dpm_mclk")); tried {
		if err == nil && v != "" {
			st.MemClock = v
		}
		record(err)
	}

	// Fan duty from tach reading over configured maximum.
	fanIn, okIn := globOne(filepath.Join(dev, "hwmon", "hwmon*", "fan1_input"))
	fanMax, okMax := globOne(filepath.Join(dev, "hwmon", "hwmon*", "fan1_max"))
	if okIn && okMax {
		fi, err1 := readInt(fanIn)
		fm, err2 := readInt(fanMax)
		if err1 == nil && err2 == nil && fm > 0 {
			st.FanSpeed = fmt.Sprintf("%d%%", int(float64(fi)/float64(fm)*100))
		}
		record(err1)
		record(err2)
	}

	// VRAM usage in bytes.
	usedPath := filepath.Join(dev, "mem_info_vram_used")
	totalPath := filepath.Join(dev, "mem_info_vram_total")
	if pathExists(usedPath) && pathExists(totalPath) {
		used, err1 := readInt(usedPath)
		total, err2 := readInt(totalPath)
		if err1 == nil && err2 == nil && total > 0 {
			const gib = 1 << 30
			st.Memory = fmt.Sprintf("%.2fGi/%.2fGi", float64(used)/gib, float64(total)/gib)
		}
		record(err1)
		record(err2)
	}

	return st, errs
}

// activeClock parses a pp_dpm_* table for the level marked active with '*'.
// Scanning stops at the first marked line whether or not it parses, matching
// amdgpu's single active level.
func (r *Reader) activeClock(path string) (val string, tried bool, err error) {
	if !pathExists(path) {
		return "", false, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", true, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	for _, line := range strings.Split(string(b), "\n") {
		if !strings.Contains(line, "*") {
			continue
		}
		if m := clockRe.FindStringSubmatch(line); m != nil {
			return m[1] + "MHz", true, nil
		}
		break
	}
	return "", true, nil
}

func readTrimmed(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return strings.TrimSpace(string(b)), nil
}

func readInt(path string) (int64, error) {
	s, err := readTrimmed(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return v, nil
}

// globOne returns the first match for a sysfs glob pattern, if any.
func globOne(pattern string) (string, bool) {
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
