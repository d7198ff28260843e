package types

import (
	"fmt"
	"time"
)

// Model represents a worker-loadable model file on disk.
type Model struct {
	// Stable identifier for the model (the file name).
	// example: qwen3-coder-30b-q4.gguf
	ID string `json:"id" example:"qwen3-coder-30b-q4.gguf"`
	// Human-friendly name.
	// example: qwen3-coder-30b-q4.gguf
	Name string `json:"name" example:"qwen3-coder-30b-q4.gguf"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/qwen3-coder-30b-q4.gguf
	Path string `json:"path" example:"/home/user/models/qwen3-coder-30b-q4.gguf"`
	// File size in bytes.
	// example: 18210472832
	SizeBytes int64 `json:"size_bytes,omitempty" example:"18210472832"`
}

// Log stream tags. StreamSystem marks synthetic entries injected by the
// supervisor itself (start banner, early-exit notice).
const (
	StreamOut    = "OUT"
	StreamErr    = "ERR"
	StreamSystem = "system"
)

// LogEntry is one captured line of worker output.
type LogEntry struct {
	Time   time.Time `json:"time"`
	Stream string    `json:"stream"`
	Text   string    `json:"text"`
}

// Line renders the entry in the display form clients expect:
// "[2006-01-02 15:04:05] OUT: text". Synthetic entries carry no stream tag.
func (e LogEntry) Line() string {
	ts := e.Time.Format("2006-01-02 15:04:05")
	if e.Stream == "" || e.Stream == StreamSystem {
		return fmt.Sprintf("[%s] %s", ts, e.Text)
	}
	return fmt.Sprintf("[%s] %s: %s", ts, e.Stream, e.Text)
}

// GPUStats holds one device's telemetry as display strings. Fields the sysfs
// tree did not provide keep their sentinel values ("N/A", "0%",
// "0.00Gi/0.00Gi") so a partially failing card still renders.
type GPUStats struct {
	// DRM card identifier.
	// example: card1
	Card string `json:"index" example:"card1"`
	// Display name of the device.
	// example: RX 470
	Name string `json:"name" example:"RX 470"`
	// Vulkan device index exposed to the worker.
	// example: 1
	VulkanID int `json:"vulkan_id" example:"1"`
	// Edge temperature.
	// example: 45°C
	Temp string `json:"temp" example:"45°C"`
	// Busy percentage.
	// example: 32%
	Usage string `json:"usage" example:"32%"`
	// Average power draw.
	// example: 86W
	Power string `json:"power" example:"86W"`
	// Active shader clock.
	// example: 1206MHz
	GPUClock string `json:"gpu_clock" example:"1206MHz"`
	// Active memory clock.
	// example: 1750MHz
	MemClock string `json:"mem_clock" example:"1750MHz"`
	// Fan duty relative to fan1_max.
	// example: 75%
	FanSpeed string `json:"fan_speed" example:"75%"`
	// VRAM used/total.
	// example: 3.52Gi/4.00Gi
	Memory string `json:"memory" example:"3.52Gi/4.00Gi"`
}

// TelemetrySnapshot bundles one collection cycle across all configured devices.
type TelemetrySnapshot struct {
	Devices     []GPUStats `json:"devices"`
	CollectedAt time.Time  `json:"collected_at"`
	// Per-field read failures, formatted "card: cause". Advisory only.
	Errors []string `json:"errors,omitempty"`
}

// ProcessState classifies one matching process from the process table.
type ProcessState struct {
	PID int32 `json:"pid"`
	// Run state word as reported by the kernel: running, sleep, blocked
	// (uninterruptible), zombie, ...
	Status  string `json:"status"`
	Name    string `json:"name"`
	Cmdline string `json:"cmdline,omitempty"`
}

// Diagnosis severity levels, ordered by urgency.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// DiagnosisReport summarizes one crash-diagnosis pass over the process table,
// the sysfs tree and the system journal.
type DiagnosisReport struct {
	// Unix seconds at assembly time.
	Timestamp int64 `json:"timestamp"`
	// True when worker processes sit in uninterruptible sleep.
	DStateProcesses bool    `json:"d_state_processes"`
	DStatePIDs      []int32 `json:"d_state_pids"`
	// True when the representative card's critical sysfs paths all read back.
	SysfsHealthy bool     `json:"gpu_sysfs_healthy"`
	SysfsErrors  []string `json:"gpu_sysfs_errors"`
	// True when recent error-level journal lines match known GPU fault patterns.
	JournalErrors   bool     `json:"journalctl_errors"`
	JournalMessages []string `json:"journalctl_messages"`
	// info, warning or critical.
	// example: critical
	Severity       string `json:"severity" example:"critical"`
	Recommendation string `json:"recommendation"`
}
