package supervisor

import (
	"time"

	"github.com/rs/zerolog"

	"llamactl/internal/diagnose"
	"llamactl/pkg/types"
)

// Defaults applied when corresponding SupervisorConfig fields are unset.
const (
	defaultWorkerName = "llama-server"
	defaultStartGrace = 1 * time.Second
	defaultStopWait   = 10 * time.Second
	defaultKillWait   = 5 * time.Second
	defaultSweepWait  = 500 * time.Millisecond
)

// ProcessInspector lists worker-related processes for the orphan sweep.
type ProcessInspector interface {
	Matching(name string) ([]types.ProcessState, error)
}

// SupervisorConfig encapsulates all tunables for Supervisor construction.
type SupervisorConfig struct {
	// LlamaBin is the worker executable, a bare name or a path.
	LlamaBin string
	// ModelDir holds the model files start requests name.
	ModelDir string
	// CacheDir is the worker scratch directory cleared on every stop.
	CacheDir string
	// SlotsDir is passed to the worker as its slot save path.
	SlotsDir string
	// WorkerName is the process-table name the orphan sweep matches.
	WorkerName string

	// StartGrace is how long a fresh worker must survive before Start
	// reports success.
	StartGrace time.Duration
	// StopWait bounds the wait after SIGTERM, KillWait after SIGKILL.
	StopWait time.Duration
	KillWait time.Duration
	// SweepWait separates the sweep's kill pass from its re-listing.
	SweepWait time.Duration

	Publisher EventPublisher
	Inspector ProcessInspector
	Logger    zerolog.Logger
}

func (cfg SupervisorConfig) withDefaults() SupervisorConfig {
	if cfg.WorkerName == "" {
		cfg.WorkerName = defaultWorkerName
	}
	if cfg.StartGrace <= 0 {
		cfg.StartGrace = defaultStartGrace
	}
	if cfg.StopWait <= 0 {
		cfg.StopWait = defaultStopWait
	}
	if cfg.KillWait <= 0 {
		cfg.KillWait = defaultKillWait
	}
	if cfg.SweepWait <= 0 {
		cfg.SweepWait = defaultSweepWait
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	if cfg.Inspector == nil {
		cfg.Inspector = diagnose.NewInspector()
	}
	return cfg
}
