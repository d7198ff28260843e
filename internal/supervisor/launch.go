package supervisor

import (
	"path/filepath"
	"strings"
)

// LaunchConfig carries one start request's worker parameters. Every value is
// an opaque string forwarded into the argv; the supervisor interprets none of
// them beyond requiring a model name.
type LaunchConfig struct {
	Model        string
	CtxSize      string
	NGL          string
	MainGPU      string
	TensorSplit  string
	FlashAttn    string
	BatchSize    string
	UBatchSize   string
	Port         string
	Host         string
	Parallel     string
	ContBatching string
	ExtraArgs    string
}

// Args assembles the worker argv. The continuous-batching switch is appended
// only when the value is exactly "true"; ExtraArgs is whitespace-split and
// passed through last.
func (lc LaunchConfig) Args(modelDir, slotsDir string) []string {
	args := []string{
		"-m", filepath.Join(modelDir, lc.Model),
		"--ctx-size", lc.CtxSize,
		"--n-gpu-layers", lc.NGL,
		"--main-gpu", lc.MainGPU,
		"--tensor-split", lc.TensorSplit,
		"--flash-attn", lc.FlashAttn,
		"--batch-size", lc.BatchSize,
		"--ubatch-size", lc.UBatchSize,
		"--port", lc.Port,
		"--host", lc.Host,
		"--parallel", lc.Parallel,
		"--slot-save-path", slotsDir,
	}
	if lc.ContBatching == "true" {
		args = append(args, "--cont-batching")
	}
	return append(args, strings.Fields(lc.ExtraArgs)...)
}
