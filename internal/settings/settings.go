// Package settings persists user launch preferences between runs. The store
// merges the settings file over built-in defaults on every load, so a file
// from an older version (or none at all) still yields a complete set.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"llamactl/internal/common/fsutil"
	"llamactl/pkg/types"
)

// Settings holds the stored launch defaults. The model is stored by list
// index rather than by name so renames in the model directory do not pin a
// stale selection.
type Settings struct {
	ModelIndex   int    `json:"model_index"`
	NGL          string `json:"ngl"`
	CtxSize      string `json:"ctx_size"`
	Port         string `json:"port"`
	Host         string `json:"host"`
	MainGPU      string `json:"main_gpu"`
	TensorSplit  string `json:"tensor_split"`
	BatchSize    string `json:"batch_size"`
	UBatchSize   string `json:"ubatch_size"`
	FlashAttn    string `json:"flash_attn"`
	Parallel     string `json:"parallel"`
	ContBatching string `json:"cont_batching"`
	ExtraArgs    string `json:"extra_args"`
}

// Defaults returns the built-in launch defaults.
func Defaults() Settings {
	return Settings{
		ModelIndex:   0,
		NGL:          "999",
		CtxSize:      "16384",
		Port:         "4000",
		Host:         "0.0.0.0",
		MainGPU:      "0",
		TensorSplit:  "1,0.4",
		BatchSize:    "512",
		UBatchSize:   "128",
		FlashAttn:    "on",
		Parallel:     "1",
		ContBatching: "true",
		ExtraArgs:    "--jinja --chat-template chatml --gpu-sampling -ctk q8_0",
	}
}

// Store reads and writes the settings file.
type Store struct {
	path string
	log  zerolog.Logger
}

// NewStore builds a Store for path. A leading ~ is expanded; when expansion
// fails the literal path is kept.
func NewStore(path string, log zerolog.Logger) *Store {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		p = path
	}
	return &Store{path: p, log: log}
}

// Path returns the resolved settings file location.
func (st *Store) Path() string { return st.path }

// Load returns the stored settings merged over defaults. A missing or
// unreadable file falls back to defaults; load never fails.
func (st *Store) Load() Settings {
	s := Defaults()
	data, err := os.ReadFile(st.path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.log.Error().Err(err).Str("path", st.path).Msg("settings read failed, using defaults")
		}
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		st.log.Error().Err(err).Str("path", st.path).Msg("settings file malformed, using defaults")
		return Defaults()
	}
	return s
}

// Save writes s to the settings file atomically.
func (st *Store) Save(s Settings) error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(st.path, append(data, '\n'), 0o644); err != nil {
		return err
	}
	st.log.Debug().Str("path", st.path).Msg("settings saved")
	return nil
}

// Update applies the given key/value pairs over the stored settings and
// persists the result. Unknown keys are ignored.
func (st *Store) Update(values map[string]string) (Settings, error) {
	s := st.Load()
	for k, v := range values {
		switch k {
		case "model_index":
			idx, err := strconv.Atoi(v)
			if err != nil {
				st.log.Warn().Str("value", v).Msg("model_index not a number, ignored")
				continue
			}
			s.ModelIndex = idx
		case "ngl":
			s.NGL = v
		case "ctx_size":
			s.CtxSize = v
		case "port":
			s.Port = v
		case "host":
			s.Host = v
		case "main_gpu":
			s.MainGPU = v
		case "tensor_split":
			s.TensorSplit = v
		case "batch_size":
			s.BatchSize = v
		case "ubatch_size":
			s.UBatchSize = v
		case "flash_attn":
			s.FlashAttn = v
		case "parallel":
			s.Parallel = v
		case "cont_batching":
			s.ContBatching = v
		case "extra_args":
			s.ExtraArgs = v
		default:
			st.log.Debug().Str("key", k).Msg("unknown settings key ignored")
		}
	}
	if err := st.Save(s); err != nil {
		return s, err
	}
	return s, nil
}

// Reset deletes the settings file so defaults apply again. Absence is not an
// error.
func (st *Store) Reset() error {
	if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	st.log.Debug().Str("path", st.path).Msg("settings reset to defaults")
	return nil
}

// FillLaunchDefaults fills every empty field of req from s. Request values
// always win; the model name is never filled here since it is stored by
// index.
func (s Settings) FillLaunchDefaults(req *types.StartRequest) {
	fill := func(dst *string, val string) {
		if *dst == "" {
			*dst = val
		}
	}
	fill(&req.NGL, s.NGL)
	fill(&req.CtxSize, s.CtxSize)
	fill(&req.Port, s.Port)
	fill(&req.Host, s.Host)
	fill(&req.MainGPU, s.MainGPU)
	fill(&req.TensorSplit, s.TensorSplit)
	fill(&req.BatchSize, s.BatchSize)
	fill(&req.UBatchSize, s.UBatchSize)
	fill(&req.FlashAttn, s.FlashAttn)
	fill(&req.Parallel, s.Parallel)
	fill(&req.ContBatching, s.ContBatching)
	fill(&req.ExtraArgs, s.ExtraArgs)
}

// AsMap renders the settings as the flat string map the wire uses.
func (s Settings) AsMap() map[string]string {
	return map[string]string{
		"model_index":   strconv.Itoa(s.ModelIndex),
		"ngl":           s.NGL,
		"ctx_size":      s.CtxSize,
		"port":          s.Port,
		"host":          s.Host,
		"main_gpu":      s.MainGPU,
		"tensor_split":  s.TensorSplit,
		"batch_size":    s.BatchSize,
		"ubatch_size":   s.UBatchSize,
		"flash_attn":    s.FlashAttn,
		"parallel":      s.Parallel,
		"cont_batching": s.ContBatching,
		"extra_args":    s.ExtraArgs,
	}
}
