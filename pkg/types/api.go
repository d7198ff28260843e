package types

// StartRequest carries launch parameters for the worker process. All values
// are opaque strings forwarded to the worker argv verbatim; fields left empty
// fall back to the stored settings.
type StartRequest struct {
	// Model file name under the configured model directory. Required.
	// example: qwen3-coder-30b-q4.gguf
	Model string `json:"model" example:"qwen3-coder-30b-q4.gguf"`
	// Number of layers to offload to the GPU.
	// example: 99
	NGL string `json:"ngl,omitempty" example:"99"`
	// Context size in tokens.
	// example: 16384
	CtxSize string `json:"ctx_size,omitempty" example:"16384"`
	// TCP port the worker binds.
	// example: 4000
	Port string `json:"port,omitempty" example:"4000"`
	// Host address the worker binds.
	// example: 0.0.0.0
	Host string `json:"host,omitempty" example:"0.0.0.0"`
	// Primary GPU index.
	// example: 0
	MainGPU string `json:"main_gpu,omitempty" example:"0"`
	// VRAM split ratio across devices.
	// example: 1,0.4
	TensorSplit string `json:"tensor_split,omitempty" example:"1,0.4"`
	// Flash attention toggle, forwarded as-is.
	// example: on
	FlashAttn string `json:"flash_attn,omitempty" example:"on"`
	// Logical batch size.
	// example: 512
	BatchSize string `json:"batch_size,omitempty" example:"512"`
	// Physical batch size.
	// example: 128
	UBatchSize string `json:"ubatch_size,omitempty" example:"128"`
	// Number of parallel slots.
	// example: 1
	Parallel string `json:"parallel,omitempty" example:"1"`
	// Continuous batching toggle; the flag is appended only when set to "true".
	// example: true
	ContBatching string `json:"cont_batching,omitempty" example:"true"`
	// Free-form extra arguments, whitespace-split into the argv.
	// example: --jinja --chat-template chatml
	ExtraArgs string `json:"extra_args,omitempty" example:"--jinja --chat-template chatml"`
}

// StartResponse is returned by POST /start. Launch failures are reported with
// Success=false and a descriptive Status, not an HTTP error.
type StartResponse struct {
	Success bool `json:"success"`
	// example: Model 'qwen3-coder-30b-q4.gguf' started on 0.0.0.0:4000
	Status string `json:"status" example:"Model 'qwen3-coder-30b-q4.gguf' started on 0.0.0.0:4000"`
}

// StopResponse is returned by POST /stop.
type StopResponse struct {
	Success bool `json:"success"`
	// example: Model server fully stopped and cache cleared!
	Status string `json:"status" example:"Model server fully stopped and cache cleared!"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Whether a worker is currently held.
	Running bool `json:"running"`
	// Process ID of the worker (when running).
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Model the worker was started with (when running).
	Model string `json:"model,omitempty"`
	// Seconds since the worker started (when running).
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds,omitempty" example:"3600"`
}

// LogLine wraps one rendered log line for delivery.
type LogLine struct {
	// example: [2026-01-02 15:04:05] OUT: main: server is listening
	Text string `json:"text" example:"[2026-01-02 15:04:05] OUT: main: server is listening"`
}

// LogsResponse is returned by GET /logs: entries accumulated since the
// previous call. Each batch is delivered at most once.
type LogsResponse struct {
	Entries []LogLine `json:"entries"`
	Reset   bool      `json:"reset"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// SettingsResponse wraps the stored launch defaults returned by GET /settings.
type SettingsResponse struct {
	Success  bool              `json:"success"`
	Settings map[string]string `json:"settings"`
}

// AckResponse acknowledges a state-changing request with no further payload.
type AckResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
