package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llamactl/internal/settings"
	"llamactl/internal/supervisor"
	"llamactl/pkg/types"
)

// Worker is the supervisor surface the route layer drives.
type Worker interface {
	Start(lc supervisor.LaunchConfig) (supervisor.StartResult, error)
	Stop() supervisor.StopResult
	Status() types.StatusResponse
	DrainLogs() []types.LogEntry
}

// Telemetry serves cached GPU readings.
type Telemetry interface {
	Get() types.TelemetrySnapshot
	ForceUpdate() types.TelemetrySnapshot
}

// Diagnoser runs one crash-diagnosis pass.
type Diagnoser interface {
	Run(ctx context.Context) types.DiagnosisReport
}

// Catalog lists the model files a worker can load.
type Catalog interface {
	List() []types.Model
}

// Deps bundles the collaborators behind the HTTP surface.
type Deps struct {
	Worker    Worker
	Telemetry Telemetry
	Diagnoser Diagnoser
	Catalog   Catalog
	Settings  *settings.Store
}

func NewMux(deps Deps) http.Handler {
	rt := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	rt.Use(middleware.RequestID)
	rt.Use(middleware.RealIP)
	rt.Use(middleware.Recoverer)
	if corsEnabled {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Compression for JSON endpoints
	rt.Use(middleware.Compress(5))
	rt.Use(MetricsMiddleware)
	// Security headers
	rt.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	rt.Post("/start", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeStartRequest(w, r)
		if !ok {
			return
		}
		deps.Settings.Load().FillLaunchDefaults(&req)

		start := time.Now()
		res, err := deps.Worker.Start(launchConfig(req))
		lvl := requestLogLevel(r)
		if err != nil {
			status := fmt.Sprintf("Error: %v", err)
			if supervisor.IsModelRequired(err) {
				status = "No model selected!"
			}
			if lvl >= LevelInfo {
				if zlog != nil {
					z := zlog.Info().Str("model", req.Model).Bool("success", false).Dur("dur", time.Since(start))
					if rid := middleware.GetReqID(r.Context()); rid != "" {
						z = z.Str("request_id", rid)
					}
					z.Err(err).Msg("start handled")
				} else {
					log.Printf("start handled model=%s success=false dur=%s err=%v", req.Model, time.Since(start), err)
				}
			}
			writeJSON(w, types.StartResponse{Success: false, Status: status})
			return
		}
		status := fmt.Sprintf("Model '%s' started on %s:%s", res.Model, res.Host, res.Port)
		if res.PreviousStopped {
			status = fmt.Sprintf("Previous worker stopped. Model '%s' started on %s:%s", res.Model, res.Host, res.Port)
		}
		if lvl >= LevelInfo {
			if zlog != nil {
				z := zlog.Info().Str("model", res.Model).Int("pid", res.PID).Bool("success", true).Dur("dur", time.Since(start))
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Msg("start handled")
			} else {
				log.Printf("start handled model=%s pid=%d success=true dur=%s", res.Model, res.PID, time.Since(start))
			}
		}
		writeJSON(w, types.StartResponse{Success: true, Status: status})
	})

	rt.Post("/stop", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		res := deps.Worker.Stop()
		var status string
		switch res.Outcome {
		case supervisor.StopOutcomeNoWorker:
			status = "No model running"
		case supervisor.StopOutcomeDegraded:
			status = fmt.Sprintf("Model server stopped and cache cleared, but %d process(es) survived the sweep", len(res.LeftoverPIDs))
		default:
			status = "Model server fully stopped and cache cleared!"
		}
		if lvl := requestLogLevel(r); lvl >= LevelInfo {
			if zlog != nil {
				z := zlog.Info().Str("outcome", string(res.Outcome)).Dur("dur", time.Since(start))
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Msg("stop handled")
			} else {
				log.Printf("stop handled outcome=%s dur=%s", res.Outcome, time.Since(start))
			}
		}
		writeJSON(w, types.StopResponse{Success: true, Status: status})
	})

	rt.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Worker.Status())
	})

	rt.Get("/logs", func(w http.ResponseWriter, r *http.Request) {
		drained := deps.Worker.DrainLogs()
		entries := make([]types.LogLine, 0, len(drained))
		for _, e := range drained {
			entries = append(entries, types.LogLine{Text: e.Line()})
		}
		if zlog != nil && requestLogLevel(r) >= LevelDebug {
			zlog.Debug().Int("entries", len(entries)).Msg("logs drained")
		}
		writeJSON(w, types.LogsResponse{Entries: entries, Reset: false})
	})

	rt.Get("/gpu", func(w http.ResponseWriter, r *http.Request) {
		var snap types.TelemetrySnapshot
		if q := r.URL.Query().Get("refresh"); q == "1" || q == "true" {
			snap = deps.Telemetry.ForceUpdate()
		} else {
			snap = deps.Telemetry.Get()
		}
		devices := snap.Devices
		if devices == nil {
			devices = []types.GPUStats{}
		}
		writeJSON(w, devices)
	})

	rt.Get("/diagnose", func(w http.ResponseWriter, r *http.Request) {
		// Join server base context with request context so shutdown cancels
		// a pending journal scan too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		writeJSON(w, deps.Diagnoser.Run(ctx))
	})

	rt.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		models := deps.Catalog.List()
		if models == nil {
			models = []types.Model{}
		}
		writeJSON(w, types.ModelsResponse{Models: models})
	})

	rt.Get("/settings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.SettingsResponse{Success: true, Settings: deps.Settings.Load().AsMap()})
	})

	rt.Post("/settings", func(w http.ResponseWriter, r *http.Request) {
		values, ok := decodeSettingsValues(w, r)
		if !ok {
			return
		}
		if _, err := deps.Settings.Update(values); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, types.AckResponse{Success: true, Status: "Settings saved"})
	})

	rt.Delete("/settings", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Settings.Reset(); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, types.AckResponse{Success: true, Status: "Settings reset to defaults"})
	})

	rt.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rt.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// Prometheus metrics endpoint
	rt.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(rt)

	return rt
}

// decodeStartRequest accepts the JSON body the API clients send and the form
// posts the control panel sends. Transport-level violations are answered here;
// the caller only sees well-formed requests.
func decodeStartRequest(w http.ResponseWriter, r *http.Request) (types.StartRequest, bool) {
	var req types.StartRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(ct, "application/json"):
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return req, false
		}
	case strings.HasPrefix(ct, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid form body")
			return req, false
		}
		req = startRequestFromForm(r.PostForm)
	case ct == "" || strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid form body")
			return req, false
		}
		req = startRequestFromForm(r.PostForm)
	default:
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json or form data")
		return req, false
	}
	return req, true
}

func startRequestFromForm(form url.Values) types.StartRequest {
	return types.StartRequest{
		Model:        form.Get("model"),
		NGL:          form.Get("ngl"),
		CtxSize:      form.Get("ctx_size"),
		Port:         form.Get("port"),
		Host:         form.Get("host"),
		MainGPU:      form.Get("main_gpu"),
		TensorSplit:  form.Get("tensor_split"),
		FlashAttn:    form.Get("flash_attn"),
		BatchSize:    form.Get("batch_size"),
		UBatchSize:   form.Get("ubatch_size"),
		Parallel:     form.Get("parallel"),
		ContBatching: form.Get("cont_batching"),
		ExtraArgs:    form.Get("extra_args"),
	}
}

func launchConfig(req types.StartRequest) supervisor.LaunchConfig {
	return supervisor.LaunchConfig{
		Model:        req.Model,
		CtxSize:      req.CtxSize,
		NGL:          req.NGL,
		MainGPU:      req.MainGPU,
		TensorSplit:  req.TensorSplit,
		FlashAttn:    req.FlashAttn,
		BatchSize:    req.BatchSize,
		UBatchSize:   req.UBatchSize,
		Port:         req.Port,
		Host:         req.Host,
		Parallel:     req.Parallel,
		ContBatching: req.ContBatching,
		ExtraArgs:    req.ExtraArgs,
	}
}

func decodeSettingsValues(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(ct, "application/json"):
		var values map[string]string
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return nil, false
		}
		return values, true
	case ct == "" || strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid form body")
			return nil, false
		}
		values := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			values[k] = r.PostForm.Get(k)
		}
		return values, true
	default:
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json or form data")
		return nil, false
	}
}
