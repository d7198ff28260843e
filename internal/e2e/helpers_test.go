package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llamactl/internal/diagnose"
	"llamactl/internal/httpapi"
	"llamactl/internal/registry"
	"llamactl/internal/settings"
	"llamactl/internal/supervisor"
	"llamactl/internal/telemetry"
)

// createTempModelsDir creates a temporary directory populated with empty
// .gguf files and returns the directory path and the model IDs (filenames).
func createTempModelsDir(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir, names
}

// writeWorkerScript drops an executable shell script standing in for
// llama-server: it announces itself, then idles until SIGTERM.
func writeWorkerScript(t *testing.T) string {
	return writeScriptBody(t, "#!/bin/sh\ntrap 'exit 0' TERM\necho worker alive\nwhile :; do sleep 0.05; done\n")
}

func writeScriptBody(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "worker.sh")
	if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

// newControlPlane assembles the full stack over real collaborators: watching
// registry, file-backed settings store, telemetry cache and a supervisor
// running bin as its worker. Only the GPU list is empty.
func newControlPlane(t *testing.T, modelsDir, bin, settingsFile string) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()

	reg, err := registry.Watch(modelsDir, logger)
	if err != nil {
		t.Fatalf("watch models: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	store := settings.NewStore(settingsFile, logger)

	cache := telemetry.NewCache(telemetry.CacheConfig{
		Reader: telemetry.NewReader(nil),
		Logger: logger,
	})
	cache.Start()
	t.Cleanup(cache.Stop)

	runner := diagnose.NewRunner("llamactl-e2e-none", "card0", logger)

	sup := supervisor.New(supervisor.SupervisorConfig{
		LlamaBin:   bin,
		ModelDir:   modelsDir,
		CacheDir:   filepath.Join(t.TempDir(), "cache"),
		SlotsDir:   t.TempDir(),
		WorkerName: "llamactl-e2e-none",
		StartGrace: 200 * time.Millisecond,
		StopWait:   2 * time.Second,
		KillWait:   2 * time.Second,
		SweepWait:  50 * time.Millisecond,
		Logger:     logger,
	})
	t.Cleanup(sup.Close)

	mux := httpapi.NewMux(httpapi.Deps{
		Worker:    sup,
		Telemetry: cache,
		Diagnoser: runner,
		Catalog:   reg,
		Settings:  store,
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
