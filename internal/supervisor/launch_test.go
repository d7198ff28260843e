package supervisor

import (
	"reflect"
	"testing"
)

func TestArgsAssemblyOrder(t *testing.T) {
	lc := LaunchConfig{
		Model:        "a.gguf",
		CtxSize:      "16384",
		NGL:          "99",
		MainGPU:      "0",
		TensorSplit:  "1,0.4",
		FlashAttn:    "on",
		BatchSize:    "512",
		UBatchSize:   "128",
		Port:         "4000",
		Host:         "0.0.0.0",
		Parallel:     "1",
		ContBatching: "true",
		ExtraArgs:    "--jinja --chat-template chatml",
	}
	got := lc.Args("/models", "/slots")
	want := []string{
		"-m", "/models/a.gguf",
		"--ctx-size", "16384",
		"--n-gpu-layers", "99",
		"--main-gpu", "0",
		"--tensor-split", "1,0.4",
		"--flash-attn", "on",
		"--batch-size", "512",
		"--ubatch-size", "128",
		"--port", "4000",
		"--host", "0.0.0.0",
		"--parallel", "1",
		"--slot-save-path", "/slots",
		"--cont-batching",
		"--jinja", "--chat-template", "chatml",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("argv mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestArgsContBatchingStrict(t *testing.T) {
	for _, v := range []string{"false", "", "on", "1", "TRUE"} {
		lc := LaunchConfig{Model: "a.gguf", ContBatching: v}
		for _, a := range lc.Args("/m", "/s") {
			if a == "--cont-batching" {
				t.Errorf("cont_batching=%q must not append the flag", v)
			}
		}
	}
}

func TestArgsExtraArgsWhitespace(t *testing.T) {
	lc := LaunchConfig{Model: "a.gguf", ExtraArgs: "  -ctk   q8_0\t--gpu-sampling "}
	got := lc.Args("/m", "/s")
	tail := got[len(got)-3:]
	want := []string{"-ctk", "q8_0", "--gpu-sampling"}
	if !reflect.DeepEqual(tail, want) {
		t.Fatalf("extra args tail = %v, want %v", tail, want)
	}
}
