package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// rootOptions are shared across subcommands via persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "llamactl",
		Short:         "Control plane for a single llama-server worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", envStr("LLAMACTL_CONFIG", ""), "Config file (.yaml/.json/.toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", envStr("LLAMACTL_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newDiagnoseCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// envStr returns the value of key, or def when unset or empty.
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma-separated list, trimming spaces and dropping
// empty items. Returns nil for an empty input.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
