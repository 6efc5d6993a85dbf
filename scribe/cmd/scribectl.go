// Command scribectl is the admin CLI for the scribe transcription backend.
package main

import (
	"context"
	"fmt"
	"os"

	"scribe/scribe/config"
	"scribe/scribe/services/llm"
	"scribe/scribe/services/summary"
	"scribe/scribe/sources/psql"
	"scribe/scribe/utils/color"
	"scribe/scribe/utils/logging"
)

func main() {
	logging.InitLogger()
	defer logging.Sync()
	cfg := config.LoadConfig()

	a := &app{
		cfg: cfg,
		openDB: func(ctx context.Context) (*psql.Database, error) {
			return psql.NewDatabase(ctx, cfg)
		},
		newCompleter: func(ctx context.Context) (summary.Completer, error) {
			return llm.FromConfig(ctx, cfg)
		},
		out: os.Stdout,
	}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.ColorError("error: "+err.Error()))
		os.Exit(1)
	}
}
