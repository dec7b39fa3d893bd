package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/axatjpr/photometa-restore/core"
	"github.com/axatjpr/photometa-restore/core/restore"
)

func main() {
	// Optional .env next to the binary; flags still win.
	_ = godotenv.Load()

	cfg := core.DefaultConfig()
	if v := os.Getenv("PHOTOMETA_DIR"); v != "" {
		cfg.SourceDir = v
	}
	if v := os.Getenv("PHOTOMETA_EDITED_SUFFIX"); v != "" {
		cfg.EditedSuffix = v
	}
	if v := os.Getenv("PHOTOMETA_TRUNCATE_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TruncateLen = n
		}
	}

	var jsonOut bool
	flag.StringVar(&cfg.SourceDir, "dir", cfg.SourceDir, "Directory containing Takeout media and sidecar JSON files")
	flag.StringVar(&cfg.EditedSuffix, "suffix", cfg.EditedSuffix, "Filename suffix of edited copies (localized per account language)")
	flag.IntVar(&cfg.TruncateLen, "trunc", cfg.TruncateLen, "Filename length at which the export truncates declared names")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "Plan matches without writing or moving anything")
	flag.BoolVar(&cfg.Quiet, "quiet", false, "Only print the final summary")
	flag.BoolVar(&jsonOut, "json", false, "Emit the run report as JSON")
	flag.Parse()

	if cfg.SourceDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: photometa-restore -dir <takeout directory> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := core.NewPrinter(jsonOut, !cfg.Quiet)
	p.PrintInfo("Processing " + cfg.SourceDir + " ...")

	report, err := restore.New(cfg).Run(ctx)
	if err != nil && report == nil {
		core.PrintError(err.Error())
		os.Exit(1)
	}

	p.PrintReport(report)
	if errors.Is(err, context.Canceled) {
		p.PrintInfo("Run cancelled; files already processed were left in place.")
	}
}
