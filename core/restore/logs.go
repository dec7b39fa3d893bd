package restore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/axatjpr/photometa-restore/core"
)

// runLogs are the two per-run artifacts: a missing-files list and an
// errors list. A nil *runLogs (dry runs) swallows everything.
type runLogs struct {
	missing *os.File
	errors  *os.File
}

func openRunLogs(cfg core.Config) (*runLogs, error) {
	dir := filepath.Join(cfg.SourceDir, cfg.LogsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	stamp := time.Now().Format("20060102_150405")

	missing, err := os.Create(filepath.Join(dir, "missing_files_"+stamp+".log"))
	if err != nil {
		return nil, err
	}
	errs, err := os.Create(filepath.Join(dir, "errors_"+stamp+".log"))
	if err != nil {
		missing.Close()
		return nil, err
	}

	l := &runLogs{missing: missing, errors: errs}
	l.missingf("=== Missing Files List ===")
	l.errorf("=== Starting new processing session ===")
	return l, nil
}

func (l *runLogs) missingf(format string, args ...any) {
	if l == nil {
		return
	}
	fmt.Fprintf(l.missing, format+"\n", args...)
}

func (l *runLogs) errorf(format string, args ...any) {
	if l == nil {
		return
	}
	fmt.Fprintf(l.errors, "%s - ", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(l.errors, format+"\n", args...)
}

func (l *runLogs) close() {
	if l == nil {
		return
	}
	l.missingf("=== Processing session ended ===")
	l.errorf("=== Processing session ended ===")
	l.missing.Close()
	l.errors.Close()
}
