package restore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/axatjpr/photometa-restore/core"
)

var minimalJPEG = []byte{0xFF, 0xD8, 0xFF, 0xD9}

func testCfg(root string) core.Config {
	cfg := core.DefaultConfig()
	cfg.SourceDir = root
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// seedTree builds a small takeout-shaped tree: a matched pair inside an
// album, an edited pair at the root, one orphan sidecar and one broken
// sidecar.
func seedTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "album", "photo.jpg"), minimalJPEG)
	writeFile(t, filepath.Join(root, "album", "photo.jpg.json"),
		[]byte(`{"title":"photo.jpg","photoTakenTime":{"timestamp":"1562768659"}}`))

	writeFile(t, filepath.Join(root, "vacation.jpg"), minimalJPEG)
	writeFile(t, filepath.Join(root, "vacation-edited.jpg"), minimalJPEG)
	writeFile(t, filepath.Join(root, "vacation-edited.json"),
		[]byte(`{"title":"vacation-edited.jpg","photoTakenTime":{"timestamp":"1562768659"}}`))

	writeFile(t, filepath.Join(root, "ghost.jpg.json"),
		[]byte(`{"title":"ghost.jpg","photoTakenTime":{"timestamp":"100"}}`))
	writeFile(t, filepath.Join(root, "bad.json"), []byte(`{"title": "broken`))

	return root
}

func TestRun_FullTree(t *testing.T) {
	root := seedTree(t)
	cfg := testCfg(root)

	rep, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rep.Outcomes) != 4 {
		t.Fatalf("got %d outcomes, want one per sidecar", len(rep.Outcomes))
	}
	s := rep.Summary
	if s.Matched != 2 || s.MissingMedia != 1 || s.MalformedSidecar != 1 {
		t.Fatalf("summary = %+v", s)
	}

	// Matched media moved into the destination tree, pre-edit original
	// set aside, sidecars consumed.
	moved := filepath.Join(root, "MatchedMedia", "album", "photo.jpg")
	info, err := os.Stat(moved)
	if err != nil {
		t.Fatalf("matched media not moved: %v", err)
	}
	if got := info.ModTime().Unix(); got != 1562768659 {
		t.Fatalf("mtime = %d, want sidecar timestamp", got)
	}
	if _, err := os.Stat(filepath.Join(root, "MatchedMedia", "vacation-edited.jpg")); err != nil {
		t.Fatalf("edited media not moved: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "EditedRaw", "vacation.jpg")); err != nil {
		t.Fatalf("pre-edit original not set aside: %v", err)
	}
	for _, gone := range []string{
		filepath.Join(root, "album", "photo.jpg.json"),
		filepath.Join(root, "vacation-edited.json"),
	} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("consumed sidecar still present: %s", gone)
		}
	}

	// Unresolved sidecars stay in place for the next run.
	for _, kept := range []string{
		filepath.Join(root, "ghost.jpg.json"),
		filepath.Join(root, "bad.json"),
	} {
		if _, err := os.Stat(kept); err != nil {
			t.Fatalf("unresolved sidecar removed: %s", kept)
		}
	}

	// The orphan shows up in the missing-files artifact.
	entries, err := os.ReadDir(filepath.Join(root, "logs"))
	if err != nil {
		t.Fatalf("logs dir: %v", err)
	}
	var missingLog string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "missing_files_") {
			missingLog = filepath.Join(root, "logs", e.Name())
		}
	}
	if missingLog == "" {
		t.Fatal("missing-files artifact not created")
	}
	data, err := os.ReadFile(missingLog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "ghost.jpg") {
		t.Fatalf("orphan not logged:\n%s", data)
	}

	// Outcome details for the matched album photo.
	var photo core.RestoreOutcome
	for _, out := range rep.Outcomes {
		if out.Sidecar == filepath.Join("album", "photo.jpg.json") {
			photo = out
		}
	}
	if photo.Kind != core.OutcomeMatched {
		t.Fatalf("photo outcome = %+v", photo)
	}
	if photo.Dest != filepath.Join("MatchedMedia", "album", "photo.jpg") {
		t.Fatalf("Dest = %q", photo.Dest)
	}
	if !photo.Applied.FileTimes || !photo.Applied.EmbedDate {
		t.Fatalf("Applied = %+v", photo.Applied)
	}
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	root := seedTree(t)
	cfg := testCfg(root)

	if _, err := New(cfg).Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	rep, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if rep.Summary.Matched != 0 {
		t.Fatalf("second run matched %d sidecars, want 0", rep.Summary.Matched)
	}
	// The leftovers are re-reported, not silently dropped.
	if rep.Summary.MissingMedia != 1 || rep.Summary.MalformedSidecar != 1 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	root := seedTree(t)
	cfg := testCfg(root)
	cfg.DryRun = true

	rep, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Summary.Matched != 2 || rep.Summary.MissingMedia != 1 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if !rep.DryRun {
		t.Fatal("report must carry the dry-run flag")
	}

	for _, p := range []string{"MatchedMedia", "EditedRaw", "logs"} {
		if _, err := os.Stat(filepath.Join(root, p)); !os.IsNotExist(err) {
			t.Fatalf("dry run created %s", p)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "album", "photo.jpg.json")); err != nil {
		t.Fatal("dry run must not consume sidecars")
	}
	if _, err := os.Stat(filepath.Join(root, "album", "photo.jpg")); err != nil {
		t.Fatal("dry run must not move media")
	}
}

func TestRun_Cancellation(t *testing.T) {
	root := seedTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := New(testCfg(root)).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rep == nil || len(rep.Outcomes) != 0 {
		t.Fatalf("cancelled run must return an empty report, got %+v", rep)
	}
}

func TestRun_MissingSourceDirIsFatal(t *testing.T) {
	cfg := testCfg(filepath.Join(t.TempDir(), "nope"))
	if _, err := New(cfg).Run(context.Background()); err == nil {
		t.Fatal("expected a fatal error for a missing source directory")
	}
}
