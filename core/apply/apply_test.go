package apply

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"

	"github.com/axatjpr/photometa-restore/core"
)

func testCfg() core.Config {
	cfg := core.DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestApply_TimestampOnlyFormat(t *testing.T) {
	// A video container gets filesystem timestamps and nothing else;
	// that is a success, not a failure.
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	data := []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 0, 0}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	rec := core.SidecarRecord{
		Title:     "clip.mp4",
		TakenUnix: 1562768659,
		Geo:       core.GeoData{Latitude: 1, Longitude: 2},
	}
	ap, err := Apply(path, rec, testCfg())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !ap.FileTimes || ap.EmbedDate || ap.EmbedGPS || ap.EmbedError != "" {
		t.Fatalf("unexpected AppliedFields: %+v", ap)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.ModTime().Unix(); got != rec.TakenUnix {
		t.Fatalf("mtime = %d, want %d", got, rec.TakenUnix)
	}
}

func TestApply_JPEGPartialSuccessOnBadContent(t *testing.T) {
	// A .jpg whose magic says JPEG but whose structure rejects the EXIF
	// rewrite still gets timestamps: partial success with EmbedError set.
	dir := t.TempDir()
	path := filepath.Join(dir, "torn.jpg")
	// The extension routes this to the EXIF path, the content rejects it.
	if err := os.WriteFile(path, []byte("not a jpeg at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := core.SidecarRecord{Title: "torn.jpg", TakenUnix: 1000000000}
	ap, err := Apply(path, rec, testCfg())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !ap.FileTimes {
		t.Fatal("timestamps must still be applied")
	}
	if ap.EmbedDate || ap.EmbedError == "" {
		t.Fatalf("want a recorded embed failure, got %+v", ap)
	}
}

func TestApply_NoTimestampLeavesTimesAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	before, _ := os.Stat(path)

	ap, err := Apply(path, core.SidecarRecord{Title: "note.txt"}, testCfg())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if ap.FileTimes {
		t.Fatal("no timestamp in record, none should be applied")
	}
	after, _ := os.Stat(path)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("mtime changed without a record timestamp")
	}
}

func TestApply_MissingFile(t *testing.T) {
	_, err := Apply(filepath.Join(t.TempDir(), "absent.jpg"), core.SidecarRecord{Title: "absent.jpg", TakenUnix: 1}, testCfg())
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestWriteID3_SetsFrames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	// Bare MPEG frame sync plus padding, no existing tag.
	data := append([]byte{0xFF, 0xFB, 0x90, 0x00}, make([]byte, 60)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	rec := core.SidecarRecord{
		Title:       "song.mp3",
		Description: "from the old phone",
		TakenUnix:   time.Date(2019, 7, 10, 0, 0, 0, 0, time.UTC).Unix(),
	}
	if err := writeID3(path, rec); err != nil {
		t.Fatalf("writeID3: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	defer tag.Close()
	if got := tag.Title(); got != "song.mp3" {
		t.Fatalf("Title = %q", got)
	}
	if got := tag.GetTextFrame(tag.CommonID("Year")).Text; got != "2019" {
		t.Fatalf("Year = %q, want 2019", got)
	}
}
