//go:build !windows

package organize

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// TestMoveFile_CrossDeviceFallback forces the first rename to report EXDEV
// so the copy+rename path runs, then lets the temp-file rename through.
func TestMoveFile_CrossDeviceFallback(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(src, []byte("pixels"), 0o600); err != nil {
		t.Fatal(err)
	}
	stamp := time.Unix(1562768659, 0)
	if err := os.Chtimes(src, stamp, stamp); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out", "photo.jpg")

	orig := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		if oldpath == src {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
		}
		return os.Rename(oldpath, newpath)
	}
	defer func() { renameFunc = orig }()

	if err := MoveFile(src, dst, testCfg(dir)); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "pixels" {
		t.Fatalf("destination wrong: %q, %v", data, err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600 preserved", info.Mode().Perm())
	}
	if !info.ModTime().Equal(stamp) {
		t.Fatalf("mtime = %v, want %v preserved across devices", info.ModTime(), stamp)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source must be gone after the fallback move")
	}

	// No temp file may linger beside the destination.
	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("leftover files in destination dir: %v", entries)
	}
}
