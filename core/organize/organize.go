// Package organize relocates processed media into the destination trees.
// Moves are atomic-or-nothing: a failure leaves the source file where it
// was.
package organize

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/axatjpr/photometa-restore/core"
)

// Swappable for tests that need to simulate rename failures.
var renameFunc = os.Rename

// EnsureTrees creates the matched and raw-originals roots under the source
// directory. Creating an existing directory is not an error.
func EnsureTrees(cfg core.Config) (matched, raw string, err error) {
	matched = filepath.Join(cfg.SourceDir, cfg.MatchedDirName)
	raw = filepath.Join(cfg.SourceDir, cfg.EditedRawDirName)
	if err := os.MkdirAll(matched, 0o755); err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(raw, 0o755); err != nil {
		return "", "", err
	}
	return matched, raw, nil
}

// MoveFile moves src to dst, creating destination directories lazily and
// retrying in-use failures. Cross-device moves fall back to copy+rename so
// the visible destination file appears whole or not at all.
func MoveFile(src, dst string, cfg core.Config) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return core.WithRetry(cfg.MoveRetries, cfg.RetryDelay, func() error {
		return move(src, dst)
	})
}

func move(src, dst string) error {
	err := renameFunc(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}
	return copyThenRemove(src, dst)
}

// copyThenRemove copies src into a temp file beside dst, renames it into
// place, then removes src. Any failure before the final rename cleans up
// the temp file and leaves src untouched.
func copyThenRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return err
	}
	if err := tmp.Chmod(info.Mode()); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// The apply step already stamped the restored times on src; a plain
	// copy would reset them to now.
	if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	if err := renameFunc(tmpName, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// UniqueName returns name, or name with a "(N)" counter inserted before the
// extension when name is already taken, counting up until free.
func UniqueName(name string, taken map[string]struct{}) string {
	if _, ok := taken[name]; !ok {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		cand := fmt.Sprintf("%s(%d)%s", base, n, ext)
		if _, ok := taken[cand]; !ok {
			return cand
		}
	}
}
