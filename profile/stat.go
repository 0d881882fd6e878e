package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// copyStat copies the metadata that generation preserves (permission bits
// and modification time) from src onto dst. The modification time matters:
// it is the staleness signal for the next incremental run.
func copyStat(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// FixDirStats copies directory metadata (mode, modification time) from the
// parent's tree onto p's tree for every destination directory whose
// relative path also exists in the source. Directory creation cannot
// reproduce the original timestamps, so this runs as a post-pass.
//
// It only applies to variants whose directories keep their source-relative
// paths; destination directories with no source counterpart are skipped.
func FixDirStats(p Profile) error {
	srcTop := p.base().parentDir()
	return Scan(p.TopDir(), DirFirst, func(rel string, entry *Entry) error {
		if !entry.IsDir() {
			return nil
		}
		src := filepath.Join(srcTop, rel)
		info, err := os.Stat(src)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := copyStat(src, entry.Path()); err != nil {
			return fmt.Errorf("fixing stats of %s: %w", rel, err)
		}
		return nil
	})
}
