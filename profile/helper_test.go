package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeFile creates a file (and its parents) with some content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o777))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o666))
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o777))
}

// setTimes pins a path's mtime so stat-mirroring assertions compare
// something other than "just now".
func setTimes(t *testing.T, path string, sec int64) {
	t.Helper()
	ts := time.Unix(sec, 0)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

// preservedAttrs returns what generation is expected to preserve for an
// unchanged file or directory: permission bits and modification time.
func preservedAttrs(t *testing.T, path string) (os.FileMode, time.Time) {
	t.Helper()
	info, err := os.Lstat(path)
	require.NoError(t, err)
	return info.Mode().Perm(), info.ModTime()
}

// requireSameAttrs asserts dst mirrors src's preserved attributes.
func requireSameAttrs(t *testing.T, src, dst string) {
	t.Helper()
	srcMode, srcTime := preservedAttrs(t, src)
	dstMode, dstTime := preservedAttrs(t, dst)
	require.Equal(t, srcMode, dstMode, "mode of %s", dst)
	require.True(t, srcTime.Equal(dstTime), "mtime of %s: %v != %v", dst, srcTime, dstTime)
}

// symlinkPointee resolves a symlink's target to an absolute path.
func symlinkPointee(t *testing.T, path string) string {
	t.Helper()
	target, err := os.Readlink(path)
	require.NoError(t, err)
	abs, err := filepath.Abs(filepath.Join(filepath.Dir(path), target))
	require.NoError(t, err)
	return abs
}

// requireLinksTo asserts link is a symlink resolving to target.
func requireLinksTo(t *testing.T, link, target string) {
	t.Helper()
	info, err := os.Lstat(link)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&os.ModeSymlink, "%s is not a symlink", link)
	abs, err := filepath.Abs(target)
	require.NoError(t, err)
	require.Equal(t, abs, symlinkPointee(t, link))
}

// listNames returns the sorted entry names of a directory.
func listNames(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(des))
	for _, de := range des {
		names = append(names, de.Name())
	}
	return names
}

// keepEverything is a filter selection that passes all entries through
// unchanged.
func keepEverything(_ *FilterProfile, _, _ string, entries []*Entry) ([]Selection, error) {
	selected := make([]Selection, 0, len(entries))
	for _, entry := range entries {
		selected = append(selected, Selection{Entry: entry})
	}
	return selected, nil
}
