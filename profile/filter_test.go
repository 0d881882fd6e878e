package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// selectCall records one invocation of a filter selection function.
type selectCall struct {
	srcRel string
	dstRel string
}

// recordingSelect wraps a FilterSelectFunc so tests can assert call order.
func recordingSelect(calls *[]selectCall, fn FilterSelectFunc) FilterSelectFunc {
	return func(p *FilterProfile, srcRel, dstRel string, entries []*Entry) ([]Selection, error) {
		*calls = append(*calls, selectCall{srcRel: srcRel, dstRel: dstRel})
		return fn(p, srcRel, dstRel, entries)
	}
}

func selectNothing(_ *FilterProfile, _, _ string, _ []*Entry) ([]Selection, error) {
	return nil, nil
}

func TestFilterCleanRemovesGeneratedArtifacts(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mkdir(t, filepath.Join(dst, "dir", "dir"))
	require.NoError(t, os.Symlink("/dev/null", filepath.Join(dst, "dir", "dir", "file")))
	require.NoError(t, os.Symlink("/dev/null", filepath.Join(dst, "file")))

	root := NewRootProfile(src)
	p := NewFilterProfile(dst, root, keepEverything)

	require.NoError(t, p.Generate())
	require.Empty(t, listNames(t, dst))
}

func TestFilterCleanRejectsForeignFile(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(dst, "precious"), "user data")

	root := NewRootProfile(src)
	p := NewFilterProfile(dst, root, keepEverything)

	err := p.Generate()
	require.ErrorIs(t, err, ErrForeignEntry)
	require.ErrorContains(t, err, "precious")

	info, statErr := os.Lstat(filepath.Join(dst, "precious"))
	require.NoError(t, statErr)
	require.True(t, info.Mode().IsRegular())
}

func TestFilterEmptySource(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	root := NewRootProfile(src)
	var calls []selectCall
	p := NewFilterProfile(dst, root, recordingSelect(&calls, selectNothing))

	require.NoError(t, p.Generate())
	require.Equal(t, []selectCall{{srcRel: "", dstRel: ""}}, calls)
	require.Empty(t, listNames(t, dst))
}

func TestFilterSelectNone(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "dir", "dir", "file"), "")
	writeFile(t, filepath.Join(src, "file"), "")

	root := NewRootProfile(src)
	var calls []selectCall
	p := NewFilterProfile(dst, root, recordingSelect(&calls, selectNothing))

	require.NoError(t, p.Generate())
	require.Equal(t, []selectCall{{srcRel: "", dstRel: ""}}, calls)
	require.Empty(t, listNames(t, dst))
}

func TestFilterSelectAll(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "dir", "dir", "file"), "")
	writeFile(t, filepath.Join(src, "file"), "")
	setTimes(t, filepath.Join(src, "dir", "dir"), 0)
	setTimes(t, filepath.Join(src, "dir"), 0)

	root := NewRootProfile(src)
	var calls []selectCall
	p := NewFilterProfile(dst, root, recordingSelect(&calls, keepEverything))

	require.NoError(t, p.Generate())

	require.Equal(t, []selectCall{
		{srcRel: "", dstRel: ""},
		{srcRel: "dir", dstRel: "dir"},
		{srcRel: filepath.Join("dir", "dir"), dstRel: filepath.Join("dir", "dir")},
	}, calls)

	require.ElementsMatch(t, []string{"dir", "file"}, listNames(t, dst))
	require.Equal(t, []string{"dir"}, listNames(t, filepath.Join(dst, "dir")))
	require.Equal(t, []string{"file"}, listNames(t, filepath.Join(dst, "dir", "dir")))

	requireSameAttrs(t, filepath.Join(src, "dir"), filepath.Join(dst, "dir"))
	requireSameAttrs(t, filepath.Join(src, "dir", "dir"), filepath.Join(dst, "dir", "dir"))

	requireLinksTo(t, filepath.Join(dst, "file"), filepath.Join(src, "file"))
	requireLinksTo(t,
		filepath.Join(dst, "dir", "dir", "file"),
		filepath.Join(src, "dir", "dir", "file"))
}

func TestFilterSelectedDirWithoutContentsIsNotCreated(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "dir", "file"), "")

	root := NewRootProfile(src)
	var calls []selectCall
	p := NewFilterProfile(dst, root, recordingSelect(&calls,
		func(p *FilterProfile, srcRel, dstRel string, entries []*Entry) ([]Selection, error) {
			if srcRel == "" {
				return keepEverything(p, srcRel, dstRel, entries)
			}
			return nil, nil
		}))

	require.NoError(t, p.Generate())
	require.Equal(t, []selectCall{
		{srcRel: "", dstRel: ""},
		{srcRel: "dir", dstRel: "dir"},
	}, calls)
	require.Empty(t, listNames(t, dst))
}

func TestFilterRename(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "dir", "dir", "file"), "")
	writeFile(t, filepath.Join(src, "dir", "file"), "")
	writeFile(t, filepath.Join(src, "file"), "")
	setTimes(t, filepath.Join(src, "dir", "dir"), 0)
	setTimes(t, filepath.Join(src, "dir"), 0)

	root := NewRootProfile(src)
	var calls []selectCall
	selectFn := func(p *FilterProfile, srcRel, dstRel string, entries []*Entry) ([]Selection, error) {
		var selected []Selection
		for _, entry := range entries {
			switch {
			case srcRel == "" && entry.Name() == "dir":
				selected = append(selected, Selection{Entry: entry, Dst: "dir.new"})
			case srcRel == "" && entry.Name() == "file":
				selected = append(selected, Selection{Entry: entry, Dst: "file.new"})
			case srcRel == "dir" && entry.Name() == "dir":
				selected = append(selected, Selection{Entry: entry})
			case srcRel == "dir" && entry.Name() == "file":
				selected = append(selected, Selection{
					Entry: entry,
					Dst:   filepath.Join("dir.new", "file.new"),
				})
			case srcRel == filepath.Join("dir", "dir") && entry.Name() == "file":
				selected = append(selected, Selection{Entry: entry})
			default:
				t.Fatalf("unexpected entry %s in %q", entry.Name(), srcRel)
			}
		}
		return selected, nil
	}
	p := NewFilterProfile(dst, root, recordingSelect(&calls, selectFn))

	require.NoError(t, p.Generate())

	require.Equal(t, []selectCall{
		{srcRel: "", dstRel: ""},
		{srcRel: "dir", dstRel: "dir.new"},
		{srcRel: filepath.Join("dir", "dir"), dstRel: filepath.Join("dir.new", "dir")},
	}, calls)

	require.ElementsMatch(t, []string{"dir.new", "file.new"}, listNames(t, dst))
	require.ElementsMatch(t, []string{"dir", "file.new"}, listNames(t, filepath.Join(dst, "dir.new")))
	require.Equal(t, []string{"file"}, listNames(t, filepath.Join(dst, "dir.new", "dir")))

	requireSameAttrs(t, filepath.Join(src, "dir"), filepath.Join(dst, "dir.new"))
	requireSameAttrs(t, filepath.Join(src, "dir", "dir"), filepath.Join(dst, "dir.new", "dir"))

	requireLinksTo(t, filepath.Join(dst, "file.new"), filepath.Join(src, "file"))
	requireLinksTo(t,
		filepath.Join(dst, "dir.new", "file.new"),
		filepath.Join(src, "dir", "file"))
	requireLinksTo(t,
		filepath.Join(dst, "dir.new", "dir", "file"),
		filepath.Join(src, "dir", "dir", "file"))
}

func TestFilterRenameAcrossDirsRejected(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mkdir(t, filepath.Join(src, "dir"))
	writeFile(t, filepath.Join(src, "file"), "")

	root := NewRootProfile(src)
	p := NewFilterProfile(dst, root,
		func(p *FilterProfile, srcRel, dstRel string, entries []*Entry) ([]Selection, error) {
			var selected []Selection
			for _, entry := range entries {
				if entry.Name() == "file" {
					selected = append(selected, Selection{
						Entry: entry,
						Dst:   filepath.Join("dir", "file"),
					})
				} else {
					selected = append(selected, Selection{Entry: entry})
				}
			}
			return selected, nil
		})

	err := p.Generate()
	require.ErrorIs(t, err, ErrCrossDirRename)
	require.ErrorContains(t, err, "file")
}

func TestFilterRelativeSymlinks(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")
	writeFile(t, filepath.Join(src, "file"), "")
	mkdir(t, dst)

	root := NewRootProfile(src)
	p := NewFilterProfile(dst, root, keepEverything)
	require.NoError(t, p.Generate())

	// The link target must be relative, so the pair of trees can be
	// relocated together.
	target, err := os.Readlink(filepath.Join(dst, "file"))
	require.NoError(t, err)
	require.False(t, filepath.IsAbs(target))
	require.Equal(t, filepath.Join("..", "src", "file"), target)
}
