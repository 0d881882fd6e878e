package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Selection is one entry a FilterSelectFunc decided to keep. Dst, when
// non-empty, is the full destination-relative path the entry should appear
// at; it must stay inside the destination directory currently being
// processed. An empty Dst keeps the entry's own name.
type Selection struct {
	Entry *Entry
	Dst   string
}

// FilterSelectFunc decides which entries of one source directory appear in
// the destination. It is called once per directory with the source-relative
// and destination-relative paths ("" for the top) and the directory's
// entries, and returns the subset to keep. Kept directories are recursed
// into; kept files become symlinks to the originals.
//
// Renames must not land in a different destination directory than their
// siblings, and must be unique per directory on a case-insensitive target.
type FilterSelectFunc func(p *FilterProfile, srcRelDir, dstRelDir string, entries []*Entry) ([]Selection, error)

// FilterProfile derives a destination tree containing only directories and
// symlinks to the parent's files: a filtered, optionally renamed view with
// no content copies.
type FilterProfile struct {
	node
	selectFn FilterSelectFunc
}

// NewFilterProfile creates a filter profile deriving from parent into
// topDir.
func NewFilterProfile(topDir string, parent Profile, selectFn FilterSelectFunc) *FilterProfile {
	requireParent("Filter", parent)
	p := &FilterProfile{selectFn: selectFn}
	p.init(p, "filter", topDir, parent)
	return p
}

// Generate clears the destination and re-derives it from the parent.
func (p *FilterProfile) Generate() error {
	if err := os.MkdirAll(p.topDir, 0o777); err != nil {
		return err
	}
	if err := p.clean(); err != nil {
		return err
	}
	return p.filterDir("", "")
}

// clean empties the destination directory. Only symlinks and directories
// are removed; anything else means the destination holds files this
// profile does not own, which aborts generation.
func (p *FilterProfile) clean() error {
	return Scan(p.topDir, DirLast, func(rel string, entry *Entry) error {
		if !entry.IsSymlink() && !entry.IsDir() {
			return fmt.Errorf("cannot clean %s: %w", rel, ErrForeignEntry)
		}
		return os.Remove(entry.Path())
	})
}

func (p *FilterProfile) filterDir(srcRel, dstRel string) error {
	srcDir := filepath.Join(p.parentDir(), srcRel)
	entries, err := readEntries(srcDir, srcRel)
	if err != nil {
		return err
	}

	selected, err := p.selectFn(p, srcRel, dstRel, entries)
	if err != nil {
		return err
	}

	for _, sel := range selected {
		dst := sel.Dst
		if dst == "" {
			dst = filepath.Join(dstRel, sel.Entry.Name())
		}
		if relParent(dst) != dstRel {
			return fmt.Errorf("renaming %s to %s: %w",
				sel.Entry.RelPath(), dst, ErrCrossDirRename)
		}

		if sel.Entry.IsDir() {
			if err := p.filterDir(sel.Entry.RelPath(), dst); err != nil {
				return err
			}
			// The destination directory only exists if something beneath
			// it was kept; mirror the source stats when it does.
			dstAbs := filepath.Join(p.topDir, dst)
			if info, err := os.Lstat(dstAbs); err == nil && info.IsDir() {
				if err := copyStat(sel.Entry.Path(), dstAbs); err != nil {
					return fmt.Errorf("fixing stats of %s: %w", dst, err)
				}
			}
		} else {
			if err := p.link(sel.Entry, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// link creates a relative symlink at the destination-relative path dst
// pointing at the source entry, creating enclosing directories on demand.
func (p *FilterProfile) link(entry *Entry, dst string) error {
	dstAbs := filepath.Join(p.topDir, dst)
	if err := os.MkdirAll(filepath.Dir(dstAbs), 0o777); err != nil {
		return err
	}
	if err := relSymlink(entry.Path(), dstAbs); err != nil {
		return fmt.Errorf("linking %s: %w", dst, err)
	}
	p.logger.Debug("linked", zap.String("dst", dst))
	return nil
}

// relParent returns the directory part of a relative path, normalized so
// that a top-level name has parent "".
func relParent(rel string) string {
	dir := filepath.Dir(rel)
	if dir == "." {
		return ""
	}
	return dir
}

// relSymlink symlinks dst to src using a target relative to dst's
// directory, so the derived tree stays valid if relocated alongside its
// source.
func relSymlink(src, dst string) error {
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	target, err := filepath.Rel(filepath.Dir(dstAbs), srcAbs)
	if err != nil {
		return err
	}
	return os.Symlink(target, dst)
}
