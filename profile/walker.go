package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
)

// Order controls where a directory appears relative to its contents during
// a Scan.
type Order int

const (
	// DirFirst yields a directory before its contents. Required when
	// creating directories top-down.
	DirFirst Order = iota

	// DirLast yields a directory after its contents. Required when
	// deleting directories bottom-up.
	DirLast
)

// Entry is a handle on one file, directory, or symlink found during a Scan
// or handed to a selection function.
type Entry struct {
	name    string
	relPath string
	path    string
	mode    os.FileMode
}

// Name returns the entry's base name.
func (e *Entry) Name() string { return e.name }

// RelPath returns the entry's path relative to the scanned directory.
func (e *Entry) RelPath() string { return e.relPath }

// Path returns the entry's full path.
func (e *Entry) Path() string { return e.path }

// IsDir reports whether the entry is a directory. Symlinks to directories
// are not directories.
func (e *Entry) IsDir() bool { return e.mode.IsDir() }

// IsSymlink reports whether the entry is a symbolic link.
func (e *Entry) IsSymlink() bool { return e.mode&os.ModeSymlink != 0 }

// Stat returns the entry's metadata without following symlinks.
func (e *Entry) Stat() (os.FileInfo, error) { return os.Lstat(e.path) }

// ScanFunc is called once per entry found beneath the scanned directory.
// Returning an error stops the scan.
type ScanFunc func(relPath string, entry *Entry) error

// Scan walks every file and directory strictly beneath topDir, calling fn
// exactly once per entry with its path relative to topDir. topDir itself is
// not reported. Symlinks are reported as leaves and never followed. Sibling
// order is the raw directory-listing order; callers must not depend on it.
func Scan(topDir string, order Order, fn ScanFunc) error {
	topDir = filepath.Clean(topDir)

	emit := func(osPathname string, de *godirwalk.Dirent) error {
		if osPathname == topDir {
			return nil
		}
		rel, err := filepath.Rel(topDir, osPathname)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", osPathname, err)
		}
		return fn(rel, &Entry{
			name:    de.Name(),
			relPath: rel,
			path:    osPathname,
			mode:    de.ModeType(),
		})
	}

	opts := &godirwalk.Options{Unsorted: true}
	if order == DirFirst {
		opts.Callback = emit
	} else {
		opts.Callback = func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			return emit(osPathname, de)
		}
		opts.PostChildrenCallback = emit
	}

	return godirwalk.Walk(topDir, opts)
}

// readEntries lists one directory as Entry handles, with relative paths
// computed against relDir.
func readEntries(dir, relDir string) ([]*Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	entries := make([]*Entry, 0, len(des))
	for _, de := range des {
		entries = append(entries, &Entry{
			name:    de.Name(),
			relPath: filepath.Join(relDir, de.Name()),
			path:    filepath.Join(dir, de.Name()),
			mode:    de.Type(),
		})
	}
	return entries, nil
}
