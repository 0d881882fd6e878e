package profile

import "errors"

// Sentinel errors reported by generation passes. They are always returned
// wrapped with the offending relative path, so callers should test with
// errors.Is.
var (
	// ErrForeignEntry means a cleanup pass found something in a destination
	// directory that no generation pass could have created. The destination
	// is assumed to hold only generated artifacts, so this aborts the run
	// instead of deleting what might be user data.
	ErrForeignEntry = errors.New("destination contains a foreign entry")

	// ErrCrossDirRename means a selection function renamed an entry into a
	// different destination directory than its siblings.
	ErrCrossDirRename = errors.New("renaming across directories is not supported")

	// ErrDuplicateDestination means two distinct source paths resolved to
	// the same destination path within one generation pass.
	ErrDuplicateDestination = errors.New("duplicate destination path")

	// ErrNameCollision means two entries in one directory sanitize to the
	// same case-folded filename.
	ErrNameCollision = errors.New("sanitizing would create duplicate file")
)
