package profile

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// SanitizeProfile is a filter profile with a fixed selection function: it
// keeps every entry, rewriting names that are illegal on at least one
// common filesystem (FAT, NTFS). The result is a tree safe to copy onto
// such a filesystem, with every file still a symlink to the original.
type SanitizeProfile struct {
	FilterProfile
}

// NewSanitizeProfile creates a sanitize profile deriving from parent into
// topDir.
func NewSanitizeProfile(topDir string, parent Profile) *SanitizeProfile {
	requireParent("Sanitize", parent)
	p := &SanitizeProfile{}
	p.selectFn = sanitizeSelect
	p.init(p, "sanitize", topDir, parent)
	return p
}

// sanitizeSelect keeps all entries, renaming where sanitization changed
// the name. Collisions are checked case-insensitively per directory, since
// the eventual target filesystem may be case-insensitive.
func sanitizeSelect(p *FilterProfile, srcRelDir, dstRelDir string, entries []*Entry) ([]Selection, error) {
	seen := make(map[string]string, len(entries))
	selected := make([]Selection, 0, len(entries))

	for _, entry := range entries {
		name := sanitizeName(entry.Name())

		key := foldName(name)
		if other, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s and %s both map to %s",
				ErrNameCollision,
				filepath.Join(srcRelDir, other),
				entry.RelPath(),
				filepath.Join(dstRelDir, name))
		}
		seen[key] = entry.Name()

		sel := Selection{Entry: entry}
		if name != entry.Name() {
			sel.Dst = filepath.Join(dstRelDir, name)
		}
		selected = append(selected, sel)
	}
	return selected, nil
}

// reservedNames are the historical DOS device names that Windows still
// refuses as filename stems, regardless of extension or case.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// sanitizeName rewrites a single filename so it is legal on FAT and NTFS:
// control characters are dropped (tab, newline, and carriage return become
// underscores), reserved punctuation becomes underscores, reserved device
// stems and dot-names get a trailing underscore, and a trailing period or
// space becomes an underscore.
func sanitizeName(name string) string {
	if name == "." || name == ".." {
		return name + "_"
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteByte('_')
		case r < 0x20 || r == 0x7f:
			// Other control characters are dropped entirely.
		case strings.ContainsRune(`"'*/:<>?\|`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	name = b.String()
	if name == "" {
		return "_"
	}

	stem, rest := name, ""
	if i := strings.IndexByte(name, '.'); i >= 0 {
		stem, rest = name[:i], name[i:]
	}
	if reservedNames[strings.ToUpper(stem)] {
		name = stem + "_" + rest
	}

	if last := name[len(name)-1]; last == '.' || last == ' ' {
		name = name[:len(name)-1] + "_"
	}
	return name
}

// foldName maps a filename to the key used for collision detection on a
// case-insensitive, normalization-insensitive target filesystem.
func foldName(name string) string {
	return cases.Fold().String(norm.NFC.String(name))
}
