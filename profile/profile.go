package profile

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Profile is one node in the derivation tree. The variant set is closed:
// RootProfile, FilterProfile, ConvertProfile, and SanitizeProfile.
type Profile interface {
	// TopDir returns the directory this profile owns. For a root profile
	// it is the original source directory; for every other variant it is
	// the destination the profile generates into.
	TopDir() string

	// Parent returns the profile this one derives from, or nil for a root.
	Parent() Profile

	// Children returns the derived profiles, in creation order. That order
	// is also the generation order.
	Children() []Profile

	// Generate regenerates this profile's directory from its parent's.
	// It assumes the parent is already up to date.
	Generate() error

	// GenerateAll generates this profile and then each child, depth-first.
	// A child's generation starts only after its parent's has returned.
	GenerateAll() error

	// PrintAll writes the subtree rooted at this profile to w, one profile
	// per line, indented by depth.
	PrintAll(w io.Writer)

	base() *node
}

var (
	_ Profile = (*RootProfile)(nil)
	_ Profile = (*FilterProfile)(nil)
	_ Profile = (*ConvertProfile)(nil)
	_ Profile = (*SanitizeProfile)(nil)
)

// node carries the tree state shared by all profile variants. Children are
// owned by their parent; the parent reference is a non-owning back-pointer
// used only for path resolution.
type node struct {
	self     Profile
	kind     string
	topDir   string
	parent   Profile
	children []Profile
	logger   *zap.Logger
}

func (n *node) init(self Profile, kind, topDir string, parent Profile) {
	n.self = self
	n.kind = kind
	n.topDir = filepath.Clean(topDir)
	n.parent = parent

	logger := zap.NewNop()
	if parent != nil {
		logger = parent.base().logger
	}
	n.logger = logger.With(zap.String("profile", n.kind+":"+n.topDir))

	if parent != nil {
		pb := parent.base()
		pb.children = append(pb.children, self)
	}
}

func (n *node) base() *node { return n }

func (n *node) TopDir() string { return n.topDir }

func (n *node) Parent() Profile { return n.parent }

func (n *node) Children() []Profile { return n.children }

func (n *node) String() string {
	return fmt.Sprintf("%s(%s)", n.kind, n.topDir)
}

// parentDir returns the parent's directory. Calling it on a root profile
// is a misuse: a root has no parent to read from.
func (n *node) parentDir() string {
	if n.parent == nil {
		panic("profile: " + n.kind + " profile has no parent to derive from")
	}
	return n.parent.TopDir()
}

func (n *node) GenerateAll() error {
	return n.generateAll(0)
}

func (n *node) generateAll(depth int) error {
	n.logger.Info("generating", zap.Int("depth", depth))
	if err := n.self.Generate(); err != nil {
		return fmt.Errorf("generating %s: %w", n.topDir, err)
	}
	for _, child := range n.children {
		if err := child.base().generateAll(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

func (n *node) PrintAll(w io.Writer) {
	n.printAll(w, 0)
}

func (n *node) printAll(w io.Writer, depth int) {
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), n)
	for _, child := range n.children {
		child.base().printAll(w, depth+1)
	}
}

// RootProfile wraps a directory of pre-existing, externally managed files.
// It never derives anything; Generate is a no-op.
type RootProfile struct {
	node
}

// NewRootProfile creates the root of a profile tree around an existing
// source directory.
func NewRootProfile(topDir string) *RootProfile {
	p := &RootProfile{}
	p.init(p, "root", topDir, nil)
	return p
}

// SetLogger attaches a logger to the tree. Call it before creating child
// profiles so they inherit it.
func (p *RootProfile) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p.logger = logger.With(zap.String("profile", p.kind+":"+p.topDir))
}

// Generate is a no-op: a root profile's files are managed externally.
func (p *RootProfile) Generate() error { return nil }

// requireParent guards derived-profile constructors. A derived profile
// reads from its parent, so building one without a parent is a programmer
// error, not a runtime condition.
func requireParent(kind string, parent Profile) {
	if parent == nil {
		panic("profile: New" + kind + "Profile requires a parent profile")
	}
}
