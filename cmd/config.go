package cmd

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cohydra/cohydra/profile"
)

// Config describes a whole profile tree.
type Config struct {
	// Source is the directory of original files the tree derives from.
	Source string `mapstructure:"source"`

	// Workers bounds the conversion fan-out of convert profiles.
	Workers int `mapstructure:"workers"`

	Profiles []ProfileConfig `mapstructure:"profiles"`
}

// ProfileConfig describes one derived profile. Profiles must be declared
// before any profile that names them as parent; an empty parent means the
// source directory itself.
type ProfileConfig struct {
	Name   string `mapstructure:"name"`
	Type   string `mapstructure:"type"` // filter | convert | sanitize
	Path   string `mapstructure:"path"`
	Parent string `mapstructure:"parent"`

	// Include lists glob patterns for filter profiles; files whose name
	// matches any pattern are kept, directories are always recursed.
	// Empty means keep everything.
	Include []string `mapstructure:"include"`

	// Convert maps source extensions to destination extensions for
	// convert profiles, e.g. ".flac" -> ".mp3". Unmapped files are
	// symlinked.
	Convert map[string]string `mapstructure:"convert"`

	// Command is the converter argv for convert profiles. The
	// placeholders {src} and {dst} are replaced per file.
	Command []string `mapstructure:"command"`
}

// loadConfig unmarshals the viper state into a Config.
func loadConfig() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Source == "" {
		return Config{}, fmt.Errorf("config: source directory is required")
	}
	return cfg, nil
}

// buildTree turns a Config into a profile tree rooted at the source
// directory.
func buildTree(cfg Config, logger *zap.Logger) (*profile.RootProfile, error) {
	root := profile.NewRootProfile(cfg.Source)
	root.SetLogger(logger)

	byName := map[string]profile.Profile{"": root}

	for _, pc := range cfg.Profiles {
		if pc.Name == "" {
			return nil, fmt.Errorf("config: profile for %q needs a name", pc.Path)
		}
		if pc.Path == "" {
			return nil, fmt.Errorf("config: profile %q needs a path", pc.Name)
		}
		if _, ok := byName[pc.Name]; ok {
			return nil, fmt.Errorf("config: duplicate profile name %q", pc.Name)
		}
		parent, ok := byName[pc.Parent]
		if !ok {
			return nil, fmt.Errorf("config: profile %q: unknown parent %q (parents must be declared first)", pc.Name, pc.Parent)
		}

		var p profile.Profile
		switch pc.Type {
		case "filter":
			p = profile.NewFilterProfile(pc.Path, parent, globSelect(pc.Include))
		case "sanitize":
			p = profile.NewSanitizeProfile(pc.Path, parent)
		case "convert":
			convertFn, err := commandConverter(pc.Command)
			if err != nil {
				return nil, fmt.Errorf("config: profile %q: %w", pc.Name, err)
			}
			cp := profile.NewConvertProfile(pc.Path, parent, extSelect(pc.Convert), convertFn)
			cp.Workers = cfg.Workers
			p = cp
		default:
			return nil, fmt.Errorf("config: profile %q: unknown type %q", pc.Name, pc.Type)
		}
		byName[pc.Name] = p
	}

	return root, nil
}

// globSelect keeps directories and every file whose name matches one of
// the patterns. No patterns means keep everything.
func globSelect(patterns []string) profile.FilterSelectFunc {
	return func(_ *profile.FilterProfile, _, _ string, entries []*profile.Entry) ([]profile.Selection, error) {
		var selected []profile.Selection
		for _, entry := range entries {
			if entry.IsDir() || matchesAny(patterns, entry.Name()) {
				selected = append(selected, profile.Selection{Entry: entry})
			}
		}
		return selected, nil
	}
}

func matchesAny(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// extSelect converts files whose extension is mapped, keeping the rest as
// symlinks.
func extSelect(mapping map[string]string) profile.ConvertSelectFunc {
	normalized := make(map[string]string, len(mapping))
	for from, to := range mapping {
		normalized[dotExt(from)] = dotExt(to)
	}
	return func(_ *profile.ConvertProfile, srcRel string) (string, error) {
		ext := filepath.Ext(srcRel)
		to, ok := normalized[ext]
		if !ok {
			return "", nil
		}
		return strings.TrimSuffix(srcRel, ext) + to, nil
	}
}

func dotExt(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

// commandConverter runs an external command per file, substituting the
// {src} and {dst} placeholders. Conversion routines run concurrently, so
// the command must be safe to run in parallel on independent files.
func commandConverter(argv []string) (profile.ConvertFunc, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("convert profile needs a command")
	}
	var hasSrc, hasDst bool
	for _, arg := range argv {
		hasSrc = hasSrc || strings.Contains(arg, "{src}")
		hasDst = hasDst || strings.Contains(arg, "{dst}")
	}
	if !hasSrc || !hasDst {
		return nil, fmt.Errorf("command must mention both {src} and {dst}")
	}

	return func(_ *profile.ConvertProfile, src, dst string) error {
		args := make([]string, len(argv))
		for i, arg := range argv {
			arg = strings.ReplaceAll(arg, "{src}", src)
			arg = strings.ReplaceAll(arg, "{dst}", dst)
			args[i] = arg
		}
		out, err := exec.Command(args[0], args[1:]...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
		}
		return nil
	}, nil
}
