package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// ConvertSelectFunc decides what happens to one source file. It receives
// the file's source-relative path and returns the destination-relative path
// its converted form should appear at, or "" to keep the file as a symlink
// under its own relative path.
//
// The function must be deterministic for a given source tree and must not
// map two distinct source paths to the same destination path.
type ConvertSelectFunc func(p *ConvertProfile, srcRel string) (string, error)

// ConvertFunc produces the converted form of src at dst. It must be safe
// for concurrent invocation on independent files and must leave a complete,
// valid file at dst on success.
type ConvertFunc func(p *ConvertProfile, src, dst string) error

// ConvertStats counts what one generation pass did.
type ConvertStats struct {
	Converted int // files rebuilt by the conversion routine
	UpToDate  int // conversions skipped because the destination was current
	Relinked  int // files kept as symlinks
	Dirs      int // directories mirrored
	Removed   int // stale destination entries deleted by cleanup
}

// ConvertProfile derives a destination tree mirroring its parent where
// every file is either symlinked unchanged or replaced by the output of a
// conversion routine. Generation is incremental: a converted file is only
// rebuilt when its source modification time no longer matches the existing
// destination.
type ConvertProfile struct {
	node
	selectFn  ConvertSelectFunc
	convertFn ConvertFunc
	stats     ConvertStats

	// Workers bounds the conversion fan-out. Zero or negative means one
	// worker per CPU.
	Workers int
}

// NewConvertProfile creates a convert profile deriving from parent into
// topDir.
func NewConvertProfile(topDir string, parent Profile, selectFn ConvertSelectFunc, convertFn ConvertFunc) *ConvertProfile {
	requireParent("Convert", parent)
	p := &ConvertProfile{selectFn: selectFn, convertFn: convertFn}
	p.init(p, "convert", topDir, parent)
	return p
}

// Stats returns counters from the most recent Generate.
func (p *ConvertProfile) Stats() ConvertStats { return p.stats }

// convertTask is one unit of parallel work: a single source file to run
// through the conversion routine.
type convertTask struct {
	srcRel string
	dstRel string
}

// keepSet records the destination-relative paths a pass decided to retain.
// Cleanup removes everything else and nothing else.
type keepSet map[string]struct{}

func (k keepSet) addDir(rel string) {
	k[rel] = struct{}{}
}

// addFile records a file destination, rejecting duplicates: two sources
// writing one destination is a bug in the selection function.
func (k keepSet) addFile(rel string) error {
	if _, ok := k[rel]; ok {
		return fmt.Errorf("%s: %w", rel, ErrDuplicateDestination)
	}
	k[rel] = struct{}{}
	return nil
}

func (k keepSet) has(rel string) bool {
	_, ok := k[rel]
	return ok
}

// Generate mirrors the parent tree into the destination, converts what is
// stale, removes what the pass did not decide to keep, and finally mirrors
// directory metadata from the source.
func (p *ConvertProfile) Generate() error {
	p.stats = ConvertStats{}

	if err := os.MkdirAll(p.topDir, 0o777); err != nil {
		return err
	}

	keep, tasks, err := p.plan()
	if err != nil {
		return err
	}
	if err := p.runConversions(tasks); err != nil {
		return err
	}
	if err := p.clean(keep); err != nil {
		return err
	}

	p.logger.Info("generated",
		zap.Int("converted", p.stats.Converted),
		zap.Int("up_to_date", p.stats.UpToDate),
		zap.Int("relinked", p.stats.Relinked),
		zap.Int("removed", p.stats.Removed),
	)

	return FixDirStats(p)
}

// plan walks the source tree and decides, per entry, whether it maps to a
// mirrored directory, a fresh symlink, or a conversion task. It returns the
// keep set for cleanup and the stale conversions to run. No conversion work
// happens here; planning is strictly single-threaded.
func (p *ConvertProfile) plan() (keepSet, []convertTask, error) {
	keep := keepSet{}
	var tasks []convertTask

	err := Scan(p.parentDir(), DirFirst, func(rel string, entry *Entry) error {
		if entry.IsDir() {
			keep.addDir(rel)
			p.stats.Dirs++
			return p.mirrorDir(rel)
		}

		dst, err := p.selectFn(p, rel)
		if err != nil {
			return err
		}
		if dst == "" {
			if err := keep.addFile(rel); err != nil {
				return err
			}
			p.stats.Relinked++
			return p.relink(entry, rel)
		}

		dst = filepath.Clean(dst)
		if err := keep.addFile(dst); err != nil {
			return err
		}
		stale, err := p.isStale(entry, dst)
		if err != nil {
			return err
		}
		if !stale {
			p.stats.UpToDate++
			return nil
		}
		tasks = append(tasks, convertTask{srcRel: rel, dstRel: dst})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return keep, tasks, nil
}

// mirrorDir ensures the destination has a directory at the same relative
// path as the source directory, evicting whatever else sits there.
func (p *ConvertProfile) mirrorDir(rel string) error {
	dst := filepath.Join(p.topDir, rel)
	if info, err := os.Lstat(dst); err == nil && !info.IsDir() {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}
	return os.MkdirAll(dst, 0o777)
}

// relink replaces whatever occupies the destination with a fresh relative
// symlink to the source file. Symlinks are cheap, so there is no staleness
// check on this branch; it always re-links.
func (p *ConvertProfile) relink(entry *Entry, rel string) error {
	dst := filepath.Join(p.topDir, rel)
	if info, err := os.Lstat(dst); err == nil {
		if info.IsDir() {
			if err := os.RemoveAll(dst); err != nil {
				return err
			}
		} else if err := os.Remove(dst); err != nil {
			return err
		}
	}
	if err := relSymlink(entry.Path(), dst); err != nil {
		return fmt.Errorf("linking %s: %w", rel, err)
	}
	return nil
}

// isStale reports whether the destination at dstRel needs (re)conversion
// from the source entry, removing wrong-typed or outdated destinations on
// the way. Up to date means: a regular file whose modification time equals
// the source's exactly.
func (p *ConvertProfile) isStale(entry *Entry, dstRel string) (bool, error) {
	dst := filepath.Join(p.topDir, dstRel)
	dstInfo, err := os.Lstat(dst)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if dstInfo.IsDir() {
		return true, os.RemoveAll(dst)
	}

	if dstInfo.Mode().IsRegular() {
		srcInfo, err := os.Stat(entry.Path())
		if err != nil {
			return false, err
		}
		if dstInfo.ModTime().Equal(srcInfo.ModTime()) {
			return false, nil
		}
	}
	return true, os.Remove(dst)
}

// runConversions fans the stale files out to a bounded worker pool and
// waits for every unit to finish before returning. Cleanup must not start
// while conversions are still running.
func (p *ConvertProfile) runConversions(tasks []convertTask) error {
	if len(tasks) == 0 {
		return nil
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	work := make(chan convertTask)
	var wg sync.WaitGroup

	var errLock sync.Mutex
	var convErrs []error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range work {
				if err := p.convertOne(task); err != nil {
					errLock.Lock()
					convErrs = append(convErrs, err)
					errLock.Unlock()
				}
			}
		}()
	}

	for _, task := range tasks {
		work <- task
	}
	close(work)
	wg.Wait()

	if len(convErrs) > 0 {
		return errors.Join(convErrs...)
	}
	p.stats.Converted = len(tasks)
	return nil
}

// convertOne runs the conversion routine for a single file and stamps the
// source metadata onto the result so the next run can judge staleness.
func (p *ConvertProfile) convertOne(task convertTask) error {
	src := filepath.Join(p.parentDir(), task.srcRel)
	dst := filepath.Join(p.topDir, task.dstRel)

	p.logger.Debug("converting",
		zap.String("src", task.srcRel),
		zap.String("dst", task.dstRel),
	)

	if err := p.convertFn(p, src, dst); err != nil {
		return fmt.Errorf("converting %s: %w", task.srcRel, err)
	}
	if err := copyStat(src, dst); err != nil {
		return fmt.Errorf("converting %s: %w", task.srcRel, err)
	}
	return nil
}

// clean removes every destination entry whose relative path the pass did
// not put in the keep set. Directories are visited after their contents,
// so a plain removal suffices.
func (p *ConvertProfile) clean(keep keepSet) error {
	return Scan(p.topDir, DirLast, func(rel string, entry *Entry) error {
		if keep.has(rel) {
			return nil
		}
		p.stats.Removed++
		p.logger.Debug("removing stale entry", zap.String("dst", rel))
		return os.Remove(entry.Path())
	})
}
