package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/scrypster/contactgraph/internal/logging"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// InputWatcher watches an input directory and calls back with the set of
// changed files once writes have settled. Extractors tend to write a file in
// several chunks; the debounce folds them into one callback.
type InputWatcher struct {
	dir      string
	debounce time.Duration
	match    func(path string) bool
	callback func(ctx context.Context, changed []string)
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewInputWatcher creates a watcher for dir. match selects the files that
// count as inputs; nil accepts every non-hidden file.
func NewInputWatcher(dir string, debounce time.Duration, match func(string) bool, callback func(context.Context, []string), logger *zap.Logger) *InputWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if match == nil {
		match = func(string) bool { return true }
	}
	return &InputWatcher{
		dir:      dir,
		debounce: debounce,
		match:    match,
		callback: callback,
		logger:   logging.OrNop(logger),
	}
}

// Start begins watching dir and its non-hidden subdirectories. Callbacks run
// on the watcher goroutine, one at a time, with ctx. Call Stop to clean up.
func (iw *InputWatcher) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	err = filepath.WalkDir(iw.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != iw.dir && hidden(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("notify: cannot watch %s: %w", iw.dir, err)
	}
	iw.watcher = w

	ctx, iw.cancel = context.WithCancel(ctx)
	iw.wg.Add(1)
	go iw.loop(ctx)
	iw.logger.Info("notify: watching input directory", zap.String("dir", iw.dir))
	return nil
}

// Stop shuts down the watcher and waits for a running callback to return.
func (iw *InputWatcher) Stop() {
	if iw.cancel != nil {
		iw.cancel()
	}
	if iw.watcher != nil {
		_ = iw.watcher.Close()
	}
	iw.wg.Wait()
}

func (iw *InputWatcher) loop(ctx context.Context) {
	defer iw.wg.Done()

	pending := make(map[string]bool)
	timer := time.NewTimer(iw.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(evt.Name); err == nil && fi.IsDir() && !hidden(evt.Name) {
					if err := iw.watcher.Add(evt.Name); err != nil {
						iw.logger.Warn("notify: cannot watch new directory", zap.String("dir", evt.Name), zap.Error(err))
					}
					continue
				}
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if hidden(evt.Name) || !iw.match(evt.Name) {
				continue
			}
			pending[evt.Name] = true
			timer.Reset(iw.debounce)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)

			iw.logger.Debug("notify: inputs changed", zap.Int("files", len(changed)))
			if iw.callback != nil {
				iw.callback(ctx, changed)
			}
		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			iw.logger.Warn("notify: watcher error", zap.Error(err))
		}
	}
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
