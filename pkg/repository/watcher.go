package repository

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/amdinfer/inference-server/pkg/endpoint"
	obslog "github.com/amdinfer/inference-server/pkg/observability/log"
	"github.com/amdinfer/inference-server/pkg/types"
)

const configFileName = "config.pbtxt"

// Watcher discovers <repo>/<model>/config.pbtxt files and loads the
// corresponding worker through a Manager, either reacting to filesystem
// events (fsnotify) or polling on an interval, mirroring the original
// implementation's UpdateListener (efsw-backed) and its
// --use-polling-watcher fallback.
type Watcher struct {
	repoPath string
	manager  *endpoint.Manager
	log      *obslog.Logger

	mu     sync.Mutex
	loaded map[string]bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Watcher over repoPath, loading discovered models through
// manager.
func New(repoPath string, manager *endpoint.Manager) *Watcher {
	return &Watcher{
		repoPath: repoPath,
		manager:  manager,
		log:      obslog.New("repository"),
		loaded:   make(map[string]bool),
		stop:     make(chan struct{}),
	}
}

// ScanOnce loads every model currently present in the repository, without
// starting any ongoing watch. Useful for a one-shot startup scan before a
// watcher (of either kind) takes over.
func (w *Watcher) ScanOnce() error {
	entries, err := os.ReadDir(w.repoPath)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		w.tryLoad(e.Name())
	}
	return nil
}

func (w *Watcher) tryLoad(model string) {
	w.mu.Lock()
	if w.loaded[model] {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	configPath := filepath.Join(w.repoPath, model, configFileName)
	if _, err := os.Stat(configPath); err != nil {
		return
	}

	cfg, err := ParseConfigFile(configPath)
	if err != nil {
		w.log.Warn("skipping %q: %v", model, err)
		return
	}
	kind, err := cfg.WorkerKind()
	if err != nil {
		w.log.Warn("skipping %q: %v", model, err)
		return
	}

	params := cfg.Parameters
	if params == nil {
		params = types.NewParameters()
	}
	params.PutString("modelPath", filepath.Join(w.repoPath, model, "1"))

	if _, err := w.manager.LoadWorker(kind, params, true); err != nil {
		w.log.Warn("failed loading %q (kind=%s): %v", model, kind, err)
		return
	}

	w.mu.Lock()
	w.loaded[model] = true
	w.mu.Unlock()
	w.log.Ready("loaded model %q from repository (kind=%s)", model, kind)
}

// StartFSNotify watches the repository with fsnotify, loading any model
// whose directory gains a config.pbtxt.
func (w *Watcher) StartFSNotify() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.repoPath); err != nil {
		watcher.Close()
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer watcher.Close()
		for {
			select {
			case <-w.stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				w.handleFSEvent(watcher, event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("fsnotify error: %v", err)
			}
		}
	}()
	return nil
}

func (w *Watcher) handleFSEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	// fsnotify watches are not recursive: a model subdirectory created
	// under the repo is added to the watch here, so the later write of its
	// config.pbtxt arrives with a path one level deeper than the repo. The
	// new directory is also tried at once, in case its config.pbtxt was
	// already in place when the directory appeared.
	model := filepath.Base(filepath.Dir(event.Name))
	if filepath.Base(event.Name) == configFileName {
		time.Sleep(100 * time.Millisecond) // let the filesystem settle
		w.tryLoad(model)
		return
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if err := watcher.Add(event.Name); err != nil {
			w.log.Warn("watching %q: %v", event.Name, err)
		}
		w.tryLoad(filepath.Base(event.Name))
	}
}

// StartPolling re-scans the repository every interval instead of using
// fsnotify, for --use-polling-watcher.
func (w *Watcher) StartPolling(interval time.Duration) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				if err := w.ScanOnce(); err != nil {
					w.log.Warn("polling scan failed: %v", err)
				}
			}
		}
	}()
}

// Stop ends any running watch goroutine.
func (w *Watcher) Stop() {
	close(w.stop)
	w.wg.Wait()
}
