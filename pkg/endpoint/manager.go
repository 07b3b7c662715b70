// Package endpoint owns the mapping from external model name to a live
// worker.Info, serializing every mutation through a single command queue
// consumed by one goroutine, generalized from amdinfer's WorkerInfo table
// plus a RWMutex-map registry idiom.
package endpoint

import (
	"fmt"
	"sync"

	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/memory"
	obslog "github.com/amdinfer/inference-server/pkg/observability/log"
	"github.com/amdinfer/inference-server/pkg/types"
	"github.com/amdinfer/inference-server/pkg/worker"
)

// entry is one endpoint's registration: the worker group backing it and
// the (kind, parameters) it was loaded with, used for dedup.
type entry struct {
	endpoint string
	kind     string
	params   types.Parameters
	info     *worker.Info
}

type command struct {
	fn   func()
	done chan struct{}
}

// Manager is the single owner of the endpoint table. All mutating
// operations (load/unload) are forwarded through a command channel
// consumed by one goroutine, so load/unload sequencing never needs a lock
// held during inference; readers take a short-lived RLock instead.
type Manager struct {
	pool      *memory.Pool
	pluginDir string
	log       *obslog.Logger

	mu       sync.RWMutex
	byEndpoint map[string]*entry
	nextIndex  map[string]int // kind -> next unused "-n" suffix

	cmds chan command
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewManager constructs a Manager and starts its command-queue goroutine.
func NewManager(pool *memory.Pool, pluginDir string) *Manager {
	m := &Manager{
		pool:       pool,
		pluginDir:  pluginDir,
		log:        obslog.New("manager"),
		byEndpoint: make(map[string]*entry),
		nextIndex:  make(map[string]int),
		cmds:       make(chan command),
		stop:       make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case c := <-m.cmds:
			c.fn()
			close(c.done)
		case <-m.stop:
			return
		}
	}
}

// submit runs fn on the update goroutine and blocks until it completes.
func (m *Manager) submit(fn func()) {
	done := make(chan struct{})
	m.cmds <- command{fn: fn, done: done}
	<-done
}

// LoadWorker loads an instance of kind with params, returning the endpoint
// name it was assigned. A (kind, params) pair that already has a matching
// endpoint is reused rather than spawning a second group, unless share is
// false, in which case another instance is added to that existing group.
func (m *Manager) LoadWorker(kind string, params types.Parameters, share bool) (string, error) {
	var (
		endpointName string
		err          error
	)
	m.submit(func() {
		endpointName, err = m.loadWorkerLocked(kind, params, share)
	})
	return endpointName, err
}

func (m *Manager) loadWorkerLocked(kind string, params types.Parameters, share bool) (string, error) {
	m.mu.RLock()
	for name, e := range m.byEndpoint {
		if e.kind == kind && e.params.Equal(params) {
			m.mu.RUnlock()
			if !share {
				if err := e.info.AddWorker(); err != nil {
					return "", errors.Wrap(errors.External, err, "adding worker to endpoint %q", name)
				}
			}
			return name, nil
		}
	}
	m.mu.RUnlock()

	name := m.allocateName(kind)
	info := worker.New(name, kind, m.pluginDir, params, m.pool)
	if err := info.AddWorker(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.byEndpoint[name] = &entry{endpoint: name, kind: kind, params: params, info: info}
	m.mu.Unlock()

	m.log.Ready("loaded worker %q (kind=%s)", name, kind)
	return name, nil
}

// allocateName implements the endpoint naming rule: K if unused, else
// K-<n> for the next unused index of this kind. Must be called with no
// lock held; it takes its own RLock.
func (m *Manager) allocateName(kind string) string {
	m.mu.RLock()
	_, taken := m.byEndpoint[kind]
	m.mu.RUnlock()
	if !taken {
		return kind
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		m.nextIndex[kind]++
		candidate := fmt.Sprintf("%s-%d", kind, m.nextIndex[kind])
		if _, exists := m.byEndpoint[candidate]; !exists {
			return candidate
		}
	}
}

// UnloadWorker decrements the group behind endpoint; when it reaches zero
// the worker.Info is destroyed and the registry entry removed. Unknown
// endpoints are a no-op, matching the original's idempotent unload.
func (m *Manager) UnloadWorker(endpoint string) error {
	var err error
	m.submit(func() {
		err = m.unloadWorkerLocked(endpoint)
	})
	return err
}

func (m *Manager) unloadWorkerLocked(endpoint string) error {
	m.mu.RLock()
	e, ok := m.byEndpoint[endpoint]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := e.info.Unload(); err != nil {
		return errors.Wrap(errors.Runtime, err, "unloading endpoint %q", endpoint)
	}

	if e.info.GroupSize() == 0 {
		m.mu.Lock()
		delete(m.byEndpoint, endpoint)
		m.mu.Unlock()
		m.log.Info("endpoint %q fully unloaded", endpoint)
	}
	return nil
}

// GetWorker returns the worker.Info backing endpoint. Lock-free against
// the command queue: readers only ever take the short RLock.
func (m *Manager) GetWorker(endpoint string) (*worker.Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byEndpoint[endpoint]
	if !ok {
		return nil, errors.New(errors.InvalidArgument, "unknown endpoint %q", endpoint)
	}
	return e.info, nil
}

// ModelReady reports the metadata ready flag for endpoint; false if the
// endpoint is unknown.
func (m *Manager) ModelReady(endpoint string) bool {
	info, err := m.GetWorker(endpoint)
	if err != nil {
		return false
	}
	md := info.Metadata()
	return md != nil && md.Ready()
}

// ModelList returns every currently registered endpoint name.
func (m *Manager) ModelList() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.byEndpoint))
	for name := range m.byEndpoint {
		names = append(names, name)
	}
	return names
}

// Shutdown unloads every endpoint and stops the command-queue goroutine.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	names := make([]string, 0, len(m.byEndpoint))
	for name := range m.byEndpoint {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		if err := m.UnloadWorker(name); err != nil {
			m.log.Warn("error unloading %q during shutdown: %v", name, err)
		}
	}

	close(m.stop)
	m.wg.Wait()
}
