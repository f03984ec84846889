// Package supervisor implements the Task Supervisor (spec.md §4.1): a
// static, data-driven registry of producer/consumer tasks, each started and
// stopped behind a cooperative stop signal, with the dashboard's describe()
// view and the <N>_<base> worker-count naming shortcut.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Kind distinguishes a producer from a consumer for the dashboard's display.
type Kind string

const (
	Producer Kind = "producer"
	Consumer Kind = "consumer"
)

// TaskFunc is the shape every registered task runs as: it cooperatively
// polls stop between iterations and returns promptly once stop fires.
// nTasks carries the worker-count parsed out of a "<N>_<base>" task name
// (1 for tasks that don't support fan-out).
type TaskFunc func(ctx context.Context, stop <-chan struct{}, nTasks int)

// Task is one row of the static registry table (spec.md §9: "keep it as
// one table, do not spread registration across call sites").
type Task struct {
	Name string
	Kind Kind
	Fn   TaskFunc
}

type running struct {
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}
	nTasks int
}

// Supervisor owns the stage graph's lifecycle: start/stop/stop_all/describe.
type Supervisor struct {
	log *slog.Logger

	mu       sync.Mutex
	registry map[string]Task
	active   map[string]*running
}

// New creates a Supervisor with an empty registry.
func New(log *slog.Logger) *Supervisor {
	return &Supervisor{
		log:      log,
		registry: make(map[string]Task),
		active:   make(map[string]*running),
	}
}

// Register adds a task definition to the static registry. Call once per
// base task name at startup, before any Start call.
func (s *Supervisor) Register(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[t.Name] = t
}

// ParseTaskName splits a "<N>_<base>" task name into its worker count and
// base name (spec.md §4.1 naming shortcut). Returns nTasks=1 and the name
// unchanged when there is no integer prefix.
func ParseTaskName(name string) (base string, nTasks int) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return name, 1
	}
	n, err := strconv.Atoi(name[:idx])
	if err != nil || n <= 0 {
		return name, 1
	}
	return name[idx+1:], n
}

// Start launches the named task. If already running, it is a no-op with a
// warning (spec.md §4.1). name may use the "<N>_<base>" shortcut.
func (s *Supervisor) Start(ctx context.Context, name string) error {
	base, nTasks := ParseTaskName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[base]; ok {
		s.log.Warn("start: task already running", "task", base)
		return nil
	}
	task, ok := s.registry[base]
	if !ok {
		return fmt.Errorf("supervisor: no task registered with base name %q", base)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})

	r := &running{cancel: cancel, stop: stop, done: done, nTasks: nTasks}
	s.active[base] = r

	go func() {
		defer close(done)
		task.Fn(taskCtx, stop, nTasks)
	}()

	s.log.Info("task started", "task", base, "kind", task.Kind, "n_tasks", nTasks)
	return nil
}

// Stop sets the stop signal for the named task and returns once the task's
// goroutine has exited. It is safe to call on a task that isn't running.
// name may use the "<N>_<base>" shortcut; only the base matters for stop.
func (s *Supervisor) Stop(name string) error {
	base, _ := ParseTaskName(name)

	s.mu.Lock()
	r, ok := s.active[base]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("stop: task not running", "task", base)
		return nil
	}
	delete(s.active, base)
	s.mu.Unlock()

	close(r.stop)
	<-r.done
	r.cancel()
	s.log.Info("task stopped", "task", base)
	return nil
}

// StopAll sets every active task's stop signal and waits best-effort for
// all of them to finish. Called on process shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	names := make([]string, 0, len(s.active))
	for name := range s.active {
		names = append(names, name)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			s.Stop(name)
		}(name)
	}
	wg.Wait()
}

// TaskStatus is one row of the dashboard's describe() view.
type TaskStatus struct {
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	Running   bool   `json:"running"`
	NTasks    int    `json:"n_tasks"`
	StartURL  string `json:"start_url"`
	StopURL   string `json:"stop_url"`
}

// Describe returns the dashboard's view of every registered task and its
// running state (spec.md §4.1 describe()).
func (s *Supervisor) Describe() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.registry))
	for name, task := range s.registry {
		r, running := s.active[name]
		nTasks := 1
		if running {
			nTasks = r.nTasks
		}
		out = append(out, TaskStatus{
			Name:     name,
			Kind:     task.Kind,
			Running:  running,
			NTasks:   nTasks,
			StartURL: fmt.Sprintf("/start/%s/%s", task.Kind, name),
			StopURL:  fmt.Sprintf("/end/%s/%s", task.Kind, name),
		})
	}
	return out
}

// IsRunning reports whether the named task is currently active. name may
// use the "<N>_<base>" shortcut.
func (s *Supervisor) IsRunning(name string) bool {
	base, _ := ParseTaskName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[base]
	return ok
}
