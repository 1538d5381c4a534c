package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handler executes one task. Arguments are the values passed to
// Enqueue, in order.
type Handler func(ctx context.Context, args ...string) error

type task struct {
	key  string
	op   string
	args []string
}

// Queue is an in-process background task queue. Tasks are identified by
// a key returned from Enqueue; a task that has not yet been picked up
// by a worker can be cancelled with that key.
type Queue struct {
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]Handler
	pending  []task
	running  map[string]bool // keys currently executing
	notify   chan struct{}

	wg   sync.WaitGroup
	stop chan struct{}
}

// NewQueue creates a queue with the given number of workers. Start must
// be called before tasks execute.
func NewQueue(logger *slog.Logger) *Queue {
	return &Queue{
		logger:   logger,
		handlers: make(map[string]Handler),
		running:  make(map[string]bool),
		notify:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Register binds an operation name to its handler. Registration after
// Start is not supported.
func (q *Queue) Register(op string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[op] = h
}

// Start launches the worker goroutines.
func (q *Queue) Start(workers int) {
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Stop waits for running tasks to finish. Pending tasks are discarded.
func (q *Queue) Stop() {
	close(q.stop)
	q.wg.Wait()
}

// Enqueue schedules op with the given arguments and returns the task
// key.
func (q *Queue) Enqueue(op string, args ...string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.handlers[op]; !ok {
		return "", fmt.Errorf("no handler registered for %q", op)
	}
	key := uuid.NewString()
	q.pending = append(q.pending, task{key: key, op: op, args: args})
	select {
	case q.notify <- struct{}{}:
	default:
	}
	q.logger.Debug("task enqueued", "op", op, "key", key)
	return key, nil
}

// Cancel removes a task that has not started. Returns false when the
// key is unknown or the task is already running or finished.
func (q *Queue) Cancel(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, t := range q.pending {
		if t.key == key {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.logger.Debug("task cancelled", "op", t.op, "key", key)
			return true
		}
	}
	return false
}

// CountActive reports how many tasks for op are pending or running.
// Used to keep singleton operations such as training single-flight.
func (q *Queue) CountActive(op string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, t := range q.pending {
		if t.op == op {
			n++
		}
	}
	for key := range q.running {
		if opOfKey(key) == op {
			n++
		}
	}
	return n
}

// running keys are stored as "op\x00key" so CountActive can attribute
// them without a second map.
func runningKey(op, key string) string { return op + "\x00" + key }

func opOfKey(stored string) string {
	for i := 0; i < len(stored); i++ {
		if stored[i] == 0 {
			return stored[:i]
		}
	}
	return stored
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		t, ok := q.next()
		if !ok {
			select {
			case <-q.stop:
				return
			case <-q.notify:
				continue
			}
		}
		q.run(t)
	}
}

func (q *Queue) next() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return task{}, false
	}
	t := q.pending[0]
	q.pending = q.pending[1:]
	q.running[runningKey(t.op, t.key)] = true
	return t, true
}

func (q *Queue) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", "op", t.op, "key", t.key, "panic", r)
		}
		q.mu.Lock()
		delete(q.running, runningKey(t.op, t.key))
		q.mu.Unlock()
	}()

	q.mu.Lock()
	h := q.handlers[t.op]
	q.mu.Unlock()

	if err := h(context.Background(), t.args...); err != nil {
		q.logger.Error("task failed", "op", t.op, "key", t.key, "error", err)
		return
	}
	q.logger.Debug("task finished", "op", t.op, "key", t.key)
}
