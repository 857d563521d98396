package receipt

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrExhausted is returned by Poll when the attempt budget runs out
// before a probe reports completion. Callers translate it into their own
// timeout error; the poller itself has no notion of what was being
// awaited.
var ErrExhausted = errors.New("polling attempts exhausted")

// Probe is one polling attempt. It returns done=true to stop polling
// successfully. A non-nil error aborts the poll; transient failures a
// probe wants to retry through should be swallowed by the probe itself.
type Probe func(ctx context.Context) (done bool, err error)

// Poll invokes probe immediately, then again after each interval, until
// the probe reports done, the probe fails, ctx is cancelled, or
// maxAttempts attempts have run. Attempts are strictly sequential; the
// next one is scheduled only after the previous resolves.
func Poll(ctx context.Context, interval time.Duration, maxAttempts int, probe Probe) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := probe(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt >= maxAttempts {
			return ErrExhausted
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Supervisor runs at most one task per key. Starting a task for a key
// cancels and waits out any task already running under that key, so a new
// upload supersedes the polls left over from an unresolved one.
type Supervisor struct {
	mu     sync.Mutex
	active map[string]*task
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates an empty Supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{active: make(map[string]*task)}
}

// Go starts run in its own goroutine under the given key, superseding any
// task currently held by that key. run must return promptly once its
// context is cancelled.
func (s *Supervisor) Go(key string, run func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.active[key]
	s.active[key] = t
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	go func() {
		defer close(t.done)
		defer func() {
			s.mu.Lock()
			if s.active[key] == t {
				delete(s.active, key)
			}
			s.mu.Unlock()
		}()
		run(ctx)
	}()
}

// Cancel stops the task for key, if any, and waits for it to finish.
func (s *Supervisor) Cancel(key string) {
	s.mu.Lock()
	t, ok := s.active[key]
	if ok {
		delete(s.active, key)
	}
	s.mu.Unlock()

	if ok {
		t.cancel()
		<-t.done
	}
}

// CancelAll stops every running task and waits for them to finish.
func (s *Supervisor) CancelAll() {
	s.mu.Lock()
	tasks := make([]*task, 0, len(s.active))
	for key, t := range s.active {
		tasks = append(tasks, t)
		delete(s.active, key)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
		<-t.done
	}
}
