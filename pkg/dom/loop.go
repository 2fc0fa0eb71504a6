package dom

import (
	"context"
	"sync"
	"time"

	"github.com/go-drift/domsync/pkg/errors"
)

// Loop is the single event queue a Document is driven from. Tasks run one at
// a time on the goroutine calling Run, and the document is flushed after
// every task.
type Loop struct {
	doc   *Document
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
}

// NewLoop creates a loop for doc.
func NewLoop(doc *Document) *Loop {
	return &Loop{doc: doc, wake: make(chan struct{}, 1)}
}

// Dispatch schedules fn to run on the loop. Safe to call from any goroutine,
// including from inside a running task.
// Returns false if fn is nil.
func (l *Loop) Dispatch(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// After schedules fn to run on the loop once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		l.Dispatch(fn)
	})
}

// Run executes tasks until ctx is done, flushing the document after each.
func (l *Loop) Run(ctx context.Context) error {
	l.doc.Flush()
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.run(fn)
			l.doc.Flush()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Drain runs every task queued so far, plus tasks they queue, then returns.
func (l *Loop) Drain() {
	l.doc.Flush()
	for {
		fn, ok := l.next()
		if !ok {
			return
		}
		l.run(fn)
		l.doc.Flush()
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil, false
	}
	fn := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return fn, true
}

func (l *Loop) run(fn func()) {
	defer errors.Recover("dom.Loop")
	fn()
}
