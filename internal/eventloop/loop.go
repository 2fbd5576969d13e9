// internal/eventloop/loop.go
package eventloop

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Loop is a single cooperative event stream. Every closure posted to it runs to
// completion on the loop goroutine before the next one starts, so state touched only
// from posted closures needs no locking.
type Loop struct {
	events chan func()
	done   chan struct{}
	logger *logrus.Logger

	// asyncTimeout bounds each off-loop external call started through Async.
	asyncTimeout time.Duration
}

// Timer is a cancelable continuation scheduled with After.
type Timer interface {
	// Stop cancels the continuation and reports whether it was still pending.
	Stop() bool
}

type timer struct {
	t       *time.Timer
	stopped bool // only read and written on the loop goroutine
}

// Stop must be called from the loop goroutine; once it returns the callback is
// guaranteed not to run, even if the underlying timer already fired and its closure
// is queued.
func (t *timer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	t.t.Stop()
	return true
}

// New builds a loop with the given queue capacity.
func New(logger *logrus.Logger, capacity int) *Loop {
	if capacity <= 0 {
		capacity = 256
	}
	return &Loop{
		events:       make(chan func(), capacity),
		done:         make(chan struct{}),
		logger:       logger,
		asyncTimeout: 10 * time.Second,
	}
}

// Run processes events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case fn := <-l.events:
			l.invoke(fn)
		case <-ctx.Done():
			l.logger.Info("Event loop stopped")
			return
		}
	}
}

// invoke runs one event, keeping a panicking handler from taking the loop down.
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.WithField("panic", r).Error("Recovered from panic in event handler")
		}
	}()
	fn()
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn. It blocks when the queue is full and gives up once the loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.events <- fn:
	case <-l.done:
		l.logger.Warn("Event loop stopped, dropping posted event")
	}
}

// After schedules fn to be posted onto the loop once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) Timer {
	tm := &timer{}
	tm.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if tm.stopped {
				return
			}
			tm.stopped = true
			fn()
		})
	})
	return tm
}

// Async runs work off the loop (an external call) and posts then back onto the loop
// when work returns. work receives a context bounded by the loop's async timeout.
func (l *Loop) Async(work func(ctx context.Context), then func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.asyncTimeout)
		work(ctx)
		cancel()
		l.Post(then)
	}()
}
