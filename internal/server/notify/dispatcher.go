package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/metrics"
)

type failure struct {
	email string
	err   error
}

// Dispatcher publishes messages in the background. Callers never wait for
// delivery and never see its errors; failures are logged.
type Dispatcher struct {
	pub     Publisher
	timeout time.Duration
	log     logging.Logger
	rec     metrics.Recorder

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	failures chan failure
	done     chan struct{}
}

func NewDispatcher(pub Publisher, timeout time.Duration, log logging.Logger, rec metrics.Recorder) *Dispatcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	d := &Dispatcher{
		pub:      pub,
		timeout:  timeout,
		log:      log.With("module", "notify"),
		rec:      rec,
		failures: make(chan failure, 64),
		done:     make(chan struct{}),
	}
	go d.drain()
	return d
}

// Dispatch schedules msg for publishing. The publish runs on a context
// detached from the caller, bounded by the dispatcher timeout.
func (d *Dispatcher) Dispatch(msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn(context.Background(), "dispatcher closed, notification dropped", "email", msg.Email)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		err := d.pub.Publish(ctx, msg)
		d.rec.ObserveDependency(metrics.KindSNS, "publish", time.Since(start), err)
		if err != nil {
			d.failures <- failure{email: msg.Email, err: err}
			return
		}
		d.log.Debug(ctx, "notification published", "email", msg.Email)
	}()
}

func (d *Dispatcher) drain() {
	defer close(d.done)
	for f := range d.failures {
		d.log.Error(context.Background(), "notification publish failed", "email", f.email, "error", f.err)
	}
}

// Close stops accepting messages and waits for in-flight publishes.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	close(d.failures)
	<-d.done
}
