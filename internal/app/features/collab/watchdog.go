// internal/app/features/collab/watchdog.go
package collab

import (
	"sync"
	"sync/atomic"
	"time"
)

// livenessWatchdog closes a session whose client has gone quiet. Every
// valid inbound frame refreshes the deadline; the check runs on a short
// fixed period. Stop blocks until the background goroutine has exited,
// so an expired callback can never fire after disconnect cleanup.
type livenessWatchdog struct {
	interval time.Duration
	timeout  time.Duration
	onExpire func()

	last atomic.Int64 // unix nanos of last activity

	mu      sync.Mutex
	quit    chan struct{}
	done    chan struct{}
	running bool
}

func newLivenessWatchdog(interval, timeout time.Duration, onExpire func()) *livenessWatchdog {
	return &livenessWatchdog{interval: interval, timeout: timeout, onExpire: onExpire}
}

// Touch records client activity.
func (l *livenessWatchdog) Touch() {
	l.last.Store(time.Now().UnixNano())
}

func (l *livenessWatchdog) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.quit = make(chan struct{})
	l.done = make(chan struct{})
	l.Touch()

	go func(quit, done chan struct{}) {
		defer close(done)
		t := time.NewTicker(l.interval)
		defer t.Stop()
		for {
			select {
			case <-quit:
				return
			case <-t.C:
				idle := time.Since(time.Unix(0, l.last.Load()))
				if idle > l.timeout {
					l.onExpire()
					return
				}
			}
		}
	}(l.quit, l.done)
}

// Stop cancels the watchdog and waits for its goroutine to exit.
// Stopping a watchdog that never started is a no-op.
func (l *livenessWatchdog) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	quit, done := l.quit, l.done
	l.mu.Unlock()

	close(quit)
	<-done
}

// autosaveWatchdog fires the tick callback on a fixed period while this
// session holds the group's autosave leadership. Start is idempotent so
// a lazy re-election observed twice does not double the timers.
type autosaveWatchdog struct {
	interval time.Duration
	tick     func()

	mu      sync.Mutex
	quit    chan struct{}
	done    chan struct{}
	running bool
}

func newAutosaveWatchdog(interval time.Duration, tick func()) *autosaveWatchdog {
	return &autosaveWatchdog{interval: interval, tick: tick}
}

func (a *autosaveWatchdog) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.quit = make(chan struct{})
	a.done = make(chan struct{})

	go func(quit, done chan struct{}) {
		defer close(done)
		t := time.NewTicker(a.interval)
		defer t.Stop()
		for {
			select {
			case <-quit:
				return
			case <-t.C:
				a.tick()
			}
		}
	}(a.quit, a.done)
}

// Running reports whether the watchdog is currently ticking.
func (a *autosaveWatchdog) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Stop cancels the watchdog and waits for its goroutine to exit.
func (a *autosaveWatchdog) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	quit, done := a.quit, a.done
	a.mu.Unlock()

	close(quit)
	<-done
}
