// Package visibility provides the observable open/closed flag behind the
// contact dialog.
package visibility

import "sync"

// Flag is a boolean with synchronous change notification. The zero value is
// a closed flag with no subscribers.
//
// Mutations are serialized: every subscriber sees every mutation, in the
// order the mutations were issued. Subscribers must not call Open or Close
// from inside their callback.
type Flag struct {
	emit sync.Mutex // serializes mutate+notify

	mu   sync.RWMutex
	open bool
	subs map[int]func(open bool)
	next int
}

// Open sets the flag and notifies subscribers.
func (f *Flag) Open() { f.set(true) }

// Close clears the flag and notifies subscribers.
func (f *Flag) Close() { f.set(false) }

// IsOpen reports the current value.
func (f *Flag) IsOpen() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.open
}

// Subscribe registers fn for every subsequent mutation. The returned func
// removes the subscription.
func (f *Flag) Subscribe(fn func(open bool)) (unsubscribe func()) {
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[int]func(bool))
	}
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

func (f *Flag) set(v bool) {
	f.emit.Lock()
	defer f.emit.Unlock()

	f.mu.Lock()
	f.open = v
	fns := make([]func(bool), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// ScrollLock tracks whether page scrolling is suspended. It follows a Flag:
// suspended while the dialog is open, restored when it closes.
type ScrollLock struct {
	mu        sync.RWMutex
	suspended bool
	stop      func()
}

// NewScrollLock subscribes a lock to f and seeds it with f's current value.
func NewScrollLock(f *Flag) *ScrollLock {
	l := &ScrollLock{suspended: f.IsOpen()}
	l.stop = f.Subscribe(func(open bool) {
		l.mu.Lock()
		l.suspended = open
		l.mu.Unlock()
	})
	return l
}

// Suspended reports whether the surrounding page must not scroll.
func (l *ScrollLock) Suspended() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.suspended
}

// Release detaches the lock from its flag and restores scrolling.
func (l *ScrollLock) Release() {
	l.stop()
	l.mu.Lock()
	l.suspended = false
	l.mu.Unlock()
}
