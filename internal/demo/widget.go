// Package demo drives the animated service illustrations. Each widget is a
// small finite phase machine advanced by its own ticker for as long as it is
// mounted.
package demo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Phase indexes a widget's labels.
type Phase int

// NoTerminal marks a widget without a counted terminal phase.
const NoTerminal Phase = -1

// Spec describes one widget kind.
type Spec struct {
	Name         string
	Title        string
	Interval     time.Duration
	Labels       []string
	Terminal     Phase
	InitialCount int
}

var catalog = map[string]Spec{
	"api-integration": {
		Name:     "api-integration",
		Title:    "Event Pipeline: GitHub -> Slack",
		Interval: 2 * time.Second,
		Labels:   []string{"Commit", "Create PR", "Webhook"},
		Terminal: NoTerminal,
	},
	"custom-app": {
		Name:     "custom-app",
		Title:    "Web Application Suite",
		Interval: 1660 * time.Millisecond,
		Labels:   []string{"Real Estate", "Finance", "Healthcare"},
		Terminal: NoTerminal,
	},
	"lead-generation": {
		Name:         "lead-generation",
		Title:        "Lead Generation",
		Interval:     1500 * time.Millisecond,
		Labels:       []string{"Idle", "Cursor Move", "Submit", "Success"},
		Terminal:     3,
		InitialCount: 142,
	},
}

// Lookup returns the spec registered under name.
func Lookup(name string) (Spec, bool) {
	s, ok := catalog[name]
	return s, ok
}

// Names lists the registered widgets in lexical order.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for n := range catalog {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Snapshot is what the page needs to pick a visual state.
type Snapshot struct {
	Widget string `json:"widget"`
	Phase  Phase  `json:"phase"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// Widget is one mounted instance. State lives only as long as the instance.
type Widget struct {
	spec Spec

	mu    sync.Mutex
	phase Phase
	count int
}

// New mounts a fresh instance of the named widget.
func New(name string) (*Widget, error) {
	s, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("demo: unknown widget %q", name)
	}
	return NewFromSpec(s)
}

// NewFromSpec mounts a widget from an explicit spec.
func NewFromSpec(s Spec) (*Widget, error) {
	if len(s.Labels) == 0 {
		return nil, fmt.Errorf("demo: widget %q has no phases", s.Name)
	}
	if s.Terminal >= Phase(len(s.Labels)) {
		return nil, fmt.Errorf("demo: widget %q terminal phase %d out of range", s.Name, s.Terminal)
	}
	if s.Interval <= 0 {
		return nil, fmt.Errorf("demo: widget %q needs a positive interval", s.Name)
	}
	return &Widget{spec: s, count: s.InitialCount}, nil
}

// Spec returns the widget's description.
func (w *Widget) Spec() Spec { return w.spec }

// Advance moves to the next phase, wrapping after the last one. Entering
// the terminal phase bumps the counter by one.
func (w *Widget) Advance() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.phase = (w.phase + 1) % Phase(len(w.spec.Labels))
	if w.spec.Terminal != NoTerminal && w.phase == w.spec.Terminal {
		w.count++
	}
	return w.snapshotLocked()
}

// Snapshot returns the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Widget) snapshotLocked() Snapshot {
	return Snapshot{
		Widget: w.spec.Name,
		Phase:  w.phase,
		Label:  w.spec.Labels[w.phase],
		Count:  w.count,
	}
}

// Run advances the widget on its interval and hands every new snapshot to
// emit until ctx is cancelled or emit returns false. The ticker is stopped
// on return.
func (w *Widget) Run(ctx context.Context, emit func(Snapshot) bool) {
	t := time.NewTicker(w.spec.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !emit(w.Advance()) {
				return
			}
		}
	}
}
