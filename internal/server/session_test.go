package server

import (
	"testing"
	"time"

	"github.com/tshoemake/portfolio/internal/contact"
	"github.com/tshoemake/portfolio/internal/visibility"
)

func TestSessionSweep(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := newSessionStore(time.Hour, false, func(f *visibility.Flag) *contact.Dialog {
		return contact.NewDialog(f, nil, contact.Options{})
	})
	st.now = func() time.Time { return now }

	idle := st.create()
	idle.dialog.Open()
	active := st.create()

	now = now.Add(45 * time.Minute)
	active.touch(now)
	now = now.Add(30 * time.Minute)

	if n := st.sweep(); n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}
	if _, ok := st.lookup(idle.id); ok {
		t.Error("idle session still present")
	}
	if _, ok := st.lookup(active.id); !ok {
		t.Error("active session evicted")
	}
	if idle.dialog.IsOpen() || idle.scroll.Suspended() {
		t.Error("evicted session should close its dialog and restore scrolling")
	}
}
