package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tshoemake/portfolio/internal/contact"
	"github.com/tshoemake/portfolio/internal/visibility"
)

const (
	sessionCookie = "sid"
	sessionKey    = "session"
)

// session is the UI state of one visitor: the dialog visibility flag, the
// scroll lock that follows it and the contact dialog.
type session struct {
	id     string
	flag   *visibility.Flag
	scroll *visibility.ScrollLock
	dialog *contact.Dialog

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// release tears down the per-visitor state. An in-flight submission turns
// stale and its response is dropped.
func (s *session) release() {
	s.dialog.Close()
	s.scroll.Release()
}

type sessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*session
	ttl       time.Duration
	secure    bool
	newDialog func(*visibility.Flag) *contact.Dialog
	now       func() time.Time
}

func newSessionStore(ttl time.Duration, secure bool, newDialog func(*visibility.Flag) *contact.Dialog) *sessionStore {
	return &sessionStore{
		sessions:  make(map[string]*session),
		ttl:       ttl,
		secure:    secure,
		newDialog: newDialog,
		now:       time.Now,
	}
}

func (st *sessionStore) create() *session {
	flag := &visibility.Flag{}
	s := &session{
		id:       uuid.NewString(),
		flag:     flag,
		scroll:   visibility.NewScrollLock(flag),
		dialog:   st.newDialog(flag),
		lastSeen: st.now(),
	}
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s
}

func (st *sessionStore) lookup(id string) (*session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// sweep evicts sessions idle for longer than the TTL.
func (st *sessionStore) sweep() int {
	now := st.now()
	var gone []*session
	st.mu.Lock()
	for id, s := range st.sessions {
		if s.idleSince(now) > st.ttl {
			delete(st.sessions, id)
			gone = append(gone, s)
		}
	}
	st.mu.Unlock()
	for _, s := range gone {
		s.release()
	}
	return len(gone)
}

func (st *sessionStore) janitor(ctx context.Context, every time.Duration, onSweep func(int)) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := st.sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

// middleware attaches the visitor's session, creating it and setting the
// cookie on first sight.
func (st *sessionStore) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var s *session
		if id, err := c.Cookie(sessionCookie); err == nil {
			s, _ = st.lookup(id)
		}
		if s == nil {
			s = st.create()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     sessionCookie,
				Value:    s.id,
				Path:     "/",
				MaxAge:   int(st.ttl / time.Second),
				HttpOnly: true,
				Secure:   st.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		s.touch(st.now())
		c.Set(sessionKey, s)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *session {
	return c.MustGet(sessionKey).(*session)
}
