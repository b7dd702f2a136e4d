// Package server is the HTTP surface of the site: the four pages, the
// contact dialog fragments, the form intake endpoint, the demo widget
// streams and the admin area.
package server

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tshoemake/portfolio/internal/config"
	"github.com/tshoemake/portfolio/internal/contact"
	"github.com/tshoemake/portfolio/internal/content"
	"github.com/tshoemake/portfolio/internal/demo"
	"github.com/tshoemake/portfolio/internal/inbox"
	"github.com/tshoemake/portfolio/internal/nav"
	"github.com/tshoemake/portfolio/internal/store"
	"github.com/tshoemake/portfolio/internal/visibility"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// visitorRetention is how long hashed page views are kept.
const visitorRetention = 365 * 24 * time.Hour

// Deps are the collaborators the server is built from. A nil Deliverer
// delivers dialog submissions to Inbox in process.
type Deps struct {
	Config    *config.Config
	DB        *store.DB
	Site      *content.Site
	Inbox     *inbox.Service
	Log       *slog.Logger
	Deliverer contact.Deliverer
}

// Server owns the gin engine and the per-visitor sessions.
type Server struct {
	cfg      *config.Config
	db       *store.DB
	site     *content.Site
	inbox    *inbox.Service
	deliver  contact.Deliverer
	log      *slog.Logger
	engine   *gin.Engine
	sessions *sessionStore

	adminToken  string
	hashingSalt string

	track sync.WaitGroup // background visitor writes
}

// New builds the server and its routes.
func New(d Deps) (*Server, error) {
	if d.Config == nil || d.DB == nil || d.Site == nil || d.Inbox == nil {
		return nil, errors.New("server: config, db, site and inbox are required")
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	s := &Server{
		cfg:         d.Config,
		db:          d.DB,
		site:        d.Site,
		inbox:       d.Inbox,
		deliver:     d.Deliverer,
		log:         d.Log,
		adminToken:  randomHex(32),
		hashingSalt: randomHex(32),
	}
	if s.deliver == nil {
		s.deliver = d.Inbox
	}

	opts := contact.Options{RequireVerification: d.Config.Turnstile.Required}
	s.sessions = newSessionStore(d.Config.Server.SessionTTL, d.Config.Server.Mode == gin.ReleaseMode,
		func(flag *visibility.Flag) *contact.Dialog {
			return contact.NewDialog(flag, s.deliver, opts)
		})

	gin.SetMode(d.Config.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))
	if len(d.Config.Server.TrustedProxy) > 0 {
		if err := r.SetTrustedProxies(d.Config.Server.TrustedProxy); err != nil {
			return nil, fmt.Errorf("server: trusted proxies: %w", err)
		}
	} else if err := r.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("server: trusted proxies: %w", err)
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("server: static assets: %w", err)
	}
	r.StaticFS("/static", http.FS(static))

	s.engine = r
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Form intake stays outside the session middleware: other clients post here.
	r.POST("/", s.handleIntake)

	site := r.Group("/")
	site.Use(s.sessions.middleware(), s.visitorTracking())
	s.pageRoutes(site)
	s.contactRoutes(site)
	site.GET("/demos/:name/events", s.handleDemoEvents)

	s.adminRoutes(r)

	r.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "404.html", gin.H{
			"Site":  s.site,
			"Title": "Not Found",
			"Nav":   nav.Links(nav.Route(-1)),
		})
	})
}

// Handler exposes the router, for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no WriteTimeout: demo event streams stay open
	}

	bg, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.sessions.janitor(bg, time.Minute, func(n int) {
		s.log.Debug("evicted idle sessions", slog.Int("count", n))
	})
	go s.retentionLoop(bg)

	errc := make(chan error, 1)
	go func() {
		s.log.Info("site listening", slog.String("addr", srv.Addr), slog.String("mode", gin.Mode()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	err := srv.Shutdown(shutdownCtx)
	s.track.Wait()
	s.log.Info("site stopped")
	return err
}

// retentionLoop deletes page views past the retention window, at start and
// then daily.
func (s *Server) retentionLoop(ctx context.Context) {
	s.cleanupVisitors(ctx)
	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.cleanupVisitors(ctx)
		}
	}
}

func (s *Server) cleanupVisitors(ctx context.Context) {
	n, err := s.db.CleanupVisits(ctx, time.Now().Add(-visitorRetention))
	if err != nil {
		s.log.Error("visitor cleanup failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.log.Info("privacy cleanup removed old visitor records", slog.Int64("count", n))
	}
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"fmtTime": func(t time.Time) string { return t.Local().Format("Jan 2, 2006 15:04") },
		"year":    func() int { return time.Now().Year() },
		"demo": func(name string) demo.Spec {
			spec, _ := demo.Lookup(name)
			return spec
		},
	}
	t, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("server: parsing templates: %w", err)
	}
	return t, nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("server: reading random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}
