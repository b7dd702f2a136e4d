package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/tshoemake/portfolio/internal/config"
	"github.com/tshoemake/portfolio/internal/contact"
	"github.com/tshoemake/portfolio/internal/content"
	"github.com/tshoemake/portfolio/internal/inbox"
	"github.com/tshoemake/portfolio/internal/store"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(t *testing.T, mutate func(*config.Config, *Deps)) (*Server, *store.DB) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode
	cfg.Admin.Password = "s3cret"

	db, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	site, err := content.Load()
	if err != nil {
		t.Fatal(err)
	}
	d := Deps{Config: cfg, DB: db, Site: site, Inbox: inbox.New(db, nil, nil, quiet()), Log: quiet()}
	if mutate != nil {
		mutate(cfg, &d)
	}
	s, err := New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		s.track.Wait()
		db.Close()
	})
	return s, db
}

// client carries cookies between requests like a browser would.
type client struct {
	h       http.Handler
	cookies map[string]*http.Cookie
	htmx    bool
}

func newClient(s *Server) *client {
	return &client{h: s.Handler(), cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, form url.Values, hdr ...string) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.htmx {
		req.Header.Set("HX-Request", "true")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return rec
}

func validForm() url.Values {
	return url.Values{
		"topic":   {"Automation"},
		"name":    {"Jane Doe"},
		"email":   {"jane@company.com"},
		"message": {"Need a Zendesk-to-Jira pipeline"},
	}
}

func TestPagesMarkActiveLink(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := newClient(s)

	for _, path := range []string{"/", "/services", "/resume", "/contact"} {
		rec := c.do(http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, `href="`+path+`" class="active"`) {
			t.Errorf("GET %s: active link not marked", path)
		}
		if n := strings.Count(body, `aria-current="page"`); n != 1 {
			t.Errorf("GET %s: %d active links, want 1", path, n)
		}
	}
}

func TestPageContent(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := newClient(s)

	tests := []struct {
		path string
		want string
	}{
		{"/", "Tim Shoemake"},
		{"/", `data-demo="lead-generation"`},
		{"/services", "Zendesk ticket"},
		{"/services", `id="api-integration"`},
		{"/resume", "Origami Risk"},
		{"/contact", `name="form-name" value="contact"`},
	}
	for _, tt := range tests {
		if body := c.do(http.MethodGet, tt.path, nil).Body.String(); !strings.Contains(body, tt.want) {
			t.Errorf("GET %s: missing %q", tt.path, tt.want)
		}
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := newClient(s).do(http.MethodGet, "/blog", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Page not found") {
		t.Error("missing not-found copy")
	}
}

func TestSessionCookie(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := newClient(s)
	c.do(http.MethodGet, "/", nil)
	first := c.cookies[sessionCookie]
	if first == nil || !first.HttpOnly {
		t.Fatalf("session cookie = %+v", first)
	}
	c.do(http.MethodGet, "/resume", nil)
	if s.sessions.len() != 1 {
		t.Errorf("sessions = %d, want the cookie to be reused", s.sessions.len())
	}
}

func TestModalOpenAndClose(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := newClient(s)
	c.htmx = true

	rec := c.do(http.MethodPost, "/contact/open", url.Values{"from": {"/services"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `role="dialog"`) {
		t.Fatalf("open: %d %s", rec.Code, rec.Body)
	}

	c.htmx = false
	body := c.do(http.MethodGet, "/services", nil).Body.String()
	if !strings.Contains(body, `class="no-scroll"`) || !strings.Contains(body, `role="dialog"`) {
		t.Error("open dialog should be rendered with scrolling suspended")
	}

	c.htmx = true
	rec = c.do(http.MethodPost, "/contact/close", url.Values{})
	if strings.Contains(rec.Body.String(), `role="dialog"`) {
		t.Error("close should render an empty modal root")
	}
	c.htmx = false
	body = c.do(http.MethodGet, "/services", nil).Body.String()
	if strings.Contains(body, `class="no-scroll"`) || strings.Contains(body, `role="dialog"`) {
		t.Error("closed dialog should restore scrolling")
	}
}

func TestModalWithoutHTMXRedirectsBack(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := newClient(s)
	rec := c.do(http.MethodPost, "/contact/open", url.Values{"from": {"/resume"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/resume" {
		t.Fatalf("open = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	rec = c.do(http.MethodPost, "/contact/close", url.Values{"from": {"/elsewhere"}})
	if rec.Header().Get("Location") != "/" {
		t.Errorf("unknown origin should fall back home, got %q", rec.Header().Get("Location"))
	}
}

func TestContactSubmitStoresSubmission(t *testing.T) {
	s, db := newTestServer(t, nil)
	c := newClient(s)
	c.htmx = true
	c.do(http.MethodPost, "/contact/open", url.Values{})

	rec := c.do(http.MethodPost, "/contact/submit", validForm())
	if rec.Code != http.StatusOK {
		t.Fatalf("submit = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "regarding your Automation inquiry shortly.") {
		t.Errorf("confirmation missing:\n%s", rec.Body)
	}

	subs, err := db.ListSubmissions(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].Email != "jane@company.com" || subs[0].HashedIP == "" {
		t.Fatalf("stored = %+v", subs)
	}

	// a second submit of the same form is refused and shows the confirmation again
	rec = c.do(http.MethodPost, "/contact/submit", validForm())
	if !strings.Contains(rec.Body.String(), "Message Sent!") {
		t.Error("submitted form should keep its confirmation")
	}
	if subs, _ := db.ListSubmissions(context.Background(), 0); len(subs) != 1 {
		t.Errorf("duplicate stored: %d rows", len(subs))
	}
}

func TestContactSubmitInvalidKeepsInput(t *testing.T) {
	s, db := newTestServer(t, nil)
	c := newClient(s)
	c.htmx = true

	form := validForm()
	form.Set("email", "")
	body := c.do(http.MethodPost, "/contact/submit", form).Body.String()
	if !strings.Contains(body, "This field is required.") {
		t.Error("missing required-field error")
	}
	if !strings.Contains(body, `value="Jane Doe"`) {
		t.Error("entered name should be kept")
	}

	form.Set("email", "not-an-email")
	body = c.do(http.MethodPost, "/contact/submit", form).Body.String()
	if !strings.Contains(body, "Please enter a valid email address.") {
		t.Error("missing email format error")
	}
	if subs, _ := db.ListSubmissions(context.Background(), 0); len(subs) != 0 {
		t.Fatalf("invalid input stored: %+v", subs)
	}
}

func TestContactSubmitVerificationGate(t *testing.T) {
	s, db := newTestServer(t, func(cfg *config.Config, _ *Deps) {
		cfg.Turnstile.Required = true
	})
	c := newClient(s)
	c.htmx = true

	body := c.do(http.MethodPost, "/contact/submit", validForm()).Body.String()
	if !strings.Contains(body, contact.NoticeUnavailable) {
		t.Error("missing widget should block the form")
	}
	if !strings.Contains(body, `class="cf-turnstile"`) {
		t.Error("widget container should be rendered")
	}

	form := validForm()
	form.Set(contact.TokenField, "")
	body = c.do(http.MethodPost, "/contact/submit", form).Body.String()
	if !strings.Contains(body, contact.NoticeVerify) {
		t.Error("empty token should ask for verification")
	}
	if subs, _ := db.ListSubmissions(context.Background(), 0); len(subs) != 0 {
		t.Fatal("unverified submission stored")
	}

	form.Set(contact.TokenField, "XXXX.DUMMY.TOKEN")
	body = c.do(http.MethodPost, "/contact/submit", form).Body.String()
	if !strings.Contains(body, "Message Sent!") {
		t.Errorf("verified submit should succeed:\n%s", body)
	}
}

func TestContactSubmitDeliveryFailure(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config, d *Deps) {
		cfg.Turnstile.Required = true
		d.Deliverer = contact.DelivererFunc(func(context.Context, contact.Payload) error {
			return &contact.DeliveryError{Status: http.StatusBadGateway}
		})
	})
	c := newClient(s)
	c.htmx = true

	form := validForm()
	form.Set(contact.TokenField, "tok")
	rec := c.do(http.MethodPost, "/contact/submit", form)
	body := rec.Body.String()
	if !strings.Contains(body, "Sorry, there was an issue sending your message.") {
		t.Error("missing failure notice")
	}
	if !strings.Contains(body, `value="jane@company.com"`) {
		t.Error("input should survive a failed delivery")
	}
	if rec.Header().Get("HX-Trigger") != "turnstile-reset" {
		t.Error("failed delivery should reset the widget")
	}
}

func TestContactPageResetsDialog(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := newClient(s)
	c.htmx = true
	c.do(http.MethodPost, "/contact/submit", validForm())

	c.htmx = false
	body := c.do(http.MethodGet, "/contact", nil).Body.String()
	if strings.Contains(body, "Message Sent!") {
		t.Error("visiting the contact page should start a fresh form")
	}
}

func TestContactEditTopic(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := newClient(s)
	c.htmx = true
	c.do(http.MethodPost, "/contact/open", url.Values{})

	rec := c.do(http.MethodPost, "/contact/edit", url.Values{"topic": {"Website"}})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("edit = %d", rec.Code)
	}
	c.htmx = false
	body := c.do(http.MethodGet, "/", nil).Body.String()
	if !strings.Contains(body, `<option value="Website" selected>`) {
		t.Error("edited topic should stay selected")
	}
}

func TestIntake(t *testing.T) {
	s, db := newTestServer(t, nil)
	c := newClient(s)

	p := contact.NewPayload(contact.Fields{
		Topic: contact.TopicIntegration, Name: "Ann", Email: "ann@example.com", Message: "Sync Stripe to HubSpot",
	}, "")
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(p.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("intake = %d %s", rec.Code, rec.Body)
	}
	var got struct {
		Status string `json:"status"`
		ID     int64  `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "received" || got.ID == 0 {
		t.Errorf("response = %+v", got)
	}
	subs, _ := db.ListSubmissions(context.Background(), 0)
	if len(subs) != 1 || subs[0].Topic != "Integration" {
		t.Fatalf("stored = %+v", subs)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("intake should not start a session")
	}

	tests := []struct {
		name string
		form url.Values
		want int
	}{
		{"no form name", url.Values{"name": {"x"}}, http.StatusBadRequest},
		{"other form", url.Values{"form-name": {"newsletter"}}, http.StatusBadRequest},
		{"invalid", url.Values{"form-name": {"contact"}, "name": {"x"}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := c.do(http.MethodPost, "/", tt.form); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

type rejectAll struct{}

func (rejectAll) Verify(context.Context, string, string) error { return errors.New("rejected") }

func TestIntakeUnverified(t *testing.T) {
	s, _ := newTestServer(t, func(_ *config.Config, d *Deps) {
		d.Inbox = inbox.New(d.DB, rejectAll{}, nil, quiet())
	})
	p := contact.NewPayload(contact.Fields{Name: "A", Email: "a@b.co", Message: "hi"}, "tok")
	form, _ := url.ParseQuery(p.Encode())
	if rec := newClient(s).do(http.MethodPost, "/", form); rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDemoEvents(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/demos/lead-generation/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() && data == "" {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}
	if event != "phase" {
		t.Errorf("event = %q", event)
	}
	var snap struct {
		Widget string `json:"widget"`
		Phase  int    `json:"phase"`
		Count  int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		t.Fatalf("data %q: %v", data, err)
	}
	if snap.Widget != "lead-generation" || snap.Phase != 0 || snap.Count != 142 {
		t.Errorf("first snapshot = %+v", snap)
	}
}

func TestDemoEventsUnknownWidget(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := newClient(s).do(http.MethodGet, "/demos/nope/events", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestVisitorTracking(t *testing.T) {
	s, db := newTestServer(t, nil)
	c := newClient(s)
	c.do(http.MethodGet, "/", nil)
	c.do(http.MethodGet, "/resume", nil, "DNT", "1")
	c.do(http.MethodGet, "/static/site.css", nil)
	c.do(http.MethodPost, "/contact/open", url.Values{})
	s.track.Wait()

	visits, err := db.RecentVisits(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(visits) != 1 || visits[0].Path != "/" {
		t.Fatalf("visits = %+v", visits)
	}
	if len(visits[0].HashedIP) != 16 || strings.Contains(visits[0].HashedIP, "192.0.2.1") {
		t.Errorf("address not hashed: %q", visits[0].HashedIP)
	}
}

func TestAdminLogin(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := newClient(s)

	rec := c.do(http.MethodGet, "/admin/dashboard", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/admin/login" {
		t.Fatalf("unauthenticated dashboard = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = c.do(http.MethodPost, "/admin/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", rec.Code)
	}

	rec = c.do(http.MethodPost, "/admin/login", url.Values{"username": {"admin"}, "password": {"s3cret"}})
	if rec.Code != http.StatusFound || c.cookies[adminCookie] == nil {
		t.Fatalf("login = %d", rec.Code)
	}
	rec = c.do(http.MethodGet, "/admin/dashboard", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Dashboard") {
		t.Fatalf("dashboard = %d", rec.Code)
	}
	rec = c.do(http.MethodGet, "/admin/api/stats", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total_visitors"`) {
		t.Errorf("stats = %d %s", rec.Code, rec.Body)
	}
}

func TestAdminPasswordHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newTestServer(t, func(cfg *config.Config, _ *Deps) {
		cfg.Admin.PasswordHash = string(hash)
	})
	if !s.checkAdmin("admin", "hunter2") {
		t.Error("hash should be accepted")
	}
	if s.checkAdmin("admin", "s3cret") {
		t.Error("plain password must be ignored once a hash is set")
	}
	if s.checkAdmin("root", "hunter2") {
		t.Error("wrong username accepted")
	}
}

func TestAdminDeleteSubmission(t *testing.T) {
	s, db := newTestServer(t, nil)
	id, err := db.SaveSubmission(context.Background(), store.Submission{
		Topic: "Other", Name: "A", Email: "a@b.co", Message: "hi",
	})
	if err != nil {
		t.Fatal(err)
	}
	c := newClient(s)
	c.do(http.MethodPost, "/admin/login", url.Values{"username": {"admin"}, "password": {"s3cret"}})

	body := c.do(http.MethodGet, "/admin/submissions", nil).Body.String()
	if !strings.Contains(body, "a@b.co") {
		t.Error("submission not listed")
	}

	path := "/admin/submissions/" + strconv.FormatInt(id, 10)
	if rec := c.do(http.MethodDelete, path, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec := c.do(http.MethodDelete, path, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
	if rec := c.do(http.MethodDelete, "/admin/submissions/abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := newClient(s).do(http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body)
	}
}

func TestContactSubmitDropsHoneypot(t *testing.T) {
	s, db := newTestServer(t, nil)
	c := newClient(s)
	c.htmx = true

	form := validForm()
	form.Set(contact.HoneypotField, "i am a bot")
	rec := c.do(http.MethodPost, "/contact/submit", form)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Message Sent!") {
		t.Fatalf("bot should see the usual confirmation: %d", rec.Code)
	}
	if subs, _ := db.ListSubmissions(context.Background(), 0); len(subs) != 0 {
		t.Fatalf("honeypot submission stored: %+v", subs)
	}
}

func TestTurnstileScriptOnlyWhenRequired(t *testing.T) {
	const script = "challenges.cloudflare.com/turnstile/v0/api.js"

	s, _ := newTestServer(t, nil)
	if body := newClient(s).do(http.MethodGet, "/", nil).Body.String(); strings.Contains(body, script) {
		t.Error("widget script loaded with verification off")
	}

	s, _ = newTestServer(t, func(cfg *config.Config, _ *Deps) {
		cfg.Turnstile.Required = true
	})
	if body := newClient(s).do(http.MethodGet, "/", nil).Body.String(); !strings.Contains(body, script) {
		t.Error("widget script missing with verification on")
	}
}
