package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tshoemake/portfolio/internal/store"
)

// requestLogger replaces gin's text logger with structured records.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		lvl := slog.LevelInfo
		switch {
		case status >= 500:
			lvl = slog.LevelError
		case status >= 400:
			lvl = slog.LevelWarn
		}
		log.LogAttrs(c.Request.Context(), lvl, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

// hashIP hashes a client address with the per-process salt so visits can be
// counted without keeping addresses.
func (s *Server) hashIP(ip string) string {
	h := sha256.New()
	h.Write([]byte(ip + s.hashingSalt))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

var untrackedPrefixes = []string{"/static/", "/admin/", "/demos/", "/favicon", "/privacy", "/healthz"}

// visitorTracking records GET page views with a hashed client address. It
// honours Do Not Track and never blocks the request on the write.
func (s *Server) visitorTracking() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet || c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}
		for _, p := range untrackedPrefixes {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}

		v := store.Visit{
			HashedIP:  s.hashIP(c.ClientIP()),
			UserAgent: c.GetHeader("User-Agent"),
			Path:      path,
			Timestamp: time.Now(),
		}
		s.track.Add(1)
		go func() {
			defer s.track.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.db.RecordVisit(ctx, v); err != nil {
				s.log.Error("recording visitor", slog.Any("error", err))
			}
		}()
		c.Next()
	}
}
