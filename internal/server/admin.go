package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminCookie = "admin_token"
	// devPassword is only honoured in debug mode when no password is configured.
	devPassword = "admin123"
)

func (s *Server) adminRoutes(r *gin.Engine) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{"Site": s.site, "Title": "Privacy Policy"})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{"Title": "Admin Login"})
	})
	r.POST("/admin/login", s.handleAdminLogin)
	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", false, true)
		s.log.Info("admin logout", slog.String("client", s.hashIP(c.ClientIP())))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	admin := r.Group("/admin")
	admin.Use(s.adminAuth())
	admin.GET("/dashboard", s.handleAdminDashboard)
	admin.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.db.Stats(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})
	admin.GET("/submissions", s.handleAdminSubmissions)
	admin.DELETE("/submissions/:id", s.handleAdminDeleteSubmission)
	admin.GET("/visitors", s.handleAdminVisitors)
	admin.POST("/privacy/cleanup", func(c *gin.Context) {
		n, err := s.db.CleanupVisits(c.Request.Context(), time.Now().Add(-visitorRetention))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup complete", "removed": n})
	})
	admin.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.db.Stats(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		s.log.Info("admin stats exported", slog.String("client", s.hashIP(c.ClientIP())))
		c.JSON(http.StatusOK, stats)
	})
}

func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// checkAdmin compares credentials against the configured bcrypt hash, or the
// plain password when no hash is set.
func (s *Server) checkAdmin(username, password string) bool {
	a := s.cfg.Admin
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) == 1
	switch {
	case a.PasswordHash != "":
		return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil && userOK
	case a.Password != "":
		return subtle.ConstantTimeCompare([]byte(password), []byte(a.Password)) == 1 && userOK
	case gin.Mode() == gin.DebugMode:
		s.log.Warn("using default admin password; set admin.password_hash")
		return password == devPassword && userOK
	default:
		return false
	}
}

func (s *Server) handleAdminLogin(c *gin.Context) {
	client := s.hashIP(c.ClientIP())
	if !s.checkAdmin(c.PostForm("username"), c.PostForm("password")) {
		s.log.Warn("failed admin login", slog.String("client", client))
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
			"Title": "Admin Login",
			"Error": "Invalid credentials",
		})
		return
	}
	c.SetCookie(adminCookie, s.adminToken, 3600*24, "/admin", "", s.cfg.Server.Mode == gin.ReleaseMode, true)
	s.log.Info("admin login", slog.String("client", client))
	c.Redirect(http.StatusFound, "/admin/dashboard")
}

func (s *Server) adminError(c *gin.Context, msg string, err error) {
	s.log.Error(msg, slog.Any("error", err))
	c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"Title": "Error", "Error": msg})
}

func (s *Server) handleAdminDashboard(c *gin.Context) {
	stats, err := s.db.Stats(c.Request.Context(), time.Now())
	if err != nil {
		s.adminError(c, "Failed to load statistics", err)
		return
	}
	c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
		"Title":    "Dashboard",
		"Stats":    stats,
		"Sessions": s.sessions.len(),
	})
}

func (s *Server) handleAdminSubmissions(c *gin.Context) {
	subs, err := s.db.ListSubmissions(c.Request.Context(), 0)
	if err != nil {
		s.adminError(c, "Failed to load submissions", err)
		return
	}
	c.HTML(http.StatusOK, "admin-submissions.html", gin.H{"Title": "Submissions", "Submissions": subs})
}

func (s *Server) handleAdminDeleteSubmission(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	ok, err := s.db.DeleteSubmission(c.Request.Context(), id)
	if err != nil {
		s.log.Error("deleting submission", slog.Int64("id", id), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete submission"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
		return
	}
	s.log.Info("submission deleted", slog.Int64("id", id), slog.String("client", s.hashIP(c.ClientIP())))
	c.JSON(http.StatusOK, gin.H{"message": "Submission deleted"})
}

func (s *Server) handleAdminVisitors(c *gin.Context) {
	visits, err := s.db.RecentVisits(c.Request.Context(), 200)
	if err != nil {
		s.adminError(c, "Failed to load visitors", err)
		return
	}
	c.HTML(http.StatusOK, "admin-visitors.html", gin.H{"Title": "Visitors", "Visitors": visits})
}
