package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tshoemake/portfolio/internal/demo"
)

// handleDemoEvents streams a widget's phases as server-sent events. The
// widget is mounted for the lifetime of the connection; when the client goes
// away the request context ends and the ticker stops with it.
func (s *Server) handleDemoEvents(c *gin.Context) {
	w, err := demo.New(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown demo"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("phase", w.Snapshot())
	c.Writer.Flush()

	updates := make(chan demo.Snapshot)
	ctx := c.Request.Context()
	go w.Run(ctx, func(snap demo.Snapshot) bool {
		select {
		case updates <- snap:
			return true
		case <-ctx.Done():
			return false
		}
	})

	c.Stream(func(io.Writer) bool {
		select {
		case snap := <-updates:
			c.SSEvent("phase", snap)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
