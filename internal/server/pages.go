package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tshoemake/portfolio/internal/content"
	"github.com/tshoemake/portfolio/internal/nav"
)

var pageTemplates = map[nav.Route]string{
	nav.Home:     "home.html",
	nav.Services: "services.html",
	nav.Resume:   "resume.html",
	nav.Contact:  "contact.html",
}

func (s *Server) pageRoutes(g *gin.RouterGroup) {
	for _, r := range nav.Routes() {
		g.GET(r.Path(), s.page(r))
	}
}

// page renders one of the four views. Every view carries the navbar with the
// current route marked, and the contact modal when the visitor has it open.
func (s *Server) page(route nav.Route) gin.HandlerFunc {
	tmpl := pageTemplates[route]
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		if route == nav.Contact {
			// the page is the inline realization of the dialog
			sess.dialog.Close()
		}
		c.HTML(http.StatusOK, tmpl, s.pageData(c, route))
	}
}

func (s *Server) pageData(c *gin.Context, route nav.Route) gin.H {
	sess := sessionFrom(c)
	return gin.H{
		"Site":         s.site,
		"Title":        route.Name(),
		"From":         route.Path(),
		"Nav":          nav.Links(route),
		"ScrollLocked": sess.scroll.Suspended(),
		"ModalOpen":    sess.dialog.IsOpen(),
		"Form":         s.formData(sess, route == nav.Contact),
		"Featured":     featured(s.site),
	}
}

// featured lists the services that have a live demo, for the landing page.
func featured(site *content.Site) []content.Service {
	var out []content.Service
	for _, svc := range site.Services {
		if svc.Demo != "" {
			out = append(out, svc)
		}
	}
	return out
}
