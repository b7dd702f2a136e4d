// Package nav holds the fixed route table of the site and builds the
// navigation links with the active entry marked.
package nav

import "strings"

// Route identifies one of the site's pages.
type Route int

const (
	Home Route = iota
	Services
	Resume
	Contact
)

type entry struct {
	route Route
	name  string
	path  string
}

// table is in navigation order.
var table = []entry{
	{Home, "Home", "/"},
	{Services, "Services", "/services"},
	{Resume, "Resume", "/resume"},
	{Contact, "Contact", "/contact"},
}

// Link is one navigation entry as rendered in the navbar.
type Link struct {
	Name   string
	Path   string
	Active bool
}

// Routes returns every route in navigation order.
func Routes() []Route {
	out := make([]Route, len(table))
	for i, e := range table {
		out[i] = e.route
	}
	return out
}

// Path returns the URL path of r.
func (r Route) Path() string {
	for _, e := range table {
		if e.route == r {
			return e.path
		}
	}
	return "/"
}

// Name returns the navbar label of r.
func (r Route) Name() string {
	for _, e := range table {
		if e.route == r {
			return e.name
		}
	}
	return ""
}

func (r Route) String() string { return r.Name() }

// Resolve maps a request path to its route. A single trailing slash is
// ignored; anything else that is not in the table reports false.
func Resolve(path string) (Route, bool) {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, e := range table {
		if e.path == path {
			return e.route, true
		}
	}
	return Home, false
}

// Links builds the navbar for the page currently shown.
func Links(current Route) []Link {
	links := make([]Link, len(table))
	for i, e := range table {
		links[i] = Link{Name: e.name, Path: e.path, Active: e.route == current}
	}
	return links
}
