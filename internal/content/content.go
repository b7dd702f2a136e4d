// Package content holds the static copy of the site. The document is YAML,
// embedded at build time; long-form bodies are Markdown rendered once at
// load.
package content

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/tshoemake/portfolio/internal/contact"
	"github.com/tshoemake/portfolio/internal/demo"
)

//go:embed site.yaml
var siteYAML []byte

type Owner struct {
	Name         string `yaml:"name"`
	Headline     string `yaml:"headline"`
	Tagline      string `yaml:"tagline"`
	Email        string `yaml:"email"`
	Site         string `yaml:"site"`
	GitHub       string `yaml:"github"`
	LinkedIn     string `yaml:"linkedin"`
	Availability string `yaml:"availability"`
}

// Service is one offering, shown as a teaser on the landing page and as a
// full section on the services page.
type Service struct {
	ID      string        `yaml:"id"`
	Topic   contact.Topic `yaml:"topic"`
	Title   string        `yaml:"title"`
	Demo    string        `yaml:"demo"`
	Summary string        `yaml:"summary"`
	Body    string        `yaml:"body"`

	HTML template.HTML `yaml:"-"`
}

type Skill struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type Role struct {
	Title    string   `yaml:"title"`
	Company  string   `yaml:"company"`
	Location string   `yaml:"location"`
	Period   string   `yaml:"period"`
	Details  []string `yaml:"details"`
}

type Education struct {
	Degree      string `yaml:"degree"`
	Institution string `yaml:"institution"`
	Period      string `yaml:"period"`
}

type Resume struct {
	Skills    []Skill     `yaml:"skills"`
	Roles     []Role      `yaml:"roles"`
	Education []Education `yaml:"education"`
}

// Site is the whole content document.
type Site struct {
	Owner        Owner     `yaml:"owner"`
	Technologies []string  `yaml:"technologies"`
	Services     []Service `yaml:"services"`
	Resume       Resume    `yaml:"resume"`
}

var md = goldmark.New(goldmark.WithExtensions(extension.Linkify))

// Load parses the embedded document.
func Load() (*Site, error) { return Parse(siteYAML) }

// Parse decodes a content document, renders Markdown bodies and checks
// references to topics and demo widgets.
func Parse(b []byte) (*Site, error) {
	var s Site
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	if s.Owner.Name == "" {
		return nil, fmt.Errorf("content: owner.name is required")
	}
	for i := range s.Services {
		svc := &s.Services[i]
		if _, ok := contact.ParseTopic(string(svc.Topic)); !ok {
			return nil, fmt.Errorf("content: service %q has unknown topic %q", svc.ID, svc.Topic)
		}
		if svc.Demo != "" {
			if _, ok := demo.Lookup(svc.Demo); !ok {
				return nil, fmt.Errorf("content: service %q references unknown demo %q", svc.ID, svc.Demo)
			}
		}
		html, err := Markdown(svc.Body)
		if err != nil {
			return nil, fmt.Errorf("content: service %q: %w", svc.ID, err)
		}
		svc.HTML = html
	}
	return &s, nil
}

// Markdown renders src to trusted HTML. Content is authored in-repo.
func Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}
