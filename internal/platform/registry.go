// Package platform holds the single table of supported social platforms:
// which credential fields each one needs, its caption limit and the setup
// help shown while connecting.
package platform

import (
	"sort"
	"strings"
)

const (
	Instagram = "instagram"
	Twitter   = "twitter"
	LinkedIn  = "linkedin"
)

const (
	FieldText     = "text"
	FieldPassword = "password"
)

type Field struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Secret reports whether the value must never be echoed back to clients.
func (f Field) Secret() bool {
	return f.Type == FieldPassword
}

type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type Platform struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	Icon         string   `json:"icon"`
	MaxChars     int      `json:"max_chars"`
	PrimaryField string   `json:"primary_field"`
	Fields       []Field  `json:"fields"`
	Title        string   `json:"title"`
	SetupSteps   []string `json:"setup_steps"`
	HelpLinks    []Link   `json:"help_links"`
	// DefaultLimit marks the platform whose MaxChars caps a draft with
	// nothing selected.
	DefaultLimit bool     `json:"-"`
}

func (p *Platform) Field(name string) (Field, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the names of the fields a submission must fill.
func (p *Platform) RequiredFields() []string {
	var names []string
	for _, f := range p.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Registry is read-only after construction and safe for concurrent use.
type Registry struct {
	platforms map[string]*Platform
	order     []string
}

func NewRegistry(platforms ...Platform) *Registry {
	r := &Registry{platforms: make(map[string]*Platform, len(platforms))}
	for i := range platforms {
		p := platforms[i]
		r.platforms[p.Name] = &p
		r.order = append(r.order, p.Name)
	}
	return r
}

func (r *Registry) Get(name string) (*Platform, bool) {
	p, ok := r.platforms[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns the registered platform names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) All() []*Platform {
	out := make([]*Platform, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.platforms[name])
	}
	return out
}

// Limit is the caption ceiling for a selection: the smallest MaxChars among
// the selected platforms. With nothing selected it is the MaxChars of the
// DefaultLimit platform, or the largest registered limit when none is marked.
func (r *Registry) Limit(selected []string) int {
	limit := 0
	for _, name := range selected {
		p, ok := r.Get(name)
		if !ok {
			continue
		}
		if limit == 0 || p.MaxChars < limit {
			limit = p.MaxChars
		}
	}
	if limit > 0 {
		return limit
	}
	for _, p := range r.platforms {
		if p.DefaultLimit {
			return p.MaxChars
		}
	}
	for _, p := range r.platforms {
		if p.MaxChars > limit {
			limit = p.MaxChars
		}
	}
	return limit
}

// MissingFields lists the required fields of the platform that values leaves
// empty, sorted by name.
func (r *Registry) MissingFields(name string, values map[string]string) []string {
	p, ok := r.Get(name)
	if !ok {
		return nil
	}
	var missing []string
	for _, field := range p.RequiredFields() {
		if strings.TrimSpace(values[field]) == "" {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}

// IsConnected applies the connection rule: the platform's primary field is non-empty.
func (r *Registry) IsConnected(name string, values map[string]string) bool {
	p, ok := r.Get(name)
	if !ok {
		return false
	}
	return strings.TrimSpace(values[p.PrimaryField]) != ""
}

// Normalize keeps only the fields the platform declares, trimmed.
func (r *Registry) Normalize(name string, values map[string]string) map[string]string {
	p, ok := r.Get(name)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(p.Fields))
	for _, f := range p.Fields {
		out[f.Name] = strings.TrimSpace(values[f.Name])
	}
	return out
}
