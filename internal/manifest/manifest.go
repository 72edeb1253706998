// Package manifest reads declarative controller files.
//
// A manifest names a registered controller and declares its routes the same
// way the annotations builder does:
//
//	controller: posts
//	group: {name: posts, prefix: /posts}
//	middleware: [auth]
//	routes:
//	  - {handler: index, method: get, pattern: /, name: index}
//	  - handler: show
//	    method: get
//	    pattern: /:id
//	    where: {id: '^\d+$'}
//
// YAML, JSON and TOML encodings are accepted, picked by file extension.
package manifest

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/pkg/annotations"
	"gopkg.in/yaml.v3"
)

// Manifest is one controller file.
type Manifest struct {
	Controller         string           `json:"controller" yaml:"controller" toml:"controller"`
	Mount              *Mount           `json:"mount,omitempty" yaml:"mount,omitempty" toml:"mount,omitempty"`
	Group              *Group           `json:"group,omitempty" yaml:"group,omitempty" toml:"group,omitempty"`
	Domain             string           `json:"domain,omitempty" yaml:"domain,omitempty" toml:"domain,omitempty"`
	Middleware         StringList       `json:"middleware,omitempty" yaml:"middleware,omitempty" toml:"middleware,omitempty"`
	Routes             []Route          `json:"routes,omitempty" yaml:"routes,omitempty" toml:"routes,omitempty"`
	Resource           *Resource        `json:"resource,omitempty" yaml:"resource,omitempty" toml:"resource,omitempty"`
	ResourceMiddleware []MiddlewareRule `json:"resource_middleware,omitempty" yaml:"resource_middleware,omitempty" toml:"resource_middleware,omitempty"`
	Only               StringList       `json:"only,omitempty" yaml:"only,omitempty" toml:"only,omitempty"`
	Except             StringList       `json:"except,omitempty" yaml:"except,omitempty" toml:"except,omitempty"`
	APIOnly            bool             `json:"api_only,omitempty" yaml:"api_only,omitempty" toml:"api_only,omitempty"`
}

// Mount prefixes the patterns and names of every route.
type Mount struct {
	Pattern string `json:"pattern" yaml:"pattern" toml:"pattern"`
	Name    string `json:"name" yaml:"name" toml:"name"`
}

// Group names and prefixes every route.
type Group struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Prefix string `json:"prefix" yaml:"prefix" toml:"prefix"`
}

// Route declares the route of one handler.
type Route struct {
	Handler    string            `json:"handler" yaml:"handler" toml:"handler"`
	Method     string            `json:"method" yaml:"method" toml:"method"`
	Pattern    string            `json:"pattern" yaml:"pattern" toml:"pattern"`
	Name       string            `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Where      map[string]string `json:"where,omitempty" yaml:"where,omitempty" toml:"where,omitempty"`
	Middleware StringList        `json:"middleware,omitempty" yaml:"middleware,omitempty" toml:"middleware,omitempty"`
}

// MiddlewareRule applies middleware to resource actions. Actions is "*" or a
// list of action names.
type MiddlewareRule struct {
	Actions    StringList `json:"actions" yaml:"actions" toml:"actions"`
	Middleware StringList `json:"middleware" yaml:"middleware" toml:"middleware"`
}

// Decode parses data in the encoding its path extension names.
func Decode(path string, data []byte) (*Manifest, error) {
	var m Manifest
	var err error

	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &m)
	case "json":
		err = json.Unmarshal(data, &m)
	case "toml":
		_, err = toml.Decode(string(data), &m)
	default:
		return nil, gerrors.NewModuleLoadError(gerrors.ErrCodeUnsupportedExtension,
			fmt.Sprintf("unsupported controller file extension %q", ext), nil).WithPath(path)
	}
	if err != nil {
		return nil, gerrors.NewModuleLoadError(gerrors.ErrCodeDecodeFailed, "invalid controller manifest", err).
			WithPath(path)
	}

	return &m, nil
}

// ControllerName returns the controller a file declares, falling back to
// its base name without extension and "_controller" suffix.
func ControllerName(path string, m *Manifest) string {
	if m != nil && m.Controller != "" {
		return m.Controller
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(base, "_controller")
}

// Annotate declares the manifest on d.
func (m *Manifest) Annotate(d *annotations.Declaration) {
	if m.Mount != nil {
		d.Mount(m.Mount.Pattern, m.Mount.Name)
	}
	if m.Group != nil {
		d.Group(m.Group.Name, m.Group.Prefix)
	}
	if m.Domain != "" {
		d.GroupDomain(m.Domain)
	}
	if len(m.Middleware) > 0 {
		d.GroupMiddleware(named(m.Middleware)...)
	}

	for _, r := range m.Routes {
		rd := d.Route(r.Handler)
		if r.Method != "" || r.Pattern != "" {
			rd.Verb(r.Method, r.Pattern)
		}
		if r.Name != "" {
			rd.As(r.Name)
		}
		keys := make([]string, 0, len(r.Where))
		for k := range r.Where {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rd.Where(k, r.Where[k])
		}
		rd.Middleware(named(r.Middleware)...)
	}

	if m.Resource != nil {
		res := d.ResourceWith(annotations.ResourceAnnotation{
			Pattern: m.Resource.Pattern,
			Name:    m.Resource.Name,
		})
		if len(m.Resource.Params) > 0 {
			res.Params(m.Resource.Params)
		}
	}
	for _, rule := range m.ResourceMiddleware {
		d.ResourceMiddleware(annotations.ParseSelector(rule.Actions...), named(rule.Middleware)...)
	}
	if m.Only != nil {
		d.Only(actions(m.Only)...)
	}
	if m.Except != nil {
		d.Except(actions(m.Except)...)
	}
	if m.APIOnly {
		d.APIOnly()
	}
}

// Validate reports declarations the builder cannot express.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Routes))
	for i, r := range m.Routes {
		if r.Handler == "" {
			return gerrors.NewMetadataError(gerrors.ErrCodeIncompleteRoute,
				fmt.Sprintf("route %d has no handler", i))
		}
		if seen[r.Handler] {
			return gerrors.NewMetadataError(gerrors.ErrCodeIncompleteRoute,
				fmt.Sprintf("handler %q is routed twice", r.Handler))
		}
		seen[r.Handler] = true
	}
	return nil
}

func named(names []string) []annotations.MiddlewareRef {
	refs := make([]annotations.MiddlewareRef, 0, len(names))
	for _, n := range names {
		refs = append(refs, annotations.Named(n))
	}
	return refs
}

func actions(names []string) []annotations.Action {
	out := make([]annotations.Action, 0, len(names))
	for _, n := range names {
		out = append(out, annotations.Action(n))
	}
	return out
}
