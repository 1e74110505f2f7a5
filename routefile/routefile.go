// Package routefile builds route trees from YAML or TOML tables.
//
// A table lists routes by name and the names of the root routes:
//
//	root: [slug]
//	routes:
//	  - name: slug
//	    pattern: /:slug
//	    next: [panel]
//	  - name: panel
//	    split: /~
//	    subroutes: [folder]
//	    next: [panel]
//	  - name: folder
//	    pattern: /f/:id
//	    loader: folder
//	    await: true
//
// Each route declares exactly one matcher: pattern, prefixes, split (a
// panel separator), predicate (a Go predicate from the Registry) or lua (a
// Lua function body receiving `remaining` and returning the consumed
// prefix or nil). Routes reference each other by name in next and
// subroutes, so a route may list itself. Loaders come from the Registry;
// a render name is looked up in the Registry and otherwise kept as a
// string.
package routefile

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/waypoint/route"
)

var (
	// ErrUnknownFormat is returned for a file extension that is neither
	// YAML nor TOML.
	ErrUnknownFormat = errors.New("routefile: unknown file format")
	// ErrNoRoot is returned when a table lists no root routes.
	ErrNoRoot = errors.New("routefile: no root routes")
	// ErrDuplicateRoute is returned when two routes share a name.
	ErrDuplicateRoute = errors.New("routefile: duplicate route name")
	// ErrUnknownRoute is returned for a reference to an undeclared route.
	ErrUnknownRoute = errors.New("routefile: unknown route")
	// ErrMatcher is returned when a route declares no matcher or more
	// than one.
	ErrMatcher = errors.New("routefile: route must declare exactly one matcher")
	// ErrUnknownLoader is returned for a loader missing from the registry.
	ErrUnknownLoader = errors.New("routefile: unknown loader")
	// ErrUnknownPredicate is returned for a predicate missing from the
	// registry.
	ErrUnknownPredicate = errors.New("routefile: unknown predicate")
)

// Format is a table encoding.
type Format string

// Supported formats.
const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// FormatOf returns the format of path by its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// File is the decoded form of a table.
type File struct {
	Root   []string `yaml:"root" toml:"root"`
	Routes []Decl   `yaml:"routes" toml:"routes"`
}

// Decl declares one route.
type Decl struct {
	Name string `yaml:"name" toml:"name"`

	Pattern   string   `yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	Prefixes  []string `yaml:"prefixes,omitempty" toml:"prefixes,omitempty"`
	Split     string   `yaml:"split,omitempty" toml:"split,omitempty"`
	Predicate string   `yaml:"predicate,omitempty" toml:"predicate,omitempty"`
	Lua       string   `yaml:"lua,omitempty" toml:"lua,omitempty"`

	Loader string `yaml:"loader,omitempty" toml:"loader,omitempty"`
	Await  bool   `yaml:"await,omitempty" toml:"await,omitempty"`
	Render string `yaml:"render,omitempty" toml:"render,omitempty"`

	// Next is nil when the route has no continuation; an empty list is a
	// continuation that matches nothing.
	Next      []string `yaml:"next,omitempty" toml:"next,omitempty"`
	Subroutes []string `yaml:"subroutes,omitempty" toml:"subroutes,omitempty"`
}

// Registry supplies the Go values a table refers to by name.
type Registry struct {
	Loaders    map[string]*route.Loader
	Renders    map[string]any
	Predicates map[string]route.PredicateFunc
}

// Option configures loading.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used by Lua predicates and Watch.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Table is a loaded route table.
type Table struct {
	// Root lists the root routes in declaration order.
	Root []*route.Route

	routes map[string]*route.Route
	names  []string
	lua    *luaEnv
}

// Route returns the route declared as name.
func (t *Table) Route(name string) (*route.Route, bool) {
	r, ok := t.routes[name]
	return r, ok
}

// Names returns the route names in declaration order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Close releases the Lua state. Lua predicates stop matching afterwards.
func (t *Table) Close() {
	if t.lua != nil {
		t.lua.close()
	}
}

// Load reads and builds the table at path.
func Load(path string, reg *Registry, opts ...Option) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routefile: reading %s: %w", path, err)
	}

	t, err := Parse(data, format, reg, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes data in format and builds the table. Unknown keys are
// rejected.
func Parse(data []byte, format Format, reg *Registry, opts ...Option) (*Table, error) {
	f, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	return Build(f, reg, opts...)
}

// Decode decodes data in format without building routes.
func Decode(data []byte, format Format) (*File, error) {
	var f File

	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("routefile: parsing yaml: %w", err)
		}
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("routefile: parsing toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return &f, nil
}

// Build turns a decoded file into routes. Routes are created first and
// wired second, so references may point forwards or to the route itself.
func Build(f *File, reg *Registry, opts ...Option) (*Table, error) {
	o := buildOptions(opts)
	if reg == nil {
		reg = &Registry{}
	}

	if len(f.Root) == 0 {
		return nil, ErrNoRoot
	}

	t := &Table{routes: make(map[string]*route.Route, len(f.Routes))}

	for i := range f.Routes {
		decl := &f.Routes[i]

		if decl.Name == "" {
			t.Close()
			return nil, fmt.Errorf("routefile: route #%d has no name", i+1)
		}
		if _, ok := t.routes[decl.Name]; ok {
			t.Close()
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRoute, decl.Name)
		}

		r, err := t.newRoute(decl, reg, o)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("routefile: route %q: %w", decl.Name, err)
		}

		t.routes[decl.Name] = r
		t.names = append(t.names, decl.Name)
	}

	for i := range f.Routes {
		decl := &f.Routes[i]
		r := t.routes[decl.Name]

		subroutes, err := t.lookup(decl.Subroutes)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("routefile: route %q subroutes: %w", decl.Name, err)
		}
		r.Subroutes = subroutes

		if decl.Next != nil {
			next, err := t.lookup(decl.Next)
			if err != nil {
				t.Close()
				return nil, fmt.Errorf("routefile: route %q next: %w", decl.Name, err)
			}
			r.Next = route.Routes(next...)
		}
	}

	root, err := t.lookup(f.Root)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("routefile: root: %w", err)
	}
	t.Root = root

	return t, nil
}

func (t *Table) lookup(names []string) ([]*route.Route, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]*route.Route, len(names))
	for i, name := range names {
		r, ok := t.routes[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRoute, name)
		}
		out[i] = r
	}
	return out, nil
}

func (t *Table) newRoute(decl *Decl, reg *Registry, o options) (*route.Route, error) {
	m, err := t.matcher(decl, reg, o)
	if err != nil {
		return nil, err
	}

	r := &route.Route{
		Name:    decl.Name,
		Matcher: m,
		Await:   decl.Await,
	}

	if decl.Loader != "" {
		l, ok := reg.Loaders[decl.Loader]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLoader, decl.Loader)
		}
		r.Loader = l
	}

	if decl.Render != "" {
		if v, ok := reg.Renders[decl.Render]; ok {
			r.Render = v
		} else {
			r.Render = decl.Render
		}
	}

	return r, nil
}

func (t *Table) matcher(decl *Decl, reg *Registry, o options) (route.Matcher, error) {
	declared := 0
	for _, set := range []bool{
		decl.Pattern != "",
		decl.Prefixes != nil,
		decl.Split != "",
		decl.Predicate != "",
		decl.Lua != "",
	} {
		if set {
			declared++
		}
	}
	if declared != 1 {
		return route.Matcher{}, ErrMatcher
	}

	switch {
	case decl.Pattern != "":
		m := route.Pattern(decl.Pattern)
		if err := m.Err(); err != nil {
			return route.Matcher{}, err
		}
		return m, nil

	case decl.Prefixes != nil:
		return route.Prefixes(decl.Prefixes...), nil

	case decl.Split != "":
		return route.Predicate(route.SplitOn(decl.Split)), nil

	case decl.Predicate != "":
		fn, ok := reg.Predicates[decl.Predicate]
		if !ok || fn == nil {
			return route.Matcher{}, fmt.Errorf("%w: %q", ErrUnknownPredicate, decl.Predicate)
		}
		return route.Predicate(fn), nil

	default:
		if t.lua == nil {
			t.lua = newLuaEnv(o.logger)
		}
		fn, err := t.lua.compile(decl.Name, decl.Lua)
		if err != nil {
			return route.Matcher{}, err
		}
		return route.Predicate(fn), nil
	}
}
