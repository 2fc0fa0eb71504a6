// Package schema loads record type declarations from YAML files.
package schema

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/domsync/pkg/errors"
	"github.com/go-drift/domsync/pkg/extract"
	"github.com/go-drift/domsync/pkg/model"
)

// File is the on-disk schema layout.
type File struct {
	Version string     `yaml:"version"`
	Types   []TypeDecl `yaml:"types"`
}

// TypeDecl declares one record type.
type TypeDecl struct {
	Name       string      `yaml:"name"`
	Tag        string      `yaml:"tag,omitempty"`
	Events     []string    `yaml:"events,omitempty"`
	Attributes []string    `yaml:"attributes,omitempty"`
	Fields     []FieldDecl `yaml:"fields"`
}

// FieldDecl declares one field and the strategy deriving it.
type FieldDecl struct {
	Key       string `yaml:"key"`
	Strategy  string `yaml:"strategy"`
	Attribute string `yaml:"attribute,omitempty"`
	Selector  string `yaml:"selector,omitempty"`
	Type      string `yaml:"type,omitempty"`
	Default   any    `yaml:"default,omitempty"`
	// Types maps child tags to type names for the dispatch strategy.
	Types map[string]string `yaml:"types,omitempty"`
}

// Schema is a loaded set of record types.
type Schema struct {
	Version string
	Types   map[string]*model.Type
	// Tags maps element tags to the type declared for them.
	Tags map[string]*model.Type
}

// Names returns the type names in sorted order.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads and builds the schema at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return Parse(data)
}

// Parse builds a schema from YAML.
func Parse(data []byte) (*Schema, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return Build(&f)
}

// Build validates f and constructs its types in dependency order.
func Build(f *File) (*Schema, error) {
	version := strings.TrimSpace(f.Version)
	if !semver.IsValid(version) {
		return nil, invalid("", "version %q is not a valid semantic version", f.Version)
	}
	if semver.Major(version) != "v1" {
		return nil, invalid("", "unsupported schema version %s (want v1)", version)
	}

	decls := make(map[string]*TypeDecl, len(f.Types))
	for i := range f.Types {
		d := &f.Types[i]
		if d.Name == "" {
			return nil, invalid("", "type %d has no name", i)
		}
		if _, dup := decls[d.Name]; dup {
			return nil, invalid(d.Name, "type declared twice")
		}
		decls[d.Name] = d
	}

	b := &builder{decls: decls, built: make(map[string]*model.Type), state: make(map[string]int)}
	for _, d := range f.Types {
		if _, err := b.build(d.Name, nil); err != nil {
			return nil, err
		}
	}

	s := &Schema{Version: version, Types: b.built, Tags: make(map[string]*model.Type)}
	for _, d := range f.Types {
		if d.Tag == "" {
			continue
		}
		tag := strings.ToLower(d.Tag)
		if prev, dup := s.Tags[tag]; dup {
			return nil, invalid(d.Name, "tag %q already used by type %q", d.Tag, prev.Name())
		}
		s.Tags[tag] = b.built[d.Name]
	}
	return s, nil
}

const (
	unvisited = iota
	visiting
	done
)

type builder struct {
	decls map[string]*TypeDecl
	built map[string]*model.Type
	state map[string]int
}

func (b *builder) build(name string, path []string) (*model.Type, error) {
	switch b.state[name] {
	case done:
		return b.built[name], nil
	case visiting:
		cycle := append(slices.Clone(path[indexOf(path, name):]), name)
		return nil, invalid(name, "type cycle %s", strings.Join(cycle, " -> "))
	}
	d, ok := b.decls[name]
	if !ok {
		from := ""
		if len(path) > 0 {
			from = path[len(path)-1]
		}
		return nil, invalid(from, "unknown type %q", name)
	}
	b.state[name] = visiting
	path = append(path, name)

	tb := model.NewType(name)
	for _, fd := range d.Fields {
		s, err := b.strategy(fd, path)
		if err != nil {
			return nil, err
		}
		tb.Field(fd.Key, s)
	}
	for _, a := range d.Attributes {
		tb.Attribute(a)
	}
	for _, e := range d.Events {
		tb.Event(e)
	}
	t, err := tb.Build()
	if err != nil {
		return nil, err
	}
	b.state[name] = done
	b.built[name] = t
	return t, nil
}

func (b *builder) strategy(fd FieldDecl, path []string) (model.Strategy, error) {
	owner := path[len(path)-1]
	ref := func() (*model.Type, error) {
		if fd.Type == "" {
			return nil, invalid(owner, "field %q: strategy %s needs a type", fd.Key, fd.Strategy)
		}
		return b.build(fd.Type, path)
	}
	need := func(v, what string) error {
		if v == "" {
			return invalid(owner, "field %q: strategy %s needs a %s", fd.Key, fd.Strategy, what)
		}
		return nil
	}
	attr := fd.Attribute
	if attr == "" {
		attr = fd.Key
	}

	switch fd.Strategy {
	case "attribute":
		return extract.Attr(attr, fd.Default), nil
	case "boolean":
		return extract.Bool(attr), nil
	case "json":
		return extract.JSON(attr, fd.Default), nil
	case "text":
		return extract.Text(), nil
	case "child-text":
		if err := need(fd.Selector, "selector"); err != nil {
			return nil, err
		}
		return extract.ChildText(fd.Selector), nil
	case "nested":
		t, err := ref()
		if err != nil {
			return nil, err
		}
		if fd.Selector == "" {
			return extract.Nested(t), nil
		}
		return extract.Nested(t, fd.Selector), nil
	case "ref":
		if err := need(fd.Selector, "selector"); err != nil {
			return nil, err
		}
		t, err := ref()
		if err != nil {
			return nil, err
		}
		return extract.Ref(fd.Selector, t), nil
	case "list":
		if err := need(fd.Selector, "selector"); err != nil {
			return nil, err
		}
		t, err := ref()
		if err != nil {
			return nil, err
		}
		return extract.List(fd.Selector, t), nil
	case "dispatch":
		if len(fd.Types) == 0 {
			return nil, invalid(owner, "field %q: strategy dispatch needs types", fd.Key)
		}
		types := make(map[string]*model.Type, len(fd.Types))
		for tag, name := range fd.Types {
			t, err := b.build(name, path)
			if err != nil {
				return nil, err
			}
			types[strings.ToLower(tag)] = t
		}
		return extract.Dispatch(types), nil
	case "delegate":
		if err := need(fd.Selector, "selector"); err != nil {
			return nil, err
		}
		return extract.Delegate(fd.Selector), nil
	case "embed":
		if err := need(fd.Selector, "selector"); err != nil {
			return nil, err
		}
		return extract.Embed(fd.Selector), nil
	case "embed-list":
		if err := need(fd.Selector, "selector"); err != nil {
			return nil, err
		}
		return extract.EmbedList(fd.Selector), nil
	case "":
		return nil, invalid(owner, "field %q has no strategy", fd.Key)
	default:
		return nil, invalid(owner, "field %q: unknown strategy %q", fd.Key, fd.Strategy)
	}
}

func indexOf(path []string, name string) int {
	for i, p := range path {
		if p == name {
			return i
		}
	}
	return 0
}

func invalid(typ, format string, args ...any) error {
	return &errors.SyncError{
		Op:   "schema.Build",
		Kind: errors.KindSchema,
		Type: typ,
		Err:  fmt.Errorf(format, args...),
	}
}
