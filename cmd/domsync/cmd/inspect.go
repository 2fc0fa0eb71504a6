package cmd

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/domsync/pkg/dom"
	"github.com/go-drift/domsync/pkg/host"
	"github.com/go-drift/domsync/pkg/model"
	"github.com/go-drift/domsync/pkg/schema"
)

func init() {
	RegisterCommand(&Command{
		Name:  "inspect",
		Short: "Print the records derived from an HTML file",
		Long: `Derive records from an HTML file and print them as YAML.

By default every element whose tag is declared in the schema is upgraded
and listed with its model. With --type, only the named type is derived,
from the first element with its tag (or the first element of the body
when the type has no tag).`,
		Usage: "domsync inspect --schema <schema.yaml> [--type <name>] <page.html>",
		Run:   runInspect,
	})
}

type inspectOptions struct {
	schemaPath string
	typeName   string
	htmlPath   string
}

type inspectEntry struct {
	Tag   string         `yaml:"tag"`
	Model map[string]any `yaml:"model"`
}

func runInspect(args []string) error {
	var opts inspectOptions
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--schema", "-schema":
			if i+1 < len(args) {
				opts.schemaPath = args[i+1]
				i++
			}
		case "--type", "-type":
			if i+1 < len(args) {
				opts.typeName = args[i+1]
				i++
			}
		default:
			opts.htmlPath = args[i]
		}
	}
	if opts.schemaPath == "" || opts.htmlPath == "" {
		return fmt.Errorf("schema and HTML file are required\n\nUsage: domsync inspect --schema <schema.yaml> [--type <name>] <page.html>")
	}

	s, err := schema.Load(opts.schemaPath)
	if err != nil {
		return err
	}
	f, err := os.Open(opts.htmlPath)
	if err != nil {
		return fmt.Errorf("failed to read HTML: %w", err)
	}
	defer f.Close()
	doc, err := dom.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	var out any
	if opts.typeName != "" {
		out, err = inspectType(s, doc, opts.typeName)
	} else {
		out, err = inspectAll(s, doc)
	}
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

func inspectType(s *schema.Schema, doc *dom.Document, name string) (map[string]any, error) {
	typ, ok := s.Types[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q (have %s)", name, strings.Join(s.Names(), ", "))
	}
	node := findTarget(s, doc, typ)
	if node == nil {
		return nil, fmt.Errorf("no element to derive %q from", name)
	}
	inst := model.NewInstance(typ, model.NewEnv(doc), node)
	defer inst.Teardown()
	if err := inst.DeriveAll(node); err != nil {
		return nil, err
	}
	return inst.Export(), nil
}

func findTarget(s *schema.Schema, doc *dom.Document, typ *model.Type) *html.Node {
	for tag, t := range s.Tags {
		if t == typ {
			return dom.Query(doc.Root(), tag)
		}
	}
	body := dom.Query(doc.Root(), "body")
	if body == nil {
		return nil
	}
	if children := dom.Children(body); len(children) > 0 {
		return children[0]
	}
	return nil
}

func inspectAll(s *schema.Schema, doc *dom.Document) ([]inspectEntry, error) {
	reg := host.NewRegistry(nil)
	if err := reg.DefineSchema(s, nil); err != nil {
		return nil, err
	}
	h := reg.Attach(doc, doc.Root())
	defer h.Detach()
	h.Flush()

	entries := []inspectEntry{}
	for _, e := range h.Elements() {
		m, _ := e.GenerateModel()
		entries = append(entries, inspectEntry{Tag: e.Definition().Tag, Model: m})
	}
	return entries, nil
}
