package cmd

import (
	"fmt"
	"strings"

	"github.com/go-drift/domsync/pkg/schema"
)

func init() {
	RegisterCommand(&Command{
		Name:  "validate",
		Short: "Check a schema file",
		Long: `Load a schema file and build every record type it declares.

Reports unknown strategies, invalid selectors, references to undeclared
types and reference cycles.`,
		Usage: "domsync validate <schema.yaml>",
		Run:   runValidate,
	})
}

func runValidate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("a schema file is required\n\nUsage: domsync validate <schema.yaml>")
	}
	s, err := schema.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Schema %s: %d types\n", s.Version, len(s.Types))
	for _, name := range s.Names() {
		typ := s.Types[name]
		var keys []string
		for _, f := range typ.Fields() {
			keys = append(keys, f.Key)
		}
		fmt.Fprintf(stdout, "  %-14s %s\n", name, strings.Join(keys, ", "))
	}
	return nil
}
