package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// methodsFile is the YAML document given with --methods:
//
//	columns:
//	  Name: sha256
//	  Country:
//	    method: swap
//	  Age:
//	    method: range-generalize
//	    params:
//	      range_size: 5
type methodsFile struct {
	Columns map[string]methodEntry `yaml:"columns"`
}

// methodEntry accepts either a bare method name or a mapping with params
type methodEntry model.MethodSelection

func (e *methodEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Method = model.MethodID(node.Value)
		return nil
	}

	var sel model.MethodSelection
	if err := node.Decode(&sel); err != nil {
		return err
	}
	*e = methodEntry(sel)
	return nil
}

func parseMethods(r io.Reader) (model.Selection, error) {
	var doc methodsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse methods file: %w", err)
	}

	selection := make(model.Selection, len(doc.Columns))
	for column, entry := range doc.Columns {
		selection[column] = model.MethodSelection(entry)
	}
	return selection, nil
}

// buildSelection combines a methods file with column=method flag overrides
func buildSelection(path string, overrides map[string]string) (model.Selection, error) {
	selection := model.Selection{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open methods file: %w", err)
		}
		defer f.Close()

		if selection, err = parseMethods(f); err != nil {
			return nil, err
		}
	}

	for column, method := range overrides {
		column = strings.TrimSpace(column)
		if column == "" {
			return nil, fmt.Errorf("empty column name in --method %q", "="+method)
		}
		selection[column] = model.MethodSelection{Method: model.MethodID(strings.TrimSpace(method))}
	}
	return selection, nil
}
