// Package catalog declares the EduGenius flows. Definitions live in catalog.yaml and are
// compiled into a flow.Registry at startup; a broken catalog fails startup.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"edugenius/backend/internal/flow"
	"edugenius/backend/internal/generation"
	"edugenius/backend/internal/schema"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Document is the decoded form of a catalog file.
type Document struct {
	Flows    []FlowDoc     `yaml:"flows"`
	Composed []ComposedDoc `yaml:"composed"`
}

// FlowDoc declares a single-step flow.
type FlowDoc struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	System      string              `yaml:"system"`
	Input       *schema.Schema      `yaml:"input"`
	Output      *schema.Schema      `yaml:"output"`
	Template    string              `yaml:"template"`
	Counts      []flow.CountBinding `yaml:"counts"`
}

// ComposedDoc declares a composed flow over flows declared in the same document.
type ComposedDoc struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Input       *schema.Schema      `yaml:"input"`
	Output      *schema.Schema      `yaml:"output"`
	Steps       []StepDoc           `yaml:"steps"`
	Collect     map[string]flow.Ref `yaml:"collect"`
}

// StepDoc names a flow and wires its input from the previous step's output.
type StepDoc struct {
	Flow string            `yaml:"flow"`
	Map  map[string]string `yaml:"map"`
}

// Default returns the embedded catalog.
func Default() (*Document, error) {
	return Decode(bytes.NewReader(defaultCatalog))
}

// Decode reads a catalog document. Unknown keys are rejected so typos in schema
// constraints do not silently disable them.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog: empty document")
		}
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return &doc, nil
}

// Build compiles every flow in doc against inv and registers it in reg.
func Build(doc *Document, inv generation.Invoker, reg *flow.Registry) error {
	defs := make(map[string]*flow.Definition, len(doc.Flows))
	for _, fd := range doc.Flows {
		def, err := flow.NewDefinition(flow.Spec{
			Name:        fd.Name,
			Description: fd.Description,
			System:      fd.System,
			Input:       fd.Input,
			Output:      fd.Output,
			Template:    fd.Template,
			Counts:      fd.Counts,
		}, inv)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		defs[fd.Name] = def
	}

	for _, cd := range doc.Composed {
		steps := make([]flow.Step, 0, len(cd.Steps))
		for i, sd := range cd.Steps {
			def, ok := defs[sd.Flow]
			if !ok {
				return fmt.Errorf("catalog: composed flow %q step %d: unknown flow %q", cd.Name, i+1, sd.Flow)
			}
			steps = append(steps, flow.Step{Flow: def, Map: sd.Map})
		}
		c, err := flow.NewComposed(flow.ComposedSpec{
			Name:        cd.Name,
			Description: cd.Description,
			Input:       cd.Input,
			Output:      cd.Output,
			Collect:     cd.Collect,
			Steps:       steps,
		})
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	return nil
}

// Load builds a registry holding the embedded catalog.
func Load(inv generation.Invoker, logger flow.Logger) (*flow.Registry, error) {
	doc, err := Default()
	if err != nil {
		return nil, err
	}
	reg, err := flow.NewRegistry(logger)
	if err != nil {
		return nil, err
	}
	if err := Build(doc, inv, reg); err != nil {
		return nil, err
	}
	return reg, nil
}
