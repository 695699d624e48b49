// Package flow executes typed prompt flows: validate input, render the prompt, invoke
// the generation backend and coerce its answer, optionally chaining flows together.
package flow

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"edugenius/backend/internal/generation"
	"edugenius/backend/internal/prompt"
	"edugenius/backend/internal/schema"
)

var tracer = otel.Tracer("edugenius/backend/internal/flow")

// Flow is anything the registry can run by name.
type Flow interface {
	Name() string
	Info() Info
	Run(ctx context.Context, raw map[string]any) (schema.Record, error)
}

// Info describes a flow to callers.
type Info struct {
	Name        string
	Description string
	Steps       []string
	Input       *schema.Schema
	Output      *schema.Schema

	// Placeholders lists the input fields a single-step prompt references.
	Placeholders []string
}

// Composed reports whether the flow chains more than one step.
func (i Info) Composed() bool { return len(i.Steps) > 0 }

// Spec is the static description of a single-step flow.
type Spec struct {
	Name        string
	Description string
	System      string
	Input       *schema.Schema
	Output      *schema.Schema
	Template    string
	Counts      []CountBinding
}

// Definition is a compiled single-step flow. It is immutable after NewDefinition.
type Definition struct {
	name        string
	description string
	system      string
	input       *schema.Schema
	output      *schema.Schema
	tmpl        *prompt.Template
	counts      []CountBinding
	invoker     generation.Invoker
}

// NewDefinition checks spec and compiles its template against the input schema.
func NewDefinition(spec Spec, inv generation.Invoker) (*Definition, error) {
	if spec.Name == "" {
		return nil, errors.New("flow: name is required")
	}
	if inv == nil {
		return nil, fmt.Errorf("flow %q: invoker is required", spec.Name)
	}
	if err := spec.Input.Check(); err != nil {
		return nil, fmt.Errorf("flow %q: input: %w", spec.Name, err)
	}
	if err := spec.Output.Check(); err != nil {
		return nil, fmt.Errorf("flow %q: output: %w", spec.Name, err)
	}
	tmpl, err := prompt.Compile(spec.Template, spec.Input)
	if err != nil {
		return nil, fmt.Errorf("flow %q: %w", spec.Name, err)
	}
	for _, c := range spec.Counts {
		in, ok := spec.Input.Field(c.Input)
		if !ok || in.Kind != schema.KindInteger {
			return nil, fmt.Errorf("flow %q: count binding input %q is not an integer input field", spec.Name, c.Input)
		}
		out, ok := spec.Output.Field(c.Output)
		if !ok || out.Kind != schema.KindArray {
			return nil, fmt.Errorf("flow %q: count binding output %q is not an array output field", spec.Name, c.Output)
		}
	}

	return &Definition{
		name:        spec.Name,
		description: spec.Description,
		system:      spec.System,
		input:       spec.Input,
		output:      spec.Output,
		tmpl:        tmpl,
		counts:      append([]CountBinding(nil), spec.Counts...),
		invoker:     inv,
	}, nil
}

func (d *Definition) Name() string { return d.name }

func (d *Definition) Info() Info {
	return Info{
		Name:         d.name,
		Description:  d.description,
		Placeholders: d.tmpl.Fields(),
		Input:        d.input,
		Output:       d.output,
	}
}

// Input returns the input schema.
func (d *Definition) Input() *schema.Schema { return d.input }

// Output returns the output schema.
func (d *Definition) Output() *schema.Schema { return d.output }

// Run executes validate → render → invoke → coerce. Exactly one backend call is made
// when validation and rendering succeed.
func (d *Definition) Run(ctx context.Context, raw map[string]any) (schema.Record, error) {
	ctx, span := tracer.Start(ctx, "flow.run", trace.WithAttributes(attribute.String("flow.name", d.name)))
	defer span.End()

	out, err := d.run(ctx, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
	}
	return out, err
}

func (d *Definition) run(ctx context.Context, raw map[string]any) (schema.Record, error) {
	req, err := schema.Validate(d.input, raw)
	if err != nil {
		return nil, newError(d.name, KindValidation, fieldPath(err), err)
	}

	rendered, err := prompt.Render(d.tmpl, req)
	if err != nil {
		return nil, newError(d.name, KindRender, "", err)
	}

	invokeCtx, span := tracer.Start(ctx, "flow.invoke")
	span.SetAttributes(attribute.Int("flow.attachments", len(rendered.Attachments)))
	resp, err := d.invoker.Invoke(invokeCtx, &generation.Request{
		Flow:        d.name,
		System:      d.system,
		Prompt:      rendered.Text,
		Attachments: rendered.Attachments,
		Output:      d.output,
	})
	span.End()
	if err != nil {
		return nil, newError(d.name, KindInvoker, "", err)
	}

	out, err := Coerce(resp.Text, d.output)
	if err != nil {
		return nil, newError(d.name, KindCoercion, fieldPath(err), err)
	}
	if err := checkCounts(d.counts, req, out); err != nil {
		return nil, newError(d.name, KindCoercion, fieldPath(err), err)
	}
	return out, nil
}
