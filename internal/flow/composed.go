package flow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"edugenius/backend/internal/schema"
)

// Step is one stage of a composed flow. Map wires input fields of this step (keys) to
// output fields of the previous step (values). Unmapped input comes from the caller.
type Step struct {
	Flow *Definition
	Map  map[string]string
}

// Ref points at an output field of a step.
type Ref struct {
	Step  int    `yaml:"step"`
	Field string `yaml:"field"`
}

// ComposedSpec is the static description of a composed flow.
type ComposedSpec struct {
	Name        string
	Description string
	// Input is what the caller supplies. Defaults to the first step's input schema.
	Input *schema.Schema
	// Output and Collect assemble the final result from step outputs. Without them the
	// last step's output is returned.
	Output  *schema.Schema
	Collect map[string]Ref
	Steps   []Step
}

// ComposedFlow runs its steps strictly in sequence and stops at the first failure.
type ComposedFlow struct {
	name        string
	description string
	input       *schema.Schema
	output      *schema.Schema
	collect     map[string]Ref
	steps       []Step
}

// NewComposed checks that every step's input can be produced by the previous step or
// the caller, and that the final result can be assembled.
func NewComposed(spec ComposedSpec) (*ComposedFlow, error) {
	if spec.Name == "" {
		return nil, errors.New("composed flow: name is required")
	}
	if len(spec.Steps) < 2 {
		return nil, fmt.Errorf("composed flow %q: needs at least two steps", spec.Name)
	}
	for i, st := range spec.Steps {
		if st.Flow == nil {
			return nil, fmt.Errorf("composed flow %q: step %d has no flow", spec.Name, i+1)
		}
	}
	if len(spec.Steps[0].Map) > 0 {
		return nil, fmt.Errorf("composed flow %q: the first step cannot map from a previous step", spec.Name)
	}

	input := spec.Input
	if input == nil {
		input = spec.Steps[0].Flow.Input()
	} else if err := input.Check(); err != nil {
		return nil, fmt.Errorf("composed flow %q: input: %w", spec.Name, err)
	}

	for i := 1; i < len(spec.Steps); i++ {
		prev, cur := spec.Steps[i-1].Flow, spec.Steps[i].Flow
		for target, source := range spec.Steps[i].Map {
			src, ok := prev.Output().Field(source)
			if !ok {
				return nil, fmt.Errorf("composed flow %q: step %d (%s) maps from %q, which %s does not produce",
					spec.Name, i+1, cur.Name(), source, prev.Name())
			}
			dst, ok := cur.Input().Field(target)
			if !ok {
				return nil, fmt.Errorf("composed flow %q: step %d (%s) has no input field %q", spec.Name, i+1, cur.Name(), target)
			}
			if src.Kind != dst.Kind {
				return nil, fmt.Errorf("composed flow %q: step %d maps %s %q into %s %q",
					spec.Name, i+1, src.Kind, source, dst.Kind, target)
			}
		}
		for _, f := range cur.Input().Fields {
			if !f.Required() {
				continue
			}
			if _, mapped := spec.Steps[i].Map[f.Name]; mapped {
				continue
			}
			supplied, ok := input.Field(f.Name)
			if !ok {
				return nil, fmt.Errorf("composed flow %q: step %d (%s) requires %q, which is neither mapped nor caller-supplied",
					spec.Name, i+1, cur.Name(), f.Name)
			}
			if supplied.Kind != f.Kind {
				return nil, fmt.Errorf("composed flow %q: input %q is %s but step %d (%s) expects %s",
					spec.Name, f.Name, supplied.Kind, i+1, cur.Name(), f.Kind)
			}
		}
	}

	output := spec.Output
	if output == nil {
		if len(spec.Collect) > 0 {
			return nil, fmt.Errorf("composed flow %q: collect requires an output schema", spec.Name)
		}
		output = spec.Steps[len(spec.Steps)-1].Flow.Output()
	} else {
		if err := output.Check(); err != nil {
			return nil, fmt.Errorf("composed flow %q: output: %w", spec.Name, err)
		}
		for name, ref := range spec.Collect {
			if _, ok := output.Field(name); !ok {
				return nil, fmt.Errorf("composed flow %q: collect target %q is not an output field", spec.Name, name)
			}
			if ref.Step < 0 || ref.Step >= len(spec.Steps) {
				return nil, fmt.Errorf("composed flow %q: collect %q refers to step %d out of range", spec.Name, name, ref.Step)
			}
			if _, ok := spec.Steps[ref.Step].Flow.Output().Field(ref.Field); !ok {
				return nil, fmt.Errorf("composed flow %q: collect %q refers to unknown field %q of %s",
					spec.Name, name, ref.Field, spec.Steps[ref.Step].Flow.Name())
			}
		}
		for _, f := range output.Fields {
			if _, ok := spec.Collect[f.Name]; !ok && f.Required() {
				return nil, fmt.Errorf("composed flow %q: required output %q is never collected", spec.Name, f.Name)
			}
		}
	}

	steps := make([]Step, len(spec.Steps))
	for i, st := range spec.Steps {
		steps[i] = Step{Flow: st.Flow, Map: maps.Clone(st.Map)}
	}
	return &ComposedFlow{
		name:        spec.Name,
		description: spec.Description,
		input:       input,
		output:      output,
		collect:     maps.Clone(spec.Collect),
		steps:       steps,
	}, nil
}

func (c *ComposedFlow) Name() string { return c.name }

func (c *ComposedFlow) Info() Info {
	names := make([]string, len(c.steps))
	for i, st := range c.steps {
		names[i] = st.Flow.Name()
	}
	return Info{Name: c.name, Description: c.description, Steps: names, Input: c.input, Output: c.output}
}

// Run validates raw against the composed input schema, then executes the steps in order.
// A step failure is returned exactly as the step reported it, tagged with the step
// position and name; later steps never run.
func (c *ComposedFlow) Run(ctx context.Context, raw map[string]any) (schema.Record, error) {
	ctx, span := tracer.Start(ctx, "flow.composed", trace.WithAttributes(
		attribute.String("flow.name", c.name),
		attribute.Int("flow.steps", len(c.steps)),
	))
	defer span.End()

	out, err := c.run(ctx, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
	}
	return out, err
}

func (c *ComposedFlow) run(ctx context.Context, raw map[string]any) (schema.Record, error) {
	base, err := schema.Validate(c.input, raw)
	if err != nil {
		return nil, newError(c.name, KindValidation, fieldPath(err), err)
	}

	outputs := make([]schema.Record, len(c.steps))
	for i, st := range c.steps {
		input := base
		if i > 0 {
			var err error
			input, err = c.stepInput(i, base, outputs[i-1])
			if err != nil {
				return nil, err
			}
		}

		out, err := st.Flow.Run(ctx, input)
		if err != nil {
			return nil, c.tag(i, err)
		}
		outputs[i] = out
	}

	if len(c.collect) == 0 {
		return outputs[len(outputs)-1], nil
	}
	assembled := make(map[string]any, len(c.collect))
	for name, ref := range c.collect {
		if v, ok := outputs[ref.Step][ref.Field]; ok {
			assembled[name] = v
		}
	}
	rec, err := schema.Validate(c.output, assembled)
	if err != nil {
		return nil, newError(c.name, KindCoercion, fieldPath(err), err)
	}
	return rec, nil
}

// stepInput overlays the previous step's mapped output on the caller's input. A blank
// value headed for a required field fails before the step is invoked.
func (c *ComposedFlow) stepInput(i int, raw map[string]any, prev schema.Record) (map[string]any, error) {
	st := c.steps[i]
	input := make(map[string]any, len(raw)+len(st.Map))
	maps.Copy(input, raw)

	for _, target := range slices.Sorted(maps.Keys(st.Map)) {
		source := st.Map[target]
		v, ok := prev[source]
		f, _ := st.Flow.Input().Field(target)
		if f.Required() && (!ok || schema.IsBlank(v)) {
			return nil, &Error{
				Flow:     c.name,
				Kind:     KindContentPrecondition,
				Step:     i,
				StepName: st.Flow.Name(),
				Path:     source,
				Err:      fmt.Errorf("%s produced no %s", c.steps[i-1].Flow.Name(), source),
			}
		}
		if ok {
			input[target] = v
		} else {
			delete(input, target)
		}
	}
	return input, nil
}

func (c *ComposedFlow) tag(i int, err error) error {
	var fe *Error
	if !errors.As(err, &fe) {
		return &Error{Flow: c.name, Kind: KindInvoker, Step: i, StepName: c.steps[i].Flow.Name(), Err: err}
	}
	tagged := *fe
	tagged.Flow = c.name
	tagged.Step = i
	tagged.StepName = c.steps[i].Flow.Name()
	return &tagged
}
