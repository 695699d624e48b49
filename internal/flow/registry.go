package flow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"edugenius/backend/internal/schema"
)

// ErrUnknownFlow is returned by Registry.Run and Registry.Get for unregistered names.
var ErrUnknownFlow = errors.New("unknown flow")

// Logger is the subset of the application logger the registry needs. Arguments are
// alternating keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Registry holds the flows the application exposes. Registration happens at startup;
// lookups and runs are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	flows  map[string]Flow
	logger Logger

	runs     metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRegistry creates an empty registry. Metrics go to the global meter provider.
func NewRegistry(logger Logger) (*Registry, error) {
	meter := otel.Meter("edugenius/backend/internal/flow")
	runs, err := meter.Int64Counter("flow.runs",
		metric.WithDescription("Flow executions started"))
	if err != nil {
		return nil, fmt.Errorf("flow.runs counter: %w", err)
	}
	failures, err := meter.Int64Counter("flow.failures",
		metric.WithDescription("Flow executions that failed, by failure kind"))
	if err != nil {
		return nil, fmt.Errorf("flow.failures counter: %w", err)
	}
	duration, err := meter.Float64Histogram("flow.duration",
		metric.WithDescription("Flow execution time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("flow.duration histogram: %w", err)
	}
	return &Registry{
		flows:    make(map[string]Flow),
		logger:   logger,
		runs:     runs,
		failures: failures,
		duration: duration,
	}, nil
}

// Register adds f. Names are unique.
func (r *Registry) Register(f Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.flows[f.Name()]; exists {
		return fmt.Errorf("flow %q is already registered", f.Name())
	}
	r.flows[f.Name()] = f
	return nil
}

// Get returns the flow registered under name.
func (r *Registry) Get(name string) (Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, name)
	}
	return f, nil
}

// List returns the info of every flow, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.flows))
	for _, f := range r.flows {
		infos = append(infos, f.Info())
	}
	slices.SortFunc(infos, func(a, b Info) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return infos
}

// Run looks up name and runs it with raw.
func (r *Registry) Run(ctx context.Context, name string, raw map[string]any) (schema.Record, error) {
	f, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	attrs := metric.WithAttributes(attribute.String("flow.name", name))
	r.runs.Add(ctx, 1, attrs)
	start := time.Now()
	r.logger.Debug("running flow", "flow", name)

	out, err := f.Run(ctx, raw)
	r.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		kind := KindOf(err)
		r.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("flow.name", name),
			attribute.String("flow.failure", string(kind)),
		))
		if kind == KindValidation {
			r.logger.Debug("flow rejected input", "flow", name, "error", err)
		} else {
			r.logger.Warn("flow failed", "flow", name, "kind", kind, "error", err)
		}
		return nil, err
	}
	r.logger.Info("flow completed", "flow", name, "duration", time.Since(start).Round(time.Millisecond))
	return out, nil
}
