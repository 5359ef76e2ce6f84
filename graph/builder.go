package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/provider"
	"github.com/hupe1980/tripmesh/tool"
)

// ModelFactory constructs a fresh model client for a provider.
type ModelFactory interface {
	New(ctx context.Context, name provider.Name) (model.Model, error)
}

// ModelFactoryFunc adapts a function to ModelFactory.
type ModelFactoryFunc func(ctx context.Context, name provider.Name) (model.Model, error)

// New implements ModelFactory.
func (f ModelFactoryFunc) New(ctx context.Context, name provider.Name) (model.Model, error) {
	return f(ctx, name)
}

// Builder produces one independent Graph per request. It is safe for
// concurrent use; the only state it hands to graphs is the read-only
// registry and a copy of its options.
type Builder struct {
	factory  ModelFactory
	registry *tool.Registry
	opts     Options
}

// NewBuilder creates a builder.
func NewBuilder(factory ModelFactory, registry *tool.Registry, optFns ...func(o *Options)) *Builder {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Builder{factory: factory, registry: registry, opts: opts}
}

// Build resolves selector and wires a new graph around a freshly constructed
// model client. Every failure is a *core.ConfigurationError.
func (b *Builder) Build(ctx context.Context, selector string) (*Graph, error) {
	name, err := provider.Parse(selector)
	if err != nil {
		return nil, err
	}

	if b.factory == nil {
		return nil, core.NewConfigurationError("MODEL_PROVIDER", "no model factory configured", nil)
	}

	m, err := b.factory.New(ctx, name)
	if err != nil {
		var ce *core.ConfigurationError
		if errors.As(err, &ce) {
			return nil, err
		}

		return nil, core.NewConfigurationError("MODEL_PROVIDER", fmt.Sprintf("cannot construct %s client", name), err)
	}

	opts := b.opts

	g, err := New(m, b.registry, func(o *Options) { *o = opts })
	if err != nil {
		return nil, core.NewConfigurationError("MODEL_PROVIDER", "cannot build graph", err)
	}

	return g, nil
}
