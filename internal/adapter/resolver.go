package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/router"
)

// Resolver owns the single active client of an adapter. It is either unbound
// or bound to exactly one processor; a type routed to a different processor
// replaces the binding.
type Resolver struct {
	mu        sync.Mutex
	table     *router.Table
	factories Factories
	logger    zerolog.Logger
	metrics   *Metrics

	bound  router.ProcessorID
	client Client
}

// NewResolver builds an unbound resolver over table and factories.
func NewResolver(table *router.Table, factories Factories, logger zerolog.Logger, metrics *Metrics) *Resolver {
	f := make(Factories, len(factories))
	for id, factory := range factories {
		f[id] = factory
	}
	return &Resolver{table: table, factories: f, logger: logger, metrics: metrics}
}

// Ensure returns a booted client for typ. The current client is reused when
// it already serves typ's processor; otherwise a new one is constructed with
// env and creds and booted once. Unresolvable types return a
// ServiceUnavailableError and leave the binding untouched.
func (r *Resolver) Ensure(ctx context.Context, typ string, env tbcontext.Environment, creds tbcontext.Credentials) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.table.ProcessorFor(typ)
	if !ok {
		return nil, &ServiceUnavailableError{Type: typ}
	}
	factory, ok := r.factories[id]
	if !ok || factory == nil {
		return nil, &ServiceUnavailableError{Type: typ}
	}

	if r.client != nil && r.bound == id {
		return r.client, nil
	}

	// The old client is dropped before booting so a failed boot leaves the
	// resolver unbound.
	previous := r.bound
	r.bound, r.client = "", nil

	client := factory(env, creds.Clone())
	if client == nil {
		return nil, &ServiceUnavailableError{Type: typ}
	}
	r.metrics.observeBind(string(id))
	if err := client.Boot(ctx); err != nil {
		return nil, fmt.Errorf("booting %s client for %q: %w", id, typ, err)
	}

	r.bound, r.client = id, client
	r.logger.Debug().
		Str("processor", string(id)).
		Str("previous", string(previous)).
		Str("type", typ).
		Str("environment", env.String()).
		Msg("transbank client bound")
	return client, nil
}

// Bound returns the processor currently bound, if any.
func (r *Resolver) Bound() (router.ProcessorID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound, r.client != nil
}

// Client returns the active client, or nil when unbound.
func (r *Resolver) Client() Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

// Reset drops the active client.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound, r.client = "", nil
}

// Register adds or replaces the factory of a processor. A client already bound
// to id keeps serving until the next rebind.
func (r *Resolver) Register(id router.ProcessorID, factory ClientFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
	r.logger.Info().Str("processor", string(id)).Msg("transbank processor registered")
}
