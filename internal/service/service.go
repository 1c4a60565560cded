// Package service exposes the Transbank services (Webpay and Onepay) on top of
// an adapter dispatcher. A Service builds transactions bound to itself, merges
// its configured defaults into them, and commits them through the dispatcher
// inside an OpenTelemetry span.
package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/transaction"
)

const tracerName = "transbank"

// Dispatcher routes transactions to the upstream clients of one service.
// *adapter.Adapter implements it.
type Dispatcher interface {
	Commit(ctx context.Context, tx *transaction.Transaction) (*result.Result, error)
	RetrieveAndConfirm(ctx context.Context, tx *transaction.Transaction, typ string) (*result.Result, error)
	Retrieve(ctx context.Context, tx *transaction.Transaction, typ string) (result.Payload, error)
	Confirm(ctx context.Context, tx *transaction.Transaction, typ string) (bool, error)
	Environment() tbcontext.Environment
}

// Option configures a Service.
type Option func(*Service)

// WithHooks appends hooks run on every transaction made by the service.
func WithHooks(hooks ...transaction.Hooks) Option {
	return func(s *Service) { s.hooks = append(s.hooks, hooks...) }
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracerProvider sets the provider spans are started from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

// WithDefaults sets the initial service defaults.
func WithDefaults(defaults map[string]any) Option {
	return func(s *Service) { s.SetDefaults(defaults) }
}

// Service commits transactions of one Transbank service.
type Service struct {
	name       string
	dispatcher Dispatcher
	hooks      []transaction.Hooks
	logger     zerolog.Logger
	tracer     trace.Tracer

	mu       sync.RWMutex
	defaults map[string]any
}

// New creates a Service named name over d.
func New(name string, d Dispatcher, opts ...Option) *Service {
	if d == nil {
		panic("Dispatcher cannot be nil")
	}
	s := &Service{
		name:       name,
		dispatcher: d,
		logger:     zerolog.Nop(),
		defaults:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	s.logger = s.logger.With().Str("service", name).Logger()
	return s
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// Environment returns the environment of the underlying dispatcher.
func (s *Service) Environment() tbcontext.Environment { return s.dispatcher.Environment() }

// SetDefault sets a single default attribute.
func (s *Service) SetDefault(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[key] = value
}

// SetDefaults replaces every default attribute.
func (s *Service) SetDefaults(defaults map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = make(map[string]any, len(defaults))
	for k, v := range defaults {
		s.defaults[k] = v
	}
}

// Default returns the default stored under key, or nil.
func (s *Service) Default(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults[key]
}

// Defaults returns a copy of the default attributes.
func (s *Service) Defaults() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.defaults))
	for k, v := range s.defaults {
		out[k] = v
	}
	return out
}

// Make builds an uncommitted transaction bound to the service. The service
// defaults are merged beneath attrs when it is committed. extra hooks run
// before the hooks configured on the service.
func (s *Service) Make(typ string, attrs transaction.Attributes, extra ...transaction.Hooks) *transaction.Transaction {
	hooks := make([]transaction.Hooks, 0, len(extra)+len(s.hooks)+1)
	hooks = append(hooks, transaction.HookFuncs{Fill: func(tx *transaction.Transaction) {
		tx.SetDefaults(s.Defaults())
	}})
	hooks = append(hooks, extra...)
	hooks = append(hooks, s.hooks...)
	return transaction.New(typ, s, attrs, transaction.WithHooks(transaction.Chain(hooks...)))
}

// Create builds and commits a transaction.
func (s *Service) Create(ctx context.Context, typ string, attrs transaction.Attributes) (*result.Result, error) {
	return s.Make(typ, attrs).GetResult(ctx)
}

// CommitTransaction sends tx to the dispatcher.
func (s *Service) CommitTransaction(ctx context.Context, tx *transaction.Transaction) (*result.Result, error) {
	ctx, span := s.start(ctx, "Service.CommitTransaction", tx.Type())
	defer span.End()

	res, err := s.dispatcher.Commit(ctx, tx)
	s.finish(span, tx.Type(), res, err)
	return res, err
}

// RetrieveAndConfirm resolves the outcome of a transaction of type typ that
// the user already completed on Transbank's side.
func (s *Service) RetrieveAndConfirm(ctx context.Context, typ string, attrs transaction.Attributes) (*result.Result, error) {
	ctx, span := s.start(ctx, "Service.RetrieveAndConfirm", typ)
	defer span.End()

	res, err := s.dispatcher.RetrieveAndConfirm(ctx, transaction.New(typ, s, attrs), typ)
	s.finish(span, typ, res, err)
	return res, err
}

// Retrieve returns the raw outcome of a transaction without acknowledging it.
func (s *Service) Retrieve(ctx context.Context, typ string, attrs transaction.Attributes) (result.Payload, error) {
	ctx, span := s.start(ctx, "Service.Retrieve", typ)
	defer span.End()

	raw, err := s.dispatcher.Retrieve(ctx, transaction.New(typ, s, attrs), typ)
	s.finish(span, typ, nil, err)
	return raw, err
}

// Confirm acknowledges a retrieved transaction.
func (s *Service) Confirm(ctx context.Context, typ string, attrs transaction.Attributes) (bool, error) {
	ctx, span := s.start(ctx, "Service.Confirm", typ)
	defer span.End()

	ok, err := s.dispatcher.Confirm(ctx, transaction.New(typ, s, attrs), typ)
	s.finish(span, typ, nil, err)
	span.SetAttributes(attribute.Bool("transbank.acknowledged", ok))
	return ok, err
}

func (s *Service) start(ctx context.Context, name, typ string) (context.Context, trace.Span) {
	tc := tbcontext.TraceFrom(ctx)
	ctx = tbcontext.WithTrace(ctx, tc)
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("transbank.service", s.name),
		attribute.String("transbank.type", typ),
		attribute.String("transbank.trace_id", tc.TraceID),
		attribute.String("transbank.environment", s.Environment().String()),
	))
}

func (s *Service) finish(span trace.Span, typ string, res *result.Result, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug().Err(err).Str("type", typ).Msg("transaction failed")
		return
	}
	if res != nil {
		span.SetAttributes(attribute.Bool("transbank.success", res.IsSuccess()))
		s.logger.Debug().Str("type", typ).Bool("success", res.IsSuccess()).Msg("transaction committed")
	}
}
