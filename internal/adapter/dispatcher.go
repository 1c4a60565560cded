package adapter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/router"
	"github.com/yourorg/transbank-api/internal/transaction"
)

// Config describes one service family to an Adapter.
type Config struct {
	Name      string        // Service name used in logs, e.g. "webpay"
	Table     *router.Table // Processor and verb routing
	Factories Factories     // Client constructors per processor

	// Normalizer is used for processors without an entry in Normalizers.
	// Defaults to result.WebpayNormalizer.
	Normalizer  result.Normalizer
	Normalizers map[router.ProcessorID]result.Normalizer

	// RegisterType is the token whose return flow finishes a registration
	// instead of retrieving a payment.
	RegisterType string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithMetrics sets the collectors. The default is DefaultMetrics().
func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// Adapter is the transaction dispatcher of one service family.
type Adapter struct {
	name         string
	table        *router.Table
	resolver     *Resolver
	normalizer   result.Normalizer
	normalizers  map[router.ProcessorID]result.Normalizer
	registerType string

	env   tbcontext.Environment
	creds tbcontext.Credentials

	logger  zerolog.Logger
	metrics *Metrics
}

// New creates an Adapter for cfg targeting env with creds.
func New(cfg Config, env tbcontext.Environment, creds tbcontext.Credentials, opts ...Option) *Adapter {
	a := &Adapter{
		name:         cfg.Name,
		table:        cfg.Table,
		normalizer:   cfg.Normalizer,
		normalizers:  make(map[router.ProcessorID]result.Normalizer, len(cfg.Normalizers)),
		registerType: cfg.RegisterType,
		env:          env,
		creds:        creds.Clone(),
		logger:       zerolog.Nop(),
	}
	if a.table == nil {
		a.table = router.NewTable(nil, nil)
	}
	if a.normalizer == nil {
		a.normalizer = result.WebpayNormalizer
	}
	for id, n := range cfg.Normalizers {
		a.normalizers[id] = n
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = DefaultMetrics()
	}
	a.logger = a.logger.With().Str("service", a.name).Logger()
	a.resolver = NewResolver(a.table, cfg.Factories, a.logger, a.metrics)
	return a
}

// Name returns the service family name.
func (a *Adapter) Name() string { return a.name }

// Table returns the routing tables. Modifying them changes how later
// transactions are dispatched.
func (a *Adapter) Table() *router.Table { return a.table }

// Resolver returns the client resolver.
func (a *Adapter) Resolver() *Resolver { return a.resolver }

// Environment returns the environment new clients are built for.
func (a *Adapter) Environment() tbcontext.Environment { return a.env }

// SetEnvironment changes the environment used by the next client construction.
// A client already bound keeps its environment until it is replaced.
func (a *Adapter) SetEnvironment(env tbcontext.Environment) { a.env = env }

// Credentials returns a copy of the credentials passed to new clients.
func (a *Adapter) Credentials() tbcontext.Credentials { return a.creds.Clone() }

// SetCredentials replaces the credentials used by the next client construction.
func (a *Adapter) SetCredentials(creds tbcontext.Credentials) { a.creds = creds.Clone() }

// Commit performs tx's lifecycle verb on the client of its processor and
// normalizes the answer. Types without a verb, or whose client lacks the verb,
// fail with ServiceUnavailableError before any client is invoked. Errors from
// the client, including a failed Boot, are returned as InvalidTransactionError.
func (a *Adapter) Commit(ctx context.Context, tx *transaction.Transaction) (*result.Result, error) {
	typ := tx.Type()

	verb, ok := a.table.VerbFor(typ)
	if !ok {
		return nil, a.unavailable(typ, "")
	}
	client, err := a.resolver.Ensure(ctx, typ, a.env, a.creds)
	if err != nil {
		return nil, a.failed(tx, typ, verb, err)
	}
	op, ok := client.Operation(verb)
	if !ok {
		return nil, a.unavailable(typ, verb)
	}

	return a.normalized(ctx, tx, typ, verb, op)
}

// RetrieveAndConfirm fetches and acknowledges the outcome of a transaction in
// the return flow. The client is resolved by typ, which the caller supplies
// and which may differ from tx.Type(). The registration type finishes the
// registration through the register verb.
func (a *Adapter) RetrieveAndConfirm(ctx context.Context, tx *transaction.Transaction, typ string) (*result.Result, error) {
	client, err := a.resolver.Ensure(ctx, typ, a.env, a.creds)
	if err != nil {
		return nil, a.failed(tx, typ, router.VerbRetrieveAndConfirm, err)
	}

	if a.registerType != "" && typ == a.registerType {
		op, ok := client.Operation(router.VerbRegister)
		if !ok {
			return nil, a.unavailable(typ, router.VerbRegister)
		}
		return a.normalized(ctx, tx, typ, router.VerbRegister, op)
	}

	rc, ok := client.(RetrieveConfirmer)
	if !ok {
		return nil, a.unavailable(typ, router.VerbRetrieveAndConfirm)
	}
	return a.normalized(ctx, tx, typ, router.VerbRetrieveAndConfirm, rc.RetrieveAndConfirm)
}

// Retrieve fetches a transaction outcome without interpreting it.
func (a *Adapter) Retrieve(ctx context.Context, tx *transaction.Transaction, typ string) (result.Payload, error) {
	client, err := a.resolver.Ensure(ctx, typ, a.env, a.creds)
	if err != nil {
		return nil, a.failed(tx, typ, router.VerbRetrieve, err)
	}
	r, ok := client.(Retriever)
	if !ok {
		return nil, a.unavailable(typ, router.VerbRetrieve)
	}

	start := time.Now()
	raw, err := r.Retrieve(ctx, tx)
	if err != nil {
		a.record(typ, router.VerbRetrieve, outcomeError, start)
		return nil, &InvalidTransactionError{Transaction: tx, Cause: err}
	}
	a.record(typ, router.VerbRetrieve, outcomeSuccess, start)
	return raw, nil
}

// Confirm acknowledges a retrieved transaction and returns the client's answer as is.
func (a *Adapter) Confirm(ctx context.Context, tx *transaction.Transaction, typ string) (bool, error) {
	client, err := a.resolver.Ensure(ctx, typ, a.env, a.creds)
	if err != nil {
		return false, a.failed(tx, typ, router.VerbAcknowledge, err)
	}
	ack, ok := client.(Acknowledger)
	if !ok {
		return false, a.unavailable(typ, router.VerbAcknowledge)
	}

	start := time.Now()
	confirmed, err := ack.Acknowledge(ctx, tx)
	if err != nil {
		a.record(typ, router.VerbAcknowledge, outcomeError, start)
		return false, &InvalidTransactionError{Transaction: tx, Cause: err}
	}
	outcome := outcomeSuccess
	if !confirmed {
		outcome = outcomeFailure
	}
	a.record(typ, router.VerbAcknowledge, outcome, start)
	return confirmed, nil
}

func (a *Adapter) normalized(ctx context.Context, tx *transaction.Transaction, typ string, verb router.Verb, op Operation) (*result.Result, error) {
	start := time.Now()
	raw, err := op(ctx, tx)
	if err != nil {
		a.record(typ, verb, outcomeError, start)
		return nil, &InvalidTransactionError{Transaction: tx, Cause: err}
	}

	res := a.normalizerFor(typ).Normalize(typ, raw)
	outcome := outcomeSuccess
	if !res.IsSuccess() {
		outcome = outcomeFailure
	}
	a.record(typ, verb, outcome, start)
	return res, nil
}

func (a *Adapter) normalizerFor(typ string) result.Normalizer {
	if id, ok := a.table.ProcessorFor(typ); ok {
		if n, ok := a.normalizers[id]; ok && n != nil {
			return n
		}
	}
	return a.normalizer
}

func (a *Adapter) record(typ string, verb router.Verb, outcome string, start time.Time) {
	elapsed := time.Since(start)
	a.metrics.observeDispatch(typ, string(verb), outcome, elapsed.Seconds())
	a.logger.Debug().
		Str("type", typ).
		Str("verb", string(verb)).
		Str("outcome", outcome).
		Dur("duration", elapsed).
		Msg("transbank operation dispatched")
}

func (a *Adapter) unavailable(typ string, verb router.Verb) error {
	a.metrics.observeDispatch(typ, string(verb), outcomeUnavailable, 0)
	return &ServiceUnavailableError{Type: typ}
}

// failed records a dispatch that never reached a client operation. Anything
// other than an unavailable type, such as a client that failed to boot, is
// returned as InvalidTransactionError.
func (a *Adapter) failed(tx *transaction.Transaction, typ string, verb router.Verb, err error) error {
	if _, ok := err.(*ServiceUnavailableError); ok {
		a.metrics.observeDispatch(typ, string(verb), outcomeUnavailable, 0)
		return err
	}
	a.metrics.observeDispatch(typ, string(verb), outcomeError, 0)
	return &InvalidTransactionError{Transaction: tx, Cause: err}
}
