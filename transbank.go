// Package transbank is a unified client for the Transbank payment services:
// Webpay Plus, Webpay Oneclick and Onepay.
//
// A Transbank holds the environment (integration unless told "production"),
// the credentials and the transaction defaults of each service, and lazily
// creates the service objects:
//
//	tb, err := transbank.New("integration", nil)
//	if err != nil { ... }
//	tb.SetDefault("webpay", "returnUrl", "https://shop.example/webpay/return")
//	res, err := tb.Webpay().CreateNormal(ctx, transbank.Attributes{"amount": 9990})
package transbank

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/transbank-api/internal/adapter"
	"github.com/yourorg/transbank-api/internal/adapter/onepay"
	"github.com/yourorg/transbank-api/internal/adapter/webpay"
	"github.com/yourorg/transbank-api/internal/config"
	"github.com/yourorg/transbank-api/internal/connector"
	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/service"
	"github.com/yourorg/transbank-api/internal/transaction"
)

type (
	Environment = tbcontext.Environment
	Credentials = tbcontext.Credentials
	Attributes  = transaction.Attributes
	Transaction = transaction.Transaction
	Result      = result.Result
	Payload     = result.Payload
	Webpay      = service.Webpay
	Onepay      = service.Onepay
	Hooks       = transaction.Hooks
)

const (
	Production  = tbcontext.Production
	Integration = tbcontext.Integration

	ServiceWebpay = webpay.Service
	ServiceOnepay = onepay.Service
)

var (
	ErrServiceUnavailable = adapter.ErrServiceUnavailable
	ErrInvalidTransaction = adapter.ErrInvalidTransaction
	ErrCredentialInvalid  = config.ErrCredentialInvalid
	ErrInvalidService     = config.ErrInvalidService
	ErrCartNegativeAmount = service.ErrCartNegativeAmount
	ErrCircuitOpen        = connector.ErrCircuitOpen
)

type options struct {
	logger     zerolog.Logger
	httpClient *http.Client
	metrics    *adapter.Metrics
	hooks      []transaction.Hooks
	tracer     trace.TracerProvider
	webpayDial webpay.Dialer
	onepayDial onepay.Dialer
	breaker    *connector.Breaker
	now        func() time.Time
}

// Option configures a Transbank.
type Option func(*options)

// WithLogger sets the logger of every service.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.logger = l } }

// WithHTTPClient sets the HTTP client of the upstream connectors.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithMetrics sets the dispatch collectors.
func WithMetrics(m *adapter.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithHooks adds hooks run on every transaction of every service.
func WithHooks(hooks ...Hooks) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks...) }
}

// WithTracerProvider sets where service spans are started.
func WithTracerProvider(tp trace.TracerProvider) Option { return func(o *options) { o.tracer = tp } }

// WithWebpayDialer replaces the SOAP connectors of Webpay.
func WithWebpayDialer(d webpay.Dialer) Option { return func(o *options) { o.webpayDial = d } }

// WithOnepayDialer replaces the REST connectors of Onepay.
func WithOnepayDialer(d onepay.Dialer) Option { return func(o *options) { o.onepayDial = d } }

// WithCircuitBreaker sets the breaker guarding every upstream endpoint.
func WithCircuitBreaker(b *connector.Breaker) Option { return func(o *options) { o.breaker = b } }

// WithClock sets the clock Onepay signatures are issued with.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// Transbank is the entry point to the Transbank services.
type Transbank struct {
	env  tbcontext.Environment
	opts options

	mu          sync.Mutex
	credentials map[string]tbcontext.Credentials
	defaults    map[string]map[string]any

	webpayAdapter *adapter.Adapter
	webpay        *service.Webpay
	onepayAdapter *adapter.Adapter
	onepay        *service.Onepay
}

// New creates a Transbank for environment. Only "production" selects
// production. credentials maps service names to their credentials, every one
// of which must be a string.
func New(environment string, credentials map[string]map[string]any, opts ...Option) (*Transbank, error) {
	tb := newTransbank(tbcontext.ParseEnvironment(environment), opts)
	for svc, raw := range credentials {
		if err := tb.SetCredentials(svc, raw); err != nil {
			return nil, err
		}
	}
	return tb, nil
}

// FromConfig creates a Transbank from a loaded configuration.
func FromConfig(cfg *config.Config, opts ...Option) (*Transbank, error) {
	tb := newTransbank(cfg.Environment, opts)
	for svc, creds := range cfg.Credentials {
		if err := config.CheckService(svc); err != nil {
			return nil, err
		}
		tb.credentials[svc] = creds.Clone()
	}
	for svc, defaults := range cfg.Defaults {
		if err := tb.SetDefaults(svc, defaults); err != nil {
			return nil, err
		}
	}
	return tb, nil
}

func newTransbank(env tbcontext.Environment, opts []Option) *Transbank {
	tb := &Transbank{
		env:         env,
		opts:        options{logger: zerolog.Nop()},
		credentials: make(map[string]tbcontext.Credentials),
		defaults:    make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(&tb.opts)
	}
	if tb.opts.metrics == nil {
		tb.opts.metrics = adapter.DefaultMetrics()
	}
	if tb.opts.webpayDial == nil {
		tb.opts.webpayDial = webpay.SOAPDialer(tb.opts.httpClient, tb.opts.logger)
	}
	if tb.opts.onepayDial == nil {
		tb.opts.onepayDial = onepay.RESTDialer(tb.opts.httpClient, tb.opts.logger)
	}
	if tb.opts.breaker == nil {
		tb.opts.breaker = connector.NewBreaker(connector.BreakerConfig{})
	}
	webpayDial, onepayDial, breaker := tb.opts.webpayDial, tb.opts.onepayDial, tb.opts.breaker
	tb.opts.webpayDial = func(url, namespace string) connector.Connector {
		return breaker.Guard(url, webpayDial(url, namespace))
	}
	tb.opts.onepayDial = func(url string) connector.Connector {
		return breaker.Guard(url, onepayDial(url))
	}
	return tb
}

// Environment returns the active environment.
func (tb *Transbank) Environment() Environment { return tb.env }

// IsProduction reports whether the production endpoints are used.
func (tb *Transbank) IsProduction() bool { return tb.env.IsProduction() }

// IsIntegration reports whether the integration endpoints are used.
func (tb *Transbank) IsIntegration() bool { return tb.env.IsIntegration() }

// SetCredentials replaces the credentials of svc. Clients already bound keep
// theirs until the next rebind.
func (tb *Transbank) SetCredentials(svc string, raw map[string]any) error {
	creds, err := config.Credentials(svc, raw)
	if err != nil {
		return err
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.credentials[svc] = creds
	if a := tb.adapterFor(svc); a != nil {
		a.SetCredentials(creds)
		a.Resolver().Reset()
	}
	return nil
}

// Credentials returns a copy of svc's credentials, or nil.
func (tb *Transbank) Credentials(svc string) Credentials {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	creds, ok := tb.credentials[svc]
	if !ok {
		return nil
	}
	return creds.Clone()
}

// SetDefault sets one default attribute of svc's transactions.
func (tb *Transbank) SetDefault(svc, key string, value any) error {
	if err := config.CheckService(svc); err != nil {
		return err
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.defaults[svc] == nil {
		tb.defaults[svc] = make(map[string]any)
	}
	tb.defaults[svc][key] = value
	if s := tb.serviceFor(svc); s != nil {
		s.SetDefault(key, value)
	}
	return nil
}

// SetDefaults replaces the default attributes of svc's transactions.
func (tb *Transbank) SetDefaults(svc string, defaults map[string]any) error {
	if err := config.CheckService(svc); err != nil {
		return err
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.defaults[svc] = copyMap(defaults)
	if s := tb.serviceFor(svc); s != nil {
		s.SetDefaults(defaults)
	}
	return nil
}

// Default returns one default attribute of svc, or fallback.
func (tb *Transbank) Default(svc, key string, fallback any) any {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if v, ok := tb.defaults[svc][key]; ok {
		return v
	}
	return fallback
}

// Defaults returns a copy of svc's defaults, or nil.
func (tb *Transbank) Defaults(svc string) map[string]any {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	d, ok := tb.defaults[svc]
	if !ok {
		return nil
	}
	return copyMap(d)
}

// Webpay returns the Webpay service, creating it on first use.
func (tb *Transbank) Webpay() *Webpay {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.webpay == nil {
		tb.webpayAdapter = webpay.NewAdapter(tb.env, tb.credentials[ServiceWebpay], tb.opts.webpayDial, tb.adapterOptions()...)
		tb.webpay = service.NewWebpay(tb.webpayAdapter, tb.serviceOptions(ServiceWebpay)...)
	}
	return tb.webpay
}

// Onepay returns the Onepay service, creating it on first use.
func (tb *Transbank) Onepay() *Onepay {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.onepay == nil {
		tb.onepayAdapter = adapter.New(onepay.Config(tb.opts.onepayDial, tb.opts.now), tb.env, tb.credentials[ServiceOnepay], tb.adapterOptions()...)
		tb.onepay = service.NewOnepay(tb.onepayAdapter, tb.serviceOptions(ServiceOnepay)...)
	}
	return tb.onepay
}

func (tb *Transbank) adapterOptions() []adapter.Option {
	return []adapter.Option{adapter.WithLogger(tb.opts.logger), adapter.WithMetrics(tb.opts.metrics)}
}

func (tb *Transbank) serviceOptions(svc string) []service.Option {
	opts := []service.Option{
		service.WithLogger(tb.opts.logger),
		service.WithHooks(tb.opts.hooks...),
		service.WithDefaults(tb.defaults[svc]),
	}
	if tb.opts.tracer != nil {
		opts = append(opts, service.WithTracerProvider(tb.opts.tracer))
	}
	return opts
}

// adapterFor and serviceFor must be called with mu held.
func (tb *Transbank) adapterFor(svc string) *adapter.Adapter {
	switch svc {
	case ServiceWebpay:
		return tb.webpayAdapter
	case ServiceOnepay:
		return tb.onepayAdapter
	}
	return nil
}

func (tb *Transbank) serviceFor(svc string) *service.Service {
	switch svc {
	case ServiceWebpay:
		if tb.webpay != nil {
			return tb.webpay.Service
		}
	case ServiceOnepay:
		if tb.onepay != nil {
			return tb.onepay.Service
		}
	}
	return nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
