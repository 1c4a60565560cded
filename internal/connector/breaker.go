package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/transbank-api/internal/result"
)

// State is the circuit state of one upstream endpoint.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	defaultFailureThreshold  = 5
	defaultOpenTimeout       = 30 * time.Second
	defaultHalfOpenSuccesses = 2
)

// ErrCircuitOpen is matched by every CircuitOpenError.
var ErrCircuitOpen = errors.New("transbank endpoint circuit open")

// CircuitOpenError is returned, without calling upstream, while the circuit
// of Endpoint is open.
type CircuitOpenError struct {
	Endpoint string
	Until    time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s: %s until %s", ErrCircuitOpen, e.Endpoint, e.Until.Format(time.RFC3339))
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// BreakerConfig tunes a Breaker. Zero fields take the defaults: five
// consecutive failures open a circuit for thirty seconds, and two successes
// while half-open close it again.
type BreakerConfig struct {
	FailureThreshold  int
	OpenTimeout       time.Duration
	HalfOpenSuccesses int
}

type endpointState struct {
	state     State
	failures  int
	successes int
	openUntil time.Time
}

// Breaker tracks the health of upstream endpoints, keyed by URL, and stops
// calling an endpoint that keeps failing.
type Breaker struct {
	mu        sync.Mutex
	cfg       BreakerConfig
	endpoints map[string]*endpointState
	now       func() time.Time
}

// NewBreaker creates a Breaker with every circuit closed.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = defaultHalfOpenSuccesses
	}
	return &Breaker{cfg: cfg, endpoints: make(map[string]*endpointState), now: time.Now}
}

// endpoint must be called with mu held.
func (b *Breaker) endpoint(name string) *endpointState {
	es, ok := b.endpoints[name]
	if !ok {
		es = &endpointState{state: Closed}
		b.endpoints[name] = es
	}
	return es
}

// Allow reports whether a call to endpoint may go out. An open circuit whose
// timeout elapsed turns half-open and lets calls through again.
func (b *Breaker) Allow(endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	es := b.endpoint(endpoint)
	if es.state == Open {
		if b.now().Before(es.openUntil) {
			return false
		}
		es.state = HalfOpen
		es.successes = 0
	}
	return true
}

// RecordFailure counts a failed call to endpoint.
func (b *Breaker) RecordFailure(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	es := b.endpoint(endpoint)
	switch es.state {
	case Closed:
		es.failures++
		if es.failures >= b.cfg.FailureThreshold {
			b.open(es)
		}
	case HalfOpen:
		b.open(es)
	}
}

// RecordSuccess counts a successful call to endpoint.
func (b *Breaker) RecordSuccess(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	es := b.endpoint(endpoint)
	switch es.state {
	case Closed:
		es.failures = 0
	case HalfOpen:
		es.successes++
		if es.successes >= b.cfg.HalfOpenSuccesses {
			es.state = Closed
			es.failures = 0
			es.successes = 0
		}
	}
}

func (b *Breaker) open(es *endpointState) {
	es.state = Open
	es.openUntil = b.now().Add(b.cfg.OpenTimeout)
	es.failures = 0
	es.successes = 0
}

// State returns the circuit state of endpoint without moving it.
func (b *Breaker) State(endpoint string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if es, ok := b.endpoints[endpoint]; ok {
		return es.state
	}
	return Closed
}

// Guard wraps c so that its calls go through the circuit of endpoint.
func (b *Breaker) Guard(endpoint string, c Connector) Connector {
	return &guarded{breaker: b, endpoint: endpoint, next: c}
}

type guarded struct {
	breaker  *Breaker
	endpoint string
	next     Connector
}

func (g *guarded) Call(ctx context.Context, operation string, payload map[string]any) (result.Payload, error) {
	if !g.breaker.Allow(g.endpoint) {
		g.breaker.mu.Lock()
		until := g.breaker.endpoint(g.endpoint).openUntil
		g.breaker.mu.Unlock()
		return nil, &CircuitOpenError{Endpoint: g.endpoint, Until: until}
	}

	raw, err := g.next.Call(ctx, operation, payload)
	switch {
	case err == nil:
		g.breaker.RecordSuccess(g.endpoint)
	case errors.Is(err, context.Canceled):
		// The caller gave up; the endpoint said nothing about its health.
	default:
		g.breaker.RecordFailure(g.endpoint)
	}
	return raw, err
}
