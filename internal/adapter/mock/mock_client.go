package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/transbank-api/internal/adapter"
	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/router"
	"github.com/yourorg/transbank-api/internal/transaction"
)

// MockClient is a scriptable adapter.Client for tests.
// Verbs without an entry in Ops are reported as unsupported unless
// DefaultSuccess is set, in which case they answer with a fresh token.
type MockClient struct {
	Name        string
	Environment tbcontext.Environment
	Credentials tbcontext.Credentials

	BootFunc               func(ctx context.Context) error
	Ops                    map[router.Verb]adapter.Operation
	RetrieveAndConfirmFunc func(ctx context.Context, tx *transaction.Transaction) (result.Payload, error)
	RetrieveFunc           func(ctx context.Context, tx *transaction.Transaction) (result.Payload, error)
	AcknowledgeFunc        func(ctx context.Context, tx *transaction.Transaction) (bool, error)
	DefaultSuccess         bool

	mu    sync.Mutex
	boots int
	calls map[router.Verb]int
}

// NewMockClient creates a MockClient answering every verb successfully.
func NewMockClient(name string) *MockClient {
	return &MockClient{Name: name, DefaultSuccess: true}
}

// Boot implements adapter.Client.
func (m *MockClient) Boot(ctx context.Context) error {
	m.mu.Lock()
	m.boots++
	m.mu.Unlock()
	if m.BootFunc != nil {
		return m.BootFunc(ctx)
	}
	return nil
}

// Operation implements adapter.Client.
func (m *MockClient) Operation(verb router.Verb) (adapter.Operation, bool) {
	op, ok := m.Ops[verb]
	if !ok {
		if !m.DefaultSuccess {
			return nil, false
		}
		op = func(context.Context, *transaction.Transaction) (result.Payload, error) {
			return result.Payload{"token": uuid.NewString()}, nil
		}
	}
	return func(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
		m.count(verb)
		return op(ctx, tx)
	}, true
}

// RetrieveAndConfirm implements adapter.RetrieveConfirmer.
func (m *MockClient) RetrieveAndConfirm(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	m.count(router.VerbRetrieveAndConfirm)
	if m.RetrieveAndConfirmFunc != nil {
		return m.RetrieveAndConfirmFunc(ctx, tx)
	}
	return result.Payload{"detailOutput": map[string]any{"responseCode": 0}}, nil
}

// Retrieve implements adapter.Retriever.
func (m *MockClient) Retrieve(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	m.count(router.VerbRetrieve)
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, tx)
	}
	return result.Payload{"detailOutput": map[string]any{"responseCode": 0}}, nil
}

// Acknowledge implements adapter.Acknowledger.
func (m *MockClient) Acknowledge(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	m.count(router.VerbAcknowledge)
	if m.AcknowledgeFunc != nil {
		return m.AcknowledgeFunc(ctx, tx)
	}
	return true, nil
}

// Boots returns how many times Boot was called.
func (m *MockClient) Boots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boots
}

// Calls returns how many times verb was performed.
func (m *MockClient) Calls(verb router.Verb) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[verb]
}

func (m *MockClient) count(verb router.Verb) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[router.Verb]int)
	}
	m.calls[verb]++
}

// Factory records every client it constructs.
type Factory struct {
	// New builds the client for each construction; defaults to NewMockClient(Name).
	New  func(env tbcontext.Environment, creds tbcontext.Credentials) *MockClient
	Name string

	mu    sync.Mutex
	built []*MockClient
}

// Func returns the adapter.ClientFactory backed by f.
func (f *Factory) Func() adapter.ClientFactory {
	return func(env tbcontext.Environment, creds tbcontext.Credentials) adapter.Client {
		var c *MockClient
		if f.New != nil {
			c = f.New(env, creds)
		} else {
			c = NewMockClient(f.Name)
		}
		c.Environment, c.Credentials = env, creds

		f.mu.Lock()
		f.built = append(f.built, c)
		f.mu.Unlock()
		return c
	}
}

// Built returns the clients constructed so far, oldest first.
func (f *Factory) Built() []*MockClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockClient(nil), f.built...)
}

// Last returns the most recently constructed client, or nil.
func (f *Factory) Last() *MockClient {
	built := f.Built()
	if len(built) == 0 {
		return nil
	}
	return built[len(built)-1]
}
