// Package transaction defines the Transaction entity. A transaction carries its
// type token, an opaque attribute bag and a back-reference to the service that
// created it. Committing runs FillDefaults, PreCommit, the service commit and
// PostCommit, then caches the Result on the transaction.
package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/yourorg/transbank-api/internal/result"
)

// Attributes is the opaque key/value bag of a transaction.
type Attributes map[string]any

// Committer is the owning service as seen by a transaction.
type Committer interface {
	CommitTransaction(ctx context.Context, tx *Transaction) (*result.Result, error)
}

// ErrNoService is returned when a transaction without an owning service is committed.
var ErrNoService = errors.New("transaction: no service set")

// Transaction is a single logical Transbank operation.
type Transaction struct {
	typ        string
	attributes Attributes
	service    Committer
	hooks      Hooks

	performed bool
	result    *result.Result
	postErr   error
}

// Option configures a Transaction at construction.
type Option func(*Transaction)

// WithHooks sets the hooks of the transaction variant.
func WithHooks(h Hooks) Option {
	return func(t *Transaction) {
		if h != nil {
			t.hooks = h
		}
	}
}

// New creates a transaction of type typ owned by service. Type and service are
// fixed for the transaction's lifetime. attrs is copied.
func New(typ string, service Committer, attrs Attributes, opts ...Option) *Transaction {
	t := &Transaction{
		typ:        typ,
		attributes: make(Attributes, len(attrs)),
		service:    service,
		hooks:      NopHooks{},
	}
	for k, v := range attrs {
		t.attributes[k] = v
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Type returns the transaction type token.
func (t *Transaction) Type() string { return t.typ }

// Service returns the owning service.
func (t *Transaction) Service() Committer { return t.service }

// Performed reports whether a commit attempt has completed successfully.
func (t *Transaction) Performed() bool { return t.performed }

// Result returns the cached result, or nil if the transaction was never committed.
func (t *Transaction) Result() *result.Result { return t.result }

// Get returns the attribute stored under key.
func (t *Transaction) Get(key string) any { return t.attributes[key] }

// GetString returns the attribute under key when it is a string.
func (t *Transaction) GetString(key string) string {
	s, _ := t.attributes[key].(string)
	return s
}

// Set stores an attribute.
func (t *Transaction) Set(key string, value any) { t.attributes[key] = value }

// Has reports whether key holds a non-nil attribute.
func (t *Transaction) Has(key string) bool {
	v, ok := t.attributes[key]
	return ok && v != nil
}

// Attributes returns a shallow copy of the attribute bag.
func (t *Transaction) Attributes() Attributes {
	out := make(Attributes, len(t.attributes))
	for k, v := range t.attributes {
		out[k] = v
	}
	return out
}

// SetDefaults merges defaults beneath the current attributes: keys already set
// on the transaction win.
func (t *Transaction) SetDefaults(defaults map[string]any) {
	for k, v := range defaults {
		if _, ok := t.attributes[k]; !ok {
			t.attributes[k] = v
		}
	}
}

// Items returns the sub-transactions of a mall transaction, in order.
func (t *Transaction) Items() []Attributes {
	switch items := t.attributes["items"].(type) {
	case []Attributes:
		return items
	case []map[string]any:
		out := make([]Attributes, 0, len(items))
		for _, it := range items {
			out = append(out, Attributes(it))
		}
		return out
	case []any:
		out := make([]Attributes, 0, len(items))
		for _, it := range items {
			switch m := it.(type) {
			case map[string]any:
				out = append(out, Attributes(m))
			case Attributes:
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// GetResult commits the transaction once and returns the cached Result on
// every later call. A PostCommit error is returned along with the Result each
// time; the commit itself is not repeated.
func (t *Transaction) GetResult(ctx context.Context) (*result.Result, error) {
	if t.performed {
		return t.result, t.postErr
	}
	return t.perform(ctx)
}

// ForceGetResult re-runs the whole commit sequence and overwrites the cached Result.
func (t *Transaction) ForceGetResult(ctx context.Context) (*result.Result, error) {
	return t.perform(ctx)
}

func (t *Transaction) perform(ctx context.Context) (*result.Result, error) {
	if t.service == nil {
		return nil, ErrNoService
	}

	t.hooks.FillDefaults(t)

	if err := t.hooks.PreCommit(ctx, t); err != nil {
		return nil, err
	}

	res, err := t.service.CommitTransaction(ctx, t)
	if err != nil {
		return nil, err
	}
	t.result = res
	t.performed = res != nil
	t.postErr = t.hooks.PostCommit(ctx, t)
	return res, t.postErr
}

// MarshalJSON renders the type and attributes.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       string     `json:"type"`
		Attributes Attributes `json:"attributes"`
	}{Type: t.typ, Attributes: t.attributes})
}

// String renders the transaction for error messages. Keys are sorted.
func (t *Transaction) String() string {
	if t == nil {
		return "<nil transaction>"
	}
	keys := make([]string, 0, len(t.attributes))
	for k := range t.attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := t.typ + " {"
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %v", k, t.attributes[k])
	}
	return s + "}"
}
