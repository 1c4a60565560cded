// Package adapter resolves transaction types to upstream clients and
// dispatches lifecycle verbs onto them.
//
// A Client implements one processor: a family of related Transbank operations
// sharing an endpoint and credentials (Webpay Plus Normal, Oneclick, Onepay
// cart...). The Resolver keeps at most one Client bound at a time and swaps it
// when a transaction of another processor arrives. The Adapter uses the
// routing tables to pick the verb, calls the Client and normalizes the raw
// answer into a result.Result.
package adapter

import (
	"context"

	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/router"
	"github.com/yourorg/transbank-api/internal/transaction"
)

// Operation performs one lifecycle verb against the upstream and returns the
// decoded payload untouched.
type Operation func(ctx context.Context, tx *transaction.Transaction) (result.Payload, error)

// Client is an upstream processor.
type Client interface {
	// Boot prepares the client (endpoint selection, credential checks). It is
	// called exactly once per construction, before any Operation.
	Boot(ctx context.Context) error
	// Operation returns the implementation of verb, if the client has one.
	Operation(verb router.Verb) (Operation, bool)
}

// RetrieveConfirmer is implemented by clients that support the return flow:
// fetching a transaction's outcome by token and acknowledging it in one step.
type RetrieveConfirmer interface {
	RetrieveAndConfirm(ctx context.Context, tx *transaction.Transaction) (result.Payload, error)
}

// Retriever is implemented by clients that can fetch a transaction outcome
// without acknowledging it.
type Retriever interface {
	Retrieve(ctx context.Context, tx *transaction.Transaction) (result.Payload, error)
}

// Acknowledger is implemented by clients that can acknowledge a retrieved
// transaction.
type Acknowledger interface {
	Acknowledge(ctx context.Context, tx *transaction.Transaction) (bool, error)
}

// ClientFactory constructs a fresh, unbooted client for an environment.
type ClientFactory func(env tbcontext.Environment, creds tbcontext.Credentials) Client

// Factories maps processor identities to their constructors.
type Factories map[router.ProcessorID]ClientFactory

// Operations is a verb table clients can embed to implement Operation.
type Operations map[router.Verb]Operation

// Operation implements the lookup half of Client.
func (o Operations) Operation(verb router.Verb) (Operation, bool) {
	op, ok := o[verb]
	return op, ok && op != nil
}
