package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/transbank-api/internal/adapter"
	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/router"
	"github.com/yourorg/transbank-api/internal/transaction"
)

func TestMockClient_DefaultBehavior(t *testing.T) {
	m := NewMockClient("plus_normal")
	require.NoError(t, m.Boot(context.Background()))
	assert.Equal(t, 1, m.Boots())

	op, ok := m.Operation(router.VerbCommit)
	require.True(t, ok)
	raw, err := op(context.Background(), transaction.New("plus.normal", nil, nil))
	require.NoError(t, err)
	assert.NotEmpty(t, raw.String("token"))
	assert.Equal(t, 1, m.Calls(router.VerbCommit))

	ok, err = m.Acknowledge(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMockClient_ScriptedOps(t *testing.T) {
	boom := errors.New("soap fault")
	m := &MockClient{
		Name: "oneclick_normal",
		Ops: map[router.Verb]adapter.Operation{
			router.VerbCharge: func(context.Context, *transaction.Transaction) (result.Payload, error) {
				return nil, boom
			},
		},
	}

	op, ok := m.Operation(router.VerbCharge)
	require.True(t, ok)
	_, err := op(context.Background(), nil)
	assert.Equal(t, boom, err)

	_, ok = m.Operation(router.VerbReverse)
	assert.False(t, ok, "unscripted verbs are unsupported without DefaultSuccess")
}

func TestMockClient_BootError(t *testing.T) {
	m := NewMockClient("plus_normal")
	m.BootFunc = func(context.Context) error { return errors.New("no wsdl") }
	assert.EqualError(t, m.Boot(context.Background()), "no wsdl")
	assert.Equal(t, 1, m.Boots())
}

func TestFactory_RecordsConstructions(t *testing.T) {
	f := &Factory{Name: "plus_normal"}
	assert.Nil(t, f.Last())

	creds := tbcontext.Credentials{"commerceCode": "597020000540"}
	c := f.Func()(tbcontext.Production, creds)

	require.Len(t, f.Built(), 1)
	assert.Same(t, c, f.Last())
	assert.Equal(t, tbcontext.Production, f.Last().Environment)
	assert.Equal(t, "597020000540", f.Last().Credentials.Get("commerceCode"))
}
