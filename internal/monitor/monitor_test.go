package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/transaction"
)

const nameSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "TestSchema",
	"type": "object",
	"properties": { "name": { "type": "string" } },
	"required": ["name"]
}`

func TestContractMonitor_Register(t *testing.T) {
	t.Run("InlineSchema", func(t *testing.T) {
		cm := NewContractMonitor()
		require.NoError(t, cm.Register(nameSchema, "b.type", "a.type"))
		assert.True(t, cm.Has("a.type"))
		assert.False(t, cm.Has("c.type"))
		assert.Equal(t, []string{"a.type", "b.type"}, cm.Types())
	})

	t.Run("SchemaFile", func(t *testing.T) {
		schemaFile := filepath.Join(t.TempDir(), "test_schema.json")
		require.NoError(t, os.WriteFile(schemaFile, []byte(nameSchema), 0o644))

		cm := NewContractMonitor()
		require.NoError(t, cm.RegisterFile(schemaFile, "file.type"))
		assert.True(t, cm.Has("file.type"))
	})

	t.Run("SchemaFileNotFound", func(t *testing.T) {
		cm := NewContractMonitor()
		err := cm.RegisterFile(filepath.Join(t.TempDir(), "missing.json"), "file.type")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error loading or compiling schema")
		assert.False(t, cm.Has("file.type"))
	})

	t.Run("InvalidSchema", func(t *testing.T) {
		cm := NewContractMonitor()
		err := cm.Register(`{"type": "object", "properties": {"name": {"type": 12}}}`, "bad.type")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error loading or compiling schema")
	})
}

func TestContractMonitor_Validate(t *testing.T) {
	cm := NewContractMonitor()
	require.NoError(t, cm.Register(nameSchema, "named"))

	t.Run("ValidAttributes", func(t *testing.T) {
		assert.NoError(t, cm.Validate("named", map[string]any{"name": "Jane"}))
	})

	t.Run("MissingRequired", func(t *testing.T) {
		err := cm.Validate("named", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrContract))

		var contractErr *ContractError
		require.ErrorAs(t, err, &contractErr)
		assert.Equal(t, "named", contractErr.Type)
		require.Len(t, contractErr.Violations, 1)
		assert.Contains(t, contractErr.Violations[0], "name")
	})

	t.Run("WrongType", func(t *testing.T) {
		err := cm.Validate("named", map[string]any{"name": 42})
		assert.ErrorIs(t, err, ErrContract)
	})

	t.Run("UnknownTypePasses", func(t *testing.T) {
		assert.NoError(t, cm.Validate("other", map[string]any{}))
	})
}

type committerFunc func(context.Context, *transaction.Transaction) (*result.Result, error)

func (f committerFunc) CommitTransaction(ctx context.Context, tx *transaction.Transaction) (*result.Result, error) {
	return f(ctx, tx)
}

func TestContractMonitor_Hooks(t *testing.T) {
	cm := NewContractMonitor()
	require.NoError(t, cm.Register(nameSchema, "named"))

	commits := 0
	service := committerFunc(func(context.Context, *transaction.Transaction) (*result.Result, error) {
		commits++
		return result.WebpayNormalizer.Normalize("named", result.Payload{"detailOutput": map[string]any{"responseCode": 0}}), nil
	})

	bad := transaction.New("named", service, nil, transaction.WithHooks(cm.Hooks()))
	_, err := bad.GetResult(context.Background())
	assert.ErrorIs(t, err, ErrContract)
	assert.False(t, bad.Performed())
	assert.Zero(t, commits, "an invalid transaction never reaches the service")

	good := transaction.New("named", service, transaction.Attributes{"name": "Jane"}, transaction.WithHooks(cm.Hooks()))
	res, err := good.GetResult(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, 1, commits)
}

func TestDefaultMonitor(t *testing.T) {
	cm, err := NewDefaultMonitor()
	require.NoError(t, err)

	for _, types := range Contracts {
		for _, typ := range types {
			assert.True(t, cm.Has(typ), typ)
		}
	}

	assert.NoError(t, cm.Validate("plus.normal", map[string]any{
		"amount": 1000, "buyOrder": "order-1", "returnUrl": "https://shop/return", "finalUrl": "https://shop/final",
	}))
	assert.ErrorIs(t, cm.Validate("plus.normal", map[string]any{"amount": 0, "buyOrder": "order-1"}), ErrContract)

	assert.NoError(t, cm.Validate("plus.mall.normal", map[string]any{
		"buyOrder": "mall-1", "returnUrl": "https://shop/return", "finalUrl": "https://shop/final",
		"items": []map[string]any{{"commerceCode": "597044444402", "buyOrder": "store-1", "amount": 2000}},
	}))
	assert.ErrorIs(t, cm.Validate("plus.mall.normal", map[string]any{
		"buyOrder": "mall-1", "returnUrl": "https://shop/return", "finalUrl": "https://shop/final",
		"items": []map[string]any{},
	}), ErrContract)

	assert.NoError(t, cm.Validate("onepay.cart", map[string]any{
		"externalUniqueNumber": "eun-1", "total": 4990,
		"items": []any{map[string]any{"description": "Zapatos", "quantity": 1, "amount": 4990}},
	}))
}

func TestContractError_Error(t *testing.T) {
	err := &ContractError{Type: "plus.normal", Violations: []string{"amount: is required", "buyOrder: is required"}}
	assert.Equal(t, `transaction attributes violate contract "plus.normal": amount: is required; buyOrder: is required`, err.Error())
	assert.ErrorIs(t, err, ErrContract)
}
