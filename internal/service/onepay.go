package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yourorg/transbank-api/internal/adapter/onepay"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/transaction"
)

// ErrCartNegativeAmount is matched by every CartNegativeAmountError.
var ErrCartNegativeAmount = errors.New("cannot send to Onepay a transaction with zero total amount or below")

// CartNegativeAmountError rejects a cart whose total is not positive.
type CartNegativeAmountError struct {
	Transaction *transaction.Transaction
}

func (e *CartNegativeAmountError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCartNegativeAmount, e.Transaction)
}

func (e *CartNegativeAmountError) Is(target error) bool {
	return target == ErrCartNegativeAmount
}

// Onepay is the Onepay cart service.
type Onepay struct {
	*Service
}

// NewOnepay creates the Onepay service over d, usually an onepay adapter.
func NewOnepay(d Dispatcher, opts ...Option) *Onepay {
	return &Onepay{Service: New(onepay.Service, d, opts...)}
}

// CartTotal sums amount times quantity over the cart items. Items without a
// quantity count once.
func CartTotal(tx *transaction.Transaction) int64 {
	var total int64
	for _, item := range tx.Items() {
		amount, _ := result.Payload(item).Int("amount")
		quantity, ok := result.Payload(item).Int("quantity")
		if !ok {
			quantity = 1
		}
		total += amount * quantity
	}
	return total
}

var cartHooks = transaction.HookFuncs{
	Fill: func(tx *transaction.Transaction) {
		tx.SetDefaults(map[string]any{"externalUniqueNumber": uuid.NewString()})
		tx.Set("total", CartTotal(tx))
	},
	Pre: func(_ context.Context, tx *transaction.Transaction) error {
		if total, _ := result.Payload(tx.Attributes()).Int("total"); total <= 0 {
			return &CartNegativeAmountError{Transaction: tx}
		}
		return nil
	},
}

// MakeCart makes a cart transaction. Its total is computed from the items when
// it is committed.
func (o *Onepay) MakeCart(attrs transaction.Attributes) *transaction.Transaction {
	return o.Make(onepay.Cart, attrs, cartHooks)
}

// CreateCart commits a cart transaction.
func (o *Onepay) CreateCart(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return o.MakeCart(attrs).GetResult(ctx)
}

// MakeNullify makes the nullification of an authorized cart.
func (o *Onepay) MakeNullify(attrs transaction.Attributes) *transaction.Transaction {
	return o.Make(onepay.Nullify, attrs)
}

// CreateNullify nullifies an authorized cart.
func (o *Onepay) CreateNullify(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return o.MakeNullify(attrs).GetResult(ctx)
}

// GetCart resolves the cart Onepay reported on the callback URL.
func (o *Onepay) GetCart(ctx context.Context, occ, externalUniqueNumber string) (*result.Result, error) {
	return o.RetrieveAndConfirm(ctx, onepay.Cart, transaction.Attributes{
		"occ":                  occ,
		"externalUniqueNumber": externalUniqueNumber,
	})
}
