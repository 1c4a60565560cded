package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yourorg/transbank-api/internal/adapter/webpay"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/transaction"
)

// Webpay buy orders are limited to 26 characters.
const buyOrderLength = 26

// Webpay is the Webpay Plus and Oneclick service.
type Webpay struct {
	*Service
}

// NewWebpay creates the Webpay service over d, usually a webpay adapter.
func NewWebpay(d Dispatcher, opts ...Option) *Webpay {
	return &Webpay{Service: New(webpay.Service, d, opts...)}
}

// NewBuyOrder returns a random buy order accepted by Webpay.
func NewBuyOrder() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:buyOrderLength]
}

// plusDefaults fills the buy order and session id Plus transactions need.
var plusDefaults = transaction.HookFuncs{Fill: func(tx *transaction.Transaction) {
	tx.SetDefaults(map[string]any{
		"buyOrder":  NewBuyOrder(),
		"sessionId": uuid.NewString(),
	})
}}

func (w *Webpay) plus(typ string, attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(typ, attrs, plusDefaults)
}

// MakeNormal makes a Webpay Plus Normal transaction.
func (w *Webpay) MakeNormal(attrs transaction.Attributes) *transaction.Transaction {
	return w.plus(webpay.PlusNormal, attrs)
}

// CreateNormal commits a Webpay Plus Normal transaction.
func (w *Webpay) CreateNormal(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeNormal(attrs).GetResult(ctx)
}

// MakeMallNormal makes a Webpay Plus Mall Normal transaction. Store
// sub-transactions go under "items".
func (w *Webpay) MakeMallNormal(attrs transaction.Attributes) *transaction.Transaction {
	return w.plus(webpay.PlusMallNormal, attrs)
}

// CreateMallNormal commits a Webpay Plus Mall Normal transaction.
func (w *Webpay) CreateMallNormal(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeMallNormal(attrs).GetResult(ctx)
}

// MakeDefer makes a Webpay Plus deferred-capture transaction.
func (w *Webpay) MakeDefer(attrs transaction.Attributes) *transaction.Transaction {
	return w.plus(webpay.PlusDefer, attrs)
}

// CreateDefer commits a Webpay Plus deferred-capture transaction.
func (w *Webpay) CreateDefer(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeDefer(attrs).GetResult(ctx)
}

// MakeMallDefer makes a Webpay Plus Mall deferred-capture transaction.
func (w *Webpay) MakeMallDefer(attrs transaction.Attributes) *transaction.Transaction {
	return w.plus(webpay.PlusMallDefer, attrs)
}

// CreateMallDefer commits a Webpay Plus Mall deferred-capture transaction.
func (w *Webpay) CreateMallDefer(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeMallDefer(attrs).GetResult(ctx)
}

// MakeCapture makes the capture of a deferred transaction.
func (w *Webpay) MakeCapture(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.PlusCapture, attrs)
}

// CreateCapture captures a deferred transaction.
func (w *Webpay) CreateCapture(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeCapture(attrs).GetResult(ctx)
}

// MakeMallCapture makes the capture of a deferred mall store transaction.
func (w *Webpay) MakeMallCapture(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.PlusMallCapture, attrs)
}

// CreateMallCapture captures a deferred mall store transaction.
func (w *Webpay) CreateMallCapture(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeMallCapture(attrs).GetResult(ctx)
}

// MakeNullify makes the nullification of an authorized transaction.
func (w *Webpay) MakeNullify(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.PlusNullify, attrs)
}

// CreateNullify nullifies an authorized transaction.
func (w *Webpay) CreateNullify(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeNullify(attrs).GetResult(ctx)
}

// MakeRegistration makes a Oneclick card inscription.
func (w *Webpay) MakeRegistration(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.OneclickRegister, attrs)
}

// CreateRegistration starts a Oneclick card inscription.
func (w *Webpay) CreateRegistration(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeRegistration(attrs).GetResult(ctx)
}

// MakeUnregistration makes the removal of a Oneclick inscription.
func (w *Webpay) MakeUnregistration(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.OneclickUnregister, attrs)
}

// CreateUnregistration removes a Oneclick inscription.
func (w *Webpay) CreateUnregistration(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeUnregistration(attrs).GetResult(ctx)
}

// MakeCharge makes a Oneclick charge.
func (w *Webpay) MakeCharge(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.OneclickCharge, attrs)
}

// CreateCharge charges an inscribed card.
func (w *Webpay) CreateCharge(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeCharge(attrs).GetResult(ctx)
}

// MakeReverseCharge makes the reversal of a Oneclick charge.
func (w *Webpay) MakeReverseCharge(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.OneclickReverse, attrs)
}

// CreateReverseCharge reverses a Oneclick charge.
func (w *Webpay) CreateReverseCharge(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeReverseCharge(attrs).GetResult(ctx)
}

// MakeMallCharge makes a Oneclick Mall charge.
func (w *Webpay) MakeMallCharge(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.OneclickMallCharge, attrs)
}

// CreateMallCharge charges an inscribed card on behalf of several stores.
func (w *Webpay) CreateMallCharge(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeMallCharge(attrs).GetResult(ctx)
}

// MakeMallReverseCharge makes the reversal of a Oneclick Mall charge.
func (w *Webpay) MakeMallReverseCharge(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.OneclickMallReverse, attrs)
}

// CreateMallReverseCharge reverses a Oneclick Mall charge.
func (w *Webpay) CreateMallReverseCharge(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeMallReverseCharge(attrs).GetResult(ctx)
}

// MakeMallNullify makes the nullification of a Oneclick Mall store charge.
func (w *Webpay) MakeMallNullify(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.OneclickMallNullify, attrs)
}

// CreateMallNullify nullifies a Oneclick Mall store charge.
func (w *Webpay) CreateMallNullify(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeMallNullify(attrs).GetResult(ctx)
}

// MakeMallReverseNullify makes the reversal of a Oneclick Mall nullification.
func (w *Webpay) MakeMallReverseNullify(attrs transaction.Attributes) *transaction.Transaction {
	return w.Make(webpay.OneclickMallReverseNullify, attrs)
}

// CreateMallReverseNullify reverses a Oneclick Mall nullification.
func (w *Webpay) CreateMallReverseNullify(ctx context.Context, attrs transaction.Attributes) (*result.Result, error) {
	return w.MakeMallReverseNullify(attrs).GetResult(ctx)
}

// GetNormal retrieves and acknowledges the Plus Normal transaction behind the
// token Webpay posted to the return URL.
func (w *Webpay) GetNormal(ctx context.Context, token string) (*result.Result, error) {
	return w.RetrieveAndConfirm(ctx, webpay.PlusNormal, transaction.Attributes{"token": token})
}

// GetMallNormal is GetNormal for Plus Mall transactions.
func (w *Webpay) GetMallNormal(ctx context.Context, token string) (*result.Result, error) {
	return w.RetrieveAndConfirm(ctx, webpay.PlusMallNormal, transaction.Attributes{"token": token})
}

// ConfirmRegistration finishes the Oneclick inscription behind token.
func (w *Webpay) ConfirmRegistration(ctx context.Context, token string) (*result.Result, error) {
	return w.RetrieveAndConfirm(ctx, webpay.OneclickRegister, transaction.Attributes{"token": token})
}

// RetrieveNormal returns the raw Plus Normal outcome behind token without
// acknowledging it.
func (w *Webpay) RetrieveNormal(ctx context.Context, token string) (result.Payload, error) {
	return w.Retrieve(ctx, webpay.PlusNormal, transaction.Attributes{"token": token})
}

// ConfirmNormal acknowledges the Plus Normal transaction behind token.
func (w *Webpay) ConfirmNormal(ctx context.Context, token string) (bool, error) {
	return w.Confirm(ctx, webpay.PlusNormal, transaction.Attributes{"token": token})
}
