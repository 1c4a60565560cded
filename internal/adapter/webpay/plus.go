package webpay

import (
	"context"
	"errors"
	"strings"

	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/connector"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/router"
	"github.com/yourorg/transbank-api/internal/transaction"
)

const (
	transactionTypeNormal = "TR_NORMAL_WS"
	transactionTypeMall   = "TR_MALL_WS"
)

// ErrMissingToken is returned by return-flow operations on a transaction
// without a token attribute.
var ErrMissingToken = errors.New("webpay: transaction has no token")

func isMall(typ string) bool {
	return strings.HasPrefix(typ, "plus.mall.")
}

// commerceFor prefers a commerce code set on the transaction over the merchant
// resolved at boot.
func (c *soapClient) commerceFor(tx *transaction.Transaction) string {
	if code := tx.GetString(CredentialCommerceCode); code != "" {
		return code
	}
	return c.commerceCode
}

func tokenInput(tx *transaction.Transaction) (map[string]any, error) {
	token := tx.GetString("token")
	if token == "" {
		return nil, ErrMissingToken
	}
	return map[string]any{"tokenInput": token}, nil
}

// PlusNormalClient creates Webpay Plus payments, normal or mall, immediate or
// deferred, and drives their return flow.
type PlusNormalClient struct {
	soapClient
}

// NewPlusNormalClient creates an unbooted Plus Normal client.
func NewPlusNormalClient(env tbcontext.Environment, creds tbcontext.Credentials, dial Dialer) *PlusNormalClient {
	c := &PlusNormalClient{soapClient: newSOAPClient(PlusNormalProcessor, env, creds, connector.WebpayService, connector.WebpayNamespace, dial)}
	c.Operations[router.VerbCommit] = c.initTransaction
	return c
}

func (c *PlusNormalClient) initTransaction(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	input := map[string]any{
		"wSTransactionType": transactionTypeNormal,
		"buyOrder":          tx.Get("buyOrder"),
		"sessionId":         tx.Get("sessionId"),
		"returnURL":         tx.Get("returnUrl"),
		"finalURL":          tx.Get("finalUrl"),
	}

	if isMall(tx.Type()) {
		input["wSTransactionType"] = transactionTypeMall
		input["commerceId"] = c.commerceFor(tx)
		details := make([]map[string]any, 0)
		for _, item := range tx.Items() {
			details = append(details, map[string]any{
				"amount":       item["amount"],
				"commerceCode": item["commerceCode"],
				"buyOrder":     item["buyOrder"],
			})
		}
		input["transactionDetails"] = details
	} else {
		input["transactionDetails"] = map[string]any{
			"amount":       tx.Get("amount"),
			"commerceCode": c.commerceFor(tx),
			"buyOrder":     tx.Get("buyOrder"),
		}
	}

	return c.call(ctx, "initTransaction", map[string]any{"wsInitTransactionInput": input})
}

// Retrieve fetches the outcome of the payment identified by the token attribute.
func (c *PlusNormalClient) Retrieve(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	input, err := tokenInput(tx)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "getTransactionResult", input)
}

// Acknowledge tells Webpay the outcome was received. Webpay reverses payments
// that are not acknowledged in time.
func (c *PlusNormalClient) Acknowledge(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	input, err := tokenInput(tx)
	if err != nil {
		return false, err
	}
	if _, err := c.call(ctx, "acknowledgeTransaction", input); err != nil {
		return false, err
	}
	return true, nil
}

// RetrieveAndConfirm fetches the outcome and acknowledges it.
func (c *PlusNormalClient) RetrieveAndConfirm(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	raw, err := c.Retrieve(ctx, tx)
	if err != nil {
		return nil, err
	}
	if _, err := c.Acknowledge(ctx, tx); err != nil {
		return nil, err
	}
	return raw, nil
}

// PlusCaptureClient captures deferred Webpay Plus authorizations.
type PlusCaptureClient struct {
	soapClient
}

// NewPlusCaptureClient creates an unbooted capture client.
func NewPlusCaptureClient(env tbcontext.Environment, creds tbcontext.Credentials, dial Dialer) *PlusCaptureClient {
	c := &PlusCaptureClient{soapClient: newSOAPClient(PlusCaptureProcessor, env, creds, connector.WebpayCommerceService, connector.WebpayNamespace, dial)}
	c.Operations[router.VerbCapture] = c.capture
	return c
}

func (c *PlusCaptureClient) capture(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	return c.call(ctx, "capture", map[string]any{"captureInput": map[string]any{
		"commerceId":        c.commerceFor(tx),
		"buyOrder":          tx.Get("buyOrder"),
		"authorizationCode": tx.Get("authorizationCode"),
		"captureAmount":     tx.Get("captureAmount"),
	}})
}

// PlusNullifyClient nullifies, totally or partially, Webpay Plus payments.
type PlusNullifyClient struct {
	soapClient
}

// NewPlusNullifyClient creates an unbooted nullify client.
func NewPlusNullifyClient(env tbcontext.Environment, creds tbcontext.Credentials, dial Dialer) *PlusNullifyClient {
	c := &PlusNullifyClient{soapClient: newSOAPClient(PlusNullifyProcessor, env, creds, connector.WebpayCommerceService, connector.WebpayNamespace, dial)}
	c.Operations[router.VerbNullify] = c.nullify
	return c
}

func (c *PlusNullifyClient) nullify(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	return c.call(ctx, "nullify", map[string]any{"nullificationInput": map[string]any{
		"commerceId":        c.commerceFor(tx),
		"buyOrder":          tx.Get("buyOrder"),
		"authorizedAmount":  tx.Get("authorizedAmount"),
		"authorizationCode": tx.Get("authorizationCode"),
		"nullifyAmount":     tx.Get("nullifyAmount"),
	}})
}
