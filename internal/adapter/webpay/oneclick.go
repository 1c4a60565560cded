package webpay

import (
	"context"

	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/connector"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/router"
	"github.com/yourorg/transbank-api/internal/transaction"
)

// OneclickNormalClient manages card inscriptions and one-click charges.
type OneclickNormalClient struct {
	soapClient
}

// NewOneclickNormalClient creates an unbooted Oneclick client.
func NewOneclickNormalClient(env tbcontext.Environment, creds tbcontext.Credentials, dial Dialer) *OneclickNormalClient {
	c := &OneclickNormalClient{soapClient: newSOAPClient(OneclickNormalProcessor, env, creds, connector.OneclickService, connector.OneclickNamespace, dial)}
	c.Operations[router.VerbRegister] = c.register
	c.Operations[router.VerbConfirm] = c.finishInscription
	c.Operations[router.VerbUnregister] = c.removeUser
	c.Operations[router.VerbCharge] = c.authorize
	c.Operations[router.VerbReverse] = c.reverse
	return c
}

// register starts an inscription, or finishes it when the transaction already
// carries the token Webpay posted back.
func (c *OneclickNormalClient) register(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	if tx.GetString("token") != "" {
		return c.finishInscription(ctx, tx)
	}
	return c.call(ctx, "initInscription", map[string]any{"arg0": map[string]any{
		"username":    tx.Get("username"),
		"email":       tx.Get("email"),
		"responseURL": tx.Get("responseUrl"),
	}})
}

func (c *OneclickNormalClient) finishInscription(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	input, err := tokenInput(tx)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "finishInscription", map[string]any{"arg0": map[string]any{"token": input["tokenInput"]}})
}

// removeUser answers a bare boolean, exposed as "result".
func (c *OneclickNormalClient) removeUser(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	raw, err := c.call(ctx, "removeUser", map[string]any{"arg0": map[string]any{
		"tbkUser":  tx.Get("tbkUser"),
		"username": tx.Get("username"),
	}})
	if err != nil {
		return nil, err
	}
	if raw.Has("return") {
		return result.Payload{"result": raw.String("return")}, nil
	}
	return raw, nil
}

func (c *OneclickNormalClient) authorize(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	return c.call(ctx, "authorize", map[string]any{"arg0": map[string]any{
		"buyOrder": tx.Get("buyOrder"),
		"tbkUser":  tx.Get("tbkUser"),
		"username": tx.Get("username"),
		"amount":   tx.Get("amount"),
	}})
}

func (c *OneclickNormalClient) reverse(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	return c.call(ctx, "codeReverseOneClick", map[string]any{"arg0": map[string]any{
		"buyorder": tx.Get("buyOrder"),
	}})
}

// OneclickMallClient charges inscribed cards on behalf of several stores.
type OneclickMallClient struct {
	soapClient
}

// NewOneclickMallClient creates an unbooted Oneclick Mall client.
func NewOneclickMallClient(env tbcontext.Environment, creds tbcontext.Credentials, dial Dialer) *OneclickMallClient {
	c := &OneclickMallClient{soapClient: newSOAPClient(OneclickMallProcessor, env, creds, connector.OneclickMallService, connector.WebpayNamespace, dial)}
	c.Operations[router.VerbCharge] = c.authorize
	c.Operations[router.VerbReverse] = c.reverse
	c.Operations[router.VerbNullify] = c.nullify
	c.Operations[router.VerbReverseNullify] = c.reverseNullification
	return c
}

func (c *OneclickMallClient) authorize(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	stores := make([]map[string]any, 0)
	for _, item := range tx.Items() {
		stores = append(stores, map[string]any{
			"commerceId":   item["commerceCode"],
			"buyOrder":     item["buyOrder"],
			"amount":       item["amount"],
			"sharesNumber": item["sharesNumber"],
		})
	}
	return c.call(ctx, "Authorize", map[string]any{"input": map[string]any{
		"buyOrder":    tx.Get("buyOrder"),
		"tbkUser":     tx.Get("tbkUser"),
		"username":    tx.Get("username"),
		"storesInput": stores,
	}})
}

func (c *OneclickMallClient) reverse(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	return c.call(ctx, "Reverse", map[string]any{"input": map[string]any{
		"buyOrder": tx.Get("buyOrder"),
	}})
}

func (c *OneclickMallClient) nullificationInput(tx *transaction.Transaction) map[string]any {
	return map[string]any{
		"commerceId":        c.commerceFor(tx),
		"buyOrder":          tx.Get("buyOrder"),
		"authorizedAmount":  tx.Get("authorizedAmount"),
		"authorizationCode": tx.Get("authorizationCode"),
		"nullifyAmount":     tx.Get("nullifyAmount"),
	}
}

func (c *OneclickMallClient) nullify(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	return c.call(ctx, "Nullify", map[string]any{"input": c.nullificationInput(tx)})
}

func (c *OneclickMallClient) reverseNullification(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	return c.call(ctx, "ReverseNullification", map[string]any{"input": c.nullificationInput(tx)})
}
