// Package webpay wires the Webpay Plus and Oneclick processors into an
// adapter.Adapter. Every client talks SOAP through a connector.Connector
// obtained from a Dialer at boot time.
package webpay

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/yourorg/transbank-api/internal/adapter"
	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/connector"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/router"
)

// Service is the name of the Webpay service family.
const Service = "webpay"

// Processors.
const (
	PlusNormalProcessor     router.ProcessorID = "plus_normal"
	PlusCaptureProcessor    router.ProcessorID = "plus_capture"
	PlusNullifyProcessor    router.ProcessorID = "plus_nullify"
	OneclickNormalProcessor router.ProcessorID = "oneclick_normal"
	OneclickMallProcessor   router.ProcessorID = "oneclick_mall"
)

// Transaction types.
const (
	PlusNormal      = "plus.normal"
	PlusDefer       = "plus.defer"
	PlusMallNormal  = "plus.mall.normal"
	PlusMallDefer   = "plus.mall.defer"
	PlusCapture     = "plus.capture"
	PlusMallCapture = "plus.mall.capture"
	PlusNullify     = "plus.nullify"
	PlusMallNullify = "plus.mall.nullify"

	OneclickRegister   = "oneclick.register"
	OneclickConfirm    = "oneclick.confirm"
	OneclickUnregister = "oneclick.unregister"
	OneclickCharge     = "oneclick.charge"
	OneclickReverse    = "oneclick.reverse"

	OneclickMallCharge         = "oneclick.mall.charge"
	OneclickMallReverse        = "oneclick.mall.reverse"
	OneclickMallNullify        = "oneclick.mall.nullify"
	OneclickMallReverseNullify = "oneclick.mall.reverseNullify"
)

// Credential keys read by the Webpay clients.
const (
	CredentialCommerceCode = "commerceCode"
	CredentialPrivateKey   = "privateKey"
	CredentialPublicCert   = "publicCert"
)

// integrationCommerceCodes are the public test merchants used when no commerce
// code is configured outside production.
var integrationCommerceCodes = map[router.ProcessorID]string{
	PlusNormalProcessor:     "597020000540",
	PlusCaptureProcessor:    "597020000541",
	PlusNullifyProcessor:    "597020000540",
	OneclickNormalProcessor: "597020000547",
	OneclickMallProcessor:   "597044444429",
}

// ErrMissingCommerceCode is returned by Boot in production when no commerce
// code is configured.
var ErrMissingCommerceCode = errors.New("webpay: commerce code is required in production")

// Processors returns the processor routing of Webpay.
func Processors() router.ProcessorMap {
	return router.ProcessorMap{
		{Processor: PlusNormalProcessor, Types: []string{PlusNormal, PlusDefer, PlusMallNormal, PlusMallDefer}},
		{Processor: PlusCaptureProcessor, Types: []string{PlusCapture, PlusMallCapture}},
		{Processor: PlusNullifyProcessor, Types: []string{PlusNullify, PlusMallNullify}},
		{Processor: OneclickNormalProcessor, Types: []string{OneclickRegister, OneclickConfirm, OneclickUnregister, OneclickCharge, OneclickReverse}},
		{Processor: OneclickMallProcessor, Types: []string{OneclickMallCharge, OneclickMallReverse, OneclickMallNullify, OneclickMallReverseNullify}},
	}
}

// Verbs returns the lifecycle verb routing of Webpay.
func Verbs() router.VerbMap {
	return router.VerbMap{
		{Verb: router.VerbCapture, Types: []string{PlusCapture, PlusMallCapture}},
		{Verb: router.VerbNullify, Types: []string{PlusNullify, PlusMallNullify, OneclickMallNullify}},
		{Verb: router.VerbRegister, Types: []string{OneclickRegister}},
		{Verb: router.VerbConfirm, Types: []string{OneclickConfirm}},
		{Verb: router.VerbUnregister, Types: []string{OneclickUnregister}},
		{Verb: router.VerbCharge, Types: []string{OneclickCharge, OneclickMallCharge}},
		{Verb: router.VerbReverse, Types: []string{OneclickReverse, OneclickMallReverse}},
		{Verb: router.VerbReverseNullify, Types: []string{OneclickMallReverseNullify}},
		{Verb: router.VerbCommit, Types: []string{PlusNormal, PlusDefer, PlusMallNormal, PlusMallDefer}},
	}
}

// Table returns a fresh routing table for Webpay.
func Table() *router.Table {
	return router.NewTable(Processors(), Verbs())
}

// Dialer opens the connector of a SOAP service.
type Dialer func(url, namespace string) connector.Connector

// SOAPDialer returns a Dialer creating SOAP connectors over client.
func SOAPDialer(client *http.Client, logger zerolog.Logger) Dialer {
	return func(url, namespace string) connector.Connector {
		return connector.NewSOAP(url, namespace, client, logger)
	}
}

// Factories returns the client constructors of every Webpay processor.
func Factories(dial Dialer) adapter.Factories {
	return adapter.Factories{
		PlusNormalProcessor: func(env tbcontext.Environment, creds tbcontext.Credentials) adapter.Client {
			return NewPlusNormalClient(env, creds, dial)
		},
		PlusCaptureProcessor: func(env tbcontext.Environment, creds tbcontext.Credentials) adapter.Client {
			return NewPlusCaptureClient(env, creds, dial)
		},
		PlusNullifyProcessor: func(env tbcontext.Environment, creds tbcontext.Credentials) adapter.Client {
			return NewPlusNullifyClient(env, creds, dial)
		},
		OneclickNormalProcessor: func(env tbcontext.Environment, creds tbcontext.Credentials) adapter.Client {
			return NewOneclickNormalClient(env, creds, dial)
		},
		OneclickMallProcessor: func(env tbcontext.Environment, creds tbcontext.Credentials) adapter.Client {
			return NewOneclickMallClient(env, creds, dial)
		},
	}
}

// Config returns the adapter configuration of Webpay.
func Config(dial Dialer) adapter.Config {
	return adapter.Config{
		Name:       Service,
		Table:      Table(),
		Factories:  Factories(dial),
		Normalizer: result.WebpayNormalizer,
		Normalizers: map[router.ProcessorID]result.Normalizer{
			OneclickNormalProcessor: result.OneclickNormalizer,
			OneclickMallProcessor:   result.OneclickMallNormalizer,
		},
		RegisterType: OneclickRegister,
	}
}

// NewAdapter creates the Webpay dispatcher.
func NewAdapter(env tbcontext.Environment, creds tbcontext.Credentials, dial Dialer, opts ...adapter.Option) *adapter.Adapter {
	return adapter.New(Config(dial), env, creds, opts...)
}

// soapClient holds what every Webpay processor shares: the target service,
// the merchant and the connector opened at boot.
type soapClient struct {
	adapter.Operations

	processor router.ProcessorID
	env       tbcontext.Environment
	creds     tbcontext.Credentials
	service   connector.Endpoint
	namespace string
	dial      Dialer

	commerceCode string
	conn         connector.Connector
}

func newSOAPClient(processor router.ProcessorID, env tbcontext.Environment, creds tbcontext.Credentials, service connector.Endpoint, namespace string, dial Dialer) soapClient {
	return soapClient{
		Operations: adapter.Operations{},
		processor:  processor,
		env:        env,
		creds:      creds,
		service:    service,
		namespace:  namespace,
		dial:       dial,
	}
}

// Boot resolves the merchant and opens the connector.
func (c *soapClient) Boot(context.Context) error {
	c.commerceCode = c.creds.Get(CredentialCommerceCode)
	if c.commerceCode == "" {
		if c.env.IsProduction() {
			return ErrMissingCommerceCode
		}
		c.commerceCode = integrationCommerceCodes[c.processor]
	}
	if c.dial == nil {
		return fmt.Errorf("webpay: %s has no connector", c.processor)
	}
	c.conn = c.dial(c.service.For(c.env), c.namespace)
	return nil
}

// CommerceCode returns the merchant resolved at boot.
func (c *soapClient) CommerceCode() string { return c.commerceCode }

func (c *soapClient) call(ctx context.Context, operation string, payload map[string]any) (result.Payload, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("webpay: %s called before boot", c.processor)
	}
	return c.conn.Call(ctx, operation, payload)
}
