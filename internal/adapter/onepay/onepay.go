// Package onepay wires the Onepay cart and nullify processors into an
// adapter.Adapter. Requests are JSON envelopes carrying the merchant keys and
// an HMAC-SHA256 signature over the operation's significant fields.
package onepay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourorg/transbank-api/internal/adapter"
	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/connector"
	"github.com/yourorg/transbank-api/internal/result"
	"github.com/yourorg/transbank-api/internal/router"
	"github.com/yourorg/transbank-api/internal/transaction"
)

// Service is the name of the Onepay service family.
const Service = "onepay"

const (
	CartProcessor    router.ProcessorID = "onepay_cart"
	NullifyProcessor router.ProcessorID = "onepay_nullify"

	Cart    = "onepay.cart"
	Nullify = "onepay.nullify"
)

// Credential keys read by the Onepay clients.
const (
	CredentialAPIKey       = "apiKey"
	CredentialSharedSecret = "sharedSecret"
	CredentialAppKey       = "appKey"
)

// Public integration keys, used when none are configured outside production.
const (
	integrationAPIKey       = "dKVhq1WGt_XapIYirTXNyUKoWTDFfxaEV63-O5jcsdw"
	integrationSharedSecret = "?XW#WOLG##FBAGEAYSNQ5APD#JF@$AYZ"
	integrationAppKey       = "04533c31-fe7e-43ed-bbc4-1c8ab1538afp"
)

// ErrMissingKeys is returned by Boot in production when the API key or shared
// secret is not configured.
var ErrMissingKeys = errors.New("onepay: api key and shared secret are required in production")

// Processors returns the processor routing of Onepay.
func Processors() router.ProcessorMap {
	return router.ProcessorMap{
		{Processor: CartProcessor, Types: []string{Cart}},
		{Processor: NullifyProcessor, Types: []string{Nullify}},
	}
}

// Verbs returns the lifecycle verb routing of Onepay.
func Verbs() router.VerbMap {
	return router.VerbMap{
		{Verb: router.VerbCommit, Types: []string{Cart}},
		{Verb: router.VerbNullify, Types: []string{Nullify}},
	}
}

// Table returns a fresh routing table for Onepay.
func Table() *router.Table {
	return router.NewTable(Processors(), Verbs())
}

// Dialer opens the REST connector for a base URL.
type Dialer func(baseURL string) connector.Connector

// RESTDialer returns a Dialer creating REST connectors over client.
func RESTDialer(client *http.Client, logger zerolog.Logger) Dialer {
	return func(baseURL string) connector.Connector {
		return connector.NewREST(baseURL, client, logger)
	}
}

// Factories returns the client constructors of every Onepay processor.
func Factories(dial Dialer, now func() time.Time) adapter.Factories {
	return adapter.Factories{
		CartProcessor: func(env tbcontext.Environment, creds tbcontext.Credentials) adapter.Client {
			return NewCartClient(env, creds, dial, now)
		},
		NullifyProcessor: func(env tbcontext.Environment, creds tbcontext.Credentials) adapter.Client {
			return NewNullifyClient(env, creds, dial, now)
		},
	}
}

// Config returns the adapter configuration of Onepay. A nil now uses time.Now.
func Config(dial Dialer, now func() time.Time) adapter.Config {
	return adapter.Config{
		Name:       Service,
		Table:      Table(),
		Factories:  Factories(dial, now),
		Normalizer: result.OnepayNormalizer,
	}
}

// NewAdapter creates the Onepay dispatcher.
func NewAdapter(env tbcontext.Environment, creds tbcontext.Credentials, dial Dialer, opts ...adapter.Option) *adapter.Adapter {
	return adapter.New(Config(dial, nil), env, creds, opts...)
}

type restClient struct {
	adapter.Operations

	env   tbcontext.Environment
	creds tbcontext.Credentials
	dial  Dialer
	now   func() time.Time

	apiKey       string
	sharedSecret string
	appKey       string
	conn         connector.Connector
}

func newRESTClient(env tbcontext.Environment, creds tbcontext.Credentials, dial Dialer, now func() time.Time) restClient {
	if now == nil {
		now = time.Now
	}
	return restClient{Operations: adapter.Operations{}, env: env, creds: creds, dial: dial, now: now}
}

// Boot resolves the merchant keys and opens the connector.
func (c *restClient) Boot(context.Context) error {
	c.apiKey = c.creds.Get(CredentialAPIKey)
	c.sharedSecret = c.creds.Get(CredentialSharedSecret)
	c.appKey = c.creds.Get(CredentialAppKey)

	if c.apiKey == "" || c.sharedSecret == "" {
		if c.env.IsProduction() {
			return ErrMissingKeys
		}
		c.apiKey, c.sharedSecret = integrationAPIKey, integrationSharedSecret
	}
	if c.appKey == "" {
		c.appKey = integrationAppKey
	}
	if c.dial == nil {
		return errors.New("onepay: no connector")
	}
	c.conn = c.dial(connector.OnepayService.For(c.env))
	return nil
}

func (c *restClient) call(ctx context.Context, operation string, payload map[string]any) (result.Payload, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("onepay: %s called before boot", operation)
	}
	payload["apiKey"] = c.apiKey
	payload["appKey"] = c.appKey
	return c.conn.Call(ctx, operation, payload)
}

// sign computes the Onepay signature: each field is prefixed by its length,
// concatenated, HMAC-SHA256'd with the shared secret and base64 encoded.
func (c *restClient) sign(fields ...string) string {
	var data string
	for _, f := range fields {
		data += strconv.Itoa(len(f)) + f
	}
	mac := hmac.New(sha256.New, []byte(c.sharedSecret))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// CartClient sends shopping carts to Onepay and resolves their outcome.
type CartClient struct {
	restClient
}

// NewCartClient creates an unbooted cart client. A nil now uses time.Now.
func NewCartClient(env tbcontext.Environment, creds tbcontext.Credentials, dial Dialer, now func() time.Time) *CartClient {
	c := &CartClient{restClient: newRESTClient(env, creds, dial, now)}
	c.Operations[router.VerbCommit] = c.sendTransaction
	return c
}

func (c *CartClient) sendTransaction(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	issuedAt := strconv.FormatInt(c.now().Unix(), 10)
	items := make([]map[string]any, 0)
	quantity := int64(0)
	for _, item := range tx.Items() {
		items = append(items, map[string]any{
			"description":    item["description"],
			"quantity":       item["quantity"],
			"amount":         item["amount"],
			"additionalData": item["additionalData"],
			"expire":         item["expire"],
		})
		if q, ok := result.Payload(item).Int("quantity"); ok {
			quantity += q
		}
	}

	payload := map[string]any{
		"externalUniqueNumber": tx.Get("externalUniqueNumber"),
		"total":                tx.Get("total"),
		"itemsQuantity":        quantity,
		"issuedAt":             issuedAt,
		"items":                items,
		"callbackUrl":          tx.Get("callbackUrl"),
		"channel":              tx.Get("channel"),
		"generateOttQrCode":    true,
	}
	payload["signature"] = c.sign(
		str(payload["externalUniqueNumber"]),
		str(payload["total"]),
		strconv.FormatInt(quantity, 10),
		issuedAt,
		str(payload["callbackUrl"]),
	)
	return c.call(ctx, "sendtransaction", payload)
}

// Retrieve asks Onepay for the authorization of a cart, identified by the
// occ and externalUniqueNumber attributes.
func (c *CartClient) Retrieve(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	issuedAt := strconv.FormatInt(c.now().Unix(), 10)
	occ, eun := tx.GetString("occ"), str(tx.Get("externalUniqueNumber"))
	return c.call(ctx, "gettransactionnumber", map[string]any{
		"occ":                  occ,
		"externalUniqueNumber": eun,
		"issuedAt":             issuedAt,
		"signature":            c.sign(occ, eun, issuedAt),
	})
}

// RetrieveAndConfirm is Retrieve: Onepay commits the cart when it answers.
func (c *CartClient) RetrieveAndConfirm(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	return c.Retrieve(ctx, tx)
}

// NullifyClient reverts authorized Onepay carts.
type NullifyClient struct {
	restClient
}

// NewNullifyClient creates an unbooted nullify client. A nil now uses time.Now.
func NewNullifyClient(env tbcontext.Environment, creds tbcontext.Credentials, dial Dialer, now func() time.Time) *NullifyClient {
	c := &NullifyClient{restClient: newRESTClient(env, creds, dial, now)}
	c.Operations[router.VerbNullify] = c.nullifyTransaction
	return c
}

func (c *NullifyClient) nullifyTransaction(ctx context.Context, tx *transaction.Transaction) (result.Payload, error) {
	issuedAt := strconv.FormatInt(c.now().Unix(), 10)
	occ := tx.GetString("occ")
	eun := str(tx.Get("externalUniqueNumber"))
	code := str(tx.Get("authorizationCode"))
	amount := str(tx.Get("amount"))
	return c.call(ctx, "nullifytransaction", map[string]any{
		"occ":                  occ,
		"externalUniqueNumber": eun,
		"authorizationCode":    code,
		"issuedAt":             issuedAt,
		"nullifyAmount":        amount,
		"signature":            c.sign(occ, eun, code, issuedAt, amount),
	})
}
