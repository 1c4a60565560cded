package transbank

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/transbank-api/internal/adapter"
	"github.com/yourorg/transbank-api/internal/config"
	"github.com/yourorg/transbank-api/internal/connector"
	"github.com/yourorg/transbank-api/internal/result"
)

type connectorFunc func(ctx context.Context, operation string, payload map[string]any) (result.Payload, error)

func (f connectorFunc) Call(ctx context.Context, operation string, payload map[string]any) (result.Payload, error) {
	return f(ctx, operation, payload)
}

type upstreamCall struct {
	url       string
	operation string
	payload   map[string]any
}

// fakeUpstream answers every operation from a fixed table and records the calls.
type fakeUpstream struct {
	mu      sync.Mutex
	answers map[string]result.Payload
	calls   []upstreamCall
}

func (f *fakeUpstream) connector(url string) connector.Connector {
	return connectorFunc(func(_ context.Context, operation string, payload map[string]any) (result.Payload, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, upstreamCall{url: url, operation: operation, payload: payload})
		return f.answers[operation], nil
	})
}

func (f *fakeUpstream) options() []Option {
	return []Option{
		WithWebpayDialer(func(url, _ string) connector.Connector { return f.connector(url) }),
		WithOnepayDialer(f.connector),
		WithMetrics(adapter.NewMetrics(prometheus.NewRegistry())),
		WithClock(func() time.Time { return time.Unix(1534216134, 0) }),
	}
}

func (f *fakeUpstream) last() upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func TestNew_Environment(t *testing.T) {
	tests := []struct {
		env        string
		production bool
	}{
		{"production", true},
		{"integration", false},
		{"", false},
		{"PRODUCTION", false},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			tb, err := New(tt.env, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.production, tb.IsProduction())
			assert.Equal(t, !tt.production, tb.IsIntegration())
		})
	}

	tb, err := New("production", nil)
	require.NoError(t, err)
	assert.Equal(t, Production, tb.Environment())
}

func TestNew_Credentials(t *testing.T) {
	tb, err := New("integration", map[string]map[string]any{
		"webpay": {"commerceCode": "597020000540"},
	})
	require.NoError(t, err)
	assert.Equal(t, Credentials{"commerceCode": "597020000540"}, tb.Credentials("webpay"))
	assert.Nil(t, tb.Credentials("onepay"))

	_, err = New("integration", map[string]map[string]any{"webpay": {"commerceCode": 597020000540}})
	assert.ErrorIs(t, err, ErrCredentialInvalid)

	_, err = New("integration", map[string]map[string]any{"paypal": {}})
	assert.ErrorIs(t, err, ErrInvalidService)
}

func TestTransbank_Defaults(t *testing.T) {
	tb, err := New("integration", nil)
	require.NoError(t, err)

	require.NoError(t, tb.SetDefault("webpay", "returnUrl", "https://shop/return"))
	assert.Equal(t, "https://shop/return", tb.Default("webpay", "returnUrl", nil))
	assert.Equal(t, "fallback", tb.Default("webpay", "finalUrl", "fallback"))
	assert.Nil(t, tb.Defaults("onepay"))

	assert.Equal(t, map[string]any{"returnUrl": "https://shop/return"}, tb.Webpay().Defaults(),
		"defaults set before creation reach the service")

	require.NoError(t, tb.SetDefault("webpay", "finalUrl", "https://shop/final"))
	assert.Equal(t, "https://shop/final", tb.Webpay().Default("finalUrl"), "defaults set later reach the service too")

	require.NoError(t, tb.SetDefaults("webpay", map[string]any{"finalUrl": "x"}))
	assert.Equal(t, map[string]any{"finalUrl": "x"}, tb.Defaults("webpay"))
	assert.Equal(t, map[string]any{"finalUrl": "x"}, tb.Webpay().Defaults())

	assert.ErrorIs(t, tb.SetDefault("paypal", "a", 1), ErrInvalidService)
	assert.ErrorIs(t, tb.SetDefaults("paypal", nil), ErrInvalidService)
}

func TestTransbank_ServicesAreLazySingletons(t *testing.T) {
	tb, err := New("integration", nil)
	require.NoError(t, err)

	assert.Same(t, tb.Webpay(), tb.Webpay())
	assert.Same(t, tb.Onepay(), tb.Onepay())
	assert.Equal(t, ServiceWebpay, tb.Webpay().Name())
	assert.Equal(t, ServiceOnepay, tb.Onepay().Name())
	assert.Equal(t, Integration, tb.Webpay().Environment())
}

func TestTransbank_WebpayPlusFlow(t *testing.T) {
	up := &fakeUpstream{answers: map[string]result.Payload{
		"initTransaction":        {"token": "e9d555262db0f989e49d724b4db0b0af367cc415cde41f500a776550fc5fddd3", "url": "https://webpay3gint.transbank.cl/webpayserver/initTransaction"},
		"getTransactionResult":   {"buyOrder": "order-1", "detailOutput": map[string]any{"responseCode": "0", "authorizationCode": "1213"}},
		"acknowledgeTransaction": {},
	}}
	tb, err := New("integration", nil, up.options()...)
	require.NoError(t, err)
	require.NoError(t, tb.SetDefaults("webpay", map[string]any{"returnUrl": "https://shop/return", "finalUrl": "https://shop/final"}))

	res, err := tb.Webpay().CreateNormal(context.Background(), Attributes{"amount": 9990, "buyOrder": "order-1"})
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, "https://webpay3gint.transbank.cl/webpayserver/initTransaction", res.Get("url"))

	call := up.last()
	assert.Equal(t, connector.WebpayService.Integration, call.url)
	input := call.payload["wsInitTransactionInput"].(map[string]any)
	assert.Equal(t, "https://shop/return", input["returnURL"])
	assert.Equal(t, "order-1", input["buyOrder"])

	res, err = tb.Webpay().GetNormal(context.Background(), res.Token)
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, "1213", res.AuthorizationCode)
	assert.Equal(t, "acknowledgeTransaction", up.last().operation)
}

func TestTransbank_OnepayCartFlow(t *testing.T) {
	up := &fakeUpstream{answers: map[string]result.Payload{
		"sendtransaction": {"responseCode": "OK", "description": "OK", "result": map[string]any{"occ": "1807983490979289", "ott": 64181789}},
	}}
	tb, err := New("integration", nil, up.options()...)
	require.NoError(t, err)
	require.NoError(t, tb.SetDefault("onepay", "callbackUrl", "https://shop/onepay/return"))

	res, err := tb.Onepay().CreateCart(context.Background(), Attributes{
		"externalUniqueNumber": "eun-1",
		"items": []any{
			map[string]any{"description": "Zapatos", "quantity": 1, "amount": 4990},
			map[string]any{"description": "Pantalon", "quantity": 2, "amount": 2500},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, "1807983490979289", res.Token)

	call := up.last()
	assert.Equal(t, connector.OnepayService.Integration, call.url)
	assert.Equal(t, int64(9990), call.payload["total"])
	assert.Equal(t, "https://shop/onepay/return", call.payload["callbackUrl"])
	assert.Equal(t, "1534216134", call.payload["issuedAt"])
	assert.NotEmpty(t, call.payload["signature"])

	_, err = tb.Onepay().CreateCart(context.Background(), Attributes{})
	assert.ErrorIs(t, err, ErrCartNegativeAmount)
}

func TestTransbank_SetCredentialsRebinds(t *testing.T) {
	up := &fakeUpstream{answers: map[string]result.Payload{"initTransaction": {"token": "tok"}}}
	tb, err := New("integration", nil, up.options()...)
	require.NoError(t, err)

	_, err = tb.Webpay().CreateNormal(context.Background(), Attributes{"amount": 1000})
	require.NoError(t, err)
	details := up.last().payload["wsInitTransactionInput"].(map[string]any)["transactionDetails"].(map[string]any)
	assert.Equal(t, "597020000540", details["commerceCode"], "integration commerce code without credentials")

	require.NoError(t, tb.SetCredentials("webpay", map[string]any{"commerceCode": "597000000001"}))
	_, err = tb.Webpay().CreateNormal(context.Background(), Attributes{"amount": 1000})
	require.NoError(t, err)
	details = up.last().payload["wsInitTransactionInput"].(map[string]any)["transactionDetails"].(map[string]any)
	assert.Equal(t, "597000000001", details["commerceCode"])
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Environment: Production,
		Credentials: map[string]Credentials{"onepay": {"apiKey": "api", "sharedSecret": "secret"}},
		Defaults:    map[string]map[string]any{"onepay": {"callbackUrl": "https://shop/onepay/return"}},
	}
	tb, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.True(t, tb.IsProduction())
	assert.Equal(t, Credentials{"apiKey": "api", "sharedSecret": "secret"}, tb.Credentials("onepay"))
	assert.Equal(t, "https://shop/onepay/return", tb.Onepay().Default("callbackUrl"))

	cfg.Credentials["paypal"] = Credentials{}
	_, err = FromConfig(cfg)
	assert.ErrorIs(t, err, ErrInvalidService)
}

func TestTransbank_CircuitBreaker(t *testing.T) {
	calls := 0
	down := connectorFunc(func(context.Context, string, map[string]any) (result.Payload, error) {
		calls++
		return nil, &connector.UpstreamError{Operation: "initTransaction", StatusCode: 503}
	})
	tb, err := New("integration", nil,
		WithWebpayDialer(func(string, string) connector.Connector { return down }),
		WithMetrics(adapter.NewMetrics(prometheus.NewRegistry())),
		WithCircuitBreaker(connector.NewBreaker(connector.BreakerConfig{FailureThreshold: 1})),
	)
	require.NoError(t, err)

	_, err = tb.Webpay().CreateNormal(context.Background(), Attributes{"amount": 1000})
	assert.ErrorIs(t, err, ErrInvalidTransaction)
	assert.ErrorIs(t, err, connector.ErrUpstream)

	_, err = tb.Webpay().CreateNormal(context.Background(), Attributes{"amount": 1000})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, calls)
}
