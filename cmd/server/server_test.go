package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transbank "github.com/yourorg/transbank-api"
	"github.com/yourorg/transbank-api/internal/adapter"
	"github.com/yourorg/transbank-api/internal/config"
	"github.com/yourorg/transbank-api/internal/connector"
	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/result"
)

const plusToken = "e9d555262db0f989e49d724b4db0b0af367cc415cde41f500a776550fc5fddd3"

type connectorFunc func(ctx context.Context, operation string, payload map[string]any) (result.Payload, error)

func (f connectorFunc) Call(ctx context.Context, operation string, payload map[string]any) (result.Payload, error) {
	return f(ctx, operation, payload)
}

// upstream plays Webpay and Onepay.
type upstream struct {
	mu         sync.Mutex
	answers    map[string]result.Payload
	operations []string
}

func newUpstream() *upstream {
	return &upstream{answers: map[string]result.Payload{
		"initTransaction":        {"token": plusToken, "url": "https://webpay3gint.transbank.cl/webpayserver/initTransaction"},
		"getTransactionResult":   {"buyOrder": "order-1", "detailOutput": map[string]any{"responseCode": "0", "authorizationCode": "1213"}},
		"acknowledgeTransaction": {},
		"sendtransaction":        {"responseCode": "OK", "description": "OK", "result": map[string]any{"occ": "1807983490979289", "ott": 64181789, "qrCodeAsBase64": "iVBOR"}},
		"gettransactionnumber":   {"responseCode": "OK", "description": "OK", "result": map[string]any{"occ": "1807983490979289", "authorizationCode": "623245"}},
		"nullifytransaction":     {"responseCode": "OK", "description": "OK", "result": map[string]any{"occ": "1807983490979289"}},
	}}
}

func (u *upstream) connector(string) connector.Connector {
	return connectorFunc(func(_ context.Context, operation string, _ map[string]any) (result.Payload, error) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.operations = append(u.operations, operation)
		return u.answers[operation], nil
	})
}

func (u *upstream) called() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.operations...)
}

func setupTestRouter(t *testing.T) (*gin.Engine, *upstream) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	up := newUpstream()
	cfg := &config.Config{
		Environment: tbcontext.Integration,
		Credentials: map[string]tbcontext.Credentials{},
		Defaults:    map[string]map[string]any{},
		Server:      config.Server{BaseURL: "http://shop.test", TokenTTL: time.Hour},
	}
	s, err := newServer(context.Background(), cfg, zerolog.Nop(),
		transbank.WithWebpayDialer(func(url, _ string) connector.Connector { return up.connector(url) }),
		transbank.WithOnepayDialer(up.connector),
	)
	require.NoError(t, err)
	return setupRouter(s), up
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	jsonValue, err := json.Marshal(body)
	require.NoError(t, err, "Failed to marshal payload")
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(jsonValue))
	require.NoError(t, err, "Failed to create request")
	req.Header.Set("Content-Type", "application/json")
	return serve(t, router, req)
}

func postForm(t *testing.T, router *gin.Engine, path string, form url.Values) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	require.NoError(t, err, "Failed to create request")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(t, router, req)
}

func serve(t *testing.T, router *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "Failed to unmarshal response body")
	}
	return w, body
}

func TestWebpayPlus_ReturnFlow(t *testing.T) {
	router, up := setupTestRouter(t)

	w, body := postJSON(t, router, "/webpay/plus", map[string]any{"amount": 9990})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, plusToken, body["token"])
	assert.Len(t, body["buyOrder"], 26)

	w, body = postForm(t, router, "/webpay/return", url.Values{"token_ws": {plusToken}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "plus.normal", body["type"])
	assert.Equal(t, "1213", body["authorizationCode"])
	assert.Equal(t, float64(0), body["responseCode"])
	assert.Equal(t, []string{"initTransaction", "getTransactionResult", "acknowledgeTransaction"}, up.called())

	w, _ = postForm(t, router, "/webpay/return", url.Values{"token_ws": {plusToken}})
	assert.Equal(t, http.StatusNotFound, w.Code, "a token is resolved only once")
}

func TestWebpayReturn_BadRequests(t *testing.T) {
	router, _ := setupTestRouter(t)

	w, _ := postForm(t, router, "/webpay/return", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = postForm(t, router, "/webpay/return", url.Values{"token_ws": {"unknown"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	req, err := http.NewRequest(http.MethodPost, "/webpay/plus", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w, body := serve(t, router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "Invalid request format")
}

func TestWebpayPlus_ContractViolation(t *testing.T) {
	router, up := setupTestRouter(t)

	w, body := postJSON(t, router, "/webpay/plus", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, body["error"], "contract")
	assert.Empty(t, up.called())
}

func TestWebpayFinal(t *testing.T) {
	router, _ := setupTestRouter(t)

	_, body := postForm(t, router, "/webpay/final", url.Values{"token_ws": {plusToken}})
	assert.Equal(t, "finished", body["status"])

	_, body = postForm(t, router, "/webpay/final", url.Values{"TBK_TOKEN": {plusToken}, "TBK_ORDEN_COMPRA": {"order-1"}})
	assert.Equal(t, "aborted", body["status"])
	assert.Equal(t, "order-1", body["buyOrder"])
}

func TestOnepayCart_ReturnFlow(t *testing.T) {
	router, up := setupTestRouter(t)

	w, body := postJSON(t, router, "/onepay/cart", map[string]any{
		"items": []map[string]any{
			{"description": "Zapatos", "quantity": 1, "amount": 4990},
			{"description": "Pantalon", "quantity": 2, "amount": 2500},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "1807983490979289", body["occ"])
	assert.Equal(t, float64(9990), body["total"])
	assert.Equal(t, "iVBOR", body["qrCodeAsBase64"])
	assert.NotEmpty(t, body["externalUniqueNumber"])

	req, err := http.NewRequest(http.MethodGet, "/onepay/return?occ=1807983490979289&status=PRE_AUTHORIZED", nil)
	require.NoError(t, err)
	w, ret := serve(t, router, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, ret["success"])
	assert.Equal(t, "623245", ret["authorizationCode"])
	assert.Equal(t, body["externalUniqueNumber"], ret["externalUniqueNumber"], "the stored external unique number is used")
	assert.Equal(t, []string{"sendtransaction", "gettransactionnumber"}, up.called())
}

func TestOnepayReturn_Rejected(t *testing.T) {
	router, up := setupTestRouter(t)

	w, _ := postJSON(t, router, "/onepay/cart", map[string]any{
		"items": []map[string]any{{"description": "Zapatos", "quantity": 1, "amount": 4990}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := postForm(t, router, "/onepay/return", url.Values{"occ": {"1807983490979289"}, "status": {"REJECTED"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "REJECTED", body["status"])
	assert.Equal(t, []string{"sendtransaction"}, up.called())

	w, _ = postForm(t, router, "/onepay/return", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOnepayCart_NegativeAmount(t *testing.T) {
	router, up := setupTestRouter(t)

	w, body := postJSON(t, router, "/onepay/cart", map[string]any{
		"items": []map[string]any{{"description": "Descuento", "quantity": 1, "amount": -100}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, body["error"], "zero total amount or below")
	assert.Empty(t, up.called())
}

func TestOnepayNullify(t *testing.T) {
	router, up := setupTestRouter(t)

	w, body := postJSON(t, router, "/onepay/nullify", map[string]any{
		"occ": "1807983490979289", "externalUniqueNumber": "eun-1", "authorizationCode": "623245", "amount": 9990,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []string{"nullifytransaction"}, up.called())
}

func TestMetricsAndHealth(t *testing.T) {
	router, _ := setupTestRouter(t)
	postJSON(t, router, "/webpay/plus", map[string]any{"amount": 9990})

	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "transbank_dispatch_total")
	assert.Contains(t, w.Body.String(), "transbank_client_binds_total")

	req, err = http.NewRequest(http.MethodGet, "/healthz", nil)
	require.NoError(t, err)
	w, body := serve(t, router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(transbank.ErrServiceUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(&adapter.InvalidTransactionError{Cause: &connector.CircuitOpenError{}}))
	assert.Equal(t, http.StatusBadGateway, statusFor(transbank.ErrInvalidTransaction))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(transbank.ErrCartNegativeAmount))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.Canceled))
}
