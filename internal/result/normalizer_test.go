package result

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_WebpayRule(t *testing.T) {
	t.Run("token wins regardless of response code", func(t *testing.T) {
		r := Normalize("plus.normal", Payload{
			"token":        "e9d555262db0f989e49d724b4db0b0af367cc415cde41f500a776550fc5fddd3",
			"detailOutput": map[string]any{"responseCode": -1},
		})
		assert.True(t, r.IsSuccess())
		assert.Equal(t, "e9d555262db0f989e49d724b4db0b0af367cc415cde41f500a776550fc5fddd3", r.Token)
		assert.Nil(t, r.ResponseCode, "detail output is not inspected once a token is present")
	})

	t.Run("empty token with response code 0", func(t *testing.T) {
		r := Normalize("plus.normal", Payload{
			"token":        "",
			"detailOutput": map[string]any{"responseCode": 0, "authorizationCode": "1213"},
		})
		assert.True(t, r.IsSuccess())
		require.NotNil(t, r.ResponseCode)
		assert.Equal(t, int64(0), *r.ResponseCode)
		assert.Equal(t, "1213", r.AuthorizationCode)
	})

	t.Run("non-zero response codes fail", func(t *testing.T) {
		for _, code := range []any{1, -1, -8, int64(2), float64(3), json.Number("4"), "-3"} {
			r := Normalize("plus.normal", Payload{"detailOutput": map[string]any{"responseCode": code}})
			assert.False(t, r.IsSuccess(), "code %v", code)
		}
	})

	t.Run("text response code from SOAP", func(t *testing.T) {
		r := Normalize("plus.mall.normal", Payload{"detailOutput": []any{
			map[string]any{"responseCode": "0"},
			map[string]any{"responseCode": "-1"},
		}})
		assert.True(t, r.IsSuccess(), "first detail of a mall answer decides")
	})

	t.Run("later details of a list are ignored", func(t *testing.T) {
		r := Normalize("plus.mall.normal", Payload{"detailOutput": []any{
			map[string]any{"responseCode": -1},
			map[string]any{"responseCode": 0},
		}})
		assert.False(t, r.IsSuccess())
		require.NotNil(t, r.ResponseCode)
		assert.Equal(t, int64(-1), *r.ResponseCode)
	})

	t.Run("missing response code fails", func(t *testing.T) {
		r := Normalize("plus.normal", Payload{"detailOutput": map[string]any{"authorizationCode": "1213"}})
		assert.False(t, r.IsSuccess())
		assert.Nil(t, r.ResponseCode)
	})

	t.Run("neither token nor detail output", func(t *testing.T) {
		assert.False(t, Normalize("plus.normal", Payload{}).IsSuccess())
		assert.False(t, Normalize("plus.normal", nil).IsSuccess())
		assert.False(t, Normalize("plus.normal", Payload{"detailOutput": nil}).IsSuccess())
		assert.False(t, Normalize("plus.normal", Payload{"responseCode": 0}).IsSuccess())
	})

	t.Run("result keeps raw payload and type", func(t *testing.T) {
		raw := Payload{"token": "abc", "url": "https://webpay3gint.transbank.cl/webpayserver/initTransaction"}
		r := WebpayNormalizer.Normalize("plus.defer", raw)
		assert.Equal(t, "plus.defer", r.Type)
		assert.Equal(t, raw, r.Raw)
		assert.Equal(t, "https://webpay3gint.transbank.cl/webpayserver/initTransaction", r.Get("url"))
	})
}

func TestOneclickNormalizer(t *testing.T) {
	assert.True(t, OneclickNormalizer.Normalize("oneclick.register", Payload{"token": "tk", "urlWebpay": "u"}).IsSuccess())

	finish := OneclickNormalizer.Normalize("oneclick.confirm", Payload{"responseCode": "0", "authCode": "1415", "tbkUser": "u-1"})
	assert.True(t, finish.IsSuccess())
	assert.Equal(t, "1415", finish.AuthorizationCode)

	rejected := OneclickNormalizer.Normalize("oneclick.charge", Payload{"responseCode": -98})
	assert.False(t, rejected.IsSuccess())

	assert.True(t, OneclickNormalizer.Normalize("oneclick.reverse", Payload{"reversed": "true", "reverseCode": "1"}).IsSuccess())
	assert.True(t, OneclickNormalizer.Normalize("oneclick.unregister", Payload{"result": true}).IsSuccess())
	assert.False(t, OneclickNormalizer.Normalize("oneclick.unregister", Payload{"result": false}).IsSuccess())
}

func TestOnepayNormalizer(t *testing.T) {
	ok := OnepayNormalizer.Normalize("onepay.cart", Payload{
		"responseCode": "OK",
		"description":  "OK",
		"result":       map[string]any{"occ": "1807983490979289", "ott": 64181789},
	})
	assert.True(t, ok.IsSuccess())
	assert.Equal(t, "1807983490979289", ok.Token)
	assert.Equal(t, "OK", ok.Description)

	failed := OnepayNormalizer.Normalize("onepay.nullify", Payload{"responseCode": "INVALID_PAYMENT", "description": "Invalid payment"})
	assert.False(t, failed.IsSuccess())
	assert.Empty(t, failed.Token)
}

func TestResult_NilSafe(t *testing.T) {
	var r *Result
	assert.False(t, r.IsSuccess())
	assert.Empty(t, r.Get("token"))
}

func TestOneclickMallNormalizer(t *testing.T) {
	t.Run("every store must approve", func(t *testing.T) {
		r := OneclickMallNormalizer.Normalize("oneclick.mall.charge", Payload{
			"buyOrder": "ord-1",
			"storesOutput": []any{
				map[string]any{"commerceId": "597044444402", "responseCode": "0", "authorizationCode": "1213"},
				map[string]any{"commerceId": "597044444403", "responseCode": "0"},
			},
		})
		assert.True(t, r.IsSuccess())
		assert.Equal(t, "1213", r.AuthorizationCode)
	})

	t.Run("one rejected store fails the charge", func(t *testing.T) {
		r := OneclickMallNormalizer.Normalize("oneclick.mall.charge", Payload{"storesOutput": []any{
			map[string]any{"responseCode": "0"},
			map[string]any{"responseCode": "-1"},
		}})
		assert.False(t, r.IsSuccess())
	})

	t.Run("single store decodes as an object", func(t *testing.T) {
		r := OneclickMallNormalizer.Normalize("oneclick.mall.charge", Payload{"storesOutput": map[string]any{"responseCode": "0"}})
		assert.True(t, r.IsSuccess())
	})

	t.Run("empty stores fail", func(t *testing.T) {
		assert.False(t, OneclickMallNormalizer.Normalize("oneclick.mall.charge", Payload{"storesOutput": []any{}}).IsSuccess())
	})

	t.Run("other operations fall back to oneclick rules", func(t *testing.T) {
		assert.True(t, OneclickMallNormalizer.Normalize("oneclick.mall.reverse", Payload{"reversed": "true"}).IsSuccess())
		assert.True(t, OneclickMallNormalizer.Normalize("oneclick.mall.nullify", Payload{"token": "tk"}).IsSuccess())
	})
}
