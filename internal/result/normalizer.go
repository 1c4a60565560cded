package result

import "strings"

const (
	keyToken             = "token"
	keyDetailOutput      = "detailOutput"
	keyResponseCode      = "responseCode"
	keyAuthorizationCode = "authorizationCode"
	keyResult            = "result"
	keyDescription       = "description"

	onepayOK = "OK"
)

// Normalize applies the Webpay Plus rule to raw. The checks form a priority
// chain: a non-empty token is definitive, otherwise the detail output's numeric
// response code must be 0, otherwise the result is a failure.
//
// When detailOutput arrives as a list, as in mall answers with several stores,
// only its first element is read: a mall result succeeds when the first store
// was authorized, whatever the others answered.
func Normalize(typ string, raw Payload) *Result {
	r := &Result{Type: typ, Raw: raw, Token: raw.String(keyToken)}

	switch {
	case r.Token != "":
		r.success = true
	case raw.Has(keyDetailOutput):
		detail, ok := raw.Object(keyDetailOutput)
		if !ok {
			break
		}
		r.AuthorizationCode = detail.String(keyAuthorizationCode)
		if code, ok := detail.Int(keyResponseCode); ok {
			r.ResponseCode = &code
			r.success = code == 0
		}
	}
	return r
}

// WebpayNormalizer is the Normalizer for Webpay Plus (normal, mall, capture, nullify).
var WebpayNormalizer Normalizer = NormalizerFunc(Normalize)

// OneclickNormalizer handles Webpay Oneclick answers. Inscription starts carry a
// token; finishing an inscription or authorizing a charge returns a top-level
// numeric responseCode; reversals and unregistrations answer with a boolean.
var OneclickNormalizer Normalizer = NormalizerFunc(func(typ string, raw Payload) *Result {
	r := Normalize(typ, raw)
	if r.success || r.ResponseCode != nil {
		return r
	}
	if code, ok := raw.Int(keyResponseCode); ok {
		r.ResponseCode = &code
		r.success = code == 0
		r.AuthorizationCode = raw.String("authCode")
		if r.AuthorizationCode == "" {
			r.AuthorizationCode = raw.String(keyAuthorizationCode)
		}
		return r
	}
	for _, key := range []string{"reversed", "nullified", keyResult} {
		if strings.EqualFold(raw.String(key), "true") {
			r.success = true
			break
		}
	}
	return r
})

// OnepayNormalizer handles the Onepay REST envelope, which reports "OK" in its
// responseCode on success and nests the business data under "result".
var OnepayNormalizer Normalizer = NormalizerFunc(func(typ string, raw Payload) *Result {
	r := &Result{Type: typ, Raw: raw, Description: raw.String(keyDescription)}
	if body, ok := raw.Object(keyResult); ok {
		r.Token = body.String("occ")
		r.AuthorizationCode = body.String(keyAuthorizationCode)
	}
	r.success = strings.EqualFold(raw.String(keyResponseCode), onepayOK)
	return r
})

// OneclickMallNormalizer handles Oneclick Mall answers. An authorization
// succeeds only when every store in storesOutput answers responseCode 0; the
// remaining operations follow OneclickNormalizer.
var OneclickMallNormalizer Normalizer = NormalizerFunc(func(typ string, raw Payload) *Result {
	stores, ok := raw["storesOutput"]
	if !ok {
		return OneclickNormalizer.Normalize(typ, raw)
	}

	r := &Result{Type: typ, Raw: raw}
	var list []any
	switch s := stores.(type) {
	case []any:
		list = s
	default:
		list = []any{s}
	}
	if len(list) == 0 {
		return r
	}

	r.success = true
	for i, item := range list {
		store, ok := asPayload(item)
		if !ok {
			r.success = false
			break
		}
		code, ok := store.Int(keyResponseCode)
		if i == 0 && ok {
			r.ResponseCode = &code
			r.AuthorizationCode = store.String(keyAuthorizationCode)
		}
		if !ok || code != 0 {
			r.success = false
		}
	}
	return r
})
