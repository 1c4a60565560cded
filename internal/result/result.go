// Package result turns heterogeneous Transbank responses into one Result shape.
//
// Webpay (SOAP) answers either with a token (initialisation calls) or with a
// detailOutput block carrying a numeric responseCode. Onepay (REST) wraps every
// answer in an envelope whose responseCode is the string "OK" on success.
// A Normalizer encodes one of those rules; the success flag of a Result is
// decided once, when the Result is built, and never changes afterwards.
package result

// Result holds the normalized outcome of one upstream call.
type Result struct {
	Type              string  // Transaction type token that produced this result
	Raw               Payload // Original decoded upstream payload
	Token             string  // Transaction token, if upstream issued one
	AuthorizationCode string  // Authorization code from the detail output, if any
	ResponseCode      *int64  // Numeric response code from the detail output, if any
	Description       string  // Upstream description or message, if any

	success bool
}

// IsSuccess reports the success determination made at construction.
func (r *Result) IsSuccess() bool {
	if r == nil {
		return false
	}
	return r.success
}

// Get returns a top-level raw field rendered as a string.
func (r *Result) Get(key string) string {
	if r == nil {
		return ""
	}
	return r.Raw.String(key)
}

// Normalizer builds a Result from a raw upstream payload.
type Normalizer interface {
	Normalize(typ string, raw Payload) *Result
}

// NormalizerFunc adapts a function to the Normalizer interface.
type NormalizerFunc func(typ string, raw Payload) *Result

// Normalize implements Normalizer.
func (f NormalizerFunc) Normalize(typ string, raw Payload) *Result {
	return f(typ, raw)
}
