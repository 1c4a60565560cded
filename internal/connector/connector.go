// Package connector moves payloads between upstream clients and Transbank
// over HTTP. Webpay speaks SOAP, Onepay speaks JSON; both decode answers into
// a result.Payload so clients never handle wire formats.
package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tbcontext "github.com/yourorg/transbank-api/internal/context"
	"github.com/yourorg/transbank-api/internal/result"
)

const defaultTimeout = 30 * time.Second

// Connector performs one named upstream operation.
type Connector interface {
	Call(ctx context.Context, operation string, payload map[string]any) (result.Payload, error)
}

// ErrUpstream is matched by every UpstreamError.
var ErrUpstream = errors.New("transbank upstream error")

// UpstreamError is a non-2xx HTTP answer or a SOAP fault.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s answered HTTP %d: %s", ErrUpstream, e.Operation, e.StatusCode, e.Body)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Endpoint holds the integration and production URLs of one upstream service.
type Endpoint struct {
	Integration string
	Production  string
}

// For returns the URL matching env.
func (e Endpoint) For(env tbcontext.Environment) string {
	if env.IsProduction() {
		return e.Production
	}
	return e.Integration
}

// Webpay SOAP services.
var (
	WebpayService = Endpoint{
		Integration: "https://webpay3gint.transbank.cl/WSWebpayTransaction/cxf/WSWebpayService",
		Production:  "https://webpay3g.transbank.cl/WSWebpayTransaction/cxf/WSWebpayService",
	}
	WebpayCommerceService = Endpoint{
		Integration: "https://webpay3gint.transbank.cl/WSWebpayTransaction/cxf/WSCommerceIntegrationService",
		Production:  "https://webpay3g.transbank.cl/WSWebpayTransaction/cxf/WSCommerceIntegrationService",
	}
	OneclickService = Endpoint{
		Integration: "https://webpay3gint.transbank.cl/webpayserver/wswebpay/OneClickPaymentService",
		Production:  "https://webpay3g.transbank.cl/webpayserver/wswebpay/OneClickPaymentService",
	}
	OneclickMallService = Endpoint{
		Integration: "https://webpay3gint.transbank.cl/WSWebpayTransaction/cxf/WSOneClickMulticodeService",
		Production:  "https://webpay3g.transbank.cl/WSWebpayTransaction/cxf/WSOneClickMulticodeService",
	}
)

// OnepayService is the Onepay REST transaction service.
var OnepayService = Endpoint{
	Integration: "https://onepay.ionix.cl/ewallet-plugin-api-services/services/transactionservice",
	Production:  "https://www.onepay.cl/ewallet-plugin-api-services/services/transactionservice",
}

func defaultHTTPClient(c *http.Client) *http.Client {
	if c == nil {
		return &http.Client{Timeout: defaultTimeout}
	}
	return c
}
