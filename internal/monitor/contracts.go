package monitor

import (
	"fmt"
	"strings"
)

const (
	amount  = `{"type": "number", "minimum": 1}`
	orderID = `{"type": ["string", "integer"], "minLength": 1}`
	text    = `{"type": "string", "minLength": 1}`
)

func object(properties string, required ...string) string {
	req := "[]"
	if len(required) > 0 {
		req = `["` + strings.Join(required, `", "`) + `"]`
	}
	return fmt.Sprintf(`{"type": "object", "properties": {%s}, "required": %s}`, properties, req)
}

var (
	plusSchema = object(`"amount": `+amount+`, "buyOrder": `+orderID+`, "returnUrl": `+text+`, "finalUrl": `+text,
		"amount", "buyOrder", "returnUrl", "finalUrl")

	storeSchema = object(`"commerceCode": `+orderID+`, "buyOrder": `+orderID+`, "amount": `+amount,
		"commerceCode", "buyOrder", "amount")

	plusMallSchema = object(`"buyOrder": `+orderID+`, "returnUrl": `+text+`, "finalUrl": `+text+
		`, "items": {"type": "array", "minItems": 1, "items": `+storeSchema+`}`,
		"buyOrder", "returnUrl", "finalUrl", "items")

	captureSchema = object(`"buyOrder": `+orderID+`, "authorizationCode": `+text+`, "captureAmount": `+amount,
		"buyOrder", "authorizationCode", "captureAmount")

	nullifySchema = object(`"buyOrder": `+orderID+`, "authorizationCode": `+text+
		`, "authorizedAmount": `+amount+`, "nullifyAmount": `+amount,
		"buyOrder", "authorizationCode", "authorizedAmount", "nullifyAmount")

	registerSchema = object(`"username": `+text+`, "email": `+text+`, "responseUrl": `+text,
		"username", "email", "responseUrl")

	tokenSchema = object(`"token": `+text, "token")

	unregisterSchema = object(`"tbkUser": `+text+`, "username": `+text, "tbkUser", "username")

	chargeSchema = object(`"buyOrder": `+orderID+`, "tbkUser": `+text+`, "username": `+text+`, "amount": `+amount,
		"buyOrder", "tbkUser", "username", "amount")

	reverseSchema = object(`"buyOrder": `+orderID, "buyOrder")

	mallChargeSchema = object(`"buyOrder": `+orderID+`, "tbkUser": `+text+`, "username": `+text+
		`, "items": {"type": "array", "minItems": 1, "items": `+storeSchema+`}`,
		"buyOrder", "tbkUser", "username", "items")

	cartItemSchema = object(`"description": `+text+`, "quantity": {"type": "integer", "minimum": 1}, "amount": {"type": "number"}`,
		"description", "quantity", "amount")

	cartSchema = object(`"externalUniqueNumber": `+orderID+`, "total": `+amount+
		`, "items": {"type": "array", "minItems": 1, "items": `+cartItemSchema+`}`,
		"externalUniqueNumber", "items")

	onepayNullifySchema = object(`"occ": `+orderID+`, "externalUniqueNumber": `+orderID+
		`, "authorizationCode": `+text+`, "amount": `+amount,
		"occ", "externalUniqueNumber", "authorizationCode", "amount")
)

// Contracts maps each built-in schema to the transaction types it governs.
// Return-flow types carrying only a token are not listed.
var Contracts = map[string][]string{
	plusSchema:          {"plus.normal", "plus.defer"},
	plusMallSchema:      {"plus.mall.normal", "plus.mall.defer"},
	captureSchema:       {"plus.capture", "plus.mall.capture"},
	nullifySchema:       {"plus.nullify", "plus.mall.nullify", "oneclick.mall.nullify", "oneclick.mall.reverseNullify"},
	registerSchema:      {"oneclick.register"},
	tokenSchema:         {"oneclick.confirm"},
	unregisterSchema:    {"oneclick.unregister"},
	chargeSchema:        {"oneclick.charge"},
	reverseSchema:       {"oneclick.reverse", "oneclick.mall.reverse"},
	mallChargeSchema:    {"oneclick.mall.charge"},
	cartSchema:          {"onepay.cart"},
	onepayNullifySchema: {"onepay.nullify"},
}

// NewDefaultMonitor returns a monitor loaded with every built-in contract.
func NewDefaultMonitor() (*ContractMonitor, error) {
	cm := NewContractMonitor()
	for schema, types := range Contracts {
		if err := cm.Register(schema, types...); err != nil {
			return nil, err
		}
	}
	return cm, nil
}
