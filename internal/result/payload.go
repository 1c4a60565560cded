package result

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Payload is a decoded upstream response body. SOAP responses are decoded into
// nested maps keyed by element local name, REST responses keep their JSON shape.
// Payload is opaque to the dispatcher; only normalizers and callers look inside.
type Payload map[string]any

// String returns the value under key rendered as a string, or "" when absent.
func (p Payload) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

// Object returns the sub-object stored under key. A list of objects yields its
// first element, which is how single-item SOAP sequences arrive.
func (p Payload) Object(key string) (Payload, bool) {
	return asPayload(p[key])
}

// Int returns the numeric value under key. Integer-valued text is accepted
// because the SOAP decoder keeps leaf values as strings.
func (p Payload) Int(key string) (int64, bool) {
	return asInt(p[key])
}

// Has reports whether key is present, even with a nil value.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func asPayload(v any) (Payload, bool) {
	switch o := v.(type) {
	case Payload:
		return o, o != nil
	case map[string]any:
		return Payload(o), o != nil
	case []any:
		if len(o) == 0 {
			return nil, false
		}
		return asPayload(o[0])
	case []Payload:
		if len(o) == 0 {
			return nil, false
		}
		return o[0], o[0] != nil
	}
	return nil, false
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}
