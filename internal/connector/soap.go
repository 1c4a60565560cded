package connector

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourorg/transbank-api/internal/result"
)

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

	// WebpayNamespace is the target namespace of the Webpay Plus services.
	WebpayNamespace = "http://service.wswebpay.webpay.transbank.com/"
	// OneclickNamespace is the target namespace of the Oneclick services.
	OneclickNamespace = "http://webservices.webpayserver.transbank.com/"
)

// SOAP calls a Webpay SOAP service. Each operation becomes a document-literal
// request whose children are the payload keys in sorted order; the answer's
// return element is decoded generically.
type SOAP struct {
	Endpoint   string
	Namespace  string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// NewSOAP creates a SOAP connector. A nil client gets a default with a timeout.
func NewSOAP(endpoint, namespace string, client *http.Client, logger zerolog.Logger) *SOAP {
	return &SOAP{
		Endpoint:   endpoint,
		Namespace:  namespace,
		HTTPClient: defaultHTTPClient(client),
		Logger:     logger,
	}
}

// Call implements Connector.
func (s *SOAP) Call(ctx context.Context, operation string, payload map[string]any) (result.Payload, error) {
	body, err := s.envelope(operation, payload)
	if err != nil {
		return nil, fmt.Errorf("soap: encoding %s: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("soap: creating %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `""`)

	start := time.Now()
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("soap: %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("soap: reading %s response: %w", operation, err)
	}
	s.Logger.Debug().
		Str("operation", operation).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("soap call")

	root, err := parseXML(raw)
	if err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &UpstreamError{Operation: operation, StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return nil, fmt.Errorf("soap: decoding %s response: %w", operation, err)
	}

	answer := root.child("Body").firstChild()
	if answer == nil {
		return nil, &UpstreamError{Operation: operation, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if answer.name == "Fault" {
		return nil, &UpstreamError{Operation: operation, StatusCode: resp.StatusCode, Body: answer.child("faultstring").content()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Operation: operation, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if ret := answer.child("return"); ret != nil {
		if v, ok := ret.value().(map[string]any); ok {
			return result.Payload(v), nil
		}
		return result.Payload{"return": ret.value()}, nil
	}
	if v, ok := answer.value().(map[string]any); ok {
		return result.Payload(v), nil
	}
	return result.Payload{}, nil
}

func (s *SOAP) envelope(operation string, payload map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	fmt.Fprintf(&buf, `<soapenv:Envelope xmlns:soapenv="%s" xmlns:tns="%s"><soapenv:Body><tns:%s>`, soapEnvelopeNS, s.Namespace, operation)
	if err := writeValue(&buf, "", reflect.ValueOf(map[string]any(payload))); err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, `</tns:%s></soapenv:Body></soapenv:Envelope>`, operation)
	return buf.Bytes(), nil
}

// writeValue renders v under element name. Maps become nested elements with
// sorted keys and slices repeat the element; name "" writes children only.
func writeValue(buf *bytes.Buffer, name string, v reflect.Value) error {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("element %q: map keys must be strings", name)
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		open(buf, name)
		for _, k := range keys {
			if err := writeValue(buf, k, v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key()))); err != nil {
				return err
			}
		}
		closeTag(buf, name)
	case reflect.Slice, reflect.Array:
		if name == "" {
			return fmt.Errorf("top-level payload cannot be a list")
		}
		for i := 0; i < v.Len(); i++ {
			if err := writeValue(buf, name, v.Index(i)); err != nil {
				return err
			}
		}
	default:
		open(buf, name)
		if err := xml.EscapeText(buf, []byte(fmt.Sprint(v.Interface()))); err != nil {
			return err
		}
		closeTag(buf, name)
	}
	return nil
}

func open(buf *bytes.Buffer, name string) {
	if name != "" {
		buf.WriteString("<" + name + ">")
	}
}

func closeTag(buf *bytes.Buffer, name string) {
	if name != "" {
		buf.WriteString("</" + name + ">")
	}
}

type xmlNode struct {
	name     string
	children []*xmlNode
	text     strings.Builder
}

func parseXML(data []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &xmlNode{}
	stack := []*xmlNode{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local}
			top.children = append(top.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 1 {
				return nil, fmt.Errorf("unexpected closing element %q", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			top.text.Write(t)
		}
	}
	if len(stack) != 1 {
		return nil, io.ErrUnexpectedEOF
	}
	return root.firstChild(), nil
}

func (n *xmlNode) child(name string) *xmlNode {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *xmlNode) firstChild() *xmlNode {
	if n == nil || len(n.children) == 0 {
		return nil
	}
	return n.children[0]
}

func (n *xmlNode) content() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.text.String())
}

// value converts n to a string for leaves, or to a map for elements with
// children. Repeated child names collect into a []any.
func (n *xmlNode) value() any {
	if len(n.children) == 0 {
		return n.content()
	}
	out := make(map[string]any, len(n.children))
	for _, c := range n.children {
		v := c.value()
		switch existing := out[c.name].(type) {
		case nil:
			out[c.name] = v
		case []any:
			out[c.name] = append(existing, v)
		default:
			out[c.name] = []any{existing, v}
		}
	}
	return out
}
