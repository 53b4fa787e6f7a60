package request

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrorKind classifies why a fetch produced no payload.
type ErrorKind int

const (
	ErrSuppressed ErrorKind = iota + 1 // breaker open, no network attempt made
	ErrTransport                       // dns/connect/timeout failure
	ErrAuthFailed                      // 401
	ErrServerError                     // 5xx
	ErrClientError                     // other 4xx
	ErrDecode                          // malformed payload
	ErrNotFound                        // no record behind a successful call
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSuppressed:
		return "suppressed"
	case ErrTransport:
		return "transport"
	case ErrAuthFailed:
		return "auth failed"
	case ErrServerError:
		return "server error"
	case ErrClientError:
		return "client error"
	case ErrDecode:
		return "decode error"
	case ErrNotFound:
		return "not found"
	}
	return "unknown"
}

// FetchError is the typed failure a fetch returns instead of a payload.
type FetchError struct {
	Kind   ErrorKind
	Status int
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (http %d)", e.URL, e.Kind, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClientConfig describes one upstream.
type ClientConfig struct {
	// Name identifies the upstream in the shared breaker and in logs.
	Name string
	// BaseURL is the API root, without a trailing slash.
	BaseURL string
	// KeyParam is the credential query fragment ("api_key=..."), appended
	// first. Empty for upstreams authenticated via headers.
	KeyParam string
	// Headers are sent with every request.
	Headers http.Header
	// Timeout bounds each request. Defaults to 10 seconds.
	Timeout time.Duration
	// RatePerSecond throttles outgoing calls when > 0.
	RatePerSecond float64
	// Transport overrides the default transport, for tests.
	Transport http.RoundTripper
}

// Client issues requests to a single upstream, applying the timeout, the
// shared breaker and status classification.
type Client struct {
	name     string
	baseURL  string
	keyParam string
	headers  http.Header
	httpc    *http.Client
	breaker  *Breaker
	limiter  *rate.Limiter
}

// NewClient builds a client for one upstream sharing the given breaker.
func NewClient(cfg ClientConfig, breaker *Breaker) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpc := &http.Client{Timeout: timeout}
	if cfg.Transport != nil {
		httpc.Transport = cfg.Transport
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Client{
		name:     cfg.Name,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		keyParam: cfg.KeyParam,
		headers:  cfg.Headers,
		httpc:    httpc,
		breaker:  breaker,
		limiter:  limiter,
	}
}

// Name returns the upstream name used in the shared breaker.
func (c *Client) Name() string { return c.name }

// BuildURL composes the request URL: path args joined with "/", the
// credential first in the query, then the remaining parameters. Empty args
// and empty parameter values are skipped. Parameters are appended in sorted
// key order so the same request always produces the same URL (and the same
// cache key).
func (c *Client) BuildURL(args []string, params url.Values) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, arg := range args {
		if arg == "" {
			continue
		}
		b.WriteString("/")
		b.WriteString(url.PathEscape(arg))
	}
	hasQuery := strings.Contains(b.String(), "?")
	if c.keyParam != "" {
		if hasQuery {
			b.WriteString("&")
		} else {
			b.WriteString("?")
			hasQuery = true
		}
		b.WriteString(c.keyParam)
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := params.Get(k)
		if v == "" {
			continue
		}
		if hasQuery {
			b.WriteString("&")
		} else {
			b.WriteString("?")
			hasQuery = true
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteString("=")
		b.WriteString(url.QueryEscape(v))
	}
	return b.String()
}

// Fetch issues one request and decodes the response into v (a pointer).
// XML bodies are translated to nested maps first so callers see one document
// shape regardless of the upstream's wire format. The returned *FetchError is
// nil on success.
func (c *Client) Fetch(ctx context.Context, method, rawURL string, postdata []byte, headers http.Header, v any) *FetchError {
	if c.breaker.Suppressed(c.name) {
		return &FetchError{Kind: ErrSuppressed, URL: rawURL}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &FetchError{Kind: ErrTransport, URL: rawURL, Err: err}
		}
	}

	var body io.Reader
	if postdata != nil {
		body = bytes.NewReader(postdata)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return &FetchError{Kind: ErrTransport, URL: rawURL, Err: err}
	}
	for k, vs := range c.headers {
		for _, hv := range vs {
			req.Header.Add(k, hv)
		}
	}
	for k, vs := range headers {
		req.Header.Del(k)
		for _, hv := range vs {
			req.Header.Add(k, hv)
		}
	}
	if postdata != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.breaker.RecordFailure(c.name)
		log.Printf("[request] %s connection error: %v — suppressing retries for 1 minute", c.name, err)
		return &FetchError{Kind: ErrTransport, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// A rejected key is not transient, so the breaker stays closed.
		log.Printf("[request] %s http %d for %s (check the configured key)", c.name, resp.StatusCode, rawURL)
		return &FetchError{Kind: ErrAuthFailed, Status: resp.StatusCode, URL: rawURL}
	case resp.StatusCode >= 500:
		c.breaker.RecordFailure(c.name)
		log.Printf("[request] %s http %d for %s — suppressing retries for 1 minute", c.name, resp.StatusCode, rawURL)
		return &FetchError{Kind: ErrServerError, Status: resp.StatusCode, URL: rawURL}
	case resp.StatusCode >= 400:
		// Only codes strictly above 400 are logged; probe lookups hit bare
		// 400s constantly and would flood the log.
		if resp.StatusCode > 400 {
			log.Printf("[request] %s http %d for %s", c.name, resp.StatusCode, rawURL)
		}
		kind := ErrClientError
		if resp.StatusCode == http.StatusNotFound {
			kind = ErrNotFound
		}
		return &FetchError{Kind: kind, Status: resp.StatusCode, URL: rawURL}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure(c.name)
		return &FetchError{Kind: ErrTransport, URL: rawURL, Err: err}
	}
	if err := decodePayload(resp.Header.Get("Content-Type"), data, v); err != nil {
		log.Printf("[request] %s decode error for %s: %v", c.name, rawURL, err)
		return &FetchError{Kind: ErrDecode, URL: rawURL, Err: err}
	}
	return nil
}

// decodePayload parses a JSON or XML body into v. XML is translated to the
// same nested-map shape JSON produces, then bridged through a JSON round trip
// so v can be a typed struct either way.
func decodePayload(contentType string, data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	isXML := strings.Contains(contentType, "xml") || (trimmed[0] == '<' && !strings.Contains(contentType, "json"))
	if !isXML {
		return json.Unmarshal(trimmed, v)
	}
	doc, err := translateXML(trimmed)
	if err != nil {
		return err
	}
	bridge, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(bridge, v)
}

// xmlNode is a generic XML element used for map translation.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

// translateXML converts an XML document into nested maps: attributes and
// child elements become keys, repeated child names become slices, and leaf
// elements collapse to their text content.
func translateXML(data []byte) (map[string]any, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return map[string]any{root.XMLName.Local: nodeToValue(root)}, nil
}

func nodeToValue(n xmlNode) any {
	if len(n.Children) == 0 && len(n.Attrs) == 0 {
		return strings.TrimSpace(n.Content)
	}
	m := make(map[string]any)
	for _, a := range n.Attrs {
		m[a.Name.Local] = a.Value
	}
	for _, child := range n.Children {
		value := nodeToValue(child)
		name := child.XMLName.Local
		switch existing := m[name].(type) {
		case nil:
			m[name] = value
		case []any:
			m[name] = append(existing, value)
		default:
			m[name] = []any{existing, value}
		}
	}
	return m
}
