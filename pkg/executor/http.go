package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultHTTPTimeout bounds every outbound request.
const DefaultHTTPTimeout = 30 * time.Second

// ClientOption configures the HTTP-backed query runner and caller.
type ClientOption func(*httpClient)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *httpClient) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func newHTTPClient(opts []ClientOption) httpClient {
	c := httpClient{
		http:      &http.Client{Timeout: DefaultHTTPTimeout},
		limiter:   rate.NewLimiter(10, 10),
		userAgent: "typesynth",
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *httpClient) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s %s", req.Method, req.URL.Redacted())
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Errorf("%s %s returned status %d", req.Method, req.URL.Redacted(), resp.StatusCode)
	}
	return body, nil
}

// SPARQLClient runs queries against a SPARQL 1.1 protocol endpoint.
type SPARQLClient struct {
	httpClient
}

// NewSPARQLClient creates a query runner.
func NewSPARQLClient(opts ...ClientOption) *SPARQLClient {
	return &SPARQLClient{httpClient: newHTTPClient(opts)}
}

type sparqlResponse struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// Query posts the query form-encoded and decodes a JSON results document.
func (c *SPARQLClient) Query(ctx context.Context, endpoint, query string) (*QueryResult, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "sparql: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")

	body, err := c.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "sparql")
	}

	var resp sparqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "sparql: parse response")
	}

	out := &QueryResult{Vars: resp.Head.Vars}
	for _, b := range resp.Results.Bindings {
		row := make(map[string]string, len(b))
		for name, term := range b {
			row[name] = term.Value
		}
		out.Bindings = append(out.Bindings, row)
	}
	return out, nil
}

// HTTPCaller performs GET and POST calls with JSON bodies.
type HTTPCaller struct {
	httpClient
}

// NewHTTPCaller creates a caller.
func NewHTTPCaller(opts ...ClientOption) *HTTPCaller {
	return &HTTPCaller{httpClient: newHTTPClient(opts)}
}

// Call sends body as JSON for POST and nothing for GET. A JSON response is
// decoded; anything else is returned as a string.
func (c *HTTPCaller) Call(ctx context.Context, method, target string, body any) (any, error) {
	var reader io.Reader
	switch method {
	case http.MethodGet:
	case http.MethodPost:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "call: encode body")
		}
		reader = bytes.NewReader(data)
	default:
		return nil, eris.Errorf("call: unsupported method %s", method)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, eris.Wrap(err, "call: build request")
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	data, err := c.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "call")
	}

	var decoded any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return strings.TrimSpace(string(data)), nil
	}
	return normalizeJSON(decoded), nil
}

// normalizeJSON converts json.Number leaves to float64.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			t[k] = normalizeJSON(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = normalizeJSON(inner)
		}
		return t
	default:
		return Normalize(v)
	}
}
