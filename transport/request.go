// Package transport issues authenticated HTTP/1.1 and HTTP/2 requests to the
// League client API.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agent-racer/leagueconnect/auth"
)

// RequestOptions describes one API call.
type RequestOptions struct {
	// URL is the endpoint path, with or without leading slashes.
	URL string
	// Method is the HTTP verb. Empty means GET.
	Method string
	// Body is JSON-encoded and sent for every method except GET, where it
	// is ignored.
	Body any
}

// Request sends one HTTP/1.1 request with its own TLS configuration and
// connection. Redirects are returned to the caller rather than followed.
func Request(ctx context.Context, opts RequestOptions, creds auth.Credentials) (*Response, error) {
	tlsConf, err := tlsConfigFor("request", creds.Certificate)
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		TLSClientConfig:   tlsConf,
		TLSNextProto:      map[string]func(string, *tls.Conn) http.RoundTripper{},
		DisableKeepAlives: true,
	}
	defer tr.CloseIdleConnections()

	client := &http.Client{
		Transport: tr,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := newRequest(ctx, opts, creds)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, wrapError(req.Method+" "+req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError("reading response", err)
	}
	return newResponse(resp, body), nil
}

func newRequest(ctx context.Context, opts RequestOptions, creds auth.Credentials) (*http.Request, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil && method != http.MethodGet {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := "https://" + address(creds.Port) + NormalizePath(opts.URL)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(auth.Username, creds.Password)
	return req, nil
}

// Client binds credentials to a set of convenience calls.
type Client struct {
	creds auth.Credentials
}

func NewClient(creds auth.Credentials) *Client {
	return &Client{creds: creds}
}

// Do sends a request with the bound credentials.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	return Request(ctx, RequestOptions{URL: path, Method: method, Body: body}, c.creds)
}

// GetJSON fetches path and decodes the body into out. Non-2xx statuses are
// returned as errors carrying the body text.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("GET %s: %d %s", NormalizePath(path), resp.Status(), resp.Text())
	}
	return resp.JSON(out)
}

// PostJSON sends body to path and decodes the response into out when out is
// non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	resp, err := c.Do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("POST %s: %d %s", NormalizePath(path), resp.Status(), resp.Text())
	}
	if out != nil {
		return resp.JSON(out)
	}
	return nil
}
