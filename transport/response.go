package transport

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// HeaderPair is one response header with multiple values joined by ", ".
type HeaderPair struct {
	Name  string
	Value string
}

// Response is a fully read API response. The body is buffered so Text and
// JSON may be called any number of times.
type Response struct {
	status int
	header http.Header
	body   []byte
}

func newResponse(resp *http.Response, body []byte) *Response {
	return &Response{status: resp.StatusCode, header: resp.Header, body: body}
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.status >= 200 && r.status < 300
}

// Redirected reports a redirect status. Redirects are never followed.
func (r *Response) Redirected() bool {
	switch r.status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

func (r *Response) Status() int {
	return r.status
}

func (r *Response) Text() string {
	return string(r.body)
}

func (r *Response) Bytes() []byte {
	return r.body
}

// JSON decodes the body into v and fails on invalid JSON.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.body, v)
}

// Header returns the first value of the named header.
func (r *Response) Header(name string) string {
	return r.header.Get(name)
}

// Headers lists the response headers sorted by name. HTTP/2 pseudo-headers
// (":status" and friends) are never included.
func (r *Response) Headers() []HeaderPair {
	pairs := make([]HeaderPair, 0, len(r.header))
	for name, values := range r.header {
		if strings.HasPrefix(name, ":") {
			continue
		}
		pairs = append(pairs, HeaderPair{Name: name, Value: strings.Join(values, ", ")})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	return pairs
}
