package model

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// FormContentType is the media type the token endpoint and body bearer
// tokens require.
const FormContentType = "application/x-www-form-urlencoded"

// Params is a read-only, case-insensitive view over the header, query and
// body fields of an incoming request. Only the first value of a repeated
// field is visible.
type Params struct {
	method string
	header map[string]string
	query  map[string]string
	body   map[string]string
}

// NewParams builds a parameter view. Any of header, query and body may be nil.
func NewParams(method string, header http.Header, query, body url.Values) *Params {
	return &Params{
		method: strings.ToUpper(method),
		header: flatten(header),
		query:  flatten(query),
		body:   flatten(body),
	}
}

// ParamsFromRequest builds a parameter view from an HTTP request. The body is
// only parsed when it is form encoded.
func ParamsFromRequest(r *http.Request) (*Params, error) {
	var body url.Values
	if isForm(r.Header.Get("Content-Type")) && r.Body != nil && r.Method != http.MethodGet {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("failed to parse form body: %w", err)
		}
		body = r.PostForm
	}
	return NewParams(r.Method, r.Header, r.URL.Query(), body), nil
}

func flatten[M ~map[string][]string](in M) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if len(v) == 0 {
			continue
		}
		key := strings.ToLower(k)
		if _, exists := out[key]; !exists {
			out[key] = v[0]
		}
	}
	return out
}

// Method returns the upper-cased HTTP method.
func (p *Params) Method() string {
	return p.method
}

// Get looks name up across body, query and headers, in that order.
func (p *Params) Get(name string) string {
	key := strings.ToLower(name)
	if v, ok := p.body[key]; ok {
		return v
	}
	if v, ok := p.query[key]; ok {
		return v
	}
	return p.header[key]
}

// Header returns a request header value.
func (p *Params) Header(name string) string {
	return p.header[strings.ToLower(name)]
}

// Query returns a query string value.
func (p *Params) Query(name string) string {
	return p.query[strings.ToLower(name)]
}

// Body returns a body field value.
func (p *Params) Body(name string) string {
	return p.body[strings.ToLower(name)]
}

// IsForm reports whether the request body is form encoded.
func (p *Params) IsForm() bool {
	return isForm(p.Header("Content-Type"))
}

func isForm(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == FormContentType
}
