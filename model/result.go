package model

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"

	"github.com/giantswarm/oauth2-core/oautherr"
)

// Result accumulates the response a flow wants to send: status, headers and
// body fields. Headers are case-insensitive.
type Result struct {
	Status int
	header http.Header
	body   map[string]any
}

// NewResult returns an empty 200 result.
func NewResult() *Result {
	return &Result{
		Status: http.StatusOK,
		header: make(http.Header),
		body:   make(map[string]any),
	}
}

// SetHeader sets a response header, replacing earlier values.
func (r *Result) SetHeader(name, value string) {
	r.header.Set(name, value)
}

// Header returns a response header value.
func (r *Result) Header(name string) string {
	return r.header.Get(name)
}

// Headers returns a copy of all response headers.
func (r *Result) Headers() http.Header {
	return r.header.Clone()
}

// Set sets a body field.
func (r *Result) Set(field string, value any) {
	r.body[field] = value
}

// Get returns a body field.
func (r *Result) Get(field string) any {
	return r.body[field]
}

// Body returns a copy of the body fields.
func (r *Result) Body() map[string]any {
	return maps.Clone(r.body)
}

// SetBody replaces all body fields.
func (r *Result) SetBody(fields map[string]any) {
	r.body = maps.Clone(fields)
	if r.body == nil {
		r.body = make(map[string]any)
	}
}

// Redirect turns the result into a 302 redirect to location.
func (r *Result) Redirect(location string) {
	r.Status = http.StatusFound
	r.header.Set("Location", location)
}

// IsRedirect reports whether Redirect was called.
func (r *Result) IsRedirect() bool {
	return r.Status == http.StatusFound && r.header.Get("Location") != ""
}

// SetError writes err in the RFC 6749 section 5.2 shape and takes its status.
func (r *Result) SetError(err *oautherr.Error) {
	r.Status = err.Status
	r.body = map[string]any{"error": err.Code}
	if err.Description != "" {
		r.body["error_description"] = err.Description
	}
}

// Write sends the result on w. Non-redirect results are encoded as JSON.
func (r *Result) Write(w http.ResponseWriter) error {
	for name, values := range r.header {
		w.Header()[name] = slices.Clone(values)
	}

	if r.IsRedirect() {
		w.WriteHeader(r.Status)
		return nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.Status)
	if len(r.body) == 0 {
		return nil
	}
	return json.NewEncoder(w).Encode(r.body)
}
