package server

import (
	"maps"
	"net/url"

	"github.com/giantswarm/oauth2-core/oautherr"
)

// ResponseTypeCode is the authorization code response type.
const ResponseTypeCode = "code"

// ResponseType folds an issued authorization code into the redirect URI.
type ResponseType interface {
	BuildRedirectURI(redirectURI string) (*url.URL, error)
}

// ResponseTypeFactory builds a ResponseType for an issued code.
type ResponseTypeFactory func(code string) (ResponseType, error)

// ResponseTypes maps response_type values to factories.
type ResponseTypes map[string]ResponseTypeFactory

// DefaultResponseTypes returns a new registry holding the code response type.
func DefaultResponseTypes() ResponseTypes {
	return ResponseTypes{
		ResponseTypeCode: func(code string) (ResponseType, error) {
			return NewCodeResponseType(code)
		},
	}
}

// With returns a copy of r extended with ext.
func (r ResponseTypes) With(ext ResponseTypes) ResponseTypes {
	out := maps.Clone(r)
	if out == nil {
		out = make(ResponseTypes, len(ext))
	}
	maps.Copy(out, ext)
	return out
}

// CodeResponseType implements response_type=code (RFC 6749 section 4.1.2).
type CodeResponseType struct {
	Code string
}

// NewCodeResponseType returns a code response type for code.
func NewCodeResponseType(code string) (*CodeResponseType, error) {
	if code == "" {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `code`")
	}
	return &CodeResponseType{Code: code}, nil
}

// BuildRedirectURI replaces the query of redirectURI with the code.
func (c *CodeResponseType) BuildRedirectURI(redirectURI string) (*url.URL, error) {
	if redirectURI == "" {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `redirectUri`")
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, oautherr.ErrInvalidArgument("Invalid argument: `redirectUri` is not a valid URI").WithCause(err)
	}
	u.RawQuery = url.Values{"code": {c.Code}}.Encode()
	return u, nil
}
