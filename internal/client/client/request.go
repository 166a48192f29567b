package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one API call. It holds its body as bytes so the same
// value can be sent again after a token refresh.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Header      http.Header

	// retried is set once the request has been replayed after a 401; a
	// second 401 is then returned to the caller as is.
	retried bool
}

// Retried reports whether the request was already replayed after a refresh.
func (r *Request) Retried() bool { return r.retried }

// NewJSONRequest marshals in (when non-nil) as the request body.
func NewJSONRequest(method, path string, in any) (*Request, error) {
	req := &Request{Method: method, Path: path}
	if in == nil {
		return req, nil
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req.Body = body
	req.ContentType = contentTypeJSON
	return req, nil
}

// Response is a fully read HTTP response.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response (request %s): %w", r.RequestID, err)
	}
	return nil
}
