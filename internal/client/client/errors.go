package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrUnavailable          = errors.New("server unavailable")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotFound             = errors.New("not found")
	ErrSubscriptionRequired = errors.New("subscription required")
	ErrRefreshFailed        = errors.New("token refresh failed")
	ErrNoRefreshToken       = errors.New("no refresh token stored")
	ErrIncompleteTokens     = errors.New("refresh response lacks access or refresh token")
)

// CodeSubscriptionRequired is the error code some endpoints send with 403
// instead of answering 402.
const CodeSubscriptionRequired = "subscription_required"

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Is maps statuses onto the package sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrSubscriptionRequired:
		return e.Status == http.StatusPaymentRequired ||
			(e.Status == http.StatusForbidden && e.Code == CodeSubscriptionRequired)
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnavailable:
		return e.Status >= http.StatusInternalServerError
	}
	return false
}

// newAPIError builds an APIError from a response body. The backend is not
// consistent about its error envelope, so several shapes are tried:
//
//	{"error": {"code": "...", "message": "..."}}
//	{"error": "..."}
//	{"detail": "...", "code": "..."}
//	{"message": "..."}
//	{"email": ["already taken"], "password": ["too short"]}
func newAPIError(status int, body []byte, requestID string) *APIError {
	e := &APIError{Status: status, RequestID: requestID}
	e.Code, e.Message = parseErrorBody(body)
	if e.Message == "" {
		e.Message = strings.ToLower(http.StatusText(status))
	}
	return e
}

func parseErrorBody(body []byte) (code, message string) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", ""
	}

	if v, ok := raw["error"]; ok {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(v, &nested) == nil && (nested.Code != "" || nested.Message != "") {
			return nested.Code, nested.Message
		}
		var s string
		if json.Unmarshal(v, &s) == nil {
			return stringField(raw, "code"), s
		}
	}

	code = stringField(raw, "code")
	for _, k := range []string{"detail", "message"} {
		if s := stringField(raw, k); s != "" {
			return code, s
		}
	}

	return code, fieldErrors(raw)
}

// fieldErrors flattens {"field": ["msg", ...]} maps in key order.
func fieldErrors(raw map[string]json.RawMessage) string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		var msgs []string
		if json.Unmarshal(raw[k], &msgs) == nil && len(msgs) > 0 {
			parts = append(parts, k+": "+strings.Join(msgs, ", "))
		}
	}
	return strings.Join(parts, "; ")
}

func stringField(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) != nil {
		return ""
	}
	return s
}
