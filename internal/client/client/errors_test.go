package client

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAPIError_BodyShapes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"nested error", 400, `{"error":{"code":"invalid_credentials","message":"Invalid email or password."}}`,
			"invalid_credentials", "Invalid email or password."},
		{"string error", 400, `{"error":"Invalid Google token."}`, "", "Invalid Google token."},
		{"detail with code", 401, `{"detail":"Given token not valid for any token type","code":"token_not_valid"}`,
			"token_not_valid", "Given token not valid for any token type"},
		{"message", 500, `{"message":"boom"}`, "", "boom"},
		{"field errors", 400, `{"password":["too short"],"email":["taken","invalid"]}`,
			"", "email: taken, invalid; password: too short"},
		{"not json", 502, `<html>bad gateway</html>`, "", "bad gateway"},
		{"empty", 404, ``, "", "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newAPIError(tt.status, []byte(tt.body), "rid")
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantMsg, e.Message)
			assert.Equal(t, "rid", e.RequestID)
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	tests := []struct {
		err    *APIError
		target error
		want   bool
	}{
		{&APIError{Status: http.StatusUnauthorized}, ErrUnauthorized, true},
		{&APIError{Status: http.StatusPaymentRequired}, ErrSubscriptionRequired, true},
		{&APIError{Status: http.StatusForbidden, Code: CodeSubscriptionRequired}, ErrSubscriptionRequired, true},
		{&APIError{Status: http.StatusForbidden, Code: "permission_denied"}, ErrSubscriptionRequired, false},
		{&APIError{Status: http.StatusNotFound}, ErrNotFound, true},
		{&APIError{Status: http.StatusInternalServerError}, ErrUnavailable, true},
		{&APIError{Status: http.StatusBadRequest}, ErrUnavailable, false},
		{&APIError{Status: http.StatusBadRequest}, ErrUnauthorized, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, errors.Is(tt.err, tt.target), "%d %q vs %v", tt.err.Status, tt.err.Code, tt.target)
	}
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "api error 400 (bad): nope", (&APIError{Status: 400, Code: "bad", Message: "nope"}).Error())
	assert.Equal(t, "api error 404: not found", (&APIError{Status: 404, Message: "not found"}).Error())
}
