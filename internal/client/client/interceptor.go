package client

import (
	"context"
	"fmt"
)

// authorize returns the bearer token to attach to the next attempt. Both the
// stored token and the current route are read for every request, so a
// navigation between two calls is honoured immediately. On public routes no
// token is sent and public is true.
func (c *Client) authorize(ctx context.Context) (token string, public bool, err error) {
	if c.onPublicRoute() {
		return "", true, nil
	}

	token, err = c.tokens.AccessToken(ctx)
	if err != nil {
		return "", false, fmt.Errorf("read access token: %w", err)
	}
	return token, false, nil
}

func (c *Client) onPublicRoute() bool {
	return c.router != nil && IsPublicRoute(c.router.CurrentPath())
}
