package apiclient

import (
	"context"
	"errors"
	"net/http"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login authenticates an administrator and stores the token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/login", in, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("login response carried no token")
	}
	c.SetToken(out.AccessToken)
	return out.AccessToken, nil
}
