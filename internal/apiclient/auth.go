package apiclient

import (
	"context"
	"net/http"
)

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (c *Client) Register(ctx context.Context, email, username, password string) (User, error) {
	var u User
	body := map[string]string{"email": email, "username": username, "password": password}
	if err := c.call(ctx, http.MethodPost, "/v1/users/register", body, &u, false); err != nil {
		return User{}, err
	}
	return u, nil
}

// Login signs in and installs the returned credentials on the client.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (Credentials, error) {
	var creds Credentials
	body := map[string]any{"email": email, "password": password, "remember_me": rememberMe}
	if err := c.call(ctx, http.MethodPost, "/v1/users/login", body, &creds, false); err != nil {
		return Credentials{}, err
	}
	c.SetCredentials(&creds)
	return creds, nil
}

// Logout revokes the current tokens and clears them even when the server
// could not be reached.
func (c *Client) Logout(ctx context.Context) error {
	creds := c.Credentials()
	if creds == nil {
		return nil
	}
	body := map[string]string{"refresh_token": creds.RefreshToken}
	err := c.do(ctx, http.MethodPost, "/v1/auth/logout", body, nil, true)
	c.SetCredentials(nil)
	return err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	if err := c.call(ctx, http.MethodGet, "/v1/me", nil, &u, true); err != nil {
		return User{}, err
	}
	return u, nil
}

func (c *Client) refresh(ctx context.Context) error {
	creds := c.Credentials()
	if creds == nil || creds.RefreshToken == "" {
		return ErrUnauthorized
	}

	var next Credentials
	body := map[string]string{"refresh_token": creds.RefreshToken}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/refresh", body, &next, false); err != nil {
		return err
	}
	c.SetCredentials(&next)
	if c.onRefresh != nil {
		c.onRefresh(next)
	}
	return nil
}
