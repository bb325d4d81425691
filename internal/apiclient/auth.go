package apiclient

import (
	"context"
	"net/http"

	"github.com/kingrea/insurecontent/internal/content"
)

// Login opens a cookie session for the agent.
func (c *Client) Login(ctx context.Context, creds content.Credentials) (content.Session, error) {
	var session content.Session
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &session); err != nil {
		return content.Session{}, err
	}
	return session, nil
}

// Logout ends the session on the server and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.resetSession()
	return err
}

// Me returns the agent behind the current session.
func (c *Client) Me(ctx context.Context) (content.Session, error) {
	var session content.Session
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &session); err != nil {
		return content.Session{}, err
	}
	return session, nil
}
