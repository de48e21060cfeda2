package client

import (
	"context"
	"net/http"
	"net/url"

	nenavierrors "github.com/nb75km/nenavi-cli/pkg/errors"
)

// AuthClient talks to the backend's authentication endpoints. Login and
// logout are cookie based: a successful login sets a session cookie in the
// shared jar and every later request replays it.
type AuthClient struct {
	client *Client
}

// NewAuthClient creates a new authentication client.
func NewAuthClient(client *Client) *AuthClient {
	return &AuthClient{client: client}
}

// User is the authenticated account as reported by the backend.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	IsVerified  bool   `json:"is_verified"`
}

// Login authenticates with email and password. The backend expects a
// URL-encoded form with "username" and "password" fields and answers by
// setting the session cookie; there is no token in the response body.
func (a *AuthClient) Login(ctx context.Context, email, password string) error {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	return a.client.PostForm(ctx, "/auth/jwt/login", form, nil)
}

// Logout invalidates the server-side session. The local cookie jar still
// holds the stale cookie afterwards; callers clear persisted state
// regardless of whether this call succeeds.
func (a *AuthClient) Logout(ctx context.Context) error {
	return a.client.PostJSON(ctx, "/auth/jwt/logout", nil, nil, nil)
}

// registerRequest is the payload for account creation.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account. It does not log in; callers follow up
// with Login.
func (a *AuthClient) Register(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := a.client.PostJSON(ctx, "/auth/register", nil, registerRequest{
		Email:    email,
		Password: password,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Me returns the currently authenticated user. A 401 response maps to
// ErrUnauthorized, which callers treat as "not logged in" rather than a
// failure.
func (a *AuthClient) Me(ctx context.Context) (*User, error) {
	var user User
	if err := a.client.GetJSON(ctx, "/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SessionCookies returns the cookies currently held for the backend host.
// Used to persist the session after a successful login.
func (a *AuthClient) SessionCookies() []*http.Cookie {
	return a.client.Cookies()
}

// IsLoggedIn reports whether the current session is authenticated. Any
// error other than 401 is returned so callers can distinguish "logged out"
// from "backend unreachable".
func (a *AuthClient) IsLoggedIn(ctx context.Context) (bool, *User, error) {
	user, err := a.Me(ctx)
	if err != nil {
		if nenavierrors.IsUnauthorized(err) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, user, nil
}
