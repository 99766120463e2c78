package api

import (
	"context"

	"bookden/internal/apiclient"
)

// Account endpoints. The five auth bootstrap routes are public; the auth
// transport recognizes them by suffix and never attaches a bearer token.
const (
	PathAuthenticate = "/account/authenticate/"
	PathRegistration = "/account/registration/"
	PathLogout       = "/account/logout/"
	PathVerifyToken  = "/account/verify-token/"
	PathRefreshToken = "/account/refresh-token/"
	PathProfile      = "/account/users/profile/"
)

// AccountClient issues account and auth bootstrap calls.
type AccountClient struct {
	client *apiclient.Client
}

// NewAccountClient builds an account client over the shared HTTP client.
func NewAccountClient(client *apiclient.Client) *AccountClient {
	return &AccountClient{client: client}
}

// Authenticate exchanges credentials for tokens and the user record.
func (a *AccountClient) Authenticate(ctx context.Context, username, password string) (*AuthPayload, error) {
	var payload AuthPayload
	err := a.client.Post(ctx, PathAuthenticate, map[string]string{
		"username": username,
		"password": password,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

// Register creates an account and returns the same payload as Authenticate.
func (a *AccountClient) Register(ctx context.Context, data RegisterData) (*AuthPayload, error) {
	var payload AuthPayload
	if err := a.client.Post(ctx, PathRegistration, data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Logout notifies the server that the session is ending.
func (a *AccountClient) Logout(ctx context.Context) error {
	return a.client.Post(ctx, PathLogout, nil, nil)
}

// VerifyToken checks an access token for the given subject. Any failure,
// including network trouble, reports false; this is a background check and
// must never surface an error to callers.
func (a *AccountClient) VerifyToken(ctx context.Context, token, email string) bool {
	err := a.client.Post(ctx, PathVerifyToken, map[string]string{
		"token": token,
		"email": email,
	}, nil)
	return err == nil
}

// RefreshToken mints a new access token from a refresh token.
func (a *AccountClient) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	var out struct {
		Access string `json:"access"`
	}
	err := a.client.Post(ctx, PathRefreshToken, map[string]string{
		"refresh": refreshToken,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Access, nil
}

// Profile fetches the authenticated user's record.
func (a *AccountClient) Profile(ctx context.Context) (*User, error) {
	var user User
	if err := a.client.Get(ctx, PathProfile, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
