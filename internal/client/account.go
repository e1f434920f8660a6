package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/family"
)

// qrService renders a link as a scannable image.
const qrService = "https://api.qrserver.com/v1/create-qr-code/"

type signupResult struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Status       string `json:"status"`
	ConfirmToken string `json:"confirm_token"`
}

type tokenResult struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token"`
	AccessExpiresAt  time.Time    `json:"access_expires_at"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	Session          auth.Session `json:"session"`
}

// Signup registers a new account and returns the confirmation token the
// server would otherwise deliver by email.
func (c *Client) Signup(ctx context.Context, email, password string, meta auth.UserMetadata) (string, error) {
	var res signupResult
	err := c.do(ctx, http.MethodPost, "/v1/auth/signup", map[string]any{
		"email":    email,
		"password": password,
		"metadata": meta,
	}, &res)
	if err != nil {
		return "", err
	}
	return res.ConfirmToken, nil
}

// ConfirmSignup activates a pending account.
func (c *Client) ConfirmSignup(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/confirm", map[string]any{"token": token}, nil)
}

// Login authenticates and derives the application user, overlaying the
// profile when one exists.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var res tokenResult
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, &res); err != nil {
		return User{}, err
	}
	c.setTokens(res.AccessToken, res.RefreshToken)

	seq := c.session.BeginDerivation()
	profile := c.fetchProfile(ctx, res.Session.UserID)
	user := DeriveUser(res.Session, profile)
	c.session.Commit(seq, user)
	return user, nil
}

// Init restores a previously persisted session. With a refresh token present
// it rotates the pair and rederives the user; without one it just clears the
// session so subscribers see the signed-out state.
func (c *Client) Init(ctx context.Context) error {
	if _, refresh := c.tokens(); refresh == "" {
		c.session.Clear()
		return nil
	}
	return c.RefreshSession(ctx)
}

// RefreshSession rotates the refresh token and rederives the user.
func (c *Client) RefreshSession(ctx context.Context) error {
	_, refresh := c.tokens()
	if refresh == "" {
		return ErrUnauthorized
	}
	var res tokenResult
	if err := c.do(ctx, http.MethodPost, "/v1/auth/refresh", map[string]any{
		"refresh_token": refresh,
	}, &res); err != nil {
		return err
	}
	c.setTokens(res.AccessToken, res.RefreshToken)

	seq := c.session.BeginDerivation()
	profile := c.fetchProfile(ctx, res.Session.UserID)
	c.session.Commit(seq, DeriveUser(res.Session, profile))
	return nil
}

// Logout revokes the server-side session and clears local state. The user
// is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
	c.setTokens("", "")
	c.session.Clear()
	return err
}

// fetchProfile returns the profile overlay or nil when absent.
func (c *Client) fetchProfile(ctx context.Context, userID string) *family.Profile {
	var p family.Profile
	if err := c.do(ctx, http.MethodGet, "/v1/profiles/"+userID, nil, &p); err != nil {
		return nil
	}
	return &p
}

// GenerateChildInviteLink builds the link a child scans to join the family.
// Only a signed-in parent gets a link; everyone else gets the empty string.
func (c *Client) GenerateChildInviteLink(origin string) string {
	user := c.session.Current()
	if user == nil || user.Role != auth.RoleParent {
		return ""
	}
	return strings.TrimRight(origin, "/") + "/?parentId=" + url.QueryEscape(user.ID)
}

// QRImageURL renders an invite link as a QR image URL.
func QRImageURL(link string) string {
	if link == "" {
		return ""
	}
	return qrService + "?size=200x200&data=" + url.QueryEscape(link)
}

// UpdateUserName writes the display name to both the identity metadata and
// the profile overlay. It reports success; failures are swallowed so the
// caller can keep its optimistic UI state.
func (c *Client) UpdateUserName(ctx context.Context, name string) bool {
	user := c.session.Current()
	if user == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if err := c.patchMetadata(ctx, auth.UserMetadata{Name: name, Avatar: user.Avatar}); err != nil {
		return false
	}
	if err := c.putProfile(ctx, user.ID, name, user.Avatar); err != nil {
		return false
	}

	seq := c.session.BeginDerivation()
	updated := *user
	updated.Name = name
	c.session.Commit(seq, updated)
	return true
}

// UpdateUserAvatar mirrors UpdateUserName for the avatar URL.
func (c *Client) UpdateUserAvatar(ctx context.Context, avatarURL string) bool {
	user := c.session.Current()
	if user == nil || strings.TrimSpace(avatarURL) == "" {
		return false
	}
	if err := c.patchMetadata(ctx, auth.UserMetadata{Name: user.Name, Avatar: avatarURL}); err != nil {
		return false
	}
	if err := c.putProfile(ctx, user.ID, user.Name, avatarURL); err != nil {
		return false
	}

	seq := c.session.BeginDerivation()
	updated := *user
	updated.Avatar = avatarURL
	c.session.Commit(seq, updated)
	return true
}

func (c *Client) patchMetadata(ctx context.Context, meta auth.UserMetadata) error {
	return c.do(ctx, http.MethodPatch, "/v1/auth/metadata", meta, nil)
}

func (c *Client) putProfile(ctx context.Context, userID, name, avatar string) error {
	return c.do(ctx, http.MethodPut, "/v1/profiles/"+userID, map[string]any{
		"name":   name,
		"avatar": avatar,
	}, nil)
}

// UploadAvatar streams an image to the server and returns its public URL.
func (c *Client) UploadAvatar(ctx context.Context, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/storage/avatars", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if access, _ := c.tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", apiError(resp)
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("client: server returned no asset url")
	}
	return out.URL, nil
}
