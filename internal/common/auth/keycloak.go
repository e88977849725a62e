package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"catalog-gateway/internal/common/errors"
	httpclient "catalog-gateway/internal/common/http"
)

// KeycloakClient talks to a Keycloak realm's OpenID Connect endpoints.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   httpclient.Doer
}

// TokenInfo is the RFC 7662 introspection response, with the Keycloak user claims.
type TokenInfo struct {
	Active            bool   `json:"active"`
	Scope             string `json:"scope"`
	ClientID          string `json:"client_id"`
	Username          string `json:"username"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	TokenType         string `json:"token_type"`
	Exp               int64  `json:"exp"`
	Iat               int64  `json:"iat"`
	Sub               string `json:"sub"`
	Iss               string `json:"iss"`
}

// Expiry returns the token expiry, or the zero time when the token carries none.
func (t *TokenInfo) Expiry() time.Time {
	if t.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(t.Exp, 0)
}

// Name is the username claim, falling back to preferred_username.
func (t *TokenInfo) Name() string {
	if t.Username != "" {
		return t.Username
	}
	return t.PreferredUsername
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpclient.NewClient(10 * time.Second),
	}
}

// ValidateToken introspects an access token. Inactive tokens yield a TOKEN_INVALID error.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, introspectURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewAuthenticationError(fmt.Sprintf("create introspection request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", fmt.Errorf("introspection request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		se := errors.NewExternalServiceError("keycloak",
			fmt.Errorf("introspection status %d: %s", resp.StatusCode, string(body)))
		se.Retryable = httpclient.IsTransientStatus(resp.StatusCode)
		return nil, se
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.NewExternalServiceError("keycloak", fmt.Errorf("decode introspection: %w", err))
	}
	if !info.Active {
		return nil, errors.NewTokenInvalidError("token is not active")
	}
	return &info, nil
}
