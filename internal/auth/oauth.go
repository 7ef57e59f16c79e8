package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Static errors for err113 compliance.
var (
	ErrNoValidCredentials = errors.New("no valid credentials available")
	ErrTokenURLRequired   = errors.New("token URL is required")
)

// OAuth2Config configures an OAuth2TokenManager.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	Scopes       []string

	// HTTPClient is used for token requests; http.DefaultClient when nil.
	HTTPClient *http.Client
}

// OAuth2TokenManager fetches tokens with the refresh_token grant when a
// refresh token is known and with the client_credentials grant otherwise.
type OAuth2TokenManager struct {
	config *OAuth2Config
	store  *TokenStore
	mutex  sync.Mutex
}

// NewOAuth2TokenManager creates a token manager. A configured AccessToken
// is used until it is invalidated by RefreshToken.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	manager := &OAuth2TokenManager{
		config: config,
		store:  NewTokenStore(),
	}

	if config.AccessToken != "" {
		manager.store.Set(&Token{
			AccessToken:  config.AccessToken,
			TokenType:    "bearer",
			RefreshToken: config.RefreshToken,
		})
	}

	return manager
}

// DefaultTokenURL derives the token endpoint of an API served alongside its
// authorization server.
func DefaultTokenURL(apiEndpoint string) string {
	return strings.TrimSuffix(apiEndpoint, "/") + "/oauth/token"
}

// GetToken returns a valid access token, fetching a new one when needed.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	token, err := m.fetch(ctx)
	if err != nil {
		return "", err
	}

	m.store.Set(token)

	return token.AccessToken, nil
}

// RefreshToken forces a new token to be fetched.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token, err := m.fetch(ctx)
	if err != nil {
		return err
	}

	m.store.Set(token)

	return nil
}

// SetToken manually sets the access token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	current := m.store.Get()

	refresh := ""
	if current != nil {
		refresh = current.RefreshToken
	}

	m.store.Set(&Token{
		AccessToken:  token,
		TokenType:    "bearer",
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	})
}

// Current returns the stored token, or nil.
func (m *OAuth2TokenManager) Current() *Token {
	return m.store.Get()
}

func (m *OAuth2TokenManager) fetch(ctx context.Context) (*Token, error) {
	if m.config.TokenURL == "" {
		return nil, ErrTokenURLRequired
	}

	if m.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.config.HTTPClient)
	}

	refresh := m.config.RefreshToken
	if current := m.store.Get(); current != nil && current.RefreshToken != "" {
		refresh = current.RefreshToken
	}

	var (
		token *oauth2.Token
		err   error
	)

	switch {
	case refresh != "":
		config := &oauth2.Config{
			ClientID:     m.config.ClientID,
			ClientSecret: m.config.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  m.config.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			Scopes: m.config.Scopes,
		}
		token, err = config.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	case m.config.ClientID != "":
		config := &clientcredentials.Config{
			ClientID:     m.config.ClientID,
			ClientSecret: m.config.ClientSecret,
			TokenURL:     m.config.TokenURL,
			Scopes:       m.config.Scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		token, err = config.Token(ctx)
	default:
		return nil, ErrNoValidCredentials
	}

	if err != nil {
		return nil, fmt.Errorf("failed to obtain token: %w", err)
	}

	return fromOAuth2(token), nil
}

func fromOAuth2(token *oauth2.Token) *Token {
	converted := &Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}

	if !token.Expiry.IsZero() {
		converted.ExpiresIn = int(time.Until(token.Expiry).Seconds())
	}

	if scope, ok := token.Extra("scope").(string); ok {
		converted.Scope = scope
	}

	return converted
}
