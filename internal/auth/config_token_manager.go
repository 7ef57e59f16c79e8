package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrNoConfigPersister = errors.New("no config persister configured")
)

// ConfigPersister stores fetched tokens so later runs can reuse them.
type ConfigPersister interface {
	SaveToken(token string, expiresAt time.Time, refreshToken string) error
}

// ConfigTokenManager wraps OAuth2TokenManager and persists every newly
// fetched token.
type ConfigTokenManager struct {
	oauth2Manager   *OAuth2TokenManager
	configPersister ConfigPersister
	mutex           sync.Mutex
	persisted       string
}

// NewConfigTokenManager creates a config-persisting token manager seeded with
// a previously saved token.
func NewConfigTokenManager(config *OAuth2Config, configPersister ConfigPersister, initialToken string, initialExpiry time.Time) *ConfigTokenManager {
	oauth2Manager := NewOAuth2TokenManager(config)

	if initialToken != "" {
		oauth2Manager.SetToken(initialToken, initialExpiry)
	}

	return &ConfigTokenManager{
		oauth2Manager:   oauth2Manager,
		configPersister: configPersister,
		persisted:       initialToken,
	}
}

// GetToken returns a valid access token, persisting it when it changed.
func (m *ConfigTokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.oauth2Manager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if token != m.persisted {
		if err := m.persist(m.oauth2Manager.Current()); err != nil {
			return "", err
		}
	}

	return token, nil
}

// RefreshToken forces a token refresh and persists the result.
func (m *ConfigTokenManager) RefreshToken(ctx context.Context) error {
	if err := m.oauth2Manager.RefreshToken(ctx); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.persist(m.oauth2Manager.Current())
}

// IsTokenExpiringSoon returns true if the token expires within the given duration.
func (m *ConfigTokenManager) IsTokenExpiringSoon(within time.Duration) bool {
	token := m.oauth2Manager.Current()
	if token == nil {
		return true
	}

	if token.ExpiresAt.IsZero() {
		return false
	}

	return time.Now().Add(within).After(token.ExpiresAt)
}

func (m *ConfigTokenManager) persist(token *Token) error {
	if token == nil {
		return nil
	}

	if m.configPersister == nil {
		return ErrNoConfigPersister
	}

	err := m.configPersister.SaveToken(token.AccessToken, token.ExpiresAt, token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	m.persisted = token.AccessToken

	return nil
}
