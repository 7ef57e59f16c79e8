package commands

import (
	"sync"
	"time"
)

// ConfigPersister implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// SaveToken stores an issued token and its metadata in the config file.
func (p *ConfigPersister) SaveToken(token string, expiresAt time.Time, refreshToken string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()

	config.Token = token
	config.TokenExpiresAt = ""

	if !expiresAt.IsZero() {
		config.TokenExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	}

	if refreshToken != "" {
		config.RefreshToken = refreshToken
	}

	return saveConfig(config)
}
