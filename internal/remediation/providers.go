package remediation

import (
	"fmt"
	"sync"

	"github.com/kev765740/dependencywarden/internal/config"
	"github.com/kev765740/dependencywarden/internal/hosting"
)

// ConfigProviders resolves hosting providers from configured credentials,
// constructing each platform client once.
type ConfigProviders struct {
	cfg *config.Config

	mu    sync.Mutex
	cache map[string]hosting.Provider
}

func NewConfigProviders(cfg *config.Config) *ConfigProviders {
	return &ConfigProviders{cfg: cfg, cache: make(map[string]hosting.Provider)}
}

// ProviderFor returns the provider for repoURL's platform.
func (c *ConfigProviders) ProviderFor(repoURL string) (hosting.Provider, error) {
	name, err := hosting.DetectProvider(repoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hosting.ErrMalformedRepoURL, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.cache[name]; ok {
		return p, nil
	}
	p, err := hosting.New(name, c.cfg)
	if err != nil {
		return nil, err
	}
	c.cache[name] = p
	return p, nil
}
