// Package config loads and validates sessiond settings. Configuration
// errors are fatal at load time: an invalid profile pool surfaces here,
// before the scrape proceeds, never per request.
package config

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/crawlkit/sessiond/pkg/sesslib"
)

// ConfigurationError describes an invalid configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// ProxyConfig is the proxy half of a profile entry. Auth carries the
// literal Proxy-Authorization header value; AuthSecret instead names a
// keyring secret resolved at load time.
type ProxyConfig struct {
	URL        string `yaml:"url"`
	Auth       string `yaml:"auth,omitempty"`
	AuthSecret string `yaml:"auth_secret,omitempty"`
}

// ProfileConfig is one entry of the configured profile pool.
type ProfileConfig struct {
	Proxy     *ProxyConfig `yaml:"proxy,omitempty"`
	UserAgent string       `yaml:"user_agent,omitempty"`
}

// Settings is the full sessiond configuration surface.
type Settings struct {
	// Enabled is the master toggle for the whole session mechanism.
	Enabled bool `yaml:"enabled"`
	// CookieDebug enables verbose per-request cookie logging.
	CookieDebug bool `yaml:"cookie_debug"`
	// ProfilesSync enables the profile rotation layer.
	ProfilesSync bool `yaml:"profiles_sync"`
	// Profiles is the rotation pool, ordered.
	Profiles []ProfileConfig `yaml:"profiles"`
	// StorePath, when set, enables the SQLite audit store.
	StorePath string `yaml:"store_path,omitempty"`
	// Listen is the control API address, e.g. "127.0.0.1:7617".
	Listen string `yaml:"listen,omitempty"`
	// RPCSecret is the bearer token for the control API. Empty leaves
	// the API disabled.
	RPCSecret string `yaml:"rpc_secret,omitempty"`
	// MaxConcurrent bounds concurrent transport exchanges.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
}

// DefaultListen is the control API address used when none is set.
const DefaultListen = "127.0.0.1:7617"

// Default returns the settings used when no config file is present:
// sessions on, local control API, everything else off.
func Default() *Settings {
	return &Settings{Enabled: true, Listen: DefaultListen}
}

// Load reads and validates settings from a YAML file on the given
// filesystem. A missing path is not an error; defaults are returned.
func Load(fs afero.Fs, path string) (*Settings, error) {
	if path == "" {
		return Default(), nil
	}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return Default(), nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings, failing on the first invalid profile.
func (s *Settings) Validate() error {
	for i, p := range s.Profiles {
		if p.Proxy == nil && p.UserAgent == "" {
			return &ConfigurationError{
				Field:  fmt.Sprintf("profiles[%d]", i),
				Reason: "must set at least one of proxy or user_agent",
			}
		}
		if p.Proxy != nil {
			if p.Proxy.URL == "" {
				return &ConfigurationError{
					Field:  fmt.Sprintf("profiles[%d].proxy.url", i),
					Reason: "is required",
				}
			}
			if _, err := sesslib.ParseProxyURL(p.Proxy.URL); err != nil {
				return &ConfigurationError{
					Field:  fmt.Sprintf("profiles[%d].proxy.url", i),
					Reason: err.Error(),
				}
			}
			if p.Proxy.Auth != "" && p.Proxy.AuthSecret != "" {
				return &ConfigurationError{
					Field:  fmt.Sprintf("profiles[%d].proxy", i),
					Reason: "auth and auth_secret are mutually exclusive",
				}
			}
		}
	}
	// ProfilesSync with an empty pool is legal: the profile feature
	// simply stays inactive and profile queries report unavailable.
	return nil
}

// SecretLookup resolves a named secret, typically backed by the OS
// keyring.
type SecretLookup func(name string) (string, error)

// Pool builds the sesslib profile pool, resolving auth_secret entries
// through lookup. lookup may be nil when no entry uses auth_secret.
func (s *Settings) Pool(lookup SecretLookup) (sesslib.Pool, error) {
	pool := make(sesslib.Pool, 0, len(s.Profiles))
	for i, p := range s.Profiles {
		profile := sesslib.Profile{UserAgent: p.UserAgent}
		if p.Proxy != nil {
			auth := p.Proxy.Auth
			if p.Proxy.AuthSecret != "" {
				if lookup == nil {
					return nil, &ConfigurationError{
						Field:  fmt.Sprintf("profiles[%d].proxy.auth_secret", i),
						Reason: "no secret store available",
					}
				}
				resolved, err := lookup(p.Proxy.AuthSecret)
				if err != nil {
					return nil, &ConfigurationError{
						Field:  fmt.Sprintf("profiles[%d].proxy.auth_secret", i),
						Reason: err.Error(),
					}
				}
				auth = resolved
			}
			profile.Proxy = &sesslib.Proxy{URL: p.Proxy.URL, Auth: auth}
		}
		pool = append(pool, profile)
	}
	if err := pool.Validate(); err != nil {
		return nil, err
	}
	return pool, nil
}
