package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const ConfigFileName = "salesdesk.json"

// Server represents a SalesDesk backend the CLI can talk to
type Server struct {
	URL   string `json:"url"`
	Alias string `json:"alias"`
}

// Validate checks that the server has an absolute http(s) URL
func (s Server) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("server %q has no url. Please edit %s and add the API base URL", s.Alias, ConfigFileName)
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server %q has an invalid url %q (expected http:// or https://)", s.Alias, s.URL)
	}
	return nil
}

// BaseURL returns the URL without a trailing slash
func (s Server) BaseURL() string {
	return strings.TrimRight(s.URL, "/")
}

// Config represents the CLI project configuration file
type Config struct {
	Servers []Server `json:"servers"`
}

// DefaultConfig returns a configuration with one placeholder server
func DefaultConfig() *Config {
	return &Config{
		Servers: []Server{
			{
				URL:   "",
				Alias: "e.g. production",
			},
		},
	}
}

// FindConfigFile searches for salesdesk.json in the current directory and its parents
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory", ConfigFileName, currentDir)
}

// Load reads the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.checkAliases(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// checkAliases rejects two servers sharing an alias, which would make
// --server ambiguous
func (c *Config) checkAliases() error {
	seen := make(map[string]bool, len(c.Servers))
	for _, s := range c.Servers {
		if s.Alias == "" {
			continue
		}
		if seen[s.Alias] {
			return fmt.Errorf("alias '%s' is used by more than one server", s.Alias)
		}
		seen[s.Alias] = true
	}
	return nil
}

// LoadFromCurrentDir loads config from the current directory or a parent
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetServerByAlias returns a server by its alias
func (c *Config) GetServerByAlias(alias string) (*Server, error) {
	for i := range c.Servers {
		if c.Servers[i].Alias == alias {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with alias '%s' not found", alias)
}

// GetServerByURL returns a server by its URL, ignoring a trailing slash
func (c *Config) GetServerByURL(rawURL string) (*Server, error) {
	want := strings.TrimRight(rawURL, "/")
	for i := range c.Servers {
		if c.Servers[i].BaseURL() == want {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with url '%s' not found", rawURL)
}

// GetServerByURLOrAlias finds a server by URL first, then by alias
func (c *Config) GetServerByURLOrAlias(urlOrAlias string) (*Server, error) {
	if server, err := c.GetServerByURL(urlOrAlias); err == nil {
		return server, nil
	}
	if server, err := c.GetServerByAlias(urlOrAlias); err == nil {
		return server, nil
	}
	return nil, fmt.Errorf("server with url or alias '%s' not found", urlOrAlias)
}
