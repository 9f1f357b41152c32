// CLAUDE:SUMMARY Configuration struct, defaults, validation and YAML loader for devserve.
package devserve

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPort is the port the dev server binds when none is configured.
const DefaultPort = 8765

// Rewrite modes.
const (
	RewritePattern = "pattern"
	RewriteToken   = "token"
)

// Config holds all devserve configuration.
type Config struct {
	Port        int    `yaml:"port"`
	Host        string `yaml:"host"`         // empty = all interfaces
	Root        string `yaml:"root"`         // directory served
	EntryPoint  string `yaml:"entry_point"`  // HTML file rewritten for "/"
	Script      string `yaml:"script"`       // module script path cache-busted in the entry point
	RewriteMode string `yaml:"rewrite_mode"` // pattern | token
	LogLevel    string `yaml:"log_level"`    // debug | info | warn | error
}

// Defaults fills zero fields with their default values.
func (c *Config) Defaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Root == "" {
		c.Root = "."
	}
	if c.EntryPoint == "" {
		c.EntryPoint = "index.html"
	}
	if c.Script == "" {
		c.Script = "js/app.js"
	}
	if c.RewriteMode == "" {
		c.RewriteMode = RewritePattern
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return &ConfigError{Field: "port", Value: strconv.Itoa(c.Port)}
	}
	switch c.RewriteMode {
	case RewritePattern, RewriteToken:
	default:
		return &ConfigError{Field: "rewrite_mode", Value: c.RewriteMode}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "log_level", Value: c.LogLevel}
	}
	if c.EntryPoint == "" || escapesRoot(c.EntryPoint) {
		return &ConfigError{Field: "entry_point", Value: c.EntryPoint}
	}
	if c.Script == "" {
		return &ConfigError{Field: "script", Value: c.Script}
	}
	return nil
}

// Addr returns the listen address built from Host and Port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Rewriter returns the rewriter selected by RewriteMode.
func (c *Config) Rewriter() Rewriter {
	if c.RewriteMode == RewriteToken {
		return &TokenRewriter{Script: c.Script}
	}
	return NewPatternRewriter(c.Script)
}

// LoadConfigFile reads a YAML config file. Defaults are not applied so the
// caller can layer flags and environment on top first.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// escapesRoot reports whether a slash- or OS-separated relative path is
// absolute or climbs out of the served root.
func escapesRoot(rel string) bool {
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return true
	}
	for _, el := range strings.Split(rel, "/") {
		if el == ".." {
			return true
		}
	}
	return false
}
