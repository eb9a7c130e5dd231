// Package config loads the livectl configuration: retry policy, risk-control
// classification tables, identity pool, rate limits, and storage options.
// The file is JSON5 so operators can comment their overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/livectl/internal/request"
)

// Config is the full configuration tree. Zero values fall back to defaults
// at load time.
type Config struct {
	LogLevel string `json:"logLevel"`

	Identity struct {
		UserAgents []string `json:"userAgents"`
	} `json:"identity"`

	Retry struct {
		MaxAttempts int     `json:"maxAttempts"`
		BaseDelayMs int     `json:"baseDelayMs"`
		Multiplier  float64 `json:"multiplier"`
		MaxDelayMs  int     `json:"maxDelayMs"`
	} `json:"retry"`

	// RiskControl holds the classification tables. The platform rotates these
	// codes; keep them in config, not code.
	RiskControl struct {
		HTTPStatuses  []int   `json:"httpStatuses"`
		BusinessCodes []int64 `json:"businessCodes"`
		AuthStatuses  []int   `json:"authStatuses"`
		AuthCodes     []int64 `json:"authCodes"`
	} `json:"riskControl"`

	RateLimit struct {
		PerMinute int `json:"perMinute"`
		Burst     int `json:"burst"`
	} `json:"rateLimit"`

	Session struct {
		RefreshLeadHours int `json:"refreshLeadHours"`
	} `json:"session"`

	Storage struct {
		Dir        string `json:"dir"`        // default: user config dir
		UseKeyring bool   `json:"useKeyring"` // store tokens in the OS keyring
	} `json:"storage"`

	Endpoints struct {
		Passport string `json:"passport"`
		LiveAPI  string `json:"liveApi"`
		MainAPI  string `json:"mainApi"`
	} `json:"endpoints"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.LogLevel = "info"
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.BaseDelayMs = 500
	cfg.Retry.Multiplier = 2.0
	cfg.Retry.MaxDelayMs = 10_000
	cfg.RiskControl.HTTPStatuses = []int{412}
	cfg.RiskControl.BusinessCodes = []int64{-412, -352}
	cfg.RiskControl.AuthStatuses = []int{401, 403}
	cfg.RiskControl.AuthCodes = []int64{-101, -111}
	cfg.RateLimit.PerMinute = 60
	cfg.RateLimit.Burst = 5
	cfg.Session.RefreshLeadHours = 24
	return cfg
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "livectl", "config.json5"), nil
}

// Load reads the config file, filling unset fields from defaults. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = def.Retry.BaseDelayMs
	}
	if c.Retry.Multiplier < 1 {
		c.Retry.Multiplier = def.Retry.Multiplier
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = def.Retry.MaxDelayMs
	}
	if len(c.RiskControl.HTTPStatuses) == 0 {
		c.RiskControl.HTTPStatuses = def.RiskControl.HTTPStatuses
	}
	if len(c.RiskControl.BusinessCodes) == 0 {
		c.RiskControl.BusinessCodes = def.RiskControl.BusinessCodes
	}
	if len(c.RiskControl.AuthStatuses) == 0 {
		c.RiskControl.AuthStatuses = def.RiskControl.AuthStatuses
	}
	if len(c.RiskControl.AuthCodes) == 0 {
		c.RiskControl.AuthCodes = def.RiskControl.AuthCodes
	}
	if c.Session.RefreshLeadHours <= 0 {
		c.Session.RefreshLeadHours = def.Session.RefreshLeadHours
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
}

// Policy builds the executor retry policy from the config.
func (c *Config) Policy() request.Policy {
	return request.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMs) * time.Millisecond,
		Multiplier:  c.Retry.Multiplier,
		MaxDelay:    time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
	}
}

// Classifier builds the failure classifier from the config tables.
func (c *Config) Classifier() request.Classifier {
	return request.NewClassifier(
		c.RiskControl.HTTPStatuses,
		c.RiskControl.BusinessCodes,
		c.RiskControl.AuthStatuses,
		c.RiskControl.AuthCodes,
	)
}

// RefreshLead returns the proactive-refresh lead window.
func (c *Config) RefreshLead() time.Duration {
	return time.Duration(c.Session.RefreshLeadHours) * time.Hour
}

// CredentialPath resolves the credential file location, honoring the storage
// dir override.
func (c *Config) CredentialPath() (string, error) {
	if c.Storage.Dir != "" {
		return filepath.Join(c.Storage.Dir, "auth.json"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "livectl", "auth.json"), nil
}
