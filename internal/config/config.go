// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"ucp-merchant/internal/checkout"
	"ucp-merchant/internal/compliance"
	"ucp-merchant/internal/model"
)

// Config holds all service configuration.
// Environment determines whether merchant settings load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	MerchantID string

	// Merchant-specific configuration (loaded from secrets)
	Merchant MerchantConfig
}

// MerchantConfig contains merchant-specific settings.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type MerchantConfig struct {
	StoreURL     string            `json:"store_url"`
	MerchantName string            `json:"merchant_name,omitempty"`
	PolicyLinks  map[string]string `json:"policy_links,omitempty"`

	// Payment handlers to advertise. Keyed by reverse-domain handler name.
	// Handler configs are opaque and passed to agents as-is.
	PaymentHandlers map[string][]model.PaymentHandler `json:"payment_handlers,omitempty"`

	// TaxRateBasisPoints overrides the default flat tax rate (800 = 8%).
	TaxRateBasisPoints int `json:"tax_rate_basis_points,omitempty"`

	// SessionTTLMinutes overrides the default session lifetime (360).
	SessionTTLMinutes int `json:"session_ttl_minutes,omitempty"`

	// Compliance overrides the built-in market age rules when set.
	Compliance *compliance.Rules `json:"compliance,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		MerchantID:  os.Getenv("MERCHANT_ID"),
	}

	if cfg.MerchantID == "" {
		return nil, fmt.Errorf("MERCHANT_ID environment variable required")
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading merchant config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string         `json:"port"`
		Environment string         `json:"environment"`
		LogLevel    string         `json:"log_level"`
		MerchantID  string         `json:"merchant_id"`
		Merchant    MerchantConfig `json:"merchant"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		MerchantID:  fileConfig.MerchantID,
		Merchant:    fileConfig.Merchant,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches merchant config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{merchant_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.MerchantID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Merchant); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads merchant config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Merchant = MerchantConfig{
		StoreURL:     os.Getenv("MERCHANT_STORE_URL"),
		MerchantName: os.Getenv("MERCHANT_NAME"),
	}

	if linksJSON := os.Getenv("POLICY_LINKS"); linksJSON != "" {
		if err := json.Unmarshal([]byte(linksJSON), &c.Merchant.PolicyLinks); err != nil {
			return fmt.Errorf("parsing POLICY_LINKS JSON: %w", err)
		}
	}

	if handlersJSON := os.Getenv("PAYMENT_HANDLERS"); handlersJSON != "" {
		if err := json.Unmarshal([]byte(handlersJSON), &c.Merchant.PaymentHandlers); err != nil {
			return fmt.Errorf("parsing PAYMENT_HANDLERS JSON: %w", err)
		}
	}

	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Merchant.StoreURL == "" {
		return fmt.Errorf("store_url is required")
	}
	if _, err := url.Parse(c.Merchant.StoreURL); err != nil {
		return fmt.Errorf("invalid store_url: %w", err)
	}
	return nil
}

// ServiceBaseURL returns the public origin of this service for endpoint
// discovery. In production set SERVICE_BASE_URL; defaults to localhost.
func (c *Config) ServiceBaseURL() string {
	base := os.Getenv("SERVICE_BASE_URL")
	if base == "" {
		base = fmt.Sprintf("http://localhost:%s", c.Port)
	}
	return strings.TrimSuffix(base, "/")
}

// BuildProfile creates the discovery profile served at /.well-known/ucp.
// Advertises REST and MCP transports, both capabilities, and the
// merchant's payment handlers.
func (c *Config) BuildProfile() *model.DiscoveryProfile {
	// MCP schema validation requires arrays, so handlers are never nil
	handlers := c.Merchant.PaymentHandlers
	if handlers == nil {
		handlers = defaultPaymentHandlers()
	}

	return &model.DiscoveryProfile{
		UCP: model.UCPMetadata{
			Version:         model.Version,
			Services:        c.buildServices(),
			Capabilities:    defaultCapabilities(),
			PaymentHandlers: handlers,
		},
	}
}

// CoreCapabilities returns capability names a degraded negotiation keeps.
func (c *Config) CoreCapabilities() []string {
	return []string{model.CapabilityCheckout}
}

// ExtensionCapabilities returns the extension capability names, in the
// stable order used for active-capability lists.
func (c *Config) ExtensionCapabilities() []string {
	return []string{model.CapabilityBuyerConsent}
}

// BuildEngineConfig converts merchant settings into the engine config.
func (c *Config) BuildEngineConfig() checkout.Config {
	return checkout.Config{
		BaseURL:            strings.TrimSuffix(c.Merchant.StoreURL, "/"),
		Links:              c.buildPolicyLinks(),
		TaxRateBasisPoints: c.Merchant.TaxRateBasisPoints,
		SessionTTL:         time.Duration(c.Merchant.SessionTTLMinutes) * time.Minute,
	}
}

// ComplianceRules returns the merchant's market rules, falling back to
// the built-in defaults.
func (c *Config) ComplianceRules() compliance.Rules {
	if c.Merchant.Compliance != nil {
		return *c.Merchant.Compliance
	}
	return compliance.DefaultRules()
}

// buildPolicyLinks converts the policy links map to model.Link slice.
// Always returns non-nil slice since MCP schema validation requires arrays.
func (c *Config) buildPolicyLinks() []model.Link {
	if len(c.Merchant.PolicyLinks) == 0 {
		return []model.Link{}
	}

	links := make([]model.Link, 0, len(c.Merchant.PolicyLinks))
	for linkType, linkURL := range c.Merchant.PolicyLinks {
		links = append(links, model.Link{
			Type: model.LinkType(linkType),
			URL:  linkURL,
		})
	}
	return links
}

// buildServices creates the service bindings for the discovery profile.
// Advertises REST and MCP transports for the checkout capability.
func (c *Config) buildServices() map[string][]model.Service {
	baseURL := c.ServiceBaseURL()
	return map[string][]model.Service{
		model.CapabilityCheckout: {
			{
				Version:   model.Version,
				Transport: "rest",
				Endpoint:  baseURL + "/checkout-sessions",
				Spec:      "https://ucp.dev/specs/shopping/checkout",
				Schema:    "https://ucp.dev/schemas/shopping/checkout.json",
			},
			{
				Version:   model.Version,
				Transport: "mcp",
				Endpoint:  baseURL + "/mcp",
				Spec:      "https://ucp.dev/specs/shopping/checkout",
				Schema:    "https://ucp.dev/schemas/shopping/checkout.json",
			},
		},
	}
}

// defaultCapabilities returns the UCP capabilities this service supports.
// Registry pattern: map keyed by reverse-domain capability name. Buyer
// consent is an extension of the core checkout capability.
func defaultCapabilities() map[string][]model.Capability {
	return map[string][]model.Capability{
		model.CapabilityCheckout: {
			{
				Version: model.Version,
				Spec:    "https://ucp.dev/specs/shopping/checkout",
				Schema:  "https://ucp.dev/schemas/shopping/checkout.json",
			},
		},
		model.CapabilityBuyerConsent: {
			{
				Version: model.Version,
				Extends: model.NewSingleExtends(model.CapabilityCheckout),
				Spec:    "https://ucp.dev/specs/shopping/buyer-consent",
				Schema:  "https://ucp.dev/schemas/shopping/buyer-consent.json",
			},
		},
	}
}

// defaultPaymentHandlers advertises the built-in simulated processor.
func defaultPaymentHandlers() map[string][]model.PaymentHandler {
	return map[string][]model.PaymentHandler{
		"dev.ucp.payment.simulated": {
			{
				ID:      "dev.ucp.payment.simulated",
				Version: model.Version,
			},
		},
	}
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
