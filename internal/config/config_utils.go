package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks() {
	c.applyServerAPIKeyFallbacks()
	c.applyQueueDefaults()
	c.applyObservabilityDefaults()
}

// applyServerAPIKeyFallbacks applies API key fallbacks from environment variables
func (c *Config) applyServerAPIKeyFallbacks() {
	if len(c.Server.APIKeys) == 0 {
		if apiKeysEnv := os.Getenv("RESUMERANK_SERVER_APIKEYS"); apiKeysEnv != "" {
			c.Server.APIKeys = splitAndTrim(apiKeysEnv)
		}
	}
}

// applyQueueDefaults normalizes the extension allow-list. A single
// comma-separated env value arrives as one element.
func (c *Config) applyQueueDefaults() {
	var exts []string
	for _, raw := range c.Queue.AllowedExtensions {
		for _, ext := range splitAndTrim(raw) {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			if ext != "" {
				exts = append(exts, ext)
			}
		}
	}
	c.Queue.AllowedExtensions = exts
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}

	// Set console output based on log level if not explicitly configured
	if c.App.LogLevel == "debug" && c.Observability.Enabled && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"RESUMERANK_CLIENT_ENDPOINT",
		"RESUMERANK_CLIENT_APIKEY",
		"RESUMERANK_DISPATCH_CONCURRENCY",
		"RESUMERANK_QUEUE_MAXITEMS",
		"RESUMERANK_SERVER_PORT",
		"RESUMERANK_SERVER_HOST",
		"RESUMERANK_SERVER_APIKEYS",
		"RESUMERANK_APP_LOGLEVEL",
		"RESUMERANK_VAULT_ENABLED",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if strings.Contains(strings.ToLower(envVar), "key") {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Analysis Endpoint: %s", c.Client.Endpoint)
	if c.Client.APIKey != "" {
		log.Println("[CONFIG] Upload API Key: ***CONFIGURED***")
	} else {
		log.Println("[CONFIG] Upload API Key: ***NOT SET***")
	}
	log.Printf("[CONFIG] Upload Concurrency: %d", c.Dispatch.Concurrency)
	log.Printf("[CONFIG] Upload Timeout: %s", c.Dispatch.UploadTimeout)
	log.Printf("[CONFIG] Queue Capacity: %d", c.Queue.MaxItems)
	log.Printf("[CONFIG] Max File Size: %d bytes", c.Queue.MaxFileSize)
	log.Printf("[CONFIG] Allowed Extensions: %s", strings.Join(c.Queue.AllowedExtensions, ","))
	log.Printf("[CONFIG] Server Host: %s", c.Server.Host)
	log.Printf("[CONFIG] Server Port: %s", c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)

	log.Println("[CONFIG] =====================================")
}
