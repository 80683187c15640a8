package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown", "yaml"})
	v.SetDefault("app.maxJobDescriptionSize", 1024*1024) // 1MB

	// Queue Configuration
	v.SetDefault("queue.maxItems", 500)
	v.SetDefault("queue.maxFileSize", 5*1024*1024) // 5MB
	v.SetDefault("queue.allowedExtensions", []string{"pdf", "png", "jpg", "jpeg", "gif", "bmp"})

	// Dispatch Configuration
	v.SetDefault("dispatch.concurrency", 3)
	v.SetDefault("dispatch.uploadTimeout", 120*time.Second)

	// Analysis endpoint
	v.SetDefault("client.endpoint", "http://localhost:8000/analyze")
	v.SetDefault("client.apiKey", "")
	v.SetDefault("client.fileField", "resumes")
	v.SetDefault("client.jobField", "job_description")

	v.SetDefault("client.circuitBreaker.enabled", true)
	v.SetDefault("client.circuitBreaker.maxRequests", 3)
	v.SetDefault("client.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("client.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("client.circuitBreaker.minRequests", 5)
	v.SetDefault("client.circuitBreaker.failureThreshold", 0.6)

	v.SetDefault("client.rateLimit.enabled", false)
	v.SetDefault("client.rateLimit.requestsPerSecond", 5.0)
	v.SetDefault("client.rateLimit.burst", 3)

	// Results Configuration
	v.SetDefault("results.topN", 5)

	// Watch Configuration
	v.SetDefault("watch.debounceDelay", time.Second)
	v.SetDefault("watch.processExisting", true)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 60*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Minute) // submit waits for a full drain
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 64*1024*1024)
	// API Authentication defaults
	v.SetDefault("server.apiKeys", []string{})
	// Rate limiting defaults
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.refreshInterval", time.Duration(0))
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.clientKey", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.serviceName", "resumerank")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)

	// Tracing Configuration
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)

	// Metrics Configuration
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	// Custom Metrics Configuration
	v.SetDefault("observability.customMetrics.uploads.enabled", true)
	v.SetDefault("observability.customMetrics.uploads.trackDuration", true)
	v.SetDefault("observability.customMetrics.uploads.trackSizes", true)
	v.SetDefault("observability.customMetrics.queue.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackCircuitBreaker", true)

	// Console Configuration
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)

	// Prometheus Configuration
	v.SetDefault("observability.prometheus.enabled", false)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	// OTLP Configuration
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
