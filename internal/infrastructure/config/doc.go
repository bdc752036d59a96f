// Package config provides 12-factor configuration management for the kernel.
//
// Configuration is loaded from environment variables with sensible defaults;
// an optional YAML file overlays the environment for deployments that prefer
// files.
//
// Configuration Sections:
//   - Server: monitor API settings (port, host)
//   - Kernel: init image name and the process environment
//   - Files: file service root directory
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting for the monitor API
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Monitor on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, KERNEL_INIT, FS_ROOT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
