// Package config handles loading and validating Gray Relay configuration.
//
// This package manages:
//   - Loading service configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The routing document (targets and pipes) is deliberately NOT part of
// this package: it is a JSON document parsed by the broker core, and this
// package only knows where to find it on disk.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Broker.RoutingDocument)
package config
