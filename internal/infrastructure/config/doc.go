// Package config handles loading and validating Railrunner configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with RAILRUNNER_* environment variables
//   - Validation, including the automation speed and branch names
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
// set through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	running, departure, track := cfg.Automation.Speeds()
package config
