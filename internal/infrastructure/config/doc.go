// Package config handles loading and validating ha-monitor configuration.
//
// This package manages:
//   - Built-in defaults for a stock Home Assistant + Mosquitto install
//   - Loading an optional YAML configuration file
//   - Overriding with HAMONITOR_* environment variables
//   - Validation of broker address, topic and action command
//
// A configuration error is the only fatal condition at startup; it is
// reported before any broker connection is attempted.
//
// Security Considerations:
//   - Broker credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/ha-monitor/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Watch.Topic)
package config
