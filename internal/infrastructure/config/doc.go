// Package config handles loading and validating the alarm controller configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The controller runs with no file at all: every section has a default that
// matches the classic deployment (broker on port 1883, alarm/# namespace,
// QoS 0, journal in ./data/alarm.db, status API on 127.0.0.1:8090).
//
// Security Considerations:
//   - Broker credentials and the InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.LoadOptional("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.MQTT.SetBrokerAddress(os.Args[1]); err != nil {
//	    log.Fatal(err)
//	}
package config
