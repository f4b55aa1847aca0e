// Package config handles loading and validating homeapps configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional .env file next to the config file
//   - Overriding with HOMEAPPS_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// The apps section maps an instance name to a registered app kind and its
// arguments. Argument checking belongs to each app; this package only checks
// that a kind is named.
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should come from the environment or .env
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
