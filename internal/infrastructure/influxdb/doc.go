// Package influxdb provides optional telemetry for homeapps.
//
// It wraps influxdb-client-go v2 with the connection handling used across
// the infrastructure packages and records two measurements:
//
//   - command: every service call the runtime sends to Home Assistant
//   - thermostat: each climate decision (state, target, reported set point)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
//	client.WriteCommand("light", "turn_on", "light.desk")
//
// Writes are non-blocking and batched per config (batch_size,
// flush_interval). Async write failures are reported through SetOnError.
package influxdb
