package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementCommand    = "command"
	MeasurementThermostat = "thermostat"
)

// WriteCommand records a service call issued to Home Assistant.
//
// Example:
//
//	client.WriteCommand("climate", "set_temperature", "climate.kitchen_thermostat")
func (c *Client) WriteCommand(domain, service, entityID string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(commandPoint(domain, service, entityID, time.Now()))
}

// WritePoint writes a custom point stamped with the current time.
//
// The climate app uses this for MeasurementThermostat points:
//
//	client.WritePoint(influxdb.MeasurementThermostat,
//	    map[string]string{"app": "climate", "state": "away"},
//	    map[string]any{"target": 65, "setpoint": 68})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func commandPoint(domain, service, entityID string, at time.Time) *write.Point {
	tags := map[string]string{
		"domain":  domain,
		"service": service,
	}
	if entityID != "" {
		tags["entity_id"] = entityID
	}
	return write.NewPoint(MeasurementCommand, tags, map[string]any{"count": 1}, at)
}
