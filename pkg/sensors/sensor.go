// Package sensors defines the static sensor catalog and the readings fetched
// for each sensor.
//
// The catalog is configuration data: it names the sensors of the one logical
// device that sensorsync polls, the upstream serial used to query each one,
// and the unit its values are reported in. Nothing in the catalog is mutated
// at runtime.
package sensors

import "fmt"

// Sensor describes one upstream sensor.
type Sensor struct {
	// Key is the stable identifier used in storage paths, e.g. "temperature".
	Key string `yaml:"key" json:"key"`
	// Serial is the upstream sensor serial number.
	Serial string `yaml:"serial" json:"serial"`
	// Name is a human readable display name.
	Name string `yaml:"name" json:"name"`
	// Unit of the reported values, e.g. "°C".
	Unit string `yaml:"unit" json:"unit"`
}

// Reading is a single observation. Readings are never modified after fetch.
type Reading struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
	SensorKey string  `json:"sensorKey"`
	Unit      string  `json:"unit"`
}

func (r Reading) String() string {
	return fmt.Sprintf("%s@%d=%g", r.SensorKey, r.Timestamp, r.Value)
}
