package sensors

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the ordered list of sensors processed on every run.
// Order is configuration order and is preserved.
type Catalog struct {
	Sensors []Sensor `yaml:"sensors"`
}

// LoadCatalog reads and validates a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(raw)
}

// ParseCatalog parses a YAML catalog document.
//
//	sensors:
//	  - key: temperature
//	    serial: "21079936-1"
//	    name: Air Temperature
//	    unit: "°C"
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) applyDefaults() {
	for i := range c.Sensors {
		if c.Sensors[i].Name == "" {
			c.Sensors[i].Name = c.Sensors[i].Key
		}
	}
}

// Validate checks that every sensor has a usable key and serial and that
// keys are unique. Keys end up as storage path segments, so they may not
// contain '/'.
func (c *Catalog) Validate() error {
	if len(c.Sensors) == 0 {
		return errors.New("catalog has no sensors")
	}
	seen := make(map[string]struct{}, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.Key == "" {
			return fmt.Errorf("sensor %d: key is required", i)
		}
		if strings.ContainsAny(s.Key, "/ ") {
			return fmt.Errorf("sensor %q: key must not contain '/' or spaces", s.Key)
		}
		if s.Serial == "" {
			return fmt.Errorf("sensor %q: serial is required", s.Key)
		}
		if _, dup := seen[s.Key]; dup {
			return fmt.Errorf("sensor %q: duplicate key", s.Key)
		}
		seen[s.Key] = struct{}{}
	}
	return nil
}

// Keys returns the sensor keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.Sensors))
	for i, s := range c.Sensors {
		keys[i] = s.Key
	}
	return keys
}
