// Package config loads the YAML configuration shared by the control app and
// the dashboard.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/sia-local-control/internal/gpio"
	"github.com/sweeney/sia-local-control/internal/logic"
	"github.com/sweeney/sia-local-control/internal/mqtt"
)

type Config struct {
	PumpControllers   Names  `yaml:"pump_controllers"`
	SolarControllers  Names  `yaml:"solar_controllers"`
	TankLevelApp      string `yaml:"tank_level_app"`
	FlowSensorApp     string `yaml:"flow_sensor_app"`
	PressureSensorApp string `yaml:"pressure_sensor_app"`

	MQTT      MQTTConfig      `yaml:"mqtt"`
	Control   ControlConfig   `yaml:"control"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	GPIO      GPIOConfig      `yaml:"gpio"`
}

type MQTTConfig struct {
	Broker    string `yaml:"broker"`
	TagPrefix string `yaml:"tag_prefix"`
	ClientID  string `yaml:"client_id"`
}

type ControlConfig struct {
	Period      time.Duration `yaml:"period"`
	Source      string        `yaml:"source"`
	Heartbeat   time.Duration `yaml:"heartbeat"` // 0 disables
	MetricsAddr string        `yaml:"metrics_addr"`
}

type DashboardConfig struct {
	Addr   string        `yaml:"addr"`
	Period time.Duration `yaml:"period"`
}

type GPIOConfig struct {
	Chip   string      `yaml:"chip"`
	Source string      `yaml:"source"`
	Inputs []GPIOInput `yaml:"inputs"`
}

type GPIOInput struct {
	Name      string `yaml:"name"`
	Pin       int    `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`
}

// Names is a list of source names. In YAML it may be written as a sequence
// or as a single scalar.
type Names []string

func (n *Names) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if s == "" {
			*n = nil
		} else {
			*n = Names{s}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a source name or a list of source names", node.Line)
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.TagPrefix == "" {
		c.MQTT.TagPrefix = mqtt.DefaultTagPrefix
	}
	if c.Control.Period == 0 {
		c.Control.Period = time.Second
	}
	if c.Control.Source == "" {
		c.Control.Source = "sia_local_control"
	}
	if c.Control.MetricsAddr == "" {
		c.Control.MetricsAddr = ":9102"
	}
	if c.Dashboard.Addr == "" {
		c.Dashboard.Addr = ":8091"
	}
	if c.Dashboard.Period == 0 {
		c.Dashboard.Period = 200 * time.Millisecond
	}
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = gpio.DefaultChip
	}
	if c.GPIO.Source == "" {
		c.GPIO.Source = "local_io"
	}
}

// Validate checks the configuration after defaults and flag overrides have
// been applied.
func (c *Config) Validate() error {
	if c.Control.Period <= 0 {
		return fmt.Errorf("control.period must be positive, got %s", c.Control.Period)
	}
	if c.Dashboard.Period <= 0 {
		return fmt.Errorf("dashboard.period must be positive, got %s", c.Dashboard.Period)
	}
	if c.Control.Heartbeat < 0 {
		return fmt.Errorf("control.heartbeat must not be negative, got %s", c.Control.Heartbeat)
	}

	// The aggregate's own topic and the local input tags are written by this
	// process, so no device may share their source name.
	reserved := []struct{ key, name string }{{"control.source", c.Control.Source}}
	if len(c.GPIO.Inputs) > 0 {
		if c.GPIO.Source == c.Control.Source {
			return fmt.Errorf("gpio.source %q is the same as control.source", c.GPIO.Source)
		}
		reserved = append(reserved, struct{ key, name string }{"gpio.source", c.GPIO.Source})
	}
	for _, r := range reserved {
		for _, name := range append(append(Names{}, c.PumpControllers...), c.SolarControllers...) {
			if name == r.name {
				return fmt.Errorf("controller list includes %s %q", r.key, name)
			}
		}
		for _, name := range []string{c.TankLevelApp, c.FlowSensorApp, c.PressureSensorApp} {
			if name != "" && name == r.name {
				return fmt.Errorf("sensor app is set to %s %q", r.key, name)
			}
		}
	}

	seen := make(map[string]bool, len(c.GPIO.Inputs))
	for i, in := range c.GPIO.Inputs {
		if in.Name == "" {
			return fmt.Errorf("gpio.inputs[%d].name is required", i)
		}
		if seen[in.Name] {
			return fmt.Errorf("gpio.inputs: duplicate name %q", in.Name)
		}
		seen[in.Name] = true
		if in.Pin < 0 {
			return fmt.Errorf("gpio.inputs[%d].pin must not be negative, got %d", i, in.Pin)
		}
	}
	return nil
}

// Sources converts the configured device names into the aggregator's source set.
func (c *Config) Sources() logic.Sources {
	return logic.Sources{
		Pumps:    newSourceList(c.PumpControllers),
		Solar:    newSourceList(c.SolarControllers),
		Tank:     logic.Some(logic.SourceRef(c.TankLevelApp)),
		Flow:     logic.Some(logic.SourceRef(c.FlowSensorApp)),
		Pressure: logic.Some(logic.SourceRef(c.PressureSensorApp)),
	}
}

func newSourceList(names Names) logic.SourceList {
	refs := make([]logic.SourceRef, len(names))
	for i, n := range names {
		refs[i] = logic.SourceRef(n)
	}
	return logic.NewSourceList(refs...)
}

// Lines returns the configured GPIO input lines.
func (g GPIOConfig) Lines() []gpio.Input {
	out := make([]gpio.Input, len(g.Inputs))
	for i, in := range g.Inputs {
		out[i] = gpio.Input{Name: in.Name, Pin: in.Pin, ActiveLow: in.ActiveLow}
	}
	return out
}
