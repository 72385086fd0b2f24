// Package config loads the controller's configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"nyiyui.ca/hato/rendo/station"
)

const (
	ReconcileRelease = "release"
	ReconcileKeep    = "keep"
)

type Config struct {
	// Station is the list of station description files, parsed in order.
	Station []string `yaml:"station"`
	Serial  Serial   `yaml:"serial"`
	// Listen is the HTTP address; empty disables the HTTP server.
	Listen    string  `yaml:"listen"`
	LogLevel  string  `yaml:"log-level"`
	LogFormat string  `yaml:"log-format"`
	Journal   Journal `yaml:"journal"`
	// LockReleaseDelay overrides the station's LockReleaseDelay setting if set.
	LockReleaseDelay *Duration `yaml:"lock-release-delay"`
	Watch            Watch     `yaml:"watch"`
	// Reconcile is what happens to active routes a reload changes: ReconcileRelease or ReconcileKeep.
	Reconcile string `yaml:"reconcile"`
}

type Serial struct {
	// Path of the serial port, or a glob; empty means no hardware (a virtual channel is used).
	Path string `yaml:"path"`
	Baud int    `yaml:"baud"`
}

type Journal struct {
	// Path of the journal database; empty keeps it in memory.
	Path string   `yaml:"path"`
	TTL  Duration `yaml:"ttl"`
}

type Watch struct {
	Enabled  bool     `yaml:"enabled"`
	Debounce Duration `yaml:"debounce"`
}

// Duration is whole seconds ("2") or a Go duration ("1500ms").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := station.ParseDelay(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func Default() Config {
	return Config{
		Serial:    Serial{Baud: 115200},
		Listen:    "127.0.0.1:8083",
		LogLevel:  "info",
		LogFormat: "console",
		Journal:   Journal{TTL: Duration(24 * time.Hour)},
		Watch:     Watch{Enabled: true, Debounce: Duration(300 * time.Millisecond)},
		Reconcile: ReconcileRelease,
	}
}

// Load reads .env (if any), the YAML (or JSON) file at path (if not empty) over Default, then
// applies RENDO_* environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("RENDO_STATION"); ok {
		c.Station = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Station = append(c.Station, p)
			}
		}
	}
	if v, ok := lookup("RENDO_SERIAL"); ok {
		c.Serial.Path = v
	}
	if v, ok := lookup("RENDO_BAUD"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RENDO_BAUD: %w", err)
		}
		c.Serial.Baud = n
	}
	if v, ok := lookup("RENDO_LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := lookup("RENDO_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("RENDO_JOURNAL"); ok {
		c.Journal.Path = v
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Reconcile {
	case ReconcileRelease, ReconcileKeep:
	default:
		return fmt.Errorf("reconcile: unknown policy %q", c.Reconcile)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log-format: unknown format %q", c.LogFormat)
	}
	if c.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud: %d", c.Serial.Baud)
	}
	return nil
}
