// Package config loads adgraph's runtime configuration from defaults, an
// optional config file, and environment variables, in that priority order
// (environment wins), using koanf v2 the way cartographus wires it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "ADGRAPH_CONFIG"

// DefaultConfigPaths are searched in order when ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{"adgraph.yaml", "adgraph.yml", "/etc/adgraph/adgraph.yaml"}

// SinkConfig describes how to reach the property-graph sink.
type SinkConfig struct {
	Host     string `koanf:"host"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
}

// FacadeConfig describes the (out-of-scope) web façade listen address.
type FacadeConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Config is the root configuration for a pipeline run.
type Config struct {
	Sink   SinkConfig   `koanf:"sink"`
	Facade FacadeConfig `koanf:"facade"`

	// TimezoneOffsetHours is added to every parsed SystemTime.
	TimezoneOffsetHours int `koanf:"timezone_offset_hours"`

	// From/To bound extraction, both inclusive (only a record after To
	// stops the file). Zero value means unbounded.
	From time.Time `koanf:"-"`
	To   time.Time `koanf:"-"`

	// Delete wipes the sink before writing,
	Delete bool `koanf:"delete"`

	// ModelPath is where the HMM model is persisted by --learn and loaded
	// for decoding.
	ModelPath string `koanf:"model_path"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
}

// Default returns the built-in defaults.
func Default() Config {
	c := Config{
		Sink: SinkConfig{
			Host:     "localhost:7474",
			User:     "neo4j",
			Password: "password",
		},
		Facade: FacadeConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		ModelPath: "adgraph-hmm.model",
	}
	c.Log.Level = "info"
	c.Log.Format = "console"
	return c
}

// Load layers defaults, an optional YAML file, then environment variables
// (the fixed ADGRAPH_-prefixed names listed in envKeys, e.g.
// ADGRAPH_SINK_HOST) on top of each other.
func Load() (Config, error) {
	k := koanf.New(".")
	defaults := Default()

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := configFilePath(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("ADGRAPH_", ".", envTransform), nil); err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	var out Config
	if err := k.Unmarshal("", &out); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return out, nil
}

// envKeys maps a fixed set of ADGRAPH_-prefixed environment variables to
// their dotted koanf key. Unlike a generic "_" -> "." split, this avoids
// mis-splitting multi-word keys such as timezone_offset_hours.
var envKeys = map[string]string{
	"ADGRAPH_SINK_HOST":               "sink.host",
	"ADGRAPH_SINK_USER":               "sink.user",
	"ADGRAPH_SINK_PASSWORD":           "sink.password",
	"ADGRAPH_FACADE_HOST":             "facade.host",
	"ADGRAPH_FACADE_PORT":             "facade.port",
	"ADGRAPH_TIMEZONE_OFFSET_HOURS":   "timezone_offset_hours",
	"ADGRAPH_DELETE":                  "delete",
	"ADGRAPH_MODEL_PATH":              "model_path",
	"ADGRAPH_LOG_LEVEL":               "log.level",
	"ADGRAPH_LOG_FORMAT":              "log.format",
}

func envTransform(rawKey, value string) (string, interface{}) {
	key, ok := envKeys[rawKey]
	if !ok {
		return "", nil
	}
	return key, value
}

func configFilePath() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
