// Package fedmodel holds the configuration shared by the coordinator binary.
package fedmodel

import (
	"fmt"
	"os"
	"time"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/pkg/storage"
	"github.com/pelletier/go-toml"
)

// Config mirrors the environment configuration. Each section present in a
// config file replaces the environment values for that section.
type Config struct {
	Coordinator coordinator.Config `toml:"coordinator"`
	Storage     storage.Config     `toml:"storage"`
	Artifacts   ArtifactsConfig    `toml:"artifacts"`
	MQTT        MQTTConfig         `toml:"mqtt"`

	sections map[string]bool `toml:"-"`
}

type ArtifactsConfig struct {
	// Dir holds published artifacts. Empty keeps them in memory only.
	Dir       string `env:"FL_ARTIFACT_DIR"     toml:"dir"`
	Retain    int    `env:"FL_RETAIN_VERSIONS"  envDefault:"5"       toml:"retain"     default:"5"`
	MergeMode string `env:"FL_MERGE_MODE"       envDefault:"replace" toml:"merge_mode" default:"replace"`
	SeedFile  string `env:"FL_SEED_FILE"        toml:"seed_file"`
}

type MQTTConfig struct {
	// Address enables model announcements when set.
	Address   string        `env:"FL_MQTT_ADDRESS"   toml:"address"`
	QoS       uint8         `env:"FL_MQTT_QOS"       envDefault:"1"   toml:"qos"     default:"1"`
	Timeout   time.Duration `env:"FL_MQTT_TIMEOUT"   envDefault:"30s" toml:"timeout" default:"30s"`
	ClientID  string        `env:"FL_MQTT_CLIENT_ID" toml:"client_id"`
	ClientKey string        `env:"FL_MQTT_CLIENT_KEY" toml:"client_key"`
	DomainID  string        `env:"FL_DOMAIN_ID"      toml:"domain_id"`
	ChannelID string        `env:"FL_CHANNEL_ID"     toml:"channel_id"`
}

// Has reports whether the loaded file defined section.
func (c *Config) Has(section string) bool {
	return c.sections[section]
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.sections = make(map[string]bool)
	for _, k := range tree.Keys() {
		cfg.sections[k] = true
	}

	return &cfg, nil
}
