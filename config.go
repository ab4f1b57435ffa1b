package herald

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// CoordinatorConfig describes one federation member in the config file.
type CoordinatorConfig struct {
	Alias       string `mapstructure:"alias" yaml:"alias"`
	Fingerprint string `mapstructure:"fingerprint" yaml:"fingerprint"`
	Description string `mapstructure:"description" yaml:"description"`
}

// Config is the top-level configuration.
type Config struct {
	// MQTTHost is the relay broker, e.g. tls://broker.example.net:8883.
	MQTTHost string `mapstructure:"mqtt_host" yaml:"mqtt_host"`
	MQTTUser string `mapstructure:"mqtt_user" yaml:"mqtt_user"`
	MQTTPass string `mapstructure:"mqtt_pass" yaml:"mqtt_pass"`

	// StateDir holds the watermark state file.
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`

	// ConstrainedDisplay suppresses toasts (sounds still play), for
	// clients without room for transient overlays.
	ConstrainedDisplay bool `mapstructure:"constrained_display" yaml:"constrained_display"`

	// Federation is the set of coordinators this client trusts.
	Federation []CoordinatorConfig `mapstructure:"federation" yaml:"federation"`
}

// DefaultConfigPath returns ~/.config/herald/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "herald", "config.yaml")
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".herald")
	}
	return filepath.Join(home, ".herald")
}

// LoadConfig reads the YAML config at path via viper. A missing file is not
// an error; defaults apply and the federation is simply empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("mqtt_host", "tcp://localhost:1883")
	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("constrained_display", false)

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// Directory builds the coordinator directory from the configured federation.
func (c *Config) Directory() (*Directory, error) {
	coordinators := make([]Coordinator, 0, len(c.Federation))
	for _, cc := range c.Federation {
		coordinators = append(coordinators, Coordinator{
			Alias:       cc.Alias,
			Fingerprint: cc.Fingerprint,
			Description: cc.Description,
		})
	}
	return NewDirectory(coordinators)
}

// StateFile returns the path of the KV state file under StateDir.
func (c *Config) StateFile() string {
	return filepath.Join(c.StateDir, "state.json")
}
