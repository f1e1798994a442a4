package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/taskwire/taskwire.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "taskwire", "taskwire.yaml"))
	}

	paths = append(paths, "taskwire.yaml")

	if envPath := os.Getenv("TASKWIRE_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/taskwire/taskwire.yaml < ~/.config/taskwire/taskwire.yaml < ./taskwire.yaml < $TASKWIRE_CONFIG
func Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables have higher priority than YAML config
// values.
func applyEnvOverrides(cfg *Config) {
	if brokers := os.Getenv("TASKWIRE_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if url := os.Getenv("TASKWIRE_AMQP_URL"); url != "" {
		cfg.Queue.URL = url
	}
	if relay := os.Getenv("TASKWIRE_RELAY_URL"); relay != "" {
		cfg.Publisher.RelayURL = relay
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Hub.BufferSize < 1 {
		return fmt.Errorf("hub.buffer_size must be at least 1, got %d", cfg.Hub.BufferSize)
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty")
	}
	if cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic must not be empty")
	}
	if cfg.Kafka.GroupID == "" {
		return fmt.Errorf("kafka.group_id must not be empty")
	}

	if cfg.Queue.URL == "" {
		return fmt.Errorf("queue.url must not be empty")
	}
	if cfg.Queue.Name == "" {
		return fmt.Errorf("queue.name must not be empty")
	}
	if cfg.Queue.ReconnectMin <= 0 || cfg.Queue.ReconnectMax < cfg.Queue.ReconnectMin {
		return fmt.Errorf("queue reconnect backoff must satisfy 0 < reconnect_min <= reconnect_max")
	}
	if cfg.Queue.Prefetch < 0 {
		return fmt.Errorf("queue.prefetch must not be negative, got %d", cfg.Queue.Prefetch)
	}

	return nil
}
