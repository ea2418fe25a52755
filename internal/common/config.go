package common

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the aggregated runtime configuration for the repair service.
// Values come from an optional YAML file (conf/<env>/conf.yaml, or CONF_FILE)
// overridden by environment variables, so a bare `go run` works with no file.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	// Record store backend: "memory" (default) or "postgres".
	StoreBackend string `yaml:"store_backend"`
	PostgresDSN  string `yaml:"postgres_dsn"`

	// Ticket search backend: "memory" (default) or "es".
	SearchBackend string   `yaml:"search_backend"`
	ESAddrs       []string `yaml:"es_addrs"`
	ESIndex       string   `yaml:"es_index"`
	ESUsername    string   `yaml:"es_username"`
	ESPassword    string   `yaml:"es_password"`

	// Outbound notification delivery. Empty URL means log-only delivery.
	NotifyWebhookURL   string `yaml:"notify_webhook_url"`
	NotifyWebhookToken string `yaml:"notify_webhook_token"`

	// Directory for generated document binaries. Empty means in-memory.
	ObjectDir string `yaml:"object_dir"`

	MetricsAddr  string `yaml:"metrics_addr"`
	OtelEndpoint string `yaml:"otel_endpoint"`

	// RawPath records the loaded config file for diagnostics.
	RawPath string `yaml:"-"`
}

// LoadConfig reads the optional YAML file and applies env overrides.
func LoadConfig() *Config {
	cfg := &Config{}
	if path, ok := configFile(); ok {
		if err := parseFile(path, cfg); err == nil {
			cfg.RawPath = path
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

// configFile resolves the config path: explicit CONF_FILE first, then
// conf/<GO_ENV>/conf.yaml with a fallback to conf/test/conf.yaml.
func configFile() (string, bool) {
	if explicit := os.Getenv("CONF_FILE"); explicit != "" {
		return explicit, true
	}
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "test"
	}
	candidate := filepath.Join("conf", env, "conf.yaml")
	if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
		fallback := filepath.Join("conf", "test", "conf.yaml")
		if _, ferr := os.Stat(fallback); ferr == nil {
			return fallback, true
		}
		return "", false
	}
	return candidate, true
}

func parseFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	setenv(&cfg.HTTPAddr, "HTTP_ADDR")
	setenv(&cfg.StoreBackend, "STORE_BACKEND")
	setenv(&cfg.PostgresDSN, "POSTGRES_DSN")
	setenv(&cfg.SearchBackend, "SEARCH_BACKEND")
	setenv(&cfg.ESIndex, "ES_INDEX")
	setenv(&cfg.ESUsername, "ES_USERNAME")
	setenv(&cfg.ESPassword, "ES_PASSWORD")
	setenv(&cfg.NotifyWebhookURL, "NOTIFY_WEBHOOK_URL")
	setenv(&cfg.NotifyWebhookToken, "NOTIFY_WEBHOOK_TOKEN")
	setenv(&cfg.ObjectDir, "OBJECT_DIR")
	setenv(&cfg.MetricsAddr, "METRICS_ADDR")
	setenv(&cfg.OtelEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	if raw := os.Getenv("ES_ADDRS"); raw != "" {
		var addrs []string
		for _, p := range strings.Split(raw, ",") {
			if v := strings.TrimSpace(p); v != "" {
				addrs = append(addrs, v)
			}
		}
		cfg.ESAddrs = addrs
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "memory"
	}
	if cfg.SearchBackend == "" {
		cfg.SearchBackend = "memory"
	}
	if cfg.ESIndex == "" {
		cfg.ESIndex = "repair_tickets"
	}
}

func setenv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// EsAddressesOrDefault returns configured ES addresses or a local default.
func (c *Config) EsAddressesOrDefault() []string {
	if len(c.ESAddrs) > 0 {
		return c.ESAddrs
	}
	return []string{"http://localhost:9200"}
}
