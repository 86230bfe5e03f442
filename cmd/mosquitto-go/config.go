package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto"
)

// Config is the CLI configuration. Values are layered: built-in defaults,
// then MOSQ_* environment variables, then the YAML file, then flags.
type Config struct {
	ClientID     string            `yaml:"client_id"`
	CleanSession *bool             `yaml:"clean_session"`
	Broker       BrokerConfig      `yaml:"broker"`
	Credentials  CredentialsConfig `yaml:"credentials"`
	TLS          TLSConfig         `yaml:"tls"`
	QoS          int               `yaml:"qos"`
	LogLevel     string            `yaml:"log_level"`
}

type BrokerConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	KeepAlive time.Duration `yaml:"keepalive"`
}

type CredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type TLSConfig struct {
	CAFile   string `yaml:"ca_file"`
	CAPath   string `yaml:"ca_path"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

func (t TLSConfig) enabled() bool {
	return t.CAFile != "" || t.CAPath != ""
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		Broker: BrokerConfig{
			Host:      "localhost",
			Port:      1883,
			KeepAlive: 60 * time.Second,
		},
		LogLevel: "info",
	}
}

// applyEnv overlays MOSQ_* variables onto cfg.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("MOSQ_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := getenv("MOSQ_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MOSQ_PORT: %w", err)
		}
		cfg.Broker.Port = port
	}
	if v := getenv("MOSQ_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := getenv("MOSQ_USERNAME"); v != "" {
		cfg.Credentials.Username = v
	}
	if v := getenv("MOSQ_PASSWORD"); v != "" {
		cfg.Credentials.Password = v
	}
	if v := getenv("MOSQ_CA_FILE"); v != "" {
		cfg.TLS.CAFile = v
	}
	return nil
}

// LoadConfig builds a Config from defaults, the environment and, when path is
// not empty, a YAML file.
func LoadConfig(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()
	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}
	if path == "" {
		return &cfg, nil
	}

	absPath, err := SecurePath(path)
	if err != nil {
		return nil, fmt.Errorf("secure path: %w", err)
	}
	f, err := os.Open(absPath) // #nosec G304 -- absPath validated by SecurePath
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := DecodeStrict(f, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DecodeStrict decodes YAML from r and rejects unknown keys.
func DecodeStrict(r io.Reader, out any) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks cfg and fills in a random client id when none is set.
func (c *Config) Validate() error {
	if c.Broker.Host == "" {
		return errors.New("broker.host is required")
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		return fmt.Errorf("broker.port %d out of range", c.Broker.Port)
	}
	if c.Broker.KeepAlive < 0 {
		return fmt.Errorf("broker.keepalive %s is negative", c.Broker.KeepAlive)
	}
	if c.QoS < 0 || c.QoS > 2 {
		return fmt.Errorf("qos %d: %w", c.QoS, mosquitto.ErrInvalidQoS)
	}
	if c.Credentials.Password != "" && c.Credentials.Username == "" {
		return errors.New("credentials.password set without credentials.username")
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return errors.New("tls.cert_file and tls.key_file must be set together")
	}
	if (c.TLS.CertFile != "" || c.TLS.KeyFile != "") && !c.TLS.enabled() {
		return errors.New("tls client certificate requires tls.ca_file or tls.ca_path")
	}
	if c.ClientID == "" {
		c.ClientID = "mosquitto-go-" + uuid.NewString()
	}
	return nil
}

// cleanSession defaults to true.
func (c *Config) cleanSession() bool {
	return c.CleanSession == nil || *c.CleanSession
}

// configure applies credentials and TLS settings to an open client.
func (c *Config) configure(client *mosquitto.Client) error {
	if c.Credentials.Username != "" {
		if err := client.SetCredentials(c.Credentials.Username, c.Credentials.Password); err != nil {
			return err
		}
	}
	if c.TLS.enabled() {
		if err := client.SetTLS(mosquitto.TLSConfig{
			CAFile:   c.TLS.CAFile,
			CAPath:   c.TLS.CAPath,
			CertFile: c.TLS.CertFile,
			KeyFile:  c.TLS.KeyFile,
		}); err != nil {
			return err
		}
	}
	return nil
}

// SecurePath validates that a file path doesn't escape the working directory.
func SecurePath(path string) (string, error) {
	clean := filepath.Clean(path)
	absPath, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	base, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	rel, err := filepath.Rel(base, absPath)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes working directory", path)
	}
	return absPath, nil
}
