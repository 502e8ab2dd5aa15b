package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPListenAddr string `yaml:"http_listen_addr"`
	DatabaseURL    string `yaml:"database_url"`
	LogLevel       string `yaml:"log_level"`
	ServiceName    string `yaml:"service_name"`

	// DataDir is the root of the filesystem blob store holding TLS artifacts.
	DataDir string `yaml:"data_dir"`
	// BlobBackend selects where TLS artifacts live: "fs" or "s3".
	BlobBackend string `yaml:"blob_backend"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Region    string `yaml:"s3_region"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Bucket    string `yaml:"s3_bucket"`

	// Edge tunnel parameters bound into every generated edge key.
	TunnelServerPort        string `yaml:"tunnel_server_port"`
	TunnelServerFingerprint string `yaml:"tunnel_server_fingerprint"`
	// TunnelServerKeyFile points at the tunnel server public key
	// (authorized_keys format); used to derive the fingerprint when it is
	// not configured directly.
	TunnelServerKeyFile string `yaml:"tunnel_server_key_file"`

	// RegistrationEnabled gates the environment creation endpoint.
	RegistrationEnabled bool `yaml:"registration_enabled"`
}

// Load builds the configuration from an optional YAML file (CONFIG_FILE)
// overridden by environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPListenAddr:      ":8090",
		LogLevel:            "info",
		ServiceName:         "flotilla-api",
		DataDir:             "/var/lib/flotilla",
		BlobBackend:         "fs",
		S3Region:            "us-east-1",
		TunnelServerPort:    "8000",
		RegistrationEnabled: true,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	setEnv(&cfg.HTTPListenAddr, "HTTP_LISTEN_ADDR")
	setEnv(&cfg.DatabaseURL, "DATABASE_URL")
	setEnv(&cfg.LogLevel, "LOG_LEVEL")
	setEnv(&cfg.ServiceName, "SERVICE_NAME")
	setEnv(&cfg.DataDir, "DATA_DIR")
	setEnv(&cfg.BlobBackend, "BLOB_BACKEND")
	setEnv(&cfg.S3Endpoint, "S3_ENDPOINT")
	setEnv(&cfg.S3Region, "S3_REGION")
	setEnv(&cfg.S3AccessKey, "S3_ACCESS_KEY")
	setEnv(&cfg.S3SecretKey, "S3_SECRET_KEY")
	setEnv(&cfg.S3Bucket, "S3_BUCKET")
	setEnv(&cfg.TunnelServerPort, "TUNNEL_SERVER_PORT")
	setEnv(&cfg.TunnelServerFingerprint, "TUNNEL_SERVER_FINGERPRINT")
	setEnv(&cfg.TunnelServerKeyFile, "TUNNEL_SERVER_KEY_FILE")
	setEnvBool(&cfg.RegistrationEnabled, "REGISTRATION_ENABLED")

	return cfg, nil
}

// Validate checks the fields the given binary cannot run without.
func (c *Config) Validate(service string) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s: DATABASE_URL is required", service)
	}
	switch c.BlobBackend {
	case "fs":
		if c.DataDir == "" {
			return fmt.Errorf("%s: DATA_DIR is required with the fs blob backend", service)
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("%s: S3_BUCKET is required with the s3 blob backend", service)
		}
	default:
		return fmt.Errorf("%s: unknown blob backend %q", service, c.BlobBackend)
	}
	if c.TunnelServerFingerprint == "" && c.TunnelServerKeyFile == "" {
		return fmt.Errorf("%s: one of TUNNEL_SERVER_FINGERPRINT or TUNNEL_SERVER_KEY_FILE is required", service)
	}
	return nil
}

func setEnv(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setEnvBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}
