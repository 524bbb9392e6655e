package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/hupe1980/bcache"
)

const envVarPrefix = "BCACHE"

// Config is the CLI configuration. It is read from a YAML file and then
// overlaid with BCACHE_* environment variables.
type Config struct {
	Buffers     int            `envconfig:"BUFFERS"      yaml:"buffers"`
	Shards      int            `envconfig:"SHARDS"       yaml:"shards"`
	LogLevel    string         `envconfig:"LOG_LEVEL"    yaml:"logLevel"`
	MetricsAddr string         `envconfig:"METRICS_ADDR" yaml:"metricsAddr"`
	Resource    ResourceConfig `envconfig:"RESOURCE"     yaml:"resource"`
	AWSRegion   string         `envconfig:"AWS_REGION"   yaml:"awsRegion"`
	Devices     []DeviceConfig `ignored:"true"           yaml:"devices"`
}

// ResourceConfig limits what the cache and its devices consume.
type ResourceConfig struct {
	MemoryLimitBytes   int64 `envconfig:"MEMORY_LIMIT_BYTES"     yaml:"memoryLimitBytes"`
	MaxInflightIO      int64 `envconfig:"MAX_INFLIGHT_IO"        yaml:"maxInflightIO"`
	IOLimitBytesPerSec int64 `envconfig:"IO_LIMIT_BYTES_PER_SEC" yaml:"ioLimitBytesPerSec"`
}

// Device kinds.
const (
	KindMemory   = "memory"
	KindFile     = "file"
	KindS3       = "s3"
	KindDynamoDB = "dynamodb"
	KindMinio    = "minio"
)

// DeviceConfig describes one block device.
type DeviceConfig struct {
	ID     uint32 `yaml:"id"`
	Kind   string `yaml:"kind"`
	Blocks uint32 `yaml:"blocks"`

	// file
	Path string `yaml:"path"`

	// s3, minio
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`

	// dynamodb
	Table  string `yaml:"table"`
	Volume string `yaml:"volume"`

	// s3, dynamodb, minio
	Codec    string `yaml:"codec"`
	Endpoint string `yaml:"endpoint"`

	// minio
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Secure    bool   `yaml:"secure"`
}

// DefaultConfig returns a configuration with the cache defaults.
func DefaultConfig() Config {
	return Config{
		Buffers:  bcache.DefaultNumBuffers,
		Shards:   bcache.DefaultNumShards,
		LogLevel: "info",
	}
}

// LoadConfig reads path (if not empty) and applies the environment. Without
// configured devices, a single in-memory device with id 1 is used.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if len(c.Devices) == 0 {
		c.Devices = []DeviceConfig{{ID: 1, Kind: KindMemory}}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[uint32]bool, len(c.Devices))
	for i, d := range c.Devices {
		if seen[d.ID] {
			errs = append(errs, fmt.Errorf("devices[%d]: duplicate id %d", i, d.ID))
		}
		seen[d.ID] = true

		if err := d.validate(); err != nil {
			errs = append(errs, fmt.Errorf("devices[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

func (d *DeviceConfig) validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%s device %d: missing %s", d.Kind, d.ID, field)
	}

	switch d.Kind {
	case KindMemory:
	case KindFile:
		if d.Path == "" {
			return missing("path")
		}
		if d.Blocks == 0 {
			return missing("blocks")
		}
	case KindS3:
		if d.Bucket == "" {
			return missing("bucket")
		}
	case KindDynamoDB:
		if d.Table == "" {
			return missing("table")
		}
		if d.Volume == "" {
			return missing("volume")
		}
	case KindMinio:
		if d.Bucket == "" {
			return missing("bucket")
		}
		if d.Endpoint == "" {
			return missing("endpoint")
		}
	default:
		return fmt.Errorf("device %d: unknown kind %q", d.ID, d.Kind)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}
