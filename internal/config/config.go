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
)

const (
	DriverDisk  = "disk"
	DriverMinio = "minio"
)

type Config struct {
	Server struct {
		Port         int   `yaml:"port"`
		MaxBodyBytes int64 `yaml:"maxBodyBytes"`
	} `yaml:"server"`

	Auth struct {
		Token string `yaml:"token"`
	} `yaml:"auth"`

	Storage struct {
		Driver        string `yaml:"driver"`
		Dir           string `yaml:"dir"`
		PublicBaseURL string `yaml:"publicBaseURL"`
	} `yaml:"storage"`

	Retention struct {
		TTLSeconds           int `yaml:"ttlSeconds"`
		SweepIntervalSeconds int `yaml:"sweepIntervalSeconds"`
	} `yaml:"retention"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
		Prefix     string `yaml:"prefix"`
	} `yaml:"minio"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	RateLimit struct {
		Capacity        int `yaml:"capacity"`
		RefillPerSecond int `yaml:"refillPerSecond"`
	} `yaml:"rateLimit"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Defaults returns a config with every optional value filled in.
func Defaults() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.MaxBodyBytes = 5 << 20
	cfg.Storage.Driver = DriverDisk
	cfg.Storage.Dir = "output"
	cfg.Retention.TTLSeconds = 86400
	cfg.Minio.BucketName = "documents"
	cfg.Minio.Prefix = "documents/"
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.RateLimit.Capacity = 30
	cfg.RateLimit.RefillPerSecond = 1
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return &cfg
}

// Load reads the optional YAML file, then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// env-only deployment
		default:
			return nil, err
		}
	}

	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("DOCGEN_API_TOKEN", &c.Auth.Token)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("OUTPUT_DIR", &c.Storage.Dir)
	str("PUBLIC_BASE_URL", &c.Storage.PublicBaseURL)
	str("MINIO_ENDPOINT", &c.Minio.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	str("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	str("MINIO_BUCKET", &c.Minio.BucketName)
	str("MINIO_REGION", &c.Minio.Region)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("MINIO_USE_SSL"); ok {
		c.Minio.UseSSL = v == "true" || v == "1"
	}
	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORS.AllowedOrigins = origins
	}

	if err := num("PORT", &c.Server.Port); err != nil {
		return err
	}
	if v, ok := lookup("MAX_BODY_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_BODY_BYTES: %w", err)
		}
		c.Server.MaxBodyBytes = n
	}
	if err := num("RATE_LIMIT_CAPACITY", &c.RateLimit.Capacity); err != nil {
		return err
	}
	if err := num("RATE_LIMIT_REFILL_PER_SECOND", &c.RateLimit.RefillPerSecond); err != nil {
		return err
	}
	if err := num("FILE_TTL_SECONDS", &c.Retention.TTLSeconds); err != nil {
		return err
	}
	return num("SWEEP_INTERVAL_SECONDS", &c.Retention.SweepIntervalSeconds)
}

// Validate checks required values.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.Token) == "" {
		errs = append(errs, errors.New("auth token is required (DOCGEN_API_TOKEN)"))
	}
	if c.Retention.TTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("retention ttl must be positive, got %d", c.Retention.TTLSeconds))
	}
	if c.Retention.SweepIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("sweep interval must not be negative, got %d", c.Retention.SweepIntervalSeconds))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server maxBodyBytes must be positive, got %d", c.Server.MaxBodyBytes))
	}
	if c.RateLimit.Capacity <= 0 || c.RateLimit.RefillPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate limit needs capacity > 0 and refill >= 0, got %d/%d",
			c.RateLimit.Capacity, c.RateLimit.RefillPerSecond))
	}
	switch c.Storage.Driver {
	case DriverDisk:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage dir is required for the disk driver"))
		}
	case DriverMinio:
		if c.Minio.Endpoint == "" || c.Minio.BucketName == "" {
			errs = append(errs, errors.New("minio endpoint and bucket are required for the minio driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

// TTL is the artifact time-to-live.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Retention.TTLSeconds) * time.Second
}

// SweepInterval is the background sweep period, zero when disabled.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Retention.SweepIntervalSeconds) * time.Second
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
