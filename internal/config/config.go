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

type Config struct {
	Server struct {
		Port         string   `yaml:"port"`
		AllowOrigins []string `yaml:"allow_origins"`
		Debug        bool     `yaml:"debug"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`

		// ScoresChannel carries leaderboard change notices between instances.
		ScoresChannel string `yaml:"scores_channel"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
		OTPTTL    string `yaml:"otp_ttl"`
	} `yaml:"auth"`
	Attempts struct {
		ResubmitPolicy string `yaml:"resubmit_policy"`
	} `yaml:"attempts"`
	Leaderboard struct {
		Limit             int  `yaml:"limit"`
		IncludeInProgress bool `yaml:"include_in_progress"`
	} `yaml:"leaderboard"`
	Mail struct {
		Driver        string   `yaml:"driver"`
		Topic         string   `yaml:"topic"`
		KafkaBrokers  []string `yaml:"kafka_brokers"`
		ConsumerGroup string   `yaml:"consumer_group"`
		From          string   `yaml:"from"`
		SMTP          struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		} `yaml:"smtp"`
	} `yaml:"mail"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path, then applies environment overrides (.env included).
// A missing file is not an error; defaults and the environment still apply.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Server.Port)
	str("DATABASE_URL", &c.Postgres.URL)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("SMTP_HOST", &c.Mail.SMTP.Host)
	str("SMTP_USER", &c.Mail.SMTP.Username)
	str("SMTP_PASS", &c.Mail.SMTP.Password)
	str("MAIL_FROM", &c.Mail.From)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		c.Mail.SMTP.Port = port
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Mail.KafkaBrokers = nil
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				c.Mail.KafkaBrokers = append(c.Mail.KafkaBrokers, broker)
			}
		}
		if c.Mail.Driver == "" {
			c.Mail.Driver = "kafka"
		}
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
