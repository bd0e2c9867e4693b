package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"quizlive/internal/app"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		Secret string `yaml:"secret"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL              string `yaml:"ttl"`
		DefaultTimeLimit string `yaml:"default_time_limit"`
	} `yaml:"quiz"`
	Session struct {
		GracePeriod  string `yaml:"grace_period"`
		RevealHold   string `yaml:"reveal_hold"`
		Retention    string `yaml:"retention"`
		CodeLength   int    `yaml:"code_length"`
		BasePoints   int    `yaml:"base_points"`
		MaxTimeBonus int    `yaml:"max_time_bonus"`
		SendBuffer   int    `yaml:"send_buffer"`
	} `yaml:"session"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or
// malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// SessionConfig maps the yaml session block onto the core defaults.
func (c Config) SessionConfig() app.Config {
	out := app.DefaultConfig()
	out.GracePeriod = TTLDuration(c.Session.GracePeriod, out.GracePeriod)
	out.RevealHold = TTLDuration(c.Session.RevealHold, out.RevealHold)
	out.Retention = TTLDuration(c.Session.Retention, out.Retention)
	out.DefaultTimeLimit = TTLDuration(c.Quiz.DefaultTimeLimit, out.DefaultTimeLimit)
	if c.Session.CodeLength > 0 {
		out.CodeLength = c.Session.CodeLength
	}
	if c.Session.BasePoints > 0 {
		out.Score.BasePoints = c.Session.BasePoints
	}
	if c.Session.MaxTimeBonus > 0 {
		out.Score.MaxTimeBonus = c.Session.MaxTimeBonus
	}
	return out
}
