package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		PublicURL string `yaml:"publicUrl"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
		Dir string `yaml:"dir"`
	} `yaml:"quiz"`
	Game struct {
		ID           string `yaml:"id"`
		DefaultTimer int    `yaml:"defaultTimer"`
		Countdown    int    `yaml:"countdown"`
		RevealDelay  string `yaml:"revealDelay"`
		AutoReveal   bool   `yaml:"autoReveal"`
		SpeedScoring bool   `yaml:"speedScoring"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"game"`
	Auth struct {
		Password     string `yaml:"password"`
		PasswordHash string `yaml:"passwordHash"`
		JWTSecret    string `yaml:"jwtSecret"`
		TokenTTL     string `yaml:"tokenTtl"`
	} `yaml:"auth"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the settings used for keys the file leaves out.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Quiz.TTL = "10m"
	cfg.Quiz.Dir = "quizzes"
	cfg.Game.ID = "default"
	cfg.Game.DefaultTimer = 20
	cfg.Game.Countdown = 3
	cfg.Game.RevealDelay = "2s"
	cfg.Game.AutoReveal = true
	cfg.Game.SpeedScoring = true
	cfg.Game.WriteTimeout = "5s"
	cfg.Auth.TokenTTL = "12h"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file is not
// an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
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
