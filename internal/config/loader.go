package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables controlling the loader itself.
const (
	EnvPrefix     = "FLIGHTRISK_"
	EnvConfigFile = "FLIGHTRISK_CONFIG"
	EnvDotenvFile = "FLIGHTRISK_ENV_FILE"
)

// Load builds a Config by layering defaults, an optional .env file, an
// optional YAML file and environment variables.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env file (FLIGHTRISK_ENV_FILE, default ".env"); never overrides the real environment
//  3. file (YAML) if FLIGHTRISK_CONFIG is set
//  4. env (prefix FLIGHTRISK_, "__" separates nested keys)
func Load(_ context.Context) (*Config, error) {
	base := New()

	dotenv := os.Getenv(EnvDotenvFile)
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, dotenv, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FLIGHTRISK_STAGE_TIMEOUTS__ARRIVAL -> stage_timeouts.arrival
	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy; lists supplied by a layer replace the default lists whole.
	cfg := *base
	resetIfSet(k, "models.cancellation.years", &cfg.Models.Cancellation.Years)
	resetIfSet(k, "models.departure.years", &cfg.Models.Departure.Years)
	resetIfSet(k, "models.arrival.years", &cfg.Models.Arrival.Years)
	resetIfSet(k, "airports.hubs", &cfg.Airports.Hubs)
	resetIfSet(k, "airports.west_coast", &cfg.Airports.WestCoast)
	resetIfSet(k, "airports.east_coast", &cfg.Airports.EastCoast)
	resetIfSet(k, "airports.central", &cfg.Airports.Central)
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resetIfSet[T any](k *koanf.Koanf, key string, s *[]T) {
	if k.Exists(key) {
		*s = nil
	}
}

func envKey(s string) string {
	if s == EnvConfigFile || s == EnvDotenvFile {
		return ""
	}
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}
