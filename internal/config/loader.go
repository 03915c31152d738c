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

const (
	envPrefix  = "GLOBEPINS_"
	envConfig  = envPrefix + "CONFIG"
	envDotenv  = envPrefix + "ENV_FILE"
	defaultEnv = ".env"
)

// list keys take comma separated env values
var listKeys = map[string]bool{
	"admin_hosts":    true,
	"admin_paths":    true,
	"dev_hosts":      true,
	"metrics_labels": true,
}

// Load builds a Config by layering, low to high:
//  1. defaults (New)
//  2. YAML file if GLOBEPINS_CONFIG is set
//  3. env (prefix GLOBEPINS_), after a .env file has been merged into it
func Load(ctx context.Context) (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// GLOBEPINS_BATCH_SIZE -> batch_size; keys stay flat.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if key == "config" || key == "env_file" {
			return "", nil
		}
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	defaults := New()
	cfg := *defaults
	// decoding into a non-empty slice overwrites by index; start lists empty
	cfg.AdminHosts, cfg.AdminPaths, cfg.DevHosts, cfg.MetricsLabels = nil, nil, nil, nil
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if !k.Exists("admin_paths") {
		cfg.AdminPaths = defaults.AdminPaths
	}
	if !k.Exists("dev_hosts") {
		cfg.DevHosts = defaults.DevHosts
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotenv merges a .env file into the process environment without
// overriding variables that are already set. A missing default file is fine.
func loadDotenv() error {
	path, explicit := os.LookupEnv(envDotenv)
	if !explicit || path == "" {
		path = defaultEnv
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	return err
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
