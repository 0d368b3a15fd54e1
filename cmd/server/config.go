package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/icco/minesduel"
)

type config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	Production  bool
	CORSOrigins []string
	StartDelay  time.Duration
	BaseURL     string

	Revision string
	Tag      string
	Branch   string
}

// loadConfig reads the environment, after loading a .env file when one is
// present.
func loadConfig() (*config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("could not load .env: %w", err)
	}

	cfg := &config{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: getenv("DATABASE_URL", "minesduel.db"),
		JWTSecret:   os.Getenv("AUTH_JWT_SECRET"),
		Production:  os.Getenv("NAT_ENV") == "production",
		CORSOrigins: strings.Split(getenv("CORS_ORIGINS", "*"), ","),
		StartDelay:  minesduel.DefaultStartDelay,
		BaseURL:     getenv("BASE_URL", "http://localhost:8080"),
		Revision:    os.Getenv("GIT_REVISION"),
		Tag:         os.Getenv("GIT_TAG"),
		Branch:      os.Getenv("GIT_BRANCH"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET environment variable is required")
	}

	if v := os.Getenv("START_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("bad START_DELAY %q: %w", v, err)
		}
		cfg.StartDelay = d
	}

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
