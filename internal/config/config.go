package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	RevealGrace time.Duration
}

// Load reads configuration from the environment, with a best-effort .env
// file for local development. REVEAL_GRACE_MS=0 commits reveals
// immediately with no cancel window.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:        ":8080",
		RevealGrace: 5 * time.Second,
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("REVEAL_GRACE_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return Config{}, fmt.Errorf("config: bad REVEAL_GRACE_MS %q", v)
		}
		cfg.RevealGrace = time.Duration(ms) * time.Millisecond
	}
	return cfg, nil
}
