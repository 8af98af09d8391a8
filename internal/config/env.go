package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvDB        = "LEDGERMSG_DB"
	EnvListen    = "LEDGERMSG_LISTEN"
	EnvLogLevel  = "LEDGERMSG_LOG_LEVEL"
	EnvLogFormat = "LEDGERMSG_LOG_FORMAT"
	EnvProgramID = "LEDGERMSG_PROGRAM_ID"
)

// LoadEnv loads envFile into the process environment (variables already
// set win; a missing file is not an error) and applies LEDGERMSG_*
// overrides onto cfg.
func LoadEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	applyEnv(cfg)
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDB); v != "" {
		cfg.Ledger.DB = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv(EnvProgramID); v != "" {
		cfg.Ledger.ProgramID = v
	}
}
