// Package config loads ledgermsg configuration.
//
// Values are resolved in order: built-in defaults, then the YAML file (if
// any, unknown keys rejected), then LEDGERMSG_* environment variables
// (optionally from a .env file). The merged result is validated against
// the embedded CUE schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/program"
)

// Config is the full runtime configuration.
type Config struct {
	Ledger   LedgerConfig        `yaml:"ledger" json:"ledger"`
	Server   ServerConfig        `yaml:"server" json:"server"`
	Logging  LoggingConfig       `yaml:"logging" json:"logging"`
	Snapshot SnapshotConfig      `yaml:"snapshot" json:"snapshot"`
	Genesis  []GenesisAllocation `yaml:"genesis" json:"genesis"`
}

type LedgerConfig struct {
	DB        string      `yaml:"db" json:"db"`
	ProgramID string      `yaml:"program_id" json:"program_id"`
	Rent      ledger.Rent `yaml:"rent" json:"rent"`
}

type ServerConfig struct {
	Listen      string   `yaml:"listen" json:"listen"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // text|json
}

type SnapshotConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// GenesisAllocation funds Address when a ledger is first created.
type GenesisAllocation struct {
	Address  string `yaml:"address" json:"address"`
	Lamports uint64 `yaml:"lamports" json:"lamports"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			DB:        "ledgermsg.db",
			ProgramID: program.DefaultID.String(),
			Rent:      ledger.DefaultRent,
		},
		Server: ServerConfig{
			Listen:      "127.0.0.1:8899",
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Snapshot: SnapshotConfig{
			Dir: "snapshot",
		},
		Genesis: []GenesisAllocation{},
	}
}

// Load resolves the configuration from path (empty for none), the
// environment, and envFile (empty to skip), then validates it.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := LoadEnv(cfg, envFile); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result without
// consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ProgramID returns the configured program id.
func (c *Config) ProgramID() (ir.Pubkey, error) {
	id, err := ir.ParsePubkey(c.Ledger.ProgramID)
	if err != nil {
		return ir.Pubkey{}, fmt.Errorf("ledger.program_id: %w", err)
	}
	return id, nil
}

// Allocations returns the genesis allocations as engine inputs.
func (c *Config) Allocations() ([]engine.Allocation, error) {
	out := make([]engine.Allocation, 0, len(c.Genesis))
	for i, g := range c.Genesis {
		addr, err := ir.ParsePubkey(g.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d].address: %w", i, err)
		}
		out = append(out, engine.Allocation{Address: addr, Lamports: g.Lamports})
	}
	return out, nil
}
