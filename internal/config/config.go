// Package config loads the node configuration from a TOML file and lets
// CUSTODIAN_* environment variables override individual fields.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto/typeddata"
	"github.com/eigerco/custodian/internal/timepoint"
	"github.com/eigerco/custodian/pkg/log"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	DataDir   string          `toml:"data_dir" env:"CUSTODIAN_DATA_DIR"`
	Log       LogConfig       `toml:"log"`
	Chain     ChainConfig     `toml:"chain"`
	Forwarder ForwarderConfig `toml:"forwarder"`
	Admin     AdminConfig     `toml:"admin"`
	Mailbox   MailboxConfig   `toml:"mailbox"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"CUSTODIAN_LOG_LEVEL"`
	Format string `toml:"format" env:"CUSTODIAN_LOG_FORMAT"`
}

type ChainConfig struct {
	ID uint64 `toml:"id" env:"CUSTODIAN_CHAIN_ID"`
}

// ForwarderConfig names the forwarder's typed data domain.
type ForwarderConfig struct {
	Name    string         `toml:"name" env:"CUSTODIAN_FORWARDER_NAME"`
	Version string         `toml:"version" env:"CUSTODIAN_FORWARDER_VERSION"`
	Address common.Address `toml:"address" env:"CUSTODIAN_FORWARDER_ADDRESS"`
}

// AdminConfig sets up the default admin rules. InitialAdmin and
// InitialDelay only matter the first time the rules are deployed.
type AdminConfig struct {
	Address           common.Address `toml:"address" env:"CUSTODIAN_ADMIN_ADDRESS"`
	InitialAdmin      common.Address `toml:"initial_admin" env:"CUSTODIAN_ADMIN_INITIAL_ADMIN"`
	InitialDelay      time.Duration  `toml:"initial_delay" env:"CUSTODIAN_ADMIN_INITIAL_DELAY"`
	DelayIncreaseWait time.Duration  `toml:"delay_increase_wait" env:"CUSTODIAN_ADMIN_DELAY_INCREASE_WAIT"`
}

type MailboxConfig struct {
	Address common.Address `toml:"address" env:"CUSTODIAN_MAILBOX_ADDRESS"`
}

func Default() Config {
	return Config{
		DataDir: "./data",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Chain: ChainConfig{ID: 1},
		Forwarder: ForwarderConfig{
			Name:    "Forwarder",
			Version: "1",
			Address: common.MustHexToAddress("0x0000000000000000000000000000000000001001"),
		},
		Admin: AdminConfig{
			Address:           common.MustHexToAddress("0x0000000000000000000000000000000000001002"),
			InitialDelay:      24 * time.Hour,
			DelayIncreaseWait: 5 * 24 * time.Hour,
		},
		Mailbox: MailboxConfig{
			Address: common.MustHexToAddress("0x0000000000000000000000000000000000001003"),
		},
	}
}

// Load starts from Default, applies the TOML file at path when path is not
// empty, then the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func (c Config) Validate() error {
	if _, err := log.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log level: %v", ErrInvalidConfig, err)
	}
	if _, err := log.ParseLoggerType(c.Log.Format); err != nil {
		return fmt.Errorf("%w: log format: %v", ErrInvalidConfig, err)
	}
	if c.Forwarder.Name == "" || c.Forwarder.Version == "" {
		return fmt.Errorf("%w: forwarder name and version are required", ErrInvalidConfig)
	}

	addrs := map[string]common.Address{
		"forwarder": c.Forwarder.Address,
		"admin":     c.Admin.Address,
		"mailbox":   c.Mailbox.Address,
	}
	seen := make(map[common.Address]string, len(addrs))
	for name, addr := range addrs {
		if addr.IsZero() {
			return fmt.Errorf("%w: %s address is required", ErrInvalidConfig, name)
		}
		if other, ok := seen[addr]; ok {
			return fmt.Errorf("%w: %s and %s share address %s", ErrInvalidConfig, other, name, addr)
		}
		seen[addr] = name
	}

	if _, err := c.Admin.Delay(); err != nil {
		return fmt.Errorf("%w: initial delay: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Admin.IncreaseWait(); err != nil {
		return fmt.Errorf("%w: delay increase wait: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Domain is the typed data domain of the configured forwarder.
func (c Config) Domain() typeddata.Domain {
	return typeddata.Domain{
		Name:              c.Forwarder.Name,
		Version:           c.Forwarder.Version,
		ChainID:           uint256.NewInt(c.Chain.ID),
		VerifyingContract: c.Forwarder.Address,
	}
}

// Delay is InitialDelay in whole seconds.
func (a AdminConfig) Delay() (uint32, error) {
	d, err := timepoint.DurationFrom(a.InitialDelay)
	return uint32(d), err
}

func (a AdminConfig) IncreaseWait() (timepoint.Duration, error) {
	return timepoint.DurationFrom(a.DelayIncreaseWait)
}
