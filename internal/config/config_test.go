package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/timepoint"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	d, err := cfg.Admin.Delay()
	require.NoError(t, err)
	assert.Equal(t, uint32(86400), d)
	wait, err := cfg.Admin.IncreaseWait()
	require.NoError(t, err)
	assert.Equal(t, timepoint.Duration(432000), wait)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
data_dir = "/var/lib/custodian"

[log]
level = "debug"
format = "json"

[chain]
id = 31337

[forwarder]
name = "MyForwarder"
version = "2"
address = "0x00000000000000000000000000000000000000f1"

[admin]
initial_admin = "0x1111111111111111111111111111111111111111"
initial_delay = "1h"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/custodian", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, uint64(31337), cfg.Chain.ID)
	assert.Equal(t, common.MustHexToAddress("0x00000000000000000000000000000000000000f1"), cfg.Forwarder.Address)
	assert.Equal(t, common.MustHexToAddress("0x1111111111111111111111111111111111111111"), cfg.Admin.InitialAdmin)
	assert.Equal(t, time.Hour, cfg.Admin.InitialDelay)
	assert.Equal(t, Default().Admin.DelayIncreaseWait, cfg.Admin.DelayIncreaseWait)

	domain := cfg.Domain()
	assert.Equal(t, "MyForwarder", domain.Name)
	assert.Equal(t, "2", domain.Version)
	assert.Equal(t, uint64(31337), domain.ChainID.Uint64())
	assert.Equal(t, cfg.Forwarder.Address, domain.VerifyingContract)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "[chain]\nid = 5\n")
	t.Setenv("CUSTODIAN_CHAIN_ID", "7")
	t.Setenv("CUSTODIAN_LOG_LEVEL", "warn")
	t.Setenv("CUSTODIAN_MAILBOX_ADDRESS", "0x00000000000000000000000000000000000000aa")
	t.Setenv("CUSTODIAN_ADMIN_DELAY_INCREASE_WAIT", "48h")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.Chain.ID)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, common.MustHexToAddress("0x00000000000000000000000000000000000000aa"), cfg.Mailbox.Address)
	assert.Equal(t, 48*time.Hour, cfg.Admin.DelayIncreaseWait)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{name: "unknown key", content: "colour = \"blue\"\n", invalid: true},
		{name: "bad log level", content: "[log]\nlevel = \"loud\"\n", invalid: true},
		{name: "bad log format", content: "[log]\nformat = \"xml\"\n", invalid: true},
		{name: "zero address", content: "[mailbox]\naddress = \"0x0000000000000000000000000000000000000000\"\n", invalid: true},
		{name: "shared address", content: "[mailbox]\naddress = \"0x0000000000000000000000000000000000001001\"\n", invalid: true},
		{name: "missing name", content: "[forwarder]\nname = \"\"\n", invalid: true},
		{name: "negative delay", content: "[admin]\ninitial_delay = \"-1s\"\n", invalid: true},
		{name: "bad address", content: "[forwarder]\naddress = \"0x12\"\n"},
		{name: "bad toml", content: "[log\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.content))
			require.Error(t, err)
			if tc.invalid {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Admin.InitialAdmin = common.MustHexToAddress("0x2222222222222222222222222222222222222222")

	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))

	loaded, err := Load(writeFile(t, buf.String()))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
