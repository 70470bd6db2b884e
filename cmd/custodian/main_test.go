package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/custodian/internal/access"
	"github.com/eigerco/custodian/internal/crypto/secp256k1"
	"github.com/eigerco/custodian/internal/relay"
)

const mailboxAddress = "0x0000000000000000000000000000000000001003"

type harness struct {
	t      *testing.T
	config string
	dir    string
}

func newHarness(t *testing.T, initialAdmin string) *harness {
	dir := t.TempDir()
	cfg := fmt.Sprintf(`data_dir = %q

[log]
level = "error"

[admin]
initial_admin = %q
initial_delay = "0s"
`, filepath.Join(dir, "db"), initialAdmin)
	path := filepath.Join(dir, "custodian.toml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &harness{t: t, config: path, dir: dir}
}

func (h *harness) run(args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"custodian", "--config", h.config}, args...))
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func TestRelayRoundTrip(t *testing.T) {
	key, err := secp256k1.GenerateKey()
	require.NoError(t, err)
	signer := key.Address().Hex()
	h := newHarness(t, signer)

	relayer := "0x00000000000000000000000000000000000000aa"
	assert.Equal(t, "100\n", h.mustRun("ledger", "fund", relayer, "100"))
	assert.Equal(t, "0\n", h.mustRun("relay", "nonce", signer))

	signed := h.mustRun("relay", "sign",
		"--key", "0x"+hex.EncodeToString(key),
		"--to", mailboxAddress,
		"--data", "@hello",
	)
	reqPath := filepath.Join(h.dir, "req.json")
	require.NoError(t, os.WriteFile(reqPath, []byte(signed), 0o600))

	assert.Equal(t, "true\n", h.mustRun("relay", "verify", reqPath))

	out := h.mustRun("relay", "execute", "--sender", relayer, reqPath)
	assert.Contains(t, out, "ExecutedForwardRequest")
	assert.Contains(t, out, "Posted")

	assert.Equal(t, "1\n", h.mustRun("relay", "nonce", signer))
	assert.Equal(t, "false\n", h.mustRun("relay", "verify", reqPath))

	_, err = h.run("relay", "execute", "--sender", relayer, reqPath)
	assert.ErrorIs(t, err, relay.ErrNonce)
}

func TestRelayExecuteMismatchedValue(t *testing.T) {
	key, err := secp256k1.GenerateKey()
	require.NoError(t, err)
	h := newHarness(t, key.Address().Hex())

	signed := h.mustRun("relay", "sign",
		"--key", hex.EncodeToString(key),
		"--to", mailboxAddress,
		"--data", "@hi",
		"--value", "5",
	)
	reqPath := filepath.Join(h.dir, "req.json")
	require.NoError(t, os.WriteFile(reqPath, []byte(signed), 0o600))

	_, err = h.run("relay", "execute", "--sender", key.Address().Hex(), "--value", "4", reqPath)
	assert.ErrorIs(t, err, relay.ErrValue)
}

func TestAdminTransfer(t *testing.T) {
	admin := "0x00000000000000000000000000000000000000a1"
	next := "0x00000000000000000000000000000000000000b2"
	h := newHarness(t, admin)

	assert.Contains(t, h.mustRun("admin", "show"), "admin:          "+admin)

	h.mustRun("admin", "begin-transfer", "--from", admin, next)
	assert.Contains(t, h.mustRun("admin", "show"), "pending admin:  "+next)

	_, err := h.run("admin", "accept", "--from", admin)
	assert.ErrorIs(t, err, access.ErrInvalidAdmin)

	h.mustRun("admin", "accept", "--from", next)
	show := h.mustRun("admin", "show")
	assert.Contains(t, show, "admin:          "+next)
	assert.Equal(t, "true\n", h.mustRun("admin", "has-role", "default", next))
	assert.Equal(t, "false\n", h.mustRun("admin", "has-role", "default", admin))
}

func TestAdminGrantRevoke(t *testing.T) {
	admin := "0x00000000000000000000000000000000000000a1"
	minter := "0x00000000000000000000000000000000000000c3"
	h := newHarness(t, admin)

	_, err := h.run("admin", "grant", "--from", minter, "MINTER", minter)
	assert.ErrorIs(t, err, access.ErrUnauthorized)

	h.mustRun("admin", "grant", "--from", admin, "MINTER", minter)
	assert.Equal(t, "true\n", h.mustRun("admin", "has-role", "MINTER", minter))

	h.mustRun("admin", "revoke", "--from", admin, "MINTER", minter)
	assert.Equal(t, "false\n", h.mustRun("admin", "has-role", "MINTER", minter))
}

func TestAdminWithoutInitialAdmin(t *testing.T) {
	h := newHarness(t, "0x0000000000000000000000000000000000000000")
	_, err := h.run("admin", "show")
	assert.ErrorIs(t, err, errNoAdminRules)
}

func TestConfigCommand(t *testing.T) {
	h := newHarness(t, "0x00000000000000000000000000000000000000a1")
	out := h.mustRun("config")
	assert.Contains(t, out, "initial_admin")
	assert.True(t, strings.Contains(out, "[forwarder]"))
}

func TestParseRole(t *testing.T) {
	r, err := parseRole("default")
	require.NoError(t, err)
	assert.Equal(t, access.DefaultAdminRole, r)

	r, err = parseRole("MINTER")
	require.NoError(t, err)
	assert.Equal(t, access.RoleFromName("MINTER"), r)

	r, err = parseRole(access.RoleFromName("MINTER").Hex())
	require.NoError(t, err)
	assert.Equal(t, access.RoleFromName("MINTER"), r)

	_, err = parseRole("")
	assert.Error(t, err)
}

func TestParseData(t *testing.T) {
	b, err := parseData("@hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	b, err = parseData("0xdead")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, b)

	_, err = parseData("0xzz")
	assert.Error(t, err)
}
