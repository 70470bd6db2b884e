package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto/secp256k1"
)

var keyFlag = &cli.StringFlag{
	Name:    "key",
	EnvVars: []string{"CUSTODIAN_KEY"},
	Usage:   "hex encoded secp256k1 private key",
}

var keysCmd = &cli.Command{
	Name:  "keys",
	Usage: "Manage signing keys",
	Subcommands: []*cli.Command{
		{
			Name:  "generate",
			Usage: "Generate a new key and print it with its address",
			Action: func(cctx *cli.Context) error {
				key, err := secp256k1.GenerateKey()
				if err != nil {
					return err
				}
				fmt.Fprintf(cctx.App.Writer, "key:     0x%s\naddress: %s\n", hex.EncodeToString(key), key.Address())
				return nil
			},
		},
		{
			Name:  "address",
			Usage: "Print the address of a key",
			Flags: []cli.Flag{keyFlag},
			Action: func(cctx *cli.Context) error {
				key, err := parseKey(cctx.String("key"))
				if err != nil {
					return err
				}
				fmt.Fprintln(cctx.App.Writer, key.Address())
				return nil
			},
		},
	},
}

func parseKey(s string) (secp256k1.PrivateKey, error) {
	if s == "" {
		return nil, errors.New("--key is required")
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != secp256k1.PrivateKeySize {
		return nil, secp256k1.ErrInvalidPrivateKey
	}
	return secp256k1.PrivateKey(raw), nil
}

func parseAddress(cctx *cli.Context, flag string) (common.Address, error) {
	s := cctx.String(flag)
	if s == "" {
		return common.Address{}, fmt.Errorf("--%s is required", flag)
	}
	return common.HexToAddress(s)
}

func argAddress(cctx *cli.Context, i int) (common.Address, error) {
	if cctx.NArg() <= i {
		return common.Address{}, fmt.Errorf("missing address argument %d", i+1)
	}
	return common.HexToAddress(cctx.Args().Get(i))
}
