package main

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
)

var ledgerCmd = &cli.Command{
	Name:  "ledger",
	Usage: "Inspect and fund ledger accounts",
	Subcommands: []*cli.Command{
		{
			Name:      "balance",
			Usage:     "Print the balance of an account",
			ArgsUsage: "<address>",
			Action: func(cctx *cli.Context) error {
				addr, err := argAddress(cctx, 0)
				if err != nil {
					return err
				}
				n, err := openNode(cctx)
				if err != nil {
					return err
				}
				defer n.Close() //nolint:errcheck
				fmt.Fprintln(cctx.App.Writer, n.state.Balance(addr).Dec())
				return nil
			},
		},
		{
			Name:      "fund",
			Usage:     "Credit an account out of thin air",
			ArgsUsage: "<address> <amount>",
			Action: func(cctx *cli.Context) error {
				addr, err := argAddress(cctx, 0)
				if err != nil {
					return err
				}
				amount, err := uint256.FromDecimal(cctx.Args().Get(1))
				if err != nil {
					return fmt.Errorf("parse amount: %w", err)
				}
				return withNode(cctx, func(n *node) error {
					_, err := n.state.Transact(func() error {
						return n.state.Mint(addr, amount)
					})
					if err != nil {
						return err
					}
					fmt.Fprintln(cctx.App.Writer, n.state.Balance(addr).Dec())
					return nil
				})
			},
		},
	},
}
