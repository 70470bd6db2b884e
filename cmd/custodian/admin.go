package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/eigerco/custodian/internal/access"
	"github.com/eigerco/custodian/internal/common"
)

var errNoAdminRules = errors.New("admin rules are not deployed, set admin.initial_admin")

var fromFlag = &cli.StringFlag{
	Name:     "from",
	Usage:    "calling account",
	Required: true,
}

var adminCmd = &cli.Command{
	Name:  "admin",
	Usage: "Manage roles and the default admin",
	Subcommands: []*cli.Command{
		{
			Name:  "show",
			Usage: "Print the default admin, its delay and anything pending",
			Action: func(cctx *cli.Context) error {
				n, err := openNode(cctx)
				if err != nil {
					return err
				}
				defer n.Close() //nolint:errcheck
				if n.rules == nil {
					return errNoAdminRules
				}
				r := n.rules
				w := cctx.App.Writer
				pending, schedule := r.PendingDefaultAdmin()
				newDelay, effect := r.PendingDefaultAdminDelay()
				fmt.Fprintf(w, "admin:          %s\n", r.DefaultAdmin())
				fmt.Fprintf(w, "pending admin:  %s (accept after %s)\n", pending, schedule)
				fmt.Fprintf(w, "delay:          %ds\n", r.DefaultAdminDelay())
				fmt.Fprintf(w, "pending delay:  %ds (effect at %s)\n", newDelay, effect)
				fmt.Fprintf(w, "increase wait:  %s\n", r.DefaultAdminDelayIncreaseWait())
				return nil
			},
		},
		{
			Name:      "has-role",
			Usage:     "Report whether an account holds a role",
			ArgsUsage: "<role> <address>",
			Action: func(cctx *cli.Context) error {
				role, err := parseRole(cctx.Args().Get(0))
				if err != nil {
					return err
				}
				account, err := argAddress(cctx, 1)
				if err != nil {
					return err
				}
				n, err := openNode(cctx)
				if err != nil {
					return err
				}
				defer n.Close() //nolint:errcheck
				if n.rules == nil {
					return errNoAdminRules
				}
				fmt.Fprintln(cctx.App.Writer, n.rules.HasRole(role, account))
				return nil
			},
		},
		roleCmd("grant", "Grant a role", (*access.DefaultAdminRules).GrantRole),
		roleCmd("revoke", "Revoke a role", (*access.DefaultAdminRules).RevokeRole),
		{
			Name:      "renounce",
			Usage:     "Drop a role held by the caller",
			ArgsUsage: "<role>",
			Flags:     []cli.Flag{fromFlag},
			Action: adminAction(func(cctx *cli.Context, r *access.DefaultAdminRules, caller common.Address) error {
				role, err := parseRole(cctx.Args().Get(0))
				if err != nil {
					return err
				}
				return r.RenounceRole(caller, role, caller)
			}),
		},
		{
			Name:      "set-role-admin",
			Usage:     "Change the admin role of a role",
			ArgsUsage: "<role> <admin role>",
			Flags:     []cli.Flag{fromFlag},
			Action: adminAction(func(cctx *cli.Context, r *access.DefaultAdminRules, caller common.Address) error {
				role, err := parseRole(cctx.Args().Get(0))
				if err != nil {
					return err
				}
				admin, err := parseRole(cctx.Args().Get(1))
				if err != nil {
					return err
				}
				return r.SetRoleAdmin(caller, role, admin)
			}),
		},
		{
			Name:      "begin-transfer",
			Usage:     "Schedule a default admin transfer",
			ArgsUsage: "<new admin>",
			Flags:     []cli.Flag{fromFlag},
			Action: adminAction(func(cctx *cli.Context, r *access.DefaultAdminRules, caller common.Address) error {
				newAdmin, err := argAddress(cctx, 0)
				if err != nil {
					return err
				}
				return r.BeginDefaultAdminTransfer(caller, newAdmin)
			}),
		},
		{
			Name:  "accept",
			Usage: "Accept a pending default admin transfer",
			Flags: []cli.Flag{fromFlag},
			Action: adminAction(func(_ *cli.Context, r *access.DefaultAdminRules, caller common.Address) error {
				return r.AcceptDefaultAdminTransfer(caller)
			}),
		},
		{
			Name:  "cancel",
			Usage: "Cancel a pending default admin transfer",
			Flags: []cli.Flag{fromFlag},
			Action: adminAction(func(_ *cli.Context, r *access.DefaultAdminRules, caller common.Address) error {
				return r.CancelDefaultAdminTransfer(caller)
			}),
		},
		{
			Name:      "change-delay",
			Usage:     "Schedule a change of the default admin delay",
			ArgsUsage: "<seconds>",
			Flags:     []cli.Flag{fromFlag},
			Action: adminAction(func(cctx *cli.Context, r *access.DefaultAdminRules, caller common.Address) error {
				var seconds uint32
				if _, err := fmt.Sscan(cctx.Args().Get(0), &seconds); err != nil {
					return fmt.Errorf("parse delay: %w", err)
				}
				return r.ChangeDefaultAdminDelay(caller, seconds)
			}),
		},
		{
			Name:  "rollback-delay",
			Usage: "Cancel a pending delay change",
			Flags: []cli.Flag{fromFlag},
			Action: adminAction(func(_ *cli.Context, r *access.DefaultAdminRules, caller common.Address) error {
				return r.RollbackDefaultAdminDelay(caller)
			}),
		},
	},
}

// adminAction runs fn against the node's admin rules as the --from account
// and persists the result.
func adminAction(fn func(cctx *cli.Context, r *access.DefaultAdminRules, caller common.Address) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		caller, err := parseAddress(cctx, "from")
		if err != nil {
			return err
		}
		return withNode(cctx, func(n *node) error {
			if n.rules == nil {
				return errNoAdminRules
			}
			return fn(cctx, n.rules, caller)
		})
	}
}

func roleCmd(name, usage string, op func(*access.DefaultAdminRules, common.Address, access.Role, common.Address) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<role> <address>",
		Flags:     []cli.Flag{fromFlag},
		Action: adminAction(func(cctx *cli.Context, r *access.DefaultAdminRules, caller common.Address) error {
			role, err := parseRole(cctx.Args().Get(0))
			if err != nil {
				return err
			}
			account, err := argAddress(cctx, 1)
			if err != nil {
				return err
			}
			return op(r, caller, role, account)
		}),
	}
}

// parseRole accepts a 0x prefixed role id, "default" for the default admin
// role, or any other name, which is hashed.
func parseRole(s string) (access.Role, error) {
	switch {
	case s == "":
		return access.Role{}, errors.New("missing role")
	case s == "default":
		return access.DefaultAdminRole, nil
	case strings.HasPrefix(s, "0x"):
		var r access.Role
		err := r.UnmarshalText([]byte(s))
		return r, err
	default:
		return access.RoleFromName(s), nil
	}
}
