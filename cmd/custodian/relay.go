package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/ledger"
	"github.com/eigerco/custodian/internal/relay"
	"github.com/eigerco/custodian/internal/timepoint"
)

var (
	senderFlag = &cli.StringFlag{
		Name:     "sender",
		Usage:    "account that submits and pays for the request",
		Required: true,
	}
	valueFlag = &cli.StringFlag{
		Name:  "value",
		Usage: "value attached to the submission, in decimal",
		Value: "0",
	}
)

var relayCmd = &cli.Command{
	Name:  "relay",
	Usage: "Sign, verify and execute forward requests",
	Subcommands: []*cli.Command{
		relayNonceCmd,
		relaySignCmd,
		relayVerifyCmd,
		relayExecuteCmd,
		relayExecuteBatchCmd,
	},
}

var relayNonceCmd = &cli.Command{
	Name:      "nonce",
	Usage:     "Print the nonce the next request of an account must carry",
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
		fmt.Fprintln(cctx.App.Writer, n.forwarder.Nonces(addr).Dec())
		return nil
	},
}

var relaySignCmd = &cli.Command{
	Name:  "sign",
	Usage: "Build and sign a forward request, printing it as JSON",
	Flags: []cli.Flag{
		keyFlag,
		&cli.StringFlag{Name: "to", Usage: "target contract", Required: true},
		&cli.StringFlag{Name: "value", Usage: "value forwarded to the target", Value: "0"},
		&cli.Uint64Flag{Name: "gas", Usage: "gas forwarded to the target", Value: 100_000},
		&cli.StringFlag{Name: "data", Usage: "call data, 0x hex, or text prefixed with @"},
		&cli.DurationFlag{Name: "ttl", Usage: "time until the request expires", Value: time.Hour},
		&cli.StringFlag{Name: "nonce", Usage: "nonce to sign, defaults to the signer's next nonce"},
	},
	Action: func(cctx *cli.Context) error {
		key, err := parseKey(cctx.String("key"))
		if err != nil {
			return err
		}
		to, err := parseAddress(cctx, "to")
		if err != nil {
			return err
		}
		value, err := uint256.FromDecimal(cctx.String("value"))
		if err != nil {
			return fmt.Errorf("parse value: %w", err)
		}
		data, err := parseData(cctx.String("data"))
		if err != nil {
			return err
		}

		n, err := openNode(cctx)
		if err != nil {
			return err
		}
		defer n.Close() //nolint:errcheck

		nonce := n.forwarder.Nonces(key.Address())
		if s := cctx.String("nonce"); s != "" {
			if nonce, err = uint256.FromDecimal(s); err != nil {
				return fmt.Errorf("parse nonce: %w", err)
			}
		}
		deadline, err := timepoint.FromTime(time.Now().Add(cctx.Duration("ttl")))
		if err != nil {
			return err
		}

		req := &relay.ForwardRequest{
			From:     key.Address(),
			To:       to,
			Value:    value,
			Gas:      uint256.NewInt(cctx.Uint64("gas")),
			Nonce:    nonce,
			Deadline: deadline,
			Data:     data,
		}
		if err := req.Sign(key, n.forwarder.Domain()); err != nil {
			return err
		}
		enc := json.NewEncoder(cctx.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(req)
	},
}

var relayVerifyCmd = &cli.Command{
	Name:      "verify",
	Usage:     "Report whether a request would be accepted now",
	ArgsUsage: "<request.json>",
	Action: func(cctx *cli.Context) error {
		reqs, err := readRequests(cctx.Args().Slice())
		if err != nil {
			return err
		}
		if len(reqs) != 1 {
			return errors.New("verify takes exactly one request")
		}
		n, err := openNode(cctx)
		if err != nil {
			return err
		}
		defer n.Close() //nolint:errcheck
		fmt.Fprintln(cctx.App.Writer, n.forwarder.Verify(reqs[0]))
		return nil
	},
}

var relayExecuteCmd = &cli.Command{
	Name:      "execute",
	Usage:     "Submit a signed request",
	ArgsUsage: "<request.json>",
	Flags:     []cli.Flag{senderFlag, valueFlag},
	Action: func(cctx *cli.Context) error {
		reqs, err := readRequests(cctx.Args().Slice())
		if err != nil {
			return err
		}
		if len(reqs) != 1 {
			return errors.New("execute takes exactly one request")
		}
		msg, err := message(cctx)
		if err != nil {
			return err
		}

		// A failed forwarded call still consumes the nonce, so the node is
		// committed before the failure is reported.
		var innerErr error
		err = withNode(cctx, func(n *node) error {
			err := n.forwarder.Execute(msg, reqs[0])
			if errors.Is(err, relay.ErrInnerCall) {
				innerErr = err
				return nil
			}
			return err
		})
		if err != nil {
			return err
		}
		return innerErr
	},
}

var relayExecuteBatchCmd = &cli.Command{
	Name:      "execute-batch",
	Usage:     "Submit several signed requests in one transaction",
	ArgsUsage: "<request.json>...",
	Flags: []cli.Flag{
		senderFlag,
		valueFlag,
		&cli.StringFlag{
			Name:  "refund-receiver",
			Usage: "receives the value of skipped requests; without it the batch is atomic",
		},
	},
	Action: func(cctx *cli.Context) error {
		reqs, err := readRequests(cctx.Args().Slice())
		if err != nil {
			return err
		}
		msg, err := message(cctx)
		if err != nil {
			return err
		}
		var refundReceiver common.Address
		if cctx.IsSet("refund-receiver") {
			if refundReceiver, err = parseAddress(cctx, "refund-receiver"); err != nil {
				return err
			}
		}

		var innerErr error
		err = withNode(cctx, func(n *node) error {
			executed, err := n.forwarder.ExecuteBatch(msg, reqs, refundReceiver)
			if errors.Is(err, relay.ErrInnerCall) {
				innerErr = err
				return nil
			}
			if err != nil {
				return err
			}
			for i, ok := range executed {
				status := "executed"
				if !ok {
					status = "skipped"
				}
				fmt.Fprintf(cctx.App.Writer, "request %d (%s): %s\n", i, cctx.Args().Get(i), status)
			}
			return nil
		})
		if err != nil {
			return err
		}
		return innerErr
	},
}

func message(cctx *cli.Context) (ledger.Message, error) {
	sender, err := parseAddress(cctx, "sender")
	if err != nil {
		return ledger.Message{}, err
	}
	value, err := uint256.FromDecimal(cctx.String("value"))
	if err != nil {
		return ledger.Message{}, fmt.Errorf("parse value: %w", err)
	}
	return ledger.Message{Sender: sender, Value: value}, nil
}

func readRequests(paths []string) ([]*relay.ForwardRequest, error) {
	reqs := make([]*relay.ForwardRequest, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		req := new(relay.ForwardRequest)
		if err := json.Unmarshal(raw, req); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// parseData accepts 0x prefixed hex, or raw text after an @.
func parseData(s string) ([]byte, error) {
	if text, ok := strings.CutPrefix(s, "@"); ok {
		return []byte(text), nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return b, nil
}
