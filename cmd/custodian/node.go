package main

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/eigerco/custodian/internal/access"
	"github.com/eigerco/custodian/internal/config"
	"github.com/eigerco/custodian/internal/ledger"
	"github.com/eigerco/custodian/internal/mailbox"
	"github.com/eigerco/custodian/internal/relay"
	"github.com/eigerco/custodian/internal/store"
	"github.com/eigerco/custodian/internal/timepoint"
	"github.com/eigerco/custodian/pkg/db/pebble"
	"github.com/eigerco/custodian/pkg/log"
)

// node is the ledger with every component deployed on it, loaded from the
// data dir.
type node struct {
	cfg       config.Config
	store     *store.Store
	state     *ledger.State
	forwarder *relay.Forwarder
	rules     *access.DefaultAdminRules
	mailbox   *mailbox.Mailbox
}

func openNode(cctx *cli.Context) (*node, error) {
	cfg := configFrom(cctx)
	kv, err := pebble.NewKVStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	s := store.New(kv)

	n, err := loadNode(cfg, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return n, nil
}

func loadNode(cfg config.Config, s *store.Store) (*node, error) {
	last, err := s.LastClock()
	if err != nil {
		return nil, err
	}
	state := ledger.NewState(timepoint.NewMonotonicClock(timepoint.SystemClock{}, last))
	if err := s.LoadState(state); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	forwarder, err := relay.NewForwarder(state, cfg.Domain())
	if err != nil {
		return nil, err
	}
	if err := s.LoadNonces(forwarder); err != nil {
		return nil, fmt.Errorf("load nonces: %w", err)
	}

	m, err := mailbox.Deploy(state, cfg.Mailbox.Address, cfg.Forwarder.Address)
	if err != nil {
		return nil, err
	}

	rules, err := loadRules(cfg, s, state)
	if err != nil {
		return nil, err
	}

	return &node{cfg: cfg, store: s, state: state, forwarder: forwarder, rules: rules, mailbox: m}, nil
}

// loadRules restores the admin rules, deploying them with the configured
// initial admin the first time.
func loadRules(cfg config.Config, s *store.Store, state *ledger.State) (*access.DefaultAdminRules, error) {
	rec, ok, err := s.AdminRules(cfg.Admin.Address)
	if err != nil {
		return nil, err
	}
	if ok {
		return access.Restore(state, cfg.Admin.Address, rec), nil
	}

	initialDelay, err := cfg.Admin.Delay()
	if err != nil {
		return nil, err
	}
	wait, err := cfg.Admin.IncreaseWait()
	if err != nil {
		return nil, err
	}
	if cfg.Admin.InitialAdmin.IsZero() {
		log.Root.Warn().Msg("no initial admin configured, admin commands are unavailable")
		return nil, nil
	}
	rules, err := access.NewDefaultAdminRules(state, cfg.Admin.Address, initialDelay, cfg.Admin.InitialAdmin, access.WithDelayIncreaseWait(wait))
	if err != nil {
		return nil, fmt.Errorf("deploy admin rules: %w", err)
	}
	log.Governance.Info().Stringer("admin", cfg.Admin.InitialAdmin).Msg("admin rules deployed")
	return rules, nil
}

// commit persists the node.
func (n *node) commit() error {
	return n.store.Checkpoint(n.state, n.forwarder, n.rules)
}

func (n *node) Close() error {
	return n.store.Close()
}

// withNode opens the node, runs fn and persists the node when fn succeeds.
func withNode(cctx *cli.Context, fn func(n *node) error) error {
	n, err := openNode(cctx)
	if err != nil {
		return err
	}
	defer n.Close() //nolint:errcheck

	before := len(n.state.Logs())
	if err := fn(n); err != nil {
		return err
	}
	printLogs(cctx.App.Writer, n.state.Logs()[before:])
	return n.commit()
}

func printLogs(w io.Writer, logs []ledger.Log) {
	for _, l := range logs {
		fmt.Fprintf(w, "event %s %T %+v\n", l.Address, l.Event, l.Event)
	}
}
