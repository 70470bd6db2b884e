package access

import (
	"fmt"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/delay"
	"github.com/eigerco/custodian/internal/ledger"
	"github.com/eigerco/custodian/internal/timepoint"
	"github.com/eigerco/custodian/pkg/log"
)

// DefaultDelayIncreaseWait caps how long a delay decrease has to wait: five days.
const DefaultDelayIncreaseWait timepoint.Duration = 5 * 24 * 60 * 60

// DefaultAdminRules is a role registry in which DefaultAdminRole has exactly
// one holder that can only be replaced through a two step transfer, with an
// enforced delay between the two steps. The delay can itself be changed by
// the admin, but a decrease only takes effect after the difference has
// elapsed (capped by the increase wait).
//
// Every exported method runs as one ledger transaction on the state passed
// to NewDefaultAdminRules, reading the clock once.
type DefaultAdminRules struct {
	roleRegistry

	currentAdmin    common.Address
	pendingAdmin    common.Address
	pendingSchedule timepoint.Timepoint
	delay           delay.Delay
	increaseWait    timepoint.Duration
}

type Option func(*DefaultAdminRules)

// WithDelayIncreaseWait overrides DefaultDelayIncreaseWait.
func WithDelayIncreaseWait(wait timepoint.Duration) Option {
	return func(r *DefaultAdminRules) {
		r.increaseWait = wait
	}
}

// NewDefaultAdminRules deploys the rules at self on state, granting
// DefaultAdminRole to initialAdmin.
func NewDefaultAdminRules(state *ledger.State, self common.Address, initialDelay uint32, initialAdmin common.Address, opts ...Option) (*DefaultAdminRules, error) {
	if initialAdmin.IsZero() {
		return nil, &ErrInvalidDefaultAdmin{Account: initialAdmin}
	}
	r := newDefaultAdminRules(state, self, opts...)
	_, err := state.Transact(func() error {
		r.delay = delay.New(initialDelay)
		_, err := r.grantRole(DefaultAdminRole, initialAdmin, self)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func newDefaultAdminRules(state *ledger.State, self common.Address, opts ...Option) *DefaultAdminRules {
	r := &DefaultAdminRules{
		roleRegistry: newRoleRegistry(state, self),
		increaseWait: DefaultDelayIncreaseWait,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Address of the rules on the ledger, used as the source of their events.
func (r *DefaultAdminRules) Address() common.Address {
	return r.self
}

func (r *DefaultAdminRules) HasRole(role Role, account common.Address) (has bool) {
	r.state.View(func() { has = r.hasRole(role, account) })
	return has
}

func (r *DefaultAdminRules) GetRoleAdmin(role Role) (admin Role) {
	r.state.View(func() { admin = r.roleAdmin(role) })
	return admin
}

// CheckRole returns *ErrUnauthorizedAccount when account lacks role.
func (r *DefaultAdminRules) CheckRole(role Role, account common.Address) (err error) {
	r.state.View(func() { err = r.checkRole(role, account) })
	return err
}

// GrantRole grants role to account. The caller must hold the role's admin
// role. DefaultAdminRole cannot be granted this way.
func (r *DefaultAdminRules) GrantRole(caller common.Address, role Role, account common.Address) error {
	if role == DefaultAdminRole {
		return ErrEnforcedDefaultAdminRules
	}
	return r.transact(func(timepoint.Timepoint) error {
		if err := r.checkRole(r.roleAdmin(role), caller); err != nil {
			return err
		}
		_, err := r.grantRole(role, account, caller)
		return err
	})
}

// RevokeRole revokes role from account. The caller must hold the role's admin
// role. DefaultAdminRole cannot be revoked this way.
func (r *DefaultAdminRules) RevokeRole(caller common.Address, role Role, account common.Address) error {
	if role == DefaultAdminRole {
		return ErrEnforcedDefaultAdminRules
	}
	return r.transact(func(timepoint.Timepoint) error {
		if err := r.checkRole(r.roleAdmin(role), caller); err != nil {
			return err
		}
		r.revokeRole(role, account, caller)
		return nil
	})
}

// RenounceRole drops role from the caller, who must repeat its own address as
// confirmation. The default admin can only renounce after scheduling a
// transfer to the zero address and waiting for the schedule to pass; from
// then on nobody holds DefaultAdminRole.
func (r *DefaultAdminRules) RenounceRole(caller common.Address, role Role, confirmation common.Address) error {
	if confirmation != caller {
		return ErrBadConfirmation
	}
	return r.transact(func(now timepoint.Timepoint) error {
		if role == DefaultAdminRole && caller == r.currentAdmin {
			if !r.pendingAdmin.IsZero() || !r.pendingSchedule.IsSet() || !r.pendingSchedule.HasPassed(now) {
				return &ErrEnforcedDefaultAdminDelay{Schedule: r.pendingSchedule}
			}
			schedule := r.pendingSchedule
			r.pendingSchedule = 0
			r.state.AddJournalEntry(func() { r.pendingSchedule = schedule })
		}
		r.revokeRole(role, caller, caller)
		return nil
	})
}

// SetRoleAdmin points role at a new admin role. Only the default admin may do
// so, and never for DefaultAdminRole itself.
func (r *DefaultAdminRules) SetRoleAdmin(caller common.Address, role, admin Role) error {
	if role == DefaultAdminRole {
		return ErrEnforcedDefaultAdminRules
	}
	return r.transact(func(timepoint.Timepoint) error {
		if err := r.checkRole(DefaultAdminRole, caller); err != nil {
			return err
		}
		r.setRoleAdmin(role, admin)
		return nil
	})
}

// Owner is the current default admin.
func (r *DefaultAdminRules) Owner() common.Address {
	return r.DefaultAdmin()
}

func (r *DefaultAdminRules) DefaultAdmin() (admin common.Address) {
	r.state.View(func() { admin = r.currentAdmin })
	return admin
}

// PendingDefaultAdmin returns the scheduled new admin and the timepoint from
// which it can accept. A zero schedule means no transfer is pending.
func (r *DefaultAdminRules) PendingDefaultAdmin() (newAdmin common.Address, schedule timepoint.Timepoint) {
	r.state.View(func() { newAdmin, schedule = r.pendingAdmin, r.pendingSchedule })
	return newAdmin, schedule
}

func (r *DefaultAdminRules) DefaultAdminDelay() (d uint32) {
	r.state.View(func() { d = r.delay.Get(r.state.Now()) })
	return d
}

// PendingDefaultAdminDelay returns a delay change that has not taken effect
// yet, or zeros.
func (r *DefaultAdminRules) PendingDefaultAdminDelay() (newDelay uint32, schedule timepoint.Timepoint) {
	r.state.View(func() { _, newDelay, schedule = r.delay.GetFull(r.state.Now()) })
	return newDelay, schedule
}

func (r *DefaultAdminRules) DefaultAdminDelayIncreaseWait() timepoint.Duration {
	return r.increaseWait
}

// BeginDefaultAdminTransfer schedules newAdmin to take over once the current
// delay has elapsed, replacing any pending transfer. The zero address starts
// the renounce path.
func (r *DefaultAdminRules) BeginDefaultAdminTransfer(caller, newAdmin common.Address) error {
	return r.transact(func(now timepoint.Timepoint) error {
		if err := r.checkRole(DefaultAdminRole, caller); err != nil {
			return err
		}
		schedule, err := now.Add(timepoint.Duration(r.delay.Get(now)))
		if err != nil {
			return fmt.Errorf("schedule transfer: %w", err)
		}
		r.setPendingAdmin(newAdmin, schedule, true)
		log.Governance.Debug().
			Stringer("newAdmin", newAdmin).
			Uint64("schedule", uint64(schedule)).
			Msg("default admin transfer scheduled")
		return nil
	})
}

// AcceptDefaultAdminTransfer completes a pending transfer. Only the pending
// admin can call it and only once the schedule has been reached.
func (r *DefaultAdminRules) AcceptDefaultAdminTransfer(caller common.Address) error {
	return r.transact(func(now timepoint.Timepoint) error {
		if caller.IsZero() || caller != r.pendingAdmin {
			return &ErrInvalidDefaultAdmin{Account: caller}
		}
		if !r.pendingSchedule.IsSet() || !r.pendingSchedule.HasPassed(now) {
			return &ErrEnforcedDefaultAdminDelay{Schedule: r.pendingSchedule}
		}
		r.revokeRole(DefaultAdminRole, r.currentAdmin, caller)
		if _, err := r.grantRole(DefaultAdminRole, caller, caller); err != nil {
			return err
		}
		prevAdmin, prevSchedule := r.pendingAdmin, r.pendingSchedule
		r.pendingAdmin, r.pendingSchedule = common.ZeroAddress, 0
		r.state.AddJournalEntry(func() { r.pendingAdmin, r.pendingSchedule = prevAdmin, prevSchedule })
		log.Governance.Info().Stringer("admin", caller).Msg("default admin transfer accepted")
		return nil
	})
}

// CancelDefaultAdminTransfer drops a pending transfer, if any.
func (r *DefaultAdminRules) CancelDefaultAdminTransfer(caller common.Address) error {
	return r.transact(func(timepoint.Timepoint) error {
		if err := r.checkRole(DefaultAdminRole, caller); err != nil {
			return err
		}
		r.setPendingAdmin(common.ZeroAddress, 0, false)
		return nil
	})
}

// ChangeDefaultAdminDelay schedules a new delay. An increase takes effect
// at once; a decrease waits for the difference, capped by the increase wait.
func (r *DefaultAdminRules) ChangeDefaultAdminDelay(caller common.Address, newDelay uint32) error {
	return r.transact(func(now timepoint.Timepoint) error {
		if err := r.checkRole(DefaultAdminRole, caller); err != nil {
			return err
		}
		updated, effect, err := r.delay.WithUpdate(newDelay, now, r.delayChangeWait(newDelay, now))
		if err != nil {
			return fmt.Errorf("schedule delay change: %w", err)
		}
		r.setDelay(updated, now)
		r.state.Emit(r.self, DefaultAdminDelayChangeScheduled{NewDelay: newDelay, EffectSchedule: effect})
		log.Governance.Debug().
			Uint32("newDelay", newDelay).
			Uint64("effect", uint64(effect)).
			Msg("default admin delay change scheduled")
		return nil
	})
}

// RollbackDefaultAdminDelay drops a delay change that has not taken effect.
func (r *DefaultAdminRules) RollbackDefaultAdminDelay(caller common.Address) error {
	return r.transact(func(now timepoint.Timepoint) error {
		if err := r.checkRole(DefaultAdminRole, caller); err != nil {
			return err
		}
		r.setDelay(r.delay.Rollback(now), now)
		return nil
	})
}

func (r *DefaultAdminRules) delayChangeWait(newDelay uint32, now timepoint.Timepoint) timepoint.Duration {
	current := r.delay.Get(now)
	if newDelay >= current {
		return 0
	}
	return min(timepoint.Duration(current-newDelay), r.increaseWait)
}

func (r *DefaultAdminRules) transact(fn func(now timepoint.Timepoint) error) error {
	_, err := r.state.Transact(func() error {
		return fn(r.state.Now())
	})
	return err
}

// setPendingAdmin replaces the pending transfer, announcing the cancellation
// of one that was still set.
func (r *DefaultAdminRules) setPendingAdmin(newAdmin common.Address, schedule timepoint.Timepoint, announce bool) {
	prevAdmin, prevSchedule := r.pendingAdmin, r.pendingSchedule
	r.pendingAdmin, r.pendingSchedule = newAdmin, schedule
	r.state.AddJournalEntry(func() { r.pendingAdmin, r.pendingSchedule = prevAdmin, prevSchedule })

	if prevSchedule.IsSet() {
		r.state.Emit(r.self, DefaultAdminTransferCanceled{})
	}
	if announce {
		r.state.Emit(r.self, DefaultAdminTransferScheduled{NewAdmin: newAdmin, AcceptSchedule: schedule})
	}
}

// setDelay stores d, announcing the cancellation of a change that was still
// pending before.
func (r *DefaultAdminRules) setDelay(d delay.Delay, now timepoint.Timepoint) {
	prev := r.delay
	r.delay = d
	r.state.AddJournalEntry(func() { r.delay = prev })
	if prev.IsPending(now) {
		r.state.Emit(r.self, DefaultAdminDelayChangeCanceled{})
	}
}

// grantRole enforces a single holder of DefaultAdminRole.
func (r *DefaultAdminRules) grantRole(role Role, account, sender common.Address) (bool, error) {
	if role == DefaultAdminRole {
		if !r.currentAdmin.IsZero() {
			return false, ErrEnforcedDefaultAdminRules
		}
		r.currentAdmin = account
		r.state.AddJournalEntry(func() { r.currentAdmin = common.ZeroAddress })
	}
	return r.roleRegistry.grantRole(role, account, sender), nil
}

func (r *DefaultAdminRules) revokeRole(role Role, account, sender common.Address) bool {
	if role == DefaultAdminRole && account == r.currentAdmin && !account.IsZero() {
		prev := r.currentAdmin
		r.currentAdmin = common.ZeroAddress
		r.state.AddJournalEntry(func() { r.currentAdmin = prev })
	}
	return r.roleRegistry.revokeRole(role, account, sender)
}
